package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
)

// Attempt records one failed provider try inside a single routed call.
type Attempt struct {
	Provider string
	Err      error
}

// ExhaustedError is returned when every eligible provider failed for one
// operation. It carries the ordered per-provider failures.
type ExhaustedError struct {
	Op       model.Operation
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("router: no eligible providers for %s", e.Op)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "router: all providers exhausted for %s:", e.Op)
	for _, a := range e.Attempts {
		fmt.Fprintf(&b, " %s(%v);", a.Provider, a.Err)
	}
	return strings.TrimSuffix(b.String(), ";")
}

// IsExhausted reports whether err is a provider-exhaustion failure.
func IsExhausted(err error) bool {
	var ee *ExhaustedError
	return errors.As(err, &ee)
}
