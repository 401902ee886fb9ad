package scan

import (
	"errors"
	"fmt"
)

// FatalError aborts a whole run. It is raised when universe resolution
// fails on every provider or when no providers are configured at all.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("scan: fatal at stage %s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err carries a scan-fatal failure.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
