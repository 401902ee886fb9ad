// Package provider defines the data provider contract and the registry
// that tracks per-provider capability, availability, credit usage, and
// rolling health statistics.
package provider

import (
	"context"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
)

// Request is one data operation handed to a provider.
type Request struct {
	Op     model.Operation
	Symbol string         // empty for universe-level operations
	Params map[string]any // operation-specific filters
}

// Status is the coarse outcome reported by a provider.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Response is the provider-level result envelope. Data holds a typed
// payload depending on the operation: []model.ScreenRow for screens,
// *model.Quote, *model.OptionChain, or *model.Fundamentals.
type Response struct {
	Status         Status
	Data           any
	ErrorDetail    string
	CreditsCharged int
}

// Provider is an interchangeable market data source.
type Provider interface {
	// Name returns the provider's type tag.
	Name() string

	// Capabilities returns the operations this provider can serve. The
	// router never invokes an operation outside this set.
	Capabilities() []model.Operation

	// CostPerCall estimates the credit cost of one call for an
	// operation, used for cost-efficiency ordering.
	CostPerCall(op model.Operation) int

	// Call performs one data operation.
	Call(ctx context.Context, req Request) (*Response, error)

	// Probe is a lightweight liveness check.
	Probe(ctx context.Context) error
}

// Capable reports whether p advertises the operation.
func Capable(p Provider, op model.Operation) bool {
	for _, c := range p.Capabilities() {
		if c == op {
			return true
		}
	}
	return false
}
