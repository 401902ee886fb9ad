package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
)

type fakeProvider struct {
	name    string
	caps    []model.Operation
	cost    int
	call    func(ctx context.Context, req Request) (*Response, error)
	probeFn func(ctx context.Context) error
}

func (f *fakeProvider) Name() string                    { return f.name }
func (f *fakeProvider) Capabilities() []model.Operation { return f.caps }
func (f *fakeProvider) CostPerCall(model.Operation) int { return f.cost }

func (f *fakeProvider) Call(ctx context.Context, req Request) (*Response, error) {
	if f.call == nil {
		return &Response{Status: StatusOK}, nil
	}
	return f.call(ctx, req)
}

func (f *fakeProvider) Probe(ctx context.Context) error {
	if f.probeFn == nil {
		return nil
	}
	return f.probeFn(ctx)
}

func quoteOnly(name string) *fakeProvider {
	return &fakeProvider{name: name, caps: []model.Operation{model.OpQuote}}
}

func TestRegistry_EligibleRequiresCapability(t *testing.T) {
	reg := NewRegistry()
	reg.Register(quoteOnly("alpha"), 0)

	assert.True(t, reg.Eligible("alpha", model.OpQuote))
	assert.False(t, reg.Eligible("alpha", model.OpOptionsChain))
	assert.False(t, reg.Eligible("missing", model.OpQuote))
}

func TestRegistry_CreditExhaustion(t *testing.T) {
	reg := NewRegistry()
	reg.Register(quoteOnly("alpha"), 10)

	require.True(t, reg.Eligible("alpha", model.OpQuote))

	reg.RecordSuccess("alpha", time.Millisecond, 9)
	assert.True(t, reg.Eligible("alpha", model.OpQuote), "headroom remains below the limit")

	reg.RecordSuccess("alpha", time.Millisecond, 1)
	assert.False(t, reg.Eligible("alpha", model.OpQuote), "limit reached")

	snap, ok := reg.Snapshot("alpha")
	require.True(t, ok)
	assert.Equal(t, 10, snap.CreditsUsed)
	assert.Equal(t, 10, snap.CreditsLimit)
}

func TestRegistry_EligibleNeedsHeadroomForFullCallCost(t *testing.T) {
	metered := &fakeProvider{name: "metered", caps: []model.Operation{model.OpFundamentals}, cost: 10}
	reg := NewRegistry()
	reg.Register(metered, 12)

	require.True(t, reg.Eligible("metered", model.OpFundamentals))

	// 10 used, 2 remaining: another 10-credit call would overshoot.
	reg.RecordSuccess("metered", time.Millisecond, 10)
	assert.False(t, reg.Eligible("metered", model.OpFundamentals))

	snap, ok := reg.Snapshot("metered")
	require.True(t, ok)
	assert.LessOrEqual(t, snap.CreditsUsed, snap.CreditsLimit)
}

func TestRegistry_ReserveHoldsHeadroomForInflightCalls(t *testing.T) {
	metered := &fakeProvider{name: "metered", caps: []model.Operation{model.OpFundamentals}, cost: 10}
	reg := NewRegistry()
	reg.Register(metered, 12)

	reserved, err := reg.Reserve("metered", model.OpFundamentals)
	require.NoError(t, err)
	assert.Equal(t, 10, reserved)

	// The reservation blocks a second caller even before credits settle.
	assert.False(t, reg.Eligible("metered", model.OpFundamentals))
	_, err = reg.Reserve("metered", model.OpFundamentals)
	require.ErrorIs(t, err, ErrCreditsExhausted)

	reg.Release("metered", reserved)
	assert.True(t, reg.Eligible("metered", model.OpFundamentals))
}

func TestRegistry_ZeroLimitIsUnlimited(t *testing.T) {
	reg := NewRegistry()
	reg.Register(quoteOnly("free"), 0)

	reg.RecordSuccess("free", time.Millisecond, 100000)
	assert.True(t, reg.Eligible("free", model.OpQuote))
}

func TestRegistry_MarkUnavailableAndProbeRecovery(t *testing.T) {
	reg := NewRegistry()
	reg.Register(quoteOnly("alpha"), 0)

	reg.RecordFailure("alpha", time.Millisecond)
	reg.RecordFailure("alpha", time.Millisecond)
	reg.MarkUnavailable("alpha")
	assert.False(t, reg.Eligible("alpha", model.OpQuote))

	// A failed probe keeps the provider demoted.
	reg.RecordProbe("alpha", errors.New("unreachable"), 3)
	assert.False(t, reg.Eligible("alpha", model.OpQuote))

	// A successful probe restores eligibility and clears the streak.
	reg.RecordProbe("alpha", nil, 3)
	assert.True(t, reg.Eligible("alpha", model.OpQuote))

	snap, ok := reg.Snapshot("alpha")
	require.True(t, ok)
	assert.True(t, snap.Available)
	assert.Zero(t, snap.ConsecutiveFailures)
	assert.False(t, snap.LastHealthCheck.IsZero())
}

func TestRegistry_ProbeFailuresDemoteAtThreshold(t *testing.T) {
	reg := NewRegistry()
	reg.Register(quoteOnly("alpha"), 0)

	reg.RecordProbe("alpha", errors.New("down"), 2)
	assert.True(t, reg.Eligible("alpha", model.OpQuote), "one failure is below the threshold")

	reg.RecordProbe("alpha", errors.New("down"), 2)
	assert.False(t, reg.Eligible("alpha", model.OpQuote))
}

func TestRegistry_NamesPreserveRegistrationOrder(t *testing.T) {
	reg := NewRegistry()
	reg.Register(quoteOnly("primary"), 0)
	reg.Register(quoteOnly("fallback"), 0)

	assert.Equal(t, []string{"primary", "fallback"}, reg.Names())
}

func TestRegistry_Usage(t *testing.T) {
	reg := NewRegistry()
	reg.Register(quoteOnly("alpha"), 100)

	reg.RecordSuccess("alpha", 10*time.Millisecond, 5)
	reg.RecordSuccess("alpha", 20*time.Millisecond, 5)
	reg.RecordFailure("alpha", 30*time.Millisecond)

	usage := reg.Usage()
	require.Contains(t, usage, "alpha")
	assert.Equal(t, 3, usage["alpha"].Calls)
	assert.Equal(t, 1, usage["alpha"].Failures)
	assert.Equal(t, 10, usage["alpha"].CreditsUsed)
}

func TestOperationLog_EvictsOldest(t *testing.T) {
	log := NewOperationLog(3)
	for i := 0; i < 5; i++ {
		log.Append(OperationRecord{Provider: "alpha", Op: model.OpQuote, Success: true, Timestamp: time.Now()})
	}
	log.Append(OperationRecord{Provider: "omega", Op: model.OpQuote, Success: false, Timestamp: time.Now()})

	recs := log.Records()
	require.Len(t, recs, 3)
	assert.Equal(t, 3, log.Len())
	assert.Equal(t, "omega", recs[2].Provider)
}
