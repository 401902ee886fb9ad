package provider

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
)

// ErrUnknownProvider is returned for lookups of unregistered providers.
var ErrUnknownProvider = eris.New("provider: unknown provider")

// ErrCreditsExhausted is returned when a provider lacks credit headroom
// for the estimated cost of a call.
var ErrCreditsExhausted = eris.New("provider: credit limit reached")

// state is the mutable operational record for one provider. Mutations go
// through the registry only, one writer at a time per record.
type state struct {
	provider Provider

	mu                  sync.Mutex
	available           bool
	creditsUsed         int
	creditsReserved     int // estimated cost of in-flight calls
	creditsLimit        int // 0 = unlimited
	consecutiveFailures int
	lastHealthCheck     time.Time

	calls        int
	failures     int
	totalLatency time.Duration
}

// Snapshot is a point-in-time copy of a provider's operational state.
type Snapshot struct {
	Name                string
	Available           bool
	CreditsUsed         int
	CreditsLimit        int
	ConsecutiveFailures int
	LastHealthCheck     time.Time
	Calls               int
	Failures            int
	AvgLatency          time.Duration
}

// Registry tracks the set of configured providers and their state.
// Providers are registered at startup and never removed during a run.
type Registry struct {
	mu     sync.RWMutex
	states map[string]*state
	order  []string // registration order
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{states: make(map[string]*state)}
}

// Register adds a provider with its credit budget (0 = unlimited).
// Providers start available.
func (r *Registry) Register(p Provider, creditsLimit int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[p.Name()] = &state{
		provider:     p,
		available:    true,
		creditsLimit: creditsLimit,
	}
	r.order = append(r.order, p.Name())
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.states[name]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownProvider, "%q", name)
	}
	return st.provider, nil
}

// Names returns provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) lookup(name string) *state {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[name]
}

// Eligible reports whether the named provider may serve the operation:
// it must advertise the capability, be available, and have credit headroom
// for the estimated cost of the call, counting in-flight reservations.
func (r *Registry) Eligible(name string, op model.Operation) bool {
	st := r.lookup(name)
	if st == nil {
		return false
	}
	if !Capable(st.provider, op) {
		return false
	}
	cost := st.provider.CostPerCall(op)
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.available {
		return false
	}
	if !headroomLocked(st, cost) {
		return false
	}
	return true
}

// headroomLocked reports whether a call with the given estimated cost fits
// under the credit limit, counting in-flight reservations. A provider at
// its limit is exhausted even for free calls. st.mu must be held.
func headroomLocked(st *state, cost int) bool {
	if st.creditsLimit <= 0 {
		return true
	}
	if st.creditsUsed+st.creditsReserved >= st.creditsLimit {
		return false
	}
	return st.creditsUsed+st.creditsReserved+cost <= st.creditsLimit
}

// Reserve sets aside the estimated credit cost of one call so concurrent
// callers cannot jointly push usage past the limit. It fails when the
// headroom is gone. The caller releases the reservation once the call
// settles.
func (r *Registry) Reserve(name string, op model.Operation) (int, error) {
	st := r.lookup(name)
	if st == nil {
		return 0, eris.Wrapf(ErrUnknownProvider, "%q", name)
	}
	cost := st.provider.CostPerCall(op)
	st.mu.Lock()
	defer st.mu.Unlock()
	if !headroomLocked(st, cost) {
		return 0, eris.Wrapf(ErrCreditsExhausted, "%q", name)
	}
	st.creditsReserved += cost
	return cost, nil
}

// Release returns a reservation made by Reserve.
func (r *Registry) Release(name string, reserved int) {
	st := r.lookup(name)
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.creditsReserved -= reserved
	if st.creditsReserved < 0 {
		st.creditsReserved = 0
	}
}

// RecordSuccess folds a successful call into the provider's statistics and
// charges the reported credits. Usage never exceeds the limit: the router
// reserves the estimated cost before every call.
func (r *Registry) RecordSuccess(name string, latency time.Duration, credits int) {
	st := r.lookup(name)
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.calls++
	st.totalLatency += latency
	st.creditsUsed += credits
	st.consecutiveFailures = 0
}

// RecordFailure folds a failed call into the provider's statistics and
// returns the new consecutive-failure count.
func (r *Registry) RecordFailure(name string, latency time.Duration) int {
	st := r.lookup(name)
	if st == nil {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.calls++
	st.failures++
	st.totalLatency += latency
	st.consecutiveFailures++
	return st.consecutiveFailures
}

// MarkUnavailable demotes a provider until its next successful probe.
func (r *Registry) MarkUnavailable(name string) {
	st := r.lookup(name)
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.available {
		zap.L().Warn("provider marked unavailable", zap.String("provider", name))
	}
	st.available = false
}

// RecordProbe folds a health probe outcome into the provider's state.
// A single successful probe re-enables the provider and clears the failure
// counter; failureThreshold consecutive failures demote it.
func (r *Registry) RecordProbe(name string, err error, threshold int) {
	st := r.lookup(name)
	if st == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastHealthCheck = time.Now()
	if err == nil {
		if !st.available {
			zap.L().Info("provider recovered", zap.String("provider", name))
		}
		st.available = true
		st.consecutiveFailures = 0
		return
	}
	st.consecutiveFailures++
	if st.consecutiveFailures >= threshold && st.available {
		zap.L().Warn("provider failed health probes",
			zap.String("provider", name),
			zap.Int("consecutive_failures", st.consecutiveFailures),
		)
		st.available = false
	}
}

// Snapshot returns a copy of one provider's state.
func (r *Registry) Snapshot(name string) (Snapshot, bool) {
	st := r.lookup(name)
	if st == nil {
		return Snapshot{}, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return snapshotLocked(name, st), true
}

// Snapshots returns all provider states in registration order.
func (r *Registry) Snapshots() []Snapshot {
	names := r.Names()
	out := make([]Snapshot, 0, len(names))
	for _, name := range names {
		if s, ok := r.Snapshot(name); ok {
			out = append(out, s)
		}
	}
	return out
}

// Usage returns the per-provider usage map attached to a ScanResult.
func (r *Registry) Usage() map[string]model.ProviderUsage {
	out := make(map[string]model.ProviderUsage)
	for _, s := range r.Snapshots() {
		out[s.Name] = model.ProviderUsage{
			Calls:        s.Calls,
			Failures:     s.Failures,
			CreditsUsed:  s.CreditsUsed,
			CreditsLimit: s.CreditsLimit,
			AvgLatency:   s.AvgLatency,
		}
	}
	return out
}

func snapshotLocked(name string, st *state) Snapshot {
	var avg time.Duration
	if st.calls > 0 {
		avg = st.totalLatency / time.Duration(st.calls)
	}
	return Snapshot{
		Name:                name,
		Available:           st.available,
		CreditsUsed:         st.creditsUsed,
		CreditsLimit:        st.creditsLimit,
		ConsecutiveFailures: st.consecutiveFailures,
		LastHealthCheck:     st.lastHealthCheck,
		Calls:               st.calls,
		Failures:            st.failures,
		AvgLatency:          avg,
	}
}
