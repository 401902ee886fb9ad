// Package router selects, per data operation, the provider that should
// serve it, with automatic failover, cost and credit awareness, and
// failure demotion.
package router

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/config"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
	"github.com/ft1-1/pmcc-scanner-sub003/internal/provider"
)

// Router routes operations to eligible providers in preference order.
type Router struct {
	registry *provider.Registry
	oplog    *provider.OperationLog
	cfg      config.RoutingConfig
	sems     map[string]*semaphore.Weighted
}

// New creates a router over the given registry. The per-provider in-flight
// caps are fixed at construction; callers beyond the cap wait.
func New(registry *provider.Registry, oplog *provider.OperationLog, cfg config.RoutingConfig) *Router {
	inflight := int64(cfg.MaxInflightPerProvider)
	if inflight <= 0 {
		inflight = 4
	}
	sems := make(map[string]*semaphore.Weighted)
	for _, name := range registry.Names() {
		sems[name] = semaphore.NewWeighted(inflight)
	}
	return &Router{
		registry: registry,
		oplog:    oplog,
		cfg:      cfg,
		sems:     sems,
	}
}

// Route performs one operation through the first eligible provider,
// failing over to the next candidate on transport errors or explicit
// error responses. Every attempt appends one operation record.
func (r *Router) Route(ctx context.Context, req provider.Request) (*provider.Response, error) {
	candidates := r.candidates(req.Op)

	var attempts []Attempt
	for _, name := range candidates {
		if !r.registry.Eligible(name, req.Op) {
			continue
		}

		resp, err := r.callOne(ctx, name, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		attempts = append(attempts, Attempt{Provider: name, Err: err})
	}

	return nil, &ExhaustedError{Op: req.Op, Attempts: attempts}
}

// callOne invokes a single provider under its in-flight cap and folds the
// outcome into the registry and the operation log.
func (r *Router) callOne(ctx context.Context, name string, req provider.Request) (*provider.Response, error) {
	prov, err := r.registry.Get(name)
	if err != nil {
		return nil, err
	}

	reserved, err := r.registry.Reserve(name, req.Op)
	if err != nil {
		return nil, err
	}
	defer r.registry.Release(name, reserved)

	if sem := r.sems[name]; sem != nil {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, eris.Wrap(err, "router: acquire slot")
		}
		defer sem.Release(1)
	}

	start := time.Now()
	resp, callErr := prov.Call(ctx, req)
	latency := time.Since(start)

	failed := callErr != nil || resp == nil || resp.Status != provider.StatusOK
	credits := 0
	if resp != nil {
		credits = resp.CreditsCharged
	}

	r.oplog.Append(provider.OperationRecord{
		Op:             req.Op,
		Provider:       name,
		Success:        !failed,
		Latency:        latency,
		Timestamp:      start,
		CreditsCharged: credits,
	})

	if failed {
		count := r.registry.RecordFailure(name, latency)
		threshold := r.cfg.FailureThreshold
		if threshold <= 0 {
			threshold = 3
		}
		if count >= threshold {
			r.registry.MarkUnavailable(name)
		}
		if callErr == nil {
			callErr = eris.Errorf("router: %s reported error: %s", name, resp.ErrorDetail)
		}
		zap.L().Warn("provider call failed",
			zap.String("provider", name),
			zap.String("operation", string(req.Op)),
			zap.String("symbol", req.Symbol),
			zap.Int("consecutive_failures", count),
			zap.Error(callErr),
		)
		return nil, callErr
	}

	r.registry.RecordSuccess(name, latency, credits)
	return resp, nil
}

// candidates builds the ordered, deduplicated provider list for an
// operation: the per-operation preferred provider, then the configured
// primary, then the rest (by credit cost when cost-efficiency ordering is
// enabled, registration order otherwise).
func (r *Router) candidates(op model.Operation) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}

	add(r.cfg.Preferred[string(op)])
	add(r.cfg.Primary)

	rest := make([]string, 0)
	for _, name := range r.registry.Names() {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	if r.cfg.CostEfficiencyOrder {
		sort.SliceStable(rest, func(i, j int) bool {
			pi, err1 := r.registry.Get(rest[i])
			pj, err2 := r.registry.Get(rest[j])
			if err1 != nil || err2 != nil {
				return false
			}
			return pi.CostPerCall(op) < pj.CostPerCall(op)
		})
	}
	for _, name := range rest {
		add(name)
	}

	return out
}
