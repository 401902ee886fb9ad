package provider

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Prober runs periodic lightweight health probes against every registered
// provider. Probes may run concurrently with in-flight operations against
// the same provider; all state changes go through the registry.
type Prober struct {
	registry  *Registry
	interval  time.Duration
	threshold int // consecutive probe failures before demotion
	timeout   time.Duration
}

// NewProber creates a health prober.
func NewProber(registry *Registry, interval time.Duration, threshold int) *Prober {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if threshold <= 0 {
		threshold = 3
	}
	return &Prober{
		registry:  registry,
		interval:  interval,
		threshold: threshold,
		timeout:   10 * time.Second,
	}
}

// Run starts the probe loop. It blocks until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "provider.prober"))
	log.Info("starting health prober",
		zap.Duration("interval", p.interval),
		zap.Int("failure_threshold", p.threshold),
	)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("health prober stopped")
			return
		case <-ticker.C:
			p.ProbeAll(ctx)
		}
	}
}

// ProbeAll probes every registered provider once, in parallel.
func (p *Prober) ProbeAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, name := range p.registry.Names() {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			p.probeOne(ctx, name)
		}(name)
	}
	wg.Wait()
}

func (p *Prober) probeOne(ctx context.Context, name string) {
	prov, err := p.registry.Get(name)
	if err != nil {
		return
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	probeErr := prov.Probe(probeCtx)
	p.registry.RecordProbe(name, probeErr, p.threshold)
	if probeErr != nil {
		zap.L().Debug("health probe failed",
			zap.String("provider", name),
			zap.Error(probeErr),
		)
	}
}
