// Package schedule runs a named job on a cron trigger with single-instance
// exclusivity, a per-job retry state machine, timeout enforcement, and
// missed-fire detection.
package schedule

import (
	"context"
	"math"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/config"
)

// ErrTimeout marks an execution that exceeded its wall clock budget.
// Timed-out executions are retry-eligible.
var ErrTimeout = eris.New("schedule: execution timed out")

// ErrRetriesExhausted marks a job that failed past its retry budget.
var ErrRetriesExhausted = eris.New("schedule: retries exhausted")

// RunFunc is the opaque unit of work triggered by the scheduler. It must
// honor ctx cancellation.
type RunFunc func(ctx context.Context) error

// Scheduler triggers one named job on a cron schedule. Retries are
// ordinary executions with full history, driven by the scheduler's own
// state machine rather than injected triggers.
type Scheduler struct {
	name    string
	run     RunFunc
	sched   cron.Schedule
	loc     *time.Location
	lock    *ProcessLock
	history *History

	maxRetries int
	retryBase  time.Duration
	backoff    float64
	timeout    time.Duration

	now func() time.Time // injectable for tests
}

// New creates a scheduler for one job from configuration.
func New(name string, cfg config.ScheduleConfig, run RunFunc) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "schedule: load timezone %q", cfg.Timezone)
	}
	sched, err := cron.ParseStandard(cfg.Cron)
	if err != nil {
		return nil, eris.Wrapf(err, "schedule: parse cron %q", cfg.Cron)
	}

	backoff := cfg.BackoffFactor
	if backoff <= 0 {
		backoff = 2.0
	}

	return &Scheduler{
		name:       name,
		run:        run,
		sched:      sched,
		loc:        loc,
		lock:       NewProcessLock(cfg.LockFile),
		history:    NewHistory(cfg.HistoryCap, cfg.Timeout(), cfg.StuckFactor),
		maxRetries: cfg.MaxRetries,
		retryBase:  cfg.RetryBase(),
		backoff:    backoff,
		timeout:    cfg.Timeout(),
		now:        time.Now,
	}, nil
}

// History exposes the execution log and counters.
func (s *Scheduler) History() *History {
	return s.history
}

// NextFire returns the next trigger time in the job's timezone.
func (s *Scheduler) NextFire() time.Time {
	return s.sched.Next(s.now().In(s.loc))
}

// Run blocks, firing the job on schedule, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	log := zap.L().With(zap.String("job", s.name))
	next := s.NextFire()
	log.Info("scheduler started",
		zap.Time("next_fire", next),
		zap.String("timezone", s.loc.String()),
	)

	for {
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Info("scheduler stopped")
			return
		case <-timer.C:
		}

		s.history.Scheduled()
		s.execute(ctx, next)
		if ctx.Err() != nil {
			log.Info("scheduler stopped")
			return
		}

		// Fires that passed while the execution (and its retries) ran
		// are recorded as missed, not silently coalesced away.
		now := s.now()
		for t := s.sched.Next(next.In(s.loc)); !t.After(now); t = s.sched.Next(t) {
			log.Warn("missed scheduled fire", zap.Time("scheduled", t))
			s.history.Missed(t)
		}
		next = s.NextFire()
		log.Info("next fire scheduled", zap.Time("next_fire", next))
	}
}

// RunOnce fires the job immediately, outside the cron loop, with the same
// lock, timeout and retry semantics.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.history.Scheduled()
	s.execute(ctx, s.now())
}

// execute drives one scheduled fire through the retry state machine:
// pending -> running -> completed, or failed -> pending retry (delay =
// base x backoff^attempt) until the budget is exhausted.
func (s *Scheduler) execute(ctx context.Context, scheduled time.Time) {
	log := zap.L().With(zap.String("job", s.name), zap.Time("scheduled", scheduled))

	for attempt := 0; ; attempt++ {
		if err := s.lock.Acquire(); err != nil {
			if eris.Is(err, ErrLockHeld) {
				// Refused outright: the fire is skipped, not queued.
				log.Warn("concurrent execution refused", zap.Error(err))
				s.history.Skipped()
				return
			}
			log.Error("lock acquisition failed", zap.Error(err))
			s.history.Skipped()
			return
		}

		s.history.Start(scheduled, attempt)
		err := s.runOnce(ctx)
		s.lock.Release()

		if err == nil {
			s.history.Finish(StatusCompleted, nil, time.Time{})
			log.Info("execution completed", zap.Int("attempt", attempt))
			return
		}
		if ctx.Err() != nil {
			s.history.Finish(StatusFailed, err, time.Time{})
			log.Warn("execution cancelled", zap.Error(err))
			return
		}
		if attempt >= s.maxRetries {
			terminal := eris.Wrap(ErrRetriesExhausted, err.Error())
			s.history.Finish(StatusFailed, terminal, time.Time{})
			log.Error("job failed terminally",
				zap.Int("attempts", attempt+1),
				zap.Error(err),
			)
			return
		}

		delay := time.Duration(float64(s.retryBase) * math.Pow(s.backoff, float64(attempt)))
		nextRetry := s.now().Add(delay)
		s.history.Finish(StatusFailed, err, nextRetry)
		log.Warn("execution failed, retry scheduled",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Time("next_retry", nextRetry),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runOnce applies the wall clock budget through context cancellation, so
// a timeout aborts in-flight I/O rather than merely abandoning it.
func (s *Scheduler) runOnce(ctx context.Context) error {
	runCtx := ctx
	var cancel context.CancelFunc
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	err := s.run(runCtx)
	if err != nil && runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return eris.Wrap(ErrTimeout, err.Error())
	}
	return err
}
