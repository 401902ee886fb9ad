package schedule

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/config"
)

func testScheduleConfig(t *testing.T) config.ScheduleConfig {
	t.Helper()
	return config.ScheduleConfig{
		Cron:          "30 9 * * 1-5",
		Timezone:      "UTC",
		MaxRetries:    2,
		RetryBaseSecs: 300,
		BackoffFactor: 2.0,
		LockFile:      filepath.Join(t.TempDir(), "job.lock"),
		HistoryCap:    50,
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	run := func(context.Context) error { return nil }

	cfg := testScheduleConfig(t)
	cfg.Cron = "not a cron expression"
	_, err := New("job", cfg, run)
	assert.Error(t, err)

	cfg = testScheduleConfig(t)
	cfg.Timezone = "Nowhere/Invalid"
	_, err = New("job", cfg, run)
	assert.Error(t, err)
}

func TestScheduler_NextFire(t *testing.T) {
	sched, err := New("job", testScheduleConfig(t), func(context.Context) error { return nil })
	require.NoError(t, err)

	// Monday 08:00 UTC; the 09:30 weekday trigger is next.
	sched.now = func() time.Time {
		return time.Date(2026, 8, 31, 8, 0, 0, 0, time.UTC)
	}
	next := sched.NextFire()
	assert.Equal(t, time.Date(2026, 8, 31, 9, 30, 0, 0, time.UTC), next.UTC())

	// Friday evening rolls over the weekend to Monday.
	sched.now = func() time.Time {
		return time.Date(2026, 9, 4, 18, 0, 0, 0, time.UTC)
	}
	next = sched.NextFire()
	assert.Equal(t, time.Date(2026, 9, 7, 9, 30, 0, 0, time.UTC), next.UTC())
}

func TestScheduler_RunOnceSuccess(t *testing.T) {
	ran := 0
	sched, err := New("job", testScheduleConfig(t), func(context.Context) error {
		ran++
		return nil
	})
	require.NoError(t, err)

	sched.RunOnce(context.Background())

	assert.Equal(t, 1, ran)
	stats := sched.History().Stats()
	assert.Equal(t, 1, stats.Scheduled)
	assert.Equal(t, 1, stats.Executed)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, HealthHealthy, stats.Health)
}

func TestScheduler_RetriesWithBackoff(t *testing.T) {
	attempts := 0
	sched, err := New("job", testScheduleConfig(t), func(context.Context) error {
		attempts++
		return eris.New("provider outage")
	})
	require.NoError(t, err)
	// Shrink the delays so the test runs fast; the doubling still shows.
	sched.retryBase = 20 * time.Millisecond

	sched.RunOnce(context.Background())

	assert.Equal(t, 3, attempts, "initial try plus two retries")

	entries := sched.History().Entries()
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, StatusFailed, e.Status)
		assert.Equal(t, i, e.RetryCount, "retries are ordinary executions with their own records")
	}

	// First two failures schedule a retry; delays double.
	d0 := entries[0].NextRetryTime.Sub(entries[0].EndTime)
	d1 := entries[1].NextRetryTime.Sub(entries[1].EndTime)
	assert.Greater(t, d0, time.Duration(0))
	assert.Greater(t, d1, d0)

	// The terminal failure carries the exhaustion marker and no retry time.
	assert.True(t, entries[2].NextRetryTime.IsZero())
	assert.Contains(t, entries[2].Error, "retries exhausted")
}

func TestScheduler_RecoversOnRetry(t *testing.T) {
	attempts := 0
	sched, err := New("job", testScheduleConfig(t), func(context.Context) error {
		attempts++
		if attempts == 1 {
			return eris.New("transient outage")
		}
		return nil
	})
	require.NoError(t, err)
	sched.retryBase = time.Millisecond

	sched.RunOnce(context.Background())

	stats := sched.History().Stats()
	assert.Equal(t, 2, stats.Executed)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 1, stats.Failed)

	entries := sched.History().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, StatusCompleted, entries[1].Status)
	assert.Equal(t, 1, entries[1].RetryCount)
}

func TestScheduler_TimeoutAbortsExecution(t *testing.T) {
	cfg := testScheduleConfig(t)
	cfg.MaxRetries = 0
	sched, err := New("job", cfg, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.NoError(t, err)
	sched.timeout = 20 * time.Millisecond

	sched.RunOnce(context.Background())

	entries := sched.History().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusFailed, entries[0].Status)
	assert.Contains(t, entries[0].Error, "timed out")
}

func TestScheduler_SkipsWhenLockHeld(t *testing.T) {
	cfg := testScheduleConfig(t)
	// Pid 1 is always alive; the lock reads as held by a live process.
	require.NoError(t, os.WriteFile(cfg.LockFile, []byte("1"), 0o644))

	ran := 0
	sched, err := New("job", cfg, func(context.Context) error {
		ran++
		return nil
	})
	require.NoError(t, err)

	sched.RunOnce(context.Background())

	assert.Zero(t, ran)
	stats := sched.History().Stats()
	assert.Equal(t, 1, stats.Scheduled)
	assert.Zero(t, stats.Executed)
	assert.Equal(t, 1, stats.Skipped)
}

func TestScheduler_CancelledContextStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	sched, err := New("job", testScheduleConfig(t), func(runCtx context.Context) error {
		attempts++
		cancel()
		return runCtx.Err()
	})
	require.NoError(t, err)

	sched.RunOnce(ctx)

	assert.Equal(t, 1, attempts, "no retries after an external shutdown")
	entries := sched.History().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, StatusFailed, entries[0].Status)
}
