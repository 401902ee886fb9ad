package schedule

import (
	"sync"
	"time"
)

// ExecutionStatus is the lifecycle state of one scheduled attempt.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
	StatusMissed    ExecutionStatus = "missed"
)

// Execution is one record per scheduled attempt, retries included.
type Execution struct {
	ScheduledTime time.Time       `json:"scheduled_time"`
	StartTime     time.Time       `json:"start_time,omitempty"`
	EndTime       time.Time       `json:"end_time,omitempty"`
	Status        ExecutionStatus `json:"status"`
	RetryCount    int             `json:"retry_count"`
	NextRetryTime time.Time       `json:"next_retry_time,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// Duration returns the execution's wall clock time, zero while running.
func (e Execution) Duration() time.Duration {
	if e.EndTime.IsZero() || e.StartTime.IsZero() {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}

// Health is the coarse verdict derived from recent execution history.
type Health string

const (
	HealthHealthy   Health = "healthy"
	HealthDegraded  Health = "degraded"
	HealthUnhealthy Health = "unhealthy"
	HealthCritical  Health = "critical"
)

// Stats aggregates the scheduler's counters and verdict.
type Stats struct {
	Scheduled   int           `json:"scheduled"`
	Executed    int           `json:"executed"`
	Completed   int           `json:"completed"`
	Failed      int           `json:"failed"`
	Missed      int           `json:"missed"`
	Skipped     int           `json:"skipped"` // refused by a held lock
	AvgDuration time.Duration `json:"avg_duration_ns"`
	SuccessRate float64       `json:"success_rate"`
	Health      Health        `json:"health"`
	Stuck       bool          `json:"stuck"`
}

// History is the bounded, synchronized execution log plus counters.
// The oldest entries are evicted beyond the cap.
type History struct {
	mu      sync.Mutex
	cap     int
	entries []Execution
	running *Execution // current running record, also present in entries

	scheduled     int
	executed      int
	completed     int
	failed        int
	missed        int
	skipped       int
	totalDuration time.Duration

	expectedRuntime time.Duration
	stuckFactor     float64
}

// NewHistory creates a history bounded at cap entries.
func NewHistory(cap int, expectedRuntime time.Duration, stuckFactor float64) *History {
	if cap <= 0 {
		cap = 100
	}
	if stuckFactor <= 0 {
		stuckFactor = 2.0
	}
	return &History{
		cap:             cap,
		expectedRuntime: expectedRuntime,
		stuckFactor:     stuckFactor,
	}
}

func (h *History) append(e Execution) {
	h.entries = append(h.entries, e)
	if len(h.entries) > h.cap {
		h.entries = h.entries[len(h.entries)-h.cap:]
	}
}

// Scheduled notes that a trigger fired.
func (h *History) Scheduled() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scheduled++
}

// Start records a new running execution. The record joins the history
// when it finishes.
func (h *History) Start(scheduled time.Time, retry int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.running = &Execution{
		ScheduledTime: scheduled,
		StartTime:     time.Now(),
		Status:        StatusRunning,
		RetryCount:    retry,
	}
	h.executed++
}

// Finish closes the running execution with its terminal status and
// appends it to the history.
func (h *History) Finish(status ExecutionStatus, runErr error, nextRetry time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running == nil {
		return
	}
	h.running.EndTime = time.Now()
	h.running.Status = status
	h.running.NextRetryTime = nextRetry
	if runErr != nil {
		h.running.Error = runErr.Error()
	}
	h.totalDuration += h.running.Duration()
	switch status {
	case StatusCompleted:
		h.completed++
	case StatusFailed:
		h.failed++
	}
	h.append(*h.running)
	h.running = nil
}

// Missed records a fire that was suppressed or passed while not running.
func (h *History) Missed(scheduled time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.append(Execution{
		ScheduledTime: scheduled,
		Status:        StatusMissed,
	})
	h.missed++
}

// Skipped notes a start refused by a concurrently held lock.
func (h *History) Skipped() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.skipped++
}

// Entries returns a copy of the retained executions, oldest first, with
// the currently running one (if any) last.
func (h *History) Entries() []Execution {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Execution, len(h.entries), len(h.entries)+1)
	copy(out, h.entries)
	if h.running != nil {
		out = append(out, *h.running)
	}
	return out
}

// Stats computes the aggregate counters and the health verdict.
func (h *History) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := Stats{
		Scheduled: h.scheduled,
		Executed:  h.executed,
		Completed: h.completed,
		Failed:    h.failed,
		Missed:    h.missed,
		Skipped:   h.skipped,
	}
	finished := h.completed + h.failed
	if finished > 0 {
		s.AvgDuration = h.totalDuration / time.Duration(finished)
		s.SuccessRate = float64(h.completed) / float64(finished)
	}
	s.Stuck = h.stuckLocked()
	s.Health = h.verdictLocked(s)
	return s
}

// stuckLocked reports a running execution past its expected runtime.
func (h *History) stuckLocked() bool {
	if h.running == nil || h.expectedRuntime <= 0 {
		return false
	}
	budget := time.Duration(float64(h.expectedRuntime) * h.stuckFactor)
	return time.Since(h.running.StartTime) > budget
}

// verdictLocked derives the coarse health from the recent failure rate
// and stuck detection.
func (h *History) verdictLocked(s Stats) Health {
	recent := h.entries
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	var recentFailed, recentFinished int
	for _, e := range recent {
		switch e.Status {
		case StatusFailed:
			recentFailed++
			recentFinished++
		case StatusCompleted:
			recentFinished++
		}
	}

	failRate := 0.0
	if recentFinished > 0 {
		failRate = float64(recentFailed) / float64(recentFinished)
	}

	switch {
	case s.Stuck && failRate > 0.5, recentFinished >= 3 && recentFailed == recentFinished:
		return HealthCritical
	case failRate > 0.5:
		return HealthUnhealthy
	case failRate > 0.2 || s.Stuck || s.Missed > 0 && s.Executed == 0:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}
