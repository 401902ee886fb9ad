package provider

import (
	"sync"
	"time"

	"github.com/ft1-1/pmcc-scanner-sub003/internal/model"
)

// OperationRecord is one immutable log entry, appended after every routed
// attempt, success or failure.
type OperationRecord struct {
	Op             model.Operation `json:"operation"`
	Provider       string          `json:"provider"`
	Success        bool            `json:"success"`
	Latency        time.Duration   `json:"latency_ns"`
	Timestamp      time.Time       `json:"timestamp"`
	CreditsCharged int             `json:"credits_charged"`
}

// OperationLog is a bounded in-memory append-only record of routed
// operations. When full, the oldest entries are evicted.
type OperationLog struct {
	mu      sync.Mutex
	cap     int
	records []OperationRecord
}

// NewOperationLog creates a log bounded at cap entries.
func NewOperationLog(cap int) *OperationLog {
	if cap <= 0 {
		cap = 1000
	}
	return &OperationLog{cap: cap}
}

// Append adds one record, evicting the oldest beyond the cap.
func (l *OperationLog) Append(rec OperationRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	if len(l.records) > l.cap {
		l.records = l.records[len(l.records)-l.cap:]
	}
}

// Records returns a copy of the retained records, oldest first.
func (l *OperationLog) Records() []OperationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]OperationRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of retained records.
func (l *OperationLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
