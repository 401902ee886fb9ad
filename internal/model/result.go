package model

import "time"

// Funnel holds the monotonic stage counts of one scan:
// Screened >= Passed >= Analyzed >= Found.
type Funnel struct {
	Screened int `json:"stocks_screened"`
	Passed   int `json:"stocks_passed_screening"`
	Analyzed int `json:"stocks_analyzed"`
	Found    int `json:"opportunities_found"`
}

// ProviderUsage is a snapshot of one provider's consumption during a scan.
type ProviderUsage struct {
	Calls        int           `json:"calls"`
	Failures     int           `json:"failures"`
	CreditsUsed  int           `json:"credits_used"`
	CreditsLimit int           `json:"credits_limit,omitempty"`
	AvgLatency   time.Duration `json:"avg_latency_ns"`
}

// ScanResult is the immutable aggregate of one pipeline run. It is
// finalized once and handed to the notifier and exporter.
type ScanResult struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	Funnel        Funnel                   `json:"funnel"`
	Opportunities []Candidate              `json:"opportunities"`
	Usage         map[string]ProviderUsage `json:"provider_usage"`

	// Errors and Warnings disambiguate an aborted or degraded run from a
	// legitimately clean run with no matches.
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	// Partial marks a result assembled up to the point of an external
	// shutdown signal.
	Partial bool `json:"partial,omitempty"`
}

// Duration is the wall clock time of the scan.
func (r ScanResult) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// Clean reports whether the run finished without errors or warnings.
func (r ScanResult) Clean() bool {
	return len(r.Errors) == 0 && len(r.Warnings) == 0 && !r.Partial
}
