package model

import "time"

// AnomalySeverity scales the production impact of an injected fault.
type AnomalySeverity string

const (
	SeverityWarning  AnomalySeverity = "warning"
	SeverityCritical AnomalySeverity = "critical"
)

// Anomaly is a time-boxed injected fault. It lives for a fixed number of
// monitoring cycles (one cycle = one scheduler tick) and forces the
// sensors it targets into alarm while active.
type Anomaly struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Severity        AnomalySeverity `json:"severity"`
	StartedAt       time.Time       `json:"started_at"`
	RemainingCycles int             `json:"remaining_cycles"`
}
