package model

import "time"

// AlertType tags an alert/event in the bounded history.
type AlertType string

const (
	AlertCriticalSensor    AlertType = "CRITICAL_SENSOR"
	AlertPredictive        AlertType = "PREDICTIVE"
	AlertCorrelation       AlertType = "CORRELATION"
	AlertProtocolExecuted  AlertType = "PROTOCOL_EXECUTED"
	AlertScenarioTriggered AlertType = "SCENARIO_TRIGGERED"
)

// Alert is one event in the alert history. Immutable after ingestion.
type Alert struct {
	Timestamp time.Time      `json:"timestamp"`
	Type      AlertType      `json:"type"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Key identifies repeats of the same alert for dedup purposes.
func (a Alert) Key() string {
	return string(a.Type) + "|" + a.Message
}
