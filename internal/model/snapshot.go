package model

import "time"

// Snapshot is the immutable per-tick state published for external
// consumers (dashboard, exporters). A tick swaps in a whole new value;
// readers never see in-progress mutation.
type Snapshot struct {
	Timestamp  time.Time                `json:"timestamp"`
	Status     SystemStatus             `json:"system_status"`
	Readings   map[string]SensorReading `json:"sensor_readings"`
	Zones      map[string]ZoneStatus    `json:"zone_status"`
	Weather    WeatherCondition         `json:"weather"`
	Production ProductionMetrics        `json:"production"`
	Assessment RiskAssessment           `json:"risk_assessment"`
	Anomalies  []Anomaly                `json:"active_anomalies,omitempty"`
}
