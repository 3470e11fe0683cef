package model

import "time"

// SensorStatus classifies a single reading.
type SensorStatus string

const (
	StatusNormal   SensorStatus = "normal"
	StatusWarning  SensorStatus = "warning"
	StatusCritical SensorStatus = "critical"
	StatusOffline  SensorStatus = "offline"
)

// SensorReading is one sampled value from one sensor.
type SensorReading struct {
	SensorID        string       `json:"sensor_id"`
	SensorType      string       `json:"sensor_type"`
	Value           float64      `json:"value"`
	Unit            string       `json:"unit"`
	Location        string       `json:"location"`
	Zone            string       `json:"zone"`
	Timestamp       time.Time    `json:"timestamp"`
	Status          SensorStatus `json:"status"`
	CalibrationDate time.Time    `json:"calibration_date"`
	MaintenanceDue  bool         `json:"maintenance_due"`
}

// SensorConfig is the static definition of a sensor. Loaded once at
// startup and read-only afterwards.
type SensorConfig struct {
	ID                string  `json:"id" yaml:"id"`
	Type              string  `json:"type" yaml:"type"`
	Zone              string  `json:"zone" yaml:"zone"`
	Location          string  `json:"location" yaml:"location"`
	Unit              string  `json:"unit" yaml:"unit"`
	NormalMin         float64 `json:"normal_min" yaml:"normal_min"`
	NormalMax         float64 `json:"normal_max" yaml:"normal_max"`
	CriticalThreshold float64 `json:"critical_threshold" yaml:"critical_threshold"`
}

// WarningThreshold is 85% of the top of the normal range.
func (c SensorConfig) WarningThreshold() float64 {
	return c.NormalMax * 0.85
}

// StatusFor classifies a value against the configured thresholds.
// OFFLINE is never produced here; it only comes from fault injection.
func (c SensorConfig) StatusFor(value float64) SensorStatus {
	threshold := c.CriticalThreshold
	if threshold <= 0 {
		threshold = c.NormalMax * 1.5
	}
	switch {
	case value >= threshold:
		return StatusCritical
	case value >= c.WarningThreshold():
		return StatusWarning
	default:
		return StatusNormal
	}
}
