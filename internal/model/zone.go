package model

import "time"

// ZoneState is the aggregate condition of a zone. It extends the sensor
// statuses with "degraded", reached when offline sensors are present but
// nothing is in alarm.
type ZoneState string

const (
	ZoneNormal   ZoneState = "normal"
	ZoneWarning  ZoneState = "warning"
	ZoneCritical ZoneState = "critical"
	ZoneDegraded ZoneState = "degraded"
)

// PersonnelData describes the crew assigned to a zone.
type PersonnelData struct {
	Zone             string    `json:"zone" yaml:"zone"`
	PersonnelCount   int       `json:"personnel_count" yaml:"personnel_count"`
	ShiftSupervisor  string    `json:"shift_supervisor" yaml:"shift_supervisor"`
	EmergencyTrained int       `json:"emergency_trained" yaml:"emergency_trained"`
	LastSafetyDrill  time.Time `json:"last_safety_drill" yaml:"last_safety_drill"`
}

// ZoneStatus is the per-zone aggregate derived from one batch of readings.
type ZoneStatus struct {
	Zone            string               `json:"zone"`
	Status          ZoneState            `json:"status"`
	Personnel       PersonnelData        `json:"personnel"`
	SensorCount     int                  `json:"sensor_count"`
	StatusCounts    map[SensorStatus]int `json:"sensor_status"`
	ActiveAnomalies int                  `json:"active_anomalies"`
}
