package model

import "time"

// RiskLevel is the site-wide risk classification produced each tick.
type RiskLevel string

const (
	RiskNormal    RiskLevel = "NORMAL"
	RiskWarning   RiskLevel = "WARNING"
	RiskCritical  RiskLevel = "CRITICAL"
	RiskEmergency RiskLevel = "EMERGENCY"
)

// ValidRiskLevel reports whether s is one of the closed risk levels.
func ValidRiskLevel(s string) bool {
	switch RiskLevel(s) {
	case RiskNormal, RiskWarning, RiskCritical, RiskEmergency:
		return true
	}
	return false
}

// SystemStatus is the monitoring loop's externally visible state.
type SystemStatus string

const (
	SystemActive  SystemStatus = "ACTIVE"
	SystemError   SystemStatus = "ERROR"
	SystemStopped SystemStatus = "STOPPED"
)

// PredictiveAlert is a forward-looking warning from the analysis
// collaborator.
type PredictiveAlert struct {
	Timeframe          string   `json:"timeframe"`
	Probability        float64  `json:"probability"`
	Scenario           string   `json:"scenario"`
	PreventiveMeasures []string `json:"preventive_measures,omitempty"`
}

// Correlation is a cross-signal relationship flagged by the collaborator.
type Correlation struct {
	Type              string `json:"type"`
	Description       string `json:"description"`
	RiskAmplification string `json:"risk_amplification"`
}

// EnvironmentalImpact is the locally computed weather exposure picture.
type EnvironmentalImpact struct {
	DustDispersionRisk     string `json:"dust_dispersion_risk"`
	GasContainmentRisk     string `json:"gas_containment_risk"`
	VisibilityImpact       string `json:"visibility_impact"`
	PopulationExposureRisk string `json:"population_exposure_risk"`
}

// RiskAssessment is the immutable result of one classification pass.
// Superseded by the next tick's assessment, never updated in place.
type RiskAssessment struct {
	Timestamp           time.Time           `json:"timestamp"`
	CurrentLevel        RiskLevel           `json:"current_level"`
	PredictedLevel2h    RiskLevel           `json:"predicted_level_2h"`
	Confidence          float64             `json:"confidence_score"` // 0..1
	PrimaryRisks        []string            `json:"primary_risks,omitempty"`
	SecondaryRisks      []string            `json:"secondary_risks,omitempty"`
	AffectedZones       []string            `json:"affected_zones,omitempty"`
	SafeZones           []string            `json:"safe_zones,omitempty"`
	RecommendedProtocol string              `json:"recommended_protocol,omitempty"`
	PredictiveAlerts    []PredictiveAlert   `json:"predictive_alerts,omitempty"`
	Correlations        []Correlation       `json:"correlations_detected,omitempty"`
	DataQuality         float64             `json:"data_quality_score"`
	Environmental       EnvironmentalImpact `json:"environmental_factors"`
	Reasoning           string              `json:"detailed_reasoning,omitempty"`

	// Degraded marks an assessment produced without the collaborator
	// (call failed or the breaker was open).
	Degraded bool `json:"degraded,omitempty"`
	// FalseAlarmSuspected marks a high risk level reported with low
	// confidence.
	FalseAlarmSuspected bool `json:"false_alarm_suspected,omitempty"`
}
