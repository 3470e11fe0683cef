package risk

import (
	"sort"
	"time"

	"github.com/minewatch/emergency/internal/model"
)

// AnalysisContext is the structured request sent to the external
// analysis collaborator. It is a summary, not the raw batch: per-zone
// sensor digests, the weather and production blocks, recent assessment
// history for trend context, and the learning counters.
type AnalysisContext struct {
	Timestamp               time.Time               `json:"timestamp"`
	Zones                   []ZoneDigest            `json:"zones"`
	Weather                 model.WeatherCondition  `json:"weather"`
	Production              model.ProductionMetrics `json:"production"`
	History                 []HistoryLine           `json:"history,omitempty"`
	DataQuality             float64                 `json:"data_quality_score"`
	SuccessfulInterventions int                     `json:"successful_interventions"`
	FalseAlarmsPrevented    int                     `json:"false_alarms_prevented"`
}

// ZoneDigest condenses one zone for the collaborator.
type ZoneDigest struct {
	Zone            string         `json:"zone"`
	Status          model.ZoneState `json:"status"`
	PersonnelCount  int            `json:"personnel_count"`
	ShiftSupervisor string         `json:"shift_supervisor"`
	ActiveAnomalies int            `json:"active_anomalies"`
	Sensors         []SensorDigest `json:"sensors"`
}

// SensorDigest is one reading reduced to what the collaborator needs.
type SensorDigest struct {
	SensorID string             `json:"sensor_id"`
	Value    float64            `json:"value"`
	Unit     string             `json:"unit"`
	Status   model.SensorStatus `json:"status"`
	Location string             `json:"location"`
}

// HistoryLine is one prior assessment reduced to its trend signal.
type HistoryLine struct {
	Timestamp time.Time       `json:"timestamp"`
	Level     model.RiskLevel `json:"level"`
	Degraded  bool            `json:"degraded,omitempty"`
}

// AnalysisResult is the collaborator's structured response. Fields the
// collaborator omits stay zero-valued; the classifier degrades
// field-wise rather than rejecting the whole response.
type AnalysisResult struct {
	RiskAssessment struct {
		CurrentLevel     string   `json:"current_level"`
		PredictedLevel2h string   `json:"predicted_level_2h"`
		ConfidenceScore  float64  `json:"confidence_score"`
		PrimaryRisks     []string `json:"primary_risks"`
		SecondaryRisks   []string `json:"secondary_risks"`
	} `json:"risk_assessment"`
	ZoneAnalysis struct {
		AffectedZones []string `json:"affected_zones"`
		SafeZones     []string `json:"safe_zones"`
	} `json:"zone_analysis"`
	PredictiveAlerts     []model.PredictiveAlert `json:"predictive_alerts"`
	CorrelationsDetected []model.Correlation     `json:"correlations_detected"`
	ProtocolRecommendation struct {
		ProtocolNeeded string `json:"protocol_needed"`
	} `json:"protocol_recommendation"`
	DetailedReasoning string `json:"detailed_reasoning"`
}

// buildContext assembles the collaborator request from one tick's data.
// Zones and sensors are emitted in sorted order so repeated calls over
// the same batch serialize identically.
func buildContext(in Input, quality float64, history []HistoryLine, interventions, falseAlarms int) AnalysisContext {
	zoneNames := make([]string, 0, len(in.Zones))
	for zone := range in.Zones {
		zoneNames = append(zoneNames, zone)
	}
	sort.Strings(zoneNames)

	digests := make([]ZoneDigest, 0, len(zoneNames))
	for _, zone := range zoneNames {
		zs := in.Zones[zone]
		d := ZoneDigest{
			Zone:            zone,
			Status:          zs.Status,
			PersonnelCount:  zs.Personnel.PersonnelCount,
			ShiftSupervisor: zs.Personnel.ShiftSupervisor,
			ActiveAnomalies: zs.ActiveAnomalies,
		}
		for _, r := range in.Readings {
			if r.Zone != zone {
				continue
			}
			d.Sensors = append(d.Sensors, SensorDigest{
				SensorID: r.SensorID,
				Value:    r.Value,
				Unit:     r.Unit,
				Status:   r.Status,
				Location: r.Location,
			})
		}
		sort.Slice(d.Sensors, func(i, j int) bool { return d.Sensors[i].SensorID < d.Sensors[j].SensorID })
		digests = append(digests, d)
	}

	return AnalysisContext{
		Timestamp:               in.Timestamp,
		Zones:                   digests,
		Weather:                 in.Weather,
		Production:              in.Production,
		History:                 history,
		DataQuality:             quality,
		SuccessfulInterventions: interventions,
		FalseAlarmsPrevented:    falseAlarms,
	}
}
