package scheduler

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/minewatch/emergency/internal/model"
	"github.com/minewatch/emergency/internal/simulator"
)

// scenarioTypes maps external command names onto simulator scenarios.
var scenarioTypes = map[string]string{
	"dust_storm":       simulator.ScenarioDustStorm,
	"chemical_cascade": simulator.ScenarioChemicalCascade,
	"equipment_chain":  simulator.ScenarioEquipmentChain,
}

// intensityCycles maps a named intensity onto the anomaly lifetime in
// monitoring cycles.
var intensityCycles = map[string]int{
	"low":      2,
	"moderate": 5,
	"high":     8,
	"extreme":  12,
}

// TriggerScenario injects a named fault scenario into the simulator and
// records it in the alert history. Unknown intensities fall back to
// moderate; unknown scenario types are rejected.
func (s *Scheduler) TriggerScenario(scenarioType, intensity string) (model.Anomaly, error) {
	st, ok := scenarioTypes[scenarioType]
	if !ok {
		return model.Anomaly{}, fmt.Errorf("unknown scenario type %q", scenarioType)
	}
	cycles, ok := intensityCycles[intensity]
	if !ok {
		intensity = "moderate"
		cycles = intensityCycles[intensity]
	}
	severity := model.SeverityCritical
	if intensity == "low" {
		severity = model.SeverityWarning
	}

	anomaly, err := s.deps.Simulator.TriggerAnomaly(st, cycles, severity)
	if err != nil {
		return model.Anomaly{}, err
	}
	log.Printf("scheduler: scenario %s triggered (%s, %d cycles)", st, intensity, cycles)
	s.ingest(model.Alert{
		Type:    model.AlertScenarioTriggered,
		Message: fmt.Sprintf("scenario %s injected at %s intensity", scenarioType, intensity),
		Payload: map[string]any{"anomaly_id": anomaly.ID, "cycles": cycles, "severity": severity},
	})
	return anomaly, nil
}

// scenarioCommand is the payload of the external trigger channel.
type scenarioCommand struct {
	Type      string `json:"type"`
	Intensity string `json:"intensity"`
}

// HandleScenarioCommand parses a scenario command payload and triggers
// the scenario it names. Wired to the command bus consumer.
func (s *Scheduler) HandleScenarioCommand(payload []byte) error {
	var cmd scenarioCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decode scenario command: %w", err)
	}
	_, err := s.TriggerScenario(cmd.Type, cmd.Intensity)
	return err
}

// Stats is the operational summary served by the control surface.
type Stats struct {
	Status                  model.SystemStatus `json:"system_status"`
	UptimeHours             float64            `json:"uptime_hours"`
	TotalAnalyses           int                `json:"total_analyses"`
	ProtocolsExecuted       int                `json:"protocols_executed"`
	SuccessfulInterventions int                `json:"successful_interventions"`
	FalseAlarmsPrevented    int                `json:"false_alarms_prevented"`
	AnalysisFailures        int                `json:"analysis_failures"`
	CurrentRiskLevel        model.RiskLevel    `json:"current_risk_level"`
	DataQuality             float64            `json:"data_quality"`
	AlertsInHistory         int                `json:"alerts_in_history"`
	ActiveAnomalies         int                `json:"active_anomalies"`
}

func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	analyses, protocols := s.analyses, s.protocols
	uptime := time.Since(s.uptimeStart)
	s.mu.Unlock()

	interventions, falseAlarms, failures := s.deps.Classifier.Counters()

	st := Stats{
		Status:                  s.Status(),
		UptimeHours:             uptime.Hours(),
		TotalAnalyses:           analyses,
		ProtocolsExecuted:       protocols,
		SuccessfulInterventions: interventions,
		FalseAlarmsPrevented:    falseAlarms,
		AnalysisFailures:        failures,
		CurrentRiskLevel:        model.RiskNormal,
		AlertsInHistory:         s.deps.Alerts.Len(),
		ActiveAnomalies:         len(s.deps.Simulator.ActiveAnomalies()),
	}
	if snap := s.Snapshot(); snap != nil {
		st.CurrentRiskLevel = snap.Assessment.CurrentLevel
		st.DataQuality = snap.Assessment.DataQuality
	}
	return st
}

// Trend summarizes one sensor's recent in-memory history.
func (s *Scheduler) Trend(sensorID string) (simulator.TrendSummary, error) {
	return s.deps.Simulator.Trend(sensorID)
}

// ExportDocument bundles the monitor's state for offline analysis.
type ExportDocument struct {
	GeneratedAt time.Time                `json:"generated_at"`
	PeriodHours int                      `json:"period_hours"`
	Stats       Stats                    `json:"stats"`
	Snapshot    *model.Snapshot          `json:"snapshot,omitempty"`
	Alerts      []model.Alert            `json:"alerts"`
	Trends      []simulator.TrendSummary `json:"sensor_trends"`
}

// Export assembles the report for the given lookback window. Sensors
// without enough history are skipped rather than failing the export.
func (s *Scheduler) Export(hours int) ExportDocument {
	if hours <= 0 {
		hours = 24
	}
	doc := ExportDocument{
		GeneratedAt: time.Now().UTC(),
		PeriodHours: hours,
		Stats:       s.Stats(),
		Snapshot:    s.Snapshot(),
		Alerts:      s.deps.Alerts.Query(hours),
	}
	for _, cfg := range s.deps.Simulator.Configs() {
		trend, err := s.deps.Simulator.Trend(cfg.ID)
		if err != nil {
			continue
		}
		doc.Trends = append(doc.Trends, trend)
	}
	return doc
}
