package scheduler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewatch/emergency/internal/alerts"
	"github.com/minewatch/emergency/internal/model"
	"github.com/minewatch/emergency/internal/persistence"
	"github.com/minewatch/emergency/internal/protocol"
	"github.com/minewatch/emergency/internal/risk"
	"github.com/minewatch/emergency/internal/simulator"
)

// stubAnalyzer feeds the classifier a canned verdict.
type stubAnalyzer struct {
	res *risk.AnalysisResult
	err error
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ risk.AnalysisContext) (*risk.AnalysisResult, error) {
	return s.res, s.err
}

func verdict(level string, confidence float64) *risk.AnalysisResult {
	res := &risk.AnalysisResult{}
	res.RiskAssessment.CurrentLevel = level
	res.RiskAssessment.PredictedLevel2h = level
	res.RiskAssessment.ConfidenceScore = confidence
	return res
}

func newTestScheduler(t *testing.T, analyzer risk.Analyzer) *Scheduler {
	t.Helper()
	return New(Deps{
		Simulator:  simulator.New(simulator.DefaultSensorConfigs(), simulator.Options{Seed: 7}),
		Roster:     simulator.DefaultRoster(),
		Classifier: risk.NewClassifier(analyzer, risk.Options{}),
		Alerts:     alerts.NewManager(alerts.Options{}),
		Executor: protocol.NewExecutor(protocol.DefaultCatalog(), protocol.Options{
			TimeCompression: 1e6,
			MaxStepWait:     5 * time.Millisecond,
			Seed:            1,
		}),
	}, Config{
		BaseInterval: 20 * time.Millisecond,
		MinInterval:  time.Millisecond,
		ErrorBackoff: 20 * time.Millisecond,
	})
}

func TestSleepFor_TightensWithRisk(t *testing.T) {
	s := New(Deps{}, Config{BaseInterval: 8 * time.Second, MinInterval: 100 * time.Millisecond})

	assert.Equal(t, 8*time.Second, s.sleepFor(model.RiskNormal, 0))
	assert.Equal(t, 5600*time.Millisecond, s.sleepFor(model.RiskWarning, 0))
	assert.Equal(t, 3200*time.Millisecond, s.sleepFor(model.RiskCritical, 0))
	assert.Equal(t, 800*time.Millisecond, s.sleepFor(model.RiskEmergency, 0))
}

func TestSleepFor_SubtractsProcessingAndFloors(t *testing.T) {
	s := New(Deps{}, Config{BaseInterval: 8 * time.Second, MinInterval: time.Second})

	assert.Equal(t, 6*time.Second, s.sleepFor(model.RiskNormal, 2*time.Second))
	assert.Equal(t, time.Second, s.sleepFor(model.RiskNormal, 10*time.Second), "never below the floor")
	assert.Equal(t, time.Second, s.sleepFor(model.RiskEmergency, 0), "EMERGENCY cadence floors too")
}

func TestTick_RunsFullPipeline(t *testing.T) {
	res := verdict("WARNING", 0.9)
	res.PredictiveAlerts = []model.PredictiveAlert{
		{Scenario: "dust storm", Probability: 0.85, Timeframe: "2h"},
		{Scenario: "unlikely", Probability: 0.2, Timeframe: "6h"},
	}
	res.CorrelationsDetected = []model.Correlation{
		{Type: "wind_dust", Description: "wind driving dust up", RiskAmplification: "high"},
		{Type: "minor", Description: "noise", RiskAmplification: "negligible"},
	}
	s := newTestScheduler(t, &stubAnalyzer{res: res})

	level, err := s.tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RiskWarning, level)

	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.Len(t, snap.Readings, len(simulator.DefaultSensorConfigs()))
	assert.Len(t, snap.Zones, len(simulator.DefaultRoster()))
	assert.Equal(t, model.RiskWarning, snap.Assessment.CurrentLevel)

	got := s.deps.Alerts.Query(1)
	types := make(map[model.AlertType]int)
	for _, a := range got {
		types[a.Type]++
	}
	assert.Equal(t, 1, types[model.AlertPredictive], "only the high-probability prediction is alerted")
	assert.Equal(t, 1, types[model.AlertCorrelation], "only the high-amplification correlation is alerted")

	assert.Equal(t, 1, s.Stats().TotalAnalyses)
}

func TestTick_DegradedAnalysisStillCompletes(t *testing.T) {
	s := newTestScheduler(t, &stubAnalyzer{err: errors.New("collaborator down")})

	level, err := s.tick(context.Background())
	require.NoError(t, err, "collaborator faults degrade, they do not fail the tick")
	assert.Equal(t, model.RiskNormal, level)

	snap := s.Snapshot()
	require.NotNil(t, snap)
	assert.True(t, snap.Assessment.Degraded)
	assert.Zero(t, snap.Assessment.Confidence)
}

func TestTick_EmergencyExecutesRecommendedProtocol(t *testing.T) {
	res := verdict("EMERGENCY", 0.95)
	res.ZoneAnalysis.AffectedZones = []string{"extraction"}
	res.ProtocolRecommendation.ProtocolNeeded = "DUST_STORM_001"
	s := newTestScheduler(t, &stubAnalyzer{res: res})

	level, err := s.tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RiskEmergency, level)

	stats := s.Stats()
	assert.Equal(t, 1, stats.ProtocolsExecuted)

	found := false
	for _, a := range s.deps.Alerts.Query(1) {
		if a.Type == model.AlertProtocolExecuted {
			found = true
		}
	}
	assert.True(t, found, "the execution outcome enters the alert history")
}

func TestTriggerScenario_Mapping(t *testing.T) {
	s := newTestScheduler(t, &stubAnalyzer{res: verdict("NORMAL", 0.9)})

	anomaly, err := s.TriggerScenario("dust_storm", "high")
	require.NoError(t, err)
	assert.Equal(t, simulator.ScenarioDustStorm, anomaly.Type)
	assert.Equal(t, 8, anomaly.RemainingCycles)
	assert.Equal(t, model.SeverityCritical, anomaly.Severity)

	anomaly, err = s.TriggerScenario("equipment_chain", "low")
	require.NoError(t, err)
	assert.Equal(t, 2, anomaly.RemainingCycles)
	assert.Equal(t, model.SeverityWarning, anomaly.Severity, "low intensity injects a warning-grade fault")

	anomaly, err = s.TriggerScenario("chemical_cascade", "made-up")
	require.NoError(t, err)
	assert.Equal(t, 5, anomaly.RemainingCycles, "unknown intensity falls back to moderate")

	assert.Len(t, s.deps.Simulator.ActiveAnomalies(), 3)
	assert.Equal(t, 3, s.deps.Alerts.Len(), "every injection is recorded")
}

func TestTriggerScenario_UnknownType(t *testing.T) {
	s := newTestScheduler(t, &stubAnalyzer{res: verdict("NORMAL", 0.9)})
	_, err := s.TriggerScenario("meteor", "high")
	require.Error(t, err)
	assert.Zero(t, s.deps.Alerts.Len())
}

func TestHandleScenarioCommand(t *testing.T) {
	s := newTestScheduler(t, &stubAnalyzer{res: verdict("NORMAL", 0.9)})

	require.Error(t, s.HandleScenarioCommand([]byte("not json")))
	require.Error(t, s.HandleScenarioCommand([]byte(`{"type":"meteor"}`)))
	require.NoError(t, s.HandleScenarioCommand([]byte(`{"type":"dust_storm","intensity":"low"}`)))
	assert.Len(t, s.deps.Simulator.ActiveAnomalies(), 1)
}

func TestExport_IncludesTrendsOncePrimed(t *testing.T) {
	s := newTestScheduler(t, &stubAnalyzer{res: verdict("NORMAL", 0.9)})

	doc := s.Export(0)
	assert.Equal(t, 24, doc.PeriodHours, "non-positive window defaults to a day")
	assert.Empty(t, doc.Trends, "no history before the first ticks")

	_, err := s.tick(context.Background())
	require.NoError(t, err)
	_, err = s.tick(context.Background())
	require.NoError(t, err)

	doc = s.Export(24)
	assert.Len(t, doc.Trends, len(simulator.DefaultSensorConfigs()))
	require.NotNil(t, doc.Snapshot)
	assert.Equal(t, 2, doc.Stats.TotalAnalyses)
}

func TestStop_InterruptsLongSleep(t *testing.T) {
	s := New(Deps{
		Simulator:  simulator.New(simulator.DefaultSensorConfigs(), simulator.Options{Seed: 7}),
		Roster:     simulator.DefaultRoster(),
		Classifier: risk.NewClassifier(&stubAnalyzer{res: verdict("NORMAL", 0.9)}, risk.Options{}),
		Alerts:     alerts.NewManager(alerts.Options{}),
		Executor: protocol.NewExecutor(protocol.DefaultCatalog(), protocol.Options{
			TimeCompression: 1e6,
			MaxStepWait:     5 * time.Millisecond,
			Seed:            1,
		}),
	}, Config{
		BaseInterval: 2 * time.Second,
		MinInterval:  20 * time.Millisecond,
		ErrorBackoff: 2 * time.Second,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	// The loop is deep in its 2s inter-tick sleep after the first tick.
	require.Eventually(t, func() bool { return s.Snapshot() != nil }, 2*time.Second, 5*time.Millisecond)

	stopped := time.Now()
	s.Stop()
	require.Eventually(t, func() bool { return s.Status() == model.SystemStopped }, 2*time.Second, time.Millisecond)
	assert.LessOrEqual(t, time.Since(stopped), 500*time.Millisecond,
		"stop must not wait out the current interval")

	s.Stop() // idempotent

	s.Start()
	analyses := s.Stats().TotalAnalyses
	require.Eventually(t, func() bool { return s.Stats().TotalAnalyses > analyses }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on cancellation")
	}
}

func TestStop_InterruptsProtocolStepWait(t *testing.T) {
	res := verdict("EMERGENCY", 0.95)
	res.ZoneAnalysis.AffectedZones = []string{"extraction"}
	res.ProtocolRecommendation.ProtocolNeeded = "DUST_STORM_001"
	s := New(Deps{
		Simulator:  simulator.New(simulator.DefaultSensorConfigs(), simulator.Options{Seed: 7}),
		Roster:     simulator.DefaultRoster(),
		Classifier: risk.NewClassifier(&stubAnalyzer{res: res}, risk.Options{}),
		Alerts:     alerts.NewManager(alerts.Options{}),
		Executor: protocol.NewExecutor(protocol.DefaultCatalog(), protocol.Options{
			TimeCompression: 1,
			MaxStepWait:     time.Second,
			Seed:            1,
		}),
	}, Config{})

	s.Stop()
	start := time.Now()
	_, err := s.tick(context.Background())
	require.NoError(t, err)
	assert.LessOrEqual(t, time.Since(start), 500*time.Millisecond,
		"a stopped scheduler must not sit out the step waits")

	history := s.deps.Executor.History()
	require.Len(t, history, 1)
	assert.Equal(t, model.ExecPartiallyFailed, history[0].State)
	assert.Equal(t, 1, s.Stats().ProtocolsExecuted, "the interrupted run is still recorded")
}

func TestPersist_BestEffortAcrossFailures(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if requests.Add(1) == 1 {
			http.Error(w, "bad line", http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store, err := persistence.NewStore(persistence.Config{URL: srv.URL, Token: "t", Org: "o", Bucket: "b"})
	require.NoError(t, err)
	defer store.Close()

	s := New(Deps{Store: store}, Config{})
	readings := map[string]model.SensorReading{
		"dust_extr_01": {SensorID: "dust_extr_01", Value: 12, Status: model.StatusNormal},
		"gas_extr_01":  {SensorID: "gas_extr_01", Value: 3, Status: model.StatusNormal},
		"seism_01":     {SensorID: "seism_01", Value: 0.1, Status: model.StatusNormal},
	}
	s.persist(context.Background(), readings, model.RiskAssessment{Timestamp: time.Now().UTC()})

	assert.Equal(t, int32(4), requests.Load(),
		"a failed reading write drops neither the rest of the batch nor the assessment")
}

func TestRun_StopStartAndCancel(t *testing.T) {
	s := newTestScheduler(t, &stubAnalyzer{res: verdict("NORMAL", 0.9)})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return s.Snapshot() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, model.SystemActive, s.Status())

	s.Stop()
	require.Eventually(t, func() bool { return s.Status() == model.SystemStopped }, 2*time.Second, 5*time.Millisecond)

	s.Start()
	require.Eventually(t, func() bool { return s.Status() == model.SystemActive }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not exit on cancellation")
	}
	assert.Equal(t, model.SystemStopped, s.Status())
}
