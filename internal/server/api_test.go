package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewatch/emergency/internal/alerts"
	"github.com/minewatch/emergency/internal/protocol"
	"github.com/minewatch/emergency/internal/risk"
	"github.com/minewatch/emergency/internal/scheduler"
	"github.com/minewatch/emergency/internal/simulator"
)

type normalAnalyzer struct{}

func (normalAnalyzer) Analyze(_ context.Context, _ risk.AnalysisContext) (*risk.AnalysisResult, error) {
	res := &risk.AnalysisResult{}
	res.RiskAssessment.CurrentLevel = "NORMAL"
	res.RiskAssessment.PredictedLevel2h = "NORMAL"
	res.RiskAssessment.ConfidenceScore = 0.9
	return res, nil
}

func newTestMux(t *testing.T) (*http.ServeMux, *scheduler.Scheduler) {
	t.Helper()
	sched := scheduler.New(scheduler.Deps{
		Simulator:  simulator.New(simulator.DefaultSensorConfigs(), simulator.Options{Seed: 3}),
		Roster:     simulator.DefaultRoster(),
		Classifier: risk.NewClassifier(normalAnalyzer{}, risk.Options{}),
		Alerts:     alerts.NewManager(alerts.Options{}),
		Executor: protocol.NewExecutor(protocol.DefaultCatalog(), protocol.Options{
			TimeCompression: 1e6,
			MaxStepWait:     5 * time.Millisecond,
		}),
	}, scheduler.Config{})
	return NewHTTPMux(sched, nil, nil), sched
}

func TestHealthz(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ACTIVE", body["status"])
}

func TestSnapshot_BeforeFirstTick(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/snapshot", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestScenario_TriggersAndRejects(t *testing.T) {
	mux, sched := newTestMux(t)

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"type":"dust_storm","intensity":"high"}`)
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scenario", body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, sched.Export(1).Alerts, 1)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/scenario", strings.NewReader(`{"type":"meteor"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/scenario", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStopStart(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/stop", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/start", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStats(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats scheduler.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Zero(t, stats.TotalAnalyses)
}

func TestTrends_UnknownSensor(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trends?sensor=nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/trends", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory_RequiresSensorParam(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
