package simulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minewatch/emergency/internal/model"
)

func newTestSim(t *testing.T) *Simulator {
	t.Helper()
	s := New(DefaultSensorConfigs(), Options{Seed: 42})
	// random faults off so assertions stay deterministic
	s.opts.OfflineProbability = 0
	s.opts.MaintenanceProbability = 0
	return s
}

func TestSampleAll_CoversCatalog(t *testing.T) {
	s := newTestSim(t)

	readings := s.SampleAll()
	require.Len(t, readings, len(DefaultSensorConfigs()))

	for id, r := range readings {
		cfg, ok := s.byID[id]
		require.True(t, ok, "reading for unknown sensor %s", id)
		assert.Equal(t, cfg.Zone, r.Zone)
		assert.Equal(t, cfg.Unit, r.Unit)
		assert.GreaterOrEqual(t, r.Value, 0.0)
		assert.Equal(t, cfg.StatusFor(r.Value), r.Status, "status must follow thresholds for %s", id)
	}
}

func TestSampleAll_UpdatesWeatherAndProduction(t *testing.T) {
	s := newTestSim(t)
	s.SampleAll()

	w := s.Weather()
	assert.GreaterOrEqual(t, w.Humidity, 20.0)
	assert.LessOrEqual(t, w.Humidity, 95.0)
	assert.GreaterOrEqual(t, w.WindSpeed, 0.0)

	p := s.Production()
	assert.Greater(t, p.HourlyProduction, 0.0)
	assert.LessOrEqual(t, p.EfficiencyRate, 1.0)
}

func TestTriggerAnomaly_UnknownType(t *testing.T) {
	s := newTestSim(t)
	_, err := s.TriggerAnomaly("volcano", 3, model.SeverityCritical)
	require.Error(t, err)
}

func TestDustStorm_ForcesDustSensorsCritical(t *testing.T) {
	s := newTestSim(t)
	_, err := s.TriggerAnomaly(ScenarioDustStorm, 3, model.SeverityCritical)
	require.NoError(t, err)

	readings := s.SampleAll()
	for _, cfg := range s.Configs() {
		if cfg.Type != "dust" {
			continue
		}
		r := readings[cfg.ID]
		assert.Equal(t, model.StatusCritical, r.Status, "%s must be forced critical", cfg.ID)
		assert.GreaterOrEqual(t, r.Value, 200.0)
		assert.LessOrEqual(t, r.Value, 400.0)
	}

	// cascade onto the air quality station
	assert.Equal(t, model.StatusCritical, readings["air_quality_01"].Status)
	assert.InDelta(t, 350.0, readings["air_quality_01"].Value, 0.001)
}

func TestChemicalCascade_ForcesGasSensorsAboveThreshold(t *testing.T) {
	s := newTestSim(t)
	_, err := s.TriggerAnomaly(ScenarioChemicalCascade, 3, model.SeverityCritical)
	require.NoError(t, err)

	readings := s.SampleAll()
	for _, cfg := range s.Configs() {
		switch cfg.Type {
		case "ammonia", "sulfur_dioxide", "hydrogen_fluoride":
			r := readings[cfg.ID]
			assert.Equal(t, model.StatusCritical, r.Status)
			assert.GreaterOrEqual(t, r.Value, cfg.CriticalThreshold*1.5)
		}
	}
	assert.InDelta(t, 3.2, readings["ph_basin_01"].Value, 0.001)
}

func TestAnomaly_ExpiresAfterItsCycles(t *testing.T) {
	s := newTestSim(t)
	_, err := s.TriggerAnomaly(ScenarioEquipmentChain, 2, model.SeverityCritical)
	require.NoError(t, err)

	s.SampleAll()
	require.Len(t, s.ActiveAnomalies(), 1, "one cycle left after the first sample")
	assert.Equal(t, 1, s.ActiveAnomalies()[0].RemainingCycles)

	s.SampleAll()
	assert.Empty(t, s.ActiveAnomalies(), "anomaly expires after its last cycle")
	assert.Empty(t, s.AnomalyZoneSets())
}

func TestAnomalyZoneSets_CoverTargetZones(t *testing.T) {
	s := newTestSim(t)
	_, err := s.TriggerAnomaly(ScenarioDustStorm, 3, model.SeverityCritical)
	require.NoError(t, err)

	sets := s.AnomalyZoneSets()
	require.Len(t, sets, 1)
	assert.Contains(t, sets[0], "extraction")
	assert.Contains(t, sets[0], "processing")
	assert.Contains(t, sets[0], "environment") // air_quality_01 cascade
}

func TestHistory_IsBounded(t *testing.T) {
	s := newTestSim(t)
	s.opts.HistoryCap = 5

	for i := 0; i < 8; i++ {
		s.SampleAll()
	}
	h := s.History("dust_extr_01")
	assert.Len(t, h, 5)
}

func TestProductionImpact_Factors(t *testing.T) {
	assert.InDelta(t, 1.0, ProductionImpact(0, 0, 5, 10), 1e-9)
	assert.InDelta(t, 0.7, ProductionImpact(1, 0, 5, 10), 1e-9)
	assert.InDelta(t, 0.9, ProductionImpact(0, 1, 5, 10), 1e-9)
	assert.InDelta(t, 0.7*0.9, ProductionImpact(1, 1, 5, 10), 1e-9)
	assert.InDelta(t, 0.8, ProductionImpact(0, 0, 13, 10), 1e-9)
	assert.InDelta(t, 0.6, ProductionImpact(0, 0, 5, 1), 1e-9)
	assert.InDelta(t, 0.7*0.8*0.6, ProductionImpact(1, 0, 13, 1), 1e-9)
}

func TestTrend_RequiresHistory(t *testing.T) {
	s := newTestSim(t)

	_, err := s.Trend("nope")
	require.Error(t, err)

	_, err = s.Trend("dust_extr_01")
	require.Error(t, err, "no history yet")

	for i := 0; i < 25; i++ {
		s.SampleAll()
	}
	tr, err := s.Trend("dust_extr_01")
	require.NoError(t, err)
	assert.Equal(t, "dust_extr_01", tr.SensorID)
	assert.Equal(t, 25, tr.ReadingsCount)
	assert.Contains(t, []string{"increasing", "decreasing", "stable"}, tr.TrendDirection)
	assert.GreaterOrEqual(t, tr.Volatility, 0.0)
}
