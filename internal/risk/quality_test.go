package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/minewatch/emergency/internal/model"
)

func TestDataQuality_Weights(t *testing.T) {
	readings := map[string]model.SensorReading{
		"a": {Status: model.StatusNormal},
		"b": {Status: model.StatusWarning},
		"c": {Status: model.StatusCritical},
		"d": {Status: model.StatusOffline},
	}
	// (1.0 + 0.8 + 0.6 + 0.0) / 4
	assert.InDelta(t, 0.6, DataQuality(readings), 1e-9)
}

func TestDataQuality_MaintenancePenalty(t *testing.T) {
	readings := map[string]model.SensorReading{
		"a": {Status: model.StatusNormal, MaintenanceDue: true},
		"b": {Status: model.StatusNormal},
	}
	// 1.0 average minus 0.1/2 penalty
	assert.InDelta(t, 0.95, DataQuality(readings), 1e-9)
}

func TestDataQuality_Empty(t *testing.T) {
	assert.Zero(t, DataQuality(nil))
}

func TestDataQuality_AllOffline(t *testing.T) {
	readings := map[string]model.SensorReading{
		"a": {Status: model.StatusOffline, MaintenanceDue: true},
	}
	assert.Zero(t, DataQuality(readings), "clamped at zero")
}

func TestEnvironmentalImpact_Calm(t *testing.T) {
	impact := EnvironmentalImpact(model.WeatherCondition{WindSpeed: 2, Visibility: 10})
	assert.Equal(t, "low", impact.DustDispersionRisk)
	assert.Equal(t, "low", impact.GasContainmentRisk)
	assert.Equal(t, "minimal", impact.VisibilityImpact)
	assert.Equal(t, "low", impact.PopulationExposureRisk)
}

func TestEnvironmentalImpact_HighWindTowardVillages(t *testing.T) {
	impact := EnvironmentalImpact(model.WeatherCondition{WindSpeed: 14, WindDirection: 180, Visibility: 2})
	assert.Equal(t, "high", impact.DustDispersionRisk)
	assert.Equal(t, "moderate", impact.GasContainmentRisk)
	assert.Equal(t, "moderate", impact.VisibilityImpact)
	assert.Equal(t, "high", impact.PopulationExposureRisk)
}

func TestEnvironmentalImpact_ModerateWind(t *testing.T) {
	impact := EnvironmentalImpact(model.WeatherCondition{WindSpeed: 7, WindDirection: 0, Visibility: 0.5})
	assert.Equal(t, "moderate", impact.DustDispersionRisk)
	assert.Equal(t, "severe", impact.VisibilityImpact)
	assert.Equal(t, "low", impact.PopulationExposureRisk, "wind away from the villages")
}
