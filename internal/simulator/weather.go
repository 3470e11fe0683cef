package simulator

import (
	"math"
	"time"

	"github.com/minewatch/emergency/internal/model"
)

// sampleWeather advances the diurnal weather model by one tick and
// returns the dust factor applied to dust-type sensors. Caller holds
// the lock.
func (s *Simulator) sampleWeather(now time.Time) float64 {
	base := 25 + 10*math.Sin(float64(now.Unix())/86400*2*math.Pi)
	s.weather.Temperature = base + s.uniform(-5, 5)
	s.weather.Humidity = clamp(65+s.uniform(-20, 20), 20, 95)
	s.weather.WindSpeed = math.Max(0, 3.2+s.uniform(-2, 4))
	s.weather.Pressure = 1013 + s.uniform(-10, 10)

	dustFactor := 1.0
	if s.weather.WindSpeed > 8 {
		dustFactor = 1.5
	}
	if s.weather.Humidity < 30 {
		dustFactor *= 1.3
	}
	return dustFactor
}

// applyProductionImpact recomputes throughput and efficiency from the
// active anomalies and the current weather. Caller holds the lock.
func (s *Simulator) applyProductionImpact() float64 {
	critical, warning := countBySeverity(s.anomalies)
	impact := ProductionImpact(critical, warning, s.weather.WindSpeed, s.weather.Visibility)
	s.production.HourlyProduction = s.opts.ProductionBaseline * impact
	s.production.EfficiencyRate = math.Min(1.0, impact*0.85)
	return impact
}

// ProductionImpact computes the multiplicative impact factor: 0.7 per
// critical anomaly, 0.9 per warning anomaly, 0.8 above 12 m/s wind,
// 0.6 below 2 km visibility.
func ProductionImpact(criticalAnomalies, warningAnomalies int, windSpeed, visibility float64) float64 {
	impact := 1.0
	for i := 0; i < criticalAnomalies; i++ {
		impact *= 0.7
	}
	for i := 0; i < warningAnomalies; i++ {
		impact *= 0.9
	}
	if windSpeed > 12 {
		impact *= 0.8
	}
	if visibility < 2 {
		impact *= 0.6
	}
	return impact
}

func countBySeverity(anomalies map[string]model.Anomaly) (critical, warning int) {
	for _, a := range anomalies {
		switch a.Severity {
		case model.SeverityCritical:
			critical++
		case model.SeverityWarning:
			warning++
		}
	}
	return critical, warning
}

func (s *Simulator) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
