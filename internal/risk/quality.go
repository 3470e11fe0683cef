package risk

import "github.com/minewatch/emergency/internal/model"

// DataQuality is a weighted average of per-status quality weights minus
// a small penalty per maintenance-due sensor, clamped to [0,1]. It is
// reported alongside the assessment, never folded into the risk level.
func DataQuality(readings map[string]model.SensorReading) float64 {
	if len(readings) == 0 {
		return 0
	}
	weights := map[model.SensorStatus]float64{
		model.StatusNormal:   1.0,
		model.StatusWarning:  0.8,
		model.StatusCritical: 0.6,
		model.StatusOffline:  0.0,
	}

	total := 0.0
	penalty := 0.0
	for _, r := range readings {
		w, ok := weights[r.Status]
		if !ok {
			w = 0.5
		}
		total += w
		if r.MaintenanceDue {
			penalty += 0.1
		}
	}
	n := float64(len(readings))
	return clamp01(total/n - penalty/n)
}

// EnvironmentalImpact derives the weather exposure picture used to
// contextualize an assessment. Wind between 90° and 270° blows toward
// the nearby villages, which drives the population exposure rating.
func EnvironmentalImpact(w model.WeatherCondition) model.EnvironmentalImpact {
	impact := model.EnvironmentalImpact{
		DustDispersionRisk:     "low",
		GasContainmentRisk:     "low",
		VisibilityImpact:       "minimal",
		PopulationExposureRisk: "low",
	}

	if w.WindSpeed > 10 {
		impact.DustDispersionRisk = "high"
		impact.GasContainmentRisk = "moderate"
	} else if w.WindSpeed > 6 {
		impact.DustDispersionRisk = "moderate"
	}

	if w.Visibility < 1 {
		impact.VisibilityImpact = "severe"
	} else if w.Visibility < 3 {
		impact.VisibilityImpact = "moderate"
	}

	if w.WindDirection >= 90 && w.WindDirection <= 270 && w.WindSpeed > 5 {
		impact.PopulationExposureRisk = "moderate"
		if w.WindSpeed > 12 {
			impact.PopulationExposureRisk = "high"
		}
	}
	return impact
}
