// Package zones derives per-zone aggregate status from a batch of
// sensor readings. Everything here is a pure function of its inputs.
package zones

import (
	"github.com/minewatch/emergency/internal/model"
)

// Aggregate groups readings by zone and derives each zone's overall
// state with the precedence critical > warning > degraded (offline
// present) > normal. anomalyZoneSets holds, per active anomaly, the set
// of zones it touches; a zone's anomaly count is the number of sets
// containing it. Calling Aggregate twice with the same inputs yields
// identical output.
func Aggregate(readings map[string]model.SensorReading, roster map[string]model.PersonnelData, anomalyZoneSets [][]string) map[string]model.ZoneStatus {
	out := make(map[string]model.ZoneStatus, len(roster))

	// Zones come from the roster plus any zone a reading mentions, so
	// an unrostered zone still shows up instead of silently vanishing.
	zoneNames := make(map[string]bool, len(roster))
	for zone := range roster {
		zoneNames[zone] = true
	}
	for _, r := range readings {
		zoneNames[r.Zone] = true
	}

	for zone := range zoneNames {
		counts := map[model.SensorStatus]int{
			model.StatusNormal:   0,
			model.StatusWarning:  0,
			model.StatusCritical: 0,
			model.StatusOffline:  0,
		}
		sensorCount := 0
		for _, r := range readings {
			if r.Zone != zone {
				continue
			}
			counts[r.Status]++
			sensorCount++
		}

		status := model.ZoneNormal
		switch {
		case counts[model.StatusCritical] > 0:
			status = model.ZoneCritical
		case counts[model.StatusWarning] > 0:
			status = model.ZoneWarning
		case counts[model.StatusOffline] > 0:
			status = model.ZoneDegraded
		}

		anomalies := 0
		for _, set := range anomalyZoneSets {
			for _, z := range set {
				if z == zone {
					anomalies++
					break
				}
			}
		}

		out[zone] = model.ZoneStatus{
			Zone:            zone,
			Status:          status,
			Personnel:       roster[zone],
			SensorCount:     sensorCount,
			StatusCounts:    counts,
			ActiveAnomalies: anomalies,
		}
	}
	return out
}
