package simulator

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minewatch/emergency/internal/model"
)

// DefaultSensorConfigs returns the built-in sensor catalog for the
// phosphate site. Callers get a fresh copy; the simulator treats its
// catalog as read-only after construction.
func DefaultSensorConfigs() []model.SensorConfig {
	return []model.SensorConfig{
		// extraction
		{ID: "dust_extr_01", Type: "dust", Zone: "extraction", Location: "north_pit", Unit: "mg/m³", NormalMin: 15, NormalMax: 45, CriticalThreshold: 100},
		{ID: "dust_extr_02", Type: "dust", Zone: "extraction", Location: "south_pit", Unit: "mg/m³", NormalMin: 20, NormalMax: 50, CriticalThreshold: 100},

		// processing
		{ID: "dust_proc_01", Type: "dust", Zone: "processing", Location: "primary_mill", Unit: "mg/m³", NormalMin: 30, NormalMax: 70, CriticalThreshold: 120},
		{ID: "dust_proc_02", Type: "dust", Zone: "processing", Location: "secondary_mill", Unit: "mg/m³", NormalMin: 25, NormalMax: 65, CriticalThreshold: 120},
		{ID: "vib_mill_01", Type: "vibration", Zone: "processing", Location: "ball_mill", Unit: "mm/s", NormalMin: 1.5, NormalMax: 4.5, CriticalThreshold: 7.0},
		{ID: "vib_crusher_01", Type: "vibration", Zone: "processing", Location: "crusher", Unit: "mm/s", NormalMin: 1.0, NormalMax: 3.5, CriticalThreshold: 6.0},
		{ID: "noise_mill_01", Type: "noise", Zone: "processing", Location: "mill_hall", Unit: "dB", NormalMin: 70, NormalMax: 95, CriticalThreshold: 110},

		// chemical
		{ID: "gas_nh3_01", Type: "ammonia", Zone: "chemical", Location: "reactor_1", Unit: "ppm", NormalMin: 2, NormalMax: 15, CriticalThreshold: 50},
		{ID: "gas_so2_01", Type: "sulfur_dioxide", Zone: "chemical", Location: "acidulation", Unit: "ppm", NormalMin: 1, NormalMax: 8, CriticalThreshold: 20},
		{ID: "gas_hf_01", Type: "hydrogen_fluoride", Zone: "chemical", Location: "acid_attack", Unit: "ppm", NormalMin: 0.5, NormalMax: 3, CriticalThreshold: 10},
		{ID: "ph_basin_01", Type: "ph", Zone: "chemical", Location: "neutralization_basin", Unit: "pH", NormalMin: 6.5, NormalMax: 8.5, CriticalThreshold: 12.0},

		// drying
		{ID: "temp_kiln_01", Type: "temperature", Zone: "drying", Location: "drying_kiln", Unit: "°C", NormalMin: 80, NormalMax: 150, CriticalThreshold: 200},
		{ID: "pressure_pipe_01", Type: "pressure", Zone: "drying", Location: "main_pipeline", Unit: "bar", NormalMin: 2.5, NormalMax: 5.5, CriticalThreshold: 8.0},
		{ID: "level_basin_01", Type: "level", Zone: "drying", Location: "settling_basin", Unit: "m", NormalMin: 3.0, NormalMax: 7.5, CriticalThreshold: 9.0},

		// environment
		{ID: "air_quality_01", Type: "air_quality", Zone: "environment", Location: "weather_station", Unit: "AQI", NormalMin: 50, NormalMax: 150, CriticalThreshold: 300},
		{ID: "turbidity_01", Type: "turbidity", Zone: "environment", Location: "effluent_outlet", Unit: "NTU", NormalMin: 5, NormalMax: 25, CriticalThreshold: 100},

		// storage
		{ID: "radiation_01", Type: "radiation", Zone: "storage", Location: "stockpile", Unit: "µSv/h", NormalMin: 0.1, NormalMax: 0.3, CriticalThreshold: 1.0},
		{ID: "water_flow_01", Type: "flow", Zone: "storage", Location: "water_circuit", Unit: "m³/h", NormalMin: 150, NormalMax: 300, CriticalThreshold: 400},
	}
}

// DefaultRoster returns the built-in personnel assignment per zone.
func DefaultRoster() map[string]model.PersonnelData {
	drill := func(daysAgo int) time.Time { return time.Now().AddDate(0, 0, -daysAgo) }
	return map[string]model.PersonnelData{
		"extraction":  {Zone: "extraction", PersonnelCount: 12, ShiftSupervisor: "supervisor-1", EmergencyTrained: 8, LastSafetyDrill: drill(15)},
		"processing":  {Zone: "processing", PersonnelCount: 18, ShiftSupervisor: "supervisor-2", EmergencyTrained: 14, LastSafetyDrill: drill(8)},
		"chemical":    {Zone: "chemical", PersonnelCount: 8, ShiftSupervisor: "supervisor-3", EmergencyTrained: 8, LastSafetyDrill: drill(3)},
		"drying":      {Zone: "drying", PersonnelCount: 6, ShiftSupervisor: "supervisor-4", EmergencyTrained: 4, LastSafetyDrill: drill(12)},
		"environment": {Zone: "environment", PersonnelCount: 4, ShiftSupervisor: "supervisor-5", EmergencyTrained: 3, LastSafetyDrill: drill(20)},
		"storage":     {Zone: "storage", PersonnelCount: 3, ShiftSupervisor: "supervisor-6", EmergencyTrained: 3, LastSafetyDrill: drill(5)},
	}
}

type catalogFile struct {
	Sensors []model.SensorConfig  `yaml:"sensors"`
	Roster  []model.PersonnelData `yaml:"roster"`
}

// LoadCatalog reads sensor configs and the personnel roster from a YAML
// file. Missing sections fall back to the built-in defaults.
func LoadCatalog(path string) ([]model.SensorConfig, map[string]model.PersonnelData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, nil, fmt.Errorf("parse catalog: %w", err)
	}

	sensors := f.Sensors
	if len(sensors) == 0 {
		sensors = DefaultSensorConfigs()
	}
	for _, s := range sensors {
		if s.ID == "" {
			return nil, nil, fmt.Errorf("catalog: sensor without id")
		}
		if s.NormalMax <= s.NormalMin {
			return nil, nil, fmt.Errorf("catalog: sensor %s has empty normal range", s.ID)
		}
	}

	roster := DefaultRoster()
	if len(f.Roster) > 0 {
		roster = make(map[string]model.PersonnelData, len(f.Roster))
		for _, p := range f.Roster {
			if p.Zone == "" {
				return nil, nil, fmt.Errorf("catalog: roster entry without zone")
			}
			roster[p.Zone] = p
		}
	}
	return sensors, roster, nil
}
