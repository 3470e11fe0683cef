package simulator

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minewatch/emergency/internal/model"
)

// Scenario types understood by the fault injector.
const (
	ScenarioDustStorm       = "dust_storm_impact"
	ScenarioChemicalCascade = "chemical_leak_cascade"
	ScenarioEquipmentChain  = "equipment_failure_chain"
)

// ====== Tunables ======
const (
	// defaultOfflineProb: chance per sample that a sensor reports OFFLINE.
	defaultOfflineProb = 0.001

	// defaultMaintenanceProb: chance per sample that a sensor is flagged
	// maintenance-due.
	defaultMaintenanceProb = 0.05

	// defaultHistoryCap: bounded per-sensor history length.
	defaultHistoryCap = 100

	// defaultBaseline: nominal production in tonnes/h.
	defaultBaseline = 150
)

type Options struct {
	OfflineProbability     float64
	MaintenanceProbability float64
	HistoryCap             int
	ProductionBaseline     float64
	Seed                   int64 // 0 = seeded from the clock
}

func (o Options) withDefaults() Options {
	if o.OfflineProbability <= 0 {
		o.OfflineProbability = defaultOfflineProb
	}
	if o.MaintenanceProbability <= 0 {
		o.MaintenanceProbability = defaultMaintenanceProb
	}
	if o.HistoryCap <= 0 {
		o.HistoryCap = defaultHistoryCap
	}
	if o.ProductionBaseline <= 0 {
		o.ProductionBaseline = defaultBaseline
	}
	return o
}

// Simulator produces one consistent batch of sensor readings and updated
// weather/production metrics per tick. It exclusively owns the sensor
// catalog, the live weather/production state, the active-anomaly set and
// the per-sensor histories; everything it hands out is a copy.
type Simulator struct {
	mu         sync.Mutex
	configs    []model.SensorConfig
	byID       map[string]model.SensorConfig
	weather    model.WeatherCondition
	production model.ProductionMetrics
	anomalies  map[string]model.Anomaly
	history    map[string][]model.SensorReading
	opts       Options
	rng        *rand.Rand
	now        func() time.Time
}

func New(configs []model.SensorConfig, opts Options) *Simulator {
	opts = opts.withDefaults()
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s := &Simulator{
		configs:    configs,
		byID:       make(map[string]model.SensorConfig, len(configs)),
		weather:    model.WeatherCondition{Temperature: 25, Humidity: 65, WindSpeed: 3.2, WindDirection: 180, Pressure: 1013, Visibility: 10},
		production: model.ProductionMetrics{HourlyProduction: 150, QualityGrade: 28.5, EnergyConsumption: 2400, WaterUsage: 45, WasteGenerated: 12, EfficiencyRate: 0.85},
		anomalies:  make(map[string]model.Anomaly),
		history:    make(map[string][]model.SensorReading, len(configs)),
		opts:       opts,
		rng:        rand.New(rand.NewSource(seed)),
		now:        time.Now,
	}
	for _, c := range configs {
		s.byID[c.ID] = c
	}
	return s
}

// SampleAll generates one batch: updated weather, updated production,
// one reading per configured sensor. Active anomalies force their target
// sensors into alarm; anomaly lifetimes are decremented by one cycle.
func (s *Simulator) SampleAll() map[string]model.SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	dustFactor := s.sampleWeather(now)
	s.applyProductionImpact()

	forced := s.forcedReadings(now)
	readings := make(map[string]model.SensorReading, len(s.configs))
	for _, cfg := range s.configs {
		if r, ok := forced[cfg.ID]; ok {
			readings[cfg.ID] = r
		} else {
			readings[cfg.ID] = s.nominalReading(cfg, now, dustFactor)
		}
	}

	for id, r := range readings {
		s.appendHistory(id, r)
	}
	s.ageAnomalies()

	return readings
}

// TriggerAnomaly inserts a new time-boxed fault. It has no effect on
// readings until the next SampleAll call.
func (s *Simulator) TriggerAnomaly(anomalyType string, cycles int, severity model.AnomalySeverity) (model.Anomaly, error) {
	if _, ok := scenarios[anomalyType]; !ok {
		return model.Anomaly{}, fmt.Errorf("unknown anomaly type %q", anomalyType)
	}
	if cycles <= 0 {
		cycles = 5
	}
	if severity != model.SeverityWarning {
		severity = model.SeverityCritical
	}
	a := model.Anomaly{
		ID:              uuid.New().String(),
		Type:            anomalyType,
		Severity:        severity,
		StartedAt:       s.now().UTC(),
		RemainingCycles: cycles,
	}
	s.mu.Lock()
	s.anomalies[a.ID] = a
	s.mu.Unlock()
	return a, nil
}

// Weather returns the current weather snapshot.
func (s *Simulator) Weather() model.WeatherCondition {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weather
}

// Production returns the current production snapshot.
func (s *Simulator) Production() model.ProductionMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.production
}

// ActiveAnomalies returns a copy of the unexpired anomalies.
func (s *Simulator) ActiveAnomalies() []model.Anomaly {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Anomaly, 0, len(s.anomalies))
	for _, a := range s.anomalies {
		out = append(out, a)
	}
	return out
}

// AnomalyZoneSets returns, per active anomaly, the set of zones its
// target sensors live in (cascade sensors included).
func (s *Simulator) AnomalyZoneSets() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, 0, len(s.anomalies))
	for _, a := range s.anomalies {
		out = append(out, s.zonesFor(a.Type))
	}
	return out
}

// Configs returns a copy of the sensor catalog.
func (s *Simulator) Configs() []model.SensorConfig {
	out := make([]model.SensorConfig, len(s.configs))
	copy(out, s.configs)
	return out
}

// History returns a copy of the bounded history for one sensor.
func (s *Simulator) History(sensorID string) []model.SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.history[sensorID]
	out := make([]model.SensorReading, len(h))
	copy(out, h)
	return out
}

// ===== internals (caller holds the lock) =====

func (s *Simulator) nominalReading(cfg model.SensorConfig, now time.Time, dustFactor float64) model.SensorReading {
	timeFactor := 1 + 0.2*math.Sin(float64(now.Unix())/3600*2*math.Pi)

	typeFactor := 1.0
	switch cfg.Type {
	case "dust":
		typeFactor = dustFactor
	case "vibration", "noise":
		typeFactor = s.production.EfficiencyRate
	}

	base := cfg.NormalMin + s.rng.Float64()*(cfg.NormalMax-cfg.NormalMin)
	value := math.Max(0, base*timeFactor*typeFactor)
	value = math.Round(value*100) / 100

	status := cfg.StatusFor(value)
	if s.rng.Float64() < s.opts.OfflineProbability {
		status = model.StatusOffline
		value = 0
	}

	return model.SensorReading{
		SensorID:        cfg.ID,
		SensorType:      cfg.Type,
		Value:           value,
		Unit:            cfg.Unit,
		Location:        cfg.Location,
		Zone:            cfg.Zone,
		Timestamp:       now,
		Status:          status,
		CalibrationDate: now.AddDate(0, 0, -(1 + s.rng.Intn(90))),
		MaintenanceDue:  s.rng.Float64() < s.opts.MaintenanceProbability,
	}
}

func (s *Simulator) forcedReadings(now time.Time) map[string]model.SensorReading {
	forced := make(map[string]model.SensorReading)
	for _, a := range s.anomalies {
		spec := scenarios[a.Type]
		for _, cfg := range s.configs {
			if !spec.targets(cfg.Type) {
				continue
			}
			value := spec.forcedValue(cfg, s.rng)
			forced[cfg.ID] = s.criticalReading(cfg, now, value)
		}
		for _, c := range spec.cascades {
			if cfg, ok := s.byID[c.sensorID]; ok {
				forced[cfg.ID] = s.criticalReading(cfg, now, c.value)
			}
		}
	}
	return forced
}

func (s *Simulator) criticalReading(cfg model.SensorConfig, now time.Time, value float64) model.SensorReading {
	return model.SensorReading{
		SensorID:        cfg.ID,
		SensorType:      cfg.Type,
		Value:           math.Round(value*100) / 100,
		Unit:            cfg.Unit,
		Location:        cfg.Location,
		Zone:            cfg.Zone,
		Timestamp:       now,
		Status:          model.StatusCritical,
		CalibrationDate: now.AddDate(0, 0, -30),
		MaintenanceDue:  false,
	}
}

func (s *Simulator) appendHistory(id string, r model.SensorReading) {
	h := append(s.history[id], r)
	if over := len(h) - s.opts.HistoryCap; over > 0 {
		h = h[over:]
	}
	s.history[id] = h
}

func (s *Simulator) ageAnomalies() {
	for id, a := range s.anomalies {
		a.RemainingCycles--
		if a.RemainingCycles <= 0 {
			delete(s.anomalies, id)
			continue
		}
		s.anomalies[id] = a
	}
}

func (s *Simulator) zonesFor(anomalyType string) []string {
	spec := scenarios[anomalyType]
	seen := make(map[string]bool)
	var zones []string
	add := func(zone string) {
		if !seen[zone] {
			seen[zone] = true
			zones = append(zones, zone)
		}
	}
	for _, cfg := range s.configs {
		if spec.targets(cfg.Type) {
			add(cfg.Zone)
		}
	}
	for _, c := range spec.cascades {
		if cfg, ok := s.byID[c.sensorID]; ok {
			add(cfg.Zone)
		}
	}
	return zones
}

// ===== scenario table =====

type cascade struct {
	sensorID string
	value    float64
}

// scenarioSpec describes which sensor types an anomaly forces into alarm
// and how the forced value is drawn. Absolute ranges win over threshold
// multipliers when set.
type scenarioSpec struct {
	targetTypes     []string
	absLow, absHigh float64 // absolute forced value range
	mulLow, mulHigh float64 // multiplier on the critical threshold
	cascades        []cascade
}

func (sp scenarioSpec) targets(sensorType string) bool {
	for _, t := range sp.targetTypes {
		if t == sensorType {
			return true
		}
	}
	return false
}

func (sp scenarioSpec) forcedValue(cfg model.SensorConfig, rng *rand.Rand) float64 {
	if sp.absHigh > 0 {
		return sp.absLow + rng.Float64()*(sp.absHigh-sp.absLow)
	}
	mul := sp.mulLow + rng.Float64()*(sp.mulHigh-sp.mulLow)
	threshold := cfg.CriticalThreshold
	if threshold <= 0 {
		threshold = cfg.NormalMax * 1.5
	}
	return threshold * mul
}

var scenarios = map[string]scenarioSpec{
	ScenarioDustStorm: {
		targetTypes: []string{"dust"},
		absLow:      200, absHigh: 400,
		cascades: []cascade{{sensorID: "air_quality_01", value: 350}},
	},
	ScenarioChemicalCascade: {
		targetTypes: []string{"ammonia", "sulfur_dioxide", "hydrogen_fluoride"},
		mulLow:      1.5, mulHigh: 3.0,
		cascades: []cascade{{sensorID: "ph_basin_01", value: 3.2}},
	},
	ScenarioEquipmentChain: {
		targetTypes: []string{"vibration", "temperature"},
		mulLow:      1.2, mulHigh: 2.0,
		cascades: []cascade{{sensorID: "pressure_pipe_01", value: 0.8}},
	},
}
