// Package scheduler runs the monitoring control loop: one long-lived
// task drives ticks sequentially (sample → aggregate → classify →
// alert → maybe execute a protocol) at a cadence that tightens as risk
// rises. Each tick publishes a whole new immutable snapshot; consumers
// never see in-progress state.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/minewatch/emergency/internal/alerts"
	"github.com/minewatch/emergency/internal/metrics"
	"github.com/minewatch/emergency/internal/model"
	"github.com/minewatch/emergency/internal/persistence"
	"github.com/minewatch/emergency/internal/protocol"
	"github.com/minewatch/emergency/internal/risk"
	"github.com/minewatch/emergency/internal/simulator"
	"github.com/minewatch/emergency/internal/zones"
)

// riskMultiplier tightens the tick cadence as risk rises.
var riskMultiplier = map[model.RiskLevel]float64{
	model.RiskNormal:    1.0,
	model.RiskWarning:   0.7,
	model.RiskCritical:  0.4,
	model.RiskEmergency: 0.1,
}

// predictiveAlertThreshold: predictive alerts below this probability
// stay in the assessment but do not enter the alert history.
const predictiveAlertThreshold = 0.7

// Publisher is the optional outbound snapshot bus.
type Publisher interface {
	PublishMessage(message interface{}) error
}

type Config struct {
	BaseInterval time.Duration // default 8s
	MinInterval  time.Duration // default 1s
	ErrorBackoff time.Duration // default 5s
}

func (c Config) withDefaults() Config {
	if c.BaseInterval <= 0 {
		c.BaseInterval = 8 * time.Second
	}
	if c.MinInterval <= 0 {
		c.MinInterval = time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 5 * time.Second
	}
	return c
}

// Deps are the collaborators the loop drives. Store, Metrics and
// Snapshots may be nil; the corresponding concern is then disabled.
type Deps struct {
	Simulator  *simulator.Simulator
	Roster     map[string]model.PersonnelData
	Classifier *risk.Classifier
	Alerts     *alerts.Manager
	Executor   *protocol.Executor
	Store      *persistence.Store
	Metrics    *metrics.Metrics
	Snapshots  Publisher
}

type Scheduler struct {
	deps Deps
	cfg  Config

	active   atomic.Bool // run flag toggled by Start/Stop
	status   atomic.Value
	snapshot atomic.Pointer[model.Snapshot]

	stopMu sync.Mutex
	stopCh chan struct{} // closed by Stop, re-armed by Start

	mu          sync.Mutex
	analyses    int
	protocols   int
	uptimeStart time.Time
}

func New(deps Deps, cfg Config) *Scheduler {
	s := &Scheduler{
		deps:        deps,
		cfg:         cfg.withDefaults(),
		uptimeStart: time.Now(),
		stopCh:      make(chan struct{}),
	}
	s.active.Store(true)
	s.status.Store(model.SystemActive)
	return s
}

// Run drives the loop until ctx is cancelled. Any failure inside a tick
// is absorbed at the tick boundary: status goes ERROR, the loop backs
// off, then resumes. Nothing here terminates the process.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("scheduler: monitoring loop started (base interval %s)", s.cfg.BaseInterval)
	for {
		if ctx.Err() != nil {
			s.status.Store(model.SystemStopped)
			log.Println("scheduler: monitoring loop stopped")
			return
		}
		if !s.active.Load() {
			s.status.Store(model.SystemStopped)
			if !s.sleep(ctx, s.cfg.MinInterval, nil) {
				return
			}
			continue
		}
		s.status.Store(model.SystemActive)

		tickStart := time.Now()
		level, err := s.tick(ctx)
		elapsed := time.Since(tickStart)
		if s.deps.Metrics != nil {
			s.deps.Metrics.TickDuration.Observe(elapsed.Seconds())
		}

		if err != nil {
			if ctx.Err() != nil {
				s.status.Store(model.SystemStopped)
				log.Println("scheduler: monitoring loop stopped")
				return
			}
			log.Printf("scheduler: tick failed: %v", err)
			s.status.Store(model.SystemError)
			if s.deps.Metrics != nil {
				s.deps.Metrics.TickErrors.Inc()
			}
			if !s.sleep(ctx, s.cfg.ErrorBackoff, s.stopping()) {
				return
			}
			s.status.Store(model.SystemActive)
			continue
		}

		if !s.sleep(ctx, s.sleepFor(level, elapsed), s.stopping()) {
			return
		}
	}
}

// tick runs one full pipeline pass and returns the assessed risk level
// driving the next interval. Panics are converted to errors so a bug in
// one tick cannot take the loop down.
func (s *Scheduler) tick(ctx context.Context) (level model.RiskLevel, err error) {
	level = model.RiskNormal
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()

	readings := s.deps.Simulator.SampleAll()
	zoneStatus := zones.Aggregate(readings, s.deps.Roster, s.deps.Simulator.AnomalyZoneSets())
	weather := s.deps.Simulator.Weather()
	production := s.deps.Simulator.Production()

	now := time.Now().UTC()
	assessment := s.deps.Classifier.Assess(ctx, risk.Input{
		Timestamp:  now,
		Readings:   readings,
		Zones:      zoneStatus,
		Weather:    weather,
		Production: production,
	})
	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveAssessment(assessment)
	}

	s.processAlerts(readings, assessment)
	s.persist(ctx, readings, assessment)

	if assessment.CurrentLevel == model.RiskEmergency && assessment.RecommendedProtocol != "" {
		s.executeProtocol(ctx, assessment, zoneStatus, weather, readings)
	}

	s.publishSnapshot(model.Snapshot{
		Timestamp:  now,
		Status:     s.Status(),
		Readings:   readings,
		Zones:      zoneStatus,
		Weather:    weather,
		Production: production,
		Assessment: assessment,
		Anomalies:  s.deps.Simulator.ActiveAnomalies(),
	})

	s.mu.Lock()
	s.analyses++
	s.mu.Unlock()
	if s.deps.Metrics != nil {
		s.deps.Metrics.Ticks.Inc()
	}
	return assessment.CurrentLevel, ctx.Err()
}

// processAlerts turns one tick's findings into history entries:
// critical sensors, high-probability predictions, and high-amplification
// correlations.
func (s *Scheduler) processAlerts(readings map[string]model.SensorReading, assessment model.RiskAssessment) {
	ids := make([]string, 0, len(readings))
	for id := range readings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r := readings[id]
		if r.Status != model.StatusCritical {
			continue
		}
		s.ingest(model.Alert{
			Type:    model.AlertCriticalSensor,
			Message: fmt.Sprintf("%s critical: %.2f %s at %s", r.SensorID, r.Value, r.Unit, r.Location),
			Payload: map[string]any{"sensor_id": r.SensorID, "value": r.Value, "zone": r.Zone},
		})
	}

	for _, p := range assessment.PredictiveAlerts {
		if p.Probability <= predictiveAlertThreshold {
			continue
		}
		s.ingest(model.Alert{
			Type:    model.AlertPredictive,
			Message: fmt.Sprintf("%s expected within %s", p.Scenario, p.Timeframe),
			Payload: map[string]any{"probability": p.Probability, "measures": p.PreventiveMeasures},
		})
	}

	for _, c := range assessment.Correlations {
		if !highAmplification(c.RiskAmplification) {
			continue
		}
		s.ingest(model.Alert{
			Type:    model.AlertCorrelation,
			Message: c.Description,
			Payload: map[string]any{"correlation_type": c.Type, "amplification": c.RiskAmplification},
		})
	}
}

func (s *Scheduler) executeProtocol(ctx context.Context, assessment model.RiskAssessment, zoneStatus map[string]model.ZoneStatus, weather model.WeatherCondition, readings map[string]model.SensorReading) {
	criticalSensors := 0
	for _, r := range readings {
		if r.Status == model.StatusCritical {
			criticalSensors++
		}
	}
	log.Printf("scheduler: EMERGENCY - activating protocol %s", assessment.RecommendedProtocol)

	// Stop must interrupt step waits too, not just the inter-tick sleep.
	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.stopping():
			cancel()
		case <-execCtx.Done():
		}
	}()

	exec, err := s.deps.Executor.Execute(execCtx, assessment.RecommendedProtocol, protocol.ExecContext{
		Weather:         weather,
		Zones:           zoneStatus,
		AffectedZones:   assessment.AffectedZones,
		CriticalSensors: criticalSensors,
	})
	if err != nil {
		log.Printf("scheduler: protocol %s: %v", assessment.RecommendedProtocol, err)
		if exec.ID == "" {
			return
		}
	}

	s.deps.Classifier.RecordIntervention(exec.SuccessRate > 0.8)
	s.mu.Lock()
	s.protocols++
	s.mu.Unlock()
	if s.deps.Metrics != nil {
		s.deps.Metrics.ProtocolExecutions.Inc()
	}

	s.ingest(model.Alert{
		Type:    model.AlertProtocolExecuted,
		Message: fmt.Sprintf("protocol %s finished %s", exec.ProtocolID, exec.State),
		Payload: map[string]any{
			"execution_id": exec.ID,
			"success_rate": exec.SuccessRate,
			"steps":        len(exec.Log),
			"cost_eur":     exec.Cost.TotalEUR,
		},
	})
}

func (s *Scheduler) persist(ctx context.Context, readings map[string]model.SensorReading, assessment model.RiskAssessment) {
	if s.deps.Store == nil {
		return
	}
	failed := 0
	var firstErr error
	for _, r := range readings {
		if err := s.deps.Store.WriteReading(ctx, r); err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failed > 0 {
		// The sink is best-effort; one bad write must not drop the rest
		// of the tick's batch.
		log.Printf("scheduler: %d of %d reading writes failed: %v", failed, len(readings), firstErr)
	}
	if err := s.deps.Store.WriteAssessment(ctx, assessment); err != nil {
		log.Printf("scheduler: %v", err)
	}
}

func (s *Scheduler) publishSnapshot(snap model.Snapshot) {
	s.snapshot.Store(&snap)
	if s.deps.Snapshots == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err == nil {
		err = s.deps.Snapshots.PublishMessage(string(payload))
	}
	if err != nil {
		log.Printf("scheduler: snapshot publish failed: %v", err)
	}
}

func (s *Scheduler) ingest(a model.Alert) {
	if s.deps.Alerts.Ingest(a) && s.deps.Metrics != nil {
		s.deps.Metrics.AlertsIngested.Inc()
	}
}

// intervalFor is the target cadence for a risk level, before the
// processing-time subtraction and the minimum floor.
func (s *Scheduler) intervalFor(level model.RiskLevel) time.Duration {
	mult, ok := riskMultiplier[level]
	if !ok {
		mult = 1.0
	}
	return time.Duration(float64(s.cfg.BaseInterval) * mult)
}

// sleepFor subtracts the tick's own duration so elapsed-to-elapsed
// cadence stays close to target, floored at the minimum interval.
func (s *Scheduler) sleepFor(level model.RiskLevel, elapsed time.Duration) time.Duration {
	d := s.intervalFor(level) - elapsed
	if d < s.cfg.MinInterval {
		d = s.cfg.MinInterval
	}
	return d
}

// sleep waits for d, or until cancellation, or until the stop channel
// fires; returns false when the loop should exit. A firing stop channel
// returns true so the loop re-checks the run flag without waiting out
// the interval. The paused branch passes a nil stop channel.
func (s *Scheduler) sleep(ctx context.Context, d time.Duration, stop <-chan struct{}) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		s.status.Store(model.SystemStopped)
		log.Println("scheduler: monitoring loop stopped")
		return false
	case <-stop:
		return true
	case <-t.C:
		return true
	}
}

// stopping returns the channel closed by the next Stop.
func (s *Scheduler) stopping() <-chan struct{} {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	return s.stopCh
}

// Status reports the loop's externally visible state.
func (s *Scheduler) Status() model.SystemStatus {
	return s.status.Load().(model.SystemStatus)
}

// Snapshot returns the latest published snapshot, or nil before the
// first tick. The value is immutable by contract.
func (s *Scheduler) Snapshot() *model.Snapshot {
	return s.snapshot.Load()
}

// Start resumes a stopped loop; the paused branch polls at MinInterval,
// so resumption is at most one minimum interval away.
func (s *Scheduler) Start() {
	s.stopMu.Lock()
	if !s.active.Load() {
		s.stopCh = make(chan struct{})
		s.active.Store(true)
	}
	s.stopMu.Unlock()
	log.Println("scheduler: monitoring resumed")
}

// Stop pauses ticking and interrupts the in-flight wait: the inter-tick
// sleep and any running protocol step end promptly rather than waiting
// out their interval. Idempotent.
func (s *Scheduler) Stop() {
	s.stopMu.Lock()
	if s.active.Load() {
		s.active.Store(false)
		close(s.stopCh)
	}
	s.stopMu.Unlock()
	log.Println("scheduler: monitoring paused")
}

func highAmplification(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "high") ||
		strings.Contains(lower, "elevated") ||
		strings.Contains(lower, "severe")
}
