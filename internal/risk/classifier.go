package risk

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/minewatch/emergency/internal/model"
)

const (
	// defaultMemoryCap bounds the rolling assessment memory used for
	// trend context.
	defaultMemoryCap = 20

	// falseAlarmConfidence: a CRITICAL/EMERGENCY verdict below this
	// confidence is flagged as a suspected false alarm.
	falseAlarmConfidence = 0.6
)

// Input is one tick's worth of borrowed snapshots. The classifier never
// mutates them.
type Input struct {
	Timestamp  time.Time
	Readings   map[string]model.SensorReading
	Zones      map[string]model.ZoneStatus
	Weather    model.WeatherCondition
	Production model.ProductionMetrics
}

type Options struct {
	MemoryCap       int
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

// Classifier turns a tick's data into a RiskAssessment. The open-ended
// reasoning is delegated to the Analyzer; the classifier owns the
// degradation path, the rolling memory and the learning counters, and
// Assess never returns an error to the scheduler.
type Classifier struct {
	mu            sync.Mutex
	analyzer      Analyzer
	breaker       *gobreaker.CircuitBreaker
	memory        []HistoryLine
	memoryCap     int
	interventions int
	falseAlarms   int
	failures      int
}

func NewClassifier(analyzer Analyzer, opts Options) *Classifier {
	if opts.MemoryCap <= 0 {
		opts.MemoryCap = defaultMemoryCap
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 3
	}
	if opts.BreakerOpenFor <= 0 {
		opts.BreakerOpenFor = 30 * time.Second
	}
	return &Classifier{
		analyzer:  analyzer,
		memoryCap: opts.MemoryCap,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "analysis",
			MaxRequests: 1,
			Timeout:     opts.BreakerOpenFor,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= opts.BreakerFailures
			},
		}),
	}
}

// Assess produces a fresh assessment for one tick. Collaborator failure
// (including an open breaker) yields a degraded NORMAL assessment with
// confidence 0; the error is logged and counted, never propagated.
func (c *Classifier) Assess(ctx context.Context, in Input) model.RiskAssessment {
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}
	quality := DataQuality(in.Readings)
	env := EnvironmentalImpact(in.Weather)

	c.mu.Lock()
	ac := buildContext(in, quality, append([]HistoryLine(nil), c.memory...), c.interventions, c.falseAlarms)
	c.mu.Unlock()

	assessment := model.RiskAssessment{
		Timestamp:        in.Timestamp,
		CurrentLevel:     model.RiskNormal,
		PredictedLevel2h: model.RiskNormal,
		DataQuality:      quality,
		Environmental:    env,
		Degraded:         true,
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.analyzer.Analyze(ctx, ac)
	})
	if err != nil {
		c.mu.Lock()
		c.failures++
		c.mu.Unlock()
		log.Printf("risk: analysis unavailable, degrading: %v", err)
	} else {
		assessment = c.fromResult(res.(*AnalysisResult), assessment)
	}

	if (assessment.CurrentLevel == model.RiskCritical || assessment.CurrentLevel == model.RiskEmergency) &&
		assessment.Confidence < falseAlarmConfidence {
		assessment.FalseAlarmSuspected = true
		c.mu.Lock()
		c.falseAlarms++
		c.mu.Unlock()
	}

	c.remember(assessment)
	return assessment
}

// fromResult maps the collaborator response onto an assessment,
// degrading field-wise: an invalid current level degrades the whole
// result, an invalid prediction falls back to the current level.
func (c *Classifier) fromResult(res *AnalysisResult, degraded model.RiskAssessment) model.RiskAssessment {
	a := degraded

	if !model.ValidRiskLevel(res.RiskAssessment.CurrentLevel) {
		log.Printf("risk: collaborator returned invalid level %q, degrading", res.RiskAssessment.CurrentLevel)
		return degraded
	}
	a.Degraded = false
	a.CurrentLevel = model.RiskLevel(res.RiskAssessment.CurrentLevel)

	a.PredictedLevel2h = a.CurrentLevel
	if model.ValidRiskLevel(res.RiskAssessment.PredictedLevel2h) {
		a.PredictedLevel2h = model.RiskLevel(res.RiskAssessment.PredictedLevel2h)
	}

	a.Confidence = clamp01(res.RiskAssessment.ConfidenceScore)
	a.PrimaryRisks = res.RiskAssessment.PrimaryRisks
	a.SecondaryRisks = res.RiskAssessment.SecondaryRisks
	a.AffectedZones = res.ZoneAnalysis.AffectedZones
	a.SafeZones = res.ZoneAnalysis.SafeZones
	a.PredictiveAlerts = res.PredictiveAlerts
	a.Correlations = res.CorrelationsDetected
	a.RecommendedProtocol = res.ProtocolRecommendation.ProtocolNeeded
	a.Reasoning = res.DetailedReasoning
	return a
}

// remember appends to the bounded rolling memory. Only called after a
// call has returned (successful or degraded); never retried in-tick.
func (c *Classifier) remember(a model.RiskAssessment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory = append(c.memory, HistoryLine{Timestamp: a.Timestamp, Level: a.CurrentLevel, Degraded: a.Degraded})
	if over := len(c.memory) - c.memoryCap; over > 0 {
		c.memory = c.memory[over:]
	}
}

// RecordIntervention feeds the learning counters after a protocol run.
func (c *Classifier) RecordIntervention(successful bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if successful {
		c.interventions++
	}
}

// Counters returns (successful interventions, false alarms prevented,
// collaborator failures).
func (c *Classifier) Counters() (interventions, falseAlarms, failures int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interventions, c.falseAlarms, c.failures
}

// MemoryLen reports the rolling memory size (bounded by MemoryCap).
func (c *Classifier) MemoryLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.memory)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
