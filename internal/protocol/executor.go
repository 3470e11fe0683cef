package protocol

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minewatch/emergency/internal/model"
)

// ====== Tunables ======
const (
	// Nominal step parameters before contextual adaptation.
	defaultStepMinutes     = 30
	defaultStepPersonnel   = 2
	defaultSuccessProb     = 0.95
	contingencyStepMinutes = 15

	// contingencyCutoff: steps below this success probability get a
	// contingency action attached.
	contingencyCutoff = 0.9

	// learningThreshold: executions at or below this success rate are
	// excluded from the successful-interventions learning set.
	learningThreshold = 0.8

	// Cost model rates.
	personnelRateEURPerMinute = 0.5
	equipmentRateEUR          = 500
	productionLossEURPerHour  = 1500
)

// ExecContext carries the situational data a protocol is adapted to.
type ExecContext struct {
	Weather         model.WeatherCondition
	Zones           map[string]model.ZoneStatus
	AffectedZones   []string
	CriticalSensors int
}

type Options struct {
	// TimeCompression divides a step's estimated minutes to obtain its
	// simulated wall-clock wait in seconds. 30 by default (a 30-minute
	// step waits one second).
	TimeCompression float64
	// MaxStepWait caps the simulated wait per step.
	MaxStepWait time.Duration
	Seed        int64
}

// Executor runs emergency protocols as a synchronous state machine:
// IDLE → ADAPTING → RUNNING → COMPLETED | PARTIALLY_FAILED. Terminal
// states are recorded in the execution history; there is no retry from
// a terminal state. The executor owns the history exclusively.
type Executor struct {
	mu       sync.Mutex
	catalog  *Catalog
	state    model.ExecutionState
	history  []model.ProtocolExecution
	learning []string // execution ids with success rate above threshold
	rng      *rand.Rand
	opts     Options
	now      func() time.Time
}

func NewExecutor(catalog *Catalog, opts Options) *Executor {
	if opts.TimeCompression <= 0 {
		opts.TimeCompression = 30
	}
	if opts.MaxStepWait <= 0 {
		opts.MaxStepWait = 2 * time.Second
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Executor{
		catalog: catalog,
		state:   model.ExecIdle,
		rng:     rand.New(rand.NewSource(seed)),
		opts:    opts,
		now:     time.Now,
	}
}

// State reports the executor's current position in the state machine.
func (e *Executor) State() model.ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Execute adapts and runs one protocol to a terminal state. Executions
// never overlap: concurrent protocol runs on the same zones would
// corrupt the log's step ordering, so the whole run holds the executor.
// Cancellation of ctx interrupts the current step wait promptly; the
// run ends in PARTIALLY_FAILED with the log so far.
func (e *Executor) Execute(ctx context.Context, protocolID string, ec ExecContext) (model.ProtocolExecution, error) {
	proto, ok := e.catalog.Get(protocolID)
	if !ok {
		return model.ProtocolExecution{}, fmt.Errorf("unknown protocol %q", protocolID)
	}

	e.mu.Lock()
	if e.state != model.ExecIdle {
		e.mu.Unlock()
		return model.ProtocolExecution{}, fmt.Errorf("executor busy (state %s)", e.state)
	}
	e.state = model.ExecAdapting
	e.mu.Unlock()

	steps := e.Adapt(proto, ec)

	e.mu.Lock()
	e.state = model.ExecRunning
	e.mu.Unlock()

	exec := e.run(ctx, proto, steps)

	e.mu.Lock()
	e.history = append(e.history, exec)
	if exec.SuccessRate > learningThreshold {
		e.learning = append(e.learning, exec.ID)
	}
	e.state = model.ExecIdle
	e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return exec, err
	}
	return exec, nil
}

// Adapt derives concrete steps from a protocol's canonical actions and
// applies the contextual rules: evacuations scale with the affected
// headcount and slow down in high wind, ventilation needs forcing in
// still air, isolations scale with the number of sensors in alarm.
func (e *Executor) Adapt(proto model.EmergencyProtocol, ec ExecContext) []model.ActionStep {
	steps := make([]model.ActionStep, 0, len(proto.RequiredActions))
	for _, action := range proto.RequiredActions {
		step := model.ActionStep{
			Action:             action,
			EstimatedTime:      defaultStepMinutes,
			PersonnelNeeded:    defaultStepPersonnel,
			SuccessProbability: defaultSuccessProb,
		}
		lower := strings.ToLower(action)

		switch {
		case strings.Contains(lower, "evacuation"):
			if ec.Weather.WindSpeed > 10 {
				step.Action += " (route adapted for high wind)"
				step.EstimatedTime = 45
				step.Adapted = true
			}
			headcount := 0
			for _, zone := range ec.AffectedZones {
				headcount += ec.Zones[zone].Personnel.PersonnelCount
			}
			if n := max(3, headcount/4); n != step.PersonnelNeeded {
				step.PersonnelNeeded = n
				step.Adapted = true
			}

		case strings.Contains(lower, "ventilation"):
			if ec.Weather.WindSpeed < 2 {
				step.Action += " (forced ventilation required)"
				step.EstimatedTime = 60
				step.Equipment = append(step.Equipment, "Industrial fans")
				step.Adapted = true
			}

		case strings.Contains(lower, "isolation"):
			if ec.CriticalSensors > 3 {
				step.Action += " (multiple isolation required)"
				step.EstimatedTime = 90
				step.PersonnelNeeded = 4
				step.SuccessProbability = 0.85
				step.Adapted = true
			}
		}

		if step.SuccessProbability < contingencyCutoff {
			step.Contingency = "Fallback plan for: " + action
		}
		steps = append(steps, step)
	}
	return steps
}

// run executes steps strictly in order. A failed step with a
// contingency runs the contingency inline as an extra logged entry;
// failure never aborts the remaining plan.
func (e *Executor) run(ctx context.Context, proto model.EmergencyProtocol, steps []model.ActionStep) model.ProtocolExecution {
	exec := model.ProtocolExecution{
		ID:         uuid.New().String(),
		ProtocolID: proto.ID,
		Steps:      steps,
		StartTime:  e.now().UTC(),
	}

	cancelled := false
	for i, step := range steps {
		if err := e.wait(ctx, step.EstimatedTime); err != nil {
			cancelled = true
			break
		}

		success := e.rng.Float64() < step.SuccessProbability
		status := model.StepCompleted
		if !success {
			status = model.StepFailed
		}
		exec.Log = append(exec.Log, model.StepResult{
			Step:              i + 1,
			Action:            step.Action,
			Status:            status,
			Timestamp:         e.now().UTC(),
			ExecutionTime:     step.EstimatedTime,
			PersonnelAssigned: step.PersonnelNeeded,
			EquipmentUsed:     step.Equipment,
		})
		if success {
			log.Printf("protocol %s: step %d completed: %.50s", proto.ID, i+1, step.Action)
		} else {
			log.Printf("protocol %s: step %d failed: %.50s", proto.ID, i+1, step.Action)
			if step.Contingency != "" {
				exec.Log = append(exec.Log, model.StepResult{
					Step:              i + 1,
					Action:            step.Contingency,
					Status:            model.StepContingency,
					Timestamp:         e.now().UTC(),
					ExecutionTime:     contingencyStepMinutes,
					PersonnelAssigned: step.PersonnelNeeded,
					Note:              "automatic contingency action",
				})
				log.Printf("protocol %s: contingency engaged for step %d", proto.ID, i+1)
			}
		}
	}

	exec.EndTime = e.now().UTC()
	exec.SuccessRate = successRate(exec.Log)
	exec.Cost = EstimateCost(steps)
	exec.AdaptationsMade = countAdapted(steps)
	for _, s := range steps {
		exec.PersonnelMobilized += s.PersonnelNeeded
	}

	switch {
	case cancelled, exec.SuccessRate < 1.0:
		exec.State = model.ExecPartiallyFailed
	default:
		exec.State = model.ExecCompleted
	}
	return exec
}

// History returns a copy of the execution history, oldest first.
func (e *Executor) History() []model.ProtocolExecution {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.ProtocolExecution, len(e.history))
	copy(out, e.history)
	return out
}

// LearningSet returns the ids of executions whose success rate cleared
// the learning threshold.
func (e *Executor) LearningSet() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.learning))
	copy(out, e.learning)
	return out
}

// EstimateCost itemizes an intervention's cost from its adapted steps.
func EstimateCost(steps []model.ActionStep) model.CostEstimate {
	var personnelMinutes, totalMinutes float64
	distinct := make(map[string]bool)
	for _, s := range steps {
		personnelMinutes += float64(s.PersonnelNeeded) * float64(s.EstimatedTime)
		totalMinutes += float64(s.EstimatedTime)
		for _, eq := range s.Equipment {
			distinct[eq] = true
		}
	}
	personnel := personnelMinutes * personnelRateEURPerMinute
	equipment := float64(len(distinct)) * equipmentRateEUR
	return model.CostEstimate{
		PersonnelEUR:      personnel,
		EquipmentEUR:      equipment,
		ProductionLossEUR: totalMinutes * productionLossEURPerHour / 60,
		TotalEUR:          personnel + equipment,
	}
}

// wait sleeps for the step's simulated duration, interruptible by ctx.
func (e *Executor) wait(ctx context.Context, estimatedMinutes int) error {
	d := time.Duration(float64(estimatedMinutes) / e.opts.TimeCompression * float64(time.Second))
	if d > e.opts.MaxStepWait {
		d = e.opts.MaxStepWait
	}
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func successRate(entries []model.StepResult) float64 {
	if len(entries) == 0 {
		return 0
	}
	completed := 0
	for _, entry := range entries {
		if entry.Status != model.StepFailed {
			completed++
		}
	}
	return float64(completed) / float64(len(entries))
}

func countAdapted(steps []model.ActionStep) int {
	n := 0
	for _, s := range steps {
		if s.Adapted {
			n++
		}
	}
	return n
}
