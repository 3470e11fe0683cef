package model

import "time"

// EmergencyProtocol is an immutable catalog entry describing a response
// procedure.
type EmergencyProtocol struct {
	ID                string   `json:"protocol_id" yaml:"protocol_id"`
	Name              string   `json:"name" yaml:"name"`
	Description       string   `json:"description" yaml:"description"`
	Priority          int      `json:"priority" yaml:"priority"`
	EstimatedTime     int      `json:"estimated_time" yaml:"estimated_time"` // minutes
	RequiredActions   []string `json:"required_actions" yaml:"required_actions"`
	AffectedZones     []string `json:"affected_zones" yaml:"affected_zones"`
	PersonnelRequired int      `json:"personnel_required" yaml:"personnel_required"`
	EquipmentNeeded   []string `json:"equipment_needed" yaml:"equipment_needed"`
}

// ExecutionState is the protocol executor's state machine position.
type ExecutionState string

const (
	ExecIdle            ExecutionState = "IDLE"
	ExecAdapting        ExecutionState = "ADAPTING"
	ExecRunning         ExecutionState = "RUNNING"
	ExecCompleted       ExecutionState = "COMPLETED"
	ExecPartiallyFailed ExecutionState = "PARTIALLY_FAILED"
)

// ActionStep is one concrete, context-adapted step of a protocol.
type ActionStep struct {
	Action             string   `json:"action"`
	EstimatedTime      int      `json:"estimated_time"` // minutes
	PersonnelNeeded    int      `json:"personnel_needed"`
	Equipment          []string `json:"equipment,omitempty"`
	SuccessProbability float64  `json:"success_probability"`
	Contingency        string   `json:"contingency,omitempty"`
	Adapted            bool     `json:"adapted,omitempty"`
}

// StepStatus is the outcome of one executed step.
type StepStatus string

const (
	StepCompleted   StepStatus = "completed"
	StepFailed      StepStatus = "failed"
	StepContingency StepStatus = "contingency"
)

// StepResult is one execution-log entry.
type StepResult struct {
	Step              int        `json:"step"`
	Action            string     `json:"action"`
	Status            StepStatus `json:"status"`
	Timestamp         time.Time  `json:"timestamp"`
	ExecutionTime     int        `json:"execution_time"` // minutes
	PersonnelAssigned int        `json:"personnel_assigned"`
	EquipmentUsed     []string   `json:"equipment_used,omitempty"`
	Note              string     `json:"note,omitempty"`
}

// CostEstimate itemizes the cost of an intervention. The three parts are
// reported separately, not netted.
type CostEstimate struct {
	PersonnelEUR      float64 `json:"personnel_cost_eur"`
	EquipmentEUR      float64 `json:"equipment_cost_eur"`
	ProductionLossEUR float64 `json:"production_loss_eur"`
	TotalEUR          float64 `json:"total_estimated_eur"`
}

// ProtocolExecution records one run of a protocol, from adaptation to
// terminal state. Appended to the execution history; never deleted.
type ProtocolExecution struct {
	ID                 string         `json:"id"`
	ProtocolID         string         `json:"protocol_id"`
	State              ExecutionState `json:"state"`
	Steps              []ActionStep   `json:"steps"`
	Log                []StepResult   `json:"execution_log"`
	SuccessRate        float64        `json:"success_rate"`
	StartTime          time.Time      `json:"start_time"`
	EndTime            time.Time      `json:"end_time"`
	Cost               CostEstimate   `json:"estimated_cost"`
	PersonnelMobilized int            `json:"personnel_mobilized"`
	AdaptationsMade    int            `json:"adaptations_made"`
}
