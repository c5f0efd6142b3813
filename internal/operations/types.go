package operations

import (
	"time"
)

// Audit step identifiers
const (
	StepIDLoad        = "load"
	StepIDScan        = "scan"
	StepIDBoundaries  = "boundaries"
	StepIDExtract     = "extract"
	StepIDConsolidate = "consolidate"
	StepIDExport      = "export"
)

// Audit step names
const (
	StepNameLoad        = "Load Workbook"
	StepNameScan        = "Scan Months"
	StepNameBoundaries  = "Resolve Boundaries"
	StepNameExtract     = "Extract Attendance"
	StepNameConsolidate = "Consolidate Programs"
	StepNameExport      = "Write Outputs"
)

// StepMilestones is the overall run progress reached when each step completes.
var StepMilestones = map[string]int{
	StepIDLoad:        10,
	StepIDScan:        30,
	StepIDBoundaries:  40,
	StepIDExtract:     60,
	StepIDConsolidate: 80,
	StepIDExport:      100,
}

// DetectSteps are the steps that prepare boundaries for review.
var DetectSteps = []string{StepIDLoad, StepIDScan, StepIDBoundaries}

// ComputeSteps are the steps that run once boundaries are settled.
var ComputeSteps = []string{StepIDExtract, StepIDConsolidate, StepIDExport}

// WebSocket event types
const (
	EventTypeSnapshot = "operation:snapshot"
	EventTypeBatch    = "operation:batch"
)

// Default timeouts
const (
	DefaultStepTimeout = 5 * time.Minute
	DefaultLoadTimeout = 2 * time.Minute
)

// RetryConfig defines retry behavior for steps
type RetryConfig struct {
	MaxAttempts  int           `json:"max_attempts"`
	InitialDelay time.Duration `json:"initial_delay"`
	MaxDelay     time.Duration `json:"max_delay"`
	Multiplier   float64       `json:"multiplier"`
}

// NewRetryConfig returns the default retry configuration
func NewRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
	}
}

// OperationRequest asks the manager to run an audit.
type OperationRequest struct {
	ID string `json:"id"`
	// Steps restricts the run to these step ids. Empty runs every step.
	Steps []string `json:"steps,omitempty"`
	// Audit seeds the run. A nil Audit starts from an empty one.
	Audit *Audit `json:"-"`
}

// OperationResponse represents the response from a operation execution
type OperationResponse struct {
	ID       string                `json:"id"`
	Status   OperationStatusValue  `json:"status"`
	Duration time.Duration         `json:"duration"`
	Steps    map[string]*StepState `json:"steps"`
	Error    string                `json:"error,omitempty"`
	Audit    *Audit                `json:"-"`
}
