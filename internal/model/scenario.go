package model

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// ScenarioState is the execution state of a scenario run.
type ScenarioState string

const (
	StateDraft         ScenarioState = "draft"
	StateReadyToRun    ScenarioState = "ready_to_run"
	StateIsRunning     ScenarioState = "is_running"
	StateCancelling    ScenarioState = "cancelling"
	StateRanSuccess    ScenarioState = "ran_success"
	StateRanWithErrors ScenarioState = "ran_with_errors"
	StateCancelled     ScenarioState = "cancelled"
)

// Valid reports whether the state is one of the enumerated values.
func (s ScenarioState) Valid() bool {
	switch s {
	case StateDraft, StateReadyToRun, StateIsRunning, StateCancelling,
		StateRanSuccess, StateRanWithErrors, StateCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is legal from the state.
func (s ScenarioState) Terminal() bool {
	switch s {
	case StateRanSuccess, StateRanWithErrors, StateCancelled:
		return true
	}
	return false
}

// Executing reports whether the scenario is in flight. Executing scenarios
// reject metadata edits and deletion.
func (s ScenarioState) Executing() bool {
	return s == StateIsRunning || s == StateCancelling
}

// Scenario is a concrete parameterized simulation run attached to an
// analysis. Its Parameters are overrides merged over the parent analysis
// defaults at read time. Names are unique per analysis among non-deleted
// rows. State-affecting fields are only written through the lifecycle
// controller.
type Scenario struct {
	ID                 uint            `json:"id" gorm:"primarykey"`
	TenantID           uint            `json:"tenant_id" gorm:"index;not null"`
	AnalysisID         uint            `json:"analysis_id" gorm:"not null;uniqueIndex:idx_scenarios_analysis_name,where:deleted_at IS NULL;index"`
	Name               string          `json:"name" gorm:"type:varchar(255);not null;uniqueIndex:idx_scenarios_analysis_name,where:deleted_at IS NULL"`
	Description        string          `json:"description" gorm:"type:text"`
	State              ScenarioState   `json:"state" gorm:"type:varchar(32);not null;default:'draft';index"`
	TimePeriod         string          `json:"time_period" gorm:"type:varchar(64)"`
	Parameters         json.RawMessage `json:"parameters,omitempty" gorm:"type:jsonb"`
	CurrentRep         int             `json:"current_rep" gorm:"not null;default:0"`
	TotalReps          int             `json:"total_reps" gorm:"not null;default:0"`
	ProgressPercentage *float64        `json:"progress_percentage,omitempty"`
	StartedAt          *time.Time      `json:"started_at,omitempty"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	ExecutionTimeMs    *int64          `json:"execution_time_ms,omitempty"`
	ErrorMessage       *string         `json:"error_message,omitempty" gorm:"type:text"`
	CreatedBy          uint            `json:"created_by" gorm:"index;not null"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	DeletedAt          gorm.DeletedAt  `json:"-" gorm:"index"`
}
