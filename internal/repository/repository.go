package repository

import (
	"context"
	"errors"
	"time"

	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
)

// Sentinel errors returned by repository implementations. The service layer
// translates these into the caller-facing error taxonomy.
var (
	// ErrNotFound indicates the row does not exist or is soft-deleted.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate indicates a uniqueness constraint rejected the write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStateMismatch indicates a compare-and-swap lost: the row exists but
	// its current state did not match the expected state, or a progress
	// update violated the monotonicity guard.
	ErrStateMismatch = errors.New("state mismatch")
)

// MaxPageSize bounds the number of rows a single list call can return.
const MaxPageSize = 1000

// DefaultPageSize is used when the caller does not specify a limit.
const DefaultPageSize = 50

// Page describes offset pagination. Normalize clamps it to sane bounds.
type Page struct {
	Skip  int
	Limit int
}

// Normalize clamps the page to [0, MaxPageSize] and applies the default limit.
func (p Page) Normalize() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	return p
}

// Sort describes the result ordering. Column must be one of the whitelisted
// sortable columns; the zero value means "created_at descending".
type Sort struct {
	Column    string
	Ascending bool
}

var sortableColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"name":       true,
}

// Normalize falls back to the default ordering for unknown columns.
func (s Sort) Normalize() Sort {
	if !sortableColumns[s.Column] {
		return Sort{Column: "created_at", Ascending: false}
	}
	return s
}

// ModelFilter selects simulation models within a tenant.
type ModelFilter struct {
	TenantID     uint
	CreatedBy    *uint
	NameContains string
	Source       *model.ModelSource
	IsTemplate   *bool
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	UpdatedFrom  *time.Time
	UpdatedTo    *time.Time
}

// AnalysisFilter selects analyses within a tenant.
type AnalysisFilter struct {
	TenantID     uint
	ModelID      *uint
	CreatedBy    *uint
	NameContains string
	TimePeriod   string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	UpdatedFrom  *time.Time
	UpdatedTo    *time.Time
}

// ScenarioFilter selects scenarios within a tenant.
type ScenarioFilter struct {
	TenantID     uint
	AnalysisID   *uint
	CreatedBy    *uint
	NameContains string
	State        *model.ScenarioState
	TimePeriod   string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	UpdatedFrom  *time.Time
	UpdatedTo    *time.Time
}

// StateCount is a per-state scenario count.
type StateCount struct {
	State model.ScenarioState `json:"state"`
	Count int64               `json:"count"`
}

// BucketCount is a per-time-period count.
type BucketCount struct {
	Bucket string `json:"bucket"`
	Count  int64  `json:"count"`
}

// ModelRepository persists simulation models.
type ModelRepository interface {
	Create(ctx context.Context, m *model.SimulationModel) error
	GetByID(ctx context.Context, tenantID, id uint) (*model.SimulationModel, error)
	Update(ctx context.Context, m *model.SimulationModel) error
	SoftDelete(ctx context.Context, tenantID, id uint) error
	List(ctx context.Context, f ModelFilter, page Page, sort Sort) ([]model.SimulationModel, error)
	Count(ctx context.Context, f ModelFilter) (int64, error)
	NameExists(ctx context.Context, tenantID uint, name string, excludeID uint) (bool, error)
	MostRecentlyUpdated(ctx context.Context, tenantID uint, limit int) ([]model.SimulationModel, error)
}

// AnalysisRepository persists analyses.
type AnalysisRepository interface {
	Create(ctx context.Context, a *model.Analysis) error
	GetByID(ctx context.Context, tenantID, id uint) (*model.Analysis, error)
	Update(ctx context.Context, a *model.Analysis) error
	SoftDelete(ctx context.Context, tenantID, id uint) error
	List(ctx context.Context, f AnalysisFilter, page Page, sort Sort) ([]model.Analysis, error)
	Count(ctx context.Context, f AnalysisFilter) (int64, error)
	NameExists(ctx context.Context, tenantID, modelID uint, name string, excludeID uint) (bool, error)
	CountByTimePeriod(ctx context.Context, tenantID uint, modelID *uint) ([]BucketCount, error)
	MostRecentlyUpdated(ctx context.Context, tenantID uint, limit int) ([]model.Analysis, error)
}

// ScenarioRepository persists scenarios and applies atomic state transitions.
type ScenarioRepository interface {
	Create(ctx context.Context, s *model.Scenario) error
	GetByID(ctx context.Context, tenantID, id uint) (*model.Scenario, error)
	Update(ctx context.Context, s *model.Scenario) error
	SoftDelete(ctx context.Context, tenantID, id uint) error
	List(ctx context.Context, f ScenarioFilter, page Page, sort Sort) ([]model.Scenario, error)
	Count(ctx context.Context, f ScenarioFilter) (int64, error)
	NameExists(ctx context.Context, tenantID, analysisID uint, name string, excludeID uint) (bool, error)

	// CompareAndSwapState applies updates only if the row's current state
	// equals from. The check and the write are a single atomic store
	// operation: of two racing transitions exactly one succeeds. Returns
	// ErrNotFound when the row is absent, ErrStateMismatch when it lost the
	// swap.
	CompareAndSwapState(ctx context.Context, tenantID, id uint, from model.ScenarioState, updates map[string]interface{}) error

	// UpdateProgress records engine-reported progress. The write is guarded
	// in the same atomic operation: state must be is_running, currentRep
	// must not decrease and must not exceed total_reps.
	UpdateProgress(ctx context.Context, tenantID, id uint, currentRep int, progress float64) error

	CountByState(ctx context.Context, tenantID uint, analysisID *uint) ([]StateCount, error)
	CountByTimePeriod(ctx context.Context, tenantID uint, analysisID *uint) ([]BucketCount, error)
}
