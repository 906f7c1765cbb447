package repository

import (
	"context"
	"time"

	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/prometheus"
	"gorm.io/gorm"
)

// GormScenarioRepository is the PostgreSQL-backed ScenarioRepository.
type GormScenarioRepository struct {
	db *gorm.DB
}

func NewGormScenarioRepository(db *gorm.DB) *GormScenarioRepository {
	return &GormScenarioRepository{db: db}
}

func (r *GormScenarioRepository) Create(ctx context.Context, s *model.Scenario) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	return translateError(r.db.WithContext(ctx).Create(s).Error)
}

func (r *GormScenarioRepository) GetByID(ctx context.Context, tenantID, id uint) (*model.Scenario, error) {
	var s model.Scenario
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&s, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &s, nil
}

// Update writes metadata fields only. Execution state and timing fields are
// written exclusively through CompareAndSwapState and UpdateProgress.
func (r *GormScenarioRepository) Update(ctx context.Context, s *model.Scenario) error {
	result := r.db.WithContext(ctx).
		Model(&model.Scenario{}).
		Where("id = ? AND tenant_id = ?", s.ID, s.TenantID).
		Updates(map[string]interface{}{
			"name":        s.Name,
			"description": s.Description,
			"time_period": s.TimePeriod,
			"parameters":  s.Parameters,
			"total_reps":  s.TotalReps,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormScenarioRepository) SoftDelete(ctx context.Context, tenantID, id uint) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Delete(&model.Scenario{}, id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormScenarioRepository) scope(ctx context.Context, f ScenarioFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Scenario{}).
		Where("tenant_id = ?", f.TenantID)
	if f.AnalysisID != nil {
		q = q.Where("analysis_id = ?", *f.AnalysisID)
	}
	if f.CreatedBy != nil {
		q = q.Where("created_by = ?", *f.CreatedBy)
	}
	if f.NameContains != "" {
		q = q.Where("name ILIKE ?", "%"+f.NameContains+"%")
	}
	if f.State != nil {
		q = q.Where("state = ?", *f.State)
	}
	if f.TimePeriod != "" {
		q = q.Where("time_period = ?", f.TimePeriod)
	}
	if f.CreatedFrom != nil {
		q = q.Where("created_at >= ?", *f.CreatedFrom)
	}
	if f.CreatedTo != nil {
		q = q.Where("created_at <= ?", *f.CreatedTo)
	}
	if f.UpdatedFrom != nil {
		q = q.Where("updated_at >= ?", *f.UpdatedFrom)
	}
	if f.UpdatedTo != nil {
		q = q.Where("updated_at <= ?", *f.UpdatedTo)
	}
	return q
}

func (r *GormScenarioRepository) List(ctx context.Context, f ScenarioFilter, page Page, sort Sort) ([]model.Scenario, error) {
	page = page.Normalize()
	var scenarios []model.Scenario
	err := r.scope(ctx, f).
		Order(orderClause(sort)).
		Offset(page.Skip).
		Limit(page.Limit).
		Find(&scenarios).Error
	return scenarios, translateError(err)
}

func (r *GormScenarioRepository) Count(ctx context.Context, f ScenarioFilter) (int64, error) {
	var count int64
	err := r.scope(ctx, f).Count(&count).Error
	return count, translateError(err)
}

func (r *GormScenarioRepository) NameExists(ctx context.Context, tenantID, analysisID uint, name string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&model.Scenario{}).
		Where("tenant_id = ? AND analysis_id = ? AND name = ?", tenantID, analysisID, name)
	if excludeID != 0 {
		q = q.Where("id != ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

// CompareAndSwapState issues a single guarded UPDATE so that two racing
// transitions against the same row resolve to exactly one winner. A zero
// row count is disambiguated by re-reading the row.
func (r *GormScenarioRepository) CompareAndSwapState(ctx context.Context, tenantID, id uint, from model.ScenarioState, updates map[string]interface{}) error {
	defer prometheus.TrackDBOperation("update")(time.Now())
	result := r.db.WithContext(ctx).
		Model(&model.Scenario{}).
		Where("id = ? AND tenant_id = ? AND state = ?", id, tenantID, from).
		Updates(updates)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, tenantID, id); err != nil {
			return err
		}
		return ErrStateMismatch
	}
	return nil
}

// UpdateProgress applies an engine progress report. The monotonicity and
// bounds guards live in the WHERE clause so out-of-order reports lose the
// write rather than regressing current_rep.
func (r *GormScenarioRepository) UpdateProgress(ctx context.Context, tenantID, id uint, currentRep int, progress float64) error {
	defer prometheus.TrackDBOperation("update")(time.Now())
	result := r.db.WithContext(ctx).
		Model(&model.Scenario{}).
		Where("id = ? AND tenant_id = ? AND state = ? AND current_rep <= ? AND total_reps >= ?",
			id, tenantID, model.StateIsRunning, currentRep, currentRep).
		Updates(map[string]interface{}{
			"current_rep":         currentRep,
			"progress_percentage": progress,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, tenantID, id); err != nil {
			return err
		}
		return ErrStateMismatch
	}
	return nil
}

func (r *GormScenarioRepository) CountByState(ctx context.Context, tenantID uint, analysisID *uint) ([]StateCount, error) {
	q := r.db.WithContext(ctx).Model(&model.Scenario{}).
		Select("state, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID)
	if analysisID != nil {
		q = q.Where("analysis_id = ?", *analysisID)
	}
	var rows []StateCount
	err := q.Group("state").Scan(&rows).Error
	return rows, translateError(err)
}

func (r *GormScenarioRepository) CountByTimePeriod(ctx context.Context, tenantID uint, analysisID *uint) ([]BucketCount, error) {
	q := r.db.WithContext(ctx).Model(&model.Scenario{}).
		Select("time_period AS bucket, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID)
	if analysisID != nil {
		q = q.Where("analysis_id = ?", *analysisID)
	}
	var rows []BucketCount
	err := q.Group("time_period").Scan(&rows).Error
	return rows, translateError(err)
}
