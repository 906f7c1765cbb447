package repository

import (
	"context"
	"time"

	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/prometheus"
	"gorm.io/gorm"
)

// GormAnalysisRepository is the PostgreSQL-backed AnalysisRepository.
type GormAnalysisRepository struct {
	db *gorm.DB
}

func NewGormAnalysisRepository(db *gorm.DB) *GormAnalysisRepository {
	return &GormAnalysisRepository{db: db}
}

func (r *GormAnalysisRepository) Create(ctx context.Context, a *model.Analysis) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	return translateError(r.db.WithContext(ctx).Create(a).Error)
}

func (r *GormAnalysisRepository) GetByID(ctx context.Context, tenantID, id uint) (*model.Analysis, error) {
	var a model.Analysis
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&a, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &a, nil
}

func (r *GormAnalysisRepository) Update(ctx context.Context, a *model.Analysis) error {
	result := r.db.WithContext(ctx).
		Model(&model.Analysis{}).
		Where("id = ? AND tenant_id = ?", a.ID, a.TenantID).
		Updates(map[string]interface{}{
			"name":                a.Name,
			"description":         a.Description,
			"default_time_period": a.DefaultTimePeriod,
			"default_parameters":  a.DefaultParameters,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormAnalysisRepository) SoftDelete(ctx context.Context, tenantID, id uint) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Delete(&model.Analysis{}, id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormAnalysisRepository) scope(ctx context.Context, f AnalysisFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Analysis{}).
		Where("tenant_id = ?", f.TenantID)
	if f.ModelID != nil {
		q = q.Where("model_id = ?", *f.ModelID)
	}
	if f.CreatedBy != nil {
		q = q.Where("created_by = ?", *f.CreatedBy)
	}
	if f.NameContains != "" {
		q = q.Where("name ILIKE ?", "%"+f.NameContains+"%")
	}
	if f.TimePeriod != "" {
		q = q.Where("default_time_period = ?", f.TimePeriod)
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

func (r *GormAnalysisRepository) List(ctx context.Context, f AnalysisFilter, page Page, sort Sort) ([]model.Analysis, error) {
	page = page.Normalize()
	var analyses []model.Analysis
	err := r.scope(ctx, f).
		Order(orderClause(sort)).
		Offset(page.Skip).
		Limit(page.Limit).
		Find(&analyses).Error
	return analyses, translateError(err)
}

func (r *GormAnalysisRepository) Count(ctx context.Context, f AnalysisFilter) (int64, error) {
	var count int64
	err := r.scope(ctx, f).Count(&count).Error
	return count, translateError(err)
}

func (r *GormAnalysisRepository) NameExists(ctx context.Context, tenantID, modelID uint, name string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&model.Analysis{}).
		Where("tenant_id = ? AND model_id = ? AND name = ?", tenantID, modelID, name)
	if excludeID != 0 {
		q = q.Where("id != ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

func (r *GormAnalysisRepository) CountByTimePeriod(ctx context.Context, tenantID uint, modelID *uint) ([]BucketCount, error) {
	q := r.db.WithContext(ctx).Model(&model.Analysis{}).
		Select("default_time_period AS bucket, COUNT(*) AS count").
		Where("tenant_id = ?", tenantID)
	if modelID != nil {
		q = q.Where("model_id = ?", *modelID)
	}
	var rows []BucketCount
	err := q.Group("default_time_period").Scan(&rows).Error
	return rows, translateError(err)
}

func (r *GormAnalysisRepository) MostRecentlyUpdated(ctx context.Context, tenantID uint, limit int) ([]model.Analysis, error) {
	var analyses []model.Analysis
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&analyses).Error
	return analyses, translateError(err)
}
