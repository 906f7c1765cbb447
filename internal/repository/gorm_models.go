package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/prometheus"
	"gorm.io/gorm"
)

// GormModelRepository is the PostgreSQL-backed ModelRepository.
type GormModelRepository struct {
	db *gorm.DB
}

func NewGormModelRepository(db *gorm.DB) *GormModelRepository {
	return &GormModelRepository{db: db}
}

// translateError maps GORM errors onto the repository sentinels.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

func orderClause(sort Sort) string {
	sort = sort.Normalize()
	dir := "DESC"
	if sort.Ascending {
		dir = "ASC"
	}
	return fmt.Sprintf("%s %s", sort.Column, dir)
}

func (r *GormModelRepository) Create(ctx context.Context, m *model.SimulationModel) error {
	defer prometheus.TrackDBOperation("insert")(time.Now())
	return translateError(r.db.WithContext(ctx).Create(m).Error)
}

func (r *GormModelRepository) GetByID(ctx context.Context, tenantID, id uint) (*model.SimulationModel, error) {
	var m model.SimulationModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&m, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &m, nil
}

func (r *GormModelRepository) Update(ctx context.Context, m *model.SimulationModel) error {
	result := r.db.WithContext(ctx).
		Model(&model.SimulationModel{}).
		Where("id = ? AND tenant_id = ?", m.ID, m.TenantID).
		Updates(map[string]interface{}{
			"name":        m.Name,
			"source":      m.Source,
			"description": m.Description,
			"version":     m.Version,
			"is_template": m.IsTemplate,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormModelRepository) SoftDelete(ctx context.Context, tenantID, id uint) error {
	result := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Delete(&model.SimulationModel{}, id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormModelRepository) scope(ctx context.Context, f ModelFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.SimulationModel{}).
		Where("tenant_id = ?", f.TenantID)
	if f.CreatedBy != nil {
		q = q.Where("created_by = ?", *f.CreatedBy)
	}
	if f.NameContains != "" {
		q = q.Where("name ILIKE ?", "%"+f.NameContains+"%")
	}
	if f.Source != nil {
		q = q.Where("source = ?", *f.Source)
	}
	if f.IsTemplate != nil {
		q = q.Where("is_template = ?", *f.IsTemplate)
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

func (r *GormModelRepository) List(ctx context.Context, f ModelFilter, page Page, sort Sort) ([]model.SimulationModel, error) {
	page = page.Normalize()
	var models []model.SimulationModel
	err := r.scope(ctx, f).
		Order(orderClause(sort)).
		Offset(page.Skip).
		Limit(page.Limit).
		Find(&models).Error
	return models, translateError(err)
}

func (r *GormModelRepository) Count(ctx context.Context, f ModelFilter) (int64, error) {
	var count int64
	err := r.scope(ctx, f).Count(&count).Error
	return count, translateError(err)
}

func (r *GormModelRepository) NameExists(ctx context.Context, tenantID uint, name string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&model.SimulationModel{}).
		Where("tenant_id = ? AND name = ?", tenantID, name)
	if excludeID != 0 {
		q = q.Where("id != ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

func (r *GormModelRepository) MostRecentlyUpdated(ctx context.Context, tenantID uint, limit int) ([]model.SimulationModel, error) {
	var models []model.SimulationModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("updated_at DESC").
		Limit(limit).
		Find(&models).Error
	return models, translateError(err)
}
