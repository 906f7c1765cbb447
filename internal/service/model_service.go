package service

import (
	"context"
	"time"

	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/repository"
	"go.uber.org/zap"
)

// ModelService owns validation and persistence of simulation models.
type ModelService struct {
	models repository.ModelRepository
	log    *zap.Logger
}

func NewModelService(models repository.ModelRepository, log *zap.Logger) *ModelService {
	return &ModelService{models: models, log: log}
}

// CreateModelInput is an accepted model creation payload.
type CreateModelInput struct {
	Name        string
	Source      model.ModelSource
	Description string
	IsTemplate  bool
}

// UpdateModelInput is an accepted model update payload.
type UpdateModelInput struct {
	Name        string
	Source      model.ModelSource
	Description string
	IsTemplate  bool
}

// ModelQuery selects and pages models for a tenant.
type ModelQuery struct {
	OnlyMine     bool
	NameContains string
	Source       *model.ModelSource
	IsTemplate   *bool
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	UpdatedFrom  *time.Time
	UpdatedTo    *time.Time
	Page         repository.Page
	Sort         repository.Sort
}

func (s *ModelService) Create(ctx context.Context, p Principal, in CreateModelInput) (*model.SimulationModel, error) {
	if in.Name == "" {
		return nil, invalidf("name is required")
	}
	if in.Source == "" {
		in.Source = model.SourceManual
	}
	if !in.Source.Valid() {
		return nil, invalidf("unknown model source %q", in.Source)
	}

	// Optimistic check; the partial unique index is the final authority.
	taken, err := s.models.NameExists(ctx, p.TenantID, in.Name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, conflictf("model name already in use")
	}

	m := &model.SimulationModel{
		TenantID:    p.TenantID,
		Name:        in.Name,
		Source:      in.Source,
		Description: in.Description,
		Version:     1,
		IsTemplate:  in.IsTemplate,
		CreatedBy:   p.UserID,
	}
	if err := s.models.Create(ctx, m); err != nil {
		return nil, writeErr(err, "model")
	}
	s.log.Info("model created",
		zap.Uint("tenant_id", p.TenantID),
		zap.Uint("model_id", m.ID),
		zap.String("name", m.Name))
	return m, nil
}

func (s *ModelService) Get(ctx context.Context, p Principal, id uint) (*model.SimulationModel, error) {
	m, err := s.models.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return nil, lookupErr(err, "model")
	}
	return m, nil
}

func (s *ModelService) List(ctx context.Context, p Principal, q ModelQuery) ([]model.SimulationModel, int64, error) {
	f := repository.ModelFilter{
		TenantID:     p.TenantID,
		NameContains: q.NameContains,
		Source:       q.Source,
		IsTemplate:   q.IsTemplate,
		CreatedFrom:  q.CreatedFrom,
		CreatedTo:    q.CreatedTo,
		UpdatedFrom:  q.UpdatedFrom,
		UpdatedTo:    q.UpdatedTo,
	}
	if q.OnlyMine {
		f.CreatedBy = &p.UserID
	}
	models, err := s.models.List(ctx, f, q.Page, q.Sort)
	if err != nil {
		return nil, 0, err
	}
	// The total is a separate query over the same predicate so partial pages
	// never undercount.
	total, err := s.models.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return models, total, nil
}

// Update applies a structural update and bumps the model version. Only the
// creator may update.
func (s *ModelService) Update(ctx context.Context, p Principal, id uint, in UpdateModelInput) (*model.SimulationModel, error) {
	m, err := s.models.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return nil, lookupErr(err, "model")
	}
	if m.CreatedBy != p.UserID {
		return nil, forbiddenf("only the creator may update this model")
	}
	if in.Name == "" {
		return nil, invalidf("name is required")
	}
	if in.Source != "" && !in.Source.Valid() {
		return nil, invalidf("unknown model source %q", in.Source)
	}
	if in.Name != m.Name {
		taken, err := s.models.NameExists(ctx, p.TenantID, in.Name, m.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, conflictf("model name already in use")
		}
	}

	m.Name = in.Name
	if in.Source != "" {
		m.Source = in.Source
	}
	m.Description = in.Description
	m.IsTemplate = in.IsTemplate
	m.Version++
	if err := s.models.Update(ctx, m); err != nil {
		return nil, writeErr(err, "model")
	}
	s.log.Info("model updated",
		zap.Uint("tenant_id", p.TenantID),
		zap.Uint("model_id", m.ID),
		zap.Int("version", m.Version))
	return m, nil
}

// Delete soft-deletes a model. Only the creator may delete.
func (s *ModelService) Delete(ctx context.Context, p Principal, id uint) error {
	m, err := s.models.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return lookupErr(err, "model")
	}
	if m.CreatedBy != p.UserID {
		return forbiddenf("only the creator may delete this model")
	}
	if err := s.models.SoftDelete(ctx, p.TenantID, id); err != nil {
		return lookupErr(err, "model")
	}
	s.log.Info("model deleted",
		zap.Uint("tenant_id", p.TenantID),
		zap.Uint("model_id", id))
	return nil
}

// Copy duplicates a model under a new name. The copy starts at version 1 and
// belongs to the acting user.
func (s *ModelService) Copy(ctx context.Context, p Principal, id uint, newName string) (*model.SimulationModel, error) {
	src, err := s.models.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return nil, lookupErr(err, "model")
	}
	name, err := copyName(newName, src.Name, func(candidate string) (bool, error) {
		return s.models.NameExists(ctx, p.TenantID, candidate, 0)
	})
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, p, CreateModelInput{
		Name:        name,
		Source:      src.Source,
		Description: src.Description,
		IsTemplate:  src.IsTemplate,
	})
}
