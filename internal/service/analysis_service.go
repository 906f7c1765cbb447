package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/repository"
	"go.uber.org/zap"
)

// AnalysisService owns validation and persistence of analyses. An analysis
// must always reference a non-deleted model in the same tenant at creation
// time.
type AnalysisService struct {
	analyses repository.AnalysisRepository
	models   repository.ModelRepository
	log      *zap.Logger
}

func NewAnalysisService(analyses repository.AnalysisRepository, models repository.ModelRepository, log *zap.Logger) *AnalysisService {
	return &AnalysisService{analyses: analyses, models: models, log: log}
}

// CreateAnalysisInput is an accepted analysis creation payload.
type CreateAnalysisInput struct {
	ModelID           uint
	Name              string
	Description       string
	DefaultTimePeriod string
	DefaultParameters json.RawMessage
}

// UpdateAnalysisInput is an accepted analysis update payload.
type UpdateAnalysisInput struct {
	Name              string
	Description       string
	DefaultTimePeriod string
	DefaultParameters json.RawMessage
}

// AnalysisQuery selects and pages analyses for a tenant.
type AnalysisQuery struct {
	ModelID      *uint
	OnlyMine     bool
	NameContains string
	TimePeriod   string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	UpdatedFrom  *time.Time
	UpdatedTo    *time.Time
	Page         repository.Page
	Sort         repository.Sort
}

func (s *AnalysisService) Create(ctx context.Context, p Principal, in CreateAnalysisInput) (*model.Analysis, error) {
	if in.Name == "" {
		return nil, invalidf("name is required")
	}
	if in.ModelID == 0 {
		return nil, invalidf("model_id is required")
	}
	if _, err := s.models.GetByID(ctx, p.TenantID, in.ModelID); err != nil {
		return nil, lookupErr(err, "model")
	}

	taken, err := s.analyses.NameExists(ctx, p.TenantID, in.ModelID, in.Name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, conflictf("analysis name already in use")
	}

	a := &model.Analysis{
		TenantID:          p.TenantID,
		ModelID:           in.ModelID,
		Name:              in.Name,
		Description:       in.Description,
		DefaultTimePeriod: in.DefaultTimePeriod,
		DefaultParameters: in.DefaultParameters,
		CreatedBy:         p.UserID,
	}
	if err := s.analyses.Create(ctx, a); err != nil {
		return nil, writeErr(err, "analysis")
	}
	s.log.Info("analysis created",
		zap.Uint("tenant_id", p.TenantID),
		zap.Uint("model_id", a.ModelID),
		zap.Uint("analysis_id", a.ID),
		zap.String("name", a.Name))
	return a, nil
}

func (s *AnalysisService) Get(ctx context.Context, p Principal, id uint) (*model.Analysis, error) {
	a, err := s.analyses.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return nil, lookupErr(err, "analysis")
	}
	return a, nil
}

func (s *AnalysisService) List(ctx context.Context, p Principal, q AnalysisQuery) ([]model.Analysis, int64, error) {
	f := repository.AnalysisFilter{
		TenantID:     p.TenantID,
		ModelID:      q.ModelID,
		NameContains: q.NameContains,
		TimePeriod:   q.TimePeriod,
		CreatedFrom:  q.CreatedFrom,
		CreatedTo:    q.CreatedTo,
		UpdatedFrom:  q.UpdatedFrom,
		UpdatedTo:    q.UpdatedTo,
	}
	if q.OnlyMine {
		f.CreatedBy = &p.UserID
	}
	analyses, err := s.analyses.List(ctx, f, q.Page, q.Sort)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.analyses.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return analyses, total, nil
}

func (s *AnalysisService) Update(ctx context.Context, p Principal, id uint, in UpdateAnalysisInput) (*model.Analysis, error) {
	a, err := s.analyses.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return nil, lookupErr(err, "analysis")
	}
	if a.CreatedBy != p.UserID {
		return nil, forbiddenf("only the creator may update this analysis")
	}
	if in.Name == "" {
		return nil, invalidf("name is required")
	}
	if in.Name != a.Name {
		taken, err := s.analyses.NameExists(ctx, p.TenantID, a.ModelID, in.Name, a.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, conflictf("analysis name already in use")
		}
	}

	a.Name = in.Name
	a.Description = in.Description
	a.DefaultTimePeriod = in.DefaultTimePeriod
	a.DefaultParameters = in.DefaultParameters
	if err := s.analyses.Update(ctx, a); err != nil {
		return nil, writeErr(err, "analysis")
	}
	s.log.Info("analysis updated",
		zap.Uint("tenant_id", p.TenantID),
		zap.Uint("analysis_id", a.ID))
	return a, nil
}

func (s *AnalysisService) Delete(ctx context.Context, p Principal, id uint) error {
	a, err := s.analyses.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return lookupErr(err, "analysis")
	}
	if a.CreatedBy != p.UserID {
		return forbiddenf("only the creator may delete this analysis")
	}
	if err := s.analyses.SoftDelete(ctx, p.TenantID, id); err != nil {
		return lookupErr(err, "analysis")
	}
	s.log.Info("analysis deleted",
		zap.Uint("tenant_id", p.TenantID),
		zap.Uint("analysis_id", id))
	return nil
}

// Copy duplicates an analysis, optionally re-targeting it to a different
// model, which must pass the same parent checks as creation.
func (s *AnalysisService) Copy(ctx context.Context, p Principal, id uint, newName string, targetModelID *uint) (*model.Analysis, error) {
	src, err := s.analyses.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return nil, lookupErr(err, "analysis")
	}
	modelID := src.ModelID
	if targetModelID != nil {
		modelID = *targetModelID
	}
	name, err := copyName(newName, src.Name, func(candidate string) (bool, error) {
		return s.analyses.NameExists(ctx, p.TenantID, modelID, candidate, 0)
	})
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, p, CreateAnalysisInput{
		ModelID:           modelID,
		Name:              name,
		Description:       src.Description,
		DefaultTimePeriod: src.DefaultTimePeriod,
		DefaultParameters: src.DefaultParameters,
	})
}
