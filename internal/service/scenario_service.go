package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/repository"
	"go.uber.org/zap"
)

// ScenarioService owns validation and persistence of scenarios. Execution
// state transitions live in LifecycleService; this service only consults the
// state to guard metadata edits and deletion.
type ScenarioService struct {
	scenarios repository.ScenarioRepository
	analyses  repository.AnalysisRepository
	log       *zap.Logger
}

func NewScenarioService(scenarios repository.ScenarioRepository, analyses repository.AnalysisRepository, log *zap.Logger) *ScenarioService {
	return &ScenarioService{scenarios: scenarios, analyses: analyses, log: log}
}

// CreateScenarioInput is an accepted scenario creation payload.
type CreateScenarioInput struct {
	AnalysisID  uint
	Name        string
	Description string
	TimePeriod  string
	Parameters  json.RawMessage
	TotalReps   int
}

// UpdateScenarioInput is an accepted scenario metadata update payload.
type UpdateScenarioInput struct {
	Name        string
	Description string
	TimePeriod  string
	Parameters  json.RawMessage
	TotalReps   int
}

// ScenarioQuery selects and pages scenarios for a tenant.
type ScenarioQuery struct {
	AnalysisID   *uint
	OnlyMine     bool
	NameContains string
	State        *model.ScenarioState
	TimePeriod   string
	CreatedFrom  *time.Time
	CreatedTo    *time.Time
	UpdatedFrom  *time.Time
	UpdatedTo    *time.Time
	Page         repository.Page
	Sort         repository.Sort
}

// ScenarioDetail is a scenario together with its effective parameter bag,
// the analysis defaults merged with the scenario's overrides.
type ScenarioDetail struct {
	model.Scenario
	EffectiveParameters map[string]interface{} `json:"effective_parameters,omitempty"`
}

// BulkItemResult reports the outcome of one item of a bulk create.
type BulkItemResult struct {
	Index int    `json:"index"`
	ID    uint   `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
	Code  Code   `json:"code,omitempty"`
}

// BulkCreateResult summarizes a bulk create. One item's failure never aborts
// the batch.
type BulkCreateResult struct {
	Requested int              `json:"requested"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Items     []BulkItemResult `json:"items"`
}

func (s *ScenarioService) Create(ctx context.Context, p Principal, in CreateScenarioInput) (*model.Scenario, error) {
	if in.Name == "" {
		return nil, invalidf("name is required")
	}
	if in.AnalysisID == 0 {
		return nil, invalidf("analysis_id is required")
	}
	if in.TotalReps < 0 {
		return nil, invalidf("total_reps must not be negative")
	}
	analysis, err := s.analyses.GetByID(ctx, p.TenantID, in.AnalysisID)
	if err != nil {
		return nil, lookupErr(err, "analysis")
	}

	taken, err := s.scenarios.NameExists(ctx, p.TenantID, in.AnalysisID, in.Name, 0)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, conflictf("scenario name already in use")
	}

	// The time period is inherited from the analysis unless overridden.
	timePeriod := in.TimePeriod
	if timePeriod == "" {
		timePeriod = analysis.DefaultTimePeriod
	}

	sc := &model.Scenario{
		TenantID:    p.TenantID,
		AnalysisID:  in.AnalysisID,
		Name:        in.Name,
		Description: in.Description,
		State:       model.StateDraft,
		TimePeriod:  timePeriod,
		Parameters:  in.Parameters,
		TotalReps:   in.TotalReps,
		CreatedBy:   p.UserID,
	}
	if err := s.scenarios.Create(ctx, sc); err != nil {
		return nil, writeErr(err, "scenario")
	}
	s.log.Info("scenario created",
		zap.Uint("tenant_id", p.TenantID),
		zap.Uint("analysis_id", sc.AnalysisID),
		zap.Uint("scenario_id", sc.ID),
		zap.String("name", sc.Name))
	return sc, nil
}

// BulkCreate processes creation requests independently, recording a typed
// per-item outcome.
func (s *ScenarioService) BulkCreate(ctx context.Context, p Principal, inputs []CreateScenarioInput) BulkCreateResult {
	result := BulkCreateResult{
		Requested: len(inputs),
		Items:     make([]BulkItemResult, 0, len(inputs)),
	}
	for i, in := range inputs {
		sc, err := s.Create(ctx, p, in)
		if err != nil {
			code := ErrorCode(err)
			if code == "" {
				// Unexpected store failure still gets recorded against the
				// item rather than aborting the batch.
				s.log.Error("bulk scenario create item failed", zap.Int("index", i), zap.Error(err))
			}
			result.Failed++
			result.Items = append(result.Items, BulkItemResult{
				Index: i,
				Error: ErrorMessage(err),
				Code:  code,
			})
			continue
		}
		result.Succeeded++
		result.Items = append(result.Items, BulkItemResult{Index: i, ID: sc.ID})
	}
	return result
}

// Get returns the scenario with its effective parameters merged from the
// parent analysis defaults at read time.
func (s *ScenarioService) Get(ctx context.Context, p Principal, id uint) (*ScenarioDetail, error) {
	sc, err := s.scenarios.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return nil, lookupErr(err, "scenario")
	}
	detail := &ScenarioDetail{Scenario: *sc}
	if analysis, err := s.analyses.GetByID(ctx, p.TenantID, sc.AnalysisID); err == nil {
		merged, err := mergeParameters(analysis.DefaultParameters, sc.Parameters)
		if err != nil {
			return nil, err
		}
		detail.EffectiveParameters = merged
	}
	return detail, nil
}

func (s *ScenarioService) List(ctx context.Context, p Principal, q ScenarioQuery) ([]model.Scenario, int64, error) {
	f := repository.ScenarioFilter{
		TenantID:     p.TenantID,
		AnalysisID:   q.AnalysisID,
		NameContains: q.NameContains,
		State:        q.State,
		TimePeriod:   q.TimePeriod,
		CreatedFrom:  q.CreatedFrom,
		CreatedTo:    q.CreatedTo,
		UpdatedFrom:  q.UpdatedFrom,
		UpdatedTo:    q.UpdatedTo,
	}
	if q.OnlyMine {
		f.CreatedBy = &p.UserID
	}
	scenarios, err := s.scenarios.List(ctx, f, q.Page, q.Sort)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.scenarios.Count(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return scenarios, total, nil
}

// Update edits scenario metadata. Only the creator may update, and only
// while the scenario is not executing.
func (s *ScenarioService) Update(ctx context.Context, p Principal, id uint, in UpdateScenarioInput) (*model.Scenario, error) {
	sc, err := s.scenarios.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return nil, lookupErr(err, "scenario")
	}
	if sc.CreatedBy != p.UserID {
		return nil, forbiddenf("only the creator may update this scenario")
	}
	if sc.State.Executing() {
		return nil, invalidStatef("scenario is %s and cannot be edited", sc.State)
	}
	if in.Name == "" {
		return nil, invalidf("name is required")
	}
	if in.TotalReps < 0 {
		return nil, invalidf("total_reps must not be negative")
	}
	if in.Name != sc.Name {
		taken, err := s.scenarios.NameExists(ctx, p.TenantID, sc.AnalysisID, in.Name, sc.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, conflictf("scenario name already in use")
		}
	}

	sc.Name = in.Name
	sc.Description = in.Description
	if in.TimePeriod != "" {
		sc.TimePeriod = in.TimePeriod
	}
	sc.Parameters = in.Parameters
	sc.TotalReps = in.TotalReps
	if err := s.scenarios.Update(ctx, sc); err != nil {
		return nil, writeErr(err, "scenario")
	}
	s.log.Info("scenario updated",
		zap.Uint("tenant_id", p.TenantID),
		zap.Uint("scenario_id", sc.ID))
	return sc, nil
}

// Delete soft-deletes a scenario. Rejected while the run is in flight; the
// caller must cancel first and wait for a terminal state.
func (s *ScenarioService) Delete(ctx context.Context, p Principal, id uint) error {
	sc, err := s.scenarios.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return lookupErr(err, "scenario")
	}
	if sc.CreatedBy != p.UserID {
		return forbiddenf("only the creator may delete this scenario")
	}
	if sc.State.Executing() {
		return invalidStatef("scenario is %s; cancel the run before deleting", sc.State)
	}
	if err := s.scenarios.SoftDelete(ctx, p.TenantID, id); err != nil {
		return lookupErr(err, "scenario")
	}
	s.log.Info("scenario deleted",
		zap.Uint("tenant_id", p.TenantID),
		zap.Uint("scenario_id", id))
	return nil
}

// Copy duplicates a scenario, optionally re-targeting it to a different
// analysis. The copy never carries execution state: it starts in draft with
// all timing and error fields unset.
func (s *ScenarioService) Copy(ctx context.Context, p Principal, id uint, newName string, targetAnalysisID *uint) (*model.Scenario, error) {
	src, err := s.scenarios.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return nil, lookupErr(err, "scenario")
	}
	analysisID := src.AnalysisID
	if targetAnalysisID != nil {
		analysisID = *targetAnalysisID
	}
	name, err := copyName(newName, src.Name, func(candidate string) (bool, error) {
		return s.scenarios.NameExists(ctx, p.TenantID, analysisID, candidate, 0)
	})
	if err != nil {
		return nil, err
	}
	return s.Create(ctx, p, CreateScenarioInput{
		AnalysisID:  analysisID,
		Name:        name,
		Description: src.Description,
		TimePeriod:  src.TimePeriod,
		Parameters:  src.Parameters,
		TotalReps:   src.TotalReps,
	})
}
