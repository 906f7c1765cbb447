package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/repository"
	"go.uber.org/zap"
)

// LifecycleService governs scenario execution state transitions.
//
//	draft -> ready_to_run -> is_running -> ran_success | ran_with_errors
//	                         is_running -> cancelling -> cancelled
//
// Every transition is a compare-and-swap against the store, so concurrent
// attempts on the same scenario resolve to exactly one winner. Cancellation
// is cooperative: Cancel only flips the state and the external engine is
// expected to observe it and eventually report completion. A cancelling
// scenario stays cancelling until that report arrives; no timeout is
// imposed here.
type LifecycleService struct {
	scenarios repository.ScenarioRepository
	analyses  repository.AnalysisRepository
	models    repository.ModelRepository
	clock     clock.Clock
	log       *zap.Logger
}

func NewLifecycleService(
	scenarios repository.ScenarioRepository,
	analyses repository.AnalysisRepository,
	models repository.ModelRepository,
	clk clock.Clock,
	log *zap.Logger,
) *LifecycleService {
	return &LifecycleService{
		scenarios: scenarios,
		analyses:  analyses,
		models:    models,
		clock:     clk,
		log:       log,
	}
}

// ScenarioStatus is a read-only progress snapshot derived purely from stored
// fields. Safe to poll at arbitrary frequency.
type ScenarioStatus struct {
	ScenarioID           uint                `json:"scenario_id"`
	State                model.ScenarioState `json:"state"`
	Terminal             bool                `json:"terminal"`
	CurrentRep           int                 `json:"current_rep"`
	TotalReps            int                 `json:"total_reps"`
	ProgressPercentage   *float64            `json:"progress_percentage,omitempty"`
	ElapsedMs            *int64              `json:"elapsed_ms,omitempty"`
	EstimatedRemainingMs *int64              `json:"estimated_remaining_ms,omitempty"`
	HasError             bool                `json:"has_error"`
	ErrorMessage         *string             `json:"error_message,omitempty"`
	StartedAt            *time.Time          `json:"started_at,omitempty"`
	CompletedAt          *time.Time          `json:"completed_at,omitempty"`
}

// Prepare moves a draft scenario to ready_to_run. The merged parameter bag
// (analysis defaults overlaid with scenario overrides) must be complete and
// the ancestry must still be active. No timing fields are touched.
func (s *LifecycleService) Prepare(ctx context.Context, p Principal, id uint) (*model.Scenario, error) {
	sc, err := s.scenarios.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return nil, lookupErr(err, "scenario")
	}
	if sc.State != model.StateDraft {
		return nil, invalidStatef("scenario is %s; only draft scenarios can be prepared", sc.State)
	}

	analysis, err := s.analyses.GetByID(ctx, p.TenantID, sc.AnalysisID)
	if err != nil {
		return nil, lookupErr(err, "analysis")
	}
	if _, err := s.models.GetByID(ctx, p.TenantID, analysis.ModelID); err != nil {
		return nil, lookupErr(err, "model")
	}

	merged, err := mergeParameters(analysis.DefaultParameters, sc.Parameters)
	if err != nil {
		return nil, invalidf("invalid parameters: %v", err)
	}
	if len(merged) == 0 {
		return nil, invalidStatef("scenario has no resolvable parameters")
	}
	if missing := incompleteKeys(merged); len(missing) > 0 {
		return nil, invalidStatef("parameters unresolved: %s", strings.Join(missing, ", "))
	}
	if _, ok := replicationCount(merged); !ok && sc.TotalReps < 1 {
		return nil, invalidStatef("replication count unresolved")
	}

	if err := s.transition(ctx, p, id, model.StateDraft, map[string]interface{}{
		"state": model.StateReadyToRun,
	}); err != nil {
		return nil, err
	}
	return s.scenarios.GetByID(ctx, p.TenantID, id)
}

// Start moves a ready scenario to is_running, stamping started_at and
// resetting progress. totalReps comes from the request, falling back to the
// inherited replication count. Starting an already-running scenario is
// rejected, not silently accepted.
func (s *LifecycleService) Start(ctx context.Context, p Principal, id uint, totalReps int) (*model.Scenario, error) {
	if totalReps < 0 {
		return nil, invalidf("total_reps must not be negative")
	}
	sc, err := s.scenarios.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return nil, lookupErr(err, "scenario")
	}

	if totalReps == 0 {
		totalReps = s.defaultReps(ctx, p, sc)
	}

	now := s.clock.Now()
	progress := 0.0
	err = s.transition(ctx, p, id, model.StateReadyToRun, map[string]interface{}{
		"state":               model.StateIsRunning,
		"started_at":          now,
		"completed_at":        nil,
		"execution_time_ms":   nil,
		"current_rep":         0,
		"total_reps":          totalReps,
		"progress_percentage": progress,
		"error_message":       nil,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("scenario started",
		zap.Uint("tenant_id", p.TenantID),
		zap.Uint("scenario_id", id),
		zap.Int("total_reps", totalReps))
	return s.scenarios.GetByID(ctx, p.TenantID, id)
}

// defaultReps resolves the replication count for a start request that did
// not supply one: scenario total_reps, then the merged replications
// parameter, then a single replication.
func (s *LifecycleService) defaultReps(ctx context.Context, p Principal, sc *model.Scenario) int {
	if sc.TotalReps > 0 {
		return sc.TotalReps
	}
	if analysis, err := s.analyses.GetByID(ctx, p.TenantID, sc.AnalysisID); err == nil {
		if merged, err := mergeParameters(analysis.DefaultParameters, sc.Parameters); err == nil {
			if reps, ok := replicationCount(merged); ok {
				return reps
			}
		}
	}
	return 1
}

// UpdateProgress records a progress report from the external engine. Legal
// only while running; current_rep is monotonic within a run and the
// percentage is clamped to [0,100]. Out-of-order reports are rejected.
func (s *LifecycleService) UpdateProgress(ctx context.Context, p Principal, id uint, currentRep int, progress float64) (*model.Scenario, error) {
	if currentRep < 0 {
		return nil, invalidf("current_rep must not be negative")
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	err := s.scenarios.UpdateProgress(ctx, p.TenantID, id, currentRep, progress)
	switch {
	case err == nil:
		return s.scenarios.GetByID(ctx, p.TenantID, id)
	case errors.Is(err, repository.ErrStateMismatch):
		return nil, invalidStatef("progress report rejected: scenario not running or report out of order")
	default:
		return nil, lookupErr(err, "scenario")
	}
}

// Complete records the terminal outcome reported by the engine. A running
// scenario lands in ran_success, or ran_with_errors when an error payload
// accompanies the report. A cancelling scenario always lands in cancelled,
// even if the final report carries an error: the cancel request wins.
func (s *LifecycleService) Complete(ctx context.Context, p Principal, id uint, errorMessage string) (*model.Scenario, error) {
	sc, err := s.scenarios.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return nil, lookupErr(err, "scenario")
	}

	var target model.ScenarioState
	switch sc.State {
	case model.StateIsRunning:
		if errorMessage != "" {
			target = model.StateRanWithErrors
		} else {
			target = model.StateRanSuccess
		}
	case model.StateCancelling:
		target = model.StateCancelled
	default:
		return nil, invalidStatef("scenario is %s and cannot complete", sc.State)
	}

	now := s.clock.Now()
	updates := map[string]interface{}{
		"state":        target,
		"completed_at": now,
	}
	if sc.StartedAt != nil {
		updates["execution_time_ms"] = now.Sub(*sc.StartedAt).Milliseconds()
	}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}
	if err := s.transition(ctx, p, id, sc.State, updates); err != nil {
		return nil, err
	}
	s.log.Info("scenario completed",
		zap.Uint("tenant_id", p.TenantID),
		zap.Uint("scenario_id", id),
		zap.String("state", string(target)))
	return s.scenarios.GetByID(ctx, p.TenantID, id)
}

// Cancel requests cooperative cancellation of a running scenario. It flips
// the state to cancelling and returns immediately; it does not stop the
// external computation or wait for acknowledgement.
func (s *LifecycleService) Cancel(ctx context.Context, p Principal, id uint) (*model.Scenario, error) {
	if err := s.transition(ctx, p, id, model.StateIsRunning, map[string]interface{}{
		"state": model.StateCancelling,
	}); err != nil {
		return nil, err
	}
	s.log.Info("scenario cancellation requested",
		zap.Uint("tenant_id", p.TenantID),
		zap.Uint("scenario_id", id))
	return s.scenarios.GetByID(ctx, p.TenantID, id)
}

// Status derives a progress snapshot from stored fields. It performs no
// side effects.
func (s *LifecycleService) Status(ctx context.Context, p Principal, id uint) (*ScenarioStatus, error) {
	sc, err := s.scenarios.GetByID(ctx, p.TenantID, id)
	if err != nil {
		return nil, lookupErr(err, "scenario")
	}

	status := &ScenarioStatus{
		ScenarioID:         sc.ID,
		State:              sc.State,
		Terminal:           sc.State.Terminal(),
		CurrentRep:         sc.CurrentRep,
		TotalReps:          sc.TotalReps,
		ProgressPercentage: sc.ProgressPercentage,
		HasError:           sc.ErrorMessage != nil,
		ErrorMessage:       sc.ErrorMessage,
		StartedAt:          sc.StartedAt,
		CompletedAt:        sc.CompletedAt,
	}

	switch {
	case sc.State.Terminal():
		status.ElapsedMs = sc.ExecutionTimeMs
	case sc.StartedAt != nil:
		elapsed := s.clock.Now().Sub(*sc.StartedAt).Milliseconds()
		status.ElapsedMs = &elapsed
		if sc.ProgressPercentage != nil && *sc.ProgressPercentage > 0 {
			remaining := int64(float64(elapsed) * (100 - *sc.ProgressPercentage) / *sc.ProgressPercentage)
			status.EstimatedRemainingMs = &remaining
		}
	}
	return status, nil
}

// transition runs one compare-and-swap and translates the outcome.
func (s *LifecycleService) transition(ctx context.Context, p Principal, id uint, from model.ScenarioState, updates map[string]interface{}) error {
	err := s.scenarios.CompareAndSwapState(ctx, p.TenantID, id, from, updates)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStateMismatch):
		return invalidStatef("scenario is no longer %s", from)
	default:
		return lookupErr(err, "scenario")
	}
}
