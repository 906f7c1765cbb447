package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/repository"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/cache"
	"go.uber.org/zap"
)

// recentLimit is how many recently-active parents a summary reports.
const recentLimit = 5

// StatsService computes read-only aggregates over a tenant's entities.
// Soft-deleted rows are absent from every aggregate. Results may be served
// from a short-TTL cache since the underlying queries are polled frequently
// by dashboards.
type StatsService struct {
	models    repository.ModelRepository
	analyses  repository.AnalysisRepository
	scenarios repository.ScenarioRepository
	kv        cache.KVStore // nil disables caching
	ttl       time.Duration
	log       *zap.Logger
}

func NewStatsService(
	models repository.ModelRepository,
	analyses repository.AnalysisRepository,
	scenarios repository.ScenarioRepository,
	kv cache.KVStore,
	ttl time.Duration,
	log *zap.Logger,
) *StatsService {
	return &StatsService{
		models:    models,
		analyses:  analyses,
		scenarios: scenarios,
		kv:        kv,
		ttl:       ttl,
		log:       log,
	}
}

// RecentModel is a recency entry for a model.
type RecentModel struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecentAnalysis is a recency entry for an analysis.
type RecentAnalysis struct {
	ID        uint      `json:"id"`
	ModelID   uint      `json:"model_id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OutcomeStats summarizes terminal scenario runs. Cancelled runs count as
// failures.
type OutcomeStats struct {
	Succeeded   int64   `json:"succeeded"`
	Failed      int64   `json:"failed"`
	Terminal    int64   `json:"terminal"`
	SuccessRate float64 `json:"success_rate"`
}

// TenantStats is the full per-tenant summary.
type TenantStats struct {
	TotalModels           int64                    `json:"total_models"`
	TotalAnalyses         int64                    `json:"total_analyses"`
	TotalScenarios        int64                    `json:"total_scenarios"`
	ScenariosByState      []repository.StateCount  `json:"scenarios_by_state"`
	AnalysesByTimePeriod  []repository.BucketCount `json:"analyses_by_time_period"`
	ScenariosByTimePeriod []repository.BucketCount `json:"scenarios_by_time_period"`
	RecentModels          []RecentModel            `json:"recent_models"`
	RecentAnalyses        []RecentAnalysis         `json:"recent_analyses"`
	Outcomes              OutcomeStats             `json:"outcomes"`
}

// TenantStatistics computes the summary for a tenant, optionally narrowed to
// one analysis's scenarios.
func (s *StatsService) TenantStatistics(ctx context.Context, p Principal, analysisID *uint) (*TenantStats, error) {
	key := statsKey(p.TenantID, analysisID)
	if cached, ok := s.cachedStats(ctx, key); ok {
		return cached, nil
	}

	stats := &TenantStats{}
	var err error

	if stats.TotalModels, err = s.models.Count(ctx, repository.ModelFilter{TenantID: p.TenantID}); err != nil {
		return nil, err
	}
	analysisFilter := repository.AnalysisFilter{TenantID: p.TenantID}
	scenarioFilter := repository.ScenarioFilter{TenantID: p.TenantID, AnalysisID: analysisID}
	if stats.TotalAnalyses, err = s.analyses.Count(ctx, analysisFilter); err != nil {
		return nil, err
	}
	if stats.TotalScenarios, err = s.scenarios.Count(ctx, scenarioFilter); err != nil {
		return nil, err
	}

	if stats.ScenariosByState, err = s.scenarios.CountByState(ctx, p.TenantID, analysisID); err != nil {
		return nil, err
	}
	if stats.AnalysesByTimePeriod, err = s.analyses.CountByTimePeriod(ctx, p.TenantID, nil); err != nil {
		return nil, err
	}
	if stats.ScenariosByTimePeriod, err = s.scenarios.CountByTimePeriod(ctx, p.TenantID, analysisID); err != nil {
		return nil, err
	}

	recentModels, err := s.models.MostRecentlyUpdated(ctx, p.TenantID, recentLimit)
	if err != nil {
		return nil, err
	}
	for _, m := range recentModels {
		stats.RecentModels = append(stats.RecentModels, RecentModel{ID: m.ID, Name: m.Name, UpdatedAt: m.UpdatedAt})
	}
	recentAnalyses, err := s.analyses.MostRecentlyUpdated(ctx, p.TenantID, recentLimit)
	if err != nil {
		return nil, err
	}
	for _, a := range recentAnalyses {
		stats.RecentAnalyses = append(stats.RecentAnalyses, RecentAnalysis{ID: a.ID, ModelID: a.ModelID, Name: a.Name, UpdatedAt: a.UpdatedAt})
	}

	stats.Outcomes = outcomesFromStateCounts(stats.ScenariosByState)

	s.storeStats(ctx, key, stats)
	return stats, nil
}

// outcomesFromStateCounts derives success/failure rates among terminal runs.
func outcomesFromStateCounts(counts []repository.StateCount) OutcomeStats {
	var out OutcomeStats
	for _, c := range counts {
		switch c.State {
		case model.StateRanSuccess:
			out.Succeeded += c.Count
		case model.StateRanWithErrors, model.StateCancelled:
			out.Failed += c.Count
		}
	}
	out.Terminal = out.Succeeded + out.Failed
	if out.Terminal > 0 {
		out.SuccessRate = 100 * float64(out.Succeeded) / float64(out.Terminal)
	}
	return out
}

func statsKey(tenantID uint, analysisID *uint) string {
	if analysisID != nil {
		return fmt.Sprintf("stats:tenant:%d:analysis:%d", tenantID, *analysisID)
	}
	return fmt.Sprintf("stats:tenant:%d", tenantID)
}

// cachedStats consults the cache. Cache failures are logged and treated as
// misses; the aggregate is always recomputable.
func (s *StatsService) cachedStats(ctx context.Context, key string) (*TenantStats, bool) {
	if s.kv == nil {
		return nil, false
	}
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if err != cache.ErrCacheMiss {
			s.log.Warn("stats cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var stats TenantStats
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		s.log.Warn("stats cache entry corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &stats, true
}

func (s *StatsService) storeStats(ctx context.Context, key string, stats *TenantStats) {
	if s.kv == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.kv.Set(ctx, key, string(raw), s.ttl); err != nil {
		s.log.Warn("stats cache write failed", zap.String("key", key), zap.Error(err))
	}
}
