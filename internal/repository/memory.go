package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"gorm.io/gorm"
)

// In-memory repositories back unit tests and DB-disabled development mode.
// They enforce the same contracts as the PostgreSQL implementations: tenant
// scoping, soft-delete exclusion, name uniqueness among active siblings and
// atomic compare-and-swap state transitions.

func deletedAt(t time.Time) gorm.DeletedAt {
	return gorm.DeletedAt{Time: t, Valid: true}
}

func matchTime(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}

func matchName(name, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(substr))
}

// sortKey orders rows by the normalized sort column with ID as tie-breaker
// so pages stay consistent across calls.
func sortKey(column string, ascending bool, name string, created, updated time.Time, id uint) func(name2 string, created2, updated2 time.Time, id2 uint) bool {
	return func(name2 string, created2, updated2 time.Time, id2 uint) bool {
		var less bool
		var equal bool
		switch column {
		case "name":
			less, equal = name < name2, name == name2
		case "updated_at":
			less, equal = updated.Before(updated2), updated.Equal(updated2)
		default:
			less, equal = created.Before(created2), created.Equal(created2)
		}
		if equal {
			less = id < id2
		}
		if ascending {
			return less
		}
		return !less && !equal || (equal && id > id2)
	}
}

func pageSlice[T any](items []T, page Page) []T {
	page = page.Normalize()
	if page.Skip >= len(items) {
		return nil
	}
	end := page.Skip + page.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[page.Skip:end]
}

// --- models ---

// MemoryModelRepository is an in-memory ModelRepository.
type MemoryModelRepository struct {
	mu     sync.RWMutex
	rows   map[uint]model.SimulationModel
	nextID uint
}

func NewMemoryModelRepository() *MemoryModelRepository {
	return &MemoryModelRepository{rows: map[uint]model.SimulationModel{}, nextID: 1}
}

func (r *MemoryModelRepository) Create(_ context.Context, m *model.SimulationModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if !row.DeletedAt.Valid && row.TenantID == m.TenantID && row.Name == m.Name {
			return ErrDuplicate
		}
	}
	now := time.Now()
	m.ID = r.nextID
	r.nextID++
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Version == 0 {
		m.Version = 1
	}
	r.rows[m.ID] = *m
	return nil
}

func (r *MemoryModelRepository) GetByID(_ context.Context, tenantID, id uint) (*model.SimulationModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok || row.DeletedAt.Valid || row.TenantID != tenantID {
		return nil, ErrNotFound
	}
	out := row
	return &out, nil
}

func (r *MemoryModelRepository) Update(_ context.Context, m *model.SimulationModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[m.ID]
	if !ok || row.DeletedAt.Valid || row.TenantID != m.TenantID {
		return ErrNotFound
	}
	for _, other := range r.rows {
		if other.ID != m.ID && !other.DeletedAt.Valid && other.TenantID == m.TenantID && other.Name == m.Name {
			return ErrDuplicate
		}
	}
	row.Name = m.Name
	row.Source = m.Source
	row.Description = m.Description
	row.Version = m.Version
	row.IsTemplate = m.IsTemplate
	row.UpdatedAt = time.Now()
	r.rows[m.ID] = row
	return nil
}

func (r *MemoryModelRepository) SoftDelete(_ context.Context, tenantID, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.DeletedAt.Valid || row.TenantID != tenantID {
		return ErrNotFound
	}
	row.DeletedAt = deletedAt(time.Now())
	r.rows[id] = row
	return nil
}

func (r *MemoryModelRepository) matches(row model.SimulationModel, f ModelFilter) bool {
	if row.DeletedAt.Valid || row.TenantID != f.TenantID {
		return false
	}
	if f.CreatedBy != nil && row.CreatedBy != *f.CreatedBy {
		return false
	}
	if f.Source != nil && row.Source != *f.Source {
		return false
	}
	if f.IsTemplate != nil && row.IsTemplate != *f.IsTemplate {
		return false
	}
	if !matchName(row.Name, f.NameContains) {
		return false
	}
	return matchTime(row.CreatedAt, f.CreatedFrom, f.CreatedTo) &&
		matchTime(row.UpdatedAt, f.UpdatedFrom, f.UpdatedTo)
}

func (r *MemoryModelRepository) List(_ context.Context, f ModelFilter, page Page, s Sort) ([]model.SimulationModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s = s.Normalize()
	var all []model.SimulationModel
	for _, row := range r.rows {
		if r.matches(row, f) {
			all = append(all, row)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		return sortKey(s.Column, s.Ascending, a.Name, a.CreatedAt, a.UpdatedAt, a.ID)(b.Name, b.CreatedAt, b.UpdatedAt, b.ID)
	})
	return pageSlice(all, page), nil
}

func (r *MemoryModelRepository) Count(_ context.Context, f ModelFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, row := range r.rows {
		if r.matches(row, f) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryModelRepository) NameExists(_ context.Context, tenantID uint, name string, excludeID uint) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, row := range r.rows {
		if !row.DeletedAt.Valid && row.TenantID == tenantID && row.Name == name && row.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryModelRepository) MostRecentlyUpdated(_ context.Context, tenantID uint, limit int) ([]model.SimulationModel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []model.SimulationModel
	for _, row := range r.rows {
		if !row.DeletedAt.Valid && row.TenantID == tenantID {
			all = append(all, row)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// --- analyses ---

// MemoryAnalysisRepository is an in-memory AnalysisRepository.
type MemoryAnalysisRepository struct {
	mu     sync.RWMutex
	rows   map[uint]model.Analysis
	nextID uint
}

func NewMemoryAnalysisRepository() *MemoryAnalysisRepository {
	return &MemoryAnalysisRepository{rows: map[uint]model.Analysis{}, nextID: 1}
}

func (r *MemoryAnalysisRepository) Create(_ context.Context, a *model.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if !row.DeletedAt.Valid && row.TenantID == a.TenantID && row.ModelID == a.ModelID && row.Name == a.Name {
			return ErrDuplicate
		}
	}
	now := time.Now()
	a.ID = r.nextID
	r.nextID++
	a.CreatedAt = now
	a.UpdatedAt = now
	r.rows[a.ID] = *a
	return nil
}

func (r *MemoryAnalysisRepository) GetByID(_ context.Context, tenantID, id uint) (*model.Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok || row.DeletedAt.Valid || row.TenantID != tenantID {
		return nil, ErrNotFound
	}
	out := row
	return &out, nil
}

func (r *MemoryAnalysisRepository) Update(_ context.Context, a *model.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[a.ID]
	if !ok || row.DeletedAt.Valid || row.TenantID != a.TenantID {
		return ErrNotFound
	}
	for _, other := range r.rows {
		if other.ID != a.ID && !other.DeletedAt.Valid && other.TenantID == a.TenantID &&
			other.ModelID == row.ModelID && other.Name == a.Name {
			return ErrDuplicate
		}
	}
	row.Name = a.Name
	row.Description = a.Description
	row.DefaultTimePeriod = a.DefaultTimePeriod
	row.DefaultParameters = a.DefaultParameters
	row.UpdatedAt = time.Now()
	r.rows[a.ID] = row
	return nil
}

func (r *MemoryAnalysisRepository) SoftDelete(_ context.Context, tenantID, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.DeletedAt.Valid || row.TenantID != tenantID {
		return ErrNotFound
	}
	row.DeletedAt = deletedAt(time.Now())
	r.rows[id] = row
	return nil
}

func (r *MemoryAnalysisRepository) matches(row model.Analysis, f AnalysisFilter) bool {
	if row.DeletedAt.Valid || row.TenantID != f.TenantID {
		return false
	}
	if f.ModelID != nil && row.ModelID != *f.ModelID {
		return false
	}
	if f.CreatedBy != nil && row.CreatedBy != *f.CreatedBy {
		return false
	}
	if f.TimePeriod != "" && row.DefaultTimePeriod != f.TimePeriod {
		return false
	}
	if !matchName(row.Name, f.NameContains) {
		return false
	}
	return matchTime(row.CreatedAt, f.CreatedFrom, f.CreatedTo) &&
		matchTime(row.UpdatedAt, f.UpdatedFrom, f.UpdatedTo)
}

func (r *MemoryAnalysisRepository) List(_ context.Context, f AnalysisFilter, page Page, s Sort) ([]model.Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s = s.Normalize()
	var all []model.Analysis
	for _, row := range r.rows {
		if r.matches(row, f) {
			all = append(all, row)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		return sortKey(s.Column, s.Ascending, a.Name, a.CreatedAt, a.UpdatedAt, a.ID)(b.Name, b.CreatedAt, b.UpdatedAt, b.ID)
	})
	return pageSlice(all, page), nil
}

func (r *MemoryAnalysisRepository) Count(_ context.Context, f AnalysisFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, row := range r.rows {
		if r.matches(row, f) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryAnalysisRepository) NameExists(_ context.Context, tenantID, modelID uint, name string, excludeID uint) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, row := range r.rows {
		if !row.DeletedAt.Valid && row.TenantID == tenantID && row.ModelID == modelID &&
			row.Name == name && row.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryAnalysisRepository) CountByTimePeriod(_ context.Context, tenantID uint, modelID *uint) ([]BucketCount, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	buckets := map[string]int64{}
	for _, row := range r.rows {
		if row.DeletedAt.Valid || row.TenantID != tenantID {
			continue
		}
		if modelID != nil && row.ModelID != *modelID {
			continue
		}
		buckets[row.DefaultTimePeriod]++
	}
	return bucketCounts(buckets), nil
}

func (r *MemoryAnalysisRepository) MostRecentlyUpdated(_ context.Context, tenantID uint, limit int) ([]model.Analysis, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []model.Analysis
	for _, row := range r.rows {
		if !row.DeletedAt.Valid && row.TenantID == tenantID {
			all = append(all, row)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].UpdatedAt.After(all[j].UpdatedAt) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func bucketCounts(buckets map[string]int64) []BucketCount {
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]BucketCount, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, BucketCount{Bucket: k, Count: buckets[k]})
	}
	return rows
}

// --- scenarios ---

// MemoryScenarioRepository is an in-memory ScenarioRepository.
type MemoryScenarioRepository struct {
	mu     sync.Mutex
	rows   map[uint]model.Scenario
	nextID uint
}

func NewMemoryScenarioRepository() *MemoryScenarioRepository {
	return &MemoryScenarioRepository{rows: map[uint]model.Scenario{}, nextID: 1}
}

func (r *MemoryScenarioRepository) Create(_ context.Context, s *model.Scenario) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if !row.DeletedAt.Valid && row.TenantID == s.TenantID && row.AnalysisID == s.AnalysisID && row.Name == s.Name {
			return ErrDuplicate
		}
	}
	now := time.Now()
	s.ID = r.nextID
	r.nextID++
	s.CreatedAt = now
	s.UpdatedAt = now
	if s.State == "" {
		s.State = model.StateDraft
	}
	r.rows[s.ID] = *s
	return nil
}

func (r *MemoryScenarioRepository) GetByID(_ context.Context, tenantID, id uint) (*model.Scenario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(tenantID, id)
}

func (r *MemoryScenarioRepository) getLocked(tenantID, id uint) (*model.Scenario, error) {
	row, ok := r.rows[id]
	if !ok || row.DeletedAt.Valid || row.TenantID != tenantID {
		return nil, ErrNotFound
	}
	out := row
	return &out, nil
}

func (r *MemoryScenarioRepository) Update(_ context.Context, s *model.Scenario) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[s.ID]
	if !ok || row.DeletedAt.Valid || row.TenantID != s.TenantID {
		return ErrNotFound
	}
	for _, other := range r.rows {
		if other.ID != s.ID && !other.DeletedAt.Valid && other.TenantID == s.TenantID &&
			other.AnalysisID == row.AnalysisID && other.Name == s.Name {
			return ErrDuplicate
		}
	}
	row.Name = s.Name
	row.Description = s.Description
	row.TimePeriod = s.TimePeriod
	row.Parameters = s.Parameters
	row.TotalReps = s.TotalReps
	row.UpdatedAt = time.Now()
	r.rows[s.ID] = row
	return nil
}

func (r *MemoryScenarioRepository) SoftDelete(_ context.Context, tenantID, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.DeletedAt.Valid || row.TenantID != tenantID {
		return ErrNotFound
	}
	row.DeletedAt = deletedAt(time.Now())
	r.rows[id] = row
	return nil
}

func (r *MemoryScenarioRepository) matches(row model.Scenario, f ScenarioFilter) bool {
	if row.DeletedAt.Valid || row.TenantID != f.TenantID {
		return false
	}
	if f.AnalysisID != nil && row.AnalysisID != *f.AnalysisID {
		return false
	}
	if f.CreatedBy != nil && row.CreatedBy != *f.CreatedBy {
		return false
	}
	if f.State != nil && row.State != *f.State {
		return false
	}
	if f.TimePeriod != "" && row.TimePeriod != f.TimePeriod {
		return false
	}
	if !matchName(row.Name, f.NameContains) {
		return false
	}
	return matchTime(row.CreatedAt, f.CreatedFrom, f.CreatedTo) &&
		matchTime(row.UpdatedAt, f.UpdatedFrom, f.UpdatedTo)
}

func (r *MemoryScenarioRepository) List(_ context.Context, f ScenarioFilter, page Page, s Sort) ([]model.Scenario, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s = s.Normalize()
	var all []model.Scenario
	for _, row := range r.rows {
		if r.matches(row, f) {
			all = append(all, row)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		return sortKey(s.Column, s.Ascending, a.Name, a.CreatedAt, a.UpdatedAt, a.ID)(b.Name, b.CreatedAt, b.UpdatedAt, b.ID)
	})
	return pageSlice(all, page), nil
}

func (r *MemoryScenarioRepository) Count(_ context.Context, f ScenarioFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, row := range r.rows {
		if r.matches(row, f) {
			n++
		}
	}
	return n, nil
}

func (r *MemoryScenarioRepository) NameExists(_ context.Context, tenantID, analysisID uint, name string, excludeID uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if !row.DeletedAt.Valid && row.TenantID == tenantID && row.AnalysisID == analysisID &&
			row.Name == name && row.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

// CompareAndSwapState checks and writes under a single lock acquisition,
// mirroring the atomic UPDATE of the PostgreSQL implementation.
func (r *MemoryScenarioRepository) CompareAndSwapState(_ context.Context, tenantID, id uint, from model.ScenarioState, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.DeletedAt.Valid || row.TenantID != tenantID {
		return ErrNotFound
	}
	if row.State != from {
		return ErrStateMismatch
	}
	applyScenarioUpdates(&row, updates)
	row.UpdatedAt = time.Now()
	r.rows[id] = row
	return nil
}

func (r *MemoryScenarioRepository) UpdateProgress(_ context.Context, tenantID, id uint, currentRep int, progress float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok || row.DeletedAt.Valid || row.TenantID != tenantID {
		return ErrNotFound
	}
	if row.State != model.StateIsRunning || currentRep < row.CurrentRep || currentRep > row.TotalReps {
		return ErrStateMismatch
	}
	row.CurrentRep = currentRep
	row.ProgressPercentage = &progress
	row.UpdatedAt = time.Now()
	r.rows[id] = row
	return nil
}

func (r *MemoryScenarioRepository) CountByState(_ context.Context, tenantID uint, analysisID *uint) ([]StateCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[model.ScenarioState]int64{}
	for _, row := range r.rows {
		if row.DeletedAt.Valid || row.TenantID != tenantID {
			continue
		}
		if analysisID != nil && row.AnalysisID != *analysisID {
			continue
		}
		counts[row.State]++
	}
	states := make([]string, 0, len(counts))
	for s := range counts {
		states = append(states, string(s))
	}
	sort.Strings(states)
	rows := make([]StateCount, 0, len(states))
	for _, s := range states {
		rows = append(rows, StateCount{State: model.ScenarioState(s), Count: counts[model.ScenarioState(s)]})
	}
	return rows, nil
}

func (r *MemoryScenarioRepository) CountByTimePeriod(_ context.Context, tenantID uint, analysisID *uint) ([]BucketCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	buckets := map[string]int64{}
	for _, row := range r.rows {
		if row.DeletedAt.Valid || row.TenantID != tenantID {
			continue
		}
		if analysisID != nil && row.AnalysisID != *analysisID {
			continue
		}
		buckets[row.TimePeriod]++
	}
	return bucketCounts(buckets), nil
}

// applyScenarioUpdates mirrors the column-keyed update maps used by the
// PostgreSQL implementation.
func applyScenarioUpdates(row *model.Scenario, updates map[string]interface{}) {
	for column, value := range updates {
		switch column {
		case "state":
			row.State = value.(model.ScenarioState)
		case "current_rep":
			row.CurrentRep = value.(int)
		case "total_reps":
			row.TotalReps = value.(int)
		case "progress_percentage":
			switch v := value.(type) {
			case nil:
				row.ProgressPercentage = nil
			case float64:
				row.ProgressPercentage = &v
			case *float64:
				row.ProgressPercentage = v
			}
		case "started_at":
			switch v := value.(type) {
			case nil:
				row.StartedAt = nil
			case time.Time:
				row.StartedAt = &v
			case *time.Time:
				row.StartedAt = v
			}
		case "completed_at":
			switch v := value.(type) {
			case nil:
				row.CompletedAt = nil
			case time.Time:
				row.CompletedAt = &v
			case *time.Time:
				row.CompletedAt = v
			}
		case "execution_time_ms":
			switch v := value.(type) {
			case nil:
				row.ExecutionTimeMs = nil
			case int64:
				row.ExecutionTimeMs = &v
			case *int64:
				row.ExecutionTimeMs = v
			}
		case "error_message":
			switch v := value.(type) {
			case nil:
				row.ErrorMessage = nil
			case string:
				row.ErrorMessage = &v
			case *string:
				row.ErrorMessage = v
			}
		}
	}
}
