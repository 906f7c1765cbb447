package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioPaginationIsStable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.seedModel(t, alice, "clinic")
	a := env.seedAnalysis(t, alice, m.ID, "baseline")
	for i := 1; i <= 5; i++ {
		env.seedScenario(t, alice, a.ID, fmt.Sprintf("run %02d", i))
	}

	sort := repository.Sort{Column: "name", Ascending: true}
	page1, total, err := env.scenarioSvc.List(ctx, alice, ScenarioQuery{
		Page: repository.Page{Skip: 0, Limit: 2}, Sort: sort,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total, "total reflects the full result set, not the page")
	require.Len(t, page1, 2)

	page2, total, err := env.scenarioSvc.List(ctx, alice, ScenarioQuery{
		Page: repository.Page{Skip: 2, Limit: 2}, Sort: sort,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page2, 2)

	page3, _, err := env.scenarioSvc.List(ctx, alice, ScenarioQuery{
		Page: repository.Page{Skip: 4, Limit: 2}, Sort: sort,
	})
	require.NoError(t, err)
	require.Len(t, page3, 1)

	// Consecutive pages are disjoint and together cover all five rows in order.
	var names []string
	for _, sc := range append(append(page1, page2...), page3...) {
		names = append(names, sc.Name)
	}
	assert.Equal(t, []string{"run 01", "run 02", "run 03", "run 04", "run 05"}, names)
}

func TestScenarioSkipBeyondEndIsEmpty(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.seedModel(t, alice, "clinic")
	a := env.seedAnalysis(t, alice, m.ID, "baseline")
	env.seedScenario(t, alice, a.ID, "only one")

	rows, total, err := env.scenarioSvc.List(ctx, alice, ScenarioQuery{
		Page: repository.Page{Skip: 100, Limit: 10},
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, int64(1), total)
}

func TestScenarioFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.seedModel(t, alice, "clinic")
	a := env.seedAnalysis(t, alice, m.ID, "baseline")
	b := env.seedAnalysis(t, alice, m.ID, "variant")

	env.seedScenario(t, alice, a.ID, "morning rush")
	env.seedScenario(t, alice, a.ID, "evening lull")
	running := env.seedRunning(t, alice, b.ID, "night shift")

	other, err := env.scenarioSvc.Create(ctx, bob, CreateScenarioInput{AnalysisID: a.ID, Name: "bob's run"})
	require.NoError(t, err)

	// By parent analysis.
	rows, total, err := env.scenarioSvc.List(ctx, alice, ScenarioQuery{AnalysisID: &a.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, rows, 3)

	// By state.
	state := model.StateIsRunning
	rows, _, err = env.scenarioSvc.List(ctx, alice, ScenarioQuery{State: &state})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, running.ID, rows[0].ID)

	// By name substring.
	rows, _, err = env.scenarioSvc.List(ctx, alice, ScenarioQuery{NameContains: "rush"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "morning rush", rows[0].Name)

	// Only the caller's own rows.
	rows, _, err = env.scenarioSvc.List(ctx, bob, ScenarioQuery{OnlyMine: true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, other.ID, rows[0].ID)

	// Listing never crosses tenants.
	rows, total, err = env.scenarioSvc.List(ctx, eve, ScenarioQuery{})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, total)
}

func TestModelListExcludesSoftDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	keep := env.seedModel(t, alice, "keeper")
	gone := env.seedModel(t, alice, "goner")
	require.NoError(t, env.modelSvc.Delete(ctx, alice, gone.ID))

	rows, total, err := env.modelSvc.List(ctx, alice, ModelQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, rows, 1)
	assert.Equal(t, keep.ID, rows[0].ID)
}

func TestPageNormalization(t *testing.T) {
	p := repository.Page{Skip: -3, Limit: 0}.Normalize()
	assert.Equal(t, 0, p.Skip)
	assert.Equal(t, repository.DefaultPageSize, p.Limit)

	p = repository.Page{Limit: 5000}.Normalize()
	assert.Equal(t, repository.MaxPageSize, p.Limit)

	s := repository.Sort{Column: "password"}.Normalize()
	assert.Equal(t, "created_at", s.Column)
	assert.False(t, s.Ascending)
}
