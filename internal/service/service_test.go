package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testEnv wires the services against in-memory repositories and a mock
// clock so lifecycle timing is deterministic.
type testEnv struct {
	models    *repository.MemoryModelRepository
	analyses  *repository.MemoryAnalysisRepository
	scenarios *repository.MemoryScenarioRepository

	modelSvc    *ModelService
	analysisSvc *AnalysisService
	scenarioSvc *ScenarioService
	lifecycle   *LifecycleService
	stats       *StatsService

	clock *clock.Mock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zap.NewNop()
	env := &testEnv{
		models:    repository.NewMemoryModelRepository(),
		analyses:  repository.NewMemoryAnalysisRepository(),
		scenarios: repository.NewMemoryScenarioRepository(),
		clock:     clock.NewMock(),
	}
	env.clock.Set(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	env.modelSvc = NewModelService(env.models, log)
	env.analysisSvc = NewAnalysisService(env.analyses, env.models, log)
	env.scenarioSvc = NewScenarioService(env.scenarios, env.analyses, log)
	env.lifecycle = NewLifecycleService(env.scenarios, env.analyses, env.models, env.clock, log)
	env.stats = NewStatsService(env.models, env.analyses, env.scenarios, nil, 0, log)
	return env
}

var (
	alice = Principal{TenantID: 1, UserID: 10}
	bob   = Principal{TenantID: 1, UserID: 20}
	eve   = Principal{TenantID: 2, UserID: 30} // different tenant
)

func (e *testEnv) seedModel(t *testing.T, p Principal, name string) *model.SimulationModel {
	t.Helper()
	m, err := e.modelSvc.Create(context.Background(), p, CreateModelInput{
		Name:   name,
		Source: model.SourceLucidchart,
	})
	require.NoError(t, err)
	return m
}

func (e *testEnv) seedAnalysis(t *testing.T, p Principal, modelID uint, name string) *model.Analysis {
	t.Helper()
	a, err := e.analysisSvc.Create(context.Background(), p, CreateAnalysisInput{
		ModelID:           modelID,
		Name:              name,
		DefaultTimePeriod: "daily",
		DefaultParameters: json.RawMessage(`{"replications": 3, "arrival_rate": 1.5}`),
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) seedScenario(t *testing.T, p Principal, analysisID uint, name string) *model.Scenario {
	t.Helper()
	s, err := e.scenarioSvc.Create(context.Background(), p, CreateScenarioInput{
		AnalysisID: analysisID,
		Name:       name,
	})
	require.NoError(t, err)
	return s
}

// seedRunning walks a fresh scenario through prepare and start.
func (e *testEnv) seedRunning(t *testing.T, p Principal, analysisID uint, name string) *model.Scenario {
	t.Helper()
	ctx := context.Background()
	s := e.seedScenario(t, p, analysisID, name)
	_, err := e.lifecycle.Prepare(ctx, p, s.ID)
	require.NoError(t, err)
	running, err := e.lifecycle.Start(ctx, p, s.ID, 0)
	require.NoError(t, err)
	return running
}
