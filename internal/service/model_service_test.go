package service

import (
	"context"
	"testing"

	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelCreateDefaultsAndValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m, err := env.modelSvc.Create(ctx, alice, CreateModelInput{Name: "er ward"})
	require.NoError(t, err)
	assert.Equal(t, model.SourceManual, m.Source, "source defaults to manual")
	assert.Equal(t, 1, m.Version)

	_, err = env.modelSvc.Create(ctx, alice, CreateModelInput{})
	assert.Equal(t, CodeInvalid, ErrorCode(err))

	_, err = env.modelSvc.Create(ctx, alice, CreateModelInput{Name: "x", Source: "whiteboard"})
	assert.Equal(t, CodeInvalid, ErrorCode(err))
}

func TestModelUpdateBumpsVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.seedModel(t, alice, "er ward")

	updated, err := env.modelSvc.Update(ctx, alice, m.ID, UpdateModelInput{
		Name:        "er ward v2",
		Description: "added triage",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	// Non-creators in the same tenant may read but not write.
	_, err = env.modelSvc.Get(ctx, bob, m.ID)
	require.NoError(t, err)
	_, err = env.modelSvc.Update(ctx, bob, m.ID, UpdateModelInput{Name: "mine now"})
	assert.Equal(t, CodeForbidden, ErrorCode(err))
	err = env.modelSvc.Delete(ctx, bob, m.ID)
	assert.Equal(t, CodeForbidden, ErrorCode(err))
}

func TestModelNameUniquePerTenant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seedModel(t, alice, "clinic")

	_, err := env.modelSvc.Create(ctx, alice, CreateModelInput{Name: "clinic"})
	assert.Equal(t, CodeConflict, ErrorCode(err))

	// Another tenant may use the same name.
	_, err = env.modelSvc.Create(ctx, eve, CreateModelInput{Name: "clinic"})
	assert.NoError(t, err)
}

func TestModelCopy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	src, err := env.modelSvc.Create(ctx, alice, CreateModelInput{
		Name:        "template ward",
		Source:      model.SourceTemplate,
		Description: "starting point",
		IsTemplate:  true,
	})
	require.NoError(t, err)
	_, err = env.modelSvc.Update(ctx, alice, src.ID, UpdateModelInput{
		Name: "template ward", Source: src.Source, Description: "tweaked", IsTemplate: true,
	})
	require.NoError(t, err)

	cp, err := env.modelSvc.Copy(ctx, bob, src.ID, "bob's ward")
	require.NoError(t, err)
	assert.Equal(t, "bob's ward", cp.Name)
	assert.Equal(t, bob.UserID, cp.CreatedBy, "the copy belongs to the acting user")
	assert.Equal(t, 1, cp.Version, "the copy restarts at version 1")
	assert.Equal(t, model.SourceTemplate, cp.Source)
}

func TestAnalysisRequiresActiveModel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.analysisSvc.Create(ctx, alice, CreateAnalysisInput{ModelID: 42, Name: "dangling"})
	assert.Equal(t, CodeNotFound, ErrorCode(err))

	m := env.seedModel(t, alice, "clinic")
	require.NoError(t, env.modelSvc.Delete(ctx, alice, m.ID))
	_, err = env.analysisSvc.Create(ctx, alice, CreateAnalysisInput{ModelID: m.ID, Name: "on deleted"})
	assert.Equal(t, CodeNotFound, ErrorCode(err))
}

func TestAnalysisNameUniquePerModel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m1 := env.seedModel(t, alice, "clinic")
	m2 := env.seedModel(t, alice, "warehouse")
	env.seedAnalysis(t, alice, m1.ID, "baseline")

	_, err := env.analysisSvc.Create(ctx, alice, CreateAnalysisInput{ModelID: m1.ID, Name: "baseline"})
	assert.Equal(t, CodeConflict, ErrorCode(err))

	_, err = env.analysisSvc.Create(ctx, alice, CreateAnalysisInput{ModelID: m2.ID, Name: "baseline"})
	assert.NoError(t, err, "same name under a different model must not conflict")
}

func TestAnalysisCopyToAnotherModel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m1 := env.seedModel(t, alice, "clinic")
	m2 := env.seedModel(t, alice, "warehouse")
	src := env.seedAnalysis(t, alice, m1.ID, "baseline")

	cp, err := env.analysisSvc.Copy(ctx, alice, src.ID, "", &m2.ID)
	require.NoError(t, err)
	assert.Equal(t, m2.ID, cp.ModelID)
	assert.Equal(t, "baseline (copy)", cp.Name)
	assert.Equal(t, src.DefaultTimePeriod, cp.DefaultTimePeriod)
	assert.JSONEq(t, string(src.DefaultParameters), string(cp.DefaultParameters))
}
