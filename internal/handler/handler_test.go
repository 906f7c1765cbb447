package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/repository"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/service"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/config"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/validate"
	"github.com/noahdhickman/Quodsi-API-sub001/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	// Metrics are package globals registered once per process.
	prometheus.InitMetrics(&config.Config{Metrics: config.MetricsConfig{Prefix: "handlertest"}})
	os.Exit(m.Run())
}

type handlerEnv struct {
	echo      *echo.Echo
	scenarios *ScenarioHandler
	lifecycle *LifecycleHandler

	scenarioSvc  *service.ScenarioService
	modelSvc     *service.ModelService
	analysisSvc  *service.AnalysisService
	lifecycleSvc *service.LifecycleService
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()
	log := zap.NewNop()
	models := repository.NewMemoryModelRepository()
	analyses := repository.NewMemoryAnalysisRepository()
	scenarios := repository.NewMemoryScenarioRepository()

	modelSvc := service.NewModelService(models, log)
	analysisSvc := service.NewAnalysisService(analyses, models, log)
	scenarioSvc := service.NewScenarioService(scenarios, analyses, log)
	lifecycleSvc := service.NewLifecycleService(scenarios, analyses, models, clock.New(), log)

	e := echo.New()
	e.Validator = validate.New()

	return &handlerEnv{
		echo:         e,
		scenarios:    NewScenarioHandler(scenarioSvc),
		lifecycle:    NewLifecycleHandler(lifecycleSvc),
		scenarioSvc:  scenarioSvc,
		modelSvc:     modelSvc,
		analysisSvc:  analysisSvc,
		lifecycleSvc: lifecycleSvc,
	}
}

var testPrincipal = service.Principal{TenantID: 1, UserID: 10}

// invoke runs one handler with an authenticated context and an optional
// :id path parameter.
func (env *handlerEnv) invoke(t *testing.T, h echo.HandlerFunc, method, body string, id uint) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := env.echo.NewContext(req, rec)
	c.Set("principal", testPrincipal)
	if id != 0 {
		c.SetParamNames("id")
		c.SetParamValues(strconv.FormatUint(uint64(id), 10))
	}
	return rec, h(c)
}

func (env *handlerEnv) seedAnalysis(t *testing.T) *model.Analysis {
	t.Helper()
	ctx := context.Background()
	m, err := env.modelSvc.Create(ctx, testPrincipal, service.CreateModelInput{Name: "clinic"})
	require.NoError(t, err)
	a, err := env.analysisSvc.Create(ctx, testPrincipal, service.CreateAnalysisInput{
		ModelID:           m.ID,
		Name:              "baseline",
		DefaultTimePeriod: "daily",
		DefaultParameters: json.RawMessage(`{"replications": 2}`),
	})
	require.NoError(t, err)
	return a
}

func TestScenarioCreateEndpoint(t *testing.T) {
	env := newHandlerEnv(t)
	a := env.seedAnalysis(t)

	body := `{"analysis_id": ` + strconv.Itoa(int(a.ID)) + `, "name": "peak load"}`
	rec, err := env.invoke(t, env.scenarios.Create, http.MethodPost, body, 0)
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var created model.Scenario
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "peak load", created.Name)
	assert.Equal(t, model.StateDraft, created.State)

	// Duplicate name maps to 409.
	rec, err = env.invoke(t, env.scenarios.Create, http.MethodPost, body, 0)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Missing required name fails request validation with 400.
	rec, err = env.invoke(t, env.scenarios.Create, http.MethodPost,
		`{"analysis_id": `+strconv.Itoa(int(a.ID))+`}`, 0)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScenarioBulkCreateEndpointIsMultiStatus(t *testing.T) {
	env := newHandlerEnv(t)
	a := env.seedAnalysis(t)
	aid := strconv.Itoa(int(a.ID))

	body := `{"scenarios": [
		{"analysis_id": ` + aid + `, "name": "one"},
		{"analysis_id": ` + aid + `, "name": "one"},
		{"analysis_id": ` + aid + `, "name": "two"}
	]}`
	rec, err := env.invoke(t, env.scenarios.BulkCreate, http.MethodPost, body, 0)
	require.NoError(t, err)
	assert.Equal(t, http.StatusMultiStatus, rec.Code)

	var result service.BulkCreateResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 3, result.Requested)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, service.CodeConflict, result.Items[1].Code)
}

func TestLifecycleEndpointStatusMapping(t *testing.T) {
	env := newHandlerEnv(t)
	a := env.seedAnalysis(t)
	sc, err := env.scenarioSvc.Create(context.Background(), testPrincipal, service.CreateScenarioInput{
		AnalysisID: a.ID,
		Name:       "run",
	})
	require.NoError(t, err)

	// Starting a draft is an illegal transition: 422.
	rec, err := env.invoke(t, env.lifecycle.Start, http.MethodPost, `{}`, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, err = env.invoke(t, env.lifecycle.Prepare, http.MethodPost, "", sc.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, err = env.invoke(t, env.lifecycle.Start, http.MethodPost, `{}`, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Cancellation is accepted, not completed: 202.
	rec, err = env.invoke(t, env.lifecycle.Cancel, http.MethodPost, "", sc.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec, err = env.invoke(t, env.lifecycle.Complete, http.MethodPost, `{}`, sc.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
	var done model.Scenario
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &done))
	assert.Equal(t, model.StateCancelled, done.State)

	// Unknown scenario: 404.
	rec, err = env.invoke(t, env.lifecycle.Status, http.MethodGet, "", 9999)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListEndpointEnvelope(t *testing.T) {
	env := newHandlerEnv(t)
	a := env.seedAnalysis(t)
	ctx := context.Background()
	for _, name := range []string{"a", "b", "c"} {
		_, err := env.scenarioSvc.Create(ctx, testPrincipal, service.CreateScenarioInput{AnalysisID: a.ID, Name: name})
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/?skip=1&limit=2", nil)
	rec := httptest.NewRecorder()
	c := env.echo.NewContext(req, rec)
	c.Set("principal", testPrincipal)
	require.NoError(t, env.scenarios.List(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Items []model.Scenario `json:"items"`
		Total int64            `json:"total"`
		Skip  int              `json:"skip"`
		Limit int              `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, int64(3), envelope.Total)
	assert.Len(t, envelope.Items, 2)
	assert.Equal(t, 1, envelope.Skip)
	assert.Equal(t, 2, envelope.Limit)
}

func TestUnauthenticatedRequestIsRejected(t *testing.T) {
	env := newHandlerEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := env.echo.NewContext(req, rec)

	err := env.scenarios.List(c)
	var httpErr *echo.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestErrorJSONMapsUntypedErrorsTo500(t *testing.T) {
	env := newHandlerEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := env.echo.NewContext(req, rec)

	require.NoError(t, errorJSON(c, errors.New("disk on fire")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire", "internal detail must not leak to the client")
}
