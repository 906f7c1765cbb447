package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/service"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/logger"
	"github.com/noahdhickman/Quodsi-API-sub001/prometheus"
	"go.uber.org/zap"
)

// ScenarioRequest defines the structure for scenario creation/update requests
type ScenarioRequest struct {
	AnalysisID  uint            `json:"analysis_id"`
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	TimePeriod  string          `json:"time_period"`
	Parameters  json.RawMessage `json:"parameters"`
	TotalReps   int             `json:"total_reps" validate:"gte=0"`
}

// BulkScenarioRequest is a batch of scenario creation requests
type BulkScenarioRequest struct {
	Scenarios []ScenarioRequest `json:"scenarios" validate:"required,min=1,dive"`
}

// ScenarioHandler exposes scenario CRUD over HTTP
type ScenarioHandler struct {
	svc *service.ScenarioService
}

func NewScenarioHandler(svc *service.ScenarioService) *ScenarioHandler {
	return &ScenarioHandler{svc: svc}
}

func (r ScenarioRequest) toCreateInput() service.CreateScenarioInput {
	return service.CreateScenarioInput{
		AnalysisID:  r.AnalysisID,
		Name:        r.Name,
		Description: r.Description,
		TimePeriod:  r.TimePeriod,
		Parameters:  r.Parameters,
		TotalReps:   r.TotalReps,
	}
}

// List handles retrieving scenarios with optional filtering
func (h *ScenarioHandler) List(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	q := service.ScenarioQuery{
		AnalysisID:   queryUint(c, "analysis_id"),
		OnlyMine:     onlyMine(c),
		NameContains: c.QueryParam("name"),
		TimePeriod:   c.QueryParam("time_period"),
		CreatedFrom:  queryTime(c, "created_from"),
		CreatedTo:    queryTime(c, "created_to"),
		UpdatedFrom:  queryTime(c, "updated_from"),
		UpdatedTo:    queryTime(c, "updated_to"),
		Page:         queryPage(c),
		Sort:         querySort(c),
	}
	if st := c.QueryParam("state"); st != "" {
		state := model.ScenarioState(st)
		if !state.Valid() {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown scenario state"})
		}
		q.State = &state
	}

	scenarios, total, err := h.svc.List(c.Request().Context(), p, q)
	if err != nil {
		return errorJSON(c, err)
	}
	page := q.Page.Normalize()
	return c.JSON(http.StatusOK, listResponse{Items: scenarios, Total: total, Skip: page.Skip, Limit: page.Limit})
}

// Get handles retrieving a single scenario with its effective parameters
func (h *ScenarioHandler) Get(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	s, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Create handles creating a new scenario
func (h *ScenarioHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	p, err := principal(c)
	if err != nil {
		return err
	}

	var req ScenarioRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	prometheus.RecordScenarioOperation("create")
	s, err := h.svc.Create(c.Request().Context(), p, req.toCreateInput())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// BulkCreate handles creating many scenarios in one request. Items fail
// independently; the response reports a per-item outcome.
func (h *ScenarioHandler) BulkCreate(c echo.Context) error {
	log := logger.FromContext(c)
	p, err := principal(c)
	if err != nil {
		return err
	}

	var req BulkScenarioRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	prometheus.RecordScenarioOperation("bulk_create")
	inputs := make([]service.CreateScenarioInput, 0, len(req.Scenarios))
	for _, r := range req.Scenarios {
		inputs = append(inputs, r.toCreateInput())
	}
	result := h.svc.BulkCreate(c.Request().Context(), p, inputs)
	log.Info("bulk scenario create finished",
		zap.Int("requested", result.Requested),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	return c.JSON(http.StatusMultiStatus, result)
}

// Update handles updating scenario metadata
func (h *ScenarioHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req ScenarioRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	prometheus.RecordScenarioOperation("update")
	s, err := h.svc.Update(c.Request().Context(), p, id, service.UpdateScenarioInput{
		Name:        req.Name,
		Description: req.Description,
		TimePeriod:  req.TimePeriod,
		Parameters:  req.Parameters,
		TotalReps:   req.TotalReps,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Delete handles soft-deleting a scenario
func (h *ScenarioHandler) Delete(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	prometheus.RecordScenarioOperation("delete")
	if err := h.svc.Delete(c.Request().Context(), p, id); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "scenario deleted successfully"})
}

// Copy handles duplicating a scenario, optionally onto another analysis
func (h *ScenarioHandler) Copy(c echo.Context) error {
	log := logger.FromContext(c)
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req CopyRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	prometheus.RecordScenarioOperation("copy")
	s, err := h.svc.Copy(c.Request().Context(), p, id, req.Name, req.TargetParentID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}
