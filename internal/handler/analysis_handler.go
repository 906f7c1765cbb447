package handler

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/service"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/logger"
	"github.com/noahdhickman/Quodsi-API-sub001/prometheus"
	"go.uber.org/zap"
)

// AnalysisRequest defines the structure for analysis creation/update requests
type AnalysisRequest struct {
	ModelID           uint            `json:"model_id"`
	Name              string          `json:"name" validate:"required"`
	Description       string          `json:"description"`
	DefaultTimePeriod string          `json:"default_time_period"`
	DefaultParameters json.RawMessage `json:"default_parameters"`
}

// AnalysisHandler exposes analysis CRUD over HTTP
type AnalysisHandler struct {
	svc *service.AnalysisService
}

func NewAnalysisHandler(svc *service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{svc: svc}
}

// List handles retrieving analyses with optional filtering
func (h *AnalysisHandler) List(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	q := service.AnalysisQuery{
		ModelID:      queryUint(c, "model_id"),
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

	analyses, total, err := h.svc.List(c.Request().Context(), p, q)
	if err != nil {
		return errorJSON(c, err)
	}
	page := q.Page.Normalize()
	return c.JSON(http.StatusOK, listResponse{Items: analyses, Total: total, Skip: page.Skip, Limit: page.Limit})
}

// Get handles retrieving a single analysis by ID
func (h *AnalysisHandler) Get(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	a, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// Create handles creating a new analysis
func (h *AnalysisHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	p, err := principal(c)
	if err != nil {
		return err
	}

	var req AnalysisRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	prometheus.RecordAnalysisOperation("create")
	a, err := h.svc.Create(c.Request().Context(), p, service.CreateAnalysisInput{
		ModelID:           req.ModelID,
		Name:              req.Name,
		Description:       req.Description,
		DefaultTimePeriod: req.DefaultTimePeriod,
		DefaultParameters: req.DefaultParameters,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}

// Update handles updating an existing analysis
func (h *AnalysisHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req AnalysisRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	prometheus.RecordAnalysisOperation("update")
	a, err := h.svc.Update(c.Request().Context(), p, id, service.UpdateAnalysisInput{
		Name:              req.Name,
		Description:       req.Description,
		DefaultTimePeriod: req.DefaultTimePeriod,
		DefaultParameters: req.DefaultParameters,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// Delete handles soft-deleting an analysis
func (h *AnalysisHandler) Delete(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	prometheus.RecordAnalysisOperation("delete")
	if err := h.svc.Delete(c.Request().Context(), p, id); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "analysis deleted successfully"})
}

// Copy handles duplicating an analysis, optionally onto another model
func (h *AnalysisHandler) Copy(c echo.Context) error {
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

	prometheus.RecordAnalysisOperation("copy")
	a, err := h.svc.Copy(c.Request().Context(), p, id, req.Name, req.TargetParentID)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, a)
}
