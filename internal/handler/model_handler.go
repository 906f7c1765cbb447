package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/model"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/service"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/logger"
	"github.com/noahdhickman/Quodsi-API-sub001/prometheus"
	"go.uber.org/zap"
)

// ModelRequest defines the structure for model creation/update requests
type ModelRequest struct {
	Name        string `json:"name" validate:"required"`
	Source      string `json:"source" validate:"omitempty,oneof=lucidchart miro manual import template"`
	Description string `json:"description"`
	IsTemplate  bool   `json:"is_template"`
}

// CopyRequest defines the structure for copy requests. TargetParentID only
// applies to analyses and scenarios.
type CopyRequest struct {
	Name           string `json:"name"`
	TargetParentID *uint  `json:"target_parent_id"`
}

// ModelHandler exposes simulation model CRUD over HTTP
type ModelHandler struct {
	svc *service.ModelService
}

func NewModelHandler(svc *service.ModelService) *ModelHandler {
	return &ModelHandler{svc: svc}
}

// List handles retrieving models with optional filtering
func (h *ModelHandler) List(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	q := service.ModelQuery{
		OnlyMine:     onlyMine(c),
		NameContains: c.QueryParam("name"),
		IsTemplate:   queryBool(c, "is_template"),
		CreatedFrom:  queryTime(c, "created_from"),
		CreatedTo:    queryTime(c, "created_to"),
		UpdatedFrom:  queryTime(c, "updated_from"),
		UpdatedTo:    queryTime(c, "updated_to"),
		Page:         queryPage(c),
		Sort:         querySort(c),
	}
	if src := c.QueryParam("source"); src != "" {
		s := model.ModelSource(src)
		q.Source = &s
	}

	models, total, err := h.svc.List(c.Request().Context(), p, q)
	if err != nil {
		return errorJSON(c, err)
	}
	page := q.Page.Normalize()
	return c.JSON(http.StatusOK, listResponse{Items: models, Total: total, Skip: page.Skip, Limit: page.Limit})
}

// Get handles retrieving a single model by ID
func (h *ModelHandler) Get(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	m, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Create handles creating a new model
func (h *ModelHandler) Create(c echo.Context) error {
	log := logger.FromContext(c)
	p, err := principal(c)
	if err != nil {
		return err
	}

	var req ModelRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	prometheus.RecordModelOperation("create")
	m, err := h.svc.Create(c.Request().Context(), p, service.CreateModelInput{
		Name:        req.Name,
		Source:      model.ModelSource(req.Source),
		Description: req.Description,
		IsTemplate:  req.IsTemplate,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}

// Update handles updating an existing model
func (h *ModelHandler) Update(c echo.Context) error {
	log := logger.FromContext(c)
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req ModelRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	prometheus.RecordModelOperation("update")
	m, err := h.svc.Update(c.Request().Context(), p, id, service.UpdateModelInput{
		Name:        req.Name,
		Source:      model.ModelSource(req.Source),
		Description: req.Description,
		IsTemplate:  req.IsTemplate,
	})
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

// Delete handles soft-deleting a model
func (h *ModelHandler) Delete(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	prometheus.RecordModelOperation("delete")
	if err := h.svc.Delete(c.Request().Context(), p, id); err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "model deleted successfully"})
}

// Copy handles duplicating a model
func (h *ModelHandler) Copy(c echo.Context) error {
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

	prometheus.RecordModelOperation("copy")
	m, err := h.svc.Copy(c.Request().Context(), p, id, req.Name)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, m)
}
