package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/service"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/logger"
	"github.com/noahdhickman/Quodsi-API-sub001/prometheus"
	"go.uber.org/zap"
)

// StartRequest carries the optional replication count for a run. Zero means
// "use the scenario's inherited default".
type StartRequest struct {
	TotalReps int `json:"total_reps" validate:"gte=0"`
}

// ProgressRequest is a progress report from the simulation engine.
type ProgressRequest struct {
	CurrentRep         int     `json:"current_rep" validate:"gte=0"`
	ProgressPercentage float64 `json:"progress_percentage"`
}

// CompleteRequest is the terminal outcome report from the simulation engine.
type CompleteRequest struct {
	ErrorMessage string `json:"error_message"`
}

// LifecycleHandler exposes the scenario execution state machine over HTTP
type LifecycleHandler struct {
	svc *service.LifecycleService
}

func NewLifecycleHandler(svc *service.LifecycleService) *LifecycleHandler {
	return &LifecycleHandler{svc: svc}
}

// recordTransition tracks the transition attempt outcome for metrics.
func recordTransition(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(service.ErrorCode(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	prometheus.RecordScenarioTransition(operation, outcome)
}

// Prepare moves a draft scenario to ready_to_run
func (h *LifecycleHandler) Prepare(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	s, err := h.svc.Prepare(c.Request().Context(), p, id)
	recordTransition("prepare", err)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Start moves a ready scenario to is_running
func (h *LifecycleHandler) Start(c echo.Context) error {
	log := logger.FromContext(c)
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req StartRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	s, err := h.svc.Start(c.Request().Context(), p, id, req.TotalReps)
	recordTransition("start", err)
	if err != nil {
		return errorJSON(c, err)
	}
	prometheus.RunningScenariosGauge.Inc()
	return c.JSON(http.StatusOK, s)
}

// Progress records an engine progress report
func (h *LifecycleHandler) Progress(c echo.Context) error {
	log := logger.FromContext(c)
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req ProgressRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	s, err := h.svc.UpdateProgress(c.Request().Context(), p, id, req.CurrentRep, req.ProgressPercentage)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// Complete records the terminal outcome of a run
func (h *LifecycleHandler) Complete(c echo.Context) error {
	log := logger.FromContext(c)
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var req CompleteRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}

	s, err := h.svc.Complete(c.Request().Context(), p, id, req.ErrorMessage)
	recordTransition("complete", err)
	if err != nil {
		return errorJSON(c, err)
	}
	prometheus.RunningScenariosGauge.Dec()
	return c.JSON(http.StatusOK, s)
}

// Cancel requests cooperative cancellation of a running scenario
func (h *LifecycleHandler) Cancel(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	s, err := h.svc.Cancel(c.Request().Context(), p, id)
	recordTransition("cancel", err)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusAccepted, s)
}

// Status returns a read-only progress snapshot, safe to poll
func (h *LifecycleHandler) Status(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}

	status, err := h.svc.Status(c.Request().Context(), p, id)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, status)
}
