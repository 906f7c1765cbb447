package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/service"
)

// StatsHandler exposes per-tenant aggregates over HTTP
type StatsHandler struct {
	svc *service.StatsService
}

func NewStatsHandler(svc *service.StatsService) *StatsHandler {
	return &StatsHandler{svc: svc}
}

// Summary returns the tenant statistics, optionally narrowed to one
// analysis's scenarios via ?analysis_id=
func (h *StatsHandler) Summary(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}

	stats, err := h.svc.TenantStatistics(c.Request().Context(), p, queryUint(c, "analysis_id"))
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
