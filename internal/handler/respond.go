package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/middleware"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/repository"
	"github.com/noahdhickman/Quodsi-API-sub001/internal/service"
	"github.com/noahdhickman/Quodsi-API-sub001/pkg/logger"
	"go.uber.org/zap"
)

// listResponse is the envelope for paginated list endpoints. Total comes
// from a separate count query over the same filter.
type listResponse struct {
	Items interface{} `json:"items"`
	Total int64       `json:"total"`
	Skip  int         `json:"skip"`
	Limit int         `json:"limit"`
}

// errorJSON maps the service error taxonomy onto HTTP statuses. Untyped
// errors are reported generically and logged with full detail.
func errorJSON(c echo.Context, err error) error {
	code := service.ErrorCode(err)
	msg := service.ErrorMessage(err)
	switch code {
	case service.CodeNotFound:
		return c.JSON(http.StatusNotFound, echo.Map{"error": msg})
	case service.CodeConflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": msg})
	case service.CodeForbidden:
		return c.JSON(http.StatusForbidden, echo.Map{"error": msg})
	case service.CodeInvalidState:
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": msg})
	case service.CodeInvalid:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	default:
		logger.FromContext(c).Error("internal error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}

// principal fetches the authenticated principal or fails the request.
func principal(c echo.Context) (service.Principal, error) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return service.Principal{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return p, nil
}

// pathID parses the :id path parameter.
func pathID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

// queryPage reads skip/limit query parameters. Bounds are clamped by the
// repository layer.
func queryPage(c echo.Context) repository.Page {
	page := repository.Page{}
	if v, err := strconv.Atoi(c.QueryParam("skip")); err == nil {
		page.Skip = v
	}
	if v, err := strconv.Atoi(c.QueryParam("limit")); err == nil {
		page.Limit = v
	}
	return page
}

// querySort reads sort_by/sort_dir query parameters.
func querySort(c echo.Context) repository.Sort {
	return repository.Sort{
		Column:    c.QueryParam("sort_by"),
		Ascending: c.QueryParam("sort_dir") == "asc",
	}
}

// queryUint reads an optional unsigned query parameter.
func queryUint(c echo.Context, name string) *uint {
	if v, err := strconv.ParseUint(c.QueryParam(name), 10, 64); err == nil {
		u := uint(v)
		return &u
	}
	return nil
}

// queryBool reads an optional boolean query parameter.
func queryBool(c echo.Context, name string) *bool {
	if v, err := strconv.ParseBool(c.QueryParam(name)); err == nil {
		return &v
	}
	return nil
}

// queryTime reads an optional RFC 3339 timestamp query parameter.
func queryTime(c echo.Context, name string) *time.Time {
	if t, err := time.Parse(time.RFC3339, c.QueryParam(name)); err == nil {
		return &t
	}
	return nil
}

func onlyMine(c echo.Context) bool {
	v, _ := strconv.ParseBool(c.QueryParam("only_mine"))
	return v
}
