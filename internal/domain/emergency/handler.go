package emergency

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fichamed/fichamed/internal/platform/auth"
)

type Handler struct {
	resolver *Resolver
	history  AccessLogReader
}

// NewHandler serves the scan endpoint. history may be nil, in which case
// the access history route is not registered.
func NewHandler(resolver *Resolver, history AccessLogReader) *Handler {
	return &Handler{resolver: resolver, history: history}
}

// RegisterRoutes mounts the scan endpoint on public (no bearer token) and
// the access history on api.
func (h *Handler) RegisterRoutes(public, api *echo.Group, publicMW ...echo.MiddlewareFunc) {
	public.POST("/emergency/access", h.Access, publicMW...)
	if h.history != nil {
		api.GET("/patients/:id/emergency-accesses", h.ListAccesses,
			auth.RequireCapability("search_patients", auth.CanSearchPatients))
	}
}

func (h *Handler) Access(c echo.Context) error {
	var req AccessRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(&req); err != nil {
			return err
		}
	}

	rec, err := h.resolver.Resolve(c.Request().Context(), req.Token, req.AccessorRUT)
	switch {
	case errors.Is(err, ErrInvalidIdentity):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAuditWriteFailed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, ErrAuditWriteFailed.Error())
	case err != nil:
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListAccesses(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	items, err := h.history.ListByPatient(c.Request().Context(), id, limit)
	if err != nil {
		return err
	}
	if items == nil {
		items = []AccessRecord{}
	}
	return c.JSON(http.StatusOK, items)
}
