package patient

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fichamed/fichamed/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/patients", h.Create, auth.RequireCapability("search_patients", auth.CanSearchPatients))
	api.GET("/patients/search", h.SearchByRUT, auth.RequireCapability("search_patients", auth.CanSearchPatients))
	api.GET("/patients/:id", h.Get)
	api.PATCH("/patients/:id", h.Update)
}

func toHTTP(err error) error {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrDuplicateRUT):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrInvalidRUT), errors.Is(err, ErrInvalidPhone),
		errors.Is(err, ErrInvalidDate), errors.Is(err, ErrInvalidPatch):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}

func (h *Handler) Create(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(&req); err != nil {
			return err
		}
	}
	rec, err := h.svc.Create(c.Request().Context(), caller, req)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// SearchByRUT handles GET /patients/search?rut=12.345.678-5.
func (h *Handler) SearchByRUT(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	q := c.QueryParam("rut")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "rut is required")
	}
	rec, err := h.svc.FindByRUT(c.Request().Context(), caller, q)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, rec)
}

// Update handles PATCH /patients/:id. Unknown keys are rejected so a
// misspelled field never turns into a silent no-op.
func (h *Handler) Update(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var patch Patch
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patch: "+err.Error())
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(&patch); err != nil {
			return err
		}
	}

	rec, err := h.svc.ApplyUpdate(c.Request().Context(), caller, id, &patch)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, rec)
}
