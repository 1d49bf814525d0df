package careteam

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fichamed/fichamed/internal/platform/auth"
	"github.com/fichamed/fichamed/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/care-team", h.ListActive)
	api.POST("/patients/:id/care-team", h.AddMember)
	api.PATCH("/care-team/:membershipId", h.Relabel)
	api.POST("/care-team/:membershipId/deactivate", h.Deactivate)
	api.POST("/care-team/:membershipId/reactivate", h.Reactivate)
	api.GET("/me/patients", h.MyPatients)
}

func toHTTP(err error) error {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalidRequest):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyMember), errors.Is(err, ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return err
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) ListActive(c echo.Context) error {
	patientID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.ListActive(c.Request().Context(), patientID)
	if err != nil {
		return toHTTP(err)
	}
	if items == nil {
		items = []*Membership{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) AddMember(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	patientID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req AddMemberRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(&req); err != nil {
			return err
		}
	}
	m, err := h.svc.AddMember(c.Request().Context(), caller, patientID, req)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Relabel(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "membershipId")
	if err != nil {
		return err
	}
	var req RelabelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.svc.Relabel(c.Request().Context(), caller, id, req.RoleLabel)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) Deactivate(c echo.Context) error {
	return h.transition(c, h.svc.Deactivate)
}

func (h *Handler) Reactivate(c echo.Context) error {
	return h.transition(c, h.svc.Reactivate)
}

type transitionFunc func(ctx context.Context, caller auth.Caller, id uuid.UUID) (*Membership, error)

func (h *Handler) transition(c echo.Context, fn transitionFunc) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "membershipId")
	if err != nil {
		return err
	}
	m, err := fn(c.Request().Context(), caller, id)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) MyPatients(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.PatientsFor(c.Request().Context(), caller.ID, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Membership{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
