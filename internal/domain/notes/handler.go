package notes

import (
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
	api.GET("/patients/:id/notes", h.List)
	api.POST("/patients/:id/notes", h.Create)
	api.GET("/notes/:noteId", h.Get)
	api.PUT("/notes/:noteId", h.Update)
	api.DELETE("/notes/:noteId", h.Delete)
}

func toHTTP(err error) error {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrEmptyBody), errors.Is(err, ErrBodyTooLong):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
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

func bindWrite(c echo.Context) (WriteRequest, error) {
	var req WriteRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(&req); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (h *Handler) Create(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	patientID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	req, err := bindWrite(c)
	if err != nil {
		return err
	}
	n, err := h.svc.Create(c.Request().Context(), caller, patientID, req)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusCreated, n)
}

func (h *Handler) Get(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "noteId")
	if err != nil {
		return err
	}
	n, err := h.svc.Get(c.Request().Context(), caller, id)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Update(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "noteId")
	if err != nil {
		return err
	}
	req, err := bindWrite(c)
	if err != nil {
		return err
	}
	n, err := h.svc.Update(c.Request().Context(), caller, id, req)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) Delete(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "noteId")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), caller, id); err != nil {
		return toHTTP(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) List(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	patientID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), caller, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return toHTTP(err)
	}
	if items == nil {
		items = []*Note{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
