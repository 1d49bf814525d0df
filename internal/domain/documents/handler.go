package documents

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fichamed/fichamed/internal/platform/auth"
	"github.com/fichamed/fichamed/internal/platform/blobstore"
	"github.com/fichamed/fichamed/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/patients/:id/documents", h.List)
	api.POST("/patients/:id/documents", h.Upload)
	api.GET("/documents/:docId", h.Get)
	api.GET("/documents/:docId/content", h.Download)
	api.PATCH("/documents/:docId", h.Rename)
	api.DELETE("/documents/:docId", h.Delete)
}

func toHTTP(err error) error {
	switch {
	case errors.Is(err, auth.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidTitle):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, blobstore.ErrTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, blobstore.ErrTooLarge.Error())
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, blobstore.ErrInvalidContentType.Error())
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

// Upload accepts multipart/form-data with a "file" part and a "title"
// field. The title defaults to the file name.
func (h *Handler) Upload(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	patientID, err := parseID(c, "id")
	if err != nil {
		return err
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	if fh.Size > blobstore.MaxSize {
		return toHTTP(blobstore.ErrTooLarge)
	}
	contentType, _, err := mime.ParseMediaType(fh.Header.Get(echo.HeaderContentType))
	if err != nil {
		return toHTTP(blobstore.ErrInvalidContentType)
	}
	title := c.FormValue("title")
	if title == "" {
		title = fh.Filename
	}

	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	d, err := h.svc.Upload(c.Request().Context(), caller, patientID, title, contentType, src)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) Get(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "docId")
	if err != nil {
		return err
	}
	d, err := h.svc.Get(c.Request().Context(), caller, id)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Download(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "docId")
	if err != nil {
		return err
	}
	d, rc, err := h.svc.Open(c.Request().Context(), caller, id)
	if err != nil {
		return toHTTP(err)
	}
	defer rc.Close()

	c.Response().Header().Set(echo.HeaderContentLength, strconv.FormatInt(d.SizeBytes, 10))
	c.Response().Header().Set(echo.HeaderContentDisposition,
		mime.FormatMediaType("attachment", map[string]string{"filename": d.Title}))
	return c.Stream(http.StatusOK, d.ContentType, rc)
}

func (h *Handler) Rename(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "docId")
	if err != nil {
		return err
	}
	var req RenameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(&req); err != nil {
			return err
		}
	}
	d, err := h.svc.Rename(c.Request().Context(), caller, id, req.Title)
	if err != nil {
		return toHTTP(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Delete(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "docId")
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
		items = []*Document{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}
