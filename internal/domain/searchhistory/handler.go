package searchhistory

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/fichamed/fichamed/internal/platform/auth"
	"github.com/fichamed/fichamed/pkg/rut"
)

type Handler struct {
	tracker *Tracker
}

func NewHandler(tracker *Tracker) *Handler {
	return &Handler{tracker: tracker}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/search-history", h.Recent,
		auth.RequireCapability("search history", auth.HasSearchHistory))
}

type recentItem struct {
	PatientID  uuid.UUID `json:"patient_id"`
	PatientRUT string    `json:"patient_rut"`
	RUTDisplay string    `json:"rut_display"`
	SearchedAt time.Time `json:"searched_at"`
}

func (h *Handler) Recent(c echo.Context) error {
	caller, err := auth.MustCaller(c)
	if err != nil {
		return err
	}
	entries, err := h.tracker.Recent(c.Request().Context(), caller.ID)
	if err != nil {
		return err
	}
	items := make([]recentItem, len(entries))
	for i, e := range entries {
		items[i] = recentItem{
			PatientID:  e.PatientID,
			PatientRUT: e.PatientRUT,
			RUTDisplay: rut.Format(e.PatientRUT),
			SearchedAt: e.SearchedAt,
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items})
}
