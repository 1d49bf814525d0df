package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fichamed/fichamed/internal/platform/auth"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen string
	h := RequestID()(func(c echo.Context) error {
		seen = RequestIDFrom(c)
		return c.String(http.StatusOK, "ok")
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("expected generated uuid request id, got %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("expected response header %q, got %q", seen, rec.Header().Get(RequestIDHeader))
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := RequestID()(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	_ = h(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestLogger_LogsCallerAndStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	caller := auth.Caller{ID: uuid.New(), Role: auth.RoleNurse}
	req = req.WithContext(auth.WithCaller(req.Context(), caller))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := Logger(logger)(func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusForbidden, "nope")
	})
	_ = h(c)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["level"] != "warn" {
		t.Errorf("expected warn level, got %v", entry["level"])
	}
	if entry["status"] != float64(http.StatusForbidden) {
		t.Errorf("expected status 403, got %v", entry["status"])
	}
	if entry["user_id"] != caller.ID.String() || entry["role"] != "nurse" {
		t.Errorf("expected caller fields, got %v", entry)
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	h := Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic("test panic")
	})
	err := h(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ok", nil), httptest.NewRecorder())

	h := Recovery(zerolog.Nop())(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

var errGone = errors.New("gone")

func runErrorHandler(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), httptest.NewRecorder())
	rec := c.Response().Writer.(*httptest.ResponseRecorder)
	c.Set("request_id", "rid-1")

	HTTPErrorHandler(zerolog.Nop(), ErrorStatus{Err: errGone, Status: http.StatusNotFound})(err, c)

	var body ErrorResponse
	if jerr := json.Unmarshal(rec.Body.Bytes(), &body); jerr != nil {
		t.Fatalf("decode body: %v", jerr)
	}
	return rec, body
}

func TestHTTPErrorHandler_Mappings(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"http error", echo.NewHTTPError(http.StatusBadRequest, "bad input"), http.StatusBadRequest, "bad input"},
		{"forbidden", fmt.Errorf("edit diagnosis: %w", auth.ErrForbidden), http.StatusForbidden, "edit diagnosis: forbidden"},
		{"custom mapping", fmt.Errorf("patient: %w", errGone), http.StatusNotFound, "patient: gone"},
		{"unknown", errors.New("pq: secret detail"), http.StatusInternalServerError, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := runErrorHandler(t, tt.err)
			if rec.Code != tt.status {
				t.Errorf("expected %d, got %d", tt.status, rec.Code)
			}
			if body.Error != tt.message {
				t.Errorf("expected message %q, got %q", tt.message, body.Error)
			}
			if body.RequestID != "rid-1" {
				t.Errorf("expected request id rid-1, got %q", body.RequestID)
			}
		})
	}
}

type createNote struct {
	Body       string `json:"body" validate:"required,max=10"`
	AccessorID string `json:"accessor_rut" validate:"required,rut"`
}

func TestRequestValidator(t *testing.T) {
	v := NewRequestValidator()

	if err := v.Validate(&createNote{Body: "hi", AccessorID: "12.345.678-5"}); err != nil {
		t.Errorf("expected valid, got %v", err)
	}

	err := v.Validate(&createNote{Body: "", AccessorID: "12345678-9"})
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 HTTPError, got %v", err)
	}
	msg := he.Message.(string)
	if !bytes.Contains([]byte(msg), []byte("body failed required")) || !bytes.Contains([]byte(msg), []byte("accessor_rut failed rut")) {
		t.Errorf("unexpected message: %q", msg)
	}
}
