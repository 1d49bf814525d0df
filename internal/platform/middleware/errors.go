package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/fichamed/fichamed/internal/platform/auth"
)

// ErrorStatus maps a sentinel error to the status returned for it.
type ErrorStatus struct {
	Err    error
	Status int
}

// ErrorResponse is the JSON body of every error the API returns.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// HTTPErrorHandler turns handler errors into JSON responses. echo.HTTPError
// keeps its code, sentinel errors are matched with errors.Is against the
// given mappings, and anything else is a logged 500 with a generic message.
func HTTPErrorHandler(logger zerolog.Logger, mappings ...ErrorStatus) echo.HTTPErrorHandler {
	mappings = append([]ErrorStatus{{Err: auth.ErrForbidden, Status: http.StatusForbidden}}, mappings...)

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, msg := http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			msg = httpErrorMessage(he)
		} else {
			for _, m := range mappings {
				if errors.Is(err, m.Err) {
					status, msg = m.Status, err.Error()
					break
				}
			}
		}

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("request_id", RequestIDFrom(c)).
				Str("route", c.Path()).
				Msg("request failed")
		}

		body := ErrorResponse{Error: msg, RequestID: RequestIDFrom(c)}
		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}

func httpErrorMessage(he *echo.HTTPError) string {
	switch m := he.Message.(type) {
	case string:
		return m
	case error:
		return m.Error()
	case nil:
		return http.StatusText(he.Code)
	default:
		return http.StatusText(he.Code)
	}
}
