package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireCaller rejects requests that reached the handler without a Caller.
func RequireCaller() echo.MiddlewareFunc {
	return RequireCapability("authenticated user", func(CapabilitySet) bool { return true })
}

// RequireCapability returns middleware that lets the request through only
// when the caller's capability set satisfies allow. Routes gate on data in
// the capability table, never on the role itself.
func RequireCapability(name string, allow func(CapabilitySet) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, ok := CallerFromContext(c.Request().Context())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if !allow(caller.Capabilities()) {
				return echo.NewHTTPError(http.StatusForbidden, "required capability: "+name)
			}
			return next(c)
		}
	}
}

// CanSearchPatients is a RequireCapability predicate.
func CanSearchPatients(c CapabilitySet) bool { return c.SearchPatients }

// HasSearchHistory is a RequireCapability predicate.
func HasSearchHistory(c CapabilitySet) bool { return c.TrackSearchHistory }

// MustCaller returns the request's Caller or a 401 HTTPError. Handlers
// behind RequireCaller never see the error.
func MustCaller(c echo.Context) (Caller, error) {
	caller, ok := CallerFromContext(c.Request().Context())
	if !ok {
		return Caller{}, echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return caller, nil
}
