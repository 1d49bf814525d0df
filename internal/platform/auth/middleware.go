package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const callerKey contextKey = "caller"

// Caller is the authenticated user on whose behalf a request runs.
type Caller struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
	Name string    `json:"name,omitempty"`
}

// Capabilities is shorthand for CapabilitiesFor(c.Role).
func (c Caller) Capabilities() CapabilitySet {
	return CapabilitiesFor(c.Role)
}

// WithCaller stores c in ctx.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey, c)
}

// CallerFromContext returns the caller stored by the auth middleware.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey).(Caller)
	return c, ok
}

// Claims are the bearer token claims issued by the identity provider. The
// subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name,omitempty"`
}

type JWTConfig struct {
	Issuer     string
	Audience   string
	SigningKey []byte
}

// JWTMiddleware verifies HS256 bearer tokens and stores the Caller in the
// request context. Token issuance lives outside this service.
func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256"})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	parser := jwt.NewParser(opts...)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims := &Claims{}
			token, err := parser.ParseWithClaims(parts[1], claims, func(*jwt.Token) (interface{}, error) {
				return cfg.SigningKey, nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			caller, err := claims.caller()
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
			}

			c.SetRequest(c.Request().WithContext(WithCaller(c.Request().Context(), caller)))
			return next(c)
		}
	}
}

func (cl *Claims) caller() (Caller, error) {
	id, err := uuid.Parse(cl.Subject)
	if err != nil {
		return Caller{}, errors.New("token subject is not a user id")
	}
	role, err := ParseRole(cl.Role)
	if err != nil {
		return Caller{}, err
	}
	return Caller{ID: id, Role: role, Name: cl.Name}, nil
}

// DevUserID is the caller id used by DevAuthMiddleware when no header is sent.
var DevUserID = uuid.MustParse("00000000-0000-0000-0000-00000000d0c7")

// DevAuthMiddleware trusts X-User-ID and X-User-Role headers, defaulting to a
// doctor. Development only.
func DevAuthMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller := Caller{ID: DevUserID, Role: RoleDoctor, Name: "dev"}

			if v := c.Request().Header.Get("X-User-ID"); v != "" {
				id, err := uuid.Parse(v)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, "invalid X-User-ID")
				}
				caller.ID = id
			}
			if v := c.Request().Header.Get("X-User-Role"); v != "" {
				role, err := ParseRole(v)
				if err != nil {
					return echo.NewHTTPError(http.StatusBadRequest, err.Error())
				}
				caller.Role = role
			}

			c.SetRequest(c.Request().WithContext(WithCaller(c.Request().Context(), caller)))
			return next(c)
		}
	}
}
