package main

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/fichamed/fichamed/internal/config"
	"github.com/fichamed/fichamed/internal/domain/careteam"
	"github.com/fichamed/fichamed/internal/domain/documents"
	"github.com/fichamed/fichamed/internal/domain/emergency"
	"github.com/fichamed/fichamed/internal/domain/notes"
	"github.com/fichamed/fichamed/internal/domain/patient"
	"github.com/fichamed/fichamed/internal/domain/searchhistory"
	"github.com/fichamed/fichamed/internal/platform/auth"
	"github.com/fichamed/fichamed/internal/platform/blobstore"
	"github.com/fichamed/fichamed/internal/platform/db"
	"github.com/fichamed/fichamed/internal/platform/metrics"
	"github.com/fichamed/fichamed/internal/platform/middleware"
)

// components are the stores and sinks the server is assembled from.
type components struct {
	querier      db.Querier
	blobs        blobstore.Store
	searches     searchhistory.Repository
	accessLog    emergency.AccessLog
	accessReader emergency.AccessLogReader
	metrics      *metrics.Metrics
	health       map[string]db.Pinger
	poolStats    func() *db.PoolStats
	// ipExtractor defaults to the TCP peer address.
	ipExtractor echo.IPExtractor
}

func errorMappings() []middleware.ErrorStatus {
	return []middleware.ErrorStatus{
		{Err: patient.ErrNotFound, Status: http.StatusNotFound},
		{Err: careteam.ErrNotFound, Status: http.StatusNotFound},
		{Err: notes.ErrNotFound, Status: http.StatusNotFound},
		{Err: documents.ErrNotFound, Status: http.StatusNotFound},
		{Err: emergency.ErrPatientNotFound, Status: http.StatusNotFound},
		{Err: emergency.ErrInvalidIdentity, Status: http.StatusBadRequest},
		{Err: emergency.ErrAuditWriteFailed, Status: http.StatusServiceUnavailable},
		{Err: blobstore.ErrTooLarge, Status: http.StatusRequestEntityTooLarge},
	}
}

func authMiddleware(cfg *config.Config, logger zerolog.Logger) echo.MiddlewareFunc {
	if cfg.AuthSigningKey != "" {
		return auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		})
	}
	logger.Warn().Msg("AUTH_SIGNING_KEY not set, trusting X-User-ID and X-User-Role headers")
	return auth.DevAuthMiddleware()
}

func newServer(cfg *config.Config, logger zerolog.Logger, comp components) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.HTTPErrorHandler(logger, errorMappings()...)
	e.Validator = middleware.NewRequestValidator()
	e.IPExtractor = comp.ipExtractor
	if e.IPExtractor == nil {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	e.GET("/health", db.HealthHandler(comp.health, comp.poolStats))
	e.GET("/metrics", comp.metrics.Handler())

	careTeamSvc := careteam.NewService(careteam.NewRepoPG(comp.querier), logger)
	tracker := searchhistory.NewTracker(comp.searches, logger, comp.metrics)
	patientSvc := patient.NewService(patient.NewRepoPG(comp.querier), careTeamSvc, tracker, logger)
	resolver := emergency.NewResolver(patientSvc, comp.accessLog, logger,
		emergency.WithMetrics(comp.metrics),
		emergency.WithStrictAudit(cfg.EmergencyAuditStrict))

	public := e.Group("/api/v1")
	api := e.Group("/api/v1", authMiddleware(cfg, logger), auth.RequireCaller())

	emergency.NewHandler(resolver, comp.accessReader).RegisterRoutes(public, api,
		middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.EmergencyRateLimitRPS,
			BurstSize:         cfg.EmergencyRateLimitBurst,
			IdleTTL:           10 * time.Minute,
		}))
	patient.NewHandler(patientSvc).RegisterRoutes(api)
	careteam.NewHandler(careTeamSvc).RegisterRoutes(api)
	searchhistory.NewHandler(tracker).RegisterRoutes(api)
	notes.NewHandler(notes.NewService(notes.NewRepoPG(comp.querier), logger, comp.metrics)).RegisterRoutes(api)
	documents.NewHandler(documents.NewService(documents.NewRepoPG(comp.querier), comp.blobs, logger, comp.metrics)).RegisterRoutes(api)

	return e
}
