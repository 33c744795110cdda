// Package v1 provides HTTP API version 1.
package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sitetrack/internal/domain/auth"
	"sitetrack/internal/domain/employees"
	"sitetrack/internal/domain/projects"
	"sitetrack/internal/infrastructure/http/v1/handlers"
	"sitetrack/internal/infrastructure/http/v1/middleware"
	"sitetrack/pkg/logger"
	"sitetrack/pkg/metrics"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	AuthService       *auth.Service
	ProjectService    *projects.Service
	EmployeeService   *employees.Service
	AttendanceService handlers.AttendanceService
	MaterialService   handlers.MaterialService

	// Audit serves the change log to administrators; nil hides it
	Audit handlers.AuditReader

	// Idempotency protects stock-changing POSTs; nil disables it
	Idempotency middleware.IdempotencyStore

	// Database and CachePing back the readiness probe; CachePing may be nil
	Database  handlers.DatabaseProbe
	CachePing func(ctx context.Context) error

	// HTTPMetrics and MetricsHandler are nil when metrics are disabled
	HTTPMetrics    *metrics.HTTP
	MetricsHandler http.Handler
	MetricsPath    string

	// Location interprets dates sent without a time of day
	Location *time.Location

	Version string
	Debug   bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	if cfg.HTTPMetrics != nil {
		router.Use(middleware.Metrics(cfg.HTTPMetrics))
	}
	router.Use(middleware.ErrorHandler())

	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	if cfg.Database != nil {
		healthHandler := handlers.NewHealthHandler(cfg.Database, cfg.CachePing, cfg.Version)
		health := router.Group("/health")
		{
			health.GET("/live", healthHandler.Live)
			health.GET("/ready", healthHandler.Ready)
			health.GET("/info", healthHandler.Info)
		}
	}

	v1 := router.Group("/api/v1")
	{
		registerAuthRoutes(v1, cfg)

		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		registerCatalogRoutes(protected, cfg)
		registerMaterialRoutes(protected, cfg)
		registerAttendanceRoutes(protected, cfg)

		if cfg.Audit != nil {
			audit := handlers.NewAuditHandler(handlers.NewBaseHandler(), cfg.Audit)
			protected.GET("/audit/:entityType/:entityId", middleware.RequireRole(string(auth.RoleAdmin)), audit.History)
		}
	}

	return router
}

// requireManager gates changes to projects, staff and batch metadata.
func requireManager() gin.HandlerFunc {
	return middleware.RequireRole(string(auth.RoleManager))
}

// idempotency returns the idempotency middleware or a no-op.
func idempotency(cfg RouterConfig) gin.HandlerFunc {
	if cfg.Idempotency == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.Idempotency(cfg.Idempotency)
}

// registerAuthRoutes registers authentication endpoints.
func registerAuthRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.AuthService == nil {
		return
	}

	authHandler := handlers.NewAuthHandler(handlers.NewBaseHandler(), cfg.AuthService)

	publicAuth := rg.Group("/auth")
	protectedAuth := rg.Group("/auth")
	protectedAuth.Use(middleware.Auth(cfg.JWTValidator))

	authHandler.RegisterRoutes(publicAuth, protectedAuth)
}

// registerCatalogRoutes registers project and employee endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	base := handlers.NewBaseHandler()

	if cfg.ProjectService != nil {
		handler := handlers.NewProjectHandler(base, cfg.ProjectService, cfg.Location)
		RegisterCatalogRoutes(rg.Group("/projects"), handler, requireManager())
	}

	if cfg.EmployeeService != nil {
		handler := handlers.NewEmployeeHandler(base, cfg.EmployeeService)
		RegisterCatalogRoutes(rg.Group("/employees"), handler, requireManager())
	}
}

// registerMaterialRoutes registers the material ledger.
func registerMaterialRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.MaterialService == nil {
		return
	}
	handler := handlers.NewMaterialHandler(handlers.NewBaseHandler(), cfg.MaterialService, cfg.Location)
	handler.RegisterRoutes(rg.Group("/materials"), requireManager(), idempotency(cfg))
}

// registerAttendanceRoutes registers attendance marking and payroll.
func registerAttendanceRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.AttendanceService == nil {
		return
	}
	handler := handlers.NewAttendanceHandler(handlers.NewBaseHandler(), cfg.AttendanceService, cfg.Location)
	handler.RegisterRoutes(rg.Group("/attendance"), requireManager())
}
