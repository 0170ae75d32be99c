// Package api wires together all HTTP routes of dorsale.
//
// Route groups:
//   - Site pages (/, /modules/) and the record pages (/:app/:name/...) render HTML,
//     or JSON when the client asks for it. The record pages need an actor; what an
//     actor sees is narrowed to the records they created.
//   - /auth issues and clears actor tokens.
//   - /admin is a JSON API. Everything but /admin/records is for superusers;
//     /admin/records is open to any actor and scoped by creator.
package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/fiee/dorsale/internal/api/admin"
	"github.com/fiee/dorsale/internal/api/generic"
	"github.com/fiee/dorsale/internal/apps/projects"
	"github.com/fiee/dorsale/internal/audit"
	"github.com/fiee/dorsale/internal/auth"
	"github.com/fiee/dorsale/internal/config"
	"github.com/fiee/dorsale/internal/db/repositories"
	"github.com/fiee/dorsale/internal/middleware"
	"github.com/fiee/dorsale/internal/record"
	"github.com/fiee/dorsale/internal/storage"
	"github.com/fiee/dorsale/internal/web"

	// Import storage backends to register them
	_ "github.com/fiee/dorsale/internal/storage/azure"
	_ "github.com/fiee/dorsale/internal/storage/gcs"
	_ "github.com/fiee/dorsale/internal/storage/local"
	_ "github.com/fiee/dorsale/internal/storage/s3"
)

// BackgroundServices holds resources that must be released during graceful
// shutdown. The caller (cmd/server) is responsible for calling Shutdown() when the
// process receives a termination signal.
type BackgroundServices struct {
	stops   []func()
	shipper io.Closer
}

// Shutdown stops the rate limiters and flushes the audit shippers. It should be
// called after the HTTP server has been shut down so that in-flight requests are
// drained first.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	for _, stop := range bg.stops {
		stop()
	}
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Warn("failed to close audit shippers", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter creates and configures the Gin router. rt carries the settings that
// the config watcher may swap while the server runs.
func NewRouter(cfg *config.Config, db *sqlx.DB, rt *config.Runtime) (*gin.Engine, *BackgroundServices, error) {
	router := gin.New()
	router.SetHTMLTemplate(web.Templates())
	bg := &BackgroundServices{}

	// Record types
	registry := record.NewRegistry()
	if err := projects.Register(registry); err != nil {
		return nil, nil, fmt.Errorf("failed to register record types: %w", err)
	}

	// Initialize storage backend
	storageBackend, err := storage.NewStorage(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	slog.Info("initialized storage backend", "backend", cfg.Storage.DefaultBackend)

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, nil, err
	}
	flashes, err := generic.NewFlashes(cfg.Sessions)
	if err != nil {
		return nil, nil, err
	}

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db)
	siteRepo := repositories.NewSiteRepository(db)
	profileRepo := repositories.NewSiteProfileRepository(db)
	moduleRepo := repositories.NewModuleRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	managers := repositories.NewManagers(db, registry, userRepo)
	saver := repositories.NewSaver()
	deleter := repositories.NewDeleter(db, saver, registry)
	deleter.Hooks.OnPostDelete(auditRepo.RemovalAuditHook())

	// Audit shipping
	shipper, err := audit.NewMultiShipper(audit.ConfigsFrom(cfg.Audit))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audit shippers: %w", err)
	}
	var recorder *audit.Recorder
	if cfg.Audit.Enabled {
		if shipper.Len() > 0 {
			recorder = audit.NewRecorder(auditRepo, shipper)
			bg.shipper = shipper
		} else {
			recorder = audit.NewRecorder(auditRepo, nil)
		}
	}

	// Rate limiters
	var generalLimiter, loginLimiter middleware.Limiter
	if cfg.Security.RateLimiting.Enabled {
		var stop func()
		generalLimiter, stop, err = middleware.NewLimiter(cfg.Security.RateLimiting,
			middleware.RateLimitConfigFrom(cfg.Security.RateLimiting), "general")
		if err != nil {
			return nil, nil, err
		}
		bg.stops = append(bg.stops, stop)

		loginLimiter, stop, err = middleware.NewLimiter(cfg.Security.RateLimiting,
			middleware.LoginRateLimitConfig(), "login")
		if err != nil {
			bg.Shutdown()
			return nil, nil, err
		}
		bg.stops = append(bg.stops, stop)
	}

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(LoggerMiddleware(cfg))
	router.Use(middleware.SecurityHeadersMiddleware(middleware.PageSecurityHeadersConfig()))
	if generalLimiter != nil {
		router.Use(middleware.RateLimitMiddleware(generalLimiter))
	}
	router.Use(middleware.TenantMiddleware(siteRepo, profileRepo, cfg.Tenancy))
	router.Use(middleware.ActorMiddleware(tokens, userRepo))
	router.Use(middleware.AuditMiddleware(recorder, cfg.Audit))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Readiness check endpoint (includes storage backend probe)
	router.GET("/ready", readinessHandler(db, storageBackend))

	router.GET("/version", versionHandler())

	// Site pages
	router.GET("/", homeHandler(flashes))
	router.GET("/modules/", modulesHandler(moduleRepo, rt, flashes))

	// Actor tokens
	authHandlers := admin.NewAuthHandlers(db, tokens, cfg.Sessions.Secure)
	authGroup := router.Group("/auth")
	{
		login := []gin.HandlerFunc{}
		if loginLimiter != nil {
			login = append(login, middleware.RateLimitMiddleware(loginLimiter))
		}
		authGroup.POST("/login", append(login, authHandlers.LoginHandler())...)
		authGroup.POST("/logout", authHandlers.LogoutHandler())
		authGroup.GET("/me", authHandlers.MeHandler())
	}

	// Admin API
	adminGroup := router.Group("/admin")
	adminGroup.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))
	adminGroup.Use(middleware.RequireActor())
	{
		records := admin.NewRecordAdminHandlers(db, managers, saver)
		adminGroup.GET("/records/:app/:name", records.ListRecords)
		adminGroup.GET("/records/:app/:name/:id", records.GetRecord)
		adminGroup.PUT("/records/:app/:name/:id", records.SaveRecord)

		su := adminGroup.Group("")
		su.Use(middleware.RequireSuperuser())

		users := admin.NewUserHandlers(db)
		su.GET("/users", users.ListUsersHandler())
		su.POST("/users", users.CreateUserHandler())
		su.POST("/users/:id/groups", users.AddToGroupHandler())

		mods := admin.NewModuleAdminHandlers(db)
		su.GET("/modules", mods.ListModules)
		su.POST("/modules", mods.CreateModule)
		su.GET("/modules/:id", mods.GetModule)
		su.PUT("/modules/:id", mods.UpdateModule)
		su.DELETE("/modules/:id", mods.DeleteModule)

		profiles := admin.NewSiteProfileHandlers(db)
		su.GET("/sites/:site_id/profile", profiles.GetProfile)
		su.PUT("/sites/:site_id/profile", profiles.SaveProfile)
		su.DELETE("/sites/:site_id/profile", profiles.DeleteProfile)

		auditHandlers := admin.NewAuditHandlers(db)
		su.GET("/audit-logs", auditHandlers.ListAuditLogsHandler())
		su.GET("/audit-logs/:id", auditHandlers.GetAuditLogHandler())

		stats := admin.NewStatsHandler(db, registry, managers)
		su.GET("/stats/dashboard", stats.GetDashboardStats)
	}

	// Record pages
	pages := generic.NewHandler(generic.Deps{
		DB:       db,
		Registry: registry,
		Managers: managers,
		Saver:    saver,
		Deleter:  deleter,
		Groups:   userRepo,
		Storage:  storageBackend,
		Flashes:  flashes,
		Settings: rt,
		Audit:    recorder,
	})
	pages.Configure(projects.Namespace, "project", generic.TypeOptions{PostCreate: projects.FillSlug})
	pages.Configure(projects.Namespace, "task", generic.TypeOptions{PostCreate: projects.AssignCreator})
	recordGroup := router.Group("")
	recordGroup.Use(middleware.RequireActor())
	pages.RegisterRoutes(recordGroup)

	return router, bg, nil
}

// @Summary      Health check
// @Description  Returns the health status of the service, including database connectivity.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status: healthy, time: RFC3339 timestamp"
// @Failure      503  {object}  map[string]interface{}  "status: unhealthy, error: database connection failed"
// @Router       /health [get]
// healthCheckHandler returns the health status of the service
func healthCheckHandler(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "healthy",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// @Summary      Readiness check
// @Description  Returns whether the service is ready to accept traffic. Checks the database and the attachment storage.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "ready: true, checks, time"
// @Failure      503  {object}  map[string]interface{}  "ready: false, checks, error"
// @Router       /ready [get]
// readinessHandler returns the readiness status of the service. Unlike /health it
// also probes the storage backend, so a readiness gate fails when uploads would.
func readinessHandler(db *sqlx.DB, storageBackend storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := gin.H{}

		if err := db.PingContext(c.Request.Context()); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		// a known-absent key exercises credentials and connectivity without writing
		if _, err := storageBackend.Exists(c.Request.Context(), ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		}
		checks["storage"] = "healthy"

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Version is set at build time with -ldflags.
var Version = "dev"

// versionHandler returns the build version
func versionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": Version})
	}
}

// LoggerMiddleware logs every request as a structured slog record. The text or
// JSON rendering is chosen by the handler installed in telemetry.SetupLogger.
func LoggerMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.Int("status", c.Writer.Status()),
			slog.Int("size", c.Writer.Size()),
			slog.Duration("latency", time.Since(start)),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", middleware.RequestID(c)),
			slog.Int64("tenant_id", middleware.TenantID(c)),
			slog.Int64("actor_id", middleware.ActorID(c)),
		}
		if cfg.Logging.Level == "debug" {
			attrs = append(attrs, slog.String("user_agent", c.Request.UserAgent()))
		}
		slog.LogAttrs(c.Request.Context(), level, "http request", attrs...)
	}
}
