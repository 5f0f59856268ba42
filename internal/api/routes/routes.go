package routes

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"aq-panel/internal/api/handlers"
	"aq-panel/internal/api/middleware"
	"aq-panel/internal/config"
	"aq-panel/internal/metrics"
	"aq-panel/internal/services"
	"aq-panel/internal/web"
)

// Deps carries everything the route table wires together. Metrics,
// Gatherer and RateLimiter are optional.
type Deps struct {
	Config       *config.Config
	Logger       *slog.Logger
	Auth         *services.AuthService
	Users        *services.UserService
	Roles        *services.RoleService
	Sessions     *services.SessionService
	Logs         *services.ActivityLogService
	Measurements *services.MeasurementService
	Export       *services.ExportService
	Metrics      *metrics.Collector
	Gatherer     prometheus.Gatherer
	RateLimiter  *middleware.RateLimiter
}

func SetupRoutes(r *gin.Engine, d Deps) error {
	tmpl, err := web.Templates(d.Export.Location())
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(tmpl)

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// typed-nil pointers must not leak into the recorder interfaces
	var (
		requestRec middleware.RequestRecorder
		auditRec   middleware.AuditErrorRecorder
		loginRec   handlers.LoginRecorder
	)
	if d.Metrics != nil {
		requestRec, auditRec, loginRec = d.Metrics, d.Metrics, d.Metrics
	}

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(d.Auth, d.Users, d.Sessions, d.Logs, d.Config, loginRec)
	monitoringHandler := handlers.NewMonitoringHandler(d.Measurements, d.Config)
	userHandler := handlers.NewUserHandler(d.Users, d.Roles, d.Sessions)
	roleHandler := handlers.NewRoleHandler(d.Roles)
	sessionHandler := handlers.NewSessionHandler(d.Sessions, d.Users)
	logsHandler := handlers.NewLogsHandler(d.Logs)
	settingsHandler := handlers.NewSettingsHandler(d.Config)
	exportHandler := handlers.NewExportHandler(d.Export, d.Measurements, d.Users, d.Config)
	measurementHandler := handlers.NewMeasurementHandler(d.Measurements)

	activity := func(module string) gin.HandlerFunc {
		return middleware.ActivityLogger(module, d.Logs, auditRec)
	}

	// Middleware
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered", "path", c.Request.URL.Path, "panic", recovered)
		c.AbortWithStatus(500)
	}))
	r.Use(middleware.RequestLogger(logger, requestRec))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	if d.Config.Metrics.Enabled && d.Gatherer != nil {
		r.GET(d.Config.Metrics.Path, gin.WrapH(metrics.Handler(d.Gatherer)))
	}

	// Public routes
	r.GET("/login", authHandler.LoginPage)
	r.POST("/login", authHandler.Login)

	api := r.Group("/api")
	{
		ingest := []gin.HandlerFunc{middleware.APIKey(d.Config.Security.APIKeys)}
		if d.RateLimiter != nil {
			ingest = append(ingest, d.RateLimiter.Middleware())
		}
		ingest = append(ingest, measurementHandler.CreateMeasurement)
		api.POST("/measurements", ingest...)
	}

	// Protected routes
	protected := r.Group("")
	protected.Use(middleware.AuthRequired(d.Auth, d.Sessions))
	{
		protected.POST("/logout", authHandler.Logout)
		protected.GET("/", func(c *gin.Context) {
			c.Redirect(302, "/dashboard")
		})

		protected.GET("/dashboard", activity("DASHBOARD"), monitoringHandler.Dashboard)
		protected.GET("/monitoring", activity("SENSOR"), monitoringHandler.Monitoring)
		protected.GET("/settings", settingsHandler.GetSettings)

		// Export routes
		export := protected.Group("/export")
		{
			export.GET("/monitoring",
				middleware.RequireRole(services.RoleSuperAdmin, services.RoleAdminTambang),
				activity("EXPORT"),
				exportHandler.ExportMonitoring)
			export.GET("/users",
				middleware.RequireRole(services.RoleSuperAdmin),
				activity("EXPORT"),
				exportHandler.ExportUsers)
		}

		// User management
		users := protected.Group("/users")
		users.Use(middleware.RequireRole(services.RoleSuperAdmin, services.RoleAdminTambang), activity("USER"))
		{
			users.GET("", userHandler.GetUsers)
			users.POST("", userHandler.CreateUser)
			users.GET("/:id/edit", userHandler.EditUser)
			users.POST("/:id/update", userHandler.UpdateUser)
			users.POST("/:id/delete", middleware.RequireRole(services.RoleSuperAdmin), userHandler.DeleteUser)
		}

		// Role management
		roles := protected.Group("/roles")
		roles.Use(middleware.RequireRole(services.RoleSuperAdmin), activity("ROLE"))
		{
			roles.GET("", roleHandler.GetRoles)
			roles.POST("", roleHandler.CreateRole)
			roles.GET("/:id/edit", roleHandler.EditRole)
			roles.POST("/:id/update", roleHandler.UpdateRole)
			roles.POST("/:id/delete", roleHandler.DeleteRole)
		}

		// Session management
		sessions := protected.Group("/sessions")
		sessions.Use(middleware.RequireRole(services.RoleSuperAdmin), activity("SESSION"))
		{
			sessions.GET("", sessionHandler.GetSessions)
			sessions.POST("/clean-expired", sessionHandler.CleanExpired)
			sessions.POST("/:id/invalidate", sessionHandler.InvalidateSession)
			sessions.POST("/:id/delete", sessionHandler.DeleteSession)
		}

		protected.GET("/logs",
			middleware.RequireRole(services.RoleSuperAdmin, services.RoleAdminTambang),
			activity("LOGS"),
			logsHandler.GetLogs)
	}

	r.NoRoute(handlers.NotFound)

	return nil
}
