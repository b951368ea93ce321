package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/aditya93941/project-management/internal/app"
	iauth "github.com/aditya93941/project-management/internal/auth"
	"github.com/aditya93941/project-management/internal/handlers"
	"github.com/aditya93941/project-management/internal/middleware"
	"github.com/aditya93941/project-management/internal/models"
	"github.com/aditya93941/project-management/internal/services"
)

// Services bundles the long-lived domain services exposed over HTTP.
type Services struct {
	Access        *services.AccessService
	Requests      *services.RequestService
	Reports       *services.ReportService
	Notifications *services.NotificationService
	Presence      *services.PresenceService
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, svc Services) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	// Public endpoints
	r.GET("/health", handlers.Health())
	if cfg.Monitoring.Prometheus.Enabled {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	permissionHandler, err := handlers.NewPermissionHandler(svc.Access, svc.Requests)
	if err != nil {
		return nil, err
	}
	reportHandler, err := handlers.NewReportHandler(svc.Reports)
	if err != nil {
		return nil, err
	}
	notificationHandler, err := handlers.NewNotificationHandler(svc.Notifications)
	if err != nil {
		return nil, err
	}
	sweepHandler, err := handlers.NewSweepHandler(svc.Access, svc.Reports)
	if err != nil {
		return nil, err
	}

	requireAuth := middleware.Auth(jwt)
	api := r.Group("/api")
	api.Use(requireAuth)

	permissions := api.Group("/permissions")
	{
		permissions.POST("/evaluate", permissionHandler.Evaluate)
		permissions.GET("/grants", permissionHandler.ListGrants)
		permissions.POST("/grants", permissionHandler.Grant)
		permissions.DELETE("/grants/:id", permissionHandler.Revoke)
		permissions.POST("/requests", permissionHandler.CreateRequest)
		permissions.GET("/requests/pending", permissionHandler.ListPendingRequests)
		permissions.POST("/requests/:id/review", permissionHandler.ReviewRequest)
	}

	reports := api.Group("/reports")
	{
		reports.GET("/today", reportHandler.Today)
		reports.PUT("/today", reportHandler.SaveDraft)
		reports.POST("/today/submit", reportHandler.Submit)
	}

	notifications := api.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	if svc.Presence != nil {
		presenceHandler, presenceErr := handlers.NewPresenceHandler(svc.Presence)
		if presenceErr != nil {
			return nil, presenceErr
		}
		tasks := api.Group("/tasks")
		{
			tasks.POST("/:id/viewing", presenceHandler.Heartbeat)
			tasks.GET("/:id/viewers", presenceHandler.Viewers)
		}
	}

	// Sweep triggers are restricted to managers; an external scheduler
	// authenticates as one.
	sweeps := api.Group("/admin/sweeps")
	sweeps.Use(middleware.RequireRoles(models.RoleManager, models.RoleGroupHead))
	{
		sweeps.POST("/expire-grants", sweepHandler.ExpireGrants)
		sweeps.POST("/warn-expiring-grants", sweepHandler.WarnExpiringGrants)
		sweeps.POST("/scheduled-submissions", sweepHandler.SweepScheduledSubmissions)
		sweeps.POST("/end-of-day", sweepHandler.ForceEndOfDaySubmissions)
		sweeps.POST("/finalize-yesterday", sweepHandler.FinalizeYesterday)
	}

	return r, nil
}
