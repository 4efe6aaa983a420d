package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-progress-api/internal/config"
	"github.com/noah-isme/gema-progress-api/internal/handler"
	"github.com/noah-isme/gema-progress-api/internal/health"
	"github.com/noah-isme/gema-progress-api/internal/middleware"
	"github.com/noah-isme/gema-progress-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ReportHandler      *handler.ReportHandler
	AdminReportHandler *handler.AdminReportHandler
	AdminAuditHandler  *handler.AdminAuditHandler
	Health             *health.Registry
	JWTMiddleware      fiber.Handler
	BulkLimiter        fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.Health))
	app.Get("/metrics", observability.MetricsHandler())

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.ReportHandler != nil {
		reports := app.Group("/api/v2/reports", jwtMiddleware)
		deps.ReportHandler.Register(reports, deps.BulkLimiter)
	}

	admin := app.Group("/api/admin", jwtMiddleware, middleware.RequireRole(middleware.AuthRoleAdmin))
	if deps.AdminReportHandler != nil {
		deps.AdminReportHandler.Register(admin.Group("/reports"))
	}
	if deps.AdminAuditHandler != nil {
		deps.AdminAuditHandler.Register(admin.Group("/audit"))
	}
}
