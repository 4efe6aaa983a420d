package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-progress-api/internal/config"
	"github.com/noah-isme/gema-progress-api/internal/health"
	"github.com/noah-isme/gema-progress-api/internal/utils"
)

// HealthResponse represents the payload returned by the health endpoint.
type HealthResponse struct {
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	Service     string          `json:"service"`
	Environment string          `json:"environment"`
	Services    []health.Result `json:"services"`
}

// HealthCheck reports application health and probes every service in registry.
// registry may be nil, in which case only the process itself is reported.
func HealthCheck(cfg config.Config, registry *health.Registry) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := HealthResponse{
			Status:      "ok",
			Timestamp:   time.Now().UTC(),
			Service:     cfg.AppName,
			Environment: cfg.AppEnv,
			Services:    []health.Result{},
		}

		if registry != nil {
			report := registry.CheckAll(c.UserContext())
			payload.Services = report.Services
			if !report.Healthy() {
				payload.Status = "degraded"
				return utils.SendSuccessWithStatus(c, fiber.StatusServiceUnavailable, "service degraded", payload)
			}
		}

		return utils.SendSuccess(c, "service healthy", payload)
	}
}
