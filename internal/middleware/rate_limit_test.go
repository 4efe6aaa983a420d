package middleware_test

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-progress-api/internal/middleware"
)

func TestRateLimitKeysByUser(t *testing.T) {
	limiter := middleware.RateLimit("reports-bulk", 1, time.Minute)
	userID := uint(1)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user_id", userID)
		return c.Next()
	})
	app.Get("/", limiter, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	require.Equal(t, fiber.StatusNoContent, perform(t, app).StatusCode)
	require.Equal(t, fiber.StatusTooManyRequests, perform(t, app).StatusCode)

	userID = 2
	require.Equal(t, fiber.StatusNoContent, perform(t, app).StatusCode)
}
