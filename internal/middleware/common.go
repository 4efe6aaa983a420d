package middleware

import (
	"fmt"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// DefaultTrackedPrefixes are the route prefixes RequestMetrics reports on.
var DefaultTrackedPrefixes = []string{"/api/v2/reports", "/api/admin"}

// Config customises the middleware registration pipeline.
type Config struct {
	Logger          *zerolog.Logger
	AllowOrigins    string
	TrackedPrefixes []string
}

// Register attaches panic recovery, correlation ids, request metrics and CORS.
func Register(app *fiber.App, cfg Config) {
	requestLogger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		requestLogger = *cfg.Logger
	}
	requestLogger = requestLogger.With().Str("component", "http").Logger()

	origins := strings.TrimSpace(cfg.AllowOrigins)
	if origins == "" {
		origins = "*"
	}
	prefixes := cfg.TrackedPrefixes
	if prefixes == nil {
		prefixes = DefaultTrackedPrefixes
	}

	logPanic := func(c *fiber.Ctx, e interface{}) {
		requestLogger.Error().
			Str("correlation_id", GetCorrelationID(c)).
			Str("path", c.Path()).
			Str("panic", fmt.Sprint(e)).
			Msg("request panicked")
	}

	app.Use(recover.New(recover.Config{EnableStackTrace: true, StackTraceHandler: logPanic}))
	app.Use(CorrelationID())
	app.Use(RequestMetrics(requestLogger, prefixes...))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + CorrelationHeader,
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		ExposeHeaders: CorrelationHeader + ", Content-Disposition",
	}))
}
