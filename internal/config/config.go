package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName         string
	AppEnv          string
	AppPort         string
	DatabaseURL     string
	RedisURL        string
	NATSURL         string
	JWTSecret       string
	StatsCacheTTL   time.Duration
	BulkBatchSize   int
	BulkRateLimit   int
	StoreTimeout    time.Duration
	EventChannel    string
	HealthTimeout   time.Duration
	ShutdownTimeout time.Duration
	CORSOrigins     string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
// Variables use the PROGRESS_ prefix, e.g. PROGRESS_DATABASE_URL.
func Load() (Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix("PROGRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.name", "Progress Report API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("stats.cache_ttl", "2m")
	v.SetDefault("bulk.batch_size", 10)
	v.SetDefault("bulk.rate_limit", 5)
	v.SetDefault("store.timeout", "5s")
	v.SetDefault("events.channel", "progress")
	v.SetDefault("health.timeout", "2s")
	v.SetDefault("shutdown.timeout", "5s")
	v.SetDefault("cors.origins", "*")

	durations := map[string]time.Duration{}
	for _, key := range []string{"stats.cache_ttl", "store.timeout", "health.timeout", "shutdown.timeout"} {
		value, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", key, err)
		}
		durations[key] = value
	}

	cfg := Config{
		AppName:         v.GetString("app.name"),
		AppEnv:          v.GetString("app.env"),
		AppPort:         v.GetString("app.port"),
		DatabaseURL:     v.GetString("database.url"),
		RedisURL:        v.GetString("redis.url"),
		NATSURL:         v.GetString("nats.url"),
		JWTSecret:       v.GetString("jwt.secret"),
		StatsCacheTTL:   durations["stats.cache_ttl"],
		BulkBatchSize:   v.GetInt("bulk.batch_size"),
		BulkRateLimit:   v.GetInt("bulk.rate_limit"),
		StoreTimeout:    durations["store.timeout"],
		EventChannel:    strings.TrimSpace(v.GetString("events.channel")),
		HealthTimeout:   durations["health.timeout"],
		ShutdownTimeout: durations["shutdown.timeout"],
		CORSOrigins:     strings.TrimSpace(v.GetString("cors.origins")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = 10
	}
	if cfg.BulkRateLimit <= 0 {
		cfg.BulkRateLimit = 5
	}

	return cfg, nil
}
