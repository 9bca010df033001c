package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	ServerPort     int           `env:"PORT" envDefault:"8080"`
	DatabasePath   string        `env:"DATABASE_PATH" envDefault:"./identity.db"`
	JWTSecret      string        `env:"JWT_SECRET,notEmpty"`
	AllowedOrigin  string        `env:"ALLOWED_ORIGIN" envDefault:"http://localhost:3000"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	StatsInterval  time.Duration `env:"STATS_INTERVAL" envDefault:"15s"`
	EventRetention time.Duration `env:"EVENT_RETENTION" envDefault:"720h"`
	// RetentionCron is a standard cron expression controlling when old
	// audit events are purged.
	RetentionCron string `env:"RETENTION_CRON" envDefault:"0 3 * * *"`
}

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
