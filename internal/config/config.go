// Package config loads service settings from the environment, optionally seeded from a .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/Vasu1712/scenyx-rooms/internal/logging"
)

// Config holds everything cmd/main.go needs to wire the service.
type Config struct {
	Port           int      `env:"PORT" env-default:"3010"`
	Environment    string   `env:"ENVIRONMENT" env-default:"dev"`
	NodeID         string   `env:"NODE_ID"` // defaults to the hostname
	JWTSecret      string   `env:"JWT_SECRET" env-required:"true"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" env-default:"http://127.0.0.1:5173,http://localhost:5173"`

	ValkeyAddr     string `env:"VALKEY_ADDR"` // empty = keep all state in process memory
	ValkeyPassword string `env:"VALKEY_PASSWORD"`
	ValkeyDB       int    `env:"VALKEY_DB" env-default:"0"`

	TickInterval time.Duration `env:"TICK_INTERVAL" env-default:"1s"`
	ProbeTimeout time.Duration `env:"PROBE_TIMEOUT" env-default:"5s"`
	PresenceTTL  time.Duration `env:"PRESENCE_TTL" env-default:"30s"`

	LogLevelName string `env:"LOG_LEVEL" env-default:"info"`
	LogFormat    string `env:"LOG_FORMAT" env-default:"text"`

	// Derived from the fields above by Load.
	LogLevel slog.Level
	LogJSON  bool
}

// LoadDotEnv reads .env files into the environment. It reports whether a file was found.
func LoadDotEnv(files ...string) bool {
	return godotenv.Load(files...) == nil
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finish() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.TickInterval <= 0 || c.ProbeTimeout <= 0 || c.PresenceTTL <= 0 {
		return fmt.Errorf("TICK_INTERVAL, PROBE_TIMEOUT and PRESENCE_TTL must be positive")
	}

	level, err := logging.ParseLevel(c.LogLevelName)
	if err != nil {
		return err
	}
	c.LogLevel = level
	c.LogJSON = strings.EqualFold(strings.TrimSpace(c.LogFormat), "json")

	if c.NodeID = strings.TrimSpace(c.NodeID); c.NodeID == "" {
		c.NodeID = hostname()
	}
	c.AllowedOrigins = compact(c.AllowedOrigins)
	return nil
}

// IsProduction reports whether the node serves production traffic.
func (c *Config) IsProduction() bool {
	return c.Environment == "prod" || c.Environment == "production"
}

func compact(list []string) []string {
	var out []string
	for _, part := range list {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "scenyx-node"
	}
	return name
}
