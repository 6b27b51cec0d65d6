// Package api serves the dashboard outputs over HTTP: the leaderboard, node
// earnings, the hex map, dashboard stats and a websocket live feed.
package api

import (
	"fmt"
	"time"

	"github.com/qubitrhythm/disensor/internal/conf"
)

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultListen          = ":8080"
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string // host:port to bind

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RateLimit float64 // requests per second per client, 0 disables limiting
	Burst     int

	AllowedOrigins []string
	Debug          bool

	// Serve /metrics on the API listener.
	ServeMetrics bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          DefaultListen,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		AllowedOrigins:  []string{"*"},
	}
}

// ConfigFromSettings bridges conf.Settings to the server config.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	if settings.WebServer.Listen != "" {
		cfg.Listen = settings.WebServer.Listen
	}
	cfg.RateLimit = settings.WebServer.RateLimit
	cfg.Burst = settings.WebServer.Burst
	cfg.Debug = settings.WebServer.Debug || settings.Debug
	cfg.ServeMetrics = settings.Telemetry.Enabled && settings.Telemetry.Listen == ""
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit must not be negative, got %v", c.RateLimit)
	}
	if c.RateLimit > 0 && c.Burst < 0 {
		return fmt.Errorf("burst must not be negative, got %d", c.Burst)
	}
	return nil
}
