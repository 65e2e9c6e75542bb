// Package api provides the PetMood HTTP server: the detect, history and
// health endpoints for each species and the middleware stack around them.
package api

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tphakala/petmood/internal/conf"
	"github.com/tphakala/petmood/internal/errors"
)

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	DefaultHistoryLimit    = 50
	DefaultMaxHistoryLimit = 500
	DefaultHistoryCacheTTL = 30 * time.Second
)

// Config holds the HTTP server configuration.
type Config struct {
	Host string
	Port int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BodyLimit string // detect upload limit, e.g. "16M"

	RateLimitRPS   float64 // 0 disables limiting
	RateLimitBurst int

	HistoryDefaultLimit int
	HistoryMaxLimit     int
	HistoryCacheTTL     time.Duration // 0 disables the history cache

	AllowedOrigins []string
	Debug          bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:                5000,
		ReadTimeout:         DefaultReadTimeout,
		WriteTimeout:        DefaultWriteTimeout,
		IdleTimeout:         DefaultIdleTimeout,
		ShutdownTimeout:     DefaultShutdownTimeout,
		BodyLimit:           "16M",
		HistoryDefaultLimit: DefaultHistoryLimit,
		HistoryMaxLimit:     DefaultMaxHistoryLimit,
		HistoryCacheTTL:     DefaultHistoryCacheTTL,
		AllowedOrigins:      []string{"*"},
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	ws := &settings.WebServer

	cfg.Host = ws.Host
	cfg.Port = ws.Port
	if ws.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = ws.ShutdownTimeout
	}
	if ws.MaxUploadMB > 0 {
		cfg.BodyLimit = strconv.Itoa(ws.MaxUploadMB) + "M"
	}

	cfg.RateLimitRPS = ws.RateLimit.RPS
	cfg.RateLimitBurst = ws.RateLimit.Burst

	if ws.History.DefaultLimit > 0 {
		cfg.HistoryDefaultLimit = ws.History.DefaultLimit
	}
	if ws.History.MaxLimit > 0 {
		cfg.HistoryMaxLimit = ws.History.MaxLimit
	}
	cfg.HistoryCacheTTL = ws.History.CacheTTL

	cfg.Debug = settings.Debug
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.Newf("invalid port %d", c.Port).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.Newf("read and write timeouts must be positive").
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if c.HistoryDefaultLimit > c.HistoryMaxLimit {
		return errors.Newf("history default limit %d exceeds max limit %d", c.HistoryDefaultLimit, c.HistoryMaxLimit).
			Component("api").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// Address returns the full address string for the server to listen on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
