package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RateLimitConfig configures a token bucket shared by every client.
type RateLimitConfig struct {
	RPS   float64 // sustained rate, <= 0 disables limiting
	Burst int

	// DenyHandler writes the response for a rejected request.
	DenyHandler func(c echo.Context) error
}

// sharedStore hands out tokens from one bucket regardless of identifier.
type sharedStore struct {
	limiter *rate.Limiter
}

func (s *sharedStore) Allow(string) (bool, error) {
	return s.limiter.Allow(), nil
}

// NewSharedRateLimiter returns a middleware limiting the routes it is
// attached to. With a non-positive rate it passes every request through.
func NewSharedRateLimiter(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.RPS <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	burst := cfg.Burst
	if burst < 1 {
		burst = max(1, int(cfg.RPS))
	}

	deny := cfg.DenyHandler
	if deny == nil {
		deny = func(c echo.Context) error {
			return echo.ErrTooManyRequests
		}
	}

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: &sharedStore{limiter: rate.NewLimiter(rate.Limit(cfg.RPS), burst)},
		IdentifierExtractor: func(echo.Context) (string, error) {
			return "shared", nil
		},
		ErrorHandler: func(c echo.Context, _ error) error {
			return deny(c)
		},
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			return deny(c)
		},
	})
}
