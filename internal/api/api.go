package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/petmood/internal/api/middleware"
	"github.com/tphakala/petmood/internal/buildinfo"
	"github.com/tphakala/petmood/internal/datastore/repository"
	"github.com/tphakala/petmood/internal/emotion"
	"github.com/tphakala/petmood/internal/logger"
	"github.com/tphakala/petmood/internal/mqtt"
	"github.com/tphakala/petmood/internal/observability/metrics"
)

// Detector is the part of emotion.Detector the handlers use.
type Detector interface {
	Species() emotion.Species
	Ready() bool
	Reason() string
	Labels() []string
	BackendName() string
	Predict(ctx context.Context, data []byte) (*emotion.Prediction, error)
}

// Pinger reports database reachability for the aggregate health check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Controller manages the API routes and handlers.
type Controller struct {
	Echo   *echo.Echo
	Group  *echo.Group
	config *Config

	detectors map[emotion.Species]Detector
	history   repository.HistoryRepository
	db        Pinger
	publisher mqtt.Publisher

	historyCache *cache.Cache
	historyMu    sync.Mutex
	historyGen   map[string]uint64 // bumped per species/pet on every stored detection
	metrics      *metrics.HTTPMetrics
	build        *buildinfo.Context
	startTime    time.Time
	logger       logger.Logger
}

// Option is a functional option for configuring the Controller.
type Option func(*Controller)

// WithDetectors registers detectors by their species.
func WithDetectors(detectors ...Detector) Option {
	return func(c *Controller) {
		for _, d := range detectors {
			if d != nil {
				c.detectors[d.Species()] = d
			}
		}
	}
}

// WithRegistry registers every detector of r.
func WithRegistry(r *emotion.Registry) Option {
	return func(c *Controller) {
		for _, d := range r.Detectors() {
			c.detectors[d.Species()] = d
		}
	}
}

// WithDatabase sets the database checked by the aggregate health endpoint.
func WithDatabase(db Pinger) Option {
	return func(c *Controller) {
		c.db = db
	}
}

// WithPublisher sets the detection event publisher.
func WithPublisher(p mqtt.Publisher) Option {
	return func(c *Controller) {
		if p != nil {
			c.publisher = p
		}
	}
}

// WithMetrics sets the HTTP metrics.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithBuildInfo sets the version reported by the health endpoint.
func WithBuildInfo(b *buildinfo.Context) Option {
	return func(c *Controller) {
		c.build = b
	}
}

// WithLogger sets the API logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewController creates the controller and registers its routes under /api
// on e. Species without a registered detector are served by an unavailable
// one.
func NewController(e *echo.Echo, config *Config, history repository.HistoryRepository, opts ...Option) *Controller {
	if config == nil {
		config = DefaultConfig()
	}

	c := &Controller{
		Echo:      e,
		config:    config,
		detectors: make(map[emotion.Species]Detector, len(emotion.AllSpecies)),
		history:   history,
		publisher: mqtt.NopPublisher{},
		startTime: time.Now(),
		logger:    logger.NewSlogLogger(nil, logger.LogLevelInfo, nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Module("api")

	for _, s := range emotion.AllSpecies {
		if _, ok := c.detectors[s]; !ok {
			c.detectors[s] = emotion.NewUnavailable(s, "no detector configured")
		}
	}

	if config.HistoryCacheTTL > 0 {
		c.historyCache = cache.New(config.HistoryCacheTTL, 2*config.HistoryCacheTTL)
		c.historyGen = make(map[string]uint64)
	}

	e.HTTPErrorHandler = c.httpErrorHandler
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group = c.Echo.Group("/api")
	c.Group.GET("/health", c.GetHealth)

	limiter := middleware.NewSharedRateLimiter(middleware.RateLimitConfig{
		RPS:   c.config.RateLimitRPS,
		Burst: c.config.RateLimitBurst,
		DenyHandler: func(ctx echo.Context) error {
			c.metrics.RecordRateLimited(ctx.Path())
			return c.HandleError(ctx, nil, msgTooManyRequests, http.StatusTooManyRequests)
		},
	})
	bodyLimit := middleware.NewBodyLimit(c.config.BodyLimit)

	for _, s := range emotion.AllSpecies {
		g := c.Group.Group("/" + s.String() + "-emotion")
		g.POST("/detect", c.detectHandler(s), limiter, bodyLimit)
		g.GET("/history/:petId", c.historyHandler(s))
		g.GET("/health", c.speciesHealthHandler(s))
	}
}

// detector returns the detector serving species.
func (c *Controller) detector(species emotion.Species) Detector {
	return c.detectors[species]
}
