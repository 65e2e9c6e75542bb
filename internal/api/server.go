package api

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/tphakala/petmood/internal/api/middleware"
	"github.com/tphakala/petmood/internal/conf"
	"github.com/tphakala/petmood/internal/datastore/repository"
	"github.com/tphakala/petmood/internal/logger"
	"github.com/tphakala/petmood/internal/observability"
)

// Server is the PetMood HTTP server. It owns the echo instance, the
// middleware stack and the API controller.
type Server struct {
	echo       *echo.Echo
	config     *Config
	controller *Controller
	log        logger.Logger
	accessLog  logger.Logger
	metrics    *observability.Metrics

	controllerOpts []Option
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithServerLogger sets the server logger. The access log is written to
// its "access" module.
func WithServerLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithAccessLogger sets the request log, normally the central logger's
// "access" module so it lands in its own file.
func WithAccessLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.accessLog = l
	}
}

// WithPrometheus mounts /metrics on the API listener and records HTTP
// metrics.
func WithPrometheus(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithControllerOptions passes options through to the API controller:
// detectors, database, publisher and build info.
func WithControllerOptions(opts ...Option) ServerOption {
	return func(s *Server) {
		s.controllerOpts = append(s.controllerOpts, opts...)
	}
}

// New creates the HTTP server serving history from history.
func New(settings *conf.Settings, history repository.HistoryRepository, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Server{config: config}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}
	if s.accessLog == nil {
		s.accessLog = s.log.Module("access")
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()

	controllerOpts := append([]Option{WithLogger(s.log)}, s.controllerOpts...)
	if s.metrics != nil {
		controllerOpts = append(controllerOpts, WithMetrics(s.metrics.HTTP))
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
	s.controller = NewController(s.echo, config, history, controllerOpts...)

	s.log.Module("api").Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.Float64("rate_limit_rps", config.RateLimitRPS),
		logger.String("body_limit", config.BodyLimit))

	return s, nil
}

// setupMiddleware configures the echo middleware stack.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.accessLog, func(c echo.Context) bool {
		return c.Path() == "/metrics"
	}))
	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}
	s.echo.Use(mw.NewCORS(mw.SecurityConfig{AllowedOrigins: s.config.AllowedOrigins}))
	s.echo.Use(mw.NewSecureHeaders())
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully
// within the configured shutdown timeout. It returns nil on a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.echo.Listener = ln

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server starting", logger.String("address", ln.Addr().String()))
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		s.log.Error("HTTP server shutdown error", logger.Error(err))
		return err
	}
	<-errCh
	s.log.Info("HTTP server shutdown complete")
	return nil
}

// Echo returns the underlying echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Controller returns the API controller.
func (s *Server) Controller() *Controller {
	return s.controller
}
