package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/tphakala/petmood/internal/logger"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Endpoint serves /metrics on a dedicated listener, separate from the API.
type Endpoint struct {
	server        *http.Server
	listenAddress string
	log           logger.Logger
}

// NewEndpoint creates an endpoint for listenAddress, e.g. ":9090".
func NewEndpoint(listenAddress string, m *Metrics, log logger.Logger) *Endpoint {
	mux := http.NewServeMux()
	m.RegisterHandlers(mux)

	if log == nil {
		log = logger.NewSlogLogger(nil, logger.LogLevelInfo, nil)
	}

	return &Endpoint{
		listenAddress: listenAddress,
		log:           log.Module("metrics"),
		server: &http.Server{
			Addr:              listenAddress,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Run serves until ctx is cancelled, then shuts the server down gracefully.
// It returns nil on a clean shutdown.
func (e *Endpoint) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", e.listenAddress)
	if err != nil {
		return err
	}
	return e.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (e *Endpoint) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		e.log.Info("metrics endpoint starting", logger.String("address", ln.Addr().String()))
		errCh <- e.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	e.log.Info("stopping metrics endpoint")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.server.Shutdown(shutdownCtx); err != nil {
		e.log.Error("metrics endpoint shutdown error", logger.Error(err))
		return err
	}
	<-errCh
	return nil
}
