package observe

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hfyydd/Open-AutoGLM/internal/health"
)

// MetricsServer exposes /metrics for Prometheus scraping plus the /healthz
// and /readyz probes. It is optional: the application runs fine without it,
// the instruments just go unscraped.
type MetricsServer struct {
	server *http.Server
	logger *slog.Logger
}

// NewMetricsServer constructs a MetricsServer listening on addr
// (e.g. "127.0.0.1:9090"). The checkers feed the /readyz probe.
func NewMetricsServer(addr, version string, logger *slog.Logger, checkers ...health.Checker) *MetricsServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MetricsServer{logger: logger}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New("autoglm", version, checkers...).Register(mux)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start begins serving in a background goroutine.
func (s *MetricsServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.logger.Info("metrics server listening", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server error", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the server down.
func (s *MetricsServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
