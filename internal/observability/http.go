package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// MetricsServer exposes /metrics on addr.
type MetricsServer struct {
	srv *http.Server
	log *zap.SugaredLogger
}

// NewMetricsServer constructs a MetricsServer. An empty addr disables it.
func NewMetricsServer(addr string, log *zap.SugaredLogger) *MetricsServer {
	if addr == "" {
		return &MetricsServer{log: log}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &MetricsServer{
		srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log: log,
	}
}

// Start serves in the background.
func (s *MetricsServer) Start() {
	if s.srv == nil {
		return
	}
	go func() {
		s.log.Infow("metrics listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorw("metrics server stopped", "error", err)
		}
	}()
}

func (s *MetricsServer) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
