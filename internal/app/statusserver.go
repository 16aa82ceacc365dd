package app

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/his-sync/replicator/pkg/logger"
)

// statusServer is the optional HTTP status surface: liveness at /healthz and
// Prometheus collectors at /metrics, grounded on the teacher's
// infrastructure/service/runner.go ("/metrics" via promhttp.Handler()).
type statusServer struct {
	addr   string
	log    *logger.Logger
	server *http.Server
}

func newStatusServer(addr string, registry *prometheus.Registry, log *logger.Logger) *statusServer {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &statusServer{
		addr:   addr,
		log:    log,
		server: &http.Server{Addr: addr, Handler: mux},
	}
}

func (s *statusServer) Name() string { return "status-server" }

func (s *statusServer) Start(context.Context) error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Warn("status server stopped unexpectedly")
		}
	}()
	s.log.WithField("addr", s.addr).Info("status server listening")
	return nil
}

func (s *statusServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
