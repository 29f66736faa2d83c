package http

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mizuna-io/mizuna/internal/pkg/metrics"
	"github.com/mizuna-io/mizuna/pkg/log"
	"github.com/mizuna-io/mizuna/pkg/options"
)

const defaultShutdownTimeout = 5 * time.Second

type Server struct {
	server  *http.Server
	options *options.HttpOptions
}

func NewServer(opts *options.HttpOptions, remote Remote) *Server {
	return &Server{
		server: &http.Server{
			Addr:              opts.Addr,
			Handler:           NewHandler(remote),
			ReadHeaderTimeout: 10 * time.Second,
		},
		options: opts,
	}
}

// NewHandler builds the router serving probes, metrics and the /api/v1
// surface backed by remote.
func NewHandler(remote Remote) http.Handler {
	h := &handler{remote: remote}
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.readyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/telemetry", h.telemetry).Methods(http.MethodGet)
	api.HandleFunc("/connectivity", h.connectivity).Methods(http.MethodGet)
	api.HandleFunc("/status", h.status).Methods(http.MethodGet)
	api.HandleFunc("/cmd/{direction}", h.command).Methods(http.MethodPost)
	api.HandleFunc("/speed", h.speed).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/chat", h.transcript).Methods(http.MethodGet)
	api.HandleFunc("/chat", h.chat).Methods(http.MethodPost)
	api.HandleFunc("/chat/clear", h.clearChat).Methods(http.MethodPost)
	api.HandleFunc("/stream/{event}", h.streamEvent).Methods(http.MethodPost)
	api.HandleFunc("/history", h.historySummary).Methods(http.MethodGet)
	api.HandleFunc("/history/{feed}", h.history).Methods(http.MethodGet)
	api.HandleFunc("/watch", h.watch).Methods(http.MethodGet)

	r.Use(loggingMiddleware)
	return r
}

func (s *Server) Start(ctx context.Context) error {
	network := s.options.Network
	if network == "" {
		network = "tcp"
	}
	lis, err := net.Listen(network, s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	log.Info("Starting HTTP Server", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeout := s.options.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}
