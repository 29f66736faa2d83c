package grpc

import (
	"context"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/mizuna-io/mizuna/internal/remote/connectivity"
	"github.com/mizuna-io/mizuna/pkg/log"
	"github.com/mizuna-io/mizuna/pkg/options"
)

// ServicePrefix prefixes the health service name of each indicator scope.
const ServicePrefix = "mizuna."

// ServiceName returns the health service name for scope.
func ServiceName(scope string) string {
	return ServicePrefix + scope
}

// Server exposes the connectivity indicators through the standard gRPC
// health protocol.
type Server struct {
	opts   *options.GrpcOptions
	health *health.Server
	server *grpc.Server
}

// NewServer creates a Server whose services follow indicators.
func NewServer(opts *options.GrpcOptions, indicators *connectivity.Set) *Server {
	hs := health.NewServer()

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(UnaryTimeoutInterceptor, UnaryLoggingInterceptor))
	healthpb.RegisterHealthServer(srv, hs)

	if indicators != nil {
		for _, agg := range indicators.All() {
			name := ServiceName(agg.Scope())
			hs.SetServingStatus(name, servingStatus(agg.Online()))
			agg.Subscribe(func(s connectivity.State) {
				hs.SetServingStatus(name, servingStatus(s.Online))
			})
		}
	}

	return &Server{opts: opts, health: hs, server: srv}
}

// Health returns the underlying health server.
func (s *Server) Health() *health.Server {
	return s.health
}

// Start serves until ctx is done, then stops gracefully.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen(s.opts.Network, s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on grpc addr %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve serves on lis until ctx is done.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	log.Info("Starting gRPC health server", "addr", lis.Addr().String())

	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.server.GracefulStop()
	}()

	if err := s.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}

func servingStatus(online bool) healthpb.HealthCheckResponse_ServingStatus {
	if online {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
