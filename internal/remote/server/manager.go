// Package server runs the status surface: an HTTP API with a websocket watch
// stream, and an optional gRPC health endpoint.
package server

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mizuna-io/mizuna/internal/remote/connectivity"
	"github.com/mizuna-io/mizuna/internal/remote/server/grpc"
	"github.com/mizuna-io/mizuna/internal/remote/server/http"
	"github.com/mizuna-io/mizuna/pkg/log"
	"github.com/mizuna-io/mizuna/pkg/options"
)

// Server is a sub-server run by the Manager.
type Server interface {
	Start(ctx context.Context) error
}

// Config selects which servers to run.
type Config struct {
	HttpOptions *options.HttpOptions
	GrpcOptions *options.GrpcOptions
}

// Manager runs the configured servers until the context is done.
type Manager struct {
	servers []Server
}

// NewManager creates the enabled servers. A disabled server is skipped.
func NewManager(cfg *Config, remote http.Remote, indicators *connectivity.Set) *Manager {
	var servers []Server

	if cfg.HttpOptions != nil && cfg.HttpOptions.Enabled() {
		servers = append(servers, http.NewServer(cfg.HttpOptions, remote))
	}
	if cfg.GrpcOptions != nil && cfg.GrpcOptions.Enabled() {
		servers = append(servers, grpc.NewServer(cfg.GrpcOptions, indicators))
	}

	return &Manager{servers: servers}
}

// Len returns the number of enabled servers.
func (m *Manager) Len() int {
	return len(m.servers)
}

// Start launches all servers in parallel and waits for termination.
func (m *Manager) Start(ctx context.Context) error {
	if len(m.servers) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, srv := range m.servers {
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("Status servers starting", "count", len(m.servers))
	return g.Wait()
}
