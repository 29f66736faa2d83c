// Package remote is the robot remote client: it polls telemetry, dispatches
// motion commands, runs the chat session, tracks the camera stream and keeps
// one connectivity indicator per consumer.
package remote

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mizuna-io/mizuna/internal/remote/archive"
	"github.com/mizuna-io/mizuna/internal/remote/chat"
	"github.com/mizuna-io/mizuna/internal/remote/command"
	"github.com/mizuna-io/mizuna/internal/remote/connectivity"
	"github.com/mizuna-io/mizuna/internal/remote/history"
	"github.com/mizuna-io/mizuna/internal/remote/relay"
	"github.com/mizuna-io/mizuna/internal/remote/server"
	httpserver "github.com/mizuna-io/mizuna/internal/remote/server/http"
	"github.com/mizuna-io/mizuna/internal/remote/stream"
	"github.com/mizuna-io/mizuna/internal/remote/telemetry"
	"github.com/mizuna-io/mizuna/internal/remote/watch"
	"github.com/mizuna-io/mizuna/pkg/log"
)

const (
	historyPruneInterval = time.Hour
	archiveTimeout       = 30 * time.Second
)

// Remote owns every component of the client for the lifetime of Run.
type Remote struct {
	robotID string

	indicators *connectivity.Set
	poller     *telemetry.Poller
	dispatcher *command.Dispatcher
	session    *chat.Session
	bridge     *stream.Bridge
	hub        *watch.Hub

	probe    *stream.Probe
	relay    *relay.Relay
	history  *history.Store
	archiver *archive.Archiver
	servers  *server.Manager

	ready  atomic.Bool
	logger log.Logger
}

// Run starts every task and blocks until ctx is done. Teardown waits for
// in-flight commands and chat exchanges, then archives the transcript.
func (r *Remote) Run(ctx context.Context) error {
	r.logger.Info("Starting remote client")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.poller.Run(gctx) })
	if r.probe != nil {
		g.Go(func() error { return r.probe.Run(gctx) })
	}
	if r.history != nil {
		g.Go(func() error { return r.history.Run(gctx, historyPruneInterval) })
	}
	if r.relay != nil {
		g.Go(func() error { return r.relay.Run(gctx) })
	}
	g.Go(func() error { return r.servers.Start(gctx) })

	r.ready.Store(true)
	err := g.Wait()
	r.ready.Store(false)

	r.teardown()
	r.logger.Info("Remote client stopped")
	return err
}

func (r *Remote) teardown() {
	r.session.Close()
	r.session.Wait()
	r.dispatcher.Wait()

	if r.archiver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		key, err := r.archiver.Archive(ctx, r.session.ID(), r.session.Transcript())
		cancel()
		switch {
		case err != nil:
			r.logger.Error(err, "Failed to archive chat transcript")
		case key != "":
			r.logger.Info("Archived chat transcript", "key", key)
		}
	}

	r.hub.Close()
	r.closeHistory()
}

func (r *Remote) closeHistory() {
	if r.history == nil {
		return
	}
	if err := r.history.Close(); err != nil {
		r.logger.Error(err, "Failed to close history store")
	}
}

// wireWatch publishes every render-relevant state change to the hub.
func (r *Remote) wireWatch() {
	r.poller.Store().Subscribe(func(_ string, snap telemetry.Snapshot) {
		r.hub.Publish(watch.NewEvent(watch.TypeTelemetry, snap))
	})
	for _, agg := range r.indicators.All() {
		agg.Subscribe(func(s connectivity.State) {
			r.hub.Publish(watch.NewEvent(watch.TypeConnectivity, s))
		})
	}
	r.dispatcher.OnStatus(func(s command.Status) {
		r.hub.Publish(watch.NewEvent(watch.TypeCommandStatus, s))
	})
	r.bridge.OnStatus(func(s stream.Status) {
		r.hub.Publish(watch.NewEvent(watch.TypeStreamStatus, s))
	})
	r.session.Subscribe(func(m chat.Message) {
		r.hub.Publish(watch.NewEvent(watch.TypeChatMessage, m))
	})
}

// Ready reports whether Run is active.
func (r *Remote) Ready() bool { return r.ready.Load() }

func (r *Remote) Snapshot() telemetry.Snapshot { return r.poller.Store().Snapshot() }

// Connectivity returns the three independent online flags.
func (r *Remote) Connectivity() map[string]bool { return r.indicators.Summary() }

func (r *Remote) Indicators() *connectivity.Set { return r.indicators }

func (r *Remote) CommandStatus() command.Status { return r.dispatcher.Status() }
func (r *Remote) StreamStatus() stream.Status   { return r.bridge.Status() }
func (r *Remote) Speed() int                    { return r.dispatcher.Speed() }

func (r *Remote) Press(dir command.Direction) bool { return r.dispatcher.Press(dir) }
func (r *Remote) Release()                         { r.dispatcher.Release() }
func (r *Remote) CommitSpeed(v float64) int        { return r.dispatcher.CommitSpeed(v) }

func (r *Remote) Transcript() []chat.Message { return r.session.Transcript() }

func (r *Remote) Chat(ctx context.Context, text string) bool {
	return r.session.Send(ctx, text)
}

func (r *Remote) ClearChat(ctx context.Context) (int, error) {
	return r.session.Clear(ctx)
}

func (r *Remote) StreamLoaded()  { r.bridge.Loaded() }
func (r *Remote) StreamErrored() { r.bridge.Errored() }

func (r *Remote) Watch() *watch.Hub { return r.hub }

// History returns the feed history, or nil when it is disabled.
func (r *Remote) History() httpserver.HistoryReader {
	if r.history == nil {
		return nil
	}
	return r.history
}

var (
	_ httpserver.Remote = (*Remote)(nil)
	_ relay.Intents     = (*Remote)(nil)
	_ relay.State       = (*Remote)(nil)
)
