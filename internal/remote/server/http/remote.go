// Package http serves the status surface: a read-only view of the client
// state plus the intents a local front end may send.
package http

import (
	"context"

	"github.com/mizuna-io/mizuna/internal/remote/chat"
	"github.com/mizuna-io/mizuna/internal/remote/command"
	"github.com/mizuna-io/mizuna/internal/remote/history"
	"github.com/mizuna-io/mizuna/internal/remote/stream"
	"github.com/mizuna-io/mizuna/internal/remote/telemetry"
	"github.com/mizuna-io/mizuna/internal/remote/watch"
)

// Remote is the client state the server renders and drives.
type Remote interface {
	Ready() bool

	Snapshot() telemetry.Snapshot
	Connectivity() map[string]bool
	CommandStatus() command.Status
	StreamStatus() stream.Status
	Speed() int

	Press(dir command.Direction) bool
	Release()
	CommitSpeed(v float64) int

	Transcript() []chat.Message
	Chat(ctx context.Context, text string) bool
	ClearChat(ctx context.Context) (int, error)

	StreamLoaded()
	StreamErrored()

	Watch() *watch.Hub
	// History returns nil when no history store is configured.
	History() HistoryReader
}

// HistoryReader reads recorded feed outcomes.
type HistoryReader interface {
	Recent(ctx context.Context, feed string, limit int) ([]history.Entry, error)
	Summarize(ctx context.Context) ([]history.Summary, error)
}
