// Package stream relays camera viewer events to the video indicator.
package stream

import (
	"sync"
	"time"

	"github.com/mizuna-io/mizuna/internal/remote/connectivity"
	"github.com/mizuna-io/mizuna/pkg/log"
)

// Feed is the liveness feed name of the camera stream.
const Feed = "stream"

// Status texts shown to the operator.
const (
	StatusConnecting = "Camera: Connecting..."
	StatusConnected  = "Camera: Stream connected"
	StatusError      = "Camera: Stream error"
)

// StatusListener is called after every status change.
type StatusListener func(Status)

// Status is the latest camera message.
type Status struct {
	Text    string    `json:"text"`
	IsError bool      `json:"isError"`
	At      time.Time `json:"at"`
}

// Bridge maps viewer events one to one onto the video aggregator. It does
// not buffer or debounce.
type Bridge struct {
	observer connectivity.Observer

	// report serializes indicator update and status notification so the
	// last event reported is the one every consumer settles on.
	report sync.Mutex

	mu        sync.Mutex
	status    Status
	listeners []StatusListener
}

// NewBridge creates a Bridge reporting to observer.
func NewBridge(observer connectivity.Observer) *Bridge {
	return &Bridge{
		observer: observer,
		status:   Status{Text: StatusConnecting, At: time.Now()},
	}
}

// Loaded reports that the viewer received the stream.
func (b *Bridge) Loaded() {
	b.report.Lock()
	defer b.report.Unlock()
	b.observer.Observe(Feed, connectivity.Success)
	b.setStatus(StatusConnected, false)
}

// Errored reports that the viewer failed to load the stream.
func (b *Bridge) Errored() {
	b.report.Lock()
	defer b.report.Unlock()
	b.observer.Observe(Feed, connectivity.Failure)
	b.setStatus(StatusError, true)
	log.Warn("Camera stream error reported")
}

// Status returns the latest camera message.
func (b *Bridge) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// OnStatus registers fn for status changes.
func (b *Bridge) OnStatus(fn StatusListener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
}

func (b *Bridge) setStatus(text string, isError bool) {
	b.mu.Lock()
	b.status = Status{Text: text, IsError: isError, At: time.Now()}
	s := b.status
	listeners := append([]StatusListener(nil), b.listeners...)
	b.mu.Unlock()

	for _, l := range listeners {
		l(s)
	}
}
