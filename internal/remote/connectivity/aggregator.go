// Package connectivity derives per-consumer online indicators from the
// outcomes of designated liveness feeds.
package connectivity

import (
	"sync"
	"time"

	"github.com/mizuna-io/mizuna/internal/pkg/metrics"
	"github.com/mizuna-io/mizuna/pkg/log"
)

// Scopes of the three independent indicators.
const (
	ScopeVideo     = "video"
	ScopeTelemetry = "telemetry"
	ScopeChat      = "chat"
)

// Observer accepts feed outcomes. *Aggregator implements it.
type Observer interface {
	Observe(feed string, outcome Outcome)
}

// State is the externally visible view of an Aggregator.
type State struct {
	Scope  string    `json:"scope"`
	Online bool      `json:"online"`
	Feed   string    `json:"feed,omitempty"`
	Since  time.Time `json:"since"`
}

// Listener is invoked synchronously whenever the online flag changes.
type Listener func(State)

// Aggregator tracks one online flag. The flag is true iff the most recent
// observation from any designated feed was Success. Observations from other
// feeds are ignored.
type Aggregator struct {
	scope string
	feeds map[string]struct{}
	now   func() time.Time

	// notify is held across a state change and its notifications, so
	// listeners see changes in the order they were applied.
	notify sync.Mutex

	mu        sync.Mutex
	state     State
	listeners []Listener
}

var _ Observer = (*Aggregator)(nil)

// New creates an offline Aggregator for scope that listens to feeds.
func New(scope string, feeds ...string) *Aggregator {
	a := &Aggregator{
		scope: scope,
		feeds: make(map[string]struct{}, len(feeds)),
		now:   time.Now,
	}
	for _, f := range feeds {
		a.feeds[f] = struct{}{}
	}
	a.state = State{Scope: scope, Since: a.now()}
	metrics.ConnectivityStatus.WithLabelValues(scope).Set(0)
	return a
}

// Scope returns the name of the indicator.
func (a *Aggregator) Scope() string {
	return a.scope
}

// Observe records an outcome. Pending observations and undesignated feeds
// leave the flag unchanged.
func (a *Aggregator) Observe(feed string, outcome Outcome) {
	if _, ok := a.feeds[feed]; !ok || outcome == Pending {
		return
	}

	online := outcome == Success

	a.notify.Lock()
	defer a.notify.Unlock()

	a.mu.Lock()
	if a.state.Online == online {
		a.state.Feed = feed
		a.mu.Unlock()
		return
	}
	a.state = State{Scope: a.scope, Online: online, Feed: feed, Since: a.now()}
	snapshot := a.state
	listeners := append([]Listener(nil), a.listeners...)
	a.mu.Unlock()

	if online {
		metrics.ConnectivityStatus.WithLabelValues(a.scope).Set(1)
	} else {
		metrics.ConnectivityStatus.WithLabelValues(a.scope).Set(0)
	}
	log.Info("Connectivity changed", "scope", a.scope, "online", online, "feed", feed)

	for _, l := range listeners {
		l(snapshot)
	}
}

// Online reports the current flag.
func (a *Aggregator) Online() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Online
}

// State returns a copy of the current state.
func (a *Aggregator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Subscribe registers fn for change notifications.
func (a *Aggregator) Subscribe(fn Listener) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Set groups the per-consumer aggregators. They are never combined into one
// flag.
type Set struct {
	Video     *Aggregator
	Telemetry *Aggregator
	Chat      *Aggregator
}

// All returns the aggregators in a stable order.
func (s *Set) All() []*Aggregator {
	return []*Aggregator{s.Video, s.Telemetry, s.Chat}
}

// Summary maps each scope to its online flag.
func (s *Set) Summary() map[string]bool {
	out := make(map[string]bool, 3)
	for _, a := range s.All() {
		out[a.Scope()] = a.Online()
	}
	return out
}
