// Package telemetry polls the robot's telemetry feeds on independent
// cadences and keeps the latest values in a shared snapshot.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/mizuna-io/mizuna/internal/remote/connectivity"
	"github.com/mizuna-io/mizuna/internal/remote/transport"
)

// Intervals holds the cadence of each feed.
type Intervals struct {
	Temperature time.Duration
	Uptime      time.Duration
	Performance time.Duration
}

// DefaultIntervals are the standard cadences.
func DefaultIntervals() Intervals {
	return Intervals{
		Temperature: 30 * time.Second,
		Uptime:      60 * time.Second,
		Performance: 180 * time.Second,
	}
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces the clock driving the feed tickers.
func WithClock(clk clock.WithTicker) Option {
	return func(p *Poller) { p.clock = clk }
}

// WithObserver forwards the outcome of feed to o.
func WithObserver(feed string, o connectivity.Observer) Option {
	return func(p *Poller) { p.observers[feed] = append(p.observers[feed], o) }
}

// WithResultHook registers h for every completed fetch of every feed.
func WithResultHook(h ResultHook) Option {
	return func(p *Poller) { p.hooks = append(p.hooks, h) }
}

// Poller owns one Task per feed and the Store they write to.
type Poller struct {
	store *Store
	tasks []*Task
	clock clock.WithTicker

	observers map[string][]connectivity.Observer
	hooks     []ResultHook
}

// NewPoller creates a Poller for the temperature, uptime and performance
// feeds.
func NewPoller(caller transport.Caller, intervals Intervals, opts ...Option) (*Poller, error) {
	p := &Poller{
		store:     NewStore(FeedTemperature, FeedUptime, FeedPerformance),
		clock:     clock.RealClock{},
		observers: make(map[string][]connectivity.Observer),
	}
	for _, opt := range opts {
		opt(p)
	}

	feeds := []struct {
		name     string
		interval time.Duration
		fetch    fetchFunc
	}{
		{FeedTemperature, intervals.Temperature, fetchTemperature},
		{FeedUptime, intervals.Uptime, fetchUptime},
		{FeedPerformance, intervals.Performance, fetchPerformance},
	}

	for _, f := range feeds {
		if f.interval <= 0 {
			return nil, fmt.Errorf("interval of feed %q must be positive", f.name)
		}
		t := newTask(f.name, f.interval, f.fetch, caller, p.store, p.clock)
		t.observers = p.observers[f.name]
		t.hooks = p.hooks
		p.tasks = append(p.tasks, t)
	}
	return p, nil
}

// Store returns the shared snapshot store.
func (p *Poller) Store() *Store {
	return p.store
}

// Tasks returns the feed tasks.
func (p *Poller) Tasks() []*Task {
	return p.tasks
}

// Run starts every feed task and blocks until ctx is done and all tasks have
// returned.
func (p *Poller) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, t := range p.tasks {
		eg.Go(func() error { return t.Run(ctx) })
	}
	return eg.Wait()
}
