package telemetry

import (
	"context"
	"time"

	"github.com/looplab/fsm"
	"k8s.io/utils/clock"

	"github.com/mizuna-io/mizuna/internal/pkg/metrics"
	utilfsm "github.com/mizuna-io/mizuna/internal/pkg/util/fsm"
	"github.com/mizuna-io/mizuna/internal/remote/connectivity"
	"github.com/mizuna-io/mizuna/internal/remote/transport"
	"github.com/mizuna-io/mizuna/pkg/log"
)

// Task states.
const (
	StateIdle     = "idle"
	StateFetching = "fetching"
	StateSuccess  = "success"
	StateFailure  = "failure"
)

const (
	eventFetch   = "fetch"
	eventSucceed = "succeed"
	eventFail    = "fail"
)

// Result describes one completed fetch.
type Result struct {
	Feed    string
	Outcome connectivity.Outcome
	Err     error
	At      time.Time
	Latency time.Duration
}

// ResultHook receives every completed fetch.
type ResultHook func(Result)

// Task polls one feed on a fixed interval for the lifetime of its context.
type Task struct {
	feed     string
	interval time.Duration
	fetch    fetchFunc
	caller   transport.Caller
	store    *Store
	clock    clock.WithTicker

	observers []connectivity.Observer
	hooks     []ResultHook

	machine *fsm.FSM
	logger  log.Logger
}

func newTask(feed string, interval time.Duration, fetch fetchFunc, caller transport.Caller, store *Store, clk clock.WithTicker) *Task {
	t := &Task{
		feed:     feed,
		interval: interval,
		fetch:    fetch,
		caller:   caller,
		store:    store,
		clock:    clk,
		logger:   log.WithName("telemetry").WithValues("feed", feed),
	}

	t.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventFetch, Src: []string{StateIdle, StateSuccess, StateFailure}, Dst: StateFetching},
			{Name: eventSucceed, Src: []string{StateFetching}, Dst: StateSuccess},
			{Name: eventFail, Src: []string{StateFetching}, Dst: StateFailure},
		},
		fsm.Callbacks{
			// A stopping client must not start another fetch.
			"before_" + eventFetch: utilfsm.WrapEvent(func(ctx context.Context, _ *fsm.Event) error {
				return ctx.Err()
			}),
			"enter_" + StateFailure: func(_ context.Context, e *fsm.Event) {
				if len(e.Args) > 0 {
					if err, ok := e.Args[0].(error); ok {
						t.logger.Warn("Feed fetch failed, keeping previous values", "error", err)
					}
				}
			},
			"enter_" + StateSuccess: func(_ context.Context, _ *fsm.Event) {
				t.logger.Debug("Feed fetch succeeded")
			},
		},
	)
	return t
}

// Feed returns the name of the polled feed.
func (t *Task) Feed() string {
	return t.feed
}

// State returns the current state of the task.
func (t *Task) State() string {
	return t.machine.Current()
}

// Run fetches immediately, then once per interval, until ctx is done. A fetch
// always finishes before the next one of the same feed starts.
func (t *Task) Run(ctx context.Context) error {
	t.logger.Info("Starting feed task", "interval", t.interval)

	ticker := t.clock.NewTicker(t.interval)
	defer ticker.Stop()

	t.runOnce(ctx)

	for {
		select {
		case <-ticker.C():
			t.runOnce(ctx)
		case <-ctx.Done():
			t.logger.Info("Stopping feed task")
			return nil
		}
	}
}

func (t *Task) runOnce(ctx context.Context) {
	if err := t.machine.Event(ctx, eventFetch); err != nil {
		return
	}

	start := t.clock.Now()
	apply, err := t.fetch(ctx, t.caller)
	at := t.clock.Now()
	latency := at.Sub(start)

	// A fetch interrupted by shutdown is not an observation of the robot.
	if err != nil && ctx.Err() != nil {
		_ = t.machine.Event(context.Background(), eventFail, err)
		return
	}

	outcome := connectivity.OutcomeOf(err)
	if err == nil {
		t.store.succeed(t.feed, at, apply)
		_ = t.machine.Event(ctx, eventSucceed)
	} else {
		t.store.fail(t.feed, at, err)
		_ = t.machine.Event(ctx, eventFail, err)
	}

	metrics.FeedFetchTotal.WithLabelValues(t.feed, outcome.String()).Inc()
	metrics.FeedFetchLatency.WithLabelValues(t.feed).Observe(latency.Seconds())

	for _, o := range t.observers {
		o.Observe(t.feed, outcome)
	}
	res := Result{Feed: t.feed, Outcome: outcome, Err: err, At: at, Latency: latency}
	for _, h := range t.hooks {
		h(res)
	}
}
