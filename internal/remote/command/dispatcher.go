// Package command sends movement and speed commands to the motor controller.
// Sends are fire-and-forget: results only surface as a status message.
package command

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/mizuna-io/mizuna/internal/pkg/metrics"
	"github.com/mizuna-io/mizuna/internal/remote/transport"
	"github.com/mizuna-io/mizuna/pkg/log"
)

// Status texts shown to the operator.
const (
	StatusReady           = "Ready"
	StatusConnectionError = "Connection Error"
)

// Status is the latest one-shot message produced by a dispatch.
type Status struct {
	Text    string    `json:"text"`
	IsError bool      `json:"isError"`
	At      time.Time `json:"at"`
}

// StatusListener is called after every status change.
type StatusListener func(Status)

// Dispatcher issues /cmd and /speed requests without waiting for them.
type Dispatcher struct {
	caller transport.Caller

	mu        sync.Mutex
	inFlight  map[Direction]int
	speed     int
	status    Status
	listeners []StatusListener

	wg sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with the default speed setpoint.
func NewDispatcher(caller transport.Caller) *Dispatcher {
	return &Dispatcher{
		caller:   caller,
		inFlight: make(map[Direction]int),
		speed:    DefaultSpeed,
		status:   Status{Text: StatusReady, At: time.Now()},
	}
}

// Press starts moving in dir. A repeat press of a direction whose command
// is still in flight is dropped. It reports whether a request was sent.
func (d *Dispatcher) Press(dir Direction) bool {
	if !dir.IsMovement() {
		log.Warn("Ignoring press of a non-movement direction", "direction", string(dir))
		return false
	}

	d.mu.Lock()
	if d.inFlight[dir] > 0 {
		d.mu.Unlock()
		log.Debug("Collapsed repeat press", "direction", string(dir))
		return false
	}
	d.inFlight[dir]++
	d.mu.Unlock()

	d.sendCommand(dir)
	return true
}

// Release sends exactly one Stop, regardless of any press still in flight.
func (d *Dispatcher) Release() {
	d.mu.Lock()
	d.inFlight[Stop]++
	d.mu.Unlock()

	d.sendCommand(Stop)
}

// CommitSpeed clamps v and sends it once. It returns the value sent.
func (d *Dispatcher) CommitSpeed(v float64) int {
	speed := ClampSpeed(v)

	d.mu.Lock()
	d.speed = speed
	d.mu.Unlock()

	d.setStatus("Speed: "+strconv.Itoa(speed), false)
	d.dispatch("speed", transport.Request{
		Method:      http.MethodGet,
		Path:        "/speed",
		Query:       url.Values{"v": {strconv.Itoa(speed)}},
		DiscardBody: true,
	}, nil)
	return speed
}

// Speed returns the last committed setpoint.
func (d *Dispatcher) Speed() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.speed
}

// Status returns the latest status message.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// OnStatus registers fn for status changes.
func (d *Dispatcher) OnStatus(fn StatusListener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// Wait blocks until every in-flight send has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) sendCommand(dir Direction) {
	d.setStatus("CMD: "+string(dir), false)
	d.dispatch("cmd", transport.Request{
		Method:      http.MethodGet,
		Path:        "/cmd",
		Query:       url.Values{"c": {string(dir)}},
		DiscardBody: true,
	}, func() {
		d.mu.Lock()
		d.inFlight[dir]--
		d.mu.Unlock()
	})
}

func (d *Dispatcher) dispatch(name string, req transport.Request, done func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if done != nil {
			defer done()
		}

		_, err := d.caller.Call(context.Background(), req)
		label := name
		if c := req.Query.Get("c"); c != "" {
			label = name + ":" + c
		}
		if err != nil {
			metrics.CommandSentTotal.WithLabelValues(label, "error").Inc()
			log.Warn("Robot command failed", "path", req.Path, "query", req.Query.Encode(), "error", err)
			d.setStatus(StatusConnectionError, true)
			return
		}
		metrics.CommandSentTotal.WithLabelValues(label, "ok").Inc()
	}()
}

func (d *Dispatcher) setStatus(text string, isError bool) {
	d.mu.Lock()
	d.status = Status{Text: text, IsError: isError, At: time.Now()}
	s := d.status
	listeners := append([]StatusListener(nil), d.listeners...)
	d.mu.Unlock()

	for _, l := range listeners {
		l(s)
	}
}
