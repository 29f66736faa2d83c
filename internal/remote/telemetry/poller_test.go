package telemetry

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/mizuna-io/mizuna/internal/remote/connectivity"
	"github.com/mizuna-io/mizuna/internal/remote/transport"
)

// fakeRobot answers feed requests from canned bodies and counts calls.
type fakeRobot struct {
	mu     sync.Mutex
	bodies map[string]string
	fail   map[string]bool
	calls  map[string]int
}

func newFakeRobot() *fakeRobot {
	return &fakeRobot{
		bodies: map[string]string{
			"/temperature": `{"cpu_temp":55.5,"gpu_temp":54.0,"timestamp":1700000000}`,
			"/uptime":      `{"app_uptime":{"formatted":"1h 2m"}}`,
			"/performance": `{"robot_connectivity":{"robot_status":"online","stats":{"avg_response_time":12.5}},"system":{"cpu":{"percent":20},"disk":{"percent":40}}}`,
		},
		fail:  map[string]bool{},
		calls: map[string]int{},
	}
}

func (f *fakeRobot) Call(_ context.Context, req transport.Request) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[req.Path]++
	if f.fail[req.Path] {
		return nil, &transport.Error{Kind: transport.KindTimeout, Method: req.Method, Path: req.Path}
	}
	return json.RawMessage(f.bodies[req.Path]), nil
}

func (f *fakeRobot) set(path, body string, fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[path] = body
	f.fail[path] = fail
}

func (f *fakeRobot) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	err := wait.PollUntilContextTimeout(context.Background(), time.Millisecond, 2*time.Second, true,
		func(context.Context) (bool, error) { return cond(), nil })
	if err != nil {
		t.Fatal("condition not met in time")
	}
}

func startPoller(t *testing.T, robot *fakeRobot, opts ...Option) (*Poller, *testingclock.FakeClock) {
	t.Helper()
	clk := testingclock.NewFakeClock(time.Unix(1700000000, 0))
	p, err := NewPoller(robot, DefaultIntervals(), append([]Option{WithClock(clk)}, opts...)...)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
	return p, clk
}

func TestFeedsStartImmediately(t *testing.T) {
	robot := newFakeRobot()
	p, _ := startPoller(t, robot)

	waitFor(t, func() bool {
		snap := p.Store().Snapshot()
		for _, f := range []string{FeedTemperature, FeedUptime, FeedPerformance} {
			if snap.Feeds[f].Outcome != connectivity.Success {
				return false
			}
		}
		return true
	})

	snap := p.Store().Snapshot()
	if snap.CPUTemp == nil || *snap.CPUTemp != 55.5 {
		t.Errorf("CPUTemp = %v", snap.CPUTemp)
	}
	if !snap.TemperatureAt.Equal(time.Unix(1700000000, 0)) {
		t.Errorf("TemperatureAt = %v", snap.TemperatureAt)
	}
	if snap.UptimeFormatted != "1h 2m" || snap.RobotStatus != "online" {
		t.Errorf("uptime=%q status=%q", snap.UptimeFormatted, snap.RobotStatus)
	}
	if snap.DiskUsagePercent == nil || *snap.DiskUsagePercent != 40 {
		t.Errorf("DiskUsagePercent = %v", snap.DiskUsagePercent)
	}
}

func TestFeedsKeepIndependentCadences(t *testing.T) {
	robot := newFakeRobot()
	_, clk := startPoller(t, robot)

	waitFor(t, func() bool {
		return robot.count("/temperature") == 1 && robot.count("/uptime") == 1 && robot.count("/performance") == 1
	})

	// Tick by tick to 60s: temperature fires twice, uptime once, performance never.
	for i := 0; i < 2; i++ {
		clk.Step(30 * time.Second)
		want := i + 2
		waitFor(t, func() bool { return robot.count("/temperature") == want })
	}
	waitFor(t, func() bool { return robot.count("/uptime") == 2 })

	if got := robot.count("/performance"); got != 1 {
		t.Errorf("performance fetched %d times, want 1", got)
	}
}

func TestFailuresKeepPriorValues(t *testing.T) {
	robot := newFakeRobot()
	p, clk := startPoller(t, robot)

	waitFor(t, func() bool { return p.Store().Snapshot().Feeds[FeedTemperature].Outcome == connectivity.Success })
	before := p.Store().Snapshot()

	robot.set("/temperature", "", true)
	for i := 0; i < 3; i++ {
		n := robot.count("/temperature")
		clk.Step(30 * time.Second)
		waitFor(t, func() bool { return robot.count("/temperature") > n })
	}
	waitFor(t, func() bool { return p.Store().Snapshot().Feeds[FeedTemperature].Outcome == connectivity.Failure })

	after := p.Store().Snapshot()
	if after.CPUTemp == nil || *after.CPUTemp != *before.CPUTemp {
		t.Errorf("CPUTemp changed on failure: %v -> %v", before.CPUTemp, after.CPUTemp)
	}
	st := after.Feeds[FeedTemperature]
	if st.LastError == "" || !st.LastUpdated.Equal(before.Feeds[FeedTemperature].LastUpdated) {
		t.Errorf("feed status = %+v", st)
	}
}

func TestTemperatureDrivesTelemetryAggregator(t *testing.T) {
	robot := newFakeRobot()
	robot.set("/uptime", "", true)
	agg := connectivity.New(connectivity.ScopeTelemetry, FeedTemperature)

	var results []Result
	var mu sync.Mutex
	p, clk := startPoller(t, robot,
		WithObserver(FeedTemperature, agg),
		WithResultHook(func(r Result) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		}),
	)

	waitFor(t, agg.Online)
	waitFor(t, func() bool { return p.Store().Snapshot().Feeds[FeedUptime].Outcome == connectivity.Failure })
	if !agg.Online() {
		t.Fatal("uptime failure changed the telemetry indicator")
	}

	robot.set("/temperature", "", true)
	clk.Step(30 * time.Second)
	waitFor(t, func() bool { return !agg.Online() })

	mu.Lock()
	defer mu.Unlock()
	if len(results) < 3 {
		t.Errorf("got %d results, want at least 3", len(results))
	}
}

func TestPerformanceWithoutSystemKeepsLoad(t *testing.T) {
	robot := newFakeRobot()
	p, clk := startPoller(t, robot)
	waitFor(t, func() bool { return p.Store().Snapshot().SystemLoadPercent != nil })

	robot.set("/performance", `{"robot_connectivity":{"robot_status":"degraded","stats":{"avg_response_time":80}}}`, false)
	clk.Step(180 * time.Second)
	waitFor(t, func() bool { return p.Store().Snapshot().RobotStatus == "degraded" })

	snap := p.Store().Snapshot()
	if snap.SystemLoadPercent == nil || *snap.SystemLoadPercent != 20 {
		t.Errorf("SystemLoadPercent = %v, want 20", snap.SystemLoadPercent)
	}
}

func TestMalformedPayloadIsFailure(t *testing.T) {
	robot := newFakeRobot()
	robot.set("/uptime", `{"unexpected":true}`, false)
	p, _ := startPoller(t, robot)

	waitFor(t, func() bool { return p.Store().Snapshot().Feeds[FeedUptime].Outcome == connectivity.Failure })
	if p.Store().Snapshot().UptimeFormatted != "" {
		t.Error("malformed uptime wrote a value")
	}
}

func TestHollowTemperatureKeepsPriorValues(t *testing.T) {
	for _, body := range []string{`{}`, `null`, `{"timestamp":1700000100}`} {
		t.Run(body, func(t *testing.T) {
			robot := newFakeRobot()
			agg := connectivity.New(connectivity.ScopeTelemetry, FeedTemperature)
			p, clk := startPoller(t, robot, WithObserver(FeedTemperature, agg))

			waitFor(t, agg.Online)

			robot.set("/temperature", body, false)
			clk.Step(30 * time.Second)
			waitFor(t, func() bool { return p.Store().Snapshot().Feeds[FeedTemperature].Outcome == connectivity.Failure })

			snap := p.Store().Snapshot()
			if snap.CPUTemp == nil || *snap.CPUTemp != 55.5 || snap.GPUTemp == nil || *snap.GPUTemp != 54.0 {
				t.Errorf("temperatures = %v, %v; want prior values kept", snap.CPUTemp, snap.GPUTemp)
			}
			if agg.Online() {
				t.Error("telemetry indicator online after a hollow reply")
			}
		})
	}
}

func TestNewPollerRejectsZeroInterval(t *testing.T) {
	iv := DefaultIntervals()
	iv.Uptime = 0
	if _, err := NewPoller(newFakeRobot(), iv); err == nil {
		t.Fatal("NewPoller accepted a zero interval")
	}
}

func TestClassifyTemperature(t *testing.T) {
	f := func(v float64) *float64 { return &v }
	tests := []struct {
		in   *float64
		want Band
	}{
		{nil, BandUnknown},
		{f(0), BandUnknown},
		{f(45), BandNormal},
		{f(70), BandNormal},
		{f(70.1), BandWarning},
		{f(80), BandWarning},
		{f(80.5), BandCritical},
	}
	for _, tt := range tests {
		if got := ClassifyTemperature(tt.in); got != tt.want {
			t.Errorf("ClassifyTemperature(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
