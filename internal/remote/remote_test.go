package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/mizuna-io/mizuna/internal/remote/archive"
	"github.com/mizuna-io/mizuna/internal/remote/chat"
	"github.com/mizuna-io/mizuna/internal/remote/command"
	"github.com/mizuna-io/mizuna/internal/remote/stream"
	"github.com/mizuna-io/mizuna/internal/remote/telemetry"
	"github.com/mizuna-io/mizuna/internal/remote/watch"
	"github.com/mizuna-io/mizuna/pkg/options"
)

type robot struct {
	mu       sync.Mutex
	commands []string
	speeds   []string
}

func (rb *robot) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/temperature", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"cpu_temp":72.5,"gpu_temp":60.1,"timestamp":1700000000}`))
	})
	mux.HandleFunc("/uptime", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"app_uptime":{"formatted":"3m 4s"}}`))
	})
	mux.HandleFunc("/performance", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"robot_connectivity":{"robot_status":"online","stats":{"avg_response_time":8}},"system":{"cpu":{"percent":11},"disk":{"percent":50}}}`))
	})
	mux.HandleFunc("/cmd", func(w http.ResponseWriter, r *http.Request) {
		rb.mu.Lock()
		rb.commands = append(rb.commands, r.URL.Query().Get("c"))
		rb.mu.Unlock()
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/speed", func(w http.ResponseWriter, r *http.Request) {
		rb.mu.Lock()
		rb.speeds = append(rb.speeds, r.URL.Query().Get("v"))
		rb.mu.Unlock()
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("/ask", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply":"Hello from Mizuna","voice":{"spoken":true}}`))
	})
	mux.HandleFunc("/clear_context", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","deleted_count":2}`))
	})
	return mux
}

func (rb *robot) sent() ([]string, []string) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return append([]string(nil), rb.commands...), append([]string(nil), rb.speeds...)
}

type memoryProvider struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func (p *memoryProvider) CheckBucket(context.Context) error { return nil }

func (p *memoryProvider) Put(_ context.Context, key string, data []byte, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objs[key] = data
	return nil
}

func (p *memoryProvider) PresignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "memory://" + key, nil
}

func newTestConfig(t *testing.T, robotURL string) *Config {
	t.Helper()
	robotOpts := options.NewRobotOptions()
	robotOpts.Addr = robotURL
	robotOpts.Timeout = 2 * time.Second

	httpOpts := options.NewHttpOptions()
	httpOpts.Addr = ""

	history := options.NewHistoryOptions()
	history.Path = filepath.Join(t.TempDir(), "history.db")

	return &Config{
		RobotOptions:   robotOpts,
		PollOptions:    options.NewPollOptions(),
		ChatOptions:    options.NewChatOptions(),
		StreamOptions:  options.NewStreamOptions(),
		HistoryOptions: history,
		HttpOptions:    httpOpts,
		GrpcOptions:    options.NewGrpcOptions(),
		MqttOptions:    options.NewMqttOptions(),
		S3Options:      options.NewS3Options(),
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	err := wait.PollUntilContextTimeout(context.Background(), 5*time.Millisecond, 5*time.Second, true,
		func(context.Context) (bool, error) { return cond(), nil })
	if err != nil {
		t.Fatalf("timed out waiting for %s", what)
	}
}

func TestRemoteEndToEnd(t *testing.T) {
	rb := &robot{}
	srv := httptest.NewServer(rb.handler())
	defer srv.Close()

	r, err := newTestConfig(t, srv.URL).NewRemote()
	if err != nil {
		t.Fatalf("NewRemote() error = %v", err)
	}
	provider := &memoryProvider{objs: map[string][]byte{}}
	r.archiver = archive.New(provider, "mizuna")

	events := r.Watch().Subscribe()
	defer events.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	waitFor(t, "ready", r.Ready)
	waitFor(t, "telemetry online", func() bool { return r.Connectivity()["telemetry"] })

	snap := r.Snapshot()
	if snap.CPUTemp == nil || *snap.CPUTemp != 72.5 || snap.CPUBand() != telemetry.BandWarning {
		t.Errorf("snapshot cpu = %v band %s", snap.CPUTemp, snap.CPUBand())
	}
	if r.Connectivity()["video"] || r.Connectivity()["chat"] {
		t.Errorf("video and chat must stay offline, got %v", r.Connectivity())
	}

	if !r.Press(command.Forward) {
		t.Error("Press(Forward) = false")
	}
	r.Release()
	if got := r.CommitSpeed(650.4); got != 650 {
		t.Errorf("CommitSpeed = %d, want 650", got)
	}
	waitFor(t, "commands", func() bool {
		cmds, speeds := rb.sent()
		return len(cmds) == 2 && len(speeds) == 1
	})
	cmds, speeds := rb.sent()
	sort.Strings(cmds)
	if cmds[0] != "F" || cmds[1] != "S" || speeds[0] != "650" {
		t.Errorf("robot saw commands %v speeds %v", cmds, speeds)
	}

	if !r.Chat(ctx, "hi") {
		t.Fatal("Chat() = false")
	}
	waitFor(t, "chat reply", func() bool { return len(r.Transcript()) == 2 })
	reply := r.Transcript()[1]
	if reply.Role != chat.RoleAssistant || reply.Text != "Hello from Mizuna" || !reply.Spoken {
		t.Errorf("reply = %+v", reply)
	}
	waitFor(t, "chat online", func() bool { return r.Connectivity()["chat"] })

	r.StreamLoaded()
	if !r.Connectivity()["video"] || r.StreamStatus().Text != stream.StatusConnected {
		t.Errorf("stream loaded: online=%v status=%q", r.Connectivity()["video"], r.StreamStatus().Text)
	}

	n, err := r.ClearChat(ctx)
	if err != nil || n != 2 {
		t.Errorf("ClearChat() = %d, %v", n, err)
	}

	waitFor(t, "history", func() bool {
		entries, err := r.History().Recent(ctx, telemetry.FeedTemperature, 10)
		return err == nil && len(entries) > 0
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	if r.Ready() {
		t.Error("Ready() after Run returned")
	}

	provider.mu.Lock()
	archived := len(provider.objs)
	provider.mu.Unlock()
	if archived != 1 {
		t.Errorf("archived %d transcripts, want 1", archived)
	}

	seen := map[string]bool{}
	for ev := range events.C {
		seen[ev.Type] = true
	}
	for _, typ := range []string{watch.TypeTelemetry, watch.TypeConnectivity, watch.TypeCommandStatus, watch.TypeStreamStatus, watch.TypeChatMessage} {
		if !seen[typ] {
			t.Errorf("no %s event published", typ)
		}
	}
}

func TestNewRemoteRejectsBadRobotURL(t *testing.T) {
	cfg := newTestConfig(t, "://nope")
	cfg.HistoryOptions.Path = ""
	if _, err := cfg.NewRemote(); err == nil {
		t.Fatal("expected error for invalid robot URL")
	}
}
