package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mizuna-io/mizuna/internal/remote/connectivity"
	"github.com/mizuna-io/mizuna/internal/remote/transport"
)

// scriptedCaller returns a fixed response and counts calls. When gate is
// non-nil each call blocks until it is closed.
type scriptedCaller struct {
	calls atomic.Int32
	gate  chan struct{}
	body  string
	err   error
}

func (c *scriptedCaller) Call(_ context.Context, _ transport.Request) (json.RawMessage, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	if c.err != nil {
		return nil, c.err
	}
	return json.RawMessage(c.body), nil
}

func TestSendAppendsUserThenAssistant(t *testing.T) {
	c := &scriptedCaller{body: `{"reply":"Hello!","voice":{"spoken":true}}`}
	agg := connectivity.New(connectivity.ScopeChat, Feed)
	s := NewSession(c, agg)

	if !s.Send(context.Background(), "  hi robot  ") {
		t.Fatal("Send returned false")
	}
	s.Wait()

	got := s.Transcript()
	if len(got) != 2 {
		t.Fatalf("transcript has %d messages, want 2", len(got))
	}
	if got[0].Role != RoleUser || got[0].Text != "hi robot" {
		t.Errorf("first message = %+v", got[0])
	}
	if got[1].Role != RoleAssistant || got[1].Text != "Hello!" || !got[1].Spoken || got[1].IsError {
		t.Errorf("second message = %+v", got[1])
	}
	if got[1].ID <= got[0].ID {
		t.Errorf("ids not increasing: %d, %d", got[0].ID, got[1].ID)
	}
	if !agg.Online() {
		t.Error("chat indicator offline after a successful exchange")
	}
	if s.Busy() {
		t.Error("session still busy")
	}
}

func TestSendBlankIsNoop(t *testing.T) {
	c := &scriptedCaller{body: `{}`}
	s := NewSession(c, nil)

	for _, in := range []string{"", "   ", "\n\t"} {
		if s.Send(context.Background(), in) {
			t.Errorf("Send(%q) returned true", in)
		}
	}
	s.Wait()

	if len(s.Transcript()) != 0 || c.calls.Load() != 0 {
		t.Errorf("transcript=%d calls=%d", len(s.Transcript()), c.calls.Load())
	}
}

func TestSendWhileInFlightIsNoop(t *testing.T) {
	gate := make(chan struct{})
	c := &scriptedCaller{gate: gate, body: `{"reply":"ok"}`}
	s := NewSession(c, nil)

	if !s.Send(context.Background(), "first") {
		t.Fatal("first Send returned false")
	}
	if s.Send(context.Background(), "second") {
		t.Error("second Send accepted while in flight")
	}
	if !s.Busy() {
		t.Error("Busy() = false while in flight")
	}

	close(gate)
	s.Wait()

	if n := c.calls.Load(); n != 1 {
		t.Errorf("transport called %d times, want 1", n)
	}
	if got := s.Transcript(); len(got) != 2 || got[0].Text != "first" {
		t.Errorf("transcript = %+v", got)
	}
}

func TestSendFailureTexts(t *testing.T) {
	tests := []struct {
		name string
		err  error
		body string
		want string
	}{
		{
			name: "server error field",
			err:  &transport.Error{Kind: transport.KindHTTPStatus, StatusCode: 500, Message: "LLM unavailable"},
			want: "LLM unavailable",
		},
		{
			name: "status without message",
			err:  &transport.Error{Kind: transport.KindHTTPStatus, StatusCode: 502},
			want: TextRequestFailed,
		},
		{
			name: "timeout",
			err:  &transport.Error{Kind: transport.KindTimeout},
			want: TextContactError,
		},
		{
			name: "unreachable",
			err:  &transport.Error{Kind: transport.KindNetworkUnreachable, Err: errors.New("refused")},
			want: TextContactError,
		},
		{
			name: "error field in a 2xx reply",
			body: `{"error":"model overloaded"}`,
			want: "model overloaded",
		},
		{
			name: "error field wins over reply",
			body: `{"reply":"partial","error":"tts crashed"}`,
			want: "tts crashed",
		},
		{
			name: "undecodable reply",
			body: `["not","an","object"]`,
			want: TextContactError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := connectivity.New(connectivity.ScopeChat, Feed)
			agg.Observe(Feed, connectivity.Success)

			s := NewSession(&scriptedCaller{err: tt.err, body: tt.body}, agg)
			s.Send(context.Background(), "hello")
			s.Wait()

			got := s.Transcript()
			if len(got) != 2 {
				t.Fatalf("transcript has %d messages", len(got))
			}
			if !got[1].IsError || got[1].Text != tt.want {
				t.Errorf("assistant message = %+v, want error %q", got[1], tt.want)
			}
			if agg.Online() {
				t.Error("chat indicator still online after a failure")
			}
		})
	}
}

func TestSendDefaultsToNoResponse(t *testing.T) {
	s := NewSession(&scriptedCaller{body: `{"voice":{"spoken":false}}`}, nil)
	s.Send(context.Background(), "anything")
	s.Wait()

	if got := s.Transcript(); got[1].Text != TextNoResponse || got[1].IsError {
		t.Errorf("assistant message = %+v", got[1])
	}
}

func TestSendTimeoutAgainstSlowRobot(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client, err := transport.New(srv.URL, transport.WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	agg := connectivity.New(connectivity.ScopeChat, Feed)
	s := NewSession(client, agg)

	s.Send(context.Background(), "are you there?")
	s.Wait()

	got := s.Transcript()
	if len(got) != 2 || !got[1].IsError || got[1].Text != TextContactError {
		t.Fatalf("transcript = %+v", got)
	}
	if agg.Online() {
		t.Error("chat indicator online after a timeout")
	}
}

func TestSendSurvivesCallerCancellation(t *testing.T) {
	gate := make(chan struct{})
	s := NewSession(&scriptedCaller{gate: gate, body: `{"reply":"late"}`}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.Send(ctx, "hello")
	cancel()
	close(gate)
	s.Wait()

	if got := s.Transcript(); len(got) != 2 || got[1].Text != "late" {
		t.Errorf("transcript = %+v", got)
	}
}

func TestCloseDiscardsInFlightResult(t *testing.T) {
	gate := make(chan struct{})
	agg := connectivity.New(connectivity.ScopeChat, Feed)
	s := NewSession(&scriptedCaller{gate: gate, body: `{"reply":"too late"}`}, agg)

	s.Send(context.Background(), "hello")
	s.Close()
	close(gate)
	s.Wait()

	if got := s.Transcript(); len(got) != 1 {
		t.Errorf("transcript = %+v, want only the user message", got)
	}
	if agg.Online() {
		t.Error("discarded result changed the indicator")
	}
	if s.Send(context.Background(), "again") {
		t.Error("Send accepted on a closed session")
	}
}

func TestSubscribeSeesEveryMessage(t *testing.T) {
	s := NewSession(&scriptedCaller{body: `{"reply":"pong"}`}, nil)

	var mu sync.Mutex
	var seen []Role
	s.Subscribe(func(m Message) {
		mu.Lock()
		seen = append(seen, m.Role)
		mu.Unlock()
	})

	s.Send(context.Background(), "ping")
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != RoleUser || seen[1] != RoleAssistant {
		t.Errorf("seen = %v", seen)
	}
}

func TestClear(t *testing.T) {
	tests := []struct {
		name      string
		caller    *scriptedCaller
		wantCount int
		wantMsg   string
	}{
		{
			name:      "ok",
			caller:    &scriptedCaller{body: `{"status":"ok","deleted_count":7}`},
			wantCount: 7,
		},
		{
			name:    "rejected with detail",
			caller:  &scriptedCaller{body: `{"status":"error","detail":"store locked"}`},
			wantMsg: "store locked",
		},
		{
			name:    "rejected without detail",
			caller:  &scriptedCaller{body: `{"status":"error"}`},
			wantMsg: TextResetFailed,
		},
		{
			name:    "http status with detail",
			caller:  &scriptedCaller{err: &transport.Error{Kind: transport.KindHTTPStatus, StatusCode: 500, Message: "db down"}},
			wantMsg: "db down",
		},
		{
			name:    "unreachable",
			caller:  &scriptedCaller{err: &transport.Error{Kind: transport.KindNetworkUnreachable}},
			wantMsg: TextResetUnreachable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(&scriptedCaller{body: `{"reply":"kept"}`}, nil)
			s.Send(context.Background(), "remember me")
			s.Wait()
			before := s.Transcript()

			s.caller = tt.caller
			n, err := s.Clear(context.Background())

			if tt.wantMsg == "" {
				if err != nil || n != tt.wantCount {
					t.Fatalf("Clear() = %d, %v; want %d, nil", n, err, tt.wantCount)
				}
			} else {
				var ce *ClearError
				if !errors.As(err, &ce) || ce.Message != tt.wantMsg {
					t.Fatalf("Clear() error = %v, want %q", err, tt.wantMsg)
				}
			}

			if after := s.Transcript(); len(after) != len(before) {
				t.Errorf("Clear changed the transcript: %d -> %d", len(before), len(after))
			}
		})
	}
}
