package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNewRejectsRelativeURL(t *testing.T) {
	for _, raw := range []string{"", "raspberrypi.local:5000/x", "/temperature"} {
		if _, err := New(raw); err == nil {
			t.Errorf("New(%q) succeeded, want error", raw)
		}
	}
}

func TestCallSuccess(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/speed" || r.URL.Query().Get("v") != "512" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	raw, err := c.Call(context.Background(), Request{Path: "/speed", Query: url.Values{"v": {"512"}}})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if string(raw) != `{"ok":true}` {
		t.Errorf("body = %s", raw)
	}
}

func TestCallSendsJSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("method=%s content-type=%q", r.Method, r.Header.Get("Content-Type"))
		}
		var in struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Text != "hello" {
			t.Errorf("body decode err=%v text=%q", err, in.Text)
		}
		_, _ = w.Write([]byte(`{"reply":"hi"}`))
	})

	if _, err := c.Call(context.Background(), Request{Method: http.MethodPost, Path: "ask", Body: map[string]string{"text": "hello"}}); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
}

func TestCallFailureKinds(t *testing.T) {
	tests := []struct {
		name        string
		handler     http.HandlerFunc
		req         Request
		wantKind    Kind
		wantStatus  int
		wantMessage string
	}{
		{
			name: "status with error field",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"model offline"}`))
			},
			wantKind:    KindHTTPStatus,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "model offline",
		},
		{
			name: "status with detail field",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"detail":"no context"}`))
			},
			wantKind:    KindHTTPStatus,
			wantStatus:  http.StatusBadRequest,
			wantMessage: "no context",
		},
		{
			name: "status with plain body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "boom", http.StatusBadGateway)
			},
			wantKind:   KindHTTPStatus,
			wantStatus: http.StatusBadGateway,
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			wantKind: KindMalformedResponse,
		},
		{
			name: "timeout",
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			wantKind: KindTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler, WithTimeout(50*time.Millisecond))

			_, err := c.Call(context.Background(), Request{Path: "/temperature"})
			te, ok := AsError(err)
			if !ok {
				t.Fatalf("Call() error = %v, want *Error", err)
			}
			if te.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", te.Kind, tt.wantKind)
			}
			if te.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %d, want %d", te.StatusCode, tt.wantStatus)
			}
			if te.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", te.Message, tt.wantMessage)
			}
		})
	}
}

func TestCallDiscardBodyAcceptsNonJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})

	raw, err := c.Call(context.Background(), Request{Path: "/cmd", Query: url.Values{"c": {"F"}}, DiscardBody: true})
	if err != nil || raw != nil {
		t.Fatalf("Call() = %s, %v; want nil, nil", raw, err)
	}
}

func TestCallNetworkUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c, err := New(addr)
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Call(context.Background(), Request{Path: "/uptime"})
	if !IsKind(err, KindNetworkUnreachable) {
		t.Errorf("Call() error = %v, want NetworkUnreachable", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	var v struct {
		CPU float64 `json:"cpu_temp"`
	}
	err := Decode(http.MethodGet, "/temperature", json.RawMessage(`{"cpu_temp":"hot"}`), &v)
	if !IsKind(err, KindMalformedResponse) {
		t.Errorf("Decode() error = %v, want MalformedResponse", err)
	}
}

func TestErrorUnwrapAndMessage(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := error(&Error{Kind: KindNetworkUnreachable, Method: "GET", Path: "/cmd", Err: cause})

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach the cause")
	}
	if ServerMessage(err) != "" {
		t.Error("unexpected server message")
	}

	app := ApplicationError("POST", "/clear_context", "busy")
	if !IsKind(app, KindApplicationError) || ServerMessage(app) != "busy" {
		t.Errorf("ApplicationError = %v", app)
	}
}
