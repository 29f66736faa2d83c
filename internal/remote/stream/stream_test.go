package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/mizuna-io/mizuna/internal/remote/connectivity"
)

func TestBridgeMapsEvents(t *testing.T) {
	agg := connectivity.New(connectivity.ScopeVideo, Feed)
	b := NewBridge(agg)

	if s := b.Status(); s.Text != StatusConnecting {
		t.Errorf("initial status = %q", s.Text)
	}

	b.Loaded()
	if !agg.Online() || b.Status().Text != StatusConnected || b.Status().IsError {
		t.Errorf("after Loaded: online=%v status=%+v", agg.Online(), b.Status())
	}

	b.Errored()
	if agg.Online() || b.Status().Text != StatusError || !b.Status().IsError {
		t.Errorf("after Errored: online=%v status=%+v", agg.Online(), b.Status())
	}
}

func TestBridgeDoesNotDebounce(t *testing.T) {
	agg := connectivity.New(connectivity.ScopeVideo, Feed)
	b := NewBridge(agg)

	var n int
	b.OnStatus(func(Status) { n++ })
	for i := 0; i < 3; i++ {
		b.Loaded()
		b.Errored()
	}
	if n != 6 {
		t.Errorf("got %d status updates, want 6", n)
	}
}

func TestBridgeConcurrentEventsSettleConsistently(t *testing.T) {
	for run := 0; run < 200; run++ {
		agg := connectivity.New(connectivity.ScopeVideo, Feed)
		b := NewBridge(agg)

		var mu sync.Mutex
		var lastOnline, lastStatusOK bool
		agg.Subscribe(func(s connectivity.State) {
			mu.Lock()
			lastOnline = s.Online
			mu.Unlock()
		})
		b.OnStatus(func(s Status) {
			mu.Lock()
			lastStatusOK = !s.IsError
			mu.Unlock()
		})

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 25; i++ {
					if (i+g)%2 == 0 {
						b.Loaded()
					} else {
						b.Errored()
					}
				}
			}(g)
		}
		wg.Wait()

		mu.Lock()
		online, statusOK := lastOnline, lastStatusOK
		mu.Unlock()
		if online != agg.Online() || statusOK != agg.Online() || b.Status().IsError == agg.Online() {
			t.Fatalf("run %d: notified online=%v status ok=%v, Online()=%v status=%+v",
				run, online, statusOK, agg.Online(), b.Status())
		}
	}
}

type recorder struct {
	mu      sync.Mutex
	loaded  int
	errored int
}

func (r *recorder) Loaded()  { r.mu.Lock(); r.loaded++; r.mu.Unlock() }
func (r *recorder) Errored() { r.mu.Lock(); r.errored++; r.mu.Unlock() }

func mjpegHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	_, _ = fmt.Fprint(w, "--frame\r\nContent-Type: image/jpeg\r\n\r\n\xff\xd8\xff\xe0JPEGDATA\xff\xd9\r\n--frame\r\n")
}

func TestProbeCheck(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr bool
	}{
		{"mjpeg stream", mjpegHandler, false},
		{"not found", http.NotFound, true},
		{"wrong content type", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html>"))
		}, true},
		{"no frame", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			p := NewProbe(srv.URL+"/stream.mjpg", time.Minute, time.Second, &recorder{})
			if err := p.Check(context.Background()); (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestProbeRunReportsImmediately(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(mjpegHandler))
	defer srv.Close()

	r := &recorder{}
	p := NewProbe(srv.URL, time.Hour, time.Second, r)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	err := wait.PollUntilContextTimeout(context.Background(), 5*time.Millisecond, 2*time.Second, true,
		func(context.Context) (bool, error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			return r.loaded == 1, nil
		})
	if err != nil {
		t.Fatal("probe did not report")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}
