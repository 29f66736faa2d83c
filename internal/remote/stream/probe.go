package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"k8s.io/utils/clock"

	"github.com/mizuna-io/mizuna/pkg/log"
)

// maxFrameBytes bounds how much of the first frame is read.
const maxFrameBytes = 4 << 20

// Reporter receives probe results. *Bridge implements it.
type Reporter interface {
	Loaded()
	Errored()
}

// Probe stands in for an embedded viewer: it periodically opens the MJPEG
// stream, reads the first frame and reports the result.
type Probe struct {
	url      string
	interval time.Duration
	timeout  time.Duration
	client   *http.Client
	clock    clock.WithTicker
	reporter Reporter
}

// NewProbe creates a Probe for the stream at url.
func NewProbe(url string, interval, timeout time.Duration, reporter Reporter) *Probe {
	return &Probe{
		url:      url,
		interval: interval,
		timeout:  timeout,
		client:   &http.Client{},
		clock:    clock.RealClock{},
		reporter: reporter,
	}
}

// Run probes immediately and then once per interval until ctx is done.
func (p *Probe) Run(ctx context.Context) error {
	log.Info("Starting stream probe", "url", p.url, "interval", p.interval)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.probeOnce(ctx)
	for {
		select {
		case <-ticker.C():
			p.probeOnce(ctx)
		case <-ctx.Done():
			log.Info("Stopping stream probe")
			return nil
		}
	}
}

func (p *Probe) probeOnce(ctx context.Context) {
	err := p.Check(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		log.Debug("Stream probe failed", "error", err)
		p.reporter.Errored()
		return
	}
	p.reporter.Loaded()
}

// Check opens the stream and reads one JPEG frame.
func (p *Probe) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stream returned status %s", resp.Status)
	}

	mediaType, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return fmt.Errorf("invalid stream content type: %w", err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		return fmt.Errorf("unexpected stream content type %q", mediaType)
	}
	boundary := strings.TrimPrefix(params["boundary"], "--")
	if boundary == "" {
		return errors.New("stream content type has no boundary")
	}

	part, err := multipart.NewReader(resp.Body, boundary).NextPart()
	if err != nil {
		return fmt.Errorf("read first frame: %w", err)
	}
	defer part.Close()

	n, err := io.Copy(io.Discard, io.LimitReader(part, maxFrameBytes))
	if err != nil {
		return fmt.Errorf("read first frame: %w", err)
	}
	if n == 0 {
		return errors.New("first frame is empty")
	}
	return nil
}
