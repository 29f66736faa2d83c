package options

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*StreamOptions)(nil)

// StreamOptions configures the camera stream and its optional headless probe.
type StreamOptions struct {
	// URL of the MJPEG camera stream.
	URL string `json:"url" mapstructure:"url"`

	// ProbeInterval enables the headless stream probe when positive.
	ProbeInterval time.Duration `json:"probe-interval" mapstructure:"probe-interval"`

	// ProbeTimeout bounds the time to receive the first frame.
	ProbeTimeout time.Duration `json:"probe-timeout" mapstructure:"probe-timeout"`
}

// NewStreamOptions creates a StreamOptions with the probe disabled.
func NewStreamOptions() *StreamOptions {
	return &StreamOptions{
		URL:          "http://raspberrypi.local:5000/stream.mjpg",
		ProbeTimeout: 5 * time.Second,
	}
}

// Validate checks the stream URL and probe timings.
func (o *StreamOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	if err := ValidateURL(o.URL, "http", "https"); err != nil {
		errs = append(errs, fmt.Errorf("--stream.url: %w", err))
	}
	if o.ProbeInterval < 0 {
		errs = append(errs, errors.New("--stream.probe-interval must not be negative"))
	}
	if o.ProbeInterval > 0 && o.ProbeTimeout <= 0 {
		errs = append(errs, errors.New("--stream.probe-timeout must be positive when probing is enabled"))
	}

	return errs
}

// AddFlags adds flags for StreamOptions to the specified FlagSet.
func (o *StreamOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.URL, "stream.url", o.URL, "URL of the robot's MJPEG camera stream.")
	fs.DurationVar(&o.ProbeInterval, "stream.probe-interval", o.ProbeInterval, "Interval of the headless stream probe. 0 disables probing.")
	fs.DurationVar(&o.ProbeTimeout, "stream.probe-timeout", o.ProbeTimeout, "Time allowed for the stream probe to receive its first frame.")
}

// ProbeEnabled reports whether the headless probe should run.
func (o *StreamOptions) ProbeEnabled() bool {
	return o.ProbeInterval > 0
}
