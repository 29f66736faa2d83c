package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*PollOptions)(nil)

// PollOptions holds the cadence of each telemetry feed.
type PollOptions struct {
	TemperatureInterval time.Duration `json:"temperature-interval" mapstructure:"temperature-interval"`
	UptimeInterval      time.Duration `json:"uptime-interval" mapstructure:"uptime-interval"`
	PerformanceInterval time.Duration `json:"performance-interval" mapstructure:"performance-interval"`
}

// NewPollOptions creates a PollOptions with the standard cadences.
func NewPollOptions() *PollOptions {
	return &PollOptions{
		TemperatureInterval: 30 * time.Second,
		UptimeInterval:      60 * time.Second,
		PerformanceInterval: 180 * time.Second,
	}
}

// Validate rejects non-positive intervals.
func (o *PollOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errs := []error{}

	for name, d := range map[string]time.Duration{
		"--poll.temperature-interval": o.TemperatureInterval,
		"--poll.uptime-interval":      o.UptimeInterval,
		"--poll.performance-interval": o.PerformanceInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	return errs
}

// AddFlags adds flags for PollOptions to the specified FlagSet.
func (o *PollOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.TemperatureInterval, "poll.temperature-interval", o.TemperatureInterval, "Polling interval of the temperature feed (also the telemetry liveness source).")
	fs.DurationVar(&o.UptimeInterval, "poll.uptime-interval", o.UptimeInterval, "Polling interval of the uptime feed.")
	fs.DurationVar(&o.PerformanceInterval, "poll.performance-interval", o.PerformanceInterval, "Polling interval of the performance feed.")
}
