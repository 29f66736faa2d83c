package telemetry

import (
	"time"

	"github.com/mizuna-io/mizuna/internal/remote/connectivity"
)

// Feed names.
const (
	FeedTemperature = "temperature"
	FeedUptime      = "uptime"
	FeedPerformance = "performance"
)

// FeedStatus describes the latest attempt of one feed.
type FeedStatus struct {
	LastUpdated time.Time            `json:"lastUpdated,omitzero"`
	LastAttempt time.Time            `json:"lastAttempt,omitzero"`
	Outcome     connectivity.Outcome `json:"outcome"`
	LastError   string               `json:"lastError,omitempty"`
}

// Snapshot holds the latest known telemetry. Unset readings are nil. Values
// survive failed fetches.
type Snapshot struct {
	CPUTemp           *float64  `json:"cpuTemp"`
	GPUTemp           *float64  `json:"gpuTemp"`
	TemperatureAt     time.Time `json:"temperatureAt,omitzero"`
	UptimeFormatted   string    `json:"uptimeFormatted"`
	RobotStatus       string    `json:"robotStatus"`
	AvgResponseTimeMs *float64  `json:"avgResponseTimeMs"`
	SystemLoadPercent *float64  `json:"systemLoadPercent"`
	DiskUsagePercent  *float64  `json:"diskUsagePercent"`

	Feeds map[string]FeedStatus `json:"feeds"`
}

// clone copies s. Reading pointers are replaced, never mutated, so sharing
// them is safe.
func (s Snapshot) clone() Snapshot {
	out := s
	out.Feeds = make(map[string]FeedStatus, len(s.Feeds))
	for k, v := range s.Feeds {
		out.Feeds[k] = v
	}
	return out
}

// Band classifies a temperature reading.
type Band string

const (
	BandUnknown  Band = "Unknown"
	BandNormal   Band = "Normal"
	BandWarning  Band = "Warning"
	BandCritical Band = "Critical"
)

// Temperature thresholds in degrees Celsius. Readings strictly above a
// threshold fall in the higher band.
const (
	WarningThreshold  = 70.0
	CriticalThreshold = 80.0
)

// ClassifyTemperature returns the band of a reading. A missing or zero
// reading is Unknown.
func ClassifyTemperature(t *float64) Band {
	switch {
	case t == nil || *t == 0:
		return BandUnknown
	case *t > CriticalThreshold:
		return BandCritical
	case *t > WarningThreshold:
		return BandWarning
	default:
		return BandNormal
	}
}

// CPUBand classifies the CPU temperature.
func (s Snapshot) CPUBand() Band { return ClassifyTemperature(s.CPUTemp) }

// GPUBand classifies the GPU temperature.
func (s Snapshot) GPUBand() Band { return ClassifyTemperature(s.GPUTemp) }
