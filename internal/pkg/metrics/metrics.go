package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every Mizuna collector and is served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// FeedFetchTotal counts telemetry fetches by feed and outcome (success/failure).
	FeedFetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mizuna_feed_fetch_total",
			Help: "Total number of telemetry feed fetches.",
		},
		[]string{"feed", "outcome"},
	)

	// FeedFetchLatency records the duration of each telemetry fetch.
	FeedFetchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mizuna_feed_fetch_latency_seconds",
			Help:    "Latency of telemetry feed fetches.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"feed"},
	)

	// ConnectivityStatus is 1 while a scope is online and 0 otherwise.
	ConnectivityStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mizuna_connectivity_status",
			Help: "Connectivity of each indicator scope (1=Online, 0=Offline).",
		},
		[]string{"scope"},
	)

	// CommandSentTotal counts movement and speed commands by result (ok/error).
	CommandSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mizuna_command_sent_total",
			Help: "Total number of commands sent to the motor controller.",
		},
		[]string{"command", "status"},
	)

	// ChatExchangeTotal counts chat exchanges by outcome (reply/error/discarded).
	ChatExchangeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mizuna_chat_exchange_total",
			Help: "Total number of chat exchanges with the robot.",
		},
		[]string{"outcome"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		FeedFetchTotal,
		FeedFetchLatency,
		ConnectivityStatus,
		CommandSentTotal,
		ChatExchangeTotal,
	)
}
