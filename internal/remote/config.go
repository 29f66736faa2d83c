package remote

import (
	"context"
	"fmt"

	"github.com/mizuna-io/mizuna/internal/remote/archive"
	"github.com/mizuna-io/mizuna/internal/remote/chat"
	"github.com/mizuna-io/mizuna/internal/remote/command"
	"github.com/mizuna-io/mizuna/internal/remote/connectivity"
	"github.com/mizuna-io/mizuna/internal/remote/history"
	"github.com/mizuna-io/mizuna/internal/remote/relay"
	"github.com/mizuna-io/mizuna/internal/remote/server"
	"github.com/mizuna-io/mizuna/internal/remote/stream"
	"github.com/mizuna-io/mizuna/internal/remote/telemetry"
	"github.com/mizuna-io/mizuna/internal/remote/transport"
	"github.com/mizuna-io/mizuna/internal/remote/watch"
	"github.com/mizuna-io/mizuna/pkg/log"
	"github.com/mizuna-io/mizuna/pkg/mqtt"
	"github.com/mizuna-io/mizuna/pkg/options"
)

const watchBuffer = 128

type Config struct {
	RobotOptions   *options.RobotOptions
	PollOptions    *options.PollOptions
	ChatOptions    *options.ChatOptions
	StreamOptions  *options.StreamOptions
	HistoryOptions *options.HistoryOptions
	HttpOptions    *options.HttpOptions
	GrpcOptions    *options.GrpcOptions
	MqttOptions    *options.MqttOptions
	S3Options      *options.S3Options
}

// NewRemote assembles the client: one transport per concern, the three
// connectivity indicators, the feed poller, the command dispatcher, the chat
// session, the stream bridge and every optional adapter that is enabled.
func (cfg *Config) NewRemote() (*Remote, error) {
	robotID := cfg.RobotOptions.ID

	telemetryCaller, err := transport.New(cfg.RobotOptions.Addr, transport.WithTimeout(cfg.RobotOptions.Timeout))
	if err != nil {
		return nil, fmt.Errorf("telemetry transport: %w", err)
	}
	commandCaller, err := transport.New(cfg.RobotOptions.CommandURL(), transport.WithTimeout(cfg.RobotOptions.Timeout))
	if err != nil {
		return nil, fmt.Errorf("command transport: %w", err)
	}
	chatCaller, err := transport.New(cfg.RobotOptions.Addr, transport.WithTimeout(cfg.ChatOptions.Timeout))
	if err != nil {
		return nil, fmt.Errorf("chat transport: %w", err)
	}

	indicators := &connectivity.Set{
		Video:     connectivity.New(connectivity.ScopeVideo, stream.Feed),
		Telemetry: connectivity.New(connectivity.ScopeTelemetry, telemetry.FeedTemperature),
		Chat:      connectivity.New(connectivity.ScopeChat, chat.Feed),
	}

	r := &Remote{
		robotID:    robotID,
		indicators: indicators,
		dispatcher: command.NewDispatcher(commandCaller),
		session:    chat.NewSession(chatCaller, indicators.Chat),
		bridge:     stream.NewBridge(indicators.Video),
		hub:        watch.NewHub(watchBuffer),
		logger:     log.WithName("remote").WithValues("robot", robotID),
	}

	pollOpts := []telemetry.Option{
		telemetry.WithObserver(telemetry.FeedTemperature, indicators.Telemetry),
	}
	if cfg.HistoryOptions.Enabled() {
		r.history, err = history.Open(context.Background(), cfg.HistoryOptions.Path, cfg.HistoryOptions.Retention)
		if err != nil {
			return nil, err
		}
		pollOpts = append(pollOpts, telemetry.WithResultHook(r.history.Hook()))
	}

	r.poller, err = telemetry.NewPoller(telemetryCaller, telemetry.Intervals{
		Temperature: cfg.PollOptions.TemperatureInterval,
		Uptime:      cfg.PollOptions.UptimeInterval,
		Performance: cfg.PollOptions.PerformanceInterval,
	}, pollOpts...)
	if err != nil {
		r.closeHistory()
		return nil, err
	}

	if cfg.StreamOptions.ProbeEnabled() {
		r.probe = stream.NewProbe(cfg.StreamOptions.URL, cfg.StreamOptions.ProbeInterval, cfg.StreamOptions.ProbeTimeout, r.bridge)
	}

	if cfg.MqttOptions.Enabled() {
		relayCfg := relay.Config{
			RobotID:        robotID,
			TopicRoot:      cfg.MqttOptions.TopicRoot,
			AcceptCommands: cfg.MqttOptions.AcceptCommands,
		}
		mqttCfg := cfg.MqttOptions.ToClientConfig(robotID)
		mqttCfg.WillTopic, mqttCfg.WillPayload = relay.WillMessage(relayCfg)
		mqttCfg.WillQoS = 1
		mqttCfg.WillRetain = true

		client, err := mqtt.NewClient(mqttCfg)
		if err != nil {
			r.closeHistory()
			return nil, fmt.Errorf("failed to init mqtt relay: %w", err)
		}
		r.relay = relay.New(relayCfg, client, r.hub, r, r)
	}

	if cfg.S3Options.Enabled() {
		provider, err := archive.NewMinIOProvider(cfg.S3Options)
		if err != nil {
			r.closeHistory()
			return nil, fmt.Errorf("failed to init transcript archive: %w", err)
		}
		r.archiver = archive.New(provider, robotID)
	}

	r.servers = server.NewManager(&server.Config{
		HttpOptions: cfg.HttpOptions,
		GrpcOptions: cfg.GrpcOptions,
	}, r, indicators)

	r.wireWatch()
	return r, nil
}
