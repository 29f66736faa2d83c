// Package relay mirrors the client's observable state to an MQTT broker and
// optionally accepts remote intents from it.
package relay

import (
	"context"
	"time"

	"github.com/mizuna-io/mizuna/internal/remote/command"
	"github.com/mizuna-io/mizuna/internal/remote/watch"
	"github.com/mizuna-io/mizuna/pkg/log"
	"github.com/mizuna-io/mizuna/pkg/mqtt"
	"github.com/mizuna-io/mizuna/pkg/mqtt/topic"
)

const (
	qosTelemetry = 0
	qosOnline    = 1
	qosCommand   = 1

	publishTimeout = 5 * time.Second
)

// Intents is the subset of the client that remote intents drive.
type Intents interface {
	Press(dir command.Direction) bool
	Release()
	CommitSpeed(v float64) int
	Chat(ctx context.Context, text string) bool
}

// State supplies the connectivity summary published on the online topic.
type State interface {
	Connectivity() map[string]bool
}

// Config describes a Relay.
type Config struct {
	RobotID        string
	TopicRoot      string
	AcceptCommands bool
}

// OnlinePayload is the retained message on the online topic.
type OnlinePayload struct {
	Robot        string          `json:"robot"`
	Online       bool            `json:"online"`
	Connectivity map[string]bool `json:"connectivity,omitempty"`
	At           time.Time       `json:"at"`
}

// Relay publishes watch events to MQTT.
type Relay struct {
	cfg     Config
	client  mqtt.Client
	topics  *topic.TopicBuilder
	hub     *watch.Hub
	state   State
	intents Intents
	logger  log.Logger
}

// WillMessage returns the retained offline payload the broker should publish
// if the relay disappears. Pass it to the MQTT client configuration.
func WillMessage(cfg Config) (string, []byte) {
	payload, _ := encode(OnlinePayload{Robot: cfg.RobotID, Online: false, At: time.Now()})
	return topic.NewTopicBuilder(cfg.TopicRoot).Online(cfg.RobotID), payload
}

// New creates a Relay. intents may be nil when commands are not accepted.
func New(cfg Config, client mqtt.Client, hub *watch.Hub, state State, intents Intents) *Relay {
	return &Relay{
		cfg:     cfg,
		client:  client,
		topics:  topic.NewTopicBuilder(cfg.TopicRoot),
		hub:     hub,
		state:   state,
		intents: intents,
		logger:  log.WithName("relay").WithValues("robot", cfg.RobotID),
	}
}

// Run connects, mirrors events until ctx is done, then publishes a final
// offline message and disconnects.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.hub.Subscribe()
	defer func() { sub.Close() }()

	// The broker may have published the will while we were away, so the
	// online state is restored on every connection, not just the first.
	r.client.OnConnect(r.publishOnline)

	if err := r.client.Start(ctx); err != nil {
		return err
	}

	if r.cfg.AcceptCommands && r.intents != nil {
		if err := r.client.Subscribe(ctx, r.topics.Command(r.cfg.RobotID), qosCommand, r.handleCommand); err != nil {
			r.logger.Error(err, "Failed to subscribe to command topic")
		}
	}

	for {
		select {
		case e, ok := <-sub.C:
			if !ok {
				if r.hub.Closed() {
					<-ctx.Done()
					r.shutdown()
					return nil
				}
				r.logger.Warn("Relay fell behind, resubscribing")
				sub = r.hub.Subscribe()
				continue
			}
			r.forward(ctx, e)
		case <-ctx.Done():
			r.shutdown()
			return nil
		}
	}
}

func (r *Relay) forward(ctx context.Context, e watch.Event) {
	switch e.Type {
	case watch.TypeTelemetry:
		r.publish(ctx, r.topics.Telemetry(r.cfg.RobotID), qosTelemetry, false, e.Data)
	case watch.TypeConnectivity:
		r.publishOnline(ctx)
	case watch.TypeCommandStatus, watch.TypeStreamStatus:
		r.publish(ctx, r.topics.Status(r.cfg.RobotID), qosTelemetry, false, e)
	}
}

func (r *Relay) publishOnline(ctx context.Context) {
	summary := r.state.Connectivity()
	online := false
	for _, v := range summary {
		online = online || v
	}
	r.publish(ctx, r.topics.Online(r.cfg.RobotID), qosOnline, true, OnlinePayload{
		Robot:        r.cfg.RobotID,
		Online:       online,
		Connectivity: summary,
		At:           time.Now(),
	})
}

func (r *Relay) publish(ctx context.Context, t string, qos int, retain bool, v any) {
	payload, err := encode(v)
	if err != nil {
		r.logger.Error(err, "Failed to encode relay payload", "topic", t)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, t, qos, retain, payload); err != nil {
		r.logger.Warn("Relay publish failed", "topic", t, "error", err)
	}
}

func (r *Relay) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	t, payload := WillMessage(r.cfg)
	if err := r.client.Publish(ctx, t, qosOnline, true, payload); err != nil {
		r.logger.Warn("Failed to publish offline state", "error", err)
	}
	r.client.Disconnect(ctx)
}

func (r *Relay) handleCommand(ctx context.Context, t string, payload []byte) {
	in, err := decodeIntent(payload)
	if err != nil {
		r.logger.Warn("Ignoring invalid remote intent", "topic", t, "error", err)
		return
	}

	r.logger.Info("Remote intent received", "action", in.Action)
	switch in.Action {
	case ActionPress:
		dir, err := command.ParseDirection(in.Direction)
		if err != nil {
			r.logger.Warn("Ignoring remote press", "error", err)
			return
		}
		if dir == command.Stop {
			r.intents.Release()
			return
		}
		r.intents.Press(dir)
	case ActionRelease:
		r.intents.Release()
	case ActionSpeed:
		r.intents.CommitSpeed(in.Value)
	case ActionChat:
		if !r.intents.Chat(ctx, in.Text) {
			r.logger.Info("Remote chat intent ignored while a request is in flight")
		}
	}
}
