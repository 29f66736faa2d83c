package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/mizuna-io/mizuna/pkg/log"
)

var errNotStarted = errors.New("mqtt client not started")

type pahoClient struct {
	cfg    *ClientConfig
	logger log.Logger

	cm        *autopaho.ConnectionManager
	connected atomic.Bool

	mu     sync.RWMutex
	subs   map[string]subscription
	onConn []ConnectHandler
}

type subscription struct {
	qos     byte
	handler MessageHandler
}

// NewClient creates a Client from cfg. Nothing is dialed until Start.
func NewClient(cfg *ClientConfig) (Client, error) {
	if cfg == nil {
		return nil, errors.New("mqtt config is required")
	}

	setDefaultConfig(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}

	return &pahoClient{
		cfg:    cfg,
		logger: log.WithName("mqtt").WithValues("clientID", cfg.ClientID),
		subs:   make(map[string]subscription),
	}, nil
}

func (c *pahoClient) Start(ctx context.Context) error {
	broker, err := url.Parse(c.cfg.BrokerURL)
	if err != nil {
		return fmt.Errorf("invalid broker url: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{broker},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		ReconnectBackoff:              autopaho.NewConstantBackoff(c.cfg.ReconnectBackoff),
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ConnectUsername:               c.cfg.Username,
		ConnectPassword:               []byte(c.cfg.Password),
		TlsCfg:                        &tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify}, //nolint:gosec
		WillMessage:                   c.will(),
		OnConnectionUp:                c.connectionUp,
		OnConnectionDown: func() bool {
			c.connected.Store(false)
			c.logger.Warn("Broker connection lost")
			return true
		},
		OnConnectError: func(err error) {
			c.connected.Store(false)
			c.logger.Error(err, "Broker connection attempt failed")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.cfg.ClientID,
			OnClientError: func(err error) {
				c.logger.Error(err, "MQTT client error")
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				var reason string
				if d.Properties != nil {
					reason = d.Properties.ReasonString
				}
				c.logger.Warn("Broker closed the connection", "reasonCode", d.ReasonCode, "reason", reason)
			},
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){c.dispatch},
		},
	}

	c.logger.Info("Connecting to broker", "broker", c.cfg.BrokerURL)

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.cm = cm
	c.mu.Unlock()
	return nil
}

func (c *pahoClient) manager() *autopaho.ConnectionManager {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cm
}

func (c *pahoClient) Disconnect(ctx context.Context) {
	cm := c.manager()
	if cm == nil {
		return
	}
	if err := cm.Disconnect(ctx); err != nil {
		c.logger.Warn("Broker disconnect was not clean", "error", err)
	}
	c.connected.Store(false)
}

func (c *pahoClient) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	cm := c.manager()
	if cm == nil {
		return errNotStarted
	}
	if !c.connected.Load() {
		return ErrNotConnected
	}

	_, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		QoS:     byte(qos),
		Retain:  retain,
		Payload: payload,
	})
	return err
}

func (c *pahoClient) Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error {
	cm := c.manager()
	if cm == nil {
		return errNotStarted
	}

	// Recorded before the attempt so the next connectionUp restores it.
	c.mu.Lock()
	c.subs[topic] = subscription{qos: byte(qos), handler: handler}
	c.mu.Unlock()

	if !c.connected.Load() {
		c.logger.Debug("Subscription deferred until connected", "topic", topic)
		return nil
	}
	if err := subscribe(ctx, cm, topic, byte(qos)); err != nil {
		return err
	}
	c.logger.Info("Subscribed", "topic", topic)
	return nil
}

func (c *pahoClient) Unsubscribe(ctx context.Context, topic string) error {
	cm := c.manager()
	if cm == nil {
		return errNotStarted
	}

	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()

	if !c.connected.Load() {
		return nil
	}
	_, err := cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{topic}})
	return err
}

func (c *pahoClient) AwaitConnection(ctx context.Context) error {
	cm := c.manager()
	if cm == nil {
		return errNotStarted
	}
	return cm.AwaitConnection(ctx)
}

func (c *pahoClient) IsConnected() bool {
	return c.connected.Load()
}

func (c *pahoClient) OnConnect(fn ConnectHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConn = append(c.onConn, fn)
}

func (c *pahoClient) connectionUp(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	c.connected.Store(true)
	c.logger.Info("Broker connection established")

	c.mu.RLock()
	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	qos := make(map[string]byte, len(c.subs))
	for topic, s := range c.subs {
		qos[topic] = s.qos
	}
	hooks := append([]ConnectHandler(nil), c.onConn...)
	c.mu.RUnlock()

	sort.Strings(topics)

	// Hooks may publish; keep them off the paho callback goroutine.
	go func() {
		ctx := context.Background()
		for _, topic := range topics {
			if err := subscribe(ctx, cm, topic, qos[topic]); err != nil {
				c.logger.Error(err, "Failed to restore subscription", "topic", topic)
			}
		}
		for _, fn := range hooks {
			fn(ctx)
		}
	}()
}

// dispatch hands an incoming publish to every subscription whose filter
// matches its topic.
func (c *pahoClient) dispatch(p paho.PublishReceived) (bool, error) {
	topic := p.Packet.Topic
	payload := p.Packet.Payload

	c.mu.RLock()
	var handlers []MessageHandler
	for filter, s := range c.subs {
		if topicsMatch(topicFilter(filter), topic) {
			handlers = append(handlers, s.handler)
		}
	}
	c.mu.RUnlock()

	if len(handlers) == 0 {
		c.logger.Debug("Dropping message with no subscriber", "topic", topic)
		return true, nil
	}
	for _, h := range handlers {
		go h(context.Background(), topic, payload)
	}
	return true, nil
}

func (c *pahoClient) will() *paho.WillMessage {
	if c.cfg.WillTopic == "" {
		return nil
	}
	return &paho.WillMessage{
		Topic:   c.cfg.WillTopic,
		Payload: c.cfg.WillPayload,
		QoS:     c.cfg.WillQoS,
		Retain:  c.cfg.WillRetain,
	}
}

func subscribe(ctx context.Context, cm *autopaho.ConnectionManager, topic string, qos byte) error {
	_, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: qos}},
	})
	if err != nil {
		return fmt.Errorf("subscribe %q: %w", topic, err)
	}
	return nil
}

// topicsMatch reports whether topic matches filter. Single-level (+) and
// multi-level (#) wildcards are honored.
func topicsMatch(filter, topic string) bool {
	if filter == topic {
		return true
	}
	if !strings.ContainsAny(filter, "+#") {
		return false
	}

	fs := strings.Split(filter, "/")
	ts := strings.Split(topic, "/")
	for i, f := range fs {
		switch {
		case f == "#":
			return true
		case i >= len(ts):
			return false
		case f != "+" && f != ts[i]:
			return false
		}
	}
	return len(fs) == len(ts)
}

// topicFilter strips a $share/<group>/ prefix.
func topicFilter(filter string) string {
	rest, ok := strings.CutPrefix(filter, "$share/")
	if !ok {
		return filter
	}
	if _, f, ok := strings.Cut(rest, "/"); ok {
		return f
	}
	return filter
}
