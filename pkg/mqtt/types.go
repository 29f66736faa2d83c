package mqtt

import (
	"context"
	"errors"
)

// MessageHandler processes a message received on a subscribed topic.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is a reconnecting MQTT v5 client.
type Client interface {
	// Start begins connecting in the background and returns immediately.
	Start(ctx context.Context) error

	// Disconnect closes the connection. The will message is not sent.
	Disconnect(ctx context.Context)

	// Publish sends payload to topic. It fails fast with ErrNotConnected
	// instead of waiting for a reconnect.
	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe registers handler for a topic filter. Subscriptions survive
	// reconnects.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error

	// Unsubscribe drops the handler for topic.
	Unsubscribe(ctx context.Context, topic string) error

	// AwaitConnection blocks until the broker connection is up or ctx ends.
	AwaitConnection(ctx context.Context) error

	// IsConnected reports whether the broker connection is currently up.
	IsConnected() bool

	// OnConnect registers fn to run after every successful (re)connection,
	// once subscriptions have been restored. Register before Start.
	OnConnect(fn ConnectHandler)
}

// ConnectHandler runs after the client (re)connects.
type ConnectHandler func(ctx context.Context)

// ErrNotConnected is returned by Publish while the broker is unreachable.
// Messages are not queued.
var ErrNotConnected = errors.New("mqtt broker not connected")
