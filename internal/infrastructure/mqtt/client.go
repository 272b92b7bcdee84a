package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/config"
)

// Logger is the logging interface used for handler failures.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives one message. Paho calls it on its own goroutine;
// a returned error is logged and otherwise ignored.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Client is a paho connection that announces the player on
// tef/player/status and keeps its subscriptions across reconnects.
//
// All methods are safe for concurrent use.
type Client struct {
	paho     pahomqtt.Client
	clientID string
	qos      byte

	mu           sync.RWMutex
	connected    bool
	subs         map[string]subscription
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Connect dials the broker and waits for the first session. The broker
// publishes a retained offline status on our behalf if the process dies.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		clientID: cfg.Broker.ClientID,
		qos:      byte(cfg.QoS), //nolint:gosec // config validation bounds QoS
		subs:     make(map[string]subscription),
	}

	opts := newOptions(cfg)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connectionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.connectionDown(err) })

	c.paho = pahomqtt.NewClient(opts)
	if err := await(c.paho.Connect(), connectTimeout); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The connect handler runs asynchronously; mark the session usable now
	// so callers can subscribe straight away.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

// connectionUp restores subscriptions and re-announces the player after
// every (re)connect.
func (c *Client) connectionUp() {
	c.mu.Lock()
	c.connected = true
	subs := make(map[string]subscription, len(c.subs))
	for topic, s := range c.subs {
		subs[topic] = s
	}
	hook := c.onConnect
	c.mu.Unlock()

	for topic, s := range subs {
		c.paho.Subscribe(topic, s.qos, c.deliver(s.handler))
	}
	c.paho.Publish(Topics{}.PlayerStatus(), c.qos, true, statusPayload(c.clientID, statusOnline, ""))

	if hook != nil {
		hook()
	}
}

func (c *Client) connectionDown(err error) {
	c.mu.Lock()
	c.connected = false
	hook := c.onDisconnect
	c.mu.Unlock()

	if hook != nil {
		hook(err)
	}
}

// Close publishes a graceful offline status and disconnects.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}

	if c.IsConnected() {
		token := c.paho.Publish(Topics{}.PlayerStatus(), c.qos, true,
			statusPayload(c.clientID, statusOffline, reasonShutdown))
		token.WaitTimeout(operationTimeout)
	}
	c.paho.Disconnect(disconnectQuiesceMs)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	return nil
}

// HealthCheck reports ErrNotConnected while the session is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports whether the last known session state is up.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.paho != nil && c.paho.IsConnected()
}

// SetOnConnect registers a hook run after every successful (re)connect.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// SetOnDisconnect registers a hook run when the session drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// SetLogger sets the logger used for handler errors and panics.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

// deliver adapts a MessageHandler to paho, recovering panics so one bad
// control message cannot take the client down.
func (c *Client) deliver(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.mu.RLock()
		logger := c.logger
		c.mu.RUnlock()

		defer func() {
			if r := recover(); r != nil && logger != nil {
				logger.Error("mqtt handler panicked", "topic", msg.Topic(), "panic", r)
			}
		}()

		if err := handler(msg.Topic(), msg.Payload()); err != nil && logger != nil {
			logger.Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
		}
	}
}
