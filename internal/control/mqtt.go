package control

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/mqtt"
)

// maxKeyLength bounds player keys.
const maxKeyLength = 64

// commandTimeout bounds one control message, including compilation.
const commandTimeout = 10 * time.Second

// Subscriber subscribes to MQTT topics. *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Command is the payload of a control message.
//
//	{"show": "idle-blink", "options": {"color": "red"}}
//
// An empty payload, or an empty show, clears the slot.
type Command struct {
	Show    string         `json:"show"`
	Options map[string]any `json:"options,omitempty"`
}

// ValidateKey checks a player key. Keys become one MQTT topic level, so
// wildcards and separators are rejected.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("%w: key exceeds %d characters", ErrInvalidKey, maxKeyLength)
	}
	if strings.ContainsAny(key, "/+#") {
		return fmt.Errorf("%w: key cannot contain '/', '+' or '#'", ErrInvalidKey)
	}
	return nil
}

// SubscribeControl subscribes to every slot's control topic.
func (c *Controller) SubscribeControl(sub Subscriber, qos byte) error {
	topic := mqtt.Topics{}.AllPlayerControl()
	c.logger.Info("subscribing to player control", "topic", topic)
	return sub.Subscribe(topic, qos, c.HandleControl)
}

// HandleControl applies one control message received on
// tef/player/control/{key}.
func (c *Controller) HandleControl(topic string, payload []byte) error {
	key, ok := mqtt.Topics{}.ControlKey(topic)
	if !ok {
		return fmt.Errorf("%w: unexpected topic %q", ErrInvalidCommand, topic)
	}

	var cmd Command
	if trimmed := strings.TrimSpace(string(payload)); trimmed != "" {
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if cmd.Show == "" {
		c.Remove(ctx, key)
		return nil
	}

	if _, err := c.Assign(ctx, key, cmd.Show, cmd.Options, SourceMQTT); err != nil {
		c.logger.Warn("control command failed", "key", key, "show", cmd.Show, "error", err)
		return err
	}
	return nil
}
