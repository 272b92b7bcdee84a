package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/config"
)

const (
	connectTimeout      = 10 * time.Second
	operationTimeout    = 5 * time.Second
	keepAlive           = 30 * time.Second
	disconnectQuiesceMs = 500

	maxQoS         = 2
	maxPayloadSize = 256 << 10
	tlsMinVersion  = tls.VersionTLS12
)

// Player status values on tef/player/status.
const (
	statusOnline  = "online"
	statusOffline = "offline"

	reasonShutdown = "shutdown"
	reasonLost     = "connection_lost"
)

// newOptions maps the mqtt config section onto paho options, including the
// last will that marks the player offline when the session dies.
func newOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetOrderMatters(false).
		SetKeepAlive(keepAlive).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second).
		SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username).SetPassword(cfg.Auth.Password)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	opts.SetBinaryWill(Topics{}.PlayerStatus(),
		statusPayload(cfg.Broker.ClientID, statusOffline, reasonLost), 1, true)
	return opts
}

type statusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// statusPayload encodes a retained player status message.
func statusPayload(clientID, status, reason string) []byte {
	b, _ := json.Marshal(statusMessage{ //nolint:errchkjson // plain strings always encode
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}

// await waits for a paho token and folds its timeout into an error.
func await(token pahomqtt.Token, timeout time.Duration) error {
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("%w after %v", ErrTimeout, timeout)
	}
	return token.Error()
}
