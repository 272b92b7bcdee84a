package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "SYNTHANIM_"

// Load reads the YAML file at path over the defaults, applies
// SYNTHANIM_* overrides and validates the result. Unknown keys are an
// error so a misspelt option does not silently fall back to its default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Site:     SiteConfig{ID: "suit-001"},
		Database: DatabaseConfig{Path: "./data/synthanim.db", WALMode: true, BusyTimeout: 5},
		MQTT: MQTTConfig{
			Enabled:   true,
			Broker:    MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "synthanim"},
			Reconnect: MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60},
		},
		API: APIConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
		},
		WebSocket: WebSocketConfig{Path: "/ws", MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Logging:   LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Player: PlayerConfig{
			OverdueWarn:  100 * time.Millisecond,
			OverdueError: 500 * time.Millisecond,
			SetupEpsilon: 0.01,
		},
		Playback: PlaybackConfig{
			Binary:          "/usr/bin/mpv",
			Args:            []string{"--no-video", "--really-quiet", "--volume={percent}", "{path}"},
			GracefulTimeout: 2 * time.Second,
		},
		Shows: ShowsConfig{Directory: "./shows", LabelsDirectory: "./shows/labels", MaxDepth: 8},
	}
}

// envOverrides lists the settings that may come from the environment,
// keyed by the name after EnvPrefix. Secrets belong here, not in the file.
var envOverrides = map[string]func(c *Config, v string){
	"SITE_ID":         func(c *Config, v string) { c.Site.ID = v },
	"DATABASE_PATH":   func(c *Config, v string) { c.Database.Path = v },
	"MQTT_HOST":       func(c *Config, v string) { c.MQTT.Broker.Host = v },
	"MQTT_USERNAME":   func(c *Config, v string) { c.MQTT.Auth.Username = v },
	"MQTT_PASSWORD":   func(c *Config, v string) { c.MQTT.Auth.Password = v },
	"API_HOST":        func(c *Config, v string) { c.API.Host = v },
	"INFLUXDB_TOKEN":  func(c *Config, v string) { c.InfluxDB.Token = v },
	"LOGGING_LEVEL":   func(c *Config, v string) { c.Logging.Level = v },
	"PLAYBACK_BINARY": func(c *Config, v string) { c.Playback.Binary = v },
	"SHOWS_DIRECTORY": func(c *Config, v string) { c.Shows.Directory = v },
	"API_PORT": func(c *Config, v string) {
		// An unparsable port keeps the file value.
		if port, err := strconv.Atoi(v); err == nil {
			c.API.Port = port
		}
	},
}

func applyEnvOverrides(cfg *Config) {
	for name, set := range envOverrides {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			set(cfg, v)
		}
	}
}

// Validate reports every problem at once, joined.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.Site.ID != "", "site.id is required")
	check(c.Database.Path != "", "database.path is required")
	check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1 or 2")
	check(c.API.Port > 0 && c.API.Port <= 65535, "api.port must be between 1 and 65535")
	check(c.Player.OverdueWarn >= 0 && c.Player.OverdueError >= 0, "player overdue thresholds must not be negative")
	check(c.Player.OverdueError == 0 || c.Player.OverdueWarn <= c.Player.OverdueError,
		"player.overdue_warn must not exceed player.overdue_error")
	check(c.Player.SetupEpsilon >= 0, "player.setup_epsilon must not be negative")
	check(c.Playback.GracefulTimeout >= 0, "playback.graceful_timeout must not be negative")
	check(c.Shows.MaxDepth >= 0, "shows.max_depth must not be negative")

	return errors.Join(errs...)
}
