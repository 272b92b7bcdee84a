package config

import "time"

// Config mirrors the YAML config file. The player and playback sections
// take Go duration strings ("250ms"); network timeouts are whole seconds.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Player    PlayerConfig    `yaml:"player"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Shows     ShowsConfig     `yaml:"shows"`
}

// SiteConfig names this player (one suit, one stage prop). The ID tags
// telemetry and forms the MQTT topic root.
type SiteConfig struct {
	ID string `yaml:"id"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"` // seconds
}

type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig is normally filled from SYNTHANIM_MQTT_USERNAME and
// SYNTHANIM_MQTT_PASSWORD rather than the file.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig bounds paho's reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig is in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig with no origins allows every origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"` // seconds
	PongTimeout    int    `yaml:"pong_timeout"`  // seconds

	// TickEvents broadcasts one event per executed batch. Noisy; off by default.
	TickEvents bool `yaml:"tick_events"`
}

type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// PlayerConfig tunes the scheduling loop.
type PlayerConfig struct {
	// Batches later than OverdueWarn are logged at warn, later than
	// OverdueError at error.
	OverdueWarn  time.Duration `yaml:"overdue_warn"`
	OverdueError time.Duration `yaml:"overdue_error"`

	// SetupEpsilon is the local-time step (seconds) used to push a late
	// setup past the current instant.
	SetupEpsilon float64 `yaml:"setup_epsilon"`

	// Startup maps player keys to the show (slug or ID) assigned at boot.
	Startup map[string]string `yaml:"startup"`
}

// PlaybackConfig configures the external media player used by play cues.
type PlaybackConfig struct {
	Binary string `yaml:"binary"`

	// Args may contain {path}, {volume} and {percent} placeholders.
	Args []string `yaml:"args"`

	// WorkDir resolves relative media paths. Defaults to the shows directory.
	WorkDir string `yaml:"work_dir"`

	// GracefulTimeout is how long a playback gets after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration `yaml:"graceful_timeout"`
}

type ShowsConfig struct {
	// Directory holds *.yaml show files imported at startup.
	Directory string `yaml:"directory"`

	// LabelsDirectory holds label track files referenced by labels cues.
	LabelsDirectory string `yaml:"labels_directory"`

	// MaxDepth limits how deeply shows may nest other shows.
	MaxDepth int `yaml:"max_depth"`
}
