// Command synthanim plays animation shows on a suit. It keeps the show
// library in SQLite, runs the sequencer against the wall clock, sends
// parameter batches to the animation modules over MQTT and takes slot
// commands over REST, WebSocket and MQTT.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"
	"time"

	_ "github.com/TheElectricFursuits/tef-synth-animation/migrations"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/api"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/control"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/config"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/database"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/influxdb"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/logging"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/mqtt"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/labels"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/library"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/output"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/process"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/sequencer"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// shutdownTimeout bounds each shutdown step that can block.
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "synthanim: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component, blocks until ctx is cancelled and tears
// down in reverse order through the deferred closers.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // composition root
	log := logging.Default()
	log.Info("synthanim starting", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("config loaded", "path", configPath, "site", cfg.Site.ID, "level", cfg.Logging.Level)

	// closeWith logs the error of a deferred close.
	closeWith := func(what string, fn func() error) {
		if err := fn(); err != nil {
			log.Error("closing "+what, "error", err)
		}
	}

	// ─── Storage ────────────────────────────────────────────────────

	db, err := database.Open(database.FromConfig(cfg.Database))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer closeWith("database", db.Close)

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// ─── Connections ────────────────────────────────────────────────

	mqttClient, err := connectMQTT(cfg, log)
	if err != nil {
		return err
	}
	if mqttClient != nil {
		defer closeWith("mqtt", mqttClient.Close)
	}

	influxClient, err := connectInflux(cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer closeWith("influxdb", influxClient.Close)
	}

	// ─── Show Library ───────────────────────────────────────────────

	shows := library.NewRegistry(library.NewSQLiteRepository(db.DB))
	shows.SetLogger(log.Component("library"))
	if err := shows.RefreshCache(ctx); err != nil {
		return fmt.Errorf("loading show library: %w", err)
	}
	if err := importShows(ctx, shows, cfg.Shows.Directory, log); err != nil {
		return err
	}

	tracks, err := labels.LoadDir(cfg.Shows.LabelsDirectory)
	if err != nil {
		return fmt.Errorf("loading label tracks: %w", err)
	}
	log.Info("library ready", "shows", shows.GetShowCount(), "label_tracks", tracks.Len())

	// ─── Player ─────────────────────────────────────────────────────

	qos := mqttQoS(cfg)
	batcher := output.NewBatcher(batchPublisher(mqttClient), qos)
	batcher.SetLogger(log.Component("output"))

	compiler := library.NewCompiler(shows, batcher, tracks, cfg.Shows.MaxDepth)
	compiler.SetLogger(log.Component("compiler"))

	launcher := process.NewLauncher(launcherConfig(cfg))
	launcher.SetLogger(log.Component("playback"))
	defer closeWith("playbacks", func() error {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return launcher.StopAll(stopCtx)
	})

	player := sequencer.NewPlayer(sequencer.PlayerConfig{
		OverdueWarn:  cfg.Player.OverdueWarn,
		OverdueError: cfg.Player.OverdueError,
		SetupEpsilon: cfg.Player.SetupEpsilon,
	}, sequencer.Env{
		Launcher: launcher,
		Logger:   log.Component("sequencer"),
	})
	player.OnTick(func() {
		if err := batcher.Flush(); err != nil {
			log.Warn("parameter batch not published", "error", err)
		}
	})
	if influxClient != nil {
		player.SetMetrics(influxClient)
	}

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)
	if cfg.WebSocket.TickEvents {
		player.OnTick(func() {
			hub.Broadcast(control.EventTick, map[string]any{
				"at":      time.Now().UTC().Format(time.RFC3339Nano),
				"modules": batcher.Modules(),
			})
		})
	}

	deps := control.Deps{
		Player:    player,
		Shows:     shows,
		Compiler:  compiler,
		Playbacks: shows.Repository(),
		QoS:       qos,
		Hub:       hub,
		Logger:    log.Component("control"),
	}
	// Interface fields stay nil rather than holding a typed nil.
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.Events = influxClient
	}
	ctrl, err := control.New(deps)
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}
	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("starting player: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		ctrl.Stop(stopCtx)
		log.Info("player stopped")
	}()

	if mqttClient != nil {
		if err := ctrl.SubscribeControl(mqttClient, qos); err != nil {
			return fmt.Errorf("subscribing to player control: %w", err)
		}
	}

	assignStartup(ctx, ctrl, cfg.Player.Startup, log)

	// ─── API ────────────────────────────────────────────────────────

	apiDeps := api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log.Component("api"),
		Controller: ctrl,
		Library:    shows,
		Hub:        hub,
		DB:         db,
		Version:    version,
	}
	if mqttClient != nil {
		apiDeps.MQTT = mqttClient
	}
	apiServer, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := apiServer.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer closeWith("api", apiServer.Close)

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("synthanim running")

	<-ctx.Done()
	log.Info("shutting down")
	return nil
}

// connectMQTT returns nil, nil when MQTT is disabled. Parameter batches
// are then dropped by the batcher.
func connectMQTT(cfg *config.Config, log *logging.Logger) (*mqtt.Client, error) {
	if !cfg.MQTT.Enabled {
		log.Info("mqtt disabled, parameter batches will be dropped")
		return nil, nil
	}
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log.Component("mqtt"))
	client.SetOnConnect(func() { log.Info("mqtt reconnected") })
	client.SetOnDisconnect(func(err error) { log.Warn("mqtt connection lost", "error", err) })
	log.Info("mqtt connected",
		"broker", net.JoinHostPort(cfg.MQTT.Broker.Host, strconv.Itoa(cfg.MQTT.Broker.Port)),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	return client, nil
}

// connectInflux returns nil, nil when telemetry is disabled.
func connectInflux(cfg *config.Config, log *logging.Logger) (*influxdb.Client, error) {
	if !cfg.InfluxDB.Enabled {
		log.Info("influxdb disabled")
		return nil, nil
	}
	client, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	client.SetSite(cfg.Site.ID)
	client.SetOnError(func(err error) { log.Error("influxdb write failed", "error", err) })
	log.Info("influxdb connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	return client, nil
}

// getConfigPath honours SYNTHANIM_CONFIG.
func getConfigPath() string {
	if path := os.Getenv("SYNTHANIM_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// importShows loads show files from dir into the library. Files win over
// the database for shows with the same slug.
func importShows(ctx context.Context, shows *library.Registry, dir string, log *logging.Logger) error {
	if dir == "" {
		return nil
	}
	loaded, err := library.LoadDir(dir)
	if err != nil {
		return fmt.Errorf("loading shows from %s: %w", dir, err)
	}
	created, updated, err := shows.Import(ctx, loaded)
	if err != nil {
		return fmt.Errorf("importing shows: %w", err)
	}
	log.Info("shows imported", "path", dir, "created", created, "updated", updated)
	return nil
}

// assignStartup fills the configured slots. A show that fails to load is
// logged and skipped; the service still starts.
func assignStartup(ctx context.Context, ctrl *control.Controller, startup map[string]string, log *logging.Logger) {
	keys := make([]string, 0, len(startup))
	for k := range startup {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, err := ctrl.Assign(ctx, key, startup[key], nil, control.SourceStartup); err != nil {
			log.Error("startup assignment failed", "key", key, "show", startup[key], "error", err)
		}
	}
}

// batchPublisher returns the MQTT client as a batch publisher, or nil when
// MQTT is disabled. A typed nil would defeat the batcher's nil check.
func batchPublisher(client *mqtt.Client) output.Publisher {
	if client == nil {
		return nil
	}
	return client
}

// mqttQoS returns the configured QoS as a byte. Config validation keeps it
// within 0-2.
func mqttQoS(cfg *config.Config) byte {
	return byte(cfg.MQTT.QoS) //nolint:gosec // validated range
}

// launcherConfig maps the playback section onto the launcher. Relative
// media paths resolve against the shows directory unless a work_dir is set.
func launcherConfig(cfg *config.Config) process.Config {
	pc := process.DefaultConfig()
	if cfg.Playback.Binary != "" {
		pc.Binary = cfg.Playback.Binary
	}
	if len(cfg.Playback.Args) > 0 {
		pc.Args = cfg.Playback.Args
	}
	if cfg.Playback.GracefulTimeout > 0 {
		pc.GracefulTimeout = cfg.Playback.GracefulTimeout
	}
	pc.WorkDir = cfg.Playback.WorkDir
	if pc.WorkDir == "" {
		pc.WorkDir = cfg.Shows.Directory
	}
	return pc
}

// healthCheck pings each enabled backend and reports the first failure.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
