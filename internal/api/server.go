package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/control"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/config"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/logging"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/library"
)

// drainTimeout bounds how long Close waits for in-flight requests.
const drainTimeout = 10 * time.Second

// ConnectionStatus is satisfied by *mqtt.Client.
type ConnectionStatus interface {
	IsConnected() bool
}

// DBStats is satisfied by *database.DB.
type DBStats interface {
	Stats() sql.DBStats
}

// Deps wires the server. Logger, Controller and Library are required.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Controller *control.Controller
	Library    *library.Registry

	// Hub is normally shared with the controller. When nil the server
	// creates and runs its own.
	Hub *Hub

	MQTT    ConnectionStatus
	DB      DBStats
	Version string
}

// Server serves the REST routes and the live feed.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	controller *control.Controller
	library    *library.Registry
	hub        *Hub
	ownsHub    bool
	mqtt       ConnectionStatus
	db         DBStats
	version    string
	started    time.Time

	http   *http.Server
	stopFn context.CancelFunc
}

// New validates deps. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Logger == nil:
		return nil, errors.New("api: logger is required")
	case deps.Controller == nil:
		return nil, errors.New("api: controller is required")
	case deps.Library == nil:
		return nil, errors.New("api: show library is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		controller: deps.Controller,
		library:    deps.Library,
		hub:        deps.Hub,
		mqtt:       deps.MQTT,
		db:         deps.DB,
		version:    deps.Version,
		started:    time.Now(),
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
		s.ownsHub = true
	}
	return s, nil
}

// Start binds the listener and serves in the background. A bind failure
// is returned here rather than logged later.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen on %s: %w", addr, err)
	}

	var runCtx context.Context
	runCtx, s.stopFn = context.WithCancel(ctx)
	if s.ownsHub {
		go s.hub.Run(runCtx)
	}

	seconds := func(n int) time.Duration { return time.Duration(n) * time.Second }
	s.http = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       seconds(s.cfg.Timeouts.Read),
		ReadHeaderTimeout: seconds(s.cfg.Timeouts.Read),
		WriteTimeout:      seconds(s.cfg.Timeouts.Write),
		IdleTimeout:       seconds(s.cfg.Timeouts.Idle),
	}

	tls := s.cfg.TLS
	s.logger.Info("api listening", "address", ln.Addr().String(), "tls", tls.Enabled)
	go func() {
		var err error
		if tls.Enabled {
			err = s.http.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = s.http.Serve(ln)
		}
		if !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server stopped", "error", err)
		}
	}()
	return nil
}

// Hub returns the live feed hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close stops accepting requests and waits up to drainTimeout for the
// rest. Calling it before Start is a no-op.
func (s *Server) Close() error {
	if s.http == nil {
		return nil
	}
	s.stopFn()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	s.logger.Info("api shutting down")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

// HealthCheck fails until Start has run.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.http == nil {
		return errors.New("api: not started")
	}
	return nil
}
