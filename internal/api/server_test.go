package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/control"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/config"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/database"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/logging"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/library"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/sequencer"
	_ "github.com/TheElectricFursuits/tef-synth-animation/migrations"
)

// ─── Test Helpers ──────────────────────────────────────────────────

// testEnv bundles a server with the collaborators tests inspect.
type testEnv struct {
	srv     *Server
	router  http.Handler
	library *library.Registry
	ctrl    *control.Controller
	hub     *Hub
}

// testServer creates a Server over an in-memory library and an unstarted
// player. Programs are assigned but never scheduled.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 1})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}

	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	wsCfg := config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}

	registry := library.NewRegistry(library.NewSQLiteRepository(db.DB))
	if err := registry.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := NewHub(wsCfg, log)
	go hub.Run(ctx)

	ctrl, err := control.New(control.Deps{
		Player:    sequencer.NewPlayer(sequencer.PlayerConfig{}, sequencer.Env{}),
		Shows:     registry,
		Compiler:  library.NewCompiler(registry, nil, nil, 0),
		Playbacks: registry.Repository(),
		Hub:       hub,
	})
	if err != nil {
		t.Fatalf("control.New: %v", err)
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host: "127.0.0.1",
			Port: 0,
			Timeouts: config.APITimeoutConfig{
				Read:  5,
				Write: 5,
				Idle:  5,
			},
		},
		WS:         wsCfg,
		Logger:     log,
		Controller: ctrl,
		Library:    registry,
		Hub:        hub,
		DB:         db,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	return &testEnv{srv: srv, router: srv.buildRouter(), library: registry, ctrl: ctrl, hub: hub}
}

// do sends a request through the router and returns the recorder.
func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// createShow adds a show with a single stop cue at t.
func (e *testEnv) createShow(t *testing.T, name string, cues ...library.Cue) *library.Show {
	t.Helper()
	if len(cues) == 0 {
		end := 60.0
		cues = []library.Cue{{Time: &end, Stop: true}}
	}
	show := &library.Show{Name: name, Cues: cues}
	if err := e.library.CreateShow(context.Background(), show); err != nil {
		t.Fatalf("CreateShow(%s): %v", name, err)
	}
	return show
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

// ─── Health & Middleware ───────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t)

	w := env.do(http.MethodGet, "/api/v1/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	decode(t, w, &resp)
	if resp["status"] != "ok" || resp["version"] != "test" {
		t.Errorf("health = %v", resp)
	}
}

func TestRequestID(t *testing.T) {
	env := testServer(t)

	w := env.do(http.MethodGet, "/api/v1/health", "")
	if len(w.Header().Get("X-Request-ID")) != 36 {
		t.Errorf("generated X-Request-ID = %q, want a UUID", w.Header().Get("X-Request-ID"))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	env := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/programs", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("ACAO = %q", got)
	}
}

func TestRecovery(t *testing.T) {
	env := testServer(t)
	handler := env.srv.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestNotFound(t *testing.T) {
	env := testServer(t)

	if w := env.do(http.MethodGet, "/api/v1/nonexistent", ""); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestMetrics(t *testing.T) {
	env := testServer(t)
	env.createShow(t, "Idle Blink")
	if w := env.do(http.MethodPut, "/api/v1/programs/face", `{"show":"idle-blink"}`); w.Code != http.StatusOK {
		t.Fatalf("assign status = %d", w.Code)
	}

	w := env.do(http.MethodGet, "/api/v1/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", w.Code)
	}

	var m SystemMetrics
	decode(t, w, &m)
	if m.Player.Programs != 1 || m.Player.Shows != 1 {
		t.Errorf("player metrics = %+v", m.Player)
	}
	if m.Player.ByState["uninitialized"] != 1 {
		t.Errorf("by_state = %v", m.Player.ByState)
	}
	if m.MQTT.Enabled {
		t.Error("MQTT should be reported as disabled")
	}
	if m.Database == nil {
		t.Error("database metrics missing")
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")

	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: log}); err == nil {
		t.Error("New() without controller should fail")
	}
}

func TestServer_HealthCheck(t *testing.T) {
	env := testServer(t)

	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() before Start error = %v", err)
	}
}
