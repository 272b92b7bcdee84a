package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/mqtt"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/library"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/sequencer"
)

// Event channels broadcast to WebSocket clients.
const (
	EventAssigned = "program.assigned"
	EventRemoved  = "program.removed"
	EventFinished = "program.finished"
	EventTick     = "tick"
)

// Sources recorded on playbacks.
const (
	SourceAPI     = "api"
	SourceMQTT    = "mqtt"
	SourceStartup = "startup"
)

// Player is the part of *sequencer.Player the controller drives.
type Player interface {
	AssignSheet(key string, sheet *sequencer.Sheet, opts sequencer.Options) (*sequencer.SheetSequence, error)
	Remove(key string) bool
	Lookup(key string) (sequencer.Program, bool)
	StateOf(key string) (sequencer.State, bool)
	OnFinish(fn func(key string))
	Start(ctx context.Context) error
	Stop()
}

// Shows resolves show references. *library.Registry satisfies it.
type Shows interface {
	Resolve(ctx context.Context, ref string) (*library.Show, error)
}

// Compiler turns a show into a sheet. *library.Compiler satisfies it.
type Compiler interface {
	Compile(ctx context.Context, show *library.Show) (*sequencer.Sheet, error)
}

// Publisher publishes retained slot state. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// EventRecorder stores program events as time series.
// *influxdb.Client satisfies it.
type EventRecorder interface {
	WriteProgramEvent(slot, show, event string)
}

// Logger defines the logging interface used by the controller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Slot describes the show currently assigned to a player key.
type Slot struct {
	Key        string         `json:"key"`
	ShowID     string         `json:"show_id"`
	ShowSlug   string         `json:"show"`
	ShowName   string         `json:"show_name"`
	PlaybackID string         `json:"playback_id"`
	Options    map[string]any `json:"options,omitempty"`
	Source     string         `json:"source"`
	AssignedAt time.Time      `json:"assigned_at"`
	State      string         `json:"state"`
}

// Deps holds the collaborators of a Controller. Player, Shows and Compiler
// are required; the rest may be nil.
type Deps struct {
	Player    Player
	Shows     Shows
	Compiler  Compiler
	Playbacks library.Repository
	MQTT      Publisher
	QoS       byte
	Hub       WSHub
	Events    EventRecorder
	Logger    Logger
}

// Controller assigns shows to player slots and keeps every outer surface
// (playback log, retained MQTT state, WebSocket feed, time series) in step
// with what the player is running.
//
// Thread Safety: all methods are safe for concurrent use. Slot bookkeeping
// is serialised by one mutex that is always taken before the player's lock.
type Controller struct {
	player    Player
	shows     Shows
	compiler  Compiler
	playbacks library.Repository
	mqtt      Publisher
	qos       byte
	hub       WSHub
	events    EventRecorder
	logger    Logger
	now       func() time.Time

	mu    sync.Mutex
	slots map[string]*Slot
}

// New creates a controller and registers it for finish notifications.
func New(deps Deps) (*Controller, error) {
	if deps.Player == nil {
		return nil, errors.New("control: player is required")
	}
	if deps.Shows == nil || deps.Compiler == nil {
		return nil, errors.New("control: show registry and compiler are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	c := &Controller{
		player:    deps.Player,
		shows:     deps.Shows,
		compiler:  deps.Compiler,
		playbacks: deps.Playbacks,
		mqtt:      deps.MQTT,
		qos:       deps.QoS,
		hub:       deps.Hub,
		events:    deps.Events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		slots:     make(map[string]*Slot),
	}
	deps.Player.OnFinish(c.handleFinish)
	return c, nil
}

// Start closes playback records left open by an unclean shutdown, then
// starts the player.
func (c *Controller) Start(ctx context.Context) error {
	if c.playbacks != nil {
		n, err := c.playbacks.EndOpenPlaybacks(ctx, library.PlaybackStopped, c.now())
		if err != nil {
			c.logger.Warn("closing stale playbacks failed", "error", err)
		} else if n > 0 {
			c.logger.Info("closed stale playbacks", "count", n)
		}
	}
	return c.player.Start(ctx)
}

// Stop halts the player and marks every open playback as stopped.
func (c *Controller) Stop(ctx context.Context) {
	// The scheduling goroutine may be waiting on mu in handleFinish.
	c.player.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.sortedKeys() {
		slot := c.slots[key]
		c.endPlayback(ctx, slot, library.PlaybackStopped)
		c.record(slot.Key, slot.ShowSlug, string(library.PlaybackStopped))
		c.publishState(key, nil)
		delete(c.slots, key)
	}
}

// Assign compiles the referenced show and runs it in slot key, replacing
// whatever ran there.
//
// Parameters:
//   - ref: show slug or ID
//   - options: instance options, available to "$name" cue values
//   - source: who asked (api, mqtt, startup)
//
// Returns:
//   - Slot: the new assignment
//   - error: ErrInvalidKey, library.ErrShowNotFound, a compile error (see
//     library.IsCompileError), or a sequencer construction error
func (c *Controller) Assign(ctx context.Context, key, ref string, options map[string]any, source string) (Slot, error) {
	if err := ValidateKey(key); err != nil {
		return Slot{}, err
	}

	show, err := c.shows.Resolve(ctx, ref)
	if err != nil {
		return Slot{}, err
	}
	sheet, err := c.compiler.Compile(ctx, show)
	if err != nil {
		return Slot{}, fmt.Errorf("compiling %s: %w", show.Slug, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.player.AssignSheet(key, sheet, sequencer.Options(options)); err != nil {
		return Slot{}, fmt.Errorf("assigning %s: %w", show.Slug, err)
	}

	if prev, ok := c.slots[key]; ok {
		c.endPlayback(ctx, prev, library.PlaybackReplaced)
		c.record(key, prev.ShowSlug, string(library.PlaybackReplaced))
	}

	slot := &Slot{
		Key:        key,
		ShowID:     show.ID,
		ShowSlug:   show.Slug,
		ShowName:   show.Name,
		PlaybackID: library.GenerateID(),
		Options:    options,
		Source:     source,
		AssignedAt: c.now(),
	}
	c.slots[key] = slot
	c.startPlayback(ctx, slot)

	c.record(key, show.Slug, string(library.PlaybackAssigned))
	c.publishState(key, slot)
	c.broadcast(EventAssigned, slot)

	c.logger.Info("program assigned", "key", key, "show", show.Slug, "source", source)
	return c.withState(slot), nil
}

// Remove tears down the program in slot key. It reports whether the slot
// was occupied.
func (c *Controller) Remove(ctx context.Context, key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := c.player.Remove(key)
	slot, tracked := c.slots[key]
	if !removed && !tracked {
		return false
	}

	show := ""
	if tracked {
		show = slot.ShowSlug
		c.endPlayback(ctx, slot, library.PlaybackRemoved)
		delete(c.slots, key)
	}

	c.record(key, show, string(library.PlaybackRemoved))
	c.publishState(key, nil)
	c.broadcast(EventRemoved, map[string]string{"key": key, "show": show})

	c.logger.Info("program removed", "key", key, "show", show)
	return true
}

// Program returns the assignment in slot key.
func (c *Controller) Program(key string) (Slot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, ok := c.slots[key]
	if !ok {
		return Slot{}, false
	}
	return c.withState(slot), true
}

// Programs returns every current assignment sorted by key.
func (c *Controller) Programs() []Slot {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Slot, 0, len(c.slots))
	for _, key := range c.sortedKeys() {
		out = append(out, c.withState(c.slots[key]))
	}
	return out
}

// handleFinish runs on the scheduling goroutine when a program ends on its
// own. A key that already holds a new program is a stale notification.
func (c *Controller) handleFinish(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot, ok := c.slots[key]
	if !ok {
		return
	}
	if _, running := c.player.Lookup(key); running {
		return
	}

	ctx := context.Background()
	c.endPlayback(ctx, slot, library.PlaybackFinished)
	delete(c.slots, key)

	c.record(key, slot.ShowSlug, string(library.PlaybackFinished))
	c.publishState(key, nil)
	c.broadcast(EventFinished, map[string]string{"key": key, "show": slot.ShowSlug})

	c.logger.Info("program finished", "key", key, "show", slot.ShowSlug)
}

// withState copies slot with the live lifecycle state filled in. Caller holds mu.
func (c *Controller) withState(slot *Slot) Slot {
	out := *slot
	state, _ := c.player.StateOf(slot.Key)
	out.State = state.String()
	return out
}

func (c *Controller) sortedKeys() []string {
	keys := make([]string, 0, len(c.slots))
	for k := range c.slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// startPlayback persists a new playback record. Failures are logged: the
// show is already running and the log is secondary.
func (c *Controller) startPlayback(ctx context.Context, slot *Slot) {
	if c.playbacks == nil {
		return
	}
	p := &library.Playback{
		ID:         slot.PlaybackID,
		ShowID:     slot.ShowID,
		Slot:       slot.Key,
		Options:    slot.Options,
		Status:     library.PlaybackAssigned,
		AssignedAt: slot.AssignedAt,
	}
	if slot.Source != "" {
		src := slot.Source
		p.Source = &src
	}
	if err := c.playbacks.CreatePlayback(ctx, p); err != nil {
		c.logger.Error("failed to create playback record", "key", slot.Key, "error", err)
	}
}

func (c *Controller) endPlayback(ctx context.Context, slot *Slot, status library.PlaybackStatus) {
	if c.playbacks == nil {
		return
	}
	if err := c.playbacks.EndPlayback(ctx, slot.PlaybackID, status, c.now()); err != nil {
		c.logger.Warn("failed to close playback record",
			"key", slot.Key,
			"playback_id", slot.PlaybackID,
			"status", status,
			"error", err,
		)
	}
}

func (c *Controller) record(key, show, event string) {
	if c.events != nil {
		c.events.WriteProgramEvent(key, show, event)
	}
}

func (c *Controller) broadcast(channel string, payload any) {
	if c.hub != nil {
		c.hub.Broadcast(channel, payload)
	}
}

// publishState publishes the retained state of slot key. A nil slot clears
// the retained message.
func (c *Controller) publishState(key string, slot *Slot) {
	if c.mqtt == nil {
		return
	}

	var payload []byte
	if slot != nil {
		var err error
		payload, err = json.Marshal(slot)
		if err != nil {
			c.logger.Error("failed to marshal slot state", "key", key, "error", err)
			return
		}
	}

	if err := c.mqtt.Publish(mqtt.Topics{}.PlayerProgram(key), payload, c.qos, true); err != nil {
		c.logger.Warn("failed to publish slot state", "key", key, "error", err)
	}
}
