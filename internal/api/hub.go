package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/config"
	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/logging"
)

// Frame types exchanged with live clients.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePing        = "ping"
	FramePong        = "pong"
	FrameEvent       = "event"
	FrameSnapshot    = "snapshot"
	FrameAck         = "ack"
	FrameError       = "error"
)

// outboxSize bounds the frames queued for one session. A session that
// falls this far behind loses frames rather than stalling the player.
const outboxSize = 256

// Frame is one JSON message on a live connection. Inbound frames carry
// their payload raw so each frame type can decode its own shape.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Channel string          `json:"channel,omitempty"`
	At      string          `json:"at,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ChannelList is the payload of subscribe and unsubscribe frames.
//
// A channel matches an event exactly, "*" matches everything and a
// trailing ".*" matches a dotted prefix ("program.*").
type ChannelList struct {
	Channels []string `json:"channels"`
}

// newFrame encodes payload into a timestamped outbound frame.
func newFrame(kind, id, channel string, payload any) ([]byte, error) {
	f := Frame{
		Type:    kind,
		ID:      id,
		Channel: channel,
		At:      time.Now().UTC().Format(time.RFC3339Nano),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		f.Payload = raw
	}
	return json.Marshal(f)
}

// Hub fans controller events out to live sessions. It satisfies
// control.WSHub.
type Hub struct {
	cfg    config.WebSocketConfig
	logger *logging.Logger

	mu       sync.RWMutex
	sessions map[*session]struct{}
}

// NewHub returns an empty hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[*session]struct{}),
	}
}

// Run blocks until ctx is done, then drops every session.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	dropped := h.sessions
	h.sessions = make(map[*session]struct{})
	h.mu.Unlock()

	for s := range dropped {
		s.shut()
	}
}

func (h *Hub) join(s *session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	n := len(h.sessions)
	h.mu.Unlock()
	h.logger.Debug("live session opened", "sessions", n)
}

// leave removes s and closes its outbox. Safe to call more than once.
func (h *Hub) leave(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	n := len(h.sessions)
	h.mu.Unlock()

	s.shut()
	h.logger.Debug("live session closed", "sessions", n)
}

// Broadcast queues an event frame for every session watching channel.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := newFrame(FrameEvent, "", channel, payload)
	if err != nil {
		h.logger.Error("encoding live event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if s.watches(channel) {
			s.queue(data)
		}
	}
}

// ClientCount returns the number of open sessions.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// channelMatches reports whether a subscription pattern covers channel.
func channelMatches(pattern, channel string) bool {
	switch {
	case pattern == "*":
		return true
	case strings.HasSuffix(pattern, ".*"):
		return strings.HasPrefix(channel, strings.TrimSuffix(pattern, "*"))
	default:
		return pattern == channel
	}
}
