package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/TheElectricFursuits/tef-synth-animation/internal/infrastructure/config"
)

// CORS middleware decides which origins reach the upgrade.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// session is one live WebSocket connection.
type session struct {
	hub  *Hub
	conn *websocket.Conn

	// outbox is closed exactly once by shut; queue checks closed under
	// the same lock so it never sends on a closed channel.
	outMu  sync.Mutex
	outbox chan []byte
	closed bool

	subMu    sync.RWMutex
	patterns map[string]struct{}
}

func newSession(h *Hub, conn *websocket.Conn) *session {
	return &session{
		hub:      h,
		conn:     conn,
		outbox:   make(chan []byte, outboxSize),
		patterns: make(map[string]struct{}),
	}
}

// queue hands data to the writer, dropping it when the session is shut or
// its outbox is full.
func (s *session) queue(data []byte) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.outbox <- data:
	default:
		s.hub.logger.Debug("live session outbox full, frame dropped")
	}
}

func (s *session) shut() {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.outbox)
	}
}

func (s *session) watches(channel string) bool {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for p := range s.patterns {
		if channelMatches(p, channel) {
			return true
		}
	}
	return false
}

// reply queues a frame addressed to this session only.
func (s *session) reply(kind, id string, payload any) {
	data, err := newFrame(kind, id, "", payload)
	if err != nil {
		s.hub.logger.Error("encoding live reply", "type", kind, "error", err)
		return
	}
	s.queue(data)
}

func (s *session) fail(id, message string) {
	s.reply(FrameError, id, map[string]string{"message": message})
}

// handleWebSocket upgrades the request and opens a session. The session
// receives a snapshot of every slot before any event.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	sess := newSession(s.hub, conn)
	s.hub.join(sess)
	sess.reply(FrameSnapshot, "", map[string]any{"programs": s.controller.Programs()})

	go sess.writeLoop(s.wsCfg)
	go sess.readLoop(s.wsCfg)
}

// liveness returns how often to ping and how long a read may stay idle.
func liveness(cfg config.WebSocketConfig) (ping, idle time.Duration) {
	ping = time.Duration(cfg.PingInterval) * time.Second
	if ping <= 0 {
		ping = 30 * time.Second
	}
	wait := time.Duration(cfg.PongTimeout) * time.Second
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return ping, ping + wait
}

func (s *session) readLoop(cfg config.WebSocketConfig) {
	defer func() {
		s.hub.leave(s)
		s.conn.Close()
	}()

	if cfg.MaxMessageSize > 0 {
		s.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	}
	_, idle := liveness(cfg)
	extend := func() error { return s.conn.SetReadDeadline(time.Now().Add(idle)) }
	extend() //nolint:errcheck // a failed deadline surfaces on the next read
	s.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.hub.logger.Warn("live session read failed", "error", err)
			}
			return
		}
		// Browsers may ignore protocol pings; any frame counts as alive.
		extend() //nolint:errcheck // see above
		s.dispatch(data)
	}
}

func (s *session) writeLoop(cfg config.WebSocketConfig) {
	every, idle := liveness(cfg)
	ticker := time.NewTicker(every)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	send := func(kind int, data []byte) error {
		s.conn.SetWriteDeadline(time.Now().Add(idle - every)) //nolint:errcheck // write reports it
		return s.conn.WriteMessage(kind, data)
	}

	for {
		select {
		case data, ok := <-s.outbox:
			if !ok {
				send(websocket.CloseMessage, nil) //nolint:errcheck // closing anyway
				return
			}
			if send(websocket.TextMessage, data) != nil {
				return
			}
		case <-ticker.C:
			if send(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

// dispatch handles one inbound frame.
func (s *session) dispatch(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		s.fail("", "frame is not valid JSON")
		return
	}

	switch f.Type {
	case FramePing:
		s.reply(FramePong, f.ID, nil)
	case FrameSubscribe, FrameUnsubscribe:
		var list ChannelList
		if len(f.Payload) == 0 || json.Unmarshal(f.Payload, &list) != nil {
			s.fail(f.ID, f.Type+" needs a {\"channels\": [...]} payload")
			return
		}
		s.subMu.Lock()
		for _, ch := range list.Channels {
			if f.Type == FrameSubscribe {
				s.patterns[ch] = struct{}{}
			} else {
				delete(s.patterns, ch)
			}
		}
		s.subMu.Unlock()
		s.reply(FrameAck, f.ID, map[string]any{f.Type + "d": list.Channels})
	default:
		s.fail(f.ID, "unknown frame type "+f.Type)
	}
}
