// Package relay is the reference realtime relay. Participants of one session
// share a room; the relay announces published streams and fans out signals.
package relay

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/nbermudezs/otfcs/internal/realtime"
	"github.com/rs/zerolog"
)

const (
	writeTimeout = 10 * time.Second
	sendBuffer   = 64
)

// Authorizer decides whether token admits its holder to a session.
type Authorizer interface {
	ValidToken(sessionID, token string) bool
}

type member struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	connID string
	room   string
	stream *realtime.Stream
	once   sync.Once
}

func (m *member) writePump() {
	defer m.conn.Close()
	for msg := range m.send {
		m.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := m.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			m.hub.leave(m)
			return
		}
	}
	m.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	m.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (m *member) close() {
	m.once.Do(func() { close(m.send) })
}

type room struct {
	members map[*member]bool
}

// Hub tracks rooms and their members.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	auth   Authorizer
	apiKey string
	log    zerolog.Logger
}

// NewHub creates a hub. An empty apiKey accepts any key.
func NewHub(auth Authorizer, apiKey string, logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]*room),
		auth:   auth,
		apiKey: apiKey,
		log:    logger.With().Str("component", "relay").Logger(),
	}
}

// RoomCount returns the number of sessions with at least one member.
func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// MemberCount returns the number of members in sessionID's room.
func (h *Hub) MemberCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if r, ok := h.rooms[sessionID]; ok {
		return len(r.members)
	}
	return 0
}

func (h *Hub) admit(hello realtime.Envelope) *realtime.Error {
	if hello.Type != realtime.MsgConnect {
		return realtime.Errorf(realtime.CodeConnectFailed, "expected connect, got %q", hello.Type)
	}
	if h.apiKey != "" && hello.APIKey != h.apiKey {
		return realtime.Errorf(realtime.CodeInvalidToken, "unknown api key")
	}
	if hello.SessionID == "" || !h.auth.ValidToken(hello.SessionID, hello.Token) {
		return realtime.Errorf(realtime.CodeInvalidToken, "invalid token for session")
	}
	return nil
}

// join adds conn to the room and replies to the handshake. Streams already
// published in the room are announced to the newcomer right after.
func (h *Hub) join(conn *websocket.Conn, hello realtime.Envelope) *member {
	m := &member{
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		connID: uuid.NewString(),
		room:   hello.SessionID,
	}

	h.mu.Lock()
	r, ok := h.rooms[m.room]
	if !ok {
		r = &room{members: make(map[*member]bool)}
		h.rooms[m.room] = r
	}
	var existing []realtime.Stream
	for other := range r.members {
		if other.stream != nil {
			existing = append(existing, *other.stream)
		}
	}
	r.members[m] = true
	count := len(r.members)
	h.mu.Unlock()
	recordMembers(h)

	go m.writePump()
	h.deliver(m, realtime.Envelope{Type: realtime.MsgConnected, Re: hello.ID, ConnectionID: m.connID})
	for i := range existing {
		h.deliver(m, realtime.Envelope{Type: realtime.MsgStreamCreated, Stream: &existing[i]})
	}

	h.log.Info().Str("session", m.room).Str("connection", m.connID).Int("members", count).Msg("member joined")
	return m
}

// leave removes m and withdraws its stream. It is safe to call more than once.
func (h *Hub) leave(m *member) {
	h.mu.Lock()
	r, ok := h.rooms[m.room]
	if !ok || !r.members[m] {
		h.mu.Unlock()
		return
	}
	delete(r.members, m)
	if len(r.members) == 0 {
		delete(h.rooms, m.room)
	}
	stream := m.stream
	m.stream = nil
	m.close()
	h.mu.Unlock()

	recordMembers(h)
	if stream != nil {
		h.broadcast(m.room, m, realtime.Envelope{Type: realtime.MsgStreamDestroyed, Stream: stream})
	}
	h.log.Info().Str("session", m.room).Str("connection", m.connID).Msg("member left")
}

// handle processes one request from m and acknowledges it.
func (h *Hub) handle(m *member, env realtime.Envelope) {
	ack := realtime.Envelope{Type: realtime.MsgAck, Re: env.ID}

	switch env.Type {
	case realtime.MsgPublish:
		name := ""
		if env.Stream != nil {
			name = env.Stream.Name
		}
		h.mu.Lock()
		if m.stream == nil {
			m.stream = &realtime.Stream{ID: uuid.NewString(), ConnectionID: m.connID, Name: name}
		}
		stream := *m.stream
		h.mu.Unlock()
		ack.Stream = &stream
		h.deliver(m, ack)
		h.broadcast(m.room, m, realtime.Envelope{Type: realtime.MsgStreamCreated, Stream: &stream})
		h.log.Debug().Str("session", m.room).Str("stream", stream.ID).Msg("stream published")
		return

	case realtime.MsgUnpublish:
		h.mu.Lock()
		stream := m.stream
		m.stream = nil
		h.mu.Unlock()
		if stream == nil {
			ack.Error = realtime.Errorf(realtime.CodeStreamNotFound, "nothing published")
			h.deliver(m, ack)
			return
		}
		h.deliver(m, ack)
		h.broadcast(m.room, m, realtime.Envelope{Type: realtime.MsgStreamDestroyed, Stream: stream})
		return

	case realtime.MsgSubscribe:
		if env.Stream == nil || !h.hasStream(m.room, env.Stream.ID) {
			ack.Error = realtime.Errorf(realtime.CodeSubscribeFailed, "stream not found")
		} else {
			ack.Stream = env.Stream
		}
		h.deliver(m, ack)
		return

	case realtime.MsgSignal:
		if env.Signal == nil || env.Signal.Type == "" {
			ack.Error = realtime.Errorf(realtime.CodeSignalFailed, "signal needs a type")
			h.deliver(m, ack)
			return
		}
		sig := *env.Signal
		sig.From = m.connID
		h.deliver(m, ack)
		h.broadcast(m.room, nil, realtime.Envelope{Type: realtime.MsgSignal, Signal: &sig})
		return
	}

	ack.Error = realtime.Errorf(realtime.CodeSignalFailed, "unsupported message %q", env.Type)
	h.deliver(m, ack)
}

func (h *Hub) hasStream(roomID, streamID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	for m := range r.members {
		if m.stream != nil && m.stream.ID == streamID {
			return true
		}
	}
	return false
}

// broadcast sends env to every member of roomID except skip.
func (h *Hub) broadcast(roomID string, skip *member, env realtime.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Error().Err(err).Msg("broadcast marshal error")
		return
	}

	h.mu.RLock()
	var targets []*member
	if r, ok := h.rooms[roomID]; ok {
		for m := range r.members {
			if m != skip {
				targets = append(targets, m)
			}
		}
	}
	h.mu.RUnlock()

	for _, m := range targets {
		h.enqueue(m, data)
	}
}

func (h *Hub) deliver(m *member, env realtime.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		h.log.Error().Err(err).Msg("marshal error")
		return
	}
	h.enqueue(m, data)
}

func (h *Hub) enqueue(m *member, data []byte) {
	// Sends happen under the read lock so leave cannot close m.send
	// underneath them.
	h.mu.RLock()
	r, ok := h.rooms[m.room]
	if !ok || !r.members[m] {
		h.mu.RUnlock()
		return
	}
	select {
	case m.send <- data:
		h.mu.RUnlock()
		return
	default:
	}
	h.mu.RUnlock()

	// Member can't keep up, disconnect it
	h.log.Warn().Str("connection", m.connID).Msg("relay member too slow, disconnecting")
	h.leave(m)
}
