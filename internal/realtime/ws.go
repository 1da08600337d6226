package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeTimeout   = 10 * time.Second
	requestTimeout = 15 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	eventBuffer    = 64
)

// WSTransport talks to the relay over a WebSocket per session.
type WSTransport struct {
	url    string
	perm   *Permission
	dialer *websocket.Dialer
	log    zerolog.Logger
}

// NewWSTransport creates a transport for the relay at url (e.g.
// "ws://127.0.0.1:8080/rt"). perm gates every publisher it creates.
func NewWSTransport(url string, perm *Permission, logger zerolog.Logger) *WSTransport {
	return &WSTransport{
		url:    url,
		perm:   perm,
		dialer: websocket.DefaultDialer,
		log:    logger.With().Str("component", "realtime").Logger(),
	}
}

func (t *WSTransport) InitSession(apiKey, sessionID string) Session {
	return &wsSession{
		handle:    uuid.NewString(),
		url:       t.url,
		apiKey:    apiKey,
		sessionID: sessionID,
		dialer:    t.dialer,
		log:       t.log.With().Str("session", sessionID).Logger(),
		events:    make(chan tea.Msg, eventBuffer),
		done:      make(chan struct{}),
		pending:   make(map[uint64]chan Envelope),
	}
}

func (t *WSTransport) InitPublisher(props Properties) Publisher {
	return NewPublisher(props, t.perm)
}

type wsSession struct {
	handle    string
	url       string
	apiKey    string
	sessionID string
	dialer    *websocket.Dialer
	log       zerolog.Logger

	events  chan tea.Msg
	done    chan struct{}
	offOnce sync.Once

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes
	conn    *websocket.Conn
	local   Connection
	nextID  uint64
	pending map[uint64]chan Envelope
}

type wsSubscriber struct{ stream Stream }

func (s wsSubscriber) Stream() Stream { return s.stream }

func (s *wsSession) Handle() string { return s.handle }

func (s *wsSession) Connection() Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.local
}

func (s *wsSession) Connect(token string) tea.Cmd {
	return func() tea.Msg {
		result := Result{Session: s.handle, Op: OpConnect}
		select {
		case <-s.done:
			result.Err = Errorf(CodeNotConnected, "session turned off")
			return result
		default:
		}

		conn, _, err := s.dialer.Dial(s.url, nil)
		if err != nil {
			result.Err = Errorf(CodeConnectFailed, "dial %s: %v", s.url, err)
			return result
		}

		// The connection isn't shared yet, so no write mutex is needed.
		hello := Envelope{Type: MsgConnect, ID: 1, APIKey: s.apiKey, SessionID: s.sessionID, Token: token}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(hello); err != nil {
			conn.Close()
			result.Err = Errorf(CodeConnectFailed, "handshake: %v", err)
			return result
		}

		var reply Envelope
		conn.SetReadDeadline(time.Now().Add(requestTimeout))
		if err := conn.ReadJSON(&reply); err != nil {
			conn.Close()
			result.Err = Errorf(CodeConnectFailed, "handshake: %v", err)
			return result
		}
		if reply.Error != nil {
			conn.Close()
			result.Err = reply.Error
			return result
		}
		if reply.Type != MsgConnected || reply.ConnectionID == "" {
			conn.Close()
			result.Err = Errorf(CodeConnectFailed, "unexpected handshake reply %q", reply.Type)
			return result
		}

		s.mu.Lock()
		select {
		case <-s.done:
			// Off ran during the handshake; nobody is left to own the link.
			s.mu.Unlock()
			conn.Close()
			result.Err = Errorf(CodeNotConnected, "session turned off while connecting")
			return result
		default:
		}
		s.conn = conn
		s.local = Connection{ID: reply.ConnectionID}
		s.nextID = 1
		s.mu.Unlock()

		// Queued ahead of anything the read pump delivers.
		s.emit(SessionConnected{Session: s.handle, Connection: Connection{ID: reply.ConnectionID}})

		go s.readPump(conn)
		go s.pingLoop(conn)
		return result
	}
}

func (s *wsSession) Disconnect() tea.Cmd {
	return func() tea.Msg {
		result := Result{Session: s.handle, Op: OpDisconnect}
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			result.Err = Errorf(CodeNotConnected, "not connected")
			return result
		}
		s.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "disconnect"))
		s.writeMu.Unlock()
		// Closing makes the read pump exit, which emits SessionDisconnected.
		conn.Close()
		return result
	}
}

func (s *wsSession) Publish(p Publisher) tea.Cmd {
	name := p.Name()
	return func() tea.Msg {
		_, err := s.request(Envelope{Type: MsgPublish, Stream: &Stream{Name: name}}, CodePublisherFailed)
		return Result{Session: s.handle, Op: OpPublish, Err: err}
	}
}

func (s *wsSession) Subscribe(stream Stream, props Properties) (Subscriber, tea.Cmd) {
	st := stream
	return wsSubscriber{stream: stream}, func() tea.Msg {
		_, err := s.request(Envelope{Type: MsgSubscribe, Stream: &st}, CodeSubscribeFailed)
		return Result{Session: s.handle, Op: OpSubscribe, Err: err}
	}
}

func (s *wsSession) Signal(signalType string, data any) tea.Cmd {
	return func() tea.Msg {
		raw, err := json.Marshal(data)
		if err != nil {
			return Result{Session: s.handle, Op: OpSignal, Err: Errorf(CodeSignalFailed, "encode: %v", err)}
		}
		_, rerr := s.request(Envelope{Type: MsgSignal, Signal: &WireSignal{Type: signalType, Data: raw}}, CodeSignalFailed)
		return Result{Session: s.handle, Op: OpSignal, Err: rerr}
	}
}

func (s *wsSession) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-s.events:
			return msg
		case <-s.done:
			return nil
		}
	}
}

func (s *wsSession) Off() {
	s.offOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		conn := s.conn
		s.conn = nil
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
	})
}

func (s *wsSession) emit(msg tea.Msg) {
	select {
	case s.events <- msg:
	case <-s.done:
	}
}

// request sends env and waits for the matching ack. Failures are tagged with
// code unless the relay supplied its own.
func (s *wsSession) request(env Envelope, code int) (Envelope, *Error) {
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return Envelope{}, Errorf(CodeNotConnected, "not connected")
	}
	s.nextID++
	id := s.nextID
	ch := make(chan Envelope, 1)
	s.pending[id] = ch
	s.mu.Unlock()

	env.ID = id
	s.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := conn.WriteJSON(env)
	s.writeMu.Unlock()
	if err != nil {
		s.forget(id)
		return Envelope{}, Errorf(code, "%s: %v", env.Type, err)
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()
	select {
	case reply := <-ch:
		if reply.Error != nil {
			return reply, reply.Error
		}
		return reply, nil
	case <-timer.C:
		s.forget(id)
		return Envelope{}, Errorf(code, "%s: timed out", env.Type)
	}
}

func (s *wsSession) forget(id uint64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

func (s *wsSession) readPump(conn *websocket.Conn) {
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	conn.SetReadDeadline(time.Now().Add(pongTimeout))

	reason := "disconnected"
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) || closeErr.Code != websocket.CloseNormalClosure {
				reason = err.Error()
			}
			break
		}
		s.dispatch(env)
	}

	s.mu.Lock()
	if s.conn == conn {
		s.conn = nil
	}
	pending := s.pending
	s.pending = make(map[uint64]chan Envelope)
	s.mu.Unlock()
	conn.Close()

	for _, ch := range pending {
		ch <- Envelope{Type: MsgAck, Error: Errorf(CodeNotConnected, "connection closed")}
	}
	s.log.Debug().Str("reason", reason).Msg("session link closed")
	s.emit(SessionDisconnected{Session: s.handle, Reason: reason})
}

func (s *wsSession) dispatch(env Envelope) {
	switch env.Type {
	case MsgAck, MsgConnected:
		s.mu.Lock()
		ch, ok := s.pending[env.Re]
		delete(s.pending, env.Re)
		s.mu.Unlock()
		if ok {
			ch <- env
		}
	case MsgStreamCreated:
		if env.Stream != nil {
			s.emit(StreamCreated{Session: s.handle, Stream: *env.Stream})
		}
	case MsgStreamDestroyed:
		if env.Stream != nil {
			s.emit(StreamDestroyed{Session: s.handle, Stream: *env.Stream})
		}
	case MsgSignal:
		if env.Signal != nil {
			s.emit(SignalReceived{Session: s.handle, Signal: Signal{
				Type: env.Signal.Type,
				Data: env.Signal.Data,
				From: Connection{ID: env.Signal.From},
			}})
		}
	default:
		s.log.Debug().Str("type", string(env.Type)).Msg("ignoring relay message")
	}
}

// pingLoop sends periodic pings on conn until it is replaced or closed.
func (s *wsSession) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			cc := s.conn
			s.mu.Unlock()
			if cc != conn {
				return
			}
			s.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
