package relay

import (
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nbermudezs/otfcs/internal/realtime"
)

const (
	handshakeTimeout = 10 * time.Second
	pongTimeout      = 60 * time.Second
	pingInterval     = 30 * time.Second
	maxFrameSize     = 1 << 16
)

func (h *Hub) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/rt", h.handleRT)
}

func (h *Hub) handleRT(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade error")
		return
	}
	conn.SetReadLimit(maxFrameSize)

	var hello realtime.Envelope
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	if err := conn.ReadJSON(&hello); err != nil {
		h.log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("handshake read failed")
		conn.Close()
		return
	}
	if rerr := h.admit(hello); rerr != nil {
		h.log.Info().Str("session", hello.SessionID).Str("reason", rerr.Message).Msg("connect refused")
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		conn.WriteJSON(realtime.Envelope{Type: realtime.MsgConnected, Re: hello.ID, Error: rerr})
		conn.Close()
		return
	}

	m := h.join(conn, hello)
	done := make(chan struct{})
	go h.keepAlive(m, done)
	defer func() {
		close(done)
		h.leave(m)
	}()

	conn.SetReadDeadline(time.Now().Add(pongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		return nil
	})
	for {
		var env realtime.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		// Any traffic proves the peer is alive.
		conn.SetReadDeadline(time.Now().Add(pongTimeout))
		recordFrame(string(env.Type))
		h.handle(m, env)
	}
}

// keepAlive pings m until done is closed. WriteControl may run alongside
// the write pump.
func (h *Hub) keepAlive(m *member, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := m.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}

// checkOrigin admits clients without an Origin header (terminal clients)
// and browsers on the same host or loopback.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return false
	}
	if u.Host == r.Host {
		return true
	}
	name := u.Hostname()
	if name == "localhost" {
		return true
	}
	ip := net.ParseIP(name)
	return ip != nil && ip.IsLoopback()
}
