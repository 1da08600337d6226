// Package realtime is the audio/video/signaling capability the service panel
// drives. Operations return Bubble Tea commands that resolve to a Result, and
// session events arrive as messages through Listen.
package realtime

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Op names a transport operation whose outcome is reported as a Result.
type Op string

const (
	OpConnect    Op = "connect"
	OpDisconnect Op = "disconnect"
	OpPublish    Op = "publish"
	OpSubscribe  Op = "subscribe"
	OpSignal     Op = "signal"
)

// Transport creates session and publisher objects.
type Transport interface {
	InitSession(apiKey, sessionID string) Session
	InitPublisher(props Properties) Publisher
}

// Session is one participant's view of a realtime session.
type Session interface {
	// Handle is a process-local identifier used to tag messages.
	Handle() string
	Connect(token string) tea.Cmd
	Disconnect() tea.Cmd
	Publish(p Publisher) tea.Cmd
	Subscribe(stream Stream, props Properties) (Subscriber, tea.Cmd)
	Signal(signalType string, data any) tea.Cmd
	// Connection is the local connection identity; zero until connected.
	Connection() Connection
	// Listen waits for the next session event. It returns nil once Off has
	// been called.
	Listen() tea.Cmd
	// Off detaches every listener; no further events are delivered.
	Off()
}

// Publisher is the local outgoing media handle.
type Publisher interface {
	Handle() string
	Name() string
	// RequestAccess resolves to AccessAllowed or AccessDenied.
	RequestAccess() tea.Cmd
	Off()
}

// Subscriber is the handle for an incoming remote stream.
type Subscriber interface {
	Stream() Stream
}

// Properties configure how a publisher or subscriber is presented.
type Properties struct {
	Name            string
	InsertMode      string
	Width           string
	Height          string
	NameDisplayMode string
}

// DefaultProperties mirrors the panel's video layout.
func DefaultProperties(name string) Properties {
	return Properties{
		Name:            name,
		InsertMode:      "append",
		Width:           "100%",
		Height:          "100%",
		NameDisplayMode: "on",
	}
}

// --- Bubble Tea messages ---

// Result reports the outcome of an operation. Err is nil on success.
type Result struct {
	Session string
	Op      Op
	Err     *Error
}

// SessionConnected is delivered once the session link is established.
type SessionConnected struct {
	Session    string
	Connection Connection
}

// SessionDisconnected is delivered when the session link goes away.
type SessionDisconnected struct {
	Session string
	Reason  string
}

// StreamCreated is delivered when another participant publishes.
type StreamCreated struct {
	Session string
	Stream  Stream
}

// StreamDestroyed is delivered when a remote stream goes away.
type StreamDestroyed struct {
	Session string
	Stream  Stream
}

// SignalReceived carries an incoming signal, including echoes of our own.
type SignalReceived struct {
	Session string
	Signal  Signal
}

// Signal is a decoded data-channel message.
type Signal struct {
	Type string
	Data []byte
	From Connection
}

// AccessAllowed reports that the user granted camera and microphone access.
type AccessAllowed struct{ Publisher string }

// AccessDenied reports that the user refused device access.
type AccessDenied struct{ Publisher string }
