package realtime

import "encoding/json"

// MessageType identifies the kind of relay envelope.
type MessageType string

const (
	MsgConnect         MessageType = "connect"
	MsgConnected       MessageType = "connected"
	MsgPublish         MessageType = "publish"
	MsgUnpublish       MessageType = "unpublish"
	MsgSubscribe       MessageType = "subscribe"
	MsgSignal          MessageType = "signal"
	MsgAck             MessageType = "ack"
	MsgStreamCreated   MessageType = "streamCreated"
	MsgStreamDestroyed MessageType = "streamDestroyed"
)

// Envelope is the single frame shape exchanged with the relay. Requests carry
// an ID; the relay answers with an ack (or connected) whose Re echoes it.
type Envelope struct {
	Type         MessageType `json:"type"`
	ID           uint64      `json:"id,omitempty"`
	Re           uint64      `json:"re,omitempty"`
	APIKey       string      `json:"apiKey,omitempty"`
	SessionID    string      `json:"sessionId,omitempty"`
	Token        string      `json:"token,omitempty"`
	ConnectionID string      `json:"connectionId,omitempty"`
	Stream       *Stream     `json:"stream,omitempty"`
	Signal       *WireSignal `json:"signal,omitempty"`
	Error        *Error      `json:"error,omitempty"`
}

// WireSignal is a signal as it travels through the relay.
type WireSignal struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	From string          `json:"from,omitempty"`
}

// Stream describes a published media stream.
type Stream struct {
	ID           string `json:"id"`
	ConnectionID string `json:"connectionId"`
	Name         string `json:"name,omitempty"`
}

// Connection identifies one participant's link to a session.
type Connection struct {
	ID string `json:"connectionId"`
}
