package panel

// SignalChat is the signal type used for text chat.
const SignalChat = "chat"

// ChatData is the payload of a chat signal.
type ChatData struct {
	From string `json:"from"`
	Text string `json:"text"`
}
