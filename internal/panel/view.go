package panel

// AlertLevel is the severity of a user-facing alert.
type AlertLevel string

const (
	AlertDanger  AlertLevel = "danger"
	AlertWarning AlertLevel = "warning"
)

// Alert is a message surfaced to the user.
type Alert struct {
	Level AlertLevel
	Text  string
}

// Message is one rendered chat entry.
type Message struct {
	From string
	Text string
	Mine bool
}

// Close affordance labels.
const (
	LabelCancel = "Cancel call"
	LabelEnd    = "End call"
)

// View is the presentation surface of the service panel. Implementations
// only render; they never call back into the controller.
type View interface {
	ShowPanel()
	HidePanel()
	// SetQueued toggles the "on queue" presentation of the panel.
	SetQueued(on bool)
	ShowHardwareWait()
	HideHardwareWait()
	ShowRepresentativeWait()
	HideRepresentativeWait()
	// ShowConversation reveals the video tiles and text chat.
	ShowConversation()
	HideConversation()
	SetCloseLabel(label string)
	ClearLog()
	AppendMessage(m Message)
	ScrollLogToBottom()
	InputText() string
	ClearInput()
	Alert(a Alert)
}
