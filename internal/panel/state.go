package panel

// State is the lifecycle position of a Controller.
type State int

const (
	Initializing State = iota
	HardwareWait
	Queued
	RepresentativeConnecting
	InSession
	Closed
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case HardwareWait:
		return "hardware_wait"
	case Queued:
		return "queued"
	case RepresentativeConnecting:
		return "representative_connecting"
	case InSession:
		return "in_session"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event names a lifecycle notification.
type Event string

const (
	EventOpened Event = "opened"
	EventClosed Event = "closed"
)
