// Package panel implements the service panel lifecycle: device permission,
// wait queue membership, the call with a representative and its teardown.
//
// A Controller is driven entirely from Bubble Tea's Update loop. Every
// network or transport operation runs as a tea.Cmd and reports back as a
// message, so all state below is touched from a single goroutine.
package panel

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nbermudezs/otfcs/internal/client"
	"github.com/nbermudezs/otfcs/internal/realtime"
	"github.com/nbermudezs/otfcs/internal/request"
	"github.com/rs/zerolog"
)

const (
	alertAccessDenied = "Camera access denied. Please reset the device permission and try again."
	alertQueueFailed  = "Could not join the queue at this time. Try again later."
)

// QueueAPI is the slice of the backend the controller talks to.
type QueueAPI interface {
	JoinQueue(ctx context.Context, sessionID string) (*client.QueueResponse, error)
	Dequeue(ctx context.Context, queueID string) error
	Ping(ctx context.Context, apiKey string) error
}

// Options wires a Controller to its collaborators.
type Options struct {
	CustomerName  string
	Transport     realtime.Transport
	Queue         QueueAPI
	View          View
	Logger        zerolog.Logger
	Timeout       time.Duration // backend calls
	UnloadTimeout time.Duration // the dequeue fired by Unload

	// OnTransition, if set, observes every state change.
	OnTransition func(from, to State)
}

// Controller owns one service request from device permission to teardown.
type Controller struct {
	creds request.Credentials
	opts  Options
	log   zerolog.Logger

	session    realtime.Session
	publisher  realtime.Publisher
	subscriber realtime.Subscriber

	state        State
	connected    bool
	closing      bool
	cleaned      bool
	queueID      string
	queueCleared bool // a representative arrived; queueID is never set again
	joinPending  bool
	dequeued     bool
	unloadArmed  bool

	handlers map[Event][]func()
}

// New creates a controller for creds. Nothing happens until the command
// returned by Start runs, so handlers registered with On before then are
// guaranteed to observe EventOpened.
func New(creds request.Credentials, opts Options) *Controller {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UnloadTimeout <= 0 {
		opts.UnloadTimeout = 2 * time.Second
	}
	return &Controller{
		creds:    creds,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "panel").Str("session", creds.SessionID).Logger(),
		handlers: make(map[Event][]func()),
	}
}

type startMsg struct{ owner *Controller }

type queueJoinedMsg struct {
	owner   *Controller
	queueID string
	err     error
}

// On registers fn for a lifecycle event.
func (c *Controller) On(e Event, fn func()) {
	if c.handlers == nil {
		return
	}
	c.handlers[e] = append(c.handlers[e], fn)
}

// Start schedules initialization on a later turn of the event loop and
// pings the backend with the API key.
func (c *Controller) Start() tea.Cmd {
	start := func() tea.Msg { return startMsg{owner: c} }
	return tea.Batch(start, c.ping())
}

func (c *Controller) State() State        { return c.state }
func (c *Controller) Connected() bool     { return c.connected }
func (c *Controller) QueueID() string     { return c.queueID }
func (c *Controller) Closed() bool        { return c.cleaned }
func (c *Controller) HasSubscriber() bool { return c.subscriber != nil }

// Pending reports whether a queue join is still in flight. A closed
// controller with a pending join must keep receiving messages so the late
// queue entry can be removed.
func (c *Controller) Pending() bool { return c.joinPending }

// Update reacts to one message. Messages that belong to other controllers
// or to a detached session are ignored.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case startMsg:
		if msg.owner != c || c.cleaned || c.state != Initializing {
			return nil
		}
		return c.initialize()

	case queueJoinedMsg:
		if msg.owner != c {
			return nil
		}
		return c.queueJoined(msg)

	case realtime.AccessAllowed:
		if !c.ownsPublisher(msg.Publisher) {
			return nil
		}
		return c.publisherAllowed()

	case realtime.AccessDenied:
		if !c.ownsPublisher(msg.Publisher) {
			return nil
		}
		return c.publisherDenied()

	case realtime.SessionConnected:
		if !c.ownsSession(msg.Session) {
			return nil
		}
		return tea.Batch(c.sessionConnected(), c.listen())

	case realtime.SessionDisconnected:
		if !c.ownsSession(msg.Session) {
			return nil
		}
		return c.sessionDisconnected(msg.Reason)

	case realtime.StreamCreated:
		if !c.ownsSession(msg.Session) {
			return nil
		}
		return tea.Batch(c.streamCreated(msg.Stream), c.listen())

	case realtime.StreamDestroyed:
		if !c.ownsSession(msg.Session) {
			return nil
		}
		return tea.Batch(c.streamDestroyed(msg.Stream), c.listen())

	case realtime.SignalReceived:
		if !c.ownsSession(msg.Session) {
			return nil
		}
		c.messageReceived(msg.Signal)
		return c.listen()

	case realtime.Result:
		if !c.ownsSession(msg.Session) {
			return nil
		}
		return c.result(msg)
	}
	return nil
}

// Close ends the request. A connected session is disconnected and cleanup
// waits for the disconnect to be confirmed; otherwise cleanup runs now.
func (c *Controller) Close() tea.Cmd {
	if c.cleaned || c.closing {
		return nil
	}
	if c.connected {
		c.closing = true
		c.log.Debug().Msg("disconnecting")
		return c.session.Disconnect()
	}
	return c.cleanup()
}

// Send signals the current input as a chat message.
func (c *Controller) Send() tea.Cmd {
	if !c.chatting() {
		return nil
	}
	text := c.opts.View.InputText()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.session.Signal(SignalChat, ChatData{From: c.opts.CustomerName, Text: text})
}

// Unload removes the caller from the wait queue before the page goes away.
// It blocks for at most the unload timeout and is a no-op unless a queue
// entry is held.
func (c *Controller) Unload() {
	if !c.unloadArmed {
		return
	}
	if cmd := c.dequeue(c.opts.UnloadTimeout); cmd != nil {
		cmd()
	}
}

func (c *Controller) initialize() tea.Cmd {
	c.session = c.opts.Transport.InitSession(c.creds.APIKey, c.creds.SessionID)
	c.publisher = c.opts.Transport.InitPublisher(realtime.DefaultProperties(c.opts.CustomerName))

	v := c.opts.View
	v.SetCloseLabel(LabelCancel)
	v.ShowPanel()
	v.ShowHardwareWait()
	v.SetQueued(true)

	c.setState(HardwareWait)
	c.emit(EventOpened)
	return tea.Batch(c.publisher.RequestAccess(), c.session.Listen())
}

// publisherAllowed connects only once the user has approved device access.
func (c *Controller) publisherAllowed() tea.Cmd {
	if c.state != HardwareWait {
		return nil
	}
	c.opts.View.HideHardwareWait()
	c.opts.View.ShowRepresentativeWait()
	c.setState(Queued)
	return c.session.Connect(c.creds.Token)
}

func (c *Controller) publisherDenied() tea.Cmd {
	if c.state != HardwareWait {
		return nil
	}
	c.log.Info().Msg("device access denied")
	c.opts.View.Alert(Alert{Level: AlertDanger, Text: alertAccessDenied})
	return c.Close()
}

func (c *Controller) sessionConnected() tea.Cmd {
	if c.connected {
		return nil
	}
	c.connected = true
	c.log.Info().Str("connection", c.session.Connection().ID).Msg("session connected")
	return tea.Batch(c.session.Publish(c.publisher), c.joinQueue())
}

func (c *Controller) sessionDisconnected(reason string) tea.Cmd {
	c.log.Info().Str("reason", reason).Msg("session disconnected")
	c.connected = false
	return c.cleanup()
}

func (c *Controller) joinQueue() tea.Cmd {
	c.joinPending = true
	queue, timeout, sessionID := c.opts.Queue, c.opts.Timeout, c.creds.SessionID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := queue.JoinQueue(ctx, sessionID)
		if err != nil {
			return queueJoinedMsg{owner: c, err: err}
		}
		return queueJoinedMsg{owner: c, queueID: resp.QueueID}
	}
}

func (c *Controller) queueJoined(msg queueJoinedMsg) tea.Cmd {
	c.joinPending = false

	if msg.err != nil {
		c.log.Warn().Err(msg.err).Msg("queue join failed")
		if c.cleaned {
			return nil
		}
		c.opts.View.Alert(Alert{Level: AlertWarning, Text: alertQueueFailed})
		return c.Close()
	}

	switch {
	case c.queueCleared:
		// Checked before cleaned: a cleared id is never set again, even when
		// the call has ended since.
		c.log.Debug().Str("queue_id", msg.queueID).Msg("representative already joined, ignoring queue id")
		return nil
	case c.cleaned:
		// Closed while the join was in flight: the backend still holds the
		// entry, and nothing else will remove it.
		c.log.Info().Str("queue_id", msg.queueID).Msg("queue join completed after close")
		c.queueID = msg.queueID
		return c.dequeue(c.opts.Timeout)
	case c.queueID != "":
		return nil
	}

	c.queueID = msg.queueID
	c.unloadArmed = true
	c.log.Info().Str("queue_id", msg.queueID).Msg("joined wait queue")
	return nil
}

func (c *Controller) streamCreated(stream realtime.Stream) tea.Cmd {
	if c.closing {
		c.log.Debug().Str("stream", stream.ID).Msg("closing, ignoring stream")
		return nil
	}
	if c.subscriber != nil {
		c.log.Debug().Str("stream", stream.ID).Msg("already subscribed, ignoring stream")
		return nil
	}

	sub, cmd := c.session.Subscribe(stream, realtime.DefaultProperties(c.opts.CustomerName))
	c.subscriber = sub

	v := c.opts.View
	v.SetCloseLabel(LabelEnd)
	v.HideRepresentativeWait()
	v.SetQueued(false)
	v.ShowConversation()

	// The representative only joins after the backend has taken the caller
	// off the queue, so there is nothing left to dequeue.
	c.queueID = ""
	c.queueCleared = true
	c.unloadArmed = false

	c.log.Info().Str("stream", stream.ID).Msg("representative joined")
	c.setState(RepresentativeConnecting)
	return cmd
}

// streamDestroyed ends the call when the representative leaves.
func (c *Controller) streamDestroyed(stream realtime.Stream) tea.Cmd {
	if c.subscriber == nil || c.subscriber.Stream().ID != stream.ID {
		return nil
	}
	c.log.Info().Str("stream", stream.ID).Msg("representative left")
	return c.Close()
}

func (c *Controller) messageReceived(sig realtime.Signal) {
	if sig.Type != SignalChat {
		return
	}
	if !c.chatting() {
		c.log.Debug().Msg("chat signal outside of a call, dropping")
		return
	}
	var data ChatData
	if err := json.Unmarshal(sig.Data, &data); err != nil {
		c.log.Warn().Err(err).Msg("malformed chat signal")
		return
	}
	local := c.session.Connection().ID
	mine := local != "" && sig.From.ID == local
	c.opts.View.AppendMessage(Message{From: data.From, Text: data.Text, Mine: mine})
	c.opts.View.ScrollLogToBottom()
}

func (c *Controller) result(r realtime.Result) tea.Cmd {
	switch r.Op {
	case realtime.OpConnect:
		if r.Err == nil {
			return nil
		}
		if r.Err.Code == realtime.CodeConnectFailed {
			c.log.Error().Err(r.Err).Msg("connecting to the session failed, try connecting again")
		} else {
			c.log.Error().Err(r.Err).Msg("connect error")
		}
		return nil

	case realtime.OpPublish:
		if r.Err == nil {
			return nil
		}
		if r.Err.Code == realtime.CodePublisherFailed {
			c.log.Error().Err(r.Err).Msg("the publisher failed to connect")
			return c.Close()
		}
		c.log.Error().Err(r.Err).Msg("publish error")
		return nil

	case realtime.OpSubscribe:
		if r.Err != nil {
			if r.Err.Code == realtime.CodeSubscribeFailed {
				c.log.Error().Err(r.Err).Msg("internal error subscribing, try subscribing again")
			} else {
				c.log.Error().Err(r.Err).Msg("subscribe error")
			}
		}
		if c.state == RepresentativeConnecting {
			c.setState(InSession)
		}
		return nil

	case realtime.OpSignal:
		if r.Err != nil {
			c.log.Warn().Err(r.Err).Msg("chat message not sent")
			return nil
		}
		c.opts.View.ClearInput()
		return nil

	case realtime.OpDisconnect:
		if r.Err == nil {
			return nil
		}
		// No disconnect event will follow.
		c.log.Warn().Err(r.Err).Msg("disconnect failed")
		c.connected = false
		return c.cleanup()
	}
	return nil
}

// cleanup is the single teardown path. It runs at most once.
func (c *Controller) cleanup() tea.Cmd {
	if c.cleaned {
		return nil
	}
	c.cleaned = true

	v := c.opts.View
	v.HideHardwareWait()
	v.HideRepresentativeWait()
	v.HideConversation()
	v.ClearLog()
	v.SetCloseLabel(LabelCancel)

	if c.session != nil {
		c.session.Off()
	}
	if c.publisher != nil {
		c.publisher.Off()
	}

	var cmd tea.Cmd
	if c.queueID != "" {
		cmd = c.dequeue(c.opts.Timeout)
	}

	v.HidePanel()
	c.setState(Closed)
	c.emit(EventClosed)
	c.handlers = nil
	return cmd
}

// dequeue issues the one dequeue request this controller may make.
func (c *Controller) dequeue(timeout time.Duration) tea.Cmd {
	if c.dequeued || c.queueID == "" {
		return nil
	}
	id := c.queueID
	c.dequeued = true
	c.queueID = ""
	c.unloadArmed = false

	queue, log := c.opts.Queue, c.log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := queue.Dequeue(ctx, id); err != nil {
			log.Warn().Err(err).Str("queue_id", id).Msg("dequeue failed")
		}
		log.Info().Str("queue_id", id).Msg("dequeue request completed")
		return nil
	}
}

func (c *Controller) ping() tea.Cmd {
	queue, timeout, apiKey, log := c.opts.Queue, c.opts.Timeout, c.creds.APIKey, c.log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := queue.Ping(ctx, apiKey); err != nil {
			log.Debug().Err(err).Msg("ping failed")
		}
		return nil
	}
}

func (c *Controller) listen() tea.Cmd {
	if c.cleaned || c.session == nil {
		return nil
	}
	return c.session.Listen()
}

func (c *Controller) chatting() bool {
	return !c.cleaned && (c.state == InSession || c.state == RepresentativeConnecting)
}

func (c *Controller) ownsSession(handle string) bool {
	return !c.cleaned && c.session != nil && c.session.Handle() == handle
}

func (c *Controller) ownsPublisher(handle string) bool {
	return !c.cleaned && c.publisher != nil && c.publisher.Handle() == handle
}

func (c *Controller) setState(s State) {
	if s == c.state {
		return
	}
	from := c.state
	c.state = s
	c.log.Debug().Stringer("from", from).Stringer("to", s).Msg("state change")
	if c.opts.OnTransition != nil {
		c.opts.OnTransition(from, s)
	}
}

func (c *Controller) emit(e Event) {
	for _, fn := range c.handlers[e] {
		fn()
	}
}
