package panel

import (
	"context"
	"encoding/json"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nbermudezs/otfcs/internal/client"
	"github.com/nbermudezs/otfcs/internal/realtime"
	"github.com/nbermudezs/otfcs/internal/request"
	"github.com/rs/zerolog"
)

const (
	testSession   = "fake-session"
	testPublisher = "fake-publisher"
	localConn     = "conn-local"
	remoteConn    = "conn-remote"
)

type fakeSession struct {
	connects    []string
	disconnects int
	publishes   int
	subscribes  []realtime.Stream
	signals     []ChatData
	off         bool

	connectErr   *realtime.Error
	publishErr   *realtime.Error
	subscribeErr *realtime.Error
	signalErr    *realtime.Error
}

func (s *fakeSession) Handle() string { return testSession }

func (s *fakeSession) result(op realtime.Op, err *realtime.Error) tea.Cmd {
	return func() tea.Msg { return realtime.Result{Session: testSession, Op: op, Err: err} }
}

func (s *fakeSession) Connect(token string) tea.Cmd {
	s.connects = append(s.connects, token)
	return s.result(realtime.OpConnect, s.connectErr)
}

func (s *fakeSession) Disconnect() tea.Cmd {
	s.disconnects++
	return s.result(realtime.OpDisconnect, nil)
}

func (s *fakeSession) Publish(realtime.Publisher) tea.Cmd {
	s.publishes++
	return s.result(realtime.OpPublish, s.publishErr)
}

func (s *fakeSession) Subscribe(stream realtime.Stream, _ realtime.Properties) (realtime.Subscriber, tea.Cmd) {
	s.subscribes = append(s.subscribes, stream)
	return fakeSubscriber{stream}, s.result(realtime.OpSubscribe, s.subscribeErr)
}

func (s *fakeSession) Signal(signalType string, data any) tea.Cmd {
	if signalType == SignalChat {
		s.signals = append(s.signals, data.(ChatData))
	}
	return s.result(realtime.OpSignal, s.signalErr)
}

func (s *fakeSession) Connection() realtime.Connection { return realtime.Connection{ID: localConn} }

// Listen returns nil: tests deliver session events directly.
func (s *fakeSession) Listen() tea.Cmd { return nil }
func (s *fakeSession) Off()            { s.off = true }

type fakeSubscriber struct{ stream realtime.Stream }

func (f fakeSubscriber) Stream() realtime.Stream { return f.stream }

type fakePublisher struct{ off bool }

func (p *fakePublisher) Handle() string         { return testPublisher }
func (p *fakePublisher) Name() string           { return "Ian" }
func (p *fakePublisher) RequestAccess() tea.Cmd { return nil }
func (p *fakePublisher) Off()                   { p.off = true }

type fakeTransport struct {
	session   *fakeSession
	publisher *fakePublisher
	inits     int
}

func (t *fakeTransport) InitSession(apiKey, sessionID string) realtime.Session {
	t.inits++
	return t.session
}

func (t *fakeTransport) InitPublisher(realtime.Properties) realtime.Publisher { return t.publisher }

type fakeQueue struct {
	joins    []string
	dequeues []string
	pings    []string
	queueID  string
	joinErr  error
}

func (q *fakeQueue) JoinQueue(_ context.Context, sessionID string) (*client.QueueResponse, error) {
	q.joins = append(q.joins, sessionID)
	if q.joinErr != nil {
		return nil, q.joinErr
	}
	return &client.QueueResponse{QueueID: q.queueID}, nil
}

func (q *fakeQueue) Dequeue(_ context.Context, queueID string) error {
	q.dequeues = append(q.dequeues, queueID)
	return nil
}

func (q *fakeQueue) Ping(_ context.Context, apiKey string) error {
	q.pings = append(q.pings, apiKey)
	return nil
}

type recordingView struct {
	visible          bool
	queued           bool
	hardwareWait     bool
	representative   bool
	conversation     bool
	closeLabel       string
	messages         []Message
	alerts           []Alert
	input            string
	scrolledToBottom bool
	hidePanelCalls   int
	clearLogCalls    int
}

func (v *recordingView) ShowPanel()              { v.visible = true }
func (v *recordingView) SetQueued(on bool)       { v.queued = on }
func (v *recordingView) ShowHardwareWait()       { v.hardwareWait = true }
func (v *recordingView) HideHardwareWait()       { v.hardwareWait = false }
func (v *recordingView) ShowRepresentativeWait() { v.representative = true }
func (v *recordingView) HideRepresentativeWait() { v.representative = false }
func (v *recordingView) ShowConversation()       { v.conversation = true }
func (v *recordingView) HideConversation()       { v.conversation = false }
func (v *recordingView) SetCloseLabel(l string)  { v.closeLabel = l }
func (v *recordingView) InputText() string       { return v.input }
func (v *recordingView) ClearInput()             { v.input = "" }
func (v *recordingView) Alert(a Alert)           { v.alerts = append(v.alerts, a) }

func (v *recordingView) HidePanel() {
	v.visible = false
	v.hidePanelCalls++
}

func (v *recordingView) ClearLog() {
	v.messages = nil
	v.clearLogCalls++
}

func (v *recordingView) AppendMessage(m Message) {
	v.messages = append(v.messages, m)
	v.scrolledToBottom = false
}

func (v *recordingView) ScrollLogToBottom() { v.scrolledToBottom = true }

type harness struct {
	t         *testing.T
	c         *Controller
	session   *fakeSession
	publisher *fakePublisher
	transport *fakeTransport
	queue     *fakeQueue
	view      *recordingView
	opened    int
	closed    int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		t:         t,
		session:   &fakeSession{},
		publisher: &fakePublisher{},
		queue:     &fakeQueue{queueID: "q1"},
		view:      &recordingView{},
	}
	h.transport = &fakeTransport{session: h.session, publisher: h.publisher}
	h.c = New(request.Credentials{APIKey: "k1", SessionID: "s1", Token: "t1"}, Options{
		CustomerName: "Ian",
		Transport:    h.transport,
		Queue:        h.queue,
		View:         h.view,
		Logger:       zerolog.Nop(),
	})
	h.c.On(EventOpened, func() { h.opened++ })
	h.c.On(EventClosed, func() { h.closed++ })
	return h
}

// run executes cmd and feeds every resulting message back into the
// controller until the chain settles.
func (h *harness) run(cmd tea.Cmd) {
	h.t.Helper()
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil:
	case tea.BatchMsg:
		for _, sub := range msg {
			h.run(sub)
		}
	default:
		h.run(h.c.Update(msg))
	}
}

func (h *harness) deliver(msg tea.Msg) {
	h.t.Helper()
	h.run(h.c.Update(msg))
}

func (h *harness) start() {
	h.t.Helper()
	h.run(h.c.Start())
}

func (h *harness) allow() {
	h.t.Helper()
	h.deliver(realtime.AccessAllowed{Publisher: testPublisher})
}

func (h *harness) deny() {
	h.t.Helper()
	h.deliver(realtime.AccessDenied{Publisher: testPublisher})
}

func (h *harness) connect() {
	h.t.Helper()
	h.deliver(realtime.SessionConnected{Session: testSession})
}

func (h *harness) hangup() {
	h.t.Helper()
	h.deliver(realtime.SessionDisconnected{Session: testSession})
}

func (h *harness) closeNow() {
	h.t.Helper()
	h.run(h.c.Close())
}

func (h *harness) streamCreated(id string) {
	h.t.Helper()
	h.deliver(realtime.StreamCreated{Session: testSession, Stream: realtime.Stream{ID: id, ConnectionID: remoteConn}})
}

func (h *harness) streamDestroyed(id string) {
	h.t.Helper()
	h.deliver(realtime.StreamDestroyed{Session: testSession, Stream: realtime.Stream{ID: id, ConnectionID: remoteConn}})
}

func (h *harness) chat(from, text, connection string) {
	h.t.Helper()
	data, _ := json.Marshal(ChatData{From: from, Text: text})
	h.deliver(realtime.SignalReceived{Session: testSession, Signal: realtime.Signal{
		Type: SignalChat,
		Data: data,
		From: realtime.Connection{ID: connection},
	}})
}

// queued drives the controller to a held queue position.
func (h *harness) queued() {
	h.t.Helper()
	h.start()
	h.allow()
	h.connect()
	if h.c.QueueID() != "q1" {
		h.t.Fatalf("setup: QueueID = %q, want q1", h.c.QueueID())
	}
}

// inSession drives the controller into a call with a representative.
func (h *harness) inSession() {
	h.t.Helper()
	h.queued()
	h.streamCreated("rep-stream")
	if h.c.State() != InSession {
		h.t.Fatalf("setup: state = %s, want in_session", h.c.State())
	}
}
