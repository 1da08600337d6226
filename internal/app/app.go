package app

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/nbermudezs/otfcs/internal/client"
	"github.com/nbermudezs/otfcs/internal/page"
	"github.com/nbermudezs/otfcs/internal/panel"
	"github.com/nbermudezs/otfcs/internal/realtime"
	"github.com/nbermudezs/otfcs/internal/request"
	"github.com/nbermudezs/otfcs/internal/theme"
	"github.com/nbermudezs/otfcs/internal/views/debug"
	"github.com/nbermudezs/otfcs/internal/views/status"
	"github.com/nbermudezs/otfcs/internal/views/waiting"
	"github.com/rs/zerolog"
)

// Backend is everything the TUI needs from the help desk service.
type Backend interface {
	RequestSession(ctx context.Context, customerName string) (*client.SessionResponse, error)
	JoinQueue(ctx context.Context, sessionID string) (*client.QueueResponse, error)
	Dequeue(ctx context.Context, queueID string) error
	Ping(ctx context.Context, apiKey string) error
}

// Options wires the root model.
type Options struct {
	CustomerName  string
	Backend       Backend
	Transport     realtime.Transport
	Permission    *realtime.Permission
	Timeout       time.Duration
	UnloadTimeout time.Duration
	Logger        zerolog.Logger
}

// Model is the root Bubble Tea model.
type Model struct {
	page  *page.Context
	perm  *realtime.Permission
	panel *PanelView
	log   zerolog.Logger

	keys   KeyMap
	width  int
	height int

	// Sub-views.
	statusBar status.Model
	events    *debug.Model
	showDebug bool
}

// New creates the root model.
func New(opts Options) Model {
	logger := opts.Logger.With().Str("component", "app").Logger()
	view := NewPanelView()
	events := debug.New()

	name := opts.CustomerName
	req := request.New(opts.Backend, func() string { return name }, opts.Timeout, opts.Logger)
	factory := func(creds request.Credentials) *panel.Controller {
		events.Addf(debug.KindHTTP, "session %s issued", creds.SessionID)
		return panel.New(creds, panel.Options{
			CustomerName:  name,
			Transport:     opts.Transport,
			Queue:         opts.Backend,
			View:          view,
			Logger:        opts.Logger,
			Timeout:       opts.Timeout,
			UnloadTimeout: opts.UnloadTimeout,
			OnTransition: func(from, to panel.State) {
				events.Addf(debug.KindState, "%s → %s", from, to)
			},
		})
	}

	return Model{
		page:      page.New(name, req, factory, opts.Logger),
		perm:      opts.Permission,
		panel:     view,
		log:       logger,
		keys:      DefaultKeyMap(),
		statusBar: status.New(name),
		events:    events,
	}
}

// Init has nothing to start; the panel opens on demand.
func (m Model) Init() tea.Cmd {
	return nil
}

// Unload removes any held queue entry. It is safe to call more than once.
func (m Model) Unload() {
	m.page.Unload()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.panel.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		var model tea.Model
		model, cmd = m.handleKey(msg)
		m = model.(Model)

	case waiting.FrameMsg:
		return m, m.panel.updateIndicators(msg)

	default:
		m.record(msg)
		cmd = m.page.Update(msg)
	}

	m.syncStatus()
	return m, tea.Batch(cmd, m.panel.tick())
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return m.quit()
	}

	if m.showDebug {
		switch {
		case key.Matches(msg, m.keys.Debug), key.Matches(msg, m.keys.Close):
			m.showDebug = false
		case key.Matches(msg, m.keys.Up):
			m.events.ScrollUp(1)
		case key.Matches(msg, m.keys.Down):
			m.events.ScrollDown(1)
		}
		return m, nil
	}

	m.panel.dismissAlert()

	if c := m.page.Active(); c != nil && c.State() == panel.HardwareWait && m.perm != nil {
		switch {
		case key.Matches(msg, m.keys.Allow):
			m.events.Add(debug.KindUser, "device access allowed")
			m.perm.Answer(true)
			return m, nil
		case key.Matches(msg, m.keys.Deny):
			m.events.Add(debug.KindUser, "device access denied")
			m.perm.Answer(false)
			return m, nil
		}
	}

	if m.panel.Chatting() {
		switch {
		case key.Matches(msg, m.keys.Send):
			return m, m.page.Send()
		case key.Matches(msg, m.keys.Close):
			m.events.Add(debug.KindUser, "end call")
			return m, m.page.Close()
		case msg.Type == tea.KeyPgUp, msg.Type == tea.KeyPgDown:
			return m, m.panel.log.Update(msg)
		}
		return m, m.panel.updateInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()

	case key.Matches(msg, m.keys.Close):
		if m.page.Active() != nil {
			m.events.Add(debug.KindUser, "cancel call")
		}
		return m, m.page.Close()

	case key.Matches(msg, m.keys.Help):
		if !m.page.TriggerEnabled() {
			return m, nil
		}
		m.events.Add(debug.KindUser, "live help requested")
		return m, m.page.RequestHelp()

	case key.Matches(msg, m.keys.Debug):
		m.showDebug = true
		return m, nil
	}

	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.log.Info().Bool("panel_open", m.page.Active() != nil).Msg("quitting")
	m.page.Unload()
	return m, tea.Quit
}

// record mirrors transport traffic into the event log.
func (m Model) record(msg tea.Msg) {
	switch msg := msg.(type) {
	case realtime.SessionConnected:
		m.events.Addf(debug.KindRT, "connected as %s", msg.Connection.ID)
	case realtime.SessionDisconnected:
		m.events.Addf(debug.KindRT, "disconnected (%s)", msg.Reason)
	case realtime.StreamCreated:
		m.events.Addf(debug.KindRT, "stream %s created by %s", msg.Stream.ID, msg.Stream.Name)
	case realtime.StreamDestroyed:
		m.events.Addf(debug.KindRT, "stream %s destroyed", msg.Stream.ID)
	case realtime.SignalReceived:
		m.events.Addf(debug.KindRT, "signal %q from %s", msg.Signal.Type, msg.Signal.From.ID)
	case realtime.Result:
		if msg.Err != nil {
			m.events.Addf(debug.KindErr, "%s: %v", msg.Op, msg.Err)
		} else {
			m.events.Addf(debug.KindRT, "%s ok", msg.Op)
		}
	}
}

func (m *Model) syncStatus() {
	c := m.page.Active()
	if c == nil {
		m.statusBar.State = ""
		m.statusBar.QueueID = ""
		m.statusBar.Connection = ""
		return
	}
	m.statusBar.State = c.State().String()
	m.statusBar.QueueID = c.QueueID()
	m.statusBar.Connection = ""
	if c.Connected() {
		m.statusBar.Connection = "connected"
	}
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	if m.showDebug {
		return lipgloss.JoinVertical(lipgloss.Left,
			m.statusBar.View(),
			m.events.View(m.width, m.height-4),
		)
	}

	sections := []string{m.statusBar.View()}
	if m.panel.Visible() {
		sections = append(sections, m.panel.render(m.width))
	} else {
		sections = append(sections, m.renderWelcome())
	}
	if alert := m.panel.renderAlert(); alert != "" {
		sections = append(sections, alert)
	}
	sections = append(sections, theme.StyleDimmed.Render(m.helpLine()))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderWelcome() string {
	lines := []string{
		"",
		theme.StyleHeader.Render("Need a hand?"),
		"Talk to a representative over video and chat.",
		"",
	}
	if m.page.TriggerEnabled() {
		lines = append(lines, theme.StyleSelected.Render("[h] Request live help"))
	} else {
		lines = append(lines, theme.StyleDimmed.Render("Connecting…"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) helpLine() string {
	k := m.keys
	c := m.page.Active()
	switch {
	case c != nil && c.State() == panel.HardwareWait:
		return shortHelp(k.Allow, k.Deny, k.Close, k.Debug, k.ForceQuit)
	case m.panel.Chatting():
		return shortHelp(k.Send, k.Close, k.ForceQuit)
	case c != nil:
		return shortHelp(k.Close, k.Debug, k.Quit)
	default:
		return shortHelp(k.Help, k.Debug, k.Quit)
	}
}
