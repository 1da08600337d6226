// Package page holds the page-level session context: the help trigger, the
// customer's display name and the single active service panel.
package page

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/nbermudezs/otfcs/internal/panel"
	"github.com/nbermudezs/otfcs/internal/request"
	"github.com/rs/zerolog"
)

// Button is the help trigger. It satisfies request.Trigger.
type Button struct {
	enabled  bool
	activate func() tea.Cmd
}

// NewButton returns an enabled, unbound trigger.
func NewButton() *Button { return &Button{enabled: true} }

func (b *Button) Bind(activate func() tea.Cmd) { b.activate = activate }
func (b *Button) Enable()                      { b.enabled = true }
func (b *Button) Disable()                     { b.enabled = false }
func (b *Button) Enabled() bool                { return b.enabled }

// Press activates the trigger. It does nothing while disabled or unbound.
func (b *Button) Press() tea.Cmd {
	if !b.enabled || b.activate == nil {
		return nil
	}
	return b.activate()
}

// ControllerFactory builds a controller for freshly issued credentials.
type ControllerFactory func(creds request.Credentials) *panel.Controller

// Context owns at most one active panel controller. Controllers closed with
// a queue join still in flight are kept draining until it resolves.
type Context struct {
	customerName string
	trigger      *Button
	requester    *request.Requester
	factory      ControllerFactory
	log          zerolog.Logger

	active   *panel.Controller
	draining []*panel.Controller
}

// New wires the requester to a fresh trigger.
func New(customerName string, requester *request.Requester, factory ControllerFactory, logger zerolog.Logger) *Context {
	p := &Context{
		customerName: customerName,
		trigger:      NewButton(),
		requester:    requester,
		factory:      factory,
		log:          logger.With().Str("component", "page").Logger(),
	}
	requester.Initialize(p.trigger, p.onCredentials)
	return p
}

// CustomerName is the display name used for requests and chat.
func (p *Context) CustomerName() string { return p.customerName }

// TriggerEnabled reports whether a new service request can be started.
func (p *Context) TriggerEnabled() bool { return p.trigger.Enabled() }

// Active returns the current controller, or nil.
func (p *Context) Active() *panel.Controller { return p.active }

// RequestHelp presses the trigger.
func (p *Context) RequestHelp() tea.Cmd { return p.trigger.Press() }

// Close closes the active panel, if any.
func (p *Context) Close() tea.Cmd {
	if p.active == nil {
		return nil
	}
	return p.active.Close()
}

// Send sends the current chat input on the active panel.
func (p *Context) Send() tea.Cmd {
	if p.active == nil {
		return nil
	}
	return p.active.Send()
}

// Unload runs right before the page goes away.
func (p *Context) Unload() {
	if p.active != nil {
		p.active.Unload()
	}
}

// Update routes msg to the requester and the controllers.
func (p *Context) Update(msg tea.Msg) tea.Cmd {
	if cmd, handled := p.requester.Update(msg); handled {
		return cmd
	}

	var cmds []tea.Cmd
	draining := p.draining
	p.draining = nil
	for _, c := range draining {
		cmds = append(cmds, c.Update(msg))
		if c.Pending() {
			p.draining = append(p.draining, c)
		}
	}
	// The active controller may retire itself into p.draining here.
	if p.active != nil {
		cmds = append(cmds, p.active.Update(msg))
	}
	return tea.Batch(cmds...)
}

func (p *Context) onCredentials(creds request.Credentials) tea.Cmd {
	if p.active != nil {
		p.log.Warn().Str("session", creds.SessionID).Msg("panel already active, dropping credentials")
		return nil
	}

	c := p.factory(creds)
	c.On(panel.EventOpened, p.trigger.Disable)
	c.On(panel.EventClosed, func() {
		p.trigger.Enable()
		if p.active == c {
			p.active = nil
		}
		if c.Pending() {
			p.draining = append(p.draining, c)
		}
	})
	p.active = c
	return c.Start()
}
