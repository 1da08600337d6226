// Package request turns a "help requested" trigger into session credentials.
package request

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nbermudezs/otfcs/internal/client"
	"github.com/rs/zerolog"
)

// Credentials are issued once per service request and never modified.
type Credentials struct {
	APIKey    string
	SessionID string
	Token     string
}

// SessionAPI is the backend call the requester depends on.
type SessionAPI interface {
	RequestSession(ctx context.Context, customerName string) (*client.SessionResponse, error)
}

// Trigger is the affordance whose activation starts a request. Bind stores
// the function to run on activation.
type Trigger interface {
	Bind(activate func() tea.Cmd)
}

// Requester performs the one-shot credential exchange. It has a single
// callback slot.
type Requester struct {
	api     SessionAPI
	name    func() string
	timeout time.Duration
	log     zerolog.Logger

	onCredentials func(Credentials) tea.Cmd
}

// New creates a requester. name is read at activation time so the page can
// change the display name between requests.
func New(api SessionAPI, name func() string, timeout time.Duration, logger zerolog.Logger) *Requester {
	return &Requester{
		api:     api,
		name:    name,
		timeout: timeout,
		log:     logger.With().Str("component", "request").Logger(),
	}
}

// Initialize binds trigger to the request flow and stores onCredentials.
func (r *Requester) Initialize(trigger Trigger, onCredentials func(Credentials) tea.Cmd) {
	r.onCredentials = onCredentials
	trigger.Bind(r.start)
}

type credentialsMsg struct {
	owner *Requester
	creds Credentials
}

type failedMsg struct {
	owner *Requester
	err   error
}

func (r *Requester) start() tea.Cmd {
	name := r.name()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		resp, err := r.api.RequestSession(ctx, name)
		if err != nil {
			return failedMsg{owner: r, err: err}
		}
		return credentialsMsg{owner: r, creds: Credentials{
			APIKey:    resp.APIKey,
			SessionID: resp.SessionID,
			Token:     resp.Token,
		}}
	}
}

// Update handles the outcome of a request. It reports whether msg belonged
// to this requester.
func (r *Requester) Update(msg tea.Msg) (tea.Cmd, bool) {
	switch msg := msg.(type) {
	case credentialsMsg:
		if msg.owner != r {
			return nil, false
		}
		r.log.Info().Str("session", msg.creds.SessionID).Msg("credentials issued")
		if r.onCredentials == nil {
			return nil, true
		}
		return r.onCredentials(msg.creds), true

	case failedMsg:
		if msg.owner != r {
			return nil, false
		}
		// No alert: the trigger stays enabled and the user can retry.
		r.log.Warn().Err(msg.err).Msg("session request failed")
		return nil, true
	}
	return nil, false
}
