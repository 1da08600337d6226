// Package mock simulates a help-desk representative: it takes callers off
// the wait queue, joins their session and chats until the call ends.
package mock

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nbermudezs/otfcs/internal/helpdesk"
	"github.com/nbermudezs/otfcs/internal/panel"
	"github.com/nbermudezs/otfcs/internal/realtime"
	"github.com/rs/zerolog"
)

// Queue is what the representative needs from the help desk.
type Queue interface {
	Peek() (helpdesk.Entry, bool)
	IssueToken(sessionID string) (string, error)
	Dequeue(id string) bool
}

type Options struct {
	APIKey       string
	Name         string
	Reply        string
	PollInterval time.Duration
	CallDuration time.Duration
}

// Representative answers one call at a time.
type Representative struct {
	queue     Queue
	transport realtime.Transport
	opts      Options
	log       zerolog.Logger
	calls     atomic.Int64
}

func NewRepresentative(queue Queue, transport realtime.Transport, opts Options, logger zerolog.Logger) *Representative {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Name == "" {
		opts.Name = "Representative"
	}
	return &Representative{
		queue:     queue,
		transport: transport,
		opts:      opts,
		log:       logger.With().Str("component", "mock").Str("rep", opts.Name).Logger(),
	}
}

// Calls returns the number of calls answered so far.
func (r *Representative) Calls() int64 { return r.calls.Load() }

// Start polls the queue until ctx is cancelled.
func (r *Representative) Start(ctx context.Context) {
	go r.run(ctx)
}

func (r *Representative) run(ctx context.Context) {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			entry, token, ok := r.take()
			if !ok {
				continue
			}
			r.calls.Add(1)
			r.answer(ctx, entry, token)
		}
	}
}

// take claims the head of the queue once a token for its session has been
// issued. A caller whose token can't be issued keeps its place, unless the
// session no longer exists.
func (r *Representative) take() (helpdesk.Entry, string, bool) {
	entry, ok := r.queue.Peek()
	if !ok {
		return helpdesk.Entry{}, "", false
	}
	log := r.log.With().Str("session", entry.SessionID).Str("entry", entry.ID).Logger()
	token, err := r.queue.IssueToken(entry.SessionID)
	if err != nil {
		if errors.Is(err, helpdesk.ErrUnknownSession) {
			log.Warn().Err(err).Msg("dropping queue entry")
			r.queue.Dequeue(entry.ID)
		} else {
			log.Warn().Err(err).Msg("cannot join caller session, will retry")
		}
		return helpdesk.Entry{}, "", false
	}
	if !r.queue.Dequeue(entry.ID) {
		// The caller left the queue meanwhile.
		log.Debug().Msg("entry gone before pickup")
		return helpdesk.Entry{}, "", false
	}
	return entry, token, true
}

// answer holds one call: it joins the caller's session, publishes, replies
// to chat and hangs up after the call duration or when the caller leaves.
func (r *Representative) answer(ctx context.Context, entry helpdesk.Entry, token string) {
	log := r.log.With().Str("session", entry.SessionID).Str("customer", entry.CustomerName).Logger()

	session := r.transport.InitSession(r.opts.APIKey, entry.SessionID)
	defer session.Off()

	if res := runResult(session.Connect(token)); res.Err != nil {
		log.Warn().Err(res.Err).Msg("connect failed")
		return
	}

	publisher := r.transport.InitPublisher(realtime.DefaultProperties(r.opts.Name))
	defer publisher.Off()
	if _, ok := publisher.RequestAccess()().(realtime.AccessAllowed); !ok {
		log.Warn().Msg("device access refused")
		session.Disconnect()()
		return
	}
	if res := runResult(session.Publish(publisher)); res.Err != nil {
		log.Warn().Err(res.Err).Msg("publish failed")
		session.Disconnect()()
		return
	}
	log.Info().Msg("call started")

	events := make(chan tea.Msg)
	done := make(chan struct{})
	defer close(done)
	go pump(session, events, done)

	var timeout <-chan time.Time
	if r.opts.CallDuration > 0 {
		timer := time.NewTimer(r.opts.CallDuration)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			session.Disconnect()()
			return
		case <-timeout:
			log.Info().Msg("call duration reached, hanging up")
			session.Disconnect()()
			return
		case msg := <-events:
			if !r.handle(session, msg, log) {
				log.Info().Msg("call ended")
				return
			}
		}
	}
}

// handle reacts to one session event. It reports whether the call goes on.
func (r *Representative) handle(session realtime.Session, msg tea.Msg, log zerolog.Logger) bool {
	switch msg := msg.(type) {
	case realtime.SessionDisconnected:
		return false

	case realtime.StreamCreated:
		_, cmd := session.Subscribe(msg.Stream, realtime.DefaultProperties(r.opts.Name))
		if res := runResult(cmd); res.Err != nil {
			log.Warn().Err(res.Err).Msg("subscribe failed")
		}

	case realtime.StreamDestroyed:
		// The caller hung up.
		session.Disconnect()()
		return false

	case realtime.SignalReceived:
		if msg.Signal.Type != panel.SignalChat || msg.Signal.From == session.Connection() {
			return true
		}
		var in panel.ChatData
		if err := json.Unmarshal(msg.Signal.Data, &in); err != nil {
			log.Debug().Err(err).Msg("malformed chat signal")
			return true
		}
		log.Debug().Str("text", in.Text).Msg("chat received")
		reply := panel.ChatData{From: r.opts.Name, Text: r.reply(in)}
		if res := runResult(session.Signal(panel.SignalChat, reply)); res.Err != nil {
			log.Warn().Err(res.Err).Msg("reply failed")
		}
	}
	return true
}

// reply expands {name} and {text} in the configured reply.
func (r *Representative) reply(in panel.ChatData) string {
	text := r.opts.Reply
	if text == "" {
		text = "Got it, {name}."
	}
	return strings.NewReplacer("{name}", in.From, "{text}", in.Text).Replace(text)
}

// pump forwards session events until the session is detached or done closes.
func pump(session realtime.Session, events chan<- tea.Msg, done <-chan struct{}) {
	for {
		msg := session.Listen()()
		if msg == nil {
			return
		}
		select {
		case events <- msg:
		case <-done:
			return
		}
	}
}

func runResult(cmd tea.Cmd) realtime.Result {
	if cmd == nil {
		return realtime.Result{}
	}
	res, _ := cmd().(realtime.Result)
	return res
}
