package realtime

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

// Permission is the camera/microphone prompt. The page answers it when the
// user responds; publishers wait on it inside RequestAccess.
type Permission struct {
	autoGrant bool
	answers   chan bool
}

// NewPermission creates a prompt. With autoGrant every request is allowed
// without asking.
func NewPermission(autoGrant bool) *Permission {
	return &Permission{autoGrant: autoGrant, answers: make(chan bool, 1)}
}

// Answer records the user's decision. Extra answers are dropped.
func (p *Permission) Answer(allowed bool) {
	select {
	case p.answers <- allowed:
	default:
	}
}

func (p *Permission) drain() {
	select {
	case <-p.answers:
	default:
	}
}

func (p *Permission) wait(done <-chan struct{}) (allowed, ok bool) {
	if p.autoGrant {
		return true, true
	}
	select {
	case a := <-p.answers:
		return a, true
	case <-done:
		return false, false
	}
}

type devicePublisher struct {
	handle  string
	props   Properties
	perm    *Permission
	done    chan struct{}
	offOnce sync.Once
}

// NewPublisher creates a publisher gated on perm.
func NewPublisher(props Properties, perm *Permission) Publisher {
	return &devicePublisher{
		handle: uuid.NewString(),
		props:  props,
		perm:   perm,
		done:   make(chan struct{}),
	}
}

func (p *devicePublisher) Handle() string { return p.handle }
func (p *devicePublisher) Name() string   { return p.props.Name }

func (p *devicePublisher) RequestAccess() tea.Cmd {
	p.perm.drain()
	return func() tea.Msg {
		allowed, ok := p.perm.wait(p.done)
		if !ok {
			return nil
		}
		if allowed {
			return AccessAllowed{Publisher: p.handle}
		}
		return AccessDenied{Publisher: p.handle}
	}
}

func (p *devicePublisher) Off() {
	p.offOnce.Do(func() { close(p.done) })
}
