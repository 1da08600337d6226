package realtime

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func runAsync(cmd tea.Cmd) <-chan tea.Msg {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	return ch
}

func TestPublisherAutoGrant(t *testing.T) {
	p := NewPublisher(DefaultProperties("Ian"), NewPermission(true))
	msg := p.RequestAccess()()
	if got, ok := msg.(AccessAllowed); !ok || got.Publisher != p.Handle() {
		t.Fatalf("msg = %#v, want AccessAllowed for %s", msg, p.Handle())
	}
	if p.Name() != "Ian" {
		t.Errorf("Name() = %q, want Ian", p.Name())
	}
}

func TestPublisherWaitsForAnswer(t *testing.T) {
	tests := []struct {
		name    string
		allowed bool
	}{
		{"allowed", true},
		{"denied", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perm := NewPermission(false)
			p := NewPublisher(DefaultProperties("Ian"), perm)
			ch := runAsync(p.RequestAccess())

			select {
			case msg := <-ch:
				t.Fatalf("resolved before an answer: %#v", msg)
			case <-time.After(50 * time.Millisecond):
			}

			perm.Answer(tt.allowed)
			select {
			case msg := <-ch:
				switch msg.(type) {
				case AccessAllowed:
					if !tt.allowed {
						t.Error("got AccessAllowed, want AccessDenied")
					}
				case AccessDenied:
					if tt.allowed {
						t.Error("got AccessDenied, want AccessAllowed")
					}
				default:
					t.Errorf("unexpected msg %#v", msg)
				}
			case <-time.After(time.Second):
				t.Fatal("no answer delivered")
			}
		})
	}
}

func TestStaleAnswerDiscarded(t *testing.T) {
	perm := NewPermission(false)
	perm.Answer(false)

	p := NewPublisher(DefaultProperties("Ian"), perm)
	ch := runAsync(p.RequestAccess())
	select {
	case msg := <-ch:
		t.Fatalf("stale answer consumed: %#v", msg)
	case <-time.After(50 * time.Millisecond):
	}
	perm.Answer(true)
	if _, ok := (<-ch).(AccessAllowed); !ok {
		t.Error("want AccessAllowed after a fresh answer")
	}
}

func TestPublisherOffAbortsRequest(t *testing.T) {
	p := NewPublisher(DefaultProperties("Ian"), NewPermission(false))
	ch := runAsync(p.RequestAccess())
	p.Off()
	p.Off()
	select {
	case msg := <-ch:
		if msg != nil {
			t.Errorf("msg = %#v, want nil", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("Off did not abort the request")
	}
}

func TestErrorString(t *testing.T) {
	err := Errorf(CodeSubscribeFailed, "stream %s", "s1")
	if err.Code != CodeSubscribeFailed {
		t.Errorf("Code = %d, want %d", err.Code, CodeSubscribeFailed)
	}
	if err.Error() == "" {
		t.Error("empty error string")
	}
}
