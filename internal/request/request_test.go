package request

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nbermudezs/otfcs/internal/client"
	"github.com/rs/zerolog"
)

type fakeAPI struct {
	calls []string
	resp  *client.SessionResponse
	err   error
}

func (f *fakeAPI) RequestSession(_ context.Context, name string) (*client.SessionResponse, error) {
	f.calls = append(f.calls, name)
	return f.resp, f.err
}

type fakeTrigger struct{ activate func() tea.Cmd }

func (f *fakeTrigger) Bind(activate func() tea.Cmd) { f.activate = activate }

func TestActivationDeliversCredentials(t *testing.T) {
	api := &fakeAPI{resp: &client.SessionResponse{APIKey: "k1", SessionID: "s1", Token: "t1"}}
	r := New(api, func() string { return "Ian" }, 0, zerolog.Nop())
	trig := &fakeTrigger{}

	var got []Credentials
	r.Initialize(trig, func(c Credentials) tea.Cmd {
		got = append(got, c)
		return nil
	})
	if trig.activate == nil {
		t.Fatal("Initialize did not bind the trigger")
	}

	msg := trig.activate()()
	if _, handled := r.Update(msg); !handled {
		t.Fatal("requester did not handle its own message")
	}

	if len(api.calls) != 1 || api.calls[0] != "Ian" {
		t.Errorf("RequestSession calls = %v, want [Ian]", api.calls)
	}
	want := Credentials{APIKey: "k1", SessionID: "s1", Token: "t1"}
	if len(got) != 1 || got[0] != want {
		t.Errorf("credentials = %+v, want [%+v]", got, want)
	}
}

func TestActivationFailureIsDropped(t *testing.T) {
	api := &fakeAPI{err: errors.New("boom")}
	r := New(api, func() string { return "Ian" }, 0, zerolog.Nop())
	trig := &fakeTrigger{}

	called := false
	r.Initialize(trig, func(Credentials) tea.Cmd {
		called = true
		return nil
	})

	cmd, handled := r.Update(trig.activate()())
	if !handled {
		t.Error("failure message should be handled")
	}
	if cmd != nil {
		t.Error("failure should not produce a follow-up command")
	}
	if called {
		t.Error("callback must not run on failure")
	}
}

func TestUpdateIgnoresForeignMessages(t *testing.T) {
	a := New(&fakeAPI{}, func() string { return "" }, 0, zerolog.Nop())
	b := New(&fakeAPI{}, func() string { return "" }, 0, zerolog.Nop())

	if _, handled := a.Update(credentialsMsg{owner: b}); handled {
		t.Error("requester handled another requester's message")
	}
	if _, handled := a.Update("unrelated"); handled {
		t.Error("requester handled an unrelated message")
	}
}
