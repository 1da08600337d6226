package helpdesk

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/nbermudezs/otfcs/internal/client"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) (*Store, *httptest.Server) {
	t.Helper()
	store := NewStore()
	mux := http.NewServeMux()
	NewServer(store, "key-1", zerolog.Nop()).SetupRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return store, srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSessionEndpoint(t *testing.T) {
	store, srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/help/session", `{"customer_name":"Ada"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out client.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.APIKey != "key-1" || out.SessionID == "" || out.Token == "" {
		t.Fatalf("unexpected credentials: %+v", out)
	}
	if !store.ValidToken(out.SessionID, out.Token) {
		t.Error("returned token not valid for its session")
	}
}

func TestSessionEndpointForm(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.PostForm(srv.URL+"/help/session", url.Values{"customer_name": {"Ada"}})
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSessionEndpointErrors(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"missing name", `{}`, http.StatusBadRequest},
		{"blank name", `{"customer_name":"  "}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/help/session", tt.body)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}

	resp, err := http.Get(srv.URL + "/help/session")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", resp.StatusCode)
	}
}

func TestQueueLifecycle(t *testing.T) {
	store, srv := newTestServer(t)
	sess, _, _ := store.CreateSession("Ada")

	resp := postJSON(t, srv.URL+"/help/queue", `{"session_id":"`+sess.ID+`"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("enqueue status = %d", resp.StatusCode)
	}
	var q client.QueueResponse
	if err := json.NewDecoder(resp.Body).Decode(&q); err != nil {
		t.Fatal(err)
	}
	if store.Position(q.QueueID) != 1 {
		t.Fatalf("entry %q not at head of queue", q.QueueID)
	}

	resp = postJSON(t, srv.URL+"/help/queue/"+q.QueueID, `{"_METHOD":"DELETE"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dequeue status = %d", resp.StatusCode)
	}
	var d client.DequeueResponse
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		t.Fatal(err)
	}
	if !d.Removed {
		t.Error("Removed = false, want true")
	}
	if store.Len() != 0 {
		t.Errorf("queue length = %d, want 0", store.Len())
	}

	// A second dequeue is harmless.
	resp = postJSON(t, srv.URL+"/help/queue/"+q.QueueID, `{"_METHOD":"DELETE"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat dequeue status = %d", resp.StatusCode)
	}
}

func TestQueueEntryMethods(t *testing.T) {
	store, srv := newTestServer(t)
	sess, _, _ := store.CreateSession("Ada")
	e, _ := store.Enqueue(sess.ID)

	// POST without the override is not a delete.
	resp := postJSON(t, srv.URL+"/help/queue/"+e.ID, `{}`)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("plain POST status = %d, want 405", resp.StatusCode)
	}

	// Form-encoded override, as a browser form would send it.
	form, err := http.PostForm(srv.URL+"/help/queue/"+e.ID, url.Values{"_METHOD": {"delete"}})
	if err != nil {
		t.Fatal(err)
	}
	form.Body.Close()
	if form.StatusCode != http.StatusOK || store.Len() != 0 {
		t.Errorf("form override: status = %d, len = %d", form.StatusCode, store.Len())
	}

	e, _ = store.Enqueue(sess.ID)
	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/help/queue/"+e.ID, nil)
	del, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	del.Body.Close()
	if del.StatusCode != http.StatusOK || store.Len() != 0 {
		t.Errorf("DELETE: status = %d, len = %d", del.StatusCode, store.Len())
	}
}

func TestEnqueueErrors(t *testing.T) {
	_, srv := newTestServer(t)

	if resp := postJSON(t, srv.URL+"/help/queue", `{}`); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing session_id status = %d, want 400", resp.StatusCode)
	}
	if resp := postJSON(t, srv.URL+"/help/queue", `{"session_id":"nope"}`); resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown session status = %d, want 404", resp.StatusCode)
	}
}

func TestQueueListing(t *testing.T) {
	store, srv := newTestServer(t)
	for _, name := range []string{"a", "b"} {
		sess, _, _ := store.CreateSession(name)
		store.Enqueue(sess.ID)
	}

	resp, err := http.Get(srv.URL + "/help/queue")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var entries []QueueEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].CustomerName != "a" || entries[1].Position != 2 {
		t.Errorf("unexpected listing: %+v", entries)
	}
}

func TestPing(t *testing.T) {
	_, srv := newTestServer(t)

	tests := []struct {
		key    string
		status int
	}{
		{"key-1", http.StatusNoContent},
		{"other", http.StatusUnauthorized},
		{"", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + "/help/ping?api_key=" + url.QueryEscape(tt.key))
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tt.status {
			t.Errorf("ping(%q) status = %d, want %d", tt.key, resp.StatusCode, tt.status)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	store, srv := newTestServer(t)
	sess, _, _ := store.CreateSession("Ada")
	postJSON(t, srv.URL+"/help/queue", `{"session_id":"`+sess.ID+`"}`)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, resp.Body); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"otfcs_http_requests_total", "otfcs_helpdesk_queue_length"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

// The client and the server agree on the wire contract end to end.
func TestHTTPClientAgainstServer(t *testing.T) {
	store, srv := newTestServer(t)
	c := client.NewHTTPClient(srv.URL, 0)
	ctx := t.Context()

	creds, err := c.RequestSession(ctx, "Ada")
	if err != nil {
		t.Fatalf("RequestSession: %v", err)
	}
	if err := c.Ping(ctx, creds.APIKey); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	q, err := c.JoinQueue(ctx, creds.SessionID)
	if err != nil {
		t.Fatalf("JoinQueue: %v", err)
	}
	if store.Position(q.QueueID) != 1 {
		t.Fatalf("queue entry %q missing", q.QueueID)
	}
	if err := c.Dequeue(ctx, q.QueueID); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("queue length = %d after dequeue", store.Len())
	}
}
