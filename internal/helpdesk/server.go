package helpdesk

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/nbermudezs/otfcs/internal/client"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const maxBody = 1 << 16

// Server serves the help-desk HTTP contract.
type Server struct {
	store  *Store
	apiKey string
	log    zerolog.Logger
}

func NewServer(store *Store, apiKey string, logger zerolog.Logger) *Server {
	return &Server{
		store:  store,
		apiKey: apiKey,
		log:    logger.With().Str("component", "helpdesk").Logger(),
	}
}

// APIKey is the key handed out with every session.
func (s *Server) APIKey() string { return s.apiKey }

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/help/session", instrument("/help/session", s.handleSession))
	mux.HandleFunc("/help/queue", instrument("/help/queue", s.handleQueue))
	mux.HandleFunc("/help/queue/", instrument("/help/queue/{id}", s.handleQueueEntry))
	mux.HandleFunc("/help/ping", instrument("/help/ping", s.handlePing))
	mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	fields, err := readFields(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(fields.Get("customer_name"))

	sess, token, err := s.store.CreateSession(name)
	if errors.Is(err, ErrEmptyName) {
		http.Error(w, "customer_name is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	sessionsCreated.Inc()

	s.log.Info().Str("session", sess.ID).Str("customer", sess.CustomerName).Msg("session allocated")
	writeJSON(w, http.StatusOK, client.SessionResponse{
		APIKey:    s.apiKey,
		SessionID: sess.ID,
		Token:     token,
	})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.queueSnapshot())
	case http.MethodPost:
		s.handleEnqueue(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	sessionID := fields.Get("session_id")
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}

	entry, err := s.store.Enqueue(sessionID)
	if errors.Is(err, ErrUnknownSession) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	RecordQueueEvent("join", s.store.Len())

	s.log.Info().Str("session", sessionID).Str("queue_id", entry.ID).
		Int("position", s.store.Position(entry.ID)).Msg("caller queued")
	writeJSON(w, http.StatusOK, client.QueueResponse{QueueID: entry.ID})
}

// handleQueueEntry removes one entry. Clients that can only POST send
// _METHOD=DELETE instead.
func (s *Server) handleQueueEntry(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(strings.TrimPrefix(r.URL.Path, "/help/queue/"))
	if err != nil || id == "" || strings.Contains(id, "/") {
		http.Error(w, "invalid queue id", http.StatusBadRequest)
		return
	}

	method := r.Method
	if method == http.MethodPost {
		fields, err := readFields(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if override := fields.Get("_METHOD"); override != "" {
			method = strings.ToUpper(override)
		}
	}
	if method != http.MethodDelete {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	removed := s.store.Dequeue(id)
	if removed {
		RecordQueueEvent("leave", s.store.Len())
	}
	s.log.Info().Str("queue_id", id).Bool("removed", removed).Msg("dequeue")
	writeJSON(w, http.StatusOK, client.DequeueResponse{Removed: removed})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.URL.Query().Get("api_key") != s.apiKey {
		http.Error(w, "unknown api key", http.StatusUnauthorized)
		return
	}
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("ping")
	w.WriteHeader(http.StatusNoContent)
}

// QueueEntry is the public view of a waiting caller.
type QueueEntry struct {
	QueueID      string `json:"queueId"`
	SessionID    string `json:"sessionId"`
	CustomerName string `json:"customerName"`
	Position     int    `json:"position"`
}

func (s *Server) queueSnapshot() []QueueEntry {
	entries := s.store.Queue()
	out := make([]QueueEntry, 0, len(entries))
	for i, e := range entries {
		out = append(out, QueueEntry{
			QueueID:      e.ID,
			SessionID:    e.SessionID,
			CustomerName: e.CustomerName,
			Position:     i + 1,
		})
	}
	return out
}

// readFields accepts either a JSON object of strings or a form body.
func readFields(r *http.Request) (url.Values, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct != "application/json" {
		if err := r.ParseForm(); err != nil {
			return nil, err
		}
		return r.PostForm, nil
	}

	var body map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&body); err != nil {
		return nil, errors.New("invalid JSON body")
	}
	fields := url.Values{}
	for k, v := range body {
		if str, ok := v.(string); ok {
			fields.Set(k, str)
		}
	}
	return fields, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
