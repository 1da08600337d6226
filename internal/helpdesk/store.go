// Package helpdesk is the reference backend: it allocates sessions, keeps
// the FIFO wait queue and serves the /help routes.
package helpdesk

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUnknownSession = errors.New("unknown session")
	ErrEmptyName      = errors.New("customer name is empty")
)

// Session is one allocated realtime session.
type Session struct {
	ID           string
	CustomerName string
	CreatedAt    time.Time
}

// Entry is one caller waiting for a representative.
type Entry struct {
	ID           string
	SessionID    string
	CustomerName string
	EnqueuedAt   time.Time
}

// Store holds sessions, their tokens and the wait queue. All getters return
// copies.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	tokens   map[string]string // token -> session id
	queue    []*Entry
	entries  map[string]*Entry
	now      func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		tokens:   make(map[string]string),
		entries:  make(map[string]*Entry),
		now:      time.Now,
	}
}

// CreateSession allocates a session for customerName and issues the
// customer's token.
func (s *Store) CreateSession(customerName string) (Session, string, error) {
	if customerName == "" {
		return Session{}, "", ErrEmptyName
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{
		ID:           uuid.NewString(),
		CustomerName: customerName,
		CreatedAt:    s.now(),
	}
	s.sessions[sess.ID] = sess
	token := uuid.NewString()
	s.tokens[token] = sess.ID
	return *sess, token, nil
}

func (s *Store) Session(id string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// IssueToken grants another participant access to an existing session.
func (s *Store) IssueToken(sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return "", ErrUnknownSession
	}
	token := uuid.NewString()
	s.tokens[token] = sessionID
	return token, nil
}

// ValidToken reports whether token admits its holder to sessionID.
func (s *Store) ValidToken(sessionID, token string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.tokens[token]
	return ok && id == sessionID
}

// Enqueue appends sessionID to the wait queue. A session already waiting
// keeps its place and entry.
func (s *Store) Enqueue(sessionID string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return Entry{}, ErrUnknownSession
	}
	for _, e := range s.queue {
		if e.SessionID == sessionID {
			return *e, nil
		}
	}
	e := &Entry{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		CustomerName: sess.CustomerName,
		EnqueuedAt:   s.now(),
	}
	s.queue = append(s.queue, e)
	s.entries[e.ID] = e
	return *e, nil
}

// Dequeue removes the entry with id. It reports whether anything was removed.
func (s *Store) Dequeue(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return false
	}
	delete(s.entries, id)
	for i, e := range s.queue {
		if e.ID == id {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	return true
}

// Peek returns the longest-waiting entry without removing it.
func (s *Store) Peek() (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.queue) == 0 {
		return Entry{}, false
	}
	return *s.queue[0], true
}

// Next pops the longest-waiting entry.
func (s *Store) Next() (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Entry{}, false
	}
	e := s.queue[0]
	s.queue = s.queue[1:]
	delete(s.entries, e.ID)
	return *e, true
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.queue)
}

// Position returns the 1-based queue position of entry id, or 0.
func (s *Store) Position(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, e := range s.queue {
		if e.ID == id {
			return i + 1
		}
	}
	return 0
}

// Queue returns the waiting entries, head first.
func (s *Store) Queue() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Entry, 0, len(s.queue))
	for _, e := range s.queue {
		result = append(result, *e)
	}
	return result
}
