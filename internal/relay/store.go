package relay

import (
	"sync"
	"time"

	"github.com/pitchlab/pitchcoach/internal/speech"
)

// Session binds one client connection to one live speech-backend handle.
// Fields are immutable after Put; the store owns the handle's lifetime.
type Session struct {
	ID        string
	Voice     string
	Handle    speech.Handle
	CreatedAt time.Time
}

// Store is the process-wide registry mapping connection id to its session.
// Entries vanish on restart; there is nothing to recover.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Put registers a session for a connection id. Any existing session for the
// same id has its backend handle released before being replaced, atomically
// with respect to concurrent Get/Remove. Handle.Close is idempotent and
// non-blocking by contract, so holding the lock across it is safe.
func (s *Store) Put(connID string, sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.sessions[connID]; ok && old.Handle != nil {
		_ = old.Handle.Close()
	}
	s.sessions[connID] = sess
}

// Get returns the session for a connection id. Never touches the backend.
func (s *Store) Get(connID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[connID]
	return sess, ok
}

// Remove releases the session's backend handle and deletes the entry.
// Removing an absent id is a no-op.
func (s *Store) Remove(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[connID]
	if !ok {
		return
	}
	if sess.Handle != nil {
		_ = sess.Handle.Close()
	}
	delete(s.sessions, connID)
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
