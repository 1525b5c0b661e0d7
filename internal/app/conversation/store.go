package conversation

import (
	"sync"
	"time"

	"github.com/sifan077/linkbot/internal/infra/prometheus"
)

type session struct {
	state   *State
	touched time.Time
}

// SessionStore maps user ids to their conversation state. The mutex only
// guards the map; each state is owned by the goroutine serving its user.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*session
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[int64]*session),
		now:      time.Now,
	}
}

// Get returns the user's state or nil when the user is idle.
func (s *SessionStore) Get(userID int64) *State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		return sess.state
	}
	return nil
}

// Put installs st as the user's state, replacing any previous one.
func (s *SessionStore) Put(userID int64, st *State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[userID] = &session{state: st, touched: s.now()}
	prometheus.ActiveSessions.Set(float64(len(s.sessions)))
}

// Touch marks the user's state as active now.
func (s *SessionStore) Touch(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[userID]; ok {
		sess.touched = s.now()
	}
}

// Clear drops the user's state and reports whether there was one.
func (s *SessionStore) Clear(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[userID]
	delete(s.sessions, userID)
	prometheus.ActiveSessions.Set(float64(len(s.sessions)))
	return ok
}

// Reap drops every state last touched before the cutoff.
func (s *SessionStore) Reap(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if sess.touched.Before(before) {
			delete(s.sessions, id)
			removed++
		}
	}
	prometheus.ActiveSessions.Set(float64(len(s.sessions)))
	return removed
}

// Len returns the number of users with a conversation in progress.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
