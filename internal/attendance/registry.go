package attendance

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one on-duty period of a user.
type Session struct {
	ID      uuid.UUID
	User    Member
	ClockIn time.Time
	LastAck time.Time

	// announcement is the clock-board message posted at clock-in.
	announcement MessageHandle
}

// Registry is the table of users currently on duty. Only the Machine
// mutates it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[UserID]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[UserID]*Session)}
}

// Get returns a copy of the user's session.
func (r *Registry) Get(id UserID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Sessions returns copies of all sessions, oldest clock-in first.
func (r *Registry) Sessions() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].ClockIn.Equal(out[j].ClockIn) {
			return out[i].User.ID < out[j].User.ID
		}
		return out[i].ClockIn.Before(out[j].ClockIn)
	})
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) open(s Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.User.ID]; ok {
		return false
	}
	r.sessions[s.User.ID] = &s
	return true
}

func (r *Registry) close(id UserID) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, id)
	return *s, true
}

// touch moves LastAck forward; it never moves it back.
func (r *Registry) touch(id UserID, t time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || !t.After(s.LastAck) {
		return false
	}
	s.LastAck = t
	return true
}

func (r *Registry) setAnnouncement(id UserID, session uuid.UUID, h MessageHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && s.ID == session {
		s.announcement = h
	}
}
