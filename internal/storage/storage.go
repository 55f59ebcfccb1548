package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/lehigh-university-libraries/imagereview/internal/review"
)

// Entry is a review session registered with the server
type Entry struct {
	ID        string
	Session   *review.Session
	CreatedAt time.Time
}

type SessionStore struct {
	sessions map[string]*Entry
	mu       sync.RWMutex
}

func New() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Entry),
	}
}

func (s *SessionStore) Get(sessionID string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, exists := s.sessions[sessionID]
	return entry, exists
}

// Set registers session under sessionID, replacing and discarding any
// session already there
func (s *SessionStore) Set(sessionID string, session *review.Session) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := &Entry{
		ID:        sessionID,
		Session:   session,
		CreatedAt: time.Now(),
	}
	s.sessions[sessionID] = entry
	return entry
}

// GetAll returns every entry, oldest first
func (s *SessionStore) GetAll() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Entry, 0, len(s.sessions))
	for _, v := range s.sessions {
		result = append(result, v)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Delete reports whether a session was removed
func (s *SessionStore) Delete(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok
}
