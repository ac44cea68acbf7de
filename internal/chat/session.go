package chat

import (
	"errors"
	"sort"
	"sync"
	"time"

	"guideline-rag/internal/helper"
	"guideline-rag/internal/models"
)

var ErrSessionNotFound = errors.New("chat: session not found")

// SessionStore keeps per-session message history in memory. Histories are
// append-only; sessions can only be removed whole.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]models.Message
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string][]models.Message)}
}

// Ensure returns the session id, creating a fresh session when id is empty.
func (s *SessionStore) Ensure(id string) string {
	if id == "" {
		id = helper.GenerateUUID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		s.sessions[id] = nil
	}
	return id
}

func (s *SessionStore) Append(id string, msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = append(s.sessions[id], msg)
}

// History returns a copy of the session's messages in append order.
func (s *SessionStore) History(id string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	out := make([]models.Message, len(history))
	copy(out, history)
	return out, nil
}

// Recent returns at most n trailing messages of the session, oldest first.
func (s *SessionStore) Recent(id string, n int) []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := s.sessions[id]
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]models.Message, len(history))
	copy(out, history)
	return out
}

func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Sessions lists known session ids sorted for stable output.
func (s *SessionStore) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func now() time.Time { return time.Now().UTC() }
