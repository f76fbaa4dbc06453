package auth

import (
	"context"
	"sync"

	"github.com/creamininja/backend/internal/models"
)

// NewInMemorySessionStore returns a SessionStore backed by in-memory maps.
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]models.Session),
		users:    make(map[string]models.User),
	}
}

// InMemorySessionStore implements SessionStore for tests and local
// development. Users must be registered with PutUser before their sessions
// can be resolved.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	users    map[string]models.User
}

// PutUser registers a user so FindByTokenHash can join it.
func (s *InMemorySessionStore) PutUser(user models.User) {
	s.mu.Lock()
	s.users[user.ID] = user
	s.mu.Unlock()
}

// Save persists the provided session record keyed by token hash.
func (s *InMemorySessionStore) Save(_ context.Context, session models.Session) error {
	s.mu.Lock()
	s.sessions[session.TokenHash] = session
	s.mu.Unlock()
	return nil
}

// FindByTokenHash retrieves a session and its user by bearer token hash.
func (s *InMemorySessionStore) FindByTokenHash(_ context.Context, tokenHash string) (models.Session, models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[tokenHash]
	if !ok {
		return models.Session{}, models.User{}, ErrSessionNotFound
	}
	user, ok := s.users[session.UserID]
	if !ok {
		return models.Session{}, models.User{}, ErrSessionNotFound
	}
	return session, user, nil
}

// DeleteByTokenHash removes the session for the token hash.
func (s *InMemorySessionStore) DeleteByTokenHash(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	delete(s.sessions, tokenHash)
	s.mu.Unlock()
	return nil
}

// Has reports whether a session exists for the token hash. Useful for tests.
func (s *InMemorySessionStore) Has(tokenHash string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[tokenHash]
	return ok
}
