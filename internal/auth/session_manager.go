package auth

import (
	"context"
	"errors"
	"time"

	"github.com/creamininja/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the presented token does not map to a
	// live session. Expired sessions report the same error so callers
	// cannot tell the two apart.
	ErrSessionNotFound = errors.New("session not found")
)

// SessionStore persists issued sessions keyed by bearer token hash.
type SessionStore interface {
	Save(ctx context.Context, session models.Session) error
	// FindByTokenHash returns the session together with its user.
	FindByTokenHash(ctx context.Context, tokenHash string) (models.Session, models.User, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
}

// Credentials are the secrets handed back to the client after login. Token is
// the only copy of the bearer secret; it is never persisted.
type Credentials struct {
	Session   models.Session
	Token     string
	CSRFToken string
}

// Manager issues, resolves and revokes browser sessions backed by a
// persistent store.
type Manager struct {
	ttl     time.Duration
	store   SessionStore
	nowFunc func() time.Time
}

// NewManager constructs a Manager issuing sessions with the provided TTL.
func NewManager(ttl time.Duration, store SessionStore) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Manager{ttl: ttl, store: store, nowFunc: func() time.Time { return time.Now().UTC() }}
}

// WithNowFunc overrides the time source. Useful for expiry tests.
func (m *Manager) WithNowFunc(now func() time.Time) *Manager {
	m.nowFunc = now
	return m
}

// Create issues a new session for the user: a 32-byte random bearer token and
// a separate 16-byte CSRF token. Only the bearer token's hash is persisted;
// the CSRF token is stored in clear since it is opaque to cross-site
// attackers without document access.
func (m *Manager) Create(ctx context.Context, userID string) (Credentials, error) {
	if userID == "" {
		return Credentials{}, errors.New("user id must be provided")
	}

	token, err := randomToken(32)
	if err != nil {
		return Credentials{}, err
	}
	csrfToken, err := randomToken(16)
	if err != nil {
		return Credentials{}, err
	}

	now := m.nowFunc()
	session := models.Session{
		ID:        models.NewID("ses"),
		UserID:    userID,
		TokenHash: HashToken(token),
		CSRFToken: csrfToken,
		ExpiresAt: now.Add(m.ttl),
		CreatedAt: now,
	}

	if err := m.store.Save(ctx, session); err != nil {
		return Credentials{}, err
	}

	return Credentials{Session: session, Token: token, CSRFToken: csrfToken}, nil
}

// Resolve hashes the presented bearer token and looks the session up. A row
// past its expiry resolves exactly like a missing row; expiry is enforced at
// read time, no background sweep exists.
func (m *Manager) Resolve(ctx context.Context, token string) (models.User, models.Session, error) {
	if token == "" {
		return models.User{}, models.Session{}, ErrSessionNotFound
	}

	session, user, err := m.store.FindByTokenHash(ctx, HashToken(token))
	if err != nil {
		return models.User{}, models.Session{}, err
	}

	if session.Expired(m.nowFunc()) {
		return models.User{}, models.Session{}, ErrSessionNotFound
	}

	return user, session, nil
}

// Revoke deletes the session for the presented token. Best effort and
// idempotent: a missing row is not an error.
func (m *Manager) Revoke(ctx context.Context, token string) {
	if token == "" {
		return
	}
	_ = m.store.DeleteByTokenHash(ctx, HashToken(token))
}

// TTL reports the configured session lifetime, used for cookie Max-Age.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}
