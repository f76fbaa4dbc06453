package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/creamininja/backend/internal/auth"
	"github.com/creamininja/backend/internal/db"
	"github.com/creamininja/backend/internal/models"
)

// PostgresSessionStore persists sessions keyed by bearer token hash.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Save stores a session record. Token hashes are unique, so a duplicate hash
// upserts rather than errors; in practice tokens are 32 random bytes.
func (s *PostgresSessionStore) Save(ctx context.Context, session models.Session) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO sessions (id, user_id, token_hash, csrf_token, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (token_hash)
        DO UPDATE SET user_id = EXCLUDED.user_id, csrf_token = EXCLUDED.csrf_token, expires_at = EXCLUDED.expires_at
    `, session.ID, session.UserID, session.TokenHash, session.CSRFToken, session.ExpiresAt.UTC(), session.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// FindByTokenHash loads a session and its user by bearer token hash. Expiry
// is NOT checked here; the auth manager enforces it at read time so the
// policy lives in exactly one place.
func (s *PostgresSessionStore) FindByTokenHash(ctx context.Context, tokenHash string) (models.Session, models.User, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return models.Session{}, models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, `
        SELECT s.id, s.user_id, s.token_hash, s.csrf_token, s.expires_at, s.created_at,
               u.id, u.email, u.password_hash, u.display_name, u.handle, u.avatar_key, u.created_at, u.updated_at
        FROM sessions s
        JOIN users u ON u.id = s.user_id
        WHERE s.token_hash = $1
    `, tokenHash)

	var (
		session models.Session
		user    models.User
	)
	err = row.Scan(
		&session.ID, &session.UserID, &session.TokenHash, &session.CSRFToken, &session.ExpiresAt, &session.CreatedAt,
		&user.ID, &user.Email, &user.PasswordHash, &user.DisplayName, &user.Handle, &user.AvatarKey, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, models.User{}, auth.ErrSessionNotFound
		}
		return models.Session{}, models.User{}, fmt.Errorf("select session: %w", err)
	}

	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, user, nil
}

// DeleteByTokenHash removes a session. Absence is not an error: logout is
// best-effort idempotent.
func (s *PostgresSessionStore) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ auth.SessionStore = (*PostgresSessionStore)(nil)
