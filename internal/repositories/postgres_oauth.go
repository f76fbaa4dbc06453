package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/creamininja/backend/internal/db"
	"github.com/creamininja/backend/internal/models"
)

// PostgresOAuthRepository links identity-provider subjects to local users.
type PostgresOAuthRepository struct {
	pool db.Pool
}

// NewPostgresOAuthRepository constructs an OAuth account repository.
func NewPostgresOAuthRepository(pool db.Pool) *PostgresOAuthRepository {
	return &PostgresOAuthRepository{pool: pool}
}

// FindUserBySubject resolves the local user behind a provider identity.
func (r *PostgresOAuthRepository) FindUserBySubject(ctx context.Context, provider, subject string) (models.User, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.User{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return scanUser(conn.QueryRow(ctx, `
        SELECT u.id, u.email, u.password_hash, u.display_name, u.handle, u.avatar_key, u.created_at, u.updated_at
        FROM oauth_accounts oa
        JOIN users u ON u.id = oa.user_id
        WHERE oa.provider = $1 AND oa.subject = $2
    `, provider, subject))
}

// Link records the provider identity association. Unique per (provider, subject).
func (r *PostgresOAuthRepository) Link(ctx context.Context, account models.OAuthAccount) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO oauth_accounts (id, user_id, provider, subject, created_at)
        VALUES ($1, $2, $3, $4, $5)
    `, account.ID, account.UserID, account.Provider, account.Subject, account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert oauth account: %w", err)
	}
	return nil
}

var _ OAuthRepository = (*PostgresOAuthRepository)(nil)
