package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/creamininja/backend/internal/db"
	"github.com/creamininja/backend/internal/models"
)

// PostgresFriendRepository implements the friend request state machine on
// PostgreSQL. Transitions that must not partially apply run inside retrying
// transactions.
type PostgresFriendRepository struct {
	pool db.Pool
}

// NewPostgresFriendRepository constructs a friend repository backed by PostgreSQL.
func NewPostgresFriendRepository(pool db.Pool) *PostgresFriendRepository {
	return &PostgresFriendRepository{pool: pool}
}

// SendRequest inserts a fresh pending request. A prior request in a terminal
// state never blocks or gets revived; only a still-pending duplicate is
// rejected, which the partial unique index also enforces under concurrency.
func (r *PostgresFriendRepository) SendRequest(ctx context.Context, fromID, toID string) (models.FriendRequest, error) {
	if fromID == toID {
		return models.FriendRequest{}, ErrSelfRequest
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.FriendRequest{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	request := models.FriendRequest{
		ID:         models.NewID("frq"),
		FromUserID: fromID,
		ToUserID:   toID,
		Status:     models.RequestStatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	err = crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var friends bool
		if err := tx.QueryRow(ctx, `
            SELECT EXISTS (SELECT 1 FROM friendships WHERE user_id = $1 AND friend_id = $2)
        `, fromID, toID).Scan(&friends); err != nil {
			return fmt.Errorf("check friendship: %w", err)
		}
		if friends {
			return ErrAlreadyFriends
		}

		var pending bool
		if err := tx.QueryRow(ctx, `
            SELECT EXISTS (
                SELECT 1 FROM friend_requests
                WHERE from_user_id = $1 AND to_user_id = $2 AND status = $3
            )
        `, fromID, toID, models.RequestStatusPending).Scan(&pending); err != nil {
			return fmt.Errorf("check pending request: %w", err)
		}
		if pending {
			return ErrRequestPending
		}

		_, err := tx.Exec(ctx, `
            INSERT INTO friend_requests (id, from_user_id, to_user_id, status, created_at)
            VALUES ($1, $2, $3, $4, $5)
        `, request.ID, request.FromUserID, request.ToUserID, request.Status, request.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				switch pgErr.Code {
				case pgUniqueViolation:
					return ErrRequestPending
				case "23503":
					return ErrNotFound
				}
			}
			return fmt.Errorf("insert friend request: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.FriendRequest{}, err
	}

	return request, nil
}

// Accept transitions the request to accepted and creates both friendship
// edges. All three writes commit or none do; a crash cannot leave an accepted
// request without its edges.
func (r *PostgresFriendRepository) Accept(ctx context.Context, requestID, byUserID string) error {
	return r.respond(ctx, requestID, byUserID, models.RequestStatusAccepted)
}

// Reject transitions the request to rejected without creating edges.
func (r *PostgresFriendRepository) Reject(ctx context.Context, requestID, byUserID string) error {
	return r.respond(ctx, requestID, byUserID, models.RequestStatusRejected)
}

func (r *PostgresFriendRepository) respond(ctx context.Context, requestID, byUserID, status string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var (
			fromUserID string
			toUserID   string
			current    string
		)
		err := tx.QueryRow(ctx, `
            SELECT from_user_id, to_user_id, status
            FROM friend_requests
            WHERE id = $1
            FOR UPDATE
        `, requestID).Scan(&fromUserID, &toUserID, &current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("select friend request: %w", err)
		}

		// A request addressed to someone else is reported as missing, not
		// forbidden, so request ids cannot be probed.
		if toUserID != byUserID {
			return ErrNotFound
		}
		if current != models.RequestStatusPending {
			return ErrRequestNotPending
		}

		if _, err := tx.Exec(ctx, `
            UPDATE friend_requests SET status = $2, responded_at = now() WHERE id = $1
        `, requestID, status); err != nil {
			return fmt.Errorf("update friend request: %w", err)
		}

		if status != models.RequestStatusAccepted {
			return nil
		}

		// Both directions are created together; re-inserting an existing
		// edge is a no-op so retries stay safe.
		for _, pair := range [][2]string{{toUserID, fromUserID}, {fromUserID, toUserID}} {
			if _, err := tx.Exec(ctx, `
                INSERT INTO friendships (user_id, friend_id, created_at)
                VALUES ($1, $2, now())
                ON CONFLICT (user_id, friend_id) DO NOTHING
            `, pair[0], pair[1]); err != nil {
				return fmt.Errorf("insert friendship edge: %w", err)
			}
		}
		return nil
	})
}

// AreFriends answers the directional edge question userID -> friendID.
func (r *PostgresFriendRepository) AreFriends(ctx context.Context, userID, friendID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	err = conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM friendships WHERE user_id = $1 AND friend_id = $2)
    `, userID, friendID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return exists, nil
}

// ListFriends returns the user's friends with their public profiles.
func (r *PostgresFriendRepository) ListFriends(ctx context.Context, userID string) ([]models.FriendEntry, error) {
	return r.listEntries(ctx, `
        SELECT u.id, u.display_name, u.handle, u.avatar_key, '', f.created_at
        FROM friendships f
        JOIN users u ON u.id = f.friend_id
        WHERE f.user_id = $1
        ORDER BY lower(u.display_name)
    `, userID)
}

// ListPendingIncoming returns pending requests addressed to the user.
func (r *PostgresFriendRepository) ListPendingIncoming(ctx context.Context, userID string) ([]models.FriendEntry, error) {
	return r.listEntries(ctx, `
        SELECT u.id, u.display_name, u.handle, u.avatar_key, fr.id, fr.created_at
        FROM friend_requests fr
        JOIN users u ON u.id = fr.from_user_id
        WHERE fr.to_user_id = $1 AND fr.status = 'pending'
        ORDER BY fr.created_at DESC
    `, userID)
}

// ListPendingOutgoing returns pending requests the user has sent.
func (r *PostgresFriendRepository) ListPendingOutgoing(ctx context.Context, userID string) ([]models.FriendEntry, error) {
	return r.listEntries(ctx, `
        SELECT u.id, u.display_name, u.handle, u.avatar_key, fr.id, fr.created_at
        FROM friend_requests fr
        JOIN users u ON u.id = fr.to_user_id
        WHERE fr.from_user_id = $1 AND fr.status = 'pending'
        ORDER BY fr.created_at DESC
    `, userID)
}

func (r *PostgresFriendRepository) listEntries(ctx context.Context, query, userID string) ([]models.FriendEntry, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query friend entries: %w", err)
	}
	defer rows.Close()

	var entries []models.FriendEntry
	for rows.Next() {
		var entry models.FriendEntry
		if err := rows.Scan(&entry.ID, &entry.DisplayName, &entry.Handle, &entry.AvatarKey, &entry.RequestID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan friend entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend entries: %w", err)
	}
	return entries, nil
}

// SearchUsers finds users by handle or display name, excluding the viewer,
// and annotates each hit with the viewer's relationship to it. The pattern is
// bound as a parameter; LIKE metacharacters in the query are escaped.
func (r *PostgresFriendRepository) SearchUsers(ctx context.Context, viewerID, query string, limit int) ([]models.UserSearchResult, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	pattern := "%" + escapeLike(query) + "%"
	prefix := escapeLike(query) + "%"

	rows, err := conn.Query(ctx, `
        SELECT u.id, u.display_name, u.handle, u.avatar_key,
               EXISTS (SELECT 1 FROM friendships f WHERE f.user_id = $1 AND f.friend_id = u.id) AS is_friend,
               EXISTS (SELECT 1 FROM friend_requests fr WHERE fr.from_user_id = $1 AND fr.to_user_id = u.id AND fr.status = 'pending') AS pending_out,
               EXISTS (SELECT 1 FROM friend_requests fr WHERE fr.from_user_id = u.id AND fr.to_user_id = $1 AND fr.status = 'pending') AS pending_in
        FROM users u
        WHERE u.id <> $1
          AND (u.handle ILIKE $2 OR u.display_name ILIKE $2)
        ORDER BY CASE WHEN u.handle ILIKE $3 THEN 0 ELSE 1 END, lower(u.display_name)
        LIMIT $4
    `, viewerID, pattern, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var results []models.UserSearchResult
	for rows.Next() {
		var (
			result     models.UserSearchResult
			isFriend   bool
			pendingOut bool
			pendingIn  bool
		)
		if err := rows.Scan(&result.ID, &result.DisplayName, &result.Handle, &result.AvatarKey, &isFriend, &pendingOut, &pendingIn); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		switch {
		case isFriend:
			result.Relation = models.RelationFriend
		case pendingOut:
			result.Relation = models.RelationPendingOutgoing
		case pendingIn:
			result.Relation = models.RelationPendingIncoming
		default:
			result.Relation = models.RelationNone
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	return results, nil
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch r {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}

var _ FriendRepository = (*PostgresFriendRepository)(nil)
