package repositories

import (
	"context"

	"github.com/creamininja/backend/internal/models"
)

// FriendRepository owns the friend request state machine and the friendship
// edge set it produces.
type FriendRepository interface {
	// SendRequest creates a pending request. It fails with ErrSelfRequest,
	// ErrAlreadyFriends or ErrRequestPending; a prior request in a
	// terminal state does not block a fresh one.
	SendRequest(ctx context.Context, fromID, toID string) (models.FriendRequest, error)
	// Accept transitions the request to accepted and creates both
	// friendship edges in a single transaction. The request must be
	// addressed to byUserID and still be pending.
	Accept(ctx context.Context, requestID, byUserID string) error
	// Reject transitions the request to rejected. No edges are created.
	Reject(ctx context.Context, requestID, byUserID string) error

	ListFriends(ctx context.Context, userID string) ([]models.FriendEntry, error)
	ListPendingIncoming(ctx context.Context, userID string) ([]models.FriendEntry, error)
	ListPendingOutgoing(ctx context.Context, userID string) ([]models.FriendEntry, error)

	// AreFriends answers the directional edge question userID -> friendID.
	AreFriends(ctx context.Context, userID, friendID string) (bool, error)

	// SearchUsers finds users by handle or display name, annotated with the
	// viewer's relationship to each hit. The viewer is excluded.
	SearchUsers(ctx context.Context, viewerID, query string, limit int) ([]models.UserSearchResult, error)
}
