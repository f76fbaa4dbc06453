package repositories

import (
	"context"

	"github.com/creamininja/backend/internal/models"
)

// OAuthRepository links external identity-provider subjects to local users.
type OAuthRepository interface {
	// FindUserBySubject resolves the local user linked to the provider
	// identity, or ErrNotFound when no link exists.
	FindUserBySubject(ctx context.Context, provider, subject string) (models.User, error)
	// Link records the (provider, subject) -> user association. A second
	// link for the same provider identity fails with ErrConflict.
	Link(ctx context.Context, account models.OAuthAccount) error
}
