package repositories

import (
	"context"

	"github.com/creamininja/backend/internal/models"
)

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	// FindByHandleOrEmail resolves a friend-request target typed by the user.
	FindByHandleOrEmail(ctx context.Context, handleOrEmail string) (models.User, error)
	ExistsByEmailOrHandle(ctx context.Context, email, handle string) (bool, error)
	UpdateAvatar(ctx context.Context, userID, avatarKey string) error
}
