package handlers

import (
	"context"
	"time"

	"github.com/creamininja/backend/internal/ai"
	"github.com/creamininja/backend/internal/auth"
	"github.com/creamininja/backend/internal/models"
	"github.com/creamininja/backend/internal/oauth"
	"github.com/creamininja/backend/internal/repositories"
	"github.com/creamininja/backend/internal/storage"
)

// UserStore captures the persistence operations required by the auth and
// upload handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByHandleOrEmail(ctx context.Context, handleOrEmail string) (models.User, error)
	ExistsByEmailOrHandle(ctx context.Context, email, handle string) (bool, error)
	UpdateAvatar(ctx context.Context, userID, avatarKey string) error
}

// SessionManager issues, resolves and revokes browser sessions.
type SessionManager interface {
	Create(ctx context.Context, userID string) (auth.Credentials, error)
	Resolve(ctx context.Context, token string) (models.User, models.Session, error)
	Revoke(ctx context.Context, token string)
	TTL() time.Duration
}

// FriendStore captures operations required by the friend handlers and the
// visibility fact lookups.
type FriendStore = repositories.FriendRepository

// RecipeStore captures persistence for recipes, stars and shares.
type RecipeStore = repositories.RecipeRepository

// OAuthStore links provider identities to local users.
type OAuthStore = repositories.OAuthRepository

// ObjectStorage serves, presigns and removes upload objects.
type ObjectStorage interface {
	PresignPut(ctx context.Context, key, contentType string) (string, error)
	Get(ctx context.Context, key string) (storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// RecipeGenerator produces recipe drafts from prompts and images.
type RecipeGenerator interface {
	Enabled() bool
	Generate(ctx context.Context, prompt string, image *ai.ImageInput) (ai.GeneratedRecipe, error)
}

// CaptchaVerifier checks bot-protection tokens on credential endpoints.
type CaptchaVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

// GoogleExchanger runs the Google authorization-code flow.
type GoogleExchanger interface {
	Enabled() bool
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (oauth.Profile, error)
}

// visibilityFacts adapts the friend and recipe stores to the fact lookups the
// visibility evaluator needs.
type visibilityFacts struct {
	Friends FriendStore
	Recipes RecipeStore
}

func (f visibilityFacts) FriendshipExists(ctx context.Context, userID, friendID string) (bool, error) {
	return f.Friends.AreFriends(ctx, userID, friendID)
}

func (f visibilityFacts) ShareExists(ctx context.Context, recipeID, userID string) (bool, error) {
	return f.Recipes.ShareExists(ctx, recipeID, userID)
}
