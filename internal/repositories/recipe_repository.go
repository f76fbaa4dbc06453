package repositories

import (
	"context"
	"time"

	"github.com/creamininja/backend/internal/models"
)

// RecipePatch carries the fields of a partial update; nil fields are left
// untouched.
type RecipePatch struct {
	Title       *string
	Description *string
	Category    *string
	Visibility  *string
	Ingredients *[]string
	Steps       *[]string
	ImageKey    *string
}

// Empty reports whether the patch changes nothing.
func (p RecipePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Category == nil &&
		p.Visibility == nil && p.Ingredients == nil && p.Steps == nil && p.ImageKey == nil
}

// RecipeRepository defines persistence for recipes, stars and shares.
type RecipeRepository interface {
	Create(ctx context.Context, recipe models.Recipe) error
	// Find returns the bare recipe row, without author join or star state.
	Find(ctx context.Context, id string) (models.Recipe, error)
	// FindSummary returns the recipe joined with its author and the
	// viewer's star state. viewerID may be visibility.Anonymous.
	FindSummary(ctx context.Context, id, viewerID string) (models.RecipeSummary, error)
	// FindByImageKey reverse-looks-up the recipe referencing an uploaded
	// object, for the upload access gate.
	FindByImageKey(ctx context.Context, imageKey string) (models.Recipe, error)

	Update(ctx context.Context, id string, patch RecipePatch) error
	Delete(ctx context.Context, id string) error

	// ListByAuthorHandle and the feed listings filter with the bulk
	// visibility predicate; their result sets match what the per-item
	// evaluator would allow.
	ListByAuthorHandle(ctx context.Context, handle, viewerID string, limit int) ([]models.RecipeSummary, error)
	ListNetworkFeed(ctx context.Context, viewerID string, limit int) ([]models.RecipeSummary, error)
	ListPopularFeed(ctx context.Context, viewerID string, since time.Time, limit int) ([]models.RecipeSummary, error)

	// Share grants a user view access to a private recipe. Idempotent.
	Share(ctx context.Context, share models.RecipeShare) error
	ShareExists(ctx context.Context, recipeID, userID string) (bool, error)

	// Star and Unstar toggle the (user, recipe) join row and adjust the
	// denormalized counter only when the row actually changed, inside one
	// transaction. Repeats are no-ops.
	Star(ctx context.Context, userID, recipeID string) error
	Unstar(ctx context.Context, userID, recipeID string) error
	// CountStars aggregates the join table, for consistency checks.
	CountStars(ctx context.Context, recipeID string) (int, error)
}
