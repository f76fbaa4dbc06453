package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	crdbpgxv5 "github.com/cockroachdb/cockroach-go/v2/crdb/crdbpgxv5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/creamininja/backend/internal/db"
	"github.com/creamininja/backend/internal/models"
	"github.com/creamininja/backend/internal/visibility"
)

// PostgresRecipeRepository provides PostgreSQL-backed persistence for recipes,
// stars and shares.
type PostgresRecipeRepository struct {
	pool db.Pool
}

// NewPostgresRecipeRepository constructs a recipe repository backed by PostgreSQL.
func NewPostgresRecipeRepository(pool db.Pool) *PostgresRecipeRepository {
	return &PostgresRecipeRepository{pool: pool}
}

// Create stores a new recipe record.
func (r *PostgresRecipeRepository) Create(ctx context.Context, recipe models.Recipe) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO recipes
            (id, author_id, title, description, category, visibility, ingredients, steps, image_key, stars_count, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9, 0, $10, $11)
    `, recipe.ID, recipe.AuthorID, recipe.Title, recipe.Description, recipe.Category, recipe.Visibility,
		marshalStrings(recipe.Ingredients), marshalStrings(recipe.Steps), recipe.ImageKey, recipe.CreatedAt, recipe.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgUniqueViolation:
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert recipe: %w", err)
	}
	return nil
}

// Find returns the bare recipe row.
func (r *PostgresRecipeRepository) Find(ctx context.Context, id string) (models.Recipe, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return r.scanRecipe(conn.QueryRow(ctx, `
        SELECT id, author_id, title, description, category, visibility, ingredients, steps, image_key, stars_count, created_at, updated_at
        FROM recipes WHERE id = $1
    `, id))
}

// FindByImageKey reverse-looks-up the recipe referencing an uploaded object.
// The upload gate uses this instead of trusting the owner id embedded in the
// key, because a recipe image is governed by the recipe's tier.
func (r *PostgresRecipeRepository) FindByImageKey(ctx context.Context, imageKey string) (models.Recipe, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Recipe{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return r.scanRecipe(conn.QueryRow(ctx, `
        SELECT id, author_id, title, description, category, visibility, ingredients, steps, image_key, stars_count, created_at, updated_at
        FROM recipes WHERE image_key = $1
    `, imageKey))
}

func (r *PostgresRecipeRepository) scanRecipe(row pgx.Row) (models.Recipe, error) {
	var recipe models.Recipe
	err := row.Scan(&recipe.ID, &recipe.AuthorID, &recipe.Title, &recipe.Description, &recipe.Category,
		&recipe.Visibility, &recipe.Ingredients, &recipe.Steps, &recipe.ImageKey, &recipe.StarsCount,
		&recipe.CreatedAt, &recipe.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Recipe{}, ErrNotFound
		}
		return models.Recipe{}, fmt.Errorf("scan recipe: %w", err)
	}
	return recipe, nil
}

// summarySelect builds the recipe+author projection shared by detail and feed
// queries. The viewer's star state joins in as a correlated EXISTS; anonymous
// viewers always read false.
func summarySelect(viewerID string) sq.SelectBuilder {
	b := sq.Select(
		"r.id", "r.author_id", "r.title", "r.description", "r.category", "r.visibility",
		"r.ingredients", "r.steps", "r.image_key", "r.stars_count", "r.created_at", "r.updated_at",
		"u.id", "u.display_name", "u.handle", "u.avatar_key",
	).From("recipes r").
		Join("users u ON u.id = r.author_id").
		PlaceholderFormat(sq.Dollar)

	if viewerID == visibility.Anonymous {
		return b.Column("false AS viewer_starred")
	}
	return b.Column(sq.Expr("EXISTS (SELECT 1 FROM stars s WHERE s.recipe_id = r.id AND s.user_id = ?) AS viewer_starred", viewerID))
}

func scanSummary(rows pgx.Row) (models.RecipeSummary, error) {
	var s models.RecipeSummary
	err := rows.Scan(
		&s.ID, &s.AuthorID, &s.Title, &s.Description, &s.Category, &s.Visibility,
		&s.Ingredients, &s.Steps, &s.ImageKey, &s.StarsCount, &s.CreatedAt, &s.UpdatedAt,
		&s.Author.ID, &s.Author.DisplayName, &s.Author.Handle, &s.Author.AvatarKey,
		&s.ViewerStarred,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RecipeSummary{}, ErrNotFound
		}
		return models.RecipeSummary{}, fmt.Errorf("scan recipe summary: %w", err)
	}
	return s, nil
}

// FindSummary returns one recipe joined with author and viewer star state.
// It does NOT apply visibility; callers gate access through the evaluator
// first.
func (r *PostgresRecipeRepository) FindSummary(ctx context.Context, id, viewerID string) (models.RecipeSummary, error) {
	query, args, err := summarySelect(viewerID).Where(sq.Eq{"r.id": id}).ToSql()
	if err != nil {
		return models.RecipeSummary{}, fmt.Errorf("build summary query: %w", err)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.RecipeSummary{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return scanSummary(conn.QueryRow(ctx, query, args...))
}

// ListByAuthorHandle lists an author's recipes the viewer is allowed to see,
// newest first.
func (r *PostgresRecipeRepository) ListByAuthorHandle(ctx context.Context, handle, viewerID string, limit int) ([]models.RecipeSummary, error) {
	b := summarySelect(viewerID).
		Where(sq.Eq{"u.handle": handle}).
		Where(visibility.Predicate(viewerID)).
		OrderBy("r.created_at DESC").
		Limit(uint64(limit))
	return r.listSummaries(ctx, b)
}

// ListNetworkFeed lists everything visible to the viewer, newest first.
func (r *PostgresRecipeRepository) ListNetworkFeed(ctx context.Context, viewerID string, limit int) ([]models.RecipeSummary, error) {
	b := summarySelect(viewerID).
		Where(visibility.Predicate(viewerID)).
		OrderBy("r.created_at DESC").
		Limit(uint64(limit))
	return r.listSummaries(ctx, b)
}

// ListPopularFeed lists visible recipes created since the cutoff, most
// starred first.
func (r *PostgresRecipeRepository) ListPopularFeed(ctx context.Context, viewerID string, since time.Time, limit int) ([]models.RecipeSummary, error) {
	b := summarySelect(viewerID).
		Where(visibility.Predicate(viewerID)).
		Where(sq.Expr("r.created_at >= ?", since)).
		OrderBy("r.stars_count DESC", "r.created_at DESC").
		Limit(uint64(limit))
	return r.listSummaries(ctx, b)
}

func (r *PostgresRecipeRepository) listSummaries(ctx context.Context, b sq.SelectBuilder) ([]models.RecipeSummary, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recipes: %w", err)
	}
	defer rows.Close()

	var summaries []models.RecipeSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recipes: %w", err)
	}
	return summaries, nil
}

// Update applies a partial update. Only the supplied fields change.
func (r *PostgresRecipeRepository) Update(ctx context.Context, id string, patch RecipePatch) error {
	if patch.Empty() {
		return nil
	}

	b := sq.Update("recipes").PlaceholderFormat(sq.Dollar)
	if patch.Title != nil {
		b = b.Set("title", *patch.Title)
	}
	if patch.Description != nil {
		b = b.Set("description", *patch.Description)
	}
	if patch.Category != nil {
		b = b.Set("category", *patch.Category)
	}
	if patch.Visibility != nil {
		b = b.Set("visibility", *patch.Visibility)
	}
	if patch.Ingredients != nil {
		b = b.Set("ingredients", sq.Expr("?::jsonb", marshalStrings(*patch.Ingredients)))
	}
	if patch.Steps != nil {
		b = b.Set("steps", sq.Expr("?::jsonb", marshalStrings(*patch.Steps)))
	}
	if patch.ImageKey != nil {
		b = b.Set("image_key", *patch.ImageKey)
	}
	b = b.Set("updated_at", sq.Expr("now()")).Where(sq.Eq{"id": id})

	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build update query: %w", err)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update recipe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a recipe; stars and shares cascade.
func (r *PostgresRecipeRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM recipes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Share grants a user view access to a private recipe. Re-granting is a
// no-op, not an error.
func (r *PostgresRecipeRepository) Share(ctx context.Context, share models.RecipeShare) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO recipe_shares (id, recipe_id, shared_with_user_id, shared_by_user_id, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (recipe_id, shared_with_user_id) DO NOTHING
    `, share.ID, share.RecipeID, share.SharedWith, share.SharedBy, share.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert recipe share: %w", err)
	}
	return nil
}

// ShareExists reports whether the viewer holds an explicit grant on the recipe.
func (r *PostgresRecipeRepository) ShareExists(ctx context.Context, recipeID, userID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	err = conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM recipe_shares WHERE recipe_id = $1 AND shared_with_user_id = $2)
    `, recipeID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check recipe share: %w", err)
	}
	return exists, nil
}

// Star records the (user, recipe) star. The counter moves only when the
// insert actually created a row, and both writes share a transaction, so a
// repeated star cannot drift the count.
func (r *PostgresRecipeRepository) Star(ctx context.Context, userID, recipeID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            INSERT INTO stars (user_id, recipe_id, created_at)
            VALUES ($1, $2, now())
            ON CONFLICT (user_id, recipe_id) DO NOTHING
        `, userID, recipeID)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23503" {
				return ErrNotFound
			}
			return fmt.Errorf("insert star: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		if _, err := tx.Exec(ctx, `
            UPDATE recipes SET stars_count = stars_count + 1 WHERE id = $1
        `, recipeID); err != nil {
			return fmt.Errorf("increment star count: %w", err)
		}
		return nil
	})
}

// Unstar removes the star; the counter only moves when a row was deleted.
func (r *PostgresRecipeRepository) Unstar(ctx context.Context, userID, recipeID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return crdbpgxv5.ExecuteTx(ctx, conn, pgx.TxOptions{}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            DELETE FROM stars WHERE user_id = $1 AND recipe_id = $2
        `, userID, recipeID)
		if err != nil {
			return fmt.Errorf("delete star: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}

		if _, err := tx.Exec(ctx, `
            UPDATE recipes SET stars_count = GREATEST(stars_count - 1, 0) WHERE id = $1
        `, recipeID); err != nil {
			return fmt.Errorf("decrement star count: %w", err)
		}
		return nil
	})
}

// CountStars aggregates the join table directly.
func (r *PostgresRecipeRepository) CountStars(ctx context.Context, recipeID string) (int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var count int
	if err := conn.QueryRow(ctx, `SELECT count(*) FROM stars WHERE recipe_id = $1`, recipeID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count stars: %w", err)
	}
	return count, nil
}

func marshalStrings(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

var _ RecipeRepository = (*PostgresRecipeRepository)(nil)
