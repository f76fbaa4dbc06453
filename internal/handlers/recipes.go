package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/creamininja/backend/internal/logging"
	"github.com/creamininja/backend/internal/middleware"
	"github.com/creamininja/backend/internal/models"
	"github.com/creamininja/backend/internal/repositories"
	"github.com/creamininja/backend/internal/visibility"
)

// RecipeHandler implements recipe CRUD, sharing and starring.
type RecipeHandler struct {
	Users   UserStore
	Friends FriendStore
	Recipes RecipeStore
	Storage ObjectStorage
	NowFunc func() time.Time
}

func (h RecipeHandler) facts() visibilityFacts {
	return visibilityFacts{Friends: h.Friends, Recipes: h.Recipes}
}

func viewerID(r *http.Request) string {
	if id, ok := middleware.IdentityFromContext(r.Context()); ok {
		return id.User.ID
	}
	return visibility.Anonymous
}

type recipeRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Visibility  string   `json:"visibility"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	ImageKey    string   `json:"imageKey"`
}

// Create handles POST /recipes.
func (h RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	author := middleware.MustIdentity(ctx).User

	var req recipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if req.Visibility == "" {
		req.Visibility = string(visibility.TierPrivate)
	}
	if !visibility.Tier(req.Visibility).Valid() {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "visibility must be private, restricted or public"})
		return
	}

	now := h.now()
	recipe := models.Recipe{
		ID:          models.NewID("rcp"),
		AuthorID:    author.ID,
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Category:    strings.TrimSpace(req.Category),
		Visibility:  req.Visibility,
		Ingredients: req.Ingredients,
		Steps:       req.Steps,
		ImageKey:    req.ImageKey,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.Recipes.Create(ctx, recipe); err != nil {
		logger.Error("create recipe failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create recipe"})
		return
	}

	summary, err := h.Recipes.FindSummary(ctx, recipe.ID, author.ID)
	if err != nil {
		logger.Error("load created recipe failed", "error", err, "recipeId", recipe.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load recipe"})
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{"recipe": renderRecipe(summary)})
}

// Get handles GET /recipes/{id}. A recipe the viewer cannot see responds
// exactly like one that does not exist.
func (h RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	viewer := viewerID(r)

	summary, err := h.Recipes.FindSummary(ctx, r.PathValue("id"), viewer)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "recipe not found"})
			return
		}
		logger.Error("load recipe failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load recipe"})
		return
	}

	allowed, err := visibility.CanView(ctx, h.facts(), viewer, summary.AuthorID, visibility.Tier(summary.Visibility), summary.ID)
	if err != nil {
		logger.Error("visibility check failed", "error", err, "recipeId", summary.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load recipe"})
		return
	}
	if !allowed {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "recipe not found"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"recipe": renderRecipe(summary)})
}

// ListByAuthor handles GET /users/{handle}/recipes, filtered to what the
// viewer may see.
func (h RecipeHandler) ListByAuthor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	summaries, err := h.Recipes.ListByAuthorHandle(ctx, r.PathValue("handle"), viewerID(r), feedLimit)
	if err != nil {
		logger.Error("list author recipes failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load recipes"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"recipes": renderRecipes(summaries)})
}

type recipePatchRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Category    *string   `json:"category"`
	Visibility  *string   `json:"visibility"`
	Ingredients *[]string `json:"ingredients"`
	Steps       *[]string `json:"steps"`
	ImageKey    *string   `json:"imageKey"`
}

// Update handles PATCH /recipes/{id}. Author only; absent fields stay as they
// are.
func (h RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	viewer := middleware.MustIdentity(ctx).User

	recipe, ok := h.loadOwned(w, r, viewer.ID)
	if !ok {
		return
	}

	var req recipePatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "title cannot be empty"})
		return
	}
	if req.Visibility != nil && !visibility.Tier(*req.Visibility).Valid() {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "visibility must be private, restricted or public"})
		return
	}

	patch := repositories.RecipePatch{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Visibility:  req.Visibility,
		Ingredients: req.Ingredients,
		Steps:       req.Steps,
		ImageKey:    req.ImageKey,
	}

	if err := h.Recipes.Update(ctx, recipe.ID, patch); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "recipe not found"})
			return
		}
		logger.Error("update recipe failed", "error", err, "recipeId", recipe.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update recipe"})
		return
	}

	summary, err := h.Recipes.FindSummary(ctx, recipe.ID, viewer.ID)
	if err != nil {
		logger.Error("load updated recipe failed", "error", err, "recipeId", recipe.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load recipe"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"recipe": renderRecipe(summary)})
}

// Delete handles DELETE /recipes/{id}. Author only.
func (h RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	viewer := middleware.MustIdentity(ctx).User

	recipe, ok := h.loadOwned(w, r, viewer.ID)
	if !ok {
		return
	}

	if err := h.Recipes.Delete(ctx, recipe.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		logger.Error("delete recipe failed", "error", err, "recipeId", recipe.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to delete recipe"})
		return
	}

	// The row is authoritative; a stale object only wastes bucket space.
	if recipe.ImageKey != "" && h.Storage != nil {
		if err := h.Storage.Delete(ctx, recipe.ImageKey); err != nil {
			logger.Warn("delete recipe image failed", "error", err, "key", recipe.ImageKey)
		}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "deleted"})
}

type shareRequest struct {
	UserID string `json:"userId"`
}

// Share handles POST /recipes/{id}/share: the author grants one user access
// to a private recipe. Granting again is a no-op.
func (h RecipeHandler) Share(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	viewer := middleware.MustIdentity(ctx).User

	recipe, ok := h.loadOwned(w, r, viewer.ID)
	if !ok {
		return
	}

	var req shareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.UserID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "userId is required"})
		return
	}
	if req.UserID == viewer.ID {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "cannot share a recipe with yourself"})
		return
	}

	if _, err := h.Users.FindByID(ctx, req.UserID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		logger.Error("share target lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to share recipe"})
		return
	}

	share := models.RecipeShare{
		ID:         models.NewID("shr"),
		RecipeID:   recipe.ID,
		SharedWith: req.UserID,
		SharedBy:   viewer.ID,
		CreatedAt:  h.now(),
	}
	if err := h.Recipes.Share(ctx, share); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "recipe not found"})
			return
		}
		logger.Error("share recipe failed", "error", err, "recipeId", recipe.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to share recipe"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "shared"})
}

// Star handles POST /recipes/{id}/star. Starring requires the viewer to be
// able to see the recipe; repeats are no-ops.
func (h RecipeHandler) Star(w http.ResponseWriter, r *http.Request) {
	h.toggleStar(w, r, h.Recipes.Star)
}

// Unstar handles DELETE /recipes/{id}/star.
func (h RecipeHandler) Unstar(w http.ResponseWriter, r *http.Request) {
	h.toggleStar(w, r, h.Recipes.Unstar)
}

func (h RecipeHandler) toggleStar(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, userID, recipeID string) error) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	viewer := middleware.MustIdentity(ctx).User

	recipe, ok := h.loadVisible(w, r, viewer.ID)
	if !ok {
		return
	}

	if err := action(ctx, viewer.ID, recipe.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "recipe not found"})
			return
		}
		logger.Error("star toggle failed", "error", err, "recipeId", recipe.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update star"})
		return
	}

	summary, err := h.Recipes.FindSummary(ctx, recipe.ID, viewer.ID)
	if err != nil {
		logger.Error("load starred recipe failed", "error", err, "recipeId", recipe.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load recipe"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"starsCount":    summary.StarsCount,
		"viewerStarred": summary.ViewerStarred,
	})
}

// loadOwned fetches the recipe and enforces that the caller authored it. A
// recipe the caller cannot even see responds 404; one they can see but do not
// own responds 403.
func (h RecipeHandler) loadOwned(w http.ResponseWriter, r *http.Request, callerID string) (models.Recipe, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	recipe, err := h.Recipes.Find(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "recipe not found"})
			return models.Recipe{}, false
		}
		logger.Error("load recipe failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load recipe"})
		return models.Recipe{}, false
	}

	if recipe.AuthorID != callerID {
		allowed, err := visibility.CanView(ctx, h.facts(), callerID, recipe.AuthorID, visibility.Tier(recipe.Visibility), recipe.ID)
		if err != nil {
			logger.Error("visibility check failed", "error", err, "recipeId", recipe.ID)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load recipe"})
			return models.Recipe{}, false
		}
		if !allowed {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "recipe not found"})
			return models.Recipe{}, false
		}
		respondJSON(ctx, w, http.StatusForbidden, map[string]string{"error": "only the author can do that"})
		return models.Recipe{}, false
	}

	return recipe, true
}

// loadVisible fetches the recipe and enforces the view policy only.
func (h RecipeHandler) loadVisible(w http.ResponseWriter, r *http.Request, callerID string) (models.Recipe, bool) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	recipe, err := h.Recipes.Find(ctx, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "recipe not found"})
			return models.Recipe{}, false
		}
		logger.Error("load recipe failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load recipe"})
		return models.Recipe{}, false
	}

	allowed, err := visibility.CanView(ctx, h.facts(), callerID, recipe.AuthorID, visibility.Tier(recipe.Visibility), recipe.ID)
	if err != nil {
		logger.Error("visibility check failed", "error", err, "recipeId", recipe.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load recipe"})
		return models.Recipe{}, false
	}
	if !allowed {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "recipe not found"})
		return models.Recipe{}, false
	}

	return recipe, true
}

func (h RecipeHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
