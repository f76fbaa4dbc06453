package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/creamininja/backend/internal/ai"
	"github.com/creamininja/backend/internal/logging"
	"github.com/creamininja/backend/internal/middleware"
	"github.com/creamininja/backend/internal/storage"
)

// AIHandler exposes recipe generation. Both routes sit behind RequireAuth and
// are rate limited per user rather than per IP, since a single abusive
// account behind a NAT should not burn everyone's quota.
type AIHandler struct {
	Generator RecipeGenerator
	Storage   ObjectStorage
	Limiter   RateLimiter
}

func (h AIHandler) allow(userID string) bool {
	if h.Limiter == nil {
		return true
	}
	return h.Limiter.Allow("ai:" + userID)
}

func (h AIHandler) available(w http.ResponseWriter, r *http.Request) bool {
	ctx := r.Context()
	if h.Generator == nil || !h.Generator.Enabled() {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "recipe generation is not available"})
		return false
	}
	caller := middleware.MustIdentity(ctx).User
	if !h.allow(caller.ID) {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return false
	}
	return true
}

type fromIngredientsRequest struct {
	Ingredients []string `json:"ingredients"`
	Notes       string   `json:"notes"`
}

type generationResponse struct {
	Recipe ai.GeneratedRecipe `json:"recipe"`
}

// FromIngredients handles POST /ai/from-ingredients.
func (h AIHandler) FromIngredients(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.available(w, r) {
		return
	}

	var req fromIngredientsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Ingredients) == 0 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "at least one ingredient is required"})
		return
	}

	prompt := "Create a recipe using these ingredients: " + strings.Join(req.Ingredients, ", ") + "."
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		prompt += " Additional notes: " + notes
	}

	recipe, err := h.Generator.Generate(ctx, prompt, nil)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, generationResponse{Recipe: recipe})
}

type fromImageRequest struct {
	ImageKey string `json:"imageKey"`
	Notes    string `json:"notes"`
}

// FromImage handles POST /ai/from-image: generate from a previously uploaded
// image. The key must be one of the caller's own uploads.
func (h AIHandler) FromImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	caller := middleware.MustIdentity(ctx).User

	if !h.available(w, r) {
		return
	}

	var req fromImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	parsed, err := storage.ParseKey(req.ImageKey)
	if err != nil || parsed.OwnerID != caller.ID {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "imageKey must be one of your uploads"})
		return
	}

	obj, err := h.Storage.Get(ctx, req.ImageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "image not found"})
			return
		}
		logger.Error("image fetch failed", "error", err, "key", req.ImageKey)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load image"})
		return
	}
	defer obj.Body.Close()

	data, err := io.ReadAll(io.LimitReader(obj.Body, maxUploadBytes+1))
	if err != nil {
		logger.Error("image read failed", "error", err, "key", req.ImageKey)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load image"})
		return
	}
	if len(data) > maxUploadBytes {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "image is too large"})
		return
	}

	prompt := "Create a recipe matching the dessert or ingredients shown in the image."
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		prompt += " Additional notes: " + notes
	}

	image := &ai.ImageInput{
		MIMEType: obj.ContentType,
		Base64:   base64.StdEncoding.EncodeToString(data),
	}
	recipe, err := h.Generator.Generate(ctx, prompt, image)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, generationResponse{Recipe: recipe})
}
