package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/creamininja/backend/internal/logging"
	"github.com/creamininja/backend/internal/middleware"
	"github.com/creamininja/backend/internal/models"
	"github.com/creamininja/backend/internal/repositories"
	"github.com/creamininja/backend/internal/storage"
	"github.com/creamininja/backend/internal/visibility"
)

// maxUploadBytes caps declared upload sizes at 2.5 MB.
const maxUploadBytes = 2_500_000

// UploadHandler issues presigned upload URLs and gates object reads. Objects
// are never public: every read re-checks the viewer's access to the owning
// entity.
type UploadHandler struct {
	Users   UserStore
	Friends FriendStore
	Recipes RecipeStore
	Storage ObjectStorage
}

type presignRequest struct {
	Kind        string `json:"kind"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

type presignResponse struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
}

// Presign handles POST /uploads/presign.
func (h UploadHandler) Presign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	caller := middleware.MustIdentity(ctx).User

	var req presignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Kind != storage.KindAvatar && req.Kind != storage.KindRecipe {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "kind must be avatar or recipe"})
		return
	}
	ext := storage.ExtensionFor(req.ContentType)
	if ext == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "content type must be image/jpeg, image/png or image/webp"})
		return
	}
	if req.Size <= 0 || req.Size > maxUploadBytes {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "size must be positive and at most " + strconv.Itoa(maxUploadBytes) + " bytes"})
		return
	}

	key := storage.BuildKey(req.Kind, caller.ID, models.NewID("img"), ext)
	uploadURL, err := h.Storage.PresignPut(ctx, key, req.ContentType)
	if err != nil {
		logger.Error("presign failed", "error", err, "key", key)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to prepare upload"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, presignResponse{Key: key, UploadURL: uploadURL})
}

type setAvatarRequest struct {
	Key string `json:"key"`
}

// SetAvatar handles POST /uploads/set-avatar. An empty key clears the avatar;
// a non-empty key must be an avatar-kind key owned by the caller.
func (h UploadHandler) SetAvatar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	caller := middleware.MustIdentity(ctx).User

	var req setAvatarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if req.Key != "" {
		parsed, err := storage.ParseKey(req.Key)
		if err != nil || parsed.Kind != storage.KindAvatar || parsed.OwnerID != caller.ID {
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "key must be one of your avatar uploads"})
			return
		}
	}

	if err := h.Users.UpdateAvatar(ctx, caller.ID, req.Key); err != nil {
		logger.Error("set avatar failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update avatar"})
		return
	}

	if prev := caller.AvatarKey; prev != "" && prev != req.Key {
		if err := h.Storage.Delete(ctx, prev); err != nil {
			logger.Warn("delete previous avatar failed", "error", err, "key", prev)
		}
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"avatarKey": req.Key})
}

// File handles GET /uploads/file/{key...}. Avatar objects use the reduced
// owner-or-friend policy. Recipe objects resolve the owning recipe by image
// key, not by trusting the owner id embedded in the key, and apply the full
// tier policy. Every denial is a 404.
func (h UploadHandler) File(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	caller := middleware.MustIdentity(ctx).User

	key := r.PathValue("key")
	parsed, err := storage.ParseKey(key)
	if err != nil {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	facts := visibilityFacts{Friends: h.Friends, Recipes: h.Recipes}

	var allowed bool
	switch parsed.Kind {
	case storage.KindAvatar:
		allowed, err = visibility.CanViewAvatar(ctx, facts, caller.ID, parsed.OwnerID)
	case storage.KindRecipe:
		var recipe models.Recipe
		recipe, err = h.Recipes.FindByImageKey(ctx, key)
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		if err == nil {
			allowed, err = visibility.CanView(ctx, facts, caller.ID, recipe.AuthorID, visibility.Tier(recipe.Visibility), recipe.ID)
		}
	}
	if err != nil {
		logger.Error("upload access check failed", "error", err, "key", key)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load file"})
		return
	}
	if !allowed {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	obj, err := h.Storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		logger.Error("object fetch failed", "error", err, "key", key)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load file"})
		return
	}
	defer obj.Body.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	if _, err := io.Copy(w, obj.Body); err != nil {
		logger.Warn("object stream interrupted", "error", err, "key", key)
	}
}
