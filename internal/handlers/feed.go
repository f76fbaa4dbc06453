package handlers

import (
	"net/http"
	"time"

	"github.com/creamininja/backend/internal/logging"
	"github.com/creamininja/backend/internal/middleware"
	"github.com/creamininja/backend/internal/visibility"
)

const feedLimit = 50

// FeedHandler serves the network and popular feeds.
type FeedHandler struct {
	Recipes RecipeStore
	NowFunc func() time.Time
}

// Network handles GET /feed/network: everything the viewer may see, newest
// first. Anonymous viewers get an empty list rather than the public firehose.
func (h FeedHandler) Network(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	id, ok := middleware.IdentityFromContext(ctx)
	if !ok {
		respondJSON(ctx, w, http.StatusOK, map[string]any{"recipes": []recipeResponse{}})
		return
	}

	summaries, err := h.Recipes.ListNetworkFeed(ctx, id.User.ID, feedLimit)
	if err != nil {
		logger.Error("network feed failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load feed"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"recipes": renderRecipes(summaries)})
}

// Popular handles GET /feed/popular?window=day|week|month|all: visible
// recipes within the window, most starred first. Open to anonymous viewers,
// who see the public tier only.
func (h FeedHandler) Popular(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	since, ok := windowCutoff(r.URL.Query().Get("window"), h.now())
	if !ok {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "window must be day, week, month or all"})
		return
	}

	viewer := visibility.Anonymous
	if id, idOK := middleware.IdentityFromContext(ctx); idOK {
		viewer = id.User.ID
	}

	summaries, err := h.Recipes.ListPopularFeed(ctx, viewer, since, feedLimit)
	if err != nil {
		logger.Error("popular feed failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load feed"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"recipes": renderRecipes(summaries)})
}

func windowCutoff(window string, now time.Time) (time.Time, bool) {
	switch window {
	case "day":
		return now.Add(-24 * time.Hour), true
	case "", "week":
		return now.Add(-7 * 24 * time.Hour), true
	case "month":
		return now.Add(-30 * 24 * time.Hour), true
	case "all":
		return time.Time{}, true
	}
	return time.Time{}, false
}

func (h FeedHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
