package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/creamininja/backend/internal/logging"
	"github.com/creamininja/backend/internal/middleware"
	"github.com/creamininja/backend/internal/repositories"
)

// FriendHandler implements the friendship endpoints. Every route here sits
// behind RequireAuth.
type FriendHandler struct {
	Users   UserStore
	Friends FriendStore
}

type friendsResponse struct {
	Friends  []friendEntryResponse `json:"friends"`
	Incoming []friendEntryResponse `json:"incoming"`
	Outgoing []friendEntryResponse `json:"outgoing"`
}

// List handles GET /friends: accepted friends plus both pending directions.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	viewer := middleware.MustIdentity(ctx).User

	friends, err := h.Friends.ListFriends(ctx, viewer.ID)
	if err != nil {
		logger.Error("list friends failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load friends"})
		return
	}
	incoming, err := h.Friends.ListPendingIncoming(ctx, viewer.ID)
	if err != nil {
		logger.Error("list incoming requests failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load friends"})
		return
	}
	outgoing, err := h.Friends.ListPendingOutgoing(ctx, viewer.ID)
	if err != nil {
		logger.Error("list outgoing requests failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to load friends"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, friendsResponse{
		Friends:  renderFriendEntries(friends),
		Incoming: renderFriendEntries(incoming),
		Outgoing: renderFriendEntries(outgoing),
	})
}

type sendRequestBody struct {
	To string `json:"to"`
}

// SendRequest handles POST /friends/requests. The target is addressed by
// handle or email.
func (h FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	viewer := middleware.MustIdentity(ctx).User

	var body sendRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	body.To = strings.TrimSpace(strings.ToLower(body.To))
	if body.To == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "recipient handle or email is required"})
		return
	}

	target, err := h.Users.FindByHandleOrEmail(ctx, body.To)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "user not found"})
			return
		}
		logger.Error("friend target lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to send request"})
		return
	}

	request, err := h.Friends.SendRequest(ctx, viewer.ID, target.ID)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrSelfRequest):
			respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "cannot befriend yourself"})
		case errors.Is(err, repositories.ErrAlreadyFriends):
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "already friends"})
		case errors.Is(err, repositories.ErrRequestPending):
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "request already pending"})
		case errors.Is(err, repositories.ErrNotFound):
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "user not found"})
		default:
			logger.Error("send friend request failed", "error", err)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to send request"})
		}
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]string{"requestId": request.ID, "status": request.Status})
}

// Accept handles POST /friends/requests/{id}/accept.
func (h FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.Friends.Accept)
}

// Reject handles POST /friends/requests/{id}/reject.
func (h FriendHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.Friends.Reject)
}

func (h FriendHandler) respond(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, requestID, byUserID string) error) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	viewer := middleware.MustIdentity(ctx).User

	requestID := r.PathValue("id")
	if requestID == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "request id is required"})
		return
	}

	if err := action(ctx, requestID, viewer.ID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "request not found"})
		case errors.Is(err, repositories.ErrRequestNotPending):
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "request already resolved"})
		default:
			logger.Error("friend request response failed", "error", err, "requestId", requestID)
			respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to update request"})
		}
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

// Search handles GET /friends/search?q=.
func (h FriendHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	viewer := middleware.MustIdentity(ctx).User

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(query) < 2 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "query must be at least 2 characters"})
		return
	}

	results, err := h.Friends.SearchUsers(ctx, viewer.ID, query, 20)
	if err != nil {
		logger.Error("user search failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "search failed"})
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"results": renderSearchResults(results)})
}
