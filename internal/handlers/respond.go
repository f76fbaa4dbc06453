package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/creamininja/backend/internal/apperrors"
	"github.com/creamininja/backend/internal/logging"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// respondError renders err according to its classification code. Only the
// user-facing message goes to the client; causes stay in the log.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := statusForCode(code)

	message := "internal error"
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && code != apperrors.CodeInternal {
		message = appErr.Message
		if appErr.Cause != nil {
			logging.FromContext(ctx).Error("request error", "code", string(code), "error", err)
		}
	} else {
		logging.FromContext(ctx).Error("internal error", "error", err)
	}

	respondJSON(ctx, w, status, map[string]string{"error": message})
}

func statusForCode(code apperrors.Code) int {
	switch code {
	case apperrors.CodeValidation:
		return http.StatusBadRequest
	case apperrors.CodeUnauthenticated:
		return http.StatusUnauthorized
	case apperrors.CodeForbidden:
		return http.StatusForbidden
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeConflict:
		return http.StatusConflict
	case apperrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
