package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/creamininja/backend/internal/cookies"
	"github.com/creamininja/backend/internal/logging"
	"github.com/creamininja/backend/internal/models"
	"github.com/creamininja/backend/internal/oauth"
	"github.com/creamininja/backend/internal/repositories"
)

const (
	oauthStateCookie = "cn_oauth_state"
	oauthProvider    = "google"
)

// OAuthHandler completes the Google sign-in flow: redirect out with a state
// cookie, then exchange the returned code and establish a local session.
type OAuthHandler struct {
	Users    UserStore
	Accounts OAuthStore
	Sessions SessionManager
	Google   GoogleExchanger
	Cookies  CookieSettings
	NowFunc  func() time.Time
}

// GoogleStart handles GET /auth/oauth/google/start.
func (h OAuthHandler) GoogleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Google == nil || !h.Google.Enabled() {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "google sign-in is not available"})
		return
	}

	state := uuid.NewString()
	w.Header().Add("Set-Cookie", cookies.Serialize(oauthStateCookie, state, cookies.Options{
		Domain:   h.Cookies.Domain,
		HTTPOnly: true,
		Secure:   h.Cookies.Secure,
		MaxAge:   cookies.MaxAgeSeconds(600),
	}))
	http.Redirect(w, r, h.Google.AuthURL(state), http.StatusFound)
}

// GoogleCallback handles GET /auth/oauth/google/callback.
func (h OAuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if h.Google == nil || !h.Google.Enabled() {
		respondJSON(ctx, w, http.StatusNotFound, map[string]string{"error": "google sign-in is not available"})
		return
	}

	expected := cookies.Parse(r.Header.Get("Cookie"))[oauthStateCookie]
	state := r.URL.Query().Get("state")
	if expected == "" || state == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "state mismatch"})
		return
	}

	profile, err := h.Google.Exchange(ctx, r.URL.Query().Get("code"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	user, err := h.resolveUser(r, profile)
	if err != nil {
		logger.Error("oauth user resolution failed", "error", err, "subject", profile.Subject)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to sign in"})
		return
	}

	creds, err := h.Sessions.Create(ctx, user.ID)
	if err != nil {
		logger.Error("oauth failed to issue session", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	// Drop the one-time state cookie along with issuing the session pair.
	w.Header().Add("Set-Cookie", cookies.Serialize(oauthStateCookie, "", cookies.Options{
		Domain:   h.Cookies.Domain,
		HTTPOnly: true,
		Secure:   h.Cookies.Secure,
		MaxAge:   cookies.MaxAgeSeconds(0),
	}))
	setSessionCookies(w, creds, h.Sessions.TTL(), h.Cookies)
	http.Redirect(w, r, "/", http.StatusFound)
}

// resolveUser maps the asserted Google identity onto a local account: an
// existing link wins, then an account matching the verified email is linked,
// and failing both a new account is created.
func (h OAuthHandler) resolveUser(r *http.Request, profile oauth.Profile) (models.User, error) {
	ctx := r.Context()

	user, err := h.Accounts.FindUserBySubject(ctx, oauthProvider, profile.Subject)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return models.User{}, err
	}

	now := h.now()

	user, err = h.Users.FindByEmail(ctx, strings.ToLower(profile.Email))
	if errors.Is(err, repositories.ErrNotFound) {
		user = models.User{
			ID:          models.NewID("usr"),
			Email:       strings.ToLower(profile.Email),
			DisplayName: displayNameFor(profile),
			Handle:      h.availableHandle(r, profile.Email),
			AvatarKey:   "",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := h.Users.Create(ctx, user); err != nil {
			return models.User{}, err
		}
	} else if err != nil {
		return models.User{}, err
	}

	link := models.OAuthAccount{
		ID:        models.NewID("oau"),
		UserID:    user.ID,
		Provider:  oauthProvider,
		Subject:   profile.Subject,
		CreatedAt: now,
	}
	if err := h.Accounts.Link(ctx, link); err != nil && !errors.Is(err, repositories.ErrConflict) {
		return models.User{}, err
	}
	return user, nil
}

func displayNameFor(profile oauth.Profile) string {
	if name := strings.TrimSpace(profile.Name); name != "" {
		return name
	}
	local, _, _ := strings.Cut(profile.Email, "@")
	return local
}

// availableHandle derives a handle from the email local part, falling back to
// a random suffix when the natural choice is taken.
func (h OAuthHandler) availableHandle(r *http.Request, email string) string {
	base := sanitizeHandle(email)

	taken, err := h.Users.ExistsByEmailOrHandle(r.Context(), "", base)
	if err == nil && !taken {
		return base
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	if len(base) > 17 {
		base = base[:17]
	}
	return base + "_" + suffix
}

func sanitizeHandle(email string) string {
	local, _, _ := strings.Cut(strings.ToLower(email), "@")
	var b strings.Builder
	for _, c := range local {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	handle := b.String()
	if len(handle) > 24 {
		handle = handle[:24]
	}
	if len(handle) < 3 {
		handle = "chef_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	}
	return handle
}

func (h OAuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
