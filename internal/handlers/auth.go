package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/creamininja/backend/internal/auth"
	"github.com/creamininja/backend/internal/cookies"
	"github.com/creamininja/backend/internal/logging"
	"github.com/creamininja/backend/internal/middleware"
	"github.com/creamininja/backend/internal/models"
	"github.com/creamininja/backend/internal/repositories"
)

var handlePattern = regexp.MustCompile(`^[a-z0-9_]{3,24}$`)

// CookieSettings configure the session cookie pair issued on login.
type CookieSettings struct {
	Domain string
	Secure bool
}

// AuthHandler implements registration, login, logout and session introspection.
type AuthHandler struct {
	Users    UserStore
	Sessions SessionManager
	Captcha  CaptchaVerifier
	Limiter  RateLimiter
	Cookies  CookieSettings
	NowFunc  func() time.Time
}

type registerRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	DisplayName  string `json:"displayName"`
	Handle       string `json:"handle"`
	CaptchaToken string `json:"captchaToken"`
}

type loginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captchaToken"`
}

type authResponse struct {
	User userResponse `json:"user"`
}

// Register handles POST /auth/register.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "auth") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Handle = strings.TrimSpace(strings.ToLower(req.Handle))
	req.DisplayName = strings.TrimSpace(req.DisplayName)

	if msg := validateRegistration(req); msg != "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	if h.Captcha != nil {
		if err := h.Captcha.Verify(ctx, req.CaptchaToken, clientIP(r)); err != nil {
			respondError(ctx, w, err)
			return
		}
	}

	exists, err := h.Users.ExistsByEmailOrHandle(ctx, req.Email, req.Handle)
	if err != nil {
		logger.Error("registration lookup failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "unable to verify existing accounts"})
		return
	}
	if exists {
		respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "email or handle already taken"})
		return
	}

	hashed, err := auth.HashPassword(req.Password, auth.DefaultIterations)
	if err != nil {
		logger.Error("password hashing failed", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to secure password"})
		return
	}

	now := h.now()
	user := models.User{
		ID:           models.NewID("usr"),
		Email:        req.Email,
		PasswordHash: hashed,
		DisplayName:  req.DisplayName,
		Handle:       req.Handle,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondJSON(ctx, w, http.StatusConflict, map[string]string{"error": "email or handle already taken"})
			return
		}
		logger.Error("registration failed to create user", "error", err)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create account"})
		return
	}

	creds, err := h.Sessions.Create(ctx, user.ID)
	if err != nil {
		logger.Error("registration failed to issue session", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	setSessionCookies(w, creds, h.Sessions.TTL(), h.Cookies)
	respondJSON(ctx, w, http.StatusCreated, authResponse{User: renderUser(user)})
}

func validateRegistration(req registerRequest) string {
	if req.Email == "" || req.Password == "" || req.DisplayName == "" || req.Handle == "" {
		return "email, password, displayName and handle are required"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "invalid email address"
	}
	if len(req.Password) < 8 {
		return "password must be at least 8 characters"
	}
	if !handlePattern.MatchString(req.Handle) {
		return "handle must be 3-24 characters of a-z, 0-9 or underscore"
	}
	return ""
}

// Login handles POST /auth/login. Unknown email and wrong password produce
// the same response.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "auth") {
		respondJSON(ctx, w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		respondJSON(ctx, w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	user, err := h.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("login user lookup failed", "error", err)
		}
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	if !auth.VerifyPassword(req.Password, user.PasswordHash) {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondJSON(ctx, w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	creds, err := h.Sessions.Create(ctx, user.ID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
		return
	}

	setSessionCookies(w, creds, h.Sessions.TTL(), h.Cookies)
	respondJSON(ctx, w, http.StatusOK, authResponse{User: renderUser(user)})
}

// Logout handles POST /auth/logout. The CSRF middleware runs before this, so
// a stolen session cookie alone cannot end the session cross-site.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if token := cookies.Parse(r.Header.Get("Cookie"))[middleware.SessionCookieName]; token != "" {
		h.Sessions.Revoke(ctx, token)
	}

	clearSessionCookies(w, h.Cookies)
	respondJSON(ctx, w, http.StatusOK, map[string]string{"status": "logged out"})
}

// Me handles GET /auth/me.
func (h AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := middleware.MustIdentity(ctx)
	respondJSON(ctx, w, http.StatusOK, authResponse{User: renderUser(id.User)})
}

func (h AuthHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

func setSessionCookies(w http.ResponseWriter, creds auth.Credentials, ttl time.Duration, settings CookieSettings) {
	maxAge := cookies.MaxAgeSeconds(int(ttl.Seconds()))
	w.Header().Add("Set-Cookie", cookies.Serialize(middleware.SessionCookieName, creds.Token, cookies.Options{
		Domain:   settings.Domain,
		HTTPOnly: true,
		Secure:   settings.Secure,
		MaxAge:   maxAge,
	}))
	// The CSRF cookie stays script-readable so the frontend can echo it in
	// the X-CSRF-Token header.
	w.Header().Add("Set-Cookie", cookies.Serialize(middleware.CSRFCookieName, creds.CSRFToken, cookies.Options{
		Domain: settings.Domain,
		Secure: settings.Secure,
		MaxAge: maxAge,
	}))
}

func clearSessionCookies(w http.ResponseWriter, settings CookieSettings) {
	expired := cookies.MaxAgeSeconds(0)
	w.Header().Add("Set-Cookie", cookies.Serialize(middleware.SessionCookieName, "", cookies.Options{
		Domain:   settings.Domain,
		HTTPOnly: true,
		Secure:   settings.Secure,
		MaxAge:   expired,
	}))
	w.Header().Add("Set-Cookie", cookies.Serialize(middleware.CSRFCookieName, "", cookies.Options{
		Domain: settings.Domain,
		Secure: settings.Secure,
		MaxAge: expired,
	}))
}
