// Package oauth exchanges Google authorization codes for verified profiles.
package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/creamininja/backend/internal/apperrors"
	"github.com/creamininja/backend/internal/config"
)

const (
	defaultAuthorizeURL = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL     = "https://oauth2.googleapis.com/token"
	defaultUserinfoURL  = "https://openidconnect.googleapis.com/v1/userinfo"
)

// Profile is the identity Google asserts for an exchanged code.
type Profile struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// GoogleClient runs the authorization-code exchange against Google.
type GoogleClient struct {
	httpClient   *http.Client
	tokenURL     string
	userinfoURL  string
	clientID     string
	clientSecret string
	redirectURL  string
}

// NewGoogleClient builds a client from configuration.
func NewGoogleClient(cfg config.OAuthConfig) *GoogleClient {
	return &GoogleClient{
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		tokenURL:     defaultTokenURL,
		userinfoURL:  defaultUserinfoURL,
		clientID:     cfg.GoogleClientID,
		clientSecret: cfg.GoogleClientSecret,
		redirectURL:  cfg.GoogleRedirectURL,
	}
}

// Enabled reports whether the Google integration is configured.
func (c *GoogleClient) Enabled() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// AuthURL builds the consent-screen URL the browser is redirected to. The
// caller generates state and pins it in a cookie for the callback check.
func (c *GoogleClient) AuthURL(state string) string {
	q := url.Values{}
	q.Set("client_id", c.clientID)
	q.Set("redirect_uri", c.redirectURL)
	q.Set("response_type", "code")
	q.Set("scope", "openid email profile")
	q.Set("state", state)
	return defaultAuthorizeURL + "?" + q.Encode()
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Exchange trades the authorization code for the user's profile. A rejected
// code is a validation error; transport and provider failures are upstream.
func (c *GoogleClient) Exchange(ctx context.Context, code string) (Profile, error) {
	if !c.Enabled() {
		return Profile{}, apperrors.Upstream("google sign-in is not configured", nil)
	}
	if strings.TrimSpace(code) == "" {
		return Profile{}, apperrors.Validation("authorization code is required")
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("redirect_uri", c.redirectURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Profile{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, apperrors.Upstream("google token exchange failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
		return Profile{}, apperrors.Validation("authorization code was rejected")
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, apperrors.Upstream("google token exchange failed", fmt.Errorf("provider returned %d", resp.StatusCode))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return Profile{}, apperrors.Upstream("google token exchange failed", err)
	}
	if token.AccessToken == "" {
		return Profile{}, apperrors.Upstream("google token exchange failed", fmt.Errorf("empty access token"))
	}

	return c.fetchProfile(ctx, token.AccessToken)
}

func (c *GoogleClient) fetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userinfoURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Profile{}, apperrors.Upstream("google profile lookup failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Profile{}, apperrors.Upstream("google profile lookup failed", fmt.Errorf("provider returned %d", resp.StatusCode))
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Profile{}, apperrors.Upstream("google profile lookup failed", err)
	}
	if profile.Subject == "" || profile.Email == "" {
		return Profile{}, apperrors.Upstream("google profile lookup failed", fmt.Errorf("profile missing subject or email"))
	}
	return profile, nil
}
