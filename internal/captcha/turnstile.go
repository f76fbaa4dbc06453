// Package captcha verifies bot-protection tokens submitted with signup
// requests against Cloudflare Turnstile.
package captcha

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

const defaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Verifier checks Turnstile tokens. When Bypass is set every token passes,
// which keeps local development and tests from needing provider credentials.
type Verifier struct {
	httpClient *http.Client
	verifyURL  string
	secretKey  string
	bypass     bool
}

// NewVerifier builds a verifier from configuration.
func NewVerifier(cfg config.CaptchaConfig) *Verifier {
	return &Verifier{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		verifyURL:  defaultVerifyURL,
		secretKey:  cfg.SecretKey,
		bypass:     cfg.Bypass,
	}
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks the token with the provider. A failed check returns a
// validation error; provider outages surface as upstream errors so the caller
// does not mistake them for bad tokens.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) error {
	if v.bypass {
		return nil
	}
	if strings.TrimSpace(token) == "" {
		return apperrors.Validation("captcha token is required")
	}

	form := url.Values{}
	form.Set("secret", v.secretKey)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build captcha request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return apperrors.Upstream("captcha verification failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apperrors.Upstream("captcha verification failed", fmt.Errorf("provider returned %d", resp.StatusCode))
	}

	var decoded verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return apperrors.Upstream("captcha verification failed", err)
	}
	if !decoded.Success {
		return apperrors.Validation("captcha verification failed")
	}
	return nil
}
