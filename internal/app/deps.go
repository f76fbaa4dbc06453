package app

import (
	"context"
	"time"

	"github.com/creamininja/backend/internal/ai"
	"github.com/creamininja/backend/internal/auth"
	"github.com/creamininja/backend/internal/captcha"
	"github.com/creamininja/backend/internal/config"
	"github.com/creamininja/backend/internal/db"
	"github.com/creamininja/backend/internal/handlers"
	"github.com/creamininja/backend/internal/middleware"
	"github.com/creamininja/backend/internal/oauth"
	"github.com/creamininja/backend/internal/repositories"
	"github.com/creamininja/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The session manager is returned separately because the resolver
// middleware needs it outside the handler graph.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, *auth.Manager, error) {
	store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	sessions := auth.NewManager(cfg.SessionTTL, repositories.NewPostgresSessionStore(pool))

	deps := handlers.Dependencies{
		Users:     repositories.NewPostgresUserRepository(pool),
		Sessions:  sessions,
		Friends:   repositories.NewPostgresFriendRepository(pool),
		Recipes:   repositories.NewPostgresRecipeRepository(pool),
		Accounts:  repositories.NewPostgresOAuthRepository(pool),
		Storage:   store,
		Generator: ai.NewGenerator(cfg.AI),
		Captcha:   captcha.NewVerifier(cfg.Captcha),
		Google:    oauth.NewGoogleClient(cfg.OAuth),

		AuthLimiter: middleware.NewKeyRateLimiter(cfg.AuthRateLimit, cfg.RateLimitWindow, cfg.AuthRateLimit, 10*time.Minute),
		AILimiter:   middleware.NewKeyRateLimiter(cfg.AIRateLimit, cfg.RateLimitWindow, cfg.AIRateLimit, 10*time.Minute),

		Cookies: handlers.CookieSettings{
			Domain: cfg.CookieDomain,
			Secure: cfg.CookiesSecure(),
		},
	}

	return deps, sessions, nil
}
