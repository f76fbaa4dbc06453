package handlers

import (
	"net/http"
	"time"

	"github.com/creamininja/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users     UserStore
	Sessions  SessionManager
	Friends   FriendStore
	Recipes   RecipeStore
	Accounts  OAuthStore
	Storage   ObjectStorage
	Generator RecipeGenerator
	Captcha   CaptchaVerifier
	Google    GoogleExchanger

	AuthLimiter RateLimiter
	AILimiter   RateLimiter

	Cookies CookieSettings
	NowFunc func() time.Time
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Session
// resolution and CSRF enforcement happen in the outer middleware chain;
// routes that need a caller wrap themselves in RequireAuth here.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{
		Users:    deps.Users,
		Sessions: deps.Sessions,
		Captcha:  deps.Captcha,
		Limiter:  deps.AuthLimiter,
		Cookies:  deps.Cookies,
		NowFunc:  deps.NowFunc,
	}
	oauth := OAuthHandler{
		Users:    deps.Users,
		Accounts: deps.Accounts,
		Sessions: deps.Sessions,
		Google:   deps.Google,
		Cookies:  deps.Cookies,
		NowFunc:  deps.NowFunc,
	}
	friends := FriendHandler{Users: deps.Users, Friends: deps.Friends}
	recipes := RecipeHandler{Users: deps.Users, Friends: deps.Friends, Recipes: deps.Recipes, Storage: deps.Storage, NowFunc: deps.NowFunc}
	feed := FeedHandler{Recipes: deps.Recipes, NowFunc: deps.NowFunc}
	uploads := UploadHandler{Users: deps.Users, Friends: deps.Friends, Recipes: deps.Recipes, Storage: deps.Storage}
	generation := AIHandler{Generator: deps.Generator, Storage: deps.Storage, Limiter: deps.AILimiter}

	authed := func(h http.HandlerFunc) http.Handler {
		return middleware.RequireAuth(h)
	}

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /auth/register", auth.Register)
	mux.HandleFunc("POST /auth/login", auth.Login)
	mux.HandleFunc("POST /auth/logout", auth.Logout)
	mux.Handle("GET /auth/me", authed(auth.Me))
	mux.HandleFunc("GET /auth/oauth/google/start", oauth.GoogleStart)
	mux.HandleFunc("GET /auth/oauth/google/callback", oauth.GoogleCallback)

	mux.Handle("GET /friends", authed(friends.List))
	mux.Handle("GET /friends/search", authed(friends.Search))
	mux.Handle("POST /friends/requests", authed(friends.SendRequest))
	mux.Handle("POST /friends/requests/{id}/accept", authed(friends.Accept))
	mux.Handle("POST /friends/requests/{id}/reject", authed(friends.Reject))

	mux.Handle("POST /recipes", authed(recipes.Create))
	mux.HandleFunc("GET /recipes/{id}", recipes.Get)
	mux.Handle("PATCH /recipes/{id}", authed(recipes.Update))
	mux.Handle("DELETE /recipes/{id}", authed(recipes.Delete))
	mux.Handle("POST /recipes/{id}/share", authed(recipes.Share))
	mux.Handle("POST /recipes/{id}/star", authed(recipes.Star))
	mux.Handle("DELETE /recipes/{id}/star", authed(recipes.Unstar))
	mux.HandleFunc("GET /users/{handle}/recipes", recipes.ListByAuthor)

	mux.HandleFunc("GET /feed/network", feed.Network)
	mux.HandleFunc("GET /feed/popular", feed.Popular)

	mux.Handle("POST /uploads/presign", authed(uploads.Presign))
	mux.Handle("POST /uploads/set-avatar", authed(uploads.SetAvatar))
	mux.Handle("GET /uploads/file/{key...}", authed(uploads.File))

	mux.Handle("POST /ai/from-ingredients", authed(generation.FromIngredients))
	mux.Handle("POST /ai/from-image", authed(generation.FromImage))
}
