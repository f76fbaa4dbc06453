package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewID returns a prefixed identifier such as "usr_8f14...". The prefix makes
// ids self-describing in logs and foreign keys.
func NewID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}

// User represents an account within the platform.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	Handle       string
	AvatarKey    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is an authenticated browser session. Only the SHA-256 hash of the
// bearer token is ever persisted; the token itself lives in the cn_session
// cookie on the client.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	CSRFToken string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is past its absolute expiry.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// OAuthAccount links an external identity-provider subject to a local user.
// Unique per (Provider, Subject).
type OAuthAccount struct {
	ID        string
	UserID    string
	Provider  string
	Subject   string
	CreatedAt time.Time
}

// Recipe is the primary shared content type.
type Recipe struct {
	ID          string
	AuthorID    string
	Title       string
	Description string
	Category    string
	Visibility  string
	Ingredients []string
	Steps       []string
	ImageKey    string
	StarsCount  int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RecipeSummary is a recipe joined with its author, as returned by feed and
// detail queries. ViewerStarred is always false for anonymous viewers.
type RecipeSummary struct {
	Recipe
	Author        UserRef
	ViewerStarred bool
}

// UserRef is the public projection of a user embedded in other payloads.
type UserRef struct {
	ID          string
	DisplayName string
	Handle      string
	AvatarKey   string
}

// RecipeShare grants a single user view access to a private recipe.
type RecipeShare struct {
	ID         string
	RecipeID   string
	SharedWith string
	SharedBy   string
	CreatedAt  time.Time
}

// FriendRequest records a proposal from one user to another. Status moves
// pending -> accepted or pending -> rejected and never transitions again;
// retrying after a terminal state inserts a fresh row.
type FriendRequest struct {
	ID          string
	FromUserID  string
	ToUserID    string
	Status      string
	CreatedAt   time.Time
	RespondedAt *time.Time
}

const (
	RequestStatusPending  = "pending"
	RequestStatusAccepted = "accepted"
	RequestStatusRejected = "rejected"
)

// Friendship is one direction of a mutual relationship. Accepting a request
// creates both directions together, so each row independently answers "does
// UserID consider FriendID a friend".
type Friendship struct {
	UserID    string
	FriendID  string
	CreatedAt time.Time
}

// FriendEntry is a friend (or requester) joined with their public profile.
type FriendEntry struct {
	UserRef
	RequestID string
	CreatedAt time.Time
}

// Relationship statuses reported by user search.
const (
	RelationNone            = "none"
	RelationFriend          = "friend"
	RelationPendingOutgoing = "pending_outgoing"
	RelationPendingIncoming = "pending_incoming"
)

// UserSearchResult is a search hit annotated with the viewer's relationship.
type UserSearchResult struct {
	UserRef
	Relation string
}
