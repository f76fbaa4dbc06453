package handlers

import (
	"time"

	"github.com/creamininja/backend/internal/models"
)

// Wire projections. Database rows never serialize directly; these types pin
// the JSON surface so storage changes cannot silently leak new fields.

type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	Handle      string    `json:"handle"`
	AvatarKey   string    `json:"avatarKey,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func renderUser(u models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Handle:      u.Handle,
		AvatarKey:   u.AvatarKey,
		CreatedAt:   u.CreatedAt,
	}
}

type userRefResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Handle      string `json:"handle"`
	AvatarKey   string `json:"avatarKey,omitempty"`
}

func renderUserRef(u models.UserRef) userRefResponse {
	return userRefResponse{ID: u.ID, DisplayName: u.DisplayName, Handle: u.Handle, AvatarKey: u.AvatarKey}
}

type recipeResponse struct {
	ID            string          `json:"id"`
	Author        userRefResponse `json:"author"`
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	Category      string          `json:"category,omitempty"`
	Visibility    string          `json:"visibility"`
	Ingredients   []string        `json:"ingredients"`
	Steps         []string        `json:"steps"`
	ImageKey      string          `json:"imageKey,omitempty"`
	StarsCount    int             `json:"starsCount"`
	ViewerStarred bool            `json:"viewerStarred"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func renderRecipe(s models.RecipeSummary) recipeResponse {
	ingredients := s.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}
	steps := s.Steps
	if steps == nil {
		steps = []string{}
	}
	return recipeResponse{
		ID:            s.ID,
		Author:        renderUserRef(s.Author),
		Title:         s.Title,
		Description:   s.Description,
		Category:      s.Category,
		Visibility:    s.Visibility,
		Ingredients:   ingredients,
		Steps:         steps,
		ImageKey:      s.ImageKey,
		StarsCount:    s.StarsCount,
		ViewerStarred: s.ViewerStarred,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

func renderRecipes(summaries []models.RecipeSummary) []recipeResponse {
	out := make([]recipeResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, renderRecipe(s))
	}
	return out
}

type friendEntryResponse struct {
	User      userRefResponse `json:"user"`
	RequestID string          `json:"requestId"`
	CreatedAt time.Time       `json:"createdAt"`
}

func renderFriendEntries(entries []models.FriendEntry) []friendEntryResponse {
	out := make([]friendEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, friendEntryResponse{
			User:      renderUserRef(e.UserRef),
			RequestID: e.RequestID,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

type searchResultResponse struct {
	User     userRefResponse `json:"user"`
	Relation string          `json:"relation"`
}

func renderSearchResults(results []models.UserSearchResult) []searchResultResponse {
	out := make([]searchResultResponse, 0, len(results))
	for _, r := range results {
		out = append(out, searchResultResponse{User: renderUserRef(r.UserRef), Relation: r.Relation})
	}
	return out
}
