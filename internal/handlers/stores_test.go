package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/creamininja/backend/internal/ai"
	"github.com/creamininja/backend/internal/middleware"
	"github.com/creamininja/backend/internal/models"
	"github.com/creamininja/backend/internal/repositories"
	"github.com/creamininja/backend/internal/storage"
	"github.com/creamininja/backend/internal/visibility"
)

// In-memory stores mirroring the repository contracts, shared by the handler
// tests in this package.

type memUserStore struct {
	users map[string]models.User
}

func newMemUserStore() *memUserStore {
	return &memUserStore{users: make(map[string]models.User)}
}

func (s *memUserStore) put(user models.User) {
	s.users[user.ID] = user
}

func (s *memUserStore) Create(_ context.Context, user models.User) error {
	for _, existing := range s.users {
		if existing.Email == user.Email || existing.Handle == user.Handle {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *memUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memUserStore) FindByHandleOrEmail(_ context.Context, handleOrEmail string) (models.User, error) {
	for _, user := range s.users {
		if user.Handle == handleOrEmail || user.Email == handleOrEmail {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memUserStore) ExistsByEmailOrHandle(_ context.Context, email, handle string) (bool, error) {
	for _, user := range s.users {
		if (email != "" && user.Email == email) || (handle != "" && user.Handle == handle) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memUserStore) UpdateAvatar(_ context.Context, userID, avatarKey string) error {
	user, ok := s.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	user.AvatarKey = avatarKey
	s.users[userID] = user
	return nil
}

type memFriendStore struct {
	users    *memUserStore
	requests map[string]models.FriendRequest
	edges    map[string]map[string]bool
}

func newMemFriendStore(users *memUserStore) *memFriendStore {
	return &memFriendStore{
		users:    users,
		requests: make(map[string]models.FriendRequest),
		edges:    make(map[string]map[string]bool),
	}
}

func (s *memFriendStore) addEdge(a, b string) {
	if s.edges[a] == nil {
		s.edges[a] = make(map[string]bool)
	}
	s.edges[a][b] = true
}

func (s *memFriendStore) befriend(a, b string) {
	s.addEdge(a, b)
	s.addEdge(b, a)
}

func (s *memFriendStore) SendRequest(_ context.Context, fromID, toID string) (models.FriendRequest, error) {
	if fromID == toID {
		return models.FriendRequest{}, repositories.ErrSelfRequest
	}
	if s.edges[fromID][toID] {
		return models.FriendRequest{}, repositories.ErrAlreadyFriends
	}
	for _, req := range s.requests {
		if req.Status == models.RequestStatusPending &&
			((req.FromUserID == fromID && req.ToUserID == toID) || (req.FromUserID == toID && req.ToUserID == fromID)) {
			return models.FriendRequest{}, repositories.ErrRequestPending
		}
	}
	request := models.FriendRequest{
		ID:         models.NewID("frq"),
		FromUserID: fromID,
		ToUserID:   toID,
		Status:     models.RequestStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	s.requests[request.ID] = request
	return request, nil
}

func (s *memFriendStore) respond(requestID, byUserID, status string) error {
	request, ok := s.requests[requestID]
	if !ok || request.ToUserID != byUserID {
		return repositories.ErrNotFound
	}
	if request.Status != models.RequestStatusPending {
		return repositories.ErrRequestNotPending
	}
	request.Status = status
	now := time.Now().UTC()
	request.RespondedAt = &now
	s.requests[requestID] = request
	if status == models.RequestStatusAccepted {
		s.befriend(request.FromUserID, request.ToUserID)
	}
	return nil
}

func (s *memFriendStore) Accept(_ context.Context, requestID, byUserID string) error {
	return s.respond(requestID, byUserID, models.RequestStatusAccepted)
}

func (s *memFriendStore) Reject(_ context.Context, requestID, byUserID string) error {
	return s.respond(requestID, byUserID, models.RequestStatusRejected)
}

func (s *memFriendStore) entryFor(userID, requestID string, createdAt time.Time) models.FriendEntry {
	entry := models.FriendEntry{RequestID: requestID, CreatedAt: createdAt}
	if user, ok := s.users.users[userID]; ok {
		entry.UserRef = models.UserRef{ID: user.ID, DisplayName: user.DisplayName, Handle: user.Handle, AvatarKey: user.AvatarKey}
	} else {
		entry.UserRef = models.UserRef{ID: userID}
	}
	return entry
}

func (s *memFriendStore) ListFriends(_ context.Context, userID string) ([]models.FriendEntry, error) {
	var out []models.FriendEntry
	for friendID := range s.edges[userID] {
		out = append(out, s.entryFor(friendID, "", time.Time{}))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memFriendStore) ListPendingIncoming(_ context.Context, userID string) ([]models.FriendEntry, error) {
	var out []models.FriendEntry
	for _, req := range s.requests {
		if req.Status == models.RequestStatusPending && req.ToUserID == userID {
			out = append(out, s.entryFor(req.FromUserID, req.ID, req.CreatedAt))
		}
	}
	return out, nil
}

func (s *memFriendStore) ListPendingOutgoing(_ context.Context, userID string) ([]models.FriendEntry, error) {
	var out []models.FriendEntry
	for _, req := range s.requests {
		if req.Status == models.RequestStatusPending && req.FromUserID == userID {
			out = append(out, s.entryFor(req.ToUserID, req.ID, req.CreatedAt))
		}
	}
	return out, nil
}

func (s *memFriendStore) AreFriends(_ context.Context, userID, friendID string) (bool, error) {
	return s.edges[userID][friendID], nil
}

func (s *memFriendStore) SearchUsers(_ context.Context, viewerID, query string, limit int) ([]models.UserSearchResult, error) {
	query = strings.ToLower(query)
	var out []models.UserSearchResult
	for _, user := range s.users.users {
		if user.ID == viewerID {
			continue
		}
		if !strings.Contains(strings.ToLower(user.Handle), query) && !strings.Contains(strings.ToLower(user.DisplayName), query) {
			continue
		}
		relation := models.RelationNone
		if s.edges[viewerID][user.ID] {
			relation = models.RelationFriend
		}
		out = append(out, models.UserSearchResult{
			UserRef:  models.UserRef{ID: user.ID, DisplayName: user.DisplayName, Handle: user.Handle},
			Relation: relation,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type memRecipeStore struct {
	users   *memUserStore
	friends *memFriendStore
	recipes map[string]models.Recipe
	stars   map[string]map[string]bool
	shares  map[string]map[string]bool
}

func newMemRecipeStore(users *memUserStore, friends *memFriendStore) *memRecipeStore {
	return &memRecipeStore{
		users:   users,
		friends: friends,
		recipes: make(map[string]models.Recipe),
		stars:   make(map[string]map[string]bool),
		shares:  make(map[string]map[string]bool),
	}
}

func (s *memRecipeStore) Create(_ context.Context, recipe models.Recipe) error {
	s.recipes[recipe.ID] = recipe
	return nil
}

func (s *memRecipeStore) Find(_ context.Context, id string) (models.Recipe, error) {
	if recipe, ok := s.recipes[id]; ok {
		return recipe, nil
	}
	return models.Recipe{}, repositories.ErrNotFound
}

func (s *memRecipeStore) summarize(recipe models.Recipe, viewerID string) models.RecipeSummary {
	summary := models.RecipeSummary{Recipe: recipe}
	if author, ok := s.users.users[recipe.AuthorID]; ok {
		summary.Author = models.UserRef{ID: author.ID, DisplayName: author.DisplayName, Handle: author.Handle, AvatarKey: author.AvatarKey}
	}
	if viewerID != visibility.Anonymous {
		summary.ViewerStarred = s.stars[viewerID][recipe.ID]
	}
	return summary
}

func (s *memRecipeStore) FindSummary(ctx context.Context, id, viewerID string) (models.RecipeSummary, error) {
	recipe, err := s.Find(ctx, id)
	if err != nil {
		return models.RecipeSummary{}, err
	}
	return s.summarize(recipe, viewerID), nil
}

func (s *memRecipeStore) FindByImageKey(_ context.Context, imageKey string) (models.Recipe, error) {
	for _, recipe := range s.recipes {
		if recipe.ImageKey == imageKey {
			return recipe, nil
		}
	}
	return models.Recipe{}, repositories.ErrNotFound
}

func (s *memRecipeStore) Update(_ context.Context, id string, patch repositories.RecipePatch) error {
	recipe, ok := s.recipes[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if patch.Title != nil {
		recipe.Title = *patch.Title
	}
	if patch.Description != nil {
		recipe.Description = *patch.Description
	}
	if patch.Category != nil {
		recipe.Category = *patch.Category
	}
	if patch.Visibility != nil {
		recipe.Visibility = *patch.Visibility
	}
	if patch.Ingredients != nil {
		recipe.Ingredients = *patch.Ingredients
	}
	if patch.Steps != nil {
		recipe.Steps = *patch.Steps
	}
	if patch.ImageKey != nil {
		recipe.ImageKey = *patch.ImageKey
	}
	recipe.UpdatedAt = time.Now().UTC()
	s.recipes[id] = recipe
	return nil
}

func (s *memRecipeStore) Delete(_ context.Context, id string) error {
	if _, ok := s.recipes[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.recipes, id)
	return nil
}

func (s *memRecipeStore) visible(recipe models.Recipe, viewerID string) bool {
	facts := visibility.Facts{
		ViewerIsFriendOfOwner: s.friends.edges[viewerID][recipe.AuthorID],
		ViewerHasShare:        s.shares[recipe.ID][viewerID],
	}
	return visibility.Evaluate(viewerID, recipe.AuthorID, visibility.Tier(recipe.Visibility), facts)
}

func (s *memRecipeStore) list(viewerID string, keep func(models.Recipe) bool) []models.RecipeSummary {
	var out []models.RecipeSummary
	for _, recipe := range s.recipes {
		if !keep(recipe) || !s.visible(recipe, viewerID) {
			continue
		}
		out = append(out, s.summarize(recipe, viewerID))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *memRecipeStore) ListByAuthorHandle(_ context.Context, handle, viewerID string, limit int) ([]models.RecipeSummary, error) {
	out := s.list(viewerID, func(r models.Recipe) bool {
		author, ok := s.users.users[r.AuthorID]
		return ok && author.Handle == handle
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memRecipeStore) ListNetworkFeed(_ context.Context, viewerID string, limit int) ([]models.RecipeSummary, error) {
	out := s.list(viewerID, func(models.Recipe) bool { return true })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memRecipeStore) ListPopularFeed(_ context.Context, viewerID string, since time.Time, limit int) ([]models.RecipeSummary, error) {
	out := s.list(viewerID, func(r models.Recipe) bool { return !r.CreatedAt.Before(since) })
	sort.Slice(out, func(i, j int) bool { return out[i].StarsCount > out[j].StarsCount })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memRecipeStore) Share(_ context.Context, share models.RecipeShare) error {
	if _, ok := s.recipes[share.RecipeID]; !ok {
		return repositories.ErrNotFound
	}
	if s.shares[share.RecipeID] == nil {
		s.shares[share.RecipeID] = make(map[string]bool)
	}
	s.shares[share.RecipeID][share.SharedWith] = true
	return nil
}

func (s *memRecipeStore) ShareExists(_ context.Context, recipeID, userID string) (bool, error) {
	return s.shares[recipeID][userID], nil
}

func (s *memRecipeStore) Star(_ context.Context, userID, recipeID string) error {
	recipe, ok := s.recipes[recipeID]
	if !ok {
		return repositories.ErrNotFound
	}
	if s.stars[userID] == nil {
		s.stars[userID] = make(map[string]bool)
	}
	if s.stars[userID][recipeID] {
		return nil
	}
	s.stars[userID][recipeID] = true
	recipe.StarsCount++
	s.recipes[recipeID] = recipe
	return nil
}

func (s *memRecipeStore) Unstar(_ context.Context, userID, recipeID string) error {
	recipe, ok := s.recipes[recipeID]
	if !ok {
		return repositories.ErrNotFound
	}
	if !s.stars[userID][recipeID] {
		return nil
	}
	delete(s.stars[userID], recipeID)
	recipe.StarsCount--
	s.recipes[recipeID] = recipe
	return nil
}

func (s *memRecipeStore) CountStars(_ context.Context, recipeID string) (int, error) {
	count := 0
	for _, starred := range s.stars {
		if starred[recipeID] {
			count++
		}
	}
	return count, nil
}

type stubObject struct {
	contentType string
	body        []byte
}

type stubStorage struct {
	objects    map[string]stubObject
	presignErr error
	presigned  []string
	deleted    []string
}

func newStubStorage() *stubStorage {
	return &stubStorage{objects: make(map[string]stubObject)}
}

func (s *stubStorage) putObject(key, contentType, body string) {
	s.objects[key] = stubObject{contentType: contentType, body: []byte(body)}
}

func (s *stubStorage) PresignPut(_ context.Context, key, contentType string) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	s.presigned = append(s.presigned, key)
	return "https://uploads.example/" + key + "?signed", nil
}

func (s *stubStorage) Get(_ context.Context, key string) (storage.Object, error) {
	obj, ok := s.objects[key]
	if !ok {
		return storage.Object{}, storage.ErrObjectNotFound
	}
	return storage.Object{
		ContentType: obj.contentType,
		Size:        int64(len(obj.body)),
		Body:        io.NopCloser(bytes.NewReader(obj.body)),
	}, nil
}

func (s *stubStorage) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	s.deleted = append(s.deleted, key)
	return nil
}

type stubGenerator struct {
	enabled bool
	recipe  ai.GeneratedRecipe
	err     error

	gotPrompt string
	gotImage  *ai.ImageInput
}

func (g *stubGenerator) Enabled() bool { return g.enabled }

func (g *stubGenerator) Generate(_ context.Context, prompt string, image *ai.ImageInput) (ai.GeneratedRecipe, error) {
	g.gotPrompt = prompt
	g.gotImage = image
	if g.err != nil {
		return ai.GeneratedRecipe{}, g.err
	}
	return g.recipe, nil
}

type stubCaptcha struct {
	err    error
	tokens []string
}

func (c *stubCaptcha) Verify(_ context.Context, token, _ string) error {
	c.tokens = append(c.tokens, token)
	return c.err
}

type denyLimiter struct{}

func (denyLimiter) Allow(string) bool { return false }

// testEnv bundles linked in-memory stores for handler tests.
type testEnv struct {
	users   *memUserStore
	friends *memFriendStore
	recipes *memRecipeStore
	storage *stubStorage
}

func newTestEnv() *testEnv {
	users := newMemUserStore()
	friends := newMemFriendStore(users)
	return &testEnv{
		users:   users,
		friends: friends,
		recipes: newMemRecipeStore(users, friends),
		storage: newStubStorage(),
	}
}

func (e *testEnv) addUser(id, handle string) models.User {
	user := models.User{
		ID:          id,
		Email:       handle + "@example.test",
		DisplayName: strings.ToUpper(handle[:1]) + handle[1:],
		Handle:      handle,
		CreatedAt:   time.Now().UTC(),
	}
	e.users.put(user)
	return user
}

func (e *testEnv) addRecipe(id, authorID, tier string) models.Recipe {
	recipe := models.Recipe{
		ID:          id,
		AuthorID:    authorID,
		Title:       "Recipe " + id,
		Visibility:  tier,
		Ingredients: []string{"cream"},
		Steps:       []string{"churn"},
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	e.recipes.recipes[id] = recipe
	return recipe
}

// asUser attaches an authenticated identity the way the session middleware
// would.
func asUser(r *http.Request, user models.User) *http.Request {
	return r.WithContext(middleware.WithIdentity(r.Context(), middleware.Identity{
		User:    user,
		Session: models.Session{ID: "ses_test", UserID: user.ID, CSRFToken: "csrf-test"},
	}))
}
