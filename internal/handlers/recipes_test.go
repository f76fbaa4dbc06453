package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/creamininja/backend/internal/visibility"
)

func newRecipeHandler(env *testEnv) RecipeHandler {
	return RecipeHandler{Users: env.users, Friends: env.friends, Recipes: env.recipes, Storage: env.storage}
}

func getRecipe(t *testing.T, handler RecipeHandler, id string, viewer string, env *testEnv) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/recipes/"+id, nil)
	req.SetPathValue("id", id)
	if viewer != "" {
		user, err := env.users.FindByID(req.Context(), viewer)
		if err != nil {
			t.Fatalf("viewer %s not seeded", viewer)
		}
		req = asUser(req, user)
	}
	rec := httptest.NewRecorder()
	handler.Get(rec, req)
	return rec
}

func TestRecipeGetVisibility(t *testing.T) {
	env := newTestEnv()
	env.addUser("usr_owner", "owner")
	env.addUser("usr_friend", "friend")
	env.addUser("usr_shared", "shared")
	env.addUser("usr_other", "other")
	env.friends.befriend("usr_owner", "usr_friend")
	env.addRecipe("rcp_pub", "usr_owner", "public")
	env.addRecipe("rcp_res", "usr_owner", "restricted")
	env.addRecipe("rcp_prv", "usr_owner", "private")
	env.recipes.shares["rcp_prv"] = map[string]bool{"usr_shared": true}

	handler := newRecipeHandler(env)

	cases := []struct {
		name       string
		recipeID   string
		viewer     string
		wantStatus int
	}{
		{"public anonymous", "rcp_pub", "", http.StatusOK},
		{"public stranger", "rcp_pub", "usr_other", http.StatusOK},
		{"restricted owner", "rcp_res", "usr_owner", http.StatusOK},
		{"restricted friend", "rcp_res", "usr_friend", http.StatusOK},
		{"restricted stranger", "rcp_res", "usr_other", http.StatusNotFound},
		{"restricted anonymous", "rcp_res", "", http.StatusNotFound},
		{"private owner", "rcp_prv", "usr_owner", http.StatusOK},
		{"private shared", "rcp_prv", "usr_shared", http.StatusOK},
		{"private friend without share", "rcp_prv", "usr_friend", http.StatusNotFound},
		{"missing recipe", "rcp_ghost", "usr_owner", http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := getRecipe(t, handler, tc.recipeID, tc.viewer, env)
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRecipeGetHidesExistence(t *testing.T) {
	env := newTestEnv()
	env.addUser("usr_owner", "owner")
	env.addUser("usr_other", "other")
	env.addRecipe("rcp_res", "usr_owner", "restricted")

	handler := newRecipeHandler(env)

	invisible := getRecipe(t, handler, "rcp_res", "usr_other", env)
	missing := getRecipe(t, handler, "rcp_ghost", "usr_other", env)

	if invisible.Code != http.StatusNotFound || missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404/404 got %d/%d", invisible.Code, missing.Code)
	}
	if invisible.Body.String() != missing.Body.String() {
		t.Fatalf("denial leaks existence: %q vs %q", invisible.Body.String(), missing.Body.String())
	}
}

func TestRecipeCreate(t *testing.T) {
	env := newTestEnv()
	author := env.addUser("usr_1", "ada")
	handler := newRecipeHandler(env)

	body := `{"title":"Vanilla Bean","visibility":"restricted","ingredients":["2 cups cream"],"steps":["churn"]}`
	req := asUser(httptest.NewRequest(http.MethodPost, "/recipes", strings.NewReader(body)), author)
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Recipe recipeResponse `json:"recipe"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Recipe.Author.ID != "usr_1" || resp.Recipe.Visibility != "restricted" {
		t.Fatalf("unexpected recipe %+v", resp.Recipe)
	}
	if _, ok := env.recipes.recipes[resp.Recipe.ID]; !ok {
		t.Fatal("recipe not persisted")
	}
}

func TestRecipeCreateDefaultsToPrivate(t *testing.T) {
	env := newTestEnv()
	author := env.addUser("usr_1", "ada")
	handler := newRecipeHandler(env)

	req := asUser(httptest.NewRequest(http.MethodPost, "/recipes", strings.NewReader(`{"title":"Plain"}`)), author)
	rec := httptest.NewRecorder()
	handler.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d", rec.Code)
	}
	for _, recipe := range env.recipes.recipes {
		if recipe.Visibility != string(visibility.TierPrivate) {
			t.Fatalf("default visibility = %q, want private", recipe.Visibility)
		}
	}
}

func TestRecipeCreateValidation(t *testing.T) {
	env := newTestEnv()
	author := env.addUser("usr_1", "ada")
	handler := newRecipeHandler(env)

	for _, body := range []string{"{", `{"title":""}`, `{"title":"T","visibility":"friends"}`} {
		req := asUser(httptest.NewRequest(http.MethodPost, "/recipes", strings.NewReader(body)), author)
		rec := httptest.NewRecorder()
		handler.Create(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400 got %d", body, rec.Code)
		}
	}
}

func TestRecipeUpdateAuthorOnly(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("usr_owner", "owner")
	friend := env.addUser("usr_friend", "friend")
	stranger := env.addUser("usr_other", "other")
	env.friends.befriend("usr_owner", "usr_friend")
	env.addRecipe("rcp_1", "usr_owner", "restricted")

	handler := newRecipeHandler(env)

	patch := func(asWho string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/recipes/rcp_1", strings.NewReader(`{"title":"Renamed"}`))
		req.SetPathValue("id", "rcp_1")
		switch asWho {
		case "owner":
			req = asUser(req, owner)
		case "friend":
			req = asUser(req, friend)
		case "stranger":
			req = asUser(req, stranger)
		}
		rec := httptest.NewRecorder()
		handler.Update(rec, req)
		return rec
	}

	if rec := patch("owner"); rec.Code != http.StatusOK {
		t.Fatalf("owner patch: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if env.recipes.recipes["rcp_1"].Title != "Renamed" {
		t.Fatal("patch did not apply")
	}
	// A friend can see the restricted recipe but cannot edit it.
	if rec := patch("friend"); rec.Code != http.StatusForbidden {
		t.Fatalf("friend patch: expected 403 got %d", rec.Code)
	}
	// A stranger cannot even learn it exists.
	if rec := patch("stranger"); rec.Code != http.StatusNotFound {
		t.Fatalf("stranger patch: expected 404 got %d", rec.Code)
	}
}

func TestRecipeUpdatePartial(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("usr_owner", "owner")
	recipe := env.addRecipe("rcp_1", "usr_owner", "private")

	handler := newRecipeHandler(env)

	req := httptest.NewRequest(http.MethodPatch, "/recipes/rcp_1", strings.NewReader(`{"visibility":"public"}`))
	req.SetPathValue("id", "rcp_1")
	req = asUser(req, owner)
	rec := httptest.NewRecorder()
	handler.Update(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	updated := env.recipes.recipes["rcp_1"]
	if updated.Visibility != "public" {
		t.Fatalf("visibility not updated: %q", updated.Visibility)
	}
	if updated.Title != recipe.Title {
		t.Fatalf("untouched field changed: %q -> %q", recipe.Title, updated.Title)
	}
}

func TestRecipeDelete(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("usr_owner", "owner")
	env.addRecipe("rcp_1", "usr_owner", "public")

	handler := newRecipeHandler(env)

	req := httptest.NewRequest(http.MethodDelete, "/recipes/rcp_1", nil)
	req.SetPathValue("id", "rcp_1")
	req = asUser(req, owner)
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if _, ok := env.recipes.recipes["rcp_1"]; ok {
		t.Fatal("recipe not deleted")
	}
}

func TestRecipeDeleteRemovesImageObject(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("usr_owner", "owner")
	recipe := env.addRecipe("rcp_1", "usr_owner", "public")
	recipe.ImageKey = "recipe/usr_owner/img_1.png"
	env.recipes.recipes["rcp_1"] = recipe
	env.storage.putObject(recipe.ImageKey, "image/png", "png-bytes")

	handler := newRecipeHandler(env)

	req := httptest.NewRequest(http.MethodDelete, "/recipes/rcp_1", nil)
	req.SetPathValue("id", "rcp_1")
	req = asUser(req, owner)
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if _, ok := env.storage.objects[recipe.ImageKey]; ok {
		t.Fatal("image object not removed")
	}
	if len(env.storage.deleted) != 1 || env.storage.deleted[0] != recipe.ImageKey {
		t.Fatalf("expected image key deletion, got %v", env.storage.deleted)
	}
}

func TestRecipeShareGrantsPrivateAccess(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("usr_owner", "owner")
	env.addUser("usr_other", "other")
	env.addRecipe("rcp_1", "usr_owner", "private")

	handler := newRecipeHandler(env)

	share := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/recipes/rcp_1/share", strings.NewReader(`{"userId":"usr_other"}`))
		req.SetPathValue("id", "rcp_1")
		req = asUser(req, owner)
		rec := httptest.NewRecorder()
		handler.Share(rec, req)
		return rec
	}

	if rec := getRecipe(t, handler, "rcp_1", "usr_other", env); rec.Code != http.StatusNotFound {
		t.Fatalf("pre-share: expected 404 got %d", rec.Code)
	}
	if rec := share(); rec.Code != http.StatusOK {
		t.Fatalf("share: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := getRecipe(t, handler, "rcp_1", "usr_other", env); rec.Code != http.StatusOK {
		t.Fatalf("post-share: expected 200 got %d", rec.Code)
	}
	// Re-granting is a no-op, not an error.
	if rec := share(); rec.Code != http.StatusOK {
		t.Fatalf("repeat share: expected 200 got %d", rec.Code)
	}
}

func TestRecipeShareUnknownUser(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("usr_owner", "owner")
	env.addRecipe("rcp_1", "usr_owner", "private")

	handler := newRecipeHandler(env)

	req := httptest.NewRequest(http.MethodPost, "/recipes/rcp_1/share", strings.NewReader(`{"userId":"usr_ghost"}`))
	req.SetPathValue("id", "rcp_1")
	req = asUser(req, owner)
	rec := httptest.NewRecorder()
	handler.Share(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestRecipeStarToggle(t *testing.T) {
	env := newTestEnv()
	env.addUser("usr_owner", "owner")
	viewer := env.addUser("usr_viewer", "viewer")
	env.addRecipe("rcp_1", "usr_owner", "public")

	handler := newRecipeHandler(env)

	call := func(method string, h http.HandlerFunc) map[string]any {
		req := httptest.NewRequest(method, "/recipes/rcp_1/star", nil)
		req.SetPathValue("id", "rcp_1")
		req = asUser(req, viewer)
		rec := httptest.NewRecorder()
		h(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
		}
		var resp map[string]any
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return resp
	}

	if resp := call(http.MethodPost, handler.Star); resp["starsCount"].(float64) != 1 || resp["viewerStarred"] != true {
		t.Fatalf("star: unexpected response %+v", resp)
	}
	// Starring twice does not double count.
	if resp := call(http.MethodPost, handler.Star); resp["starsCount"].(float64) != 1 {
		t.Fatalf("repeat star: unexpected response %+v", resp)
	}
	if resp := call(http.MethodDelete, handler.Unstar); resp["starsCount"].(float64) != 0 || resp["viewerStarred"] != false {
		t.Fatalf("unstar: unexpected response %+v", resp)
	}
	if resp := call(http.MethodDelete, handler.Unstar); resp["starsCount"].(float64) != 0 {
		t.Fatalf("repeat unstar: unexpected response %+v", resp)
	}
}

func TestRecipeStarRequiresVisibility(t *testing.T) {
	env := newTestEnv()
	env.addUser("usr_owner", "owner")
	stranger := env.addUser("usr_other", "other")
	env.addRecipe("rcp_1", "usr_owner", "restricted")

	handler := newRecipeHandler(env)

	req := httptest.NewRequest(http.MethodPost, "/recipes/rcp_1/star", nil)
	req.SetPathValue("id", "rcp_1")
	req = asUser(req, stranger)
	rec := httptest.NewRecorder()
	handler.Star(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestListByAuthorFiltersByViewer(t *testing.T) {
	env := newTestEnv()
	env.addUser("usr_owner", "owner")
	env.addUser("usr_friend", "friend")
	env.friends.befriend("usr_owner", "usr_friend")
	env.addRecipe("rcp_pub", "usr_owner", "public")
	env.addRecipe("rcp_res", "usr_owner", "restricted")
	env.addRecipe("rcp_prv", "usr_owner", "private")

	handler := newRecipeHandler(env)

	countFor := func(viewer string) int {
		req := httptest.NewRequest(http.MethodGet, "/users/owner/recipes", nil)
		req.SetPathValue("handle", "owner")
		if viewer != "" {
			user, _ := env.users.FindByID(req.Context(), viewer)
			req = asUser(req, user)
		}
		rec := httptest.NewRecorder()
		handler.ListByAuthor(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rec.Code)
		}
		var resp struct {
			Recipes []recipeResponse `json:"recipes"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return len(resp.Recipes)
	}

	if n := countFor(""); n != 1 {
		t.Fatalf("anonymous sees %d recipes, want 1", n)
	}
	if n := countFor("usr_friend"); n != 2 {
		t.Fatalf("friend sees %d recipes, want 2", n)
	}
	if n := countFor("usr_owner"); n != 3 {
		t.Fatalf("owner sees %d recipes, want 3", n)
	}
}
