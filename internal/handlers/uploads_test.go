package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/creamininja/backend/internal/models"
	"github.com/creamininja/backend/internal/storage"
)

func newUploadHandler(env *testEnv) UploadHandler {
	return UploadHandler{Users: env.users, Friends: env.friends, Recipes: env.recipes, Storage: env.storage}
}

func presign(t *testing.T, handler UploadHandler, user models.User, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := asUser(httptest.NewRequest(http.MethodPost, "/uploads/presign", strings.NewReader(body)), user)
	rec := httptest.NewRecorder()
	handler.Presign(rec, req)
	return rec
}

func TestPresignIssuesScopedKey(t *testing.T) {
	env := newTestEnv()
	user := env.addUser("usr_1", "ada")
	handler := newUploadHandler(env)

	rec := presign(t, handler, user, `{"kind":"avatar","contentType":"image/png","size":1024}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var resp presignResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	parsed, err := storage.ParseKey(resp.Key)
	if err != nil {
		t.Fatalf("issued key does not parse: %v", err)
	}
	if parsed.Kind != storage.KindAvatar || parsed.OwnerID != "usr_1" {
		t.Fatalf("key %q not scoped to caller", resp.Key)
	}
	if !strings.HasSuffix(parsed.File, ".png") {
		t.Fatalf("key %q missing extension for content type", resp.Key)
	}
	if resp.UploadURL == "" {
		t.Fatal("missing upload url")
	}
	if len(env.storage.presigned) != 1 || env.storage.presigned[0] != resp.Key {
		t.Fatalf("storage presigned %v", env.storage.presigned)
	}
}

func TestPresignValidation(t *testing.T) {
	env := newTestEnv()
	user := env.addUser("usr_1", "ada")
	handler := newUploadHandler(env)

	cases := []struct {
		name string
		body string
	}{
		{"bad kind", `{"kind":"document","contentType":"image/png","size":10}`},
		{"bad content type", `{"kind":"avatar","contentType":"image/gif","size":10}`},
		{"zero size", `{"kind":"avatar","contentType":"image/png","size":0}`},
		{"oversize", `{"kind":"avatar","contentType":"image/png","size":` + strconv.Itoa(maxUploadBytes+1) + `}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := presign(t, handler, user, tc.body); rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
		})
	}

	// 2,500,000 bytes is the inclusive cap.
	body := `{"kind":"avatar","contentType":"image/png","size":` + strconv.Itoa(maxUploadBytes) + `}`
	if rec := presign(t, handler, user, body); rec.Code != http.StatusOK {
		t.Fatalf("size at cap: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSetAvatar(t *testing.T) {
	env := newTestEnv()
	user := env.addUser("usr_1", "ada")
	env.addUser("usr_2", "ben")
	handler := newUploadHandler(env)

	set := func(key string) *httptest.ResponseRecorder {
		req := asUser(httptest.NewRequest(http.MethodPost, "/uploads/set-avatar", strings.NewReader(`{"key":"`+key+`"}`)), user)
		rec := httptest.NewRecorder()
		handler.SetAvatar(rec, req)
		return rec
	}

	if rec := set("avatar/usr_1/img_abc.png"); rec.Code != http.StatusOK {
		t.Fatalf("own avatar key: expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if env.users.users["usr_1"].AvatarKey != "avatar/usr_1/img_abc.png" {
		t.Fatal("avatar key not persisted")
	}

	// Someone else's key, a recipe-kind key and junk are all rejected.
	for _, key := range []string{"avatar/usr_2/img_abc.png", "recipe/usr_1/img_abc.png", "not-a-key"} {
		if rec := set(key); rec.Code != http.StatusBadRequest {
			t.Fatalf("key %q: expected 400 got %d", key, rec.Code)
		}
	}

	// Empty key clears.
	if rec := set(""); rec.Code != http.StatusOK {
		t.Fatalf("clear: expected 200 got %d", rec.Code)
	}
	if env.users.users["usr_1"].AvatarKey != "" {
		t.Fatal("avatar key not cleared")
	}
}

func TestSetAvatarDeletesReplacedObject(t *testing.T) {
	env := newTestEnv()
	user := env.addUser("usr_1", "ada")
	oldKey := "avatar/usr_1/img_old.png"
	user.AvatarKey = oldKey
	env.users.put(user)
	env.storage.putObject(oldKey, "image/png", "old-bytes")
	handler := newUploadHandler(env)

	req := asUser(httptest.NewRequest(http.MethodPost, "/uploads/set-avatar", strings.NewReader(`{"key":"avatar/usr_1/img_new.png"}`)), user)
	rec := httptest.NewRecorder()
	handler.SetAvatar(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := env.storage.objects[oldKey]; ok {
		t.Fatal("replaced avatar object not removed")
	}
	if env.users.users["usr_1"].AvatarKey != "avatar/usr_1/img_new.png" {
		t.Fatal("new avatar key not persisted")
	}
}

func fetchFile(t *testing.T, handler UploadHandler, user models.User, key string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/uploads/file/"+key, nil)
	req.SetPathValue("key", key)
	req = asUser(req, user)
	rec := httptest.NewRecorder()
	handler.File(rec, req)
	return rec
}

func TestFileAvatarAccess(t *testing.T) {
	env := newTestEnv()
	owner := env.addUser("usr_owner", "owner")
	friend := env.addUser("usr_friend", "friend")
	stranger := env.addUser("usr_other", "other")
	env.friends.befriend("usr_owner", "usr_friend")

	const key = "avatar/usr_owner/img_abc.png"
	env.storage.putObject(key, "image/png", "png-bytes")
	handler := newUploadHandler(env)

	if rec := fetchFile(t, handler, owner, key); rec.Code != http.StatusOK {
		t.Fatalf("owner: expected 200 got %d", rec.Code)
	}
	rec := fetchFile(t, handler, friend, key)
	if rec.Code != http.StatusOK {
		t.Fatalf("friend: expected 200 got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if rec.Body.String() != "png-bytes" {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if rec := fetchFile(t, handler, stranger, key); rec.Code != http.StatusNotFound {
		t.Fatalf("stranger: expected 404 got %d", rec.Code)
	}
}

func TestFileRecipeImageFollowsRecipeVisibility(t *testing.T) {
	env := newTestEnv()
	env.addUser("usr_owner", "owner")
	friend := env.addUser("usr_friend", "friend")
	stranger := env.addUser("usr_other", "other")
	env.friends.befriend("usr_owner", "usr_friend")

	const key = "recipe/usr_owner/img_abc.jpg"
	recipe := env.addRecipe("rcp_1", "usr_owner", "restricted")
	recipe.ImageKey = key
	env.recipes.recipes["rcp_1"] = recipe
	env.storage.putObject(key, "image/jpeg", "jpg-bytes")

	handler := newUploadHandler(env)

	if rec := fetchFile(t, handler, friend, key); rec.Code != http.StatusOK {
		t.Fatalf("friend: expected 200 got %d", rec.Code)
	}
	if rec := fetchFile(t, handler, stranger, key); rec.Code != http.StatusNotFound {
		t.Fatalf("stranger: expected 404 got %d", rec.Code)
	}
}

func TestFileRecipeImageTrustsLookupNotKey(t *testing.T) {
	env := newTestEnv()
	env.addUser("usr_owner", "owner")
	attacker := env.addUser("usr_evil", "evil")

	// The key claims the attacker owns the object, but it belongs to a
	// private recipe of usr_owner. The recipe lookup must win.
	const key = "recipe/usr_evil/img_abc.jpg"
	recipe := env.addRecipe("rcp_1", "usr_owner", "private")
	recipe.ImageKey = key
	env.recipes.recipes["rcp_1"] = recipe
	env.storage.putObject(key, "image/jpeg", "jpg-bytes")

	handler := newUploadHandler(env)

	if rec := fetchFile(t, handler, attacker, key); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestFileUnknownKeysAreUniform404(t *testing.T) {
	env := newTestEnv()
	user := env.addUser("usr_1", "ada")
	handler := newUploadHandler(env)

	malformed := fetchFile(t, handler, user, "???")
	orphan := fetchFile(t, handler, user, "recipe/usr_1/img_gone.jpg")

	if malformed.Code != http.StatusNotFound || orphan.Code != http.StatusNotFound {
		t.Fatalf("expected 404/404 got %d/%d", malformed.Code, orphan.Code)
	}
	if malformed.Body.String() != orphan.Body.String() {
		t.Fatalf("denials differ: %q vs %q", malformed.Body.String(), orphan.Body.String())
	}
}
