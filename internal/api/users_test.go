package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/nerrad567/keg-monitor-core/internal/auth"
)

// ─── User Tests ────────────────────────────────────────────────────

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/users/me", env.adminToken, "")
	wantStatus(t, w, http.StatusOK)

	var resp map[string]any
	decode(t, w, &resp)
	if resp["id"] != env.admin.ID || resp["admin"] != true || resp["password_enabled"] != false {
		t.Errorf("me = %v", resp)
	}
	if _, ok := resp["api_key"]; ok {
		t.Error("user view should not carry the api key")
	}

	_, deviceToken := env.createDevice(t, "not-a-human")
	wantStatus(t, env.do(http.MethodGet, "/api/v1/users/me", deviceToken, ""), http.StatusUnauthorized)
}

func TestUserAdminGuards(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/v1/users", ""},
		{http.MethodPost, "/api/v1/users", `{"email":"x@example.com"}`},
		{http.MethodPatch, "/api/v1/users/" + env.admin.ID, `{"first_name":"x"}`},
		{http.MethodDelete, "/api/v1/users/" + env.admin.ID, ""},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			wantStatus(t, env.do(tt.method, tt.path, env.userToken, tt.body), http.StatusForbidden)
		})
	}
}

func TestListUsers(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/v1/users", env.adminToken, "")
	wantStatus(t, w, http.StatusOK)

	var resp struct {
		Users []map[string]any `json:"users"`
		Count int              `json:"count"`
	}
	decode(t, w, &resp)
	if resp.Count != 2 {
		t.Errorf("count = %d, want 2", resp.Count)
	}
}

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/api/v1/users", env.adminToken,
		`{"email":" brewer@example.com ","first_name":"Bree","password":"hoppy-days"}`)
	wantStatus(t, w, http.StatusCreated)

	var resp map[string]any
	decode(t, w, &resp)
	if resp["email"] != "brewer@example.com" || resp["password_enabled"] != true {
		t.Errorf("created = %v", resp)
	}

	w = env.do(http.MethodPost, "/api/v1/auth/login", "", `{"email":"brewer@example.com","password":"hoppy-days"}`)
	wantStatus(t, w, http.StatusOK)

	wantErrorMessage(t, env.do(http.MethodPost, "/api/v1/users", env.adminToken, `{"email":"brewer@example.com"}`),
		http.StatusConflict, "email already exists")
	wantErrorMessage(t, env.do(http.MethodPost, "/api/v1/users", env.adminToken, `{"email":""}`),
		http.StatusBadRequest, "email is required")
	wantErrorMessage(t, env.do(http.MethodPost, "/api/v1/users", env.adminToken, `{"email":"short@example.com","password":"short"}`),
		http.StatusBadRequest, "password must be at least 8 characters")
}

func TestUpdateUser(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPatch, "/api/v1/users/"+env.user.ID, env.adminToken, `{"last_name":"Stout","admin":true}`)
	wantStatus(t, w, http.StatusOK)
	var resp map[string]any
	decode(t, w, &resp)
	if resp["last_name"] != "Stout" || resp["admin"] != true {
		t.Errorf("updated = %v", resp)
	}

	wantErrorMessage(t, env.do(http.MethodPatch, "/api/v1/users/"+env.user.ID, env.adminToken, `{"password":"new-password"}`),
		http.StatusBadRequest, "You are not authorized to change the password for another user.")
	wantErrorMessage(t, env.do(http.MethodPatch, "/api/v1/users/"+env.user.ID, env.adminToken, `{"email":"admin@example.com"}`),
		http.StatusConflict, "email already exists")
	wantErrorMessage(t, env.do(http.MethodPatch, "/api/v1/users/"+env.user.ID, env.adminToken, `{"email":"  "}`),
		http.StatusBadRequest, "email is required")
	wantStatus(t, env.do(http.MethodPatch, "/api/v1/users/usr-missing", env.adminToken, `{"first_name":"x"}`),
		http.StatusNotFound)
}

func TestUpdateUser_OwnPassword(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/v1/users/" + env.admin.ID

	wantErrorMessage(t, env.do(http.MethodPatch, path, env.adminToken, `{"password":"short"}`),
		http.StatusBadRequest, "password must be at least 8 characters")
	wantErrorMessage(t, env.do(http.MethodPatch, path, env.adminToken, `{"password":42}`),
		http.StatusBadRequest, "password must be a string or null")

	w := env.do(http.MethodPatch, path, env.adminToken, `{"password":"long-enough"}`)
	wantStatus(t, w, http.StatusOK)
	var resp map[string]any
	decode(t, w, &resp)
	if resp["password_enabled"] != true {
		t.Error("password_enabled = false after setting a password")
	}

	w = env.do(http.MethodPatch, path, env.adminToken, `{"password":null}`)
	wantStatus(t, w, http.StatusOK)
	decode(t, w, &resp)
	if resp["password_enabled"] != false {
		t.Error("password_enabled = true after clearing the password")
	}

	stored, err := env.users.GetByID(context.Background(), env.admin.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.PasswordEnabled() {
		t.Error("stored password hash should be cleared")
	}
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)

	wantErrorMessage(t, env.do(http.MethodDelete, "/api/v1/users/"+env.admin.ID, env.adminToken, ""),
		http.StatusBadRequest, "You cannot delete your own user")

	wantStatus(t, env.do(http.MethodDelete, "/api/v1/users/"+env.user.ID, env.adminToken, ""), http.StatusNoContent)
	wantStatus(t, env.do(http.MethodDelete, "/api/v1/users/"+env.user.ID, env.adminToken, ""), http.StatusNotFound)

	// The deleted user's key no longer authenticates.
	wantStatus(t, env.do(http.MethodGet, "/api/v1/devices", env.userToken, ""), http.StatusUnauthorized)
}

// ─── API Key Tests ─────────────────────────────────────────────────

func TestUserAPIKey(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/v1/users/" + env.user.ID + "/api_key"

	w := env.do(http.MethodGet, path, env.userToken, "")
	wantStatus(t, w, http.StatusOK)
	var current apiKeyResponse
	decode(t, w, &current)
	if current.Token == nil || *current.Token != env.userToken {
		t.Fatalf("token = %v, want the caller's token", current.Token)
	}

	wantErrorMessage(t, env.do(http.MethodPost, path, env.userToken, ""), http.StatusBadRequest, "API key already exists")
	wantStatus(t, env.do(http.MethodPost, path+"?regen=", env.userToken, ""), http.StatusBadRequest)

	w = env.do(http.MethodPost, path+"?regen=true", env.userToken, "")
	wantStatus(t, w, http.StatusOK)
	var regenerated apiKeyResponse
	decode(t, w, &regenerated)
	if regenerated.APIKey == nil || *regenerated.APIKey == *current.APIKey {
		t.Fatal("regen should issue a new key")
	}

	// The old token stops working, the new one works.
	wantStatus(t, env.do(http.MethodGet, path, env.userToken, ""), http.StatusUnauthorized)
	wantStatus(t, env.do(http.MethodGet, path, *regenerated.Token, ""), http.StatusOK)

	wantStatus(t, env.do(http.MethodDelete, path, env.adminToken, ""), http.StatusNoContent)
	w = env.do(http.MethodGet, path, env.adminToken, "")
	wantStatus(t, w, http.StatusOK)
	var cleared apiKeyResponse
	decode(t, w, &cleared)
	if cleared.APIKey != nil || cleared.Token != nil {
		t.Errorf("cleared = %+v, want null key", cleared)
	}

	// With no key, POST generates one without regen.
	w = env.do(http.MethodPost, path, env.adminToken, "")
	wantStatus(t, w, http.StatusOK)
	var fresh apiKeyResponse
	decode(t, w, &fresh)
	if fresh.APIKey == nil || len(*fresh.APIKey) != 32 {
		t.Errorf("fresh key = %v", fresh.APIKey)
	}
	if *fresh.Token != auth.EncodeToken(auth.KindUser, *fresh.APIKey) {
		t.Error("token does not encode the new key")
	}
}

func TestUserAPIKey_OtherUser(t *testing.T) {
	env := newTestEnv(t)
	adminPath := "/api/v1/users/" + env.admin.ID + "/api_key"

	wantErrorMessage(t, env.do(http.MethodGet, adminPath, env.userToken, ""),
		http.StatusBadRequest, "You cannot access the API key for another user")
	wantErrorMessage(t, env.do(http.MethodPost, adminPath+"?regen=1", env.userToken, ""),
		http.StatusBadRequest, "You cannot generate an API key for another user")
	wantErrorMessage(t, env.do(http.MethodDelete, adminPath, env.userToken, ""),
		http.StatusBadRequest, "You cannot delete the API key for another user")
	wantErrorMessage(t, env.do(http.MethodGet, "/api/v1/users/usr-missing/api_key", env.adminToken, ""),
		http.StatusNotFound, "user not found")
}
