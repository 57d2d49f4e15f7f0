package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/keg-monitor-core/internal/auth"
)

// minPasswordLength is the shortest password accepted on create or change.
const minPasswordLength = 8

// ─── Request/Response Types ────────────────────────────────────────

type createUserRequest struct {
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	ProfilePic string `json:"profile_pic"`
	Admin      bool   `json:"admin"`
	Password   string `json:"password"`
}

// updateUserRequest patches a user. Password is raw so that an explicit
// null can be told apart from an absent field.
type updateUserRequest struct {
	Email      *string         `json:"email"`
	FirstName  *string         `json:"first_name"`
	LastName   *string         `json:"last_name"`
	ProfilePic *string         `json:"profile_pic"`
	Admin      *bool           `json:"admin"`
	Password   json.RawMessage `json:"password"`
}

type userView struct {
	*auth.User
	PasswordEnabled bool `json:"password_enabled"`
}

type apiKeyResponse struct {
	APIKey *string `json:"api_key"`
	Token  *string `json:"token,omitempty"`
}

func newUserView(u *auth.User) userView {
	return userView{User: u, PasswordEnabled: u.PasswordEnabled()}
}

// ─── Handlers ──────────────────────────────────────────────────────

// handleMe returns the calling user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p := auth.FromContext(r.Context())

	user, err := s.users.GetByID(r.Context(), p.ID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeUnauthorized(w, "user not found")
			return
		}
		s.logger.Error("get current user failed", "error", err)
		writeInternalError(w, "failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, newUserView(user))
}

// handleListUsers returns all user accounts.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.logger.Error("list users failed", "error", err)
		writeInternalError(w, "failed to list users")
		return
	}

	views := make([]userView, len(users))
	for i := range users {
		views[i] = newUserView(&users[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users": views,
		"count": len(views),
	})
}

// handleCreateUser creates a new user account. The password is optional;
// without one the account can only sign in with an API key.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeBadRequest(w, "email is required")
		return
	}

	user := &auth.User{
		Email:      strings.TrimSpace(req.Email),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		ProfilePic: req.ProfilePic,
		Admin:      req.Admin,
	}
	if req.Password != "" {
		if len(req.Password) < minPasswordLength {
			writeBadRequest(w, "password must be at least 8 characters")
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			s.logger.Error("hash password failed", "error", err)
			writeInternalError(w, "failed to create user")
			return
		}
		user.PasswordHash = hash
	}

	if err := s.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			writeConflict(w, "email already exists")
			return
		}
		s.logger.Error("create user failed", "error", err)
		writeInternalError(w, "failed to create user")
		return
	}

	s.logger.Info("user created", "user_id", user.ID, "admin", user.Admin, "created_by", auth.FromContext(r.Context()).ID)
	writeJSON(w, http.StatusCreated, newUserView(user))
}

// handleUpdateUser modifies a user's mutable fields. Only the user may
// change their own password; a null password disables password sign-in.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller := auth.FromContext(r.Context())

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Password != nil && caller.ID != id {
		writeBadRequest(w, "You are not authorized to change the password for another user.")
		return
	}

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("get user for update failed", "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	if req.Password != nil {
		hash, ok := s.passwordChange(w, req.Password)
		if !ok {
			return
		}
		if err := s.users.SetPasswordHash(r.Context(), id, hash); err != nil {
			s.logger.Error("set password failed", "error", err)
			writeInternalError(w, "failed to update user")
			return
		}
		user.PasswordHash = hash
	}

	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.ProfilePic != nil {
		user.ProfilePic = *req.ProfilePic
	}
	if req.Admin != nil {
		user.Admin = *req.Admin
	}
	if strings.TrimSpace(user.Email) == "" {
		writeBadRequest(w, "email is required")
		return
	}

	if err := s.users.Update(r.Context(), user); err != nil {
		if errors.Is(err, auth.ErrEmailExists) {
			writeConflict(w, "email already exists")
			return
		}
		s.logger.Error("update user failed", "error", err)
		writeInternalError(w, "failed to update user")
		return
	}

	s.logger.Info("user updated", "user_id", id, "updated_by", caller.ID)
	writeJSON(w, http.StatusOK, newUserView(user))
}

// passwordChange turns the raw password field into a hash. Null yields
// the empty hash.
func (s *Server) passwordChange(w http.ResponseWriter, raw json.RawMessage) (string, bool) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return "", true
	}
	var password string
	if err := json.Unmarshal(raw, &password); err != nil {
		writeBadRequest(w, "password must be a string or null")
		return "", false
	}
	if len(password) < minPasswordLength {
		writeBadRequest(w, "password must be at least 8 characters")
		return "", false
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Error("hash password failed", "error", err)
		writeInternalError(w, "failed to update user")
		return "", false
	}
	return hash, true
}

// handleDeleteUser removes a user account.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	caller := auth.FromContext(r.Context())

	if id == caller.ID {
		writeBadRequest(w, "You cannot delete your own user")
		return
	}

	if err := s.users.Delete(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return
		}
		s.logger.Error("delete user failed", "error", err)
		writeInternalError(w, "failed to delete user")
		return
	}

	s.logger.Info("user deleted", "user_id", id, "deleted_by", caller.ID)
	w.WriteHeader(http.StatusNoContent)
}

// handleGetUserAPIKey returns a user's API key and the bearer token built
// from it.
func (s *Server) handleGetUserAPIKey(w http.ResponseWriter, r *http.Request) {
	user, ok := s.apiKeyOwner(w, r, "You cannot access the API key for another user")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, keyResponse(user.APIKey))
}

// handleCreateUserAPIKey generates an API key. An existing key is only
// replaced with ?regen=true.
func (s *Server) handleCreateUserAPIKey(w http.ResponseWriter, r *http.Request) {
	user, ok := s.apiKeyOwner(w, r, "You cannot generate an API key for another user")
	if !ok {
		return
	}
	if user.APIKey != "" && !regenRequested(r) {
		writeBadRequest(w, "API key already exists")
		return
	}

	key, err := auth.GenerateAPIKey(s.secCfg.APIKeys.Length)
	if err != nil {
		s.logger.Error("generate api key failed", "error", err)
		writeInternalError(w, "failed to generate API key")
		return
	}
	if err := s.users.SetAPIKey(r.Context(), user.ID, key); err != nil {
		if errors.Is(err, auth.ErrAPIKeyExists) {
			writeConflict(w, "API key collision, try again")
			return
		}
		s.logger.Error("set api key failed", "error", err)
		writeInternalError(w, "failed to generate API key")
		return
	}

	s.logger.Info("user api key generated", "user_id", user.ID)
	writeJSON(w, http.StatusOK, keyResponse(key))
}

// handleDeleteUserAPIKey removes a user's API key.
func (s *Server) handleDeleteUserAPIKey(w http.ResponseWriter, r *http.Request) {
	user, ok := s.apiKeyOwner(w, r, "You cannot delete the API key for another user")
	if !ok {
		return
	}
	if err := s.users.SetAPIKey(r.Context(), user.ID, ""); err != nil {
		s.logger.Error("delete api key failed", "error", err)
		writeInternalError(w, "failed to delete API key")
		return
	}

	s.logger.Info("user api key deleted", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

// apiKeyOwner loads the user named in the route, allowing only the user
// themselves or an administrator.
func (s *Server) apiKeyOwner(w http.ResponseWriter, r *http.Request, denied string) (*auth.User, bool) {
	id := chi.URLParam(r, "id")

	user, err := s.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			writeNotFound(w, "user not found")
			return nil, false
		}
		s.logger.Error("get user for api key failed", "error", err)
		writeInternalError(w, "failed to get user")
		return nil, false
	}

	caller := auth.FromContext(r.Context())
	if caller.ID != id && !caller.IsAdmin() {
		writeBadRequest(w, denied)
		return nil, false
	}
	return user, true
}

func regenRequested(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("regen")) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func keyResponse(key string) apiKeyResponse {
	if key == "" {
		return apiKeyResponse{}
	}
	token := auth.EncodeToken(auth.KindUser, key)
	return apiKeyResponse{APIKey: &key, Token: &token}
}
