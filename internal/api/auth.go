package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/keg-monitor-core/internal/auth"
	"github.com/nerrad567/keg-monitor-core/internal/device"
)

// ticketTTL is how long a WebSocket ticket is valid.
const ticketTTL = 60 * time.Second

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse is the response body for POST /auth/login.
type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ticketStore holds pending WebSocket authentication tickets.
// Tickets are single-use and expire after ticketTTL.
type ticketStore struct {
	tickets map[string]ticketEntry
	mu      sync.Mutex
}

type ticketEntry struct {
	principal *auth.Principal
	expiresAt time.Time
}

func newTicketStore() *ticketStore {
	return &ticketStore{tickets: make(map[string]ticketEntry)}
}

// handleLogin exchanges email and password for a session JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeBadRequest(w, "email and password are required")
		return
	}

	user, err := s.users.GetByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, auth.ErrUserNotFound) {
		s.logger.Error("login lookup failed", "error", err)
		writeInternalError(w, "failed to authenticate")
		return
	}
	if user == nil || !user.PasswordEnabled() {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	ok, err := auth.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", "user_id", user.ID, "error", err)
	}
	if !ok {
		writeUnauthorized(w, "invalid credentials")
		return
	}

	ttl := time.Duration(s.secCfg.JWT.AccessTokenTTL) * time.Minute
	token, expires, err := auth.IssueSessionToken(user, s.secCfg.JWT.Secret, ttl)
	if err != nil {
		s.logger.Error("issuing session token failed", "error", err)
		writeInternalError(w, "failed to generate token")
		return
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(time.Until(expires).Round(time.Second).Seconds()),
	})
}

// handleWSTicket issues a single-use WebSocket ticket bound to the caller,
// so the connection does not carry credentials in its URL.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	ticket := generateTicket()
	s.tickets.add(ticket, auth.FromContext(r.Context()))

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

func (t *ticketStore) add(ticket string, p *auth.Principal) {
	t.mu.Lock()
	t.tickets[ticket] = ticketEntry{principal: p, expiresAt: time.Now().Add(ticketTTL)}
	t.mu.Unlock()
}

// consume validates and removes a ticket, returning its principal.
func (t *ticketStore) consume(ticket string) (*auth.Principal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.tickets[ticket]
	if !ok {
		return nil, false
	}
	delete(t.tickets, ticket)
	if time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.principal, true
}

// cleanExpired removes expired tickets.
func (t *ticketStore) cleanExpired() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	for ticket, entry := range t.tickets {
		if now.After(entry.expiresAt) {
			delete(t.tickets, ticket)
		}
	}
}

// ticketBytes is the number of random bytes used for WebSocket tickets.
const ticketBytes = 32

// generateTicket creates a cryptographically random ticket string.
func generateTicket() string {
	b := make([]byte, ticketBytes)
	//nolint:errcheck // crypto/rand.Read always returns len(b) on supported platforms
	rand.Read(b)
	return hex.EncodeToString(b)
}

// cleanTicketsLoop removes expired tickets periodically until the context is cancelled.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(ticketTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.cleanExpired()
		}
	}
}

// DeviceLookup resolves device API keys through repo.
func DeviceLookup(repo device.Repository) auth.Lookup {
	return auth.LookupFunc(func(ctx context.Context, key string) (*auth.Principal, error) {
		dev, err := repo.GetByAPIKey(ctx, key)
		if errors.Is(err, device.ErrDeviceNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return auth.DevicePrincipal(dev.ID, dev.Name, dev.APIKey), nil
	})
}
