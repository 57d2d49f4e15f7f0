package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"
)

// EncodeToken builds the bearer token for an API key.
func EncodeToken(kind Kind, apiKey string) string {
	return base64.StdEncoding.EncodeToString([]byte(string(kind) + "|" + apiKey))
}

// DecodeToken splits a bearer token into kind and API key. Standard base64
// is tried first, then the URL-safe alphabet.
func DecodeToken(token string) (Kind, string, error) {
	token = strings.TrimSpace(token)
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(token)
	}
	if err != nil || !utf8.Valid(raw) {
		return "", "", ErrInvalidEncoding
	}

	parts := strings.Split(string(raw), "|")
	if len(parts) != 2 || parts[1] == "" {
		return "", "", ErrInvalidFormat
	}
	kind, ok := ParseKind(parts[0])
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownKind, parts[0])
	}
	return kind, parts[1], nil
}

// GenerateAPIKey returns a random hex key of n characters (rounded up to even).
func GenerateAPIKey(n int) (string, error) {
	if n < 16 { //nolint:mnd // 64-bit floor
		n = 16
	}
	b := make([]byte, (n+1)/2)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}
