package auth

import (
	"context"
	"strings"
)

// Kind is the account type behind a principal.
type Kind string

const (
	KindUser           Kind = "user"
	KindDevice         Kind = "device"
	KindServiceAccount Kind = "svc"
)

// ParseKind accepts a kind name in any case.
func ParseKind(s string) (Kind, bool) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case KindUser, KindDevice, KindServiceAccount:
		return k, true
	default:
		return "", false
	}
}

// Principal is the authenticated caller of one request.
type Principal struct {
	Kind        Kind   `json:"kind"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	APIKey      string `json:"-"`
	Admin       bool   `json:"admin"`
}

// IsAdmin reports whether the principal is an administrator. Only humans
// can be administrators.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Kind == KindUser && p.Admin
}

// IsHuman reports whether the principal is a user account.
func (p *Principal) IsHuman() bool {
	return p != nil && p.Kind == KindUser
}

// IsDevice reports whether the principal is the device with id.
func (p *Principal) IsDevice(id string) bool {
	return p != nil && p.Kind == KindDevice && p.ID == id
}

// UserPrincipal builds the principal for a user record.
func UserPrincipal(u *User) *Principal {
	return &Principal{Kind: KindUser, ID: u.ID, DisplayName: u.DisplayName(), APIKey: u.APIKey, Admin: u.Admin}
}

// DevicePrincipal builds the principal for a device.
func DevicePrincipal(id, name, apiKey string) *Principal {
	return &Principal{Kind: KindDevice, ID: id, DisplayName: name, APIKey: apiKey}
}

// ServiceAccountPrincipal builds the principal for a service account.
func ServiceAccountPrincipal(sa *ServiceAccount) *Principal {
	return &Principal{Kind: KindServiceAccount, ID: sa.ID, DisplayName: sa.Name, APIKey: sa.APIKey}
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the request's principal, or nil.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
