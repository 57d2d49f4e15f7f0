package auth

import (
	"context"
	"errors"
	"fmt"
)

// Lookup finds the principal owning an API key. It returns nil, nil when no
// record matches.
type Lookup interface {
	LookupAPIKey(ctx context.Context, key string) (*Principal, error)
}

// LookupFunc adapts a function to Lookup.
type LookupFunc func(ctx context.Context, key string) (*Principal, error)

// LookupAPIKey calls f.
func (f LookupFunc) LookupAPIKey(ctx context.Context, key string) (*Principal, error) {
	return f(ctx, key)
}

// Resolver turns principal tokens into principals.
type Resolver struct {
	lookups map[Kind]Lookup
}

// NewResolver creates a resolver. A nil lookup makes that kind unresolvable.
func NewResolver(users, devices, services Lookup) *Resolver {
	lookups := make(map[Kind]Lookup, 3) //nolint:mnd // one per kind
	if users != nil {
		lookups[KindUser] = users
	}
	if devices != nil {
		lookups[KindDevice] = devices
	}
	if services != nil {
		lookups[KindServiceAccount] = services
	}
	return &Resolver{lookups: lookups}
}

// Resolve decodes token and returns the matching principal. A well-formed
// token whose key matches nothing yields nil, nil. Malformed tokens return
// an error wrapping ErrFormat.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Principal, error) {
	kind, key, err := DecodeToken(token)
	if err != nil {
		return nil, err
	}
	lookup, ok := r.lookups[kind]
	if !ok {
		return nil, nil
	}
	p, err := lookup.LookupAPIKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("looking up %s principal: %w", kind, err)
	}
	return p, nil
}

// UserLookup resolves user API keys through repo.
func UserLookup(repo UserRepository) Lookup {
	return LookupFunc(func(ctx context.Context, key string) (*Principal, error) {
		u, err := repo.GetByAPIKey(ctx, key)
		if errors.Is(err, ErrUserNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return UserPrincipal(u), nil
	})
}

// ServiceAccountLookup resolves service account API keys through repo.
func ServiceAccountLookup(repo ServiceAccountRepository) Lookup {
	return LookupFunc(func(ctx context.Context, key string) (*Principal, error) {
		sa, err := repo.GetByAPIKey(ctx, key)
		if errors.Is(err, ErrServiceAccountNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return ServiceAccountPrincipal(sa), nil
	})
}
