// Package tenant carries the verified Principal through a request's
// context rather than through any process-wide mutable state. The core
// never resolves a principal itself — an external auth collaborator
// verifies the session and hands the core {tenant_id, user_id, roles}.
package tenant

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type contextKey string

const principalKey contextKey = "principal"

// ErrNoPrincipal is returned when a Principal was expected in context but
// is absent — always a programmer error (a handler ran without the
// principal-injection middleware), never a user-facing condition.
var ErrNoPrincipal = errors.New("tenant: no principal in context")

// Principal is the immutable, per-request identity supplied by the
// collaborator that verified the caller's session.
type Principal struct {
	TenantID         uuid.UUID
	UserID           uuid.UUID
	Roles            []string
	DeviceFingerprint string
}

// HasRole reports whether the principal carries the named role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// WithPrincipal returns a context carrying p. Every subsequent read in the
// call chain (persistence queries, quota checks, audit writes) derives its
// tenant scope from this value, never from a global.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext extracts the Principal injected by WithPrincipal.
func FromContext(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok {
		return Principal{}, ErrNoPrincipal
	}
	return p, nil
}

// MustFromContext extracts the Principal or panics. Only call this from
// code paths a middleware guarantees already carry one — an internal
// invariant violation here is a programming error, not a user error.
func MustFromContext(ctx context.Context) Principal {
	p, err := FromContext(ctx)
	if err != nil {
		panic("tenant: principal missing from context — middleware not applied")
	}
	return p
}

// TenantIDFromContext returns the tenant of the Principal carried by ctx.
func TenantIDFromContext(ctx context.Context) (uuid.UUID, error) {
	p, err := FromContext(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	return p.TenantID, nil
}
