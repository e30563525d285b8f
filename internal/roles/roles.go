// Package roles resolves elevated (admin) privileges for a principal.
package roles

import (
	"context"

	"github.com/rs/zerolog"
)

// GrantStore looks up role grants. A missing grant is (false, nil), not an
// error.
type GrantStore interface {
	HasAdminRole(ctx context.Context, userID string) (bool, error)
}

type Resolver struct {
	store GrantStore
	log   zerolog.Logger
}

func NewResolver(store GrantStore, log zerolog.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// IsAdmin reports whether userID holds an admin grant. Lookup failures are
// logged and resolve to false: uncertainty never grants elevation, and never
// blocks the caller.
func (r *Resolver) IsAdmin(ctx context.Context, userID string) bool {
	if userID == "" {
		return false
	}
	granted, err := r.store.HasAdminRole(ctx, userID)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Msg("admin role lookup failed")
		return false
	}
	return granted
}
