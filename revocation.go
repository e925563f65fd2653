package moneta

import (
	"context"
	"errors"
	"time"
)

// ErrBlacklistedToken - a single-use token was presented a second time.
var ErrBlacklistedToken = errors.New("token already used")

// RevocationStore is the per-user ledger of tokens that must never be
// honored again: consumed single-use tokens and access tokens invalidated
// at logout. Entries exist purely for negative lookup and fall out once
// their expiry hint passes.
type RevocationStore interface {
	// Blacklist sweeps this user's expired entries, then records the token
	// until the given hint. Consumed single-use tokens pass their natural
	// expiry; logout blacklisting passes a 30-day horizon regardless of the
	// access token's own lifespan, so a captured token stays blocked for a
	// conservative window.
	Blacklist(ctx context.Context, uid UserId, token string, until time.Time) error

	// IsBlacklisted sweeps this user's expired entries, then answers whether
	// this exact token string has been spent.
	IsBlacklisted(ctx context.Context, uid UserId, token string) (bool, error)

	// SweepExpired removes stale entries across all users and reports how
	// many were dropped.
	SweepExpired(ctx context.Context) (int, error)
}
