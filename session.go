package moneta

import (
	"context"
	"time"
)

// Session is one device login: the refresh token currently bound to a
// (user, setId) pair, valid until ExpiresAt. The session registry is the
// sole authority for "is this device still logged in" - removing the member
// kills all future refresh attempts for that setId even while the refresh
// token itself would still verify.
type Session struct {
	UserId       UserId
	SetId        string
	RefreshToken string
	ExpiresAt    time.Time
}

// SessionStore keeps the per-user, per-device session registry.
//
// Reads sweep lazily: members whose expiry has passed are dropped before a
// lookup answers, so an expired session is gone protocol-wise even if no
// maintenance sweep ever ran. Sweep-then-scan is not atomic as a whole;
// concurrent logins and logouts for the same user may interleave between the
// two steps. Individual inserts and deletes are atomic.
type SessionStore interface {
	// SetSession upserts the member keyed by (uid, setId). A second login
	// on the same device replaces the previous refresh token.
	SetSession(ctx context.Context, uid UserId, setId string, refreshToken string) error

	// CheckSession sweeps this user's expired members, then returns the
	// refresh token bound to setId. No live member: ErrNotAuthorized.
	CheckSession(ctx context.Context, uid UserId, setId string) (string, error)

	// RemoveSession deletes the member currently bound to (uid, setId),
	// looking it up through CheckSession first.
	RemoveSession(ctx context.Context, uid UserId, setId string) error

	// ActiveSessions lists this user's live device logins.
	ActiveSessions(ctx context.Context, uid UserId) ([]Session, error)

	// SweepExpired removes expired members across all users and reports how
	// many were dropped. Invoked by the periodic maintenance job.
	SweepExpired(ctx context.Context) (int, error)
}
