package mock

import (
	"context"
	"time"

	"github.com/moneta-app/moneta"
)

type RevocationStore struct {
	BlacklistFn     func(ctx context.Context, uid moneta.UserId, token string, until time.Time) error
	IsBlacklistedFn func(ctx context.Context, uid moneta.UserId, token string) (bool, error)
	SweepExpiredFn  func(ctx context.Context) (int, error)
}

func (s RevocationStore) Blacklist(ctx context.Context, uid moneta.UserId, token string, until time.Time) error {
	return s.BlacklistFn(ctx, uid, token, until)
}

func (s RevocationStore) IsBlacklisted(ctx context.Context, uid moneta.UserId, token string) (bool, error) {
	return s.IsBlacklistedFn(ctx, uid, token)
}

func (s RevocationStore) SweepExpired(ctx context.Context) (int, error) {
	return s.SweepExpiredFn(ctx)
}
