package mock

import (
	"context"

	"github.com/moneta-app/moneta"
)

type SessionStore struct {
	SetSessionFn     func(ctx context.Context, uid moneta.UserId, setId string, refreshToken string) error
	CheckSessionFn   func(ctx context.Context, uid moneta.UserId, setId string) (string, error)
	RemoveSessionFn  func(ctx context.Context, uid moneta.UserId, setId string) error
	ActiveSessionsFn func(ctx context.Context, uid moneta.UserId) ([]moneta.Session, error)
	SweepExpiredFn   func(ctx context.Context) (int, error)
}

func (s SessionStore) SetSession(ctx context.Context, uid moneta.UserId, setId string, refreshToken string) error {
	return s.SetSessionFn(ctx, uid, setId, refreshToken)
}

func (s SessionStore) CheckSession(ctx context.Context, uid moneta.UserId, setId string) (string, error) {
	return s.CheckSessionFn(ctx, uid, setId)
}

func (s SessionStore) RemoveSession(ctx context.Context, uid moneta.UserId, setId string) error {
	return s.RemoveSessionFn(ctx, uid, setId)
}

func (s SessionStore) ActiveSessions(ctx context.Context, uid moneta.UserId) ([]moneta.Session, error) {
	return s.ActiveSessionsFn(ctx, uid)
}

func (s SessionStore) SweepExpired(ctx context.Context) (int, error) {
	return s.SweepExpiredFn(ctx)
}
