package mock

import (
	"context"

	"github.com/moneta-app/moneta"
)

type UserDirectory struct {
	RegisterFn          func(ctx context.Context, username string, email moneta.Email, password string) (moneta.User, error)
	ByCredentialsFn     func(ctx context.Context, username string, password string) (moneta.User, error)
	ByUidFn             func(ctx context.Context, uid moneta.UserId) (moneta.User, error)
	ByUsernameFn        func(ctx context.Context, username string) (moneta.User, error)
	ByEmailFn           func(ctx context.Context, email moneta.Email) (moneta.User, error)
	MarkEmailVerifiedFn func(ctx context.Context, uid moneta.UserId, email moneta.Email) error
	ChangePasswordFn    func(ctx context.Context, uid moneta.UserId, newPassword string) error
}

func (d UserDirectory) Register(ctx context.Context, username string, email moneta.Email, password string) (moneta.User, error) {
	return d.RegisterFn(ctx, username, email, password)
}

func (d UserDirectory) ByCredentials(ctx context.Context, username string, password string) (moneta.User, error) {
	return d.ByCredentialsFn(ctx, username, password)
}

func (d UserDirectory) ByUid(ctx context.Context, uid moneta.UserId) (moneta.User, error) {
	return d.ByUidFn(ctx, uid)
}

func (d UserDirectory) ByUsername(ctx context.Context, username string) (moneta.User, error) {
	return d.ByUsernameFn(ctx, username)
}

func (d UserDirectory) ByEmail(ctx context.Context, email moneta.Email) (moneta.User, error) {
	return d.ByEmailFn(ctx, email)
}

func (d UserDirectory) MarkEmailVerified(ctx context.Context, uid moneta.UserId, email moneta.Email) error {
	return d.MarkEmailVerifiedFn(ctx, uid, email)
}

func (d UserDirectory) ChangePassword(ctx context.Context, uid moneta.UserId, newPassword string) error {
	return d.ChangePasswordFn(ctx, uid, newPassword)
}
