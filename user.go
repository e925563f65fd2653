package moneta

import (
	"context"
	"errors"
	"time"
)

type UserId string

type Email string

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrUserAlreadyVerified = errors.New("user already verified its email")
	ErrWrongCredentials    = errors.New("wrong credentials")
	ErrUnverifiedEmail     = errors.New("email is not verified")
	ErrSamePassword        = errors.New("new password equals the current one")
)

type User struct {
	Uid           UserId
	CreatedAt     time.Time
	Username      string
	Email         Email
	EmailVerified bool
}

// UserDirectory is the account collaborator: credential checks and password
// hash persistence live behind it, not in the auth core.
type UserDirectory interface {
	// Register creates an account with a hashed password.
	// Taken username or email: ErrUserAlreadyExists.
	Register(ctx context.Context, username string, email Email, password string) (User, error)

	// ByCredentials resolves a user by username and password.
	// Unknown user: ErrUserNotFound. Bad password: ErrWrongCredentials.
	// Unverified email: ErrUnverifiedEmail.
	ByCredentials(ctx context.Context, username string, password string) (User, error)

	ByUid(ctx context.Context, uid UserId) (User, error)

	ByUsername(ctx context.Context, username string) (User, error)

	ByEmail(ctx context.Context, email Email) (User, error)

	// MarkEmailVerified records that uid proved ownership of email.
	// Already verified: ErrUserAlreadyVerified. Email not belonging to the
	// account: ErrUidMismatch.
	MarkEmailVerified(ctx context.Context, uid UserId, email Email) error

	// ChangePassword rejects a password equal to the current one
	// with ErrSamePassword.
	ChangePassword(ctx context.Context, uid UserId, newPassword string) error
}
