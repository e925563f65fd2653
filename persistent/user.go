package persistent

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moneta-app/moneta"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	bun.BaseModel `bun:"table:user"`

	Uid             string       `bun:",pk"`
	CreatedAt       time.Time    `bun:",nullzero,notnull,default:current_timestamp"`
	Username        string       `bun:",notnull,unique"`
	Email           string       `bun:"email,notnull,unique"`
	EmailVerifiedAt sql.NullTime `bun:",nullzero"`
	PasswordHash    string       `bun:",notnull"`
}

func (u User) ToDomain() moneta.User {
	return moneta.User{
		Uid:           moneta.UserId(u.Uid),
		CreatedAt:     u.CreatedAt,
		Username:      u.Username,
		Email:         moneta.Email(u.Email),
		EmailVerified: u.EmailVerifiedAt.Valid,
	}
}

// UserStore persists accounts in postgres. Passwords are stored as bcrypt
// hashes and never leave this package.
type UserStore struct {
	DB *bun.DB
}

var _ moneta.UserDirectory = (*UserStore)(nil)

const uniqueViolation = "23505"

func (s *UserStore) Register(ctx context.Context, username string, email moneta.Email, password string) (moneta.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return moneta.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := &User{
		Uid:          uuid.New().String(),
		Username:     username,
		Email:        string(email),
		PasswordHash: string(hash),
	}
	_, err = s.DB.NewInsert().
		Model(user).
		Exec(ctx)
	if err != nil {
		var pgErr pgdriver.Error
		if errors.As(err, &pgErr) && pgErr.Field('C') == uniqueViolation {
			return moneta.User{}, moneta.ErrUserAlreadyExists
		}
		return moneta.User{}, fmt.Errorf("insert user: %w", err)
	}
	return user.ToDomain(), nil
}

func (s *UserStore) ByCredentials(ctx context.Context, username string, password string) (moneta.User, error) {
	user, err := s.byUsername(ctx, username)
	if err != nil {
		return moneta.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return moneta.User{}, moneta.ErrWrongCredentials
	}
	if !user.EmailVerifiedAt.Valid {
		return moneta.User{}, moneta.ErrUnverifiedEmail
	}
	return user.ToDomain(), nil
}

func (s *UserStore) ByUid(ctx context.Context, uid moneta.UserId) (moneta.User, error) {
	user, err := s.byUid(ctx, uid)
	if err != nil {
		return moneta.User{}, err
	}
	return user.ToDomain(), nil
}

func (s *UserStore) ByUsername(ctx context.Context, username string) (moneta.User, error) {
	user, err := s.byUsername(ctx, username)
	if err != nil {
		return moneta.User{}, err
	}
	return user.ToDomain(), nil
}

func (s *UserStore) ByEmail(ctx context.Context, email moneta.Email) (moneta.User, error) {
	user := new(User)
	err := s.DB.NewSelect().
		Model(user).
		Where("email=?", string(email)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return moneta.User{}, moneta.ErrUserNotFound
		}
		return moneta.User{}, fmt.Errorf("select user: %w", err)
	}
	return user.ToDomain(), nil
}

func (s *UserStore) MarkEmailVerified(ctx context.Context, uid moneta.UserId, email moneta.Email) error {
	user, err := s.byUid(ctx, uid)
	if err != nil {
		return err
	}
	if user.EmailVerifiedAt.Valid {
		return moneta.ErrUserAlreadyVerified
	}
	if user.Email != string(email) {
		return moneta.ErrUidMismatch
	}

	_, err = s.DB.NewUpdate().
		Model((*User)(nil)).
		Set("email_verified_at=?", time.Now().UTC()).
		Where("uid=?", string(uid)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *UserStore) ChangePassword(ctx context.Context, uid moneta.UserId, newPassword string) error {
	user, err := s.byUid(ctx, uid)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(newPassword)); err == nil {
		return moneta.ErrSamePassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.DB.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash=?", string(hash)).
		Where("uid=?", string(uid)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

func (s *UserStore) byUid(ctx context.Context, uid moneta.UserId) (*User, error) {
	user := new(User)
	err := s.DB.NewSelect().
		Model(user).
		Where(`"user"."uid"=?`, string(uid)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, moneta.ErrUserNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}

func (s *UserStore) byUsername(ctx context.Context, username string) (*User, error) {
	user := new(User)
	err := s.DB.NewSelect().
		Model(user).
		Where("username=?", username).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, moneta.ErrUserNotFound
		}
		return nil, fmt.Errorf("select user: %w", err)
	}
	return user, nil
}
