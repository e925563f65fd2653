package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/moneta-app/moneta"
	"golang.org/x/crypto/bcrypt"
)

type userRecord struct {
	user         moneta.User
	passwordHash []byte
}

// UserStore is the in-memory user directory used by tests and local runs.
type UserStore struct {
	users map[moneta.UserId]*userRecord
	mutex sync.RWMutex
}

func NewUserStore() UserStore {
	return UserStore{
		users: map[moneta.UserId]*userRecord{},
		mutex: sync.RWMutex{},
	}
}

var _ moneta.UserDirectory = (*UserStore)(nil)

func (s *UserStore) Register(ctx context.Context, username string, email moneta.Email, password string) (moneta.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return moneta.User{}, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, record := range s.users {
		if record.user.Username == username || record.user.Email == email {
			return moneta.User{}, moneta.ErrUserAlreadyExists
		}
	}

	user := moneta.User{
		Uid:       moneta.UserId(uuid.New().String()),
		CreatedAt: time.Now(),
		Username:  username,
		Email:     email,
	}
	s.users[user.Uid] = &userRecord{user: user, passwordHash: hash}
	return user, nil
}

func (s *UserStore) ByCredentials(ctx context.Context, username string, password string) (moneta.User, error) {
	s.mutex.RLock()
	record, ok := s.byUsername(username)
	s.mutex.RUnlock()
	if !ok {
		return moneta.User{}, moneta.ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword(record.passwordHash, []byte(password)); err != nil {
		return moneta.User{}, moneta.ErrWrongCredentials
	}
	if !record.user.EmailVerified {
		return moneta.User{}, moneta.ErrUnverifiedEmail
	}
	return record.user, nil
}

func (s *UserStore) ByUid(ctx context.Context, uid moneta.UserId) (moneta.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	record, ok := s.users[uid]
	if !ok {
		return moneta.User{}, moneta.ErrUserNotFound
	}
	return record.user, nil
}

func (s *UserStore) ByUsername(ctx context.Context, username string) (moneta.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	record, ok := s.byUsername(username)
	if !ok {
		return moneta.User{}, moneta.ErrUserNotFound
	}
	return record.user, nil
}

func (s *UserStore) ByEmail(ctx context.Context, email moneta.Email) (moneta.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, record := range s.users {
		if record.user.Email == email {
			return record.user, nil
		}
	}
	return moneta.User{}, moneta.ErrUserNotFound
}

func (s *UserStore) MarkEmailVerified(ctx context.Context, uid moneta.UserId, email moneta.Email) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, ok := s.users[uid]
	if !ok {
		return moneta.ErrUserNotFound
	}
	if record.user.EmailVerified {
		return moneta.ErrUserAlreadyVerified
	}
	if record.user.Email != email {
		return moneta.ErrUidMismatch
	}
	record.user.EmailVerified = true
	return nil
}

func (s *UserStore) ChangePassword(ctx context.Context, uid moneta.UserId, newPassword string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	record, ok := s.users[uid]
	if !ok {
		return moneta.ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword(record.passwordHash, []byte(newPassword)); err == nil {
		return moneta.ErrSamePassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.MinCost)
	if err != nil {
		return err
	}
	record.passwordHash = hash
	return nil
}

func (s *UserStore) byUsername(username string) (*userRecord, bool) {
	for _, record := range s.users {
		if record.user.Username == username {
			return record, true
		}
	}
	return nil, false
}
