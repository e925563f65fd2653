package persistent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/moneta-app/moneta"
	"github.com/tidwall/buntdb"
)

const sessionTTL = 30 * 24 * time.Hour // 30 days

const sessionKeyPrefix = "session:"

// sessionMember is the stored value of one device login. ExpiresAt inside the
// value is authoritative for the protocol; the buntdb key TTL is only a
// passive backstop that reclaims space.
type sessionMember struct {
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// SessionStore keeps device logins in buntdb under "session:{uid}:{setId}".
type SessionStore struct {
	Buntdb *buntdb.DB

	// Now overrides the time source. Tests use it to age sessions.
	Now func() time.Time
}

var _ moneta.SessionStore = (*SessionStore)(nil)

func (s *SessionStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func sessionKey(uid moneta.UserId, setId string) (string, error) {
	// keys are colon-delimited; a colon smuggled inside uid or setId would
	// let one user's member shadow another's
	if strings.Contains(string(uid), ":") || strings.Contains(setId, ":") {
		return "", fmt.Errorf("invalid key part: uid=%q setId=%q", uid, setId)
	}
	return sessionKeyPrefix + string(uid) + ":" + setId, nil
}

// SetSession upserts the (uid, setId) member. The previous refresh token for
// this device, if any, is replaced - one active refresh token per login.
func (s *SessionStore) SetSession(ctx context.Context, uid moneta.UserId, setId string, refreshToken string) error {
	key, err := sessionKey(uid, setId)
	if err != nil {
		return err
	}
	member := sessionMember{
		RefreshToken: refreshToken,
		ExpiresAt:    s.now().UTC().Add(sessionTTL),
	}
	serialized, err := json.Marshal(&member)
	if err != nil {
		return fmt.Errorf("serialize session member: %w", err)
	}

	err = s.Buntdb.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(key, string(serialized), &buntdb.SetOptions{Expires: true, TTL: sessionTTL})
		if err != nil {
			return fmt.Errorf("set session member: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bunt update: %w", err)
	}
	return nil
}

// CheckSession drops this user's expired members, then returns the refresh
// token bound to setId. The sweep and the scan run in one transaction, but a
// concurrent login or logout may still interleave between separate calls.
func (s *SessionStore) CheckSession(ctx context.Context, uid moneta.UserId, setId string) (string, error) {
	matchKey, err := sessionKey(uid, setId)
	if err != nil {
		return "", err
	}

	var refreshToken string
	found := false
	err = s.Buntdb.Update(func(tx *buntdb.Tx) error {
		if _, err := s.sweepUser(tx, uid); err != nil {
			return err
		}

		value, err := tx.Get(matchKey)
		if err != nil {
			if errors.Is(err, buntdb.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("get session member: %w", err)
		}
		var member sessionMember
		if err := json.Unmarshal([]byte(value), &member); err != nil {
			return fmt.Errorf("deserialize session member: %w", err)
		}
		refreshToken = member.RefreshToken
		found = true
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("bunt update: %w", err)
	}
	if !found {
		return "", moneta.ErrNotAuthorized
	}
	return refreshToken, nil
}

// RemoveSession looks the member up through CheckSession (reusing its sweep)
// and deletes exactly that member.
func (s *SessionStore) RemoveSession(ctx context.Context, uid moneta.UserId, setId string) error {
	if _, err := s.CheckSession(ctx, uid, setId); err != nil {
		return err
	}
	key, err := sessionKey(uid, setId)
	if err != nil {
		return err
	}
	err = s.Buntdb.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		if err != nil && !errors.Is(err, buntdb.ErrNotFound) {
			return fmt.Errorf("delete session member: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bunt update: %w", err)
	}
	return nil
}

func (s *SessionStore) ActiveSessions(ctx context.Context, uid moneta.UserId) ([]moneta.Session, error) {
	prefix := sessionKeyPrefix + string(uid) + ":"
	sessions := make([]moneta.Session, 0, 4)
	err := s.Buntdb.Update(func(tx *buntdb.Tx) error {
		if _, err := s.sweepUser(tx, uid); err != nil {
			return err
		}
		return ascendKeys(tx, prefix+"*", func(key, value string) error {
			var member sessionMember
			if err := json.Unmarshal([]byte(value), &member); err != nil {
				return fmt.Errorf("deserialize session member: %w", err)
			}
			sessions = append(sessions, moneta.Session{
				UserId:       uid,
				SetId:        strings.TrimPrefix(key, prefix),
				RefreshToken: member.RefreshToken,
				ExpiresAt:    member.ExpiresAt,
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("bunt update: %w", err)
	}
	return sessions, nil
}

// SweepExpired removes expired members across all users.
func (s *SessionStore) SweepExpired(ctx context.Context) (int, error) {
	removed := 0
	err := s.Buntdb.Update(func(tx *buntdb.Tx) error {
		n, err := s.sweepPattern(tx, sessionKeyPrefix+"*")
		removed = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("bunt update: %w", err)
	}
	return removed, nil
}

func (s *SessionStore) sweepUser(tx *buntdb.Tx, uid moneta.UserId) (int, error) {
	return s.sweepPattern(tx, sessionKeyPrefix+string(uid)+":*")
}

// sweepPattern deletes matching members whose stored expiry has passed.
func (s *SessionStore) sweepPattern(tx *buntdb.Tx, pattern string) (int, error) {
	now := s.now()
	var stale []string
	err := ascendKeys(tx, pattern, func(key, value string) error {
		var member sessionMember
		if err := json.Unmarshal([]byte(value), &member); err != nil {
			return fmt.Errorf("deserialize session member: %w", err)
		}
		if !member.ExpiresAt.After(now) {
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, key := range stale {
		if _, err := tx.Delete(key); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
			return 0, fmt.Errorf("delete expired member: %w", err)
		}
	}
	return len(stale), nil
}

// ascendKeys iterates matching entries, carrying iterator errors out of the
// ascend callback. Mutation happens after iteration - buntdb forbids writes
// from inside an iterator.
func ascendKeys(tx *buntdb.Tx, pattern string, fn func(key, value string) error) error {
	var iterErr error
	err := tx.AscendKeys(pattern, func(key, value string) bool {
		if err := fn(key, value); err != nil {
			iterErr = err
			return false
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("ascend %s: %w", pattern, err)
	}
	return iterErr
}
