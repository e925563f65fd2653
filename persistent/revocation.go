package persistent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/moneta-app/moneta"
	"github.com/tidwall/buntdb"
)

const revokedKeyPrefix = "revoked:"

// RevocationStore keeps spent tokens in buntdb under
// "revoked:{uid}:{token}", valued with the unix expiry hint. JWT compact
// serialization never contains a colon, so the token can sit in the key
// as-is.
type RevocationStore struct {
	Buntdb *buntdb.DB

	// Now overrides the time source. Tests use it to age entries.
	Now func() time.Time
}

var _ moneta.RevocationStore = (*RevocationStore)(nil)

func (s *RevocationStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func revokedKey(uid moneta.UserId, token string) (string, error) {
	if strings.Contains(string(uid), ":") || strings.Contains(token, ":") {
		return "", fmt.Errorf("invalid key part: uid=%q", uid)
	}
	return revokedKeyPrefix + string(uid) + ":" + token, nil
}

// Blacklist sweeps this user's stale entries, then records the token until
// the given expiry hint.
func (s *RevocationStore) Blacklist(ctx context.Context, uid moneta.UserId, token string, until time.Time) error {
	key, err := revokedKey(uid, token)
	if err != nil {
		return err
	}
	now := s.now()
	if !until.After(now) {
		// an entry that would be swept immediately blocks nothing
		return fmt.Errorf("expiry hint %s is not in the future", until)
	}

	err = s.Buntdb.Update(func(tx *buntdb.Tx) error {
		if _, err := s.sweepUser(tx, uid); err != nil {
			return err
		}
		value := strconv.FormatInt(until.Unix(), 10)
		_, _, err := tx.Set(key, value, &buntdb.SetOptions{Expires: true, TTL: until.Sub(now)})
		if err != nil {
			return fmt.Errorf("set revocation entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("bunt update: %w", err)
	}
	return nil
}

// IsBlacklisted sweeps this user's stale entries, then answers membership
// for this exact token string.
func (s *RevocationStore) IsBlacklisted(ctx context.Context, uid moneta.UserId, token string) (bool, error) {
	key, err := revokedKey(uid, token)
	if err != nil {
		return false, err
	}

	blacklisted := false
	err = s.Buntdb.Update(func(tx *buntdb.Tx) error {
		if _, err := s.sweepUser(tx, uid); err != nil {
			return err
		}
		_, err := tx.Get(key)
		switch {
		case err == nil:
			blacklisted = true
			return nil
		case errors.Is(err, buntdb.ErrNotFound):
			return nil
		default:
			return fmt.Errorf("get revocation entry: %w", err)
		}
	})
	if err != nil {
		return false, fmt.Errorf("bunt update: %w", err)
	}
	return blacklisted, nil
}

// SweepExpired removes stale entries across all users.
func (s *RevocationStore) SweepExpired(ctx context.Context) (int, error) {
	removed := 0
	err := s.Buntdb.Update(func(tx *buntdb.Tx) error {
		n, err := s.sweepPattern(tx, revokedKeyPrefix+"*")
		removed = n
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("bunt update: %w", err)
	}
	return removed, nil
}

func (s *RevocationStore) sweepUser(tx *buntdb.Tx, uid moneta.UserId) (int, error) {
	return s.sweepPattern(tx, revokedKeyPrefix+string(uid)+":*")
}

func (s *RevocationStore) sweepPattern(tx *buntdb.Tx, pattern string) (int, error) {
	now := s.now().Unix()
	var stale []string
	err := ascendKeys(tx, pattern, func(key, value string) error {
		until, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("parse expiry hint of %s: %w", key, err)
		}
		if until <= now {
			stale = append(stale, key)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, key := range stale {
		if _, err := tx.Delete(key); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
			return 0, fmt.Errorf("delete expired entry: %w", err)
		}
	}
	return len(stale), nil
}
