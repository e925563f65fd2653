// Package auth implements the accept / silently-refresh / reject protocol
// on top of the token service, the session registry and the revocation
// ledger. It performs no transport or data-store I/O of its own - all state
// lives behind the store interfaces.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/moneta-app/moneta"
	"github.com/sirupsen/logrus"
)

// Access tokens invalidated at logout stay on the revocation ledger this
// long, far past their own 10 minute lifespan. Replay of a captured token
// is blocked for the whole window a refresh could have kept it alive.
const logoutBlacklistTTL = 30 * 24 * time.Hour

type Service struct {
	Tokens   moneta.TokenService
	Sessions moneta.SessionStore
	Revoked  moneta.RevocationStore
	Users    moneta.UserDirectory
	Mailer   moneta.Mailer

	// Activities is optional; account events are dropped when nil.
	Activities moneta.ActivityStore

	// Now overrides the time source. Tests use it to control expiry hints.
	Now func() time.Time
}

// Credentials is what a successful login hands to the transport layer. The
// refresh token is deliberately absent: it never leaves the server.
type Credentials struct {
	AccessToken string
	SetId       string
	ExpiresAt   time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Register creates the account and mails out the first email verification
// token.
func (s *Service) Register(ctx context.Context, username string, email moneta.Email, password string) (moneta.User, error) {
	user, err := s.Users.Register(ctx, username, email, password)
	if err != nil {
		return moneta.User{}, err
	}

	token, err := s.Tokens.IssueSingleUse(moneta.TokenEmailVerification, user.Uid, user.Email)
	if err != nil {
		return moneta.User{}, fmt.Errorf("issue email verification token: %w", err)
	}
	if err := s.Mailer.SendEmailVerification(ctx, user.Email, token); err != nil {
		return moneta.User{}, fmt.Errorf("send email verification: %w", err)
	}
	return user, nil
}

// Login checks credentials, opens a session under a fresh setId and returns
// the access token for the cookie. The cookie horizon matches the session
// window, not the access token lifespan - the middleware refreshes the token
// inside it.
func (s *Service) Login(ctx context.Context, username string, password string) (moneta.User, Credentials, error) {
	user, err := s.Users.ByCredentials(ctx, username, password)
	if err != nil {
		return moneta.User{}, Credentials{}, err
	}

	setId := uuid.New().String()
	accessToken, err := s.IssueAccessRefreshPair(ctx, user.Uid, setId)
	if err != nil {
		return moneta.User{}, Credentials{}, err
	}

	s.logActivity(ctx, user.Uid, moneta.ActivityLogin, map[string]interface{}{"set_id": setId})
	return user, Credentials{
		AccessToken: accessToken,
		SetId:       setId,
		ExpiresAt:   s.now().Add(moneta.RefreshTokenTTL),
	}, nil
}

// IssueAccessRefreshPair mints both tokens for (uid, setId) and binds the
// refresh token into the session registry.
func (s *Service) IssueAccessRefreshPair(ctx context.Context, uid moneta.UserId, setId string) (string, error) {
	accessToken, err := s.Tokens.IssueAccess(uid, setId)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	refreshToken, err := s.Tokens.IssueRefresh(uid, setId)
	if err != nil {
		return "", fmt.Errorf("issue refresh token: %w", err)
	}
	if err := s.Sessions.SetSession(ctx, uid, setId, refreshToken); err != nil {
		return "", fmt.Errorf("set session: %w", err)
	}
	return accessToken, nil
}

// Authenticate decides the fate of a presented access token.
//
// Valid and fresh: the principal comes back, refreshed stays empty.
// Valid but expired: one silent refresh attempt through the session's
// refresh token; on success refreshed carries the replacement access token.
// Anything else is terminal: moneta.ErrNotAuthorized, no retries.
//
// The revocation ledger is consulted on every path, so a logged-out token
// is dead even inside its natural lifespan.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (claims moneta.AccessClaims, refreshed string, err error) {
	claims, err = s.Tokens.VerifyAccess(accessToken)
	if err != nil {
		return moneta.AccessClaims{}, "", moneta.ErrNotAuthorized
	}

	blacklisted, err := s.Revoked.IsBlacklisted(ctx, claims.Uid, accessToken)
	if err != nil {
		return moneta.AccessClaims{}, "", fmt.Errorf("check revocation ledger: %w", err)
	}
	if blacklisted {
		return moneta.AccessClaims{}, "", moneta.ErrNotAuthorized
	}

	if !claims.Expired {
		return claims, "", nil
	}

	// silent refresh: the session registry decides whether this device
	// is still logged in
	refreshToken, err := s.Sessions.CheckSession(ctx, claims.Uid, claims.SetId)
	if err != nil {
		return moneta.AccessClaims{}, "", moneta.ErrNotAuthorized
	}
	if _, err := s.Tokens.VerifyRefresh(refreshToken); err != nil {
		return moneta.AccessClaims{}, "", moneta.ErrNotAuthorized
	}

	refreshed, err = s.Tokens.IssueAccess(claims.Uid, claims.SetId)
	if err != nil {
		return moneta.AccessClaims{}, "", fmt.Errorf("issue refreshed access token: %w", err)
	}
	claims.Expired = false
	return claims, refreshed, nil
}

// Logout blacklists the presented access token and tears the session down.
// The token may already be past its lifespan - its claims still identify
// the session to remove.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := s.Tokens.VerifyAccess(accessToken)
	if err != nil {
		return moneta.ErrNotAuthorized
	}

	if err := s.Revoked.Blacklist(ctx, claims.Uid, accessToken, s.now().Add(logoutBlacklistTTL)); err != nil {
		return fmt.Errorf("blacklist access token: %w", err)
	}
	if err := s.Sessions.RemoveSession(ctx, claims.Uid, claims.SetId); err != nil {
		// session already swept or removed by a concurrent logout;
		// the blacklist entry above already settles this token's fate
		if !errors.Is(err, moneta.ErrNotAuthorized) {
			return fmt.Errorf("remove session: %w", err)
		}
	}

	s.logActivity(ctx, claims.Uid, moneta.ActivityLogout, map[string]interface{}{"set_id": claims.SetId})
	return nil
}

// RequestEmailVerification mails a fresh verification token to the user.
// The stale token only identifies who asked - it is decoded, not verified,
// and authorizes nothing.
func (s *Service) RequestEmailVerification(ctx context.Context, username string, staleToken string) error {
	user, err := s.Users.ByUsername(ctx, username)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return moneta.ErrUserAlreadyVerified
	}

	decoded, err := s.Tokens.DecodeUnverified(staleToken)
	if err != nil {
		return moneta.ErrInvalidEmailVerification
	}
	if decoded.Uid != user.Uid {
		return moneta.ErrUidMismatch
	}

	token, err := s.Tokens.IssueSingleUse(moneta.TokenEmailVerification, user.Uid, user.Email)
	if err != nil {
		return fmt.Errorf("issue email verification token: %w", err)
	}
	if err := s.Mailer.SendEmailVerification(ctx, user.Email, token); err != nil {
		return fmt.Errorf("send email verification: %w", err)
	}
	return nil
}

// VerifyEmail consumes an email verification token. The uid and email from
// the request must agree with the verified payload; a replayed token fails
// with moneta.ErrBlacklistedToken.
func (s *Service) VerifyEmail(ctx context.Context, uid moneta.UserId, email moneta.Email, token string) error {
	claims, err := s.consumeSingleUse(ctx, moneta.TokenEmailVerification, token)
	if err != nil {
		return err
	}
	if claims.Uid != uid || claims.Email != email {
		return moneta.ErrUidMismatch
	}

	if err := s.Users.MarkEmailVerified(ctx, claims.Uid, claims.Email); err != nil {
		return err
	}
	if err := s.spendSingleUse(ctx, claims, token); err != nil {
		return err
	}

	s.logActivity(ctx, claims.Uid, moneta.ActivityEmailVerified, nil)
	return nil
}

// RequestPasswordReset mails a reset token to the account behind the email.
func (s *Service) RequestPasswordReset(ctx context.Context, email moneta.Email) error {
	user, err := s.Users.ByEmail(ctx, email)
	if err != nil {
		return err
	}

	token, err := s.Tokens.IssueSingleUse(moneta.TokenPasswordReset, user.Uid, user.Email)
	if err != nil {
		return fmt.Errorf("issue password reset token: %w", err)
	}
	if err := s.Mailer.SendPasswordReset(ctx, user.Email, token); err != nil {
		return fmt.Errorf("send password reset: %w", err)
	}
	return nil
}

// ResetPassword consumes a password reset token and stores the new password.
func (s *Service) ResetPassword(ctx context.Context, token string, newPassword string) error {
	claims, err := s.consumeSingleUse(ctx, moneta.TokenPasswordReset, token)
	if err != nil {
		return err
	}

	if err := s.Users.ChangePassword(ctx, claims.Uid, newPassword); err != nil {
		return err
	}
	if err := s.spendSingleUse(ctx, claims, token); err != nil {
		return err
	}

	s.logActivity(ctx, claims.Uid, moneta.ActivityPasswordReset, nil)
	return nil
}

// ChangePassword is the in-session variant of ResetPassword.
func (s *Service) ChangePassword(ctx context.Context, uid moneta.UserId, newPassword string) error {
	if err := s.Users.ChangePassword(ctx, uid, newPassword); err != nil {
		return err
	}
	s.logActivity(ctx, uid, moneta.ActivityPasswordChanged, nil)
	return nil
}

// consumeSingleUse verifies a single-use token and rejects replays. The
// matching spendSingleUse call records it once the authorized operation
// went through.
func (s *Service) consumeSingleUse(ctx context.Context, class moneta.TokenClass, token string) (moneta.EmailClaims, error) {
	claims, err := s.Tokens.VerifySingleUse(class, token)
	if err != nil {
		return moneta.EmailClaims{}, err
	}
	spent, err := s.Revoked.IsBlacklisted(ctx, claims.Uid, token)
	if err != nil {
		return moneta.EmailClaims{}, fmt.Errorf("check revocation ledger: %w", err)
	}
	if spent {
		return moneta.EmailClaims{}, moneta.ErrBlacklistedToken
	}
	return claims, nil
}

func (s *Service) spendSingleUse(ctx context.Context, claims moneta.EmailClaims, token string) error {
	// the hint mirrors the token's own horizon: once it would have expired
	// anyway, the ledger entry has nothing left to block
	if err := s.Revoked.Blacklist(ctx, claims.Uid, token, claims.ExpiresAt); err != nil {
		return fmt.Errorf("blacklist single-use token: %w", err)
	}
	return nil
}

func (s *Service) logActivity(ctx context.Context, uid moneta.UserId, name string, data map[string]interface{}) {
	if s.Activities == nil {
		return
	}
	if err := s.Activities.AddLog(ctx, uid, moneta.Activity{Name: name, Data: data}); err != nil {
		logrus.WithError(err).WithField("activity", name).Warnln("Could not record account activity.")
	}
}
