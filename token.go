package moneta

import (
	"errors"
	"time"
)

// Token classes. Each class is signed with its own secret and carries
// its own lifespan.
type TokenClass string

const (
	TokenAccess            TokenClass = "ACCESS"
	TokenRefresh           TokenClass = "REFRESH"
	TokenEmailVerification TokenClass = "EMAIL"
	TokenPasswordReset     TokenClass = "PASSRESET"
)

const (
	AccessTokenTTL    = 10 * time.Minute
	RefreshTokenTTL   = 30 * 24 * time.Hour
	SingleUseTokenTTL = 24 * time.Hour
)

// TTL returns the lifespan of tokens of this class.
func (c TokenClass) TTL() time.Duration {
	switch c {
	case TokenAccess:
		return AccessTokenTTL
	case TokenRefresh:
		return RefreshTokenTTL
	default:
		return SingleUseTokenTTL
	}
}

var (
	// ErrInvalidToken - token is malformed or its signature does not match.
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotAuthorized - credential is missing, revoked or expired beyond recovery.
	ErrNotAuthorized = errors.New("not authorized")

	ErrInvalidEmailVerification    = errors.New("email verification is no longer valid")
	ErrInvalidPasswordResetRequest = errors.New("password reset request is no longer valid")

	// ErrUidMismatch - identity in the verified payload disagrees with the
	// identity addressed by the request.
	ErrUidMismatch = errors.New("uid mismatch")
)

// AccessClaims is the payload of access and refresh tokens.
//
// Expired is set (instead of returning an error) when an access token has a
// valid signature but its lifespan has passed. The middleware uses it to
// attempt a silent refresh instead of rejecting the request outright.
// Refresh tokens never come back expired - they fail with ErrNotAuthorized.
type AccessClaims struct {
	Uid     UserId
	SetId   string
	Expired bool
}

// EmailClaims is the payload of the single-use classes
// (email verification, password reset).
type EmailClaims struct {
	Uid   UserId
	Email Email

	// ExpiresAt of the presented token. Zero when the token was decoded
	// without signature verification.
	ExpiresAt time.Time
}

// TokenService mints and verifies the four token classes. Issue and verify
// are pure computations - no store is ever touched here.
type TokenService interface {
	IssueAccess(uid UserId, setId string) (string, error)

	IssueRefresh(uid UserId, setId string) (string, error)

	// IssueSingleUse mints an email verification or password reset token.
	IssueSingleUse(class TokenClass, uid UserId, email Email) (string, error)

	// VerifyAccess returns claims with Expired set when the signature is
	// valid but the token lifespan has passed. Bad signature: ErrInvalidToken.
	VerifyAccess(token string) (AccessClaims, error)

	// VerifyRefresh fails with ErrNotAuthorized on any invalid or expired
	// refresh token. An expired refresh token cannot be resurrected.
	VerifyRefresh(token string) (AccessClaims, error)

	// VerifySingleUse fails with ErrInvalidEmailVerification or
	// ErrInvalidPasswordResetRequest (per class) on expired or invalid input.
	VerifySingleUse(class TokenClass, token string) (EmailClaims, error)

	// DecodeUnverified extracts claims without checking the signature.
	// Identity readout for resend flows only - never an authorization input.
	DecodeUnverified(token string) (EmailClaims, error)
}
