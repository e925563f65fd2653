package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/moneta-app/moneta"
)

// Config holds the signing secret of every token class. All four must be
// provisioned; classes never share a secret.
type Config struct {
	AccessSecret            []byte
	RefreshSecret           []byte
	EmailVerificationSecret []byte
	PasswordResetSecret     []byte
}

// Service signs and verifies tokens with HS256. Pure computation; holds
// no store and performs no I/O.
type Service struct {
	Config Config

	// Now overrides the time source. Tests use it to age tokens past
	// their lifespan.
	Now func() time.Time
}

var _ moneta.TokenService = (*Service)(nil)

type accessTokenClaims struct {
	Uid   string `json:"uid"`
	SetId string `json:"setId"`
	jwt.RegisteredClaims
}

type emailTokenClaims struct {
	Uid   string `json:"uid"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) secret(class moneta.TokenClass) ([]byte, error) {
	var secret []byte
	switch class {
	case moneta.TokenAccess:
		secret = s.Config.AccessSecret
	case moneta.TokenRefresh:
		secret = s.Config.RefreshSecret
	case moneta.TokenEmailVerification:
		secret = s.Config.EmailVerificationSecret
	case moneta.TokenPasswordReset:
		secret = s.Config.PasswordResetSecret
	default:
		return nil, fmt.Errorf("unknown token class: %s", class)
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("secret for token class %s is not configured", class)
	}
	return secret, nil
}

func (s *Service) registeredClaims(ttl time.Duration) jwt.RegisteredClaims {
	now := s.now().UTC()
	return jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *Service) sign(class moneta.TokenClass, claims jwt.Claims) (string, error) {
	secret, err := s.secret(class)
	if err != nil {
		return "", err
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", class, err)
	}
	return signed, nil
}

func (s *Service) IssueAccess(uid moneta.UserId, setId string) (string, error) {
	return s.sign(moneta.TokenAccess, accessTokenClaims{
		Uid:              string(uid),
		SetId:            setId,
		RegisteredClaims: s.registeredClaims(moneta.AccessTokenTTL),
	})
}

func (s *Service) IssueRefresh(uid moneta.UserId, setId string) (string, error) {
	return s.sign(moneta.TokenRefresh, accessTokenClaims{
		Uid:              string(uid),
		SetId:            setId,
		RegisteredClaims: s.registeredClaims(moneta.RefreshTokenTTL),
	})
}

func (s *Service) IssueSingleUse(class moneta.TokenClass, uid moneta.UserId, email moneta.Email) (string, error) {
	if class != moneta.TokenEmailVerification && class != moneta.TokenPasswordReset {
		return "", fmt.Errorf("token class %s is not single-use", class)
	}
	return s.sign(class, emailTokenClaims{
		Uid:              string(uid),
		Email:            string(email),
		RegisteredClaims: s.registeredClaims(moneta.SingleUseTokenTTL),
	})
}

func (s *Service) parse(class moneta.TokenClass, token string, claims jwt.Claims) error {
	secret, err := s.secret(class)
	if err != nil {
		return err
	}
	_, err = jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	return err
}

// VerifyAccess checks the signature against the access secret. A valid but
// outlived token is not an error here: claims come back with Expired set so
// the middleware can try a silent refresh.
func (s *Service) VerifyAccess(token string) (moneta.AccessClaims, error) {
	claims := new(accessTokenClaims)
	err := s.parse(moneta.TokenAccess, token, claims)
	switch {
	case err == nil:
		return moneta.AccessClaims{Uid: moneta.UserId(claims.Uid), SetId: claims.SetId}, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return moneta.AccessClaims{Uid: moneta.UserId(claims.Uid), SetId: claims.SetId, Expired: true}, nil
	default:
		return moneta.AccessClaims{}, moneta.ErrInvalidToken
	}
}

func (s *Service) VerifyRefresh(token string) (moneta.AccessClaims, error) {
	claims := new(accessTokenClaims)
	if err := s.parse(moneta.TokenRefresh, token, claims); err != nil {
		return moneta.AccessClaims{}, moneta.ErrNotAuthorized
	}
	return moneta.AccessClaims{Uid: moneta.UserId(claims.Uid), SetId: claims.SetId}, nil
}

func (s *Service) VerifySingleUse(class moneta.TokenClass, token string) (moneta.EmailClaims, error) {
	var invalid error
	switch class {
	case moneta.TokenEmailVerification:
		invalid = moneta.ErrInvalidEmailVerification
	case moneta.TokenPasswordReset:
		invalid = moneta.ErrInvalidPasswordResetRequest
	default:
		return moneta.EmailClaims{}, fmt.Errorf("token class %s is not single-use", class)
	}

	claims := new(emailTokenClaims)
	if err := s.parse(class, token, claims); err != nil {
		return moneta.EmailClaims{}, invalid
	}
	// a token without exp never came from this service
	if claims.ExpiresAt == nil {
		return moneta.EmailClaims{}, invalid
	}
	return moneta.EmailClaims{
		Uid:       moneta.UserId(claims.Uid),
		Email:     moneta.Email(claims.Email),
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// DecodeUnverified reads identity off an email-class token without touching
// any secret. Resend flows only.
func (s *Service) DecodeUnverified(token string) (moneta.EmailClaims, error) {
	claims := new(emailTokenClaims)
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return moneta.EmailClaims{}, moneta.ErrInvalidToken
	}
	return moneta.EmailClaims{
		Uid:   moneta.UserId(claims.Uid),
		Email: moneta.Email(claims.Email),
	}, nil
}
