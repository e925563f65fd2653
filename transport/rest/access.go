package rest

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/moneta-app/moneta"
	"github.com/moneta-app/moneta/auth"
)

const (
	accessTokenCookie = "access_token"

	principalLocalsKey   = "principal"
	accessTokenLocalsKey = "access_token"
)

// RequestAuthorizer guards routes with the access token cookie. A valid
// token puts the principal into locals; an expired one is silently swapped
// for a fresh token through the session registry, with the replacement
// cookie set on the response. Everything else ends the request with 401.
func RequestAuthorizer(authService *auth.Service) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		accessToken := ctx.Cookies(accessTokenCookie)
		if accessToken == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "not-authorized")
		}

		claims, refreshed, err := authService.Authenticate(ctx.Context(), accessToken)
		if err != nil {
			return domainError(err)
		}
		if refreshed != "" {
			setAccessTokenCookie(ctx, refreshed, time.Now().Add(moneta.RefreshTokenTTL))
			accessToken = refreshed
			requestLog(ctx).
				WithField("user_id", claims.Uid).
				Infoln("Access token silently refreshed.")
		}

		ctx.Locals(principalLocalsKey, claims)
		ctx.Locals(accessTokenLocalsKey, accessToken)
		return nil
	}
}

func principal(ctx *fiber.Ctx) (moneta.AccessClaims, error) {
	claims, ok := ctx.Locals(principalLocalsKey).(moneta.AccessClaims)
	if !ok {
		return moneta.AccessClaims{}, fiber.NewError(fiber.StatusUnauthorized, "not-authorized")
	}
	return claims, nil
}

func setAccessTokenCookie(ctx *fiber.Ctx, token string, expires time.Time) {
	ctx.Cookie(&fiber.Cookie{
		Name:     accessTokenCookie,
		Value:    token,
		Expires:  expires,
		Path:     "/",
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func clearAccessTokenCookie(ctx *fiber.Ctx) {
	ctx.Cookie(&fiber.Cookie{
		Name:     accessTokenCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		Path:     "/",
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
