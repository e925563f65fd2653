package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/moneta-app/moneta"
	"github.com/moneta-app/moneta/auth"
)

type AuthController struct {
	Service *auth.Service
}

func (c *AuthController) InstallTo(app *fiber.App) {
	app.Post("/auth/login", c.serveLogin)
	app.Delete("/auth/logout", c.serveLogout)
	app.Post("/auth/verify-email", c.serveVerifyEmail)
	app.Post("/auth/email-verification", c.serveRequestEmailVerification)
	app.Post("/auth/password-reset-request", c.serveRequestPasswordReset)
	app.Patch("/auth/password-reset", c.serveResetPassword)
}

func (c *AuthController) serveLogin(ctx *fiber.Ctx) error {
	body := struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}{}
	if err := ctx.BodyParser(&body); err != nil {
		requestLog(ctx).WithError(err).Infoln("Invalid body.")
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if body.Username == "" || body.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing credentials")
	}

	user, creds, err := c.Service.Login(ctx.Context(), body.Username, body.Password)
	if err != nil {
		return domainError(err)
	}

	setAccessTokenCookie(ctx, creds.AccessToken, creds.ExpiresAt)
	return ctx.JSON(map[string]interface{}{
		"uid":       user.Uid,
		"username":  user.Username,
		"email":     user.Email,
		"setId":     creds.SetId,
		"expiresAt": creds.ExpiresAt.Unix(),
	})
}

// serveLogout does not run the request authorizer: a token past its
// lifespan must still be able to end its own session, and refreshing it
// first would mint a token only to blacklist its predecessor.
func (c *AuthController) serveLogout(ctx *fiber.Ctx) error {
	accessToken := ctx.Cookies(accessTokenCookie)
	if accessToken == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "not-authorized")
	}
	if err := c.Service.Logout(ctx.Context(), accessToken); err != nil {
		return domainError(err)
	}
	clearAccessTokenCookie(ctx)
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *AuthController) serveVerifyEmail(ctx *fiber.Ctx) error {
	body := struct {
		Uid   string `json:"uid"`
		Email string `json:"email"`
		Token string `json:"token"`
	}{}
	if err := ctx.BodyParser(&body); err != nil {
		requestLog(ctx).WithError(err).Infoln("Invalid body.")
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if body.Token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing token")
	}

	err := c.Service.VerifyEmail(ctx.Context(),
		moneta.UserId(body.Uid), moneta.Email(body.Email), body.Token)
	if err != nil {
		return domainError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *AuthController) serveRequestEmailVerification(ctx *fiber.Ctx) error {
	body := struct {
		Username string `json:"username"`
		Token    string `json:"token"`
	}{}
	if err := ctx.BodyParser(&body); err != nil {
		requestLog(ctx).WithError(err).Infoln("Invalid body.")
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if body.Username == "" || body.Token == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing username or token")
	}

	err := c.Service.RequestEmailVerification(ctx.Context(), body.Username, body.Token)
	if err != nil {
		return domainError(err)
	}
	return ctx.SendStatus(fiber.StatusAccepted)
}

func (c *AuthController) serveRequestPasswordReset(ctx *fiber.Ctx) error {
	body := struct {
		Email string `json:"email"`
	}{}
	if err := ctx.BodyParser(&body); err != nil {
		requestLog(ctx).WithError(err).Infoln("Invalid body.")
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if body.Email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing email")
	}

	err := c.Service.RequestPasswordReset(ctx.Context(), moneta.Email(body.Email))
	if err != nil {
		return domainError(err)
	}
	return ctx.SendStatus(fiber.StatusAccepted)
}

func (c *AuthController) serveResetPassword(ctx *fiber.Ctx) error {
	body := struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}{}
	if err := ctx.BodyParser(&body); err != nil {
		requestLog(ctx).WithError(err).Infoln("Invalid body.")
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if body.Token == "" || body.NewPassword == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing token or password")
	}

	if err := c.Service.ResetPassword(ctx.Context(), body.Token, body.NewPassword); err != nil {
		return domainError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
