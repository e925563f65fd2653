package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/moneta-app/moneta"
	"github.com/moneta-app/moneta/auth"
)

type UserController struct {
	Service *auth.Service
	Users   moneta.UserDirectory
}

func (c *UserController) InstallTo(requestAuthorizer fiber.Handler, app *fiber.App) {
	app.Post("/users", c.serveRegister)
	app.Get("/users/me", combineHandlers(requestAuthorizer, c.serveMe))
	app.Patch("/users/me/password", combineHandlers(requestAuthorizer, c.serveChangePassword))
}

func (c *UserController) serveRegister(ctx *fiber.Ctx) error {
	body := struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}{}
	if err := ctx.BodyParser(&body); err != nil {
		requestLog(ctx).WithError(err).Infoln("Invalid body.")
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if body.Username == "" || body.Email == "" || body.Password == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing username, email or password")
	}

	user, err := c.Service.Register(ctx.Context(),
		body.Username, moneta.Email(body.Email), body.Password)
	if err != nil {
		return domainError(err)
	}

	return ctx.Status(fiber.StatusCreated).JSON(map[string]interface{}{
		"uid":      user.Uid,
		"username": user.Username,
		"email":    user.Email,
	})
}

func (c *UserController) serveMe(ctx *fiber.Ctx) error {
	claims, err := principal(ctx)
	if err != nil {
		return err
	}

	user, err := c.Users.ByUid(ctx.Context(), claims.Uid)
	if err != nil {
		return domainError(err)
	}
	return ctx.JSON(map[string]interface{}{
		"uid":           user.Uid,
		"username":      user.Username,
		"email":         user.Email,
		"emailVerified": user.EmailVerified,
		"createdAt":     user.CreatedAt.Unix(),
	})
}

func (c *UserController) serveChangePassword(ctx *fiber.Ctx) error {
	claims, err := principal(ctx)
	if err != nil {
		return err
	}
	body := struct {
		NewPassword string `json:"newPassword"`
	}{}
	if err := ctx.BodyParser(&body); err != nil {
		requestLog(ctx).WithError(err).Infoln("Invalid body.")
		return fiber.NewError(fiber.StatusBadRequest, "invalid body")
	}
	if body.NewPassword == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing password")
	}

	if err := c.Service.ChangePassword(ctx.Context(), claims.Uid, body.NewPassword); err != nil {
		return domainError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
