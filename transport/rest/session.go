package rest

import (
	"github.com/gofiber/fiber/v2"
	"github.com/moneta-app/moneta"
)

type SessionController struct {
	Store moneta.SessionStore
}

func (c *SessionController) InstallTo(requestAuthorizer fiber.Handler, app *fiber.App) {
	app.Get("/auth/sessions", combineHandlers(requestAuthorizer, c.serveSessions))
	app.Delete("/auth/sessions/:set_id", combineHandlers(requestAuthorizer, c.serveDeleteSession))
}

func (c *SessionController) serveSessions(ctx *fiber.Ctx) error {
	claims, err := principal(ctx)
	if err != nil {
		return err
	}

	sessions, err := c.Store.ActiveSessions(ctx.Context(), claims.Uid)
	if err != nil {
		return domainError(err)
	}

	// session metadata only. the bound refresh token never leaves
	// the server.
	type SessionMeta struct {
		SetId     string `json:"setId"`
		ExpiresAt int64  `json:"expiresAt"`
		Current   bool   `json:"current"`
	}
	metas := make([]SessionMeta, len(sessions))
	for i, session := range sessions {
		metas[i] = SessionMeta{
			SetId:     session.SetId,
			ExpiresAt: session.ExpiresAt.Unix(),
			Current:   session.SetId == claims.SetId,
		}
	}
	return ctx.JSON(metas)
}

func (c *SessionController) serveDeleteSession(ctx *fiber.Ctx) error {
	claims, err := principal(ctx)
	if err != nil {
		return err
	}
	setId := ctx.Params("set_id")
	if setId == "" {
		return fiber.NewError(fiber.StatusBadRequest, "no set id")
	}

	if err := c.Store.RemoveSession(ctx.Context(), claims.Uid, setId); err != nil {
		return domainError(err)
	}
	return ctx.SendStatus(fiber.StatusNoContent)
}
