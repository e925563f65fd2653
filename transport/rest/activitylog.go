package rest

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/moneta-app/moneta"
)

const defaultActivityPageSize = 50

type ActivityController struct {
	Store moneta.ActivityStore
}

func (c *ActivityController) InstallTo(requestAuthorizer fiber.Handler, app *fiber.App) {
	app.Get("/users/me/activity", combineHandlers(requestAuthorizer, c.serveActivity))
}

func (c *ActivityController) serveActivity(ctx *fiber.Ctx) error {
	claims, err := principal(ctx)
	if err != nil {
		return err
	}

	beforeId := int64(-1)
	if raw := ctx.Query("before_id"); raw != "" {
		beforeId, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid before_id")
		}
	}

	logs, err := c.Store.ByUserId(ctx.Context(), claims.Uid, beforeId, defaultActivityPageSize)
	if err != nil {
		return domainError(err)
	}

	type Log struct {
		Id        int64                  `json:"id"`
		CreatedAt int64                  `json:"createdAt"`
		Name      string                 `json:"name"`
		Data      map[string]interface{} `json:"data,omitempty"`
	}
	mapped := make([]Log, len(logs))
	for i, log := range logs {
		mapped[i] = Log{Id: log.Id, CreatedAt: log.CreatedAt.Unix(), Name: log.Name, Data: log.Data}
	}
	return ctx.JSON(mapped)
}
