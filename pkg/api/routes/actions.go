package routes

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/engine"
)

func ActionsRouter(router fiber.Router, e *engine.Engine) {
	router.Get("/", func(c *fiber.Ctx) error {
		return sendReduced(c, "Actions", e.PendingActions())
	})

	router.Post("/", func(c *fiber.Ctx) error {
		var action ctdf.Action
		if err := c.BodyParser(&action); err != nil {
			return sendBadRequest(c, "Could not parse action body")
		}

		if err := e.ApplyAction(action); err != nil {
			return sendError(c, err)
		}

		c.Status(fiber.StatusAccepted)
		return sendReduced(c, "Action", action)
	})
}

type IntentHandler interface {
	HandleIntent(ctx context.Context, intent ctdf.Intent) (ctdf.IntentResult, error)
}

func IntentsRouter(router fiber.Router, handler IntentHandler) {
	router.Post("/", func(c *fiber.Ctx) error {
		var intent ctdf.Intent
		if err := c.BodyParser(&intent); err != nil {
			return sendBadRequest(c, "Could not parse intent body")
		}

		result, err := handler.HandleIntent(c.UserContext(), intent)
		if err != nil {
			return sendError(c, err)
		}

		return c.JSON(result)
	})
}
