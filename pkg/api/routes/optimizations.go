package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/engine"
)

func OptimizationsRouter(router fiber.Router, e *engine.Engine) {
	router.Post("/", func(c *fiber.Ctx) error {
		var requestBody struct {
			Objectives *ctdf.ObjectiveWeights
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&requestBody); err != nil {
				return sendBadRequest(c, "Could not parse optimization body")
			}
		}

		run, err := e.RunOptimization(c.UserContext(), requestBody.Objectives)
		if err != nil {
			return sendError(c, err)
		}

		c.Status(fiber.StatusAccepted)
		return c.JSON(fiber.Map{
			"RunIdentifier": run.Identifier,
			"Status":        ctdf.OptimizationStatusPending,
		})
	})

	router.Get("/:identifier", func(c *fiber.Ctx) error {
		result, err := e.OptimizationResult(c.UserContext(), c.Params("identifier"))
		if err != nil {
			return sendError(c, err)
		}

		return sendReduced(c, "OptimizationResult", result)
	})

	router.Post("/:identifier/apply", func(c *fiber.Ctx) error {
		queued, err := e.ApplyOptimization(c.UserContext(), c.Params("identifier"))
		if err != nil {
			return sendError(c, err)
		}

		return sendReduced(c, "Actions", struct {
			Actions []ctdf.Action `groups:"basic"`
		}{
			Actions: queued,
		})
	})
}
