package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/engine"
	"github.com/travigo/railops/pkg/util"
)

func TrainsRouter(router fiber.Router, e *engine.Engine) {
	router.Get("/", func(c *fiber.Ctx) error {
		trains := e.Snapshot().Trains

		if status := c.Query("status"); status != "" {
			util.InPlaceFilter(&trains, func(train ctdf.Train) bool {
				return string(train.Status) == status
			})
		}

		return sendReduced(c, "Trains", trains)
	})

	router.Get("/:identifier", func(c *fiber.Ctx) error {
		train, err := e.Train(c.Params("identifier"))
		if err != nil {
			return sendError(c, err)
		}

		return sendReduced(c, "Train", train)
	})

	router.Post("/:identifier/delay", func(c *fiber.Ctx) error {
		var requestBody struct {
			Minutes float64
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&requestBody); err != nil {
				return sendBadRequest(c, "Could not parse delay body")
			}
		}

		train, err := e.DelayTrain(c.Params("identifier"), requestBody.Minutes)
		if err != nil {
			return sendError(c, err)
		}

		return sendReduced(c, "Train", train)
	})
}
