package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/travigo/railops/pkg/engine"
	"github.com/travigo/railops/pkg/util"
)

func TicksRouter(router fiber.Router, e *engine.Engine) {
	router.Get("/latest", func(c *fiber.Ctx) error {
		return c.JSON(e.LastReport())
	})

	// Tick defaults to the next tick, Duration is an ISO8601 duration defaulting to the configured one
	router.Post("/", func(c *fiber.Ctx) error {
		var requestBody struct {
			Tick     *int64
			Duration string
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&requestBody); err != nil {
				return sendBadRequest(c, "Could not parse tick body")
			}
		}

		tick := e.Tick() + 1
		if requestBody.Tick != nil {
			tick = *requestBody.Tick
		}

		var duration time.Duration
		if requestBody.Duration != "" {
			var err error
			duration, err = util.ParseDuration(requestBody.Duration)
			if err != nil || duration <= 0 {
				return sendBadRequest(c, "Duration should be a positive ISO8601 duration")
			}
		}

		report, err := e.AdvanceTick(tick, duration)
		if err != nil {
			return sendError(c, err)
		}

		return c.JSON(report)
	})
}
