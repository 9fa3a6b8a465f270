package routes

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/travigo/railops/pkg/ctdf"
)

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ctdf.ErrUnknownTrain),
		errors.Is(err, ctdf.ErrUnknownIncident),
		errors.Is(err, ctdf.ErrUnknownRun):
		return fiber.StatusNotFound
	case errors.Is(err, ctdf.ErrOptimizerBusy),
		errors.Is(err, ctdf.ErrTickOutOfOrder):
		return fiber.StatusConflict
	case errors.Is(err, ctdf.ErrUnknownLocation),
		errors.Is(err, ctdf.ErrUnknownIntent),
		errors.Is(err, ctdf.ErrInvalidAction),
		errors.Is(err, ctdf.ErrInvalidIncident),
		errors.Is(err, ctdf.ErrNoPlatformAvailable),
		errors.Is(err, ctdf.ErrSectionBlocked),
		errors.Is(err, ctdf.ErrSectionFull):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func sendError(c *fiber.Ctx, err error) error {
	c.SendStatus(errorStatus(err))
	return c.JSON(fiber.Map{
		"error": err.Error(),
	})
}

func sendBadRequest(c *fiber.Ctx, message string) error {
	c.SendStatus(fiber.StatusBadRequest)
	return c.JSON(fiber.Map{
		"error": message,
	})
}

// sendReduced strips fields outside the requested groups, ?detailed=true adds the detailed group
func sendReduced(c *fiber.Ctx, name string, data interface{}) error {
	groups := []string{"basic"}
	if c.QueryBool("detailed") {
		groups = append(groups, "detailed")
	}

	reduced, err := sheriff.Marshal(&sheriff.Options{
		Groups: groups,
	}, data)

	if err != nil {
		c.SendStatus(fiber.StatusInternalServerError)
		return c.JSON(fiber.Map{
			"error": "Sherrif could not reduce " + name,
		})
	}

	return c.JSON(reduced)
}
