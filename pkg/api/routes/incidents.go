package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/engine"
	"github.com/travigo/railops/pkg/util"
)

func IncidentsRouter(router fiber.Router, e *engine.Engine) {
	router.Get("/", func(c *fiber.Ctx) error {
		incidents := e.Incidents()

		if c.QueryBool("open") {
			util.InPlaceFilter(&incidents, func(incident ctdf.Incident) bool {
				return incident.IsOpen()
			})
		}

		return sendReduced(c, "Incidents", incidents)
	})

	router.Get("/:identifier", func(c *fiber.Ctx) error {
		incident, err := e.Incident(c.Params("identifier"))
		if err != nil {
			return sendError(c, err)
		}

		return sendReduced(c, "Incident", incident)
	})

	router.Post("/", func(c *fiber.Ctx) error {
		var requestBody struct {
			Type        ctdf.IncidentType
			LocationRef string
			Severity    ctdf.Severity
			Description string
		}
		if err := c.BodyParser(&requestBody); err != nil {
			return sendBadRequest(c, "Could not parse incident body")
		}

		incident, err := e.CreateIncident(requestBody.Type, requestBody.LocationRef, requestBody.Severity, requestBody.Description)
		if err != nil {
			return sendError(c, err)
		}

		c.Status(fiber.StatusCreated)
		return sendReduced(c, "Incident", incident)
	})

	router.Post("/:identifier/resolve", func(c *fiber.Ctx) error {
		incident, err := e.ResolveIncident(c.Params("identifier"))
		if err != nil {
			return sendError(c, err)
		}

		return sendReduced(c, "Incident", incident)
	})
}
