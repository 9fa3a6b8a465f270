package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/railops/pkg/engine"
	"github.com/travigo/railops/pkg/stats"
)

func SnapshotRouter(router fiber.Router, e *engine.Engine) {
	router.Get("/", func(c *fiber.Ctx) error {
		return sendReduced(c, "Snapshot", e.Snapshot())
	})
}

func StationsRouter(router fiber.Router, e *engine.Engine) {
	router.Get("/", func(c *fiber.Ctx) error {
		return sendReduced(c, "Stations", e.Snapshot().Stations)
	})
}

func TracksRouter(router fiber.Router, e *engine.Engine) {
	router.Get("/", func(c *fiber.Ctx) error {
		return sendReduced(c, "Tracks", e.Snapshot().Tracks)
	})
}

func ConflictsRouter(router fiber.Router, e *engine.Engine) {
	router.Get("/", func(c *fiber.Ctx) error {
		return sendReduced(c, "Conflicts", e.Snapshot().Conflicts)
	})
}

func StatsRouter(router fiber.Router, e *engine.Engine) {
	router.Get("/", func(c *fiber.Ctx) error {
		dashboard, trend := e.Stats()

		if limit := c.QueryInt("trend", 0); limit > 0 && limit < len(trend) {
			trend = trend[len(trend)-limit:]
		}

		return c.JSON(struct {
			Dashboard stats.DashboardStats
			Trend     []stats.TrendPoint
		}{
			Dashboard: dashboard,
			Trend:     trend,
		})
	})
}
