package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/travigo/railops/pkg/api/routes"
	"github.com/travigo/railops/pkg/engine"
)

type ServerOptions struct {
	// Checks write requests, nil leaves the API open
	Authorise fiber.Handler
}

func NewServer(e *engine.Engine, options ServerOptions) *fiber.App {
	webApp := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	webApp.Use(NewLogger())

	group := webApp.Group("/railops")

	group.Get("version", routes.APIVersion)

	if options.Authorise != nil {
		group.Use(writesOnly(options.Authorise))
	}

	routes.SnapshotRouter(group.Group("/snapshot"), e)
	routes.StationsRouter(group.Group("/stations"), e)
	routes.TracksRouter(group.Group("/tracks"), e)
	routes.ConflictsRouter(group.Group("/conflicts"), e)
	routes.StatsRouter(group.Group("/stats"), e)

	routes.TrainsRouter(group.Group("/trains"), e)
	routes.IncidentsRouter(group.Group("/incidents"), e)
	routes.TicksRouter(group.Group("/ticks"), e)

	routes.OptimizationsRouter(group.Group("/optimizations"), e)
	routes.ActionsRouter(group.Group("/actions"), e)
	routes.IntentsRouter(group.Group("/intents"), e)

	return webApp
}

func SetupServer(listen string, e *engine.Engine, options ServerOptions) error {
	return NewServer(e, options).Listen(listen)
}

// writesOnly runs the handler in front of anything that is not a read
func writesOnly(handler fiber.Handler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodGet || c.Method() == fiber.MethodHead {
			return c.Next()
		}

		return handler(c)
	}
}
