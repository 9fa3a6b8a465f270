package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/api"
	"github.com/travigo/railops/pkg/engine"
	"github.com/travigo/railops/pkg/events"
	"github.com/travigo/railops/pkg/intents"
	"github.com/urfave/cli/v2"
)

func main() {
	if os.Getenv("RAILOPS_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("RAILOPS_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	app := &cli.App{
		Name:        "railops",
		Description: "Rail network scheduling and conflict resolution engine",

		Commands: []*cli.Command{
			engine.RegisterCLI(),
			api.RegisterCLI(),
			events.RegisterCLI(),
			intents.RegisterCLI(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}
