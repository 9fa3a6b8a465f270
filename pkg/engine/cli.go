package engine

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/auditlog"
	"github.com/travigo/railops/pkg/config"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/database"
	"github.com/travigo/railops/pkg/events"
	"github.com/travigo/railops/pkg/network"
	"github.com/travigo/railops/pkg/redis_client"
	"github.com/travigo/railops/pkg/scheduler"
	"github.com/travigo/railops/pkg/stats"
	"github.com/urfave/cli/v2"
)

// Flags are shared by every command that builds an engine
var Flags = []cli.Flag{
	&cli.StringFlag{
		Name:  "network",
		Value: "demo",
		Usage: "network definition file or bundled network identifier",
	},
	&cli.StringFlag{
		Name:  "config",
		Usage: "engine configuration YAML file",
	},
	&cli.BoolFlag{
		Name:  "redis",
		Usage: "share optimization results and publish events through redis",
	},
	&cli.BoolFlag{
		Name:  "mongo",
		Usage: "record the audit log in mongodb",
	},
}

// Load builds an engine from the shared flags, connecting to the backing services asked for
func Load(c *cli.Context) (*Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	definition, err := network.ResolveDefinition(c.String("network"))
	if err != nil {
		return nil, err
	}

	options := Options{}

	if c.Bool("redis") {
		if err := redis_client.Connect(); err != nil {
			return nil, err
		}

		publisher, err := events.NewQueuePublisher(redis_client.QueueConnection)
		if err != nil {
			return nil, err
		}

		options.Publishers = append(options.Publishers, publisher)
		options.ResultStore = scheduler.NewCacheResultStore(redis_client.Client, 24*time.Hour)
	}

	if c.Bool("mongo") {
		if err := database.Connect(); err != nil {
			return nil, err
		}

		sequencer := auditlog.NewSequencer(auditlog.NewMongoRecorder())
		options.Recorder = sequencer

		log.Info().Str("session", sequencer.SessionIdentifier).Msg("Recording audit log")
	}

	return New(definition, cfg, options)
}

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "engine",
		Usage: "Run and inspect the scheduling engine",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the engine in real time without the API",
				Flags: Flags,
				Action: func(c *cli.Context) error {
					e, err := Load(c)
					if err != nil {
						return err
					}
					defer e.Close()

					ctx, cancel := context.WithCancel(context.Background())
					go e.Run(ctx, e.Config().TickInterval, e.Config().TickDuration)

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					cancel()

					return nil
				},
			},
			{
				Name:  "simulate",
				Usage: "step the engine through a number of ticks as fast as possible",
				Flags: append([]cli.Flag{
					&cli.IntFlag{
						Name:  "ticks",
						Value: 60,
						Usage: "number of ticks to simulate",
					},
					&cli.BoolFlag{
						Name:  "optimize",
						Usage: "optimize and apply the plan whenever conflicts are detected",
					},
				}, Flags...),
				Action: func(c *cli.Context) error {
					e, err := Load(c)
					if err != nil {
						return err
					}
					defer e.Close()

					for tick := e.Tick() + 1; tick <= int64(c.Int("ticks")); tick++ {
						report, err := e.AdvanceTick(tick, 0)
						if err != nil {
							return err
						}

						if c.Bool("optimize") && len(report.Conflicts) > 0 {
							if err := optimizeAndApply(c.Context, e); err != nil {
								return err
							}
						}
					}

					dashboard, _ := e.Stats()
					pretty.Println(dashboard)

					for _, incident := range e.Incidents() {
						if incident.IsOpen() {
							fmt.Printf("%s %s at %s: %s\n", incident.PrimaryIdentifier, incident.Type, incident.LocationRef, incident.SuggestedAction)
						}
					}

					return nil
				},
			},
			{
				Name:  "replay",
				Usage: "rebuild the engine state from a recorded session",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "session",
						Required: true,
						Usage:    "audit log session identifier",
					},
				}, Flags...),
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}

					cfg, err := config.Load(c.String("config"))
					if err != nil {
						return err
					}
					definition, err := network.ResolveDefinition(c.String("network"))
					if err != nil {
						return err
					}

					entries, err := auditlog.LoadSession(c.Context, c.String("session"))
					if err != nil {
						return err
					}

					e, err := Replay(definition, cfg, entries, Options{})
					if err != nil {
						return err
					}

					pretty.Println(stats.Calculate(e.Snapshot()))

					return nil
				},
			},
			{
				Name:  "networks",
				Usage: "list network definitions in a directory",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "directory",
						Value: "data/networks",
						Usage: "directory to search for network definitions",
					},
				},
				Action: func(c *cli.Context) error {
					definitions, err := network.GetRegisteredNetworks(c.String("directory"))
					if err != nil {
						return err
					}

					for identifier, definition := range definitions {
						fmt.Printf("%s\t%s\t%d stations\t%d tracks\t%d trains\n", identifier, definition.Name, len(definition.Stations), len(definition.Tracks), len(definition.Trains))
					}

					return nil
				},
			},
		},
	}
}

func optimizeAndApply(ctx context.Context, e *Engine) error {
	run, err := e.RunOptimization(ctx, nil)
	if err != nil {
		return err
	}

	result, err := run.Await(ctx)
	if err != nil {
		return err
	}

	if result.Status == ctdf.OptimizationStatusCancelled {
		return nil
	}

	if _, err := e.ApplyOptimization(ctx, run.Identifier); err != nil {
		return err
	}

	for _, change := range result.Changes {
		log.Info().Int64("tick", result.Tick).Str("change", change).Msg("Applied optimization")
	}

	return nil
}
