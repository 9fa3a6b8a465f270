package api

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/consumer"
	"github.com/travigo/railops/pkg/engine"
	"github.com/travigo/railops/pkg/intents"
	"github.com/travigo/railops/pkg/redis_client"
	"github.com/travigo/railops/pkg/util"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Provides the dispatcher web API in front of a running engine",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run the engine tick loop and web api server",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
					&cli.BoolFlag{
						Name:  "paused",
						Usage: "only advance ticks through the API",
					},
					&cli.BoolFlag{
						Name:  "intents",
						Usage: "consume intents from the redis intents queue (requires --redis)",
					},
					&cli.BoolFlag{
						Name:  "stomp",
						Usage: "consume intents from the RAILOPS_STOMP_* broker",
					},
				}, engine.Flags...),
				Action: func(c *cli.Context) error {
					e, err := engine.Load(c)
					if err != nil {
						return err
					}
					defer e.Close()

					ctx, cancel := context.WithCancel(context.Background())
					defer cancel()

					if !c.Bool("paused") {
						go e.Run(ctx, e.Config().TickInterval, e.Config().TickDuration)
					}

					if c.Bool("intents") && redis_client.QueueConnection != nil {
						redisConsumer := consumer.RedisConsumer{
							QueueName:       intents.QueueName,
							NumberConsumers: 1,
							BatchSize:       10,
							Timeout:         time.Second,
							Consumer:        intents.NewIntentsBatchConsumer(e),
						}
						redisConsumer.Setup()
					}

					env := util.GetEnvironmentVariables()

					if c.Bool("stomp") {
						stompClient := &intents.StompClient{
							Address:   env["RAILOPS_STOMP_ADDRESS"],
							Username:  env["RAILOPS_STOMP_USERNAME"],
							Password:  env["RAILOPS_STOMP_PASSWORD"],
							QueueName: env["RAILOPS_STOMP_QUEUE"],
							Handler:   e,
						}
						go func() {
							if err := stompClient.Run(ctx); err != nil {
								log.Error().Err(err).Msg("Stomp intent feed stopped")
							}
						}()
					}

					options := ServerOptions{}
					if env["AUTH0_DOMAIN"] != "" {
						options.Authorise = EnsureValidToken(env["AUTH0_DOMAIN"], env["AUTH0_AUDIENCE"])
					}

					webApp := NewServer(e, options)

					go func() {
						signals := make(chan os.Signal, 1)
						signal.Notify(signals, syscall.SIGINT)

						<-signals // wait for signal
						go func() {
							<-signals // hard exit on second signal (in case shutdown gets stuck)
							os.Exit(1)
						}()

						cancel()
						if redis_client.QueueConnection != nil {
							<-redis_client.QueueConnection.StopAllConsuming()
						}
						webApp.Shutdown()
					}()

					log.Info().Str("listen", c.String("listen")).Msg("Starting web api")

					return webApp.Listen(c.String("listen"))
				},
			},
		},
	}
}
