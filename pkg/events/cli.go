package events

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/travigo/railops/pkg/consumer"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/elastic_client"
	"github.com/travigo/railops/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "Provides the events indexer",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "index engine events into elasticsearch",
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}
					if err := elastic_client.Connect(true); err != nil {
						return err
					}
					if err := SetupIndexTemplate(); err != nil {
						return err
					}

					redisConsumer := consumer.RedisConsumer{
						QueueName:       QueueName,
						NumberConsumers: 5,
						BatchSize:       20,
						Timeout:         2 * time.Second,
						Consumer:        NewEventsBatchConsumer(),
						StatsServer:     true,
					}
					redisConsumer.Setup()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish
					elastic_client.WaitUntilQueueEmpty()

					return nil
				},
			},
			{
				Name:  "test-event",
				Usage: "generate a test event",
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					publisher, err := NewQueuePublisher(redis_client.QueueConnection)
					if err != nil {
						return err
					}

					publisher.Publish(ctdf.Event{
						Type:      ctdf.EventTypeIncidentCreated,
						Timestamp: time.Now(),
						Body: ctdf.Incident{
							PrimaryIdentifier: "INC-TEST",
							Type:              ctdf.IncidentTypeSignalFailure,
							LocationRef:       "STN-B",
							Severity:          ctdf.SeverityLow,
							Status:            ctdf.IncidentStatusOpen,
							Description:       "Test incident",
						},
					})

					return nil
				},
			},
		},
	}
}
