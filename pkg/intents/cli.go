package intents

import (
	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "intents",
		Usage: "Send dispatcher intents to a running engine",
		Subcommands: []*cli.Command{
			{
				Name:  "send",
				Usage: "publish a single intent to the intents queue",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "action",
						Required: true,
						Usage:    "CREATE_INCIDENT, DELAY_TRAIN, BLOCK_SECTION or OPTIMIZE",
					},
					&cli.StringFlag{Name: "incident-type"},
					&cli.StringFlag{Name: "location"},
					&cli.StringFlag{Name: "severity"},
					&cli.StringFlag{Name: "description"},
					&cli.StringFlag{Name: "train"},
					&cli.Float64Flag{Name: "minutes"},
					&cli.StringFlag{Name: "section"},
				},
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					publisher, err := NewQueuePublisher(redis_client.QueueConnection)
					if err != nil {
						return err
					}

					intent := ctdf.Intent{
						Action: ctdf.IntentAction(c.String("action")),
						Parameters: ctdf.IntentParameters{
							IncidentType: ctdf.IncidentType(c.String("incident-type")),
							LocationRef:  c.String("location"),
							Severity:     ctdf.Severity(c.String("severity")),
							Description:  c.String("description"),
							TrainRef:     c.String("train"),
							DelayMinutes: c.Float64("minutes"),
							SectionRef:   c.String("section"),
						},
					}

					if err := publisher.Publish(intent); err != nil {
						return err
					}

					log.Info().Str("action", string(intent.Action)).Msg("Intent published")

					return nil
				},
			},
		},
	}
}
