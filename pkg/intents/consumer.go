package intents

import (
	"context"
	"encoding/json"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/ctdf"
)

const QueueName = "intents-queue"

type BatchConsumer struct {
	Handler Handler
}

func NewIntentsBatchConsumer(handler Handler) *BatchConsumer {
	return &BatchConsumer{Handler: handler}
}

// Consume handles the batch in queue order. Payloads that cannot be decoded are rejected so they
// end up in the rejected list, anything the handler refuses has still been seen and is acked.
func (consumer *BatchConsumer) Consume(batch rmq.Deliveries) {
	ctx := context.Background()

	for _, delivery := range batch {
		payload := []byte(delivery.Payload())

		if _, err := Decode(payload); err != nil {
			log.Error().Err(err).Msg("Rejecting undecodable intent")
			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject intent")
			}
			continue
		}

		Process(ctx, consumer.Handler, payload)

		if err := delivery.Ack(); err != nil {
			log.Error().Err(err).Msg("Failed to ack intent")
		}
	}
}

// QueuePublisher pushes intents onto the redis queue for an engine process to pick up
type QueuePublisher struct {
	queue rmq.Queue
}

func NewQueuePublisher(connection rmq.Connection) (*QueuePublisher, error) {
	queue, err := connection.OpenQueue(QueueName)
	if err != nil {
		return nil, err
	}

	return &QueuePublisher{queue: queue}, nil
}

func (p *QueuePublisher) Publish(intent ctdf.Intent) error {
	intentBytes, err := json.Marshal(intent)
	if err != nil {
		return err
	}

	return p.queue.PublishBytes(intentBytes)
}
