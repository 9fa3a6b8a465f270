package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/ctdf"
	"github.com/travigo/railops/pkg/elastic_client"
)

type BatchConsumer struct {
	Index func(indexName string, event ctdf.Event, document []byte)
}

func NewEventsBatchConsumer() *BatchConsumer {
	return &BatchConsumer{
		Index: func(indexName string, _ ctdf.Event, document []byte) {
			elastic_client.IndexRequest(indexName, bytes.NewReader(document))
		},
	}
}

func (consumer *BatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	for _, payload := range payloads {
		var event ctdf.Event
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			log.Error().Err(err).Msg("Failed to decode event")
			continue
		}

		log.Debug().Str("type", string(event.Type)).Int64("tick", event.Tick).Msg("Event consumed")

		consumer.Index(IndexName(event), event, []byte(payload))
	}

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to ack event")
		}
	}
}

// IndexName shards events into monthly indexes
func IndexName(event ctdf.Event) string {
	return fmt.Sprintf("railops-events-%d-%02d", event.Timestamp.Year(), event.Timestamp.Month())
}

// Event bodies differ by type so they are stored but never mapped
const indexTemplate = `{
  "index_patterns": ["railops-events-*"],
  "template": {
    "mappings": {
      "properties": {
        "Type": {"type": "keyword"},
        "Timestamp": {"type": "date"},
        "Tick": {"type": "long"},
        "Body": {"type": "object", "enabled": false}
      }
    }
  }
}`

func SetupIndexTemplate() error {
	return elastic_client.PutIndexTemplate("railops-events", strings.NewReader(indexTemplate))
}
