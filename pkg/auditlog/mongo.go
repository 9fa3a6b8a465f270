package auditlog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/travigo/railops/pkg/database"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "audit_log"

type BatchProcessingQueue struct {
	Timeout time.Duration
	Items   chan (mongo.WriteModel)
}

func (b *BatchProcessingQueue) Add(item mongo.WriteModel) {
	b.Items <- item
}

func (b *BatchProcessingQueue) Process() {
	go func(b *BatchProcessingQueue) {
		auditLogCollection := database.GetCollection(collectionName)

		ticker := time.NewTicker(b.Timeout)

		for range ticker.C {
			batchItems := []mongo.WriteModel{}

			running := true

			for running {
				select {
				case i := <-b.Items:
					batchItems = append(batchItems, i)
				default:
					running = false
				}
			}

			if len(batchItems) > 0 {
				log.Debug().Int("Length", len(batchItems)).Msg("Bulk write audit log")
				_, err := auditLogCollection.BulkWrite(context.Background(), batchItems, options.BulkWrite().SetOrdered(true))
				if err != nil {
					log.Error().Err(err).Msg("Failed to bulk write audit log")
				}
			}
		}
	}(b)
}

// MongoRecorder batches entries into the audit_log collection
type MongoRecorder struct {
	Queue *BatchProcessingQueue
}

func NewMongoRecorder() *MongoRecorder {
	queue := &BatchProcessingQueue{
		Timeout: 2 * time.Second,
		Items:   make(chan mongo.WriteModel, 1000),
	}
	queue.Process()

	return &MongoRecorder{Queue: queue}
}

func (m *MongoRecorder) Record(entry Entry) {
	m.Queue.Add(mongo.NewInsertOneModel().SetDocument(entry))
}

// LoadSession reads back every entry of a session in sequence order
func LoadSession(ctx context.Context, sessionIdentifier string) ([]Entry, error) {
	collection := database.GetCollection(collectionName)

	opts := options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}})
	cursor, err := collection.Find(ctx, bson.M{"sessionidentifier": sessionIdentifier}, opts)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

// LoadOptimizationResult finds a finished run in the history
func LoadOptimizationResult(ctx context.Context, runIdentifier string) (*Entry, error) {
	collection := database.GetCollection(collectionName)

	var entry Entry
	err := collection.FindOne(ctx, bson.M{"kind": EntryKindOptimizationComplete, "result.runidentifier": runIdentifier}).Decode(&entry)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}
