package database

import (
	"context"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func createIndexes() {
	createAuditLogIndexes()
}

func createAuditLogIndexes() {
	auditLogCollection := GetCollection("audit_log")
	auditLogIndex := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "sessionidentifier", Value: 1}, {Key: "sequence", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "kind", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "result.runidentifier", Value: 1}},
		},
	}

	opts := options.CreateIndexes()
	_, err := auditLogCollection.Indexes().CreateMany(context.Background(), auditLogIndex, opts)
	if err != nil {
		log.Error().Err(err).Msg("Creating Index")
	}
}
