package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/statustracker/backend/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	tasksCollection   = "processing_tasks"
	resultsCollection = "result_records"
)

func IsMongoURL(url string) bool {
	return strings.HasPrefix(url, "mongodb://") || strings.HasPrefix(url, "mongodb+srv://")
}

func NewConnection(ctx context.Context, cfg config.DatabaseConfig) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(cfg.URL).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout)
	if cfg.MaxOpenConns > 0 {
		opts.SetMaxPoolSize(uint64(cfg.MaxOpenConns))
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("mongodb ping failed: %w", err)
	}

	return client, client.Database(cfg.Name), nil
}

func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(tasksCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "started_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create task indexes: %w", err)
	}

	_, err = database.Collection(resultsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "subject_id", Value: 1}, {Key: "checked_at", Value: -1}},
			Options: options.Index().SetName("idx_result_records_subject_checked"),
		},
		{Keys: bson.D{{Key: "task_id", Value: 1}}},
		{Keys: bson.D{{Key: "checked_at", Value: -1}}},
		{Keys: bson.D{{Key: "synced", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create result indexes: %w", err)
	}
	return nil
}

func Close(ctx context.Context, client *mongo.Client) error {
	if client == nil {
		return nil
	}
	return client.Disconnect(ctx)
}
