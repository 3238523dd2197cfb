package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/statustracker/backend/internal/config"
	"github.com/statustracker/backend/internal/core/ports"
	"github.com/statustracker/backend/internal/infrastructure/db"
	"github.com/statustracker/backend/internal/infrastructure/docstore"
	"github.com/statustracker/backend/internal/infrastructure/logger"
)

type stores struct {
	tasks   ports.TaskRepository
	results ports.ResultRepository
	close   func(ctx context.Context) error
}

// openStores picks the SQL or document backend from the database URL scheme
// and prepares its schema.
func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	switch {
	case docstore.IsMongoURL(cfg.Database.URL):
		client, database, err := docstore.NewConnection(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := docstore.EnsureIndexes(ctx, database); err != nil {
			docstore.Close(ctx, client)
			return nil, err
		}
		log.Infow("store_ready", "backend", "mongodb", "database", database.Name())
		return &stores{
			tasks:   docstore.NewTaskRepository(database, log),
			results: docstore.NewResultRepository(database, log),
			close:   func(ctx context.Context) error { return docstore.Close(ctx, client) },
		}, nil

	case db.IsSQLURL(cfg.Database.URL):
		database, err := db.NewConnection(cfg.Database, cfg.Logger.Level)
		if err != nil {
			return nil, err
		}
		if err := db.RunMigrations(database); err != nil {
			db.Close(database)
			return nil, err
		}
		log.Infow("store_ready", "backend", database.Dialector.Name())
		return &stores{
			tasks:   db.NewTaskRepository(database, log),
			results: db.NewResultRepository(database, log),
			close:   func(context.Context) error { return db.Close(database) },
		}, nil
	}

	scheme, _, _ := strings.Cut(cfg.Database.URL, "://")
	return nil, fmt.Errorf("unsupported database url scheme: %q", scheme)
}
