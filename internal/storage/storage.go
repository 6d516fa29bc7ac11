// Package storage persists product records.
package storage

import (
	"fmt"
	"log/slog"

	"github.com/IshaanNene/PharmCrawl/internal/catalog"
	"github.com/IshaanNene/PharmCrawl/internal/config"
	"github.com/IshaanNene/PharmCrawl/internal/types"
)

// Storage is the interface for all storage backends.
type Storage interface {
	// Store persists a batch of items.
	Store(items []*types.Item) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// New creates the backend selected by cfg.Type.
func New(cfg config.StorageConfig, logger *slog.Logger) (Storage, error) {
	if cfg.Type == "multi" {
		backends := make([]Storage, 0, len(cfg.Backends))
		for _, name := range cfg.Backends {
			sub := cfg
			sub.Type = name
			s, err := New(sub, logger)
			if err != nil {
				for _, b := range backends {
					b.Close()
				}
				return nil, err
			}
			backends = append(backends, s)
		}
		return NewMultiStorage(backends, logger), nil
	}

	switch cfg.Type {
	case "json", "jsonl", "csv":
		return backend(NewFileStorage(cfg.Type, cfg.OutputPath, logger))
	case "mongodb":
		return backend(NewMongoStorage(cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection, logger))
	case "postgres":
		return backend(NewPostgresStorage(cfg.Postgres.DSN, cfg.Postgres.Table, logger))
	default:
		return nil, &types.StorageError{Backend: cfg.Type, Err: fmt.Errorf("unsupported storage type")}
	}
}

// backend keeps a failed constructor's nil pointer out of the interface.
func backend[S Storage](s S, err error) (Storage, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// document returns what gets serialized for an item: the typed record when
// the item carries one, so field order follows the record, and the plain
// field map otherwise.
func document(item *types.Item) any {
	if rec, ok := catalog.RecordFromItem(item); ok {
		return rec
	}
	return item.Document()
}
