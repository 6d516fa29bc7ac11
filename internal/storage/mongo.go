package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/PharmCrawl/internal/catalog"
	"github.com/IshaanNene/PharmCrawl/internal/types"
)

// MongoStorage inserts one document per product record into a collection
// indexed on RPC.
type MongoStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
	stored     int
	logger     *slog.Logger
}

// NewMongoStorage connects to uri and prepares database.collection.
func NewMongoStorage(uri, database, collection string, logger *slog.Logger) (*MongoStorage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	coll := client.Database(database).Collection(collection)
	if _, err := coll.Indexes().CreateOne(ctx, rpcIndex()); err != nil {
		client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("create RPC index: %w", err)}
	}

	return &MongoStorage{
		client:     client,
		collection: coll,
		logger:     logger.With("component", "mongo_storage", "collection", database+"."+collection),
	}, nil
}

func rpcIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: catalog.FieldRPC, Value: 1}},
		Options: options.Index().SetName("rpc"),
	}
}

func (s *MongoStorage) Name() string { return "mongodb" }

// Store is called from the engine's single storage goroutine.
func (s *MongoStorage) Store(items []*types.Item) error {
	docs, skipped := mongoDocuments(items)
	if skipped > 0 {
		s.logger.Warn("items without a product record skipped", "count", skipped)
	}
	if len(docs) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Unordered: one rejected document does not stop the rest of the batch.
	res, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if res != nil {
		s.stored += len(res.InsertedIDs)
	}
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	s.logger.Debug("records inserted", "count", len(docs), "total", s.stored)
	return nil
}

func (s *MongoStorage) Close() error {
	s.logger.Info("mongodb storage closing", "records", s.stored)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// mongoDocuments keeps the typed records of a batch, encoded through their
// bson tags.
func mongoDocuments(items []*types.Item) ([]any, int) {
	docs := make([]any, 0, len(items))
	for _, item := range items {
		rec, ok := catalog.RecordFromItem(item)
		if !ok {
			continue
		}
		docs = append(docs, rec)
	}
	return docs, len(items) - len(docs)
}
