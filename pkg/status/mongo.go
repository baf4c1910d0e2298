package status

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Default MongoDB names.
const (
	DefaultMongoDatabase   = "stackbuild"
	DefaultMongoCollection = "runs"
)

// MongoSink stores one document per run, keyed by run ID. Each save
// replaces the run's document.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection

	// Release and Arch restrict Latest to runs of one target when set.
	Release string
	Arch    string
}

// NewMongoSink connects to uri and uses the default database and collection.
func NewMongoSink(ctx context.Context, uri string) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	sink := NewMongoSinkFromCollection(client.Database(DefaultMongoDatabase).Collection(DefaultMongoCollection))
	sink.client = client
	return sink, nil
}

// NewMongoSinkFromCollection wraps an existing collection. Close does not
// disconnect its client.
func NewMongoSinkFromCollection(coll *mongo.Collection) *MongoSink {
	return &MongoSink{coll: coll}
}

// Save implements [Sink].
func (m *MongoSink) Save(ctx context.Context, s Snapshot) error {
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": s.RunID}, s, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save run %s: %w", s.RunID, err)
	}
	return nil
}

// Latest returns the most recently updated run.
func (m *MongoSink) Latest(ctx context.Context) (*Snapshot, error) {
	filter := bson.M{}
	if m.Release != "" {
		filter["release"] = m.Release
	}
	if m.Arch != "" {
		filter["arch"] = m.Arch
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "updated_at", Value: -1}})

	var s Snapshot
	err := m.coll.FindOne(ctx, filter, opts).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load latest run: %w", err)
	}
	return &s, nil
}

// Get returns the snapshot of one run.
func (m *MongoSink) Get(ctx context.Context, runID string) (*Snapshot, error) {
	var s Snapshot
	err := m.coll.FindOne(ctx, bson.M{"_id": runID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	return &s, nil
}

// Close disconnects the client opened by [NewMongoSink].
func (m *MongoSink) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	return m.client.Disconnect(ctx)
}

var (
	_ Store    = (*MongoSink)(nil)
	_ RunStore = (*MongoSink)(nil)
)
