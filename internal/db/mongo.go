package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ukydev/bridge-traffic-sim/internal/models"
)

// ErrNilCollection is returned when a wrapper has no underlying collection.
var ErrNilCollection = errors.New("mongo collection is nil")

// ConnectMongo connects to MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// EventCollection stores journal events.
type EventCollection interface {
	InsertEvents(ctx context.Context, events []models.Event) error
	FindEvents(ctx context.Context, filter EventFilter) ([]models.Event, error)
}

// EventFilter narrows FindEvents. Empty fields match everything.
type EventFilter struct {
	RunID string
	Topic string
	Limit int64
}

func (f EventFilter) query() bson.M {
	q := bson.M{}
	if f.RunID != "" {
		q["run_id"] = f.RunID
	}
	if f.Topic != "" {
		q["topic"] = f.Topic
	}
	return q
}

// MongoEventCollection wraps a MongoDB collection for journal events.
type MongoEventCollection struct {
	Collection *mongo.Collection
}

// EnsureIndexes creates the index used by run and topic lookups.
func (c *MongoEventCollection) EnsureIndexes(ctx context.Context) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	_, err := c.Collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "topic", Value: 1}, {Key: "recorded_at", Value: -1}},
	})
	return err
}

// InsertEvents writes a batch of events.
func (c *MongoEventCollection) InsertEvents(ctx context.Context, events []models.Event) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	if len(events) == 0 {
		return nil
	}
	docs := make([]interface{}, len(events))
	for i := range events {
		docs[i] = events[i]
	}
	_, err := c.Collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}

// FindEvents returns matching events, newest first.
func (c *MongoEventCollection) FindEvents(ctx context.Context, filter EventFilter) ([]models.Event, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	cursor, err := c.Collection.Find(ctx, filter.query(), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := []models.Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// DeleteRun removes every event of one run.
func (c *MongoEventCollection) DeleteRun(ctx context.Context, runID string) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	_, err := c.Collection.DeleteMany(ctx, bson.M{"run_id": runID})
	return err
}
