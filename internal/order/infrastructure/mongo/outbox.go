package mongo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	store "github.com/dmehra2102/shop-assistant/internal/storage/mongo"
	"github.com/dmehra2102/shop-assistant/pkg/outbox"
)

type OutboxStore struct {
	log        *slog.Logger
	collection *mongo.Collection
}

func NewOutboxStore(log *slog.Logger, db *mongo.Database) *OutboxStore {
	return &OutboxStore{log: log, collection: db.Collection(store.Outbox)}
}

// LockBatch claims events one at a time with findOneAndUpdate, so two relays
// never receive the same event.
func (s *OutboxStore) LockBatch(ctx context.Context, relayID string, batchSize int, lease time.Duration) ([]outbox.Event, error) {
	var events []outbox.Event
	for len(events) < batchSize {
		now := time.Now().UTC()
		filter := bson.M{"$or": bson.A{
			bson.M{"status": string(outbox.StatusPending)},
			bson.M{"status": string(outbox.StatusInProgress), "lease_until": bson.M{"$lt": now}},
		}}
		update := bson.M{"$set": bson.M{
			"status":      string(outbox.StatusInProgress),
			"relay_id":    relayID,
			"lease_until": now.Add(lease),
		}}
		opts := options.FindOneAndUpdate().
			SetSort(bson.D{{Key: "_id", Value: 1}}).
			SetReturnDocument(options.After)

		var doc outboxDoc
		err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
		if errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
		if err != nil {
			return events, err
		}
		events = append(events, doc.event())
	}
	return events, nil
}

func (s *OutboxStore) MarkSent(ctx context.Context, ids []int64) error {
	_, err := s.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"status": string(outbox.StatusSent)}},
	)
	return err
}

// MarkFailed returns the event to pending until it has used up
// outbox.MaxAttempts, then parks it as failed.
func (s *OutboxStore) MarkFailed(ctx context.Context, id int64, errMsg string) error {
	next := bson.A{bson.M{"$set": bson.M{
		"status": bson.M{"$cond": bson.A{
			bson.M{"$gte": bson.A{bson.M{"$add": bson.A{"$retry_count", 1}}, outbox.MaxAttempts}},
			string(outbox.StatusFailed),
			string(outbox.StatusPending),
		}},
		"retry_count": bson.M{"$add": bson.A{"$retry_count", 1}},
		"last_error":  errMsg,
	}}}
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, next)
	return err
}
