// Package timeline keeps a read-only history of every order's status and payment changes,
// projected from the order event stream.
package timeline

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "order_timeline"

type Entry struct {
	EventID       string               `bson:"event_id" json:"event_id"`
	OrderID       string               `bson:"order_id" json:"order_id"`
	CanteenID     int64                `bson:"canteen_id" json:"canteen_id"`
	Type          domain.EventType     `bson:"type" json:"type"`
	Status        domain.OrderStatus   `bson:"status" json:"status"`
	PaymentStatus domain.PaymentStatus `bson:"payment_status" json:"payment_status"`
	ActorID       int64                `bson:"actor_id" json:"actor_id"`
	Reason        string               `bson:"reason,omitempty" json:"reason,omitempty"`
	OccurredAt    time.Time            `bson:"occurred_at" json:"occurred_at"`
	RecordedAt    time.Time            `bson:"recorded_at" json:"-"`
}

type Repository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) *Repository {
	return &Repository{collection: db.Collection(collectionName)}
}

func (r *Repository) CreateIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "order_id", Value: 1}, {Key: "occurred_at", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create timeline indexes: %w", err)
	}
	return nil
}

// Append records the event once. Redelivered events are ignored; inserted reports whether this
// call wrote the entry.
func (r *Repository) Append(ctx context.Context, event domain.OrderEvent) (inserted bool, err error) {
	entry := Entry{
		EventID:       event.EventID.String(),
		OrderID:       event.OrderID.String(),
		CanteenID:     event.CanteenID,
		Type:          event.Type,
		Status:        event.Status,
		PaymentStatus: event.PaymentStatus,
		ActorID:       event.ActorID,
		Reason:        event.Reason,
		OccurredAt:    event.OccurredAt.UTC(),
		RecordedAt:    time.Now().UTC(),
	}

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"event_id": entry.EventID},
		bson.M{"$setOnInsert": entry},
		options.Update().SetUpsert(true))
	if err != nil {
		return false, fmt.Errorf("failed to append timeline entry: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

// GetTimeline lists the order's entries oldest first. An unknown order has an empty timeline.
func (r *Repository) GetTimeline(ctx context.Context, orderID uuid.UUID) ([]Entry, error) {
	cursor, err := r.collection.Find(ctx,
		bson.M{"order_id": orderID.String()},
		options.Find().SetSort(bson.D{{Key: "occurred_at", Value: 1}, {Key: "recorded_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]Entry, 0)
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode timeline: %w", err)
	}
	return entries, nil
}
