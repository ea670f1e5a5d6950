package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/google/uuid"
)

type OutboxEvent struct {
	ID          uuid.UUID  `db:"id"`
	AggregateId uuid.UUID  `db:"aggregate_id"`
	EventType   string     `db:"event_type"`
	Payload     []byte     `db:"payload"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}

type OutboxRepository struct {
	db *DB
}

func NewOutboxRepository(db *DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// AddEvent records the event inside the caller's transaction, next to the change it describes.
func (r *OutboxRepository) AddEvent(ctx context.Context, q Queryer, event domain.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal outbox event: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO outbox_events (id, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.EventID, event.OrderID, string(event.Type), payload, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

func (r *OutboxRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	var events []*OutboxEvent
	err := r.db.db.SelectContext(ctx, &events, `
		SELECT id, aggregate_id, event_type, payload, created_at, processed_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	return events, nil
}

func (r *OutboxRepository) MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event: %w", err)
	}
	return expectOne(res, fmt.Errorf("outbox event %s: %w", id, domain.ErrNotFound))
}

// PurgeProcessed removes published events older than the cutoff.
func (r *OutboxRepository) PurgeProcessed(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.db.ExecContext(ctx, `
		DELETE FROM outbox_events WHERE processed_at IS NOT NULL AND processed_at < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("purge outbox events: %w", err)
	}
	return res.RowsAffected()
}
