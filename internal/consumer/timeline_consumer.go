package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/canteen/internal/domain"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type TimelineWriter interface {
	Append(ctx context.Context, event domain.OrderEvent) (bool, error)
}

func NewKafkaReader(topic, groupID string, brokers ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
}

// Consumer projects order events into the timeline. Offsets are committed only after the entry
// is stored, so a crash replays the message and the timeline drops the duplicate.
type Consumer struct {
	reader   MessageReader
	timeline TimelineWriter
	backoff  time.Duration
	log      zerolog.Logger
}

func NewConsumer(reader MessageReader, timeline TimelineWriter, log zerolog.Logger) *Consumer {
	return &Consumer{
		reader:   reader,
		timeline: timeline,
		backoff:  time.Second,
		log:      log.With().Str("component", "timeline_consumer").Logger(),
	}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.processMessage(ctx); err != nil && ctx.Err() == nil {
			c.log.Error().Err(err).Msg("failed to process message")
			select {
			case <-time.After(c.backoff):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error().Err(err).Msg("error closing kafka reader")
	}
}

func (c *Consumer) processMessage(ctx context.Context) error {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("read message: %w", err)
	}

	var event domain.OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		// a malformed message can never succeed; skip it
		c.log.Warn().Err(err).Int64("offset", m.Offset).Msg("dropping unparsable order event")
		return c.commit(ctx, m)
	}

	inserted, err := c.timeline.Append(ctx, event)
	if err != nil {
		return fmt.Errorf("append event %s: %w", event.EventID, err)
	}
	if !inserted {
		c.log.Debug().Str("event_id", event.EventID.String()).Msg("event already recorded, skipping")
	} else {
		c.log.Info().
			Str("order_id", event.OrderID.String()).
			Str("type", string(event.Type)).
			Str("status", event.Status.String()).
			Msg("timeline updated")
	}
	return c.commit(ctx, m)
}

func (c *Consumer) commit(ctx context.Context, m kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		return fmt.Errorf("commit offset %d: %w", m.Offset, err)
	}
	return nil
}
