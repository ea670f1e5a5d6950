package publisher

import (
	"context"
	"time"

	"github.com/fjod/go_cart/canteen/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const HeaderEventType = "event_type"

type OutboxStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*repository.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id uuid.UUID) error
	PurgeProcessed(ctx context.Context, olderThan time.Time) (int64, error)
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Interval  time.Duration
	BatchSize int
	Retention time.Duration
}

func NewKafkaWriter(topic string, brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

// OutboxPoller relays committed order events to Kafka. Messages are keyed by order id, so all
// events of one order land on one partition in commit order.
type OutboxPoller struct {
	interval  time.Duration
	purgeTick time.Duration
	retention time.Duration
	batchSize int
	store     OutboxStore
	writer    MessageWriter
	log       zerolog.Logger
}

func NewOutboxPoller(store OutboxStore, writer MessageWriter, cfg Config, log zerolog.Logger) *OutboxPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 7 * 24 * time.Hour
	}
	return &OutboxPoller{
		interval:  cfg.Interval,
		purgeTick: time.Hour,
		retention: cfg.Retention,
		batchSize: cfg.BatchSize,
		store:     store,
		writer:    writer,
		log:       log.With().Str("component", "outbox_poller").Logger(),
	}
}

func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.interval)
	purgeTicker := time.NewTicker(p.purgeTick)
	defer eventTicker.Stop()
	defer purgeTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-purgeTicker.C:
			p.purgeProcessed(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// processUnpublishedEvents publishes one batch and returns how many events were relayed. It
// stops at the first failure so later events of the same order are not published ahead of it.
func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) int {
	events, err := p.store.GetUnprocessedEvents(ctx, p.batchSize)
	if err != nil {
		p.log.Error().Err(err).Msg("failed to fetch outbox events")
		return 0
	}

	published := 0
	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			p.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to publish event")
			return published
		}
		if err := p.store.MarkEventAsProcessed(ctx, event.ID); err != nil {
			// the event goes out again next tick; consumers drop duplicates by event id
			p.log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to mark event as processed")
			return published
		}
		published++
	}
	if published > 0 {
		p.log.Debug().Int("count", published).Msg("outbox events published")
	}
	return published
}

func (p *OutboxPoller) purgeProcessed(ctx context.Context) {
	n, err := p.store.PurgeProcessed(ctx, time.Now().Add(-p.retention))
	if err != nil {
		p.log.Error().Err(err).Msg("failed to purge outbox")
		return
	}
	if n > 0 {
		p.log.Info().Int64("count", n).Msg("purged published outbox events")
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateId.String()),
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.EventType)},
		},
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}
