package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/canteen/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	m         sync.Mutex
	events    []*repository.OutboxEvent
	processed []uuid.UUID
	fetchErr  error
	markErr   error
	purged    int
}

func (s *mockStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*repository.OutboxEvent, error) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var out []*repository.OutboxEvent
	for _, e := range s.events {
		if e.ProcessedAt == nil && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *mockStore) MarkEventAsProcessed(_ context.Context, id uuid.UUID) error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	now := time.Now()
	for _, e := range s.events {
		if e.ID == id {
			e.ProcessedAt = &now
		}
	}
	s.processed = append(s.processed, id)
	return nil
}

func (s *mockStore) PurgeProcessed(context.Context, time.Time) (int64, error) {
	s.m.Lock()
	defer s.m.Unlock()
	s.purged++
	return 0, nil
}

type mockWriter struct {
	m        sync.Mutex
	messages []kafka.Message
	failOn   int
	calls    int
}

func (w *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.m.Lock()
	defer w.m.Unlock()
	w.calls++
	if w.failOn != 0 && w.calls == w.failOn {
		return errors.New("broker unavailable")
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *mockWriter) Close() error { return nil }

func newEvent(orderID uuid.UUID, eventType string) *repository.OutboxEvent {
	return &repository.OutboxEvent{
		ID:          uuid.New(),
		AggregateId: orderID,
		EventType:   eventType,
		Payload:     []byte(`{"type":"` + eventType + `"}`),
		CreatedAt:   time.Now(),
	}
}

func TestProcessUnpublishedEvents(t *testing.T) {
	orderID := uuid.New()
	store := &mockStore{events: []*repository.OutboxEvent{
		newEvent(orderID, "order.created"),
		newEvent(orderID, "order.status_changed"),
	}}
	writer := &mockWriter{}
	p := NewOutboxPoller(store, writer, Config{}, zerolog.Nop())

	n := p.processUnpublishedEvents(context.Background())

	assert.Equal(t, 2, n)
	require.Len(t, writer.messages, 2)
	assert.Equal(t, orderID.String(), string(writer.messages[0].Key))
	assert.Equal(t, HeaderEventType, writer.messages[0].Headers[0].Key)
	assert.Equal(t, "order.created", string(writer.messages[0].Headers[0].Value))
	assert.Equal(t, "order.status_changed", string(writer.messages[1].Headers[0].Value))
	assert.Len(t, store.processed, 2)

	assert.Zero(t, p.processUnpublishedEvents(context.Background()))
}

func TestProcessUnpublishedEvents_StopsAtFirstFailure(t *testing.T) {
	store := &mockStore{events: []*repository.OutboxEvent{
		newEvent(uuid.New(), "order.created"),
		newEvent(uuid.New(), "order.created"),
		newEvent(uuid.New(), "order.created"),
	}}
	writer := &mockWriter{failOn: 2}
	p := NewOutboxPoller(store, writer, Config{}, zerolog.Nop())

	n := p.processUnpublishedEvents(context.Background())

	assert.Equal(t, 1, n)
	assert.Len(t, store.processed, 1)

	n = p.processUnpublishedEvents(context.Background())
	assert.Equal(t, 2, n)
	assert.Len(t, writer.messages, 3)
}

func TestProcessUnpublishedEvents_FetchError(t *testing.T) {
	store := &mockStore{fetchErr: errors.New("db down")}
	writer := &mockWriter{}
	p := NewOutboxPoller(store, writer, Config{}, zerolog.Nop())

	assert.Zero(t, p.processUnpublishedEvents(context.Background()))
	assert.Empty(t, writer.messages)
}

func TestProcessUnpublishedEvents_MarkErrorRetriesLater(t *testing.T) {
	store := &mockStore{
		events:  []*repository.OutboxEvent{newEvent(uuid.New(), "order.created")},
		markErr: errors.New("db down"),
	}
	writer := &mockWriter{}
	p := NewOutboxPoller(store, writer, Config{}, zerolog.Nop())

	assert.Zero(t, p.processUnpublishedEvents(context.Background()))

	store.m.Lock()
	store.markErr = nil
	store.m.Unlock()
	assert.Equal(t, 1, p.processUnpublishedEvents(context.Background()))
	assert.Len(t, writer.messages, 2)
}

func TestRun_StopsOnCancel(t *testing.T) {
	store := &mockStore{events: []*repository.OutboxEvent{newEvent(uuid.New(), "order.created")}}
	writer := &mockWriter{}
	p := NewOutboxPoller(store, writer, Config{Interval: 10 * time.Millisecond}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		writer.m.Lock()
		defer writer.m.Unlock()
		return len(writer.messages) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
