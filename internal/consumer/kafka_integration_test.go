package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/go_cart/canteen/internal/publisher"
	"github.com/rs/zerolog"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
)

func setupKafka(t *testing.T) (string, func()) {
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func TestKafkaRoundTrip(t *testing.T) {
	broker, cleanup := setupKafka(t)
	defer cleanup()

	const topic = "canteen-order-events"
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	writer := publisher.NewKafkaWriter(topic, broker)
	defer writer.Close()

	event := sampleEvent()
	msg := eventMessage(t, 0, event)
	msg.Headers = []kafkaGo.Header{{Key: publisher.HeaderEventType, Value: []byte(event.Type)}}
	require.Eventually(t, func() bool {
		return writer.WriteMessages(ctx, msg) == nil
	}, 30*time.Second, time.Second)

	reader := NewKafkaReader(topic, "canteen-timeline-test", broker)
	timeline := &mockTimeline{}
	c := NewConsumer(reader, timeline, zerolog.Nop())
	defer c.Close()

	go c.Run(ctx)

	require.Eventually(t, func() bool {
		timeline.m.Lock()
		defer timeline.m.Unlock()
		return len(timeline.events) == 1 && timeline.events[0].EventID == event.EventID
	}, 45*time.Second, 500*time.Millisecond)
}
