//go:build integration

package queue_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"

	"github.com/provelo/assay/internal/queue"
)

// setupRabbitMQ creates a RabbitMQ container for testing.
func setupRabbitMQ(t *testing.T) string {
	ctx := context.Background()

	container, err := rabbitmq.Run(ctx, "rabbitmq:3.12-management")
	if err != nil {
		t.Fatalf("failed to start RabbitMQ container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	amqpURL, err := container.AmqpURL(ctx)
	if err != nil {
		t.Fatalf("failed to get AMQP URL: %v", err)
	}
	return amqpURL
}

func TestIntegration_Connection_ConnectAndClose(t *testing.T) {
	amqpURL := setupRabbitMQ(t)

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}

	if !conn.IsConnected() {
		t.Error("expected connection to be active")
	}
	if err := conn.Close(); err != nil {
		t.Errorf("failed to close connection: %v", err)
	}
}

func TestIntegration_Connection_InvalidURL(t *testing.T) {
	_, err := queue.NewConnection("amqp://invalid:5672")
	if err == nil {
		t.Error("expected error for invalid URL")
	}
}

func TestIntegration_PublishAndConsume(t *testing.T) {
	amqpURL := setupRabbitMQ(t)

	conn, err := queue.NewConnection(amqpURL)
	if err != nil {
		t.Fatalf("failed to create connection: %v", err)
	}
	defer conn.Close()

	producer := queue.NewProducer(conn)

	var (
		mu       sync.Mutex
		received []*queue.EventEnvelope
	)
	done := make(chan struct{})

	consumer := queue.NewConsumer(conn, func(_ context.Context, envelope *queue.EventEnvelope) error {
		mu.Lock()
		defer mu.Unlock()
		received = append(received, envelope)
		if len(received) == 3 {
			close(done)
		}
		return nil
	}, queue.DefaultConsumerConfig())

	ctx := context.Background()
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("failed to start consumer: %v", err)
	}
	defer consumer.Stop()

	sessionID := uuid.New().String()
	for i := 0; i < 3; i++ {
		err := producer.PublishEvent(ctx, &queue.EventEnvelope{
			SessionID: sessionID,
			Type:      "paste",
			Meta:      json.RawMessage(`{"length":200}`),
		})
		if err != nil {
			t.Fatalf("failed to publish event: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for events")
	}

	mu.Lock()
	defer mu.Unlock()
	for _, envelope := range received {
		if envelope.SessionID != sessionID {
			t.Errorf("session id = %q; want %q", envelope.SessionID, sessionID)
		}
		if envelope.ID == uuid.Nil {
			t.Error("envelope id not stamped")
		}
		if envelope.OccurredAt.IsZero() {
			t.Error("occurred_at not stamped")
		}
	}
}
