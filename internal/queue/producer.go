package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Producer publishes behavioral events to the queue.
type Producer struct {
	conn *Connection
}

// NewProducer creates a new queue producer.
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// PublishEvent publishes one behavioral event envelope.
func (p *Producer) PublishEvent(ctx context.Context, envelope *EventEnvelope) error {
	if envelope.ID == uuid.Nil {
		envelope.ID = uuid.New()
	}
	if envelope.OccurredAt.IsZero() {
		envelope.OccurredAt = time.Now().UTC()
	}

	if err := p.conn.PublishJSON(ctx, EventQueueName, envelope); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Debug("published behavioral event",
		"event_id", envelope.ID,
		"session_id", envelope.SessionID,
		"type", envelope.Type,
	)
	return nil
}
