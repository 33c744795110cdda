package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"sitetrack/internal/infrastructure/storage/postgres"
)

// Event is the envelope published for each outbox message.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Payload       json.RawMessage `json:"payload"`
}

// EventChannel is the pub/sub channel of an event type, for example
// sitetrack:events:material.consumed.
func EventChannel(eventType string) string {
	return Key("events", eventType)
}

// EventPublisher relays outbox messages to Redis pub/sub.
type EventPublisher struct {
	client *Client
}

var _ postgres.OutboxHandler = (*EventPublisher)(nil)

// NewEventPublisher creates a pub/sub relay target.
func NewEventPublisher(client *Client) *EventPublisher {
	return &EventPublisher{client: client}
}

// Handle publishes msg on its event channel.
func (p *EventPublisher) Handle(ctx context.Context, msg *postgres.OutboxMessage) error {
	body, err := json.Marshal(Event{
		ID:            msg.ID.String(),
		Type:          msg.EventType,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		OccurredAt:    msg.CreatedAt,
		Payload:       msg.Payload,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.client.store.Publish(ctx, EventChannel(msg.EventType), body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.EventType, err)
	}
	return nil
}
