package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"storefront/internal/models"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderPlaced publishes an OrderPlaced event
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// DecodeLocationUpdate parses a message from the vendor location topic.
func DecodeLocationUpdate(value []byte) (*models.LocationUpdateEvent, error) {
	var base models.BaseEvent
	if err := json.Unmarshal(value, &base); err != nil {
		return nil, fmt.Errorf("failed to unmarshal base event: %w", err)
	}
	if base.EventType != models.EventTypeLocationUpdate {
		return nil, fmt.Errorf("unexpected event type: %s", base.EventType)
	}

	var event models.LocationUpdateEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal LocationUpdate event: %w", err)
	}
	if event.VendorID == "" {
		return nil, fmt.Errorf("location update missing vendor id")
	}
	return &event, nil
}
