package worker

import (
	"context"
	"log"

	"storefront/internal/broker"
	"storefront/internal/tracking"

	"github.com/segmentio/kafka-go"
)

// LocationWorker bridges the vendor location feed into the tracking hub:
// it consumes location events from Kafka and broadcasts them to the rooms
// WebSocket clients have joined.
type LocationWorker struct {
	consumer *broker.Consumer
	hub      *tracking.Hub
}

// NewLocationWorker creates a new location worker
func NewLocationWorker(consumer *broker.Consumer, hub *tracking.Hub) *LocationWorker {
	return &LocationWorker{
		consumer: consumer,
		hub:      hub,
	}
}

// Start starts the worker
func (w *LocationWorker) Start(ctx context.Context) error {
	log.Println("Starting location worker...")

	return w.consumer.StartConsuming(ctx, func(ctx context.Context, msg kafka.Message) error {
		event, err := broker.DecodeLocationUpdate(msg.Value)
		if err != nil {
			// Malformed feed messages are dropped, not retried.
			log.Printf("Skipping location message: %v", err)
			return nil
		}

		w.hub.Broadcast(event.Update())
		return nil
	})
}

// Stop stops the worker
func (w *LocationWorker) Stop() error {
	log.Println("Stopping location worker...")
	return w.consumer.Close()
}
