package models

import "time"

// Event types
const (
	EventTypeLocationUpdate = "LOCATION_UPDATE"
	EventTypeOrderPlaced    = "ORDER_PLACED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// LocationUpdateEvent is consumed from the vendor location feed topic.
type LocationUpdateEvent struct {
	BaseEvent
	VendorID  string  `json:"vendor_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Update converts the event into the push shape delivered to subscribers.
func (e *LocationUpdateEvent) Update() LocationUpdate {
	return LocationUpdate{
		VendorID:  e.VendorID,
		Latitude:  e.Latitude,
		Longitude: e.Longitude,
		Timestamp: e.Timestamp,
	}
}

// OrderPlacedEvent is published after a checkout is accepted upstream.
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	SessionID   string          `json:"session_id"`
	VendorID    string          `json:"vendor_id"`
	TotalAmount int64           `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}
