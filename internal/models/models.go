package models

import "time"

// Product is a menu item offered by a vendor.
type Product struct {
	ID       int64  `json:"id"`
	VendorID string `json:"vendor_id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	ImageURL string `json:"image_url,omitempty"`
}

// CartLine is a single product entry in the cart with its quantity.
type CartLine struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	ImageURL  string `json:"image_url,omitempty"`
}

// CartState is the serialized form of a cart. VendorID is empty when the
// cart holds no items; a non-empty cart never mixes vendors.
type CartState struct {
	Items    []CartLine `json:"items"`
	VendorID string     `json:"vendor_id,omitempty"`
}

// Vendor is a hawker/seller entity.
type Vendor struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Phone     string  `json:"phone,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Order as returned by the upstream platform.
type Order struct {
	ID                   int64       `json:"id"`
	VendorID             string      `json:"vendor_id"`
	Status               string      `json:"status"`
	Items                []OrderItem `json:"items"`
	TotalAmount          int64       `json:"total_amount"`
	DeliveryAddress      string      `json:"delivery_address"`
	DeliveryLatitude     float64     `json:"delivery_latitude"`
	DeliveryLongitude    float64     `json:"delivery_longitude"`
	DeliveryInstructions string      `json:"delivery_instructions,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
}

// OrderItem represents a line in a placed order.
type OrderItem struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// LocationUpdate is a single push from a vendor's delivery location feed.
type LocationUpdate struct {
	VendorID  string    `json:"vendor_id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// Position is a geolocation fix.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Speed     float64 `json:"speed"`
	Heading   float64 `json:"heading"`
}

// Order statuses as reported by the upstream platform.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusPreparing  = "preparing"
	OrderStatusDelivering = "delivering"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Payment statuses for the simulated payment flow.
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusSuccess    = "success"
	PaymentStatusFailed     = "failed"
)
