package service

import (
	"context"
	"fmt"

	"storefront/internal/backend"
	"storefront/internal/geo"
	"storefront/internal/models"
	"storefront/internal/tracking"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// OrderBackend is the slice of the platform API order views need.
type OrderBackend interface {
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	TrackVendor(ctx context.Context, vendorID string) (*backend.TrackingSnapshot, error)
}

// OrderDetail is everything the order detail view renders.
type OrderDetail struct {
	Order *models.Order `json:"order"`
	// Tracking is present only while the order is out for delivery and the
	// snapshot fetch succeeded; tracking is best-effort.
	Tracking *backend.TrackingSnapshot `json:"tracking,omitempty"`
	// DistanceKm is the vendor-to-delivery-point distance when both
	// positions are known.
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

// OrderService serves order detail views and their tracking sessions.
type OrderService struct {
	backend   OrderBackend
	transport tracking.Transport
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(orderBackend OrderBackend, transport tracking.Transport) *OrderService {
	return &OrderService{
		backend:   orderBackend,
		transport: transport,
		logger:    util.GetLogger(),
	}
}

// GetOrder fetches an order and, when it is out for delivery, the vendor's
// tracking snapshot and distance to the delivery point. Tracking failures
// degrade to an order without tracking data.
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder")
	defer span.End()

	order, err := s.backend.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}

	detail := &OrderDetail{Order: order}
	if order.Status != models.OrderStatusDelivering {
		return detail, nil
	}

	snap, err := s.backend.TrackVendor(ctx, order.VendorID)
	if err != nil {
		s.logger.Warn("Tracking snapshot unavailable",
			zap.Int64("order_id", orderID),
			zap.String("vendor_id", order.VendorID),
			zap.Error(err))
		return detail, nil
	}
	detail.Tracking = snap

	if snap.Location != nil {
		dist := geo.Distance(
			snap.Location.Latitude, snap.Location.Longitude,
			order.DeliveryLatitude, order.DeliveryLongitude)
		detail.DistanceKm = &dist
	}
	return detail, nil
}

// NewTrackingSession creates a live-location session bound to the shared
// transport. The order detail view owns its lifecycle.
func (s *OrderService) NewTrackingSession() *tracking.Session {
	return tracking.NewSession(s.transport)
}

// SyncSession aligns a view's tracking session with an order's state:
// following the vendor while the order is out for delivery, idle otherwise.
// Re-syncing with an unchanged order is a no-op.
func (s *OrderService) SyncSession(sess *tracking.Session, order *models.Order) {
	if order != nil && order.Status == models.OrderStatusDelivering {
		sess.Follow(order.VendorID)
		return
	}
	sess.Stop()
}
