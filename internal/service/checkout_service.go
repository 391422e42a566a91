package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"storefront/internal/backend"
	"storefront/internal/cart"
	"storefront/internal/geo"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ValidationError is a pre-submit input failure, surfaced inline to the
// user before any backend call. No state is mutated when it is returned.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// CheckoutBackend is the slice of the platform API checkout needs.
type CheckoutBackend interface {
	SubmitCheckout(ctx context.Context, req *backend.CheckoutRequest) (*models.Order, error)
}

// IdempotencyStore deduplicates checkout submissions across retries.
type IdempotencyStore interface {
	GetIdempotencyKey(ctx context.Context, key string) (string, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// OrderEventPublisher announces accepted checkouts.
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
}

// CheckoutInput is one checkout submission for a session's cart.
type CheckoutInput struct {
	SessionID            string
	DeliveryAddress      string
	DeliveryInstructions string
	// DeliveryLatitude/Longitude come from the client when it has a fix;
	// otherwise the geolocation provider is consulted.
	DeliveryLatitude  *float64
	DeliveryLongitude *float64
	IdempotencyKey    string
}

// CheckoutResult is returned once the platform accepts the order.
type CheckoutResult struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// CheckoutService submits a session's cart to the upstream platform. The
// cart is cleared only after a confirmed success; every failure path leaves
// it intact so the user can retry.
type CheckoutService struct {
	carts   *cart.Manager
	backend CheckoutBackend
	idem    IdempotencyStore
	events  OrderEventPublisher
	geo     geo.Provider
	idemTTL time.Duration
	logger  *zap.Logger
}

// NewCheckoutService creates a new checkout service. idem and events may be
// nil, disabling deduplication and event publishing respectively.
func NewCheckoutService(
	carts *cart.Manager,
	checkoutBackend CheckoutBackend,
	idem IdempotencyStore,
	events OrderEventPublisher,
	geoProvider geo.Provider,
	idemTTL time.Duration,
) *CheckoutService {
	return &CheckoutService{
		carts:   carts,
		backend: checkoutBackend,
		idem:    idem,
		events:  events,
		geo:     geoProvider,
		idemTTL: idemTTL,
		logger:  util.GetLogger(),
	}
}

// Checkout validates the input, resolves delivery coordinates, submits the
// order and clears the cart on success.
func (s *CheckoutService) Checkout(ctx context.Context, in *CheckoutInput) (*CheckoutResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	util.CheckoutAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	// A client-supplied key is checked before validation: on a retry the
	// cart may already have been cleared by the first submission.
	if s.idem != nil && in.IdempotencyKey != "" {
		if val, err := s.idem.GetIdempotencyKey(ctx, in.IdempotencyKey); err != nil {
			s.logger.Warn("Idempotency check failed", zap.Error(err))
		} else if val != "" {
			orderID, _ := strconv.ParseInt(val, 10, 64)
			s.logger.Info("Duplicate checkout request detected",
				zap.String("idempotency_key", in.IdempotencyKey),
				zap.Int64("order_id", orderID))
			return &CheckoutResult{OrderID: orderID, Status: models.OrderStatusPending}, nil
		}
	}

	store := s.carts.Store(ctx, in.SessionID)
	state := store.State()

	if len(state.Items) == 0 {
		util.CheckoutFailedTotal.WithLabelValues("empty_cart").Inc()
		return nil, &ValidationError{Msg: "cart is empty"}
	}
	if strings.TrimSpace(in.DeliveryAddress) == "" {
		util.CheckoutFailedTotal.WithLabelValues("missing_address").Inc()
		return nil, &ValidationError{Msg: "delivery address is required"}
	}

	lat, lng, err := s.resolveCoordinates(ctx, in)
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues("no_location").Inc()
		return nil, &ValidationError{Msg: "unable to determine delivery location"}
	}

	if in.IdempotencyKey == "" {
		in.IdempotencyKey = uuid.New().String()
	}

	req := &backend.CheckoutRequest{
		VendorID:             state.VendorID,
		Items:                make([]backend.CheckoutItem, 0, len(state.Items)),
		DeliveryAddress:      in.DeliveryAddress,
		DeliveryLatitude:     lat,
		DeliveryLongitude:    lng,
		DeliveryInstructions: in.DeliveryInstructions,
	}
	for _, line := range state.Items {
		req.Items = append(req.Items, backend.CheckoutItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
		})
	}

	order, err := s.backend.SubmitCheckout(ctx, req)
	if err != nil {
		util.CheckoutFailedTotal.WithLabelValues("backend_error").Inc()
		// Cart untouched so the user can retry.
		return nil, fmt.Errorf("checkout submission failed: %w", err)
	}

	if s.idem != nil {
		if err := s.idem.SetIdempotencyKey(ctx, in.IdempotencyKey, strconv.FormatInt(order.ID, 10), s.idemTTL); err != nil {
			s.logger.Warn("Failed to record idempotency key", zap.Error(err))
		}
	}

	store.Clear(ctx)
	util.CheckoutSuccessTotal.Inc()
	s.logger.Info("Checkout accepted",
		zap.Int64("order_id", order.ID),
		zap.String("vendor_id", state.VendorID),
		zap.String("session_id", in.SessionID))

	if s.events != nil {
		event := &models.OrderPlacedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderPlaced,
				Timestamp: time.Now(),
			},
			OrderID:     order.ID,
			SessionID:   in.SessionID,
			VendorID:    state.VendorID,
			TotalAmount: order.TotalAmount,
			Items:       eventItems(state.Items),
		}
		if err := s.events.PublishOrderPlaced(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
		}
	}

	status := order.Status
	if status == "" {
		status = models.OrderStatusPending
	}
	return &CheckoutResult{OrderID: order.ID, Status: status}, nil
}

func (s *CheckoutService) resolveCoordinates(ctx context.Context, in *CheckoutInput) (float64, float64, error) {
	if in.DeliveryLatitude != nil && in.DeliveryLongitude != nil {
		return *in.DeliveryLatitude, *in.DeliveryLongitude, nil
	}

	pos, err := s.geo.CurrentPosition(ctx)
	if err != nil {
		s.logger.Warn("Geolocation failed for checkout", zap.Error(err))
		return 0, 0, err
	}
	return pos.Latitude, pos.Longitude, nil
}

func eventItems(lines []models.CartLine) []models.OrderItemData {
	items := make([]models.OrderItemData, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.OrderItemData{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	return items
}
