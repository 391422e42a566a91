package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"storefront/internal/backend"
	"storefront/internal/cart"
	"storefront/internal/geo"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCheckoutBackend struct {
	requests []*backend.CheckoutRequest
	order    *models.Order
	err      error
}

func (f *fakeCheckoutBackend) SubmitCheckout(ctx context.Context, req *backend.CheckoutRequest) (*models.Order, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.order, nil
}

type fakeIdemStore struct {
	values map[string]string
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{values: make(map[string]string)}
}

func (f *fakeIdemStore) GetIdempotencyKey(ctx context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeIdemStore) SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.values[key] = value.(string)
	return nil
}

type fakeEventPublisher struct {
	events []*models.OrderPlacedEvent
}

func (f *fakeEventPublisher) PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	f.events = append(f.events, event)
	return nil
}

func seededCart(t *testing.T, ctx context.Context) *cart.Manager {
	t.Helper()
	manager := cart.NewManager(cart.NewMemorySlot())
	store := manager.Store(ctx, "s1")
	require.NoError(t, store.AddItem(ctx, chickenRiceProduct, 2, false))
	require.NoError(t, store.AddItem(ctx, icedTeaProduct, 1, false))
	return manager
}

var (
	chickenRiceProduct = models.Product{ID: 1, VendorID: "V1", Name: "Chicken Rice", Price: 5}
	icedTeaProduct     = models.Product{ID: 2, VendorID: "V1", Name: "Iced Tea", Price: 3}
)

func coords(lat, lng float64) (*float64, *float64) {
	return &lat, &lng
}

func TestCheckoutSuccessClearsCart(t *testing.T) {
	ctx := context.Background()
	carts := seededCart(t, ctx)
	be := &fakeCheckoutBackend{order: &models.Order{ID: 42, Status: models.OrderStatusPending}}
	events := &fakeEventPublisher{}
	svc := NewCheckoutService(carts, be, newFakeIdemStore(), events, geo.UnavailableProvider{}, time.Minute)

	lat, lng := coords(1.3521, 103.8198)
	result, err := svc.Checkout(ctx, &CheckoutInput{
		SessionID:         "s1",
		DeliveryAddress:   "12 Maxwell Rd",
		DeliveryLatitude:  lat,
		DeliveryLongitude: lng,
	})

	require.NoError(t, err)
	assert.Equal(t, int64(42), result.OrderID)
	assert.Equal(t, models.OrderStatusPending, result.Status)

	require.Len(t, be.requests, 1)
	req := be.requests[0]
	assert.Equal(t, "V1", req.VendorID)
	assert.Len(t, req.Items, 2)
	assert.Equal(t, 1.3521, req.DeliveryLatitude)
	assert.Equal(t, "12 Maxwell Rd", req.DeliveryAddress)

	assert.True(t, carts.Store(ctx, "s1").IsEmpty())

	require.Len(t, events.events, 1)
	assert.Equal(t, int64(42), events.events[0].OrderID)
	assert.Equal(t, "V1", events.events[0].VendorID)
}

func TestCheckoutEmptyCartFailsValidation(t *testing.T) {
	ctx := context.Background()
	carts := cart.NewManager(cart.NewMemorySlot())
	be := &fakeCheckoutBackend{}
	svc := NewCheckoutService(carts, be, nil, nil, geo.UnavailableProvider{}, time.Minute)

	lat, lng := coords(1.35, 103.82)
	_, err := svc.Checkout(ctx, &CheckoutInput{
		SessionID:         "s1",
		DeliveryAddress:   "12 Maxwell Rd",
		DeliveryLatitude:  lat,
		DeliveryLongitude: lng,
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, be.requests)
}

func TestCheckoutMissingAddressFailsValidation(t *testing.T) {
	ctx := context.Background()
	carts := seededCart(t, ctx)
	be := &fakeCheckoutBackend{}
	svc := NewCheckoutService(carts, be, nil, nil, geo.UnavailableProvider{}, time.Minute)

	lat, lng := coords(1.35, 103.82)
	_, err := svc.Checkout(ctx, &CheckoutInput{
		SessionID:         "s1",
		DeliveryAddress:   "   ",
		DeliveryLatitude:  lat,
		DeliveryLongitude: lng,
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, be.requests)
	assert.False(t, carts.Store(ctx, "s1").IsEmpty())
}

func TestCheckoutFallsBackToGeoProvider(t *testing.T) {
	ctx := context.Background()
	carts := seededCart(t, ctx)
	be := &fakeCheckoutBackend{order: &models.Order{ID: 7}}
	provider := &geo.StaticProvider{Position: models.Position{Latitude: 1.29, Longitude: 103.85}}
	svc := NewCheckoutService(carts, be, nil, nil, provider, time.Minute)

	_, err := svc.Checkout(ctx, &CheckoutInput{
		SessionID:       "s1",
		DeliveryAddress: "12 Maxwell Rd",
	})

	require.NoError(t, err)
	require.Len(t, be.requests, 1)
	assert.Equal(t, 1.29, be.requests[0].DeliveryLatitude)
	assert.Equal(t, 103.85, be.requests[0].DeliveryLongitude)
}

func TestCheckoutWithoutAnyLocationFails(t *testing.T) {
	ctx := context.Background()
	carts := seededCart(t, ctx)
	be := &fakeCheckoutBackend{}
	svc := NewCheckoutService(carts, be, nil, nil, geo.UnavailableProvider{}, time.Minute)

	_, err := svc.Checkout(ctx, &CheckoutInput{
		SessionID:       "s1",
		DeliveryAddress: "12 Maxwell Rd",
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, be.requests)
	assert.False(t, carts.Store(ctx, "s1").IsEmpty())
}

func TestCheckoutBackendFailurePreservesCart(t *testing.T) {
	ctx := context.Background()
	carts := seededCart(t, ctx)
	be := &fakeCheckoutBackend{err: errors.New("upstream unavailable")}
	svc := NewCheckoutService(carts, be, nil, nil, geo.UnavailableProvider{}, time.Minute)

	lat, lng := coords(1.35, 103.82)
	_, err := svc.Checkout(ctx, &CheckoutInput{
		SessionID:         "s1",
		DeliveryAddress:   "12 Maxwell Rd",
		DeliveryLatitude:  lat,
		DeliveryLongitude: lng,
	})

	require.Error(t, err)
	var verr *ValidationError
	assert.False(t, errors.As(err, &verr))

	store := carts.Store(ctx, "s1")
	assert.False(t, store.IsEmpty())
	assert.Equal(t, 3, store.TotalQuantity())
}

func TestCheckoutDuplicateKeyReturnsOriginalOrder(t *testing.T) {
	ctx := context.Background()
	carts := seededCart(t, ctx)
	be := &fakeCheckoutBackend{order: &models.Order{ID: 42}}
	idem := newFakeIdemStore()
	svc := NewCheckoutService(carts, be, idem, nil, geo.UnavailableProvider{}, time.Minute)

	lat, lng := coords(1.35, 103.82)
	in := &CheckoutInput{
		SessionID:         "s1",
		DeliveryAddress:   "12 Maxwell Rd",
		DeliveryLatitude:  lat,
		DeliveryLongitude: lng,
		IdempotencyKey:    "retry-key",
	}

	first, err := svc.Checkout(ctx, in)
	require.NoError(t, err)

	// Retry with the same key after the cart was already cleared.
	second, err := svc.Checkout(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Len(t, be.requests, 1)
}
