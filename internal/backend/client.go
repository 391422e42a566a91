// Package backend is the REST client for the upstream hawker platform: it
// owns checkout submission, order fetch, tracking snapshots and the
// payments API. Implementations of those operations are out of scope here;
// this client only speaks their contracts.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// APIError is a non-success response from the platform.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// CheckoutRequest is the checkout submission payload.
type CheckoutRequest struct {
	VendorID             string              `json:"vendor_id"`
	Items                []CheckoutItem      `json:"items"`
	DeliveryAddress      string              `json:"delivery_address"`
	DeliveryLatitude     float64             `json:"delivery_latitude"`
	DeliveryLongitude    float64             `json:"delivery_longitude"`
	DeliveryInstructions string              `json:"delivery_instructions,omitempty"`
}

type CheckoutItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// TrackingSnapshot is the point-in-time delivery state for a vendor.
type TrackingSnapshot struct {
	Vendor   models.Vendor          `json:"vendor"`
	Location *models.LocationUpdate `json:"location,omitempty"`
}

// PaymentIntent is returned by the payments initiate endpoint.
type PaymentIntent struct {
	PaymentOrderID string `json:"order_id"`
	Amount         int64  `json:"amount"`
}

// PaymentVerification completes a gateway payment.
type PaymentVerification struct {
	PaymentID      string `json:"payment_id"`
	PaymentOrderID string `json:"order_id"`
	Signature      string `json:"signature"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     util.GetLogger(),
	}
}

// SubmitCheckout creates an order upstream and returns it.
func (c *Client) SubmitCheckout(ctx context.Context, req *CheckoutRequest) (*models.Order, error) {
	var order models.Order
	if err := c.do(ctx, http.MethodPost, "/api/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrder fetches an order by ID.
func (c *Client) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	var order models.Order
	path := fmt.Sprintf("/api/orders/%d", orderID)
	if err := c.do(ctx, http.MethodGet, path, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// TrackVendor fetches the delivery tracking snapshot for a vendor.
func (c *Client) TrackVendor(ctx context.Context, vendorID string) (*TrackingSnapshot, error) {
	var snap TrackingSnapshot
	path := fmt.Sprintf("/api/delivery/track/%s", vendorID)
	if err := c.do(ctx, http.MethodGet, path, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// InitiatePayment starts a gateway payment for an order.
func (c *Client) InitiatePayment(ctx context.Context, orderID int64) (*PaymentIntent, error) {
	var intent PaymentIntent
	body := map[string]int64{"order_id": orderID}
	if err := c.do(ctx, http.MethodPost, "/api/payments/initiate", body, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

// VerifyPayment confirms a gateway payment.
func (c *Client) VerifyPayment(ctx context.Context, v *PaymentVerification) error {
	return c.do(ctx, http.MethodPost, "/api/payments/verify", v, nil)
}

// RecordCODPayment records a cash-on-delivery payment for an order.
func (c *Client) RecordCODPayment(ctx context.Context, orderID int64) error {
	body := map[string]int64{"order_id": orderID}
	return c.do(ctx, http.MethodPost, "/api/payments/cod", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := struct {
			Error string `json:"error"`
		}{}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := json.Unmarshal(raw, &msg); err != nil || msg.Error == "" {
			msg.Error = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn("Backend call failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return &APIError{Status: resp.StatusCode, Message: msg.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
