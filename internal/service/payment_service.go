package service

import (
	"context"
	"fmt"
	"math/rand"

	"storefront/internal/backend"
	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Payment methods accepted by the simulated gateway flow.
const (
	PaymentMethodCard = "card"
	PaymentMethodCOD  = "cod"
)

// PaymentBackend is the slice of the platform payments API this service uses.
type PaymentBackend interface {
	InitiatePayment(ctx context.Context, orderID int64) (*backend.PaymentIntent, error)
	VerifyPayment(ctx context.Context, v *backend.PaymentVerification) error
	RecordCODPayment(ctx context.Context, orderID int64) error
}

// PaymentResult is the outcome shown on the payment page.
type PaymentResult struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
	TxID    string `json:"tx_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// PaymentService runs the payment-status simulation: card payments go
// through an initiate/verify round-trip with a synthesized gateway
// transaction, COD is recorded directly. A failed payment never mutates
// cart or order state locally.
type PaymentService struct {
	backend     PaymentBackend
	logger      *zap.Logger
	successRate float64 // simulated gateway success rate (0.0 - 1.0)
}

// NewPaymentService creates a new payment service
func NewPaymentService(paymentBackend PaymentBackend, successRate float64) *PaymentService {
	return &PaymentService{
		backend:     paymentBackend,
		logger:      util.GetLogger(),
		successRate: successRate,
	}
}

// Pay executes the payment flow for an order.
func (ps *PaymentService) Pay(ctx context.Context, orderID int64, method string) (*PaymentResult, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.Pay")
	defer span.End()

	util.PaymentAttemptsTotal.Inc()

	switch method {
	case PaymentMethodCard:
		return ps.payByCard(ctx, orderID)
	case PaymentMethodCOD:
		return ps.payByCOD(ctx, orderID)
	default:
		return nil, &ValidationError{Msg: fmt.Sprintf("unsupported payment method: %s", method)}
	}
}

func (ps *PaymentService) payByCard(ctx context.Context, orderID int64) (*PaymentResult, error) {
	intent, err := ps.backend.InitiatePayment(ctx, orderID)
	if err != nil {
		util.PaymentFailedTotal.Inc()
		return nil, fmt.Errorf("failed to initiate payment: %w", err)
	}

	ps.logger.Info("Processing card payment",
		zap.Int64("order_id", orderID),
		zap.Int64("amount", intent.Amount))

	// Simulated gateway: no real UI, just an outcome and a synthetic tx id.
	txID := fmt.Sprintf("pay_%s", uuid.New().String()[:8])
	if rand.Float64() >= ps.successRate {
		util.PaymentFailedTotal.Inc()
		ps.logger.Warn("Simulated gateway declined payment", zap.Int64("order_id", orderID))
		return &PaymentResult{
			OrderID: orderID,
			Status:  models.PaymentStatusFailed,
			Message: "payment declined by gateway",
		}, nil
	}

	verification := &backend.PaymentVerification{
		PaymentID:      txID,
		PaymentOrderID: intent.PaymentOrderID,
		Signature:      "simulated",
	}
	if err := ps.backend.VerifyPayment(ctx, verification); err != nil {
		util.PaymentFailedTotal.Inc()
		ps.logger.Warn("Payment verification failed",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		return &PaymentResult{
			OrderID: orderID,
			Status:  models.PaymentStatusFailed,
			Message: "payment verification failed",
		}, nil
	}

	ps.logger.Info("Payment succeeded",
		zap.Int64("order_id", orderID),
		zap.String("tx_id", txID))
	return &PaymentResult{
		OrderID: orderID,
		Status:  models.PaymentStatusSuccess,
		TxID:    txID,
	}, nil
}

func (ps *PaymentService) payByCOD(ctx context.Context, orderID int64) (*PaymentResult, error) {
	if err := ps.backend.RecordCODPayment(ctx, orderID); err != nil {
		util.PaymentFailedTotal.Inc()
		return nil, fmt.Errorf("failed to record COD payment: %w", err)
	}

	ps.logger.Info("COD payment recorded", zap.Int64("order_id", orderID))
	return &PaymentResult{
		OrderID: orderID,
		Status:  models.PaymentStatusSuccess,
	}, nil
}
