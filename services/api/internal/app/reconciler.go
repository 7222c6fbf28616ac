package app

import (
	"context"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Pain0402/CoolStyle/services/api/internal/clock"
	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

// GatewaySuccessCode is the response code a gateway sends for a captured payment.
const GatewaySuccessCode = "00"

// Reconciler applies asynchronous gateway payment results to orders exactly once.
type Reconciler struct {
	repo   OrderRepository
	clock  clock.Clock
	logger *zap.Logger
}

type ReconcilerOption func(*Reconciler)

func WithReconcilerLogger(logger *zap.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func NewReconciler(repo OrderRepository, clk clock.Clock, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		repo:   repo,
		clock:  clk,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Callback is a verified gateway notification. Signature checks happen before this point.
type Callback struct {
	OrderRef      string
	ResponseCode  string
	TransactionID string
	// Amount, when the gateway reports it, must match the order total.
	Amount *decimal.Decimal
}

type ReconcileResult struct {
	Order domain.Order
	// Applied is false when the callback was a re-delivery and nothing was written.
	Applied bool
}

// Paid reports whether the order's payment ended up captured.
func (r ReconcileResult) Paid() bool {
	return r.Order.PaymentStatus == domain.PaymentPaid
}

// ParseOrderRef converts a gateway transaction reference into an order id.
func ParseOrderRef(ref string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidCallback
	}
	return id, nil
}

// Reconcile maps the gateway result onto payment and fulfillment status. A success code
// yields Paid/Confirmed, anything else Failed/Cancelled; fulfillment only moves when the
// transition table allows it from the current status. Orders whose payment is already
// settled are returned untouched.
func (r *Reconciler) Reconcile(ctx context.Context, cb Callback) (result ReconcileResult, err error) {
	ctx, span := tracer.Start(ctx, "Reconciler.Reconcile")
	span.SetAttributes(attribute.String("payment.response_code", cb.ResponseCode))
	defer func() { finishSpan(span, err) }()

	orderID, err := ParseOrderRef(cb.OrderRef)
	if err != nil {
		return ReconcileResult{}, err
	}
	span.SetAttributes(attribute.Int64("order.id", orderID))

	err = r.repo.WithTx(ctx, func(txCtx context.Context) error {
		order, err := r.repo.GetByIDForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}

		if order.PaymentStatus.Settled() {
			r.logger.Info("payment callback already reconciled",
				zap.Int64("order_id", orderID),
				zap.String("payment_status", order.PaymentStatus.String()),
				zap.String("response_code", cb.ResponseCode),
			)
			result = ReconcileResult{Order: order, Applied: false}
			return nil
		}
		if !order.PaymentMethod.UsesGateway() {
			return domain.ErrInvalidCallback
		}
		if cb.Amount != nil && !cb.Amount.Equal(order.TotalAmount) {
			return domain.ErrAmountMismatch
		}

		target := domain.FulfillmentCancelled
		order.PaymentStatus = domain.PaymentFailed
		if cb.ResponseCode == GatewaySuccessCode {
			target = domain.FulfillmentConfirmed
			order.PaymentStatus = domain.PaymentPaid
		}
		if domain.CanTransition(order.FulfillmentStatus, target) {
			order.FulfillmentStatus = target
		} else {
			r.logger.Warn("payment result leaves fulfillment status unchanged",
				zap.Int64("order_id", orderID),
				zap.String("fulfillment_status", order.FulfillmentStatus.String()),
				zap.String("payment_status", order.PaymentStatus.String()),
			)
		}
		if tx := strings.TrimSpace(cb.TransactionID); tx != "" {
			order.TransactionID = &tx
		}
		order.UpdatedAt = r.clock.Now()

		if err := r.repo.Update(txCtx, order); err != nil {
			return err
		}
		order.Version++
		result = ReconcileResult{Order: order, Applied: true}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, persistenceError("reconcile payment", err)
	}
	return result, nil
}
