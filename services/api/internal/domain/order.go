package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is the contact snapshot copied onto the order at creation. It is never
// re-derived from a user profile, so guest checkout works without an identity.
type Customer struct {
	Name            string
	Email           string
	Phone           string
	ShippingAddress string
	Note            string
}

// MaxLineQuantity bounds a single line's quantity.
const MaxLineQuantity = 10000

// Order is the aggregate root of a purchase.
type Order struct {
	ID                int64
	Customer          Customer
	OwnerUserID       *string
	TotalAmount       decimal.Decimal
	FulfillmentStatus FulfillmentStatus
	PaymentMethod     PaymentMethod
	PaymentStatus     PaymentStatus
	TransactionID     *string
	IdempotencyKey    *string
	Version           int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	DeletedAt         *time.Time
	Lines             []OrderLine
}

// OrderLine is a priced snapshot of one purchased product. ProductID is a weak
// reference: later price changes or deletion of the product do not affect the line.
type OrderLine struct {
	ID          int64
	ProductID   int64
	VariantID   *int64
	ProductName string
	SKU         string
	Quantity    int
	UnitPrice   decimal.Decimal
}

func (l OrderLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SumLines returns the exact sum of line totals.
func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}

// Validate checks the structural invariants every persisted order must satisfy.
func (o Order) Validate() error {
	if len(o.Lines) == 0 {
		return ErrEmptyCart
	}
	for _, l := range o.Lines {
		if l.Quantity < 1 || l.Quantity > MaxLineQuantity {
			return ErrInvalidQuantity
		}
		if l.UnitPrice.IsNegative() {
			return ErrInvalidPrice
		}
	}
	if !o.PaymentMethod.UsesGateway() && o.PaymentMethod != PaymentCashOnDelivery {
		return ErrInvalidPaymentMethod
	}
	if !o.TotalAmount.Equal(SumLines(o.Lines)) {
		return ErrTotalMismatch
	}
	return nil
}
