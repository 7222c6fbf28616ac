package domain

import (
	"strconv"
	"strings"
)

// FulfillmentStatus is the logistics state of an order.
type FulfillmentStatus string

const (
	FulfillmentPending   FulfillmentStatus = "Pending"
	FulfillmentConfirmed FulfillmentStatus = "Confirmed"
	FulfillmentShipped   FulfillmentStatus = "Shipped"
	FulfillmentDelivered FulfillmentStatus = "Delivered"
	FulfillmentCancelled FulfillmentStatus = "Cancelled"
)

// fulfillmentOrdinals keeps the numeric values the legacy admin client sends.
var fulfillmentOrdinals = []FulfillmentStatus{
	FulfillmentPending,
	FulfillmentConfirmed,
	FulfillmentShipped,
	FulfillmentDelivered,
	FulfillmentCancelled,
}

// ParseFulfillmentStatus accepts the canonical name (case-insensitive) or its ordinal.
func ParseFulfillmentStatus(s string) (FulfillmentStatus, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 || n >= len(fulfillmentOrdinals) {
			return "", ErrInvalidStatus
		}
		return fulfillmentOrdinals[n], nil
	}
	for _, st := range fulfillmentOrdinals {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", ErrInvalidStatus
}

func (s FulfillmentStatus) Valid() bool {
	for _, st := range fulfillmentOrdinals {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal reports whether no further fulfillment transition is permitted.
func (s FulfillmentStatus) Terminal() bool {
	return s == FulfillmentCancelled || s == FulfillmentDelivered
}

func (s FulfillmentStatus) String() string { return string(s) }

// PaymentStatus is the monetary settlement state, independent of fulfillment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "Pending"
	PaymentPaid     PaymentStatus = "Paid"
	PaymentFailed   PaymentStatus = "Failed"
	PaymentRefunded PaymentStatus = "Refunded"
)

// Settled reports whether a gateway result has already been recorded.
func (s PaymentStatus) Settled() bool {
	return s == PaymentPaid || s == PaymentFailed || s == PaymentRefunded
}

func (s PaymentStatus) String() string { return string(s) }

// PaymentMethod is fixed at order creation.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "CashOnDelivery"
	PaymentGatewayA       PaymentMethod = "GatewayA"
	PaymentGatewayB       PaymentMethod = "GatewayB"
)

var paymentMethodAliases = map[string]PaymentMethod{
	"cashondelivery": PaymentCashOnDelivery,
	"cod":            PaymentCashOnDelivery,
	"0":              PaymentCashOnDelivery,
	"gatewaya":       PaymentGatewayA,
	"vnpay":          PaymentGatewayA,
	"1":              PaymentGatewayA,
	"gatewayb":       PaymentGatewayB,
	"momo":           PaymentGatewayB,
	"2":              PaymentGatewayB,
}

// ParsePaymentMethod accepts canonical names, the storefront aliases (COD, VNPAY, MOMO) and ordinals.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m, ok := paymentMethodAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", ErrInvalidPaymentMethod
	}
	return m, nil
}

// UsesGateway reports whether settlement arrives through a gateway callback.
func (m PaymentMethod) UsesGateway() bool {
	return m == PaymentGatewayA || m == PaymentGatewayB
}

func (m PaymentMethod) String() string { return string(m) }
