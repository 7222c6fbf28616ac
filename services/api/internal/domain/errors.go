package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart            = errors.New("order must contain at least one line")
	ErrInvalidQuantity      = errors.New("invalid quantity")
	ErrInvalidPrice         = errors.New("invalid price")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrCustomerInfoRequired = errors.New("customer name, email, phone and shipping address are required")
	ErrInvalidID            = errors.New("invalid id")
	ErrInvalidCallback      = errors.New("invalid payment callback")
	ErrInvalidSignature     = errors.New("invalid payment callback signature")
	ErrAmountMismatch       = errors.New("callback amount does not match order total")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrTotalMismatch        = errors.New("order total does not match its lines")
	ErrPaymentNotPayable    = errors.New("order payment cannot be started")

	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrVariantNotFound = errors.New("product variant not found")

	ErrConflict            = errors.New("order was modified concurrently")
	ErrIdempotencyConflict = errors.New("idempotency key reused with a different request")

	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrPersistence        = errors.New("persistence failure")
)

// Kind classifies an error for the caller; see KindOf.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnavailable
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUnavailable:
		return "upstream_unavailable"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Retryable reports whether the caller may retry with fresh state or after backoff.
func (k Kind) Retryable() bool {
	return k == KindConflict || k == KindUnavailable
}

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrEmptyCart, KindValidation},
	{ErrInvalidQuantity, KindValidation},
	{ErrInvalidPrice, KindValidation},
	{ErrInvalidPaymentMethod, KindValidation},
	{ErrInvalidStatus, KindValidation},
	{ErrCustomerInfoRequired, KindValidation},
	{ErrInvalidID, KindValidation},
	{ErrInvalidCallback, KindValidation},
	{ErrInvalidSignature, KindValidation},
	{ErrAmountMismatch, KindValidation},
	{ErrInvalidTransition, KindValidation},
	{ErrTotalMismatch, KindValidation},
	{ErrPaymentNotPayable, KindValidation},
	{ErrOrderNotFound, KindNotFound},
	{ErrProductNotFound, KindNotFound},
	{ErrVariantNotFound, KindNotFound},
	{ErrConflict, KindConflict},
	{ErrIdempotencyConflict, KindConflict},
	{ErrCatalogUnavailable, KindUnavailable},
	{ErrPersistence, KindPersistence},
}

// KindOf maps err onto the failure taxonomy. Unclassified errors report KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindUnknown
}

// ProductNotFoundError names the cart product that could not be resolved.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrProductNotFound }

// InvalidTransitionError is returned when the transition table rejects a move.
type InvalidTransitionError struct {
	From FulfillmentStatus
	To   FulfillmentStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition: cannot move from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// PersistenceError wraps a storage failure. Nothing from the failed write is visible to readers.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }
