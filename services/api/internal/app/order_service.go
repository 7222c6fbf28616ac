package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/Pain0402/CoolStyle/services/api/internal/clock"
	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

// OrderRepository is the durable store the order workflow runs against.
type OrderRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	// CreateOrderWithLines inserts the order and all of its lines atomically and returns the new id.
	CreateOrderWithLines(ctx context.Context, order domain.Order) (int64, error)
	GetByID(ctx context.Context, id int64) (domain.Order, error)
	GetByIDForUpdate(ctx context.Context, id int64) (domain.Order, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error)
	// Update replaces the mutable status fields. It fails with domain.ErrConflict when
	// order.Version no longer matches the stored row.
	Update(ctx context.Context, order domain.Order) error
}

// CatalogReader resolves a product's current display price. Missing products
// report domain.ErrProductNotFound.
type CatalogReader interface {
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
}

const (
	defaultCatalogTimeout     = 3 * time.Second
	defaultCatalogConcurrency = 8
)

type OrderService struct {
	repo               OrderRepository
	catalog            CatalogReader
	clock              clock.Clock
	catalogTimeout     time.Duration
	catalogConcurrency int
}

type OrderServiceOption func(*OrderService)

// WithCatalogTimeout bounds the catalog lookups made while building an order.
func WithCatalogTimeout(d time.Duration) OrderServiceOption {
	return func(s *OrderService) {
		if d > 0 {
			s.catalogTimeout = d
		}
	}
}

// WithCatalogConcurrency caps the number of in-flight catalog lookups per order.
func WithCatalogConcurrency(n int) OrderServiceOption {
	return func(s *OrderService) {
		if n > 0 {
			s.catalogConcurrency = n
		}
	}
}

func NewOrderService(repo OrderRepository, catalog CatalogReader, clk clock.Clock, opts ...OrderServiceOption) *OrderService {
	svc := &OrderService{
		repo:               repo,
		catalog:            catalog,
		clock:              clk,
		catalogTimeout:     defaultCatalogTimeout,
		catalogConcurrency: defaultCatalogConcurrency,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// CartLine is one (product, quantity) pair of a cart submission.
type CartLine struct {
	ProductID int64
	VariantID *int64
	Quantity  int
}

type PlaceOrderInput struct {
	Customer       domain.Customer
	PaymentMethod  domain.PaymentMethod
	Lines          []CartLine
	OwnerUserID    *string
	IdempotencyKey string
}

type PlaceOrderResult struct {
	Order   domain.Order
	Created bool
}

func (in PlaceOrderInput) validate() error {
	if len(in.Lines) == 0 {
		return domain.ErrEmptyCart
	}
	for _, l := range in.Lines {
		if l.Quantity < 1 || l.Quantity > domain.MaxLineQuantity {
			return domain.ErrInvalidQuantity
		}
		if l.ProductID <= 0 {
			return domain.ErrInvalidID
		}
	}
	if !in.PaymentMethod.UsesGateway() && in.PaymentMethod != domain.PaymentCashOnDelivery {
		return domain.ErrInvalidPaymentMethod
	}
	c := in.Customer
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Email) == "" ||
		strings.TrimSpace(c.Phone) == "" || strings.TrimSpace(c.ShippingAddress) == "" {
		return domain.ErrCustomerInfoRequired
	}
	return nil
}

// PlaceOrder validates a cart against the catalog, prices every line at the current
// display price and persists the order with its lines in one step.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (res PlaceOrderResult, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.PlaceOrder")
	defer func() { finishSpan(span, err) }()

	if err := in.validate(); err != nil {
		return PlaceOrderResult{}, err
	}

	if in.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, in.IdempotencyKey)
		if err != nil {
			return PlaceOrderResult{}, persistenceError("find order by idempotency key", err)
		}
		if existing != nil {
			return replay(*existing, in)
		}
	}

	lines, err := s.priceLines(ctx, in.Lines)
	if err != nil {
		return PlaceOrderResult{}, err
	}

	now := s.clock.Now()
	order := domain.Order{
		Customer:          in.Customer,
		OwnerUserID:       in.OwnerUserID,
		TotalAmount:       domain.SumLines(lines),
		FulfillmentStatus: domain.FulfillmentPending,
		PaymentMethod:     in.PaymentMethod,
		PaymentStatus:     domain.PaymentPending,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
		Lines:             lines,
	}
	if in.IdempotencyKey != "" {
		key := in.IdempotencyKey
		order.IdempotencyKey = &key
	}
	if err := order.Validate(); err != nil {
		return PlaceOrderResult{}, err
	}

	id, err := s.repo.CreateOrderWithLines(ctx, order)
	if err != nil {
		// A concurrent submission with the same key won the insert; hand back its order.
		if errors.Is(err, domain.ErrIdempotencyConflict) && in.IdempotencyKey != "" {
			existing, findErr := s.repo.FindByIdempotencyKey(ctx, in.IdempotencyKey)
			if findErr != nil {
				return PlaceOrderResult{}, persistenceError("find order by idempotency key", findErr)
			}
			if existing != nil {
				return replay(*existing, in)
			}
		}
		return PlaceOrderResult{}, persistenceError("create order", err)
	}
	span.SetAttributes(attribute.Int64("order.id", id))

	// Read back so line ids and timestamps match what later reads return.
	created, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return PlaceOrderResult{}, persistenceError("reload order", err)
	}
	return PlaceOrderResult{Order: created, Created: true}, nil
}

func replay(existing domain.Order, in PlaceOrderInput) (PlaceOrderResult, error) {
	if !sameCart(existing, in) {
		return PlaceOrderResult{}, domain.ErrIdempotencyConflict
	}
	return PlaceOrderResult{Order: existing, Created: false}, nil
}

func sameCart(o domain.Order, in PlaceOrderInput) bool {
	if o.PaymentMethod != in.PaymentMethod || len(o.Lines) != len(in.Lines) {
		return false
	}
	for i, l := range in.Lines {
		got := o.Lines[i]
		if got.ProductID != l.ProductID || got.Quantity != l.Quantity || !sameVariant(got.VariantID, l.VariantID) {
			return false
		}
	}
	return true
}

func sameVariant(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// priceLines resolves every distinct product concurrently under the catalog timeout.
func (s *OrderService) priceLines(ctx context.Context, cart []CartLine) ([]domain.OrderLine, error) {
	lookupCtx, cancel := context.WithTimeout(ctx, s.catalogTimeout)
	defer cancel()

	var (
		mu       sync.Mutex
		products = make(map[int64]domain.Product, len(cart))
		seen     = make(map[int64]struct{}, len(cart))
	)
	g, gctx := errgroup.WithContext(lookupCtx)
	g.SetLimit(s.catalogConcurrency)
	for _, l := range cart {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		productID := l.ProductID
		g.Go(func() error {
			p, err := s.catalog.GetProduct(gctx, productID)
			if err != nil {
				return catalogError(productID, err)
			}
			mu.Lock()
			products[productID] = p
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lines := make([]domain.OrderLine, 0, len(cart))
	for _, l := range cart {
		p := products[l.ProductID]
		line := domain.OrderLine{
			ProductID:   l.ProductID,
			ProductName: p.Name,
			SKU:         p.SKU,
			Quantity:    l.Quantity,
			UnitPrice:   p.Price,
		}
		if l.VariantID != nil {
			v, ok := p.Variant(*l.VariantID)
			if !ok {
				return nil, fmt.Errorf("%w: variant %d of product %d", domain.ErrVariantNotFound, *l.VariantID, l.ProductID)
			}
			variantID := v.ID
			line.VariantID = &variantID
			line.UnitPrice = p.Price.Add(v.PriceModifier)
			if v.SKU != "" {
				line.SKU = v.SKU
			}
		}
		if line.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: product %d resolves to %s", domain.ErrInvalidPrice, l.ProductID, line.UnitPrice)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func catalogError(productID int64, err error) error {
	switch {
	case errors.Is(err, domain.ErrProductNotFound):
		return &domain.ProductNotFoundError{ProductID: productID}
	case errors.Is(err, domain.ErrCatalogUnavailable):
		return err
	default:
		return fmt.Errorf("%w: product %d: %v", domain.ErrCatalogUnavailable, productID, err)
	}
}

// GetOrder returns a single order with its lines.
func (s *OrderService) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	if id <= 0 {
		return domain.Order{}, domain.ErrInvalidID
	}
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Order{}, persistenceError("get order", err)
	}
	return order, nil
}

// Transition moves an order's fulfillment status along the transition table. The row is
// locked for the duration of the check-and-write and the write is version checked, so a
// losing concurrent writer receives domain.ErrConflict instead of overwriting silently.
func (s *OrderService) Transition(ctx context.Context, orderID int64, to domain.FulfillmentStatus) (result domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.Transition")
	span.SetAttributes(attribute.Int64("order.id", orderID), attribute.String("order.requested_status", string(to)))
	defer func() { finishSpan(span, err) }()

	if orderID <= 0 {
		return domain.Order{}, domain.ErrInvalidID
	}
	if !to.Valid() {
		return domain.Order{}, domain.ErrInvalidStatus
	}

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		order, err := s.repo.GetByIDForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if err := order.TransitionTo(to); err != nil {
			return err
		}
		order.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(txCtx, order); err != nil {
			return err
		}
		order.Version++
		result = order
		return nil
	})
	if err != nil {
		return domain.Order{}, persistenceError("update order status", err)
	}
	return result, nil
}

// persistenceError leaves classified errors alone and wraps anything else as a storage failure.
func persistenceError(op string, err error) error {
	if domain.KindOf(err) != domain.KindUnknown {
		return err
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
