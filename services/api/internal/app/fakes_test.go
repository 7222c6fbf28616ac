package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

type fakeOrderRepo struct {
	mu        sync.Mutex
	orders    map[int64]domain.Order
	nextID    int64
	calls     int
	createErr error
	updateErr error
	// beforeCreate runs inside CreateOrderWithLines, used to simulate a concurrent winner.
	beforeCreate func(r *fakeOrderRepo)
}

func newFakeOrderRepo(orders ...domain.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: make(map[int64]domain.Order), nextID: 100}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeOrderRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	snapshot := make(map[int64]domain.Order, len(r.orders))
	for id, o := range r.orders {
		snapshot[id] = o
	}
	r.mu.Unlock()

	if err := fn(ctx); err != nil {
		r.mu.Lock()
		r.orders = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *fakeOrderRepo) CreateOrderWithLines(_ context.Context, order domain.Order) (int64, error) {
	if r.beforeCreate != nil {
		r.beforeCreate(r)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.createErr != nil {
		return 0, r.createErr
	}
	if order.IdempotencyKey != nil {
		for _, o := range r.orders {
			if o.IdempotencyKey != nil && *o.IdempotencyKey == *order.IdempotencyKey {
				return 0, domain.ErrIdempotencyConflict
			}
		}
	}
	r.nextID++
	order.ID = r.nextID
	lines := make([]domain.OrderLine, len(order.Lines))
	for i, l := range order.Lines {
		l.ID = order.ID*100 + int64(i+1)
		lines[i] = l
	}
	order.Lines = lines
	r.orders[order.ID] = order
	return order.ID, nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id int64) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	o, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return o, nil
}

func (r *fakeOrderRepo) GetByIDForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeOrderRepo) FindByIdempotencyKey(_ context.Context, key string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	for _, o := range r.orders {
		if o.IdempotencyKey != nil && *o.IdempotencyKey == key {
			found := o
			return &found, nil
		}
	}
	return nil, nil
}

func (r *fakeOrderRepo) Update(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if stored.Version != order.Version {
		return domain.ErrConflict
	}
	order.Version++
	r.orders[order.ID] = order
	return nil
}

func (r *fakeOrderRepo) get(id int64) domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id]
}

func (r *fakeOrderRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type fakeCatalog struct {
	mu       sync.Mutex
	products map[int64]domain.Product
	err      error
	delay    time.Duration
	lookups  int
}

func newFakeCatalog(products ...domain.Product) *fakeCatalog {
	c := &fakeCatalog{products: make(map[int64]domain.Product)}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (c *fakeCatalog) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	c.mu.Lock()
	c.lookups++
	c.mu.Unlock()
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return domain.Product{}, ctx.Err()
		}
	}
	if c.err != nil {
		return domain.Product{}, c.err
	}
	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

var errStorage = errors.New("connection reset")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func gatewayOrder(id int64, total string) domain.Order {
	return domain.Order{
		ID:                id,
		Customer:          domain.Customer{Name: "An", Email: "an@example.com", Phone: "0900", ShippingAddress: "1 Street"},
		TotalAmount:       dec(total),
		FulfillmentStatus: domain.FulfillmentPending,
		PaymentMethod:     domain.PaymentGatewayA,
		PaymentStatus:     domain.PaymentPending,
		Version:           1,
		Lines: []domain.OrderLine{
			{ID: 1, ProductID: 7, ProductName: "Tee", SKU: "tee", Quantity: 1, UnitPrice: dec(total)},
		},
	}
}
