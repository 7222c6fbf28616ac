// Package memory provides process-local repositories for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

type txKey struct{}

// txState buffers writes until the transaction commits.
type txState struct {
	writes map[int64]domain.Order
}

// Store keeps orders in memory. Transactions are serialised, which gives the same
// isolation a row lock would.
type Store struct {
	txMu   sync.Mutex
	mu     sync.RWMutex
	orders map[int64]domain.Order
	keys   map[string]int64
	nextID int64
}

func NewStore() *Store {
	return &Store{
		orders: make(map[int64]domain.Order),
		keys:   make(map[string]int64),
	}
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &txState{writes: make(map[int64]domain.Order)}
	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range tx.writes {
		s.orders[id] = o
	}
	return nil
}

func (s *Store) CreateOrderWithLines(_ context.Context, order domain.Order) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.IdempotencyKey != nil {
		if _, ok := s.keys[*order.IdempotencyKey]; ok {
			return 0, domain.ErrIdempotencyConflict
		}
	}
	s.nextID++
	order.ID = s.nextID
	lines := make([]domain.OrderLine, len(order.Lines))
	for i, l := range order.Lines {
		l.ID = int64(i + 1)
		lines[i] = l
	}
	order.Lines = lines
	s.orders[order.ID] = order
	if order.IdempotencyKey != nil {
		s.keys[*order.IdempotencyKey] = order.ID
	}
	return order.ID, nil
}

func (s *Store) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	if tx, ok := ctx.Value(txKey{}).(*txState); ok {
		if o, ok := tx.writes[id]; ok {
			return clone(o), nil
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok || o.DeletedAt != nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return clone(o), nil
}

// GetByIDForUpdate is GetByID; the transaction mutex already excludes other writers.
func (s *Store) GetByIDForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	return s.GetByID(ctx, id)
}

func (s *Store) FindByIdempotencyKey(_ context.Context, key string) (*domain.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.keys[key]
	if !ok || s.orders[id].DeletedAt != nil {
		return nil, nil
	}
	o := clone(s.orders[id])
	return &o, nil
}

func (s *Store) Update(ctx context.Context, order domain.Order) error {
	current, err := s.GetByID(ctx, order.ID)
	if err != nil {
		return err
	}
	if current.Version != order.Version {
		return domain.ErrConflict
	}
	current.FulfillmentStatus = order.FulfillmentStatus
	current.PaymentStatus = order.PaymentStatus
	current.TransactionID = order.TransactionID
	current.UpdatedAt = order.UpdatedAt
	current.Version++

	if tx, ok := ctx.Value(txKey{}).(*txState); ok {
		tx.writes[order.ID] = current
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = current
	return nil
}

func (s *Store) ListOrders(_ context.Context, limit, offset int) ([]domain.Order, error) {
	all := s.live()
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *Store) CountOrders(context.Context) (int64, error) {
	return int64(len(s.live())), nil
}

func (s *Store) SumRevenue(context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, o := range s.live() {
		if o.FulfillmentStatus != domain.FulfillmentCancelled {
			total = total.Add(o.TotalAmount)
		}
	}
	return total, nil
}

func (s *Store) DailyRevenue(_ context.Context, since time.Time) ([]domain.DailyRevenue, error) {
	byDay := make(map[time.Time]decimal.Decimal)
	for _, o := range s.live() {
		if o.FulfillmentStatus == domain.FulfillmentCancelled || o.CreatedAt.Before(since) {
			continue
		}
		c := o.CreatedAt.UTC()
		day := time.Date(c.Year(), c.Month(), c.Day(), 0, 0, 0, 0, time.UTC)
		byDay[day] = byDay[day].Add(o.TotalAmount)
	}
	out := make([]domain.DailyRevenue, 0, len(byDay))
	for day, rev := range byDay {
		out = append(out, domain.DailyRevenue{Date: day, Revenue: rev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) live() []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Order, 0, len(s.orders))
	for _, o := range s.orders {
		if o.DeletedAt == nil {
			out = append(out, clone(o))
		}
	}
	return out
}

func clone(o domain.Order) domain.Order {
	o.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return o
}
