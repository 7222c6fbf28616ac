package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
	"github.com/Pain0402/CoolStyle/services/api/internal/testutil"
)

func newTestOrder(key string) domain.Order {
	now := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	variantID := int64(91)
	lines := []domain.OrderLine{
		{ProductID: 7, ProductName: "Basic Tee", SKU: "basic-tee", Quantity: 2, UnitPrice: decimal.RequireFromString("100000")},
		{ProductID: 9, VariantID: &variantID, ProductName: "Hoodie", SKU: "hoodie-black-l", Quantity: 1, UnitPrice: decimal.RequireFromString("370000.50")},
	}
	o := domain.Order{
		Customer: domain.Customer{
			Name:            "Nguyen Van A",
			Email:           "a@example.com",
			Phone:           "0900000000",
			ShippingAddress: "12 Le Loi",
		},
		TotalAmount:       domain.SumLines(lines),
		FulfillmentStatus: domain.FulfillmentPending,
		PaymentMethod:     domain.PaymentGatewayA,
		PaymentStatus:     domain.PaymentPending,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
		Lines:             lines,
	}
	if key != "" {
		o.IdempotencyKey = &key
	}
	return o
}

func TestOrderRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewOrderRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("CreateOrderWithLines persists header and lines", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id, err := repo.CreateOrderWithLines(ctx, newTestOrder("idem-1"))
		if err != nil {
			t.Fatalf("create order: %v", err)
		}

		got, err := repo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if !got.TotalAmount.Equal(decimal.RequireFromString("570000.50")) {
			t.Fatalf("unexpected total %s", got.TotalAmount)
		}
		if len(got.Lines) != 2 {
			t.Fatalf("expected 2 lines, got %d", len(got.Lines))
		}
		if got.Lines[1].VariantID == nil || *got.Lines[1].VariantID != 91 {
			t.Fatalf("expected variant 91, got %+v", got.Lines[1])
		}
		if got.FulfillmentStatus != domain.FulfillmentPending || got.PaymentMethod != domain.PaymentGatewayA {
			t.Fatalf("unexpected statuses: %+v", got)
		}
		if got.IdempotencyKey == nil || *got.IdempotencyKey != "idem-1" {
			t.Fatalf("expected idempotency key, got %v", got.IdempotencyKey)
		}
	})

	t.Run("duplicate idempotency key is a conflict and leaves nothing behind", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		if _, err := repo.CreateOrderWithLines(ctx, newTestOrder("idem-dup")); err != nil {
			t.Fatalf("create order: %v", err)
		}
		_, err := repo.CreateOrderWithLines(ctx, newTestOrder("idem-dup"))
		if !errors.Is(err, domain.ErrIdempotencyConflict) {
			t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
		}

		var lines int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM order_items`).Scan(&lines); err != nil {
			t.Fatalf("count lines: %v", err)
		}
		if lines != 2 {
			t.Fatalf("expected 2 persisted lines, got %d", lines)
		}

		found, err := repo.FindByIdempotencyKey(ctx, "idem-dup")
		if err != nil || found == nil {
			t.Fatalf("expected order by key, got %v %v", found, err)
		}
		missing, err := repo.FindByIdempotencyKey(ctx, "nope")
		if err != nil || missing != nil {
			t.Fatalf("expected nil, got %v %v", missing, err)
		}
	})

	t.Run("GetByID returns ErrOrderNotFound", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		_, err := repo.GetByID(ctx, 12345)
		if !errors.Is(err, domain.ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
	})

	t.Run("soft deleted orders are hidden", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id, err := repo.CreateOrderWithLines(ctx, newTestOrder("idem-deleted"))
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		if _, err := pool.Exec(ctx, `UPDATE orders SET deleted_at = NOW() WHERE id = $1`, id); err != nil {
			t.Fatalf("soft delete: %v", err)
		}
		if _, err := repo.GetByID(ctx, id); !errors.Is(err, domain.ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
		found, err := repo.FindByIdempotencyKey(ctx, "idem-deleted")
		if err != nil || found != nil {
			t.Fatalf("expected soft deleted order to be hidden from key lookup, got %v %v", found, err)
		}
		if _, err := repo.CreateOrderWithLines(ctx, newTestOrder("idem-deleted")); !errors.Is(err, domain.ErrIdempotencyConflict) {
			t.Fatalf("expected the key to stay taken, got %v", err)
		}
	})

	t.Run("failing line insert rolls back the header", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		order := newTestOrder("idem-bad-line")
		// The second line violates the quantity CHECK after the header and first line are queued.
		order.Lines[1].Quantity = 0
		if _, err := repo.CreateOrderWithLines(ctx, order); err == nil {
			t.Fatalf("expected line insert to fail")
		}

		var orders, lines int
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&orders); err != nil {
			t.Fatalf("count orders: %v", err)
		}
		if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM order_items`).Scan(&lines); err != nil {
			t.Fatalf("count lines: %v", err)
		}
		if orders != 0 || lines != 0 {
			t.Fatalf("expected nothing persisted, got %d orders and %d lines", orders, lines)
		}
		found, err := repo.FindByIdempotencyKey(ctx, "idem-bad-line")
		if err != nil || found != nil {
			t.Fatalf("expected key to be free, got %v %v", found, err)
		}
	})

	t.Run("Update is version checked", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id, err := repo.CreateOrderWithLines(ctx, newTestOrder(""))
		if err != nil {
			t.Fatalf("create order: %v", err)
		}

		err = repo.WithTx(ctx, func(txCtx context.Context) error {
			o, err := repo.GetByIDForUpdate(txCtx, id)
			if err != nil {
				return err
			}
			o.FulfillmentStatus = domain.FulfillmentConfirmed
			o.PaymentStatus = domain.PaymentPaid
			tx := "TX-1"
			o.TransactionID = &tx
			return repo.Update(txCtx, o)
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}

		got, err := repo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if got.Version != 2 || got.PaymentStatus != domain.PaymentPaid || got.TransactionID == nil {
			t.Fatalf("unexpected order after update: %+v", got)
		}

		stale := got
		stale.Version = 1
		if err := repo.Update(ctx, stale); !errors.Is(err, domain.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}

		stale.ID = 999999
		if err := repo.Update(ctx, stale); !errors.Is(err, domain.ErrOrderNotFound) {
			t.Fatalf("expected ErrOrderNotFound, got %v", err)
		}
	})

	t.Run("row lock serialises concurrent writers", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)

		id, err := repo.CreateOrderWithLines(ctx, newTestOrder(""))
		if err != nil {
			t.Fatalf("create order: %v", err)
		}

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = repo.WithTx(ctx, func(txCtx context.Context) error {
					o, err := repo.GetByIDForUpdate(txCtx, id)
					if err != nil {
						return err
					}
					return repo.Update(txCtx, o)
				})
			}(i)
		}
		wg.Wait()
		for _, err := range errs {
			if err != nil {
				t.Fatalf("expected both writers to succeed in turn, got %v", err)
			}
		}

		got, err := repo.GetByID(ctx, id)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if got.Version != 3 {
			t.Fatalf("expected version 3, got %d", got.Version)
		}
	})
}

func TestAdminRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)
	orders := NewOrderRepository(pool)
	repo := NewAdminRepository(pool)

	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)

	for i := 0; i < 3; i++ {
		o := newTestOrder("")
		o.CreatedAt = o.CreatedAt.Add(time.Duration(i) * 24 * time.Hour)
		if i == 1 {
			o.FulfillmentStatus = domain.FulfillmentCancelled
		}
		if _, err := orders.CreateOrderWithLines(ctx, o); err != nil {
			t.Fatalf("create order: %v", err)
		}
	}

	list, err := repo.ListOrders(ctx, 2, 0)
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(list))
	}
	if !list[0].CreatedAt.After(list[1].CreatedAt) {
		t.Fatalf("expected newest first")
	}
	if len(list[0].Lines) != 2 {
		t.Fatalf("expected lines loaded, got %d", len(list[0].Lines))
	}

	count, err := repo.CountOrders(ctx)
	if err != nil || count != 3 {
		t.Fatalf("expected 3 orders, got %d %v", count, err)
	}

	revenue, err := repo.SumRevenue(ctx)
	if err != nil {
		t.Fatalf("sum revenue: %v", err)
	}
	if !revenue.Equal(decimal.RequireFromString("1141001")) {
		t.Fatalf("unexpected revenue %s", revenue)
	}

	daily, err := repo.DailyRevenue(ctx, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("daily revenue: %v", err)
	}
	if len(daily) != 2 {
		t.Fatalf("expected 2 revenue days, got %+v", daily)
	}
}
