package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

// AdminRepository serves back-office reads. Soft-deleted orders are excluded everywhere.
type AdminRepository struct {
	q querier
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{q: querier{pool: pool}}
}

func (r *AdminRepository) ListOrders(ctx context.Context, limit, offset int) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + `
FROM orders o
WHERE o.deleted_at IS NULL
ORDER BY o.created_at DESC, o.id DESC
LIMIT $1 OFFSET $2`
	rows, err := r.q.query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate orders: %w", rows.Err())
	}
	rows.Close()

	ptrs := make([]*domain.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := loadLines(ctx, r.q, ptrs); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *AdminRepository) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	if err := r.q.queryRow(ctx, `SELECT COUNT(*) FROM orders WHERE deleted_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

func (r *AdminRepository) SumRevenue(ctx context.Context) (decimal.Decimal, error) {
	const query = `
SELECT COALESCE(SUM(total_amount), 0)
FROM orders
WHERE deleted_at IS NULL AND status <> $1`
	var total decimal.Decimal
	if err := r.q.queryRow(ctx, query, string(domain.FulfillmentCancelled)).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum revenue: %w", err)
	}
	return total, nil
}

func (r *AdminRepository) DailyRevenue(ctx context.Context, since time.Time) ([]domain.DailyRevenue, error) {
	const query = `
SELECT date_trunc('day', created_at AT TIME ZONE 'UTC') AS day, SUM(total_amount)
FROM orders
WHERE deleted_at IS NULL AND status <> $1 AND created_at >= $2
GROUP BY day
ORDER BY day`
	rows, err := r.q.query(ctx, query, string(domain.FulfillmentCancelled), since)
	if err != nil {
		return nil, fmt.Errorf("daily revenue: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyRevenue
	for rows.Next() {
		var d domain.DailyRevenue
		if err := rows.Scan(&d.Date, &d.Revenue); err != nil {
			return nil, fmt.Errorf("scan daily revenue: %w", err)
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate daily revenue: %w", rows.Err())
	}
	return out, nil
}
