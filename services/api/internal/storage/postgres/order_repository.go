package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

const idempotencyKeyConstraint = "orders_idempotency_key_key"

const orderColumns = `
o.id, o.user_id, o.customer_name, o.customer_email, o.customer_phone, o.shipping_address, o.note,
o.total_amount, o.status, o.payment_method, o.payment_status, o.transaction_id, o.idempotency_key,
o.version, o.created_at, o.updated_at, o.deleted_at`

type OrderRepository struct {
	pool *pgxpool.Pool
	q    querier
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool, q: querier{pool: pool}}
}

func (r *OrderRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// CreateOrderWithLines inserts the order header and its lines in one transaction.
func (r *OrderRepository) CreateOrderWithLines(ctx context.Context, order domain.Order) (int64, error) {
	const insertOrder = `
INSERT INTO orders (
	user_id, customer_name, customer_email, customer_phone, shipping_address, note,
	total_amount, status, payment_method, payment_status, idempotency_key, version, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
RETURNING id`
	const insertLine = `
INSERT INTO order_items (order_id, product_id, variant_id, product_name, sku, quantity, unit_price)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var id int64
	err := r.WithTx(ctx, func(txCtx context.Context) error {
		c := order.Customer
		err := r.q.queryRow(txCtx, insertOrder,
			order.OwnerUserID, c.Name, c.Email, c.Phone, c.ShippingAddress, c.Note,
			order.TotalAmount, string(order.FulfillmentStatus), string(order.PaymentMethod), string(order.PaymentStatus),
			order.IdempotencyKey, order.Version, order.CreatedAt, order.UpdatedAt,
		).Scan(&id)
		if err != nil {
			if isUniqueViolation(err, idempotencyKeyConstraint) {
				return domain.ErrIdempotencyConflict
			}
			return fmt.Errorf("insert order: %w", err)
		}

		batch := &pgx.Batch{}
		for _, l := range order.Lines {
			batch.Queue(insertLine, id, l.ProductID, l.VariantID, l.ProductName, l.SKU, l.Quantity, l.UnitPrice)
		}
		br := txFromContext(txCtx).SendBatch(txCtx, batch)
		for range order.Lines {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("insert order line: %w", err)
			}
		}
		return br.Close()
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id int64) (domain.Order, error) {
	return r.get(ctx, id, false)
}

// GetByIDForUpdate locks the order row until the surrounding transaction ends.
func (r *OrderRepository) GetByIDForUpdate(ctx context.Context, id int64) (domain.Order, error) {
	return r.get(ctx, id, true)
}

func (r *OrderRepository) get(ctx context.Context, id int64, lock bool) (domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.id = $1 AND o.deleted_at IS NULL`
	if lock {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(r.q.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	if err := loadLines(ctx, r.q, []*domain.Order{&order}); err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

// FindByIdempotencyKey returns the live order created under key. A soft-deleted order
// still holds its key, so a new insert with that key fails with ErrIdempotencyConflict.
func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders o WHERE o.idempotency_key = $1 AND o.deleted_at IS NULL`

	order, err := scanOrder(r.q.queryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find order by idempotency key: %w", err)
	}
	if err := loadLines(ctx, r.q, []*domain.Order{&order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// Update writes the status fields when the stored version still matches order.Version.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	const stmt = `
UPDATE orders
SET status = $3, payment_status = $4, transaction_id = $5, updated_at = $6, version = version + 1
WHERE id = $1 AND version = $2 AND deleted_at IS NULL`

	tag, err := r.q.exec(ctx, stmt, order.ID, order.Version,
		string(order.FulfillmentStatus), string(order.PaymentStatus), order.TransactionID, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	const existsQuery = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1 AND deleted_at IS NULL)`
	if err := r.q.queryRow(ctx, existsQuery, order.ID).Scan(&exists); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return domain.ErrOrderNotFound
	}
	return domain.ErrConflict
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o                             domain.Order
		status, method, paymentStatus string
	)
	err := row.Scan(
		&o.ID, &o.OwnerUserID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Customer.ShippingAddress, &o.Customer.Note, &o.TotalAmount, &status, &method, &paymentStatus,
		&o.TransactionID, &o.IdempotencyKey, &o.Version, &o.CreatedAt, &o.UpdatedAt, &o.DeletedAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.FulfillmentStatus = domain.FulfillmentStatus(status)
	o.PaymentMethod = domain.PaymentMethod(method)
	o.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return o, nil
}

// loadLines fills the lines of every order with a single query.
func loadLines(ctx context.Context, q querier, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(orders))
	byID := make(map[int64]*domain.Order, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
		byID[o.ID] = o
	}

	const query = `
SELECT id, order_id, product_id, variant_id, product_name, sku, quantity, unit_price
FROM order_items
WHERE order_id = ANY($1) AND deleted_at IS NULL
ORDER BY order_id, id`
	rows, err := q.query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			l       domain.OrderLine
			orderID int64
		)
		if err := rows.Scan(&l.ID, &orderID, &l.ProductID, &l.VariantID, &l.ProductName, &l.SKU, &l.Quantity, &l.UnitPrice); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}
	if rows.Err() != nil {
		return fmt.Errorf("iterate order lines: %w", rows.Err())
	}
	return nil
}
