// Package catalog resolves products and their current prices for order building.
package catalog

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

// Reader resolves a single live product.
type Reader interface {
	GetProduct(ctx context.Context, id int64) (domain.Product, error)
}

// PostgresReader reads products and variants from the catalog tables. Soft-deleted rows are invisible.
type PostgresReader struct {
	pool *pgxpool.Pool
}

func NewPostgresReader(pool *pgxpool.Pool) *PostgresReader {
	return &PostgresReader{pool: pool}
}

func (r *PostgresReader) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	const productQuery = `
SELECT id, name, slug, base_price
FROM products
WHERE id = $1 AND deleted_at IS NULL`

	var p domain.Product
	err := r.pool.QueryRow(ctx, productQuery, id).Scan(&p.ID, &p.Name, &p.SKU, &p.Price)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, errors.Wrapf(err, "get product %d", id)
	}

	const variantQuery = `
SELECT id, sku, color_name, size, price_modifier
FROM product_variants
WHERE product_id = $1 AND deleted_at IS NULL
ORDER BY id`
	rows, err := r.pool.Query(ctx, variantQuery, id)
	if err != nil {
		return domain.Product{}, errors.Wrapf(err, "list variants of product %d", id)
	}
	defer rows.Close()

	for rows.Next() {
		var v domain.ProductVariant
		if err := rows.Scan(&v.ID, &v.SKU, &v.ColorName, &v.Size, &v.PriceModifier); err != nil {
			return domain.Product{}, errors.Wrap(err, "scan variant")
		}
		p.Variants = append(p.Variants, v)
	}
	if err := rows.Err(); err != nil {
		return domain.Product{}, errors.Wrap(err, "iterate variants")
	}
	return p, nil
}
