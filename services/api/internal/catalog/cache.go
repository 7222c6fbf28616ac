package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Pain0402/CoolStyle/services/api/internal/domain"
)

const defaultCacheTTL = time.Minute

// CachedReader is a read-through Redis cache in front of another Reader. Cache failures
// fall back to the underlying reader; only the underlying reader's errors reach callers.
type CachedReader struct {
	next   Reader
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

type CacheOption func(*CachedReader)

func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CachedReader) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *CachedReader) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewCachedReader(next Reader, client redis.UniversalClient, opts ...CacheOption) *CachedReader {
	c := &CachedReader{
		next:   next,
		client: client,
		ttl:    defaultCacheTTL,
		prefix: "coolstyle:catalog",
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type cachedVariant struct {
	ID            int64           `json:"id"`
	SKU           string          `json:"sku"`
	ColorName     string          `json:"color_name"`
	Size          string          `json:"size"`
	PriceModifier decimal.Decimal `json:"price_modifier"`
}

type cachedProduct struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	SKU      string          `json:"sku"`
	Price    decimal.Decimal `json:"price"`
	Variants []cachedVariant `json:"variants,omitempty"`
}

func (c *CachedReader) key(id int64) string {
	return fmt.Sprintf("%s:product:%d", c.prefix, id)
}

func (c *CachedReader) GetProduct(ctx context.Context, id int64) (domain.Product, error) {
	if p, ok := c.lookup(ctx, id); ok {
		return p, nil
	}

	p, err := c.next.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	c.store(ctx, p)
	return p, nil
}

// Invalidate drops the cached copy of a product.
func (c *CachedReader) Invalidate(ctx context.Context, id int64) error {
	return errors.Wrap(c.client.Del(ctx, c.key(id)).Err(), "invalidate product cache")
}

func (c *CachedReader) lookup(ctx context.Context, id int64) (domain.Product, bool) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("catalog cache read failed", zap.Int64("product_id", id), zap.Error(err))
		}
		return domain.Product{}, false
	}
	var cp cachedProduct
	if err := json.Unmarshal(raw, &cp); err != nil {
		c.logger.Warn("catalog cache entry corrupt", zap.Int64("product_id", id), zap.Error(err))
		return domain.Product{}, false
	}
	p := domain.Product{ID: cp.ID, Name: cp.Name, SKU: cp.SKU, Price: cp.Price}
	for _, v := range cp.Variants {
		p.Variants = append(p.Variants, domain.ProductVariant(v))
	}
	return p, true
}

func (c *CachedReader) store(ctx context.Context, p domain.Product) {
	cp := cachedProduct{ID: p.ID, Name: p.Name, SKU: p.SKU, Price: p.Price}
	for _, v := range p.Variants {
		cp.Variants = append(cp.Variants, cachedVariant(v))
	}
	raw, err := json.Marshal(cp)
	if err != nil {
		c.logger.Warn("catalog cache encode failed", zap.Int64("product_id", p.ID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.key(p.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache write failed", zap.Int64("product_id", p.ID), zap.Error(err))
	}
}
