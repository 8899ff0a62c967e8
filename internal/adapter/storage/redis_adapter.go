package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rl1809/order-stock/internal/core/domain"
	"github.com/rl1809/order-stock/internal/port"
)

const (
	productKeyPrefix = "product:"

	DefaultCacheTTL = 10 * time.Minute
)

type cachedProduct struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Price     int64     `json:"price"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RedisProductCache is a write-through cache in front of a product
// repository. Stock is only written under the product lock, so every write
// goes through SaveAll and the cache cannot fall behind the store unless a
// cache write fails, in which case the keys are dropped.
type RedisProductCache struct {
	next   port.ProductRepository
	client redis.UniversalClient
	ttl    time.Duration
	log    zerolog.Logger
}

func NewRedisProductCache(next port.ProductRepository, client redis.UniversalClient, ttl time.Duration, log zerolog.Logger) *RedisProductCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisProductCache{next: next, client: client, ttl: ttl, log: log}
}

func (c *RedisProductCache) FindByIDs(ctx context.Context, ids []int64) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}

	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.log.Warn().Err(err).Msg("product cache read failed, falling back to store")
		return c.next.FindByIDs(ctx, ids)
	}

	products := make([]domain.Product, 0, len(ids))
	var misses []int64
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			misses = append(misses, ids[i])
			continue
		}
		var cp cachedProduct
		if err := json.Unmarshal([]byte(raw), &cp); err != nil {
			misses = append(misses, ids[i])
			continue
		}
		products = append(products, domain.Product(cp))
	}

	if len(misses) == 0 {
		return products, nil
	}

	loaded, err := c.next.FindByIDs(ctx, misses)
	if err != nil {
		return nil, err
	}
	if err := c.fill(ctx, loaded); err != nil {
		c.log.Warn().Err(err).Msg("product cache fill failed")
	}
	return append(products, loaded...), nil
}

func (c *RedisProductCache) SaveAll(ctx context.Context, products []domain.Product) error {
	if err := c.next.SaveAll(ctx, products); err != nil {
		return err
	}
	if len(products) == 0 {
		return nil
	}

	if err := c.fill(ctx, products); err != nil {
		keys := make([]string, len(products))
		for i, p := range products {
			keys[i] = productKey(p.ID)
		}
		if delErr := c.client.Del(ctx, keys...).Err(); delErr != nil {
			return fmt.Errorf("product cache is stale: write: %v: evict: %w", err, delErr)
		}
		c.log.Warn().Err(err).Int("products", len(products)).Msg("product cache write failed, entries evicted")
	}
	return nil
}

func (c *RedisProductCache) fill(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, p := range products {
		data, err := json.Marshal(cachedProduct(p))
		if err != nil {
			return fmt.Errorf("encode product %d: %w", p.ID, err)
		}
		pipe.Set(ctx, productKey(p.ID), data, c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func productKey(id int64) string {
	return productKeyPrefix + strconv.FormatInt(id, 10)
}
