// Package cache реализует read-through кеш товаров поверх Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/dailygoods/internal/domain"
)

const (
	// DefaultTTL время жизни записи о товаре.
	DefaultTTL = 5 * time.Minute
	// DefaultPrefix пространство имён ключей.
	DefaultPrefix = "dailygoods:product:"
)

// Option настраивает ProductCache.
type Option func(*ProductCache)

// WithTTL задаёт время жизни записей.
func WithTTL(ttl time.Duration) Option {
	return func(c *ProductCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithPrefix задаёт префикс ключей.
func WithPrefix(prefix string) Option {
	return func(c *ProductCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// ProductCache хранит товары в Redis в виде JSON.
type ProductCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

type productEntry struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	PriceUSD    decimal.Decimal `json:"price_usd"`
	PriceINR    decimal.Decimal `json:"price_inr"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func newEntry(p domain.Product) productEntry {
	return productEntry(p)
}

func (e productEntry) toDomain() domain.Product {
	return domain.Product(e)
}

// NewProductCache создаёт кеш поверх готового клиента.
func NewProductCache(client redis.UniversalClient, opts ...Option) *ProductCache {
	c := &ProductCache{
		client: client,
		ttl:    DefaultTTL,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial подключается к Redis по адресу addr и проверяет соединение.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return client, nil
}

func (c *ProductCache) key(id string) string {
	return c.prefix + id
}

// Get возвращает товар из кеша. found=false без ошибки означает промах;
// повреждённая запись считается промахом.
func (c *ProductCache) Get(ctx context.Context, id string) (domain.Product, bool, error) {
	raw, err := c.client.Get(ctx, c.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Product{}, false, nil
	}
	if err != nil {
		return domain.Product{}, false, fmt.Errorf("redis get product %s: %w", id, err)
	}

	var entry productEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return domain.Product{}, false, nil
	}
	return entry.toDomain(), true, nil
}

// GetMany возвращает найденные в кеше товары; отсутствующие ids в результат не попадают.
func (c *ProductCache) GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget products: %w", err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var entry productEntry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			continue
		}
		result[ids[i]] = entry.toDomain()
	}
	return result, nil
}

// Set сохраняет товары с общим TTL одним pipeline.
func (c *ProductCache) Set(ctx context.Context, products ...domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for _, p := range products {
		data, err := json.Marshal(newEntry(p))
		if err != nil {
			return fmt.Errorf("marshal product %s: %w", p.ID, err)
		}
		pipe.Set(ctx, c.key(p.ID), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set products: %w", err)
	}
	return nil
}

// Invalidate удаляет записи о товарах.
func (c *ProductCache) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.key(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis invalidate products: %w", err)
	}
	return nil
}

// Ping проверяет доступность Redis; используется health check.
func (c *ProductCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
