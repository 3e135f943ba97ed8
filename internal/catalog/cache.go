package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"sustainable-advisor/internal/common/logger"
	"sustainable-advisor/internal/common/metrics"
	"sustainable-advisor/internal/models"
)

const (
	defaultCacheKey = "catalog:snapshot"
	defaultCacheTTL = 5 * time.Minute
)

// CachedProvider keeps the last catalog snapshot in Redis. Only raw products
// are cached, never scores. Redis failures fall through to the inner
// provider.
type CachedProvider struct {
	inner  Provider
	rdb    redis.UniversalClient
	key    string
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedProvider(inner Provider, rdb redis.UniversalClient, key string, ttl time.Duration, log logger.Logger) *CachedProvider {
	if key == "" {
		key = defaultCacheKey
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedProvider{
		inner:  inner,
		rdb:    rdb,
		key:    key,
		ttl:    ttl,
		logger: logger.ForComponent(log, "catalog-cache"),
	}
}

func (p *CachedProvider) Name() string {
	return "cache"
}

func (p *CachedProvider) GetProducts(ctx context.Context) ([]models.Product, error) {
	val, err := p.rdb.Get(ctx, p.key).Bytes()
	switch {
	case err == nil:
		var products []models.Product
		if err := json.Unmarshal(val, &products); err == nil {
			metrics.CatalogFetches.WithLabelValues(p.Name(), "hit").Inc()
			return products, nil
		}
		p.logger.Warn("Discarding undecodable catalog snapshot", map[string]interface{}{"key": p.key})
	case errors.Is(err, redis.Nil):
		metrics.CatalogFetches.WithLabelValues(p.Name(), "miss").Inc()
	default:
		metrics.CatalogFetches.WithLabelValues(p.Name(), "error").Inc()
		p.logger.Warn("Catalog cache unavailable", map[string]interface{}{"error": err.Error()})
	}

	products, err := p.inner.GetProducts(ctx)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return products, nil
	}

	data, err := json.Marshal(products)
	if err != nil {
		return products, nil
	}
	if err := p.rdb.Set(ctx, p.key, data, p.ttl).Err(); err != nil {
		p.logger.Warn("Failed to store catalog snapshot", map[string]interface{}{"error": err.Error()})
	}
	return products, nil
}

// Invalidate drops the cached snapshot.
func (p *CachedProvider) Invalidate(ctx context.Context) error {
	return p.rdb.Del(ctx, p.key).Err()
}
