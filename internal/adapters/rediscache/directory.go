// Package rediscache caches company directory lookups in Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"wastemetrics/internal/domain"
	"wastemetrics/internal/observability"
	"wastemetrics/internal/ports"
)

const keyPrefix = "wastemetrics:company:"

// Directory wraps a ports.CompanyDirectory with a Redis read-through cache.
// Redis failures fall back to the wrapped directory.
type Directory struct {
	inner   ports.CompanyDirectory
	client  redis.UniversalClient
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewDirectory(inner ports.CompanyDirectory, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Directory {
	return &Directory{inner: inner, client: client, ttl: ttl, logger: logger, metrics: metrics}
}

func key(id string) string { return keyPrefix + id }

// Lookup implements ports.CompanyDirectory.
func (d *Directory) Lookup(ctx context.Context, ids []string) (map[string]domain.Company, error) {
	out := make(map[string]domain.Company, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	cached, err := d.client.MGet(ctx, keys...).Result()
	if err != nil {
		d.metrics.DirectoryCache.WithLabelValues("error").Inc()
		d.logger.Warn("directory cache read failed", "error", err)
		return d.inner.Lookup(ctx, ids)
	}

	var missing []string
	for i, v := range cached {
		s, ok := v.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var c domain.Company
		if err := json.Unmarshal([]byte(s), &c); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		out[ids[i]] = c
	}
	d.metrics.DirectoryCache.WithLabelValues("hit").Add(float64(len(ids) - len(missing)))
	d.metrics.DirectoryCache.WithLabelValues("miss").Add(float64(len(missing)))
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := d.inner.Lookup(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) == 0 {
		return out, nil
	}
	pipe := d.client.Pipeline()
	for id, c := range fetched {
		out[id] = c
		raw, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("encode company %s: %w", id, err)
		}
		pipe.Set(ctx, key(id), raw, d.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		d.logger.Warn("directory cache write failed", "error", err)
	}
	return out, nil
}

// Invalidate drops cached entries for ids.
func (d *Directory) Invalidate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = key(id)
	}
	return d.client.Del(ctx, keys...).Err()
}
