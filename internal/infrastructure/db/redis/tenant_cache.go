package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/medistock/tenant-auth/internal/api/metrics"
	"github.com/medistock/tenant-auth/internal/core/domain"
	"github.com/medistock/tenant-auth/internal/core/ports"
)

const DefaultTenantTTL = 30 * time.Second

// TenantCache wraps an IdentityStore and caches FindOrganizationBySlug hits.
// Misses are never cached so a new organization is visible immediately; an
// organization deactivated within the TTL may still be served until expiry.
// Redis failures fall through to the store.
//
// Key format: tenant:slug:<slug>
type TenantCache struct {
	ports.IdentityStore
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

var _ ports.IdentityStore = (*TenantCache)(nil)

func NewTenantCache(store ports.IdentityStore, client *redis.Client, ttl time.Duration, log zerolog.Logger) *TenantCache {
	if ttl <= 0 {
		ttl = DefaultTenantTTL
	}
	return &TenantCache{IdentityStore: store, client: client, ttl: ttl, log: log}
}

// cachedOrganization mirrors domain.Organization including the fields the
// API representation hides.
type cachedOrganization struct {
	Org       *domain.Organization `json:"org"`
	DeletedAt *time.Time           `json:"deletedAt,omitempty"`
	Version   int                  `json:"version"`
}

func (c *TenantCache) FindOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	key := c.key(slug)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cached cachedOrganization
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil && cached.Org != nil {
			metrics.TenantCacheTotal.WithLabelValues("hit").Inc()
			cached.Org.DeletedAt = cached.DeletedAt
			cached.Org.Version = cached.Version
			return cached.Org, nil
		}
		c.log.Warn().Str("key", key).Msg("discarding undecodable tenant cache entry")
	case !errors.Is(err, redis.Nil):
		metrics.TenantCacheTotal.WithLabelValues("error").Inc()
		c.log.Warn().Err(err).Str("key", key).Msg("tenant cache read failed")
		return c.IdentityStore.FindOrganizationBySlug(ctx, slug)
	}
	metrics.TenantCacheTotal.WithLabelValues("miss").Inc()

	org, err := c.IdentityStore.FindOrganizationBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(cachedOrganization{Org: org, DeletedAt: org.DeletedAt, Version: org.Version})
	if err == nil {
		err = c.client.Set(ctx, key, payload, c.ttl).Err()
	}
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("tenant cache write failed")
	}
	return org, nil
}

// Invalidate drops the cached entry for slug.
func (c *TenantCache) Invalidate(ctx context.Context, slug string) error {
	if err := c.client.Del(ctx, c.key(slug)).Err(); err != nil {
		return fmt.Errorf("tenant cache invalidate: %w", err)
	}
	return nil
}

func (c *TenantCache) key(slug string) string {
	return fmt.Sprintf("tenant:slug:%s", slug)
}
