package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/medistock/tenant-auth/internal/api/handler"
	"github.com/medistock/tenant-auth/internal/core/ports"
	"github.com/medistock/tenant-auth/internal/infrastructure/db/memory"
	mongostore "github.com/medistock/tenant-auth/internal/infrastructure/db/mongo"
	"github.com/medistock/tenant-auth/internal/infrastructure/db/postgres"
	redisstore "github.com/medistock/tenant-auth/internal/infrastructure/db/redis"
	"github.com/medistock/tenant-auth/internal/pkg/config"
)

// backend is the identity store plus everything needed to probe and close it.
type backend struct {
	store  ports.IdentityStore
	health map[string]handler.PingFunc
	closes []func(context.Context) error
}

func (b *backend) close(ctx context.Context, log zerolog.Logger) {
	for i := len(b.closes) - 1; i >= 0; i-- {
		if err := b.closes[i](ctx); err != nil {
			log.Warn().Err(err).Msg("closing backend")
		}
	}
}

func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	b := &backend{health: map[string]handler.PingFunc{}}

	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, postgresPoolConfig(cfg))
		if err != nil {
			return nil, err
		}
		b.closes = append(b.closes, func(context.Context) error { pool.Close(); return nil })
		if cfg.Postgres.AutoMigrate {
			if err := postgres.Migrate(ctx, pool, log); err != nil {
				b.close(ctx, log)
				return nil, err
			}
		}
		b.store = postgres.NewIdentityStore(pool)
	case config.StoreMongo:
		store, disconnect, err := mongostore.Open(ctx, mongostore.Config{
			URI:          cfg.Mongo.URI,
			Database:     cfg.Mongo.Database,
			Transactions: cfg.Mongo.Transactions,
		}, log.With().Str("component", "mongo").Logger())
		if err != nil {
			return nil, err
		}
		b.closes = append(b.closes, disconnect)
		b.store = store
	case config.StoreMemory:
		log.Warn().Msg("using in-memory identity store; data is lost on restart")
		b.store = memory.NewIdentityStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
	b.health[cfg.StoreDriver] = b.store.Ping

	if cfg.Redis.Addr != "" {
		client, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			b.close(ctx, log)
			return nil, err
		}
		b.closes = append(b.closes, func(context.Context) error { return client.Close() })
		b.health["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		b.store = redisstore.NewTenantCache(b.store, client, cfg.Redis.TenantTTL, log.With().Str("component", "tenant_cache").Logger())
		log.Info().Str("addr", cfg.Redis.Addr).Dur("ttl", cfg.Redis.TenantTTL).Msg("tenant cache enabled")
	}

	return b, nil
}

func postgresPoolConfig(cfg *config.Config) *postgres.PoolConfig {
	return &postgres.PoolConfig{
		ConnString:      cfg.Postgres.URL,
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
		ConnectTimeout:  cfg.Postgres.ConnectTimeout,
	}
}
