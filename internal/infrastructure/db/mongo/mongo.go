// Package mongo implements the IdentityStore on MongoDB.
package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultTimeout = 10 * time.Second

// Config captures the settings required to reach the identity database.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
	// Transactions requires a replica set or sharded cluster.
	Transactions bool
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

// Open connects and returns a ready IdentityStore with its indexes in place.
// The returned close function disconnects the client.
func Open(ctx context.Context, cfg Config, log zerolog.Logger) (*IdentityStore, func(context.Context) error, error) {
	client, db, err := Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	logWriteMode(cfg, log)

	store := NewIdentityStore(db, cfg.Transactions)
	if err := store.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}
	return store, client.Disconnect, nil
}

// logWriteMode warns when registration runs without transactions: between the
// organization insert and the owner insert the organization is readable
// without an owner.
func logWriteMode(cfg Config, log zerolog.Logger) {
	if cfg.Transactions {
		return
	}
	log.Warn().
		Str("database", cfg.Database).
		Msg("mongo transactions disabled; registration is not atomic and an organization may briefly exist without its owner")
}
