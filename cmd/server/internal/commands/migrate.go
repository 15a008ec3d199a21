package commands

import (
	"context"

	"github.com/medistock/tenant-auth/internal/infrastructure/db/postgres"
)

// MigrateCmd applies the embedded schema migrations to Postgres.
type MigrateCmd struct{}

func (m *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	cfg, log, err := bootstrap(ctx, globals)
	if err != nil {
		return err
	}

	pool, err := postgres.NewPool(ctx, postgresPoolConfig(cfg))
	if err != nil {
		return err
	}
	defer pool.Close()

	return postgres.Migrate(ctx, pool, log)
}
