//go:build integration

package postgres

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/medistock/tenant-auth/internal/core/domain"
)

func setupPostgresTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("tenant_auth_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, &PoolConfig{ConnString: connStr})
	require.NoError(t, err)

	log := zerolog.New(io.Discard)
	require.NoError(t, Migrate(ctx, pool, log))
	// Re-running is a no-op.
	require.NoError(t, Migrate(ctx, pool, log))

	t.Cleanup(func() {
		pool.Close()
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("warning: failed to terminate container: %v", err)
		}
	})
	return pool
}

func newRegistration(slug, email string) (*domain.Organization, *domain.Identity) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	trial := now.Add(domain.TrialPeriod)
	org := &domain.Organization{
		ID:                 uuid.Must(uuid.NewV7()).String(),
		Name:               "Org " + slug,
		Slug:               slug,
		SubscriptionStatus: domain.SubscriptionTrial,
		TrialEndsAt:        &trial,
		IsActive:           true,
		Audit:              domain.Audit{CreatedAt: now, UpdatedAt: now, Version: 1},
	}
	owner := &domain.Identity{
		ID:              uuid.Must(uuid.NewV7()).String(),
		OrganizationID:  org.ID,
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Email:           email,
		PasswordHash:    "$2a$12$abcdefghijklmnopqrstuv",
		Role:            domain.RoleOwner,
		Status:          domain.StatusActive,
		EmailVerifiedAt: &now,
		Audit:           domain.Audit{CreatedAt: now, UpdatedAt: now, Version: 1},
	}
	return org, owner
}

func TestIdentityStore_Integration(t *testing.T) {
	pool := setupPostgresTestDB(t)
	store := NewIdentityStore(pool)
	ctx := context.Background()

	org, owner := newRegistration("acme", "owner@acme.test")
	require.NoError(t, store.CreateOrganizationAndOwner(ctx, org, owner))

	t.Run("find by email loads organization", func(t *testing.T) {
		got, err := store.FindIdentityByEmail(ctx, "owner@acme.test")
		require.NoError(t, err)
		assert.Equal(t, owner.ID, got.ID)
		assert.Equal(t, domain.RoleOwner, got.Role)
		require.NotNil(t, got.Organization)
		assert.Equal(t, "acme", got.Organization.Slug)
		assert.Equal(t, domain.SubscriptionTrial, got.Organization.SubscriptionStatus)
		require.NotNil(t, got.Organization.TrialEndsAt)
		assert.True(t, got.Organization.TrialEndsAt.Equal(*org.TrialEndsAt))
	})

	t.Run("find by id", func(t *testing.T) {
		got, err := store.FindIdentityByID(ctx, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, "owner@acme.test", got.Email)

		_, err = store.FindIdentityByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
		_, err = store.FindIdentityByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrIdentityNotFound)
	})

	t.Run("find organization by slug", func(t *testing.T) {
		got, err := store.FindOrganizationBySlug(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, org.ID, got.ID)

		_, err = store.FindOrganizationBySlug(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
	})

	t.Run("duplicates roll back", func(t *testing.T) {
		dupSlugOrg, dupSlugOwner := newRegistration("acme", "fresh@acme.test")
		assert.ErrorIs(t, store.CreateOrganizationAndOwner(ctx, dupSlugOrg, dupSlugOwner), domain.ErrDuplicateSlug)

		dupEmailOrg, dupEmailOwner := newRegistration("fresh", "owner@acme.test")
		assert.ErrorIs(t, store.CreateOrganizationAndOwner(ctx, dupEmailOrg, dupEmailOwner), domain.ErrDuplicateEmail)

		// The organization insert succeeded before the owner failed; it must be gone.
		_, err := store.FindOrganizationBySlug(ctx, "fresh")
		assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
	})

	t.Run("update last login", func(t *testing.T) {
		at := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, store.UpdateLastLogin(ctx, owner.ID, at))

		got, err := store.FindIdentityByID(ctx, owner.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastLoginAt)
		assert.True(t, got.LastLoginAt.Equal(at))
		assert.Equal(t, 2, got.Version)

		assert.ErrorIs(t, store.UpdateLastLogin(ctx, uuid.NewString(), at), domain.ErrIdentityNotFound)
	})

	t.Run("soft deleted rows are invisible", func(t *testing.T) {
		gone, goneOwner := newRegistration("gone", "gone@acme.test")
		require.NoError(t, store.CreateOrganizationAndOwner(ctx, gone, goneOwner))

		_, err := pool.Exec(ctx, `UPDATE users SET deleted_at = now() WHERE id = $1`, goneOwner.ID)
		require.NoError(t, err)
		_, err = store.FindIdentityByEmail(ctx, "gone@acme.test")
		assert.ErrorIs(t, err, domain.ErrIdentityNotFound)

		_, err = pool.Exec(ctx, `UPDATE organizations SET deleted_at = now() WHERE id = $1`, gone.ID)
		require.NoError(t, err)
		_, err = store.FindOrganizationBySlug(ctx, "gone")
		assert.ErrorIs(t, err, domain.ErrOrganizationNotFound)
	})

	t.Run("concurrent registrations with the same slug", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 5)
		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				o, u := newRegistration("race", uuid.NewString()+"@race.test")
				errs <- store.CreateOrganizationAndOwner(ctx, o, u)
			}(i)
		}
		wg.Wait()
		close(errs)

		ok := 0
		for err := range errs {
			if err == nil {
				ok++
				continue
			}
			assert.ErrorIs(t, err, domain.ErrDuplicateSlug)
		}
		assert.Equal(t, 1, ok)
	})

	require.NoError(t, store.Ping(ctx))
}
