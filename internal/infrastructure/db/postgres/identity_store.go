package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medistock/tenant-auth/internal/core/domain"
	"github.com/medistock/tenant-auth/internal/core/ports"
)

// IdentityStore implements ports.IdentityStore using PostgreSQL.
type IdentityStore struct {
	pool *pgxpool.Pool
}

var _ ports.IdentityStore = (*IdentityStore)(nil)

func NewIdentityStore(pool *pgxpool.Pool) *IdentityStore {
	return &IdentityStore{pool: pool}
}

const organizationColumns = `
	o.id::text, o.created_at, o.updated_at, o.version, o.name, o.slug,
	coalesce(o.description, ''), coalesce(o.email, ''), coalesce(o.phone, ''),
	o.subscription_status, o.trial_ends_at, o.subscription_ends_at, o.is_active`

const identityColumns = `
	u.id::text, u.created_at, u.updated_at, u.version, u.organization_id::text,
	u.first_name, u.last_name, u.email, u.password_hash, u.role, u.status,
	coalesce(u.phone, ''), u.last_login_at, u.email_verified_at`

// The organization is joined with LEFT JOIN so a tombstoned tenant leaves
// Organization nil, which callers treat as inactive.
const identityQuery = `
	SELECT ` + identityColumns + `,
		o.id IS NOT NULL, ` + nullableOrganizationColumns + `
	FROM users u
	LEFT JOIN organizations o ON o.id = u.organization_id AND o.deleted_at IS NULL
	WHERE u.deleted_at IS NULL AND `

const nullableOrganizationColumns = `
	coalesce(o.id::text, ''), coalesce(o.created_at, 'epoch'), coalesce(o.updated_at, 'epoch'),
	coalesce(o.version, 0), coalesce(o.name, ''), coalesce(o.slug, ''),
	coalesce(o.description, ''), coalesce(o.email, ''), coalesce(o.phone, ''),
	coalesce(o.subscription_status, ''), o.trial_ends_at, o.subscription_ends_at,
	coalesce(o.is_active, false)`

func (s *IdentityStore) FindIdentityByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return s.findIdentity(ctx, identityQuery+`u.email = $1`, email)
}

func (s *IdentityStore) FindIdentityByID(ctx context.Context, id string) (*domain.Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrIdentityNotFound
	}
	return s.findIdentity(ctx, identityQuery+`u.id = $1`, id)
}

func (s *IdentityStore) findIdentity(ctx context.Context, query string, arg string) (*domain.Identity, error) {
	var (
		identity domain.Identity
		org      domain.Organization
		hasOrg   bool
		role     string
		status   string
		subs     string
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&identity.ID, &identity.CreatedAt, &identity.UpdatedAt, &identity.Version, &identity.OrganizationID,
		&identity.FirstName, &identity.LastName, &identity.Email, &identity.PasswordHash, &role, &status,
		&identity.Phone, &identity.LastLoginAt, &identity.EmailVerifiedAt,
		&hasOrg,
		&org.ID, &org.CreatedAt, &org.UpdatedAt, &org.Version, &org.Name, &org.Slug,
		&org.Description, &org.Email, &org.Phone,
		&subs, &org.TrialEndsAt, &org.SubscriptionEndsAt, &org.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", mapPostgresError(err))
	}

	identity.Role = domain.Role(role)
	identity.Status = domain.Status(status)
	if hasOrg {
		org.SubscriptionStatus = domain.SubscriptionStatus(subs)
		identity.Organization = &org
	}
	return &identity, nil
}

func (s *IdentityStore) FindOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error) {
	query := `SELECT ` + organizationColumns + `
		FROM organizations o
		WHERE o.slug = $1 AND o.deleted_at IS NULL`

	var (
		org  domain.Organization
		subs string
	)
	err := s.pool.QueryRow(ctx, query, slug).Scan(
		&org.ID, &org.CreatedAt, &org.UpdatedAt, &org.Version, &org.Name, &org.Slug,
		&org.Description, &org.Email, &org.Phone,
		&subs, &org.TrialEndsAt, &org.SubscriptionEndsAt, &org.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", mapPostgresError(err))
	}
	org.SubscriptionStatus = domain.SubscriptionStatus(subs)
	return &org, nil
}

// CreateOrganizationAndOwner inserts both rows in one transaction.
func (s *IdentityStore) CreateOrganizationAndOwner(ctx context.Context, org *domain.Organization, owner *domain.Identity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPostgresError(err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO organizations (
			id, created_at, updated_at, version, name, slug, description, email, phone,
			subscription_status, trial_ends_at, subscription_ends_at, is_active
		) VALUES (
			$1, $2, $3, $4, $5, $6, nullif($7, ''), nullif($8, ''), nullif($9, ''), $10, $11, $12, $13
		)`,
		org.ID, org.CreatedAt, org.UpdatedAt, org.Version, org.Name, org.Slug,
		org.Description, org.Email, org.Phone,
		string(org.SubscriptionStatus), org.TrialEndsAt, org.SubscriptionEndsAt, org.IsActive,
	)
	if err != nil {
		return mapInsertError("organization", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO users (
			id, created_at, updated_at, version, organization_id, first_name, last_name,
			email, password_hash, role, status, phone, last_login_at, email_verified_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, nullif($12, ''), $13, $14
		)`,
		owner.ID, owner.CreatedAt, owner.UpdatedAt, owner.Version, owner.OrganizationID,
		owner.FirstName, owner.LastName, owner.Email, owner.PasswordHash,
		string(owner.Role), string(owner.Status), owner.Phone, owner.LastLoginAt, owner.EmailVerifiedAt,
	)
	if err != nil {
		return mapInsertError("owner", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit registration: %w", mapPostgresError(err))
	}
	return nil
}

func (s *IdentityStore) UpdateLastLogin(ctx context.Context, identityID string, at time.Time) error {
	if _, err := uuid.Parse(identityID); err != nil {
		return domain.ErrIdentityNotFound
	}
	result, err := s.pool.Exec(ctx, `
		UPDATE users SET
			last_login_at = $2,
			updated_at = $2,
			version = version + 1
		WHERE id = $1 AND deleted_at IS NULL`,
		identityID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", mapPostgresError(err))
	}
	if result.RowsAffected() == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

func (s *IdentityStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func mapInsertError(what string, err error) error {
	mapped := mapPostgresError(err)
	if domain.KindOf(mapped) == domain.KindConflict {
		return mapped
	}
	return fmt.Errorf("failed to create %s: %w", what, mapped)
}
