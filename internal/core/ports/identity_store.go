package ports

import (
	"context"
	"time"

	"github.com/medistock/tenant-auth/internal/core/domain"
)

// IdentityStore is the persistence boundary for identities and organizations.
// Implementations must skip soft-deleted rows on every read and report
// missing rows with domain.ErrIdentityNotFound or domain.ErrOrganizationNotFound.
type IdentityStore interface {
	// FindIdentityByEmail returns the identity with its organization loaded.
	FindIdentityByEmail(ctx context.Context, email string) (*domain.Identity, error)
	// FindIdentityByID returns the identity with its organization loaded.
	FindIdentityByID(ctx context.Context, id string) (*domain.Identity, error)
	FindOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error)
	// CreateOrganizationAndOwner persists both records atomically. A unique
	// violation is reported as domain.ErrDuplicateEmail or domain.ErrDuplicateSlug
	// and leaves nothing behind.
	CreateOrganizationAndOwner(ctx context.Context, org *domain.Organization, owner *domain.Identity) error
	UpdateLastLogin(ctx context.Context, identityID string, at time.Time) error
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}

// LoginRecorder records successful logins. Failures are never surfaced to the
// caller that triggered the login.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, identityID string, at time.Time)
}
