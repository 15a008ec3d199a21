package ports

import (
	"context"

	"github.com/medistock/tenant-auth/internal/core/domain"
)

type RegisterInput struct {
	Email            string
	Password         string
	FirstName        string
	LastName         string
	Phone            string
	OrganizationName string
	OrganizationSlug string
}

// AuthResult is returned by every operation that hands out credentials.
type AuthResult struct {
	Identity     *domain.Identity
	Organization *domain.Organization
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthResult, error)
	// ValidateIdentity resolves an authenticated subject. Missing or inactive
	// identities, and identities of inactive organizations, yield
	// domain.ErrUnauthenticated.
	ValidateIdentity(ctx context.Context, id string) (*domain.Identity, error)
}

// TenantGuard decides whether an identity may act within the organization
// selected by slug.
type TenantGuard interface {
	Resolve(ctx context.Context, identity *domain.Identity, slug string) (*domain.Organization, error)
}
