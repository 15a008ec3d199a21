package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/medistock/tenant-auth/internal/core/domain"
	"github.com/medistock/tenant-auth/internal/core/token"
)

const (
	identityKey     = "identity"
	claimsKey       = "claims"
	organizationKey = "organization"
)

type ctxKey int

const organizationCtxKey ctxKey = iota

// IdentityFrom returns the identity set by Authenticate.
func IdentityFrom(c echo.Context) (*domain.Identity, bool) {
	identity, ok := c.Get(identityKey).(*domain.Identity)
	return identity, ok && identity != nil
}

// ClaimsFrom returns the verified access token claims set by Authenticate.
func ClaimsFrom(c echo.Context) (*token.Claims, bool) {
	claims, ok := c.Get(claimsKey).(*token.Claims)
	return claims, ok && claims != nil
}

// OrganizationFrom returns the organization set by TenantScope.
func OrganizationFrom(c echo.Context) (*domain.Organization, bool) {
	org, ok := c.Get(organizationKey).(*domain.Organization)
	return org, ok && org != nil
}

// OrganizationFromContext returns the tenant attached to a request context by
// TenantScope, for code that only sees a context.Context.
func OrganizationFromContext(ctx context.Context) (*domain.Organization, bool) {
	org, ok := ctx.Value(organizationCtxKey).(*domain.Organization)
	return org, ok && org != nil
}

func contextWithOrganization(ctx context.Context, org *domain.Organization) context.Context {
	return context.WithValue(ctx, organizationCtxKey, org)
}
