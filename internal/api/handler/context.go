package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/medistock/tenant-auth/internal/api/middleware"
	"github.com/medistock/tenant-auth/internal/core/domain"
)

// currentIdentity returns the identity injected by the Authenticate
// middleware. A missing identity means the route was wired without it.
func currentIdentity(c echo.Context) (*domain.Identity, error) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	return identity, nil
}

// currentOrganization returns the tenant resolved by the TenantScope middleware.
func currentOrganization(c echo.Context) (*domain.Organization, error) {
	org, ok := middleware.OrganizationFrom(c)
	if !ok {
		return nil, domain.ErrMissingTenantSelector
	}
	return org, nil
}
