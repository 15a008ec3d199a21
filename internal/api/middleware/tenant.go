package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/medistock/tenant-auth/internal/api/metrics"
	"github.com/medistock/tenant-auth/internal/core/domain"
	"github.com/medistock/tenant-auth/internal/core/ports"
)

// TenantScope resolves the organization named by the tenant header and
// requires the authenticated identity to belong to it. Must run after
// Authenticate.
func TenantScope(guard ports.TenantGuard, header string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, _ := IdentityFrom(c)
			slug := c.Request().Header.Get(header)

			org, err := guard.Resolve(c.Request().Context(), identity, slug)
			if err != nil {
				metrics.TenantGuardDecisionsTotal.WithLabelValues(string(domain.KindOf(err))).Inc()
				return err
			}

			metrics.TenantGuardDecisionsTotal.WithLabelValues("allowed").Inc()
			c.Set(organizationKey, org)
			req := c.Request()
			c.SetRequest(req.WithContext(contextWithOrganization(req.Context(), org)))
			return next(c)
		}
	}
}
