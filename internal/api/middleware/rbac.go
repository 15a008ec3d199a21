package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/medistock/tenant-auth/internal/core/domain"
)

// RequireRole enforces role-based access control on the authenticated identity.
func RequireRole(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			identity, ok := IdentityFrom(c)
			if !ok {
				return domain.ErrUnauthenticated
			}
			if _, ok := allowed[identity.Role]; !ok {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
