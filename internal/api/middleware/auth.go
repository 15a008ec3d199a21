package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/medistock/tenant-auth/internal/api/metrics"
	"github.com/medistock/tenant-auth/internal/core/domain"
	"github.com/medistock/tenant-auth/internal/core/token"
)

// AccessTokenVerifier checks a raw bearer token.
type AccessTokenVerifier interface {
	VerifyAccessToken(raw string) (*token.Claims, error)
}

// IdentityValidator resolves the subject of a verified token.
type IdentityValidator interface {
	ValidateIdentity(ctx context.Context, id string) (*domain.Identity, error)
}

// Authenticate verifies the bearer token, loads the identity behind it and
// injects both into the echo context. Errors are returned to the HTTP error
// handler unchanged.
func Authenticate(tokens AccessTokenVerifier, identities IdentityValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				metrics.TokenVerificationsTotal.WithLabelValues("missing").Inc()
				return domain.ErrUnauthenticated
			}

			scheme, raw, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(raw) == "" {
				metrics.TokenVerificationsTotal.WithLabelValues("invalid").Inc()
				return domain.ErrInvalidToken
			}

			claims, err := tokens.VerifyAccessToken(strings.TrimSpace(raw))
			if err != nil {
				metrics.TokenVerificationsTotal.WithLabelValues("invalid").Inc()
				return domain.ErrInvalidToken
			}

			identity, err := identities.ValidateIdentity(c.Request().Context(), claims.Subject)
			if err != nil {
				metrics.TokenVerificationsTotal.WithLabelValues("rejected_identity").Inc()
				return err
			}

			metrics.TokenVerificationsTotal.WithLabelValues("valid").Inc()
			c.Set(claimsKey, claims)
			c.Set(identityKey, identity)
			return next(c)
		}
	}
}
