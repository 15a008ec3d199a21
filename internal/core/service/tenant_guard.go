package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/medistock/tenant-auth/internal/core/domain"
	"github.com/medistock/tenant-auth/internal/core/ports"
)

// OrganizationFinder is the subset of the store the guard needs.
type OrganizationFinder interface {
	FindOrganizationBySlug(ctx context.Context, slug string) (*domain.Organization, error)
}

// TenantGuard checks that an authenticated identity acts within its own
// organization. No role is exempt.
type TenantGuard struct {
	orgs OrganizationFinder
	log  zerolog.Logger
	settings
}

var _ ports.TenantGuard = (*TenantGuard)(nil)

func NewTenantGuard(orgs OrganizationFinder, log zerolog.Logger, opts ...Option) *TenantGuard {
	return &TenantGuard{orgs: orgs, log: log, settings: buildSettings(opts)}
}

// Resolve returns the organization selected by slug if identity belongs to it.
func (g *TenantGuard) Resolve(ctx context.Context, identity *domain.Identity, slug string) (_ *domain.Organization, err error) {
	ctx, span := g.tracer.Start(ctx, "TenantGuard.Resolve",
		trace.WithAttributes(attribute.String("organization.slug", slug)))
	defer func() { endSpan(span, err) }()

	if identity == nil {
		return nil, domain.ErrUnauthenticated
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, domain.ErrMissingTenantSelector
	}

	org, err := g.orgs.FindOrganizationBySlug(ctx, slug)
	switch {
	case errors.Is(err, domain.ErrOrganizationNotFound):
		return nil, domain.ErrTenantNotFound
	case err != nil:
		return nil, fmt.Errorf("tenant guard: %w", err)
	}
	if !org.IsActive || org.Deleted() {
		return nil, domain.ErrTenantNotFound
	}

	if !domain.BelongsTo(identity, org) {
		g.log.Warn().
			Str("identity_id", identity.ID).
			Str("identity_organization_id", identity.OrganizationID).
			Str("requested_organization_id", org.ID).
			Msg("cross-tenant access denied")
		return nil, domain.ErrTenantMismatch
	}
	return org, nil
}
