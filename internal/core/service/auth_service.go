package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/medistock/tenant-auth/internal/core/domain"
	"github.com/medistock/tenant-auth/internal/core/password"
	"github.com/medistock/tenant-auth/internal/core/ports"
	"github.com/medistock/tenant-auth/internal/core/token"
)

// AuthService implements registration, login, token refresh and identity
// validation on top of an IdentityStore.
type AuthService struct {
	store    ports.IdentityStore
	hasher   *password.Hasher
	issuer   *token.Issuer
	recorder ports.LoginRecorder
	log      zerolog.Logger
	settings
}

var _ ports.AuthService = (*AuthService)(nil)

// NewAuthService wires the service. A nil recorder records last-login
// synchronously through the store.
func NewAuthService(
	store ports.IdentityStore,
	hasher *password.Hasher,
	issuer *token.Issuer,
	recorder ports.LoginRecorder,
	log zerolog.Logger,
	opts ...Option,
) *AuthService {
	if recorder == nil {
		recorder = NewStoreLoginRecorder(store, log)
	}
	return &AuthService{
		store:    store,
		hasher:   hasher,
		issuer:   issuer,
		recorder: recorder,
		log:      log,
		settings: buildSettings(opts),
	}
}

// Register creates an organization together with its owner and signs the
// owner in.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (_ *ports.AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Register",
		trace.WithAttributes(attribute.String("organization.slug", in.OrganizationSlug)))
	defer func() { endSpan(span, err) }()

	// 1. Email must be unused.
	if _, err := s.store.FindIdentityByEmail(ctx, in.Email); err == nil {
		return nil, domain.ErrDuplicateEmail
	} else if !errors.Is(err, domain.ErrIdentityNotFound) {
		return nil, fmt.Errorf("register: lookup email: %w", err)
	}

	// 2. Slug must be unused, active or not.
	if !domain.ValidSlug(in.OrganizationSlug) {
		return nil, domain.ErrInvalidSlug
	}
	if _, err := s.store.FindOrganizationBySlug(ctx, in.OrganizationSlug); err == nil {
		return nil, domain.ErrDuplicateSlug
	} else if !errors.Is(err, domain.ErrOrganizationNotFound) {
		return nil, fmt.Errorf("register: lookup slug: %w", err)
	}

	// 3. Password policy.
	if !password.ValidateStrength(in.Password) {
		return nil, domain.ErrWeakPassword
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	// 4. Organization and owner are written in one transaction.
	now := s.now()
	trialEnds := now.Add(domain.TrialPeriod)
	org := &domain.Organization{
		ID:                 s.newID(),
		Name:               in.OrganizationName,
		Slug:               in.OrganizationSlug,
		SubscriptionStatus: domain.SubscriptionTrial,
		TrialEndsAt:        &trialEnds,
		IsActive:           true,
		Audit:              domain.Audit{CreatedAt: now, UpdatedAt: now, Version: 1},
	}
	verified := now
	owner := &domain.Identity{
		ID:              s.newID(),
		OrganizationID:  org.ID,
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		Email:           in.Email,
		PasswordHash:    hash,
		Role:            domain.RoleOwner,
		Status:          domain.StatusActive,
		Phone:           in.Phone,
		EmailVerifiedAt: &verified,
		Audit:           domain.Audit{CreatedAt: now, UpdatedAt: now, Version: 1},
	}
	if err := s.store.CreateOrganizationAndOwner(ctx, org, owner); err != nil {
		if k := domain.KindOf(err); k == domain.KindConflict {
			return nil, err
		}
		return nil, fmt.Errorf("register: create: %w", err)
	}
	owner.Organization = org

	s.log.Info().
		Str("identity_id", owner.ID).
		Str("organization_id", org.ID).
		Str("organization_slug", org.Slug).
		Msg("organization registered")

	// 5. Sign the owner in.
	return s.authResult(owner)
}

// Login checks the credentials and issues a new token pair. Unknown emails and
// wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, plaintext string) (_ *ports.AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer func() { endSpan(span, err) }()

	identity, err := s.store.FindIdentityByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrIdentityNotFound):
		s.hasher.Burn(plaintext)
		return nil, domain.ErrInvalidCredentials
	case err != nil:
		return nil, fmt.Errorf("login: %w", err)
	}

	if !s.hasher.Verify(plaintext, identity.PasswordHash) {
		s.log.Debug().Str("identity_id", identity.ID).Msg("login rejected: password mismatch")
		return nil, domain.ErrInvalidCredentials
	}
	if !identity.Active() {
		return nil, domain.ErrInactiveAccount
	}
	if identity.Organization == nil || !identity.Organization.IsActive {
		return nil, domain.ErrInactiveOrganization
	}

	s.recorder.RecordLogin(ctx, identity.ID, s.now())

	s.log.Info().
		Str("identity_id", identity.ID).
		Str("organization_id", identity.OrganizationID).
		Msg("login succeeded")

	return s.authResult(identity)
}

// Refresh exchanges a valid refresh token for a new pair. The presented token
// stays valid until it expires.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (_ *ports.AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer func() { endSpan(span, err) }()

	claims, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, domain.ErrInvalidRefreshToken
	}

	identity, err := s.store.FindIdentityByID(ctx, claims.Subject)
	switch {
	case errors.Is(err, domain.ErrIdentityNotFound):
		return nil, domain.ErrInvalidRefreshToken
	case err != nil:
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if !identity.Active() || identity.Organization == nil || !identity.Organization.IsActive {
		return nil, domain.ErrInvalidRefreshToken
	}

	return s.authResult(identity)
}

// ValidateIdentity loads the identity behind an access token subject and
// rejects it unless both the identity and its organization are active.
func (s *AuthService) ValidateIdentity(ctx context.Context, id string) (_ *domain.Identity, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.ValidateIdentity",
		trace.WithAttributes(attribute.String("identity.id", id)))
	defer func() { endSpan(span, err) }()

	identity, err := s.store.FindIdentityByID(ctx, id)
	switch {
	case errors.Is(err, domain.ErrIdentityNotFound):
		return nil, domain.ErrUnauthenticated
	case err != nil:
		return nil, fmt.Errorf("validate identity: %w", err)
	}
	if !identity.Active() || identity.Organization == nil || !identity.Organization.IsActive {
		return nil, domain.ErrUnauthenticated
	}
	return identity, nil
}

func (s *AuthService) authResult(identity *domain.Identity) (*ports.AuthResult, error) {
	pair, err := s.issuer.IssuePair(token.Principal{
		Subject:        identity.ID,
		Email:          identity.Email,
		OrganizationID: identity.OrganizationID,
		Role:           string(identity.Role),
	})
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return &ports.AuthResult{
		Identity:     identity,
		Organization: identity.Organization,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

// endSpan marks the span as failed for infrastructure errors only; client
// errors are expected outcomes.
func endSpan(span trace.Span, err error) {
	if err != nil {
		kind := domain.KindOf(err)
		span.SetAttributes(attribute.String("error.kind", string(kind)))
		if kind == domain.KindInternal {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}
