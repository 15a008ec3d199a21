package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/crypto/bcrypt"

	"github.com/medistock/tenant-auth/internal/core/domain"
	"github.com/medistock/tenant-auth/internal/core/password"
	"github.com/medistock/tenant-auth/internal/core/ports"
	"github.com/medistock/tenant-auth/internal/core/token"
)

type stubStore struct {
	mu         sync.Mutex
	orgs       map[string]*domain.Organization
	identities map[string]*domain.Identity
	lastLogins map[string]time.Time

	findErr   error
	createErr error
	loginErr  error
}

func newStubStore() *stubStore {
	return &stubStore{
		orgs:       make(map[string]*domain.Organization),
		identities: make(map[string]*domain.Identity),
		lastLogins: make(map[string]time.Time),
	}
}

func (s *stubStore) FindIdentityByEmail(_ context.Context, email string) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, u := range s.identities {
		if u.Email == email {
			return s.loaded(u), nil
		}
	}
	return nil, domain.ErrIdentityNotFound
}

func (s *stubStore) FindIdentityByID(_ context.Context, id string) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	u, ok := s.identities[id]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	return s.loaded(u), nil
}

func (s *stubStore) FindOrganizationBySlug(_ context.Context, slug string) (*domain.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, o := range s.orgs {
		if o.Slug == slug {
			return o.Clone(), nil
		}
	}
	return nil, domain.ErrOrganizationNotFound
}

func (s *stubStore) CreateOrganizationAndOwner(_ context.Context, org *domain.Organization, owner *domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.orgs[org.ID] = org.Clone()
	s.identities[owner.ID] = owner.Clone()
	return nil
}

func (s *stubStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loginErr != nil {
		return s.loginErr
	}
	s.lastLogins[id] = at
	return nil
}

func (s *stubStore) Ping(context.Context) error { return nil }

func (s *stubStore) loaded(u *domain.Identity) *domain.Identity {
	c := u.Clone()
	c.Organization = s.orgs[u.OrganizationID].Clone()
	return c
}

func (s *stubStore) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orgs), len(s.identities)
}

type testEnv struct {
	store  *stubStore
	issuer *token.Issuer
	svc    *AuthService
	now    time.Time
}

var testHasher = func() *password.Hasher {
	h, err := password.NewHasher(bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return h
}()

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{store: newStubStore(), now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return env.now }

	issuer, err := token.NewIssuer(token.Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Hour,
		RefreshTTL:    7 * 24 * time.Hour,
	}, token.WithClock(clock))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	env.issuer = issuer

	seq := 0
	opts = append([]Option{
		WithClock(clock),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("id-%d", seq) }),
	}, opts...)
	env.svc = NewAuthService(env.store, testHasher, issuer, nil, zerolog.New(io.Discard), opts...)
	return env
}

func validInput() ports.RegisterInput {
	return ports.RegisterInput{
		Email:            "owner@acme.test",
		Password:         "Valid1Pass!",
		FirstName:        "Ada",
		LastName:         "Lovelace",
		OrganizationName: "Acme Clinic",
		OrganizationSlug: "acme",
	}
}

func TestAuthService_Register_Success(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	orgs, ids := env.store.counts()
	if orgs != 1 || ids != 1 {
		t.Fatalf("expected 1 org and 1 identity, got %d and %d", orgs, ids)
	}

	owner := res.Identity
	if owner.Role != domain.RoleOwner || owner.Status != domain.StatusActive {
		t.Fatalf("unexpected owner role/status: %s/%s", owner.Role, owner.Status)
	}
	if owner.EmailVerifiedAt == nil || !owner.EmailVerifiedAt.Equal(env.now) {
		t.Fatalf("expected email verified at %v, got %v", env.now, owner.EmailVerifiedAt)
	}
	if owner.PasswordHash == "Valid1Pass!" || !testHasher.Verify("Valid1Pass!", owner.PasswordHash) {
		t.Fatalf("expected stored password to be hashed")
	}

	org := res.Organization
	if org.SubscriptionStatus != domain.SubscriptionTrial || !org.IsActive {
		t.Fatalf("unexpected organization state: %+v", org)
	}
	if org.TrialEndsAt == nil || !org.TrialEndsAt.Equal(env.now.Add(30*24*time.Hour)) {
		t.Fatalf("expected trial to end 30 days out, got %v", org.TrialEndsAt)
	}
	if owner.OrganizationID != org.ID {
		t.Fatalf("owner not linked to organization")
	}

	claims, err := env.issuer.VerifyAccessToken(res.AccessToken)
	if err != nil {
		t.Fatalf("access token invalid: %v", err)
	}
	if claims.Subject != owner.ID || claims.OrganizationID != org.ID || claims.Role != "owner" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := env.issuer.VerifyRefreshToken(res.RefreshToken); err != nil {
		t.Fatalf("refresh token invalid: %v", err)
	}
	if res.ExpiresIn != 3600 {
		t.Fatalf("expected expiresIn 3600, got %d", res.ExpiresIn)
	}
}

func TestAuthService_Register_Conflicts(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Register(context.Background(), validInput()); err != nil {
		t.Fatalf("seed register failed: %v", err)
	}

	sameEmail := validInput()
	sameEmail.OrganizationSlug = "other"
	if _, err := env.svc.Register(context.Background(), sameEmail); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	sameSlug := validInput()
	sameSlug.Email = "someone@else.test"
	if _, err := env.svc.Register(context.Background(), sameSlug); !errors.Is(err, domain.ErrDuplicateSlug) {
		t.Fatalf("expected ErrDuplicateSlug, got %v", err)
	}

	// Email is checked before slug.
	if _, err := env.svc.Register(context.Background(), validInput()); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail first, got %v", err)
	}

	if orgs, ids := env.store.counts(); orgs != 1 || ids != 1 {
		t.Fatalf("conflicting registrations mutated state: %d orgs, %d identities", orgs, ids)
	}
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	env := newTestEnv(t)
	in := validInput()
	in.Password = "alllowercase1!"

	if _, err := env.svc.Register(context.Background(), in); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if orgs, ids := env.store.counts(); orgs != 0 || ids != 0 {
		t.Fatalf("expected no records, got %d orgs, %d identities", orgs, ids)
	}
}

func TestAuthService_Register_InvalidSlug(t *testing.T) {
	env := newTestEnv(t)
	in := validInput()
	in.OrganizationSlug = "Acme Clinic"

	if _, err := env.svc.Register(context.Background(), in); !errors.Is(err, domain.ErrInvalidSlug) {
		t.Fatalf("expected ErrInvalidSlug, got %v", err)
	}
}

func TestAuthService_Register_StoreConflictPassesThrough(t *testing.T) {
	env := newTestEnv(t)
	env.store.createErr = fmt.Errorf("insert: %w", domain.ErrDuplicateSlug)

	if _, err := env.svc.Register(context.Background(), validInput()); !errors.Is(err, domain.ErrDuplicateSlug) {
		t.Fatalf("expected ErrDuplicateSlug, got %v", err)
	}
}

func TestAuthService_Register_InfrastructureFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.createErr = errors.New("connection refused")

	_, err := env.svc.Register(context.Background(), validInput())
	if err == nil || domain.KindOf(err) != domain.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	env := newTestEnv(t)
	reg, err := env.svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	env.now = env.now.Add(time.Hour)
	res, err := env.svc.Login(context.Background(), "owner@acme.test", "Valid1Pass!")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if res.Identity.ID != reg.Identity.ID || res.Organization.Slug != "acme" {
		t.Fatalf("unexpected login result: %+v", res.Identity)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatalf("expected token pair")
	}

	at, ok := env.store.lastLogins[reg.Identity.ID]
	if !ok || !at.Equal(env.now) {
		t.Fatalf("expected last login %v, got %v", env.now, at)
	}
}

func TestAuthService_Login_FailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Register(context.Background(), validInput()); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, wrongPassword := env.svc.Login(context.Background(), "owner@acme.test", "Wrong1Pass!")
	_, unknownEmail := env.svc.Login(context.Background(), "ghost@acme.test", "Valid1Pass!")

	if !errors.Is(wrongPassword, domain.ErrInvalidCredentials) || !errors.Is(unknownEmail, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v and %v", wrongPassword, unknownEmail)
	}
	if wrongPassword.Error() != unknownEmail.Error() || domain.KindOf(wrongPassword) != domain.KindOf(unknownEmail) {
		t.Fatalf("login failures differ: %q vs %q", wrongPassword, unknownEmail)
	}
}

func TestAuthService_Login_InactiveAccountAndOrganization(t *testing.T) {
	env := newTestEnv(t)
	reg, err := env.svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	env.store.identities[reg.Identity.ID].Status = domain.StatusSuspended
	if _, err := env.svc.Login(context.Background(), "owner@acme.test", "Valid1Pass!"); !errors.Is(err, domain.ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}

	env.store.identities[reg.Identity.ID].Status = domain.StatusActive
	env.store.orgs[reg.Organization.ID].IsActive = false
	if _, err := env.svc.Login(context.Background(), "owner@acme.test", "Valid1Pass!"); !errors.Is(err, domain.ErrInactiveOrganization) {
		t.Fatalf("expected ErrInactiveOrganization, got %v", err)
	}
}

func TestAuthService_Login_LastLoginFailureIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.svc.Register(context.Background(), validInput()); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	env.store.loginErr = errors.New("write timeout")

	if _, err := env.svc.Login(context.Background(), "owner@acme.test", "Valid1Pass!"); err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
}

func TestAuthService_Login_InfrastructureFailure(t *testing.T) {
	env := newTestEnv(t)
	env.store.findErr = errors.New("connection reset")

	_, err := env.svc.Login(context.Background(), "owner@acme.test", "Valid1Pass!")
	if err == nil || domain.KindOf(err) != domain.KindInternal {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestAuthService_Refresh(t *testing.T) {
	env := newTestEnv(t)
	reg, err := env.svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	env.now = env.now.Add(2 * time.Hour)
	res, err := env.svc.Refresh(context.Background(), reg.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if res.Identity.ID != reg.Identity.ID {
		t.Fatalf("unexpected identity %s", res.Identity.ID)
	}
	if _, err := env.issuer.VerifyAccessToken(res.AccessToken); err != nil {
		t.Fatalf("new access token invalid: %v", err)
	}

	// No revocation: the old refresh token keeps working.
	if _, err := env.svc.Refresh(context.Background(), reg.RefreshToken); err != nil {
		t.Fatalf("expected old refresh token to remain valid, got %v", err)
	}
}

func TestAuthService_Refresh_FailuresCollapse(t *testing.T) {
	env := newTestEnv(t)
	reg, err := env.svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	orphan, err := env.issuer.IssueRefreshToken("missing-id")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := map[string]func() string{
		"tampered":        func() string { return reg.RefreshToken + "x" },
		"access token":    func() string { return reg.AccessToken },
		"unknown subject": func() string { return orphan },
		"expired": func() string {
			env.now = env.now.Add(8 * 24 * time.Hour)
			return reg.RefreshToken
		},
	}
	for name, tok := range cases {
		if _, err := env.svc.Refresh(context.Background(), tok()); !errors.Is(err, domain.ErrInvalidRefreshToken) {
			t.Fatalf("%s: expected ErrInvalidRefreshToken, got %v", name, err)
		}
	}
}

func TestAuthService_Refresh_InactiveIdentity(t *testing.T) {
	env := newTestEnv(t)
	reg, err := env.svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	env.store.identities[reg.Identity.ID].Status = domain.StatusInactive

	if _, err := env.svc.Refresh(context.Background(), reg.RefreshToken); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestAuthService_Refresh_InactiveOrganization(t *testing.T) {
	env := newTestEnv(t)
	reg, err := env.svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	env.store.orgs[reg.Organization.ID].IsActive = false

	if _, err := env.svc.Refresh(context.Background(), reg.RefreshToken); !errors.Is(err, domain.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestAuthService_ValidateIdentity(t *testing.T) {
	env := newTestEnv(t)
	reg, err := env.svc.Register(context.Background(), validInput())
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	got, err := env.svc.ValidateIdentity(context.Background(), reg.Identity.ID)
	if err != nil {
		t.Fatalf("ValidateIdentity failed: %v", err)
	}
	if got.Organization == nil || got.Organization.ID != reg.Organization.ID {
		t.Fatalf("expected organization loaded, got %+v", got.Organization)
	}

	if _, err := env.svc.ValidateIdentity(context.Background(), "nope"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for missing identity, got %v", err)
	}

	env.store.orgs[reg.Organization.ID].IsActive = false
	if _, err := env.svc.ValidateIdentity(context.Background(), reg.Identity.ID); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for inactive org, got %v", err)
	}
}

func TestAuthService_Spans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	env := newTestEnv(t, WithTracerProvider(tp))

	if _, err := env.svc.Register(context.Background(), validInput()); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	_, _ = env.svc.Login(context.Background(), "owner@acme.test", "bad")

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "AuthService.Register" || spans[1].Name() != "AuthService.Login" {
		t.Fatalf("unexpected span names: %s, %s", spans[0].Name(), spans[1].Name())
	}
	var kind string
	for _, kv := range spans[1].Attributes() {
		if kv.Key == "error.kind" {
			kind = kv.Value.AsString()
		}
	}
	if kind != string(domain.KindAuthentication) {
		t.Fatalf("expected error.kind=authentication, got %q", kind)
	}
}
