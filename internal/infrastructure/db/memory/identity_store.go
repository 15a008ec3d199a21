// Package memory provides an in-process IdentityStore for tests and local
// development. State does not survive a restart and is not shared between
// replicas.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/medistock/tenant-auth/internal/core/domain"
	"github.com/medistock/tenant-auth/internal/core/ports"
)

// IdentityStore keeps identities and organizations in maps guarded by a
// single lock so registration stays atomic.
type IdentityStore struct {
	mu            sync.RWMutex
	organizations map[string]*domain.Organization // by id
	identities    map[string]*domain.Identity     // by id
	orgsBySlug    map[string]string
	idsByEmail    map[string]string
}

var _ ports.IdentityStore = (*IdentityStore)(nil)

func NewIdentityStore() *IdentityStore {
	return &IdentityStore{
		organizations: make(map[string]*domain.Organization),
		identities:    make(map[string]*domain.Identity),
		orgsBySlug:    make(map[string]string),
		idsByEmail:    make(map[string]string),
	}
}

func (s *IdentityStore) FindIdentityByEmail(_ context.Context, email string) (*domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.idsByEmail[email]
	if !ok {
		return nil, domain.ErrIdentityNotFound
	}
	return s.loadIdentity(id)
}

func (s *IdentityStore) FindIdentityByID(_ context.Context, id string) (*domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadIdentity(id)
}

func (s *IdentityStore) FindOrganizationBySlug(_ context.Context, slug string) (*domain.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.orgsBySlug[slug]
	if !ok {
		return nil, domain.ErrOrganizationNotFound
	}
	org := s.organizations[id]
	if org.Deleted() {
		return nil, domain.ErrOrganizationNotFound
	}
	return org.Clone(), nil
}

func (s *IdentityStore) CreateOrganizationAndOwner(_ context.Context, org *domain.Organization, owner *domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Uniqueness holds across tombstones, matching the relational constraints.
	if _, exists := s.orgsBySlug[org.Slug]; exists {
		return domain.ErrDuplicateSlug
	}
	if _, exists := s.idsByEmail[owner.Email]; exists {
		return domain.ErrDuplicateEmail
	}

	stored := owner.Clone()
	stored.Organization = nil
	s.organizations[org.ID] = org.Clone()
	s.identities[owner.ID] = stored
	s.orgsBySlug[org.Slug] = org.ID
	s.idsByEmail[owner.Email] = owner.ID
	return nil
}

func (s *IdentityStore) UpdateLastLogin(_ context.Context, identityID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[identityID]
	if !ok || identity.Deleted() {
		return domain.ErrIdentityNotFound
	}
	t := at
	identity.LastLoginAt = &t
	identity.UpdatedAt = at
	identity.Version++
	return nil
}

func (s *IdentityStore) Ping(context.Context) error {
	return nil
}

// SetIdentityStatus changes an identity's status. Used by tests and seeding.
func (s *IdentityStore) SetIdentityStatus(identityID string, status domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[identityID]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	identity.Status = status
	return nil
}

// SetIdentityRole changes an identity's role.
func (s *IdentityStore) SetIdentityRole(identityID string, role domain.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[identityID]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	identity.Role = role
	return nil
}

// SetOrganizationActive toggles an organization's active flag.
func (s *IdentityStore) SetOrganizationActive(orgID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	org, ok := s.organizations[orgID]
	if !ok {
		return domain.ErrOrganizationNotFound
	}
	org.IsActive = active
	return nil
}

// SoftDeleteIdentity tombstones an identity.
func (s *IdentityStore) SoftDeleteIdentity(identityID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[identityID]
	if !ok {
		return domain.ErrIdentityNotFound
	}
	t := at
	identity.DeletedAt = &t
	return nil
}

func (s *IdentityStore) loadIdentity(id string) (*domain.Identity, error) {
	identity, ok := s.identities[id]
	if !ok || identity.Deleted() {
		return nil, domain.ErrIdentityNotFound
	}
	out := identity.Clone()
	if org, ok := s.organizations[identity.OrganizationID]; ok && !org.Deleted() {
		out.Organization = org.Clone()
	}
	return out, nil
}
