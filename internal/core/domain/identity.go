package domain

import "time"

type Role string

const (
	RoleSuperAdmin Role = "super-admin"
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleMember     Role = "member"
)

// AdminRoles may manage their organization.
var AdminRoles = []Role{RoleSuperAdmin, RoleOwner, RoleAdmin}

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
	StatusPending   Status = "pending"
)

// Identity is a user account. OrganizationID is set at creation and never changes.
type Identity struct {
	ID              string     `json:"id"`
	OrganizationID  string     `json:"organizationId"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Email           string     `json:"email"`
	PasswordHash    string     `json:"-"`
	Role            Role       `json:"role"`
	Status          Status     `json:"status"`
	Phone           string     `json:"phone,omitempty"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
	Audit

	// Organization is populated by store lookups that load the owning tenant.
	Organization *Organization `json:"-"`
}

func (i *Identity) TenantID() string {
	return i.OrganizationID
}

// Active reports whether the identity may authenticate.
func (i *Identity) Active() bool {
	return i.Status == StatusActive
}

func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	c.LastLoginAt = cloneTime(i.LastLoginAt)
	c.EmailVerifiedAt = cloneTime(i.EmailVerifiedAt)
	c.DeletedAt = cloneTime(i.DeletedAt)
	c.Organization = i.Organization.Clone()
	return &c
}
