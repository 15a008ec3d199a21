package domain

import "time"

// Audit carries the bookkeeping fields shared by every persisted entity.
// DeletedAt is a tombstone: rows with a non-nil value are invisible to reads.
type Audit struct {
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"-"`
	Version   int        `json:"-"`
}

// Deleted reports whether the entity has been soft-deleted.
func (a Audit) Deleted() bool {
	return a.DeletedAt != nil
}

// TenantScoped is implemented by entities that belong to exactly one organization.
type TenantScoped interface {
	TenantID() string
}

// BelongsTo reports whether entity is scoped to org.
func BelongsTo(entity TenantScoped, org *Organization) bool {
	return org != nil && entity.TenantID() == org.ID
}
