package domain

import (
	"regexp"
	"time"
)

type SubscriptionStatus string

const (
	SubscriptionTrial    SubscriptionStatus = "trial"
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionCanceled SubscriptionStatus = "canceled"
)

// TrialPeriod is how long a freshly registered organization stays on trial.
const TrialPeriod = 30 * 24 * time.Hour

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// ValidSlug reports whether s only contains lowercase letters, digits and hyphens.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// Organization is a tenant. Every identity belongs to exactly one organization.
type Organization struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Slug               string             `json:"slug"`
	Description        string             `json:"description,omitempty"`
	Email              string             `json:"email,omitempty"`
	Phone              string             `json:"phone,omitempty"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
	TrialEndsAt        *time.Time         `json:"trialEndsAt,omitempty"`
	SubscriptionEndsAt *time.Time         `json:"subscriptionEndsAt,omitempty"`
	IsActive           bool               `json:"isActive"`
	Audit
}

// Clone returns a deep copy so callers can't mutate shared state.
func (o *Organization) Clone() *Organization {
	if o == nil {
		return nil
	}
	c := *o
	c.TrialEndsAt = cloneTime(o.TrialEndsAt)
	c.SubscriptionEndsAt = cloneTime(o.SubscriptionEndsAt)
	c.DeletedAt = cloneTime(o.DeletedAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
