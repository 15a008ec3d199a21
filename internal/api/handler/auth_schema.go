package handler

import "time"

type registerRequest struct {
	FirstName        string `json:"firstName"        validate:"required,max=100"`
	LastName         string `json:"lastName"         validate:"required,max=100"`
	Email            string `json:"email"            validate:"required,email,max=255"`
	Password         string `json:"password"         validate:"required"`
	Phone            string `json:"phone,omitempty"  validate:"omitempty,max=20"`
	OrganizationName string `json:"organizationName" validate:"required,max=255"`
	OrganizationSlug string `json:"organizationSlug" validate:"required,max=100,slug"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type userResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Role            string     `json:"role"`
	Status          string     `json:"status"`
	Phone           string     `json:"phone,omitempty"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	EmailVerifiedAt *time.Time `json:"emailVerifiedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	OrganizationID  string     `json:"organizationId"`
}

type organizationResponse struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Slug               string     `json:"slug"`
	Description        string     `json:"description,omitempty"`
	Email              string     `json:"email,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	SubscriptionStatus string     `json:"subscriptionStatus"`
	TrialEndsAt        *time.Time `json:"trialEndsAt,omitempty"`
	SubscriptionEndsAt *time.Time `json:"subscriptionEndsAt,omitempty"`
	IsActive           bool       `json:"isActive"`
	CreatedAt          time.Time  `json:"createdAt"`
}

type authResponse struct {
	User         userResponse         `json:"user"`
	Organization organizationResponse `json:"organization"`
	AccessToken  string               `json:"accessToken"`
	RefreshToken string               `json:"refreshToken"`
	ExpiresIn    int64                `json:"expiresIn"`
}

type errorResponse struct {
	Error string `json:"error"`
}
