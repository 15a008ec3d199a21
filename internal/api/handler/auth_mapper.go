package handler

import (
	"github.com/medistock/tenant-auth/internal/core/domain"
	"github.com/medistock/tenant-auth/internal/core/ports"
)

func toUserResponse(i *domain.Identity) userResponse {
	return userResponse{
		ID:              i.ID,
		Email:           i.Email,
		FirstName:       i.FirstName,
		LastName:        i.LastName,
		Role:            string(i.Role),
		Status:          string(i.Status),
		Phone:           i.Phone,
		LastLoginAt:     i.LastLoginAt,
		EmailVerifiedAt: i.EmailVerifiedAt,
		CreatedAt:       i.CreatedAt,
		UpdatedAt:       i.UpdatedAt,
		OrganizationID:  i.OrganizationID,
	}
}

func toOrganizationResponse(o *domain.Organization) organizationResponse {
	if o == nil {
		return organizationResponse{}
	}
	return organizationResponse{
		ID:                 o.ID,
		Name:               o.Name,
		Slug:               o.Slug,
		Description:        o.Description,
		Email:              o.Email,
		Phone:              o.Phone,
		SubscriptionStatus: string(o.SubscriptionStatus),
		TrialEndsAt:        o.TrialEndsAt,
		SubscriptionEndsAt: o.SubscriptionEndsAt,
		IsActive:           o.IsActive,
		CreatedAt:          o.CreatedAt,
	}
}

func toAuthResponse(r *ports.AuthResult) authResponse {
	return authResponse{
		User:         toUserResponse(r.Identity),
		Organization: toOrganizationResponse(r.Organization),
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		ExpiresIn:    r.ExpiresIn,
	}
}
