package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medistock/tenant-auth/internal/api/metrics"
	"github.com/medistock/tenant-auth/internal/core/domain"
	"github.com/medistock/tenant-auth/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
	log         zerolog.Logger
}

func NewAuthHandler(authService ports.AuthService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, log: log}
}

// Register creates an organization together with its owner account.
//
// @Summary      Register an organization and its owner
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Owner and organization details"
// @Success      201   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.authService.Register(c.Request().Context(), ports.RegisterInput{
		Email:            req.Email,
		Password:         req.Password,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		Phone:            req.Phone,
		OrganizationName: req.OrganizationName,
		OrganizationSlug: req.OrganizationSlug,
	})
	observe("register", err)
	if err != nil {
		return err
	}

	h.log.Info().
		Str("user_id", result.Identity.ID).
		Str("organization_id", result.Organization.ID).
		Msg("organization registered")

	return c.JSON(http.StatusCreated, toAuthResponse(result))
}

// Login exchanges credentials for a token pair.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	observe("login", err)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toAuthResponse(result))
}

// Refresh issues a new token pair from a valid refresh token.
//
// @Summary      Refresh tokens
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      refreshRequest  true  "Refresh token"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.authService.Refresh(c.Request().Context(), req.RefreshToken)
	observe("refresh", err)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toAuthResponse(result))
}

// Me returns the authenticated user's profile.
//
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  userResponse
// @Failure      401  {object}  errorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUserResponse(identity))
}

// Organization returns the tenant selected by the tenant header.
//
// @Summary      Current organization
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-Slug  header    string  true  "Organization slug"
// @Success      200            {object}  organizationResponse
// @Failure      400            {object}  errorResponse
// @Failure      401            {object}  errorResponse
// @Failure      403            {object}  errorResponse
// @Router       /auth/organization [get]
func (h *AuthHandler) Organization(c echo.Context) error {
	org, err := currentOrganization(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrganizationResponse(org))
}

// Logout acknowledges a logout. Tokens are stateless and stay valid until
// they expire; clients are expected to discard them.
//
// @Summary      Logout
// @Tags         auth
// @Security     BearerAuth
// @Success      204
// @Failure      401  {object}  errorResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	identity, err := currentIdentity(c)
	observe("logout", err)
	if err != nil {
		return err
	}
	h.log.Debug().Str("user_id", identity.ID).Msg("logout")
	return c.NoContent(http.StatusNoContent)
}

func observe(operation string, err error) {
	outcome := "success"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	metrics.AuthRequestsTotal.WithLabelValues(operation, outcome).Inc()
}
