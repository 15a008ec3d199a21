package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medistock/tenant-auth/internal/core/domain"
)

func TestHTTPErrorHandler(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"echo error", echo.NewHTTPError(http.StatusBadRequest, "email is required"), http.StatusBadRequest, "email is required"},
		{"route not found", echo.ErrNotFound, http.StatusNotFound, "Not Found"},
		{"weak password", domain.ErrWeakPassword, http.StatusBadRequest, domain.ErrWeakPassword.Error()},
		{"missing tenant", domain.ErrMissingTenantSelector, http.StatusBadRequest, domain.ErrMissingTenantSelector.Error()},
		{"duplicate email", domain.ErrDuplicateEmail, http.StatusConflict, domain.ErrDuplicateEmail.Error()},
		{"wrapped duplicate slug", fmt.Errorf("postgres: insert organization: %w", domain.ErrDuplicateSlug), http.StatusConflict, domain.ErrDuplicateSlug.Error()},
		{"bad credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error()},
		{"bad refresh", domain.ErrInvalidRefreshToken, http.StatusUnauthorized, domain.ErrInvalidRefreshToken.Error()},
		{"tenant mismatch", domain.ErrTenantMismatch, http.StatusForbidden, domain.ErrTenantMismatch.Error()},
		{"unknown tenant", domain.ErrTenantNotFound, http.StatusForbidden, domain.ErrTenantNotFound.Error()},
		{"role denied", domain.ErrForbidden, http.StatusForbidden, domain.ErrForbidden.Error()},
		{"infrastructure", errors.New("dial tcp 10.0.0.5:5432: connection refused"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/auth/me", nil), rec)

			NewHTTPErrorHandler(zerolog.Nop())(tt.err, c)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body.Error != tt.wantMsg {
				t.Fatalf("expected message %q, got %q", tt.wantMsg, body.Error)
			}
		})
	}
}

func TestHTTPErrorHandler_CommittedResponse(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	_ = c.NoContent(http.StatusNoContent)

	NewHTTPErrorHandler(zerolog.Nop())(domain.ErrForbidden, c)

	if rec.Code != http.StatusNoContent || rec.Body.Len() != 0 {
		t.Fatalf("committed response was overwritten: %d %q", rec.Code, rec.Body.String())
	}
}
