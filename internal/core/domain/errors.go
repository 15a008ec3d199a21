package domain

import "errors"

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrDuplicateSlug      = errors.New("organization slug already taken")
	ErrWeakPassword       = errors.New("password must be 8-128 characters and contain uppercase, lowercase, digit and one of @$!%*?&")
	ErrInvalidSlug        = errors.New("organization slug may only contain lowercase letters, digits and hyphens")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrInactiveAccount      = errors.New("account is not active")
	ErrInactiveOrganization = errors.New("organization is not active")
	ErrInvalidToken         = errors.New("invalid token")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrUnauthenticated      = errors.New("authentication required")

	ErrMissingTenantSelector = errors.New("organization slug header is required")
	ErrTenantMismatch        = errors.New("identity does not belong to this organization")
	ErrForbidden             = errors.New("access forbidden")
	ErrTenantNotFound        = errors.New("organization not found or inactive")

	ErrIdentityNotFound     = errors.New("identity not found")
	ErrOrganizationNotFound = errors.New("organization not found")
)

// ErrorKind classifies errors into the categories exposed to API clients.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindConflict       ErrorKind = "conflict"
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindNotFound       ErrorKind = "not_found"
	KindInternal       ErrorKind = "internal"
)

var kinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrWeakPassword, KindValidation},
	{ErrInvalidSlug, KindValidation},
	{ErrMissingTenantSelector, KindValidation},
	{ErrDuplicateEmail, KindConflict},
	{ErrDuplicateSlug, KindConflict},
	{ErrInvalidCredentials, KindAuthentication},
	{ErrInactiveAccount, KindAuthentication},
	{ErrInactiveOrganization, KindAuthentication},
	{ErrInvalidToken, KindAuthentication},
	{ErrInvalidRefreshToken, KindAuthentication},
	{ErrUnauthenticated, KindAuthentication},
	{ErrTenantMismatch, KindAuthorization},
	{ErrForbidden, KindAuthorization},
	{ErrTenantNotFound, KindNotFound},
	{ErrIdentityNotFound, KindNotFound},
	{ErrOrganizationNotFound, KindNotFound},
}

// KindOf returns the classification of err. Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	kind, _ := Classify(err)
	return kind
}

// Classify returns the kind of err and the sentinel it wraps. The sentinel's
// message is safe to show to clients; for KindInternal it is nil.
func Classify(err error) (ErrorKind, error) {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind, k.err
		}
	}
	return KindInternal, nil
}
