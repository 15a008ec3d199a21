// Package token mints and verifies the HS256 access and refresh tokens handed
// out by the auth service.
package token

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/medistock/tenant-auth/internal/core/domain"
)

const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour

	// fallbackTTL applies when an expiry string cannot be parsed.
	fallbackTTL = 3600 * time.Second
)

var expiryPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// ParseExpiry converts strings such as "15m", "1h" or "7d" into a duration.
// Anything else, including values too large for a time.Duration, yields
// 3600 seconds.
func ParseExpiry(s string) time.Duration {
	m := expiryPattern.FindStringSubmatch(s)
	if m == nil {
		return fallbackTTL
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return fallbackTTL
	}
	unit := map[string]time.Duration{
		"s": time.Second,
		"m": time.Minute,
		"h": time.Hour,
		"d": 24 * time.Hour,
	}[m[2]]
	if n > int64(math.MaxInt64/unit) {
		return fallbackTTL
	}
	return time.Duration(n) * unit
}

// Principal is the identity an access token is issued for.
type Principal struct {
	Subject        string
	Email          string
	OrganizationID string
	Role           string
}

// Claims is the payload of both token kinds. Refresh tokens only carry the
// registered claims.
type Claims struct {
	Email          string `json:"email,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`
	Role           string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Config holds the signing secrets and lifetimes. The two secrets must differ
// so a refresh token can never pass as an access token.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func (c *Config) applyDefaults() {
	if c.AccessTTL <= 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.RefreshTTL <= 0 {
		c.RefreshTTL = DefaultRefreshTTL
	}
}

func (c Config) validate() error {
	if c.AccessSecret == "" || c.RefreshSecret == "" {
		return errors.New("token: access and refresh secrets are required")
	}
	if c.AccessSecret == c.RefreshSecret {
		return errors.New("token: access and refresh secrets must differ")
	}
	return nil
}

// Pair is a freshly minted access/refresh token pair.
type Pair struct {
	AccessToken  string
	RefreshToken string
	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64
}

// Issuer signs and verifies tokens. It is stateless apart from its
// configuration and safe for concurrent use.
type Issuer struct {
	cfg Config
	now func() time.Time
}

type Option func(*Issuer)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(cfg Config, opts ...Option) (*Issuer, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	i := &Issuer{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// AccessTTL returns the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration {
	return i.cfg.AccessTTL
}

// IssueAccessToken signs the principal's claims with the access secret.
func (i *Issuer) IssueAccessToken(p Principal) (string, error) {
	now := i.now()
	claims := Claims{
		Email:          p.Email,
		OrganizationID: p.OrganizationID,
		Role:           p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.AccessTTL)),
		},
	}
	return i.sign(claims, i.cfg.AccessSecret)
}

// IssueRefreshToken signs a subject-only token with the refresh secret.
func (i *Issuer) IssueRefreshToken(subject string) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.RefreshTTL)),
		},
	}
	return i.sign(claims, i.cfg.RefreshSecret)
}

// IssuePair mints an access token and a refresh token for p.
func (i *Issuer) IssuePair(p Principal) (Pair, error) {
	access, err := i.IssueAccessToken(p)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.IssueRefreshToken(p.Subject)
	if err != nil {
		return Pair{}, err
	}
	return Pair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(i.cfg.AccessTTL / time.Second),
	}, nil
}

// Verify checks the signature and expiry of raw against secret. Every failure
// is reported as domain.ErrInvalidToken.
func (i *Issuer) Verify(raw, secret string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

func (i *Issuer) VerifyAccessToken(raw string) (*Claims, error) {
	return i.Verify(raw, i.cfg.AccessSecret)
}

func (i *Issuer) VerifyRefreshToken(raw string) (*Claims, error) {
	return i.Verify(raw, i.cfg.RefreshSecret)
}

func (i *Issuer) sign(claims Claims, secret string) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}
