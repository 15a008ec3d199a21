// Package password hashes and verifies user credentials with bcrypt.
package password

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used for new hashes.
const DefaultCost = 12

const (
	minLength = 8
	maxLength = 128
	// bcrypt ignores input past this many bytes.
	bcryptMaxInput = 72
)

var (
	hasLower   = regexp.MustCompile(`[a-z]`)
	hasUpper   = regexp.MustCompile(`[A-Z]`)
	hasDigit   = regexp.MustCompile(`\d`)
	hasSymbol  = regexp.MustCompile(`[@$!%*?&]`)
	allowedSet = regexp.MustCompile(`^[A-Za-z\d@$!%*?&]+$`)
)

// Hasher hashes passwords. It holds no mutable state and is safe for
// concurrent use.
type Hasher struct {
	cost  int
	decoy []byte
}

// NewHasher returns a Hasher using cost, or DefaultCost when cost is outside
// bcrypt's accepted range.
func NewHasher(cost int) (*Hasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	decoy, err := bcrypt.GenerateFromPassword([]byte("decoy-password-never-matches"), cost)
	if err != nil {
		return nil, fmt.Errorf("password: build decoy hash: %w", err)
	}
	return &Hasher{cost: cost, decoy: decoy}, nil
}

// Hash returns the bcrypt digest of plaintext.
func (h *Hasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword(prepare(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. Malformed digests never match.
func (h *Hasher) Verify(plaintext, digest string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(digest), prepare(plaintext))
	return err == nil
}

// Burn spends the same amount of work as Verify against a digest that never
// matches. Used when no account exists so the response time stays flat.
func (h *Hasher) Burn(plaintext string) {
	_ = bcrypt.CompareHashAndPassword(h.decoy, prepare(plaintext))
}

// Cost returns the configured bcrypt work factor.
func (h *Hasher) Cost() int {
	return h.cost
}

// ValidateStrength reports whether plaintext satisfies the password policy:
// 8 to 128 characters drawn from letters, digits and @$!%*?&, with at least
// one of each class.
func ValidateStrength(plaintext string) bool {
	if len(plaintext) < minLength || len(plaintext) > maxLength {
		return false
	}
	return allowedSet.MatchString(plaintext) &&
		hasLower.MatchString(plaintext) &&
		hasUpper.MatchString(plaintext) &&
		hasDigit.MatchString(plaintext) &&
		hasSymbol.MatchString(plaintext)
}

// IsHash reports whether s looks like a bcrypt digest.
func IsHash(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}

// prepare folds inputs longer than bcrypt's limit into a fixed-size digest so
// every character of a long password is significant.
func prepare(plaintext string) []byte {
	if len(plaintext) <= bcryptMaxInput {
		return []byte(plaintext)
	}
	sum := sha256.Sum256([]byte(plaintext))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}
