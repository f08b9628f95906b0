package core

import (
	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is used whenever the configured cost is absent or out of range.
const DefaultBcryptCost = 10

// PasswordHasher wraps bcrypt with a configurable work factor.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher builds a hasher with the given cost. Values outside
// bcrypt's valid range fall back to DefaultBcryptCost so a misconfigured
// work factor never fails registration or login.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether password matches hash. Comparison timing is handled
// by bcrypt itself.
func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
