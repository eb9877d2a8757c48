package service

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/session-auth-api/internal/models"
)

// BcryptPasswords hashes and verifies account passwords with bcrypt.
type BcryptPasswords struct {
	cost int
}

// NewBcryptPasswords returns a hasher using cost, or bcrypt.DefaultCost when
// cost is out of range.
func NewBcryptPasswords(cost int) *BcryptPasswords {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswords{cost: cost}
}

// Hash returns the bcrypt hash for raw.
func (p *BcryptPasswords) Hash(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), p.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether raw matches the user's stored hash.
func (p *BcryptPasswords) Verify(user *models.User, raw string) bool {
	if user == nil || user.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(raw)) == nil
}
