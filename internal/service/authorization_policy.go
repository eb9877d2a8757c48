package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/noah-isme/session-auth-api/internal/models"
	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
)

type policyUserDirectory interface {
	FindByEmailAndRole(ctx context.Context, email string, role models.UserRole) (*models.User, error)
}

type passwordVerifier interface {
	Verify(user *models.User, raw string) bool
}

// AuthorizationPolicy holds the account checks shared by login, logout and
// registration.
type AuthorizationPolicy struct {
	users     policyUserDirectory
	passwords passwordVerifier
}

// NewAuthorizationPolicy constructs an AuthorizationPolicy.
func NewAuthorizationPolicy(users policyUserDirectory, passwords passwordVerifier) *AuthorizationPolicy {
	return &AuthorizationPolicy{users: users, passwords: passwords}
}

// EnsureActive rejects deactivated accounts.
func (p *AuthorizationPolicy) EnsureActive(user *models.User) error {
	if !user.Active {
		return appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	return nil
}

// EnsureRole rejects a user whose role differs from expected. resourceLabel
// names the guarded operation in the error message.
func (p *AuthorizationPolicy) EnsureRole(user *models.User, expected models.UserRole, resourceLabel string) error {
	if user.Role != expected {
		return appErrors.Clonef(appErrors.ErrForbiddenRole, "role %s may not access %s", user.Role, resourceLabel)
	}
	return nil
}

// EnsureNotRegistered fails when an account already exists for the exact
// (email, role) pair. The same email under another role is allowed.
func (p *AuthorizationPolicy) EnsureNotRegistered(ctx context.Context, email string, role models.UserRole) error {
	_, err := p.users.FindByEmailAndRole(ctx, email, role)
	switch {
	case err == nil:
		return appErrors.Clonef(appErrors.ErrDuplicateEmail, "email %s is already registered as %s", email, role.Label())
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing account")
	}
}

// EnsureCredentialsValid checks rawPassword against the stored hash.
func (p *AuthorizationPolicy) EnsureCredentialsValid(user *models.User, rawPassword string) error {
	if !p.passwords.Verify(user, rawPassword) {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}
	return nil
}
