package models

import "time"

// LoginRequest holds credentials for authenticating against one role.
type LoginRequest struct {
	Email     string   `json:"email" validate:"required,email"`
	Password  string   `json:"password" validate:"required"`
	Role      UserRole `json:"-" validate:"required,oneof=CUSTOMER OWNER ADMIN"`
	IP        string   `json:"-"`
	UserAgent string   `json:"-"`
}

// LoginResponse returns the issued token pair.
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse carries the new access token only; the refresh token
// presented stays valid until it expires or is superseded.
type RefreshTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// RegisterRequest creates an account under a single role. Owners may also
// name the store to bootstrap for them.
type RegisterRequest struct {
	Email            string   `json:"email" validate:"required,email,max=255"`
	Username         string   `json:"username" validate:"required,min=3,max=100"`
	Password         string   `json:"password" validate:"required,min=8,max=72"`
	Role             UserRole `json:"-" validate:"required,oneof=CUSTOMER OWNER ADMIN"`
	StoreName        string   `json:"store_name,omitempty" validate:"omitempty,max=120"`
	StoreDescription string   `json:"store_description,omitempty" validate:"omitempty,max=1000"`
	IP               string   `json:"-"`
	UserAgent        string   `json:"-"`
}

// UserSummary is the account view returned by registration and profile calls.
type UserSummary struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Username  string     `json:"username"`
	Role      UserRole   `json:"role"`
	Active    bool       `json:"active"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Store     *Store     `json:"store,omitempty"`
}

// Store is the owner storefront created through the store service.
type Store struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Principal is the verified caller resolved from an access token.
type Principal struct {
	UserID string
	Role   UserRole
}

// TokenCredentials is the token set handed back to a caller. SecondaryToken
// is nil when no refresh token was minted.
type TokenCredentials struct {
	PrimaryToken    string
	SecondaryToken  *string
	ValiditySeconds int64
}

// LogoutRequest ends the caller's session through a role-scoped route.
type LogoutRequest struct {
	Principal Principal
	Role      UserRole
	IP        string
	UserAgent string
}
