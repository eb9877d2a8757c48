package models

import "time"

// SessionRecord is the single refresh-token row a user may hold. A nil Token
// marks the session as logged out; the row itself is kept.
type SessionRecord struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Token     *string   `db:"token" json:"-"`
	ClientIP  *string   `db:"client_ip" json:"client_ip,omitempty"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Active reports whether the session still holds a refresh token.
func (s *SessionRecord) Active() bool {
	return s.Token != nil
}

// Expired reports whether the session has reached its expiry. A session is
// expired at ExpiresAt itself, the same instant its refresh token's exp lapses.
func (s *SessionRecord) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
