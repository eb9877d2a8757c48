package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/session-auth-api/internal/models"
	"github.com/noah-isme/session-auth-api/pkg/database"
)

const sessionColumns = `id, user_id, token, client_ip, expires_at, created_at, updated_at`

// SessionRepository persists the single refresh-token row each user owns.
// Every statement runs on the primary (or the caller's transaction) so a
// freshly rotated or invalidated token is visible to the next lookup.
type SessionRepository struct {
	db  *database.Cluster
	now func() time.Time
}

// NewSessionRepository constructs a session repository.
func NewSessionRepository(db *database.Cluster) *SessionRepository {
	return &SessionRepository{db: db, now: time.Now}
}

// FindByUserID loads the session row for userID, invalidated or not.
func (r *SessionRepository) FindByUserID(ctx context.Context, userID string) (*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM refresh_tokens WHERE user_id = $1 LIMIT 1`
	var record models.SessionRecord
	if err := sqlx.GetContext(ctx, r.db.Writer(ctx), &record, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find session by user: %w", err)
	}
	return &record, nil
}

// FindByToken matches the stored token string literally. Invalidated rows
// hold NULL and never match.
func (r *SessionRepository) FindByToken(ctx context.Context, token string) (*models.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + ` FROM refresh_tokens WHERE token = $1 LIMIT 1`
	var record models.SessionRecord
	if err := sqlx.GetContext(ctx, r.db.Writer(ctx), &record, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find session by token: %w", err)
	}
	return &record, nil
}

// Upsert creates the user's session row or overwrites its token, expiry and
// client address. Concurrent callers resolve to last writer wins.
func (r *SessionRepository) Upsert(ctx context.Context, userID, token string, expiresAt time.Time, clientIP *string) (*models.SessionRecord, error) {
	now := r.now().UTC()
	record := models.SessionRecord{
		ID:        uuid.NewString(),
		UserID:    userID,
		Token:     &token,
		ClientIP:  clientIP,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	query := `INSERT INTO refresh_tokens (` + sessionColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id) DO UPDATE SET
	token = EXCLUDED.token,
	client_ip = EXCLUDED.client_ip,
	expires_at = EXCLUDED.expires_at,
	updated_at = EXCLUDED.updated_at
RETURNING ` + sessionColumns

	var stored models.SessionRecord
	if err := sqlx.GetContext(ctx, r.db.Writer(ctx), &stored, query,
		record.ID, record.UserID, record.Token, record.ClientIP, record.ExpiresAt, record.CreatedAt, record.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("upsert session: %w", err)
	}
	return &stored, nil
}

// Invalidate clears the stored token. Repeating it on a cleared row is a no-op.
func (r *SessionRepository) Invalidate(ctx context.Context, record *models.SessionRecord) error {
	now := r.now().UTC()
	const query = `UPDATE refresh_tokens SET token = NULL, updated_at = $2 WHERE id = $1`
	if _, err := r.db.Writer(ctx).ExecContext(ctx, query, record.ID, now); err != nil {
		return fmt.Errorf("invalidate session: %w", err)
	}
	record.Token = nil
	record.UpdatedAt = now
	return nil
}
