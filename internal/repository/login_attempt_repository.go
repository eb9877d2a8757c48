package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/session-auth-api/internal/models"
)

const loginAttemptPrefix = "auth:login_attempts"

// LoginAttemptRepository counts failed logins per (email, role) in Redis.
// With a nil client every call is a no-op and nobody is throttled.
type LoginAttemptRepository struct {
	client *redis.Client
}

// NewLoginAttemptRepository constructs a login attempt repository.
func NewLoginAttemptRepository(client *redis.Client) *LoginAttemptRepository {
	return &LoginAttemptRepository{client: client}
}

// Count returns the failures recorded inside the current window.
func (r *LoginAttemptRepository) Count(ctx context.Context, email string, role models.UserRole) (int64, error) {
	if r.client == nil {
		return 0, nil
	}
	key := loginAttemptKey(email, role)
	count, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get %s: %w", key, err)
	}
	return count, nil
}

// Increment records one failure. The window starts at the first failure.
func (r *LoginAttemptRepository) Increment(ctx context.Context, email string, role models.UserRole, window time.Duration) (int64, error) {
	if r.client == nil {
		return 0, nil
	}
	key := loginAttemptKey(email, role)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return incr.Val(), nil
}

// Reset clears the counter after a successful login.
func (r *LoginAttemptRepository) Reset(ctx context.Context, email string, role models.UserRole) error {
	if r.client == nil {
		return nil
	}
	key := loginAttemptKey(email, role)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *LoginAttemptRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

func loginAttemptKey(email string, role models.UserRole) string {
	return fmt.Sprintf("%s:%s:%s", loginAttemptPrefix, role, strings.ToLower(strings.TrimSpace(email)))
}
