package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/session-auth-api/internal/models"
	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
)

func loginAs(t *testing.T, f *authFixture, email string, role models.UserRole, password string) *models.LoginResponse {
	t.Helper()
	resp, err := f.service.Login(context.Background(), models.LoginRequest{Email: email, Password: password, Role: role, IP: "10.0.0.1"})
	require.NoError(t, err)
	return resp
}

func TestLoginIssuesCustomerTokens(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{AccessTokenExpiry: 300 * time.Second})
	f.addUser(t, "u1", "u1@example.com", models.RoleCustomer, "password123", true)

	resp := loginAs(t, f, "U1@example.com ", models.RoleCustomer, "password123")
	assert.Equal(t, int64(300), resp.ExpiresIn)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.NotEqual(t, resp.AccessToken, resp.RefreshToken)

	claims, err := f.access.Decode(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.SubjectID)
	assert.Equal(t, "CUSTOMER", claims.RoleName)

	record, err := f.sessions.FindByUserID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, record.Token)
	assert.Equal(t, resp.RefreshToken, *record.Token)
	require.NotNil(t, record.ClientIP)
	assert.Equal(t, "10.0.0.1", *record.ClientIP)
	assert.Equal(t, f.clock.Add(24*time.Hour), record.ExpiresAt)

	assert.Contains(t, f.users.lastLogins, "u1")
	assert.Equal(t, []string{models.AuditActionLogin}, f.users.actions())
	assert.EqualValues(t, 1, f.tx.calls.Load())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.addUser(t, "u1", "u1@example.com", models.RoleCustomer, "password123", true)
	f.addUser(t, "u2", "idle@example.com", models.RoleCustomer, "password123", false)

	cases := []struct {
		name string
		req  models.LoginRequest
		want *appErrors.Error
	}{
		{"wrong password", models.LoginRequest{Email: "u1@example.com", Password: "nope", Role: models.RoleCustomer}, appErrors.ErrInvalidCredentials},
		{"unknown email", models.LoginRequest{Email: "ghost@example.com", Password: "password123", Role: models.RoleCustomer}, appErrors.ErrInvalidCredentials},
		{"other role", models.LoginRequest{Email: "u1@example.com", Password: "password123", Role: models.RoleOwner}, appErrors.ErrInvalidCredentials},
		{"inactive", models.LoginRequest{Email: "idle@example.com", Password: "password123", Role: models.RoleCustomer}, appErrors.ErrInactiveAccount},
		{"missing email", models.LoginRequest{Password: "password123", Role: models.RoleCustomer}, appErrors.ErrValidation},
		{"unknown role", models.LoginRequest{Email: "u1@example.com", Password: "password123", Role: "GUEST"}, appErrors.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.service.Login(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
	assert.Zero(t, f.sessions.count())
}

func TestSecondLoginSupersedesFirstRefreshToken(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.addUser(t, "u1", "u1@example.com", models.RoleCustomer, "password123", true)
	ctx := context.Background()

	first := loginAs(t, f, "u1@example.com", models.RoleCustomer, "password123")
	second := loginAs(t, f, "u1@example.com", models.RoleCustomer, "password123")
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, 1, f.sessions.count())

	_, err := f.service.Refresh(ctx, models.RefreshTokenRequest{RefreshToken: first.RefreshToken})
	assert.ErrorIs(t, err, appErrors.ErrRefreshTokenNotFound)

	refreshed, err := f.service.Refresh(ctx, models.RefreshTokenRequest{RefreshToken: second.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, refreshed.AccessToken)
	assert.NotEqual(t, second.AccessToken, refreshed.AccessToken)
	assert.Equal(t, int64(300), refreshed.ExpiresIn)

	again, err := f.service.Refresh(ctx, models.RefreshTokenRequest{RefreshToken: second.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, refreshed.AccessToken, again.AccessToken)

	claims, err := f.access.Decode(again.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.SubjectID)
}

func TestConcurrentLoginsLeaveOneLiveRefreshToken(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.addUser(t, "u1", "u1@example.com", models.RoleCustomer, "password123", true)

	const logins = 8
	tokens := make([]string, logins)
	var wg sync.WaitGroup
	for i := 0; i < logins; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := f.service.Login(context.Background(), models.LoginRequest{
				Email:    "u1@example.com",
				Password: "password123",
				Role:     models.RoleCustomer,
			})
			if assert.NoError(t, err) {
				tokens[i] = resp.RefreshToken
			}
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, logins, f.tx.calls.Load())
	assert.Equal(t, 1, f.sessions.count())

	record, err := f.sessions.FindByUserID(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, record.Token)

	live := 0
	for _, rt := range tokens {
		_, err := f.service.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: rt})
		if err == nil {
			live++
			assert.Equal(t, *record.Token, rt)
			continue
		}
		assert.ErrorIs(t, err, appErrors.ErrRefreshTokenNotFound)
	}
	assert.Equal(t, 1, live)
}

func TestLogoutTwiceReportsAlreadyLoggedOut(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.addUser(t, "u1", "u1@example.com", models.RoleCustomer, "password123", true)
	ctx := context.Background()

	session := loginAs(t, f, "u1@example.com", models.RoleCustomer, "password123")
	req := models.LogoutRequest{Principal: models.Principal{UserID: "u1", Role: models.RoleCustomer}, Role: models.RoleCustomer}

	require.NoError(t, f.service.Logout(ctx, req))

	err := f.service.Logout(ctx, req)
	assert.ErrorIs(t, err, appErrors.ErrAlreadyLoggedOut)

	_, err = f.service.Refresh(ctx, models.RefreshTokenRequest{RefreshToken: session.RefreshToken})
	assert.ErrorIs(t, err, appErrors.ErrRefreshTokenNotFound)

	record, err := f.sessions.FindByUserID(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, record.Token)
	assert.False(t, record.ExpiresAt.IsZero())

	// A new login reactivates the same row.
	loginAs(t, f, "u1@example.com", models.RoleCustomer, "password123")
	assert.Equal(t, 1, f.sessions.count())
	require.NoError(t, f.service.Logout(ctx, req))
}

func TestLogoutWithoutSession(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.addUser(t, "u1", "u1@example.com", models.RoleOwner, "password123", true)

	err := f.service.Logout(context.Background(), models.LogoutRequest{
		Principal: models.Principal{UserID: "u1", Role: models.RoleOwner},
		Role:      models.RoleOwner,
	})
	assert.ErrorIs(t, err, appErrors.ErrNoActiveSession)
}

func TestLogoutThroughAnotherRolesRoute(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.addUser(t, "o1", "owner@example.com", models.RoleOwner, "password123", true)
	loginAs(t, f, "owner@example.com", models.RoleOwner, "password123")

	err := f.service.Logout(context.Background(), models.LogoutRequest{
		Principal: models.Principal{UserID: "o1", Role: models.RoleOwner},
		Role:      models.RoleCustomer,
	})
	require.ErrorIs(t, err, appErrors.ErrForbiddenRole)
	assert.Contains(t, err.Error(), "customer logout")

	record, err := f.sessions.FindByUserID(context.Background(), "o1")
	require.NoError(t, err)
	assert.True(t, record.Active())
}

func TestLogoutUnknownUser(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	err := f.service.Logout(context.Background(), models.LogoutRequest{
		Principal: models.Principal{UserID: "gone", Role: models.RoleAdmin},
		Role:      models.RoleAdmin,
	})
	assert.ErrorIs(t, err, appErrors.ErrUserNotFound)
}

func TestRefreshAfterSessionExpiry(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{RefreshTokenExpiry: time.Hour})
	f.addUser(t, "u1", "u1@example.com", models.RoleCustomer, "password123", true)
	session := loginAs(t, f, "u1@example.com", models.RoleCustomer, "password123")

	f.advance(2 * time.Hour)
	_, err := f.service.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: session.RefreshToken})
	assert.ErrorIs(t, err, appErrors.ErrRefreshTokenExpired)
}

func TestRefreshAtSessionExpiryBoundary(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{RefreshTokenExpiry: time.Hour})
	f.addUser(t, "u1", "u1@example.com", models.RoleCustomer, "password123", true)
	session := loginAs(t, f, "u1@example.com", models.RoleCustomer, "password123")

	f.advance(time.Hour - time.Second)
	_, err := f.service.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: session.RefreshToken})
	require.NoError(t, err)

	f.advance(time.Second)
	_, err = f.service.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: session.RefreshToken})
	assert.ErrorIs(t, err, appErrors.ErrRefreshTokenExpired)
}

func TestRefreshForDeletedUser(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.addUser(t, "u1", "u1@example.com", models.RoleCustomer, "password123", true)
	session := loginAs(t, f, "u1@example.com", models.RoleCustomer, "password123")

	delete(f.users.byID, "u1")
	_, err := f.service.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: session.RefreshToken})
	assert.ErrorIs(t, err, appErrors.ErrUserNotFound)
}

func TestRefreshRejectsUnknownAndBlankTokens(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})

	_, err := f.service.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "never-issued"})
	assert.ErrorIs(t, err, appErrors.ErrRefreshTokenNotFound)

	_, err = f.service.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: "   "})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestLoginThrottleAfterRepeatedFailures(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{MaxLoginAttempts: 2, LoginAttemptWindow: 15 * time.Minute})
	attempts := newMemoryAttempts()
	f.service.WithLoginAttempts(attempts)
	f.addUser(t, "u1", "u1@example.com", models.RoleCustomer, "password123", true)
	ctx := context.Background()

	bad := models.LoginRequest{Email: "u1@example.com", Password: "wrong", Role: models.RoleCustomer}
	for i := 0; i < 2; i++ {
		_, err := f.service.Login(ctx, bad)
		require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
	}

	_, err := f.service.Login(ctx, models.LoginRequest{Email: "u1@example.com", Password: "password123", Role: models.RoleCustomer})
	assert.ErrorIs(t, err, appErrors.ErrTooManyLoginAttempts)

	// Other roles for the same email are counted separately.
	count, _ := attempts.Count(ctx, "u1@example.com", models.RoleOwner)
	assert.Zero(t, count)

	attempts.counts = map[string]int64{}
	loginAs(t, f, "u1@example.com", models.RoleCustomer, "password123")
	count, _ = attempts.Count(ctx, "u1@example.com", models.RoleCustomer)
	assert.Zero(t, count)
}

func TestLoginThrottleStoreFailureDoesNotBlockLogin(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{MaxLoginAttempts: 1, LoginAttemptWindow: time.Minute})
	attempts := newMemoryAttempts()
	attempts.err = errors.New("redis down")
	f.service.WithLoginAttempts(attempts)
	f.addUser(t, "u1", "u1@example.com", models.RoleCustomer, "password123", true)

	loginAs(t, f, "u1@example.com", models.RoleCustomer, "password123")
}

func TestAuditFailureDoesNotFailLogin(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.addUser(t, "u1", "u1@example.com", models.RoleCustomer, "password123", true)
	f.users.auditErr = errors.New("audit table locked")

	loginAs(t, f, "u1@example.com", models.RoleCustomer, "password123")
}

func TestValidateToken(t *testing.T) {
	f := newAuthFixture(t, AuthConfig{})
	f.addUser(t, "a1", "admin@example.com", models.RoleAdmin, "password123", true)
	session := loginAs(t, f, "admin@example.com", models.RoleAdmin, "password123")

	principal, err := f.service.ValidateToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.Principal{UserID: "a1", Role: models.RoleAdmin}, *principal)

	_, err = f.service.ValidateToken(session.RefreshToken)
	assert.ErrorIs(t, err, appErrors.ErrTokenIssuer)

	_, err = f.service.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, appErrors.ErrTokenMalformed)

	f.advance(time.Hour)
	_, err = f.service.ValidateToken(session.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrTokenExpired)
}
