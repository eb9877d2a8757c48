package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/session-auth-api/internal/models"
	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
	"github.com/noah-isme/session-auth-api/pkg/token"
)

type authUserRepository interface {
	FindByEmailAndRole(ctx context.Context, email string, role models.UserRole) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type sessionStore interface {
	FindByUserID(ctx context.Context, userID string) (*models.SessionRecord, error)
	FindByToken(ctx context.Context, token string) (*models.SessionRecord, error)
	Upsert(ctx context.Context, userID, token string, expiresAt time.Time, clientIP *string) (*models.SessionRecord, error)
	Invalidate(ctx context.Context, record *models.SessionRecord) error
}

type loginAttemptStore interface {
	Count(ctx context.Context, email string, role models.UserRole) (int64, error)
	Increment(ctx context.Context, email string, role models.UserRole, window time.Duration) (int64, error)
	Reset(ctx context.Context, email string, role models.UserRole) error
}

type transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type tokenCodec interface {
	Encode(subjectID, roleName string, ttl time.Duration) (string, error)
	Decode(raw string) (token.AuthorizationClaims, error)
}

type authMetrics interface {
	ObserveAuth(operation string, err error)
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
	MaxLoginAttempts   int
	LoginAttemptWindow time.Duration
}

// AuthService issues, rotates and revokes session credentials. Each user has
// at most one live refresh token; a new login overwrites it.
type AuthService struct {
	users     authUserRepository
	sessions  sessionStore
	tx        transactor
	access    tokenCodec
	refresh   tokenCodec
	policy    *AuthorizationPolicy
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	attempts  loginAttemptStore
	metrics   authMetrics
	now       func() time.Time
}

// NewAuthService constructs an AuthService. access and refresh must share a
// key but carry different issuers.
func NewAuthService(users authUserRepository, sessions sessionStore, tx transactor, access, refresh tokenCodec, policy *AuthorizationPolicy, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		tx:        tx,
		access:    access,
		refresh:   refresh,
		policy:    policy,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       time.Now,
	}
}

// WithLoginAttempts enables the failed-login throttle.
func (s *AuthService) WithLoginAttempts(store loginAttemptStore) *AuthService {
	s.attempts = store
	return s
}

// WithMetrics reports operation outcomes to m.
func (s *AuthService) WithMetrics(m authMetrics) *AuthService {
	s.metrics = m
	return s
}

// Login authenticates against one role and starts a new session, replacing
// any session the user already had.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (_ *models.LoginResponse, err error) {
	defer func() { s.observe(AuthOpLogin, err) }()

	req.Email = normaliseEmail(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	if err := s.checkLoginThrottle(ctx, req.Email, req.Role); err != nil {
		return nil, err
	}

	var (
		user  *models.User
		creds models.TokenCredentials
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		user, err = s.users.FindByEmailAndRole(ctx, req.Email, req.Role)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
		}
		if err := s.policy.EnsureCredentialsValid(user, req.Password); err != nil {
			return err
		}
		if err := s.policy.EnsureActive(user); err != nil {
			return err
		}
		creds, err = s.startSession(ctx, user, req.IP)
		return err
	})
	if err != nil {
		if errors.Is(err, appErrors.ErrInvalidCredentials) {
			s.recordFailedLogin(ctx, req.Email, req.Role)
		}
		return nil, err
	}

	s.resetLoginAttempts(ctx, req.Email, req.Role)
	if err := s.users.UpdateLastLogin(ctx, user.ID, s.now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.String("user_id", user.ID), zap.Error(err))
	}
	recordAudit(ctx, s.users, s.logger, user.ID, models.AuditActionLogin, `{"status":"success"}`, req.IP, req.UserAgent)

	return &models.LoginResponse{
		AccessToken:  creds.PrimaryToken,
		RefreshToken: *creds.SecondaryToken,
		ExpiresIn:    creds.ValiditySeconds,
	}, nil
}

// Logout invalidates the caller's session. The principal must hold the role
// the route is scoped to.
func (s *AuthService) Logout(ctx context.Context, req models.LogoutRequest) (err error) {
	defer func() { s.observe(AuthOpLogout, err) }()

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.FindByID(ctx, req.Principal.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrUserNotFound, "")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
		}
		if err := s.policy.EnsureRole(user, req.Role, req.Role.Label()+" logout"); err != nil {
			return err
		}

		record, err := s.sessions.FindByUserID(ctx, user.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNoActiveSession, "")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
		}
		if !record.Active() {
			return appErrors.Clone(appErrors.ErrAlreadyLoggedOut, "")
		}
		if err := s.sessions.Invalidate(ctx, record); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate session")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("session invalidated", zap.String("user_id", req.Principal.UserID), zap.String("role", string(req.Role)))
	recordAudit(ctx, s.users, s.logger, req.Principal.UserID, models.AuditActionLogout, `{"status":"logout"}`, req.IP, req.UserAgent)
	return nil
}

// Refresh exchanges a stored refresh token for a new access token. The
// refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (_ *models.RefreshTokenResponse, err error) {
	defer func() { s.observe(AuthOpRefresh, err) }()

	req.RefreshToken = strings.TrimSpace(req.RefreshToken)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	var (
		userID string
		creds  models.TokenCredentials
	)
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		record, err := s.sessions.FindByToken(ctx, req.RefreshToken)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrRefreshTokenNotFound, "")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
		}
		if record.Expired(s.now()) {
			return appErrors.Clone(appErrors.ErrRefreshTokenExpired, "")
		}
		if _, err := s.refresh.Decode(req.RefreshToken); err != nil {
			if errors.Is(err, token.ErrExpired) {
				return appErrors.Clone(appErrors.ErrRefreshTokenExpired, "")
			}
			return tokenError(err)
		}

		user, err := s.users.FindByID(ctx, record.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrUserNotFound, "associated user no longer exists")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
		}
		if err := s.policy.EnsureActive(user); err != nil {
			return err
		}

		access, err := s.access.Encode(user.ID, string(user.Role), s.config.AccessTokenExpiry)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
		}
		userID = user.ID
		creds = models.TokenCredentials{PrimaryToken: access, ValiditySeconds: s.accessSeconds()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.users, s.logger, userID, models.AuditActionRefresh, `{"status":"refreshed"}`, req.IP, req.UserAgent)

	return &models.RefreshTokenResponse{
		AccessToken: creds.PrimaryToken,
		ExpiresIn:   creds.ValiditySeconds,
	}, nil
}

// ValidateToken verifies an access token and returns the caller it names.
func (s *AuthService) ValidateToken(raw string) (*models.Principal, error) {
	claims, err := s.access.Decode(raw)
	if err != nil {
		return nil, tokenError(err)
	}
	role := models.UserRole(claims.RoleName)
	if !role.Valid() {
		return nil, appErrors.Clonef(appErrors.ErrUnauthorized, "unknown role %q", claims.RoleName)
	}
	return &models.Principal{UserID: claims.SubjectID, Role: role}, nil
}

// startSession mints both tokens and overwrites the user's session row.
func (s *AuthService) startSession(ctx context.Context, user *models.User, clientIP string) (models.TokenCredentials, error) {
	access, err := s.access.Encode(user.ID, string(user.Role), s.config.AccessTokenExpiry)
	if err != nil {
		return models.TokenCredentials{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	refresh, err := s.refresh.Encode(user.ID, string(user.Role), s.config.RefreshTokenExpiry)
	if err != nil {
		return models.TokenCredentials{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	expiresAt := s.now().UTC().Add(s.config.RefreshTokenExpiry)
	if _, err := s.sessions.Upsert(ctx, user.ID, refresh, expiresAt, optionalString(clientIP)); err != nil {
		return models.TokenCredentials{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}
	s.logger.Info("session rotated", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))

	return models.TokenCredentials{
		PrimaryToken:    access,
		SecondaryToken:  &refresh,
		ValiditySeconds: s.accessSeconds(),
	}, nil
}

func (s *AuthService) accessSeconds() int64 {
	return int64(s.config.AccessTokenExpiry / time.Second)
}

func (s *AuthService) checkLoginThrottle(ctx context.Context, email string, role models.UserRole) error {
	if s.attempts == nil || s.config.MaxLoginAttempts <= 0 {
		return nil
	}
	count, err := s.attempts.Count(ctx, email, role)
	if err != nil {
		s.logger.Warn("failed to read login attempts", zap.Error(err))
		return nil
	}
	if count >= int64(s.config.MaxLoginAttempts) {
		return appErrors.Clonef(appErrors.ErrTooManyLoginAttempts, "too many failed login attempts, retry in %s", s.config.LoginAttemptWindow)
	}
	return nil
}

func (s *AuthService) recordFailedLogin(ctx context.Context, email string, role models.UserRole) {
	if s.attempts == nil || s.config.MaxLoginAttempts <= 0 {
		return
	}
	if _, err := s.attempts.Increment(ctx, email, role, s.config.LoginAttemptWindow); err != nil {
		s.logger.Warn("failed to record login attempt", zap.Error(err))
	}
}

func (s *AuthService) resetLoginAttempts(ctx context.Context, email string, role models.UserRole) {
	if s.attempts == nil || s.config.MaxLoginAttempts <= 0 {
		return
	}
	if err := s.attempts.Reset(ctx, email, role); err != nil {
		s.logger.Warn("failed to reset login attempts", zap.Error(err))
	}
}

func (s *AuthService) observe(operation string, err error) {
	if s.metrics != nil {
		s.metrics.ObserveAuth(operation, err)
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
