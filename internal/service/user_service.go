package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/session-auth-api/internal/models"
	"github.com/noah-isme/session-auth-api/internal/repository"
	appErrors "github.com/noah-isme/session-auth-api/pkg/errors"
	"github.com/noah-isme/session-auth-api/pkg/storeclient"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type passwordHasher interface {
	Hash(raw string) (string, error)
}

type storeCreator interface {
	Create(ctx context.Context, ownerID, name, description string) (*storeclient.Store, error)
}

// UserService handles registration and profile lookups.
type UserService struct {
	repo      userRepository
	tx        transactor
	policy    *AuthorizationPolicy
	passwords passwordHasher
	stores    storeCreator
	validator *validator.Validate
	logger    *zap.Logger
	metrics   authMetrics
}

// NewUserService creates an instance of UserService. stores may be nil, in
// which case owners cannot request a store at registration.
func NewUserService(repo userRepository, tx transactor, policy *AuthorizationPolicy, passwords passwordHasher, stores storeCreator, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{
		repo:      repo,
		tx:        tx,
		policy:    policy,
		passwords: passwords,
		stores:    stores,
		validator: validate,
		logger:    logger,
	}
}

// WithMetrics reports registration outcomes to m.
func (s *UserService) WithMetrics(m authMetrics) *UserService {
	s.metrics = m
	return s
}

// Register creates an account under req.Role. The same email may be
// registered once per role. For owners naming a store, the store is created in
// the same transaction and a store service failure rolls the account back.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (_ *models.UserSummary, err error) {
	defer func() {
		if s.metrics != nil {
			s.metrics.ObserveAuth(AuthOpRegister, err)
		}
	}()

	req.Email = normaliseEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.StoreName = strings.TrimSpace(req.StoreName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if req.StoreName != "" && req.Role != models.RoleOwner {
		return nil, appErrors.Clone(appErrors.ErrValidation, "only owners may register a store")
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		Role:         req.Role,
		Active:       true,
	}
	var store *storeclient.Store

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.policy.EnsureNotRegistered(ctx, user.Email, user.Role); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicateUser) {
				return appErrors.Clonef(appErrors.ErrDuplicateEmail, "email %s is already registered as %s", user.Email, user.Role.Label())
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
		}

		if req.StoreName == "" {
			return nil
		}
		if s.stores == nil {
			return appErrors.Clone(appErrors.ErrStoreServiceFailure, "store service is not configured")
		}
		// Runs inside the open transaction so a store failure rolls the user back.
		// A commit failure after this point leaves an orphaned store.
		created, err := s.stores.Create(ctx, user.ID, req.StoreName, req.StoreDescription)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrStoreServiceFailure.Code, appErrors.ErrStoreServiceFailure.Status, "failed to create store")
		}
		store = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.repo, s.logger, user.ID, models.AuditActionRegister, `{"status":"registered"}`, req.IP, req.UserAgent)

	summary := user.Summary()
	if store != nil {
		summary.Store = &models.Store{ID: store.ID, Name: store.Name}
	}
	return &summary, nil
}

// Profile returns the caller's account. Served from the replica when one is
// configured, so a just-written change may lag.
func (s *UserService) Profile(ctx context.Context, principal models.Principal) (*models.UserSummary, error) {
	user, err := s.repo.FindByID(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUserNotFound, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	summary := user.Summary()
	return &summary, nil
}
