package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/session-auth-api/internal/models"
	"github.com/noah-isme/session-auth-api/internal/repository"
	"github.com/noah-isme/session-auth-api/pkg/storeclient"
	"github.com/noah-isme/session-auth-api/pkg/token"
)

const (
	fixtureSecret = "0123456789abcdef0123456789abcdef"
	fixtureIssuer = "session-auth-api"
)

type memoryUsers struct {
	mu          sync.Mutex
	byID        map[string]*models.User
	auditLogs   []*models.AuditLog
	lastLogins  map[string]time.Time
	findErr     error
	auditErr    error
	createCalls int
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: map[string]*models.User{}, lastLogins: map[string]time.Time{}}
}

func (m *memoryUsers) add(user *models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[user.ID] = user
}

func (m *memoryUsers) FindByEmailAndRole(ctx context.Context, email string, role models.UserRole) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.byID {
		if u.Email == email && u.Role == role {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memoryUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryUsers) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	for _, u := range m.byID {
		if u.Email == user.Email && u.Role == user.Role {
			return repository.ErrDuplicateUser
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now().UTC()
	m.byID[user.ID] = user
	return nil
}

func (m *memoryUsers) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLogins[id] = ts
	return nil
}

func (m *memoryUsers) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.auditErr != nil {
		return m.auditErr
	}
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func (m *memoryUsers) actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.auditLogs))
	for _, l := range m.auditLogs {
		out = append(out, l.Action)
	}
	return out
}

// memorySessions mirrors the refresh_tokens table: one row per user, token
// NULL after logout.
type memorySessions struct {
	mu     sync.Mutex
	byUser map[string]*models.SessionRecord
}

func newMemorySessions() *memorySessions {
	return &memorySessions{byUser: map[string]*models.SessionRecord{}}
}

func (m *memorySessions) FindByUserID(ctx context.Context, userID string) (*models.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byUser[userID]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memorySessions) FindByToken(ctx context.Context, value string) (*models.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.byUser {
		if r.Token != nil && *r.Token == value {
			copied := *r
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memorySessions) Upsert(ctx context.Context, userID, value string, expiresAt time.Time, clientIP *string) (*models.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	record, ok := m.byUser[userID]
	if !ok {
		record = &models.SessionRecord{ID: uuid.NewString(), UserID: userID, CreatedAt: now}
		m.byUser[userID] = record
	}
	record.Token = &value
	record.ExpiresAt = expiresAt
	record.ClientIP = clientIP
	record.UpdatedAt = now
	copied := *record
	return &copied, nil
}

func (m *memorySessions) Invalidate(ctx context.Context, record *models.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if stored, ok := m.byUser[record.UserID]; ok {
		stored.Token = nil
	}
	record.Token = nil
	return nil
}

func (m *memorySessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byUser)
}

type passthroughTx struct {
	calls atomic.Int64
}

func (p *passthroughTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls.Add(1)
	return fn(ctx)
}

type memoryAttempts struct {
	counts map[string]int64
	err    error
}

func newMemoryAttempts() *memoryAttempts {
	return &memoryAttempts{counts: map[string]int64{}}
}

func (m *memoryAttempts) Count(ctx context.Context, email string, role models.UserRole) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.counts[string(role)+email], nil
}

func (m *memoryAttempts) Increment(ctx context.Context, email string, role models.UserRole, window time.Duration) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.counts[string(role)+email]++
	return m.counts[string(role)+email], nil
}

func (m *memoryAttempts) Reset(ctx context.Context, email string, role models.UserRole) error {
	delete(m.counts, string(role)+email)
	return nil
}

type stubStores struct {
	store *storeclient.Store
	err   error
	calls int
}

func (s *stubStores) Create(ctx context.Context, ownerID, name, description string) (*storeclient.Store, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.store != nil {
		return s.store, nil
	}
	return &storeclient.Store{ID: "store-" + ownerID, Name: name}, nil
}

var errStoreDown = errors.New("store service unavailable")

type authFixture struct {
	service   *AuthService
	users     *memoryUsers
	sessions  *memorySessions
	tx        *passthroughTx
	access    *token.Codec
	refresh   *token.Codec
	passwords *BcryptPasswords
	clock     time.Time
}

func (f *authFixture) now() time.Time { return f.clock }

func (f *authFixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *authFixture) addUser(t *testing.T, id, email string, role models.UserRole, password string, active bool) *models.User {
	t.Helper()
	hash, err := f.passwords.Hash(password)
	require.NoError(t, err)
	user := &models.User{ID: id, Email: email, Username: id, PasswordHash: hash, Role: role, Active: active}
	f.users.add(user)
	return user
}

func newAuthFixture(t *testing.T, cfg AuthConfig) *authFixture {
	t.Helper()
	f := &authFixture{
		users:     newMemoryUsers(),
		sessions:  newMemorySessions(),
		tx:        &passthroughTx{},
		passwords: NewBcryptPasswords(bcrypt.MinCost),
		clock:     time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}

	var err error
	f.access, err = token.NewCodec(fixtureSecret, fixtureIssuer, token.WithClock(f.now))
	require.NoError(t, err)
	f.refresh, err = token.NewCodec(fixtureSecret, token.RefreshIssuer(fixtureIssuer), token.WithClock(f.now))
	require.NoError(t, err)

	if cfg.AccessTokenExpiry == 0 {
		cfg.AccessTokenExpiry = 300 * time.Second
	}
	if cfg.RefreshTokenExpiry == 0 {
		cfg.RefreshTokenExpiry = 24 * time.Hour
	}

	policy := NewAuthorizationPolicy(f.users, f.passwords)
	f.service = NewAuthService(f.users, f.sessions, f.tx, f.access, f.refresh, policy, validator.New(), zap.NewNop(), cfg)
	f.service.now = f.now
	return f
}
