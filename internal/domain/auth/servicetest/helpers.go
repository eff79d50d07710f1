package servicetest

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/bungmap/internal/domain/auth/common"
	"github.com/FACorreiaa/bungmap/internal/domain/auth/repository"
	"github.com/FACorreiaa/bungmap/internal/domain/auth/service"
	"github.com/FACorreiaa/bungmap/internal/types"
)

// AdminEmail is the allow-listed admin used by test services.
const AdminEmail = "admin@bungmap.app"

// MockTokenManager implements TokenManager for tests.
type MockTokenManager struct {
	GenerateFunc func(identity *types.Identity) (*service.AccessToken, error)
	AccessFunc   func(token string) (*types.Identity, error)
}

func (m *MockTokenManager) GenerateAccessToken(identity *types.Identity) (*service.AccessToken, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(identity)
	}
	return &service.AccessToken{Token: "access-" + identity.ID, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (m *MockTokenManager) ValidateAccessToken(token string) (*types.Identity, error) {
	if m.AccessFunc != nil {
		return m.AccessFunc(token)
	}
	return &types.Identity{ID: strings.TrimPrefix(token, "access-")}, nil
}

type oauthKey struct {
	provider string
	id       string
}

// MockAuthRepo is an in-memory AuthRepository.
type MockAuthRepo struct {
	mu     sync.Mutex
	Users  map[string]*repository.User
	OAuth  map[oauthKey]uuid.UUID
	Logins int
}

func NewMockAuthRepo() *MockAuthRepo {
	return &MockAuthRepo{
		Users: make(map[string]*repository.User),
		OAuth: make(map[oauthKey]uuid.UUID),
	}
}

func (m *MockAuthRepo) CreateUser(_ context.Context, email, hashedPassword, displayName string, avatarURL *string) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	if _, exists := m.Users[email]; exists {
		return nil, common.ErrUserAlreadyExists
	}
	user := &repository.User{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: hashedPassword,
		DisplayName:    displayName,
		AvatarURL:      avatarURL,
		IsActive:       true,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	m.Users[email] = user
	return CloneUser(user), nil
}

func (m *MockAuthRepo) GetUserByEmail(_ context.Context, email string) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.Users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return CloneUser(user), nil
}

func (m *MockAuthRepo) GetUserByID(_ context.Context, userID uuid.UUID) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID(userID)
}

func (m *MockAuthRepo) byID(userID uuid.UUID) (*repository.User, error) {
	for _, user := range m.Users {
		if user.ID == userID {
			return CloneUser(user), nil
		}
	}
	return nil, common.ErrUserNotFound
}

func (m *MockAuthRepo) UpdateLastLogin(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.Users {
		if user.ID == userID {
			now := time.Now()
			user.LastLoginAt = &now
			m.Logins++
			return nil
		}
	}
	return common.ErrUserNotFound
}

func (m *MockAuthRepo) CreateOrUpdateOAuthIdentity(_ context.Context, provider, providerUserID string, userID uuid.UUID, _, _ *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OAuth[oauthKey{provider, providerUserID}] = userID
	return nil
}

func (m *MockAuthRepo) GetUserByOAuthIdentity(_ context.Context, provider, providerUserID string) (*repository.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	userID, ok := m.OAuth[oauthKey{provider, providerUserID}]
	if !ok {
		return nil, common.ErrUserNotFound
	}
	return m.byID(userID)
}

// NewTestAuthService bundles the mocks with a configured AuthService.
func NewTestAuthService() (*service.AuthService, *MockAuthRepo, *MockTokenManager) {
	repo := NewMockAuthRepo()
	tokenManager := &MockTokenManager{}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	authService := service.NewAuthService(repo, tokenManager, AdminEmail, logger)
	return authService, repo, tokenManager
}

// CloneUser returns a deep copy of the provided user.
func CloneUser(u *repository.User) *repository.User {
	if u == nil {
		return nil
	}
	clone := *u
	if u.AvatarURL != nil {
		avatar := *u.AvatarURL
		clone.AvatarURL = &avatar
	}
	if u.LastLoginAt != nil {
		last := *u.LastLoginAt
		clone.LastLoginAt = &last
	}
	return &clone
}

// MustHash hashes a password for tests.
func MustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := service.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return hash
}

// AddUser inserts a user into the mock repo.
func AddUser(repo *MockAuthRepo, t *testing.T, email string, active bool, hashedPassword string) *repository.User {
	t.Helper()
	repo.mu.Lock()
	defer repo.mu.Unlock()
	user := &repository.User{
		ID:             uuid.New(),
		Email:          email,
		HashedPassword: hashedPassword,
		DisplayName:    "Test User",
		IsActive:       active,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	repo.Users[email] = user
	return CloneUser(user)
}
