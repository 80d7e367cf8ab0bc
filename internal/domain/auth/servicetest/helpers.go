package servicetest

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/storelink-api/internal/domain/auth/service"
	"github.com/FACorreiaa/storelink-api/internal/types"
)

const (
	TestSecret      = "test-secret-with-at-least-32-bytes!!"
	TestSessionName = "storelink_test_session"
)

// MockTokenManager implements TokenManager for tests.
type MockTokenManager struct {
	AccessFunc func(token string) (*service.Claims, error)
}

func (m *MockTokenManager) ValidateAccessToken(tokenString string) (*service.Claims, error) {
	if m.AccessFunc != nil {
		return m.AccessFunc(tokenString)
	}
	return nil, service.ErrInvalidToken
}

// MockProfiles is an in-memory ProfileProvisioner.
type MockProfiles struct {
	mu       sync.Mutex
	Profiles map[uuid.UUID]*types.Profile
	Err      error
}

func NewMockProfiles() *MockProfiles {
	return &MockProfiles{Profiles: make(map[uuid.UUID]*types.Profile)}
}

func (m *MockProfiles) EnsureProfile(_ context.Context, userID uuid.UUID) (*types.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if p, ok := m.Profiles[userID]; ok {
		clone := *p
		return &clone, nil
	}
	now := time.Now()
	p := &types.Profile{ID: userID, SubscriptionPlan: types.PlanFree, CreatedAt: now, UpdatedAt: now}
	m.Profiles[userID] = p
	clone := *p
	return &clone, nil
}

func (m *MockProfiles) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Profiles)
}

// NewTestAuthService wires an AuthService with a real HS256 token manager, an
// in-memory profile provisioner and a cookie session store.
func NewTestAuthService() (*service.AuthService, *service.JWTTokenManager, *MockProfiles) {
	tokens := service.NewTokenManager([]byte(TestSecret), "", "authenticated")
	profiles := NewMockProfiles()
	store := service.NewSessionStore([]byte(TestSecret), 3600, false)
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return service.NewAuthService(tokens, profiles, store, TestSessionName, logger), tokens, profiles
}
