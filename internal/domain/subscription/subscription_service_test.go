package subscription

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/storelink-api/internal/domain/profiles"
	"github.com/FACorreiaa/storelink-api/internal/types"
)

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

// fakeProfiles is an in-memory profiles.Repository.
type fakeProfiles struct {
	mu   sync.Mutex
	rows map[uuid.UUID]types.Profile
}

func newFakeProfiles(ids ...uuid.UUID) *fakeProfiles {
	f := &fakeProfiles{rows: make(map[uuid.UUID]types.Profile)}
	for _, id := range ids {
		f.rows[id] = types.Profile{ID: id, SubscriptionPlan: types.PlanFree}
	}
	return f
}

func (f *fakeProfiles) GetProfile(_ context.Context, userID uuid.UUID) (*types.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[userID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return &p, nil
}

func (f *fakeProfiles) CreateProfile(_ context.Context, userID uuid.UUID) (*types.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[userID]; !ok {
		f.rows[userID] = types.Profile{ID: userID, SubscriptionPlan: types.PlanFree}
	}
	p := f.rows[userID]
	return &p, nil
}

func (f *fakeProfiles) UpdateSubscription(_ context.Context, userID uuid.UUID, update types.SubscriptionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[userID]
	if !ok {
		return types.ErrNotFound
	}
	p.SubscriptionPlan = update.Plan
	p.SubscriptionExpiresAt = update.ExpiresAt
	f.rows[userID] = p
	return nil
}

func (f *fakeProfiles) MarkOnboarded(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.rows[userID]
	p.Onboarding = true
	f.rows[userID] = p
	return nil
}

type MockProfileRepo struct {
	mock.Mock
}

func (m *MockProfileRepo) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileRepo) CreateProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileRepo) UpdateSubscription(ctx context.Context, userID uuid.UUID, update types.SubscriptionUpdate) error {
	return m.Called(ctx, userID, update).Error(0)
}

func (m *MockProfileRepo) MarkOnboarded(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []uuid.UUID
}

func (r *recordingInvalidator) Invalidate(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, userID)
}

func newTestService(repo profiles.Repository) (*ServiceImpl, *recordingInvalidator) {
	inv := &recordingInvalidator{}
	svc := NewSubscriptionService(repo, inv, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return fixedNow }
	return svc, inv
}

func TestCheckStatus_FailsOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("no identity", func(t *testing.T) {
		repo := new(MockProfileRepo)
		svc, _ := newTestService(repo)
		assert.Equal(t, types.FreeStatus(), svc.CheckStatus(ctx, uuid.Nil))
		repo.AssertNotCalled(t, "GetProfile", mock.Anything, mock.Anything)
	})

	t.Run("no profile row", func(t *testing.T) {
		svc, _ := newTestService(newFakeProfiles())
		assert.Equal(t, types.FreeStatus(), svc.CheckStatus(ctx, uuid.New()))
	})

	t.Run("storage error", func(t *testing.T) {
		repo := new(MockProfileRepo)
		userID := uuid.New()
		repo.On("GetProfile", mock.Anything, userID).Return(nil, errors.New("timeout")).Once()
		svc, _ := newTestService(repo)

		assert.Equal(t, types.FreeStatus(), svc.CheckStatus(ctx, userID))
		repo.AssertExpectations(t)
	})
}

func TestCheckStatus_ActiveWindow(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	tests := []struct {
		name       string
		plan       types.Plan
		expiresAt  *time.Time
		wantActive bool
		wantDays   int
	}{
		{"one minute left", types.PlanPro, ptr(fixedNow.Add(time.Minute)), true, 1},
		{"exactly two days", types.PlanStarter, ptr(fixedNow.Add(48 * time.Hour)), true, 2},
		{"two days and a second", types.PlanStarter, ptr(fixedNow.Add(48*time.Hour + time.Second)), true, 3},
		{"expires now", types.PlanPro, ptr(fixedNow), false, 0},
		{"expired", types.PlanPro, ptr(fixedNow.Add(-time.Hour)), false, 0},
		{"null expiry", types.PlanPro, nil, false, 0},
		{"free ignores expiry", types.PlanFree, ptr(fixedNow.Add(240 * time.Hour)), false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeProfiles()
			repo.rows[userID] = types.Profile{ID: userID, SubscriptionPlan: tt.plan, SubscriptionExpiresAt: tt.expiresAt}
			svc, _ := newTestService(repo)

			status := svc.CheckStatus(ctx, userID)
			assert.Equal(t, tt.plan, status.Plan)
			assert.Equal(t, tt.wantActive, status.IsActive)
			assert.Equal(t, tt.wantDays, status.DaysRemaining)
		})
	}
}

func TestUpgradeThenCheckStatus(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	svc, inv := newTestService(newFakeProfiles(userID))

	_, err := svc.Upgrade(ctx, userID, types.PlanPro, 1)
	require.NoError(t, err)

	status := svc.CheckStatus(ctx, userID)
	assert.Equal(t, types.PlanPro, status.Plan)
	assert.True(t, status.IsActive)
	require.NotNil(t, status.ValidUntil)
	assert.Equal(t, time.Date(2026, 11, 15, 12, 0, 0, 0, time.UTC), *status.ValidUntil)
	assert.Equal(t, 31, status.DaysRemaining)
	assert.Equal(t, []uuid.UUID{userID}, inv.ids)
	assert.Equal(t, types.PlanPro.Limits(), svc.EffectiveLimits(ctx, userID))
}

func TestUpgrade_MultipleMonths(t *testing.T) {
	userID := uuid.New()
	svc, _ := newTestService(newFakeProfiles(userID))

	status, err := svc.Upgrade(context.Background(), userID, types.PlanStarter, 3)
	require.NoError(t, err)
	require.NotNil(t, status.ValidUntil)
	assert.Equal(t, time.Date(2027, 1, 15, 12, 0, 0, 0, time.UTC), *status.ValidUntil)
}

func TestUpgrade_Rejections(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("no identity", func(t *testing.T) {
		repo := new(MockProfileRepo)
		svc, inv := newTestService(repo)
		_, err := svc.Upgrade(ctx, uuid.Nil, types.PlanPro, 1)
		assert.ErrorIs(t, err, types.ErrUnauthenticated)
		assert.Empty(t, inv.ids)
		repo.AssertNotCalled(t, "UpdateSubscription", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown plan", func(t *testing.T) {
		svc, _ := newTestService(new(MockProfileRepo))
		_, err := svc.Upgrade(ctx, userID, types.Plan("enterprise"), 1)
		assert.ErrorIs(t, err, types.ErrBadRequest)
	})

	t.Run("zero months", func(t *testing.T) {
		svc, _ := newTestService(new(MockProfileRepo))
		_, err := svc.Upgrade(ctx, userID, types.PlanPro, 0)
		assert.ErrorIs(t, err, types.ErrBadRequest)
	})

	t.Run("persistence error propagates", func(t *testing.T) {
		repo := new(MockProfileRepo)
		dbErr := errors.New("permission denied for table profiles")
		repo.On("UpdateSubscription", mock.Anything, userID, mock.AnythingOfType("types.SubscriptionUpdate")).Return(dbErr).Once()
		svc, inv := newTestService(repo)

		_, err := svc.Upgrade(ctx, userID, types.PlanPro, 1)
		assert.ErrorIs(t, err, dbErr)
		assert.Contains(t, err.Error(), dbErr.Error())
		assert.Empty(t, inv.ids, "failed upgrade must not invalidate")
		repo.AssertExpectations(t)
	})
}

func TestCancelThenCheckStatus(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	repo := newFakeProfiles(userID)
	svc, inv := newTestService(repo)

	_, err := svc.Upgrade(ctx, userID, types.PlanPro, 1)
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, userID))

	status := svc.CheckStatus(ctx, userID)
	assert.Equal(t, types.PlanFree, status.Plan)
	assert.False(t, status.IsActive)
	assert.Nil(t, status.ValidUntil)
	assert.Len(t, inv.ids, 2)
	assert.Equal(t, types.PlanFree.Limits(), svc.EffectiveLimits(ctx, userID))
}

func TestCancel_Errors(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newFakeProfiles())

	assert.ErrorIs(t, svc.Cancel(ctx, uuid.Nil), types.ErrUnauthenticated)
	assert.ErrorIs(t, svc.Cancel(ctx, uuid.New()), types.ErrNotFound)
}

func TestEffectiveLimits_ExpiredPlanFallsBackToFree(t *testing.T) {
	userID := uuid.New()
	repo := newFakeProfiles()
	repo.rows[userID] = types.Profile{ID: userID, SubscriptionPlan: types.PlanPro, SubscriptionExpiresAt: ptr(fixedNow.Add(-time.Second))}
	svc, _ := newTestService(repo)

	assert.Equal(t, types.PlanFree.Limits(), svc.EffectiveLimits(context.Background(), userID))
}

func ptr[T any](v T) *T { return &v }
