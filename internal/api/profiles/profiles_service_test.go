package profiles

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/onelink-market/internal/types"
)

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

func (m *MockProfileRepo) ListProfiles(ctx context.Context, filter types.UserFilter) ([]types.Profile, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Profile), args.Error(1)
}

func (m *MockProfileRepo) CountProfiles(ctx context.Context, filter types.UserFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *MockProfileRepo) SetVerified(ctx context.Context, userID uuid.UUID, verified bool, notes *string) (*types.Profile, error) {
	args := m.Called(ctx, userID, verified, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileRepo) SetRole(ctx context.Context, userID uuid.UUID, role types.Role) (*types.Profile, error) {
	args := m.Called(ctx, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileRepo) DisplayNameTaken(ctx context.Context, displayName string, exceptUserID uuid.UUID) (bool, error) {
	args := m.Called(ctx, displayName, exceptUserID)
	return args.Bool(0), args.Error(1)
}

func (m *MockProfileRepo) CountUsersByRole(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockProfileRepo) CountVerifiedUsers(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockProfileRepo) CountUsersSince(ctx context.Context, since time.Time) (int, error) {
	args := m.Called(ctx, since)
	return args.Int(0), args.Error(1)
}

func (m *MockProfileRepo) CountProducts(ctx context.Context, activeOnly bool, since *time.Time) (int, error) {
	args := m.Called(ctx, activeOnly, since)
	return args.Int(0), args.Error(1)
}

func (m *MockProfileRepo) CountPendingReviews(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func TestMeIncludesRedirectPath(t *testing.T) {
	repo := new(MockProfileRepo)
	svc := NewProfileService(repo, slog.Default())
	id := uuid.New()
	repo.On("GetProfile", mock.Anything, id).Return(&types.Profile{UserID: id, Role: types.RoleAdmin}, nil).Once()

	me, err := svc.Me(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.RoleAdmin, me.Role)
	assert.Equal(t, "/admin/dashboard", me.RedirectPath)
}

func TestListUsersPaginates(t *testing.T) {
	repo := new(MockProfileRepo)
	svc := NewProfileService(repo, slog.Default())
	filter := types.UserFilter{Page: 2, Limit: 20}
	repo.On("ListProfiles", mock.Anything, filter).Return([]types.Profile{{Email: "a@b.co"}}, nil).Once()
	repo.On("CountProfiles", mock.Anything, filter).Return(21, nil).Once()

	resp, err := svc.ListUsers(context.Background(), filter)
	require.NoError(t, err)
	assert.Len(t, resp.Users, 1)
	assert.Equal(t, types.Pagination{Page: 2, Limit: 20, Total: 21, TotalPages: 2}, resp.Pagination)

	repo2 := new(MockProfileRepo)
	svc2 := NewProfileService(repo2, slog.Default())
	repo2.On("ListProfiles", mock.Anything, filter).Return(nil, errors.New("db down")).Once()
	repo2.On("CountProfiles", mock.Anything, filter).Return(0, nil).Maybe()
	_, err = svc2.ListUsers(context.Background(), filter)
	assert.Error(t, err)
}

func TestSetRoleRejectsSelfChange(t *testing.T) {
	repo := new(MockProfileRepo)
	svc := NewProfileService(repo, slog.Default())
	id := uuid.New()

	_, err := svc.SetRole(context.Background(), id, id, types.RoleCustomer)
	assert.ErrorIs(t, err, types.ErrForbidden)
	repo.AssertNotCalled(t, "SetRole", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetVerifiedPassesTrimmedNotes(t *testing.T) {
	repo := new(MockProfileRepo)
	svc := NewProfileService(repo, slog.Default())
	admin, target := uuid.New(), uuid.New()
	verified := true

	repo.On("SetVerified", mock.Anything, target, true, mock.MatchedBy(func(n *string) bool {
		return n != nil && *n == "docs checked"
	})).Return(&types.Profile{UserID: target, Verified: true}, nil).Once()

	p, err := svc.SetVerified(context.Background(), admin, target, types.SetVerifiedRequest{Verified: &verified, Notes: "  docs checked "})
	require.NoError(t, err)
	assert.True(t, p.Verified)
	repo.AssertExpectations(t)
}

func TestStatsIsolatesFailures(t *testing.T) {
	repo := new(MockProfileRepo)
	svc := NewProfileService(repo, slog.Default())
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	weekAgo := now.AddDate(0, 0, -7)

	repo.On("CountUsersByRole", mock.Anything).Return(map[string]int{"admin": 1, "influencer": 4, "supplier": 2}, nil)
	repo.On("CountVerifiedUsers", mock.Anything).Return(0, errors.New("timeout"))
	repo.On("CountUsersSince", mock.Anything, weekAgo).Return(3, nil)
	repo.On("CountProducts", mock.Anything, false, (*time.Time)(nil)).Return(10, nil)
	repo.On("CountProducts", mock.Anything, true, (*time.Time)(nil)).Return(8, nil)
	repo.On("CountProducts", mock.Anything, false, &weekAgo).Return(2, nil)
	repo.On("CountPendingReviews", mock.Anything).Return(0, errors.New("relation does not exist"))

	stats := svc.Stats(context.Background())

	assert.Equal(t, 7, stats.TotalUsers)
	assert.Equal(t, 0, stats.VerifiedUsers)
	assert.Equal(t, 3, stats.RecentUsers)
	assert.Equal(t, 10, stats.TotalProducts)
	assert.Equal(t, 8, stats.ActiveProducts)
	assert.Equal(t, 2, stats.RecentProducts)
	assert.Equal(t, 0, stats.PendingReviews)
	assert.Equal(t, 4, stats.UsersByRole["influencer"])
}
