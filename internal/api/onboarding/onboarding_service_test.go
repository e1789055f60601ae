package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/onelink-market/internal/api/freeze"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

// memoryRepo stores rows keyed by step like the onboarding_progress table.
type memoryRepo struct {
	mu       sync.Mutex
	rows     map[int]types.ProgressRecord
	brand    *types.BrandDetails
	brandTax *string
	payout   *types.EncryptedPayout
	audit    []string
	done     bool
}

func newMemoryRepo() *memoryRepo { return &memoryRepo{rows: map[int]types.ProgressRecord{}} }

func (m *memoryRepo) UpsertStep(_ context.Context, rec types.ProgressRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.rows[rec.Step]; ok {
		if rec.Role == nil {
			rec.Role = prev.Role
		}
		rec.Status = prev.Status
		if prev.CurrentStep > rec.CurrentStep {
			rec.CurrentStep = prev.CurrentStep
		}
		rec.CompletedSteps = unionSteps(prev.CompletedSteps, rec.CompletedSteps)
	} else {
		rec.Status = types.ProgressDraft
	}
	m.rows[rec.Step] = rec
	return nil
}

func unionSteps(a, b []int) []int {
	seen := map[int]bool{}
	out := []int{}
	for _, s := range append(append([]int{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Ints(out)
	return out
}

func (m *memoryRepo) ListSteps(_ context.Context, _ uuid.UUID) ([]types.ProgressRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ProgressRecord, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	return out, nil
}

func (m *memoryRepo) CompleteOnboarding(_ context.Context, _ uuid.UUID, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = true
	return nil
}

func (m *memoryRepo) SaveBrandDetails(_ context.Context, _ uuid.UUID, d types.BrandDetails, taxIDEnc *string) error {
	m.brand, m.brandTax = &d, taxIDEnc
	return nil
}

func (m *memoryRepo) SavePayout(_ context.Context, p types.EncryptedPayout, fields []string) error {
	m.payout, m.audit = &p, fields
	return nil
}

type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) GetProfile(ctx context.Context, userID uuid.UUID) (*types.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileStore) SetRole(ctx context.Context, userID uuid.UUID, role types.Role) (*types.Profile, error) {
	args := m.Called(ctx, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Profile), args.Error(1)
}

func (m *MockProfileStore) DisplayNameTaken(ctx context.Context, displayName string, exceptUserID uuid.UUID) (bool, error) {
	args := m.Called(ctx, displayName, exceptUserID)
	return args.Bool(0), args.Error(1)
}

type MockDocumentTracker struct {
	mock.Mock
}

func (m *MockDocumentTracker) UploadedDocTypes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockDocumentTracker) MarkSubmitted(ctx context.Context, userID uuid.UUID, role types.Role, at time.Time) error {
	return m.Called(ctx, userID, role, at).Error(0)
}

type prefixEncryptor struct{}

func (prefixEncryptor) Encrypt(_ context.Context, v string) (string, error) { return "sealed:" + v, nil }
func (prefixEncryptor) Decrypt(_ context.Context, v string) (string, error) {
	return strings.TrimPrefix(v, "sealed:"), nil
}

type fixture struct {
	svc      *OnboardingServiceImpl
	repo     *memoryRepo
	profiles *MockProfileStore
	docs     *MockDocumentTracker
	flags    *freeze.StaticSource
	userID   uuid.UUID
	now      time.Time
}

func newFixture(brandPersist bool) *fixture {
	f := &fixture{
		repo:     newMemoryRepo(),
		profiles: new(MockProfileStore),
		docs:     new(MockDocumentTracker),
		flags:    freeze.NewStaticSource(freeze.Flags{}),
		userID:   uuid.New(),
		now:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewOnboardingService(f.repo, f.profiles, f.docs, prefixEncryptor{}, f.flags, brandPersist, slog.Default())
	f.svc.now = func() time.Time {
		f.now = f.now.Add(time.Second)
		return f.now
	}
	return f
}

func TestInfluencerOutOfOrderSteps(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	f.profiles.On("GetProfile", mock.Anything, f.userID).Return(&types.Profile{UserID: f.userID, Role: types.RoleInfluencer}, nil)

	res, err := f.svc.SubmitStep(ctx, f.userID, types.SubmitStepRequest{
		Role:        "influencer",
		Step:        1,
		CurrentStep: 2,
		Data:        json.RawMessage(`{"phone":"+351912345678"}`),
	})
	require.NoError(t, err)
	assert.True(t, res.Persisted)

	_, err = f.svc.SubmitStep(ctx, f.userID, types.SubmitStepRequest{
		Role:           "influencer",
		Step:           3,
		CurrentStep:    4,
		CompletedSteps: []int{1, 2, 3},
		Data:           json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	p, err := f.svc.GetProgress(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, p.CompletedSteps)
	assert.Equal(t, 4, p.CurrentStep)
	assert.Equal(t, types.RoleInfluencer, p.Role)
	assert.Equal(t, types.ProgressDraft, p.Status)
}

func TestRevisitingEarlierStepKeepsLaterProgress(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	f.profiles.On("GetProfile", mock.Anything, f.userID).Return(&types.Profile{UserID: f.userID, Role: types.RoleInfluencer}, nil)

	_, err := f.svc.SubmitStep(ctx, f.userID, types.SubmitStepRequest{Step: 4, CurrentStep: 5, CompletedSteps: []int{1, 2, 3, 4}})
	require.NoError(t, err)
	_, err = f.svc.SubmitStep(ctx, f.userID, types.SubmitStepRequest{
		Step: 2, CurrentStep: 3, CompletedSteps: []int{1},
		Data: json.RawMessage(`{"socialLinks":{"youtube":"https://youtube.com/@jane"},"bio":"Edited"}`),
	})
	require.NoError(t, err)

	p, err := f.svc.GetProgress(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 5, p.CurrentStep)
	assert.Equal(t, []int{1, 2, 3, 4}, p.CompletedSteps)
}

func TestResubmittingStepNeverLosesProgress(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	f.profiles.On("GetProfile", mock.Anything, f.userID).Return(&types.Profile{UserID: f.userID, Role: types.RoleInfluencer}, nil)

	_, err := f.svc.SubmitStep(ctx, f.userID, types.SubmitStepRequest{
		Role: "influencer", Step: 3, CurrentStep: 4, CompletedSteps: []int{1, 2, 3},
		Data: json.RawMessage(`{"first":true}`),
	})
	require.NoError(t, err)
	_, err = f.svc.SubmitStep(ctx, f.userID, types.SubmitStepRequest{
		Role: "influencer", Step: 3, CurrentStep: 3, CompletedSteps: []int{1},
		Data: json.RawMessage(`{"first":false}`),
	})
	require.NoError(t, err)

	p, err := f.svc.GetProgress(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 4, p.CurrentStep)
	assert.Equal(t, []int{1, 2, 3}, p.CompletedSteps)
	require.Len(t, p.Steps, 1)
	assert.JSONEq(t, `{"first":false}`, string(p.Steps[0].Data))
}

func TestSubmitStepRejectsOtherUser(t *testing.T) {
	f := newFixture(false)
	other := uuid.New()
	_, err := f.svc.SubmitStep(context.Background(), f.userID, types.SubmitStepRequest{UserID: &other, Step: 1})
	assert.ErrorIs(t, err, types.ErrUnauthenticated)
	assert.Empty(t, f.repo.rows)
}

func TestSubmitStepValidatesCompletedStepStrictly(t *testing.T) {
	f := newFixture(false)
	_, err := f.svc.SubmitStep(context.Background(), f.userID, types.SubmitStepRequest{
		Step: 1, CompletedSteps: []int{1}, Data: json.RawMessage(`{"phone":"+351912345678"}`),
	})
	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "displayName")
	assert.Empty(t, f.repo.rows)
}

func TestSubmitStepDryRun(t *testing.T) {
	for _, flags := range []freeze.Flags{{CoreFreeze: true}, {DryRunOnboarding: true}} {
		f := newFixture(false)
		f.flags.Set(flags)

		res, err := f.svc.SubmitStep(context.Background(), f.userID, types.SubmitStepRequest{
			Step: 1, Data: json.RawMessage(`{"name":"Jane"}`),
		})
		require.NoError(t, err)
		assert.Equal(t, &types.WriteResult{OK: true, DryRun: true, Persisted: false, Message: "Step validated (dry run, not persisted)"}, res)
		assert.Empty(t, f.repo.rows)

		// Validation still runs in dry-run mode.
		_, err = f.svc.SubmitStep(context.Background(), f.userID, types.SubmitStepRequest{
			Step: 1, Data: json.RawMessage(`{"displayName":"x"}`),
		})
		assert.ErrorIs(t, err, types.ErrValidation)
	}
}

var brand = types.BrandDetails{
	CompanyName: "Acme Cosmetics",
	Industry:    "Beauty",
	CompanySize: "11-50",
	Description: "Clean skincare for everyone",
	TaxID:       "PT123456789",
}

func TestSaveBrandDetails(t *testing.T) {
	t.Run("flag off", func(t *testing.T) {
		f := newFixture(false)
		_, err := f.svc.SaveBrandDetails(context.Background(), f.userID, brand)
		assert.ErrorIs(t, err, types.ErrPersistenceDisabled)
		assert.Nil(t, f.repo.brand)
	})
	t.Run("invalid", func(t *testing.T) {
		f := newFixture(true)
		_, err := f.svc.SaveBrandDetails(context.Background(), f.userID, types.BrandDetails{CompanyName: "A"})
		assert.ErrorIs(t, err, types.ErrValidation)
	})
	t.Run("frozen answers dry run", func(t *testing.T) {
		f := newFixture(false)
		f.flags.Set(freeze.Flags{CoreFreeze: true})
		res, err := f.svc.SaveBrandDetails(context.Background(), f.userID, brand)
		require.NoError(t, err)
		assert.True(t, res.DryRun)
		assert.Nil(t, f.repo.brand)
	})
	t.Run("persisted with sealed tax id", func(t *testing.T) {
		f := newFixture(true)
		res, err := f.svc.SaveBrandDetails(context.Background(), f.userID, brand)
		require.NoError(t, err)
		assert.True(t, res.Persisted)
		require.NotNil(t, f.repo.brandTax)
		assert.Equal(t, "sealed:PT123456789", *f.repo.brandTax)
	})
}

func TestSavePayoutDetailsSealsFinancialFields(t *testing.T) {
	f := newFixture(false)
	res, err := f.svc.SavePayoutDetails(context.Background(), f.userID, types.PayoutDetailsRequest{
		BankName:          "Millennium",
		AccountHolderName: "Jane Doe",
		AccountNumber:     "PT50000201231234567890154",
		SwiftCode:         "BCOMPTPL",
	})
	require.NoError(t, err)
	assert.True(t, res.Persisted)

	p := f.repo.payout
	require.NotNil(t, p)
	assert.Equal(t, "sealed:PT50000201231234567890154", p.AccountNumberEnc)
	require.NotNil(t, p.SwiftCodeEnc)
	assert.Equal(t, "sealed:BCOMPTPL", *p.SwiftCodeEnc)
	assert.Nil(t, p.RoutingNumberEnc)
	assert.Nil(t, p.TaxIDEnc)
	assert.Equal(t, []string{"account_number", "swift_code"}, f.repo.audit)
}

func TestSubmitOnboarding(t *testing.T) {
	t.Run("admin short-circuits", func(t *testing.T) {
		f := newFixture(false)
		f.profiles.On("GetProfile", mock.Anything, f.userID).Return(&types.Profile{Role: types.RoleAdmin}, nil)
		res, err := f.svc.Submit(context.Background(), f.userID, "")
		require.NoError(t, err)
		assert.Equal(t, "/admin/dashboard", res.RedirectPath)
		assert.True(t, f.repo.done)
		f.docs.AssertNotCalled(t, "UploadedDocTypes", mock.Anything, mock.Anything)
	})

	t.Run("invalid role", func(t *testing.T) {
		f := newFixture(false)
		f.profiles.On("GetProfile", mock.Anything, f.userID).Return(&types.Profile{Role: types.RoleCustomer}, nil)
		_, err := f.svc.Submit(context.Background(), f.userID, "customer")
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("no documents", func(t *testing.T) {
		f := newFixture(false)
		f.profiles.On("GetProfile", mock.Anything, f.userID).Return(&types.Profile{Role: types.RoleCustomer}, nil)
		f.docs.On("UploadedDocTypes", mock.Anything, f.userID).Return(nil, types.ErrNotFound)
		_, err := f.svc.Submit(context.Background(), f.userID, "influencer")
		assert.ErrorIs(t, err, types.ErrValidation)
	})

	t.Run("missing documents listed", func(t *testing.T) {
		f := newFixture(false)
		f.profiles.On("GetProfile", mock.Anything, f.userID).Return(&types.Profile{Role: types.RoleCustomer}, nil)
		f.docs.On("UploadedDocTypes", mock.Anything, f.userID).Return([]string{"business_registration"}, nil)
		_, err := f.svc.Submit(context.Background(), f.userID, "brand")
		var ve *types.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, types.FieldErrors{
			"documents.authorized_rep_id": "is required",
			"documents.bank_account_book": "is required",
		}, ve.Fields)
		f.profiles.AssertNotCalled(t, "SetRole", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("brand becomes supplier", func(t *testing.T) {
		f := newFixture(false)
		f.profiles.On("GetProfile", mock.Anything, f.userID).Return(&types.Profile{Role: types.RoleCustomer}, nil)
		f.docs.On("UploadedDocTypes", mock.Anything, f.userID).
			Return([]string{"business_registration", "authorized_rep_id", "bank_account_book"}, nil)
		f.profiles.On("SetRole", mock.Anything, f.userID, types.RoleSupplier).Return(&types.Profile{Role: types.RoleSupplier}, nil)
		f.docs.On("MarkSubmitted", mock.Anything, f.userID, types.RoleSupplier, mock.Anything).Return(errors.New("no draft request"))

		res, err := f.svc.Submit(context.Background(), f.userID, "brand")
		require.NoError(t, err)
		assert.Equal(t, types.RoleSupplier, res.Role)
		assert.Equal(t, "/dashboard/supplier", res.RedirectPath)
		assert.True(t, res.Persisted)
		assert.True(t, f.repo.done)
		f.docs.AssertCalled(t, "MarkSubmitted", mock.Anything, f.userID, types.RoleSupplier, mock.Anything)
	})

	t.Run("dry run changes nothing", func(t *testing.T) {
		f := newFixture(false)
		f.flags.Set(freeze.Flags{DryRunOnboarding: true})
		f.profiles.On("GetProfile", mock.Anything, f.userID).Return(&types.Profile{Role: types.RoleCustomer}, nil)
		f.docs.On("UploadedDocTypes", mock.Anything, f.userID).Return([]string{"id_document", "selfie_photo"}, nil)

		res, err := f.svc.Submit(context.Background(), f.userID, "influencer")
		require.NoError(t, err)
		assert.True(t, res.DryRun)
		assert.False(t, res.Persisted)
		assert.False(t, f.repo.done)
		f.profiles.AssertNotCalled(t, "SetRole", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestCheckHandle(t *testing.T) {
	f := newFixture(false)
	ctx := context.Background()
	f.profiles.On("DisplayNameTaken", mock.Anything, "janedoe", f.userID).Return(false, nil)
	f.profiles.On("DisplayNameTaken", mock.Anything, "takenname", f.userID).Return(true, nil)

	res, err := f.svc.CheckHandle(ctx, f.userID, " janedoe ")
	require.NoError(t, err)
	assert.True(t, res.Available)

	res, err = f.svc.CheckHandle(ctx, f.userID, "takenname")
	require.NoError(t, err)
	assert.False(t, res.Available)

	res, err = f.svc.CheckHandle(ctx, f.userID, "Support")
	require.NoError(t, err)
	assert.False(t, res.Available)

	_, err = f.svc.CheckHandle(ctx, f.userID, "j")
	assert.ErrorIs(t, err, types.ErrValidation)
}
