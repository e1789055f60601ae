package verification

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/onelink-market/internal/api/auth"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

type MockVerificationService struct {
	mock.Mock
}

func (m *MockVerificationService) SendCode(ctx context.Context, userID uuid.UUID, email string) (*types.SendCodeResponse, error) {
	args := m.Called(ctx, userID, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SendCodeResponse), args.Error(1)
}

func (m *MockVerificationService) VerifyCode(ctx context.Context, userID uuid.UUID, email, code string) (*types.VerifyCodeResponse, error) {
	args := m.Called(ctx, userID, email, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.VerifyCodeResponse), args.Error(1)
}

func (m *MockVerificationService) Status(ctx context.Context, userID uuid.UUID) (*types.VerificationStatus, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.VerificationStatus), args.Error(1)
}

func signedIn(r *http.Request, id uuid.UUID) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), id.String(), email))
}

func TestSendVerificationHandler(t *testing.T) {
	id := uuid.New()
	tests := []struct {
		name       string
		body       string
		authed     bool
		svcErr     error
		wantStatus int
	}{
		{name: "anonymous", body: `{"email":"jane@example.com"}`, wantStatus: http.StatusUnauthorized},
		{name: "bad email", body: `{"email":"nope"}`, authed: true, wantStatus: http.StatusBadRequest},
		{name: "sent", body: `{"email":"jane@example.com"}`, authed: true, wantStatus: http.StatusOK},
		{name: "too soon", body: `{"email":"jane@example.com"}`, authed: true, svcErr: types.ErrRateLimited, wantStatus: http.StatusTooManyRequests},
		{name: "mail down", body: `{"email":"jane@example.com"}`, authed: true, svcErr: types.ErrUpstream, wantStatus: http.StatusBadGateway},
		{name: "frozen", body: `{"email":"jane@example.com"}`, authed: true, svcErr: types.ErrPersistenceDisabled, wantStatus: http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockVerificationService)
			if tc.svcErr != nil {
				svc.On("SendCode", mock.Anything, id, email).Return(nil, tc.svcErr)
			} else {
				svc.On("SendCode", mock.Anything, id, email).Return(&types.SendCodeResponse{Message: "Verification code sent", ExpiresAt: time.Now()}, nil)
			}
			h := NewVerificationHandler(svc, slog.Default())

			req := httptest.NewRequest(http.MethodPost, "/api/auth/send-verification", bytes.NewBufferString(tc.body))
			if tc.authed {
				req = signedIn(req, id)
			}
			rr := httptest.NewRecorder()
			h.SendVerification(rr, req)
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}

func TestVerifyEmailHandlerReportsAttemptsLeft(t *testing.T) {
	id := uuid.New()
	svc := new(MockVerificationService)
	svc.On("VerifyCode", mock.Anything, id, email, "111111").Return(nil, &types.AttemptsError{AttemptsLeft: 1})
	svc.On("VerifyCode", mock.Anything, id, email, "222222").Return(nil, types.ErrExpired)
	svc.On("VerifyCode", mock.Anything, id, email, "333333").Return(&types.VerifyCodeResponse{Message: "Email verified successfully", Verified: true}, nil)
	h := NewVerificationHandler(svc, slog.Default())

	post := func(code string) *httptest.ResponseRecorder {
		body := `{"email":"jane@example.com","code":"` + code + `"}`
		rr := httptest.NewRecorder()
		h.VerifyEmail(rr, signedIn(httptest.NewRequest(http.MethodPost, "/api/auth/verify-email", bytes.NewBufferString(body)), id))
		return rr
	}

	rr := post("111111")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["attemptsLeft"])

	assert.Equal(t, http.StatusGone, post("222222").Code)

	rr = post("333333")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"verified":true`)

	// Codes that are not six digits never reach the service.
	assert.Equal(t, http.StatusBadRequest, post("12ab56").Code)
	svc.AssertNumberOfCalls(t, "VerifyCode", 3)
}

func TestVerificationStatusHandler(t *testing.T) {
	id := uuid.New()
	svc := new(MockVerificationService)
	svc.On("Status", mock.Anything, id).Return(&types.VerificationStatus{Email: email, EmailVerified: true}, nil)
	h := NewVerificationHandler(svc, slog.Default())

	rr := httptest.NewRecorder()
	h.VerificationStatus(rr, signedIn(httptest.NewRequest(http.MethodGet, "/api/auth/verification-status", nil), id))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"emailVerified":true`)
}
