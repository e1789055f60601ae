package auth

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
	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/onelink-market/config"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) SignUp(ctx context.Context, req types.SignUpRequest) (*types.SessionResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SessionResult), args.Error(1)
}

func (m *MockAuthService) SignIn(ctx context.Context, email, password string) (*types.SessionResult, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SessionResult), args.Error(1)
}

func (m *MockAuthService) SignInWithProvider(ctx context.Context, user goth.User) (*types.SessionResult, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.SessionResult), args.Error(1)
}

func (m *MockAuthService) RequestPasswordReset(ctx context.Context, email string) {
	m.Called(ctx, email)
}

func (m *MockAuthService) ConfirmPasswordReset(ctx context.Context, token, password string) error {
	args := m.Called(ctx, token, password)
	return args.Error(0)
}

func newTestHandler(svc AuthService) *AuthHandler {
	return NewAuthHandler(svc, config.JWTConfig{CookieName: "session"}, time.Hour, slog.Default())
}

func postJSON(t *testing.T, body any) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestSignInHandler(t *testing.T) {
	id := uuid.New()

	t.Run("success sets cookie and redirect path", func(t *testing.T) {
		svc := new(MockAuthService)
		h := newTestHandler(svc)
		svc.On("SignIn", mock.Anything, "jane@example.com", "password123").Return(&types.SessionResult{
			Profile:     types.Profile{UserID: id, Email: "jane@example.com", Role: types.RoleSupplier},
			AccessToken: "tok",
		}, nil).Once()

		rr := httptest.NewRecorder()
		h.SignIn(rr, postJSON(t, map[string]string{"email": "jane@example.com", "password": "password123"}))

		require.Equal(t, http.StatusOK, rr.Code)
		var resp types.AuthResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.OK)
		assert.Equal(t, "/dashboard/supplier", resp.RedirectPath)
		assert.Equal(t, "tok", resp.AccessToken)

		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "session", cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)
		svc.AssertExpectations(t)
	})

	tests := []struct {
		name     string
		body     any
		svcErr   error
		wantCode int
	}{
		{"invalid json", `{"email":`, nil, http.StatusBadRequest},
		{"validation", map[string]string{"email": "nope", "password": "x"}, nil, http.StatusBadRequest},
		{"bad credentials", map[string]string{"email": "jane@example.com", "password": "password123"}, types.ErrInvalidCredentials, http.StatusUnauthorized},
		{"no profile", map[string]string{"email": "jane@example.com", "password": "password123"}, types.ErrNotFound, http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockAuthService)
			h := newTestHandler(svc)
			if tc.svcErr != nil {
				svc.On("SignIn", mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.svcErr).Once()
			}
			var req *http.Request
			if s, ok := tc.body.(string); ok {
				req = httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(s))
			} else {
				req = postJSON(t, tc.body)
			}
			rr := httptest.NewRecorder()
			h.SignIn(rr, req)
			assert.Equal(t, tc.wantCode, rr.Code)
		})
	}
}

func TestSignUpHandler(t *testing.T) {
	body := map[string]string{
		"email": "jane@example.com", "password": "password123", "confirmPassword": "password123",
		"firstName": "Jane", "lastName": "Doe", "role": "influencer",
	}

	t.Run("created", func(t *testing.T) {
		svc := new(MockAuthService)
		h := newTestHandler(svc)
		svc.On("SignUp", mock.Anything, mock.MatchedBy(func(r types.SignUpRequest) bool {
			return r.Email == "jane@example.com" && r.Role == "influencer"
		})).Return(&types.SessionResult{Profile: types.Profile{Role: types.RoleInfluencer}, AccessToken: "tok"}, nil).Once()

		rr := httptest.NewRecorder()
		h.SignUp(rr, postJSON(t, body))
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Contains(t, rr.Body.String(), "/dashboard/influencer")
	})

	t.Run("password mismatch", func(t *testing.T) {
		svc := new(MockAuthService)
		h := newTestHandler(svc)
		bad := map[string]string{}
		for k, v := range body {
			bad[k] = v
		}
		bad["confirmPassword"] = "different1"

		rr := httptest.NewRecorder()
		h.SignUp(rr, postJSON(t, bad))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "confirmPassword")
		svc.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything)
	})

	t.Run("duplicate", func(t *testing.T) {
		svc := new(MockAuthService)
		h := newTestHandler(svc)
		svc.On("SignUp", mock.Anything, mock.Anything).Return(nil, types.ErrConflict).Once()

		rr := httptest.NewRecorder()
		h.SignUp(rr, postJSON(t, body))
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestRequestResetIsGeneric(t *testing.T) {
	svc := new(MockAuthService)
	h := newTestHandler(svc)
	svc.On("RequestPasswordReset", mock.Anything, "anyone@example.com").Return().Once()

	rr := httptest.NewRecorder()
	h.RequestReset(rr, postJSON(t, map[string]string{"email": "anyone@example.com"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "If an account exists")
	svc.AssertExpectations(t)
}

func TestConfirmResetHandler(t *testing.T) {
	svc := new(MockAuthService)
	h := newTestHandler(svc)
	svc.On("ConfirmPasswordReset", mock.Anything, "expired", "password123").Return(types.ErrExpired).Once()

	rr := httptest.NewRecorder()
	h.ConfirmReset(rr, postJSON(t, map[string]string{"token": "expired", "password": "password123"}))
	assert.Equal(t, http.StatusGone, rr.Code)
}

func TestSignOutClearsCookie(t *testing.T) {
	h := newTestHandler(new(MockAuthService))
	rr := httptest.NewRecorder()
	h.SignOut(rr, httptest.NewRequest(http.MethodPost, "/api/auth/sign-out", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Less(t, cookies[0].MaxAge, 0)
}
