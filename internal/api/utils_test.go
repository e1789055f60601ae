package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/onelink-market/internal/types"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("wrap: %w", types.ErrValidation), http.StatusBadRequest},
		{&types.AttemptsError{AttemptsLeft: 1}, http.StatusBadRequest},
		{types.ErrUnauthenticated, http.StatusUnauthorized},
		{types.ErrInvalidCredentials, http.StatusUnauthorized},
		{types.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("profile: %w", types.ErrNotFound), http.StatusNotFound},
		{types.ErrConflict, http.StatusConflict},
		{types.ErrExpired, http.StatusGone},
		{types.ErrFrozen, http.StatusLocked},
		{types.ErrRateLimited, http.StatusTooManyRequests},
		{types.ErrUpstream, http.StatusBadGateway},
		{types.ErrPersistenceDisabled, http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, StatusForError(tc.err), fmt.Sprint(tc.err))
	}
}

func TestValidateReportsJSONFieldNames(t *testing.T) {
	err := Validate(&types.SignInRequest{Email: "not-an-email", Password: "short"})
	require.Error(t, err)

	var ve *types.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "must be a valid email address", ve.Fields["email"])
	assert.Equal(t, "must be at least 8 characters", ve.Fields["password"])

	assert.NoError(t, Validate(&types.SignInRequest{Email: "a@b.co", Password: "longenough"}))
}

func TestValidationErrorResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	ValidationErrorResponse(rr, req, types.NewValidationError("Invalid brand details", types.FieldErrors{"companyName": "is required"}))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Invalid brand details", body["error"])
	assert.Equal(t, map[string]any{"companyName": "is required"}, body["fieldErrors"])
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Email string `json:"email"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"valid", `{"email":"a@b.co"}`, ""},
		{"empty", ``, "body must not be empty"},
		{"unknown field", `{"email":"a@b.co","admin":true}`, `body contains unknown key "admin"`},
		{"two values", `{"email":"a"}{"email":"b"}`, "body must only contain a single JSON value"},
		{"wrong type", `{"email":5}`, `incorrect JSON type for field "email"`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst payload
			err := DecodeJSONBody(rr, req, &dst)
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "a@b.co", dst.Email)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestVerifyAudience(t *testing.T) {
	assert.True(t, VerifyAudience(nil, ""))
	assert.False(t, VerifyAudience(nil, "web"))
	assert.True(t, VerifyAudience([]string{"mobile", "web"}, "web"))
}

func TestServiceErrorResponse(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
		wantExtra  string
	}{
		{"classified", fmt.Errorf("profile not found: %w", types.ErrNotFound), http.StatusNotFound, "Profile not found", ""},
		{"bare sentinel", types.ErrForbidden, http.StatusForbidden, "Forbidden", ""},
		{"attempts", &types.AttemptsError{AttemptsLeft: 3}, http.StatusBadRequest, "Invalid verification code", "attemptsLeft"},
		{"validation", types.NewValidationError("Invalid step data", types.FieldErrors{"phone": "is required"}), http.StatusBadRequest, "Invalid step data", "fieldErrors"},
		{"unclassified", fmt.Errorf("pq: connection reset"), http.StatusInternalServerError, "Something went wrong", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			ServiceErrorResponse(rr, httptest.NewRequest(http.MethodGet, "/", nil), tc.err, "Something went wrong")

			assert.Equal(t, tc.wantStatus, rr.Code)
			var body map[string]any
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.wantError, body["error"])
			if tc.wantExtra != "" {
				assert.Contains(t, body, tc.wantExtra)
			}
		})
	}
}
