package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/onelink-market/internal/types"
)

func echoUserID(w http.ResponseWriter, r *http.Request) {
	id, ok := GetUserIDFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	_, _ = w.Write([]byte(id))
}

func TestAuthenticate(t *testing.T) {
	tokens := newTestTokens(t)
	id := uuid.New()
	token, err := tokens.IssueSession(id, "jane@example.com", types.RoleSupplier)
	require.NoError(t, err)

	h := Authenticate(slog.Default(), tokens, "session")(http.HandlerFunc(echoUserID))

	tests := []struct {
		name     string
		setup    func(r *http.Request)
		wantCode int
	}{
		{"no credentials", func(r *http.Request) {}, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "session", Value: token}) }, http.StatusOK},
		{"malformed header", func(r *http.Request) { r.Header.Set("Authorization", "Token "+token) }, http.StatusUnauthorized},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc.def.ghi") }, http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			tc.setup(req)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)

			assert.Equal(t, tc.wantCode, rr.Code)
			if tc.wantCode == http.StatusOK {
				assert.Equal(t, id.String(), rr.Body.String())
			}
		})
	}
}

func TestIdentifyLetsAnonymousThrough(t *testing.T) {
	tokens := newTestTokens(t)
	h := Identify(slog.Default(), tokens, "session")(http.HandlerFunc(echoUserID))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard/supplier", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/dashboard/supplier", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: mustSession(t, tokens, id)})
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, id.String(), rr.Body.String())
}
