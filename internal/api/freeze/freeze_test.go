package freeze

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvSourceRereadsOnEveryCall(t *testing.T) {
	t.Setenv(EnvCoreFreeze, "false")
	t.Setenv(EnvShopsFreeze, "")
	t.Setenv(EnvDryRunOnboarding, "")
	src := NewEnvSource()

	assert.False(t, src.Flags().CoreFreeze)

	t.Setenv(EnvCoreFreeze, "true")
	t.Setenv(EnvDryRunOnboarding, "TRUE")
	f := src.Flags()
	assert.True(t, f.CoreFreeze)
	assert.True(t, f.DryRunOnboarding)
	assert.False(t, f.ShopsFreeze)
}

func TestEnvSourceIgnoresPublicMirrorsForGating(t *testing.T) {
	t.Setenv(EnvCoreFreeze, "")
	t.Setenv(EnvPublicCoreFreeze, "true")
	src := NewEnvSource()

	assert.False(t, src.Flags().CoreFreeze)
	st := src.Status()
	assert.False(t, st.Core)
	assert.True(t, st.PubCore)
}

func TestEnvSourceOnlyAcceptsLiteralTrue(t *testing.T) {
	src := NewEnvSource()
	for _, v := range []string{"1", "yes", "on", "t"} {
		t.Setenv(EnvShopsFreeze, v)
		assert.False(t, src.Flags().ShopsFreeze, v)
	}
}

func TestOnboardingDryRun(t *testing.T) {
	assert.False(t, Flags{}.OnboardingDryRun())
	assert.True(t, Flags{CoreFreeze: true}.OnboardingDryRun())
	assert.True(t, Flags{DryRunOnboarding: true}.OnboardingDryRun())
	assert.False(t, Flags{ShopsFreeze: true}.OnboardingDryRun())
}

func TestWriteGates(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	tests := []struct {
		name   string
		flags  Flags
		gate   func(Source, *slog.Logger) func(http.Handler) http.Handler
		method string
		want   int
	}{
		{"core frozen blocks post", Flags{CoreFreeze: true}, CoreWriteGate, http.MethodPost, http.StatusLocked},
		{"core frozen blocks delete", Flags{CoreFreeze: true}, CoreWriteGate, http.MethodDelete, http.StatusLocked},
		{"core frozen allows get", Flags{CoreFreeze: true}, CoreWriteGate, http.MethodGet, http.StatusOK},
		{"core thawed allows put", Flags{}, CoreWriteGate, http.MethodPut, http.StatusOK},
		{"shops freeze does not gate core", Flags{ShopsFreeze: true}, CoreWriteGate, http.MethodPost, http.StatusOK},
		{"shops frozen blocks post", Flags{ShopsFreeze: true}, ShopsWriteGate, http.MethodPost, http.StatusLocked},
		{"shops frozen allows head", Flags{ShopsFreeze: true}, ShopsWriteGate, http.MethodHead, http.StatusOK},
		{"dry run does not gate shops", Flags{DryRunOnboarding: true}, ShopsWriteGate, http.MethodPost, http.StatusOK},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := tc.gate(NewStaticSource(tc.flags), slog.Default())(ok)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tc.method, "/api/admin/users/1/verify", nil))
			assert.Equal(t, tc.want, rr.Code)
		})
	}
}

func TestStaticSourceSet(t *testing.T) {
	src := NewStaticSource(Flags{})
	src.Set(Flags{ShopsFreeze: true})
	assert.True(t, src.Flags().ShopsFreeze)
	assert.True(t, src.Status().Shops)
}
