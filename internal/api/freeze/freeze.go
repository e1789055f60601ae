package freeze

import (
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/FACorreiaa/onelink-market/internal/types"
)

const (
	EnvCoreFreeze       = "CORE_FREEZE"
	EnvShopsFreeze      = "SHOPS_FREEZE"
	EnvDryRunOnboarding = "DRY_RUN_ONBOARDING"

	// Client-visible mirrors. Display only, never used for gating.
	EnvPublicCoreFreeze       = "NEXT_PUBLIC_CORE_FREEZE"
	EnvPublicShopsFreeze      = "NEXT_PUBLIC_SHOPS_FREEZE"
	EnvPublicDryRunOnboarding = "NEXT_PUBLIC_DRY_RUN_ONBOARDING"
)

// Flags is a point-in-time snapshot of the operational switches.
type Flags struct {
	CoreFreeze       bool
	ShopsFreeze      bool
	DryRunOnboarding bool
}

// OnboardingDryRun reports whether onboarding writes must be validated but
// not persisted.
func (f Flags) OnboardingDryRun() bool {
	return f.CoreFreeze || f.DryRunOnboarding
}

// Source yields the current flags. Implementations must not cache: every
// call reflects the state at the time of the check.
type Source interface {
	Flags() Flags
	Status() types.FreezeStatus
}

// EnvSource reads the flags from the process environment through viper on
// every call.
type EnvSource struct {
	v *viper.Viper
}

var _ Source = (*EnvSource)(nil)

func NewEnvSource() *EnvSource {
	v := viper.New()
	v.AutomaticEnv()
	return &EnvSource{v: v}
}

func (s *EnvSource) flag(key string) bool {
	return strings.EqualFold(strings.TrimSpace(s.v.GetString(key)), "true")
}

func (s *EnvSource) Flags() Flags {
	return Flags{
		CoreFreeze:       s.flag(EnvCoreFreeze),
		ShopsFreeze:      s.flag(EnvShopsFreeze),
		DryRunOnboarding: s.flag(EnvDryRunOnboarding),
	}
}

func (s *EnvSource) Status() types.FreezeStatus {
	f := s.Flags()
	return types.FreezeStatus{
		Core:             f.CoreFreeze,
		Shops:            f.ShopsFreeze,
		DryRunOnboarding: f.DryRunOnboarding,
		PubCore:          s.flag(EnvPublicCoreFreeze),
		PubShops:         s.flag(EnvPublicShopsFreeze),
		PubDryRun:        s.flag(EnvPublicDryRunOnboarding),
	}
}

// StaticSource holds flags in memory. Safe for concurrent use.
type StaticSource struct {
	mu    sync.RWMutex
	flags Flags
}

var _ Source = (*StaticSource)(nil)

func NewStaticSource(f Flags) *StaticSource {
	return &StaticSource{flags: f}
}

func (s *StaticSource) Set(f Flags) {
	s.mu.Lock()
	s.flags = f
	s.mu.Unlock()
}

func (s *StaticSource) Flags() Flags {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags
}

func (s *StaticSource) Status() types.FreezeStatus {
	f := s.Flags()
	return types.FreezeStatus{
		Core:             f.CoreFreeze,
		Shops:            f.ShopsFreeze,
		DryRunOnboarding: f.DryRunOnboarding,
	}
}
