package types

import "time"

type FreezeStatus struct {
	Core             bool `json:"core"`
	Shops            bool `json:"shops"`
	DryRunOnboarding bool `json:"dryRunOnboarding"`
	PubCore          bool `json:"pubCore"`
	PubShops         bool `json:"pubShops"`
	PubDryRun        bool `json:"pubDryRun"`
}

type HealthResponse struct {
	OK     bool         `json:"ok"`
	Time   time.Time    `json:"time"`
	Env    string       `json:"env" example:"production"`
	Freeze FreezeStatus `json:"freeze"`
}
