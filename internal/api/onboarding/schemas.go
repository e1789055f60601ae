package onboarding

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/FACorreiaa/onelink-market/internal/api"
	"github.com/FACorreiaa/onelink-market/internal/types"
)

const (
	FirstStep = 1
	LastStep  = 5
)

type BasicInfo struct {
	Name              string `json:"name" validate:"required,max=100"`
	DisplayName       string `json:"displayName" validate:"required,min=2,max=50"`
	Country           string `json:"country" validate:"required,max=60"`
	Phone             string `json:"phone" validate:"required,min=6,max=30"`
	PreferredLanguage string `json:"preferredLanguage" validate:"required,max=20"`
	MarketingOptIn    bool   `json:"marketingOptIn"`
}

type SocialLinks struct {
	YouTube   string `json:"youtube,omitempty" validate:"required_without_all=Instagram TikTok,omitempty,url"`
	Instagram string `json:"instagram,omitempty" validate:"omitempty,url"`
	TikTok    string `json:"tiktok,omitempty" validate:"omitempty,url"`
}

type InfluencerProfile struct {
	SocialLinks  SocialLinks `json:"socialLinks"`
	Bio          string      `json:"bio" validate:"required,max=1000"`
	AudienceSize string      `json:"audienceSize,omitempty"`
	NicheTags    []string    `json:"nicheTags,omitempty" validate:"omitempty,max=20,dive,max=40"`
}

type BrandProfile struct {
	CompanyName string `json:"companyName" validate:"required,min=2,max=200"`
	Industry    string `json:"industry" validate:"required,max=100"`
	Website     string `json:"website,omitempty" validate:"omitempty,url"`
}

// ValidateStepData checks data against the schema for (role, step). When
// strict is false, missing required fields are tolerated so partially filled
// drafts can be saved; format errors are always reported.
func ValidateStepData(role types.Role, step int, data json.RawMessage, strict bool) error {
	if step < FirstStep || step > LastStep {
		return types.NewValidationError("Invalid step", types.FieldErrors{"step": "must be between 1 and 5"})
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		trimmed = []byte("{}")
	}
	if trimmed[0] != '{' {
		return types.NewValidationError("Invalid step data", types.FieldErrors{"data": "must be a JSON object"})
	}

	var payload interface{}
	switch {
	case step == 1:
		payload = &BasicInfo{}
	case step == 2 && role == types.RoleInfluencer:
		payload = &InfluencerProfile{}
	case step == 2 && (role == types.RoleSupplier || role == types.RoleBrand):
		payload = &BrandProfile{}
	case step == 2:
		return types.NewValidationError("Invalid step data", types.FieldErrors{"role": "must be brand or influencer for step 2"})
	default:
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return types.NewValidationError("Invalid step data", types.FieldErrors{"data": "must be a JSON object"})
		}
		return nil
	}

	if err := json.Unmarshal(trimmed, payload); err != nil {
		return types.NewValidationError("Invalid step data", types.FieldErrors{"data": "has fields of the wrong type"})
	}
	return api.ValidateWith(payload, "Invalid step data", func(fe validator.FieldError) bool {
		return strict || !strings.HasPrefix(fe.Tag(), "required")
	})
}
