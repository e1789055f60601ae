package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type ProgressStatus string

const (
	ProgressDraft     ProgressStatus = "draft"
	ProgressCompleted ProgressStatus = "completed"
)

// ProgressRecord is one persisted row of onboarding progress, keyed by
// (user_id, step).
type ProgressRecord struct {
	UserID         uuid.UUID       `json:"-"`
	Step           int             `json:"step"`
	CurrentStep    int             `json:"current_step"`
	CompletedSteps []int           `json:"completed_steps"`
	Data           json.RawMessage `json:"data" swaggertype:"object"`
	Role           *Role           `json:"role,omitempty"`
	Status         ProgressStatus  `json:"status"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// StepSnapshot is the per-step view returned inside Progress.
type StepSnapshot struct {
	Step      int             `json:"step" example:"2"`
	Data      json.RawMessage `json:"data" swaggertype:"object"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Progress is the merged view across all of a user's step rows.
type Progress struct {
	Role           Role           `json:"role" example:"influencer"`
	CurrentStep    int            `json:"currentStep" example:"4"`
	CompletedSteps []int          `json:"completedSteps" example:"1,2,3"`
	Status         ProgressStatus `json:"status" example:"draft"`
	Steps          []StepSnapshot `json:"steps"`
}

// SubmitStepRequest is the body of POST /api/onboarding/progress.
type SubmitStepRequest struct {
	UserID         *uuid.UUID      `json:"user_id,omitempty"`
	Role           string          `json:"role" validate:"omitempty,oneof=brand supplier influencer"`
	Step           int             `json:"step" validate:"required,min=1,max=5" example:"1"`
	CurrentStep    int             `json:"current_step" validate:"omitempty,min=1,max=6" example:"2"`
	CompletedSteps []int           `json:"completed_steps" validate:"omitempty,dive,min=1,max=5"`
	Data           json.RawMessage `json:"data" swaggertype:"object"`
}

// WriteResult is returned by every onboarding write. Persisted is false for
// dry runs.
type WriteResult struct {
	OK        bool   `json:"ok"`
	DryRun    bool   `json:"dryRun,omitempty"`
	Persisted bool   `json:"persisted"`
	Message   string `json:"message"`
}

type BrandDetails struct {
	CompanyName                string `json:"companyName" validate:"required,min=2,max=200"`
	CompanyWebsite             string `json:"companyWebsite,omitempty" validate:"omitempty,url"`
	Industry                   string `json:"industry" validate:"required,min=2,max=100"`
	CompanySize                string `json:"companySize" validate:"required,oneof=1-10 11-50 51-200 201-1000 1000+"`
	Description                string `json:"description" validate:"required,min=10,max=5000"`
	BusinessRegistrationNumber string `json:"businessRegistrationNumber,omitempty" validate:"omitempty,max=100"`
	TaxID                      string `json:"taxId,omitempty" validate:"omitempty,max=100"`
}

type BrandDetailsRequest struct {
	BrandDetails BrandDetails `json:"brandDetails" validate:"required"`
}

type PayoutAddress struct {
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
}

// PayoutDetailsRequest carries plaintext banking details. It must never be
// logged or persisted as-is.
type PayoutDetailsRequest struct {
	BankName          string         `json:"bank_name" validate:"required,min=2"`
	AccountHolderName string         `json:"account_holder_name" validate:"required,min=2"`
	AccountNumber     string         `json:"account_number" validate:"required,min=4,max=34"`
	RoutingNumber     string         `json:"routing_number,omitempty" validate:"omitempty,max=34"`
	SwiftCode         string         `json:"swift_code,omitempty" validate:"omitempty,min=8,max=11"`
	TaxID             string         `json:"tax_id,omitempty" validate:"omitempty,max=50"`
	Address           *PayoutAddress `json:"address,omitempty" validate:"omitempty"`
}

// EncryptedPayout is the only form of payout details that reaches storage.
type EncryptedPayout struct {
	UserID            uuid.UUID
	BankName          string
	AccountHolderName string
	AccountNumberEnc  string
	RoutingNumberEnc  *string
	SwiftCodeEnc      *string
	TaxIDEnc          *string
	Address           *PayoutAddress
}

type SubmitOnboardingRequest struct {
	Role string `json:"role" validate:"required,oneof=brand supplier influencer admin"`
}

type SubmitOnboardingResponse struct {
	OK           bool   `json:"ok"`
	DryRun       bool   `json:"dryRun,omitempty"`
	Persisted    bool   `json:"persisted"`
	Role         Role   `json:"role"`
	RedirectPath string `json:"redirectPath" example:"/dashboard/influencer"`
}

type CheckHandleRequest struct {
	DisplayName string `json:"displayName" validate:"required,min=2,max=50"`
}

type CheckHandleResponse struct {
	Available   bool   `json:"available"`
	DisplayName string `json:"displayName"`
}
