package types

import (
	"time"

	"github.com/google/uuid"
)

// VerificationCode is the single live code for a (user_id, email) pair.
type VerificationCode struct {
	UserID     uuid.UUID
	Email      string
	Code       string
	ExpiresAt  time.Time
	Attempts   int
	Verified   bool
	VerifiedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type SendCodeRequest struct {
	Email string `json:"email" validate:"required,email" example:"jane@example.com"`
}

type SendCodeResponse struct {
	Message   string    `json:"message" example:"Verification code sent"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required,email" example:"jane@example.com"`
	Code  string `json:"code" validate:"required,len=6,numeric" example:"583921"`
}

type VerifyCodeResponse struct {
	Message  string `json:"message" example:"Email verified successfully"`
	Verified bool   `json:"verified"`
}

type VerificationStatus struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
	Verified      bool   `json:"verified"`
}
