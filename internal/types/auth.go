package types

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the custom claims carried by the session token. Role is a hint
// for clients only; authorization always re-reads the profile.
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"eml"`
	Role   string `json:"rol,omitempty"`
	jwt.RegisteredClaims
}

type SignUpRequest struct {
	Email           string `json:"email" validate:"required,email" example:"jane@example.com"`
	Password        string `json:"password" validate:"required,min=8" example:"Str0ngP@ss!"`
	ConfirmPassword string `json:"confirmPassword" validate:"required,eqfield=Password"`
	FirstName       string `json:"firstName" validate:"required,min=1,max=100" example:"Jane"`
	LastName        string `json:"lastName" validate:"required,min=1,max=100" example:"Doe"`
	Role            string `json:"role,omitempty" validate:"omitempty,oneof=customer supplier brand influencer" example:"influencer"`
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email" example:"jane@example.com"`
	Password string `json:"password" validate:"required,min=8" example:"Str0ngP@ss!"`
}

type ResetPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// AuthResponse is returned by sign-up and sign-in.
type AuthResponse struct {
	OK           bool    `json:"ok"`
	Message      string  `json:"message,omitempty"`
	User         Profile `json:"user"`
	RedirectPath string  `json:"redirectPath" example:"/dashboard/supplier"`
	AccessToken  string  `json:"accessToken,omitempty"`
}

// Response represents a generic API response for success or error messages.
type Response struct {
	Success bool   `json:"success" example:"true"`
	Message string `json:"message,omitempty" example:"Operation successful"`
	Error   string `json:"error,omitempty" example:"Resource not found"`
}

// ConfirmResetRequest completes a password reset with the emailed token.
type ConfirmResetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

// SessionResult is what the identity gateway hands back after any sign-in.
type SessionResult struct {
	Profile     Profile
	AccessToken string
}
