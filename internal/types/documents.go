package types

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	RequestDraft     RequestStatus = "draft"
	RequestSubmitted RequestStatus = "submitted"
	RequestInReview  RequestStatus = "in_review"
	RequestVerified  RequestStatus = "verified"
	RequestRejected  RequestStatus = "rejected"
)

// Reviewable reports whether an admin may decide on a request in this state.
func (s RequestStatus) Reviewable() bool {
	return s == RequestSubmitted || s == RequestInReview
}

type VerificationRequest struct {
	ID              uuid.UUID     `json:"id"`
	UserID          uuid.UUID     `json:"user_id"`
	Role            Role          `json:"role"`
	Status          RequestStatus `json:"status"`
	RejectionReason *string       `json:"rejection_reason,omitempty"`
	SubmittedAt     *time.Time    `json:"submitted_at,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	ReviewedBy      *uuid.UUID    `json:"reviewed_by,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

type VerificationDocument struct {
	ID          uuid.UUID `json:"id"`
	RequestID   uuid.UUID `json:"request_id"`
	DocType     string    `json:"doc_type" example:"bank_account_book"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	StorageKey  string    `json:"-"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type DocumentsResponse struct {
	Request   *VerificationRequest   `json:"request"`
	Documents []VerificationDocument `json:"documents"`
}

type ReviewRequest struct {
	Status          string `json:"status" validate:"required,oneof=verified rejected"`
	RejectionReason string `json:"rejection_reason,omitempty" validate:"required_if=Status rejected,max=2000"`
	Notes           string `json:"notes,omitempty" validate:"max=2000"`
}

// Document types accepted for upload.
var AllowedDocTypes = map[string]bool{
	"government_id":                  true,
	"id_document":                    true,
	"selfie_photo":                   true,
	"authorized_rep_id":              true,
	"bank_book":                      true,
	"bank_account_book":              true,
	"business_registration":          true,
	"business_registration_optional": true,
	"mail_order_sales_report":        true,
}

// RequiredDocuments lists the uploads a role must have before onboarding can
// be finalised.
func RequiredDocuments(role Role) []string {
	switch role {
	case RoleSupplier, RoleBrand:
		return []string{"business_registration", "authorized_rep_id", "bank_account_book"}
	case RoleInfluencer:
		return []string{"id_document", "selfie_photo"}
	}
	return nil
}

// UploadResponse is returned by POST /api/onboarding/docs. Document is nil
// for dry runs.
type UploadResponse struct {
	OK        bool                  `json:"ok"`
	DryRun    bool                  `json:"dryRun,omitempty"`
	Persisted bool                  `json:"persisted"`
	Message   string                `json:"message"`
	DocType   string                `json:"doc_type"`
	Document  *VerificationDocument `json:"document,omitempty"`
}
