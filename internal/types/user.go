package types

import (
	"time"

	"github.com/google/uuid"
)

// Identity is the credential record owned by the identity gateway.
type Identity struct {
	ID             uuid.UUID `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	Email          string    `json:"email" example:"jane@example.com"`
	PasswordHash   string    `json:"-"`
	Provider       string    `json:"provider" example:"password"`
	ProviderUserID *string   `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// Profile is the authoritative source of a user's role and verification flags.
type Profile struct {
	UserID            uuid.UUID `json:"id" example:"d290f1ee-6c54-4b01-90e6-d701748f0851"`
	Email             string    `json:"email" example:"jane@example.com"`
	Name              string    `json:"name" example:"Jane Doe"`
	DisplayName       *string   `json:"display_name,omitempty" example:"janedoe"`
	Role              Role      `json:"role" example:"influencer"`
	Verified          bool      `json:"verified"`
	EmailVerified     bool      `json:"email_verified"`
	VerificationNotes *string   `json:"verification_notes,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Page     int
	Limit    int
	Role     *Role
	Verified *bool
	Search   string
}

func (f UserFilter) Offset() int { return (f.Page - 1) * f.Limit }

type Pagination struct {
	Page       int `json:"page" example:"1"`
	Limit      int `json:"limit" example:"20"`
	Total      int `json:"total" example:"42"`
	TotalPages int `json:"totalPages" example:"3"`
}

func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

type UserListResponse struct {
	Users      []Profile  `json:"users"`
	Pagination Pagination `json:"pagination"`
}

type SetVerifiedRequest struct {
	Verified *bool  `json:"verified" validate:"required"`
	Notes    string `json:"notes,omitempty" validate:"max=1000"`
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=admin supplier influencer customer brand"`
}

// PlatformStats is the admin dashboard summary. Counts that fail to load are
// reported as zero.
type PlatformStats struct {
	TotalUsers     int            `json:"totalUsers"`
	VerifiedUsers  int            `json:"verifiedUsers"`
	UsersByRole    map[string]int `json:"usersByRole"`
	TotalProducts  int            `json:"totalProducts"`
	ActiveProducts int            `json:"activeProducts"`
	RecentUsers    int            `json:"recentUsers"`
	RecentProducts int            `json:"recentProducts"`
	PendingReviews int            `json:"pendingReviews"`
}

// MeResponse is returned by GET /api/me.
type MeResponse struct {
	User         Profile `json:"user"`
	Role         Role    `json:"role"`
	RedirectPath string  `json:"redirectPath" example:"/dashboard/influencer"`
}
