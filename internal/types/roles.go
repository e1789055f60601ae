package types

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role is the marketplace role stored on a profile.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleSupplier   Role = "supplier"
	RoleInfluencer Role = "influencer"
	RoleCustomer   Role = "customer"

	// RoleBrand is the public-facing name for suppliers. It is accepted on
	// input and never stored.
	RoleBrand Role = "brand"
)

// ParseRole normalises user input, mapping brand to supplier.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleBrand:
		return RoleSupplier, nil
	case RoleAdmin, RoleSupplier, RoleInfluencer, RoleCustomer:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q: %w", s, ErrValidation)
	}
}

// Onboardable reports whether the role is one a user can apply for through
// onboarding and document verification.
func (r Role) Onboardable() bool {
	return r == RoleSupplier || r == RoleBrand || r == RoleInfluencer
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupplier, RoleInfluencer, RoleCustomer:
		return true
	}
	return false
}

// Scan implements the sql.Scanner interface for Role.
func (r *Role) Scan(value interface{}) error {
	if value == nil {
		*r = ""
		return nil
	}
	strVal, ok := value.(string)
	if !ok {
		bytesVal, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan Role: expected string or []byte, got %T", value)
		}
		strVal = string(bytesVal)
	}
	if strVal == string(RoleBrand) {
		*r = RoleSupplier
		return nil
	}
	if !Role(strVal).Valid() {
		return fmt.Errorf("unknown Role value: %s", strVal)
	}
	*r = Role(strVal)
	return nil
}

// Value implements the driver.Valuer interface for Role.
func (r Role) Value() (driver.Value, error) {
	if r == RoleBrand {
		return string(RoleSupplier), nil
	}
	if !r.Valid() {
		return nil, fmt.Errorf("invalid Role value: %s", r)
	}
	return string(r), nil
}

// DashboardPathFor maps any raw role value to its landing page. Unknown and
// empty values land on the site root.
func DashboardPathFor(role string) string {
	switch Role(strings.ToLower(strings.TrimSpace(role))) {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleSupplier, RoleBrand:
		return "/dashboard/supplier"
	case RoleInfluencer:
		return "/dashboard/influencer"
	default:
		return "/"
	}
}
