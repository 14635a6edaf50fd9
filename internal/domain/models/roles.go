// internal/domain/models/roles.go
package models

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Membership tiers.
const (
	MembershipBasic   = "Basic"
	MembershipPremium = "Premium"
	MembershipVIP     = "VIP"
)

// Membership statuses.
const (
	StatusActive    = "Active"
	StatusInactive  = "Inactive"
	StatusSuspended = "Suspended"
)

// IsValidRole checks if a value is a known role.
func IsValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

// IsValidMembershipType checks if a value is a known membership tier.
func IsValidMembershipType(v string) bool {
	switch v {
	case MembershipBasic, MembershipPremium, MembershipVIP:
		return true
	}
	return false
}

// IsValidStatus checks if a value is a known membership status.
func IsValidStatus(v string) bool {
	switch v {
	case StatusActive, StatusInactive, StatusSuspended:
		return true
	}
	return false
}
