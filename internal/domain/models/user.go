// internal/domain/models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is a gym member or back-office administrator.
//
// NOTE:
//   - PasswordHash holds bcrypt output only and is never serialized to clients.
//     Handlers return UserView (see View) instead of User.
//   - IsActive gates login independently of Status, which is a membership attribute.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	NameCI         string             `bson:"name_ci" json:"-"` // folded Name for search
	Email          string             `bson:"email" json:"email"` // trimmed, lowercase; unique
	PasswordHash   string             `bson:"password_hash" json:"-"`
	Role           string             `bson:"role" json:"role"` // admin | user
	MembershipType string             `bson:"membership_type" json:"membershipType"`
	Status         string             `bson:"status" json:"status"`
	IsActive       bool               `bson:"is_active" json:"isActive"`
	LastVisit      time.Time          `bson:"last_visit" json:"lastVisit"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserView is the sanitized representation returned to API clients.
type UserView struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	MembershipType string    `json:"membershipType"`
	Status         string    `json:"status"`
	IsActive       bool      `json:"isActive"`
	JoinDate       time.Time `json:"joinDate"`
	LastVisit      time.Time `json:"lastVisit"`
}

// View strips secret material from the user.
func (u User) View() UserView {
	return UserView{
		ID:             u.ID.Hex(),
		Name:           u.Name,
		Email:          u.Email,
		Role:           u.Role,
		MembershipType: u.MembershipType,
		Status:         u.Status,
		IsActive:       u.IsActive,
		JoinDate:       u.CreatedAt,
		LastVisit:      u.LastVisit,
	}
}
