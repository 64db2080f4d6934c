package models

import "time"

const (
	RoleStudent = "student"
	RoleDriver  = "driver"
	RoleAdmin   = "admin"

	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// Roles lists every role that receives queue broadcasts.
var Roles = []string{RoleStudent, RoleDriver, RoleAdmin}

type User struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Password      string     `json:"-"`
	Role          string     `json:"role"`
	Status        string     `json:"status"`
	IsActive      bool       `json:"isActive"`
	DeactivatedAt *time.Time `json:"deactivatedAt"`
	DeactivatedBy *string    `json:"deactivatedBy"`
	VehicleNumber *string    `json:"vehicleNumber"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// CanParticipate reports whether the account may hold queue or chat state.
func (u *User) CanParticipate() bool {
	return u != nil && u.IsActive && u.Status != UserStatusInactive
}

type UserFilter struct {
	Role   string
	Search string
}

// UserRef is the public projection embedded in ride and chat payloads.
type UserRef struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

func (u *User) Ref() *UserRef {
	if u == nil {
		return nil
	}
	return &UserRef{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
