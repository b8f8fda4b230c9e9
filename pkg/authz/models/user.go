package models

import (
	"fmt"
	"time"
)

// UserRole represents the role of a user in the system.
type UserRole string

const (
	// RoleUser is a regular user with no administrative rights.
	RoleUser UserRole = "user"
	// RoleAdmin is an administrator who can manage projects and agreements.
	RoleAdmin UserRole = "admin"
)

// IsValid checks if the role is a valid UserRole.
func (r UserRole) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User represents an identity known to the authorization service.
//
// Most users are provisioned implicitly: granting someone VIEW access
// creates their account with the identity string as both username and
// email. Only locally-issued accounts (the bootstrap admin, accounts
// created through the CLI) carry a password hash.
type User struct {
	ID           string     `gorm:"primaryKey;size:36" json:"id"`
	Username     string     `gorm:"uniqueIndex;not null;size:255" json:"username"`
	Email        string     `gorm:"index;size:255" json:"email"`
	PasswordHash string     `json:"-"`
	// No column default so that creating a disabled account persists false.
	Enabled      bool       `json:"enabled"`
	Role         string     `gorm:"default:user;size:50" json:"role"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// IsAdmin checks if the user has admin role.
func (u *User) IsAdmin() bool {
	return u.Role == string(RoleAdmin)
}

// Validate checks if the user has valid configuration.
func (u *User) Validate() error {
	if u.Username == "" {
		return fmt.Errorf("username is required")
	}
	if u.Role != "" && !UserRole(u.Role).IsValid() {
		return fmt.Errorf("invalid role %q", u.Role)
	}
	return nil
}

// AdminUsername is the reserved username for the bootstrap administrator.
const AdminUsername = "admin"

// EnvAdminInitialPassword is the environment variable that sets the
// bootstrap admin password instead of generating one.
const EnvAdminInitialPassword = "SCIAUTHZ_ADMIN_INITIAL_PASSWORD"

// DefaultAdminUser builds the bootstrap admin user with the given hash.
func DefaultAdminUser(passwordHash string) *User {
	return &User{
		Username:     AdminUsername,
		Email:        AdminUsername,
		PasswordHash: passwordHash,
		Enabled:      true,
		Role:         string(RoleAdmin),
	}
}
