package models

import (
	"fmt"
	"strings"
	"time"
)

// Permission represents the access level a user holds on an item.
//
// The service recognizes two levels:
//   - VIEW: the user may see the item's data
//   - MANAGE: the user may additionally create and revoke VIEW grants
//     for other users on the item
//
// The column is an open string so that legacy rows with other values
// survive migration, but all write paths go through these constants.
type Permission string

const (
	// PermissionView allows reading the item's data.
	PermissionView Permission = "VIEW"

	// PermissionManage allows granting and revoking VIEW access for others.
	PermissionManage Permission = "MANAGE"
)

// IsValid returns true if this is a permission level the write paths accept.
func (p Permission) IsValid() bool {
	return p == PermissionView || p == PermissionManage
}

// String returns the string representation of the permission.
func (p Permission) String() string {
	return string(p)
}

// ProfileItemPrefix is the namespace for self-service profile grants.
// A profile item has the form "SciReg.<subdomain>.profile.<owner-email>".
const ProfileItemPrefix = "SciReg"

// ProfileItem builds the item string for a user's own registration profile.
// The owner email is part of the item, so the owner can only ever grant
// access to a resource they hold by construction.
func ProfileItem(subdomain, ownerEmail string) string {
	return fmt.Sprintf("%s.%s.profile.%s", ProfileItemPrefix, subdomain, CanonicalEmail(ownerEmail))
}

// CanonicalEmail lowercases and trims an email for storage and comparison.
// Emails are canonicalized at write time; read paths still compare
// case-insensitively to cover rows written before canonicalization.
func CanonicalEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserPermission is the granting of a permission to a user for an item.
//
// Item is an opaque resource identifier, e.g. a project key ("Proj.A") or
// a derived profile string ("SciReg.n2c2.profile.alice@example.edu").
// The composite unique index makes the get-or-create grant path safe under
// concurrent identical requests: the losing insert hits the constraint and
// is treated as "already granted".
type UserPermission struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserEmail   string    `gorm:"uniqueIndex:idx_user_item_perm;not null;size:255" json:"user_email"`
	Item        string    `gorm:"uniqueIndex:idx_user_item_perm;not null;size:255" json:"item"`
	Permission  string    `gorm:"uniqueIndex:idx_user_item_perm;not null;size:100" json:"permission"`
	DateUpdated time.Time `gorm:"autoCreateTime" json:"date_updated"`
}

// TableName returns the table name for UserPermission.
func (UserPermission) TableName() string {
	return "user_permissions"
}

// OwnedBy reports whether the record belongs to the given identity.
// Comparison is case-insensitive to cover legacy rows.
func (p *UserPermission) OwnedBy(email string) bool {
	return strings.EqualFold(p.UserEmail, email)
}
