package models

import "time"

// UserPermissionRequest represents a user asking for access to a project.
//
// A request starts pending (RequestGranted false, DateRequestGranted nil).
// Approval is a single mutation that sets both fields together, so the
// invariant "DateRequestGranted is non-nil iff RequestGranted" holds for
// every row written by this service.
type UserPermissionRequest struct {
	ID                 string     `gorm:"primaryKey;size:36" json:"id"`
	UserEmail          string     `gorm:"index;not null;size:255" json:"user_email"`
	ProjectID          string     `gorm:"index;not null;size:36" json:"project_id"`
	DateRequested      time.Time  `gorm:"autoCreateTime" json:"date_requested"`
	RequestGranted     bool       `gorm:"default:false" json:"request_granted"`
	DateRequestGranted *time.Time `json:"date_request_granted,omitempty"`

	Project *AuthorizableProject `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
}

// TableName returns the table name for UserPermissionRequest.
func (UserPermissionRequest) TableName() string {
	return "user_permission_requests"
}

// Pending reports whether the request has not been granted yet.
func (r *UserPermissionRequest) Pending() bool {
	return !r.RequestGranted
}
