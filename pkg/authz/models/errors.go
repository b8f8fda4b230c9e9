package models

import "errors"

// Common errors for authorization service operations.
var (
	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
	ErrUserDisabled  = errors.New("user account is disabled")

	// Permission errors
	ErrPermissionNotFound = errors.New("permission record not found")
	ErrNotManager         = errors.New("requester does not hold MANAGE permission on this item")

	// Project errors
	ErrProjectNotFound  = errors.New("project not found")
	ErrDuplicateProject = errors.New("project already exists")

	// Request errors
	ErrRequestNotFound = errors.New("permission request not found")

	// Data use agreement errors
	ErrDUANotFound = errors.New("data use agreement not found")
	ErrDUAInvalid  = errors.New("data use agreement must have a name and exactly one of agreement text or form file")
)
