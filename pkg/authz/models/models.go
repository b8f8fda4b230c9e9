// Package models provides shared domain types for the SciAuthZ service.
//
// This package contains all data models used across the service, including
// users, permission records, authorizable projects, access requests, and
// data use agreements. It provides a single source of truth for domain
// types with GORM annotations for database persistence.
package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&User{},
		&UserPermission{},
		&AuthorizableProject{},
		&UserPermissionRequest{},
		&DataUseAgreement{},
		&DataUseAgreementSign{},
	}
}
