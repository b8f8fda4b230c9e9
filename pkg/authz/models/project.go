package models

import "fmt"

// DefaultPermissionScheme is the scheme new projects get when none is set.
const DefaultPermissionScheme = "PRIVATE"

// AuthorizableProject is the representation of a project that carries the
// definitions for the project's privacy: its permission scheme and whether
// users must sign a data use agreement before access.
type AuthorizableProject struct {
	ID               string `gorm:"primaryKey;size:36" json:"id"`
	Name             string `gorm:"not null;size:255" json:"name"`
	ProjectKey       string `gorm:"uniqueIndex;not null;size:255" json:"project_key"`
	PermissionScheme string `gorm:"default:PRIVATE;size:100" json:"permission_scheme"`
	// No column default: GORM would treat an explicit false as unset and
	// write the default instead. Every create path sets this field.
	DUARequired      bool   `json:"dua_required"`

	// One-to-many relationship with data use agreements
	DUAs []DataUseAgreement `gorm:"foreignKey:ProjectID" json:"duas,omitempty"`
}

// TableName returns the table name for AuthorizableProject.
func (AuthorizableProject) TableName() string {
	return "authorizable_projects"
}

// Validate checks if the project has valid configuration.
func (p *AuthorizableProject) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	if p.ProjectKey == "" {
		return fmt.Errorf("project key is required")
	}
	return nil
}
