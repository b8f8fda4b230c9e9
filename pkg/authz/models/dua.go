package models

import "time"

// DataUseAgreement is the agreement a user must accept before accessing a
// project's data. The agreement is either inline text or a reference to a
// form file; exactly one of the two must be set. The constraint is enforced
// at write time (Validate), not by the database.
type DataUseAgreement struct {
	ID                string `gorm:"primaryKey;size:36" json:"id"`
	Name              string `gorm:"not null;size:255" json:"name"`
	ProjectID         string `gorm:"index;not null;size:36" json:"project_id"`
	AgreementText     string `json:"agreement_text,omitempty"`
	AgreementFormFile string `gorm:"size:255" json:"agreement_form_file,omitempty"`
}

// TableName returns the table name for DataUseAgreement.
func (DataUseAgreement) TableName() string {
	return "data_use_agreements"
}

// Validate enforces the text-XOR-form constraint.
func (d *DataUseAgreement) Validate() error {
	if d.Name == "" {
		return ErrDUAInvalid
	}
	hasText := d.AgreementText != ""
	hasForm := d.AgreementFormFile != ""
	if hasText == hasForm {
		return ErrDUAInvalid
	}
	return nil
}

// SignatureText returns the content to snapshot when a user signs: the
// inline text when present, otherwise the form file reference.
func (d *DataUseAgreement) SignatureText() string {
	if d.AgreementText != "" {
		return d.AgreementText
	}
	return d.AgreementFormFile
}

// DataUseAgreementSign records a user signing a data use agreement.
//
// Rows are append-only and never mutated or deleted: AgreementText is an
// immutable snapshot of exactly what the user agreed to, even if the
// agreement is edited later.
type DataUseAgreementSign struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id"`
	DataUseAgreementID string    `gorm:"index;not null;size:36" json:"data_use_agreement"`
	UserEmail          string    `gorm:"index;not null;size:255" json:"user_email"`
	DateSigned         time.Time `gorm:"autoCreateTime" json:"date_signed"`
	AgreementText      string    `json:"agreement_text"`
}

// TableName returns the table name for DataUseAgreementSign.
func (DataUseAgreementSign) TableName() string {
	return "data_use_agreement_signs"
}
