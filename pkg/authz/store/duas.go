package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

// CreateDUA creates a data use agreement after validating the
// text-XOR-form constraint.
func (s *GORMStore) CreateDUA(ctx context.Context, dua *models.DataUseAgreement) (string, error) {
	if err := dua.Validate(); err != nil {
		return "", err
	}
	return createWithID(s.db, ctx, dua, func(d *models.DataUseAgreement, id string) { d.ID = id }, dua.ID, models.ErrDUAInvalid)
}

// GetDUA retrieves a data use agreement by ID.
func (s *GORMStore) GetDUA(ctx context.Context, id string) (*models.DataUseAgreement, error) {
	return getByField[models.DataUseAgreement](s.db, ctx, "id", id, models.ErrDUANotFound)
}

// ListDUAsForProject returns the agreements attached to a project.
func (s *GORMStore) ListDUAsForProject(ctx context.Context, projectID string) ([]*models.DataUseAgreement, error) {
	var duas []*models.DataUseAgreement
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Find(&duas).Error; err != nil {
		return nil, err
	}
	return duas, nil
}

// ListDUAsByProjectKey returns the agreements for the project with the given
// key. An unknown key returns ErrProjectNotFound rather than an empty list
// so callers can tell "no agreements" apart from "no such project".
func (s *GORMStore) ListDUAsByProjectKey(ctx context.Context, projectKey string) ([]*models.DataUseAgreement, error) {
	project, err := s.GetProjectByKey(ctx, projectKey)
	if err != nil {
		return nil, err
	}
	return s.ListDUAsForProject(ctx, project.ID)
}

// SignDUA appends a signing record for (agreement, email), snapshotting the
// agreement content at the moment of signing. Signing twice appends a second
// row; the history is append-only.
func (s *GORMStore) SignDUA(ctx context.Context, duaID, email string) (*models.DataUseAgreementSign, error) {
	dua, err := s.GetDUA(ctx, duaID)
	if err != nil {
		return nil, err
	}

	sign := &models.DataUseAgreementSign{
		ID:                 uuid.New().String(),
		DataUseAgreementID: dua.ID,
		UserEmail:          models.CanonicalEmail(email),
		DateSigned:         time.Now(),
		AgreementText:      dua.SignatureText(),
	}
	if err := s.db.WithContext(ctx).Create(sign).Error; err != nil {
		return nil, err
	}
	return sign, nil
}

// ListSignaturesForUser returns every signing record for the given identity,
// oldest first.
func (s *GORMStore) ListSignaturesForUser(ctx context.Context, email string) ([]*models.DataUseAgreementSign, error) {
	var signs []*models.DataUseAgreementSign
	if err := s.db.WithContext(ctx).
		Where("LOWER(user_email) = ?", models.CanonicalEmail(email)).
		Order("date_signed").
		Find(&signs).Error; err != nil {
		return nil, err
	}
	return signs, nil
}

// HasSigned reports whether the identity has at least one signing record for
// the agreement.
func (s *GORMStore) HasSigned(ctx context.Context, duaID, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.DataUseAgreementSign{}).
		Where("data_use_agreement_id = ? AND LOWER(user_email) = ?", duaID, models.CanonicalEmail(email)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
