package policy

import (
	"context"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

// ProjectSetup is everything a client needs to onboard a user onto a
// project: the project itself, its agreements, and where the requester
// stands (permissions held, agreements signed).
type ProjectSetup struct {
	Project     *models.AuthorizableProject    `json:"project"`
	Agreements  []*models.DataUseAgreement     `json:"data_use_agreements"`
	Permissions []*models.UserPermission       `json:"user_permissions"`
	Signatures  []*models.DataUseAgreementSign `json:"signed_agreements"`
}

// ListAgreements returns the data use agreements for the given project key.
func (e *Engine) ListAgreements(ctx context.Context, projectKey string) ([]*models.DataUseAgreement, error) {
	return e.store.ListDUAsByProjectKey(ctx, projectKey)
}

// SignAgreement records the requester signing the agreement, snapshotting
// its content at sign time.
func (e *Engine) SignAgreement(ctx context.Context, requester, duaID string) (*models.DataUseAgreementSign, error) {
	if _, _, err := e.store.EnsureUser(ctx, requester); err != nil {
		return nil, err
	}
	return e.store.SignDUA(ctx, duaID, requester)
}

// ListSignatures returns the requester's own signing records.
func (e *Engine) ListSignatures(ctx context.Context, requester string) ([]*models.DataUseAgreementSign, error) {
	return e.store.ListSignaturesForUser(ctx, requester)
}

// GetProjectSetup assembles the onboarding summary for a project, scoped to
// the requester's own permissions and signatures on it.
func (e *Engine) GetProjectSetup(ctx context.Context, requester, projectKey string) (*ProjectSetup, error) {
	project, err := e.store.GetProjectByKey(ctx, projectKey)
	if err != nil {
		return nil, err
	}

	agreements, err := e.store.ListDUAsByProjectKey(ctx, projectKey)
	if err != nil {
		return nil, err
	}

	perms, err := e.store.ListPermissionsForItem(ctx, projectKey, requester)
	if err != nil {
		return nil, err
	}

	allSigns, err := e.store.ListSignaturesForUser(ctx, requester)
	if err != nil {
		return nil, err
	}

	// Keep only signatures on this project's agreements.
	agreementIDs := make(map[string]bool, len(agreements))
	for _, a := range agreements {
		agreementIDs[a.ID] = true
	}
	signs := make([]*models.DataUseAgreementSign, 0, len(allSigns))
	for _, s := range allSigns {
		if agreementIDs[s.DataUseAgreementID] {
			signs = append(signs, s)
		}
	}

	return &ProjectSetup{
		Project:     project,
		Agreements:  agreements,
		Permissions: perms,
		Signatures:  signs,
	}, nil
}
