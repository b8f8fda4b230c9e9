package store

import (
	"context"
	"time"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

// CreateRequest records a user asking for access to a project.
func (s *GORMStore) CreateRequest(ctx context.Context, request *models.UserPermissionRequest) (string, error) {
	request.UserEmail = models.CanonicalEmail(request.UserEmail)
	return createWithID(s.db, ctx, request, func(r *models.UserPermissionRequest, id string) { r.ID = id }, request.ID, models.ErrRequestNotFound)
}

// GetRequest retrieves a permission request by ID, with its project loaded.
func (s *GORMStore) GetRequest(ctx context.Context, id string) (*models.UserPermissionRequest, error) {
	return getByField[models.UserPermissionRequest](s.db, ctx, "id", id, models.ErrRequestNotFound, "Project")
}

// ListRequestsForUser returns every request made by the given identity,
// oldest first. Email matching is case-insensitive.
func (s *GORMStore) ListRequestsForUser(ctx context.Context, email string) ([]*models.UserPermissionRequest, error) {
	var requests []*models.UserPermissionRequest
	if err := s.db.WithContext(ctx).
		Preload("Project").
		Where("LOWER(user_email) = ?", models.CanonicalEmail(email)).
		Order("date_requested").
		Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}

// FindPendingRequest looks up an ungranted request for (email, projectID).
// Returns (nil, nil) when there is none.
func (s *GORMStore) FindPendingRequest(ctx context.Context, email, projectID string) (*models.UserPermissionRequest, error) {
	var requests []*models.UserPermissionRequest
	if err := s.db.WithContext(ctx).
		Where("LOWER(user_email) = ? AND project_id = ? AND request_granted = ?",
			models.CanonicalEmail(email), projectID, false).
		Limit(1).
		Find(&requests).Error; err != nil {
		return nil, err
	}
	if len(requests) == 0 {
		return nil, nil
	}
	return requests[0], nil
}

// GrantRequest marks a request as granted, setting both RequestGranted and
// DateRequestGranted in a single update so the approval invariant holds.
// Granting an already granted request refreshes its timestamp, which is
// harmless and keeps the operation idempotent.
func (s *GORMStore) GrantRequest(ctx context.Context, id string, grantedAt time.Time) (*models.UserPermissionRequest, error) {
	result := s.db.WithContext(ctx).
		Model(&models.UserPermissionRequest{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"request_granted":      true,
			"date_request_granted": grantedAt,
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, models.ErrRequestNotFound
	}
	return s.GetRequest(ctx, id)
}
