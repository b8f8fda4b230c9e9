package policy

import (
	"context"
	"time"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

// CreateRequest records the requester asking for access to the project with
// the given key. A pending request for the same project is returned as-is
// instead of creating a duplicate.
func (e *Engine) CreateRequest(ctx context.Context, requester, projectKey string) (*models.UserPermissionRequest, error) {
	project, err := e.store.GetProjectByKey(ctx, projectKey)
	if err != nil {
		return nil, err
	}

	pending, err := e.store.FindPendingRequest(ctx, requester, project.ID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		pending.Project = project
		return pending, nil
	}

	request := &models.UserPermissionRequest{
		UserEmail: models.CanonicalEmail(requester),
		ProjectID: project.ID,
	}
	if _, err := e.store.CreateRequest(ctx, request); err != nil {
		return nil, err
	}
	request.Project = project
	return request, nil
}

// ListRequests returns the requester's own access requests. The listing is
// always owner-scoped; nobody sees another user's requests through this path.
func (e *Engine) ListRequests(ctx context.Context, requester string) ([]*models.UserPermissionRequest, error) {
	return e.store.ListRequestsForUser(ctx, requester)
}

// ApproveRequest grants a pending access request. The approver must hold
// MANAGE on the project's key; otherwise ErrNotManager. Approval marks the
// request granted and creates the VIEW record for the requesting user in one
// pass, provisioning their account if needed.
func (e *Engine) ApproveRequest(ctx context.Context, approver, requestID string) (*models.UserPermissionRequest, error) {
	request, err := e.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	project := request.Project
	if project == nil {
		project, err = e.store.GetProject(ctx, request.ProjectID)
		if err != nil {
			return nil, err
		}
	}

	manages, err := e.store.HasManage(ctx, approver, project.ProjectKey)
	if err != nil {
		return nil, err
	}
	if !manages {
		e.record("approve", false)
		return nil, models.ErrNotManager
	}

	if _, _, err := e.store.EnsureUser(ctx, request.UserEmail); err != nil {
		return nil, err
	}
	if _, _, err := e.store.UpsertPermission(ctx, request.UserEmail, project.ProjectKey, models.PermissionView); err != nil {
		return nil, err
	}

	granted, err := e.store.GrantRequest(ctx, request.ID, time.Now())
	if err != nil {
		return nil, err
	}
	e.record("approve", true)
	return granted, nil
}
