package policy

import (
	"context"
	"fmt"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

// CreateViewGrant grants VIEW on item to grantee on behalf of the requester.
// The requester must hold MANAGE on the item; otherwise ErrNotManager.
// The grantee's user account is provisioned if absent, and the grant itself
// is idempotent.
func (e *Engine) CreateViewGrant(ctx context.Context, requester, item, grantee string) (*models.UserPermission, error) {
	manages, err := e.store.HasManage(ctx, requester, item)
	if err != nil {
		return nil, err
	}
	if !manages {
		e.record("grant", false)
		return nil, models.ErrNotManager
	}

	if _, _, err := e.store.EnsureUser(ctx, grantee); err != nil {
		return nil, fmt.Errorf("failed to provision grantee: %w", err)
	}

	perm, _, err := e.store.UpsertPermission(ctx, grantee, item, models.PermissionView)
	if err != nil {
		return nil, err
	}
	e.record("grant", true)
	return perm, nil
}

// RevokeViewGrant removes grantee's VIEW record on item on behalf of the
// requester. The requester must hold MANAGE on the item; otherwise
// ErrNotManager. A missing record yields ErrPermissionNotFound. Returns the
// deleted record as confirmation.
func (e *Engine) RevokeViewGrant(ctx context.Context, requester, item, grantee string) (*models.UserPermission, error) {
	manages, err := e.store.HasManage(ctx, requester, item)
	if err != nil {
		return nil, err
	}
	if !manages {
		e.record("revoke", false)
		return nil, models.ErrNotManager
	}

	perm, err := e.store.DeletePermission(ctx, grantee, item, models.PermissionView)
	if err != nil {
		return nil, err
	}
	e.record("revoke", true)
	return perm, nil
}

// GrantProfileView grants VIEW on the requester's own registration profile
// to grantee. The item is derived from the requester's identity, so the
// requester holds the resource by construction and no MANAGE check applies.
func (e *Engine) GrantProfileView(ctx context.Context, requester, subdomain, grantee string) (*models.UserPermission, error) {
	item := models.ProfileItem(subdomain, requester)

	if _, _, err := e.store.EnsureUser(ctx, grantee); err != nil {
		return nil, fmt.Errorf("failed to provision grantee: %w", err)
	}

	perm, _, err := e.store.UpsertPermission(ctx, grantee, item, models.PermissionView)
	if err != nil {
		return nil, err
	}
	e.record("grant", true)
	return perm, nil
}
