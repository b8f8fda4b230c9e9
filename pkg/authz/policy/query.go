package policy

import (
	"context"
	"errors"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

// Filter narrows a permission query. Fields are applied in strict precedence
// order: RecordID wins over Item, Item wins over the owner-scoped default.
// An Email on its own is ignored; it only narrows an Item query.
type Filter struct {
	RecordID string
	Item     string
	Email    string
}

// VisiblePermissions computes the permission records the requester may see.
//
// Authorization failures narrow silently: a requester asking about a record
// or item they have no standing on gets an empty result, never an error.
// Errors from this method are store failures only.
func (e *Engine) VisiblePermissions(ctx context.Context, requester string, filter Filter) ([]*models.UserPermission, error) {
	requester = models.CanonicalEmail(requester)

	switch {
	case filter.RecordID != "":
		return e.visibleByRecordID(ctx, requester, filter.RecordID)
	case filter.Item != "":
		return e.visibleByItem(ctx, requester, filter.Item, filter.Email)
	default:
		perms, err := e.store.ListPermissionsForUser(ctx, requester)
		if err != nil {
			return nil, err
		}
		e.record("query", true)
		return perms, nil
	}
}

// visibleByRecordID returns the single record when the requester owns it or
// manages its item, empty otherwise.
func (e *Engine) visibleByRecordID(ctx context.Context, requester, recordID string) ([]*models.UserPermission, error) {
	perm, err := e.store.GetPermission(ctx, recordID)
	if err != nil {
		if errors.Is(err, models.ErrPermissionNotFound) {
			e.record("query", false)
			return []*models.UserPermission{}, nil
		}
		return nil, err
	}

	if perm.OwnedBy(requester) {
		e.record("query", true)
		return []*models.UserPermission{perm}, nil
	}

	manages, err := e.store.HasManage(ctx, requester, perm.Item)
	if err != nil {
		return nil, err
	}
	if manages {
		e.record("query", true)
		return []*models.UserPermission{perm}, nil
	}

	e.record("query", false)
	return []*models.UserPermission{}, nil
}

// visibleByItem returns all records on the item when the requester manages
// it, optionally narrowed by email. Without MANAGE the view collapses to the
// requester's own records on that item; the email filter is then meaningless
// and ignored.
func (e *Engine) visibleByItem(ctx context.Context, requester, item, email string) ([]*models.UserPermission, error) {
	manages, err := e.store.HasManage(ctx, requester, item)
	if err != nil {
		return nil, err
	}

	if manages {
		perms, err := e.store.ListPermissionsForItem(ctx, item, email)
		if err != nil {
			return nil, err
		}
		e.record("query", true)
		return perms, nil
	}

	perms, err := e.store.ListPermissionsForItem(ctx, item, requester)
	if err != nil {
		return nil, err
	}
	e.record("query", false)
	return perms, nil
}
