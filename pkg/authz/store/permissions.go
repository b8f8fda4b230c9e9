package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

// GetPermission retrieves a single permission record by ID.
func (s *GORMStore) GetPermission(ctx context.Context, id string) (*models.UserPermission, error) {
	return getByField[models.UserPermission](s.db, ctx, "id", id, models.ErrPermissionNotFound)
}

// ListPermissionsForUser returns every permission record owned by the given
// identity. Email matching is case-insensitive to cover rows written before
// canonicalization.
func (s *GORMStore) ListPermissionsForUser(ctx context.Context, email string) ([]*models.UserPermission, error) {
	var perms []*models.UserPermission
	if err := s.db.WithContext(ctx).
		Where("LOWER(user_email) = ?", models.CanonicalEmail(email)).
		Order("date_updated").
		Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

// ListPermissionsForItem returns the permission records for an item, optionally
// narrowed to a single owner. Item matching is exact; email matching is
// case-insensitive.
func (s *GORMStore) ListPermissionsForItem(ctx context.Context, item, email string) ([]*models.UserPermission, error) {
	q := s.db.WithContext(ctx).Where("item = ?", item)
	if email != "" {
		q = q.Where("LOWER(user_email) = ?", models.CanonicalEmail(email))
	}

	var perms []*models.UserPermission
	if err := q.Order("date_updated").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

// ListAllPermissions returns every permission record, ordered by item.
func (s *GORMStore) ListAllPermissions(ctx context.Context) ([]*models.UserPermission, error) {
	var perms []*models.UserPermission
	if err := s.db.WithContext(ctx).
		Order("item, user_email").
		Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

// HasManage reports whether the identity holds a MANAGE record on the item.
// MANAGE is scoped per item, so this is a lookup rather than a role flag.
func (s *GORMStore) HasManage(ctx context.Context, email, item string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&models.UserPermission{}).
		Where("item = ? AND LOWER(user_email) = ? AND permission = ?",
			item, models.CanonicalEmail(email), string(models.PermissionManage)).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpsertPermission idempotently creates a permission record. If the record
// already exists it is returned with created=false. A unique constraint
// violation on insert means a concurrent identical request won the race; it
// is also treated as "already granted".
func (s *GORMStore) UpsertPermission(ctx context.Context, email, item string, permission models.Permission) (*models.UserPermission, bool, error) {
	email = models.CanonicalEmail(email)

	existing, err := s.findExactPermission(ctx, email, item, permission)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	perm := &models.UserPermission{
		ID:          uuid.New().String(),
		UserEmail:   email,
		Item:        item,
		Permission:  string(permission),
		DateUpdated: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(perm).Error; err != nil {
		if isUniqueConstraintError(err) {
			existing, ferr := s.findExactPermission(ctx, email, item, permission)
			if ferr != nil {
				return nil, false, ferr
			}
			if existing != nil {
				return existing, false, nil
			}
		}
		return nil, false, err
	}
	return perm, true, nil
}

// DeletePermission removes the exact permission record for (email, item,
// permission) and returns the deleted record's data as confirmation.
// Returns ErrPermissionNotFound when no such record exists.
func (s *GORMStore) DeletePermission(ctx context.Context, email, item string, permission models.Permission) (*models.UserPermission, error) {
	perm, err := s.findExactPermission(ctx, email, item, permission)
	if err != nil {
		return nil, err
	}
	if perm == nil {
		return nil, models.ErrPermissionNotFound
	}

	if err := s.db.WithContext(ctx).Delete(&models.UserPermission{}, "id = ?", perm.ID).Error; err != nil {
		return nil, err
	}
	return perm, nil
}

// findExactPermission looks up the record for (email, item, permission).
// Returns (nil, nil) when absent; absence is not an error here.
func (s *GORMStore) findExactPermission(ctx context.Context, email, item string, permission models.Permission) (*models.UserPermission, error) {
	var perms []*models.UserPermission
	if err := s.db.WithContext(ctx).
		Where("item = ? AND LOWER(user_email) = ? AND permission = ?",
			item, models.CanonicalEmail(email), string(permission)).
		Limit(1).
		Find(&perms).Error; err != nil {
		return nil, err
	}
	if len(perms) == 0 {
		return nil, nil
	}
	return perms[0], nil
}
