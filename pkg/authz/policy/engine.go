// Package policy implements the authorization decision logic: which
// permission records a requester may see, who may grant and revoke, and the
// request/approval workflow. It is transport-agnostic; the HTTP layer maps
// its results and sentinel errors onto status codes.
package policy

import (
	"context"
	"time"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

// Store is the persistence surface the engine needs. *store.GORMStore
// satisfies it; tests may substitute their own implementation.
type Store interface {
	GetPermission(ctx context.Context, id string) (*models.UserPermission, error)
	ListPermissionsForUser(ctx context.Context, email string) ([]*models.UserPermission, error)
	ListPermissionsForItem(ctx context.Context, item, email string) ([]*models.UserPermission, error)
	HasManage(ctx context.Context, email, item string) (bool, error)
	UpsertPermission(ctx context.Context, email, item string, permission models.Permission) (*models.UserPermission, bool, error)
	DeletePermission(ctx context.Context, email, item string, permission models.Permission) (*models.UserPermission, error)

	EnsureUser(ctx context.Context, email string) (*models.User, bool, error)

	GetProject(ctx context.Context, id string) (*models.AuthorizableProject, error)
	GetProjectByKey(ctx context.Context, projectKey string) (*models.AuthorizableProject, error)

	CreateRequest(ctx context.Context, request *models.UserPermissionRequest) (string, error)
	GetRequest(ctx context.Context, id string) (*models.UserPermissionRequest, error)
	ListRequestsForUser(ctx context.Context, email string) ([]*models.UserPermissionRequest, error)
	FindPendingRequest(ctx context.Context, email, projectID string) (*models.UserPermissionRequest, error)
	GrantRequest(ctx context.Context, id string, grantedAt time.Time) (*models.UserPermissionRequest, error)

	GetDUA(ctx context.Context, id string) (*models.DataUseAgreement, error)
	ListDUAsByProjectKey(ctx context.Context, projectKey string) ([]*models.DataUseAgreement, error)
	SignDUA(ctx context.Context, duaID, email string) (*models.DataUseAgreementSign, error)
	ListSignaturesForUser(ctx context.Context, email string) ([]*models.DataUseAgreementSign, error)
}

// Recorder counts authorization decisions. The metrics package provides the
// Prometheus-backed implementation; a nil recorder disables counting.
type Recorder interface {
	RecordDecision(operation string, allowed bool)
}

// Engine evaluates authorization decisions against a Store. It holds no
// per-request state; one call is one synchronous unit of work.
type Engine struct {
	store   Store
	metrics Recorder
}

// New creates an Engine. metrics may be nil.
func New(store Store, metrics Recorder) *Engine {
	return &Engine{
		store:   store,
		metrics: metrics,
	}
}

func (e *Engine) record(operation string, allowed bool) {
	if e.metrics != nil {
		e.metrics.RecordDecision(operation, allowed)
	}
}
