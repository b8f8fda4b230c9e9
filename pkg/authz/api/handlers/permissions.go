package handlers

import (
	"errors"
	"net/http"

	"github.com/hms-dbmi/sciauthz/internal/logger"
	"github.com/hms-dbmi/sciauthz/pkg/authz/api/middleware"
	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
	"github.com/hms-dbmi/sciauthz/pkg/authz/policy"
)

// PermissionHandler serves the permission query and grant/revoke endpoints.
type PermissionHandler struct {
	engine *policy.Engine
}

// NewPermissionHandler creates a new PermissionHandler.
func NewPermissionHandler(engine *policy.Engine) *PermissionHandler {
	return &PermissionHandler{engine: engine}
}

// grantRequest is the request body shared by the grant and revoke endpoints.
type grantRequest struct {
	GranteeEmail string `json:"grantee_email"`
	Item         string `json:"item"`
}

// Query handles GET /user_permission/.
//
// Filters: id (record id), item, email. Results are always limited to what
// the requester is allowed to see; filters the requester has no standing on
// narrow the result silently instead of failing.
func (h *PermissionHandler) Query(w http.ResponseWriter, r *http.Request) {
	requester := middleware.GetIdentityFromContext(r.Context())
	q := r.URL.Query()

	perms, err := h.engine.VisiblePermissions(r.Context(), requester, policy.Filter{
		RecordID: q.Get("id"),
		Item:     q.Get("item"),
		Email:    q.Get("email"),
	})
	if err != nil {
		logger.Error("permission query failed", "requester", requester, "error", err)
		InternalServerError(w, "Failed to query permissions")
		return
	}

	WriteJSONOK(w, paginate(r, perms))
}

// CreateItemView handles POST /user_permission/create_item_view_permission_record/.
//
// Grants VIEW on the item to the grantee. The requester must hold MANAGE on
// the item; a 401 is returned otherwise.
func (h *PermissionHandler) CreateItemView(w http.ResponseWriter, r *http.Request) {
	requester := middleware.GetIdentityFromContext(r.Context())

	var req grantRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.GranteeEmail == "" || req.Item == "" {
		BadRequest(w, "grantee_email and item are required")
		return
	}

	perm, err := h.engine.CreateViewGrant(r.Context(), requester, req.Item, req.GranteeEmail)
	if err != nil {
		if errors.Is(err, models.ErrNotManager) {
			Unauthorized(w, "MANAGE permission on the item is required")
			return
		}
		logger.Error("grant failed", "requester", requester, "item", req.Item, "error", err)
		InternalServerError(w, "Failed to create permission record")
		return
	}

	logger.Info("view permission granted",
		"requester", requester,
		"grantee", perm.UserEmail,
		"item", perm.Item,
	)
	WriteJSONOK(w, perm)
}

// RemoveItemView handles POST /user_permission/remove_item_view_permission_record/.
//
// Revokes the grantee's VIEW record on the item. The requester must hold
// MANAGE on the item (401 otherwise); a missing record yields 404. The
// deleted record is returned as confirmation.
func (h *PermissionHandler) RemoveItemView(w http.ResponseWriter, r *http.Request) {
	requester := middleware.GetIdentityFromContext(r.Context())

	var req grantRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.GranteeEmail == "" || req.Item == "" {
		BadRequest(w, "grantee_email and item are required")
		return
	}

	perm, err := h.engine.RevokeViewGrant(r.Context(), requester, req.Item, req.GranteeEmail)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotManager):
			Unauthorized(w, "MANAGE permission on the item is required")
		case errors.Is(err, models.ErrPermissionNotFound):
			NotFound(w, "No such permission record")
		default:
			logger.Error("revoke failed", "requester", requester, "item", req.Item, "error", err)
			InternalServerError(w, "Failed to remove permission record")
		}
		return
	}

	logger.Info("view permission revoked",
		"requester", requester,
		"grantee", perm.UserEmail,
		"item", perm.Item,
	)
	WriteJSONOK(w, perm)
}

// CreateRegistrationView handles POST /user_permission/create_registration_permission_record/.
//
// Grants VIEW on the requester's own registration profile to the grantee.
// The item field carries the registry subdomain; the stored item string is
// derived from it and the requester's identity, so no MANAGE check applies.
func (h *PermissionHandler) CreateRegistrationView(w http.ResponseWriter, r *http.Request) {
	requester := middleware.GetIdentityFromContext(r.Context())

	var req grantRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.GranteeEmail == "" || req.Item == "" {
		BadRequest(w, "grantee_email and item are required")
		return
	}

	perm, err := h.engine.GrantProfileView(r.Context(), requester, req.Item, req.GranteeEmail)
	if err != nil {
		logger.Error("profile grant failed", "requester", requester, "subdomain", req.Item, "error", err)
		InternalServerError(w, "Failed to create permission record")
		return
	}

	logger.Info("profile view permission granted",
		"requester", requester,
		"grantee", perm.UserEmail,
		"item", perm.Item,
	)
	WriteJSONOK(w, perm)
}
