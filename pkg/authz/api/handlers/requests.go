package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hms-dbmi/sciauthz/internal/logger"
	"github.com/hms-dbmi/sciauthz/pkg/authz/api/middleware"
	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
	"github.com/hms-dbmi/sciauthz/pkg/authz/policy"
)

// RequestHandler serves the project access request workflow.
type RequestHandler struct {
	engine *policy.Engine
}

// NewRequestHandler creates a new RequestHandler.
func NewRequestHandler(engine *policy.Engine) *RequestHandler {
	return &RequestHandler{engine: engine}
}

// createRequestBody is the request body for POST /authorization_requests/.
type createRequestBody struct {
	ProjectKey string `json:"project_key"`
}

// List handles GET /authorization_requests/.
// Returns the requester's own access requests only.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	requester := middleware.GetIdentityFromContext(r.Context())

	requests, err := h.engine.ListRequests(r.Context(), requester)
	if err != nil {
		logger.Error("request listing failed", "requester", requester, "error", err)
		InternalServerError(w, "Failed to list requests")
		return
	}

	WriteJSONOK(w, paginate(r, requests))
}

// Create handles POST /authorization_requests/.
// Records the requester asking for access to the named project.
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	requester := middleware.GetIdentityFromContext(r.Context())

	var req createRequestBody
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.ProjectKey == "" {
		BadRequest(w, "project_key is required")
		return
	}

	request, err := h.engine.CreateRequest(r.Context(), requester, req.ProjectKey)
	if err != nil {
		if errors.Is(err, models.ErrProjectNotFound) {
			NotFound(w, "No such project")
			return
		}
		logger.Error("request creation failed", "requester", requester, "project_key", req.ProjectKey, "error", err)
		InternalServerError(w, "Failed to create request")
		return
	}

	logger.Info("access request recorded",
		"requester", requester,
		"project_key", req.ProjectKey,
		"request_id", request.ID,
	)
	WriteJSONCreated(w, request)
}

// Approve handles POST /authorization_requests/{id}/approve.
//
// Grants the request: the approver must hold MANAGE on the project's key.
// Approval stamps the request and creates the VIEW grant for the requesting
// user.
func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	approver := middleware.GetIdentityFromContext(r.Context())
	requestID := chi.URLParam(r, "id")

	request, err := h.engine.ApproveRequest(r.Context(), approver, requestID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRequestNotFound):
			NotFound(w, "No such request")
		case errors.Is(err, models.ErrNotManager):
			Unauthorized(w, "MANAGE permission on the project is required")
		default:
			logger.Error("request approval failed", "approver", approver, "request_id", requestID, "error", err)
			InternalServerError(w, "Failed to approve request")
		}
		return
	}

	logger.Info("access request approved",
		"approver", approver,
		"request_id", request.ID,
		"user", request.UserEmail,
	)
	WriteJSONOK(w, request)
}
