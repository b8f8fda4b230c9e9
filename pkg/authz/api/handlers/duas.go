package handlers

import (
	"errors"
	"net/http"

	"github.com/hms-dbmi/sciauthz/internal/logger"
	"github.com/hms-dbmi/sciauthz/pkg/authz/api/middleware"
	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
	"github.com/hms-dbmi/sciauthz/pkg/authz/policy"
)

// DUAHandler serves the data use agreement endpoints.
type DUAHandler struct {
	engine *policy.Engine
}

// NewDUAHandler creates a new DUAHandler.
func NewDUAHandler(engine *policy.Engine) *DUAHandler {
	return &DUAHandler{engine: engine}
}

// List handles GET /data_use_agreements/?project_key=.
func (h *DUAHandler) List(w http.ResponseWriter, r *http.Request) {
	projectKey := r.URL.Query().Get("project_key")
	if projectKey == "" {
		BadRequest(w, "project_key is required")
		return
	}

	duas, err := h.engine.ListAgreements(r.Context(), projectKey)
	if err != nil {
		if errors.Is(err, models.ErrProjectNotFound) {
			NotFound(w, "No such project")
			return
		}
		logger.Error("agreement listing failed", "project_key", projectKey, "error", err)
		InternalServerError(w, "Failed to list data use agreements")
		return
	}

	WriteJSONOK(w, paginate(r, duas))
}

// signRequestBody is the request body for POST /data_use_agreement_sign/.
type signRequestBody struct {
	DataUseAgreement string `json:"data_use_agreement"`
}

// Sign handles POST /data_use_agreement_sign/.
// Records the requester signing the agreement; the agreement content is
// snapshotted into the signing record.
func (h *DUAHandler) Sign(w http.ResponseWriter, r *http.Request) {
	requester := middleware.GetIdentityFromContext(r.Context())

	var req signRequestBody
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.DataUseAgreement == "" {
		BadRequest(w, "data_use_agreement is required")
		return
	}

	sign, err := h.engine.SignAgreement(r.Context(), requester, req.DataUseAgreement)
	if err != nil {
		if errors.Is(err, models.ErrDUANotFound) {
			NotFound(w, "No such data use agreement")
			return
		}
		logger.Error("agreement signing failed", "requester", requester, "dua_id", req.DataUseAgreement, "error", err)
		InternalServerError(w, "Failed to record signature")
		return
	}

	logger.Info("data use agreement signed",
		"requester", requester,
		"dua_id", sign.DataUseAgreementID,
	)
	WriteJSONCreated(w, sign)
}

// ListSignatures handles GET /data_use_agreement_sign/.
// Returns the requester's own signing records.
func (h *DUAHandler) ListSignatures(w http.ResponseWriter, r *http.Request) {
	requester := middleware.GetIdentityFromContext(r.Context())

	signs, err := h.engine.ListSignatures(r.Context(), requester)
	if err != nil {
		logger.Error("signature listing failed", "requester", requester, "error", err)
		InternalServerError(w, "Failed to list signatures")
		return
	}

	WriteJSONOK(w, paginate(r, signs))
}
