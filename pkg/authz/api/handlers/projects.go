package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hms-dbmi/sciauthz/internal/logger"
	"github.com/hms-dbmi/sciauthz/pkg/authz/api/middleware"
	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
	"github.com/hms-dbmi/sciauthz/pkg/authz/policy"
)

// ProjectStore is the subset of the store the project admin endpoints need.
type ProjectStore interface {
	CreateProject(ctx context.Context, project *models.AuthorizableProject) (string, error)
	ListProjects(ctx context.Context) ([]*models.AuthorizableProject, error)
	CreateDUA(ctx context.Context, dua *models.DataUseAgreement) (string, error)
	GetProjectByKey(ctx context.Context, projectKey string) (*models.AuthorizableProject, error)
}

// ProjectHandler serves project listing, onboarding summaries, and the
// admin-only project and agreement registration endpoints.
type ProjectHandler struct {
	engine *policy.Engine
	store  ProjectStore
}

// NewProjectHandler creates a new ProjectHandler.
func NewProjectHandler(engine *policy.Engine, store ProjectStore) *ProjectHandler {
	return &ProjectHandler{
		engine: engine,
		store:  store,
	}
}

// List handles GET /authorizable_projects/.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.store.ListProjects(r.Context())
	if err != nil {
		logger.Error("project listing failed", "error", err)
		InternalServerError(w, "Failed to list projects")
		return
	}

	WriteJSONOK(w, paginate(r, projects))
}

// Setup handles GET /project_setup/{project_key}/.
// Returns the project, its agreements, and the requester's standing on it.
func (h *ProjectHandler) Setup(w http.ResponseWriter, r *http.Request) {
	requester := middleware.GetIdentityFromContext(r.Context())
	projectKey := chi.URLParam(r, "project_key")

	setup, err := h.engine.GetProjectSetup(r.Context(), requester, projectKey)
	if err != nil {
		if errors.Is(err, models.ErrProjectNotFound) {
			NotFound(w, "No such project")
			return
		}
		logger.Error("project setup failed", "requester", requester, "project_key", projectKey, "error", err)
		InternalServerError(w, "Failed to load project setup")
		return
	}

	WriteJSONOK(w, setup)
}

// createProjectBody is the request body for POST /authorizable_projects/.
type createProjectBody struct {
	Name             string `json:"name"`
	ProjectKey       string `json:"project_key"`
	PermissionScheme string `json:"permission_scheme"`
	DUARequired      *bool  `json:"dua_required"`
}

// Create handles POST /authorizable_projects/ (admin only).
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProjectBody
	if !decodeJSONBody(w, r, &req) {
		return
	}

	project := &models.AuthorizableProject{
		Name:             req.Name,
		ProjectKey:       req.ProjectKey,
		PermissionScheme: req.PermissionScheme,
		DUARequired:      true,
	}
	if req.DUARequired != nil {
		project.DUARequired = *req.DUARequired
	}
	if err := project.Validate(); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if _, err := h.store.CreateProject(r.Context(), project); err != nil {
		if errors.Is(err, models.ErrDuplicateProject) {
			Conflict(w, "A project with this key already exists")
			return
		}
		logger.Error("project creation failed", "project_key", req.ProjectKey, "error", err)
		InternalServerError(w, "Failed to create project")
		return
	}

	logger.Info("project registered", "project_key", project.ProjectKey, "name", project.Name)
	WriteJSONCreated(w, project)
}

// createDUABody is the request body for POST /data_use_agreements/.
type createDUABody struct {
	Name              string `json:"name"`
	ProjectKey        string `json:"project_key"`
	AgreementText     string `json:"agreement_text"`
	AgreementFormFile string `json:"agreement_form_file"`
}

// CreateAgreement handles POST /data_use_agreements/ (admin only).
func (h *ProjectHandler) CreateAgreement(w http.ResponseWriter, r *http.Request) {
	var req createDUABody
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.ProjectKey == "" {
		BadRequest(w, "project_key is required")
		return
	}

	project, err := h.store.GetProjectByKey(r.Context(), req.ProjectKey)
	if err != nil {
		if errors.Is(err, models.ErrProjectNotFound) {
			NotFound(w, "No such project")
			return
		}
		InternalServerError(w, "Failed to load project")
		return
	}

	dua := &models.DataUseAgreement{
		Name:              req.Name,
		ProjectID:         project.ID,
		AgreementText:     req.AgreementText,
		AgreementFormFile: req.AgreementFormFile,
	}
	if _, err := h.store.CreateDUA(r.Context(), dua); err != nil {
		if errors.Is(err, models.ErrDUAInvalid) {
			BadRequest(w, err.Error())
			return
		}
		logger.Error("agreement creation failed", "project_key", req.ProjectKey, "error", err)
		InternalServerError(w, "Failed to create data use agreement")
		return
	}

	logger.Info("data use agreement registered", "project_key", req.ProjectKey, "name", dua.Name)
	WriteJSONCreated(w, dua)
}
