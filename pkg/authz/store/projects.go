package store

import (
	"context"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

// CreateProject creates an authorizable project, generating an ID when absent.
func (s *GORMStore) CreateProject(ctx context.Context, project *models.AuthorizableProject) (string, error) {
	if err := project.Validate(); err != nil {
		return "", err
	}
	if project.PermissionScheme == "" {
		project.PermissionScheme = models.DefaultPermissionScheme
	}
	return createWithID(s.db, ctx, project, func(p *models.AuthorizableProject, id string) { p.ID = id }, project.ID, models.ErrDuplicateProject)
}

// GetProject retrieves a project by ID.
func (s *GORMStore) GetProject(ctx context.Context, id string) (*models.AuthorizableProject, error) {
	return getByField[models.AuthorizableProject](s.db, ctx, "id", id, models.ErrProjectNotFound)
}

// GetProjectByKey retrieves a project by its project key. The key is the
// string managers grant against, so lookups here sit on the grant path.
func (s *GORMStore) GetProjectByKey(ctx context.Context, projectKey string) (*models.AuthorizableProject, error) {
	return getByField[models.AuthorizableProject](s.db, ctx, "project_key", projectKey, models.ErrProjectNotFound, "DUAs")
}

// ListProjects returns all authorizable projects with their agreements.
func (s *GORMStore) ListProjects(ctx context.Context) ([]*models.AuthorizableProject, error) {
	return listAll[models.AuthorizableProject](s.db, ctx, "DUAs")
}
