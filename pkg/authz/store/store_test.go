//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
)

// createTestStore creates an in-memory SQLite store for testing.
func createTestStore(t *testing.T) *GORMStore {
	t.Helper()
	store, err := New(&Config{
		Type: DatabaseTypeSQLite,
		SQLite: SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return store
}

func TestNew(t *testing.T) {
	t.Run("default config uses sqlite", func(t *testing.T) {
		config := &Config{}
		config.ApplyDefaults()

		if config.Type != DatabaseTypeSQLite {
			t.Errorf("expected SQLite, got %s", config.Type)
		}
	})

	t.Run("invalid config returns error", func(t *testing.T) {
		config := &Config{
			Type: "invalid",
		}
		_, err := New(config)
		if err == nil {
			t.Error("expected error for invalid config")
		}
	})

	t.Run("creates in-memory store", func(t *testing.T) {
		store := createTestStore(t)
		defer store.Close()

		if err := store.Ping(context.Background()); err != nil {
			t.Errorf("ping failed: %v", err)
		}
	})
}

func TestPermissionOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	t.Run("upsert creates record", func(t *testing.T) {
		perm, created, err := store.UpsertPermission(ctx, "alice@example.edu", "Proj.A", models.PermissionView)
		if err != nil {
			t.Fatalf("failed to upsert permission: %v", err)
		}
		if !created {
			t.Error("expected created=true on first upsert")
		}
		if perm.ID == "" {
			t.Error("expected non-empty permission ID")
		}
	})

	t.Run("upsert is idempotent", func(t *testing.T) {
		first, _, err := store.UpsertPermission(ctx, "alice@example.edu", "Proj.A", models.PermissionView)
		if err != nil {
			t.Fatalf("failed to upsert permission: %v", err)
		}
		second, created, err := store.UpsertPermission(ctx, "alice@example.edu", "Proj.A", models.PermissionView)
		if err != nil {
			t.Fatalf("failed to upsert permission: %v", err)
		}
		if created {
			t.Error("expected created=false on repeat upsert")
		}
		if second.ID != first.ID {
			t.Errorf("expected same record ID %s, got %s", first.ID, second.ID)
		}
	})

	t.Run("upsert canonicalizes email", func(t *testing.T) {
		perm, created, err := store.UpsertPermission(ctx, "ALICE@Example.EDU", "Proj.A", models.PermissionView)
		if err != nil {
			t.Fatalf("failed to upsert permission: %v", err)
		}
		if created {
			t.Error("expected existing record for case-variant email")
		}
		if perm.UserEmail != "alice@example.edu" {
			t.Errorf("expected canonical email, got %q", perm.UserEmail)
		}
	})

	t.Run("same item different permission is a new record", func(t *testing.T) {
		_, created, err := store.UpsertPermission(ctx, "alice@example.edu", "Proj.A", models.PermissionManage)
		if err != nil {
			t.Fatalf("failed to upsert permission: %v", err)
		}
		if !created {
			t.Error("expected created=true for MANAGE on same item")
		}
	})

	t.Run("list for user", func(t *testing.T) {
		perms, err := store.ListPermissionsForUser(ctx, "Alice@Example.edu")
		if err != nil {
			t.Fatalf("failed to list permissions: %v", err)
		}
		if len(perms) != 2 {
			t.Errorf("expected 2 permissions, got %d", len(perms))
		}
	})

	t.Run("list for item", func(t *testing.T) {
		if _, _, err := store.UpsertPermission(ctx, "bob@example.edu", "Proj.A", models.PermissionView); err != nil {
			t.Fatalf("failed to upsert permission: %v", err)
		}

		perms, err := store.ListPermissionsForItem(ctx, "Proj.A", "")
		if err != nil {
			t.Fatalf("failed to list permissions: %v", err)
		}
		if len(perms) != 3 {
			t.Errorf("expected 3 permissions on item, got %d", len(perms))
		}

		perms, err = store.ListPermissionsForItem(ctx, "Proj.A", "BOB@example.edu")
		if err != nil {
			t.Fatalf("failed to list permissions: %v", err)
		}
		if len(perms) != 1 {
			t.Errorf("expected 1 permission for bob, got %d", len(perms))
		}
	})

	t.Run("item matching is exact", func(t *testing.T) {
		perms, err := store.ListPermissionsForItem(ctx, "proj.a", "")
		if err != nil {
			t.Fatalf("failed to list permissions: %v", err)
		}
		if len(perms) != 0 {
			t.Errorf("expected 0 permissions for case-variant item, got %d", len(perms))
		}
	})

	t.Run("has manage", func(t *testing.T) {
		ok, err := store.HasManage(ctx, "alice@example.edu", "Proj.A")
		if err != nil {
			t.Fatalf("failed to check manage: %v", err)
		}
		if !ok {
			t.Error("expected alice to hold MANAGE on Proj.A")
		}

		ok, err = store.HasManage(ctx, "bob@example.edu", "Proj.A")
		if err != nil {
			t.Fatalf("failed to check manage: %v", err)
		}
		if ok {
			t.Error("expected bob to not hold MANAGE on Proj.A")
		}
	})

	t.Run("get permission by id", func(t *testing.T) {
		perms, _ := store.ListPermissionsForUser(ctx, "bob@example.edu")
		if len(perms) == 0 {
			t.Fatal("expected at least one permission for bob")
		}

		perm, err := store.GetPermission(ctx, perms[0].ID)
		if err != nil {
			t.Fatalf("failed to get permission: %v", err)
		}
		if perm.UserEmail != "bob@example.edu" {
			t.Errorf("expected bob's record, got %q", perm.UserEmail)
		}
	})

	t.Run("get permission not found", func(t *testing.T) {
		_, err := store.GetPermission(ctx, "missing-id")
		if !errors.Is(err, models.ErrPermissionNotFound) {
			t.Errorf("expected ErrPermissionNotFound, got %v", err)
		}
	})

	t.Run("delete permission", func(t *testing.T) {
		deleted, err := store.DeletePermission(ctx, "BOB@example.edu", "Proj.A", models.PermissionView)
		if err != nil {
			t.Fatalf("failed to delete permission: %v", err)
		}
		if deleted.UserEmail != "bob@example.edu" {
			t.Errorf("expected deleted record for bob, got %q", deleted.UserEmail)
		}

		perms, _ := store.ListPermissionsForUser(ctx, "bob@example.edu")
		if len(perms) != 0 {
			t.Errorf("expected 0 permissions after delete, got %d", len(perms))
		}
	})

	t.Run("delete missing permission fails", func(t *testing.T) {
		_, err := store.DeletePermission(ctx, "bob@example.edu", "Proj.A", models.PermissionView)
		if !errors.Is(err, models.ErrPermissionNotFound) {
			t.Errorf("expected ErrPermissionNotFound, got %v", err)
		}
	})
}

func TestUserOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	t.Run("create user", func(t *testing.T) {
		user := &models.User{
			Username:     "testuser",
			Email:        "testuser@example.edu",
			PasswordHash: "hashed-password",
			Enabled:      true,
			Role:         "user",
		}

		id, err := store.CreateUser(ctx, user)
		if err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		if id == "" {
			t.Error("expected non-empty user ID")
		}
	})

	t.Run("duplicate user fails", func(t *testing.T) {
		user := &models.User{
			Username:     "testuser",
			PasswordHash: "hashed-password",
		}

		_, err := store.CreateUser(ctx, user)
		if !errors.Is(err, models.ErrDuplicateUser) {
			t.Errorf("expected ErrDuplicateUser, got %v", err)
		}
	})

	t.Run("get user not found", func(t *testing.T) {
		_, err := store.GetUser(ctx, "nonexistent")
		if !errors.Is(err, models.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("get user by email is case-insensitive", func(t *testing.T) {
		user, err := store.GetUserByEmail(ctx, "TestUser@Example.EDU")
		if err != nil {
			t.Fatalf("failed to get user by email: %v", err)
		}
		if user.Username != "testuser" {
			t.Errorf("expected username 'testuser', got %q", user.Username)
		}
	})

	t.Run("ensure user provisions when absent", func(t *testing.T) {
		user, created, err := store.EnsureUser(ctx, "Newcomer@Example.edu")
		if err != nil {
			t.Fatalf("failed to ensure user: %v", err)
		}
		if !created {
			t.Error("expected created=true for new identity")
		}
		if user.Username != "newcomer@example.edu" || user.Email != "newcomer@example.edu" {
			t.Errorf("expected canonical identity as username and email, got %q / %q", user.Username, user.Email)
		}
		if user.PasswordHash != "" {
			t.Error("provisioned user must not have a password hash")
		}
	})

	t.Run("ensure user is idempotent", func(t *testing.T) {
		_, created, err := store.EnsureUser(ctx, "newcomer@example.edu")
		if err != nil {
			t.Fatalf("failed to ensure user: %v", err)
		}
		if created {
			t.Error("expected created=false for existing identity")
		}
	})

	t.Run("provisioned user cannot authenticate", func(t *testing.T) {
		_, err := store.ValidateCredentials(ctx, "newcomer@example.edu", "anything-at-all")
		if !errors.Is(err, models.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("validate credentials", func(t *testing.T) {
		hash, err := models.HashPassword("correct-horse-battery")
		if err != nil {
			t.Fatalf("failed to hash password: %v", err)
		}
		user := &models.User{
			Username:     "loginuser",
			Email:        "loginuser@example.edu",
			PasswordHash: hash,
			Enabled:      true,
			Role:         "user",
		}
		if _, err := store.CreateUser(ctx, user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		got, err := store.ValidateCredentials(ctx, "loginuser", "correct-horse-battery")
		if err != nil {
			t.Fatalf("failed to validate credentials: %v", err)
		}
		if got.Username != "loginuser" {
			t.Errorf("expected loginuser, got %q", got.Username)
		}

		_, err = store.ValidateCredentials(ctx, "loginuser", "wrong-password")
		if !errors.Is(err, models.ErrInvalidCredentials) {
			t.Errorf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("disabled user cannot authenticate", func(t *testing.T) {
		hash, _ := models.HashPassword("some-password-123")
		user := &models.User{
			Username:     "disableduser",
			PasswordHash: hash,
			Enabled:      false,
			Role:         "user",
		}
		if _, err := store.CreateUser(ctx, user); err != nil {
			t.Fatalf("failed to create user: %v", err)
		}

		got, err := store.GetUser(ctx, "disableduser")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.Enabled {
			t.Error("expected enabled false to round-trip, got true")
		}

		_, err = store.ValidateCredentials(ctx, "disableduser", "some-password-123")
		if !errors.Is(err, models.ErrUserDisabled) {
			t.Errorf("expected ErrUserDisabled, got %v", err)
		}
	})

	t.Run("update last login", func(t *testing.T) {
		now := time.Now()
		if err := store.UpdateLastLogin(ctx, "loginuser", now); err != nil {
			t.Fatalf("failed to update last login: %v", err)
		}

		user, _ := store.GetUser(ctx, "loginuser")
		if user.LastLogin == nil {
			t.Fatal("expected last login to be set")
		}
	})

	t.Run("ensure admin user", func(t *testing.T) {
		password, err := store.EnsureAdminUser(ctx, "", "", "")
		if err != nil {
			t.Fatalf("failed to ensure admin user: %v", err)
		}
		if password == "" {
			t.Error("expected generated password on first creation")
		}

		admin, err := store.GetUser(ctx, models.AdminUsername)
		if err != nil {
			t.Fatalf("failed to get admin user: %v", err)
		}
		if !admin.IsAdmin() {
			t.Error("expected admin role")
		}

		password, err = store.EnsureAdminUser(ctx, "", "", "")
		if err != nil {
			t.Fatalf("second ensure failed: %v", err)
		}
		if password != "" {
			t.Error("expected empty password when admin already exists")
		}
	})

	t.Run("ensure admin user with configured hash", func(t *testing.T) {
		hash, err := models.HashPassword("configured-secret")
		if err != nil {
			t.Fatalf("failed to hash password: %v", err)
		}

		password, err := store.EnsureAdminUser(ctx, "ops-admin", "Ops@Example.edu", hash)
		if err != nil {
			t.Fatalf("failed to ensure admin user: %v", err)
		}
		if password != "" {
			t.Error("expected no generated password when hash is configured")
		}

		admin, err := store.GetUser(ctx, "ops-admin")
		if err != nil {
			t.Fatalf("failed to get admin user: %v", err)
		}
		if admin.Email != "ops@example.edu" {
			t.Errorf("expected canonicalized email, got %q", admin.Email)
		}
		if _, err := store.ValidateCredentials(ctx, "ops-admin", "configured-secret"); err != nil {
			t.Errorf("expected configured password to validate: %v", err)
		}
	})
}

func TestProjectOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	t.Run("create project", func(t *testing.T) {
		project := &models.AuthorizableProject{
			Name:       "Test Project",
			ProjectKey: "Proj.Test",
		}

		id, err := store.CreateProject(ctx, project)
		if err != nil {
			t.Fatalf("failed to create project: %v", err)
		}
		if id == "" {
			t.Error("expected non-empty project ID")
		}
		if project.PermissionScheme != models.DefaultPermissionScheme {
			t.Errorf("expected default permission scheme, got %q", project.PermissionScheme)
		}
	})

	t.Run("duplicate project key fails", func(t *testing.T) {
		project := &models.AuthorizableProject{
			Name:       "Another Project",
			ProjectKey: "Proj.Test",
		}

		_, err := store.CreateProject(ctx, project)
		if !errors.Is(err, models.ErrDuplicateProject) {
			t.Errorf("expected ErrDuplicateProject, got %v", err)
		}
	})

	t.Run("project without key fails", func(t *testing.T) {
		project := &models.AuthorizableProject{Name: "Keyless"}
		_, err := store.CreateProject(ctx, project)
		if err == nil {
			t.Error("expected validation error for missing project key")
		}
	})

	t.Run("get project by key", func(t *testing.T) {
		project, err := store.GetProjectByKey(ctx, "Proj.Test")
		if err != nil {
			t.Fatalf("failed to get project: %v", err)
		}
		if project.Name != "Test Project" {
			t.Errorf("expected 'Test Project', got %q", project.Name)
		}
	})

	t.Run("get project by key not found", func(t *testing.T) {
		_, err := store.GetProjectByKey(ctx, "Proj.Missing")
		if !errors.Is(err, models.ErrProjectNotFound) {
			t.Errorf("expected ErrProjectNotFound, got %v", err)
		}
	})

	t.Run("list projects", func(t *testing.T) {
		projects, err := store.ListProjects(ctx)
		if err != nil {
			t.Fatalf("failed to list projects: %v", err)
		}
		if len(projects) != 1 {
			t.Errorf("expected 1 project, got %d", len(projects))
		}
	})

	t.Run("dua_required false survives create", func(t *testing.T) {
		project := &models.AuthorizableProject{
			Name:        "Open Project",
			ProjectKey:  "Proj.Open",
			DUARequired: false,
		}
		if _, err := store.CreateProject(ctx, project); err != nil {
			t.Fatalf("failed to create project: %v", err)
		}

		got, err := store.GetProjectByKey(ctx, "Proj.Open")
		if err != nil {
			t.Fatalf("failed to get project: %v", err)
		}
		if got.DUARequired {
			t.Error("expected dua_required false to round-trip, got true")
		}
	})
}

func TestRequestOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	project := &models.AuthorizableProject{
		Name:       "Requested Project",
		ProjectKey: "Proj.Req",
	}
	if _, err := store.CreateProject(ctx, project); err != nil {
		t.Fatalf("failed to create project: %v", err)
	}

	t.Run("create request", func(t *testing.T) {
		request := &models.UserPermissionRequest{
			UserEmail: "Alice@Example.edu",
			ProjectID: project.ID,
		}

		id, err := store.CreateRequest(ctx, request)
		if err != nil {
			t.Fatalf("failed to create request: %v", err)
		}
		if id == "" {
			t.Error("expected non-empty request ID")
		}
		if request.UserEmail != "alice@example.edu" {
			t.Errorf("expected canonical email, got %q", request.UserEmail)
		}
		if !request.Pending() {
			t.Error("expected new request to be pending")
		}
	})

	t.Run("find pending request", func(t *testing.T) {
		pending, err := store.FindPendingRequest(ctx, "alice@example.edu", project.ID)
		if err != nil {
			t.Fatalf("failed to find pending request: %v", err)
		}
		if pending == nil {
			t.Fatal("expected a pending request")
		}
	})

	t.Run("list requests preloads project", func(t *testing.T) {
		requests, err := store.ListRequestsForUser(ctx, "ALICE@example.edu")
		if err != nil {
			t.Fatalf("failed to list requests: %v", err)
		}
		if len(requests) != 1 {
			t.Fatalf("expected 1 request, got %d", len(requests))
		}
		if requests[0].Project == nil || requests[0].Project.ProjectKey != "Proj.Req" {
			t.Error("expected preloaded project on request")
		}
	})

	t.Run("grant request sets both fields", func(t *testing.T) {
		requests, _ := store.ListRequestsForUser(ctx, "alice@example.edu")
		granted, err := store.GrantRequest(ctx, requests[0].ID, time.Now())
		if err != nil {
			t.Fatalf("failed to grant request: %v", err)
		}
		if !granted.RequestGranted {
			t.Error("expected request_granted=true")
		}
		if granted.DateRequestGranted == nil {
			t.Error("expected date_request_granted to be set")
		}
	})

	t.Run("granted request is no longer pending", func(t *testing.T) {
		pending, err := store.FindPendingRequest(ctx, "alice@example.edu", project.ID)
		if err != nil {
			t.Fatalf("failed to find pending request: %v", err)
		}
		if pending != nil {
			t.Error("expected no pending request after grant")
		}
	})

	t.Run("grant missing request fails", func(t *testing.T) {
		_, err := store.GrantRequest(ctx, "missing-id", time.Now())
		if !errors.Is(err, models.ErrRequestNotFound) {
			t.Errorf("expected ErrRequestNotFound, got %v", err)
		}
	})
}

func TestDUAOperations(t *testing.T) {
	store := createTestStore(t)
	defer store.Close()
	ctx := context.Background()

	project := &models.AuthorizableProject{
		Name:       "DUA Project",
		ProjectKey: "Proj.DUA",
	}
	if _, err := store.CreateProject(ctx, project); err != nil {
		t.Fatalf("failed to create project: %v", err)
	}

	t.Run("create dua with text", func(t *testing.T) {
		dua := &models.DataUseAgreement{
			Name:          "Standard Agreement",
			ProjectID:     project.ID,
			AgreementText: "I agree to use this data responsibly.",
		}

		id, err := store.CreateDUA(ctx, dua)
		if err != nil {
			t.Fatalf("failed to create dua: %v", err)
		}
		if id == "" {
			t.Error("expected non-empty dua ID")
		}
	})

	t.Run("dua with both text and form fails", func(t *testing.T) {
		dua := &models.DataUseAgreement{
			Name:              "Broken Agreement",
			ProjectID:         project.ID,
			AgreementText:     "text",
			AgreementFormFile: "form.pdf",
		}

		_, err := store.CreateDUA(ctx, dua)
		if !errors.Is(err, models.ErrDUAInvalid) {
			t.Errorf("expected ErrDUAInvalid, got %v", err)
		}
	})

	t.Run("dua with neither text nor form fails", func(t *testing.T) {
		dua := &models.DataUseAgreement{
			Name:      "Empty Agreement",
			ProjectID: project.ID,
		}

		_, err := store.CreateDUA(ctx, dua)
		if !errors.Is(err, models.ErrDUAInvalid) {
			t.Errorf("expected ErrDUAInvalid, got %v", err)
		}
	})

	t.Run("list by project key", func(t *testing.T) {
		duas, err := store.ListDUAsByProjectKey(ctx, "Proj.DUA")
		if err != nil {
			t.Fatalf("failed to list duas: %v", err)
		}
		if len(duas) != 1 {
			t.Errorf("expected 1 dua, got %d", len(duas))
		}
	})

	t.Run("list by unknown project key fails", func(t *testing.T) {
		_, err := store.ListDUAsByProjectKey(ctx, "Proj.Unknown")
		if !errors.Is(err, models.ErrProjectNotFound) {
			t.Errorf("expected ErrProjectNotFound, got %v", err)
		}
	})

	t.Run("sign dua snapshots text", func(t *testing.T) {
		duas, _ := store.ListDUAsByProjectKey(ctx, "Proj.DUA")

		sign, err := store.SignDUA(ctx, duas[0].ID, "Alice@Example.edu")
		if err != nil {
			t.Fatalf("failed to sign dua: %v", err)
		}
		if sign.AgreementText != "I agree to use this data responsibly." {
			t.Errorf("expected snapshot of agreement text, got %q", sign.AgreementText)
		}
		if sign.UserEmail != "alice@example.edu" {
			t.Errorf("expected canonical email, got %q", sign.UserEmail)
		}
	})

	t.Run("signing twice appends", func(t *testing.T) {
		duas, _ := store.ListDUAsByProjectKey(ctx, "Proj.DUA")
		if _, err := store.SignDUA(ctx, duas[0].ID, "alice@example.edu"); err != nil {
			t.Fatalf("failed to sign dua: %v", err)
		}

		signs, err := store.ListSignaturesForUser(ctx, "alice@example.edu")
		if err != nil {
			t.Fatalf("failed to list signatures: %v", err)
		}
		if len(signs) != 2 {
			t.Errorf("expected 2 signatures, got %d", len(signs))
		}
	})

	t.Run("has signed", func(t *testing.T) {
		duas, _ := store.ListDUAsByProjectKey(ctx, "Proj.DUA")

		ok, err := store.HasSigned(ctx, duas[0].ID, "ALICE@example.edu")
		if err != nil {
			t.Fatalf("failed to check signature: %v", err)
		}
		if !ok {
			t.Error("expected alice to have signed")
		}

		ok, err = store.HasSigned(ctx, duas[0].ID, "bob@example.edu")
		if err != nil {
			t.Fatalf("failed to check signature: %v", err)
		}
		if ok {
			t.Error("expected bob to not have signed")
		}
	})

	t.Run("sign missing dua fails", func(t *testing.T) {
		_, err := store.SignDUA(ctx, "missing-id", "alice@example.edu")
		if !errors.Is(err, models.ErrDUANotFound) {
			t.Errorf("expected ErrDUANotFound, got %v", err)
		}
	})
}
