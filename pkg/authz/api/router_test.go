package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hms-dbmi/sciauthz/pkg/authz/api/auth"
	"github.com/hms-dbmi/sciauthz/pkg/authz/models"
	"github.com/hms-dbmi/sciauthz/pkg/authz/policy"
	"github.com/hms-dbmi/sciauthz/pkg/authz/store"
)

const testSecret = "test-secret-that-is-at-least-32-chars!!"

type testEnv struct {
	router http.Handler
	store  *store.GORMStore
	jwt    *auth.JWTService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := store.New(&store.Config{
		Type: store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{
			Path: ":memory:",
		},
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	jwtService, err := auth.NewJWTService(auth.JWTConfig{Secret: testSecret})
	if err != nil {
		t.Fatalf("failed to create jwt service: %v", err)
	}

	engine := policy.New(s, nil)
	return &testEnv{
		router: NewRouter(engine, jwtService, s, nil),
		store:  s,
		jwt:    jwtService,
	}
}

// tokenFor issues an access token for the given identity.
func (e *testEnv) tokenFor(t *testing.T, email, role string) string {
	t.Helper()
	pair, err := e.jwt.GenerateTokenPair(&models.User{
		ID:       "test-" + email,
		Username: email,
		Email:    email,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return pair.AccessToken
}

// do performs a request against the router with an optional bearer token
// and JSON body.
func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) grant(t *testing.T, email, item string, perm models.Permission) {
	t.Helper()
	if _, _, err := e.store.UpsertPermission(context.Background(), email, item, perm); err != nil {
		t.Fatalf("failed to seed permission: %v", err)
	}
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var page map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("failed to decode page envelope: %v", err)
	}
	return page
}

func TestAuthentication(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing token is rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/user_permission/", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/user_permission/", "not-a-jwt", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("health is unauthenticated", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/health", "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
		rec = env.do(t, http.MethodGet, "/health/ready", "", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("login marker provisions and responds", func(t *testing.T) {
		token := env.tokenFor(t, "alice@example.edu", "user")
		rec := env.do(t, http.MethodGet, "/login/", token, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if rec.Body.String() != "LOGGED IN." {
			t.Errorf("expected marker body, got %q", rec.Body.String())
		}

		if _, err := env.store.GetUserByEmail(context.Background(), "alice@example.edu"); err != nil {
			t.Errorf("expected alice to be provisioned: %v", err)
		}
	})
}

func TestLocalIssuer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hash, _ := models.HashPassword("super-secret-pw")
	if _, err := env.store.CreateUser(ctx, &models.User{
		Username:     "manager",
		Email:        "manager@example.edu",
		PasswordHash: hash,
		Enabled:      true,
		Role:         "user",
	}); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	t.Run("login returns token pair", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"username": "manager",
			"password": "super-secret-pw",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var resp struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.AccessToken == "" || resp.RefreshToken == "" {
			t.Fatal("expected both tokens")
		}

		// The issued access token works against the protected surface.
		rec = env.do(t, http.MethodGet, "/user_permission/", resp.AccessToken, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 with issued token, got %d", rec.Code)
		}

		// And the refresh token yields a fresh pair.
		rec = env.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
			"refresh_token": resp.RefreshToken,
		})
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 from refresh, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/auth/login", "", map[string]string{
			"username": "manager",
			"password": "wrong",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("access token is rejected as refresh token", func(t *testing.T) {
		token := env.tokenFor(t, "manager@example.edu", "user")
		rec := env.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{
			"refresh_token": token,
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})
}

func TestPermissionEndpoints(t *testing.T) {
	env := newTestEnv(t)

	manager := "manager@example.edu"
	member := "member@example.edu"
	env.grant(t, manager, "Proj.A", models.PermissionManage)
	env.grant(t, member, "Proj.A", models.PermissionView)

	managerToken := env.tokenFor(t, manager, "user")
	memberToken := env.tokenFor(t, member, "user")

	t.Run("query returns page envelope", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/user_permission/", memberToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		page := decodePage(t, rec)
		if page["count"] != float64(1) {
			t.Errorf("expected count 1, got %v", page["count"])
		}
		if page["next"] != nil || page["previous"] != nil {
			t.Errorf("expected null page links, got %v / %v", page["next"], page["previous"])
		}
	})

	t.Run("manager sees item records", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/user_permission/?item=Proj.A", managerToken, nil)
		page := decodePage(t, rec)
		if page["count"] != float64(2) {
			t.Errorf("expected count 2, got %v", page["count"])
		}
	})

	t.Run("grant requires manage", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/user_permission/create_item_view_permission_record/", memberToken, map[string]string{
			"grantee_email": "friend@example.edu",
			"item":          "Proj.A",
		})
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("manager grants view", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/user_permission/create_item_view_permission_record/", managerToken, map[string]string{
			"grantee_email": "Friend@Example.edu",
			"item":          "Proj.A",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var perm models.UserPermission
		if err := json.Unmarshal(rec.Body.Bytes(), &perm); err != nil {
			t.Fatalf("failed to decode record: %v", err)
		}
		if perm.UserEmail != "friend@example.edu" || perm.Permission != "VIEW" {
			t.Errorf("unexpected record %+v", perm)
		}
	})

	t.Run("revoke missing record is 404", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/user_permission/remove_item_view_permission_record/", managerToken, map[string]string{
			"grantee_email": "stranger@example.edu",
			"item":          "Proj.A",
		})
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("manager revokes view", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/user_permission/remove_item_view_permission_record/", managerToken, map[string]string{
			"grantee_email": "friend@example.edu",
			"item":          "Proj.A",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("registration record needs no manage", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/user_permission/create_registration_permission_record/", memberToken, map[string]string{
			"grantee_email": "reader@example.edu",
			"item":          "n2c2",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var perm models.UserPermission
		if err := json.Unmarshal(rec.Body.Bytes(), &perm); err != nil {
			t.Fatalf("failed to decode record: %v", err)
		}
		if perm.Item != "SciReg.n2c2.profile.member@example.edu" {
			t.Errorf("unexpected profile item %q", perm.Item)
		}
	})

	t.Run("pagination splits at page size", func(t *testing.T) {
		bulk := "bulk@example.edu"
		for i := 0; i < 13; i++ {
			env.grant(t, bulk, fmt.Sprintf("Proj.Bulk.%02d", i), models.PermissionView)
		}
		bulkToken := env.tokenFor(t, bulk, "user")

		rec := env.do(t, http.MethodGet, "/user_permission/", bulkToken, nil)
		page := decodePage(t, rec)
		if page["count"] != float64(13) {
			t.Fatalf("expected count 13, got %v", page["count"])
		}
		if page["next"] == nil {
			t.Fatal("expected a next link")
		}
		if results := page["results"].([]any); len(results) != 10 {
			t.Errorf("expected 10 results on first page, got %d", len(results))
		}

		next, ok := page["next"].(string)
		if !ok || !strings.Contains(next, "page=2") {
			t.Fatalf("unexpected next link %v", page["next"])
		}
		rec = env.do(t, http.MethodGet, next, bulkToken, nil)
		page = decodePage(t, rec)
		if results := page["results"].([]any); len(results) != 3 {
			t.Errorf("expected 3 results on second page, got %d", len(results))
		}
		if page["previous"] == nil {
			t.Error("expected a previous link on page 2")
		}
	})
}

func TestRequestEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	project := &models.AuthorizableProject{Name: "Project A", ProjectKey: "Proj.A"}
	if _, err := env.store.CreateProject(ctx, project); err != nil {
		t.Fatalf("failed to create project: %v", err)
	}
	env.grant(t, "manager@example.edu", "Proj.A", models.PermissionManage)

	requesterToken := env.tokenFor(t, "requester@example.edu", "user")
	managerToken := env.tokenFor(t, "manager@example.edu", "user")

	var requestID string

	t.Run("create request", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/authorization_requests/", requesterToken, map[string]string{
			"project_key": "Proj.A",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var request models.UserPermissionRequest
		if err := json.Unmarshal(rec.Body.Bytes(), &request); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		requestID = request.ID
	})

	t.Run("listing is owner-scoped", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/authorization_requests/", requesterToken, nil)
		if page := decodePage(t, rec); page["count"] != float64(1) {
			t.Errorf("expected requester to see 1 request, got %v", page["count"])
		}

		rec = env.do(t, http.MethodGet, "/authorization_requests/", managerToken, nil)
		if page := decodePage(t, rec); page["count"] != float64(0) {
			t.Errorf("expected manager to see 0 requests, got %v", page["count"])
		}
	})

	t.Run("approval is manage-gated", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/authorization_requests/"+requestID+"/approve", requesterToken, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}

		rec = env.do(t, http.MethodPost, "/authorization_requests/"+requestID+"/approve", managerToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		perms, _ := env.store.ListPermissionsForItem(ctx, "Proj.A", "requester@example.edu")
		if len(perms) != 1 {
			t.Errorf("expected a VIEW record after approval, got %d", len(perms))
		}
	})
}

func TestProjectAndAgreementEndpoints(t *testing.T) {
	env := newTestEnv(t)

	adminToken := env.tokenFor(t, "admin@example.edu", "admin")
	userToken := env.tokenFor(t, "alice@example.edu", "user")

	t.Run("project creation is admin only", func(t *testing.T) {
		body := map[string]any{"name": "Project A", "project_key": "Proj.A"}

		rec := env.do(t, http.MethodPost, "/authorizable_projects/", userToken, body)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403 for non-admin, got %d", rec.Code)
		}

		rec = env.do(t, http.MethodPost, "/authorizable_projects/", adminToken, body)
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		rec = env.do(t, http.MethodPost, "/authorizable_projects/", adminToken, body)
		if rec.Code != http.StatusConflict {
			t.Errorf("expected 409 on duplicate key, got %d", rec.Code)
		}
	})

	t.Run("dua_required false round-trips", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/authorizable_projects/", adminToken, map[string]any{
			"name":         "Open Project",
			"project_key":  "Proj.Open",
			"dua_required": false,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var created map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if created["dua_required"] != false {
			t.Errorf("expected dua_required false in response, got %v", created["dua_required"])
		}

		project, err := env.store.GetProjectByKey(context.Background(), "Proj.Open")
		if err != nil {
			t.Fatalf("failed to load project: %v", err)
		}
		if project.DUARequired {
			t.Error("expected dua_required false to be persisted, got true")
		}
	})

	t.Run("agreement creation validates content", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/data_use_agreements/", adminToken, map[string]string{
			"name":                "Broken",
			"project_key":         "Proj.A",
			"agreement_text":      "text",
			"agreement_form_file": "form.pdf",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400 for text+form, got %d", rec.Code)
		}

		rec = env.do(t, http.MethodPost, "/data_use_agreements/", adminToken, map[string]string{
			"name":           "Standard Agreement",
			"project_key":    "Proj.A",
			"agreement_text": "Handle with care.",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("agreements list by project key", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/data_use_agreements/?project_key=Proj.A", userToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if page := decodePage(t, rec); page["count"] != float64(1) {
			t.Errorf("expected 1 agreement, got %v", page["count"])
		}

		rec = env.do(t, http.MethodGet, "/data_use_agreements/?project_key=Proj.Missing", userToken, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 for unknown project, got %d", rec.Code)
		}
	})

	t.Run("sign and project setup", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/data_use_agreements/?project_key=Proj.A", userToken, nil)
		page := decodePage(t, rec)
		results := page["results"].([]any)
		duaID := results[0].(map[string]any)["id"].(string)

		rec = env.do(t, http.MethodPost, "/data_use_agreement_sign/", userToken, map[string]string{
			"data_use_agreement": duaID,
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var sign models.DataUseAgreementSign
		if err := json.Unmarshal(rec.Body.Bytes(), &sign); err != nil {
			t.Fatalf("failed to decode signature: %v", err)
		}
		if sign.AgreementText != "Handle with care." {
			t.Errorf("expected text snapshot, got %q", sign.AgreementText)
		}

		rec = env.do(t, http.MethodGet, "/project_setup/Proj.A/", userToken, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		var setup policy.ProjectSetup
		if err := json.Unmarshal(rec.Body.Bytes(), &setup); err != nil {
			t.Fatalf("failed to decode setup: %v", err)
		}
		if len(setup.Signatures) != 1 {
			t.Errorf("expected 1 signature in setup, got %d", len(setup.Signatures))
		}
	})
}
