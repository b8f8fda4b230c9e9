// Package api provides the HTTP surface of the authorization service.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hms-dbmi/sciauthz/internal/logger"
	"github.com/hms-dbmi/sciauthz/pkg/authz/api/auth"
	"github.com/hms-dbmi/sciauthz/pkg/authz/api/handlers"
	apiMiddleware "github.com/hms-dbmi/sciauthz/pkg/authz/api/middleware"
	"github.com/hms-dbmi/sciauthz/pkg/authz/policy"
	"github.com/hms-dbmi/sciauthz/pkg/authz/store"
	"github.com/hms-dbmi/sciauthz/pkg/metrics"
)

// NewRouter creates and configures the chi router with all middleware and routes.
//
// Path shapes (including trailing slashes) match what existing clients
// already call, so this service can drop in behind them unchanged.
//
// Routes:
//   - GET  /health, /health/ready - probes, unauthenticated
//   - POST /auth/login, /auth/refresh - local token issuer, unauthenticated
//   - GET  /login/ - authenticated handshake marker
//   - GET  /user_permission/ - permission query (id, item, email, page)
//   - POST /user_permission/create_item_view_permission_record/
//   - POST /user_permission/remove_item_view_permission_record/
//   - POST /user_permission/create_registration_permission_record/
//   - GET/POST /authorization_requests/, POST /authorization_requests/{id}/approve
//   - GET  /authorizable_projects/ (POST is admin only)
//   - GET  /project_setup/{project_key}/
//   - GET  /data_use_agreements/ (POST is admin only)
//   - GET/POST /data_use_agreement_sign/
func NewRouter(engine *policy.Engine, jwtService *auth.JWTService, s *store.GORMStore, m *metrics.AuthzMetrics) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(m))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(s)

	// Health routes - unauthenticated
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	authHandler := handlers.NewAuthHandler(s, jwtService)
	permissionHandler := handlers.NewPermissionHandler(engine)
	requestHandler := handlers.NewRequestHandler(engine)
	projectHandler := handlers.NewProjectHandler(engine, s)
	duaHandler := handlers.NewDUAHandler(engine)

	// Local token issuer - unauthenticated
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
	})

	// Everything below requires a verified identity
	r.Group(func(r chi.Router) {
		r.Use(apiMiddleware.JWTAuth(jwtService))

		r.Get("/login/", authHandler.LoginMarker)

		r.Route("/user_permission", func(r chi.Router) {
			r.Get("/", permissionHandler.Query)
			r.Post("/create_item_view_permission_record/", permissionHandler.CreateItemView)
			r.Post("/remove_item_view_permission_record/", permissionHandler.RemoveItemView)
			r.Post("/create_registration_permission_record/", permissionHandler.CreateRegistrationView)
		})

		r.Route("/authorization_requests", func(r chi.Router) {
			r.Get("/", requestHandler.List)
			r.Post("/", requestHandler.Create)
			r.Post("/{id}/approve", requestHandler.Approve)
		})

		r.Route("/authorizable_projects", func(r chi.Router) {
			r.Get("/", projectHandler.List)

			// Registration replaces what used to be a manual admin task
			r.Group(func(r chi.Router) {
				r.Use(apiMiddleware.RequireAdmin())
				r.Post("/", projectHandler.Create)
			})
		})

		r.Get("/project_setup/{project_key}/", projectHandler.Setup)

		r.Route("/data_use_agreements", func(r chi.Router) {
			r.Get("/", duaHandler.List)

			r.Group(func(r chi.Router) {
				r.Use(apiMiddleware.RequireAdmin())
				r.Post("/", projectHandler.CreateAgreement)
			})
		})

		r.Route("/data_use_agreement_sign", func(r chi.Router) {
			r.Get("/", duaHandler.ListSignatures)
			r.Post("/", duaHandler.Sign)
		})
	})

	return r
}

// isHealthPath returns true if the request path is a healthcheck endpoint.
func isHealthPath(path string) bool {
	return path == "/health" || strings.HasPrefix(path, "/health/")
}

// requestLogger is a custom middleware that logs requests using the internal
// logger and records per-route latency when metrics are enabled.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
//   - Healthcheck requests are logged at DEBUG level to reduce noise
func requestLogger(m *metrics.AuthzMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := middleware.GetReqID(r.Context())

			logger.Debug("API request started",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			// Observe under the route pattern rather than the raw path so
			// parameterized routes share one label value.
			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			m.ObserveRequest(route, duration.Seconds())

			logArgs := []any{
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", duration.String(),
			}

			// Log healthcheck requests at DEBUG to avoid polluting logs in k8s
			if isHealthPath(r.URL.Path) {
				logger.Debug("API request completed", logArgs...)
			} else {
				logger.Info("API request completed", logArgs...)
			}
		})
	}
}
