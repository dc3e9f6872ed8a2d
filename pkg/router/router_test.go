package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-rbac/pkg/hasher"
	"github.com/tendant/simple-rbac/pkg/observability"
	"github.com/tendant/simple-rbac/pkg/permission"
	permissionapi "github.com/tendant/simple-rbac/pkg/permission/api"
	"github.com/tendant/simple-rbac/pkg/relation"
	"github.com/tendant/simple-rbac/pkg/repository"
	"github.com/tendant/simple-rbac/pkg/role"
	roleapi "github.com/tendant/simple-rbac/pkg/role/api"
	"github.com/tendant/simple-rbac/pkg/store"
	"github.com/tendant/simple-rbac/pkg/user"
	userapi "github.com/tendant/simple-rbac/pkg/user/api"
	"github.com/tendant/simple-rbac/pkg/validate"
	"golang.org/x/crypto/bcrypt"
)

// createTestConfig wires the admin handlers over an in-memory store.
func createTestConfig(t *testing.T) Config {
	t.Helper()
	s := store.NewMemoryStore()
	repos := repository.NewRepositories(s)
	v := validate.New(s.IDs.Valid)

	h, err := hasher.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	roles := role.NewRoleService(repos.Roles, relation.NewRolePermissions(repos))
	users := user.NewUserService(repos.Users, relation.NewUserRoles(repos), roles, h)

	return Config{
		BasePath:         "/api/admin",
		PermissionHandle: permissionapi.NewHandle(permission.NewPermissionService(repos.Permissions), v),
		RoleHandle:       roleapi.NewHandle(roles, v),
		UserHandle:       userapi.NewHandle(users, v),
		Middleware: MiddlewareConfig{
			CORSOrigins: []string{"http://localhost:3000"},
			RateLimit:   1000,
			RateWindow:  time.Minute,
		},
		Metrics: observability.NewMetrics(),
	}
}

func newTestRouter(t *testing.T, cfg Config) chi.Router {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	SetupRoutes(r, cfg)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestSetupRoutes(t *testing.T) {
	r := newTestRouter(t, createTestConfig(t))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"list permissions", http.MethodGet, "/api/admin/permissions", "", http.StatusOK},
		{"permission stats", http.MethodGet, "/api/admin/permissions/stats", "", http.StatusOK},
		{"create permission", http.MethodPost, "/api/admin/permissions", `{"action":"read","resource":"posts","description":"Read posts"}`, http.StatusCreated},
		{"list roles", http.MethodGet, "/api/admin/roles", "", http.StatusOK},
		{"create role", http.MethodPost, "/api/admin/roles", `{"name":"editor","description":"Edits posts"}`, http.StatusCreated},
		{"role by name", http.MethodGet, "/api/admin/roles/name/editor", "", http.StatusOK},
		{"list users", http.MethodGet, "/api/admin/users?page=1&pageSize=5", "", http.StatusOK},
		{"user stats", http.MethodGet, "/api/admin/users/stats", "", http.StatusOK},
		{"invalid id", http.MethodGet, "/api/admin/users/not-an-id", "", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestHealthzUntouchedByAdminMiddleware(t *testing.T) {
	r := newTestRouter(t, createTestConfig(t))

	rec := serve(r, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Frame-Options"))
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	r := newTestRouter(t, createTestConfig(t))

	rec := serve(r, http.MethodGet, "/api/admin/nothing-here", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, false, env["success"])
	assert.Equal(t, "NOT_FOUND", env["code"])
}

func TestSecurityHeaders(t *testing.T) {
	r := newTestRouter(t, createTestConfig(t))

	rec := serve(r, http.MethodGet, "/api/admin/roles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, createTestConfig(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/admin/users", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.Middleware.RateLimit = 2
	r := newTestRouter(t, cfg)

	for i := 0; i < 2; i++ {
		rec := serve(r, http.MethodGet, "/api/admin/permissions", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := serve(r, http.MethodGet, "/api/admin/permissions", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.Equal(t, "RATE_LIMITED", env["code"])

	// /healthz sits outside the limited group.
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/healthz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, createTestConfig(t))

	serve(r, http.MethodGet, "/api/admin/roles", "")
	rec := serve(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rbac_http_requests_total")

	cfg := createTestConfig(t)
	cfg.Metrics = nil
	r = newTestRouter(t, cfg)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/metrics", "").Code)
}

func TestPrefixConfiguration(t *testing.T) {
	cfg := createTestConfig(t)
	cfg.BasePath = "/admin"
	cfg.PrefixConfig = PrefixConfig{Permissions: "/perms", Roles: "/groups", Users: "/accounts"}
	r := newTestRouter(t, cfg)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/admin/perms", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/admin/groups", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/admin/accounts", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/admin/users", "").Code)
}

func TestDefaultPrefixes(t *testing.T) {
	assert.Equal(t, PrefixConfig{Permissions: "/permissions", Roles: "/roles", Users: "/users"}, DefaultPrefixes())
}
