package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-rbac/pkg/httpx"
	"github.com/tendant/simple-rbac/pkg/observability"
	permissionapi "github.com/tendant/simple-rbac/pkg/permission/api"
	roleapi "github.com/tendant/simple-rbac/pkg/role/api"
	userapi "github.com/tendant/simple-rbac/pkg/user/api"
)

// PrefixConfig holds the mount points of the admin resources, relative to
// the base path.
type PrefixConfig struct {
	Permissions string
	Roles       string
	Users       string
}

// DefaultPrefixes returns /permissions, /roles and /users.
func DefaultPrefixes() PrefixConfig {
	return PrefixConfig{
		Permissions: "/permissions",
		Roles:       "/roles",
		Users:       "/users",
	}
}

// Config holds the handlers and middleware settings needed to set up routes.
type Config struct {
	BasePath     string
	PrefixConfig PrefixConfig

	PermissionHandle *permissionapi.Handle
	RoleHandle       *roleapi.Handle
	UserHandle       *userapi.Handle

	Middleware MiddlewareConfig
	// Metrics is optional. When set, requests are recorded and /metrics is served.
	Metrics *observability.Metrics
}

// SetupRoutes mounts the admin API under cfg.BasePath. The middleware chain
// lives in a group, so router may already carry routes such as /healthz.
func SetupRoutes(router chi.Router, cfg Config) {
	prefixes := cfg.PrefixConfig
	if prefixes == (PrefixConfig{}) {
		prefixes = DefaultPrefixes()
	}

	if cfg.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	router.Group(func(r chi.Router) {
		for _, mw := range Middlewares(cfg.Middleware) {
			r.Use(mw)
		}
		if cfg.Metrics != nil {
			r.Use(cfg.Metrics.Middleware)
		}

		r.Route(cfg.BasePath, func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			r.NotFound(httpx.NotFound)
			r.MethodNotAllowed(httpx.MethodNotAllowed)

			r.Mount(prefixes.Permissions, permissionapi.Handler(cfg.PermissionHandle))
			r.Mount(prefixes.Roles, roleapi.Handler(cfg.RoleHandle))
			r.Mount(prefixes.Users, userapi.Handler(cfg.UserHandle))
		})
	})
}
