// Package app wires the store, repositories, services and HTTP handlers of
// the admin API together.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/simple-rbac/pkg/config"
	"github.com/tendant/simple-rbac/pkg/hasher"
	"github.com/tendant/simple-rbac/pkg/observability"
	"github.com/tendant/simple-rbac/pkg/permission"
	permissionapi "github.com/tendant/simple-rbac/pkg/permission/api"
	"github.com/tendant/simple-rbac/pkg/relation"
	"github.com/tendant/simple-rbac/pkg/repository"
	"github.com/tendant/simple-rbac/pkg/role"
	roleapi "github.com/tendant/simple-rbac/pkg/role/api"
	"github.com/tendant/simple-rbac/pkg/router"
	"github.com/tendant/simple-rbac/pkg/store"
	"github.com/tendant/simple-rbac/pkg/user"
	userapi "github.com/tendant/simple-rbac/pkg/user/api"
	"github.com/tendant/simple-rbac/pkg/validate"
)

// Services groups the domain services.
type Services struct {
	Permissions *permission.PermissionService
	Roles       *role.RoleService
	Users       *user.UserService
}

// App is a fully wired admin API over one store.
type App struct {
	Config    config.Config
	Store     *store.Store
	Repos     *repository.Repositories
	Services  Services
	Validator *validate.Validator
	Metrics   *observability.Metrics
}

// New opens the store selected by cfg and wires everything on top of it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	s, err := store.New(ctx, cfg.Store.Persistence, cfg.Store.StoreFactoryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Persistence, err)
	}
	a, err := NewWithStore(s, cfg)
	if err != nil {
		_ = s.Close(ctx)
		return nil, err
	}
	slog.Info("Store opened", "persistence", cfg.Store.Persistence, "strict_references", cfg.StrictReferences)
	return a, nil
}

// NewWithStore wires the services over an already opened store.
func NewWithStore(s *store.Store, cfg config.Config, opts ...repository.Option) (*App, error) {
	h, err := hasher.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}

	repos := repository.NewRepositories(s, opts...)
	check := relation.WithTargetCheck(cfg.StrictReferences)

	permissions := permission.NewPermissionService(repos.Permissions)
	roles := role.NewRoleService(repos.Roles, relation.NewRolePermissions(repos, check))
	users := user.NewUserService(repos.Users, relation.NewUserRoles(repos, check), roles, h)

	return &App{
		Config: cfg,
		Store:  s,
		Repos:  repos,
		Services: Services{
			Permissions: permissions,
			Roles:       roles,
			Users:       users,
		},
		Validator: validate.New(s.IDs.Valid),
		Metrics:   observability.NewMetrics(),
	}, nil
}

// Routes mounts the admin API, its middleware and /metrics on r.
func (a *App) Routes(r chi.Router) {
	router.SetupRoutes(r, router.Config{
		BasePath:         a.Config.HTTP.BasePath,
		PermissionHandle: permissionapi.NewHandle(a.Services.Permissions, a.Validator),
		RoleHandle:       roleapi.NewHandle(a.Services.Roles, a.Validator),
		UserHandle:       userapi.NewHandle(a.Services.Users, a.Validator),
		Middleware: router.MiddlewareConfig{
			CORSOrigins: a.Config.HTTP.CORSOrigins,
			RateLimit:   a.Config.HTTP.RateLimit,
			RateWindow:  a.Config.HTTP.RateWindow,
			Production:  a.Config.HTTP.Production,
		},
		Metrics: a.Metrics,
	})
}

// Close releases the store.
func (a *App) Close(ctx context.Context) error {
	return a.Store.Close(ctx)
}
