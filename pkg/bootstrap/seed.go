// Package bootstrap loads fixture data (permissions, roles and users) into
// a store. Seeding is idempotent: records that already exist are kept and
// only missing ones are created.
package bootstrap

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/permission"
	"github.com/tendant/simple-rbac/pkg/query"
	"github.com/tendant/simple-rbac/pkg/repository"
	"github.com/tendant/simple-rbac/pkg/role"
	"github.com/tendant/simple-rbac/pkg/user"
	"github.com/tendant/simple-rbac/pkg/validate"
	"gopkg.in/yaml.v3"
)

//go:embed fixture.yaml
var defaultFixture []byte

// Fixture is the seed file format.
type Fixture struct {
	Permissions []PermissionFixture `yaml:"permissions" validate:"dive"`
	Roles       []RoleFixture       `yaml:"roles" validate:"dive"`
	Users       []UserFixture       `yaml:"users" validate:"dive"`
}

type PermissionFixture struct {
	Action      string `yaml:"action" validate:"required,min=2,max=50,slug"`
	Resource    string `yaml:"resource" validate:"required,min=2,max=50,slug"`
	Description string `yaml:"description" validate:"required,min=5,max=300"`
	IsActive    *bool  `yaml:"isActive"`
}

// RoleFixture references permissions as "action:resource". Either side may
// be "*", and "*" alone grants every permission.
type RoleFixture struct {
	Name        string   `yaml:"name" validate:"required,min=2,max=50"`
	Description string   `yaml:"description" validate:"required,min=5,max=500"`
	Permissions []string `yaml:"permissions"`
	IsActive    *bool    `yaml:"isActive"`
}

// UserFixture references roles by name.
type UserFixture struct {
	Username      string   `yaml:"username" validate:"required,min=3,max=30,username"`
	Email         string   `yaml:"email" validate:"required,max=255,email"`
	Password      string   `yaml:"password" validate:"required,min=8,max=72"`
	EmailVerified bool     `yaml:"emailVerified"`
	IsActive      *bool    `yaml:"isActive"`
	Roles         []string `yaml:"roles"`
}

// DefaultFixture returns the built-in demo data set.
func DefaultFixture() (*Fixture, error) {
	return ParseFixture(defaultFixture)
}

// LoadFixture reads a YAML fixture from path.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file %s: %w", path, err)
	}
	return ParseFixture(data)
}

func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &f, nil
}

// SeedConfig carries the dependencies of Seed.
type SeedConfig struct {
	Repos       *repository.Repositories
	Permissions *permission.PermissionService
	Roles       *role.RoleService
	Users       *user.UserService
	// Validator is optional. When set the fixture is checked with the same
	// rules the HTTP API applies.
	Validator *validate.Validator
	// Reset hard-deletes every user, role and permission before seeding.
	Reset bool
}

// SeedRecord describes one seeded record.
type SeedRecord struct {
	ID      model.ID
	Key     string
	Created bool
}

// SeedResult lists what Seed created or found.
type SeedResult struct {
	Removed     int
	Permissions []SeedRecord
	Roles       []SeedRecord
	Users       []SeedRecord
}

// Seed loads f into the store behind cfg.
func Seed(ctx context.Context, cfg SeedConfig, f *Fixture) (*SeedResult, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid seed configuration: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("fixture is required")
	}
	if cfg.Validator != nil {
		if err := cfg.Validator.Struct(f); err != nil {
			return nil, fmt.Errorf("invalid fixture: %w", err)
		}
	}

	result := &SeedResult{}
	if cfg.Reset {
		removed, err := reset(ctx, cfg.Repos)
		if err != nil {
			return nil, fmt.Errorf("failed to reset store: %w", err)
		}
		result.Removed = removed
		slog.Info("Store reset before seeding", "removed", removed)
	}

	perms, err := seedPermissions(ctx, cfg, f.Permissions, result)
	if err != nil {
		return nil, err
	}
	roles, err := seedRoles(ctx, cfg, f.Roles, perms, result)
	if err != nil {
		return nil, err
	}
	if err := seedUsers(ctx, cfg, f.Users, roles, result); err != nil {
		return nil, err
	}

	slog.Info("Seed completed",
		"permissions_created", countCreated(result.Permissions),
		"roles_created", countCreated(result.Roles),
		"users_created", countCreated(result.Users))
	return result, nil
}

func validateConfig(cfg SeedConfig) error {
	if cfg.Repos == nil {
		return fmt.Errorf("Repos is required")
	}
	if cfg.Permissions == nil || cfg.Roles == nil || cfg.Users == nil {
		return fmt.Errorf("Permissions, Roles and Users services are required")
	}
	return nil
}

// reset removes users first so no record is left pointing at a deleted one.
func reset(ctx context.Context, repos *repository.Repositories) (int, error) {
	removed := 0
	users, err := repos.Users.FindAll(ctx, nil, nil, model.UserNone)
	if err != nil {
		return 0, err
	}
	for _, u := range users {
		if _, _, err := repos.Users.HardDelete(ctx, u.ID); err != nil {
			return removed, err
		}
		removed++
	}
	roles, err := repos.Roles.FindAll(ctx, nil, nil, model.RoleNone)
	if err != nil {
		return removed, err
	}
	for _, r := range roles {
		if _, _, err := repos.Roles.HardDelete(ctx, r.ID); err != nil {
			return removed, err
		}
		removed++
	}
	perms, err := repos.Permissions.FindAll(ctx, nil, nil, model.PermissionNone)
	if err != nil {
		return removed, err
	}
	for _, p := range perms {
		if _, _, err := repos.Permissions.HardDelete(ctx, p.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func seedPermissions(ctx context.Context, cfg SeedConfig, fixtures []PermissionFixture, result *SeedResult) ([]*model.Permission, error) {
	perms := make([]*model.Permission, 0, len(fixtures))
	for _, pf := range fixtures {
		action, resource := model.NormalizeKey(pf.Action), model.NormalizeKey(pf.Resource)
		existing, found, err := cfg.Repos.Permissions.FindOne(ctx, query.And{
			query.Eq{Field: model.FieldAction, Value: action},
			query.Eq{Field: model.FieldResource, Value: resource},
		}, model.PermissionNone)
		if err != nil {
			return nil, fmt.Errorf("failed to look up permission %s:%s: %w", action, resource, err)
		}
		if found {
			perms = append(perms, existing)
			result.Permissions = append(result.Permissions, SeedRecord{ID: existing.ID, Key: existing.Key()})
			continue
		}

		created, err := cfg.Permissions.Create(ctx, permission.CreateInput{
			Action:      action,
			Resource:    resource,
			Description: pf.Description,
			IsActive:    pf.IsActive,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create permission %s:%s: %w", action, resource, err)
		}
		perms = append(perms, created)
		result.Permissions = append(result.Permissions, SeedRecord{ID: created.ID, Key: created.Key(), Created: true})
	}
	return perms, nil
}

func seedRoles(ctx context.Context, cfg SeedConfig, fixtures []RoleFixture, perms []*model.Permission, result *SeedResult) (map[string]model.ID, error) {
	ids := make(map[string]model.ID, len(fixtures))
	for _, rf := range fixtures {
		name := model.NormalizeRoleName(rf.Name)
		permissionIDs, err := ResolvePermissionRefs(rf.Permissions, perms)
		if err != nil {
			return nil, fmt.Errorf("role %s: %w", name, err)
		}

		existing, found, err := cfg.Repos.Roles.FindOne(ctx, query.Eq{Field: model.FieldName, Value: name}, model.RoleNone)
		if err != nil {
			return nil, fmt.Errorf("failed to look up role %s: %w", name, err)
		}
		if found {
			if len(permissionIDs) > 0 {
				if _, err := cfg.Roles.AddPermissions(ctx, existing.ID, permissionIDs); err != nil {
					return nil, fmt.Errorf("failed to grant permissions to role %s: %w", name, err)
				}
			}
			ids[name] = existing.ID
			result.Roles = append(result.Roles, SeedRecord{ID: existing.ID, Key: name})
			continue
		}

		created, err := cfg.Roles.Create(ctx, role.CreateInput{
			Name:        name,
			Description: rf.Description,
			Permissions: permissionIDs,
			IsActive:    rf.IsActive,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create role %s: %w", name, err)
		}
		ids[name] = created.ID
		result.Roles = append(result.Roles, SeedRecord{ID: created.ID, Key: name, Created: true})
	}
	return ids, nil
}

func seedUsers(ctx context.Context, cfg SeedConfig, fixtures []UserFixture, roles map[string]model.ID, result *SeedResult) error {
	for _, uf := range fixtures {
		roleIDs := make([]model.ID, 0, len(uf.Roles))
		for _, name := range uf.Roles {
			id, ok := roles[model.NormalizeRoleName(name)]
			if !ok {
				return fmt.Errorf("user %s: unknown role %q", uf.Username, name)
			}
			roleIDs = append(roleIDs, id)
		}

		existing, found, err := cfg.Repos.Users.FindOne(ctx, query.Eq{Field: model.FieldUsername, Value: strings.TrimSpace(uf.Username)}, model.UserNone)
		if err != nil {
			return fmt.Errorf("failed to look up user %s: %w", uf.Username, err)
		}
		if found {
			if len(roleIDs) > 0 {
				if _, err := cfg.Users.AddRoles(ctx, existing.ID, roleIDs); err != nil {
					return fmt.Errorf("failed to assign roles to user %s: %w", uf.Username, err)
				}
			}
			result.Users = append(result.Users, SeedRecord{ID: existing.ID, Key: existing.Username})
			continue
		}

		created, err := cfg.Users.Create(ctx, user.CreateInput{
			Username:      uf.Username,
			Email:         uf.Email,
			Password:      uf.Password,
			Roles:         roleIDs,
			EmailVerified: uf.EmailVerified,
			IsActive:      uf.IsActive,
		})
		if err != nil {
			return fmt.Errorf("failed to create user %s: %w", uf.Username, err)
		}
		result.Users = append(result.Users, SeedRecord{ID: created.ID, Key: created.Username, Created: true})
	}
	return nil
}

// ResolvePermissionRefs turns "action:resource" references into ids of
// matching permissions. A reference that matches nothing is an error.
func ResolvePermissionRefs(refs []string, perms []*model.Permission) ([]model.ID, error) {
	var ids []model.ID
	for _, ref := range refs {
		action, resource, err := splitRef(ref)
		if err != nil {
			return nil, err
		}
		matched := false
		for _, p := range perms {
			if (action == "*" || action == p.Action) && (resource == "*" || resource == p.Resource) {
				ids = append(ids, p.ID)
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("permission reference %q matches no permission", ref)
		}
	}
	return model.UniqueIDs(ids), nil
}

func splitRef(ref string) (string, string, error) {
	ref = model.NormalizeKey(ref)
	if ref == "*" {
		return "*", "*", nil
	}
	action, resource, ok := strings.Cut(ref, ":")
	if !ok || action == "" || resource == "" {
		return "", "", fmt.Errorf("invalid permission reference %q, want action:resource", ref)
	}
	return action, resource, nil
}

func countCreated(records []SeedRecord) int {
	count := 0
	for _, r := range records {
		if r.Created {
			count++
		}
	}
	return count
}
