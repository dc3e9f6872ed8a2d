package role

import (
	"context"
	"log/slog"

	apperrors "github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/query"
	"github.com/tendant/simple-rbac/pkg/relation"
	"github.com/tendant/simple-rbac/pkg/repository"
	"github.com/tendant/simple-rbac/pkg/store"
)

// Repository is the role repository.
type Repository = repository.Repository[*model.Role, model.RoleRelation]

// CreateInput holds the fields of a new role. IsActive defaults to true.
type CreateInput struct {
	Name        string
	Description string
	Permissions []model.ID
	IsActive    *bool
}

// UpdateInput holds the fields to change. Nil fields are left as they are.
type UpdateInput struct {
	Name        *string
	Description *string
	IsActive    *bool
}

// Stats summarises the role collection.
type Stats struct {
	Total              int64   `json:"total"`
	Active             int64   `json:"active"`
	Inactive           int64   `json:"inactive"`
	ActivePercentage   float64 `json:"activePercentage"`
	InactivePercentage float64 `json:"inactivePercentage"`
}

// RoleService manages roles and their permission sets. Role names are
// stored lowercased and are unique.
type RoleService struct {
	repo        *Repository
	permissions *relation.RolePermissions
}

func NewRoleService(repo *Repository, permissions *relation.RolePermissions) *RoleService {
	return &RoleService{repo: repo, permissions: permissions}
}

// List returns a page of roles with their permissions resolved, newest first.
func (s *RoleService) List(ctx context.Context, c query.RoleCriteria) (model.Page[*model.Role], error) {
	return s.repo.FindPage(ctx, query.ComposeRoles(c), model.RolePermissions)
}

// Get returns the role with its permissions, active or not.
func (s *RoleService) Get(ctx context.Context, id model.ID) (*model.Role, error) {
	r, found, err := s.repo.FindByID(ctx, id, model.RolePermissions)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("role", id.String())
	}
	return r, nil
}

// GetByName returns the role with its permissions. The name is matched
// case-insensitively.
func (s *RoleService) GetByName(ctx context.Context, name string) (*model.Role, error) {
	name = model.NormalizeRoleName(name)
	r, found, err := s.repo.FindOne(ctx, query.Eq{Field: model.FieldName, Value: name}, model.RolePermissions)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("role", name)
	}
	return r, nil
}

// ResolveRoleName implements query.RoleResolver.
func (s *RoleService) ResolveRoleName(ctx context.Context, name string) (model.ID, bool, error) {
	r, found, err := s.repo.FindOne(ctx, query.Eq{Field: model.FieldName, Value: model.NormalizeRoleName(name)}, model.RoleNone)
	if err != nil || !found {
		return "", false, err
	}
	return r.ID, true, nil
}

// Create stores a new role. A name already taken by any role, active or
// not, is rejected before anything is written.
func (s *RoleService) Create(ctx context.Context, in CreateInput) (*model.Role, error) {
	name := model.NormalizeRoleName(in.Name)
	if name == "" {
		return nil, apperrors.InvalidInput("name", "role name cannot be empty")
	}

	taken, err := s.repo.Exists(ctx, query.Eq{Field: model.FieldName, Value: name})
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.Conflict("role", "name", name)
	}

	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}
	created, err := s.repo.Create(ctx, &model.Role{
		Name:        name,
		Description: in.Description,
		Permissions: model.UniqueIDs(in.Permissions),
		IsActive:    isActive,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Role created", "role_id", created.ID, "name", name, "permissions", len(created.Permissions))
	return s.Get(ctx, created.ID)
}

func (s *RoleService) Update(ctx context.Context, id model.ID, in UpdateInput) (*model.Role, error) {
	set := map[string]any{}
	if in.Name != nil {
		name := model.NormalizeRoleName(*in.Name)
		if name == "" {
			return nil, apperrors.InvalidInput("name", "role name cannot be empty")
		}
		taken, err := s.repo.Exists(ctx, query.AllOf(
			query.Eq{Field: model.FieldName, Value: name},
			query.Ne{Field: model.FieldID, Value: id},
		))
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperrors.Conflict("role", "name", name)
		}
		set[model.FieldName] = name
	}
	if in.Description != nil {
		set[model.FieldDescription] = *in.Description
	}
	if in.IsActive != nil {
		set[model.FieldIsActive] = *in.IsActive
	}

	r, found, err := s.repo.UpdateByID(ctx, id, store.Update{Set: set}, model.RolePermissions)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("role", id.String())
	}
	slog.Info("Role updated", "role_id", id)
	return r, nil
}

// SoftDelete deactivates the role. Users keep referencing it.
func (s *RoleService) SoftDelete(ctx context.Context, id model.ID) (*model.Role, error) {
	return s.mutate(ctx, id, "deactivated", s.repo.SoftDelete)
}

func (s *RoleService) Restore(ctx context.Context, id model.ID) (*model.Role, error) {
	return s.mutate(ctx, id, "restored", s.repo.Restore)
}

// HardDelete removes the role. Its permissions are not touched.
func (s *RoleService) HardDelete(ctx context.Context, id model.ID) (*model.Role, error) {
	return s.mutate(ctx, id, "deleted", s.repo.HardDelete)
}

func (s *RoleService) mutate(ctx context.Context, id model.ID, verb string, op func(context.Context, model.ID) (*model.Role, bool, error)) (*model.Role, error) {
	r, found, err := op(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("role", id.String())
	}
	slog.Info("Role "+verb, "role_id", id)
	return r, nil
}

func (s *RoleService) AddPermissions(ctx context.Context, id model.ID, permissionIDs []model.ID) (*model.Role, error) {
	return s.permissions.AddMembers(ctx, id, permissionIDs)
}

func (s *RoleService) RemovePermissions(ctx context.Context, id model.ID, permissionIDs []model.ID) (*model.Role, error) {
	return s.permissions.RemoveMembers(ctx, id, permissionIDs)
}

// SetPermissions replaces the role's permission set; an empty list clears it.
func (s *RoleService) SetPermissions(ctx context.Context, id model.ID, permissionIDs []model.ID) (*model.Role, error) {
	return s.permissions.SetMembers(ctx, id, permissionIDs)
}

func (s *RoleService) ListPermissions(ctx context.Context, id model.ID) ([]*model.Permission, error) {
	return s.permissions.ListMembers(ctx, id)
}

func (s *RoleService) HasPermission(ctx context.Context, id, permissionID model.ID) (bool, error) {
	return s.permissions.HasMember(ctx, id, permissionID)
}

func (s *RoleService) Stats(ctx context.Context) (Stats, error) {
	total, err := s.repo.Count(ctx, nil)
	if err != nil {
		return Stats{}, err
	}
	active, err := s.repo.Count(ctx, query.Eq{Field: model.FieldIsActive, Value: true})
	if err != nil {
		return Stats{}, err
	}
	inactive := total - active
	return Stats{
		Total:              total,
		Active:             active,
		Inactive:           inactive,
		ActivePercentage:   model.Percentage(active, total),
		InactivePercentage: model.Percentage(inactive, total),
	}, nil
}
