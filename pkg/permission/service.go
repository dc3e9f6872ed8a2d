package permission

import (
	"context"
	"log/slog"

	apperrors "github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/query"
	"github.com/tendant/simple-rbac/pkg/repository"
	"github.com/tendant/simple-rbac/pkg/store"
)

// Repository is the permission repository.
type Repository = repository.Repository[*model.Permission, model.PermissionRelation]

// CreateInput holds the fields of a new permission. IsActive defaults to true.
type CreateInput struct {
	Action      string
	Resource    string
	Description string
	IsActive    *bool
}

// UpdateInput holds the fields to change. Nil fields are left as they are.
type UpdateInput struct {
	Action      *string
	Resource    *string
	Description *string
	IsActive    *bool
}

// Stats summarises the permission collection.
type Stats struct {
	Total                int64    `json:"total"`
	Active               int64    `json:"active"`
	Inactive             int64    `json:"inactive"`
	ActivePercentage     float64  `json:"activePercentage"`
	InactivePercentage   float64  `json:"inactivePercentage"`
	UniqueActionsCount   int      `json:"uniqueActionsCount"`
	UniqueResourcesCount int      `json:"uniqueResourcesCount"`
	UniqueActions        []string `json:"uniqueActions"`
	UniqueResources      []string `json:"uniqueResources"`
}

// PermissionService manages permissions. Actions and resources are stored
// trimmed and lowercased, and each (action, resource) pair is unique.
type PermissionService struct {
	repo *Repository
}

func NewPermissionService(repo *Repository) *PermissionService {
	return &PermissionService{repo: repo}
}

var activeOnly = query.Eq{Field: model.FieldIsActive, Value: true}

func (s *PermissionService) List(ctx context.Context, c query.PermissionCriteria) (model.Page[*model.Permission], error) {
	return s.repo.FindPage(ctx, query.ComposePermissions(c), model.PermissionNone)
}

// ListActive returns every active permission in listing order.
func (s *PermissionService) ListActive(ctx context.Context) ([]*model.Permission, error) {
	return s.repo.FindAll(ctx, activeOnly, query.PermissionOrder, model.PermissionNone)
}

// Get returns the permission with the given id, active or not.
func (s *PermissionService) Get(ctx context.Context, id model.ID) (*model.Permission, error) {
	p, found, err := s.repo.FindByID(ctx, id, model.PermissionNone)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("permission", id.String())
	}
	return p, nil
}

// GetByActionResource returns the active permission for the pair.
func (s *PermissionService) GetByActionResource(ctx context.Context, action, resource string) (*model.Permission, error) {
	action, resource = model.NormalizeKey(action), model.NormalizeKey(resource)
	p, found, err := s.repo.FindOne(ctx, query.AllOf(pairFilter(action, resource), activeOnly), model.PermissionNone)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("permission", action+":"+resource)
	}
	return p, nil
}

// Exists reports whether an active permission exists for the pair.
func (s *PermissionService) Exists(ctx context.Context, action, resource string) (bool, error) {
	action, resource = model.NormalizeKey(action), model.NormalizeKey(resource)
	return s.repo.Exists(ctx, query.AllOf(pairFilter(action, resource), activeOnly))
}

// FindByAction returns the active permissions for action, ordered by resource.
func (s *PermissionService) FindByAction(ctx context.Context, action string) ([]*model.Permission, error) {
	return s.repo.FindAll(ctx,
		query.AllOf(query.Eq{Field: model.FieldAction, Value: model.NormalizeKey(action)}, activeOnly),
		query.Sort{query.Asc(model.FieldResource)},
		model.PermissionNone)
}

// FindByResource returns the active permissions for resource, ordered by action.
func (s *PermissionService) FindByResource(ctx context.Context, resource string) ([]*model.Permission, error) {
	return s.repo.FindAll(ctx,
		query.AllOf(query.Eq{Field: model.FieldResource, Value: model.NormalizeKey(resource)}, activeOnly),
		query.Sort{query.Asc(model.FieldAction)},
		model.PermissionNone)
}

// Create stores a new permission. A pair that already exists, active or
// not, is a conflict.
func (s *PermissionService) Create(ctx context.Context, in CreateInput) (*model.Permission, error) {
	action, resource := model.NormalizeKey(in.Action), model.NormalizeKey(in.Resource)
	if action == "" || resource == "" {
		return nil, apperrors.InvalidInput("permission", "action and resource are required")
	}

	exists, err := s.repo.Exists(ctx, pairFilter(action, resource))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.Conflict("permission", "action and resource", action+":"+resource)
	}

	isActive := true
	if in.IsActive != nil {
		isActive = *in.IsActive
	}
	p, err := s.repo.Create(ctx, &model.Permission{
		Action:      action,
		Resource:    resource,
		Description: in.Description,
		IsActive:    isActive,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Permission created", "permission_id", p.ID, "action", action, "resource", resource)
	return p, nil
}

// BulkCreate creates the permissions in order and stops at the first failure.
// Permissions created before the failure are kept.
func (s *PermissionService) BulkCreate(ctx context.Context, inputs []CreateInput) ([]*model.Permission, error) {
	if len(inputs) == 0 {
		return nil, apperrors.InvalidInput("permissions", "at least one permission is required")
	}
	created := make([]*model.Permission, 0, len(inputs))
	for i, in := range inputs {
		p, err := s.Create(ctx, in)
		if err != nil {
			slog.Error("Bulk permission create stopped", "index", i, "created", len(created), "err", err)
			return created, err
		}
		created = append(created, p)
	}
	return created, nil
}

func (s *PermissionService) Update(ctx context.Context, id model.ID, in UpdateInput) (*model.Permission, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	set := map[string]any{}
	action, resource := current.Action, current.Resource
	if in.Action != nil {
		action = model.NormalizeKey(*in.Action)
		set[model.FieldAction] = action
	}
	if in.Resource != nil {
		resource = model.NormalizeKey(*in.Resource)
		set[model.FieldResource] = resource
	}
	if in.Description != nil {
		set[model.FieldDescription] = *in.Description
	}
	if in.IsActive != nil {
		set[model.FieldIsActive] = *in.IsActive
	}

	if action != current.Action || resource != current.Resource {
		taken, err := s.repo.Exists(ctx, query.AllOf(
			pairFilter(action, resource),
			query.Ne{Field: model.FieldID, Value: id},
		))
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperrors.Conflict("permission", "action and resource", action+":"+resource)
		}
	}

	p, found, err := s.repo.UpdateByID(ctx, id, store.Update{Set: set}, model.PermissionNone)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("permission", id.String())
	}
	slog.Info("Permission updated", "permission_id", id)
	return p, nil
}

// SoftDelete deactivates the permission. Roles keep referencing it.
func (s *PermissionService) SoftDelete(ctx context.Context, id model.ID) (*model.Permission, error) {
	return s.mutate(ctx, id, "deactivated", s.repo.SoftDelete)
}

func (s *PermissionService) Restore(ctx context.Context, id model.ID) (*model.Permission, error) {
	return s.mutate(ctx, id, "restored", s.repo.Restore)
}

// HardDelete removes the permission. References to it from roles become
// dangling and are skipped when roles are resolved.
func (s *PermissionService) HardDelete(ctx context.Context, id model.ID) (*model.Permission, error) {
	return s.mutate(ctx, id, "deleted", s.repo.HardDelete)
}

func (s *PermissionService) mutate(ctx context.Context, id model.ID, verb string, op func(context.Context, model.ID) (*model.Permission, bool, error)) (*model.Permission, error) {
	p, found, err := op(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound("permission", id.String())
	}
	slog.Info("Permission "+verb, "permission_id", id)
	return p, nil
}

// UniqueActions returns the distinct actions of active permissions, sorted.
func (s *PermissionService) UniqueActions(ctx context.Context) ([]string, error) {
	return s.repo.DistinctStrings(ctx, model.FieldAction, activeOnly)
}

// UniqueResources returns the distinct resources of active permissions, sorted.
func (s *PermissionService) UniqueResources(ctx context.Context) ([]string, error) {
	return s.repo.DistinctStrings(ctx, model.FieldResource, activeOnly)
}

// ActionMap groups the resources of active permissions under their action.
func (s *PermissionService) ActionMap(ctx context.Context) (query.ActionMap, error) {
	perms, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return query.GroupActionResources(perms), nil
}

func (s *PermissionService) Stats(ctx context.Context) (Stats, error) {
	total, err := s.repo.Count(ctx, nil)
	if err != nil {
		return Stats{}, err
	}
	active, err := s.repo.Count(ctx, activeOnly)
	if err != nil {
		return Stats{}, err
	}
	actions, err := s.UniqueActions(ctx)
	if err != nil {
		return Stats{}, err
	}
	resources, err := s.UniqueResources(ctx)
	if err != nil {
		return Stats{}, err
	}
	inactive := total - active
	return Stats{
		Total:                total,
		Active:               active,
		Inactive:             inactive,
		ActivePercentage:     model.Percentage(active, total),
		InactivePercentage:   model.Percentage(inactive, total),
		UniqueActionsCount:   len(actions),
		UniqueResourcesCount: len(resources),
		UniqueActions:        actions,
		UniqueResources:      resources,
	}, nil
}

func pairFilter(action, resource string) query.Filter {
	return query.And{
		query.Eq{Field: model.FieldAction, Value: action},
		query.Eq{Field: model.FieldResource, Value: resource},
	}
}
