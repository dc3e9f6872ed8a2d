// Package relation manages the weak reference sets between entities:
// Role.permissions -> Permission and User.roles -> Role.
//
// Adds and removes use the store's atomic set operators, so concurrent adds
// and removes on the same owner never lose each other's changes. SetMembers
// replaces the whole set and is last-write-wins against concurrent writers.
//
// Target existence is not checked by default; dangling references are
// tolerated and dropped when the set is resolved. WithTargetCheck turns on
// validation for Add and Set.
package relation

import (
	"context"
	"log/slog"

	apperrors "github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/repository"
	"github.com/tendant/simple-rbac/pkg/store"
)

// Existence reports which of a set of ids are not stored.
type Existence interface {
	MissingIDs(ctx context.Context, ids []model.ID) ([]model.ID, error)
}

// Binding ties a Membership to one owner field.
type Binding[T any, R comparable, M any] struct {
	Owner    string // owner entity name, for errors
	Target   string // member entity name, for errors
	Field    string // reference field on the owner
	Populate R      // relation that resolves Field
	Members  func(T) []model.ID
	Resolved func(T) []M
	Targets  Existence
}

// Option configures a Membership.
type Option func(*config)

type config struct {
	checkTargets bool
}

// WithTargetCheck rejects Add and Set calls that reference ids with no stored target.
func WithTargetCheck(enabled bool) Option {
	return func(c *config) { c.checkTargets = enabled }
}

// Membership implements add/remove/set/list/has over one reference set.
type Membership[T store.Document[T], R comparable, M any] struct {
	owners  *repository.Repository[T, R]
	binding Binding[T, R, M]
	cfg     config
}

func New[T store.Document[T], R comparable, M any](owners *repository.Repository[T, R], binding Binding[T, R, M], opts ...Option) *Membership[T, R, M] {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Membership[T, R, M]{owners: owners, binding: binding, cfg: cfg}
}

// AddMembers unions ids into the owner's set and returns the owner with the
// set resolved. Re-adding a present id is a no-op.
func (m *Membership[T, R, M]) AddMembers(ctx context.Context, ownerID model.ID, ids []model.ID) (T, error) {
	var zero T
	ids = model.UniqueIDs(ids)
	if len(ids) == 0 {
		return zero, apperrors.InvalidInput(m.binding.Field, "at least one id is required")
	}
	if err := m.checkTargets(ctx, ids); err != nil {
		return zero, err
	}

	owner, found, err := m.owners.UpdateByID(ctx, ownerID, store.Update{
		AddToSet: map[string][]model.ID{m.binding.Field: ids},
	}, m.binding.Populate)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, apperrors.NotFound(m.binding.Owner, ownerID.String())
	}
	slog.Info("Members added", "owner", m.binding.Owner, "owner_id", ownerID, "field", m.binding.Field, "count", len(ids))
	return owner, nil
}

// RemoveMembers removes ids from the owner's set. Ids that are not present
// are ignored.
func (m *Membership[T, R, M]) RemoveMembers(ctx context.Context, ownerID model.ID, ids []model.ID) (T, error) {
	var zero T
	ids = model.UniqueIDs(ids)
	if len(ids) == 0 {
		return zero, apperrors.InvalidInput(m.binding.Field, "at least one id is required")
	}

	owner, found, err := m.owners.UpdateByID(ctx, ownerID, store.Update{
		Pull: map[string][]model.ID{m.binding.Field: ids},
	}, m.binding.Populate)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, apperrors.NotFound(m.binding.Owner, ownerID.String())
	}
	slog.Info("Members removed", "owner", m.binding.Owner, "owner_id", ownerID, "field", m.binding.Field, "count", len(ids))
	return owner, nil
}

// SetMembers replaces the owner's set. An empty ids clears it.
func (m *Membership[T, R, M]) SetMembers(ctx context.Context, ownerID model.ID, ids []model.ID) (T, error) {
	var zero T
	ids = model.UniqueIDs(ids)
	if err := m.checkTargets(ctx, ids); err != nil {
		return zero, err
	}

	owner, found, err := m.owners.UpdateByID(ctx, ownerID, store.Update{
		Set: map[string]any{m.binding.Field: ids},
	}, m.binding.Populate)
	if err != nil {
		return zero, err
	}
	if !found {
		return zero, apperrors.NotFound(m.binding.Owner, ownerID.String())
	}
	slog.Info("Members replaced", "owner", m.binding.Owner, "owner_id", ownerID, "field", m.binding.Field, "count", len(ids))
	return owner, nil
}

// ListMembers returns the resolved members in stored order, without dangling ids.
func (m *Membership[T, R, M]) ListMembers(ctx context.Context, ownerID model.ID) ([]M, error) {
	owner, found, err := m.owners.FindByID(ctx, ownerID, m.binding.Populate)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.NotFound(m.binding.Owner, ownerID.String())
	}
	return m.binding.Resolved(owner), nil
}

// HasMember reports whether id is in the owner's raw set, whether or not the
// target still exists.
func (m *Membership[T, R, M]) HasMember(ctx context.Context, ownerID, id model.ID) (bool, error) {
	var none R
	owner, found, err := m.owners.FindByID(ctx, ownerID, none)
	if err != nil {
		return false, err
	}
	if !found {
		return false, apperrors.NotFound(m.binding.Owner, ownerID.String())
	}
	return model.ContainsID(m.binding.Members(owner), id), nil
}

func (m *Membership[T, R, M]) checkTargets(ctx context.Context, ids []model.ID) error {
	if !m.cfg.checkTargets || m.binding.Targets == nil || len(ids) == 0 {
		return nil
	}
	missing, err := m.binding.Targets.MissingIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return apperrors.MissingReferences(m.binding.Target, model.Strings(missing))
	}
	return nil
}

// RolePermissions is the Role.permissions -> Permission membership.
type RolePermissions = Membership[*model.Role, model.RoleRelation, *model.Permission]

func NewRolePermissions(repos *repository.Repositories, opts ...Option) *RolePermissions {
	return New(repos.Roles, Binding[*model.Role, model.RoleRelation, *model.Permission]{
		Owner:    "role",
		Target:   "permission",
		Field:    model.FieldPermissions,
		Populate: model.RolePermissions,
		Members:  func(r *model.Role) []model.ID { return r.Permissions },
		Resolved: func(r *model.Role) []*model.Permission { return r.ResolvedPermissions },
		Targets:  repos.Permissions,
	}, opts...)
}

// UserRoles is the User.roles -> Role membership. Resolved roles carry their
// permissions.
type UserRoles = Membership[*model.User, model.UserRelation, *model.Role]

func NewUserRoles(repos *repository.Repositories, opts ...Option) *UserRoles {
	return New(repos.Users, Binding[*model.User, model.UserRelation, *model.Role]{
		Owner:    "user",
		Target:   "role",
		Field:    model.FieldRoles,
		Populate: model.UserRolesPermissions,
		Members:  func(u *model.User) []model.ID { return u.Roles },
		Resolved: func(u *model.User) []*model.Role { return u.ResolvedRoles },
		Targets:  repos.Roles,
	}, opts...)
}
