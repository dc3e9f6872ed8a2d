package repository

import (
	"context"

	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/query"
	"github.com/tendant/simple-rbac/pkg/store"
)

// resolve loads the documents with the given ids in one query. Missing ids
// are simply absent from the result. Inactive documents are included.
func resolve[T store.Document[T]](ctx context.Context, coll store.Collection[T], ids []model.ID) (map[model.ID]T, error) {
	ids = model.UniqueIDs(ids)
	out := make(map[model.ID]T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	docs, err := coll.Find(ctx, store.FindOptions{Filter: query.IDIn(ids)})
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		out[doc.DocID()] = doc
	}
	return out, nil
}

// pick returns the resolved documents for refs in reference order, skipping
// dangling references.
func pick[T any](refs []model.ID, resolved map[model.ID]T) []T {
	out := make([]T, 0, len(refs))
	for _, id := range refs {
		if doc, ok := resolved[id]; ok {
			out = append(out, doc)
		}
	}
	return out
}

// PopulateRoles resolves Role.Permissions.
func PopulateRoles(perms store.Collection[*model.Permission]) Populator[*model.Role, model.RoleRelation] {
	return func(ctx context.Context, roles []*model.Role, rel model.RoleRelation) error {
		if rel != model.RolePermissions {
			return nil
		}
		var refs []model.ID
		for _, r := range roles {
			refs = append(refs, r.Permissions...)
		}
		resolved, err := resolve(ctx, perms, refs)
		if err != nil {
			return err
		}
		for _, r := range roles {
			r.ResolvedPermissions = pick(r.Permissions, resolved)
		}
		return nil
	}
}

// PopulateUsers resolves User.Roles and, for UserRolesPermissions, the
// permissions of each resolved role.
func PopulateUsers(roles store.Collection[*model.Role], perms store.Collection[*model.Permission]) Populator[*model.User, model.UserRelation] {
	populateRoles := PopulateRoles(perms)
	return func(ctx context.Context, users []*model.User, rel model.UserRelation) error {
		if rel != model.UserRoles && rel != model.UserRolesPermissions {
			return nil
		}
		var refs []model.ID
		for _, u := range users {
			refs = append(refs, u.Roles...)
		}
		resolved, err := resolve(ctx, roles, refs)
		if err != nil {
			return err
		}
		if rel == model.UserRolesPermissions && len(resolved) > 0 {
			all := make([]*model.Role, 0, len(resolved))
			for _, r := range resolved {
				all = append(all, r)
			}
			if err := populateRoles(ctx, all, model.RolePermissions); err != nil {
				return err
			}
		}
		for _, u := range users {
			u.ResolvedRoles = pick(u.Roles, resolved)
		}
		return nil
	}
}

// Repositories bundles the repositories of all entity types over one store.
type Repositories struct {
	Permissions *Repository[*model.Permission, model.PermissionRelation]
	Roles       *Repository[*model.Role, model.RoleRelation]
	Users       *Repository[*model.User, model.UserRelation]
}

func NewRepositories(s *store.Store, opts ...Option) *Repositories {
	return &Repositories{
		Permissions: New[*model.Permission, model.PermissionRelation]("permission", s.Permissions, s.IDs, nil, opts...),
		Roles:       New("role", s.Roles, s.IDs, PopulateRoles(s.Permissions), opts...),
		Users:       New("user", s.Users, s.IDs, PopulateUsers(s.Roles, s.Permissions), opts...),
	}
}
