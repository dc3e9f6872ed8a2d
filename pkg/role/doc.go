// Package role provides role management for simple-rbac.
//
// A role has a unique lowercase name, a description and a set of weak
// references to permissions. Deleting a role never deletes its permissions,
// and a role that references a deleted permission simply resolves without it.
//
// # Overview
//
// The package provides:
//   - Role CRUD with soft delete and restore
//   - Permission membership: add, remove, replace, list and check
//   - Role lookup by name, used by the user listing filter
//   - Active/inactive statistics
//
// # Basic Usage
//
//	repos := repository.NewRepositories(st)
//	roleService := role.NewRoleService(repos.Roles, relation.NewRolePermissions(repos))
//
//	editor, err := roleService.Create(ctx, role.CreateInput{
//		Name:        "Editor",
//		Description: "Edits posts",
//		Permissions: []model.ID{readPosts.ID},
//	})
//	// editor.Name == "editor"
//
//	editor, err = roleService.AddPermissions(ctx, editor.ID, []model.ID{updatePosts.ID})
//	for _, p := range editor.ResolvedPermissions {
//		fmt.Println(p.Action, p.Resource)
//	}
//
// # Common Patterns
//
// Adding a permission that is already present is a no-op, and removing one
// that is absent is not an error:
//
//	roleService.AddPermissions(ctx, id, []model.ID{p})    // [p]
//	roleService.AddPermissions(ctx, id, []model.ID{p})    // still [p]
//	roleService.RemovePermissions(ctx, id, []model.ID{q}) // still [p]
//
// Clearing every permission:
//
//	roleService.SetPermissions(ctx, id, nil)
package role
