package relation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/repository"
	"github.com/tendant/simple-rbac/pkg/store"
)

type fixture struct {
	repos  *repository.Repositories
	ids    store.IDScheme
	read   *model.Permission
	write  *model.Permission
	editor *model.Role
	alice  *model.User
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := store.NewMemoryStore()
	repos := repository.NewRepositories(s)

	read, err := repos.Permissions.Create(ctx, &model.Permission{Action: "read", Resource: "users", IsActive: true})
	require.NoError(t, err)
	write, err := repos.Permissions.Create(ctx, &model.Permission{Action: "write", Resource: "users", IsActive: true})
	require.NoError(t, err)
	editor, err := repos.Roles.Create(ctx, &model.Role{Name: "editor", Permissions: []model.ID{read.ID, write.ID}, IsActive: true})
	require.NoError(t, err)
	alice, err := repos.Users.Create(ctx, &model.User{Username: "alice", Email: "alice@example.com", Roles: []model.ID{editor.ID}, IsActive: true})
	require.NoError(t, err)

	return &fixture{repos: repos, ids: s.IDs, read: read, write: write, editor: editor, alice: alice}
}

func TestListMembersScenario(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	userRoles := NewUserRoles(f.repos)

	roles, err := userRoles.ListMembers(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "editor", roles[0].Name)
	require.Len(t, roles[0].ResolvedPermissions, 2)
	assert.Equal(t, f.read.ID, roles[0].ResolvedPermissions[0].ID)
	assert.Equal(t, f.write.ID, roles[0].ResolvedPermissions[1].ID)
}

func TestRemoveMembersScenario(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	rolePerms := NewRolePermissions(f.repos)

	role, err := rolePerms.RemoveMembers(ctx, f.editor.ID, []model.ID{f.read.ID})
	require.NoError(t, err)
	require.Len(t, role.ResolvedPermissions, 1)
	assert.Equal(t, "write", role.ResolvedPermissions[0].Action)
	assert.Equal(t, "users", role.ResolvedPermissions[0].Resource)

	has, err := rolePerms.HasMember(ctx, f.editor.ID, f.read.ID)
	require.NoError(t, err)
	assert.False(t, has)

	has, err = rolePerms.HasMember(ctx, f.editor.ID, f.write.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestAddMembersIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	rolePerms := NewRolePermissions(f.repos)

	extra, err := f.repos.Permissions.Create(ctx, &model.Permission{Action: "delete", Resource: "users", IsActive: true})
	require.NoError(t, err)
	set := []model.ID{extra.ID, f.read.ID, extra.ID}

	first, err := rolePerms.AddMembers(ctx, f.editor.ID, set)
	require.NoError(t, err)
	second, err := rolePerms.AddMembers(ctx, f.editor.ID, set)
	require.NoError(t, err)

	want := []model.ID{f.read.ID, f.write.ID, extra.ID}
	assert.Equal(t, want, first.Permissions)
	assert.Equal(t, want, second.Permissions)
	assert.Len(t, second.ResolvedPermissions, 3)
}

func TestRemoveMembersToleratesAbsentIDs(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	rolePerms := NewRolePermissions(f.repos)

	role, err := rolePerms.RemoveMembers(ctx, f.editor.ID, []model.ID{f.ids.New(), f.write.ID})
	require.NoError(t, err)
	assert.Equal(t, []model.ID{f.read.ID}, role.Permissions)
}

func TestSetMembers(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	rolePerms := NewRolePermissions(f.repos)

	t.Run("empty clears", func(t *testing.T) {
		role, err := rolePerms.SetMembers(ctx, f.editor.ID, nil)
		require.NoError(t, err)
		assert.Empty(t, role.Permissions)
		assert.NotNil(t, role.ResolvedPermissions)
		assert.Empty(t, role.ResolvedPermissions)
	})

	t.Run("replace dedupes", func(t *testing.T) {
		role, err := rolePerms.SetMembers(ctx, f.editor.ID, []model.ID{f.write.ID, f.write.ID, f.read.ID})
		require.NoError(t, err)
		assert.Equal(t, []model.ID{f.write.ID, f.read.ID}, role.Permissions)
	})
}

func TestEmptyCandidatesRejected(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	rolePerms := NewRolePermissions(f.repos)

	_, err := rolePerms.AddMembers(ctx, f.editor.ID, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))

	_, err = rolePerms.RemoveMembers(ctx, f.editor.ID, []model.ID{""})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
}

func TestOwnerNotFound(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	userRoles := NewUserRoles(f.repos)
	ghost := f.ids.New()

	_, err := userRoles.AddMembers(ctx, ghost, []model.ID{f.editor.ID})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	_, err = userRoles.RemoveMembers(ctx, ghost, []model.ID{f.editor.ID})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	_, err = userRoles.SetMembers(ctx, ghost, nil)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	_, err = userRoles.ListMembers(ctx, ghost)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))

	_, err = userRoles.HasMember(ctx, ghost, f.editor.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestDanglingReferences(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	userRoles := NewUserRoles(f.repos)
	dangling := f.ids.New()

	user, err := userRoles.AddMembers(ctx, f.alice.ID, []model.ID{dangling})
	require.NoError(t, err)
	assert.Equal(t, []model.ID{f.editor.ID, dangling}, user.Roles)
	assert.Len(t, user.ResolvedRoles, 1)

	has, err := userRoles.HasMember(ctx, f.alice.ID, dangling)
	require.NoError(t, err)
	assert.True(t, has)

	roles, err := userRoles.ListMembers(ctx, f.alice.ID)
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestTargetCheck(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	strict := NewUserRoles(f.repos, WithTargetCheck(true))
	dangling := f.ids.New()

	_, err := strict.AddMembers(ctx, f.alice.ID, []model.ID{f.editor.ID, dangling})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
	assert.Equal(t, []string{dangling.String()}, apperrors.GetDetails(err)["missing"])

	_, err = strict.SetMembers(ctx, f.alice.ID, []model.ID{dangling})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))

	user, err := strict.SetMembers(ctx, f.alice.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, user.Roles)

	_, err = strict.RemoveMembers(ctx, f.alice.ID, []model.ID{dangling})
	assert.NoError(t, err)
}
