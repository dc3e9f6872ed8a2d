package user

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/hasher"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/query"
	"github.com/tendant/simple-rbac/pkg/relation"
	"github.com/tendant/simple-rbac/pkg/repository"
	"github.com/tendant/simple-rbac/pkg/role"
	"github.com/tendant/simple-rbac/pkg/store"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

type testEnv struct {
	users *UserService
	roles *role.RoleService
	repos *repository.Repositories
	ids   store.IDScheme
	hash  hasher.PasswordHasher
}

// countingResolver records how often a role name is resolved.
type countingResolver struct {
	query.RoleResolver
	calls int
}

func (c *countingResolver) ResolveRoleName(ctx context.Context, name string) (model.ID, bool, error) {
	c.calls++
	return c.RoleResolver.ResolveRoleName(ctx, name)
}

// countingUsers counts user store reads.
type countingUsers struct {
	store.Collection[*model.User]
	finds, counts int
}

func (c *countingUsers) Find(ctx context.Context, opts store.FindOptions) ([]*model.User, error) {
	c.finds++
	return c.Collection.Find(ctx, opts)
}

func (c *countingUsers) Count(ctx context.Context, filter query.Filter) (int64, error) {
	c.counts++
	return c.Collection.Count(ctx, filter)
}

func newTestEnv(t *testing.T) (*testEnv, *countingUsers, *countingResolver) {
	t.Helper()
	s := store.NewMemoryStore()
	users := &countingUsers{Collection: s.Users}
	s.Users = users
	repos := repository.NewRepositories(s)

	roles := role.NewRoleService(repos.Roles, relation.NewRolePermissions(repos))
	resolver := &countingResolver{RoleResolver: roles}
	h, err := hasher.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	env := &testEnv{
		users: NewUserService(repos.Users, relation.NewUserRoles(repos), resolver, h, WithClock(func() time.Time { return fixedNow })),
		roles: roles,
		repos: repos,
		ids:   s.IDs,
		hash:  h,
	}
	return env, users, resolver
}

func (e *testEnv) createUser(t *testing.T, username string, roles ...model.ID) *model.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), CreateInput{
		Username: username,
		Email:    username + "@example.com",
		Password: "Password123!",
		Roles:    roles,
	})
	require.NoError(t, err)
	return u
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	env, _, _ := newTestEnv(t)
	editor, err := env.roles.Create(ctx, role.CreateInput{Name: "editor", Description: "Editors"})
	require.NoError(t, err)

	u, err := env.users.Create(ctx, CreateInput{
		Username: "alice",
		Email:    " Alice@Example.COM ",
		Password: "Password123!",
		Roles:    []model.ID{editor.ID, editor.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.False(t, u.EmailVerified)
	assert.Equal(t, []model.ID{editor.ID}, u.Roles)
	require.Len(t, u.ResolvedRoles, 1)
	assert.Equal(t, "editor", u.ResolvedRoles[0].Name)

	assert.NotEqual(t, "Password123!", u.Password)
	ok, err := env.hash.Verify("Password123!", u.Password)
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := env.users.Create(ctx, CreateInput{Username: "alice", Email: "other@example.com", Password: "Password123!"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))
		assert.Equal(t, "username", apperrors.GetDetails(err)["field"])
	})

	t.Run("duplicate email ignores case", func(t *testing.T) {
		_, err := env.users.Create(ctx, CreateInput{Username: "alice2", Email: "ALICE@example.com", Password: "Password123!"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))
		assert.Equal(t, "email", apperrors.GetDetails(err)["field"])
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := env.users.Create(ctx, CreateInput{Username: "bob", Email: "bob@example.com"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
	})
}

func TestListUsers(t *testing.T) {
	ctx := context.Background()
	env, users, resolver := newTestEnv(t)

	editor, err := env.roles.Create(ctx, role.CreateInput{Name: "editor", Description: "Editors"})
	require.NoError(t, err)
	viewer, err := env.roles.Create(ctx, role.CreateInput{Name: "viewer", Description: "Viewers"})
	require.NoError(t, err)

	alice := env.createUser(t, "alice", editor.ID)
	env.createUser(t, "bob", viewer.ID)
	carol := env.createUser(t, "carol", editor.ID, viewer.ID)
	_, err = env.users.VerifyEmail(ctx, alice.ID)
	require.NoError(t, err)
	_, err = env.users.SoftDelete(ctx, carol.ID)
	require.NoError(t, err)

	yes, no := true, false

	t.Run("all users newest first", func(t *testing.T) {
		page, err := env.users.List(ctx, query.UserCriteria{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
		require.Len(t, page.Items, 3)
		assert.Equal(t, "carol", page.Items[0].Username)
		assert.NotNil(t, page.Items[0].ResolvedRoles)
	})

	t.Run("search matches username or email", func(t *testing.T) {
		page, err := env.users.List(ctx, query.UserCriteria{Search: "ALI"})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "alice", page.Items[0].Username)

		page, err = env.users.List(ctx, query.UserCriteria{Search: "example.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Total)
	})

	t.Run("role by name", func(t *testing.T) {
		page, err := env.users.List(ctx, query.UserCriteria{Role: "Editor"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
	})

	t.Run("role by id skips name lookup", func(t *testing.T) {
		before := resolver.calls
		page, err := env.users.List(ctx, query.UserCriteria{Role: viewer.ID.String()})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
		assert.Equal(t, before, resolver.calls)
	})

	t.Run("flags are anded", func(t *testing.T) {
		page, err := env.users.List(ctx, query.UserCriteria{Role: "editor", IsActive: &yes})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "alice", page.Items[0].Username)

		page, err = env.users.List(ctx, query.UserCriteria{EmailVerified: &no, IsActive: &yes})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "bob", page.Items[0].Username)
	})

	t.Run("unknown role name short-circuits", func(t *testing.T) {
		finds, counts := users.finds, users.counts
		page, err := env.users.List(ctx, query.UserCriteria{Role: "ghost", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Empty(t, page.Items)
		assert.Equal(t, int64(0), page.Total)
		assert.Equal(t, 0, page.TotalPages)
		assert.Equal(t, finds, users.finds)
		assert.Equal(t, counts, users.counts)
	})
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	env, _, _ := newTestEnv(t)
	alice := env.createUser(t, "alice")
	env.createUser(t, "bob")

	taken := "bob"
	_, err := env.users.Update(ctx, alice.ID, UpdateInput{Username: &taken})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConflict))

	email := "Alice@New.example.com"
	password := "NewPassword1!"
	inactive := false
	u, err := env.users.Update(ctx, alice.ID, UpdateInput{Email: &email, Password: &password, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "alice@new.example.com", u.Email)
	assert.False(t, u.IsActive)
	ok, err := env.hash.Verify("NewPassword1!", u.Password)
	require.NoError(t, err)
	assert.True(t, ok)

	same := "alice"
	_, err = env.users.Update(ctx, alice.ID, UpdateInput{Username: &same})
	assert.NoError(t, err)

	_, err = env.users.Update(ctx, env.ids.New(), UpdateInput{})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestVerifyEmailAndLogin(t *testing.T) {
	ctx := context.Background()
	env, _, _ := newTestEnv(t)
	alice := env.createUser(t, "alice")
	assert.Nil(t, alice.LastLogin)

	u, err := env.users.VerifyEmail(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, u.EmailVerified)

	u, err = env.users.RecordLogin(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, u.LastLogin)
	assert.Equal(t, fixedNow, *u.LastLogin)

	_, err = env.users.RecordLogin(ctx, env.ids.New())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestLookups(t *testing.T) {
	ctx := context.Background()
	env, _, _ := newTestEnv(t)
	alice := env.createUser(t, "alice")

	u, err := env.users.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	u, err = env.users.GetByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, u.ID)

	_, err = env.users.GetByUsername(ctx, "nobody")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestUserRoles(t *testing.T) {
	ctx := context.Background()
	env, _, _ := newTestEnv(t)

	read, err := env.repos.Permissions.Create(ctx, &model.Permission{Action: "read", Resource: "users", IsActive: true})
	require.NoError(t, err)
	write, err := env.repos.Permissions.Create(ctx, &model.Permission{Action: "write", Resource: "users", IsActive: true})
	require.NoError(t, err)
	editor, err := env.roles.Create(ctx, role.CreateInput{Name: "editor", Description: "Editors", Permissions: []model.ID{read.ID, write.ID}})
	require.NoError(t, err)
	viewer, err := env.roles.Create(ctx, role.CreateInput{Name: "viewer", Description: "Viewers", Permissions: []model.ID{read.ID}})
	require.NoError(t, err)

	alice := env.createUser(t, "alice", editor.ID)

	roles, err := env.users.ListRoles(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, roles, 1)
	assert.Equal(t, "editor", roles[0].Name)
	require.Len(t, roles[0].ResolvedPermissions, 2)
	assert.Equal(t, read.ID, roles[0].ResolvedPermissions[0].ID)
	assert.Equal(t, write.ID, roles[0].ResolvedPermissions[1].ID)

	u, err := env.users.AddRoles(ctx, alice.ID, []model.ID{viewer.ID, editor.ID})
	require.NoError(t, err)
	assert.Equal(t, []model.ID{editor.ID, viewer.ID}, u.Roles)

	u, err = env.users.RemoveRoles(ctx, alice.ID, []model.ID{editor.ID})
	require.NoError(t, err)
	assert.Equal(t, []model.ID{viewer.ID}, u.Roles)

	has, err := env.users.HasRole(ctx, alice.ID, editor.ID)
	require.NoError(t, err)
	assert.False(t, has)

	u, err = env.users.AssignRoles(ctx, alice.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, u.Roles)

	_, err = env.roles.HardDelete(ctx, viewer.ID)
	require.NoError(t, err)
	u, err = env.users.AssignRoles(ctx, alice.ID, []model.ID{viewer.ID, editor.ID})
	require.NoError(t, err)
	assert.Len(t, u.Roles, 2)
	require.Len(t, u.ResolvedRoles, 1)
	assert.Equal(t, "editor", u.ResolvedRoles[0].Name)
}

func TestUserStats(t *testing.T) {
	ctx := context.Background()
	env, _, _ := newTestEnv(t)

	stats, err := env.users.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	env.createUser(t, "carol")
	_, err = env.users.VerifyEmail(ctx, alice.ID)
	require.NoError(t, err)
	_, err = env.users.SoftDelete(ctx, bob.ID)
	require.NoError(t, err)

	stats, err = env.users.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{
		Total:              3,
		Active:             2,
		Inactive:           1,
		Verified:           1,
		Unverified:         2,
		ActivePercentage:   66.67,
		VerifiedPercentage: 33.33,
	}, stats)

	restored, err := env.users.Restore(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, restored.IsActive)

	_, err = env.users.HardDelete(ctx, bob.ID)
	require.NoError(t, err)
	_, err = env.users.Get(ctx, bob.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}
