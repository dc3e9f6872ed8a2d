package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/query"
)

// runCollectionSuite checks the Collection contract against any backend.
// newRoles must return an empty role collection.
func runCollectionSuite(t *testing.T, ids IDScheme, newRoles func(t *testing.T) Collection[*model.Role]) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mkRole := func(name string, offset time.Duration, perms ...model.ID) *model.Role {
		return &model.Role{
			ID:          ids.New(),
			Name:        name,
			Description: "role " + name,
			Permissions: perms,
			IsActive:    true,
			CreatedAt:   base.Add(offset),
			UpdatedAt:   base.Add(offset),
		}
	}

	t.Run("insert and find one", func(t *testing.T) {
		c := newRoles(t)
		r := mkRole("admin", 0)
		require.NoError(t, c.Insert(ctx, r))

		got, found, err := c.FindOne(ctx, query.Eq{Field: model.FieldID, Value: r.ID})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "admin", got.Name)
		assert.Equal(t, r.ID, got.ID)

		_, found, err = c.FindOne(ctx, query.Eq{Field: model.FieldName, Value: "nobody"})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("unique index", func(t *testing.T) {
		c := newRoles(t)
		require.NoError(t, c.Insert(ctx, mkRole("admin", 0)))
		err := c.Insert(ctx, mkRole("admin", time.Second))
		require.Error(t, err)
		assert.True(t, IsDuplicateKey(err))

		other := mkRole("editor", 2*time.Second)
		require.NoError(t, c.Insert(ctx, other))
		_, _, err = c.Update(ctx, other.ID, Update{Set: map[string]any{model.FieldName: "admin"}})
		assert.True(t, IsDuplicateKey(err))
	})

	t.Run("find with filter sort skip limit", func(t *testing.T) {
		c := newRoles(t)
		for i := 0; i < 7; i++ {
			r := mkRole(fmt.Sprintf("role%d", i), time.Duration(i)*time.Minute)
			r.IsActive = i%2 == 0
			require.NoError(t, c.Insert(ctx, r))
		}

		all, err := c.Find(ctx, FindOptions{Sort: query.NewestFirst})
		require.NoError(t, err)
		require.Len(t, all, 7)
		assert.Equal(t, "role6", all[0].Name)
		assert.Equal(t, "role0", all[6].Name)

		active, err := c.Find(ctx, FindOptions{
			Filter: query.Eq{Field: model.FieldIsActive, Value: true},
			Sort:   query.Sort{query.Asc(model.FieldName)},
			Skip:   1,
			Limit:  2,
		})
		require.NoError(t, err)
		require.Len(t, active, 2)
		assert.Equal(t, "role2", active[0].Name)
		assert.Equal(t, "role4", active[1].Name)

		n, err := c.Count(ctx, query.Eq{Field: model.FieldIsActive, Value: false})
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		none, err := c.Find(ctx, FindOptions{Skip: 50})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("search is case insensitive and literal", func(t *testing.T) {
		c := newRoles(t)
		require.NoError(t, c.Insert(ctx, mkRole("Super.Admin", 0)))
		require.NoError(t, c.Insert(ctx, mkRole("superxadmin", time.Second)))

		got, err := c.Find(ctx, FindOptions{Filter: query.ContainsFold{Field: model.FieldName, Term: "super.ADMIN"}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Super.Admin", got[0].Name)
	})

	t.Run("add to set and pull", func(t *testing.T) {
		c := newRoles(t)
		p1, p2, p3 := ids.New(), ids.New(), ids.New()
		r := mkRole("editor", 0, p1)
		require.NoError(t, c.Insert(ctx, r))

		got, found, err := c.Update(ctx, r.ID, Update{AddToSet: map[string][]model.ID{model.FieldPermissions: {p1, p2, p3}}})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []model.ID{p1, p2, p3}, got.Permissions)

		got, _, err = c.Update(ctx, r.ID, Update{AddToSet: map[string][]model.ID{model.FieldPermissions: {p2}}})
		require.NoError(t, err)
		assert.Equal(t, []model.ID{p1, p2, p3}, got.Permissions)

		got, _, err = c.Update(ctx, r.ID, Update{Pull: map[string][]model.ID{model.FieldPermissions: {p2, ids.New()}}})
		require.NoError(t, err)
		assert.Equal(t, []model.ID{p1, p3}, got.Permissions)

		has, err := c.Count(ctx, query.AllOf(
			query.Eq{Field: model.FieldID, Value: r.ID},
			query.Eq{Field: model.FieldPermissions, Value: p3},
		))
		require.NoError(t, err)
		assert.Equal(t, int64(1), has)

		_, found, err = c.Update(ctx, ids.New(), Update{Set: map[string]any{model.FieldIsActive: false}})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("set fields", func(t *testing.T) {
		c := newRoles(t)
		r := mkRole("viewer", 0, ids.New())
		require.NoError(t, c.Insert(ctx, r))

		later := base.Add(time.Hour)
		got, found, err := c.Update(ctx, r.ID, Update{Set: map[string]any{
			model.FieldIsActive:    false,
			model.FieldPermissions: []model.ID{},
			model.FieldUpdatedAt:   later,
		}})
		require.NoError(t, err)
		require.True(t, found)
		assert.False(t, got.IsActive)
		assert.Empty(t, got.Permissions)
		assert.True(t, later.Equal(got.UpdatedAt))
		assert.Equal(t, "viewer", got.Name)
	})

	t.Run("delete", func(t *testing.T) {
		c := newRoles(t)
		r := mkRole("temp", 0)
		require.NoError(t, c.Insert(ctx, r))

		removed, found, err := c.Delete(ctx, r.ID)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "temp", removed.Name)

		_, found, err = c.Delete(ctx, r.ID)
		require.NoError(t, err)
		assert.False(t, found)

		n, err := c.Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("distinct", func(t *testing.T) {
		c := newRoles(t)
		p1, p2 := ids.New(), ids.New()
		require.NoError(t, c.Insert(ctx, mkRole("a", 0, p1, p2)))
		require.NoError(t, c.Insert(ctx, mkRole("b", time.Second, p2)))

		values, err := c.Distinct(ctx, model.FieldName, nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, []any{"a", "b"}, values)
	})
}

func TestMemoryCollection(t *testing.T) {
	runCollectionSuite(t, UUIDs{}, func(t *testing.T) Collection[*model.Role] {
		return NewMemoryCollection[*model.Role](RolesCollection, RoleIndexes)
	})
}

func TestMemoryCollectionIsolation(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCollection[*model.Role](RolesCollection, RoleIndexes)
	r := &model.Role{ID: "r1", Name: "admin", Permissions: []model.ID{"p1"}}
	require.NoError(t, c.Insert(ctx, r))

	r.Permissions[0] = "changed"
	got, _, err := c.FindOne(ctx, query.Eq{Field: model.FieldID, Value: model.ID("r1")})
	require.NoError(t, err)
	assert.Equal(t, []model.ID{"p1"}, got.Permissions)

	got.Name = "mutated"
	again, _, err := c.FindOne(ctx, query.Eq{Field: model.FieldID, Value: "r1"})
	require.NoError(t, err)
	assert.Equal(t, "admin", again.Name)
}

func TestMemoryCollectionCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewMemoryCollection[*model.Role](RolesCollection, RoleIndexes)
	_, err := c.Find(ctx, FindOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIDSchemes(t *testing.T) {
	u := UUIDs{}.New()
	assert.True(t, UUIDs{}.Valid(u.String()))
	assert.False(t, UUIDs{}.Valid("admin"))

	o := ObjectIDs{}.New()
	assert.True(t, ObjectIDs{}.Valid(o.String()))
	assert.False(t, ObjectIDs{}.Valid(u.String()))
}

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	s, err := New(ctx, PersistenceMemory, Config{})
	require.NoError(t, err)
	assert.NoError(t, s.Close(ctx))

	_, err = New(ctx, PersistenceFile, Config{})
	assert.Error(t, err)

	_, err = New(ctx, PersistenceMongo, Config{})
	assert.Error(t, err)

	_, err = New(ctx, "postgres", Config{})
	assert.EqualError(t, err, "unsupported persistence type: postgres")
}
