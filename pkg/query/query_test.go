package query

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-rbac/pkg/model"
)

func TestMatch(t *testing.T) {
	u := &model.User{
		ID:            "u1",
		Username:      "Alice_Admin",
		Email:         "alice@example.com",
		EmailVerified: true,
		IsActive:      false,
		Roles:         []model.ID{"r1", "r2"},
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"nil matches", nil, true},
		{"eq string", Eq{Field: model.FieldUsername, Value: "Alice_Admin"}, true},
		{"eq bool", Eq{Field: model.FieldIsActive, Value: false}, true},
		{"eq array contains", Eq{Field: model.FieldRoles, Value: model.ID("r2")}, true},
		{"eq array missing", Eq{Field: model.FieldRoles, Value: model.ID("r3")}, false},
		{"eq id against string", Eq{Field: model.FieldID, Value: "u1"}, true},
		{"ne", Ne{Field: model.FieldEmailVerified, Value: true}, false},
		{"in", In{Field: model.FieldID, Values: []any{model.ID("x"), model.ID("u1")}}, true},
		{"in none", IDIn(nil), false},
		{"contains fold", ContainsFold{Field: model.FieldUsername, Term: "admin"}, true},
		{"contains fold miss", ContainsFold{Field: model.FieldEmail, Term: "bob"}, false},
		{"contains fold non-string", ContainsFold{Field: model.FieldRoles, Term: "r1"}, false},
		{"unknown field", Eq{Field: "nope", Value: "x"}, false},
		{"and", And{Eq{Field: model.FieldEmailVerified, Value: true}, Eq{Field: model.FieldIsActive, Value: false}}, true},
		{"and short", And{Eq{Field: model.FieldEmailVerified, Value: true}, Eq{Field: model.FieldIsActive, Value: true}}, false},
		{"empty and", And{}, true},
		{"or", Or{ContainsFold{Field: model.FieldUsername, Term: "zzz"}, ContainsFold{Field: model.FieldEmail, Term: "EXAMPLE"}}, true},
		{"empty or", Or{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.filter, u))
		})
	}
}

func TestMatchRegexCharactersAreLiteral(t *testing.T) {
	u := &model.User{Username: "a.b", Email: "x+y@example.com"}
	assert.True(t, Match(ContainsFold{Field: model.FieldEmail, Term: "x+y"}, u))
	assert.False(t, Match(ContainsFold{Field: model.FieldUsername, Term: "a*"}, u))
}

func TestSortLess(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	perms := []*model.Permission{
		{ID: "1", Action: "read", Resource: "users", CreatedAt: base},
		{ID: "2", Action: "create", Resource: "users", CreatedAt: base.Add(time.Hour)},
		{ID: "3", Action: "read", Resource: "posts", CreatedAt: base.Add(2 * time.Hour)},
	}

	byKey := append([]*model.Permission(nil), perms...)
	sort.SliceStable(byKey, func(i, j int) bool { return PermissionOrder.Less(byKey[i], byKey[j]) })
	assert.Equal(t, []model.ID{"2", "3", "1"}, ids(byKey))

	newest := append([]*model.Permission(nil), perms...)
	sort.SliceStable(newest, func(i, j int) bool { return NewestFirst.Less(newest[i], newest[j]) })
	assert.Equal(t, []model.ID{"3", "2", "1"}, ids(newest))
}

func TestSortNilLastLogin(t *testing.T) {
	now := time.Now()
	a := &model.User{ID: "a"}
	b := &model.User{ID: "b", LastLogin: &now}
	s := Sort{Asc(model.FieldLastLogin)}
	assert.True(t, s.Less(a, b))
	assert.False(t, s.Less(b, a))
}

func ids(perms []*model.Permission) []model.ID {
	out := make([]model.ID, len(perms))
	for i, p := range perms {
		out[i] = p.ID
	}
	return out
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, DefaultPageSize},
		{-3, 5, 1, 5},
		{2, -1, 2, 1},
		{4, 500, 4, MaxPageSize},
		{3, 100, 3, 100},
	}
	for _, tt := range tests {
		page, size := ClampPage(tt.page, tt.size)
		assert.Equal(t, tt.wantPage, page)
		assert.Equal(t, tt.wantSize, size)
	}
}

func TestBuilder(t *testing.T) {
	t.Run("no criteria", func(t *testing.T) {
		q := NewBuilder().Build()
		assert.Nil(t, q.Filter)
		assert.Equal(t, NewestFirst, q.Sort)
		assert.Equal(t, 1, q.Page)
		assert.Equal(t, DefaultPageSize, q.PageSize)
		assert.Equal(t, int64(0), q.Skip())
	})

	t.Run("criteria are anded", func(t *testing.T) {
		yes := true
		q := NewBuilder().
			Search("bob", model.FieldUsername, model.FieldEmail).
			WhereBool(model.FieldEmailVerified, &yes).
			WhereBool(model.FieldIsActive, nil).
			WhereString(model.FieldAction, "").
			Paginate(3, 10).
			Build()

		and, ok := q.Filter.(And)
		require.True(t, ok)
		require.Len(t, and, 2)
		assert.Equal(t, Or{
			ContainsFold{Field: model.FieldUsername, Term: "bob"},
			ContainsFold{Field: model.FieldEmail, Term: "bob"},
		}, and[0])
		assert.Equal(t, Eq{Field: model.FieldEmailVerified, Value: true}, and[1])
		assert.Equal(t, int64(20), q.Skip())
	})

	t.Run("single criterion is not wrapped", func(t *testing.T) {
		q := NewBuilder().ActiveOnly(false).Build()
		assert.Equal(t, Eq{Field: model.FieldIsActive, Value: true}, q.Filter)
		assert.Nil(t, NewBuilder().ActiveOnly(true).Build().Filter)
	})
}

type stubResolver struct {
	ids   map[string]model.ID
	calls int
	err   error
}

func (s *stubResolver) ResolveRoleName(_ context.Context, name string) (model.ID, bool, error) {
	s.calls++
	if s.err != nil {
		return "", false, s.err
	}
	id, ok := s.ids[name]
	return id, ok, nil
}

func validHex(s string) bool { return len(s) == 3 && s[0] == 'r' }

func TestComposeUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("role id used directly", func(t *testing.T) {
		res := &stubResolver{}
		q, ok, err := ComposeUsers(ctx, UserCriteria{Role: "r01"}, res, validHex)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 0, res.calls)
		assert.Equal(t, Eq{Field: model.FieldRoles, Value: model.ID("r01")}, q.Filter)
	})

	t.Run("role name resolved", func(t *testing.T) {
		res := &stubResolver{ids: map[string]model.ID{"editor": "r42"}}
		verified := false
		q, ok, err := ComposeUsers(ctx, UserCriteria{Role: "editor", EmailVerified: &verified, Search: "al"}, res, validHex)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 1, res.calls)

		and := q.Filter.(And)
		require.Len(t, and, 3)
		assert.Contains(t, and, Filter(Eq{Field: model.FieldRoles, Value: model.ID("r42")}))
		assert.Contains(t, and, Filter(Eq{Field: model.FieldEmailVerified, Value: false}))
		assert.Equal(t, NewestFirst, q.Sort)
	})

	t.Run("unknown role name short-circuits", func(t *testing.T) {
		res := &stubResolver{ids: map[string]model.ID{}}
		q, ok, err := ComposeUsers(ctx, UserCriteria{Role: "ghost", Page: 2, PageSize: 5}, res, validHex)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 2, q.Page)
		assert.Equal(t, 5, q.PageSize)
	})

	t.Run("resolver error propagates", func(t *testing.T) {
		res := &stubResolver{err: errors.New("down")}
		_, _, err := ComposeUsers(ctx, UserCriteria{Role: "ghost"}, res, validHex)
		assert.EqualError(t, err, "down")
	})

	t.Run("no criteria", func(t *testing.T) {
		q, ok, err := ComposeUsers(ctx, UserCriteria{}, &stubResolver{}, validHex)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Nil(t, q.Filter)
	})
}

func TestComposePermissions(t *testing.T) {
	q := ComposePermissions(PermissionCriteria{Action: " Read ", Page: 1, PageSize: 50})
	assert.Equal(t, And{
		Eq{Field: model.FieldIsActive, Value: true},
		Eq{Field: model.FieldAction, Value: "read"},
	}, q.Filter)
	assert.Equal(t, PermissionOrder, q.Sort)
	assert.Equal(t, 50, q.PageSize)

	q = ComposeRoles(RoleCriteria{IncludeInactive: true})
	assert.Nil(t, q.Filter)
	assert.Equal(t, NewestFirst, q.Sort)
}

func TestGroupActionResources(t *testing.T) {
	perms := []*model.Permission{
		{Action: "create", Resource: "posts"},
		{Action: "create", Resource: "users"},
		{Action: "read", Resource: "comments"},
		{Action: "read", Resource: "posts"},
	}
	m := GroupActionResources(perms)
	require.Len(t, m, 2)
	assert.Equal(t, []string{"posts", "users"}, m.Lookup("create"))
	assert.Equal(t, []string{"comments", "posts"}, m.Lookup("read"))
	assert.Nil(t, m.Lookup("delete"))

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"create":["posts","users"],"read":["comments","posts"]}`, string(data))

	data, err = json.Marshal(GroupActionResources(nil))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))
}
