package query

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/tendant/simple-rbac/pkg/model"
)

// UserCriteria are the optional user listing criteria.
type UserCriteria struct {
	Search        string
	Role          string // role id or role name
	EmailVerified *bool
	IsActive      *bool
	Page          int
	PageSize      int
}

// RoleResolver resolves a role name to its id.
type RoleResolver interface {
	ResolveRoleName(ctx context.Context, name string) (model.ID, bool, error)
}

// ComposeUsers builds the user listing query. A Role criterion that is a
// valid id is used as is; anything else is looked up as a role name. When the
// name resolves to no role, ComposeUsers returns ok=false and callers must
// answer with an empty page without querying users.
func ComposeUsers(ctx context.Context, c UserCriteria, roles RoleResolver, validID func(string) bool) (q Query, ok bool, err error) {
	b := NewBuilder().
		Search(c.Search, model.FieldUsername, model.FieldEmail).
		Paginate(c.Page, c.PageSize).
		SortBy(NewestFirst...)

	if c.Role != "" {
		roleID := model.ID(c.Role)
		if !validID(c.Role) {
			id, found, err := roles.ResolveRoleName(ctx, c.Role)
			if err != nil {
				return Query{}, false, err
			}
			if !found {
				q := b.Build()
				return q, false, nil
			}
			roleID = id
		}
		b.WhereEq(model.FieldRoles, roleID)
	}

	b.WhereBool(model.FieldEmailVerified, c.EmailVerified).
		WhereBool(model.FieldIsActive, c.IsActive)

	return b.Build(), true, nil
}

// RoleCriteria are the optional role listing criteria.
type RoleCriteria struct {
	IncludeInactive bool
	Page            int
	PageSize        int
}

func ComposeRoles(c RoleCriteria) Query {
	return NewBuilder().
		ActiveOnly(c.IncludeInactive).
		Paginate(c.Page, c.PageSize).
		Build()
}

// PermissionCriteria are the optional permission listing criteria.
type PermissionCriteria struct {
	IncludeInactive bool
	Action          string
	Resource        string
	Page            int
	PageSize        int
}

// PermissionOrder is the listing order for permissions.
var PermissionOrder = Sort{Asc(model.FieldAction), Asc(model.FieldResource)}

func ComposePermissions(c PermissionCriteria) Query {
	return NewBuilder().
		ActiveOnly(c.IncludeInactive).
		WhereString(model.FieldAction, model.NormalizeKey(c.Action)).
		WhereString(model.FieldResource, model.NormalizeKey(c.Resource)).
		SortBy(PermissionOrder...).
		Paginate(c.Page, c.PageSize).
		Build()
}

// ActionResources lists the resources a single action applies to.
type ActionResources struct {
	Action    string
	Resources []string
}

// ActionMap groups resources under their action, in listing order.
type ActionMap []ActionResources

// GroupActionResources groups permissions by action. The input order decides
// both the action order and the resource order within an action.
func GroupActionResources(perms []*model.Permission) ActionMap {
	index := make(map[string]int)
	var out ActionMap
	for _, p := range perms {
		i, ok := index[p.Action]
		if !ok {
			i = len(out)
			index[p.Action] = i
			out = append(out, ActionResources{Action: p.Action})
		}
		out[i].Resources = append(out[i].Resources, p.Resource)
	}
	return out
}

// Lookup returns the resources grouped under action.
func (m ActionMap) Lookup(action string) []string {
	for _, ar := range m {
		if ar.Action == action {
			return ar.Resources
		}
	}
	return nil
}

// MarshalJSON encodes the map as a JSON object whose keys keep the grouping order.
func (m ActionMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ar := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ar.Action)
		if err != nil {
			return nil, err
		}
		resources := ar.Resources
		if resources == nil {
			resources = []string{}
		}
		val, err := json.Marshal(resources)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
