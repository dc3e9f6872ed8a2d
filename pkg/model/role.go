package model

import (
	"strings"
	"time"
)

type Role struct {
	ID          ID        `json:"id" bson:"_id,omitempty"`
	Name        string    `json:"name" bson:"name"`
	Description string    `json:"description" bson:"description"`
	Permissions []ID      `json:"permissions" bson:"permissions"`
	IsActive    bool      `json:"isActive" bson:"isActive"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`

	// ResolvedPermissions is only set when the role was read with RolePermissions.
	// A nil slice means "not populated", an empty one means "populated, no permissions".
	ResolvedPermissions []*Permission `json:"-" bson:"-"`
}

// NormalizeRoleName lowercases and trims a role name.
func NormalizeRoleName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Role) DocID() ID { return r.ID }

func (r *Role) Field(name string) (any, bool) {
	switch name {
	case FieldID:
		return r.ID, true
	case FieldName:
		return r.Name, true
	case FieldDescription:
		return r.Description, true
	case FieldPermissions:
		return r.Permissions, true
	case FieldIsActive:
		return r.IsActive, true
	case FieldCreatedAt:
		return r.CreatedAt, true
	case FieldUpdatedAt:
		return r.UpdatedAt, true
	}
	return nil, false
}

func (r *Role) SetField(name string, value any) error {
	switch name {
	case FieldID:
		return assign(&r.ID, name, value)
	case FieldName:
		return assign(&r.Name, name, value)
	case FieldDescription:
		return assign(&r.Description, name, value)
	case FieldPermissions:
		if err := assign(&r.Permissions, name, value); err != nil {
			return err
		}
		r.Permissions = cloneIDs(r.Permissions)
		return nil
	case FieldIsActive:
		return assign(&r.IsActive, name, value)
	case FieldCreatedAt:
		return assign(&r.CreatedAt, name, value)
	case FieldUpdatedAt:
		return assign(&r.UpdatedAt, name, value)
	}
	return unknownField("role", name)
}

func (r *Role) Clone() *Role {
	if r == nil {
		return nil
	}
	c := *r
	c.Permissions = cloneIDs(r.Permissions)
	if r.ResolvedPermissions != nil {
		c.ResolvedPermissions = make([]*Permission, len(r.ResolvedPermissions))
		copy(c.ResolvedPermissions, r.ResolvedPermissions)
	}
	return &c
}
