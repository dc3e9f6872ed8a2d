// Package dto projects stored entities into the shapes returned to API
// clients. Projections never carry password hashes, and nil input always
// yields nil output.
package dto

import (
	"time"

	"github.com/jinzhu/copier"
	"github.com/tendant/simple-rbac/pkg/model"
)

type PermissionDTO struct {
	ID          string    `json:"id"`
	Action      string    `json:"action"`
	Resource    string    `json:"resource"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// RoleDTO embeds Permissions only when the role was read with its
// permissions resolved. PermissionIDs is the raw reference set.
type RoleDTO struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	PermissionIDs []string         `json:"permissionIds"`
	Permissions   []*PermissionDTO `json:"permissions,omitempty"`
	IsActive      bool             `json:"isActive"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// UserDTO embeds Roles only when the user was read with its roles resolved.
type UserDTO struct {
	ID            string     `json:"id"`
	Username      string     `json:"username"`
	Email         string     `json:"email"`
	EmailVerified bool       `json:"emailVerified"`
	IsActive      bool       `json:"isActive"`
	RoleIDs       []string   `json:"roleIds"`
	Roles         []*RoleDTO `json:"roles,omitempty"`
	LastLogin     *time.Time `json:"lastLogin"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func Permission(p *model.Permission) *PermissionDTO {
	if p == nil {
		return nil
	}
	out := &PermissionDTO{}
	copier.Copy(out, p)
	out.ID = p.ID.String()
	return out
}

func Role(r *model.Role) *RoleDTO {
	if r == nil {
		return nil
	}
	out := &RoleDTO{
		ID:            r.ID.String(),
		Name:          r.Name,
		Description:   r.Description,
		PermissionIDs: ids(r.Permissions),
		IsActive:      r.IsActive,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.ResolvedPermissions != nil {
		out.Permissions = Permissions(r.ResolvedPermissions)
	}
	return out
}

func User(u *model.User) *UserDTO {
	if u == nil {
		return nil
	}
	out := &UserDTO{
		ID:            u.ID.String(),
		Username:      u.Username,
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		IsActive:      u.IsActive,
		RoleIDs:       ids(u.Roles),
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
	if u.LastLogin != nil {
		t := *u.LastLogin
		out.LastLogin = &t
	}
	if u.ResolvedRoles != nil {
		out.Roles = Roles(u.ResolvedRoles)
	}
	return out
}

func Permissions(in []*model.Permission) []*PermissionDTO {
	return mapNonNil(in, Permission)
}

func Roles(in []*model.Role) []*RoleDTO {
	return mapNonNil(in, Role)
}

func Users(in []*model.User) []*UserDTO {
	return mapNonNil(in, User)
}

// Page projects the items of a page and keeps its metadata.
func Page[T, U any](p model.Page[T], project func(T) U) model.Page[U] {
	return model.MapPage(p, project)
}

// mapNonNil projects every non-nil element. The result is never nil so it
// encodes as [] rather than null.
func mapNonNil[T any, U any](in []*T, project func(*T) *U) []*U {
	out := make([]*U, 0, len(in))
	for _, item := range in {
		if item == nil {
			continue
		}
		out = append(out, project(item))
	}
	return out
}

func ids(in []model.ID) []string {
	if in == nil {
		return []string{}
	}
	return model.Strings(in)
}
