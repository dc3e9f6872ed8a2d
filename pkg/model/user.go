package model

import (
	"strings"
	"time"
)

type User struct {
	ID            ID         `json:"id" bson:"_id,omitempty"`
	Username      string     `json:"username" bson:"username"`
	Email         string     `json:"email" bson:"email"`
	Password      string     `json:"password" bson:"password"`
	EmailVerified bool       `json:"emailVerified" bson:"emailVerified"`
	IsActive      bool       `json:"isActive" bson:"isActive"`
	Roles         []ID       `json:"roles" bson:"roles"`
	LastLogin     *time.Time `json:"lastLogin,omitempty" bson:"lastLogin,omitempty"`
	CreatedAt     time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt" bson:"updatedAt"`

	// ResolvedRoles is only set when the user was read with UserRoles or
	// UserRolesPermissions.
	ResolvedRoles []*Role `json:"-" bson:"-"`
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) DocID() ID { return u.ID }

func (u *User) Field(name string) (any, bool) {
	switch name {
	case FieldID:
		return u.ID, true
	case FieldUsername:
		return u.Username, true
	case FieldEmail:
		return u.Email, true
	case FieldPassword:
		return u.Password, true
	case FieldEmailVerified:
		return u.EmailVerified, true
	case FieldIsActive:
		return u.IsActive, true
	case FieldRoles:
		return u.Roles, true
	case FieldLastLogin:
		if u.LastLogin == nil {
			return nil, true
		}
		return *u.LastLogin, true
	case FieldCreatedAt:
		return u.CreatedAt, true
	case FieldUpdatedAt:
		return u.UpdatedAt, true
	}
	return nil, false
}

func (u *User) SetField(name string, value any) error {
	switch name {
	case FieldID:
		return assign(&u.ID, name, value)
	case FieldUsername:
		return assign(&u.Username, name, value)
	case FieldEmail:
		return assign(&u.Email, name, value)
	case FieldPassword:
		return assign(&u.Password, name, value)
	case FieldEmailVerified:
		return assign(&u.EmailVerified, name, value)
	case FieldIsActive:
		return assign(&u.IsActive, name, value)
	case FieldRoles:
		if err := assign(&u.Roles, name, value); err != nil {
			return err
		}
		u.Roles = cloneIDs(u.Roles)
		return nil
	case FieldLastLogin:
		return assignTimePtr(&u.LastLogin, name, value)
	case FieldCreatedAt:
		return assign(&u.CreatedAt, name, value)
	case FieldUpdatedAt:
		return assign(&u.UpdatedAt, name, value)
	}
	return unknownField("user", name)
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.Roles = cloneIDs(u.Roles)
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	if u.ResolvedRoles != nil {
		c.ResolvedRoles = make([]*Role, len(u.ResolvedRoles))
		copy(c.ResolvedRoles, u.ResolvedRoles)
	}
	return &c
}
