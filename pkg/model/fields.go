package model

// Stored field names. They double as the JSON and BSON keys and are the only
// names accepted by filters, sorts and updates.
const (
	FieldID            = "_id"
	FieldAction        = "action"
	FieldResource      = "resource"
	FieldDescription   = "description"
	FieldName          = "name"
	FieldPermissions   = "permissions"
	FieldUsername      = "username"
	FieldEmail         = "email"
	FieldPassword      = "password"
	FieldEmailVerified = "emailVerified"
	FieldRoles         = "roles"
	FieldLastLogin     = "lastLogin"
	FieldIsActive      = "isActive"
	FieldCreatedAt     = "createdAt"
	FieldUpdatedAt     = "updatedAt"
)

// PermissionRelation names the relations a Permission read can expand.
// Permissions reference nothing, so the only value is PermissionNone.
type PermissionRelation int

const PermissionNone PermissionRelation = 0

// RoleRelation names the relations a Role read can expand.
type RoleRelation int

const (
	RoleNone RoleRelation = iota
	// RolePermissions resolves Role.Permissions into Role.ResolvedPermissions.
	RolePermissions
)

// UserRelation names the relations a User read can expand.
type UserRelation int

const (
	UserNone UserRelation = iota
	// UserRoles resolves User.Roles into User.ResolvedRoles.
	UserRoles
	// UserRolesPermissions also resolves each role's permissions.
	UserRolesPermissions
)
