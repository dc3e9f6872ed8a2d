package model

import (
	"strings"
	"time"
)

type Permission struct {
	ID          ID        `json:"id" bson:"_id,omitempty"`
	Action      string    `json:"action" bson:"action"`
	Resource    string    `json:"resource" bson:"resource"`
	Description string    `json:"description" bson:"description"`
	IsActive    bool      `json:"isActive" bson:"isActive"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// NormalizeKey lowercases and trims an action or resource name.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Key returns the natural key "action:resource".
func (p *Permission) Key() string {
	return p.Action + ":" + p.Resource
}

func (p *Permission) DocID() ID { return p.ID }

func (p *Permission) Field(name string) (any, bool) {
	switch name {
	case FieldID:
		return p.ID, true
	case FieldAction:
		return p.Action, true
	case FieldResource:
		return p.Resource, true
	case FieldDescription:
		return p.Description, true
	case FieldIsActive:
		return p.IsActive, true
	case FieldCreatedAt:
		return p.CreatedAt, true
	case FieldUpdatedAt:
		return p.UpdatedAt, true
	}
	return nil, false
}

func (p *Permission) SetField(name string, value any) error {
	switch name {
	case FieldID:
		return assign(&p.ID, name, value)
	case FieldAction:
		return assign(&p.Action, name, value)
	case FieldResource:
		return assign(&p.Resource, name, value)
	case FieldDescription:
		return assign(&p.Description, name, value)
	case FieldIsActive:
		return assign(&p.IsActive, name, value)
	case FieldCreatedAt:
		return assign(&p.CreatedAt, name, value)
	case FieldUpdatedAt:
		return assign(&p.UpdatedAt, name, value)
	}
	return unknownField("permission", name)
}

func (p *Permission) Clone() *Permission {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
