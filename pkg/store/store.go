package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/query"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is what a collection stores. T is the document's own pointer type.
type Document[T any] interface {
	query.Document
	DocID() model.ID
	SetField(name string, value any) error
	Clone() T
}

// FindOptions narrows and orders a Find. A zero Limit means no limit.
type FindOptions struct {
	Filter query.Filter
	Sort   query.Sort
	Skip   int64
	Limit  int64
}

// Update describes a single-document atomic update. AddToSet and Pull work on
// id array fields with set semantics.
type Update struct {
	Set      map[string]any
	AddToSet map[string][]model.ID
	Pull     map[string][]model.ID
}

func (u Update) IsEmpty() bool {
	return len(u.Set) == 0 && len(u.AddToSet) == 0 && len(u.Pull) == 0
}

// Collection is the entity store contract used by the repositories.
// Not-found results are reported through the bool, never through the error.
type Collection[T any] interface {
	Name() string
	Find(ctx context.Context, opts FindOptions) ([]T, error)
	FindOne(ctx context.Context, filter query.Filter) (T, bool, error)
	Insert(ctx context.Context, doc T) error
	// Update applies u to the document with the given id and returns it as stored afterwards.
	Update(ctx context.Context, id model.ID, u Update) (T, bool, error)
	// Delete removes the document and returns its last stored state.
	Delete(ctx context.Context, id model.ID) (T, bool, error)
	Count(ctx context.Context, filter query.Filter) (int64, error)
	Distinct(ctx context.Context, field string, filter query.Filter) ([]any, error)
}

// Index declares an index on a collection.
type Index struct {
	Fields []string
	Unique bool
}

var (
	PermissionIndexes = []Index{
		{Fields: []string{model.FieldAction, model.FieldResource}, Unique: true},
		{Fields: []string{model.FieldIsActive}},
	}
	RoleIndexes = []Index{
		{Fields: []string{model.FieldName}, Unique: true},
		{Fields: []string{model.FieldIsActive}},
	}
	UserIndexes = []Index{
		{Fields: []string{model.FieldUsername}, Unique: true},
		{Fields: []string{model.FieldEmail}, Unique: true},
		{Fields: []string{model.FieldRoles}},
	}
)

const (
	PermissionsCollection = "permissions"
	RolesCollection       = "roles"
	UsersCollection       = "users"
)

// DuplicateKeyError is returned when a write would break a unique index.
type DuplicateKeyError struct {
	Collection string
	Fields     []string
	Err        error
}

func (e *DuplicateKeyError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: duplicate key: %v", e.Collection, e.Err)
	}
	return fmt.Sprintf("%s: duplicate key on %s", e.Collection, strings.Join(e.Fields, ","))
}

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

// IsDuplicateKey reports whether err is a unique index violation.
func IsDuplicateKey(err error) bool {
	var dup *DuplicateKeyError
	return errors.As(err, &dup)
}

// IDScheme issues and recognises ids for one store.
type IDScheme interface {
	New() model.ID
	Valid(s string) bool
}

// UUIDs issues random UUIDs. Used by the memory and file stores.
type UUIDs struct{}

func (UUIDs) New() model.ID { return model.ID(uuid.New().String()) }

func (UUIDs) Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// ObjectIDs issues MongoDB ObjectIDs in hex form.
type ObjectIDs struct{}

func (ObjectIDs) New() model.ID { return model.ID(primitive.NewObjectID().Hex()) }

func (ObjectIDs) Valid(s string) bool { return primitive.IsValidObjectID(s) }

// Store bundles the three entity collections opened against one backend.
type Store struct {
	Permissions Collection[*model.Permission]
	Roles       Collection[*model.Role]
	Users       Collection[*model.User]
	IDs         IDScheme

	closer func(ctx context.Context) error
}

// Close releases the backend connection, if any.
func (s *Store) Close(ctx context.Context) error {
	if s.closer == nil {
		return nil
	}
	return s.closer(ctx)
}

// applyUpdate mutates doc in place according to u.
func applyUpdate[T Document[T]](doc T, u Update) error {
	for field, value := range u.Set {
		if err := doc.SetField(field, value); err != nil {
			return err
		}
	}
	for field, ids := range u.AddToSet {
		current, err := idsOf(doc, field)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if !model.ContainsID(current, id) {
				current = append(current, id)
			}
		}
		if err := doc.SetField(field, current); err != nil {
			return err
		}
	}
	for field, ids := range u.Pull {
		current, err := idsOf(doc, field)
		if err != nil {
			return err
		}
		kept := make([]model.ID, 0, len(current))
		for _, id := range current {
			if !model.ContainsID(ids, id) {
				kept = append(kept, id)
			}
		}
		if err := doc.SetField(field, kept); err != nil {
			return err
		}
	}
	return nil
}

func idsOf(doc query.Document, field string) ([]model.ID, error) {
	v, ok := doc.Field(field)
	if !ok {
		return nil, fmt.Errorf("unknown field %q", field)
	}
	if v == nil {
		return nil, nil
	}
	ids, ok := v.([]model.ID)
	if !ok {
		return nil, fmt.Errorf("field %q is not an id set", field)
	}
	out := make([]model.ID, len(ids))
	copy(out, ids)
	return out, nil
}
