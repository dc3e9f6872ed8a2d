package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	apperrors "github.com/tendant/simple-rbac/pkg/errors"
	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/query"
	"github.com/tendant/simple-rbac/pkg/store"
)

// Populator resolves the relations named by rel on docs in place.
type Populator[T any, R comparable] func(ctx context.Context, docs []T, rel R) error

// Repository is the data-access contract shared by every entity type. R is the
// entity's relation enum; its zero value means "expand nothing".
//
// Absence is reported through the bool of (T, bool, error) results. Errors are
// always *errors.Error with code STORE_FAILURE or CONFLICT.
type Repository[T store.Document[T], R comparable] struct {
	entity   string
	coll     store.Collection[T]
	ids      store.IDScheme
	populate Populator[T, R]
	now      func() time.Time
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func New[T store.Document[T], R comparable](entity string, coll store.Collection[T], ids store.IDScheme, populate Populator[T, R], opts ...Option) *Repository[T, R] {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	if populate == nil {
		populate = func(context.Context, []T, R) error { return nil }
	}
	return &Repository[T, R]{
		entity:   entity,
		coll:     coll,
		ids:      ids,
		populate: populate,
		now:      o.now,
	}
}

// Entity is the entity name used in error messages.
func (r *Repository[T, R]) Entity() string { return r.entity }

// ValidID reports whether s has the shape of an id issued by the store.
func (r *Repository[T, R]) ValidID(s string) bool { return r.ids.Valid(s) }

// FindPage returns one page of the documents matching q.Filter. Page and page
// size are clamped; an empty result is a page with no items, not an error.
func (r *Repository[T, R]) FindPage(ctx context.Context, q query.Query, rel R) (model.Page[T], error) {
	page, pageSize := query.ClampPage(q.Page, q.PageSize)
	q.Page, q.PageSize = page, pageSize
	if len(q.Sort) == 0 {
		q.Sort = query.NewestFirst
	}

	total, err := r.coll.Count(ctx, q.Filter)
	if err != nil {
		return model.Page[T]{}, r.storeErr(err, "count")
	}
	if total == 0 || q.Skip() >= total {
		return model.NewPage[T](nil, page, pageSize, total), nil
	}

	items, err := r.coll.Find(ctx, store.FindOptions{
		Filter: q.Filter,
		Sort:   q.Sort,
		Skip:   q.Skip(),
		Limit:  int64(pageSize),
	})
	if err != nil {
		return model.Page[T]{}, r.storeErr(err, "find")
	}
	if err := r.expand(ctx, items, rel); err != nil {
		return model.Page[T]{}, err
	}
	return model.NewPage(items, page, pageSize, total), nil
}

// FindAll returns every matching document in the given order.
func (r *Repository[T, R]) FindAll(ctx context.Context, filter query.Filter, sort query.Sort, rel R) ([]T, error) {
	items, err := r.coll.Find(ctx, store.FindOptions{Filter: filter, Sort: sort})
	if err != nil {
		return nil, r.storeErr(err, "find")
	}
	if err := r.expand(ctx, items, rel); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *Repository[T, R]) FindByID(ctx context.Context, id model.ID, rel R) (T, bool, error) {
	return r.FindOne(ctx, query.Eq{Field: model.FieldID, Value: id}, rel)
}

func (r *Repository[T, R]) FindOne(ctx context.Context, filter query.Filter, rel R) (T, bool, error) {
	var zero T
	doc, found, err := r.coll.FindOne(ctx, filter)
	if err != nil {
		return zero, false, r.storeErr(err, "find")
	}
	if !found {
		return zero, false, nil
	}
	if err := r.expand(ctx, []T{doc}, rel); err != nil {
		return zero, false, err
	}
	return doc, true, nil
}

// Create assigns an id when the document has none, stamps both timestamps and
// inserts it.
func (r *Repository[T, R]) Create(ctx context.Context, doc T) (T, error) {
	var zero T
	doc = doc.Clone()
	if doc.DocID() == "" {
		if err := doc.SetField(model.FieldID, r.ids.New()); err != nil {
			return zero, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to assign id")
		}
	}
	now := r.now()
	for _, field := range []string{model.FieldCreatedAt, model.FieldUpdatedAt} {
		if err := doc.SetField(field, now); err != nil {
			return zero, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to stamp timestamps")
		}
	}
	if err := r.coll.Insert(ctx, doc); err != nil {
		return zero, r.storeErr(err, "insert")
	}
	return doc, nil
}

// UpdateByID applies u and stamps updatedAt. It returns the stored document
// after the update.
func (r *Repository[T, R]) UpdateByID(ctx context.Context, id model.ID, u store.Update, rel R) (T, bool, error) {
	var zero T
	set := make(map[string]any, len(u.Set)+1)
	for k, v := range u.Set {
		set[k] = v
	}
	set[model.FieldUpdatedAt] = r.now()
	u.Set = set

	doc, found, err := r.coll.Update(ctx, id, u)
	if err != nil {
		return zero, false, r.storeErr(err, "update")
	}
	if !found {
		return zero, false, nil
	}
	if err := r.expand(ctx, []T{doc}, rel); err != nil {
		return zero, false, err
	}
	return doc, true, nil
}

// SoftDelete marks the document inactive. Related documents are untouched.
func (r *Repository[T, R]) SoftDelete(ctx context.Context, id model.ID) (T, bool, error) {
	var none R
	return r.UpdateByID(ctx, id, store.Update{Set: map[string]any{model.FieldIsActive: false}}, none)
}

// Restore marks the document active again.
func (r *Repository[T, R]) Restore(ctx context.Context, id model.ID) (T, bool, error) {
	var none R
	return r.UpdateByID(ctx, id, store.Update{Set: map[string]any{model.FieldIsActive: true}}, none)
}

// HardDelete removes the document and returns its last state.
func (r *Repository[T, R]) HardDelete(ctx context.Context, id model.ID) (T, bool, error) {
	var zero T
	doc, found, err := r.coll.Delete(ctx, id)
	if err != nil {
		return zero, false, r.storeErr(err, "delete")
	}
	return doc, found, nil
}

func (r *Repository[T, R]) Exists(ctx context.Context, filter query.Filter) (bool, error) {
	_, found, err := r.coll.FindOne(ctx, filter)
	if err != nil {
		return false, r.storeErr(err, "find")
	}
	return found, nil
}

func (r *Repository[T, R]) Count(ctx context.Context, filter query.Filter) (int64, error) {
	n, err := r.coll.Count(ctx, filter)
	if err != nil {
		return 0, r.storeErr(err, "count")
	}
	return n, nil
}

// DistinctValues returns the distinct values of field among matching documents.
func (r *Repository[T, R]) DistinctValues(ctx context.Context, field string, filter query.Filter) ([]any, error) {
	values, err := r.coll.Distinct(ctx, field, filter)
	if err != nil {
		return nil, r.storeErr(err, "distinct")
	}
	return values, nil
}

// DistinctStrings is DistinctValues for string fields, sorted ascending.
func (r *Repository[T, R]) DistinctStrings(ctx context.Context, field string, filter query.Filter) ([]string, error) {
	values, err := r.DistinctValues(ctx, field, filter)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, fmt.Sprint(v))
	}
	sort.Strings(out)
	return out, nil
}

// MissingIDs returns the ids, in input order, that match no stored document.
func (r *Repository[T, R]) MissingIDs(ctx context.Context, ids []model.ID) ([]model.ID, error) {
	ids = model.UniqueIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	docs, err := r.coll.Find(ctx, store.FindOptions{Filter: query.IDIn(ids)})
	if err != nil {
		return nil, r.storeErr(err, "find")
	}
	present := make(map[model.ID]struct{}, len(docs))
	for _, doc := range docs {
		present[doc.DocID()] = struct{}{}
	}
	var missing []model.ID
	for _, id := range ids {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (r *Repository[T, R]) expand(ctx context.Context, docs []T, rel R) error {
	var none R
	if rel == none || len(docs) == 0 {
		return nil
	}
	if err := r.populate(ctx, docs, rel); err != nil {
		if _, ok := err.(*apperrors.Error); ok {
			return err
		}
		return r.storeErr(err, "populate")
	}
	return nil
}

func (r *Repository[T, R]) storeErr(err error, op string) error {
	if store.IsDuplicateKey(err) {
		return apperrors.Wrapf(err, apperrors.ErrCodeConflict, "%s already exists", r.entity)
	}
	return apperrors.StoreFailure(err, r.entity+" "+op)
}
