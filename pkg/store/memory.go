package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/query"
)

// MemoryCollection keeps documents in process. Documents are cloned on the
// way in and out, so callers never share state with the collection. Ties in
// the requested sort keep insertion order.
type MemoryCollection[T Document[T]] struct {
	name    string
	indexes []Index

	mu    sync.RWMutex
	docs  map[model.ID]T
	order []model.ID
}

func NewMemoryCollection[T Document[T]](name string, indexes []Index) *MemoryCollection[T] {
	return &MemoryCollection[T]{
		name:    name,
		indexes: indexes,
		docs:    make(map[model.ID]T),
	}
}

func (c *MemoryCollection[T]) Name() string { return c.name }

func (c *MemoryCollection[T]) Find(ctx context.Context, opts FindOptions) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var matched []T
	for _, id := range c.order {
		doc := c.docs[id]
		if query.Match(opts.Filter, doc) {
			matched = append(matched, doc)
		}
	}
	if len(opts.Sort) > 0 {
		sort.SliceStable(matched, func(i, j int) bool {
			return opts.Sort.Less(matched[i], matched[j])
		})
	}

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(matched)) {
			matched = nil
		} else {
			matched = matched[opts.Skip:]
		}
	}
	if opts.Limit > 0 && opts.Limit < int64(len(matched)) {
		matched = matched[:opts.Limit]
	}

	out := make([]T, len(matched))
	for i, doc := range matched {
		out[i] = doc.Clone()
	}
	return out, nil
}

func (c *MemoryCollection[T]) FindOne(ctx context.Context, filter query.Filter) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	if eq, ok := filter.(query.Eq); ok && eq.Field == model.FieldID {
		if id, ok := asID(eq.Value); ok {
			doc, found := c.docs[id]
			if !found {
				return zero, false, nil
			}
			return doc.Clone(), true, nil
		}
	}
	for _, id := range c.order {
		doc := c.docs[id]
		if query.Match(filter, doc) {
			return doc.Clone(), true, nil
		}
	}
	return zero, false, nil
}

func (c *MemoryCollection[T]) Insert(ctx context.Context, doc T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insertLocked(doc)
}

func (c *MemoryCollection[T]) Update(ctx context.Context, id model.ID, u Update) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateLocked(id, u)
}

func (c *MemoryCollection[T]) Delete(ctx context.Context, id model.ID) (T, bool, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deleteLocked(id)
}

func (c *MemoryCollection[T]) Count(ctx context.Context, filter query.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var n int64
	for _, doc := range c.docs {
		if query.Match(filter, doc) {
			n++
		}
	}
	return n, nil
}

func (c *MemoryCollection[T]) Distinct(ctx context.Context, field string, filter query.Filter) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[any]struct{})
	out := []any{}
	add := func(v any) {
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	for _, id := range c.order {
		doc := c.docs[id]
		if !query.Match(filter, doc) {
			continue
		}
		v, ok := doc.Field(field)
		if !ok || v == nil {
			continue
		}
		if ids, isSet := v.([]model.ID); isSet {
			for _, id := range ids {
				add(id)
			}
			continue
		}
		add(v)
	}
	return out, nil
}

func (c *MemoryCollection[T]) insertLocked(doc T) error {
	id := doc.DocID()
	if id == "" {
		return fmt.Errorf("%s: document has no id", c.name)
	}
	if _, exists := c.docs[id]; exists {
		return &DuplicateKeyError{Collection: c.name, Fields: []string{model.FieldID}}
	}
	stored := doc.Clone()
	if err := c.checkUniqueLocked(stored); err != nil {
		return err
	}
	c.docs[id] = stored
	c.order = append(c.order, id)
	return nil
}

func (c *MemoryCollection[T]) updateLocked(id model.ID, u Update) (T, bool, error) {
	var zero T
	current, found := c.docs[id]
	if !found {
		return zero, false, nil
	}
	next := current.Clone()
	if err := applyUpdate(next, u); err != nil {
		return zero, false, fmt.Errorf("%s: %w", c.name, err)
	}
	if err := c.checkUniqueLocked(next); err != nil {
		return zero, false, err
	}
	c.docs[id] = next
	return next.Clone(), true, nil
}

func (c *MemoryCollection[T]) deleteLocked(id model.ID) (T, bool, error) {
	var zero T
	doc, found := c.docs[id]
	if !found {
		return zero, false, nil
	}
	delete(c.docs, id)
	for i, oid := range c.order {
		if oid == id {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	return doc, true, nil
}

func (c *MemoryCollection[T]) checkUniqueLocked(doc T) error {
	for _, idx := range c.indexes {
		if !idx.Unique {
			continue
		}
		key := make(query.And, 0, len(idx.Fields))
		for _, field := range idx.Fields {
			v, _ := doc.Field(field)
			key = append(key, query.Eq{Field: field, Value: v})
		}
		for oid, other := range c.docs {
			if oid == doc.DocID() {
				continue
			}
			if query.Match(key, other) {
				return &DuplicateKeyError{Collection: c.name, Fields: idx.Fields}
			}
		}
	}
	return nil
}

type memorySnapshot[T any] struct {
	docs  map[model.ID]T
	order []model.ID
}

// Stored documents are never mutated in place, so copying the map is enough.
func (c *MemoryCollection[T]) snapshotLocked() memorySnapshot[T] {
	docs := make(map[model.ID]T, len(c.docs))
	for id, doc := range c.docs {
		docs[id] = doc
	}
	order := make([]model.ID, len(c.order))
	copy(order, c.order)
	return memorySnapshot[T]{docs: docs, order: order}
}

func (c *MemoryCollection[T]) restoreLocked(s memorySnapshot[T]) {
	c.docs = s.docs
	c.order = s.order
}

func asID(v any) (model.ID, bool) {
	switch v := v.(type) {
	case model.ID:
		return v, true
	case string:
		return model.ID(v), true
	}
	return "", false
}

// NewMemoryStore returns a Store whose collections live in process.
func NewMemoryStore() *Store {
	return &Store{
		Permissions: NewMemoryCollection[*model.Permission](PermissionsCollection, PermissionIndexes),
		Roles:       NewMemoryCollection[*model.Role](RolesCollection, RoleIndexes),
		Users:       NewMemoryCollection[*model.User](UsersCollection, UserIndexes),
		IDs:         UUIDs{},
	}
}
