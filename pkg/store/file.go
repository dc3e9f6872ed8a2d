package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tendant/simple-rbac/pkg/model"
	"github.com/tendant/simple-rbac/pkg/query"
)

// fileData is the on-disk layout of one collection.
type fileData[T any] struct {
	Documents []T `json:"documents"`
}

// FileCollection is a MemoryCollection persisted to <dataDir>/<name>.json.
// Every mutation is written through; a failed write rolls the mutation back.
type FileCollection[T Document[T]] struct {
	mem  *MemoryCollection[T]
	path string
}

// NewFileCollection creates the data directory if needed and loads any
// existing documents.
func NewFileCollection[T Document[T]](dataDir, name string, indexes []Index) (*FileCollection[T], error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	c := &FileCollection[T]{
		mem:  NewMemoryCollection[T](name, indexes),
		path: filepath.Join(dataDir, name+".json"),
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", name, err)
	}
	return c, nil
}

func (c *FileCollection[T]) Name() string { return c.mem.Name() }

func (c *FileCollection[T]) Find(ctx context.Context, opts FindOptions) ([]T, error) {
	return c.mem.Find(ctx, opts)
}

func (c *FileCollection[T]) FindOne(ctx context.Context, filter query.Filter) (T, bool, error) {
	return c.mem.FindOne(ctx, filter)
}

func (c *FileCollection[T]) Count(ctx context.Context, filter query.Filter) (int64, error) {
	return c.mem.Count(ctx, filter)
}

func (c *FileCollection[T]) Distinct(ctx context.Context, field string, filter query.Filter) ([]any, error) {
	return c.mem.Distinct(ctx, field, filter)
}

func (c *FileCollection[T]) Insert(ctx context.Context, doc T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.mutate(func() (bool, error) {
		return true, c.mem.insertLocked(doc)
	})
}

func (c *FileCollection[T]) Update(ctx context.Context, id model.ID, u Update) (T, bool, error) {
	var (
		out   T
		found bool
	)
	if err := ctx.Err(); err != nil {
		return out, false, err
	}
	err := c.mutate(func() (bool, error) {
		var err error
		out, found, err = c.mem.updateLocked(id, u)
		return found, err
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return out, found, nil
}

func (c *FileCollection[T]) Delete(ctx context.Context, id model.ID) (T, bool, error) {
	var (
		out   T
		found bool
	)
	if err := ctx.Err(); err != nil {
		return out, false, err
	}
	err := c.mutate(func() (bool, error) {
		var err error
		out, found, err = c.mem.deleteLocked(id)
		return found, err
	})
	if err != nil {
		var zero T
		return zero, false, err
	}
	return out, found, nil
}

// mutate runs fn under the collection lock and persists the result when fn
// reports a change.
func (c *FileCollection[T]) mutate(fn func() (changed bool, err error)) error {
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()

	snapshot := c.mem.snapshotLocked()
	changed, err := fn()
	if err != nil || !changed {
		return err
	}
	if err := c.saveLocked(); err != nil {
		c.mem.restoreLocked(snapshot)
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

func (c *FileCollection[T]) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var fd fileData[T]
	if err := json.Unmarshal(data, &fd); err != nil {
		return err
	}

	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()
	for _, doc := range fd.Documents {
		if err := c.mem.insertLocked(doc); err != nil {
			return err
		}
	}
	return nil
}

func (c *FileCollection[T]) saveLocked() error {
	fd := fileData[T]{Documents: make([]T, 0, len(c.mem.order))}
	for _, id := range c.mem.order {
		fd.Documents = append(fd.Documents, c.mem.docs[id])
	}

	data, err := json.MarshalIndent(fd, "", "  ")
	if err != nil {
		return err
	}

	tmpFile := c.path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpFile, c.path)
}

// NewFileStore returns a Store persisted as JSON files under dataDir.
func NewFileStore(dataDir string) (*Store, error) {
	perms, err := NewFileCollection[*model.Permission](dataDir, PermissionsCollection, PermissionIndexes)
	if err != nil {
		return nil, err
	}
	roles, err := NewFileCollection[*model.Role](dataDir, RolesCollection, RoleIndexes)
	if err != nil {
		return nil, err
	}
	users, err := NewFileCollection[*model.User](dataDir, UsersCollection, UserIndexes)
	if err != nil {
		return nil, err
	}
	return &Store{
		Permissions: perms,
		Roles:       roles,
		Users:       users,
		IDs:         UUIDs{},
	}, nil
}
