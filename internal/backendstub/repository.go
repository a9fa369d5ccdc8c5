package backendstub

import (
	"context"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/fleetdeck/fleetdeck/pkg/cerr"
	"github.com/fleetdeck/fleetdeck/pkg/storage"
)

// Repository persists one record type as YAML documents under a storage
// prefix, one file per id.
type Repository[T any] struct {
	storage storage.Storage
	prefix  string
	name    string
	idFn    func(T) string
}

func NewRepository[T any](s storage.Storage, prefix, name string, idFn func(T) string) *Repository[T] {
	return &Repository[T]{storage: s, prefix: prefix, name: name, idFn: idFn}
}

func (r *Repository[T]) path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", r.prefix, id)
}

func (r *Repository[T]) Create(ctx context.Context, item T) error {
	id := r.idFn(item)
	exists, err := r.storage.Exists(ctx, r.path(id))
	if err != nil {
		return cerr.WrapStorageWriteError(r.name, err)
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("%s already exists", r.name), nil)
	}
	return r.write(ctx, id, item)
}

func (r *Repository[T]) Get(ctx context.Context, id string) (T, error) {
	var item T
	data, err := r.storage.Read(ctx, r.path(id))
	if err != nil {
		return item, cerr.WrapStorageReadError(r.name, err)
	}
	if err := yaml.Unmarshal(data, &item); err != nil {
		return item, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to unmarshal %s: %w", r.name, err))
	}
	return item, nil
}

// List returns all records in path order. Unreadable files are skipped.
func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	paths, err := r.storage.List(ctx, r.prefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError(r.name, err)
	}
	sort.Strings(paths)

	var all []T
	for _, p := range paths {
		data, err := r.storage.Read(ctx, p)
		if err != nil {
			continue
		}
		var item T
		if err := yaml.Unmarshal(data, &item); err != nil {
			continue
		}
		all = append(all, item)
	}
	return all, nil
}

func (r *Repository[T]) Update(ctx context.Context, item T) error {
	id := r.idFn(item)
	exists, err := r.storage.Exists(ctx, r.path(id))
	if err != nil {
		return cerr.WrapStorageWriteError(r.name, err)
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, fmt.Sprintf("%s not found", r.name), nil)
	}
	return r.write(ctx, id, item)
}

func (r *Repository[T]) Delete(ctx context.Context, id string) error {
	if err := r.storage.Delete(ctx, r.path(id)); err != nil {
		return cerr.WrapStorageDeleteError(r.name, err)
	}
	return nil
}

func (r *Repository[T]) write(ctx context.Context, id string, item T) error {
	data, err := yaml.Marshal(item)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to marshal %s: %w", r.name, err))
	}
	if err := r.storage.Write(ctx, r.path(id), data); err != nil {
		return cerr.WrapStorageWriteError(r.name, err)
	}
	return nil
}
