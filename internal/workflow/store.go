package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/patrickmn/go-cache"

	"github.com/local/resumevision/internal/result"
)

// Store persists workflow records by name.
type Store interface {
	Save(ctx context.Context, w *Workflow) error
	Get(ctx context.Context, name string) (*Workflow, error)
	List(ctx context.Context) ([]string, error)
	Close() error
}

// MemoryStore keeps workflows for the life of the process.
type MemoryStore struct {
	items *cache.Cache
}

// NewMemoryStore creates an empty store; entries never expire.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: cache.New(cache.NoExpiration, 0)}
}

func (m *MemoryStore) Save(_ context.Context, w *Workflow) error {
	if w == nil || w.Name == "" {
		return fmt.Errorf("%w: workflow name is empty", result.ErrUnsupportedInput)
	}
	m.items.Set(w.Name, w.Clone(), cache.NoExpiration)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, name string) (*Workflow, error) {
	v, ok := m.items.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: workflow %q", result.ErrNotFound, name)
	}
	return v.(*Workflow).Clone(), nil
}

func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	items := m.items.Items()
	names := make([]string, 0, len(items))
	for k := range items {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Close() error {
	m.items.Flush()
	return nil
}
