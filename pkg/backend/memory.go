package backend

import (
	"context"
	"slices"
	"sync"

	"github.com/marshallshelly/databridge/pkg/model"
	"github.com/marshallshelly/databridge/pkg/registry"
	"github.com/marshallshelly/databridge/pkg/schema"
)

// NewMemoryStore returns a store that keeps everything in memory.
func NewMemoryStore() *Store {
	return &Store{
		Kind:      "memory",
		Products:  newMemTable[model.Product](),
		Students:  newMemTable[model.Student](),
		Employees: newMemTable[model.Employee](),
		Members:   newMemTable[model.Member](),
	}
}

type memTable[T model.Entity] struct {
	mu     sync.RWMutex
	table  *schema.TableMetadata
	rows   map[int64]T
	nextID int64
}

func newMemTable[T model.Entity]() *memTable[T] {
	return &memTable[T]{
		table: registry.For[T](),
		rows:  make(map[int64]T),
	}
}

func (m *memTable[T]) List(ctx context.Context) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]T, 0, len(m.rows))
	for _, rec := range m.rows {
		items = append(items, rec)
	}
	slices.SortFunc(items, func(a, b T) int {
		switch {
		case a.Key() < b.Key():
			return -1
		case a.Key() > b.Key():
			return 1
		}
		return 0
	})
	return items, nil
}

func (m *memTable[T]) Get(ctx context.Context, id int64) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.rows[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return rec, nil
}

func (m *memTable[T]) Insert(ctx context.Context, rec T) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	if err := m.table.SetKey(&rec, m.nextID); err != nil {
		m.nextID--
		return 0, err
	}
	m.rows[m.nextID] = rec
	return m.nextID, nil
}

func (m *memTable[T]) Update(ctx context.Context, id int64, rec T) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	if err := m.table.SetKey(&rec, id); err != nil {
		return err
	}
	m.rows[id] = rec
	return nil
}

func (m *memTable[T]) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rows[id]; !ok {
		return ErrNotFound
	}
	delete(m.rows, id)
	return nil
}
