package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hospitalcare/appointments/internal/domain/entities"
	apperrors "github.com/hospitalcare/appointments/pkg/errors"
)

// Table is an in-process Store[T]. Entities are copied on the way in and
// out so callers never share memory with the table.
type Table[T any] struct {
	mu    sync.RWMutex
	rows  map[string]T
	order []string
	label string
	idOf  func(*T) string
}

// NewTable creates an empty table keyed by idOf
func NewTable[T any](label string, idOf func(*T) string) *Table[T] {
	return &Table[T]{
		rows:  make(map[string]T),
		label: label,
		idOf:  idOf,
	}
}

// Create inserts entity, rejecting duplicate IDs
func (t *Table[T]) Create(_ context.Context, entity *T) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insertLocked(entity)
}

func (t *Table[T]) insertLocked(entity *T) error {
	id := t.idOf(entity)
	if id == "" {
		return apperrors.NewValidationError(fmt.Sprintf("%s id is required", t.label))
	}
	if _, exists := t.rows[id]; exists {
		return apperrors.NewConflictError(fmt.Sprintf("%s %s already exists", t.label, id))
	}
	t.rows[id] = *entity
	t.order = append(t.order, id)
	return nil
}

// GetByID returns a copy of the stored entity
func (t *Table[T]) GetByID(_ context.Context, id string) (*T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.rows[id]
	if !ok {
		return nil, t.notFound(id)
	}
	return &row, nil
}

// Update replaces the stored entity with the same ID
func (t *Table[T]) Update(_ context.Context, entity *T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.idOf(entity)
	if _, ok := t.rows[id]; !ok {
		return t.notFound(id)
	}
	t.rows[id] = *entity
	return nil
}

// Delete removes an entity by ID
func (t *Table[T]) Delete(_ context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rows[id]; !ok {
		return t.notFound(id)
	}
	delete(t.rows, id)
	for i, existing := range t.order {
		if existing == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

// selectLocked returns copies of the rows accepted by keep, in insertion order.
// Callers hold at least the read lock.
func (t *Table[T]) selectLocked(keep func(*T) bool) []*T {
	var out []*T
	for _, id := range t.order {
		row := t.rows[id]
		if keep == nil || keep(&row) {
			out = append(out, &row)
		}
	}
	return out
}

func (t *Table[T]) selectAll(keep func(*T) bool) []*T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.selectLocked(keep)
}

func (t *Table[T]) notFound(id string) error {
	return apperrors.Wrap(apperrors.ErrorTypeNotFound, fmt.Sprintf("%s %s not found", t.label, id), entities.ErrNotFound)
}
