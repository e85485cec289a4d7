package repositories

import "context"

// Store is the CRUD contract shared by every persisted entity. Entity
// repositories embed it and add their own queries.
type Store[T any] interface {
	// Create inserts a new entity
	Create(ctx context.Context, entity *T) error

	// GetByID retrieves an entity by ID
	GetByID(ctx context.Context, id string) (*T, error)

	// Update replaces the stored entity with the same ID
	Update(ctx context.Context, entity *T) error
}

// SortDirection orders list results
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Page bounds a list query. Zero Limit means no limit.
type Page struct {
	Limit  int
	Offset int
}
