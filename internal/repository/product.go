package repository

import (
	"context"

	"productapi/internal/model"
)

// ProductRepository defines data access for products using SQL queries only.
// No business logic here — strictly persistence operations.
type ProductRepository interface {
	// Create inserts a new product record.
	// The caller provides required fields (ID, timestamps) according to the schema.
	// Returns the stored product (may include values set by the DB).
	Create(ctx context.Context, p *model.Product) (*model.Product, error)

	// FindByID returns a product by its ID.
	FindByID(ctx context.Context, id string) (*model.Product, error)

	// List returns a paginated list of products and total rows count for the given filter.
	List(ctx context.Context, pq PageQuery) (*PageResult[model.Product], error)

	// Update replaces the mutable columns of an existing row and returns the
	// updated record. Returns sql.ErrNoRows when the row does not exist.
	Update(ctx context.Context, p *model.Product) (*model.Product, error)

	// Delete removes a product by ID. It returns nil if the row was deleted or did not exist.
	Delete(ctx context.Context, id string) error
}

// PageQuery holds limit/offset pagination parameters and an optional
// category filter (empty means all categories).
type PageQuery struct {
	Limit    int
	Offset   int
	Category string
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
