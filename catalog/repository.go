package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/krisalay/marketplace/blob"
)

// PageRequest selects one zero-based page.
type PageRequest struct {
	Page int
	Size int
}

// DefaultPageSize applies when a request asks for a non-positive size.
const DefaultPageSize = 20

// Normalize clamps negative pages and fills in the default size.
func (r PageRequest) Normalize() PageRequest {
	if r.Page < 0 {
		r.Page = 0
	}
	if r.Size <= 0 {
		r.Size = DefaultPageSize
	}
	return r
}

// Page is one slice of a listing plus the total row count.
type Page[T any] struct {
	Items  []T
	Number int
	Size   int
	Total  int
}

// TotalPages rounds up Total / Size.
func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return (p.Total + p.Size - 1) / p.Size
}

// ProductFilter narrows product listings. Empty fields match everything.
// Category must equal the category name and Name is a substring match, both case-insensitive.
type ProductFilter struct {
	Category string
	Name     string
}

// CategoryRepository is the relational store for categories. Lookups by id
// include the category's products.
type CategoryRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (Category, bool, error)
	FindByName(ctx context.Context, name string) (Category, bool, error)
	FindAll(ctx context.Context) ([]Category, error)
	FindPage(ctx context.Context, req PageRequest) (Page[Category], error)
	// Save inserts when ID is zero (assigning one) and updates otherwise.
	Save(ctx context.Context, c Category) (Category, error)
	// Delete removes the category and its products.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProductRepository is the relational store for products.
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (Product, bool, error)
	FindAll(ctx context.Context) ([]Product, error)
	FindPage(ctx context.Context, filter ProductFilter, req PageRequest) (Page[Product], error)
	UniqueNames(ctx context.Context) ([]string, error)
	Save(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id int64) error
}

// PictureStore is the blob storage the services keep logos in.
type PictureStore interface {
	Upload(ctx context.Context, f blob.File) (string, error)
	Delete(ctx context.Context, key string) error
	DeleteAll(ctx context.Context, keys []string) error
	URL(ctx context.Context, key string) (string, error)
}
