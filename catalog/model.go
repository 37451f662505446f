// Package catalog holds the marketplace's category and product services. Each
// service owns one expiring cache and keeps it in step with the backing store.
package catalog

import (
	"github.com/google/uuid"

	"github.com/krisalay/marketplace/blob"
)

const (
	categoryEntity = "category"
	productEntity  = "product"
)

// Category is a named group of products with a logo stored in blob storage.
// Name is the natural key and is unique.
type Category struct {
	ID       uuid.UUID
	Name     string
	Logo     string
	Products []Product
}

// Clone returns a copy that shares nothing mutable with c.
func (c Category) Clone() Category {
	if c.Products != nil {
		c.Products = append([]Product(nil), c.Products...)
	}
	return c
}

// LogoKeys lists the blob keys owned by the category and its products.
func (c Category) LogoKeys() []string {
	keys := make([]string, 0, len(c.Products)+1)
	for _, p := range c.Products {
		if p.Logo != "" {
			keys = append(keys, p.Logo)
		}
	}
	if c.Logo != "" {
		keys = append(keys, c.Logo)
	}
	return keys
}

// Product belongs to exactly one category.
type Product struct {
	ID           int64
	Name         string
	Logo         string
	CategoryID   uuid.UUID
	CategoryName string
}

type NewCategory struct {
	Name string
	Logo blob.File
}

// CategoryUpdate carries the fields to change; nil means keep.
type CategoryUpdate struct {
	Name *string
	Logo *blob.File
}

type NewProduct struct {
	Name     string
	Category string
	Logo     blob.File
}

// ProductUpdate carries the fields to change; nil means keep.
// Category is the target category's name.
type ProductUpdate struct {
	Name     *string
	Category *string
	Logo     *blob.File
}
