// Package store is the in-process relational store behind the catalog services:
// a categories table and a products table with a unique category name, a
// product → category foreign key and cascade delete.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/krisalay/marketplace/catalog"
	"github.com/krisalay/marketplace/types"
)

// ErrForeignKey is returned when a product points at a category that does not exist.
var ErrForeignKey = errors.New("foreign key violation")

type categoryRow struct {
	id   uuid.UUID
	name string
	logo string
}

type productRow struct {
	id         int64
	name       string
	logo       string
	categoryID uuid.UUID
}

// Memory holds both tables under one lock, so every statement is atomic.
// Rows are copied in and out; callers never share memory with the tables.
type Memory struct {
	mu         sync.RWMutex
	categories map[uuid.UUID]categoryRow
	products   map[int64]productRow
	nextID     int64

	// fail, when set, makes every statement return it. Used to simulate outages.
	fail error
}

func NewMemory() *Memory {
	return &Memory{
		categories: make(map[uuid.UUID]categoryRow),
		products:   make(map[int64]productRow),
		nextID:     1,
	}
}

// Categories returns the categories table as a catalog repository.
func (m *Memory) Categories() catalog.CategoryRepository {
	return categoryRepo{m}
}

// Products returns the products table as a catalog repository.
func (m *Memory) Products() catalog.ProductRepository {
	return productRepo{m}
}

// FailWith makes every following statement fail with err; nil restores service.
func (m *Memory) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *Memory) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.fail
}

// callers hold m.mu
func (m *Memory) categoryWithProducts(row categoryRow) catalog.Category {
	c := catalog.Category{ID: row.id, Name: row.name, Logo: row.logo, Products: []catalog.Product{}}
	for _, p := range m.products {
		if p.categoryID == row.id {
			c.Products = append(c.Products, m.product(p))
		}
	}
	sort.Slice(c.Products, func(i, j int) bool { return c.Products[i].ID < c.Products[j].ID })
	return c
}

// callers hold m.mu
func (m *Memory) product(row productRow) catalog.Product {
	return catalog.Product{
		ID:           row.id,
		Name:         row.name,
		Logo:         row.logo,
		CategoryID:   row.categoryID,
		CategoryName: m.categories[row.categoryID].name,
	}
}

// callers hold m.mu
func (m *Memory) sortedCategories() []categoryRow {
	rows := make([]categoryRow, 0, len(m.categories))
	for _, r := range m.categories {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].name != rows[j].name {
			return rows[i].name < rows[j].name
		}
		return rows[i].id.String() < rows[j].id.String()
	})
	return rows
}

// callers hold m.mu
func (m *Memory) sortedProducts() []productRow {
	rows := make([]productRow, 0, len(m.products))
	for _, r := range m.products {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].id < rows[j].id })
	return rows
}

func paginate[T any](all []T, req catalog.PageRequest) catalog.Page[T] {
	req = req.Normalize()
	page := catalog.Page[T]{Number: req.Page, Size: req.Size, Total: len(all), Items: []T{}}
	from := req.Page * req.Size
	if from >= len(all) {
		return page
	}
	to := min(from+req.Size, len(all))
	page.Items = append(page.Items, all[from:to]...)
	return page
}

type categoryRepo struct{ m *Memory }

func (r categoryRepo) FindByID(ctx context.Context, id uuid.UUID) (catalog.Category, bool, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if err := r.m.check(ctx); err != nil {
		return catalog.Category{}, false, err
	}
	row, ok := r.m.categories[id]
	if !ok {
		return catalog.Category{}, false, nil
	}
	return r.m.categoryWithProducts(row), true, nil
}

func (r categoryRepo) FindByName(ctx context.Context, name string) (catalog.Category, bool, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if err := r.m.check(ctx); err != nil {
		return catalog.Category{}, false, err
	}
	for _, row := range r.m.categories {
		if row.name == name {
			return r.m.categoryWithProducts(row), true, nil
		}
	}
	return catalog.Category{}, false, nil
}

func (r categoryRepo) FindAll(ctx context.Context) ([]catalog.Category, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if err := r.m.check(ctx); err != nil {
		return nil, err
	}
	rows := r.m.sortedCategories()
	out := make([]catalog.Category, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.m.categoryWithProducts(row))
	}
	return out, nil
}

func (r categoryRepo) FindPage(ctx context.Context, req catalog.PageRequest) (catalog.Page[catalog.Category], error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return catalog.Page[catalog.Category]{}, err
	}
	return paginate(all, req), nil
}

func (r categoryRepo) Save(ctx context.Context, c catalog.Category) (catalog.Category, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check(ctx); err != nil {
		return catalog.Category{}, err
	}

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	} else if _, ok := r.m.categories[c.ID]; !ok {
		return catalog.Category{}, fmt.Errorf("update category %s: %w", c.ID, &types.NotFoundError{Entity: "category", Key: c.ID})
	}
	for _, row := range r.m.categories {
		if row.name == c.Name && row.id != c.ID {
			return catalog.Category{}, &types.ConflictError{Entity: "category", Field: "name", Value: c.Name}
		}
	}

	row := categoryRow{id: c.ID, name: c.Name, logo: c.Logo}
	r.m.categories[c.ID] = row
	return r.m.categoryWithProducts(row), nil
}

func (r categoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check(ctx); err != nil {
		return err
	}
	delete(r.m.categories, id)
	for pid, p := range r.m.products {
		if p.categoryID == id {
			delete(r.m.products, pid)
		}
	}
	return nil
}

type productRepo struct{ m *Memory }

func (r productRepo) FindByID(ctx context.Context, id int64) (catalog.Product, bool, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if err := r.m.check(ctx); err != nil {
		return catalog.Product{}, false, err
	}
	row, ok := r.m.products[id]
	if !ok {
		return catalog.Product{}, false, nil
	}
	return r.m.product(row), true, nil
}

func (r productRepo) FindAll(ctx context.Context) ([]catalog.Product, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if err := r.m.check(ctx); err != nil {
		return nil, err
	}
	rows := r.m.sortedProducts()
	out := make([]catalog.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, r.m.product(row))
	}
	return out, nil
}

func (r productRepo) FindPage(ctx context.Context, filter catalog.ProductFilter, req catalog.PageRequest) (catalog.Page[catalog.Product], error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return catalog.Page[catalog.Product]{}, err
	}

	matched := all[:0]
	for _, p := range all {
		if filter.Category != "" && !strings.EqualFold(p.CategoryName, filter.Category) {
			continue
		}
		if filter.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Name)) {
			continue
		}
		matched = append(matched, p)
	}
	return paginate(matched, req), nil
}

func (r productRepo) UniqueNames(ctx context.Context) ([]string, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	if err := r.m.check(ctx); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(r.m.products))
	names := make([]string, 0, len(r.m.products))
	for _, p := range r.m.products {
		if _, ok := seen[p.name]; ok {
			continue
		}
		seen[p.name] = struct{}{}
		names = append(names, p.name)
	}
	sort.Strings(names)
	return names, nil
}

func (r productRepo) Save(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check(ctx); err != nil {
		return catalog.Product{}, err
	}

	if _, ok := r.m.categories[p.CategoryID]; !ok {
		return catalog.Product{}, fmt.Errorf("product %q references category %s: %w", p.Name, p.CategoryID, ErrForeignKey)
	}
	if p.ID == 0 {
		p.ID = r.m.nextID
		r.m.nextID++
	} else if _, ok := r.m.products[p.ID]; !ok {
		return catalog.Product{}, fmt.Errorf("update product %d: %w", p.ID, &types.NotFoundError{Entity: "product", Key: p.ID})
	}

	row := productRow{id: p.ID, name: p.Name, logo: p.Logo, categoryID: p.CategoryID}
	r.m.products[p.ID] = row
	return r.m.product(row), nil
}

func (r productRepo) Delete(ctx context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.check(ctx); err != nil {
		return err
	}
	delete(r.m.products, id)
	return nil
}
