package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/krisalay/marketplace/api"
	"github.com/krisalay/marketplace/engine"
	"github.com/krisalay/marketplace/internal/logging"
	"github.com/krisalay/marketplace/types"
)

// ProductService manages products. Point lookups go through its own cache;
// listings, filters and unique names always come from the store.
type ProductService struct {
	products   ProductRepository
	categories CategoryRepository
	pictures   PictureStore
	cache      *engine.CacheAside[int64, Product]
	log        *logging.Logger

	// categoryChanged is told which categories gained or lost a product.
	categoryChanged func(ids ...uuid.UUID)
}

func NewProductService(products ProductRepository, categories CategoryRepository, pictures PictureStore, c api.Cache[int64, Product], log *logging.Logger) *ProductService {
	if log == nil {
		log = logging.Discard()
	}
	loader := types.LoaderFunc[int64, Product](products.FindByID)
	return &ProductService{
		products:        products,
		categories:      categories,
		pictures:        pictures,
		cache:           engine.NewCacheAside[int64, Product](productEntity, c, loader, log),
		log:             log,
		categoryChanged: func(...uuid.UUID) {},
	}
}

// OnCategoryChanged registers fn to receive the ids of categories whose cached
// product list a product mutation made stale. Set it before serving.
func (s *ProductService) OnCategoryChanged(fn func(ids ...uuid.UUID)) {
	if fn == nil {
		fn = func(...uuid.UUID) {}
	}
	s.categoryChanged = fn
}

// Forget drops products from the cache, e.g. after their category was deleted.
func (s *ProductService) Forget(ids ...int64) {
	for _, id := range ids {
		s.cache.Invalidate(id)
	}
}

func (s *ProductService) ListProducts(ctx context.Context, req PageRequest) (Page[Product], error) {
	return s.products.FindPage(ctx, ProductFilter{}, req.Normalize())
}

// FilterProducts lists products matching filter. A zero filter lists everything.
func (s *ProductService) FilterProducts(ctx context.Context, filter ProductFilter, req PageRequest) (Page[Product], error) {
	filter.Category = strings.TrimSpace(filter.Category)
	filter.Name = strings.TrimSpace(filter.Name)
	return s.products.FindPage(ctx, filter, req.Normalize())
}

// UniqueProductNames returns the distinct product names, sorted.
func (s *ProductService) UniqueProductNames(ctx context.Context) ([]string, error) {
	return s.products.UniqueNames(ctx)
}

// GetProduct resolves a product by id, from the cache when possible.
func (s *ProductService) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.cache.Read(ctx, id)
}

// ProductLogoURL returns a presigned link to the product's logo, or "" if it has none.
func (s *ProductService) ProductLogoURL(ctx context.Context, p Product) (string, error) {
	if p.Logo == "" {
		return "", nil
	}
	return s.pictures.URL(ctx, p.Logo)
}

// AddProduct creates a product in the category named by in.Category and caches
// the stored entity under its generated id.
func (s *ProductService) AddProduct(ctx context.Context, in NewProduct) (Product, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Product{}, fmt.Errorf("product name is required")
	}
	category, err := s.categoryByName(ctx, in.Category)
	if err != nil {
		return Product{}, err
	}

	logo, err := s.pictures.Upload(ctx, in.Logo)
	if err != nil {
		return Product{}, fmt.Errorf("upload logo for product %q: %w", name, err)
	}

	saved, err := s.products.Save(ctx, Product{
		Name:         name,
		Logo:         logo,
		CategoryID:   category.ID,
		CategoryName: category.Name,
	})
	if err != nil {
		s.discardLogo(ctx, logo)
		return Product{}, fmt.Errorf("save product %q: %w", name, err)
	}

	s.cache.Populate(saved.ID, saved)
	s.categoryChanged(saved.CategoryID)
	s.log.Infof("product %s created as %d", saved.Name, saved.ID)
	return saved, nil
}

/*
EditProduct changes a product's name, category and/or logo.

1. Resolve through the cache (falls back to the store, NotFound if gone)
2. Apply the field changes; a new logo is uploaded first
3. Persist
4. Put the stored entity back under the same key
5. Delete the replaced logo
*/
func (s *ProductService) EditProduct(ctx context.Context, id int64, upd ProductUpdate) (Product, error) {
	current, err := s.cache.Read(ctx, id)
	if err != nil {
		return Product{}, err
	}
	next := current

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Product{}, fmt.Errorf("product name is required")
		}
		next.Name = name
	}
	if upd.Category != nil && *upd.Category != current.CategoryName {
		category, err := s.categoryByName(ctx, *upd.Category)
		if err != nil {
			return Product{}, err
		}
		next.CategoryID, next.CategoryName = category.ID, category.Name
	}

	oldLogo := ""
	if upd.Logo != nil && !upd.Logo.Empty() {
		logo, err := s.pictures.Upload(ctx, *upd.Logo)
		if err != nil {
			return Product{}, fmt.Errorf("upload logo for product %d: %w", id, err)
		}
		oldLogo, next.Logo = current.Logo, logo
	}

	saved, err := s.products.Save(ctx, next)
	if err != nil {
		if next.Logo != current.Logo {
			s.discardLogo(ctx, next.Logo)
		}
		return Product{}, fmt.Errorf("save product %d: %w", id, err)
	}
	s.cache.Populate(id, saved)
	if saved.CategoryID != current.CategoryID {
		s.categoryChanged(current.CategoryID, saved.CategoryID)
	} else {
		s.categoryChanged(saved.CategoryID)
	}

	if oldLogo != "" {
		s.discardLogo(ctx, oldLogo)
	}
	return saved, nil
}

// DeleteProduct removes the product's logo, then the product, then its cache entry.
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	p, err := s.cache.Read(ctx, id)
	if err != nil {
		return err
	}

	if err := s.pictures.Delete(ctx, p.Logo); err != nil {
		return fmt.Errorf("delete logo of product %d: %w", id, err)
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	s.cache.Invalidate(id)
	s.categoryChanged(p.CategoryID)

	s.log.Infof("product %d has been deleted", id)
	return nil
}

// Warm loads every product into the cache.
func (s *ProductService) Warm(ctx context.Context) (int, error) {
	all, err := s.products.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load products: %w", err)
	}
	return s.cache.Warm(all, func(p Product) int64 { return p.ID }), nil
}

// Name implements Warmer.
func (s *ProductService) Name() string { return productEntity }

// CachedProduct looks only at the cache.
func (s *ProductService) CachedProduct(id int64) (Product, bool) {
	return s.cache.Cached(id)
}

func (s *ProductService) categoryByName(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	c, found, err := s.categories.FindByName(ctx, name)
	if err != nil {
		return Category{}, fmt.Errorf("look up category %q: %w", name, err)
	}
	if !found {
		return Category{}, &types.NotFoundError{Entity: categoryEntity, Key: name}
	}
	return c, nil
}

func (s *ProductService) discardLogo(ctx context.Context, key string) {
	if err := s.pictures.Delete(ctx, key); err != nil {
		s.log.Warnf("could not delete logo %s: %v", key, err)
	}
}
