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

// CategoryService manages categories. Point lookups go through its own cache;
// listings always come from the store.
type CategoryService struct {
	repo     CategoryRepository
	pictures PictureStore
	cache    *engine.CacheAside[uuid.UUID, Category]
	log      *logging.Logger

	// productsChanged is told which products a delete or rename touched.
	productsChanged func(ids ...int64)
}

func NewCategoryService(repo CategoryRepository, pictures PictureStore, c api.Cache[uuid.UUID, Category], log *logging.Logger) *CategoryService {
	if log == nil {
		log = logging.Discard()
	}
	loader := types.LoaderFunc[uuid.UUID, Category](func(ctx context.Context, id uuid.UUID) (Category, bool, error) {
		log.Infof("fetching category %s from repository", id)
		return repo.FindByID(ctx, id)
	})
	return &CategoryService{
		repo:            repo,
		pictures:        pictures,
		cache:           engine.NewCacheAside[uuid.UUID, Category](categoryEntity, c, loader, log),
		log:             log,
		productsChanged: func(...int64) {},
	}
}

// OnProductsChanged registers fn to receive the ids of products whose cached
// copy a category delete or rename made stale. Set it before serving.
func (s *CategoryService) OnProductsChanged(fn func(ids ...int64)) {
	if fn == nil {
		fn = func(...int64) {}
	}
	s.productsChanged = fn
}

// Forget drops categories from the cache, e.g. after their product list changed.
func (s *CategoryService) Forget(ids ...uuid.UUID) {
	for _, id := range ids {
		s.cache.Invalidate(id)
	}
}

// ListCategories returns one page of categories with their products.
func (s *CategoryService) ListCategories(ctx context.Context, req PageRequest) (Page[Category], error) {
	return s.repo.FindPage(ctx, req.Normalize())
}

// GetCategory resolves a category by id, from the cache when possible.
func (s *CategoryService) GetCategory(ctx context.Context, id uuid.UUID) (Category, error) {
	c, err := s.cache.Read(ctx, id)
	if err != nil {
		return Category{}, err
	}
	return c.Clone(), nil
}

// CategoryLogoURL returns a presigned link to the category's logo, or "" if it has none.
func (s *CategoryService) CategoryLogoURL(ctx context.Context, c Category) (string, error) {
	if c.Logo == "" {
		return "", nil
	}
	return s.pictures.URL(ctx, c.Logo)
}

/*
AddCategory creates a category.

1. Conflict if the name is taken; nothing has been touched yet
2. Upload the logo
3. Persist; on failure the uploaded logo is removed again
4. Cache the entity the store returned, keyed by its generated id
*/
func (s *CategoryService) AddCategory(ctx context.Context, in NewCategory) (Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Category{}, fmt.Errorf("category name is required")
	}
	if err := s.ensureNameFree(ctx, name, uuid.Nil); err != nil {
		return Category{}, err
	}

	logo, err := s.pictures.Upload(ctx, in.Logo)
	if err != nil {
		return Category{}, fmt.Errorf("upload logo for category %q: %w", name, err)
	}

	saved, err := s.repo.Save(ctx, Category{Name: name, Logo: logo})
	if err != nil {
		s.discardLogo(ctx, logo)
		return Category{}, fmt.Errorf("save category %q: %w", name, err)
	}

	s.cache.Populate(saved.ID, saved.Clone())
	s.log.Infof("category %s created as %s", saved.Name, saved.ID)
	return saved, nil
}

/*
EditCategory renames a category and/or replaces its logo.
The new logo is uploaded before the save and the old one is deleted only after
the save committed, so a failed save never leaves the category without a logo.
*/
func (s *CategoryService) EditCategory(ctx context.Context, id uuid.UUID, upd CategoryUpdate) (Category, error) {
	current, err := s.cache.Read(ctx, id)
	if err != nil {
		return Category{}, err
	}
	next := current.Clone()

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return Category{}, fmt.Errorf("category name is required")
		}
		if name != current.Name {
			if err := s.ensureNameFree(ctx, name, id); err != nil {
				return Category{}, err
			}
		}
		next.Name = name
	}

	oldLogo := ""
	if upd.Logo != nil && !upd.Logo.Empty() {
		logo, err := s.pictures.Upload(ctx, *upd.Logo)
		if err != nil {
			return Category{}, fmt.Errorf("upload logo for category %s: %w", id, err)
		}
		oldLogo, next.Logo = current.Logo, logo
	}

	saved, err := s.repo.Save(ctx, next)
	if err != nil {
		if next.Logo != current.Logo {
			s.discardLogo(ctx, next.Logo)
		}
		return Category{}, fmt.Errorf("save category %s: %w", id, err)
	}
	s.cache.Populate(id, saved.Clone())
	if saved.Name != current.Name {
		s.productsChanged(productIDs(saved.Products)...)
	}

	if oldLogo != "" {
		s.discardLogo(ctx, oldLogo)
	}
	return saved, nil
}

/*
DeleteCategory removes a category together with its products.

1. Resolve through the cache (NotFound if the store has no such category)
2. Re-read the category from the store: the cached product list may be older
   than the rows the cascade is about to remove
3. Delete every product logo and the category logo
4. Delete from the store
5. Drop the cache entry and the cascaded products' entries, only after the
   store delete succeeded
*/
func (s *CategoryService) DeleteCategory(ctx context.Context, id uuid.UUID) error {
	if _, err := s.cache.Read(ctx, id); err != nil {
		return err
	}

	c, found, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load category %s: %w", id, err)
	}
	if !found {
		s.cache.Invalidate(id)
		return &types.NotFoundError{Entity: categoryEntity, Key: id}
	}

	if err := s.pictures.DeleteAll(ctx, c.LogoKeys()); err != nil {
		return fmt.Errorf("delete logos of category %s: %w", id, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	s.cache.Invalidate(id)
	s.productsChanged(productIDs(c.Products)...)

	s.log.Infof("category %s has been deleted with %d products", id, len(c.Products))
	return nil
}

// Warm loads every category into the cache.
func (s *CategoryService) Warm(ctx context.Context) (int, error) {
	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load categories: %w", err)
	}
	return s.cache.Warm(all, func(c Category) uuid.UUID { return c.ID }), nil
}

// Name implements Warmer.
func (s *CategoryService) Name() string { return categoryEntity }

// CachedCategory looks only at the cache.
func (s *CategoryService) CachedCategory(id uuid.UUID) (Category, bool) {
	return s.cache.Cached(id)
}

func (s *CategoryService) ensureNameFree(ctx context.Context, name string, self uuid.UUID) error {
	existing, found, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return fmt.Errorf("look up category %q: %w", name, err)
	}
	if found && existing.ID != self {
		return &types.ConflictError{Entity: categoryEntity, Field: "name", Value: name}
	}
	return nil
}

func (s *CategoryService) discardLogo(ctx context.Context, key string) {
	if err := s.pictures.Delete(ctx, key); err != nil {
		s.log.Warnf("could not delete logo %s: %v", key, err)
	}
}

func productIDs(products []Product) []int64 {
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}
