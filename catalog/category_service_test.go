package catalog_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cache "github.com/krisalay/marketplace"
	"github.com/krisalay/marketplace/catalog"
	"github.com/krisalay/marketplace/types"
)

func TestAddCategoryCachesStoredEntity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2*time.Minute, 90*time.Second)

	c, err := f.categories.AddCategory(ctx, catalog.NewCategory{Name: "  Laptops ", Logo: logo("laptops.png")})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, c.ID)
	assert.Equal(t, "Laptops", c.Name)
	assert.NotEmpty(t, c.Logo)

	cached, ok := f.categories.CachedCategory(c.ID)
	require.True(t, ok, "a created category must be cached under its generated id")
	assert.Equal(t, c.ID, cached.ID)
	assert.Equal(t, "Laptops", cached.Name)
}

func TestAddDuplicateCategoryConflicts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 2*time.Minute, 90*time.Second)

	first, err := f.categories.AddCategory(ctx, catalog.NewCategory{Name: "Laptops", Logo: logo("a.png")})
	require.NoError(t, err)
	uploads := f.pictures.uploads.Load()

	_, err = f.categories.AddCategory(ctx, catalog.NewCategory{Name: "Laptops", Logo: logo("b.png")})
	require.ErrorIs(t, err, types.ErrConflict)
	assert.Equal(t, `category with name "Laptops" already exists`, err.Error())

	// nothing was touched
	assert.Equal(t, uploads, f.pictures.uploads.Load())
	page, err := f.categories.ListCategories(ctx, catalog.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, first.ID, page.Items[0].ID)
}

func TestAddCategoryRequiresName(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	_, err := f.categories.AddCategory(context.Background(), catalog.NewCategory{Name: "  ", Logo: logo("x.png")})
	require.Error(t, err)
	assert.Zero(t, f.pictures.uploads.Load())
}

// saveFails lets lookups through and rejects every save.
type saveFails struct {
	catalog.CategoryRepository
	err error
}

func (r saveFails) Save(context.Context, catalog.Category) (catalog.Category, error) {
	return catalog.Category{}, r.err
}

func TestAddCategoryStoreFailureDiscardsLogo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)
	down := errors.New("database is down")
	c := cache.New[uuid.UUID, catalog.Category](time.Minute, cache.WithClock(f.clock))
	svc := catalog.NewCategoryService(saveFails{f.db.Categories(), down}, f.pictures, c, nil)

	_, err := svc.AddCategory(ctx, catalog.NewCategory{Name: "Phones", Logo: logo("p.png")})
	require.ErrorIs(t, err, down)
	assert.EqualValues(t, 1, f.pictures.uploads.Load())
	assert.EqualValues(t, 1, f.pictures.deletes.Load(), "uploaded logo must be removed again")
	assert.Zero(t, c.Len())
}

func TestGetCategoryReadsThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	saved, err := f.db.Categories().Save(ctx, catalog.Category{Name: "Tablets"})
	require.NoError(t, err)

	_, ok := f.categories.CachedCategory(saved.ID)
	require.False(t, ok)

	got, err := f.categories.GetCategory(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tablets", got.Name)

	// served from memory while the store is unreachable
	f.db.FailWith(errors.New("database is down"))
	got, err = f.categories.GetCategory(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tablets", got.Name)
}

func TestGetUnknownCategory(t *testing.T) {
	f := newFixture(t, time.Minute, time.Minute)
	id := uuid.New()

	_, err := f.categories.GetCategory(context.Background(), id)
	require.ErrorIs(t, err, types.ErrNotFound)
	assert.Equal(t, "category with identifier "+id.String()+" not found", err.Error())
}

func TestEditCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	c, err := f.categories.AddCategory(ctx, catalog.NewCategory{Name: "Laptops", Logo: logo("old.png")})
	require.NoError(t, err)
	oldLogo := c.Logo

	edited, err := f.categories.EditCategory(ctx, c.ID, catalog.CategoryUpdate{
		Name: ptr("Notebooks"),
		Logo: ptr(logo("new.png")),
	})
	require.NoError(t, err)
	assert.Equal(t, c.ID, edited.ID)
	assert.Equal(t, "Notebooks", edited.Name)
	assert.NotEqual(t, oldLogo, edited.Logo)

	cached, ok := f.categories.CachedCategory(c.ID)
	require.True(t, ok)
	assert.Equal(t, "Notebooks", cached.Name)

	assert.False(t, f.stored(t, oldLogo), "replaced logo must be deleted")
	assert.True(t, f.stored(t, edited.Logo))
}

func TestEditCategoryRenameConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	_, err := f.categories.AddCategory(ctx, catalog.NewCategory{Name: "Laptops", Logo: logo("a.png")})
	require.NoError(t, err)
	phones, err := f.categories.AddCategory(ctx, catalog.NewCategory{Name: "Phones", Logo: logo("b.png")})
	require.NoError(t, err)

	_, err = f.categories.EditCategory(ctx, phones.ID, catalog.CategoryUpdate{Name: ptr("Laptops")})
	require.ErrorIs(t, err, types.ErrConflict)

	cached, ok := f.categories.CachedCategory(phones.ID)
	require.True(t, ok)
	assert.Equal(t, "Phones", cached.Name)

	// keeping the same name is not a conflict with itself
	_, err = f.categories.EditCategory(ctx, phones.ID, catalog.CategoryUpdate{Name: ptr("Phones")})
	require.NoError(t, err)
}

func TestDeleteCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	c, err := f.categories.AddCategory(ctx, catalog.NewCategory{Name: "Laptops", Logo: logo("l.png")})
	require.NoError(t, err)
	p, err := f.products.AddProduct(ctx, catalog.NewProduct{Name: "ThinkPad", Category: "Laptops", Logo: logo("t.png")})
	require.NoError(t, err)

	require.NoError(t, f.categories.DeleteCategory(ctx, c.ID))

	_, ok := f.categories.CachedCategory(c.ID)
	assert.False(t, ok)
	assert.False(t, f.stored(t, c.Logo))
	assert.False(t, f.stored(t, p.Logo))

	_, err = f.categories.GetCategory(ctx, c.ID)
	require.ErrorIs(t, err, types.ErrNotFound)

	err = f.categories.DeleteCategory(ctx, c.ID)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestStaleCategoryHealsAfterDirectStoreDelete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	c, err := f.categories.AddCategory(ctx, catalog.NewCategory{Name: "Laptops", Logo: logo("l.png")})
	require.NoError(t, err)

	// the process died between the store delete and the cache remove
	require.NoError(t, f.db.Categories().Delete(ctx, c.ID))

	_, err = f.categories.GetCategory(ctx, c.ID)
	require.NoError(t, err, "stale entry is still served until it expires")

	f.clock.Advance(time.Minute + time.Millisecond)
	_, err = f.categories.GetCategory(ctx, c.ID)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestCategoryLogoURL(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	c, err := f.categories.AddCategory(ctx, catalog.NewCategory{Name: "Laptops", Logo: logo("l.png")})
	require.NoError(t, err)

	u, err := f.categories.CategoryLogoURL(ctx, c)
	require.NoError(t, err)
	assert.Contains(t, u, "http://blob.local/marketplace/")

	key, err := f.pictures.Verify(u)
	require.NoError(t, err)
	assert.Equal(t, c.Logo, key)

	u, err = f.categories.CategoryLogoURL(ctx, catalog.Category{})
	require.NoError(t, err)
	assert.Empty(t, u)
}

func TestGetCategoryReturnsCopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	c, err := f.categories.AddCategory(ctx, catalog.NewCategory{Name: "Laptops", Logo: logo("l.png")})
	require.NoError(t, err)
	_, err = f.products.AddProduct(ctx, catalog.NewProduct{Name: "ThinkPad", Category: "Laptops", Logo: logo("t.png")})
	require.NoError(t, err)
	f.clock.Advance(2 * time.Minute)

	got, err := f.categories.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Products, 1)
	got.Products[0].Name = "mutated"

	again, err := f.categories.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "ThinkPad", again.Products[0].Name)
}

func TestGetCategorySeesProductChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	c, err := f.categories.AddCategory(ctx, catalog.NewCategory{Name: "Laptops", Logo: logo("l.png")})
	require.NoError(t, err)
	got, err := f.categories.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	require.Empty(t, got.Products)

	p, err := f.products.AddProduct(ctx, catalog.NewProduct{Name: "X1", Category: "Laptops", Logo: logo("x1.png")})
	require.NoError(t, err)
	got, err = f.categories.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "X1", got.Products[0].Name)

	_, err = f.products.EditProduct(ctx, p.ID, catalog.ProductUpdate{Name: ptr("X1 Carbon")})
	require.NoError(t, err)
	got, err = f.categories.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, got.Products, 1)
	assert.Equal(t, "X1 Carbon", got.Products[0].Name)

	require.NoError(t, f.products.DeleteProduct(ctx, p.ID))
	got, err = f.categories.GetCategory(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Products)
}

func TestDeleteCategoryReleasesLogosMissingFromCachedCopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)
	f.products.OnCategoryChanged(nil) // keep the stale category entry around

	c, err := f.categories.AddCategory(ctx, catalog.NewCategory{Name: "Laptops", Logo: logo("l.png")})
	require.NoError(t, err)
	_, err = f.categories.GetCategory(ctx, c.ID)
	require.NoError(t, err)

	p, err := f.products.AddProduct(ctx, catalog.NewProduct{Name: "X1", Category: "Laptops", Logo: logo("x1.png")})
	require.NoError(t, err)
	cached, ok := f.categories.CachedCategory(c.ID)
	require.True(t, ok)
	require.Empty(t, cached.Products)

	require.NoError(t, f.categories.DeleteCategory(ctx, c.ID))
	assert.False(t, f.stored(t, p.Logo), "logo of a product added after caching must be released")
	assert.False(t, f.stored(t, c.Logo))
}

func TestDeleteCategoryForgetsCascadedProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	c, err := f.categories.AddCategory(ctx, catalog.NewCategory{Name: "Laptops", Logo: logo("l.png")})
	require.NoError(t, err)
	p, err := f.products.AddProduct(ctx, catalog.NewProduct{Name: "X1", Category: "Laptops", Logo: logo("x1.png")})
	require.NoError(t, err)
	_, err = f.products.GetProduct(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, f.categories.DeleteCategory(ctx, c.ID))

	_, ok := f.products.CachedProduct(p.ID)
	assert.False(t, ok)

	_, err = f.products.GetProduct(ctx, p.ID)
	require.ErrorIs(t, err, types.ErrNotFound)
	_, err = f.products.EditProduct(ctx, p.ID, catalog.ProductUpdate{Name: ptr("X2")})
	require.ErrorIs(t, err, types.ErrNotFound)
	require.ErrorIs(t, f.products.DeleteProduct(ctx, p.ID), types.ErrNotFound)
}

func TestRenameCategoryRefreshesProducts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Minute, time.Minute)

	c, err := f.categories.AddCategory(ctx, catalog.NewCategory{Name: "Laptops", Logo: logo("l.png")})
	require.NoError(t, err)
	p, err := f.products.AddProduct(ctx, catalog.NewProduct{Name: "X1", Category: "Laptops", Logo: logo("x1.png")})
	require.NoError(t, err)

	_, err = f.categories.EditCategory(ctx, c.ID, catalog.CategoryUpdate{Name: ptr("Notebooks")})
	require.NoError(t, err)

	got, err := f.products.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Notebooks", got.CategoryName)
}
