package catalog_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	cache "github.com/krisalay/marketplace"
	"github.com/krisalay/marketplace/blob"
	"github.com/krisalay/marketplace/catalog"
	"github.com/krisalay/marketplace/internal/logging"
	"github.com/krisalay/marketplace/store"
)

// countingPictures records how many uploads and deletes reached the bucket.
type countingPictures struct {
	*blob.MemoryStore
	uploads atomic.Int64
	deletes atomic.Int64
}

func (p *countingPictures) Upload(ctx context.Context, f blob.File) (string, error) {
	p.uploads.Add(1)
	return p.MemoryStore.Upload(ctx, f)
}

func (p *countingPictures) Delete(ctx context.Context, key string) error {
	p.deletes.Add(1)
	return p.MemoryStore.Delete(ctx, key)
}

func (p *countingPictures) DeleteAll(ctx context.Context, keys []string) error {
	for _, k := range keys {
		if err := p.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

type fixture struct {
	clock      clockwork.FakeClock
	db         *store.Memory
	pictures   *countingPictures
	categories *catalog.CategoryService
	products   *catalog.ProductService
}

func newFixture(t *testing.T, categoryTimeout, productTimeout time.Duration) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	db := store.NewMemory()
	log := logging.Discard()
	pictures := &countingPictures{MemoryStore: blob.NewMemoryStore(blob.Config{
		Endpoint: "http://blob.local",
		Bucket:   "marketplace",
		Secret:   []byte("test-secret"),
	}, clock, log)}

	categoryCache := cache.New[uuid.UUID, catalog.Category](categoryTimeout, cache.WithClock(clock))
	productCache := cache.New[int64, catalog.Product](productTimeout, cache.WithClock(clock))

	f := &fixture{
		clock:      clock,
		db:         db,
		pictures:   pictures,
		categories: catalog.NewCategoryService(db.Categories(), pictures, categoryCache, log),
		products:   catalog.NewProductService(db.Products(), db.Categories(), pictures, productCache, log),
	}
	catalog.Link(f.categories, f.products)
	return f
}

// stored reports whether key is still in the bucket.
func (f *fixture) stored(t *testing.T, key string) bool {
	t.Helper()
	ok, err := f.pictures.Exists(context.Background(), key)
	if err != nil {
		t.Fatalf("exists %s: %v", key, err)
	}
	return ok
}

func logo(name string) blob.File {
	return blob.File{Name: name, ContentType: "image/png", Content: []byte("\x89PNG" + name)}
}

func ptr[T any](v T) *T { return &v }
