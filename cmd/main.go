package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	cache "github.com/krisalay/marketplace"
	"github.com/krisalay/marketplace/blob"
	"github.com/krisalay/marketplace/catalog"
	"github.com/krisalay/marketplace/config"
	"github.com/krisalay/marketplace/internal/logging"
	"github.com/krisalay/marketplace/metrics"
	"github.com/krisalay/marketplace/store"
	"github.com/krisalay/marketplace/types"
)

const namespace = "marketplace"

// ================= MAIN =================

func main() {
	cfg, err := config.Load(os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := logging.Default(cfg.Debug)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("\n==================== SYSTEM BOOT ====================")
	fmt.Println("CATEGORY TIMEOUT :", cfg.CategoryTimeout)
	fmt.Println("PRODUCT TIMEOUT  :", cfg.ProductTimeout)
	fmt.Println("SHARDS           :", cfg.Shards)
	fmt.Println("BUCKET           :", cfg.Bucket)
	fmt.Println("METRICS          :", cfg.MetricsAddr)

	// ---------------- Metrics ----------------
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cacheMetrics := metrics.NewCacheMetrics(namespace, reg)

	// ---------------- Stores ----------------
	db := store.NewMemory()
	secret := []byte(cfg.BlobSecret)
	if len(secret) == 0 {
		secret = []byte(uuid.NewString())
		log.Warnf("no blob secret configured, presigned links will not survive a restart")
	}
	pictures := blob.NewMemoryStore(blob.Config{
		Endpoint:   cfg.BlobEndpoint,
		Bucket:     cfg.Bucket,
		Secret:     secret,
		PresignTTL: cfg.PresignTTL,
	}, clockwork.NewRealClock(), log)

	if err := seed(ctx, db, pictures); err != nil {
		log.Fatalf("seeding catalog: %v", err)
	}

	// ---------------- Caches + services ----------------
	categoryCache := cache.New[uuid.UUID, catalog.Category](cfg.CategoryTimeout,
		cache.WithShards(cfg.Shards),
		cache.WithMetrics(cacheMetrics.For("category")),
	)
	productCache := cache.New[int64, catalog.Product](cfg.ProductTimeout,
		cache.WithShards(cfg.Shards),
		cache.WithMetrics(cacheMetrics.For("product")),
	)
	if err := cacheMetrics.TrackSize(namespace, "category", categoryCache.Len); err != nil {
		log.Fatalf("registering gauge: %v", err)
	}
	if err := cacheMetrics.TrackSize(namespace, "product", productCache.Len); err != nil {
		log.Fatalf("registering gauge: %v", err)
	}

	categories := catalog.NewCategoryService(db.Categories(), pictures, categoryCache, log)
	products := catalog.NewProductService(db.Products(), db.Categories(), pictures, productCache, log)
	catalog.Link(categories, products)

	// Serving with half-filled caches is not allowed.
	if err := catalog.WarmUp(ctx, log, categories, products); err != nil {
		log.Fatalf("startup aborted: %v", err)
	}

	walkthrough(ctx, categories, products)

	// ---------------- Serve ----------------
	srv := metrics.NewServer(cfg.MetricsAddr, reg)
	srv.StartAsync(func(err error) {
		log.Errorf("metrics server: %v", err)
		stop()
	})
	log.Infof("serving metrics on %s", cfg.MetricsAddr)

	<-ctx.Done()

	fmt.Println("\n==================== SHUTDOWN ====================")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Errorf("stopping metrics server: %v", err)
	}
	categoryCache.Clear()
	productCache.Clear()
	fmt.Println("SYSTEM → caches cleared, bye")
}

// ================= SEED DATA =================

func seed(ctx context.Context, db *store.Memory, pictures *blob.MemoryStore) error {
	catalogue := map[string][]string{
		"Laptops": {"ThinkPad X1", "MacBook Air"},
		"Phones":  {"Pixel 9", "iPhone 16"},
	}
	for name, items := range catalogue {
		logo, err := pictures.Upload(ctx, png(name))
		if err != nil {
			return err
		}
		c, err := db.Categories().Save(ctx, catalog.Category{Name: name, Logo: logo})
		if err != nil {
			return err
		}
		for _, item := range items {
			logo, err := pictures.Upload(ctx, png(item))
			if err != nil {
				return err
			}
			if _, err := db.Products().Save(ctx, catalog.Product{Name: item, Logo: logo, CategoryID: c.ID}); err != nil {
				return err
			}
		}
	}
	return nil
}

func png(name string) blob.File {
	return blob.File{Name: name + ".png", ContentType: "image/png", Content: []byte("\x89PNG " + name)}
}

// ================= WALKTHROUGH =================

func walkthrough(ctx context.Context, categories *catalog.CategoryService, products *catalog.ProductService) {
	page, err := categories.ListCategories(ctx, catalog.PageRequest{})
	if err != nil || len(page.Items) == 0 {
		fmt.Println("WALKTHROUGH skipped:", err)
		return
	}
	first := page.Items[0]

	fmt.Println("\n==================== 1) CACHE HIT ====================")
	c, err := categories.GetCategory(ctx, first.ID)
	fmt.Printf("CACHE  → GET category %s = %s (%d products), err=%v\n", first.ID, c.Name, len(c.Products), err)

	fmt.Println("\n==================== 2) CONFLICT ====================")
	_, err = categories.AddCategory(ctx, catalog.NewCategory{Name: first.Name, Logo: png(first.Name)})
	fmt.Printf("SERVICE → ADD category %q: conflict=%v (%v)\n", first.Name, errors.Is(err, types.ErrConflict), err)

	fmt.Println("\n==================== 3) CREATE + DELETE ====================")
	p, err := products.AddProduct(ctx, catalog.NewProduct{Name: "Demo Gadget", Category: first.Name, Logo: png("demo")})
	if err != nil {
		fmt.Println("SERVICE → ADD product failed:", err)
	} else {
		_, cached := products.CachedProduct(p.ID)
		fmt.Printf("SERVICE → ADD product %d, cached=%v\n", p.ID, cached)

		url, err := products.ProductLogoURL(ctx, p)
		fmt.Printf("BLOB   → logo url %s, err=%v\n", url, err)

		err = products.DeleteProduct(ctx, p.ID)
		fmt.Printf("SERVICE → DELETE product %d, err=%v\n", p.ID, err)

		_, err = products.GetProduct(ctx, p.ID)
		fmt.Printf("SERVICE → GET product %d after delete: not found=%v\n", p.ID, errors.Is(err, types.ErrNotFound))
	}

	fmt.Println("\n==================== 4) TIMEOUT ====================")
	expiry()

	fmt.Println("\n==================== 5) CONCURRENT READS ====================")
	wg := sync.WaitGroup{}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c, err := categories.GetCategory(ctx, first.ID)
			fmt.Printf("GOROUTINE-%d → GET %s = %s, err=%v\n", id, first.ID, c.Name, err)
		}(i)
	}
	wg.Wait()
}

// expiry replays a 90 s product timeout on a fake clock instead of sleeping through it.
func expiry() {
	clock := clockwork.NewFakeClock()
	c := cache.New[int64, string](90000*time.Millisecond, cache.WithClock(clock))
	c.Put(42, "ProductA")

	clock.Advance(50000 * time.Millisecond)
	v, ok := c.Get(42)
	fmt.Printf("CACHE  → GET 42 at t=50s  = %q, hit=%v\n", v, ok)

	clock.Advance(45000 * time.Millisecond)
	v, ok = c.Get(42)
	fmt.Printf("CACHE  → GET 42 at t=95s  = %q, hit=%v\n", v, ok)
}
