package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	cache "github.com/krisalay/marketplace"
	"github.com/krisalay/marketplace/catalog"
	"github.com/krisalay/marketplace/internal/logging"
	"github.com/krisalay/marketplace/metrics"
	"github.com/krisalay/marketplace/store"
)

// ================= BENCHMARK =================

func main() {
	ctx := context.Background()

	shards := flag.Int("shards", 16, "Shards per cache")
	productsN := flag.Int("products", 10000, "Products in the store")
	goroutines := flag.Int("c", 200, "Concurrent readers")
	opsPerG := flag.Int("n", 5000, "Reads per reader")
	timeout := flag.Duration("timeout", 90*time.Second, "Product cache timeout")
	warm := flag.Bool("warm", true, "Warm the cache before the run")
	flag.Parse()

	fmt.Println("\n================ READ-THROUGH BENCHMARK =================")
	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Shards       :", *shards)
	fmt.Println("Products     :", *productsN)
	fmt.Println("Goroutines   :", *goroutines)
	fmt.Println("Ops/Goroutine:", *opsPerG)
	fmt.Println("Timeout      :", *timeout)
	fmt.Println("Warm         :", *warm)
	fmt.Println("---------------------------------")

	// ---------------- Backing Store ----------------
	db := store.NewMemory()
	c, err := db.Categories().Save(ctx, catalog.Category{Name: "Bench"})
	if err != nil {
		panic(err)
	}
	ids := make([]int64, 0, *productsN)
	for i := 0; i < *productsN; i++ {
		p, err := db.Products().Save(ctx, catalog.Product{Name: fmt.Sprintf("product-%d", i), CategoryID: c.ID})
		if err != nil {
			panic(err)
		}
		ids = append(ids, p.ID)
	}

	// ---------------- Service ----------------
	reg := prometheus.NewRegistry()
	m := metrics.NewCacheMetrics("bench", reg)
	productCache := cache.New[int64, catalog.Product](*timeout, cache.WithShards(*shards), cache.WithMetrics(m.For("product")))
	products := catalog.NewProductService(db.Products(), db.Categories(), nil, productCache, logging.Discard())

	if *warm {
		fmt.Println("Warming up cache...")
		if err := catalog.WarmUp(ctx, logging.Discard(), products); err != nil {
			panic(err)
		}
		fmt.Println("Warmup complete.")
	}

	// ---------------- Load Test ----------------
	fmt.Println("Running concurrency benchmark...")
	start := time.Now()

	wg := sync.WaitGroup{}
	wg.Add(*goroutines)
	for i := 0; i < *goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < *opsPerG; j++ {
				if _, err := products.GetProduct(ctx, ids[rand.IntN(len(ids))]); err != nil {
					panic(err)
				}
			}
		}()
	}
	wg.Wait()

	duration := time.Since(start)
	totalOps := *goroutines * *opsPerG

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %d\n", totalOps)
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %.2f ops/sec\n", float64(totalOps)/duration.Seconds())
	fmt.Printf("Hits / Misses    : %.0f / %.0f\n",
		testutil.ToFloat64(m.Hits.WithLabelValues("product")),
		testutil.ToFloat64(m.Misses.WithLabelValues("product")))
	fmt.Println("=========================================")
}
