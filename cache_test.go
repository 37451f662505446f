package cache_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	cache "github.com/krisalay/marketplace"
)

//
// ================= HELPERS =================
//

type product struct {
	ID   string
	Name string
}

type countingMetrics struct {
	hits, misses, expired, removed atomic.Int64
}

func (m *countingMetrics) Hit()    { m.hits.Add(1) }
func (m *countingMetrics) Miss()   { m.misses.Add(1) }
func (m *countingMetrics) Expire() { m.expired.Add(1) }
func (m *countingMetrics) Remove() { m.removed.Add(1) }

func newTestCache(timeout time.Duration) (*cache.ExpiringCache[string, product], clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	c := cache.New[string, product](timeout, cache.WithClock(clock), cache.WithShards(4))
	return c, clock
}

//
// ================= FRESHNESS & EXPIRY =================
//

func TestPutThenGetWithinTimeout(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.Put("p1", product{ID: "p1", Name: "Phone"})
	clock.Advance(59 * time.Second)

	v, ok := c.Get("p1")
	if !ok || v.Name != "Phone" {
		t.Fatalf("expected Phone, got %v (ok=%v)", v, ok)
	}
}

func TestConcreteProductScenario(t *testing.T) {
	c, clock := newTestCache(90000 * time.Millisecond)
	productA := product{ID: "p1", Name: "ProductA"}

	c.Put("p1", productA)

	clock.Advance(50000 * time.Millisecond)
	if v, ok := c.Get("p1"); !ok || v != productA {
		t.Fatalf("at t=50000 expected ProductA, got %v (ok=%v)", v, ok)
	}

	clock.Advance(45000 * time.Millisecond)
	if v, ok := c.Get("p1"); ok {
		t.Fatalf("at t=95000 expected no value, got %v", v)
	}
}

func TestExpiredKeyIsNotResurrected(t *testing.T) {
	c, clock := newTestCache(time.Second)

	c.Put("k", product{ID: "k"})
	clock.Advance(2 * time.Second)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected first get after timeout to miss")
	}
	if _, ok := c.Get("k"); ok {
		t.Fatal("expected second get after timeout to miss")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry to be swept, len=%d", c.Len())
	}
}

func TestEntryAtExactDeadlineIsFresh(t *testing.T) {
	c, clock := newTestCache(time.Second)

	c.Put("k", product{ID: "k"})
	clock.Advance(time.Second)

	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected entry to be fresh exactly at its deadline")
	}
}

func TestPutRestampsEntry(t *testing.T) {
	c, clock := newTestCache(10 * time.Second)

	c.Put("k", product{Name: "v1"})
	clock.Advance(8 * time.Second)
	c.Put("k", product{Name: "v2"})
	clock.Advance(8 * time.Second)

	v, ok := c.Get("k")
	if !ok || v.Name != "v2" {
		t.Fatalf("expected v2 to still be fresh, got %v (ok=%v)", v, ok)
	}
}

func TestGetSweepsOtherKeys(t *testing.T) {
	c, clock := newTestCache(time.Second)

	for i := 0; i < 20; i++ {
		c.Put(fmt.Sprintf("old-%d", i), product{})
	}
	clock.Advance(2 * time.Second)
	c.Put("fresh", product{Name: "fresh"})

	if _, ok := c.Get("fresh"); !ok {
		t.Fatal("expected fresh key to be returned")
	}
	if c.Len() != 1 {
		t.Fatalf("expected only the fresh key after sweep, len=%d", c.Len())
	}
}

//
// ================= REMOVE / CLEAR / CLEAN =================
//

func TestRemoveIsIdempotent(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	c.Remove("missing")

	c.Put("k", product{Name: "v"})
	c.Remove("k")
	c.Remove("k")

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected no value after remove")
	}
}

func TestClearEmptiesCache(t *testing.T) {
	c, _ := newTestCache(time.Minute)
	keys := []string{"a", "b", "c", "d"}
	for _, k := range keys {
		c.Put(k, product{ID: k})
	}

	c.Clear()

	for _, k := range keys {
		if _, ok := c.Get(k); ok {
			t.Fatalf("expected %s to be gone after clear", k)
		}
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	c, clock := newTestCache(time.Second)
	c.Put("a", product{})
	c.Put("b", product{})
	clock.Advance(500 * time.Millisecond)
	c.Put("c", product{})
	clock.Advance(700 * time.Millisecond)

	if n := c.Clean(); n != 2 {
		t.Fatalf("expected 2 expired entries cleaned, got %d", n)
	}
	if n := c.Clean(); n != 0 {
		t.Fatalf("expected second clean to remove nothing, got %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", c.Len())
	}
}

func TestNonPositiveTimeoutUsesDefault(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := cache.New[int64, string](0, cache.WithClock(clock))

	c.Put(1, "x")
	clock.Advance(cache.DefaultTimeout)
	if _, ok := c.Get(1); !ok {
		t.Fatal("expected entry to live for the default timeout")
	}
	clock.Advance(time.Millisecond)
	if _, ok := c.Get(1); ok {
		t.Fatal("expected entry to expire after the default timeout")
	}
}

//
// ================= METRICS =================
//

func TestMetricsEvents(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := &countingMetrics{}
	c := cache.New[string, int](time.Second, cache.WithClock(clock), cache.WithMetrics(m))

	c.Put("a", 1)
	c.Put("b", 2)
	c.Get("a")
	c.Get("zzz")
	c.Remove("b")
	c.Remove("b")
	clock.Advance(2 * time.Second)
	c.Get("a")

	if m.hits.Load() != 1 || m.misses.Load() != 2 {
		t.Fatalf("expected 1 hit / 2 misses, got %d / %d", m.hits.Load(), m.misses.Load())
	}
	if m.removed.Load() != 1 {
		t.Fatalf("expected 1 removal, got %d", m.removed.Load())
	}
	if m.expired.Load() != 1 {
		t.Fatalf("expected 1 expiry, got %d", m.expired.Load())
	}
}

//
// ================= CONCURRENCY TEST =================
//

func TestConcurrentAccess(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := cache.New[int, int](time.Second, cache.WithClock(clock), cache.WithShards(8))

	wg := sync.WaitGroup{}
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := (g*500 + i) % 64
				switch i % 4 {
				case 0:
					c.Put(key, i)
				case 1:
					c.Get(key)
				case 2:
					c.Clean()
				case 3:
					c.Remove(key)
				}
			}
		}(g)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			clock.Advance(100 * time.Millisecond)
		}
	}()

	wg.Wait()

	clock.Advance(2 * time.Second)
	c.Clean()
	if c.Len() != 0 {
		t.Fatalf("expected every entry to expire, len=%d", c.Len())
	}
}

func TestConcurrentGetNeverReturnsStale(t *testing.T) {
	clock := clockwork.NewFakeClock()
	c := cache.New[string, time.Time](time.Second, cache.WithClock(clock))

	stop := make(chan struct{})
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				c.Put("k", clock.Now())
				clock.Advance(300 * time.Millisecond)
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				before := clock.Now()
				if stamped, ok := c.Get("k"); ok && before.Sub(stamped) > time.Second {
					t.Errorf("got entry stamped %v while now was %v", stamped, before)
					return
				}
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(stop)
	wg.Wait()
}
