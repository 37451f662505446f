// Package metrics exposes cache activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/krisalay/marketplace/types"
)

// CacheMetrics holds the counters shared by every cache in the process.
// Each cache gets its own label value through For.
type CacheMetrics struct {
	reg prometheus.Registerer

	Hits    *prometheus.CounterVec
	Misses  *prometheus.CounterVec
	Expired *prometheus.CounterVec
	Removed *prometheus.CounterVec
}

// NewCacheMetrics registers the cache counters on reg under namespace.
func NewCacheMetrics(namespace string, reg prometheus.Registerer) *CacheMetrics {
	f := promauto.With(reg)
	return &CacheMetrics{
		reg: reg,
		Hits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Lookups answered from the cache",
		}, []string{"cache"}),
		Misses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Lookups that found no fresh entry",
		}, []string{"cache"}),
		Expired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_expired_total",
			Help:      "Entries swept out after their timeout",
		}, []string{"cache"}),
		Removed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_removed_total",
			Help:      "Entries removed explicitly",
		}, []string{"cache"}),
	}
}

// For returns the recorder for the cache called name.
func (m *CacheMetrics) For(name string) types.Metrics {
	return &recorder{
		hit:    m.Hits.WithLabelValues(name),
		miss:   m.Misses.WithLabelValues(name),
		expire: m.Expired.WithLabelValues(name),
		remove: m.Removed.WithLabelValues(name),
	}
}

// TrackSize publishes size() as the <namespace>_cache_entries gauge for the cache called name.
func (m *CacheMetrics) TrackSize(namespace, name string, size func() int) error {
	return m.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "cache_entries",
		Help:        "Entries currently held, including ones not swept yet",
		ConstLabels: prometheus.Labels{"cache": name},
	}, func() float64 { return float64(size()) }))
}

type recorder struct {
	hit, miss, expire, remove prometheus.Counter
}

func (r *recorder) Hit()    { r.hit.Inc() }
func (r *recorder) Miss()   { r.miss.Inc() }
func (r *recorder) Expire() { r.expire.Inc() }
func (r *recorder) Remove() { r.remove.Inc() }

// Server runs an HTTP server exposing /metrics and /health.
type Server struct {
	server *http.Server
}

// NewServer creates a metrics server on addr serving everything gathered by g.
func NewServer(addr string, g prometheus.Gatherer) *Server {
	return &Server{
		server: &http.Server{
			Addr:              addr,
			Handler:           Handler(g),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler is the mux behind Server.
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// Start starts the server (blocking). It returns nil after Stop.
func (s *Server) Start() error {
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartAsync starts the server in a goroutine; a listen failure is passed to onErr.
func (s *Server) StartAsync(onErr func(error)) {
	go func() {
		if err := s.Start(); err != nil && onErr != nil {
			onErr(err)
		}
	}()
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
