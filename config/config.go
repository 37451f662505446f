// Package config reads the marketplace process settings from flags, falling
// back to MARKETPLACE_* environment variables and then to defaults.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"
)

const (
	DefaultCategoryTimeout = 120000 * time.Millisecond
	DefaultProductTimeout  = 90000 * time.Millisecond
	DefaultShards          = 16
	DefaultMetricsAddr     = ":9090"
	DefaultBucket          = "marketplace"
	DefaultBlobEndpoint    = "http://localhost:9000"
	DefaultPresignTTL      = 15 * time.Minute
)

type Config struct {
	CategoryTimeout time.Duration
	ProductTimeout  time.Duration
	Shards          int
	MetricsAddr     string
	Bucket          string
	BlobEndpoint    string
	BlobSecret      string
	PresignTTL      time.Duration
	Debug           bool
}

var errInvalid = errors.New("invalid configuration")

// Load parses args (without the program name). A flag that is not given takes
// its value from getenv, and an unset variable keeps the default.
func Load(args []string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}

	var (
		cfg        Config
		categoryMS int64
		productMS  int64
		envErr     error
	)
	env := func(name string) string { return getenv("MARKETPLACE_" + name) }
	envInt := func(name string, def int64) int64 {
		raw := env(name)
		if raw == "" {
			return def
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			envErr = errors.Join(envErr, fmt.Errorf("MARKETPLACE_%s=%q: %w", name, raw, err))
			return def
		}
		return v
	}
	envString := func(name, def string) string {
		if v := env(name); v != "" {
			return v
		}
		return def
	}
	envDuration := func(name string, def time.Duration) time.Duration {
		raw := env(name)
		if raw == "" {
			return def
		}
		v, err := time.ParseDuration(raw)
		if err != nil {
			envErr = errors.Join(envErr, fmt.Errorf("MARKETPLACE_%s=%q: %w", name, raw, err))
			return def
		}
		return v
	}
	envBool := func(name string) bool {
		v, _ := strconv.ParseBool(env(name))
		return v
	}

	fs := flag.NewFlagSet("marketplace", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.Int64Var(&categoryMS, "category-timeout-ms", envInt("CATEGORY_CACHE_TIMEOUT_MS", DefaultCategoryTimeout.Milliseconds()), "Category cache timeout in milliseconds")
	fs.Int64Var(&productMS, "product-timeout-ms", envInt("PRODUCT_CACHE_TIMEOUT_MS", DefaultProductTimeout.Milliseconds()), "Product cache timeout in milliseconds")
	fs.IntVar(&cfg.Shards, "shards", int(envInt("CACHE_SHARDS", DefaultShards)), "Shards per cache")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", envString("METRICS_ADDR", DefaultMetricsAddr), "Address of the /metrics endpoint")
	fs.StringVar(&cfg.Bucket, "bucket", envString("BUCKET", DefaultBucket), "Bucket holding logos")
	fs.StringVar(&cfg.BlobEndpoint, "blob-endpoint", envString("BLOB_ENDPOINT", DefaultBlobEndpoint), "Base URL of presigned links")
	fs.StringVar(&cfg.BlobSecret, "blob-secret", env("BLOB_SECRET"), "Key signing presigned links")
	fs.DurationVar(&cfg.PresignTTL, "presign-ttl", envDuration("PRESIGN_TTL", DefaultPresignTTL), "Lifetime of presigned links")
	fs.BoolVar(&cfg.Debug, "debug", envBool("DEBUG"), "Enables additional logging")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("%w: %v", errInvalid, err)
	}
	if envErr != nil {
		return Config{}, fmt.Errorf("%w: %w", errInvalid, envErr)
	}

	cfg.CategoryTimeout = time.Duration(categoryMS) * time.Millisecond
	cfg.ProductTimeout = time.Duration(productMS) * time.Millisecond
	return cfg, cfg.Validate()
}

// Validate reports every out-of-range setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.CategoryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("category cache timeout must be positive, got %v", c.CategoryTimeout))
	}
	if c.ProductTimeout <= 0 {
		errs = append(errs, fmt.Errorf("product cache timeout must be positive, got %v", c.ProductTimeout))
	}
	if c.Shards <= 0 {
		errs = append(errs, fmt.Errorf("shard count must be positive, got %d", c.Shards))
	}
	if c.PresignTTL <= 0 {
		errs = append(errs, fmt.Errorf("presign ttl must be positive, got %v", c.PresignTTL))
	}
	if c.Bucket == "" {
		errs = append(errs, errors.New("bucket is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", errInvalid, errors.Join(errs...))
	}
	return nil
}

// IsInvalid reports whether err came from Load or Validate.
func IsInvalid(err error) bool {
	return errors.Is(err, errInvalid)
}
