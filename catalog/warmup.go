package catalog

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/krisalay/marketplace/internal/logging"
)

// Warmer fills one cache from the backing store.
type Warmer interface {
	Name() string
	Warm(ctx context.Context) (int, error)
}

/*
WarmUp populates every cache before traffic is served.

The warmers run concurrently. The first store error cancels the others and is
returned; callers must not start serving when WarmUp fails, because the caches
would be in an unknown, partially filled state.
*/
func WarmUp(ctx context.Context, log *logging.Logger, warmers ...Warmer) error {
	if log == nil {
		log = logging.Discard()
	}
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for _, w := range warmers {
		g.Go(func() error {
			n, err := w.Warm(ctx)
			if err != nil {
				return fmt.Errorf("warm %s cache: %w", w.Name(), err)
			}
			log.Debugf("%s cache: %d entries", w.Name(), n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Errorf("cache warm-up failed: %v", err)
		return err
	}

	log.Infof("cache warm-up finished in %v", time.Since(start))
	return nil
}
