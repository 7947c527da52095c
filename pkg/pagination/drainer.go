package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/spotify-client/pkg/logging"
	"golang.org/x/sync/errgroup"
)

// Config holds drainer configuration.
type Config struct {
	// MaxConcurrency is the maximum number of chains drained at the same time.
	MaxConcurrency int
	// Timeout per page fetch (0 disables it).
	Timeout time.Duration
}

// DefaultConfig returns a configuration that stays well below the API's rolling rate limit.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
	}
}

// Drainer drains several independent page chains concurrently.
type Drainer struct {
	getter Getter
	config Config
}

// NewDrainer creates a new drainer.
func NewDrainer(getter Getter, config Config) *Drainer {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout < 0 {
		config.Timeout = 0
	}

	return &Drainer{
		getter: getter,
		config: config,
	}
}

// DrainPages fully drains every chain. results[i] holds the items of the chain
// starting at pages[i]. The first failing chain cancels the others and its
// error is returned without partial results.
func DrainPages[T any](ctx context.Context, d *Drainer, pages []Page[T]) ([][]T, error) {
	return drainMany[T](ctx, d, pages, kindOffset)
}

// DrainCursorPages is DrainPages for cursor chains.
func DrainCursorPages[T any](ctx context.Context, d *Drainer, pages []CursorPage[T]) ([][]T, error) {
	return drainMany[T](ctx, d, pages, kindCursor)
}

func drainMany[T any, W window[T]](ctx context.Context, d *Drainer, pages []W, kind string) ([][]T, error) {
	start := time.Now()
	results := make([][]T, len(pages))

	if len(pages) == 0 {
		return results, nil
	}

	logger := logging.FromContext(ctx)
	logger.Info().
		Str("kind", kind).
		Int("chains", len(pages)).
		Int("max_concurrency", d.config.MaxConcurrency).
		Msg("Starting concurrent drain")

	getter := d.getter
	if d.config.Timeout > 0 {
		getter = timeoutGetter{Getter: d.getter, timeout: d.config.Timeout}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.config.MaxConcurrency)

	for i, page := range pages {
		g.Go(func() error {
			items, err := drain[T](gctx, page, getter, kind)
			if err != nil {
				logger.Warn().
					Err(err).
					Str("kind", kind).
					Int("chain", i).
					Msg("Chain drain failed")
				return fmt.Errorf("drain chain %d: %w", i, err)
			}
			results[i] = items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("kind", kind).
		Int("chains", len(pages)).
		Dur("duration", time.Since(start)).
		Msg("Concurrent drain complete")

	return results, nil
}

// timeoutGetter bounds every single fetch by timeout.
type timeoutGetter struct {
	Getter
	timeout time.Duration
}

func (g timeoutGetter) Get(ctx context.Context, rawURL string, params any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	return g.Getter.Get(ctx, rawURL, params, out)
}
