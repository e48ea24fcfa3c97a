package source

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"quotefeed/internal/market"
	"quotefeed/internal/metrics"
)

// ChainConfig bounds the retry behavior of the chain.
type ChainConfig struct {
	// AttemptsPerSource is how many times one source is tried before
	// failing over to the next.
	AttemptsPerSource int
	// AttemptTimeout is the hard deadline for a single attempt.
	AttemptTimeout time.Duration
	// Backoff is the base delay between attempts against the same
	// source; it grows linearly (Backoff, 2*Backoff, ...).
	Backoff time.Duration
}

func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		AttemptsPerSource: 3,
		AttemptTimeout:    4 * time.Second,
		Backoff:           400 * time.Millisecond,
	}
}

// Chain tries sources in fixed priority order with bounded retries.
// Attempt failures are logged, never surfaced; only total exhaustion
// is returned, as an ExhaustedError.
type Chain struct {
	cfg     ChainConfig
	sources []Source
	log     zerolog.Logger
	met     *metrics.Set
}

// Option customizes a Chain.
type Option func(*Chain)

// WithMetrics wires attempt counters.
func WithMetrics(m *metrics.Set) Option {
	return func(c *Chain) { c.met = m }
}

func NewChain(cfg ChainConfig, log zerolog.Logger, sources ...Source) *Chain {
	def := DefaultChainConfig()
	if cfg.AttemptsPerSource <= 0 {
		cfg.AttemptsPerSource = def.AttemptsPerSource
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	return &Chain{cfg: cfg, sources: sources, log: log}
}

// Apply applies options after construction.
func (c *Chain) Apply(opts ...Option) *Chain {
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchQuote resolves a current-price quote through the chain.
func (c *Chain) FetchQuote(ctx context.Context, symbol string, mkt market.Market) (market.Quote, error) {
	return run(ctx, c, symbol, func(ctx context.Context, s Source) (market.Quote, error) {
		return s.FetchQuote(ctx, symbol, mkt)
	})
}

// FetchBars resolves a bar series through the chain.
func (c *Chain) FetchBars(ctx context.Context, symbol string, mkt market.Market, rng market.Range) (market.BarSeries, error) {
	return run(ctx, c, symbol, func(ctx context.Context, s Source) (market.BarSeries, error) {
		return s.FetchBars(ctx, symbol, mkt, rng)
	})
}

// run is the shared attempt loop. Backoff waits suspend on a timer and
// the context, never a thread.
func run[T any](ctx context.Context, c *Chain, symbol string, fetch func(context.Context, Source) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := 0

	for _, src := range c.sources {
		for i := 1; i <= c.cfg.AttemptsPerSource; i++ {
			if i > 1 {
				if err := sleep(ctx, time.Duration(i-1)*c.cfg.Backoff); err != nil {
					return zero, &ExhaustedError{Symbol: symbol, Attempts: attempts, Last: err}
				}
			}
			attempts++

			actx, cancel := context.WithTimeout(ctx, c.cfg.AttemptTimeout)
			start := time.Now()
			v, err := fetch(actx, src)
			cancel()

			elapsed := time.Since(start)
			if c.met != nil {
				c.met.SourceAttempts.WithLabelValues(src.Name(), outcome(err)).Inc()
			}
			if err == nil {
				c.log.Debug().
					Str("source", src.Name()).
					Str("symbol", symbol).
					Int("attempt", i).
					Dur("elapsed", elapsed).
					Msg("source fetch ok")
				return v, nil
			}
			lastErr = err
			c.log.Warn().
				Str("source", src.Name()).
				Str("symbol", symbol).
				Int("attempt", i).
				Str("outcome", outcome(err)).
				Dur("elapsed", elapsed).
				Err(err).
				Msg("source attempt failed")

			if ctx.Err() != nil {
				return zero, &ExhaustedError{Symbol: symbol, Attempts: attempts, Last: ctx.Err()}
			}
		}
	}
	return zero, &ExhaustedError{Symbol: symbol, Attempts: attempts, Last: lastErr}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
