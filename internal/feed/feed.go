// Package feed composes the acquisition pipeline: cache fast path,
// source chain network path, synthesizer as the guaranteed fallback.
// Its public fetch operations never fail; callers tell real data from
// fabricated data only through the quote's source tag.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"quotefeed/internal/cache"
	"quotefeed/internal/market"
	"quotefeed/internal/metrics"
	"quotefeed/internal/synth"
)

// Fetcher is the source-chain dependency, satisfied by *source.Chain.
type Fetcher interface {
	FetchQuote(ctx context.Context, symbol string, mkt market.Market) (market.Quote, error)
	FetchBars(ctx context.Context, symbol string, mkt market.Market, rng market.Range) (market.BarSeries, error)
}

// Config tunes the feed loops.
type Config struct {
	// PollInterval is the subscription refresh cadence.
	PollInterval time.Duration
}

func DefaultConfig() Config {
	return Config{PollInterval: 15 * time.Second}
}

// Feed is the inbound surface consumed by the dashboard layers.
type Feed struct {
	cfg   Config
	cache *cache.Cache
	chain Fetcher
	synth *synth.Synthesizer
	log   zerolog.Logger
	met   *metrics.Set

	// Concurrent same-key fetches share one flight; forced refreshes
	// use a distinct flight key so they never piggyback on a normal
	// resolution that might have started before the refresh was due.
	sf singleflight.Group
}

// Option customizes a Feed.
type Option func(*Feed)

// WithMetrics wires pipeline counters.
func WithMetrics(m *metrics.Set) Option {
	return func(f *Feed) { f.met = m }
}

// WithLogger sets the feed logger.
func WithLogger(log zerolog.Logger) Option {
	return func(f *Feed) { f.log = log }
}

func New(cfg Config, c *cache.Cache, chain Fetcher, s *synth.Synthesizer, opts ...Option) *Feed {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	f := &Feed{
		cfg:   cfg,
		cache: c,
		chain: chain,
		synth: s,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func quoteKey(symbol string, mkt market.Market) string {
	return fmt.Sprintf("quote:%s:%s", mkt, symbol)
}

func barKey(symbol string, mkt market.Market, rng market.Range) string {
	return fmt.Sprintf("bars:%s:%s:%s", mkt, symbol, rng)
}

// GetQuote resolves a current-price quote: cache hit, then source
// chain, then synthesizer. It always returns a value.
func (f *Feed) GetQuote(ctx context.Context, symbol string, mkt market.Market) market.Quote {
	key := quoteKey(symbol, mkt)
	if v, ok := f.cache.Get(key); ok {
		if f.met != nil {
			f.met.CacheHits.Inc()
		}
		q := v.(market.Quote)
		q.Source = market.TagCache
		return q
	}
	if f.met != nil {
		f.met.CacheMisses.Inc()
	}
	v, _, _ := f.sf.Do(key, func() (any, error) {
		return f.resolveQuote(ctx, symbol, mkt, key), nil
	})
	return v.(market.Quote)
}

// refreshQuote bypasses the cache read (but not the write), so each
// subscription poll makes forward progress inside the TTL window.
func (f *Feed) refreshQuote(ctx context.Context, symbol string, mkt market.Market) market.Quote {
	key := quoteKey(symbol, mkt)
	v, _, _ := f.sf.Do("refresh:"+key, func() (any, error) {
		return f.resolveQuote(ctx, symbol, mkt, key), nil
	})
	return v.(market.Quote)
}

func (f *Feed) resolveQuote(ctx context.Context, symbol string, mkt market.Market, key string) market.Quote {
	q, err := f.chain.FetchQuote(ctx, symbol, mkt)
	if err != nil {
		// A cancelled caller did not exhaust the sources; synthesize
		// nothing and leave the cache untouched.
		if ctx.Err() != nil {
			return market.Quote{Symbol: symbol, Market: mkt}
		}
		f.log.Info().Str("symbol", symbol).Err(err).Msg("quote sources exhausted, synthesizing")
		if f.met != nil {
			f.met.SynthFallbacks.Inc()
		}
		q = f.synth.Quote(symbol, mkt)
		q.Source = market.TagSynthetic
	} else {
		q.Source = market.TagLive
	}
	// Synthetic output is cached too: repeated calls inside the TTL
	// window see one stable draw, not a fresh reshuffle.
	f.cache.Put(key, cache.ClassQuote, q)
	return q
}

// GetBars resolves a bar series with the same three-tier order as
// GetQuote. It always returns a series, possibly empty.
func (f *Feed) GetBars(ctx context.Context, symbol string, mkt market.Market, rng market.Range) market.BarSeries {
	key := barKey(symbol, mkt, rng)
	if v, ok := f.cache.Get(key); ok {
		if f.met != nil {
			f.met.CacheHits.Inc()
		}
		return v.(market.BarSeries)
	}
	if f.met != nil {
		f.met.CacheMisses.Inc()
	}
	v, _, _ := f.sf.Do(key, func() (any, error) {
		bars, err := f.chain.FetchBars(ctx, symbol, mkt, rng)
		if err != nil {
			if ctx.Err() != nil {
				return market.BarSeries{}, nil
			}
			f.log.Info().Str("symbol", symbol).Str("range", string(rng)).Err(err).Msg("bar sources exhausted, synthesizing")
			if f.met != nil {
				f.met.SynthFallbacks.Inc()
			}
			bars = f.synth.Bars(symbol, mkt, rng)
		}
		f.cache.Put(key, cache.ClassBar, bars)
		return bars, nil
	})
	return v.(market.BarSeries)
}

// ClearCache drops every cached entry. The only external
// invalidation; everything else expires by age.
func (f *Feed) ClearCache() {
	f.cache.Clear()
}
