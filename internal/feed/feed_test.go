package feed_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"quotefeed/internal/cache"
	"quotefeed/internal/feed"
	"quotefeed/internal/market"
	"quotefeed/internal/synth"
)

// fakeChain counts consults and either serves a fixed result or fails.
type fakeChain struct {
	mu         sync.Mutex
	quoteCalls int
	barCalls   int
	quote      market.Quote
	bars       market.BarSeries
	err        error
	delay      time.Duration
}

func (f *fakeChain) FetchQuote(ctx context.Context, symbol string, mkt market.Market) (market.Quote, error) {
	f.mu.Lock()
	f.quoteCalls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return market.Quote{}, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return market.Quote{}, f.err
	}
	q := f.quote
	q.Symbol = symbol
	q.Market = mkt
	return q, nil
}

func (f *fakeChain) FetchBars(ctx context.Context, symbol string, mkt market.Market, rng market.Range) (market.BarSeries, error) {
	f.mu.Lock()
	f.barCalls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.bars, nil
}

func (f *fakeChain) quoteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quoteCalls
}

func newFeed(t *testing.T, cfg feed.Config, chain *fakeChain) *feed.Feed {
	t.Helper()
	c := cache.New(cache.DefaultConfig())
	s := synth.New(synth.DefaultProfiles(), synth.DefaultConfig(), synth.WithSeed(1))
	return feed.New(cfg, c, chain, s)
}

func TestGetQuote_LiveThenCache(t *testing.T) {
	chain := &fakeChain{quote: market.Quote{Price: 9825}}
	f := newFeed(t, feed.Config{}, chain)

	first := f.GetQuote(context.Background(), "BBCA", market.IDX)
	require.Equal(t, market.TagLive, first.Source)
	require.Equal(t, 9825.0, first.Price)

	second := f.GetQuote(context.Background(), "BBCA", market.IDX)
	require.Equal(t, market.TagCache, second.Source)
	require.Equal(t, first.Price, second.Price)
	require.Equal(t, 1, chain.quoteCount())
}

func TestGetQuote_ExhaustedFallsBackToSynth(t *testing.T) {
	chain := &fakeChain{err: errors.New("every source failed")}
	f := newFeed(t, feed.Config{}, chain)

	q := f.GetQuote(context.Background(), "BBCA", market.IDX)
	require.Equal(t, market.TagSynthetic, q.Source)
	require.Positive(t, q.Price)
}

func TestGetQuote_SyntheticIsCached(t *testing.T) {
	chain := &fakeChain{err: errors.New("down")}
	f := newFeed(t, feed.Config{}, chain)

	first := f.GetQuote(context.Background(), "BBCA", market.IDX)
	second := f.GetQuote(context.Background(), "BBCA", market.IDX)
	// Same draw until the TTL lapses, not a fresh reshuffle.
	require.Equal(t, first.Price, second.Price)
	require.Equal(t, market.TagCache, second.Source)
	require.Equal(t, 1, chain.quoteCount())
}

func TestGetQuote_CancelledFetchDoesNotPoisonCache(t *testing.T) {
	chain := &fakeChain{quote: market.Quote{Price: 9825}, delay: 20 * time.Millisecond}
	f := newFeed(t, feed.Config{}, chain)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q := f.GetQuote(ctx, "BBCA", market.IDX)
	require.NotEqual(t, market.TagSynthetic, q.Source, "cancellation must not trigger the synthesizer")

	// The sources are healthy: the next caller must get live data, not
	// a cached leftover from the cancelled fetch.
	q = f.GetQuote(context.Background(), "BBCA", market.IDX)
	require.Equal(t, market.TagLive, q.Source)
	require.Equal(t, 9825.0, q.Price)
}

func TestGetBars_CancelledFetchNotCached(t *testing.T) {
	chain := &fakeChain{bars: market.BarSeries{{Close: 9825}}, delay: 20 * time.Millisecond}
	f := newFeed(t, feed.Config{}, chain)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Empty(t, f.GetBars(ctx, "BBCA", market.IDX, market.Range1M))

	bars := f.GetBars(context.Background(), "BBCA", market.IDX, market.Range1M)
	require.Len(t, bars, 1)
	require.Equal(t, 9825.0, bars[0].Close)
	chain.mu.Lock()
	calls := chain.barCalls
	chain.mu.Unlock()
	require.Equal(t, 2, calls)
}

func TestGetBars_SyntheticSeriesIsCached(t *testing.T) {
	chain := &fakeChain{err: errors.New("down")}
	f := newFeed(t, feed.Config{}, chain)

	first := f.GetBars(context.Background(), "BBCA", market.IDX, market.Range1M)
	require.NotEmpty(t, first)

	second := f.GetBars(context.Background(), "BBCA", market.IDX, market.Range1M)
	require.Equal(t, first, second)
	chain.mu.Lock()
	calls := chain.barCalls
	chain.mu.Unlock()
	require.Equal(t, 1, calls)
}

func TestClearCache_ForcesReconsult(t *testing.T) {
	chain := &fakeChain{quote: market.Quote{Price: 100}}
	f := newFeed(t, feed.Config{}, chain)

	f.GetQuote(context.Background(), "AAPL", market.US)
	f.GetQuote(context.Background(), "AAPL", market.US)
	require.Equal(t, 1, chain.quoteCount())

	f.ClearCache()
	q := f.GetQuote(context.Background(), "AAPL", market.US)
	require.Equal(t, market.TagLive, q.Source)
	require.Equal(t, 2, chain.quoteCount())
}

func TestSubscribe_DeliversImmediatelyThenPolls(t *testing.T) {
	chain := &fakeChain{quote: market.Quote{Price: 100}}
	f := newFeed(t, feed.Config{PollInterval: 20 * time.Millisecond}, chain)

	updates := make(chan market.Quote, 16)
	cancel := f.Subscribe("AAPL", market.US, func(q market.Quote) {
		updates <- q
	})
	defer cancel()

	for i := 0; i < 3; i++ {
		select {
		case q := <-updates:
			require.Equal(t, market.TagLive, q.Source)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for delivery %d", i)
		}
	}
	// Polls bypass the cache read: each delivery consulted the chain.
	require.GreaterOrEqual(t, chain.quoteCount(), 3)
}

func TestSubscribe_NoDeliveryAfterCancel(t *testing.T) {
	chain := &fakeChain{quote: market.Quote{Price: 100}}
	f := newFeed(t, feed.Config{PollInterval: 10 * time.Millisecond}, chain)

	updates := make(chan market.Quote, 64)
	cancel := f.Subscribe("AAPL", market.US, func(q market.Quote) {
		updates <- q
	})

	select {
	case <-updates:
	case <-time.After(time.Second):
		t.Fatal("no initial delivery")
	}
	cancel()
	cancel() // idempotent

	drained := len(updates)
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, drained, len(updates), "delivery after cancel")
}

func TestSubscribe_CancelBeforeInFlightResultSuppressesIt(t *testing.T) {
	chain := &fakeChain{quote: market.Quote{Price: 100}, delay: 50 * time.Millisecond}
	f := newFeed(t, feed.Config{PollInterval: time.Hour}, chain)

	var mu sync.Mutex
	delivered := 0
	cancel := f.Subscribe("AAPL", market.US, func(market.Quote) {
		mu.Lock()
		delivered++
		mu.Unlock()
	})
	cancel()

	time.Sleep(150 * time.Millisecond)
	mu.Lock()
	require.Zero(t, delivered, "in-flight result must be discarded after cancel")
	mu.Unlock()

	// The abandoned poll must not have cached anything either.
	q := f.GetQuote(context.Background(), "AAPL", market.US)
	require.Equal(t, market.TagLive, q.Source)
	require.Equal(t, 100.0, q.Price)
}

func TestLiveSim_PerturbsLastBarOnly(t *testing.T) {
	series := market.BarSeries{
		{Label: "09:00", Open: 100, High: 101, Low: 99, Close: 100.5, Volume: 1000},
		{Label: "09:05", Open: 100.5, High: 102, Low: 100, Close: 101, Volume: 900},
	}
	sim := &feed.LiveSim{Interval: 5 * time.Millisecond, Amplitude: 0.01, Seed: 3}

	ticks := make(chan market.Bar, 64)
	cancel := sim.Run(series, market.Range1D, func(b market.Bar) {
		ticks <- b
	})
	defer cancel()

	var prev market.Bar
	for i := 0; i < 5; i++ {
		select {
		case b := <-ticks:
			require.Equal(t, "09:05", b.Label)
			require.GreaterOrEqual(t, b.High, b.Close)
			require.LessOrEqual(t, b.Low, b.Close)
			if i > 0 {
				require.GreaterOrEqual(t, b.High, prev.High)
				require.LessOrEqual(t, b.Low, prev.Low)
				require.GreaterOrEqual(t, b.Volume, prev.Volume)
			}
			prev = b
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for tick %d", i)
		}
	}
	require.Equal(t, 101.0, series[1].Close, "source series must stay untouched")
}

func TestLiveSim_NonIntradayIsNoop(t *testing.T) {
	series := market.BarSeries{{Close: 100}}
	sim := &feed.LiveSim{Interval: time.Millisecond}

	ticked := make(chan struct{}, 1)
	cancel := sim.Run(series, market.Range1M, func(market.Bar) {
		ticked <- struct{}{}
	})
	cancel()

	select {
	case <-ticked:
		t.Fatal("daily range must not tick")
	case <-time.After(20 * time.Millisecond):
	}
}
