package feed

import (
	"context"
	"sync"
	"time"

	"quotefeed/internal/market"
)

// CancelFunc stops a subscription. Idempotent, and safe to call from
// any goroutine, including while a poll is in flight.
type CancelFunc func()

type subscription struct {
	mu        sync.Mutex
	cancelled bool
}

// deliver invokes fn unless the subscription was cancelled first. The
// lock spans the callback so a cancel observed mid-delivery can never
// be followed by another delivery.
func (s *subscription) deliver(q market.Quote, fn func(market.Quote)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	fn(q)
}

func (s *subscription) cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

// Subscribe delivers one quote immediately, then one per poll
// interval until cancelled. A result arriving after cancellation is
// silently discarded. Every poll bypasses the quote cache read, so
// the subscriber observes forward progress inside the TTL window.
func (f *Feed) Subscribe(symbol string, mkt market.Market, onUpdate func(market.Quote)) CancelFunc {
	ctx, stop := context.WithCancel(context.Background())
	sub := &subscription{}
	if f.met != nil {
		f.met.ActiveSubscriptions.Inc()
	}

	go func() {
		defer func() {
			if f.met != nil {
				f.met.ActiveSubscriptions.Dec()
			}
		}()

		sub.deliver(f.refreshQuote(ctx, symbol, mkt), onUpdate)

		ticker := time.NewTicker(f.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sub.deliver(f.refreshQuote(ctx, symbol, mkt), onUpdate)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.cancel()
			stop()
		})
	}
}
