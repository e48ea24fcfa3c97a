// Package source defines the external data source contract and the
// prioritized retry chain that drives it.
package source

import (
	"context"

	"quotefeed/internal/market"
)

// Source is one upstream quote/chart vendor, normalized. A Source is
// expected to fail often; the Chain handles retries and failover.
type Source interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string, mkt market.Market) (market.Quote, error)
	FetchBars(ctx context.Context, symbol string, mkt market.Market, rng market.Range) (market.BarSeries, error)
}
