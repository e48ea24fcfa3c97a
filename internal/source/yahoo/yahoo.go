// Package yahoo is the primary source: a Yahoo-Finance-style chart
// JSON API, reached through the configured outbound relays.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"quotefeed/internal/httpx"
	"quotefeed/internal/market"
	"quotefeed/internal/source"
)

// Config controls the provider.
type Config struct {
	Name    string
	BaseURL string
	Headers map[string]string
}

// Provider fetches quotes and bar series from the chart endpoint.
type Provider struct {
	cfg    Config
	client HTTPClient
	relays *httpx.Relays
}

func New(cfg Config, client HTTPClient, relays *httpx.Relays) *Provider {
	if cfg.Name == "" {
		cfg.Name = "yahoo"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	}
	return &Provider{cfg: cfg, client: client, relays: relays}
}

func (p *Provider) Name() string { return p.cfg.Name }

// vendorSymbol maps an internal symbol to the vendor ticker.
func vendorSymbol(symbol string, mkt market.Market) string {
	switch mkt {
	case market.IDX:
		return symbol + ".JK"
	case market.Crypto:
		return symbol + "-USD"
	default:
		return symbol
	}
}

// params maps a logical range to the vendor interval/range pair.
func params(rng market.Range) (interval, vendorRange string) {
	switch rng {
	case market.Range1D:
		return "5m", "1d"
	case market.Range5D:
		return "30m", "5d"
	case market.Range1M:
		return "1d", "1mo"
	case market.Range3M:
		return "1d", "3mo"
	case market.Range6M:
		return "1d", "6mo"
	case market.RangeYTD:
		return "1d", "ytd"
	case market.Range1Y:
		return "1d", "1y"
	case market.Range5Y:
		return "1wk", "5y"
	default:
		return "1d", "1mo"
	}
}

// chartResponse mirrors the chart API payload. Numeric slices use
// pointers so JSON nulls survive decoding.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
		ChartPreviousClose *float64 `json:"chartPreviousClose"`
		PreviousClose      *float64 `json:"previousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

func (p *Provider) fetchChart(ctx context.Context, symbol string, mkt market.Market, interval, vendorRange string) (*chartResult, error) {
	target := fmt.Sprintf("%s/%s?interval=%s&range=%s",
		p.cfg.BaseURL, url.PathEscape(vendorSymbol(symbol, mkt)), interval, vendorRange)
	wrapped, _ := p.relays.Wrap(target)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wrapped, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, &source.BadResponseError{Source: p.cfg.Name, Status: resp.StatusCode, Reason: string(b)}
	}
	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, &source.BadResponseError{Source: p.cfg.Name, Reason: fmt.Sprintf("decode: %v", err)}
	}
	if chart.Chart.Error != nil {
		return nil, &source.BadResponseError{Source: p.cfg.Name, Reason: chart.Chart.Error.Description}
	}
	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("%s: empty result: %w", p.cfg.Name, source.ErrNoData)
	}
	return &chart.Chart.Result[0], nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func at(vals []*float64, i int) *float64 {
	if i < 0 || i >= len(vals) {
		return nil
	}
	return vals[i]
}

// FetchBars returns the series for the requested range. Rows where
// every OHLC field is null (holidays, halts) are skipped. Bars are
// passed through as the vendor reports them, even when OHLC bounds
// look inconsistent.
func (p *Provider) FetchBars(ctx context.Context, symbol string, mkt market.Market, rng market.Range) (market.BarSeries, error) {
	interval, vendorRange := params(rng)
	res, err := p.fetchChart(ctx, symbol, mkt, interval, vendorRange)
	if err != nil {
		return nil, err
	}
	if len(res.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%s: missing quote indicators: %w", p.cfg.Name, source.ErrNoData)
	}
	q := res.Indicators.Quote[0]
	loc := mkt.Location()
	intraday := rng.Intraday()

	bars := make(market.BarSeries, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		o, h, l, c := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
		if o == nil && h == nil && l == nil && c == nil {
			continue
		}
		t := time.Unix(ts, 0).In(loc)
		bars = append(bars, market.Bar{
			Time:   t,
			Label:  market.BarLabel(t, intraday),
			Open:   deref(o),
			High:   deref(h),
			Low:    deref(l),
			Close:  deref(c),
			Volume: deref(at(q.Volume, i)),
		})
	}
	return bars, nil
}

// FetchQuote derives a snapshot from the 1d chart. A missing live
// price falls back to the last non-null close; a missing previous
// close degrades change/changePercent to zero.
func (p *Provider) FetchQuote(ctx context.Context, symbol string, mkt market.Market) (market.Quote, error) {
	res, err := p.fetchChart(ctx, symbol, mkt, "1d", "1d")
	if err != nil {
		return market.Quote{}, err
	}

	price := deref(res.Meta.RegularMarketPrice)
	var open, high, low, volume, lastClose float64
	if len(res.Indicators.Quote) > 0 {
		q := res.Indicators.Quote[0]
		for i := range res.Timestamp {
			if o := at(q.Open, i); o != nil && open == 0 {
				open = *o
			}
			if h := at(q.High, i); h != nil && *h > high {
				high = *h
			}
			if l := at(q.Low, i); l != nil && (low == 0 || *l < low) {
				low = *l
			}
			volume += deref(at(q.Volume, i))
			if c := at(q.Close, i); c != nil {
				lastClose = *c
			}
		}
	}
	if price == 0 {
		price = lastClose
	}
	if price == 0 {
		return market.Quote{}, fmt.Errorf("%s: no price in payload: %w", p.cfg.Name, source.ErrNoData)
	}

	prevClose := deref(res.Meta.ChartPreviousClose)
	if prevClose == 0 {
		prevClose = deref(res.Meta.PreviousClose)
	}
	var change, changePct float64
	if prevClose != 0 {
		change = price - prevClose
		changePct = change / prevClose * 100
	}

	return market.Quote{
		Symbol:        symbol,
		Market:        mkt,
		Price:         price,
		Change:        change,
		ChangePercent: changePct,
		Open:          open,
		High:          high,
		Low:           low,
		Volume:        volume,
		UpdatedAt:     time.Now().UTC(),
	}, nil
}
