// Package stooq is the secondary source: a keyless, scrape-style CSV
// quote/history API in the Stooq format. It only serves daily and
// coarser granularity; intraday requests fail over to the next tier.
package stooq

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"quotefeed/internal/httpx"
	"quotefeed/internal/market"
	"quotefeed/internal/source"
)

// Config controls the provider.
type Config struct {
	Name    string
	BaseURL string
}

// Provider fetches CSV quotes and daily history.
type Provider struct {
	cfg    Config
	client *httpx.Client
	relays *httpx.Relays
}

func New(cfg Config, client *httpx.Client, relays *httpx.Relays) *Provider {
	if cfg.Name == "" {
		cfg.Name = "stooq"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://stooq.com"
	}
	return &Provider{cfg: cfg, client: client, relays: relays}
}

func (p *Provider) Name() string { return p.cfg.Name }

func vendorSymbol(symbol string, mkt market.Market) string {
	s := strings.ToLower(symbol)
	switch mkt {
	case market.IDX:
		return s + ".jk"
	case market.US:
		return s + ".us"
	case market.Crypto:
		return s + "usd"
	default:
		return s
	}
}

// tradingDays approximates how many daily rows a range needs.
func tradingDays(rng market.Range) int {
	switch rng {
	case market.Range1M:
		return 22
	case market.Range3M:
		return 66
	case market.Range6M:
		return 132
	case market.RangeYTD:
		return yearToDateDays(time.Now())
	case market.Range1Y:
		return 260
	case market.Range5Y:
		return 1300
	default:
		return 22
	}
}

func yearToDateDays(now time.Time) int {
	days := int(now.Sub(time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())).Hours()/24) + 1
	// rough trading-day fraction of calendar days
	days = days * 5 / 7
	if days < 1 {
		days = 1
	}
	return days
}

func (p *Provider) get(ctx context.Context, target string) ([][]string, error) {
	wrapped, _ := p.relays.Wrap(target)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wrapped, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return nil, &source.BadResponseError{Source: p.cfg.Name, Status: resp.StatusCode, Reason: string(b)}
	}
	r := csv.NewReader(resp.Body)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, &source.BadResponseError{Source: p.cfg.Name, Reason: fmt.Sprintf("csv: %v", err)}
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s: empty csv: %w", p.cfg.Name, source.ErrNoData)
	}
	return rows[1:], nil
}

// num parses a CSV price field; "N/D" and blanks report absent.
func num(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "N/D") || s == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// FetchQuote reads the single-row quote CSV
// (Symbol,Date,Time,Open,High,Low,Close,Volume). A missing previous
// close degrades change to zero rather than failing.
func (p *Provider) FetchQuote(ctx context.Context, symbol string, mkt market.Market) (market.Quote, error) {
	target := fmt.Sprintf("%s/q/l/?s=%s&f=sd2t2ohlcv&h&e=csv", p.cfg.BaseURL, url.QueryEscape(vendorSymbol(symbol, mkt)))
	rows, err := p.get(ctx, target)
	if err != nil {
		return market.Quote{}, err
	}
	row := rows[0]
	if len(row) < 8 {
		return market.Quote{}, &source.BadResponseError{Source: p.cfg.Name, Reason: fmt.Sprintf("short quote row: %d fields", len(row))}
	}
	price, ok := num(row[6])
	if !ok {
		return market.Quote{}, fmt.Errorf("%s: no close for %s: %w", p.cfg.Name, symbol, source.ErrNoData)
	}
	open, _ := num(row[3])
	high, _ := num(row[4])
	low, _ := num(row[5])
	volume, _ := num(row[7])

	return market.Quote{
		Symbol:    symbol,
		Market:    mkt,
		Price:     price,
		Open:      open,
		High:      high,
		Low:       low,
		Volume:    volume,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// FetchBars reads the daily history CSV (Date,Open,High,Low,Close,
// Volume) and trims it to the requested range. Unparsable rows are
// skipped. Intraday ranges are unsupported here.
func (p *Provider) FetchBars(ctx context.Context, symbol string, mkt market.Market, rng market.Range) (market.BarSeries, error) {
	if rng.Intraday() {
		return nil, fmt.Errorf("%s: intraday granularity unsupported: %w", p.cfg.Name, source.ErrNoData)
	}
	interval := "d"
	if rng == market.Range5Y {
		interval = "w"
	}
	target := fmt.Sprintf("%s/q/d/l/?s=%s&i=%s", p.cfg.BaseURL, url.QueryEscape(vendorSymbol(symbol, mkt)), interval)
	rows, err := p.get(ctx, target)
	if err != nil {
		return nil, err
	}

	loc := mkt.Location()
	bars := make(market.BarSeries, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		t, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(row[0]), loc)
		if err != nil {
			continue
		}
		o, okO := num(row[1])
		h, okH := num(row[2])
		l, okL := num(row[3])
		c, okC := num(row[4])
		if !okO && !okH && !okL && !okC {
			continue
		}
		v, _ := num(row[5])
		bars = append(bars, market.Bar{
			Time:   t,
			Label:  market.BarLabel(t, false),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: v,
		})
	}
	want := tradingDays(rng)
	if rng == market.Range5Y {
		want = 260
	}
	if len(bars) > want {
		bars = bars[len(bars)-want:]
	}
	return bars, nil
}
