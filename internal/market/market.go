// Package market holds the normalized domain types shared by every
// component: quotes, OHLCV bars, markets and logical time ranges.
package market

import (
	"fmt"
	"strings"
	"time"
)

// Market identifies the exchange universe a symbol belongs to.
type Market string

const (
	IDX    Market = "IDX"
	US     Market = "US"
	Crypto Market = "CRYPTO"
)

// ParseMarket normalizes a user-supplied market string.
func ParseMarket(s string) (Market, error) {
	switch Market(strings.ToUpper(strings.TrimSpace(s))) {
	case IDX:
		return IDX, nil
	case US:
		return US, nil
	case Crypto:
		return Crypto, nil
	}
	return "", fmt.Errorf("unknown market %q", s)
}

var locations = map[Market]string{
	IDX:    "Asia/Jakarta",
	US:     "America/New_York",
	Crypto: "UTC",
}

// Location returns the exchange-local timezone for the market.
// Falls back to UTC when the tz database entry is unavailable.
func (m Market) Location() *time.Location {
	name, ok := locations[m]
	if !ok {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Range is a symbolic time-span request, distinct from the
// source-specific interval used to satisfy it.
type Range string

const (
	Range1D  Range = "1D"
	Range5D  Range = "5D"
	Range1M  Range = "1M"
	Range3M  Range = "3M"
	Range6M  Range = "6M"
	RangeYTD Range = "YTD"
	Range1Y  Range = "1Y"
	Range5Y  Range = "5Y"
)

// Ranges lists every supported logical range.
var Ranges = []Range{Range1D, Range5D, Range1M, Range3M, Range6M, RangeYTD, Range1Y, Range5Y}

// ParseRange normalizes a user-supplied range string.
func ParseRange(s string) (Range, error) {
	r := Range(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Ranges {
		if r == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown range %q", s)
}

// Intraday reports whether the range is served at minute granularity.
func (r Range) Intraday() bool {
	return r == Range1D || r == Range5D
}

// SourceTag records how a quote or series was resolved. It is
// informational only; consumers must never branch on it.
type SourceTag string

const (
	TagCache     SourceTag = "cache"
	TagLive      SourceTag = "live"
	TagSynthetic SourceTag = "synthetic"
)

// Quote is a single current-price snapshot.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Market        Market    `json:"market"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Volume        float64   `json:"volume"`
	UpdatedAt     time.Time `json:"updated_at"`
	Source        SourceTag `json:"source"`
}

// Bar is one OHLCV record for a fixed interval. Label carries the
// display form: a clock time for intraday bars, a calendar date
// otherwise.
type Bar struct {
	Time   time.Time `json:"time"`
	Label  string    `json:"label"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// BarSeries is a chronological bar sequence, one entry per trading
// interval. Non-trading gaps are omitted, never zero-filled.
type BarSeries []Bar

// LastClose returns the close of the most recent bar.
func (s BarSeries) LastClose() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	return s[len(s)-1].Close, true
}

// BarLabel formats a bar timestamp for display.
func BarLabel(t time.Time, intraday bool) string {
	if intraday {
		return t.Format("15:04")
	}
	return t.Format("2006-01-02")
}
