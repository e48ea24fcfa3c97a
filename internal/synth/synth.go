// Package synth generates plausible, bounded OHLCV data when every
// real source is unreachable. Shape is deterministic given a seed;
// values are randomized within profile-scaled bounds.
package synth

import (
	"math"
	"math/rand"
	"time"

	"quotefeed/internal/market"
)

// Config holds the heuristic constants of the generator. They are
// tuned for visual plausibility, not derived from any model.
type Config struct {
	// IntradayVolScale additionally damps the sqrt-of-time per-step
	// volatility of intraday walks.
	IntradayVolScale float64
	// WickFactor bounds wick length relative to the candle body.
	WickFactor float64
	// OpenCloseBoost multiplies volume near session open and close.
	OpenCloseBoost float64
	// BoostSteps is how many intraday steps at each session edge get
	// the volume boost.
	BoostSteps int
	// TrendBiasMax bounds the single per-call drift term.
	TrendBiasMax float64
	// BaseVolume scales the random per-bar volume.
	BaseVolume float64
}

func DefaultConfig() Config {
	return Config{
		IntradayVolScale: 0.8,
		WickFactor:       0.6,
		OpenCloseBoost:   2.5,
		BoostSteps:       3,
		TrendBiasMax:     0.15,
		BaseVolume:       1_000_000,
	}
}

// Synthesizer produces bar series and single quotes. It has no
// failure mode.
type Synthesizer struct {
	cfg      Config
	profiles *Profiles
	now      func() time.Time
	seed     func() int64
}

// Option customizes a Synthesizer.
type Option func(*Synthesizer)

// WithNow injects a clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Synthesizer) { s.now = now }
}

// WithSeed fixes the random seed, making output fully deterministic.
func WithSeed(seed int64) Option {
	return func(s *Synthesizer) { s.seed = func() int64 { return seed } }
}

func New(profiles *Profiles, cfg Config, opts ...Option) *Synthesizer {
	def := DefaultConfig()
	if cfg.IntradayVolScale <= 0 {
		cfg.IntradayVolScale = def.IntradayVolScale
	}
	if cfg.WickFactor <= 0 {
		cfg.WickFactor = def.WickFactor
	}
	if cfg.OpenCloseBoost <= 0 {
		cfg.OpenCloseBoost = def.OpenCloseBoost
	}
	if cfg.BoostSteps <= 0 {
		cfg.BoostSteps = def.BoostSteps
	}
	if cfg.TrendBiasMax <= 0 {
		cfg.TrendBiasMax = def.TrendBiasMax
	}
	if cfg.BaseVolume <= 0 {
		cfg.BaseVolume = def.BaseVolume
	}
	s := &Synthesizer{
		cfg:      cfg,
		profiles: profiles,
		now:      time.Now,
		seed:     func() int64 { return time.Now().UnixNano() },
	}
	if s.profiles == nil {
		s.profiles = NewProfiles(nil)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// step sizes per logical range
func rangeStep(rng market.Range) time.Duration {
	switch rng {
	case market.Range1D:
		return 5 * time.Minute
	case market.Range5D:
		return 30 * time.Minute
	case market.Range5Y:
		return 7 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// trading-day counts per daily-granularity range
func rangeDays(rng market.Range, now time.Time) int {
	switch rng {
	case market.Range1M:
		return 22
	case market.Range3M:
		return 66
	case market.Range6M:
		return 132
	case market.RangeYTD:
		days := now.YearDay() * 5 / 7
		if days < 1 {
			days = 1
		}
		return days
	case market.Range1Y:
		return 260
	default:
		return 22
	}
}

// Bars generates a full series for the range, walking exchange time
// forward and skipping closed periods.
func (s *Synthesizer) Bars(symbol string, mkt market.Market, rng market.Range) market.BarSeries {
	prof := s.profiles.Lookup(symbol)
	cal := ForMarket(mkt)
	now := s.now().In(cal.Loc)

	times := s.timestamps(cal, rng, now)
	if len(times) == 0 {
		return market.BarSeries{}
	}
	r := rand.New(rand.NewSource(s.seed()))

	stepVol := s.stepVolatility(prof.DailyVol, rng, cal)
	// One drift term for the whole walk keeps multi-year series
	// coherent instead of wandering unboundedly.
	trendBias := (r.Float64() - 0.5) * 2 * s.cfg.TrendBiasMax

	// Start the walk where its expected drift lands near the profile
	// base price at the end of the series.
	n := len(times)
	start := prof.BasePrice / math.Pow(1+trendBias*stepVol*0.5, float64(n))
	prevClose := start * (1 + (r.Float64()-0.5)*prof.DailyVol)

	intraday := rng.Intraday()
	bars := make(market.BarSeries, 0, n)
	for i, t := range times {
		changeFraction := (r.Float64() - 0.5 + trendBias*0.5) * stepVol
		open := prevClose
		cls := open * (1 + changeFraction)
		body := math.Abs(cls - open)
		if body == 0 {
			body = open * stepVol * 0.05
		}
		high := math.Max(open, cls) + body*s.cfg.WickFactor*r.Float64()
		low := math.Min(open, cls) - body*s.cfg.WickFactor*r.Float64()
		if low < 0 {
			low = 0
		}

		volume := (0.5 + r.Float64()) * s.cfg.BaseVolume
		if intraday && (i < s.cfg.BoostSteps || i >= n-s.cfg.BoostSteps) {
			volume *= s.cfg.OpenCloseBoost
		}

		bars = append(bars, market.Bar{
			Time:   t,
			Label:  market.BarLabel(t, intraday),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cls,
			Volume: math.Round(volume),
		})
		prevClose = cls
	}
	return bars
}

// Quote perturbs the profile base price once; no calendar walk.
func (s *Synthesizer) Quote(symbol string, mkt market.Market) market.Quote {
	prof := s.profiles.Lookup(symbol)
	r := rand.New(rand.NewSource(s.seed()))

	prevClose := prof.BasePrice
	price := prevClose * (1 + (r.Float64()-0.5)*prof.DailyVol)
	change := price - prevClose
	open := prevClose * (1 + (r.Float64()-0.5)*prof.DailyVol*0.3)
	high := math.Max(open, price) * (1 + r.Float64()*prof.DailyVol*0.2)
	low := math.Min(open, price) * (1 - r.Float64()*prof.DailyVol*0.2)

	return market.Quote{
		Symbol:        symbol,
		Market:        mkt,
		Price:         price,
		Change:        change,
		ChangePercent: change / prevClose * 100,
		Open:          open,
		High:          high,
		Low:           low,
		Volume:        math.Round((0.5 + r.Float64()) * s.cfg.BaseVolume),
		UpdatedAt:     s.now().UTC(),
	}
}

// stepVolatility scales daily volatility to the walk's step size.
// Finer granularity gets proportionally smaller per-step swings.
func (s *Synthesizer) stepVolatility(dailyVol float64, rng market.Range, cal Calendar) float64 {
	step := rangeStep(rng)
	switch {
	case rng.Intraday():
		session := cal.SessionLength()
		if session <= 0 {
			session = 24 * time.Hour
		}
		return dailyVol * math.Sqrt(float64(step)/float64(session)) * s.cfg.IntradayVolScale
	case step >= 7*24*time.Hour:
		return dailyVol * math.Sqrt(5)
	default:
		return dailyVol
	}
}

// timestamps walks the calendar for the range, newest last.
func (s *Synthesizer) timestamps(cal Calendar, rng market.Range, now time.Time) []time.Time {
	switch rng {
	case market.Range1D:
		return s.sessionSteps(cal, cal.LastSessionDay(now), now, rangeStep(rng))
	case market.Range5D:
		day := cal.LastSessionDay(now)
		days := make([]time.Time, 0, 5)
		for i := 0; i < 5; i++ {
			days = append([]time.Time{day}, days...)
			day = cal.PrevTradingDay(day)
		}
		var out []time.Time
		for _, d := range days {
			out = append(out, s.sessionSteps(cal, d, now, rangeStep(rng))...)
		}
		return out
	case market.Range5Y:
		day := cal.LastTradingDay(now)
		const weeks = 260
		out := make([]time.Time, 0, weeks)
		for i := 0; i < weeks; i++ {
			out = append([]time.Time{cal.SessionOpen(day)}, out...)
			day = cal.LastTradingDay(day.AddDate(0, 0, -7))
		}
		return out
	default:
		day := cal.LastTradingDay(now)
		count := rangeDays(rng, now)
		out := make([]time.Time, 0, count)
		for i := 0; i < count; i++ {
			out = append([]time.Time{cal.SessionOpen(day)}, out...)
			day = cal.PrevTradingDay(day)
		}
		return out
	}
}

// sessionSteps enumerates intraday step times for one trading date,
// clamped to the session, skipping the midday closure, and never
// passing now.
func (s *Synthesizer) sessionSteps(cal Calendar, day, now time.Time, step time.Duration) []time.Time {
	open := cal.SessionOpen(day)
	end := cal.SessionClose(day)
	if now.Before(end) {
		end = now
	}
	var out []time.Time
	for t := open; t.Before(end); t = t.Add(step) {
		if !cal.InSession(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
