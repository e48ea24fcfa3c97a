package synth

import (
	"time"

	"quotefeed/internal/market"
)

// Calendar captures the trading-hours rules of one market: session
// open/close as offsets from local midnight, an optional midday
// closure window, and whether weekends trade.
type Calendar struct {
	Loc        *time.Location
	Open       time.Duration
	Close      time.Duration
	BreakStart time.Duration // zero means no midday closure
	BreakEnd   time.Duration
	Weekends   bool
}

// ForMarket returns the calendar for a market. The IDX midday window
// approximates the exchange lunch break.
func ForMarket(m market.Market) Calendar {
	switch m {
	case market.US:
		return Calendar{
			Loc:   m.Location(),
			Open:  9*time.Hour + 30*time.Minute,
			Close: 16 * time.Hour,
		}
	case market.Crypto:
		return Calendar{
			Loc:      m.Location(),
			Open:     0,
			Close:    24 * time.Hour,
			Weekends: true,
		}
	default:
		return Calendar{
			Loc:        m.Location(),
			Open:       9 * time.Hour,
			Close:      16 * time.Hour,
			BreakStart: 12 * time.Hour,
			BreakEnd:   13*time.Hour + 30*time.Minute,
		}
	}
}

// IsTradingDay reports whether t falls on a trading date.
func (c Calendar) IsTradingDay(t time.Time) bool {
	if c.Weekends {
		return true
	}
	wd := t.In(c.Loc).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// dayOffset is t's wall-clock offset into the day. Clock components,
// not elapsed time, so DST transitions do not shift the session.
func (c Calendar) dayOffset(t time.Time) time.Duration {
	lt := t.In(c.Loc)
	return time.Duration(lt.Hour())*time.Hour +
		time.Duration(lt.Minute())*time.Minute +
		time.Duration(lt.Second())*time.Second
}

// clockOn places a wall-clock offset on t's date.
func (c Calendar) clockOn(t time.Time, off time.Duration) time.Time {
	lt := t.In(c.Loc)
	h := int(off / time.Hour)
	m := int(off % time.Hour / time.Minute)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), h, m, 0, 0, c.Loc)
}

// InSession reports whether t is inside trading hours and outside the
// midday closure.
func (c Calendar) InSession(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	off := c.dayOffset(t)
	if off < c.Open || off >= c.Close {
		return false
	}
	if c.BreakStart != c.BreakEnd && off >= c.BreakStart && off < c.BreakEnd {
		return false
	}
	return true
}

// SessionOpen returns the session open instant on t's date.
func (c Calendar) SessionOpen(t time.Time) time.Time {
	return c.clockOn(t, c.Open)
}

// SessionClose returns the session close instant on t's date.
func (c Calendar) SessionClose(t time.Time) time.Time {
	return c.clockOn(t, c.Close)
}

// SessionLength is the tradable portion of a day, break excluded.
func (c Calendar) SessionLength() time.Duration {
	return c.Close - c.Open - (c.BreakEnd - c.BreakStart)
}

// LastTradingDay returns the most recent trading date at or before t.
func (c Calendar) LastTradingDay(t time.Time) time.Time {
	d := t.In(c.Loc)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// LastSessionDay returns the most recent trading date whose session
// has already started by t.
func (c Calendar) LastSessionDay(t time.Time) time.Time {
	d := c.LastTradingDay(t)
	if t.In(c.Loc).Before(c.SessionOpen(d)) {
		d = c.PrevTradingDay(d)
	}
	return d
}

// PrevTradingDay steps back one trading date from t.
func (c Calendar) PrevTradingDay(t time.Time) time.Time {
	d := t.In(c.Loc).AddDate(0, 0, -1)
	for !c.IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}
