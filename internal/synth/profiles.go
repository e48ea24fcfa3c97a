package synth

// Profile seeds the synthesizer for one instrument: a plausible base
// price and its daily volatility fraction.
type Profile struct {
	BasePrice float64
	DailyVol  float64
}

// DefaultProfile is used for any symbol without a configured profile.
var DefaultProfile = Profile{BasePrice: 1000, DailyVol: 0.02}

// Profiles resolves per-instrument profiles with a generic fallback.
type Profiles struct {
	m   map[string]Profile
	def Profile
}

// NewProfiles builds a resolver over the given table. A nil map is
// valid; everything resolves to the default.
func NewProfiles(table map[string]Profile) *Profiles {
	return &Profiles{m: table, def: DefaultProfile}
}

// DefaultProfiles carries a small static table for the instruments the
// dashboard ships with. Values are order-of-magnitude plausible, not
// market data.
func DefaultProfiles() *Profiles {
	return NewProfiles(map[string]Profile{
		// IDX large caps (IDR)
		"BBCA": {BasePrice: 9800, DailyVol: 0.015},
		"BBRI": {BasePrice: 4600, DailyVol: 0.02},
		"BMRI": {BasePrice: 6300, DailyVol: 0.02},
		"TLKM": {BasePrice: 3900, DailyVol: 0.018},
		"ASII": {BasePrice: 5100, DailyVol: 0.02},
		"GOTO": {BasePrice: 85, DailyVol: 0.045},
		"ANTM": {BasePrice: 1700, DailyVol: 0.03},

		// US (USD)
		"AAPL": {BasePrice: 195, DailyVol: 0.018},
		"MSFT": {BasePrice: 420, DailyVol: 0.016},
		"TSLA": {BasePrice: 250, DailyVol: 0.04},
		"NVDA": {BasePrice: 900, DailyVol: 0.035},

		// Crypto (USD)
		"BTC": {BasePrice: 65000, DailyVol: 0.035},
		"ETH": {BasePrice: 3400, DailyVol: 0.04},
		"SOL": {BasePrice: 150, DailyVol: 0.06},
	})
}

// Lookup returns the profile for symbol, or the default.
func (p *Profiles) Lookup(symbol string) Profile {
	if p == nil {
		return DefaultProfile
	}
	if prof, ok := p.m[symbol]; ok {
		return prof
	}
	return p.def
}
