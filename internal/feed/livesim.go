package feed

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"quotefeed/internal/market"
)

// LiveSim fakes tick-by-tick movement between real polling cycles by
// perturbing the last bar of an already-resolved intraday series. It
// never touches the cache, the source chain, or the synthesizer.
type LiveSim struct {
	// Interval between simulated ticks.
	Interval time.Duration
	// Amplitude is the max per-tick close perturbation fraction.
	Amplitude float64
	// Seed fixes the random sequence when non-zero.
	Seed int64
}

// Run mutates a copy of the series' last bar on each tick and hands
// the updated bar to onTick. Only intraday ranges are simulated; for
// anything coarser the returned cancel is a no-op. High and low track
// the running extremes of the perturbed close; volume only grows.
func (ls *LiveSim) Run(series market.BarSeries, rng market.Range, onTick func(market.Bar)) CancelFunc {
	if !rng.Intraday() || len(series) == 0 {
		return func() {}
	}
	interval := ls.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	amplitude := ls.Amplitude
	if amplitude <= 0 {
		amplitude = 0.0015
	}
	seed := ls.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := rand.New(rand.NewSource(seed))

	last := series[len(series)-1]
	done := make(chan struct{})
	var once sync.Once

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				last.Close *= 1 + (r.Float64()-0.5)*2*amplitude
				last.High = math.Max(last.High, last.Close)
				last.Low = math.Min(last.Low, last.Close)
				last.Volume += math.Round(r.Float64() * 1000)
				onTick(last)
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}
