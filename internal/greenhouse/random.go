package greenhouse

import (
	"math"
	"math/rand/v2"
)

// Source supplies random draws; *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
	Float64() float64
}

func newSource(seed uint64) Source {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// between draws an integer in [lo, hi].
func between(src Source, lo, hi int) int {
	return lo + src.IntN(hi-lo+1)
}

// jitter draws a delta in [-span, span).
func jitter(src Source, span float64) float64 {
	return src.Float64()*2*span - span
}

// kWh draws a consumption in [lo, hi) rounded to two decimals.
func kWh(src Source, lo, hi float64) float64 {
	return math.Round((lo+src.Float64()*(hi-lo))*100) / 100
}

// drift applies delta to v, rounding half to even, and clamps to [lo, hi].
func drift(v int, delta float64, lo, hi int) int {
	return clamp(int(math.RoundToEven(float64(v)+delta)), lo, hi)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
