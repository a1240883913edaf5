package montecarlo

import (
	"math"
	"sync/atomic"
)

// atomicFloat64 is a float64 published through atomic loads and stores of its
// bit pattern. The operations are purely load and store, never
// read-modify-write, so a bit-cast over atomic.Uint64 is all that is needed.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (f *atomicFloat64) Load() float64 {
	return math.Float64frombits(f.bits.Load())
}

func (f *atomicFloat64) Store(v float64) {
	f.bits.Store(math.Float64bits(v))
}

// slot is one worker's published accumulator state: the running mean M1, the
// Welford sum of squared deviations S, and the evaluation count. Each slot has
// a single writer (the owning worker) and any number of readers (the
// controller and observers), so plain atomic publication suffices and no
// cross-worker ordering is required.
type slot struct {
	m1    atomicFloat64
	s     atomicFloat64
	calls atomic.Uint64
}

// publish stores a consistent-enough snapshot of the worker's local state.
// Readers tolerate a one-interval lag, so the three stores need not be
// observed together.
func (sl *slot) publish(acc *accumulator) {
	sl.m1.Store(acc.m1)
	sl.s.Store(acc.s)
	sl.calls.Store(acc.k)
}

// load reads the slot into a local accumulator (compensator starts at zero;
// it never leaves the owning worker).
func (sl *slot) load() accumulator {
	return accumulator{
		m1: sl.m1.Load(),
		s:  sl.s.Load(),
		k:  sl.calls.Load(),
	}
}

// accumulator is the worker-local online mean/variance state: Welford's
// recurrence with Kahan compensation on the mean.
//
// Kahan compensation is not optional here. The uncompensated update drifts
// like ε·N, which diverges faster than the σ/√N Monte Carlo error converges,
// so a long run's estimate would go on a random walk. Compensation turns the
// drift into ε²·N, which never matters on any feasible run length.
type accumulator struct {
	m1          float64 // running mean of weighted integrand values
	s           float64 // Σ(fᵢ - mean)², Welford's S
	k           uint64  // evaluation count
	compensator float64 // Kahan carry for m1
}

// add folds one sample value into the running mean and variance.
func (a *accumulator) add(f float64) {
	a.k++
	term := (f - a.m1) / float64(a.k)
	y := term - a.compensator
	m2 := a.m1 + y
	a.compensator = (m2 - a.m1) - y
	a.s += (f - a.m1) * (f - m2)
	a.m1 = m2
}

// aggregate pools the published per-worker slots: the call-weighted mean of
// the per-worker means, the plain sum of the per-worker S, and the sample
// variance ΣS/(Σk−1).
//
// Summing S is exact only when the per-worker means coincide; with unequal
// means the pooled formulation would add inter-group terms. All workers sample
// the same distribution, so the intermediate estimate converges to the right
// value regardless, and the final aggregate inherits the same property.
func aggregate(slots []slot) (avg, variance float64, totalCalls uint64) {
	for i := range slots {
		totalCalls += slots[i].calls.Load()
	}
	var sumS float64
	for i := range slots {
		k := slots[i].calls.Load()
		avg += slots[i].m1.Load() * (float64(k) / float64(totalCalls))
		sumS += slots[i].s.Load()
	}
	variance = sumS / float64(totalCalls-1)
	return avg, variance, totalCalls
}
