package montecarlo

import (
	"math"
	"testing"
)

// AssertionConfig contains thresholds for integration result checks.
type AssertionConfig struct {
	// TolFactor scales the error goal into an acceptance band: a result
	// passes when |result − exact| ≤ TolFactor·goal. The error goal is one
	// standard error of the estimator, so 4 keeps the false-failure rate
	// around 1 in 16000 on a well-behaved integrand.
	TolFactor float64
}

// DefaultAssertionConfig returns conservative thresholds.
func DefaultAssertionConfig() AssertionConfig {
	return AssertionConfig{
		TolFactor: 4,
	}
}

// AssertConverged verifies the estimate landed within TolFactor standard
// errors of the exact value.
//
// Statistical property:
//
//	|result − exact| ≤ TolFactor · goal, goal = √(variance/N)
func AssertConverged(t *testing.T, result, exact, goal float64, cfg AssertionConfig) {
	t.Helper()

	diff := math.Abs(result - exact)
	band := cfg.TolFactor * goal
	if diff > band {
		t.Errorf("Estimate outside acceptance band: |%.10g - %.10g| = %.3g (max: %.3g)\n"+
			"Either the run terminated on an under-resolved variance or the transform is biased.",
			result, exact, diff, band)
		return
	}

	t.Logf("✓ Converged: estimate=%.10g exact=%.10g |Δ|=%.3g (band: %.3g)",
		result, exact, diff, band)
}

// AssertObservableInvariants verifies the always-true properties of the
// observable surface, valid at any moment before, during, or after a run:
//
//	variance ≥ 0 (+Inf sentinel allowed before the first poll)
//	calls ≥ thread count (each worker is primed with one evaluation)
//	progress ∈ [0,1]
func AssertObservableInvariants(t *testing.T, n *Integrator) {
	t.Helper()

	if v := n.Variance(); v < 0 || math.IsNaN(v) {
		t.Errorf("Variance invariant violated: %g (must be ≥ 0)", v)
	}
	if calls := n.Calls(); calls < uint64(n.threads) {
		t.Errorf("Call-count invariant violated: %d calls < %d workers", calls, n.threads)
	}
	if p := n.Progress(); p < 0 || p > 1 || math.IsNaN(p) {
		t.Errorf("Progress invariant violated: %g (must be in [0,1])", p)
	}

	t.Logf("✓ Observables: estimate=%.6g variance=%.3g calls=%d progress=%.2f",
		n.CurrentEstimate(), n.Variance(), n.Calls(), n.Progress())
}

// PrintRunAnalysis outputs a detailed snapshot of the run to the test log.
func PrintRunAnalysis(t *testing.T, n *Integrator) {
	t.Helper()

	t.Logf("\n=== Run Analysis ===")
	t.Logf("  estimate        = %.12g", n.CurrentEstimate())
	t.Logf("  variance        = %.6g", n.Variance())
	t.Logf("  error estimate  = %.6g", n.CurrentErrorEstimate())
	t.Logf("  calls           = %d", n.Calls())
	t.Logf("  progress        = %.2f%%", n.Progress()*100)
	t.Logf("  ETA             = %v", n.EstimatedTimeToCompletion())
}
