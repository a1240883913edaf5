// Package montecarlo is a parallel, live-monitorable naive Monte Carlo
// integrator for scalar functions of a real vector over an axis-aligned
// rectangular domain, any of whose bounds may be infinite.
//
// # Overview
//
// The integrator drives the standard error of the mean estimator down to a
// caller-chosen goal:
//
//	error = √(variance / N) ≤ goal
//
// and exposes the running estimate, variance, call count, progress fraction,
// and an extrapolated time to completion at any moment while it runs. It is
// "naive" on purpose: uniform sampling only, no stratification, importance
// sampling, low-discrepancy sequences, or adaptive refinement.
//
// # Architecture
//
// Five cooperating pieces:
//
//   - bounds.go      - axis classification and unit-cube transform with Jacobian
//   - accumulator.go - per-worker Kahan-compensated Welford mean/variance
//   - progress.go    - lock-free observable surface over atomics
//   - montecarlo.go  - workers, controller poll loop, async result handle
//   - assertions.go  - test helpers for statistical properties
//
// Workers draw uniform batches on [0,1]^n, map them onto the domain, and fold
// the weighted integrand values into private accumulators, publishing to
// per-worker atomic slots every 2048 evaluations. The controller aggregates
// the slots every 100 ms and terminates the run once the error goal is met,
// the caller cancels, or a worker fails.
//
// # Quick Start
//
// Integrate a Gaussian over the whole plane (exact answer π):
//
//	f := func(x []float64) float64 {
//	    return math.Exp(-x[0]*x[0] - x[1]*x[1])
//	}
//
//	cfg := montecarlo.DefaultConfig()
//	cfg.Bounds = [][2]float64{
//	    {math.Inf(-1), math.Inf(1)},
//	    {math.Inf(-1), math.Inf(1)},
//	}
//	cfg.ErrorGoal = 1e-2
//
//	nmc, err := montecarlo.New(f, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fut := nmc.Integrate(context.Background())
//	estimate, err := fut.Wait()
//
// Watch it from another goroutine while it runs:
//
//	fmt.Printf("%.1f%% done, estimate %.6f, ETA %v\n",
//	    nmc.Progress()*100, nmc.CurrentEstimate(), nmc.EstimatedTimeToCompletion())
//
// # Infinite and singular domains
//
// Semi- and doubly-infinite axes are folded onto the unit cube with the
// standard substitutions, their Jacobians multiplied into each sample's
// weight. Only the variance of the transformed integral is controlled; no
// attempt is made to bound the bias of the transform itself.
//
// With Config.Singular (the default), domain endpoints are nudged one
// representable step inward, so an integrand that blows up at a bound (say
// 1/√x at 0) is never evaluated exactly there.
//
// # Numerical stability
//
// Each worker runs Welford's online recurrence with Kahan compensation on the
// mean. Compensation is mandatory: the uncompensated update drifts like ε·N,
// which grows faster than the σ/√N Monte Carlo error shrinks, so long runs
// would random-walk away from the answer. Compensated, the drift is ε²·N and
// a constant integrand over a finite box comes back exact to a few ulps at
// any sample count.
//
// # Concurrency model
//
//   - Per-worker slots are single-writer, multi-reader; workers never touch
//     each other's state, so no cross-worker ordering is needed.
//   - The controller is the single writer of the shared aggregates; any
//     number of goroutines may read them, tolerating a one-poll lag.
//   - Cancellation (Cancel, or the ctx passed to Integrate) is cooperative:
//     workers observe the done flag between batches, so the latency bound is
//     one batch of 2048 evaluations per worker.
//   - The integrand is called from every worker simultaneously and must be
//     safe for concurrent use.
//
// # Testing
//
// Use the assertion helpers to validate statistical properties:
//
//	func TestQuarterDisk(t *testing.T) {
//	    result, _ := nmc.Integrate(context.Background()).Wait()
//	    montecarlo.AssertConverged(t, result, math.Pi/4, 1e-3,
//	        montecarlo.DefaultAssertionConfig())
//	    montecarlo.AssertObservableInvariants(t, nmc)
//	}
package montecarlo
