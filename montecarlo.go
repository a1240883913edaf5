package montecarlo

import (
	"context"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Integrand is the function being integrated: an ordered vector of reals in,
// one real out. It is invoked concurrently from every worker, so it must be
// safe for simultaneous calls; any interior synchronization it needs is the
// caller's responsibility. The argument slice is reused between evaluations
// and must not be retained.
type Integrand func(x []float64) float64

// Config controls an integration run.
type Config struct {
	// Bounds is one (lower, upper) pair per axis, lower < upper strictly.
	// Either side may be ±Inf.
	Bounds [][2]float64

	// ErrorGoal is the target for √(variance/calls), the standard error of
	// the mean. Must be positive and finite.
	ErrorGoal float64

	// Singular perturbs domain endpoints one representable step inward so
	// samples never hit a bound where the integrand may be singular.
	Singular bool

	// Threads is the worker count. Zero or negative means the detected
	// hardware parallelism, floor 1.
	Threads int

	// Seed seeds the master engine. Zero means draw a nondeterministic seed
	// from entropy; any other value makes the sample trajectory reproducible.
	Seed uint64

	// Logger receives lifecycle events and per-poll progress at Debug level.
	// Nil discards.
	Logger *slog.Logger
}

// DefaultConfig returns the recommended defaults: singular endpoint handling
// on, one worker per CPU, nondeterministic seed.
func DefaultConfig() Config {
	return Config{
		Singular: true,
		Threads:  runtime.NumCPU(),
	}
}

const (
	// batchSize is the number of evaluations a worker performs between
	// publications and done checks. Publishing with fewer calls risks
	// terminating on an under-resolved variance estimate: 1/√2048 ≈ 0.02,
	// so a batch recovers two digits of the variance before the controller
	// gets to act on it. Cancellation latency is bounded by one batch.
	batchSize = 2048

	// pollInterval is how often the controller aggregates worker slots and
	// re-evaluates the termination condition.
	pollInterval = 100 * time.Millisecond

	// invUint64Span scales a raw 64-bit generator draw onto the unit
	// interval: 1/(max-min) of the engine's output range.
	invUint64Span = 0x1p-64
)

// Integrator estimates an integral over an axis-aligned rectangular domain by
// naive Monte Carlo: uniform samples on the unit hypercube, transformed onto
// the domain with the matching Jacobian, averaged online until the standard
// error of the mean reaches the goal.
//
// One Integrate runs at a time, but the observable surface (progress.go) and
// UpdateTargetError/Cancel may be used from any goroutine concurrently with
// the run. A completed or canceled run may be restarted: the accumulated
// sample state is retained and the next Integrate continues from it.
type Integrator struct {
	integrand Integrand
	dom       *domain
	threads   int
	id        uuid.UUID
	log       *slog.Logger

	seed      atomic.Uint64
	errorGoal atomicFloat64
	done      atomic.Bool
	start     atomic.Int64 // unix nanos of the current run's start

	// Aggregates published by the controller each poll.
	avg        atomicFloat64
	variance   atomicFloat64
	totalCalls atomic.Uint64

	// One slot per worker, indexed by worker id. Fixed at construction so
	// the records can be independently atomic.
	slots []slot

	failMu  sync.Mutex
	failErr error
}

// New validates the configuration, classifies the domain, and primes each
// worker's accumulator with one integrand evaluation. The priming calls make
// the integrator restartable and fail fast if the integrand misbehaves on a
// typical sample.
func New(integrand Integrand, cfg Config) (*Integrator, error) {
	if integrand == nil {
		return nil, ErrIntegrandNil
	}
	if !(cfg.ErrorGoal > 0) || math.IsInf(cfg.ErrorGoal, 1) {
		return nil, ErrInvalidErrorGoal
	}
	dom, err := newDomain(cfg.Bounds, cfg.Singular)
	if err != nil {
		return nil, err
	}

	threads := cfg.Threads
	if threads < 1 {
		threads = max(runtime.NumCPU(), 1)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	n := &Integrator{
		integrand: integrand,
		dom:       dom,
		threads:   threads,
		id:        uuid.New(),
		log:       logger,
		slots:     make([]slot, threads),
	}
	n.seed.Store(cfg.Seed)
	n.errorGoal.Store(cfg.ErrorGoal)
	n.start.Store(time.Now().UnixNano())

	if err := n.prime(cfg.Seed); err != nil {
		return nil, err
	}
	return n, nil
}

// prime evaluates the integrand once per worker, seeding each slot with a
// single-sample accumulator. Without these calls a restart would have nothing
// to continue from.
func (n *Integrator) prime(seed uint64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r}
		}
	}()

	if seed == 0 {
		seed = rand.Uint64()
	}
	gen := newEngine(seed)
	x := make([]float64, n.dom.dim())
	var avg float64
	for i := range n.slots {
		for j := range x {
			x[j] = float64(gen.Uint64()) * invUint64Span
		}
		coeff := n.dom.mapPoint(x)
		f := coeff * n.integrand(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			pt := make([]float64, len(x))
			copy(pt, x)
			return &DomainError{Point: pt, Value: f}
		}
		n.slots[i].m1.Store(f)
		n.slots[i].calls.Store(1)
		avg += f
	}
	n.avg.Store(avg / float64(n.threads))
	n.totalCalls.Store(uint64(n.threads))
	// Sentinel until the first poll; keeps CurrentErrorEstimate from
	// reporting a spuriously small value before any aggregation.
	n.variance.Store(math.Inf(1))
	return nil
}

// newEngine builds a deterministic per-stream engine from one 64-bit seed.
func newEngine(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Future is the single-consumer handle of an asynchronous run. Wait blocks
// until the run terminates and yields the final estimate, or the stored
// failure if a worker raised one.
type Future struct {
	ch    chan struct{}
	value float64
	err   error
}

// Wait blocks until the run resolves.
func (f *Future) Wait() (float64, error) {
	<-f.ch
	return f.value, f.err
}

// Integrate starts (or restarts) the run asynchronously. The returned Future
// resolves with the final estimate once the error goal is met or Cancel is
// called, or with the stored error if a worker failed. Canceling ctx is
// equivalent to calling Cancel.
//
// A restart continues from the preserved per-worker accumulator state toward
// the current (possibly updated) error goal.
func (n *Integrator) Integrate(ctx context.Context) *Future {
	fut := &Future{ch: make(chan struct{})}
	go func() {
		fut.value, fut.err = n.run(ctx)
		close(fut.ch)
	}()
	return fut
}

// Cancel requests cooperative termination. The in-flight Integrate resolves
// normally with the best estimate to date within about one batch per worker.
//
// A nonzero stored seed is squared so that cancel-then-restart is not a
// bit-for-bit replay of the canceled run; a zero seed stays zero and remains
// nondeterministic anyway.
func (n *Integrator) Cancel() {
	s := n.seed.Load()
	n.seed.Store(s * s)
	n.done.Store(true)
}

// run is the controller: seed workers, poll-aggregate until done, join,
// surface the result or the stored failure.
func (n *Integrator) run(ctx context.Context) (float64, error) {
	n.done.Store(false)
	n.failMu.Lock()
	n.failErr = nil
	n.failMu.Unlock()
	n.start.Store(time.Now().UnixNano())

	seed := n.seed.Load()
	if seed == 0 {
		seed = rand.Uint64()
	}
	master := newEngine(seed)

	n.log.Info("integration started",
		"run", n.id, "dim", n.dom.dim(), "threads", n.threads,
		"error_goal", n.errorGoal.Load())

	var wg sync.WaitGroup
	for i := range n.slots {
		wg.Add(1)
		go func(idx int, workerSeed uint64) {
			defer wg.Done()
			n.worker(idx, workerSeed)
		}(i, master.Uint64())
	}

	for {
		sleep(ctx, pollInterval)
		if ctx.Err() != nil {
			n.done.Store(true)
		}

		avg, variance, calls := aggregate(n.slots)
		n.avg.Store(avg)
		n.variance.Store(variance)
		n.totalCalls.Store(calls)

		errEst := n.CurrentErrorEstimate()
		n.log.Debug("poll",
			"run", n.id, "calls", calls, "estimate", avg,
			"error", errEst, "progress", n.Progress())

		// done first: cancellation and worker failure take precedence over
		// the convergence check.
		if n.done.Load() {
			break
		}
		if errEst <= n.errorGoal.Load() {
			n.done.Store(true)
			break
		}
	}
	wg.Wait()

	n.failMu.Lock()
	err := n.failErr
	n.failMu.Unlock()
	if err != nil {
		n.log.Error("integration failed", "run", n.id, "error", err)
		return 0, err
	}

	// Fold the workers' final batches into the published aggregate.
	avg, variance, calls := aggregate(n.slots)
	n.avg.Store(avg)
	n.variance.Store(variance)
	n.totalCalls.Store(calls)

	n.log.Info("integration finished",
		"run", n.id, "estimate", avg, "calls", calls,
		"error", n.CurrentErrorEstimate())
	return avg, nil
}

// worker draws uniform batches, transforms them onto the domain, evaluates
// the integrand, and folds the weighted values into its local accumulator,
// publishing to its slot after every batch. The done flag is only observed
// between batches.
func (n *Integrator) worker(idx int, seed uint64) {
	defer func() {
		if r := recover(); r != nil {
			n.fail(&panicError{value: r})
		}
	}()

	gen := newEngine(seed)
	x := make([]float64, n.dom.dim())
	acc := n.slots[idx].load()

	for !n.done.Load() {
		for j := 0; j < batchSize; j++ {
			for i := range x {
				x[i] = float64(gen.Uint64()) * invUint64Span
			}
			coeff := n.dom.mapPoint(x)
			f := coeff * n.integrand(x)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				// mapPoint transformed x in place, so the reported
				// node is the actual evaluation point.
				pt := make([]float64, len(x))
				copy(pt, x)
				n.fail(&DomainError{Point: pt, Value: f})
				return
			}
			acc.add(f)
		}
		n.slots[idx].publish(&acc)
	}
}

// fail stores the first worker failure and signals every thread to stop.
func (n *Integrator) fail(err error) {
	n.failMu.Lock()
	if n.failErr == nil {
		n.failErr = err
	}
	n.failMu.Unlock()
	n.done.Store(true)
}

// sleep waits out the poll interval or returns early on ctx cancellation.
func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
