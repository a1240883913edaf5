package montecarlo

import (
	"fmt"
	"math"
)

// Machine constants of float64, named the way the transform formulas use them.
//
//	machEps   = 2^-52, distance from 1.0 to the next float
//	minNormal = 2^-1022, smallest positive normal
const (
	machEps       = 0x1p-52
	minNormal     = 0x1p-1022
	sqrtMinNormal = 0x1p-511 // sqrt(minNormal), exact
)

// limitClass classifies an axis by which of its bounds are infinite.
type limitClass int

const (
	finiteLimits limitClass = iota
	lowerInfinite
	upperInfinite
	doublyInfinite
)

// axis is the per-dimension sampling record.
//
// lb is the reference point of the transform. For finite and upper-infinite
// axes it is the (possibly nudged) lower bound. For lower-infinite axes it is
// the UPPER bound: the semi-infinite substitution runs toward -inf by
// reflection, so the finite end is the anchor. Doubly-infinite axes need no
// reference.
type axis struct {
	class limitClass
	lb    float64
	dx    float64 // width, finite axes only
}

// domain folds an axis-aligned rectangular region, any of whose bounds may be
// infinite, onto the closed unit hypercube. volume is the product of the
// finite-axis widths; infinite axes contribute their Jacobian per sample
// inside mapPoint instead.
type domain struct {
	axes   []axis
	volume float64
}

// newDomain classifies each axis and precomputes the transform data.
//
// With singular set, endpoints are perturbed one representable step inward so
// a sample can never land exactly on a bound where the integrand may blow up.
// Sampling on a closed set and nudging the boundary is easier than trying to
// sample arbitrarily close to an open one.
func newDomain(bounds [][2]float64, singular bool) (*domain, error) {
	if len(bounds) == 0 {
		return nil, ErrNoBounds
	}
	d := &domain{
		axes:   make([]axis, len(bounds)),
		volume: 1,
	}
	for i, b := range bounds {
		lower, upper := b[0], b[1]
		if upper <= lower || math.IsNaN(lower) || math.IsNaN(upper) {
			return nil, fmt.Errorf("axis %d: [%g, %g]: %w", i, lower, upper, ErrInvalidBounds)
		}
		switch {
		case math.IsInf(lower, -1) && math.IsInf(upper, 1):
			d.axes[i] = axis{class: doublyInfinite}
		case math.IsInf(lower, -1):
			d.axes[i] = axis{class: lowerInfinite, lb: upper}
		case math.IsInf(upper, 1):
			lb := lower
			if singular {
				lb = math.Nextafter(lower, math.MaxFloat64)
			}
			d.axes[i] = axis{class: upperInfinite, lb: lb}
		default:
			lb, dx := lower, upper-lower
			if singular {
				if lower == 0 {
					lb = machEps
				} else {
					lb = math.Nextafter(lower, math.MaxFloat64)
				}
				dx = math.Nextafter(upper, -math.MaxFloat64) - lb
			}
			d.axes[i] = axis{class: finiteLimits, lb: lb, dx: dx}
			d.volume *= dx
		}
	}
	return d, nil
}

// dim returns the number of axes.
func (d *domain) dim() int {
	return len(d.axes)
}

// mapPoint transforms u ∈ [0,1]^n in place into domain coordinates and
// returns the sample weight: volume times the product of per-axis Jacobians.
//
// The substitutions (standard semi-/doubly-infinite changes of variable,
// regularized so z stays finite on the closed cube):
//
//	Finite:         x = lb + u·dx                            J = 1
//	UpperInfinite:  z = 1/(1+ε-u),   x = lb + u·z            J = (1+ε)·z²
//	LowerInfinite:  z = 1/(u+√min),  x = lb + (u-1)·z        J = z²
//	DoublyInfinite: t₁ = 1/(1+ε-u), t₂ = 1/(u+ε),
//	                x = (2u-1)·t₁·t₂/4                       J = (t₁²+t₂²)/4
func (d *domain) mapPoint(u []float64) float64 {
	coeff := d.volume
	for i := range u {
		ax := &d.axes[i]
		switch ax.class {
		case finiteLimits:
			u[i] = ax.lb + u[i]*ax.dx
		case upperInfinite:
			t := u[i]
			z := 1 / (1 + machEps - t)
			coeff *= z * z * (1 + machEps)
			u[i] = ax.lb + t*z
		case lowerInfinite:
			t := u[i]
			z := 1 / (t + sqrtMinNormal)
			coeff *= z * z
			u[i] = ax.lb + (t-1)*z
		default: // doublyInfinite
			t1 := 1 / (1 + machEps - u[i])
			t2 := 1 / (u[i] + machEps)
			u[i] = (2*u[i] - 1) * t1 * t2 / 4
			coeff *= (t1*t1 + t2*t2) / 4
		}
	}
	return coeff
}
