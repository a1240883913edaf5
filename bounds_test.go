package montecarlo

import (
	"errors"
	"math"
	"testing"
)

// TestNewDomain_Classification verifies each bound pair maps to the right
// limit class and reference point.
func TestNewDomain_Classification(t *testing.T) {
	inf := math.Inf(1)
	d, err := newDomain([][2]float64{
		{0, 1},
		{-inf, 2},
		{3, inf},
		{-inf, inf},
	}, false)
	if err != nil {
		t.Fatalf("newDomain failed: %v", err)
	}

	want := []limitClass{finiteLimits, lowerInfinite, upperInfinite, doublyInfinite}
	for i, w := range want {
		if d.axes[i].class != w {
			t.Errorf("axis %d: class = %d, want %d", i, d.axes[i].class, w)
		}
	}

	// Lower-infinite axes anchor at the finite (upper) end.
	if d.axes[1].lb != 2 {
		t.Errorf("lower-infinite reference = %g, want 2", d.axes[1].lb)
	}
	if d.axes[2].lb != 3 {
		t.Errorf("upper-infinite reference = %g, want 3", d.axes[2].lb)
	}

	// Only the finite axis contributes to the volume.
	if d.volume != 1 {
		t.Errorf("volume = %g, want 1", d.volume)
	}
}

// TestNewDomain_InvalidBounds verifies constructor rejection.
func TestNewDomain_InvalidBounds(t *testing.T) {
	cases := []struct {
		name   string
		bounds [][2]float64
		want   error
	}{
		{"empty", nil, ErrNoBounds},
		{"reversed", [][2]float64{{1, 0}}, ErrInvalidBounds},
		{"degenerate", [][2]float64{{2, 2}}, ErrInvalidBounds},
		{"nan", [][2]float64{{math.NaN(), 1}}, ErrInvalidBounds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newDomain(tc.bounds, true)
			if !errors.Is(err, tc.want) {
				t.Errorf("newDomain(%v) error = %v, want %v", tc.bounds, err, tc.want)
			}
		})
	}
}

// TestNewDomain_SingularNudging verifies the one-ulp endpoint perturbation.
func TestNewDomain_SingularNudging(t *testing.T) {
	d, err := newDomain([][2]float64{{0, 1}, {1, 2}, {5, math.Inf(1)}}, true)
	if err != nil {
		t.Fatalf("newDomain failed: %v", err)
	}

	// A zero lower bound becomes machine epsilon, not the subnormal next to 0.
	if d.axes[0].lb != machEps {
		t.Errorf("axis 0: lb = %g, want %g", d.axes[0].lb, machEps)
	}
	if d.axes[1].lb != math.Nextafter(1, 2) {
		t.Errorf("axis 1: lb = %g, want one ulp above 1", d.axes[1].lb)
	}
	if d.axes[2].lb != math.Nextafter(5, 6) {
		t.Errorf("axis 2: lb = %g, want one ulp above 5", d.axes[2].lb)
	}

	// Widths shrink by the nudges but stay positive and close to the raw width.
	for i := 0; i < 2; i++ {
		dx := d.axes[i].dx
		if dx <= 0 || dx > 1 {
			t.Errorf("axis %d: dx = %g out of (0, 1]", i, dx)
		}
		if math.Abs(dx-1) > 4*machEps {
			t.Errorf("axis %d: dx = %g too far from raw width 1", i, dx)
		}
	}

	// Sampling the cube corners never reproduces a raw endpoint.
	u := []float64{0, 0, 0}
	d.mapPoint(u)
	if u[0] == 0 || u[1] == 1 || u[2] == 5 {
		t.Errorf("corner sample hit a raw endpoint: %v", u)
	}
}

// TestMapPoint_Finite verifies the affine map and constant weight on a box.
func TestMapPoint_Finite(t *testing.T) {
	d, err := newDomain([][2]float64{{-1, 3}, {10, 12}}, false)
	if err != nil {
		t.Fatalf("newDomain failed: %v", err)
	}
	if d.volume != 8 {
		t.Fatalf("volume = %g, want 8", d.volume)
	}

	u := []float64{0.5, 0.25}
	w := d.mapPoint(u)
	if u[0] != 1 || u[1] != 10.5 {
		t.Errorf("mapped point = %v, want [1 10.5]", u)
	}
	if w != 8 {
		t.Errorf("weight = %g, want volume 8", w)
	}
}

// quadrature integrates f over the transformed domain with a midpoint rule on
// the unit interval. This checks the Jacobian algebra without any randomness.
func quadrature(d *domain, f func(float64) float64, steps int) float64 {
	du := 1.0 / float64(steps)
	sum := 0.0
	u := make([]float64, 1)
	for i := 0; i < steps; i++ {
		u[0] = (float64(i) + 0.5) * du
		w := d.mapPoint(u)
		sum += w * f(u[0]) * du
	}
	return sum
}

// TestMapPoint_UpperInfiniteJacobian checks ∫₀^∞ e^(-x) dx = 1 through the
// substitution, deterministically.
func TestMapPoint_UpperInfiniteJacobian(t *testing.T) {
	d, err := newDomain([][2]float64{{0, math.Inf(1)}}, true)
	if err != nil {
		t.Fatalf("newDomain failed: %v", err)
	}
	got := quadrature(d, func(x float64) float64 { return math.Exp(-x) }, 200000)
	if math.Abs(got-1) > 1e-3 {
		t.Errorf("∫ exp(-x) over [0,∞) = %.6f, want 1", got)
	}
	t.Logf("upper-infinite quadrature: %.8f (exact 1)", got)
}

// TestMapPoint_LowerInfiniteJacobian checks ∫_{-∞}^0 e^x dx = 1.
func TestMapPoint_LowerInfiniteJacobian(t *testing.T) {
	d, err := newDomain([][2]float64{{math.Inf(-1), 0}}, true)
	if err != nil {
		t.Fatalf("newDomain failed: %v", err)
	}
	got := quadrature(d, math.Exp, 200000)
	if math.Abs(got-1) > 1e-3 {
		t.Errorf("∫ exp(x) over (-∞,0] = %.6f, want 1", got)
	}
	t.Logf("lower-infinite quadrature: %.8f (exact 1)", got)
}

// TestMapPoint_DoublyInfiniteJacobian checks ∫_{-∞}^{+∞} e^(-x²) dx = √π.
func TestMapPoint_DoublyInfiniteJacobian(t *testing.T) {
	d, err := newDomain([][2]float64{{math.Inf(-1), math.Inf(1)}}, true)
	if err != nil {
		t.Fatalf("newDomain failed: %v", err)
	}
	got := quadrature(d, func(x float64) float64 { return math.Exp(-x * x) }, 200000)
	want := math.Sqrt(math.Pi)
	if math.Abs(got-want) > 1e-3 {
		t.Errorf("∫ exp(-x²) over ℝ = %.6f, want %.6f", got, want)
	}
	t.Logf("doubly-infinite quadrature: %.8f (exact %.8f)", got, want)
}

// TestMapPoint_WeightFinite verifies each substitution keeps the weight and
// the mapped coordinate finite on the exact cube endpoints the regularizers
// protect.
func TestMapPoint_WeightFinite(t *testing.T) {
	inf := math.Inf(1)
	cases := []struct {
		name   string
		bounds [2]float64
	}{
		{"upper_infinite", [2]float64{0, inf}},
		{"lower_infinite", [2]float64{-inf, 0}},
		{"doubly_infinite", [2]float64{-inf, inf}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := newDomain([][2]float64{tc.bounds}, true)
			if err != nil {
				t.Fatalf("newDomain failed: %v", err)
			}
			for _, endpoint := range []float64{0, 1} {
				u := []float64{endpoint}
				w := d.mapPoint(u)
				if math.IsInf(w, 0) || math.IsNaN(w) {
					t.Errorf("u=%g: weight = %g, want finite", endpoint, w)
				}
				if math.IsInf(u[0], 0) || math.IsNaN(u[0]) {
					t.Errorf("u=%g: mapped coordinate = %g, want finite", endpoint, u[0])
				}
			}
		})
	}
}
