// Package grism implements dispersed-spectroscopy geometry: the grism
// trace transform models, WFSS/TSO chain builders, the wavelength-range
// reference table, and per-object extraction-box computation.
package grism

import (
	"errors"
	"fmt"
	"math"
)

// Orientation selects which detector axis the spectrum disperses along.
type Orientation int

const (
	// RowDispersed traces run along detector X.
	RowDispersed Orientation = iota
	// ColumnDispersed traces run along detector Y.
	ColumnDispersed
)

var (
	// ErrUnknownOrder reports a spectral order absent from the model.
	ErrUnknownOrder = errors.New("unknown spectral order")
	// ErrNoRoot reports that trace inversion failed to bracket a solution.
	ErrNoRoot = errors.New("trace inversion found no root")
)

// TraceOrder holds one spectral order's trace polynomials, all in the
// dimensionless trace parameter t. Disp is displacement along the
// dispersion axis in pixels, Cross the cross-dispersion displacement,
// and Wave the wavelength in microns. Wave must be strictly monotonic
// over the usable t range.
type TraceOrder struct {
	Order int       `json:"order"`
	Disp  []float64 `json:"disp"`
	Cross []float64 `json:"cross"`
	Wave  []float64 `json:"wave"`
}

// DispersionModel is the per-order trace description of one grism
// configuration.
type DispersionModel struct {
	Orientation Orientation        `json:"orientation"`
	Orders      map[int]TraceOrder `json:"orders"`
}

func (m *DispersionModel) order(v float64) (TraceOrder, error) {
	k := int(math.Round(v))
	tr, ok := m.Orders[k]
	if !ok {
		return TraceOrder{}, fmt.Errorf("%w: %d", ErrUnknownOrder, k)
	}
	return tr, nil
}

// polyval evaluates a polynomial with coefficients in ascending power.
func polyval(c []float64, t float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		v = v*t + c[i]
	}
	return v
}

func polyderiv(c []float64, t float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 1; i-- {
		v = v*t + float64(i)*c[i]
	}
	return v
}

// invertPoly solves p(t) = target for t. Newton iteration from the
// midpoint of the search interval, with a bisection fallback when the
// iteration stalls or escapes [lo, hi]. Tolerance 1e-13 in t keeps grism
// round trips well below a nanopixel.
func invertPoly(c []float64, target, lo, hi float64) (float64, error) {
	t := 0.5 * (lo + hi)
	for i := 0; i < 60; i++ {
		f := polyval(c, t) - target
		if math.Abs(f) < 1e-13 {
			return t, nil
		}
		d := polyderiv(c, t)
		if d == 0 {
			break
		}
		next := t - f/d
		if next < lo || next > hi || math.IsNaN(next) {
			break
		}
		if math.Abs(next-t) < 1e-15 {
			return next, nil
		}
		t = next
	}
	return bisectPoly(c, target, lo, hi)
}

func bisectPoly(c []float64, target, lo, hi float64) (float64, error) {
	const steps = 128
	f := func(t float64) float64 { return polyval(c, t) - target }

	a, fa := lo, f(lo)
	if fa == 0 {
		return a, nil
	}
	step := (hi - lo) / steps
	b := a
	var fb float64
	found := false
	for i := 1; i <= steps; i++ {
		b = lo + float64(i)*step
		fb = f(b)
		if fb == 0 {
			return b, nil
		}
		if fa*fb < 0 {
			found = true
			break
		}
		a, fa = b, fb
	}
	if !found {
		return 0, fmt.Errorf("%w: target %g in [%g, %g]", ErrNoRoot, target, lo, hi)
	}
	for i := 0; i < 200; i++ {
		m := 0.5 * (a + b)
		fm := f(m)
		if fm == 0 || b-a < 1e-15 {
			return m, nil
		}
		if fa*fm < 0 {
			b = m
		} else {
			a, fa = m, fm
		}
	}
	return 0.5 * (a + b), nil
}

// traceSearchLo/Hi bound the trace parameter during inversion. Traces are
// parameterised over roughly [0, 1]; the margin tolerates extrapolation
// past the nominal wavelength limits.
const (
	traceSearchLo = -1.0
	traceSearchHi = 2.0
)

// ForwardDispersion maps grism-detector coordinates to the direct-image
// detector frame: inputs (x, y, x0, y0, order), outputs
// (x0, y0, wavelength, order). The trace parameter is recovered by
// inverting the dispersion polynomial at the observed displacement.
type ForwardDispersion struct {
	Model *DispersionModel
}

func (t ForwardDispersion) NIn() int  { return 5 }
func (t ForwardDispersion) NOut() int { return 4 }

func (t ForwardDispersion) Eval(in []float64) ([]float64, error) {
	if len(in) != 5 {
		return nil, fmt.Errorf("forward dispersion wants 5 inputs, got %d", len(in))
	}
	xg, yg, x0, y0, order := in[0], in[1], in[2], in[3], in[4]
	tr, err := t.Model.order(order)
	if err != nil {
		return nil, err
	}

	d := xg - x0
	if t.Model.Orientation == ColumnDispersed {
		d = yg - y0
	}
	tp, err := invertPoly(tr.Disp, d, traceSearchLo, traceSearchHi)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", tr.Order, err)
	}
	lam := polyval(tr.Wave, tp)
	return []float64{x0, y0, lam, order}, nil
}

func (t ForwardDispersion) Inverse() (Transform, error) {
	return BackwardDispersion{Model: t.Model}, nil
}

// BackwardDispersion maps direct-image detector coordinates plus
// wavelength back onto the grism detector: inputs (x0, y0, wavelength,
// order), outputs (x, y, x0, y0, order).
type BackwardDispersion struct {
	Model *DispersionModel
}

func (t BackwardDispersion) NIn() int  { return 4 }
func (t BackwardDispersion) NOut() int { return 5 }

func (t BackwardDispersion) Eval(in []float64) ([]float64, error) {
	if len(in) != 4 {
		return nil, fmt.Errorf("backward dispersion wants 4 inputs, got %d", len(in))
	}
	x0, y0, lam, order := in[0], in[1], in[2], in[3]
	tr, err := t.Model.order(order)
	if err != nil {
		return nil, err
	}

	tp, err := invertPoly(tr.Wave, lam, traceSearchLo, traceSearchHi)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", tr.Order, err)
	}
	dd := polyval(tr.Disp, tp)
	dc := polyval(tr.Cross, tp)

	xg, yg := x0+dd, y0+dc
	if t.Model.Orientation == ColumnDispersed {
		xg, yg = x0+dc, y0+dd
	}
	return []float64{xg, yg, x0, y0, order}, nil
}

func (t BackwardDispersion) Inverse() (Transform, error) {
	return ForwardDispersion{Model: t.Model}, nil
}

// TSOForwardDispersion is the time-series grism variant: the source sits
// at a fixed reference pixel, so inputs are (x, y, order) and outputs
// (xref, yref, wavelength, order).
type TSOForwardDispersion struct {
	Model *DispersionModel
	XRef  float64
	YRef  float64
}

func (t TSOForwardDispersion) NIn() int  { return 3 }
func (t TSOForwardDispersion) NOut() int { return 4 }

func (t TSOForwardDispersion) Eval(in []float64) ([]float64, error) {
	if len(in) != 3 {
		return nil, fmt.Errorf("tso forward dispersion wants 3 inputs, got %d", len(in))
	}
	xg, yg, order := in[0], in[1], in[2]
	tr, err := t.Model.order(order)
	if err != nil {
		return nil, err
	}
	d := xg - t.XRef
	if t.Model.Orientation == ColumnDispersed {
		d = yg - t.YRef
	}
	tp, err := invertPoly(tr.Disp, d, traceSearchLo, traceSearchHi)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", tr.Order, err)
	}
	return []float64{t.XRef, t.YRef, polyval(tr.Wave, tp), order}, nil
}

func (t TSOForwardDispersion) Inverse() (Transform, error) {
	return TSOBackwardDispersion{Model: t.Model, XRef: t.XRef, YRef: t.YRef}, nil
}

// TSOBackwardDispersion maps (x0, y0, wavelength, order) to the grism
// pixel (x, y, order) for a fixed-source exposure. The x0/y0 inputs are
// accepted for chain compatibility; the trace is anchored at the
// reference pixel.
type TSOBackwardDispersion struct {
	Model *DispersionModel
	XRef  float64
	YRef  float64
}

func (t TSOBackwardDispersion) NIn() int  { return 4 }
func (t TSOBackwardDispersion) NOut() int { return 3 }

func (t TSOBackwardDispersion) Eval(in []float64) ([]float64, error) {
	if len(in) != 4 {
		return nil, fmt.Errorf("tso backward dispersion wants 4 inputs, got %d", len(in))
	}
	lam, order := in[2], in[3]
	tr, err := t.Model.order(order)
	if err != nil {
		return nil, err
	}
	tp, err := invertPoly(tr.Wave, lam, traceSearchLo, traceSearchHi)
	if err != nil {
		return nil, fmt.Errorf("order %d: %w", tr.Order, err)
	}
	dd := polyval(tr.Disp, tp)
	dc := polyval(tr.Cross, tp)
	xg, yg := t.XRef+dd, t.YRef+dc
	if t.Model.Orientation == ColumnDispersed {
		xg, yg = t.XRef+dc, t.YRef+dd
	}
	return []float64{xg, yg, order}, nil
}

func (t TSOBackwardDispersion) Inverse() (Transform, error) {
	return TSOForwardDispersion{Model: t.Model, XRef: t.XRef, YRef: t.YRef}, nil
}
