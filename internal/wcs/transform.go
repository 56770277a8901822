// Package wcs implements the composable coordinate-transform chain used by
// the calibration pipeline: elementary invertible models, sequential and
// parallel combinators, and a named-frame chain with bounding-box
// attachment. Instrument builders assemble chains from these pieces; the
// footprint, grism and SIP code consume them.
package wcs

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrNoInverse reports that a transform has no analytic inverse.
	ErrNoInverse = errors.New("transform has no inverse")
	// ErrUnknownFrame reports a frame name absent from a chain.
	ErrUnknownFrame = errors.New("unknown frame")
	// ErrArity reports an input slice whose length does not match NIn.
	ErrArity = errors.New("wrong number of inputs")
)

// Transform is a fixed-arity coordinate mapping. Implementations are pure:
// Eval never retains or mutates its input slice.
type Transform interface {
	NIn() int
	NOut() int
	Eval(in []float64) ([]float64, error)
	Inverse() (Transform, error)
}

func checkArity(t Transform, in []float64) error {
	if len(in) != t.NIn() {
		return fmt.Errorf("%w: got %d, want %d", ErrArity, len(in), t.NIn())
	}
	return nil
}

// Identity passes n coordinates through unchanged.
type Identity struct{ N int }

func (t Identity) NIn() int  { return t.N }
func (t Identity) NOut() int { return t.N }

func (t Identity) Eval(in []float64) ([]float64, error) {
	if err := checkArity(t, in); err != nil {
		return nil, err
	}
	out := make([]float64, len(in))
	copy(out, in)
	return out, nil
}

func (t Identity) Inverse() (Transform, error) { return t, nil }

// Shift adds a constant offset to a single coordinate.
type Shift struct{ Offset float64 }

func (t Shift) NIn() int  { return 1 }
func (t Shift) NOut() int { return 1 }

func (t Shift) Eval(in []float64) ([]float64, error) {
	if err := checkArity(t, in); err != nil {
		return nil, err
	}
	return []float64{in[0] + t.Offset}, nil
}

func (t Shift) Inverse() (Transform, error) { return Shift{Offset: -t.Offset}, nil }

// Scale multiplies a single coordinate by a constant factor.
type Scale struct{ Factor float64 }

func (t Scale) NIn() int  { return 1 }
func (t Scale) NOut() int { return 1 }

func (t Scale) Eval(in []float64) ([]float64, error) {
	if err := checkArity(t, in); err != nil {
		return nil, err
	}
	return []float64{in[0] * t.Factor}, nil
}

func (t Scale) Inverse() (Transform, error) {
	if t.Factor == 0 {
		return nil, fmt.Errorf("%w: zero scale", ErrNoInverse)
	}
	return Scale{Factor: 1 / t.Factor}, nil
}

// Affine2D maps (x, y) through a 2x2 matrix plus a translation:
//
//	x' = M[0]*x + M[1]*y + T[0]
//	y' = M[2]*x + M[3]*y + T[1]
type Affine2D struct {
	M [4]float64
	T [2]float64
}

func (t Affine2D) NIn() int  { return 2 }
func (t Affine2D) NOut() int { return 2 }

func (t Affine2D) Eval(in []float64) ([]float64, error) {
	if err := checkArity(t, in); err != nil {
		return nil, err
	}
	x, y := in[0], in[1]
	return []float64{
		t.M[0]*x + t.M[1]*y + t.T[0],
		t.M[2]*x + t.M[3]*y + t.T[1],
	}, nil
}

func (t Affine2D) Inverse() (Transform, error) {
	det := t.M[0]*t.M[3] - t.M[1]*t.M[2]
	if det == 0 || math.IsNaN(det) {
		return nil, fmt.Errorf("%w: singular affine matrix", ErrNoInverse)
	}
	inv := Affine2D{
		M: [4]float64{t.M[3] / det, -t.M[1] / det, -t.M[2] / det, t.M[0] / det},
	}
	// Solve M_inv * (-T).
	inv.T[0] = -(inv.M[0]*t.T[0] + inv.M[1]*t.T[1])
	inv.T[1] = -(inv.M[2]*t.T[0] + inv.M[3]*t.T[1])
	return inv, nil
}

// Mapping reorders, duplicates or drops coordinates: output i is input
// Indices[i]. It has no inverse.
type Mapping struct {
	Indices []int
	In      int
}

func (t Mapping) NIn() int  { return t.In }
func (t Mapping) NOut() int { return len(t.Indices) }

func (t Mapping) Eval(in []float64) ([]float64, error) {
	if err := checkArity(t, in); err != nil {
		return nil, err
	}
	out := make([]float64, len(t.Indices))
	for i, idx := range t.Indices {
		if idx < 0 || idx >= len(in) {
			return nil, fmt.Errorf("mapping index %d out of range for %d inputs", idx, len(in))
		}
		out[i] = in[idx]
	}
	return out, nil
}

func (t Mapping) Inverse() (Transform, error) {
	return nil, fmt.Errorf("%w: mapping", ErrNoInverse)
}

// Parallel applies each part to its own consecutive span of the inputs
// and concatenates the outputs (the "&" combinator).
type Parallel struct{ Parts []Transform }

func (t Parallel) NIn() (n int) {
	for _, p := range t.Parts {
		n += p.NIn()
	}
	return n
}

func (t Parallel) NOut() (n int) {
	for _, p := range t.Parts {
		n += p.NOut()
	}
	return n
}

func (t Parallel) Eval(in []float64) ([]float64, error) {
	if err := checkArity(t, in); err != nil {
		return nil, err
	}
	out := make([]float64, 0, t.NOut())
	pos := 0
	for _, p := range t.Parts {
		part, err := p.Eval(in[pos : pos+p.NIn()])
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
		pos += p.NIn()
	}
	return out, nil
}

func (t Parallel) Inverse() (Transform, error) {
	parts := make([]Transform, len(t.Parts))
	for i, p := range t.Parts {
		inv, err := p.Inverse()
		if err != nil {
			return nil, err
		}
		parts[i] = inv
	}
	return Parallel{Parts: parts}, nil
}

// Compose chains transforms left to right (the "|" combinator).
type Compose struct{ Steps []Transform }

func (t Compose) NIn() int {
	if len(t.Steps) == 0 {
		return 0
	}
	return t.Steps[0].NIn()
}

func (t Compose) NOut() int {
	if len(t.Steps) == 0 {
		return 0
	}
	return t.Steps[len(t.Steps)-1].NOut()
}

func (t Compose) Eval(in []float64) ([]float64, error) {
	cur := in
	for _, s := range t.Steps {
		out, err := s.Eval(cur)
		if err != nil {
			return nil, err
		}
		cur = out
	}
	// Composition over zero steps still must not alias the input.
	if len(t.Steps) == 0 {
		cur = append([]float64(nil), in...)
	}
	return cur, nil
}

func (t Compose) Inverse() (Transform, error) {
	steps := make([]Transform, len(t.Steps))
	for i, s := range t.Steps {
		inv, err := s.Inverse()
		if err != nil {
			return nil, err
		}
		steps[len(t.Steps)-1-i] = inv
	}
	return Compose{Steps: steps}, nil
}
