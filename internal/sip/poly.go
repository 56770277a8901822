// Package sip fits FITS SIP (Simple Imaging Polynomial) approximations
// to imaging transform chains and rewrites the resulting keywords into
// exposure metadata.
package sip

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// term is one monomial u^I * v^J of a 2D polynomial.
type term struct {
	I int
	J int
}

// polyTerms enumerates all monomials with I+J <= degree, constant first.
func polyTerms(degree int) []term {
	var terms []term
	for total := 0; total <= degree; total++ {
		for i := total; i >= 0; i-- {
			terms = append(terms, term{I: i, J: total - i})
		}
	}
	return terms
}

// poly2D is a fitted 2D polynomial: coefficient k multiplies
// u^Terms[k].I * v^Terms[k].J.
type poly2D struct {
	Terms  []term
	Coeffs []float64
}

func (p poly2D) Eval(u, v float64) float64 {
	var sum float64
	for k, t := range p.Terms {
		sum += p.Coeffs[k] * intPow(u, t.I) * intPow(v, t.J)
	}
	return sum
}

func intPow(x float64, n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= x
	}
	return r
}

// fitPoly2D least-squares fits two polynomials of the given degree mapping
// (u, v) samples onto the fx and fy targets, sharing one design matrix.
func fitPoly2D(us, vs, fx, fy []float64, degree int) (px, py poly2D, err error) {
	terms := polyTerms(degree)
	n, m := len(us), len(terms)
	if n < m {
		return poly2D{}, poly2D{}, fmt.Errorf("polynomial degree %d needs at least %d samples, got %d", degree, m, n)
	}

	a := mat.NewDense(n, m, nil)
	for r := 0; r < n; r++ {
		for k, t := range terms {
			a.Set(r, k, intPow(us[r], t.I)*intPow(vs[r], t.J))
		}
	}
	b := mat.NewDense(n, 2, nil)
	for r := 0; r < n; r++ {
		b.Set(r, 0, fx[r])
		b.Set(r, 1, fy[r])
	}

	var sol mat.Dense
	if err := sol.Solve(a, b); err != nil {
		return poly2D{}, poly2D{}, fmt.Errorf("least-squares fit at degree %d: %w", degree, err)
	}

	px = poly2D{Terms: terms, Coeffs: make([]float64, m)}
	py = poly2D{Terms: terms, Coeffs: make([]float64, m)}
	for k := 0; k < m; k++ {
		px.Coeffs[k] = sol.At(k, 0)
		py.Coeffs[k] = sol.At(k, 1)
	}
	return px, py, nil
}
