package sip

import (
	"math"
	"testing"
)

func TestPolyTerms(t *testing.T) {
	terms := polyTerms(2)
	want := []term{{0, 0}, {1, 0}, {0, 1}, {2, 0}, {1, 1}, {0, 2}}
	if len(terms) != len(want) {
		t.Fatalf("got %d terms, want %d", len(terms), len(want))
	}
	for i := range want {
		if terms[i] != want[i] {
			t.Errorf("term %d = %v, want %v", i, terms[i], want[i])
		}
	}
}

func TestFitPoly2DExact(t *testing.T) {
	// fx = 1 + 2u - v + 0.5 u^2, fy = 3v + uv.
	fx := func(u, v float64) float64 { return 1 + 2*u - v + 0.5*u*u }
	fy := func(u, v float64) float64 { return 3*v + u*v }

	var us, vs, xs, ys []float64
	for i := -3; i <= 3; i++ {
		for j := -3; j <= 3; j++ {
			u, v := float64(i), float64(j)
			us = append(us, u)
			vs = append(vs, v)
			xs = append(xs, fx(u, v))
			ys = append(ys, fy(u, v))
		}
	}

	px, py, err := fitPoly2D(us, vs, xs, ys, 2)
	if err != nil {
		t.Fatalf("fitPoly2D: %v", err)
	}
	for i := range us {
		if got := px.Eval(us[i], vs[i]); math.Abs(got-xs[i]) > 1e-10 {
			t.Errorf("px(%v, %v) = %v, want %v", us[i], vs[i], got, xs[i])
		}
		if got := py.Eval(us[i], vs[i]); math.Abs(got-ys[i]) > 1e-10 {
			t.Errorf("py(%v, %v) = %v, want %v", us[i], vs[i], got, ys[i])
		}
	}
}

func TestFitPoly2DUnderdetermined(t *testing.T) {
	us := []float64{0, 1}
	if _, _, err := fitPoly2D(us, us, us, us, 2); err == nil {
		t.Error("underdetermined fit accepted")
	}
}

func TestIntPow(t *testing.T) {
	if got := intPow(2, 0); got != 1 {
		t.Errorf("2^0 = %v", got)
	}
	if got := intPow(3, 4); got != 81 {
		t.Errorf("3^4 = %v", got)
	}
	if got := intPow(-2, 3); got != -8 {
		t.Errorf("(-2)^3 = %v", got)
	}
}
