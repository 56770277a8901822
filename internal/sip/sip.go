package sip

import (
	"errors"
	"fmt"
	"math"

	"github.com/skycal-data/skycal/internal/wcs"
)

var (
	// ErrFitAccuracy reports that no allowed polynomial degree meets the
	// requested pixel-error tolerance.
	ErrFitAccuracy = errors.New("SIP fit accuracy exceeded")
	// ErrNoBoundingBox reports a chain with no pixel domain to sample.
	ErrNoBoundingBox = errors.New("SIP fit requires a bounding box")
)

// maxSIPDegree bounds the default degree search. Higher degrees are
// numerically unstable in the normal equations.
const maxSIPDegree = 6

// FitOptions tune ToFITSSIP. Zero values take the documented defaults.
type FitOptions struct {
	// MaxPixError is the largest allowed forward approximation error in
	// pixels. Defaults to 0.01. Ignored when Degree pins a single value.
	MaxPixError float64
	// Degree lists the candidate polynomial degrees, tried in order.
	// Nil means 1..6. A single entry pins the degree unconditionally.
	Degree []int
	// MaxInvPixError is the inverse-fit tolerance in pixels; nil disables
	// the inverse (AP/BP) fit.
	MaxInvPixError *float64
	// InvDegree lists candidate inverse degrees; nil means 1..6.
	InvDegree []int
	// NPoints is the per-axis sample count over the bounding box.
	// Defaults to 12; minimum 3.
	NPoints int
	// CRPix is the 1-based reference pixel; nil centers it in the
	// bounding box.
	CRPix *[2]float64
}

func (o *FitOptions) setDefaults() {
	if o.MaxPixError == 0 {
		o.MaxPixError = 0.01
	}
	if o.Degree == nil {
		o.Degree = degreeRange()
	}
	if o.InvDegree == nil {
		o.InvDegree = degreeRange()
	}
	if o.NPoints < 3 {
		o.NPoints = 12
	}
}

func degreeRange() []int {
	d := make([]int, 0, maxSIPDegree)
	for i := 1; i <= maxSIPDegree; i++ {
		d = append(d, i)
	}
	return d
}

// sipFit is one accepted polynomial fit of the pixel-to-intermediate
// mapping.
type sipFit struct {
	Degree  int
	PX, PY  poly2D
	CD      [4]float64 // row-major cd1_1 cd1_2 cd2_1 cd2_2
	CDInv   [4]float64
	MaxErr  float64
	ACoeffs map[term]float64 // SIP forward terms, i+j >= 2
	BCoeffs map[term]float64
}

// ToFITSSIP approximates an imaging chain (pixel -> RA/Dec) over its
// bounding box with a FITS TAN projection plus SIP distortion polynomials,
// searching degrees until the maximum sampled pixel error drops below the
// tolerance. The returned map holds lowercase FITS keywords.
func ToFITSSIP(w *wcs.WCS, opts FitOptions) (map[string]interface{}, error) {
	opts.setDefaults()

	bbox := w.BoundingBox()
	if bbox == nil {
		return nil, ErrNoBoundingBox
	}

	// Reference pixel, 0-based internally.
	var crpix0X, crpix0Y float64
	if opts.CRPix != nil {
		crpix0X = opts.CRPix[0] - 1
		crpix0Y = opts.CRPix[1] - 1
	} else {
		crpix0X = (bbox.X.Min + bbox.X.Max) / 2
		crpix0Y = (bbox.Y.Min + bbox.Y.Max) / 2
	}

	crval, err := w.Forward([]float64{crpix0X, crpix0Y})
	if err != nil {
		return nil, fmt.Errorf("evaluating chain at reference pixel: %w", err)
	}
	crval1, crval2 := crval[0], crval[1]
	proj := wcs.SkyTan{RARef: crval1, DecRef: crval2}

	us, vs, xis, etas, err := sampleIntermediate(w, proj, *bbox, crpix0X, crpix0Y, opts.NPoints)
	if err != nil {
		return nil, err
	}
	if len(us) < 6 {
		return nil, fmt.Errorf("only %d finite samples inside bounding box", len(us))
	}

	pinned := len(opts.Degree) == 1
	var fit *sipFit
	bestErr := math.Inf(1)
	for _, degree := range opts.Degree {
		f, err := fitForward(us, vs, xis, etas, degree)
		if err != nil {
			return nil, err
		}
		if f.MaxErr < bestErr {
			bestErr = f.MaxErr
		}
		if pinned || f.MaxErr < opts.MaxPixError {
			fit = f
			break
		}
	}
	if fit == nil {
		return nil, fmt.Errorf("%w: best error %.3g pix exceeds %.3g pix at all degrees %v",
			ErrFitAccuracy, bestErr, opts.MaxPixError, opts.Degree)
	}

	hdr := map[string]interface{}{
		"wcsaxes": 2,
		"crpix1":  crpix0X + 1,
		"crpix2":  crpix0Y + 1,
		"crval1":  crval1,
		"crval2":  crval2,
		"cunit1":  "deg",
		"cunit2":  "deg",
		"cd1_1":   fit.CD[0],
		"cd1_2":   fit.CD[1],
		"cd2_1":   fit.CD[2],
		"cd2_2":   fit.CD[3],
	}
	if fit.Degree > 1 {
		hdr["ctype1"] = "RA---TAN-SIP"
		hdr["ctype2"] = "DEC--TAN-SIP"
		hdr["a_order"] = fit.Degree
		hdr["b_order"] = fit.Degree
		for t, c := range fit.ACoeffs {
			hdr[fmt.Sprintf("a_%d_%d", t.I, t.J)] = c
		}
		for t, c := range fit.BCoeffs {
			hdr[fmt.Sprintf("b_%d_%d", t.I, t.J)] = c
		}
	} else {
		hdr["ctype1"] = "RA---TAN"
		hdr["ctype2"] = "DEC--TAN"
	}

	if opts.MaxInvPixError != nil {
		if err := fitInverse(fit, us, vs, opts, hdr); err != nil {
			return nil, err
		}
	}
	return hdr, nil
}

// sampleIntermediate evaluates the chain on an NPoints x NPoints grid and
// projects the sky positions into TAN intermediate coordinates relative to
// crval. NaN samples (outside the projection hemisphere) are dropped.
func sampleIntermediate(w *wcs.WCS, proj wcs.SkyTan, bbox wcs.BoundingBox, cx, cy float64, npoints int) (us, vs, xis, etas []float64, err error) {
	for iy := 0; iy < npoints; iy++ {
		y := bbox.Y.Min + float64(iy)*(bbox.Y.Max-bbox.Y.Min)/float64(npoints-1)
		for ix := 0; ix < npoints; ix++ {
			x := bbox.X.Min + float64(ix)*(bbox.X.Max-bbox.X.Min)/float64(npoints-1)
			world, err := w.Forward([]float64{x, y})
			if err != nil {
				return nil, nil, nil, nil, err
			}
			tan, err := proj.Eval([]float64{world[0], world[1]})
			if err != nil {
				return nil, nil, nil, nil, err
			}
			if math.IsNaN(tan[0]) || math.IsNaN(tan[1]) {
				continue
			}
			us = append(us, x-cx)
			vs = append(vs, y-cy)
			xis = append(xis, tan[0])
			etas = append(etas, tan[1])
		}
	}
	return us, vs, xis, etas, nil
}

// fitForward fits one degree and derives the CD matrix from the linear
// terms and the SIP A/B corrections from the rest. The reported error is
// the largest sampled residual converted back to pixels through CD.
func fitForward(us, vs, xis, etas []float64, degree int) (*sipFit, error) {
	px, py, err := fitPoly2D(us, vs, xis, etas, degree)
	if err != nil {
		return nil, err
	}

	var cd [4]float64
	for k, t := range px.Terms {
		switch {
		case t.I == 1 && t.J == 0:
			cd[0] = px.Coeffs[k]
			cd[2] = py.Coeffs[k]
		case t.I == 0 && t.J == 1:
			cd[1] = px.Coeffs[k]
			cd[3] = py.Coeffs[k]
		}
	}
	det := cd[0]*cd[3] - cd[1]*cd[2]
	if det == 0 {
		return nil, fmt.Errorf("degenerate CD matrix at degree %d", degree)
	}
	cdInv := [4]float64{cd[3] / det, -cd[1] / det, -cd[2] / det, cd[0] / det}

	maxErr := 0.0
	for i := range us {
		dxi := xis[i] - px.Eval(us[i], vs[i])
		deta := etas[i] - py.Eval(us[i], vs[i])
		du := cdInv[0]*dxi + cdInv[1]*deta
		dv := cdInv[2]*dxi + cdInv[3]*deta
		if e := math.Hypot(du, dv); e > maxErr {
			maxErr = e
		}
	}

	// SIP corrections: (A, B) = CD^-1 (PX, PY) - (u, v), leaving only the
	// nonlinear terms once the linear part moves into CD.
	aCoeffs := make(map[term]float64)
	bCoeffs := make(map[term]float64)
	for k, t := range px.Terms {
		if t.I+t.J < 2 {
			continue
		}
		aCoeffs[t] = cdInv[0]*px.Coeffs[k] + cdInv[1]*py.Coeffs[k]
		bCoeffs[t] = cdInv[2]*px.Coeffs[k] + cdInv[3]*py.Coeffs[k]
	}

	return &sipFit{
		Degree:  degree,
		PX:      px,
		PY:      py,
		CD:      cd,
		CDInv:   cdInv,
		MaxErr:  maxErr,
		ACoeffs: aCoeffs,
		BCoeffs: bCoeffs,
	}, nil
}

// fitInverse fits the AP/BP polynomials mapping SIP-corrected intermediate
// pixel coordinates back to raw offsets and writes them into hdr.
func fitInverse(fit *sipFit, us, vs []float64, opts FitOptions, hdr map[string]interface{}) error {
	n := len(us)
	bigU := make([]float64, n)
	bigV := make([]float64, n)
	du := make([]float64, n)
	dv := make([]float64, n)
	for i := 0; i < n; i++ {
		cu, cv := us[i], vs[i]
		for t, c := range fit.ACoeffs {
			cu += c * intPow(us[i], t.I) * intPow(vs[i], t.J)
		}
		for t, c := range fit.BCoeffs {
			cv += c * intPow(us[i], t.I) * intPow(vs[i], t.J)
		}
		bigU[i] = cu
		bigV[i] = cv
		du[i] = us[i] - cu
		dv[i] = vs[i] - cv
	}

	pinned := len(opts.InvDegree) == 1
	bestErr := math.Inf(1)
	for _, degree := range opts.InvDegree {
		ap, bp, err := fitPoly2D(bigU, bigV, du, dv, degree)
		if err != nil {
			return err
		}
		maxErr := 0.0
		for i := 0; i < n; i++ {
			eu := bigU[i] + ap.Eval(bigU[i], bigV[i]) - us[i]
			ev := bigV[i] + bp.Eval(bigU[i], bigV[i]) - vs[i]
			if e := math.Hypot(eu, ev); e > maxErr {
				maxErr = e
			}
		}
		if maxErr < bestErr {
			bestErr = maxErr
		}
		if pinned || maxErr < *opts.MaxInvPixError {
			hdr["ap_order"] = degree
			hdr["bp_order"] = degree
			for k, t := range ap.Terms {
				hdr[fmt.Sprintf("ap_%d_%d", t.I, t.J)] = ap.Coeffs[k]
				hdr[fmt.Sprintf("bp_%d_%d", t.I, t.J)] = bp.Coeffs[k]
			}
			return nil
		}
	}
	return fmt.Errorf("%w: inverse best error %.3g pix exceeds %.3g pix at all degrees %v",
		ErrFitAccuracy, bestErr, *opts.MaxInvPixError, opts.InvDegree)
}
