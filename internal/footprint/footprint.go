// Package footprint derives on-sky coverage polygons and wavelength
// ranges from an exposure's transform chain and writes them back into
// wcsinfo metadata.
package footprint

import (
	"errors"
	"fmt"
	"math"

	"github.com/skycal-data/skycal/internal/exposure"
	"github.com/skycal-data/skycal/internal/sphere"
	"github.com/skycal-data/skycal/internal/units"
	"github.com/skycal-data/skycal/internal/wcs"
)

// NRSIFUSlices is the fixed slice count of the NIRSpec IFU slicer.
const NRSIFUSlices = 30

// ErrNoWCS reports an exposure with no transform chain attached.
var ErrNoWCS = errors.New("exposure has no WCS attached")

// Polygon is an ordered list of (RA, Dec) sky corners in degrees.
type Polygon [][2]float64

// Slit is a single NIRSpec fixed-slit or MOS cutout: its transform chain,
// its slit-frame Y extent, and the wcsinfo block its footprint is written
// to.
type Slit struct {
	WCS  *wcs.WCS
	YMin float64
	YMax float64
	Info *exposure.WCSInfo
}

// ComputeFootprintSpectral samples a spectral exposure's full bounding box
// through the forward transform and returns the rectangular sky footprint
// plus the (min, max) wavelength range. RA corners are wrapped onto one
// side of the 0/360 border before taking extrema, then folded back into
// [0, 360).
func ComputeFootprintSpectral(exp *exposure.Exposure) (Polygon, [2]float64, error) {
	w := exp.Meta.WCS
	if w == nil {
		return nil, [2]float64{}, ErrNoWCS
	}
	bbox := w.BoundingBox()
	if bbox == nil {
		b := exp.BBoxFromShape()
		bbox = &b
	}

	xs, ys := wcs.GridFromBoundingBox(*bbox)
	ras := make([]float64, 0, len(xs))
	decs := make([]float64, 0, len(xs))
	lams := make([]float64, 0, len(xs))
	for i := range xs {
		out, err := w.Call([]float64{xs[i], ys[i]})
		if err != nil {
			return nil, [2]float64{}, err
		}
		if len(out) < 3 {
			return nil, [2]float64{}, fmt.Errorf("spectral chain returned %d outputs, want at least 3", len(out))
		}
		ras = append(ras, out[0])
		decs = append(decs, out[1])
		lams = append(lams, out[2])
	}

	fp, err := rectFootprint(ras, decs)
	if err != nil {
		return nil, [2]float64{}, err
	}
	lamMin, lamMax := nanMinMax(lams)
	return fp, [2]float64{lamMin, lamMax}, nil
}

// ComputeFootprintNRSSlit evaluates the slit-frame to world transform at
// four virtual slit corners (x = +/-0.5, y = slit ymin/ymax) using a
// nominal 2 micron wavelength, returning the corner polygon plus the
// wavelength extrema.
func ComputeFootprintNRSSlit(slit Slit) (Polygon, [2]float64, error) {
	if slit.WCS == nil {
		return nil, [2]float64{}, ErrNoWCS
	}
	slit2world, err := slit.WCS.GetTransform("slit_frame", "world")
	if err != nil {
		return nil, [2]float64{}, err
	}

	cornersX := []float64{-0.5, -0.5, 0.5, 0.5}
	cornersY := []float64{slit.YMin, slit.YMax, slit.YMax, slit.YMin}
	const nominalLam = 2 * units.Micron

	fp := make(Polygon, 0, 4)
	lams := make([]float64, 0, 4)
	for i := range cornersX {
		out, err := slit2world.Eval([]float64{cornersX[i], cornersY[i], nominalLam})
		if err != nil {
			return nil, [2]float64{}, err
		}
		fp = append(fp, [2]float64{out[0], out[1]})
		lams = append(lams, out[2])
	}
	lamMin, lamMax := nanMinMax(lams)
	return fp, [2]float64{lamMin, lamMax}, nil
}

// ComputeFootprintNRSIFU accumulates RA/Dec/wavelength samples over all 30
// IFU slice chains and returns the global rectangular footprint plus the
// wavelength extrema. RA wrapping is applied once across the combined
// samples so slices straddling the 0/360 border stay contiguous.
func ComputeFootprintNRSIFU(slices []*wcs.WCS) (Polygon, [2]float64, error) {
	if len(slices) != NRSIFUSlices {
		return nil, [2]float64{}, fmt.Errorf("IFU footprint needs %d slice chains, got %d", NRSIFUSlices, len(slices))
	}

	var ras, decs, lams []float64
	for i, sw := range slices {
		bbox := sw.BoundingBox()
		if bbox == nil {
			return nil, [2]float64{}, fmt.Errorf("slice %d has no bounding box", i)
		}
		xs, ys := wcs.GridFromBoundingBox(*bbox)
		for k := range xs {
			out, err := sw.Call([]float64{xs[k], ys[k]})
			if err != nil {
				return nil, [2]float64{}, fmt.Errorf("slice %d: %w", i, err)
			}
			ras = append(ras, out[0])
			decs = append(decs, out[1])
			lams = append(lams, out[2])
		}
	}

	fp, err := rectFootprint(ras, decs)
	if err != nil {
		return nil, [2]float64{}, err
	}
	lamMin, lamMax := nanMinMax(lams)
	return fp, [2]float64{lamMin, lamMax}, nil
}

// InIFUSlice reports whether a world position maps into a slice: the
// position is pulled back to the slicer frame and its X coordinate
// compared against the slice center, within a 5e-4 absolute tolerance.
func InIFUSlice(sliceWCS *wcs.WCS, ra, dec, lam float64) (bool, error) {
	slicer2world, err := sliceWCS.GetTransform("slicer", "world")
	if err != nil {
		return false, err
	}
	world2slicer, err := slicer2world.Inverse()
	if err != nil {
		return false, err
	}
	pos, err := world2slicer.Eval([]float64{ra, dec, lam})
	if err != nil {
		return false, err
	}

	// Slice X center from the middle of the slit.
	slit2slicer, err := sliceWCS.GetTransform("slit_frame", "slicer")
	if err != nil {
		return false, err
	}
	center, err := slit2slicer.Eval([]float64{0, 0, 2 * units.Micron})
	if err != nil {
		return false, err
	}

	const (
		atol = 5e-4
		rtol = 1e-5
	)
	return math.Abs(pos[0]-center[0]) <= atol+rtol*math.Abs(center[0]), nil
}

// rectFootprint wraps the RA samples, takes NaN-aware extrema, folds the
// RA bounds into [0, 360) and returns the 4-corner rectangle
// (ll, lr, ur, ul).
func rectFootprint(ras, decs []float64) (Polygon, error) {
	wrapped := sphere.WrapRA(ras)
	raMin, raMax := nanMinMax(wrapped)
	decMin, decMax := nanMinMax(decs)
	if math.IsNaN(raMin) || math.IsNaN(decMin) {
		return nil, errors.New("no finite sky samples inside bounding box")
	}
	if raMin < 0 {
		raMin += 360.0
	}
	if raMax >= 360.0 {
		raMax -= 360.0
	}
	return Polygon{
		{raMin, decMin},
		{raMax, decMin},
		{raMax, decMax},
		{raMin, decMax},
	}, nil
}

func nanMinMax(vals []float64) (lo, hi float64) {
	lo, hi = math.NaN(), math.NaN()
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(lo) || v < lo {
			lo = v
		}
		if math.IsNaN(hi) || v > hi {
			hi = v
		}
	}
	return lo, hi
}
