package sphere

import (
	"fmt"
	"math"
)

// Axis type names used by WCS output frames.
const (
	AxisSpatial  = "SPATIAL"
	AxisSpectral = "SPECTRAL"
)

// ScaleWCS is the slice of the transform-chain capability needed to measure
// a pixel scale: world->pixel inversion without bounding-box clipping and
// plain forward evaluation, plus the output-frame axis types.
type ScaleWCS interface {
	OutputAxesTypes() []string
	Invert(world []float64, withBoundingBox bool) ([]float64, error)
	Forward(pixel []float64) ([]float64, error)
}

// ComputeScale measures the pixel scale of w in degrees per pixel at the
// given fiducial sky (or sky+wavelength) point. The fiducial is inverted
// to pixels ignoring the bounding box so edge fiducials do not clip, the
// pixel position is perturbed by one pixel along each spatial axis, and
// the angular separations of the re-evaluated world coordinates give the
// per-axis scales.
//
// For a spectral WCS dispAxis selects the cross-dispersion component
// (dispAxis 1 returns the Y scale, otherwise the X scale) and is
// mandatory; pass dispAxis <= 0 for imaging. The imaging scale is the
// geometric mean of the two axis scales. A non-nil pscaleRatio multiplies
// the result.
func ComputeScale(w ScaleWCS, fiducial []float64, dispAxis int, pscaleRatio *float64) (float64, error) {
	axes := w.OutputAxesTypes()
	spectral := false
	spatialIdx := make([]int, 0, 2)
	for i, a := range axes {
		switch a {
		case AxisSpectral:
			spectral = true
		case AxisSpatial:
			spatialIdx = append(spatialIdx, i)
		}
	}
	if spectral && dispAxis <= 0 {
		return 0, fmt.Errorf("%w: spectral WCS requires a dispersion axis", ErrInvalidArgument)
	}
	if len(spatialIdx) < 2 {
		return 0, fmt.Errorf("%w: WCS has fewer than two spatial axes", ErrInvalidArgument)
	}

	crpix, err := w.Invert(fiducial, false)
	if err != nil {
		return 0, fmt.Errorf("inverting fiducial: %w", err)
	}

	// Perturb one pixel along each of the two pixel axes that feed the
	// spatial outputs.
	p0 := crpix
	p1 := perturb(crpix, spatialIdx[0])
	p2 := perturb(crpix, (spatialIdx[0]+1)%len(crpix))

	w0, err := w.Forward(p0)
	if err != nil {
		return 0, err
	}
	w1, err := w.Forward(p1)
	if err != nil {
		return 0, err
	}
	w2, err := w.Forward(p2)
	if err != nil {
		return 0, err
	}

	ia, id := spatialIdx[0], spatialIdx[1]
	xscale := math.Abs(Separation(w0[ia], w0[id], w1[ia], w1[id]))
	yscale := math.Abs(Separation(w0[ia], w0[id], w2[ia], w2[id]))

	if pscaleRatio != nil {
		xscale *= *pscaleRatio
		yscale *= *pscaleRatio
	}

	if spectral {
		// Scale is assumed constant with wavelength; dispAxis follows the
		// exposure dispersion-direction convention (1 = X disperses).
		if dispAxis == 1 {
			return yscale, nil
		}
		return xscale, nil
	}
	return math.Sqrt(xscale * yscale), nil
}

func perturb(p []float64, axis int) []float64 {
	out := make([]float64, len(p))
	copy(out, p)
	out[axis]++
	return out
}
