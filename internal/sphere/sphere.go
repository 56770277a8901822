// Package sphere implements the small spherical-geometry kernels shared by
// the WCS and footprint code: right-ascension wrap normalisation,
// great-circle separation, detector rotation matrices and fiducial
// pixel-scale measurement.
package sphere

import (
	"fmt"
	"math"
	"sort"
)

// WrapRA forces all finite right-ascension values onto one contiguous side
// of the 0/360 boundary. Values more than 180 degrees away from the median
// of the finite inputs are shifted by -360 (median below 180) or +360
// (median above 180). NaN entries are preserved at their positions. The
// input slice is not modified.
func WrapRA(ra []float64) []float64 {
	out := make([]float64, len(ra))
	copy(out, ra)

	median, ok := finiteMedian(out)
	if !ok {
		return out
	}

	for i, v := range out {
		if math.IsNaN(v) {
			continue
		}
		if math.Abs(v-median) > 180.0 {
			if median < 180.0 {
				out[i] = v - 360.0
			} else if median > 180.0 {
				out[i] = v + 360.0
			}
		}
	}
	return out
}

// finiteMedian returns the median of the finite entries of xs.
// ok is false when xs has no finite entries.
func finiteMedian(xs []float64) (median float64, ok bool) {
	finite := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, false
	}
	sort.Float64s(finite)
	n := len(finite)
	if n%2 == 1 {
		return finite[n/2], true
	}
	return 0.5 * (finite[n/2-1] + finite[n/2]), true
}

// Separation returns the great-circle angular distance in degrees between
// two sky positions given in degrees. Uses the Vincenty formula, which is
// stable at all separations.
func Separation(ra1, dec1, ra2, dec2 float64) float64 {
	l1 := ra1 * math.Pi / 180.0
	b1 := dec1 * math.Pi / 180.0
	l2 := ra2 * math.Pi / 180.0
	b2 := dec2 * math.Pi / 180.0

	dl := l2 - l1
	sinB1, cosB1 := math.Sincos(b1)
	sinB2, cosB2 := math.Sincos(b2)
	sinDL, cosDL := math.Sincos(dl)

	num1 := cosB2 * sinDL
	num2 := cosB1*sinB2 - sinB1*cosB2*cosDL
	den := sinB1*sinB2 + cosB1*cosB2*cosDL

	return math.Atan2(math.Hypot(num1, num2), den) * 180.0 / math.Pi
}

// CalcRotationMatrix computes the four entries of the 2x2 detector-to-sky
// rotation from the telescope roll angle at the reference point, the angle
// between the ideal Y axis and V3, and the x-axis parity. Angles are in
// radians. The returned slice is [pc1_1, pc1_2, pc2_1, pc2_2] laid out as
//
//	| pc1_1  pc2_1 |
//	| pc1_2  pc2_2 |
//
// vparity must be 1 or -1.
func CalcRotationMatrix(rollRef, v3iYAng float64, vparity int) ([]float64, error) {
	if vparity != 1 && vparity != -1 {
		return nil, fmt.Errorf("%w: vparity should be 1 or -1, got %d", ErrInvalidArgument, vparity)
	}

	relAngle := rollRef - float64(vparity)*v3iYAng
	sinA, cosA := math.Sincos(relAngle)

	return []float64{
		float64(vparity) * cosA,
		sinA,
		float64(vparity) * -sinA,
		cosA,
	}, nil
}
