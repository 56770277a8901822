package wcs

import (
	"fmt"

	"github.com/skycal-data/skycal/internal/sphere"
)

// ImagingParams carries the pointing metadata an imaging chain is built
// from. RollRef and V3IYAngle are in radians; CDelt values are the plate
// scale in degrees per v2v3 unit along each axis.
type ImagingParams struct {
	RARef     float64
	DecRef    float64
	RollRef   float64
	V3IYAngle float64
	VParity   int
	CDelt1    float64
	CDelt2    float64
}

// NewImagingChain assembles the detector -> v2v3 -> world chain for an
// imaging exposure. distortion maps detector pixels to v2v3; the sky side
// is the roll/parity rotation scaled to degrees followed by a TAN
// deprojection at the reference point.
func NewImagingChain(distortion Transform, p ImagingParams) (*WCS, error) {
	if distortion == nil {
		return nil, fmt.Errorf("imaging chain requires a distortion transform")
	}
	pc, err := sphere.CalcRotationMatrix(p.RollRef, p.V3IYAngle, p.VParity)
	if err != nil {
		return nil, err
	}
	// xi  = cdelt1 * (pc1_1*u + pc1_2*v)
	// eta = cdelt2 * (pc2_1*u + pc2_2*v)
	v2v3ToSky := Compose{Steps: []Transform{
		Affine2D{M: [4]float64{
			p.CDelt1 * pc[0], p.CDelt1 * pc[1],
			p.CDelt2 * pc[2], p.CDelt2 * pc[3],
		}},
		TanSky{RARef: p.RARef, DecRef: p.DecRef},
	}}

	return New([]Step{
		{Frame: Frame{Name: "detector", AxesType: []string{sphere.AxisSpatial, sphere.AxisSpatial}}, Transform: distortion},
		{Frame: Frame{Name: "v2v3", AxesType: []string{sphere.AxisSpatial, sphere.AxisSpatial}}, Transform: v2v3ToSky},
		{Frame: Frame{Name: "world", AxesType: []string{sphere.AxisSpatial, sphere.AxisSpatial}}},
	})
}
