package grism

import (
	"fmt"

	"github.com/skycal-data/skycal/internal/monitoring"
	"github.com/skycal-data/skycal/internal/sphere"
	"github.com/skycal-data/skycal/internal/wcs"
)

// orderAxis is the axis type carried by the spectral-order coordinate.
const orderAxis = "ORDER"

// skySide builds the v2v3 -> world transform for the spatial pair while
// passing wavelength and order through.
func skySide(p wcs.ImagingParams) (wcs.Transform, error) {
	pc, err := sphere.CalcRotationMatrix(p.RollRef, p.V3IYAngle, p.VParity)
	if err != nil {
		return nil, err
	}
	spatial := wcs.Compose{Steps: []wcs.Transform{
		wcs.Affine2D{M: [4]float64{
			p.CDelt1 * pc[0], p.CDelt1 * pc[1],
			p.CDelt2 * pc[2], p.CDelt2 * pc[3],
		}},
		wcs.TanSky{RARef: p.RARef, DecRef: p.DecRef},
	}}
	return wcs.Parallel{Parts: []wcs.Transform{spatial, wcs.Identity{N: 2}}}, nil
}

// NewWFSSChain assembles the wide-field slitless chain
// [grism_detector, detector, v2v3, world]. distortion maps direct-image
// detector pixels to v2v3; wavelength and order ride along unchanged
// until the dispersion step.
func NewWFSSChain(disp *DispersionModel, distortion wcs.Transform, p wcs.ImagingParams) (*wcs.WCS, error) {
	if disp == nil || len(disp.Orders) == 0 {
		return nil, fmt.Errorf("WFSS chain requires a dispersion model with at least one order")
	}
	if distortion == nil {
		return nil, fmt.Errorf("WFSS chain requires a distortion transform")
	}
	sky, err := skySide(p)
	if err != nil {
		return nil, err
	}
	detToV2V3 := wcs.Parallel{Parts: []wcs.Transform{distortion, wcs.Identity{N: 2}}}

	return wcs.New([]wcs.Step{
		{
			Frame: wcs.Frame{
				Name:     "grism_detector",
				AxesType: []string{sphere.AxisSpatial, sphere.AxisSpatial, sphere.AxisSpatial, sphere.AxisSpatial, orderAxis},
			},
			Transform: ForwardDispersion{Model: disp},
		},
		{
			Frame: wcs.Frame{
				Name:     "detector",
				AxesType: []string{sphere.AxisSpatial, sphere.AxisSpatial, sphere.AxisSpectral, orderAxis},
			},
			Transform: detToV2V3,
		},
		{
			Frame: wcs.Frame{
				Name:     "v2v3",
				AxesType: []string{sphere.AxisSpatial, sphere.AxisSpatial, sphere.AxisSpectral, orderAxis},
			},
			Transform: sky,
		},
		{
			Frame: wcs.Frame{
				Name:     "world",
				AxesType: []string{sphere.AxisSpatial, sphere.AxisSpatial, sphere.AxisSpectral, orderAxis},
			},
		},
	})
}

// NewTSOChain assembles the time-series grism chain
// [grism_detector, full_detector, v2v3, world] with the source anchored
// at the (1-based) reference pixel.
func NewTSOChain(disp *DispersionModel, distortion wcs.Transform, p wcs.ImagingParams, crpix1, crpix2 float64) (*wcs.WCS, error) {
	if disp == nil || len(disp.Orders) == 0 {
		return nil, fmt.Errorf("TSO chain requires a dispersion model with at least one order")
	}
	if distortion == nil {
		return nil, fmt.Errorf("TSO chain requires a distortion transform")
	}
	sky, err := skySide(p)
	if err != nil {
		return nil, err
	}
	detToV2V3 := wcs.Parallel{Parts: []wcs.Transform{distortion, wcs.Identity{N: 2}}}

	return wcs.New([]wcs.Step{
		{
			Frame: wcs.Frame{
				Name:     "grism_detector",
				AxesType: []string{sphere.AxisSpatial, sphere.AxisSpatial, orderAxis},
			},
			Transform: TSOForwardDispersion{Model: disp, XRef: crpix1, YRef: crpix2},
		},
		{
			Frame: wcs.Frame{
				Name:     "full_detector",
				AxesType: []string{sphere.AxisSpatial, sphere.AxisSpatial, sphere.AxisSpectral, orderAxis},
			},
			Transform: detToV2V3,
		},
		{
			Frame: wcs.Frame{
				Name:     "v2v3",
				AxesType: []string{sphere.AxisSpatial, sphere.AxisSpatial, sphere.AxisSpectral, orderAxis},
			},
			Transform: sky,
		},
		{
			Frame: wcs.Frame{
				Name:     "world",
				AxesType: []string{sphere.AxisSpatial, sphere.AxisSpatial, sphere.AxisSpectral, orderAxis},
			},
		},
	})
}

// NotImplementedMode logs and returns a nil chain for exposure types this
// subsystem does not build pipelines for.
func NotImplementedMode(expType string) *wcs.WCS {
	monitoring.Warnf("WCS for EXP_TYPE of %s is not implemented.", expType)
	return nil
}
