package sip

import (
	"fmt"

	"github.com/skycal-data/skycal/internal/exposure"
	"github.com/skycal-data/skycal/internal/wcs"
)

// staleKeys are the wcsinfo keywords replaced or obsoleted by a new SIP
// fit. All polynomial terms up to index 9 are stripped regardless of the
// previous fit's order.
func staleKeys() []string {
	keys := []string{
		"naxis",
		"cdelt1", "cdelt2",
		"pc1_1", "pc1_2", "pc2_1", "pc2_2",
		"a_order", "b_order", "ap_order", "bp_order",
	}
	for _, s := range []string{"a", "b", "ap", "bp"} {
		for i := 0; i < 10; i++ {
			for j := 0; j < 10; j++ {
				keys = append(keys, fmt.Sprintf("%s_%d_%d", s, i, j))
			}
		}
	}
	return keys
}

// UpdateFITSWCSInfo fits a FITS WCS + SIP approximation of an exposure's
// transform chain and rewrites the result into wcsinfo keywords, stripping
// stale polynomial terms first. For WFSS modes the imaging-frame chain is
// passed via imwcs; imaging modes pass nil to approximate the exposure's
// own chain. The reference pixel defaults to wcsinfo crpix when both
// components are set, else the bounding-box center. Returns the fitted
// keyword map.
func UpdateFITSWCSInfo(exp *exposure.Exposure, imwcs *wcs.WCS, opts FitOptions) (map[string]interface{}, error) {
	if opts.CRPix == nil {
		info := exp.Meta.WCSInfo
		if info.CRPix1 != 0 && info.CRPix2 != 0 {
			opts.CRPix = &[2]float64{info.CRPix1, info.CRPix2}
		}
	}
	if imwcs == nil {
		imwcs = exp.Meta.WCS
	}
	if imwcs == nil {
		return nil, fmt.Errorf("no WCS to approximate")
	}

	hdr, err := ToFITSSIP(imwcs, opts)
	if err != nil {
		return nil, err
	}

	for _, key := range staleKeys() {
		delete(exp.Meta.WCSInfo.Keywords, key)
	}
	for k, v := range hdr {
		exp.Meta.WCSInfo.SetKeyword(k, v)
	}
	return hdr, nil
}

// WFSSImagingWCS adds a FITS WCS approximation of the direct-imaging
// transform chain to a WFSS exposure's headers. imaging builds the
// imaging-mode chain for the same pointing; bbox selects the fit domain,
// defaulting to the subarray extent for subarray readouts and the data
// shape otherwise.
func WFSSImagingWCS(wfss *exposure.Exposure, imaging func(*exposure.Exposure) (*wcs.WCS, error), bbox *wcs.BoundingBox, opts FitOptions) error {
	imwcs, err := imaging(wfss)
	if err != nil {
		return fmt.Errorf("building imaging chain: %w", err)
	}

	sub := wfss.Meta.Subarray
	switch {
	case bbox != nil:
		imwcs.SetBoundingBox(*bbox)
	case sub.XStart > 1 || sub.YStart > 1:
		imwcs.SetBoundingBox(wcs.SubarrayBoundingBox(sub.XSize, sub.YSize))
	default:
		imwcs.SetBoundingBox(wcs.BBoxFromShape(wfss.ShapeY, wfss.ShapeX))
	}

	_, err = UpdateFITSWCSInfo(wfss, imwcs, opts)
	return err
}
