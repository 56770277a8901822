package footprint

import (
	"fmt"
	"math"
	"strings"

	"github.com/skycal-data/skycal/internal/exposure"
	"github.com/skycal-data/skycal/internal/monitoring"
	"github.com/skycal-data/skycal/internal/wcs"
)

// LRSSpecRef carries the V2/V3 slit corner vertices of the MIRI LRS fixed
// slit, read from the specwcs reference file. Missing vertices are NaN.
type LRSSpecRef struct {
	V2Vertices [4]float64
	V3Vertices [4]float64
}

// SRegion encodes a footprint polygon as a "POLYGON ICRS" region string
// with 9-decimal corners. A polygon containing NaN yields "" so callers
// skip the metadata update.
func SRegion(p Polygon) string {
	var b strings.Builder
	b.WriteString("POLYGON ICRS ")
	for _, c := range p {
		if math.IsNaN(c[0]) || math.IsNaN(c[1]) {
			monitoring.Logf("There are NaNs in s_region, S_REGION not updated.")
			return ""
		}
		fmt.Fprintf(&b, " %.9f %.9f", c[0], c[1])
	}
	s := b.String()
	monitoring.Logf("Update S_REGION to %s", s)
	return s
}

// updateSRegionKeyword writes the encoded polygon into wcsinfo, silently
// skipping degenerate footprints.
func updateSRegionKeyword(info *exposure.WCSInfo, p Polygon) {
	if s := SRegion(p); s != "" {
		info.SRegion = s
	}
}

// UpdateSRegionSpectral updates s_region and spectral_region from the
// exposure's sampled spectral footprint.
func UpdateSRegionSpectral(exp *exposure.Exposure) error {
	fp, lamRange, err := ComputeFootprintSpectral(exp)
	if err != nil {
		return err
	}
	updateSRegionKeyword(&exp.Meta.WCSInfo, fp)
	exp.Meta.WCSInfo.SpectralRegion = lamRange
	return nil
}

// UpdateSRegionMRS updates s_region for MIRI MRS exposures. The MRS chain
// is sampled the same way as any other spectral mode.
func UpdateSRegionMRS(exp *exposure.Exposure) error {
	return UpdateSRegionSpectral(exp)
}

// UpdateSRegionNRSSlit updates the slit's s_region and spectral_region
// from its virtual-corner footprint.
func UpdateSRegionNRSSlit(slit Slit) error {
	fp, lamRange, err := ComputeFootprintNRSSlit(slit)
	if err != nil {
		return err
	}
	updateSRegionKeyword(slit.Info, fp)
	slit.Info.SpectralRegion = lamRange
	return nil
}

// UpdateSRegionNRSIFU updates s_region and spectral_region from the
// combined footprint of all IFU slices.
func UpdateSRegionNRSIFU(exp *exposure.Exposure, slices []*wcs.WCS) error {
	fp, lamRange, err := ComputeFootprintNRSIFU(slices)
	if err != nil {
		return err
	}
	updateSRegionKeyword(&exp.Meta.WCSInfo, fp)
	exp.Meta.WCSInfo.SpectralRegion = lamRange
	return nil
}

// UpdateSRegionImaging updates s_region from the four bounding-box corners
// of an imaging exposure, falling back to a shape-derived box when none is
// attached. Negative RA corners are folded into [0, 360).
func UpdateSRegionImaging(exp *exposure.Exposure) error {
	w := exp.Meta.WCS
	if w == nil {
		return ErrNoWCS
	}
	bbox := w.BoundingBox()
	if bbox == nil {
		b := exp.BBoxFromShape()
		bbox = &b
	}

	corners := [4][2]float64{
		{bbox.X.Min, bbox.Y.Min},
		{bbox.X.Max, bbox.Y.Min},
		{bbox.X.Max, bbox.Y.Max},
		{bbox.X.Min, bbox.Y.Max},
	}
	fp := make(Polygon, 0, 4)
	for _, c := range corners {
		out, err := w.Forward([]float64{c[0], c[1]})
		if err != nil {
			return err
		}
		ra, dec := out[0], out[1]
		if ra < 0 {
			ra += 360.0
		}
		fp = append(fp, [2]float64{ra, dec})
	}
	updateSRegionKeyword(&exp.Meta.WCSInfo, fp)
	return nil
}

// UpdateSRegionLRS updates s_region for the MIRI LRS fixed slit from the
// reference file's V2/V3 slit vertices, mapped to world at a nominal
// 7 micron wavelength. Missing vertices log and leave s_region unchanged.
func UpdateSRegionLRS(exp *exposure.Exposure, ref LRSSpecRef) error {
	for i := range ref.V2Vertices {
		if math.IsNaN(ref.V2Vertices[i]) || math.IsNaN(ref.V3Vertices[i]) {
			monitoring.Logf("The V2,V3 coordinates of the LRS fixed slit contain NaN values.")
			monitoring.Logf("The s_region will not be updated")
			return nil
		}
	}
	w := exp.Meta.WCS
	if w == nil {
		return ErrNoWCS
	}
	v2v3ToWorld, err := w.GetTransform("v2v3", "world")
	if err != nil {
		return err
	}

	// Wavelength does not move the slit on the sky; any in-range value
	// works.
	const nominalLam = 7.0
	fp := make(Polygon, 0, 4)
	for i := range ref.V2Vertices {
		out, err := v2v3ToWorld.Eval([]float64{ref.V2Vertices[i], ref.V3Vertices[i], nominalLam})
		if err != nil {
			return err
		}
		fp = append(fp, [2]float64{out[0], out[1]})
	}
	updateSRegionKeyword(&exp.Meta.WCSInfo, fp)
	return nil
}
