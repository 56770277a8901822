// Package exposure defines the in-memory exposure data model: instrument
// and subarray metadata, WCS bookkeeping keywords, and the attached
// transform chain. It is the unit every calibration component reads from
// and writes back to.
package exposure

import (
	"github.com/skycal-data/skycal/internal/wcs"
)

// Dispersion-direction codes carried in wcsinfo metadata.
const (
	// DispersionX marks exposures whose spectra disperse along detector X.
	DispersionX = 1
	// DispersionY marks exposures whose spectra disperse along detector Y.
	DispersionY = 2
)

// Instrument identifies the instrument configuration of an exposure.
// WFSS modes key their wavelength-range lookup on Filter (NIRCAM) or
// Pupil (NIRISS).
type Instrument struct {
	Name   string
	Filter string
	Pupil  string
}

// Subarray is the detector readout window. Start values are 1-based;
// zero means unset (full frame).
type Subarray struct {
	XStart int
	YStart int
	XSize  int
	YSize  int
}

// WCSInfo is the persisted WCS bookkeeping: pointing, dispersion
// direction, derived region strings and the FITS keyword map that SIP
// approximation rewrites.
type WCSInfo struct {
	RARef               float64
	DecRef              float64
	RollRef             float64 // radians
	V3IYAngle           float64 // radians
	VParity             int
	CRPix1              float64 // 1-based; 0 means unset
	CRPix2              float64
	DispersionDirection int
	SRegion             string
	SpectralRegion      [2]float64

	// Keywords is the persisted FITS keyword map (lowercase keys). SIP
	// approximation strips stale polynomial terms and writes new ones
	// here.
	Keywords map[string]interface{}
}

// Meta is the exposure metadata tree.
type Meta struct {
	ExposureType  string
	Instrument    Instrument
	Subarray      Subarray
	WCSInfo       WCSInfo
	SourceCatalog string

	// WCS is the transform chain for this exposure, attached by the
	// pipeline builder. Mutable only via bounding-box attachment.
	WCS *wcs.WCS
}

// Exposure is one detector exposure: metadata plus the array shape of its
// science data (the data itself never enters this subsystem).
type Exposure struct {
	Meta Meta
	// ShapeY, ShapeX are the trailing two dimensions of the data array.
	ShapeY int
	ShapeX int
}

// SubarrayTransform builds the subarray-to-full-frame shift for this
// exposure, or nil for full frame.
func (e *Exposure) SubarrayTransform() wcs.Transform {
	return wcs.SubarrayTransform(e.Meta.Subarray.XStart, e.Meta.Subarray.YStart)
}

// BBoxFromShape derives the half-pixel-padded bounding box of the data
// array.
func (e *Exposure) BBoxFromShape() wcs.BoundingBox {
	return wcs.BBoxFromShape(e.ShapeY, e.ShapeX)
}

// SetKeyword writes one FITS keyword into the persisted map, creating the
// map on first use.
func (m *WCSInfo) SetKeyword(key string, value interface{}) {
	if m.Keywords == nil {
		m.Keywords = make(map[string]interface{})
	}
	m.Keywords[key] = value
}
