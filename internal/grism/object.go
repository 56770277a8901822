package grism

import "github.com/skycal-data/skycal/internal/catalog"

// OrderBounds is one spectral order's on-detector extraction box in whole
// full-frame pixel indices, inclusive on both ends.
type OrderBounds struct {
	XMin int
	XMax int
	YMin int
	YMax int
}

// Object is the extraction unit handed to 2D spectral extraction: one
// catalog source with a pixel bounding box, wavelength range and
// partial-coverage flag per surviving spectral order. Orders wholly off
// the detector are absent; a source with no surviving orders produces no
// Object at all.
type Object struct {
	SID           int64
	OrderBounding map[int]OrderBounds
	WaveRange     map[int][2]float64
	PartialOrder  map[int]bool

	SkyCentroid catalog.SkyCoord
	SkyBBoxLL   catalog.SkyCoord
	SkyBBoxLR   catalog.SkyCoord
	SkyBBoxUL   catalog.SkyCoord
	SkyBBoxUR   catalog.SkyCoord

	// XCentroid, YCentroid locate the source in the direct-image frame of
	// the grism exposure.
	XCentroid float64
	YCentroid float64

	IsExtended     bool
	IsophotalABMag float64
}
