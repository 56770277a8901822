// Package catalog reads the direct-image source catalog consumed by grism
// extraction. Only the columns the dispersed-spectra code needs are kept.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/skycal-data/skycal/internal/monitoring"
)

var (
	// ErrEmptyCatalogName reports an empty catalog filename.
	ErrEmptyCatalogName = errors.New("empty catalog filename")
	// ErrMissingColumns reports a catalog without the required columns.
	ErrMissingColumns = errors.New("missing required columns in source catalog")
)

// SkyCoord is a sky position in ICRS degrees.
type SkyCoord struct {
	RA  float64
	Dec float64
}

// SkyObject is one catalog source: identity, centroids, the four corners
// of its sky bounding box, photometry and extendedness. Immutable once
// read.
type SkyObject struct {
	Label            int64
	XCentroid        float64
	YCentroid        float64
	SkyCentroid      SkyCoord
	IsophotalABMag   float64 // NaN when the catalog has no magnitude
	IsophotalABMagE  float64
	SkyBBoxLL        SkyCoord
	SkyBBoxLR        SkyCoord
	SkyBBoxUL        SkyCoord
	SkyBBoxUR        SkyCoord
	IsExtended       bool
}

// requiredColumns are the catalog columns grism extraction depends on.
var requiredColumns = []string{
	"label",
	"xcentroid",
	"ycentroid",
	"sky_centroid_ra",
	"sky_centroid_dec",
	"isophotal_abmag",
	"isophotal_abmag_err",
	"sky_bbox_ll_ra", "sky_bbox_ll_dec",
	"sky_bbox_lr_ra", "sky_bbox_lr_dec",
	"sky_bbox_ul_ra", "sky_bbox_ul_dec",
	"sky_bbox_ur_ra", "sky_bbox_ur_dec",
	"is_extended",
}

// GetObjectInfo reads SkyObjects from a catalog file. The file is CSV with
// a header row; required columns may appear in any order and extra columns
// are ignored. Returns os.ErrNotExist-wrapping errors for absent files.
func GetObjectInfo(catalogName string) ([]SkyObject, error) {
	if catalogName == "" {
		monitoring.Logf("Empty catalog filename")
		return nil, ErrEmptyCatalogName
	}
	f, err := os.Open(catalogName)
	if err != nil {
		monitoring.Logf("Could not find catalog file: %v", err)
		return nil, fmt.Errorf("could not find catalog: %w", err)
	}
	defer f.Close()
	return ReadObjects(f)
}

// ReadObjects parses catalog rows from r.
func ReadObjects(r io.Reader) ([]SkyObject, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading catalog header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		monitoring.Logf("Missing required columns in source catalog: %v", missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var objects []SkyObject
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading catalog row: %w", err)
		}
		obj, err := parseRow(row, col)
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}
	return objects, nil
}

func parseRow(row []string, col map[string]int) (SkyObject, error) {
	field := func(name string) string { return strings.TrimSpace(row[col[name]]) }

	num := func(name string) (float64, error) {
		s := field(name)
		// Empty and "nan" cells carry through as NaN; the extraction loop
		// treats NaN magnitudes as "no photometry".
		if s == "" || strings.EqualFold(s, "nan") {
			return math.NaN(), nil
		}
		return strconv.ParseFloat(s, 64)
	}

	var obj SkyObject
	label, err := strconv.ParseInt(field("label"), 10, 64)
	if err != nil {
		return obj, fmt.Errorf("parsing label %q: %w", field("label"), err)
	}
	obj.Label = label

	floats := []struct {
		name string
		dst  *float64
	}{
		{"xcentroid", &obj.XCentroid},
		{"ycentroid", &obj.YCentroid},
		{"sky_centroid_ra", &obj.SkyCentroid.RA},
		{"sky_centroid_dec", &obj.SkyCentroid.Dec},
		{"isophotal_abmag", &obj.IsophotalABMag},
		{"isophotal_abmag_err", &obj.IsophotalABMagE},
		{"sky_bbox_ll_ra", &obj.SkyBBoxLL.RA},
		{"sky_bbox_ll_dec", &obj.SkyBBoxLL.Dec},
		{"sky_bbox_lr_ra", &obj.SkyBBoxLR.RA},
		{"sky_bbox_lr_dec", &obj.SkyBBoxLR.Dec},
		{"sky_bbox_ul_ra", &obj.SkyBBoxUL.RA},
		{"sky_bbox_ul_dec", &obj.SkyBBoxUL.Dec},
		{"sky_bbox_ur_ra", &obj.SkyBBoxUR.RA},
		{"sky_bbox_ur_dec", &obj.SkyBBoxUR.Dec},
	}
	for _, fcol := range floats {
		v, err := num(fcol.name)
		if err != nil {
			return obj, fmt.Errorf("parsing %s for label %d: %w", fcol.name, label, err)
		}
		*fcol.dst = v
	}

	ext := strings.ToLower(field("is_extended"))
	obj.IsExtended = ext == "true" || ext == "t" || ext == "1"

	return obj, nil
}
