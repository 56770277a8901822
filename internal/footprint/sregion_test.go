package footprint

import (
	"math"
	"strings"
	"testing"

	"github.com/skycal-data/skycal/internal/exposure"
	"github.com/skycal-data/skycal/internal/wcs"
)

func TestSRegion(t *testing.T) {
	p := Polygon{{10, 20}, {11, 20}, {11, 21}, {10, 21}}
	got := SRegion(p)
	want := "POLYGON ICRS " +
		" 10.000000000 20.000000000" +
		" 11.000000000 20.000000000" +
		" 11.000000000 21.000000000" +
		" 10.000000000 21.000000000"
	if got != want {
		t.Errorf("SRegion = %q, want %q", got, want)
	}
}

func TestSRegionNaN(t *testing.T) {
	p := Polygon{{10, 20}, {math.NaN(), 20}, {11, 21}, {10, 21}}
	if got := SRegion(p); got != "" {
		t.Errorf("SRegion with NaN corner = %q, want empty", got)
	}
}

func TestUpdateSRegionKeywordSkipsDegenerate(t *testing.T) {
	info := exposure.WCSInfo{SRegion: "previous"}
	updateSRegionKeyword(&info, Polygon{{math.NaN(), 0}})
	if info.SRegion != "previous" {
		t.Errorf("s_region = %q, want previous value kept", info.SRegion)
	}
}

func TestUpdateSRegionSpectral(t *testing.T) {
	exp := spectralExposure(t, 10, 0, 0)
	if err := UpdateSRegionSpectral(exp); err != nil {
		t.Fatalf("UpdateSRegionSpectral: %v", err)
	}
	info := exp.Meta.WCSInfo
	if !strings.HasPrefix(info.SRegion, "POLYGON ICRS ") {
		t.Errorf("s_region = %q", info.SRegion)
	}
	if fields := strings.Fields(info.SRegion); len(fields) != 10 {
		t.Errorf("s_region has %d fields, want 10", len(fields))
	}
	if info.SpectralRegion[1] != 0.003 {
		t.Errorf("spectral region = %v, want max 0.003", info.SpectralRegion)
	}
}

func TestUpdateSRegionImaging(t *testing.T) {
	w, err := wcs.NewImagingChain(wcs.Affine2D{M: [4]float64{1, 0, 0, 1}}, wcs.ImagingParams{
		RARef: 30, DecRef: 45, VParity: 1, CDelt1: pixScale, CDelt2: pixScale,
	})
	if err != nil {
		t.Fatalf("NewImagingChain: %v", err)
	}
	w.SetBoundingBox(wcs.BBoxFromShape(64, 64))
	exp := &exposure.Exposure{Meta: exposure.Meta{WCS: w}}

	if err := UpdateSRegionImaging(exp); err != nil {
		t.Fatalf("UpdateSRegionImaging: %v", err)
	}
	s := exp.Meta.WCSInfo.SRegion
	if !strings.HasPrefix(s, "POLYGON ICRS ") {
		t.Errorf("s_region = %q", s)
	}
	if fields := strings.Fields(s); len(fields) != 10 {
		t.Errorf("s_region has %d fields, want 10", len(fields))
	}
}

func TestUpdateSRegionImagingShapeFallback(t *testing.T) {
	w, err := wcs.NewImagingChain(wcs.Affine2D{M: [4]float64{1, 0, 0, 1}}, wcs.ImagingParams{
		RARef: 30, DecRef: 45, VParity: 1, CDelt1: pixScale, CDelt2: pixScale,
	})
	if err != nil {
		t.Fatalf("NewImagingChain: %v", err)
	}
	exp := &exposure.Exposure{Meta: exposure.Meta{WCS: w}, ShapeY: 32, ShapeX: 32}

	if err := UpdateSRegionImaging(exp); err != nil {
		t.Fatalf("UpdateSRegionImaging: %v", err)
	}
	if exp.Meta.WCSInfo.SRegion == "" {
		t.Error("s_region not written from shape-derived box")
	}
}

func lrsExposure(t *testing.T) *exposure.Exposure {
	t.Helper()
	v2v3ToWorld := wcs.Parallel{Parts: []wcs.Transform{
		wcs.Compose{Steps: []wcs.Transform{
			wcs.Affine2D{M: [4]float64{pixScale, 0, 0, pixScale}},
			wcs.TanSky{RARef: 10, DecRef: 0},
		}},
		wcs.Identity{N: 1},
	}}
	w, err := wcs.New([]wcs.Step{
		{Frame: wcs.Frame{Name: "v2v3", AxesType: []string{"SPATIAL", "SPATIAL", "SPECTRAL"}}, Transform: v2v3ToWorld},
		{Frame: wcs.Frame{Name: "world", AxesType: []string{"SPATIAL", "SPATIAL", "SPECTRAL"}}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &exposure.Exposure{Meta: exposure.Meta{WCS: w}}
}

func TestUpdateSRegionLRS(t *testing.T) {
	exp := lrsExposure(t)
	ref := LRSSpecRef{
		V2Vertices: [4]float64{-1, 1, 1, -1},
		V3Vertices: [4]float64{-1, -1, 1, 1},
	}
	if err := UpdateSRegionLRS(exp, ref); err != nil {
		t.Fatalf("UpdateSRegionLRS: %v", err)
	}
	if !strings.HasPrefix(exp.Meta.WCSInfo.SRegion, "POLYGON ICRS ") {
		t.Errorf("s_region = %q", exp.Meta.WCSInfo.SRegion)
	}
}

func TestUpdateSRegionLRSMissingVertices(t *testing.T) {
	exp := lrsExposure(t)
	ref := LRSSpecRef{
		V2Vertices: [4]float64{-1, math.NaN(), 1, -1},
		V3Vertices: [4]float64{-1, -1, 1, 1},
	}
	if err := UpdateSRegionLRS(exp, ref); err != nil {
		t.Fatalf("UpdateSRegionLRS: %v", err)
	}
	if exp.Meta.WCSInfo.SRegion != "" {
		t.Errorf("s_region = %q, want untouched", exp.Meta.WCSInfo.SRegion)
	}
}
