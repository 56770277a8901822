package grism

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"

	"github.com/skycal-data/skycal/internal/catalog"
	"github.com/skycal-data/skycal/internal/exposure"
	"github.com/skycal-data/skycal/internal/monitoring"
	"github.com/skycal-data/skycal/internal/testutil"
)

func TestMain(m *testing.M) {
	// Per-object extraction chatter is noise in test output.
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// flatModel disperses along X with no cross-dispersion displacement:
// d = 100 t, lam = 1 + 2 t, so lam in [1, 2] sweeps d over [0, 50].
func flatModel() *DispersionModel {
	return &DispersionModel{
		Orientation: RowDispersed,
		Orders: map[int]TraceOrder{
			1: {
				Order: 1,
				Disp:  []float64{0, 100},
				Cross: []float64{0},
				Wave:  []float64{1, 2},
			},
		},
	}
}

func wfssExposure(t *testing.T) *exposure.Exposure {
	t.Helper()
	chain, err := NewWFSSChain(flatModel(), identityDistortion(), testParams())
	if err != nil {
		t.Fatalf("NewWFSSChain: %v", err)
	}
	return &exposure.Exposure{
		Meta: exposure.Meta{
			ExposureType: "NRC_WFSS",
			Instrument:   exposure.Instrument{Name: "NIRCAM", Filter: "F444W"},
			Subarray:     exposure.Subarray{XSize: 1000, YSize: 1000},
			WCSInfo:      exposure.WCSInfo{DispersionDirection: exposure.DispersionX},
			WCS:          chain,
		},
	}
}

// skyObjectAt builds a catalog source centered at detector pixel (x, y)
// with a 10x10 pixel sky bounding box, using the exposure's own imaging
// transform so the extraction geometry is self-consistent.
func skyObjectAt(t *testing.T, exp *exposure.Exposure, label int64, x, y, mag float64) catalog.SkyObject {
	t.Helper()
	det2world, err := exp.Meta.WCS.GetTransform("detector", "world")
	if err != nil {
		t.Fatalf("detector -> world: %v", err)
	}
	skyAt := func(px, py float64) catalog.SkyCoord {
		out, err := det2world.Eval([]float64{px, py, 1, 1})
		if err != nil {
			t.Fatalf("sky position at (%v, %v): %v", px, py, err)
		}
		return catalog.SkyCoord{RA: out[0], Dec: out[1]}
	}
	return catalog.SkyObject{
		Label:          label,
		SkyCentroid:    skyAt(x, y),
		SkyBBoxLL:      skyAt(x-5, y-5),
		SkyBBoxLR:      skyAt(x+5, y-5),
		SkyBBoxUL:      skyAt(x-5, y+5),
		SkyBBoxUR:      skyAt(x+5, y+5),
		IsophotalABMag: mag,
	}
}

var testWaveRange = map[int][2]float64{1: {1, 2}}

func TestCreateGrismBBoxGeometry(t *testing.T) {
	exp := wfssExposure(t)
	objs := []catalog.SkyObject{skyObjectAt(t, exp, 7, 500, 600, 12)}

	got, err := createGrismBBox(exp, objs, testWaveRange, defaultMMagExtract, nil, nil)
	if err != nil {
		t.Fatalf("createGrismBBox: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d objects, want 1", len(got))
	}
	obj := got[0]
	if obj.SID != 7 {
		t.Errorf("SID = %d, want 7", obj.SID)
	}

	// Box spans the undispersed corners plus the 50-pixel trace.
	b, ok := obj.OrderBounding[1]
	if !ok {
		t.Fatal("order 1 missing from bounding map")
	}
	want := OrderBounds{XMin: 495, XMax: 555, YMin: 595, YMax: 605}
	if b != want {
		t.Errorf("bounds = %+v, want %+v", b, want)
	}
	if obj.PartialOrder[1] {
		t.Error("fully contained order flagged partial")
	}
	if wr := obj.WaveRange[1]; wr != [2]float64{1, 2} {
		t.Errorf("wave range = %v, want [1, 2]", wr)
	}
	if math.Abs(obj.XCentroid-500) > 1e-6 || math.Abs(obj.YCentroid-600) > 1e-6 {
		t.Errorf("centroid = (%v, %v), want (500, 600)", obj.XCentroid, obj.YCentroid)
	}
}

func TestCreateGrismBBoxPartialAndExcluded(t *testing.T) {
	exp := wfssExposure(t)
	objs := []catalog.SkyObject{
		skyObjectAt(t, exp, 1, 980, 600, 12),  // trace runs past the right edge
		skyObjectAt(t, exp, 2, 2000, 600, 12), // entirely off the detector
	}

	got, err := createGrismBBox(exp, objs, testWaveRange, defaultMMagExtract, nil, nil)
	if err != nil {
		t.Fatalf("createGrismBBox: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d objects, want 1 (off-image source dropped)", len(got))
	}
	obj := got[0]
	if obj.SID != 1 {
		t.Errorf("SID = %d, want 1", obj.SID)
	}
	if !obj.PartialOrder[1] {
		t.Error("clipped order not flagged partial")
	}
	if b := obj.OrderBounding[1]; b.XMax <= 999 {
		t.Errorf("XMax = %d, want past the subarray edge", b.XMax)
	}
}

func TestCreateGrismBBoxMagnitudeFilter(t *testing.T) {
	exp := wfssExposure(t)
	noMag := skyObjectAt(t, exp, 1, 500, 600, math.NaN())
	faint := skyObjectAt(t, exp, 2, 500, 600, 20)
	bright := skyObjectAt(t, exp, 3, 500, 600, 10)

	got, err := createGrismBBox(exp, []catalog.SkyObject{noMag, faint, bright}, testWaveRange, 15, nil, nil)
	if err != nil {
		t.Fatalf("createGrismBBox: %v", err)
	}
	if len(got) != 1 || got[0].SID != 3 {
		t.Fatalf("got %v, want only the bright source", got)
	}
}

func TestCreateGrismBBoxNBright(t *testing.T) {
	exp := wfssExposure(t)
	objs := []catalog.SkyObject{
		skyObjectAt(t, exp, 1, 500, 600, 12),
		skyObjectAt(t, exp, 2, 400, 500, 10),
		skyObjectAt(t, exp, 3, 300, 400, 15),
	}
	nbright := 2

	got, err := createGrismBBox(exp, objs, testWaveRange, defaultMMagExtract, nil, &nbright)
	if err != nil {
		t.Fatalf("createGrismBBox: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d objects, want 2", len(got))
	}
	// Ascending magnitude: brightest first.
	if got[0].SID != 2 || got[1].SID != 1 {
		t.Errorf("kept SIDs = (%d, %d), want (2, 1)", got[0].SID, got[1].SID)
	}
}

func TestCreateGrismBBoxHalfHeight(t *testing.T) {
	exp := wfssExposure(t)
	hh := 3

	point := skyObjectAt(t, exp, 1, 500, 600, 12)
	got, err := createGrismBBox(exp, []catalog.SkyObject{point}, testWaveRange, defaultMMagExtract, &hh, nil)
	if err != nil {
		t.Fatalf("createGrismBBox: %v", err)
	}
	b := got[0].OrderBounding[1]
	if b.YMin != 597 || b.YMax != 603 {
		t.Errorf("Y bounds = (%d, %d), want (597, 603)", b.YMin, b.YMax)
	}
	if b.XMin != 495 || b.XMax != 555 {
		t.Errorf("X bounds = (%d, %d), want unchanged (495, 555)", b.XMin, b.XMax)
	}

	// Extended sources keep their computed extent.
	ext := point
	ext.IsExtended = true
	got, err = createGrismBBox(exp, []catalog.SkyObject{ext}, testWaveRange, defaultMMagExtract, &hh, nil)
	if err != nil {
		t.Fatalf("createGrismBBox extended: %v", err)
	}
	b = got[0].OrderBounding[1]
	if b.YMin != 595 || b.YMax != 605 {
		t.Errorf("extended Y bounds = (%d, %d), want (595, 605)", b.YMin, b.YMax)
	}
}

func TestCreateGrismBBoxEmptyResult(t *testing.T) {
	exp := wfssExposure(t)
	objs := []catalog.SkyObject{skyObjectAt(t, exp, 1, 2000, 2000, 12)}

	got, err := createGrismBBox(exp, objs, testWaveRange, defaultMMagExtract, nil, nil)
	if err != nil {
		t.Fatalf("createGrismBBox: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d objects, want none", len(got))
	}
}

func TestCreateGrismBBoxErrors(t *testing.T) {
	exp := wfssExposure(t)

	exp.Meta.Instrument.Name = "MIRI"
	_, err := CreateGrismBBox(exp, nil, ExtractOptions{WavelengthRange: testWaveRange})
	if !errors.Is(err, ErrUnsupportedInstrument) {
		t.Errorf("err = %v, want ErrUnsupportedInstrument", err)
	}

	exp.Meta.Instrument.Name = "NIRCAM"
	_, err = CreateGrismBBox(exp, nil, ExtractOptions{})
	if !errors.Is(err, ErrNoWavelengthRange) {
		t.Errorf("err = %v, want ErrNoWavelengthRange", err)
	}

	_, err = CreateGrismBBox(exp, nil, ExtractOptions{WavelengthRange: testWaveRange})
	if !errors.Is(err, ErrNoSourceCatalog) {
		t.Errorf("err = %v, want ErrNoSourceCatalog", err)
	}
}

func TestCreateGrismBBoxFromCatalogFile(t *testing.T) {
	exp := wfssExposure(t)
	obj := skyObjectAt(t, exp, 11, 500, 600, 12)

	var sb strings.Builder
	sb.WriteString("label,xcentroid,ycentroid,sky_centroid_ra,sky_centroid_dec," +
		"isophotal_abmag,isophotal_abmag_err," +
		"sky_bbox_ll_ra,sky_bbox_ll_dec,sky_bbox_lr_ra,sky_bbox_lr_dec," +
		"sky_bbox_ul_ra,sky_bbox_ul_dec,sky_bbox_ur_ra,sky_bbox_ur_dec,is_extended\n")
	fmt.Fprintf(&sb, "11,500,600,%.12f,%.12f,12.0,0.01,%.12f,%.12f,%.12f,%.12f,%.12f,%.12f,%.12f,%.12f,False\n",
		obj.SkyCentroid.RA, obj.SkyCentroid.Dec,
		obj.SkyBBoxLL.RA, obj.SkyBBoxLL.Dec,
		obj.SkyBBoxLR.RA, obj.SkyBBoxLR.Dec,
		obj.SkyBBoxUL.RA, obj.SkyBBoxUL.Dec,
		obj.SkyBBoxUR.RA, obj.SkyBBoxUR.Dec)
	exp.Meta.SourceCatalog = testutil.WriteTempFile(t, "cat.csv", sb.String())

	got, err := CreateGrismBBox(exp, nil, ExtractOptions{WavelengthRange: testWaveRange})
	if err != nil {
		t.Fatalf("CreateGrismBBox: %v", err)
	}
	if len(got) != 1 || got[0].SID != 11 {
		t.Fatalf("got %v, want one object with SID 11", got)
	}
	b := got[0].OrderBounding[1]
	if b.XMin != 495 || b.XMax != 555 || b.YMin != 595 || b.YMax != 605 {
		t.Errorf("bounds = %+v, want (495, 555, 595, 605)", b)
	}
}
