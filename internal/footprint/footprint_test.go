package footprint

import (
	"math"
	"os"
	"testing"

	"github.com/skycal-data/skycal/internal/exposure"
	"github.com/skycal-data/skycal/internal/monitoring"
	"github.com/skycal-data/skycal/internal/units"
	"github.com/skycal-data/skycal/internal/wcs"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

var pixScale = units.ArcsecToDeg(1)

// spectralChain maps pixel (x, y) to (ra, dec, lam) with a 1 arcsec/pixel
// TAN projection and lam = 0.001 * x.
func spectralChain(t *testing.T, raRef, decRef, xiOffset float64) *wcs.WCS {
	t.Helper()
	forward := wcs.Compose{Steps: []wcs.Transform{
		wcs.Mapping{Indices: []int{0, 1, 0}, In: 2},
		wcs.Parallel{Parts: []wcs.Transform{
			wcs.Compose{Steps: []wcs.Transform{
				wcs.Affine2D{M: [4]float64{pixScale, 0, 0, pixScale}, T: [2]float64{xiOffset, 0}},
				wcs.TanSky{RARef: raRef, DecRef: decRef},
			}},
			wcs.Scale{Factor: 0.001},
		}},
	}}
	w, err := wcs.New([]wcs.Step{
		{Frame: wcs.Frame{Name: "detector", AxesType: []string{"SPATIAL", "SPATIAL"}}, Transform: forward},
		{Frame: wcs.Frame{Name: "world", AxesType: []string{"SPATIAL", "SPATIAL", "SPECTRAL"}}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	w.SetBoundingBox(wcs.BBoxFromShape(4, 4))
	return w
}

func spectralExposure(t *testing.T, raRef, decRef, xiOffset float64) *exposure.Exposure {
	return &exposure.Exposure{
		Meta: exposure.Meta{WCS: spectralChain(t, raRef, decRef, xiOffset)},
	}
}

func TestComputeFootprintSpectral(t *testing.T) {
	exp := spectralExposure(t, 10, 0, 0)
	fp, lamRange, err := ComputeFootprintSpectral(exp)
	if err != nil {
		t.Fatalf("ComputeFootprintSpectral: %v", err)
	}
	if len(fp) != 4 {
		t.Fatalf("footprint has %d corners, want 4", len(fp))
	}
	for i, c := range fp {
		if c[0] < 0 || c[0] >= 360 {
			t.Errorf("corner %d ra = %v outside [0, 360)", i, c[0])
		}
		if math.Abs(c[0]-10) > 0.01 || math.Abs(c[1]) > 0.01 {
			t.Errorf("corner %d = %v far from the pointing", i, c)
		}
	}
	// Rectangle: ll/ul share ra, ll/lr share dec.
	if fp[0][0] != fp[3][0] || fp[1][0] != fp[2][0] {
		t.Errorf("corner RAs not rectangular: %v", fp)
	}
	if fp[0][1] != fp[1][1] || fp[2][1] != fp[3][1] {
		t.Errorf("corner Decs not rectangular: %v", fp)
	}
	if math.Abs(lamRange[0]) > 1e-12 || math.Abs(lamRange[1]-0.003) > 1e-12 {
		t.Errorf("lam range = %v, want [0, 0.003]", lamRange)
	}
}

func TestComputeFootprintSpectralWrapsRA(t *testing.T) {
	// Pointing on the 0/360 border: a minority of samples fall just below
	// 360, the rest just above 0.
	exp := spectralExposure(t, 0, 0, -0.5*pixScale)
	fp, _, err := ComputeFootprintSpectral(exp)
	if err != nil {
		t.Fatalf("ComputeFootprintSpectral: %v", err)
	}
	for i, c := range fp {
		if c[0] < 0 || c[0] >= 360 {
			t.Errorf("corner %d ra = %v outside [0, 360)", i, c[0])
		}
	}
	if fp[0][0] < 359 {
		t.Errorf("min ra corner = %v, want just below 360", fp[0][0])
	}
	if fp[1][0] > 1 {
		t.Errorf("max ra corner = %v, want just above 0", fp[1][0])
	}
}

func TestComputeFootprintSpectralNoWCS(t *testing.T) {
	_, _, err := ComputeFootprintSpectral(&exposure.Exposure{})
	if err != ErrNoWCS {
		t.Errorf("err = %v, want ErrNoWCS", err)
	}
}

func slitChain(t *testing.T) *wcs.WCS {
	t.Helper()
	slit2world := wcs.Parallel{Parts: []wcs.Transform{
		wcs.Compose{Steps: []wcs.Transform{
			wcs.Affine2D{M: [4]float64{pixScale, 0, 0, pixScale}},
			wcs.TanSky{RARef: 10, DecRef: 0},
		}},
		wcs.Identity{N: 1},
	}}
	w, err := wcs.New([]wcs.Step{
		{Frame: wcs.Frame{Name: "slit_frame", AxesType: []string{"SPATIAL", "SPATIAL", "SPECTRAL"}}, Transform: slit2world},
		{Frame: wcs.Frame{Name: "world", AxesType: []string{"SPATIAL", "SPATIAL", "SPECTRAL"}}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestComputeFootprintNRSSlit(t *testing.T) {
	info := &exposure.WCSInfo{}
	slit := Slit{WCS: slitChain(t), YMin: -0.55, YMax: 0.55, Info: info}

	fp, lamRange, err := ComputeFootprintNRSSlit(slit)
	if err != nil {
		t.Fatalf("ComputeFootprintNRSSlit: %v", err)
	}
	if len(fp) != 4 {
		t.Fatalf("footprint has %d corners, want 4", len(fp))
	}
	// The nominal wavelength rides through untouched.
	if lamRange != [2]float64{2e-6, 2e-6} {
		t.Errorf("lam range = %v, want [2e-6, 2e-6]", lamRange)
	}

	if err := UpdateSRegionNRSSlit(slit); err != nil {
		t.Fatalf("UpdateSRegionNRSSlit: %v", err)
	}
	if info.SRegion == "" {
		t.Error("s_region not written")
	}
	if info.SpectralRegion != [2]float64{2e-6, 2e-6} {
		t.Errorf("spectral region = %v", info.SpectralRegion)
	}
}

func TestComputeFootprintNRSIFUSliceCount(t *testing.T) {
	_, _, err := ComputeFootprintNRSIFU([]*wcs.WCS{slitChain(t)})
	if err == nil {
		t.Error("short slice list accepted")
	}
}

func ifuSliceChain(t *testing.T) *wcs.WCS {
	t.Helper()
	slit2slicer := wcs.Parallel{Parts: []wcs.Transform{
		wcs.Shift{Offset: 0.3},
		wcs.Identity{N: 2},
	}}
	slicer2world := wcs.Parallel{Parts: []wcs.Transform{
		wcs.Compose{Steps: []wcs.Transform{
			wcs.Affine2D{M: [4]float64{pixScale, 0, 0, pixScale}},
			wcs.TanSky{RARef: 10, DecRef: 0},
		}},
		wcs.Identity{N: 1},
	}}
	w, err := wcs.New([]wcs.Step{
		{Frame: wcs.Frame{Name: "slit_frame", AxesType: []string{"SPATIAL", "SPATIAL", "SPECTRAL"}}, Transform: slit2slicer},
		{Frame: wcs.Frame{Name: "slicer", AxesType: []string{"SPATIAL", "SPATIAL", "SPECTRAL"}}, Transform: slicer2world},
		{Frame: wcs.Frame{Name: "world", AxesType: []string{"SPATIAL", "SPATIAL", "SPECTRAL"}}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestInIFUSlice(t *testing.T) {
	w := ifuSliceChain(t)
	slicer2world, err := w.GetTransform("slicer", "world")
	if err != nil {
		t.Fatalf("slicer -> world: %v", err)
	}

	// A world position on the slice center maps in.
	on, err := slicer2world.Eval([]float64{0.3, 0, 2e-6})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	in, err := InIFUSlice(w, on[0], on[1], on[2])
	if err != nil {
		t.Fatalf("InIFUSlice: %v", err)
	}
	if !in {
		t.Error("on-slice position reported outside")
	}

	// A position well off the slice center does not.
	off, err := slicer2world.Eval([]float64{0.305, 0, 2e-6})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	in, err = InIFUSlice(w, off[0], off[1], off[2])
	if err != nil {
		t.Fatalf("InIFUSlice: %v", err)
	}
	if in {
		t.Error("off-slice position reported inside")
	}
}
