// Command skycal runs grism extraction for one exposure: it builds the
// WCS chain from an exposure description, computes per-object extraction
// boxes against a source catalog, persists the results and renders
// diagnostic reports.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/skycal-data/skycal/internal/config"
	"github.com/skycal-data/skycal/internal/exposure"
	"github.com/skycal-data/skycal/internal/footprint"
	"github.com/skycal-data/skycal/internal/grism"
	"github.com/skycal-data/skycal/internal/report"
	"github.com/skycal-data/skycal/internal/sip"
	"github.com/skycal-data/skycal/internal/sphere"
	"github.com/skycal-data/skycal/internal/store"
	"github.com/skycal-data/skycal/internal/units"
	"github.com/skycal-data/skycal/internal/version"
	"github.com/skycal-data/skycal/internal/wcs"
)

var (
	exposurePath = flag.String("exposure", "", "Path to the exposure description JSON")
	configPath   = flag.String("config", "", "Path to the extraction config JSON (optional)")
	wrangePath   = flag.String("wavelength-range", "", "Path to the wavelength-range reference JSON")
	dbFile       = flag.String("db", "skycal.db", "Path to the SQLite database file")
	outDir       = flag.String("out", "reports", "Directory for rendered reports")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

// pointingSpec mirrors the wcsinfo pointing keywords. Angles follow the
// exposure convention: RA/Dec in degrees, roll and V3 Y-angle in radians.
type pointingSpec struct {
	RARef     float64 `json:"ra_ref"`
	DecRef    float64 `json:"dec_ref"`
	RollRef   float64 `json:"roll_ref"`
	V3IYAngle float64 `json:"v3i_yang"`
	VParity   int     `json:"vparity"`
	CDelt1    float64 `json:"cdelt1"`
	CDelt2    float64 `json:"cdelt2"`
}

// distortionSpec is the affine detector -> v2v3 approximation used when a
// full distortion solution is not supplied.
type distortionSpec struct {
	Matrix [4]float64 `json:"matrix"`
	Offset [2]float64 `json:"offset"`
}

// exposureSpec is the on-disk exposure description consumed by the CLI.
type exposureSpec struct {
	ExposureType        string                `json:"exposure_type"`
	Instrument          string                `json:"instrument"`
	Filter              string                `json:"filter"`
	Pupil               string                `json:"pupil"`
	XStart              int                   `json:"xstart"`
	YStart              int                   `json:"ystart"`
	XSize               int                   `json:"xsize"`
	YSize               int                   `json:"ysize"`
	CRPix1              float64               `json:"crpix1"`
	CRPix2              float64               `json:"crpix2"`
	DispersionDirection int                   `json:"dispersion_direction"`
	SourceCatalog       string                `json:"source_catalog"`
	ShapeX              int                   `json:"shape_x"`
	ShapeY              int                   `json:"shape_y"`
	Pointing            pointingSpec          `json:"pointing"`
	Distortion          distortionSpec        `json:"distortion"`
	Dispersion          grism.DispersionModel `json:"dispersion"`
}

// loadExposure builds the grism exposure plus the companion direct-imaging
// chain used for the FITS approximation and the sky footprint.
func loadExposure(path string) (*exposure.Exposure, *wcs.WCS, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading exposure description: %w", err)
	}
	var spec exposureSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, nil, fmt.Errorf("parsing exposure description: %w", err)
	}

	distortion := wcs.Affine2D{M: spec.Distortion.Matrix, T: spec.Distortion.Offset}
	params := wcs.ImagingParams{
		RARef:     spec.Pointing.RARef,
		DecRef:    spec.Pointing.DecRef,
		RollRef:   spec.Pointing.RollRef,
		V3IYAngle: spec.Pointing.V3IYAngle,
		VParity:   spec.Pointing.VParity,
		CDelt1:    spec.Pointing.CDelt1,
		CDelt2:    spec.Pointing.CDelt2,
	}

	var chain *wcs.WCS
	switch {
	case strings.Contains(spec.ExposureType, "TSGRISM"):
		chain, err = grism.NewTSOChain(&spec.Dispersion, distortion, params, spec.CRPix1, spec.CRPix2)
	case strings.Contains(spec.ExposureType, "WFSS"):
		chain, err = grism.NewWFSSChain(&spec.Dispersion, distortion, params)
	default:
		grism.NotImplementedMode(spec.ExposureType)
		return nil, nil, fmt.Errorf("unsupported exposure type %q", spec.ExposureType)
	}
	if err != nil {
		return nil, nil, err
	}
	imaging, err := wcs.NewImagingChain(distortion, params)
	if err != nil {
		return nil, nil, err
	}

	if spec.XSize > 0 && spec.YSize > 0 {
		bbox := wcs.SubarrayBoundingBox(spec.XSize, spec.YSize)
		chain.SetBoundingBox(bbox)
		imaging.SetBoundingBox(bbox)
	} else if spec.ShapeX > 0 && spec.ShapeY > 0 {
		bbox := wcs.BBoxFromShape(spec.ShapeY, spec.ShapeX)
		chain.SetBoundingBox(bbox)
		imaging.SetBoundingBox(bbox)
	}

	return &exposure.Exposure{
		Meta: exposure.Meta{
			ExposureType: spec.ExposureType,
			Instrument: exposure.Instrument{
				Name:   spec.Instrument,
				Filter: spec.Filter,
				Pupil:  spec.Pupil,
			},
			Subarray: exposure.Subarray{
				XStart: spec.XStart,
				YStart: spec.YStart,
				XSize:  spec.XSize,
				YSize:  spec.YSize,
			},
			WCSInfo: exposure.WCSInfo{
				RARef:               spec.Pointing.RARef,
				DecRef:              spec.Pointing.DecRef,
				RollRef:             spec.Pointing.RollRef,
				V3IYAngle:           spec.Pointing.V3IYAngle,
				VParity:             spec.Pointing.VParity,
				CRPix1:              spec.CRPix1,
				CRPix2:              spec.CRPix2,
				DispersionDirection: spec.DispersionDirection,
			},
			SourceCatalog: spec.SourceCatalog,
			WCS:           chain,
		},
		ShapeY: spec.ShapeY,
		ShapeX: spec.ShapeX,
	}, imaging, nil
}

func fitOptions(cfg *config.ExtractionConfig) sip.FitOptions {
	if cfg == nil {
		return sip.FitOptions{}
	}
	opts := sip.FitOptions{
		MaxPixError:    cfg.GetMaxPixError(),
		MaxInvPixError: cfg.MaxInvPixError,
		NPoints:        cfg.GetNPoints(),
	}
	if cfg.SIPDegree != nil {
		opts.Degree = []int{*cfg.SIPDegree}
	}
	return opts
}

// objectLamRange is the union wavelength span over every extracted order.
func objectLamRange(objects []grism.Object) (lamMin, lamMax float64) {
	first := true
	for _, o := range objects {
		for _, r := range o.WaveRange {
			if first || r[0] < lamMin {
				lamMin = r[0]
			}
			if first || r[1] > lamMax {
				lamMax = r[1]
			}
			first = false
		}
	}
	return lamMin, lamMax
}

func extractOptions(cfg *config.ExtractionConfig) grism.ExtractOptions {
	if cfg == nil {
		return grism.ExtractOptions{}
	}
	return grism.ExtractOptions{
		MMagExtract:           cfg.MMagExtract,
		ExtractOrders:         cfg.ExtractOrders,
		WFSSExtractHalfHeight: cfg.ExtractHalfHeight,
		NBright:               cfg.NBright,
	}
}

func runMigrate(args []string) {
	s, err := store.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer s.Close()

	cmd := "up"
	if len(args) > 0 {
		cmd = args[0]
	}
	switch cmd {
	case "up":
		log.Printf("Running migrations...")
		if err := s.MigrateUp(); err != nil {
			log.Fatalf("migration failed: %v", err)
		}
		version, dirty, _ := s.MigrateVersion()
		log.Printf("Database at version %d (dirty=%v)", version, dirty)
	case "down":
		if err := s.MigrateDown(); err != nil {
			log.Fatalf("rollback failed: %v", err)
		}
		log.Printf("Rolled back one migration")
	case "status":
		version, dirty, err := s.MigrateVersion()
		if err != nil {
			log.Fatalf("failed to read migration version: %v", err)
		}
		log.Printf("Database at version %d (dirty=%v)", version, dirty)
	default:
		log.Fatalf("unknown migrate command %q (want up, down or status)", cmd)
	}
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("skycal %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if args := flag.Args(); len(args) > 0 && args[0] == "migrate" {
		runMigrate(args[1:])
		return
	}

	if *exposurePath == "" {
		log.Fatal("an exposure description is required (-exposure)")
	}

	var cfg *config.ExtractionConfig
	if *configPath != "" {
		var err error
		cfg, err = config.LoadExtractionConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	exp, imaging, err := loadExposure(*exposurePath)
	if err != nil {
		log.Fatalf("failed to load exposure: %v", err)
	}
	if cfg != nil && exp.Meta.SourceCatalog == "" {
		exp.Meta.SourceCatalog = cfg.GetSourceCatalogPath()
	}

	wrPath := *wrangePath
	if wrPath == "" && cfg != nil {
		wrPath = cfg.GetWavelengthRangePath()
	}
	var wr *grism.WavelengthRange
	if wrPath != "" {
		wr, err = grism.LoadWavelengthRange(wrPath)
		if err != nil {
			log.Fatalf("failed to load wavelength-range reference: %v", err)
		}
	}

	objects, err := grism.CreateGrismBBox(exp, wr, extractOptions(cfg))
	if err != nil {
		log.Fatalf("extraction failed: %v", err)
	}
	if len(objects) == 0 {
		noData := &exposure.NoDataOnDetectorError{}
		log.Print(noData.Error())
		os.Exit(noData.Code())
	}
	log.Printf("Extracted %d objects from %s", len(objects), exp.Meta.SourceCatalog)

	s, err := store.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer s.Close()
	if err := s.MigrateUp(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	runID, err := s.CreateRun(exp.Meta.ExposureType, exp.Meta.Instrument.Name, exp.Meta.Instrument.Filter)
	if err != nil {
		log.Fatalf("failed to create run: %v", err)
	}
	if err := s.SaveGrismObjects(runID, objects); err != nil {
		log.Fatalf("failed to save grism objects: %v", err)
	}
	log.Printf("Saved run %s", runID)

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("failed to create output dir: %v", err)
	}

	// FITS-style approximation of the companion imaging WCS, plus the sky
	// footprint of the exposure.
	imgExp := &exposure.Exposure{
		Meta:   exp.Meta,
		ShapeY: exp.ShapeY,
		ShapeX: exp.ShapeX,
	}
	imgExp.Meta.WCS = imaging
	fiducial := []float64{exp.Meta.WCSInfo.RARef, exp.Meta.WCSInfo.DecRef}
	if scale, err := sphere.ComputeScale(imaging, fiducial, 0, nil); err == nil {
		log.Printf("Mean pixel scale: %.4f arcsec", units.DegToArcsec(scale))
	} else {
		log.Printf("failed to compute pixel scale: %v", err)
	}
	hdr, err := sip.UpdateFITSWCSInfo(imgExp, imaging, fitOptions(cfg))
	if err != nil {
		log.Fatalf("failed to fit FITS WCS approximation: %v", err)
	}
	if err := footprint.UpdateSRegionImaging(imgExp); err != nil {
		log.Fatalf("failed to compute footprint: %v", err)
	}
	lamMin, lamMax := objectLamRange(objects)
	if err := s.SaveFootprint(runID, imgExp.Meta.WCSInfo.SRegion, lamMin, lamMax); err != nil {
		log.Fatalf("failed to save footprint: %v", err)
	}
	hdrJSON, err := json.MarshalIndent(hdr, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode WCS header: %v", err)
	}
	hdrPath := filepath.Join(*outDir, "fits_wcs.json")
	if err := os.WriteFile(hdrPath, hdrJSON, 0644); err != nil {
		log.Fatalf("failed to write WCS header: %v", err)
	}
	boxesPNG := filepath.Join(*outDir, "extraction_boxes.png")
	if err := report.PlotExtractionBoxes(objects, exp.Meta.Subarray.XSize, exp.Meta.Subarray.YSize, boxesPNG); err != nil {
		log.Fatalf("failed to plot extraction boxes: %v", err)
	}
	skyHTML := filepath.Join(*outDir, "sources.html")
	if err := report.WriteSkyChart(objects, skyHTML); err != nil {
		log.Fatalf("failed to write sky chart: %v", err)
	}
	log.Printf("Reports written to %s", *outDir)
}
