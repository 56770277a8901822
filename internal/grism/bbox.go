package grism

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/skycal-data/skycal/internal/catalog"
	"github.com/skycal-data/skycal/internal/exposure"
	"github.com/skycal-data/skycal/internal/monitoring"
)

var (
	// ErrUnsupportedInstrument reports an exposure from an instrument
	// without slitless extraction support.
	ErrUnsupportedInstrument = errors.New("grism bounding boxes require a NIRCAM or NIRISS WFSS exposure")
	// ErrNoSourceCatalog reports an exposure with no source catalog listed.
	ErrNoSourceCatalog = errors.New("no source catalog listed in datamodel")
	// ErrDispersionDirection reports an unusable dispersion-direction code.
	ErrDispersionDirection = errors.New("cannot determine dispersion direction")
)

// defaultMMagExtract extracts all objects regardless of magnitude.
const defaultMMagExtract = 999.0

// ExtractOptions tune CreateGrismBBox. Nil pointer fields take the
// documented defaults.
type ExtractOptions struct {
	// MMagExtract is the faintest AB magnitude to extract.
	MMagExtract *float64
	// ExtractOrders overrides the reference table's default orders.
	ExtractOrders []int
	// WFSSExtractHalfHeight fixes the cross-dispersion half height in
	// pixels for point sources, replacing the computed extent.
	WFSSExtractHalfHeight *int
	// WavelengthRange supplies {order: (lmin, lmax)} directly; mandatory
	// when no reference table is given.
	WavelengthRange map[int][2]float64
	// NBright keeps only the N brightest surviving objects.
	NBright *int
}

// CreateGrismBBox computes per-object, per-order extraction geometry for a
// slitless exposure. Each catalog source's sky bounding box is pushed
// through the dispersion transform at the extreme wavelengths of every
// candidate order; the resulting detector boxes are clipped against the
// subarray extent, keeping complete and partial traces and dropping
// orders (and, when nothing survives, whole sources) that land entirely
// off the detector.
//
// wr may be nil if opts.WavelengthRange is supplied.
func CreateGrismBBox(model *exposure.Exposure, wr *WavelengthRange, opts ExtractOptions) ([]Object, error) {
	var filter string
	switch model.Meta.Instrument.Name {
	case "NIRCAM":
		filter = model.Meta.Instrument.Filter
	case "NIRISS":
		filter = model.Meta.Instrument.Pupil
	default:
		return nil, fmt.Errorf("%w: got %q", ErrUnsupportedInstrument, model.Meta.Instrument.Name)
	}

	waveRange := opts.WavelengthRange
	if wr == nil {
		if waveRange == nil {
			return nil, fmt.Errorf("%w: supply a reference table or an explicit wavelength range", ErrNoWavelengthRange)
		}
	} else {
		orders := opts.ExtractOrders
		if orders == nil {
			var err error
			orders, err = wr.OrdersForFilter(filter)
			if err != nil {
				return nil, err
			}
		}
		var err error
		waveRange, err = wr.WFSSRange(filter, orders)
		if err != nil {
			return nil, err
		}
	}

	mmag := defaultMMagExtract
	if opts.MMagExtract != nil {
		mmag = *opts.MMagExtract
		monitoring.Logf("Extracting objects < abmag = %v", mmag)
	}

	if model.Meta.SourceCatalog == "" {
		monitoring.Logf("No source catalog listed in datamodel.")
		return nil, ErrNoSourceCatalog
	}
	monitoring.Logf("Getting objects from %s", model.Meta.SourceCatalog)

	objects, err := catalog.GetObjectInfo(model.Meta.SourceCatalog)
	if err != nil {
		return nil, err
	}

	return createGrismBBox(model, objects, waveRange, mmag, opts.WFSSExtractHalfHeight, opts.NBright)
}

func createGrismBBox(
	model *exposure.Exposure,
	objects []catalog.SkyObject,
	waveRange map[int][2]float64,
	mmag float64,
	halfHeight *int,
	nbright *int,
) ([]Object, error) {
	monitoring.Logf("Extracting with wavelength_range %v", waveRange)

	if model.Meta.WCS == nil {
		return nil, fmt.Errorf("exposure has no WCS attached")
	}
	skyToDetector, err := model.Meta.WCS.GetTransform("world", "detector")
	if err != nil {
		return nil, err
	}
	skyToGrism, err := model.Meta.WCS.BackwardTransform()
	if err != nil {
		return nil, err
	}

	// Deterministic order iteration.
	orders := make([]int, 0, len(waveRange))
	for order := range waveRange {
		orders = append(orders, order)
	}
	sort.Ints(orders)

	var grismObjects []Object
	for _, obj := range objects {
		if math.IsNaN(obj.IsophotalABMag) {
			continue
		}
		if obj.IsophotalABMag >= mmag {
			continue
		}

		// Image-frame center of the object. Wavelength and order inputs
		// are placeholders; this branch of the transform ignores them.
		center, err := skyToDetector.Eval([]float64{obj.SkyCentroid.RA, obj.SkyCentroid.Dec, 1, 1})
		if err != nil {
			return nil, fmt.Errorf("object %d: %w", obj.Label, err)
		}
		xcenter, ycenter := center[0], center[1]

		orderBounding := make(map[int]OrderBounds)
		objWaveRange := make(map[int][2]float64)
		partialOrder := make(map[int]bool)

		for _, order := range orders {
			lmin, lmax := waveRange[order][0], waveRange[order][1]

			bounds, err := traceBounds(skyToGrism, obj, order, lmin, lmax)
			if err != nil {
				return nil, fmt.Errorf("object %d order %d: %w", obj.Label, order, err)
			}

			if halfHeight != nil && !obj.IsExtended {
				if err := applyHalfHeight(skyToGrism, model, obj, order, lmin, lmax, *halfHeight, &bounds); err != nil {
					return nil, err
				}
			}

			// Snap floating-point corners to whole pixel indices.
			ob := OrderBounds{
				XMin: toIndex(bounds[0]),
				XMax: toIndex(bounds[1]),
				YMin: toIndex(bounds[2]),
				YMax: toIndex(bounds[3]),
			}

			exclude, partial := clipToSubarray(model, ob)
			if exclude {
				monitoring.Logf("Excluding off-image object: %d, order %d", obj.Label, order)
				continue
			}
			if partial {
				monitoring.Logf("Partial order on detector for obj: %d order: %d", obj.Label, order)
			}

			orderBounding[order] = ob
			objWaveRange[order] = [2]float64{lmin, lmax}
			partialOrder[order] = partial
		}

		if len(orderBounding) > 0 {
			grismObjects = append(grismObjects, Object{
				SID:            obj.Label,
				OrderBounding:  orderBounding,
				WaveRange:      objWaveRange,
				PartialOrder:   partialOrder,
				SkyCentroid:    obj.SkyCentroid,
				SkyBBoxLL:      obj.SkyBBoxLL,
				SkyBBoxLR:      obj.SkyBBoxLR,
				SkyBBoxUL:      obj.SkyBBoxUL,
				SkyBBoxUR:      obj.SkyBBoxUR,
				XCentroid:      xcenter,
				YCentroid:      ycenter,
				IsExtended:     obj.IsExtended,
				IsophotalABMag: obj.IsophotalABMag,
			})
		}
	}

	final := grismObjects
	if nbright != nil {
		// Keep only the N brightest (lowest magnitude) objects.
		sort.SliceStable(final, func(i, j int) bool {
			return final[i].IsophotalABMag < final[j].IsophotalABMag
		})
		if *nbright < len(final) {
			final = final[:*nbright]
		}
	}

	monitoring.Logf("Total of %d grism objects defined", len(final))
	if len(final) == 0 {
		monitoring.Warnf("No grism objects saved; check catalog or step params")
	}
	return final, nil
}

// traceBounds maps the four sky-bbox corners through the dispersion
// transform at both wavelength extremes and returns the elementwise
// (xmin, xmax, ymin, ymax) of the eight resulting positions.
func traceBounds(skyToGrism Transform, obj catalog.SkyObject, order int, lmin, lmax float64) ([4]float64, error) {
	corners := []catalog.SkyCoord{obj.SkyBBoxLL, obj.SkyBBoxLR, obj.SkyBBoxUL, obj.SkyBBoxUR}

	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, lam := range []float64{lmin, lmax} {
		for _, c := range corners {
			out, err := skyToGrism.Eval([]float64{c.RA, c.Dec, lam, float64(order)})
			if err != nil {
				return [4]float64{}, err
			}
			x, y := out[0], out[1]
			if math.IsNaN(x) || math.IsNaN(y) {
				continue
			}
			xmin = math.Min(xmin, x)
			xmax = math.Max(xmax, x)
			ymin = math.Min(ymin, y)
			ymax = math.Max(ymax, y)
		}
	}
	return [4]float64{xmin, xmax, ymin, ymax}, nil
}

// applyHalfHeight replaces the cross-dispersion extent of bounds with
// center +/- hh, where center is the source position dispersed at the
// order's mean wavelength. Point sources only.
func applyHalfHeight(skyToGrism Transform, model *exposure.Exposure, obj catalog.SkyObject, order int, lmin, lmax float64, hh int, bounds *[4]float64) error {
	midLam := (lmin + lmax) / 2
	out, err := skyToGrism.Eval([]float64{obj.SkyCentroid.RA, obj.SkyCentroid.Dec, midLam, float64(order)})
	if err != nil {
		return fmt.Errorf("object %d order %d: %w", obj.Label, order, err)
	}
	switch model.Meta.WCSInfo.DispersionDirection {
	case exposure.DispersionY:
		// Y disperses; X is the cross-dispersion axis.
		bounds[0] = out[0] - float64(hh)
		bounds[1] = out[0] + float64(hh)
	case exposure.DispersionX:
		bounds[2] = out[1] - float64(hh)
		bounds[3] = out[1] + float64(hh)
	default:
		return fmt.Errorf("%w: code %d", ErrDispersionDirection, model.Meta.WCSInfo.DispersionDirection)
	}
	return nil
}

// clipToSubarray tests an extraction box against the subarray extent
// [0, xsize-1] x [0, ysize-1]. The dispersion axis needs strictly
// positive overlap on both sides; the cross-dispersion axis allows
// boundary contact. A contained box with any corner outside the extent is
// a partial order.
func clipToSubarray(model *exposure.Exposure, ob OrderBounds) (exclude, partial bool) {
	xExt := model.Meta.Subarray.XSize - 1
	yExt := model.Meta.Subarray.YSize - 1

	// Corner points in (y, x) order, low then high.
	pts := [2][2]int{{ob.YMin, ob.XMin}, {ob.YMax, ob.XMax}}
	extent := [2][2]int{{0, 0}, {yExt, xExt}}

	dispCol, xdispCol := 0, 1
	if model.Meta.WCSInfo.DispersionDirection == exposure.DispersionX {
		dispCol, xdispCol = 1, 0
	}

	dispOK := pts[1][dispCol]-extent[0][dispCol] > 0 && extent[1][dispCol]-pts[0][dispCol] > 0
	xdispOK := pts[1][xdispCol]-extent[0][xdispCol] >= 0 && extent[1][xdispCol]-pts[0][xdispCol] >= 0

	if !dispOK || !xdispOK {
		return true, false
	}
	for _, p := range pts {
		if p[0] < extent[0][0] || p[0] > extent[1][0] || p[1] < extent[0][1] || p[1] > extent[1][1] {
			return false, true
		}
	}
	return false, false
}

// toIndex snaps a floating-point pixel coordinate to the nearest whole
// pixel index, rounding half-intervals up.
func toIndex(v float64) int {
	return int(math.Floor(v + 0.5))
}
