package wcs

import "math"

// AxisOrder selects the interval ordering of a derived bounding box.
type AxisOrder int

const (
	// COrder lists intervals (y, x), matching row-major array axes.
	COrder AxisOrder = iota
	// FOrder lists intervals (x, y).
	FOrder
)

// Interval is a closed (min, max) range along one pixel axis.
type Interval struct {
	Min float64
	Max float64
}

// BoundingBox is the pixel-domain extent of a transform chain. Intervals
// are 0-based pixel-center coordinates padded by half a pixel, so a full
// nx-wide axis spans (-0.5, nx-0.5).
type BoundingBox struct {
	X Interval
	Y Interval
}

// Contains reports whether the pixel position (x, y) lies inside the box.
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.X.Min && x <= b.X.Max && y >= b.Y.Min && y <= b.Y.Max
}

// BBoxFromShape derives a half-pixel-padded bounding box from the trailing
// two dimensions of an array shape, in (x, y) form suitable for attachment
// to a chain.
func BBoxFromShape(ny, nx int) BoundingBox {
	return BoundingBox{
		X: Interval{Min: -0.5, Max: float64(nx) - 0.5},
		Y: Interval{Min: -0.5, Max: float64(ny) - 0.5},
	}
}

// TransformBBoxFromShape derives the same half-pixel-padded box as
// BBoxFromShape but as an ordered interval pair for attachment to a bare
// transform: (y, x) for COrder, (x, y) for FOrder.
func TransformBBoxFromShape(ny, nx int, order AxisOrder) [2]Interval {
	yiv := Interval{Min: -0.5, Max: float64(ny) - 0.5}
	xiv := Interval{Min: -0.5, Max: float64(nx) - 0.5}
	if order == FOrder {
		return [2]Interval{xiv, yiv}
	}
	return [2]Interval{yiv, xiv}
}

// BoundingBoxFromSubarray sizes a half-pixel-padded box from subarray
// xsize/ysize metadata. The box is in full-frame 0-based coordinates; a
// missing size (<= 0) yields a degenerate (-0.5, -0.5) interval.
func BoundingBoxFromSubarray(xsize, ysize int, order AxisOrder) [2]Interval {
	xiv := Interval{Min: -0.5, Max: -0.5}
	yiv := Interval{Min: -0.5, Max: -0.5}
	if xsize > 0 {
		xiv.Max = float64(xsize) - 0.5
	}
	if ysize > 0 {
		yiv.Max = float64(ysize) - 0.5
	}
	if order == FOrder {
		return [2]Interval{xiv, yiv}
	}
	return [2]Interval{yiv, xiv}
}

// SubarrayBoundingBox is BoundingBoxFromSubarray in the (x, y) struct form
// used for chain attachment.
func SubarrayBoundingBox(xsize, ysize int) BoundingBox {
	iv := BoundingBoxFromSubarray(xsize, ysize, FOrder)
	return BoundingBox{X: iv[0], Y: iv[1]}
}

// SubarrayTransform builds the subarray-to-full-frame pixel shift from
// 1-based subarray start metadata. Full-frame observations (start <= 1 on
// both axes) need no offset and return nil.
func SubarrayTransform(xstart, ystart int) Transform {
	var tx Transform = Identity{N: 1}
	var ty Transform = Identity{N: 1}

	if xstart > 1 {
		tx = Shift{Offset: float64(xstart - 1)}
	}
	if ystart > 1 {
		ty = Shift{Offset: float64(ystart - 1)}
	}
	if _, xid := tx.(Identity); xid {
		if _, yid := ty.(Identity); yid {
			return nil
		}
	}
	return Parallel{Parts: []Transform{tx, ty}}
}

// GridFromBoundingBox samples every whole-pixel position inside the box,
// returning parallel flattened x and y arrays (row-major over y).
func GridFromBoundingBox(b BoundingBox) (xs, ys []float64) {
	x0 := int(math.Ceil(b.X.Min))
	x1 := int(math.Floor(b.X.Max))
	y0 := int(math.Ceil(b.Y.Min))
	y1 := int(math.Floor(b.Y.Max))
	if x1 < x0 || y1 < y0 {
		return nil, nil
	}
	n := (x1 - x0 + 1) * (y1 - y0 + 1)
	xs = make([]float64, 0, n)
	ys = make([]float64, 0, n)
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			xs = append(xs, float64(x))
			ys = append(ys, float64(y))
		}
	}
	return xs, ys
}
