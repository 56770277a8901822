package wcs

import (
	"fmt"
	"math"
)

// Frame is a named coordinate frame in a chain. AxesType entries are
// sphere.AxisSpatial / sphere.AxisSpectral strings (plus free-form types
// such as "ORDER" for grism chains).
type Frame struct {
	Name     string
	AxesType []string
}

// Step pairs a frame with the transform to the next frame in the chain.
// The final step carries a nil transform.
type Step struct {
	Frame     Frame
	Transform Transform
}

// WCS is an ordered chain of named frames connected by invertible
// transforms, with an optional pixel-domain bounding box. The chain is
// immutable after construction except for bounding-box attachment.
type WCS struct {
	steps []Step
	bbox  *BoundingBox
}

// New validates and assembles a chain. At least two frames are required;
// every step except the last must carry a transform.
func New(steps []Step) (*WCS, error) {
	if len(steps) < 2 {
		return nil, fmt.Errorf("chain needs at least two frames, got %d", len(steps))
	}
	for i, s := range steps[:len(steps)-1] {
		if s.Transform == nil {
			return nil, fmt.Errorf("step %q (%d) has no transform", s.Frame.Name, i)
		}
	}
	if steps[len(steps)-1].Transform != nil {
		return nil, fmt.Errorf("final frame %q must not carry a transform", steps[len(steps)-1].Frame.Name)
	}
	return &WCS{steps: steps}, nil
}

// AvailableFrames lists the chain's frame names in order.
func (w *WCS) AvailableFrames() []string {
	names := make([]string, len(w.steps))
	for i, s := range w.steps {
		names[i] = s.Frame.Name
	}
	return names
}

// InputFrame returns the first frame of the chain.
func (w *WCS) InputFrame() Frame { return w.steps[0].Frame }

// OutputFrame returns the last frame of the chain.
func (w *WCS) OutputFrame() Frame { return w.steps[len(w.steps)-1].Frame }

// OutputAxesTypes returns the axis types of the output frame.
func (w *WCS) OutputAxesTypes() []string { return w.OutputFrame().AxesType }

// BoundingBox returns the attached bounding box, or nil.
func (w *WCS) BoundingBox() *BoundingBox { return w.bbox }

// SetBoundingBox attaches a pixel-domain bounding box. This is the only
// mutation a chain supports; callers must not assume it is thread-safe.
func (w *WCS) SetBoundingBox(b BoundingBox) { w.bbox = &b }

func (w *WCS) frameIndex(name string) (int, error) {
	for i, s := range w.steps {
		if s.Frame.Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFrame, name)
}

// GetTransform composes the transform between two named frames, in either
// direction. Walking backwards inverts each intervening step.
func (w *WCS) GetTransform(from, to string) (Transform, error) {
	i, err := w.frameIndex(from)
	if err != nil {
		return nil, err
	}
	j, err := w.frameIndex(to)
	if err != nil {
		return nil, err
	}
	if i == j {
		return Identity{N: len(w.steps[i].Frame.AxesType)}, nil
	}
	if i < j {
		steps := make([]Transform, 0, j-i)
		for k := i; k < j; k++ {
			steps = append(steps, w.steps[k].Transform)
		}
		return Compose{Steps: steps}, nil
	}
	steps := make([]Transform, 0, i-j)
	for k := i - 1; k >= j; k-- {
		inv, err := w.steps[k].Transform.Inverse()
		if err != nil {
			return nil, fmt.Errorf("inverting %q->%q: %w", w.steps[k].Frame.Name, w.steps[k+1].Frame.Name, err)
		}
		steps = append(steps, inv)
	}
	return Compose{Steps: steps}, nil
}

// ForwardTransform is the full input-frame to output-frame transform.
func (w *WCS) ForwardTransform() Transform {
	steps := make([]Transform, 0, len(w.steps)-1)
	for _, s := range w.steps[:len(w.steps)-1] {
		steps = append(steps, s.Transform)
	}
	return Compose{Steps: steps}
}

// BackwardTransform is the full output-frame to input-frame transform.
func (w *WCS) BackwardTransform() (Transform, error) {
	return w.ForwardTransform().Inverse()
}

// Forward evaluates the chain input->output ignoring the bounding box.
func (w *WCS) Forward(pixel []float64) ([]float64, error) {
	return w.ForwardTransform().Eval(pixel)
}

// Call evaluates the chain input->output applying the bounding box: pixel
// positions outside the box yield all-NaN outputs rather than an error,
// matching how footprint sampling treats clipped regions.
func (w *WCS) Call(pixel []float64) ([]float64, error) {
	if w.bbox != nil && len(pixel) >= 2 && !w.bbox.Contains(pixel[0], pixel[1]) {
		out := make([]float64, w.ForwardTransform().NOut())
		for i := range out {
			out[i] = math.NaN()
		}
		return out, nil
	}
	return w.Forward(pixel)
}

// Invert maps output-frame coordinates back to the input frame. With
// withBoundingBox set, results outside the attached box come back as NaN;
// scale and fiducial computations pass false to avoid edge clipping.
func (w *WCS) Invert(world []float64, withBoundingBox bool) ([]float64, error) {
	back, err := w.BackwardTransform()
	if err != nil {
		return nil, err
	}
	pix, err := back.Eval(world)
	if err != nil {
		return nil, err
	}
	if withBoundingBox && w.bbox != nil && len(pix) >= 2 && !w.bbox.Contains(pix[0], pix[1]) {
		for i := range pix {
			pix[i] = math.NaN()
		}
	}
	return pix, nil
}

// Footprint evaluates the chain at the four corners of the bounding box
// and returns one output row per corner, ordered ll, lr, ur, ul.
func (w *WCS) Footprint() ([][]float64, error) {
	if w.bbox == nil {
		return nil, fmt.Errorf("no bounding box attached")
	}
	b := *w.bbox
	corners := [][2]float64{
		{b.X.Min, b.Y.Min},
		{b.X.Max, b.Y.Min},
		{b.X.Max, b.Y.Max},
		{b.X.Min, b.Y.Max},
	}
	out := make([][]float64, 0, 4)
	for _, c := range corners {
		in := make([]float64, w.ForwardTransform().NIn())
		in[0], in[1] = c[0], c[1]
		row, err := w.Forward(in)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}
