package sphere

import (
	"errors"
	"math"
	"testing"
)

func TestWrapRAAcrossBorder(t *testing.T) {
	// Most samples sit just under 360, one just past the border; the
	// median is high, so the low value shifts up past 360.
	in := []float64{359.0, 358.0, 2.0}
	out := WrapRA(in)

	if out[2] != 362.0 {
		t.Errorf("low value = %v, want 362", out[2])
	}

	// All outputs must land in one contiguous 360 degree window.
	lo, hi := out[0], out[0]
	for _, v := range out {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi-lo > 180.0 {
		t.Errorf("wrapped values still straddle the border: %v", out)
	}

	// Input is untouched.
	if in[2] != 2.0 {
		t.Errorf("input slice modified: %v", in)
	}
}

func TestWrapRASymmetricStraddleUnchanged(t *testing.T) {
	// With equally many samples on each side of the border the median
	// lands mid-range and neither shift branch applies.
	in := []float64{359.0, 1.0, 358.0, 2.0}
	out := WrapRA(in)
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestWrapRANoDiscontinuity(t *testing.T) {
	in := []float64{10, 20, 30}
	out := WrapRA(in)
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("out[%d] = %v, want %v", i, out[i], in[i])
		}
	}
}

func TestWrapRAPreservesNaN(t *testing.T) {
	// The NaN stays put while the finite values wrap off a high median.
	out := WrapRA([]float64{359, math.NaN(), 358, 2})
	if !math.IsNaN(out[1]) {
		t.Errorf("NaN entry not preserved: %v", out)
	}
	if out[3] != 362 {
		t.Errorf("low value = %v, want 362", out[3])
	}
	if math.Abs(out[0]-out[3]) > 180 {
		t.Errorf("finite entries not wrapped: %v", out)
	}
}

func TestWrapRAHighMedian(t *testing.T) {
	// Median above 180: low outliers shift up by 360.
	out := WrapRA([]float64{359, 358, 1})
	if out[2] != 361 {
		t.Errorf("low outlier = %v, want 361", out[2])
	}
}

func TestSeparation(t *testing.T) {
	tests := []struct {
		name                 string
		ra1, dec1, ra2, dec2 float64
		want                 float64
	}{
		{"coincident", 10, 20, 10, 20, 0},
		{"pole to pole", 0, -90, 0, 90, 180},
		{"equator quarter", 0, 0, 90, 0, 90},
		{"one degree dec", 50, 10, 50, 11, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Separation(tc.ra1, tc.dec1, tc.ra2, tc.dec2)
			if math.Abs(got-tc.want) > 1e-10 {
				t.Errorf("Separation = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCalcRotationMatrixOrthogonal(t *testing.T) {
	for _, vparity := range []int{1, -1} {
		for _, roll := range []float64{0, 0.3, -1.2, math.Pi} {
			pc, err := CalcRotationMatrix(roll, 0.1, vparity)
			if err != nil {
				t.Fatalf("CalcRotationMatrix(%v, 0.1, %d): %v", roll, vparity, err)
			}
			det := pc[0]*pc[3] - pc[1]*pc[2]
			if math.Abs(math.Abs(det)-1) > 1e-12 {
				t.Errorf("det = %v, want +/-1", det)
			}
			// Rows are unit length.
			if r := math.Hypot(pc[0], pc[1]); math.Abs(r-1) > 1e-12 {
				t.Errorf("row norm = %v, want 1", r)
			}
		}
	}
}

func TestCalcRotationMatrixBadParity(t *testing.T) {
	_, err := CalcRotationMatrix(0, 0, 0)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
	_, err = CalcRotationMatrix(0, 0, 2)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}
