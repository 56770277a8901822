package wcs

import "testing"

func TestBBoxFromShape(t *testing.T) {
	b := BBoxFromShape(10, 20)
	if b.X.Min != -0.5 || b.X.Max != 19.5 {
		t.Errorf("X = %+v, want (-0.5, 19.5)", b.X)
	}
	if b.Y.Min != -0.5 || b.Y.Max != 9.5 {
		t.Errorf("Y = %+v, want (-0.5, 9.5)", b.Y)
	}
}

func TestBoundingBoxFromSubarrayOrder(t *testing.T) {
	c := BoundingBoxFromSubarray(2048, 64, COrder)
	if c[0].Max != 63.5 || c[1].Max != 2047.5 {
		t.Errorf("COrder = %+v, want ((-0.5, 63.5), (-0.5, 2047.5))", c)
	}
	f := BoundingBoxFromSubarray(2048, 64, FOrder)
	if f[0].Max != 2047.5 || f[1].Max != 63.5 {
		t.Errorf("FOrder = %+v, want ((-0.5, 2047.5), (-0.5, 63.5))", f)
	}
}

func TestSubarrayBoundingBoxDegenerate(t *testing.T) {
	b := SubarrayBoundingBox(0, 32)
	if b.X.Min != -0.5 || b.X.Max != -0.5 {
		t.Errorf("missing xsize gave X = %+v, want degenerate (-0.5, -0.5)", b.X)
	}
	if b.Y.Max != 31.5 {
		t.Errorf("Y.Max = %v, want 31.5", b.Y.Max)
	}
}

func TestSubarrayTransform(t *testing.T) {
	if tr := SubarrayTransform(1, 1); tr != nil {
		t.Errorf("full frame gave %v, want nil", tr)
	}
	if tr := SubarrayTransform(0, 0); tr != nil {
		t.Errorf("unset starts gave %v, want nil", tr)
	}

	tr := SubarrayTransform(101, 1)
	if tr == nil {
		t.Fatal("subarray start gave nil transform")
	}
	out := evalOne(t, tr, []float64{5, 7})
	assertVec(t, out, []float64{105, 7}, 0)

	tr = SubarrayTransform(101, 201)
	out = evalOne(t, tr, []float64{5, 7})
	assertVec(t, out, []float64{105, 207}, 0)
}

func TestGridFromBoundingBox(t *testing.T) {
	xs, ys := GridFromBoundingBox(BBoxFromShape(2, 3))
	if len(xs) != 6 || len(ys) != 6 {
		t.Fatalf("grid size = %d/%d, want 6", len(xs), len(ys))
	}
	if xs[0] != 0 || ys[0] != 0 {
		t.Errorf("first sample = (%v, %v), want (0, 0)", xs[0], ys[0])
	}
	if xs[5] != 2 || ys[5] != 1 {
		t.Errorf("last sample = (%v, %v), want (2, 1)", xs[5], ys[5])
	}

	// Degenerate interval yields no samples.
	xs, ys = GridFromBoundingBox(BoundingBox{X: Interval{Min: 1, Max: 0}, Y: Interval{Min: 0, Max: 1}})
	if xs != nil || ys != nil {
		t.Errorf("degenerate box sampled %d points", len(xs))
	}
}

func TestBoundingBoxContains(t *testing.T) {
	b := BBoxFromShape(10, 10)
	tests := []struct {
		x, y float64
		want bool
	}{
		{0, 0, true},
		{9.5, 9.5, true}, // boundary is inside
		{-0.5, 0, true},
		{9.51, 0, false},
		{0, -0.6, false},
	}
	for _, tc := range tests {
		if got := b.Contains(tc.x, tc.y); got != tc.want {
			t.Errorf("Contains(%v, %v) = %v, want %v", tc.x, tc.y, got, tc.want)
		}
	}
}
