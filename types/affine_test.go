package types

import (
	"testing"

	"github.com/chewxy/math32"
)

func vecApprox(a, b Vec3) bool {
	for i := 0; i < 3; i++ {
		if math32.Abs(a[i]-b[i]) > 1e-4 {
			return false
		}
	}
	return true
}

func TestConvertTransformLayouts(t *testing.T) {
	xfm := Affine{
		VX: Vec3{1, 2, 3},
		VY: Vec3{4, 5, 6},
		VZ: Vec3{7, 8, 9},
		P:  Vec3{10, 11, 12},
	}

	specs := []MatrixLayout{RowMajor, ColumnMajor, ColumnMajorAligned16}
	for _, layout := range specs {
		floats := xfm.Floats(layout)
		if len(floats) != layout.Floats() {
			t.Fatalf("[%s] expected %d floats; got %d", layout, layout.Floats(), len(floats))
		}
		got, ok := ConvertTransform(layout, floats)
		if !ok {
			t.Fatalf("[%s] expected conversion to succeed", layout)
		}
		if got != xfm {
			t.Fatalf("[%s] expected %v; got %v", layout, xfm, got)
		}
	}

	rowMajor := []float32{
		1, 0, 0, 5,
		0, 1, 0, 6,
		0, 0, 1, 7,
	}
	got, _ := ConvertTransform(RowMajor, rowMajor)
	if exp := (Vec3{5, 6, 7}); got.P != exp {
		t.Fatalf("expected row-major translation %v; got %v", exp, got.P)
	}

	if _, ok := ConvertTransform(MatrixLayout(42), rowMajor); ok {
		t.Fatal("expected unknown layout to be rejected")
	}
	if _, ok := ConvertTransform(ColumnMajorAligned16, rowMajor); ok {
		t.Fatal("expected short input to be rejected")
	}
}

func TestAffineInverse(t *testing.T) {
	xfm := QuatFromAxisAngle(Vec3{0, 1, 0}, 0.7).Affine(Vec3{1, -2, 3}).Mul(Scale(Vec3{2, 2, 2}))
	inv := xfm.Inverse()

	points := []Vec3{{0, 0, 0}, {1, 2, 3}, {-4, 0.5, 8}}
	for _, p := range points {
		if got := inv.XfmPoint(xfm.XfmPoint(p)); !vecApprox(got, p) {
			t.Fatalf("expected inverse to map back to %v; got %v", p, got)
		}
	}
}

func TestXfmBBox(t *testing.T) {
	b := BBox{Lower: Vec3{-1, -1, -1}, Upper: Vec3{1, 1, 1}}
	out := Translate(Vec3{10, 0, 0}).XfmBBox(b)
	if exp := (Vec3{9, -1, -1}); out.Lower != exp {
		t.Fatalf("expected lower %v; got %v", exp, out.Lower)
	}
	if exp := (Vec3{11, 1, 1}); out.Upper != exp {
		t.Fatalf("expected upper %v; got %v", exp, out.Upper)
	}

	if !Identity().XfmBBox(EmptyBBox()).Empty() {
		t.Fatal("expected empty box to stay empty")
	}
}
