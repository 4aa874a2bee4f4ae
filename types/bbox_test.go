package types

import "testing"

func TestBBoxExtend(t *testing.T) {
	b := EmptyBBox()
	if !b.Empty() {
		t.Fatal("expected new box to be empty")
	}
	if b.HalfArea() != 0 {
		t.Fatalf("expected empty box half area to be 0; got %f", b.HalfArea())
	}

	b = b.ExtendPoint(Vec3{1, 2, 3}).ExtendPoint(Vec3{-1, 0, 5})
	if exp := (BBox{Lower: Vec3{-1, 0, 3}, Upper: Vec3{1, 2, 5}}); b != exp {
		t.Fatalf("expected %v; got %v", exp, b)
	}
	if exp := float32(2*2 + 2*2 + 2*2); b.HalfArea() != exp {
		t.Fatalf("expected half area %f; got %f", exp, b.HalfArea())
	}
	if !b.Contains(Vec3{0, 1, 4}) || b.Contains(Vec3{0, 1, 6}) {
		t.Fatal("containment check failed")
	}
}

func TestLBBox(t *testing.T) {
	b0 := BBox{Lower: Vec3{0, 0, 0}, Upper: Vec3{1, 1, 1}}
	b1 := BBox{Lower: Vec3{2, 0, 0}, Upper: Vec3{3, 1, 1}}
	lb := LBBox{Bounds0: b0, Bounds1: b1}

	if exp := (BBox{Lower: Vec3{0, 0, 0}, Upper: Vec3{3, 1, 1}}); lb.Union() != exp {
		t.Fatalf("expected union %v; got %v", exp, lb.Union())
	}
	if exp := (BBox{Lower: Vec3{1, 0, 0}, Upper: Vec3{2, 1, 1}}); lb.Interpolate(0.5) != exp {
		t.Fatalf("expected interpolated box %v; got %v", exp, lb.Interpolate(0.5))
	}
	if s := Static(b0); s.Bounds0 != s.Bounds1 {
		t.Fatal("expected static bounds to be equal at both time steps")
	}
}
