//go:build rtdebug

package scene

import (
	"testing"
	"unsafe"

	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/geometry"
	"github.com/LiangYue1981816/embree/ray"
)

func committedQuad(t *testing.T, cfg string) (*Scene, uint32) {
	s := newScene(t, newDevice(t, cfg), Dynamic, 0)
	id := addQuad(t, s, 0)
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}
	return s, id
}

func TestMisalignedPackets(t *testing.T) {
	s, _ := committedQuad(t, "isa=avx512")

	specs := []struct {
		width     int
		intersect func([]int32, *ray.Context, *ray.RayN) error
		occluded  func([]int32, *ray.Context, *ray.RayN) error
	}{
		{4, s.Intersect4, s.Occluded4},
		{8, s.Intersect8, s.Occluded8},
		{16, s.Intersect16, s.Occluded16},
	}

	for _, spec := range specs {
		if !s.Device().ISA().Supports(spec.width) {
			t.Fatalf("[width %d] expected isa %s to support the width", spec.width, s.Device().ISA())
		}

		// Shifting the view by one lane moves every field off the
		// packet boundary.
		shifted := ray.NewRayN(2 * spec.width).Slice(1, 1+spec.width)
		if err := spec.intersect(ray.AlignedMask(spec.width), nil, shifted); device.CodeOf(err) != device.InvalidArgument {
			t.Fatalf("[width %d] expected intersect on a shifted packet to fail with INVALID_ARGUMENT; got %v", spec.width, err)
		}
		if err := spec.occluded(ray.AlignedMask(spec.width), nil, shifted); device.CodeOf(err) != device.InvalidArgument {
			t.Fatalf("[width %d] expected occluded on a shifted packet to fail with INVALID_ARGUMENT; got %v", spec.width, err)
		}
		if shifted.GeomID[0] != ray.InvalidGeometryID {
			t.Fatalf("[width %d] expected rejected packet to stay untouched; got geomID %d", spec.width, shifted.GeomID[0])
		}

		// An aligned packet with a shifted valid mask.
		valid := ray.AlignedMask(spec.width + 1)[1:]
		if err := spec.intersect(valid, nil, ray.NewRayN(spec.width)); device.CodeOf(err) != device.InvalidArgument {
			t.Fatalf("[width %d] expected a shifted valid mask to fail with INVALID_ARGUMENT; got %v", spec.width, err)
		}

		// Aligned packets still trace.
		if err := spec.intersect(ray.AlignedMask(spec.width), nil, ray.NewRayN(spec.width)); err != nil {
			t.Fatalf("[width %d] expected aligned packet to be accepted; got %v", spec.width, err)
		}
	}
}

// misalignedRays returns n rays backed by storage that does not start on a
// 4 byte boundary.
func misalignedRays(n int) []ray.Ray {
	size := int(unsafe.Sizeof(ray.Ray{}))
	buf := make([]byte, n*size+8)
	off := 1
	for ray.Aligned(unsafe.Pointer(&buf[off]), 4) {
		off++
	}
	rays := unsafe.Slice((*ray.Ray)(unsafe.Pointer(&buf[off])), n)
	for i := range rays {
		rays[i] = downRay(.5, .5)
	}
	return rays
}

func TestMisalignedStream(t *testing.T) {
	s, _ := committedQuad(t, "")
	rays := misalignedRays(2)

	expectCode(t, s.Intersect1M(nil, rays, 2, 1), device.InvalidArgument)
	expectCode(t, s.Occluded1M(nil, rays, 2, 1), device.InvalidArgument)
	expectCode(t, s.Intersect1M(nil, rays, 1, 1), device.InvalidArgument)
	expectCode(t, s.Intersect1(nil, &rays[0]), device.InvalidArgument)
	if rays[0].Hit() || rays[1].Hit() {
		t.Fatal("expected rejected stream to stay untouched")
	}

	aligned := []ray.Ray{downRay(.5, .5), downRay(.5, .5)}
	if err := s.Intersect1M(nil, aligned, 2, 1); err != nil {
		t.Fatal(err)
	}
	if !aligned[0].Hit() || !aligned[1].Hit() {
		t.Fatal("expected aligned stream to hit the quad")
	}
}

func TestQueryWhileMapped(t *testing.T) {
	s, id := committedQuad(t, "")
	if _, err := s.Map(id, geometry.VertexBuffer0); err != nil {
		t.Fatal(err)
	}

	r := downRay(.5, .5)
	expectCode(t, s.Intersect1(nil, &r), device.InvalidOperation)
	expectCode(t, s.Intersect4(ray.AlignedMask(4), nil, ray.NewRayN(4)), device.InvalidOperation)
	expectCode(t, s.Intersect1M(nil, []ray.Ray{r}, 1, 1), device.InvalidOperation)
	if _, err := s.Bounds(); device.CodeOf(err) != device.InvalidOperation {
		t.Fatalf("expected bounds of a mapped scene to fail with INVALID_OPERATION; got %v", err)
	}

	if err := s.Unmap(id, geometry.VertexBuffer0); err != nil {
		t.Fatal(err)
	}
	if err := s.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := s.Intersect1(nil, &r); err != nil {
		t.Fatal(err)
	}
	if !r.Hit() {
		t.Fatal("expected ray to hit the quad after unmapping")
	}
}
