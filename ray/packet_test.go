package ray

import (
	"testing"
	"unsafe"

	"github.com/LiangYue1981816/embree/types"
)

func TestNewRayNAlignment(t *testing.T) {
	for _, width := range []int{4, 8, 16} {
		p := NewRayN(width)
		if p.Len() != width {
			t.Fatalf("[width %d] expected packet length %d; got %d", width, width, p.Len())
		}
		if !PacketAligned(AlignedMask(width), p, width) {
			t.Fatalf("[width %d] expected aligned packet storage", width)
		}
	}

	// A mask that is offset by one lane breaks 16 byte alignment.
	mask := AlignedMask(8)
	if PacketAligned(mask[1:5], NewRayN(4), 4) {
		t.Fatal("expected misaligned mask to be detected")
	}
	if !Aligned(unsafe.Pointer(&mask[1]), PacketAlignment(1)) {
		t.Fatal("expected stream alignment to be 4 bytes")
	}
}

func TestRayNGetSet(t *testing.T) {
	p := NewRayN(4)
	for i := 0; i < 4; i++ {
		if p.GeomID[i] != InvalidGeometryID || p.Mask[i] != ^uint32(0) {
			t.Fatalf("expected lane %d to start with an empty hit record and full mask", i)
		}
	}

	r := New(types.Vec3{1, 2, 3}, types.Vec3{0, 0, 1}, 0.5, 10)
	r.Time = 0.25
	r.GeomID, r.PrimID, r.U, r.V = 7, 8, 0.1, 0.2
	p.Set(2, &r)

	if got := p.Get(2); got != r {
		t.Fatalf("expected %+v; got %+v", r, got)
	}

	view := p.Slice(2, 4)
	if view.Len() != 2 || view.GeomID[0] != 7 {
		t.Fatal("expected slice view to share storage")
	}
	view.SetOccluded(1)
	if p.GeomID[3] != Occluded {
		t.Fatalf("expected occluded flag to be written through the view; got %d", p.GeomID[3])
	}
}

func TestBoundsRecord(t *testing.T) {
	if size := unsafe.Sizeof(Bounds{}); size != 32 {
		t.Fatalf("expected bounds record to occupy 8 floats; got %d bytes", size)
	}
	if size := unsafe.Sizeof(LinearBounds{}); size != 64 {
		t.Fatalf("expected linear bounds record to occupy 16 floats; got %d bytes", size)
	}

	b := types.BBox{Lower: types.Vec3{-1, -2, -3}, Upper: types.Vec3{1, 2, 3}}
	if got := BoundsFrom(b).BBox(); got != b {
		t.Fatalf("expected %v; got %v", b, got)
	}
}

func TestContextBind(t *testing.T) {
	stats := &Stats{}
	user := &Context{Flags: Coherent, UserRayExt: "ext", Stats: stats}
	ctx := Bind(user, "scene", Packet, 8)

	if ctx.Flags != Coherent || ctx.UserRayExt != "ext" || ctx.Scene() != "scene" || ctx.Shape() != Packet || ctx.Width() != 8 {
		t.Fatalf("unexpected bound context %+v", ctx)
	}
	ctx.CountPrim()
	if stats.PrimTests.Load() != 1 {
		t.Fatal("expected prim counter to be shared with the user context")
	}

	if ctx = Bind(nil, nil, Single, 1); ctx.Flags != Incoherent || ctx.Stats != nil {
		t.Fatal("expected default flags for a nil context")
	}
	ctx.CountNode()
}
