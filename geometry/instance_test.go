package geometry

import (
	"testing"

	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/types"
)

// unitBoxScene reports a hit at t = 1 for every ray and remembers the object
// space ray it was traced with.
type unitBoxScene struct {
	last ray.Ray
}

func (s *unitBoxScene) Intersect(ctx *ray.Context, r *ray.Ray) {
	s.last = *r
	r.TFar, r.GeomID, r.PrimID = 1, 5, 6
}

func (s *unitBoxScene) Occluded(ctx *ray.Context, r *ray.Ray) bool {
	s.last = *r
	return true
}

func (s *unitBoxScene) LinearBounds() types.LBBox {
	return types.Static(types.BBox{Upper: types.Splat(1)})
}

func (s *unitBoxScene) Device() *device.Device { return nil }

func TestInstanceIntersect(t *testing.T) {
	src := &unitBoxScene{}
	inst, err := NewInstance(nil, 2, src, 1)
	if err != nil {
		t.Fatal(err)
	}
	if err = inst.SetTransform(types.Translate(types.Vec3{10, 0, 0}), 0); err != nil {
		t.Fatal(err)
	}
	if err = inst.SetTransform(types.Identity(), 1); device.CodeOf(err) != device.InvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT for time step 1; got %v", err)
	}

	lb, ok := inst.PrimBounds(0)
	if !ok {
		t.Fatal("expected instance bounds to be valid")
	}
	if exp := (types.BBox{Lower: types.Vec3{10, 0, 0}, Upper: types.Vec3{11, 1, 1}}); lb.Bounds0 != exp {
		t.Fatalf("expected bounds %v; got %v", exp, lb.Bounds0)
	}

	r := ray.Infinite(types.Vec3{10, 0, -1}, types.Vec3{0, 0, 1})
	inst.Intersect(ray.Bind(nil, nil, ray.Single, 1), &r, 0)
	if src.last.Org != (types.Vec3{0, 0, -1}) {
		t.Fatalf("expected object space origin (0, 0, -1); got %v", src.last.Org)
	}
	if src.last.GeomID != ray.InvalidGeometryID {
		t.Fatal("expected nested query to start without a hit")
	}
	if r.GeomID != 5 || r.PrimID != 6 || r.InstID != 2 || r.TFar != 1 {
		t.Fatalf("expected hit (geom 5, prim 6, inst 2) at t=1; got %+v", r)
	}
}

func TestInstanceMotionBlur(t *testing.T) {
	src := &unitBoxScene{}
	inst, err := NewInstance(nil, 0, src, 2)
	if err != nil {
		t.Fatal(err)
	}
	inst.SetTransform(types.Translate(types.Vec3{0, 0, 0}), 0)
	inst.SetTransform(types.Translate(types.Vec3{4, 0, 0}), 1)

	r := ray.Infinite(types.Vec3{2, 0, -1}, types.Vec3{0, 0, 1})
	r.Time = 0.5
	if !inst.Occluded(ray.Bind(nil, nil, ray.Single, 1), &r, 0) {
		t.Fatal("expected occlusion to be delegated")
	}
	if src.last.Org != (types.Vec3{0, 0, -1}) {
		t.Fatalf("expected transform to be interpolated at t=0.5; got origin %v", src.last.Org)
	}

	lb, _ := inst.PrimBounds(0)
	if lb.Bounds1.Lower[0] != 4 {
		t.Fatalf("expected end bounds to use the second transform; got %v", lb.Bounds1)
	}
}

func TestGeometryInstance(t *testing.T) {
	target := unitQuad(t, nil)
	gi := NewGeometryInstance(nil, 1, target)
	if gi.Target() != Geometry(target) {
		t.Fatal("expected target to be kept")
	}
	if _, ok := gi.PrimBounds(0); ok {
		t.Fatal("expected bounds to be invalid until an accel is set")
	}

	accel := &unitBoxScene{}
	gi.SetAccel(accel)
	gi.SetTransform(types.Scale(types.Splat(2)), 0)

	r := ray.Infinite(types.Vec3{0, 0, -2}, types.Vec3{0, 0, 1})
	gi.Intersect(ray.Bind(nil, nil, ray.Single, 1), &r, 0)
	if r.InstID != 1 || r.GeomID != 5 {
		t.Fatalf("expected hit tagged with instance 1; got %+v", r)
	}
	if accel.last.Org != (types.Vec3{0, 0, -1}) {
		t.Fatalf("expected object space origin (0, 0, -1); got %v", accel.last.Org)
	}

	nested := NewGeometryInstance(nil, 2, gi)
	if err := nested.Prepare(); device.CodeOf(err) != device.InvalidOperation {
		t.Fatalf("expected INVALID_OPERATION for nested geometry instance; got %v", err)
	}
}

func TestGroupValidation(t *testing.T) {
	a := unitQuad(t, nil)
	b := unitQuad(t, nil)
	q, _ := NewQuadMesh(nil, 2, Static, 0, 0, 1)

	if _, err := NewGroup(nil, 3, Static, []Geometry{a, q}); device.CodeOf(err) != device.InvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT for mixed kinds; got %v", err)
	}

	g, err := NewGroup(nil, 3, Static, []Geometry{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if _, err = NewGroup(nil, 4, Static, []Geometry{g}); device.CodeOf(err) != device.InvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT for nested group; got %v", err)
	}

	if _, ok := g.PrimBounds(0); ok {
		t.Fatal("expected group without accel to have no bounds")
	}
	g.SetAccel(&unitBoxScene{})
	if _, ok := g.PrimBounds(0); !ok {
		t.Fatal("expected group bounds once the accel is built")
	}

	if len(g.Members()) != 2 || g.NumPrims() != 1 {
		t.Fatalf("expected a single build primitive for 2 members; got %d members", len(g.Members()))
	}
}
