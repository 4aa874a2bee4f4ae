package ray

import (
	"github.com/LiangYue1981816/embree/types"
	"github.com/chewxy/math32"
)

// InvalidGeometryID marks a ray that did not hit anything. It is also passed
// to geometry constructors to request an automatically assigned ID.
const InvalidGeometryID = ^uint32(0)

// Ray is a single ray together with its hit record.
type Ray struct {
	Org   types.Vec3
	TNear float32

	Dir  types.Vec3
	Time float32

	TFar float32
	Mask uint32

	// Hit record; written by intersect queries.
	Ng     types.Vec3
	U, V   float32
	GeomID uint32
	PrimID uint32
	InstID uint32
}

// New returns a ray that covers [tnear, tfar] with every mask bit set and an
// empty hit record.
func New(org, dir types.Vec3, tnear, tfar float32) Ray {
	return Ray{
		Org:    org,
		Dir:    dir,
		TNear:  tnear,
		TFar:   tfar,
		Mask:   ^uint32(0),
		GeomID: InvalidGeometryID,
		PrimID: InvalidGeometryID,
		InstID: InvalidGeometryID,
	}
}

// Infinite returns a ray starting at org with an unbounded extent.
func Infinite(org, dir types.Vec3) Ray {
	return New(org, dir, 0, math32.Inf(1))
}

// Valid reports whether the ray describes a non-empty interval.
func (r *Ray) Valid() bool {
	return r.TNear <= r.TFar
}

// Hit reports whether the hit record holds an intersection.
func (r *Ray) Hit() bool {
	return r.GeomID != InvalidGeometryID
}

// Point returns the position at distance t along the ray.
func (r *Ray) Point(t float32) types.Vec3 {
	return r.Org.Add(r.Dir.Mul(t))
}

// ClearHit resets the hit record.
func (r *Ray) ClearHit() {
	r.Ng = types.Vec3{}
	r.U, r.V = 0, 0
	r.GeomID = InvalidGeometryID
	r.PrimID = InvalidGeometryID
	r.InstID = InvalidGeometryID
}

// Occluded is written to GeomID by occlusion queries that found a blocker.
const Occluded uint32 = 0
