package types

import "github.com/chewxy/math32"

// BBox is an axis aligned bounding box.
type BBox struct {
	Lower Vec3
	Upper Vec3
}

// LBBox holds the bounds at the start (Bounds0) and end (Bounds1) of the
// motion blur time interval. Static geometry stores the same box twice.
type LBBox struct {
	Bounds0 BBox
	Bounds1 BBox
}

// EmptyBBox returns an inverted box that any Extend call will overwrite.
func EmptyBBox() BBox {
	return BBox{
		Lower: Splat(math32.MaxFloat32),
		Upper: Splat(-math32.MaxFloat32),
	}
}

// EmptyLBBox returns a pair of empty boxes.
func EmptyLBBox() LBBox {
	return LBBox{Bounds0: EmptyBBox(), Bounds1: EmptyBBox()}
}

// PointBBox returns a degenerate box around p.
func PointBBox(p Vec3) BBox {
	return BBox{Lower: p, Upper: p}
}

// Empty reports whether the box encloses nothing.
func (b BBox) Empty() bool {
	return b.Lower[0] > b.Upper[0] || b.Lower[1] > b.Upper[1] || b.Lower[2] > b.Upper[2]
}

// Extend returns the union of b and o.
func (b BBox) Extend(o BBox) BBox {
	return BBox{Lower: MinVec3(b.Lower, o.Lower), Upper: MaxVec3(b.Upper, o.Upper)}
}

// ExtendPoint grows the box to include p.
func (b BBox) ExtendPoint(p Vec3) BBox {
	return BBox{Lower: MinVec3(b.Lower, p), Upper: MaxVec3(b.Upper, p)}
}

// Enlarge grows the box by r along every axis.
func (b BBox) Enlarge(r float32) BBox {
	return BBox{Lower: b.Lower.Sub(Splat(r)), Upper: b.Upper.Add(Splat(r))}
}

// Center returns the box centroid.
func (b BBox) Center() Vec3 {
	return b.Lower.Add(b.Upper).Mul(0.5)
}

// Size returns the box extent along each axis.
func (b BBox) Size() Vec3 {
	return b.Upper.Sub(b.Lower)
}

// HalfArea returns half of the box surface area; the SAH only needs ratios.
func (b BBox) HalfArea() float32 {
	if b.Empty() {
		return 0
	}
	d := b.Size()
	return d[0]*d[1] + d[1]*d[2] + d[0]*d[2]
}

// Contains reports whether p lies inside or on the box.
func (b BBox) Contains(p Vec3) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Lower[i] || p[i] > b.Upper[i] {
			return false
		}
	}
	return true
}

// IsFinite reports whether both corners are finite.
func (b BBox) IsFinite() bool {
	return b.Lower.IsFinite() && b.Upper.IsFinite()
}

// Corners returns the eight box corners.
func (b BBox) Corners() [8]Vec3 {
	var out [8]Vec3
	for i := 0; i < 8; i++ {
		for axis := 0; axis < 3; axis++ {
			if i&(1<<uint(axis)) != 0 {
				out[i][axis] = b.Upper[axis]
			} else {
				out[i][axis] = b.Lower[axis]
			}
		}
	}
	return out
}

// Static returns linear bounds that do not move over time.
func Static(b BBox) LBBox {
	return LBBox{Bounds0: b, Bounds1: b}
}

// Union returns a box enclosing both time steps.
func (lb LBBox) Union() BBox {
	return lb.Bounds0.Extend(lb.Bounds1)
}

// Extend merges two linear bounds per time step.
func (lb LBBox) Extend(o LBBox) LBBox {
	return LBBox{Bounds0: lb.Bounds0.Extend(o.Bounds0), Bounds1: lb.Bounds1.Extend(o.Bounds1)}
}

// Interpolate returns the bounds at time t in [0, 1].
func (lb LBBox) Interpolate(t float32) BBox {
	return BBox{
		Lower: lb.Bounds0.Lower.Lerp(lb.Bounds1.Lower, t),
		Upper: lb.Bounds0.Upper.Lerp(lb.Bounds1.Upper, t),
	}
}
