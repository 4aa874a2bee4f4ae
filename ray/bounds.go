package ray

import "github.com/LiangYue1981816/embree/types"

// Bounds is the caller visible bounding box record: two corners, each
// followed by one padding word.
type Bounds struct {
	LowerX, LowerY, LowerZ, Align0 float32
	UpperX, UpperY, UpperZ, Align1 float32
}

// LinearBounds holds the bounds at the start and end of the time interval.
type LinearBounds struct {
	Bounds0 Bounds
	Bounds1 Bounds
}

// BoundsFrom converts a box into its ABI record.
func BoundsFrom(b types.BBox) Bounds {
	return Bounds{
		LowerX: b.Lower[0], LowerY: b.Lower[1], LowerZ: b.Lower[2],
		UpperX: b.Upper[0], UpperY: b.Upper[1], UpperZ: b.Upper[2],
	}
}

// LinearBoundsFrom converts motion blur bounds into their ABI record.
func LinearBoundsFrom(lb types.LBBox) LinearBounds {
	return LinearBounds{Bounds0: BoundsFrom(lb.Bounds0), Bounds1: BoundsFrom(lb.Bounds1)}
}

// BBox converts the record back into a box.
func (b Bounds) BBox() types.BBox {
	return types.BBox{
		Lower: types.Vec3{b.LowerX, b.LowerY, b.LowerZ},
		Upper: types.Vec3{b.UpperX, b.UpperY, b.UpperZ},
	}
}
