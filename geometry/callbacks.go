package geometry

import (
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/ray"
)

// FilterFunc inspects a candidate hit that was already written into r. It
// returns false to reject the hit.
type FilterFunc func(userData interface{}, r *ray.Ray) bool

// FilterFuncN inspects the candidate hits of the active lanes of a packet.
// Clearing an entry of valid rejects the hit of that lane.
type FilterFuncN func(valid []int32, userData interface{}, p *ray.RayN)

// BoundsFunc writes the bounds of item at timeStep into out.
type BoundsFunc func(userData interface{}, item int, timeStep int, out *ray.Bounds)

// IntersectFunc intersects r with item and updates its hit record.
type IntersectFunc func(userData interface{}, r *ray.Ray, item int)

// IntersectFuncN intersects the active lanes of a packet with item.
type IntersectFuncN func(valid []int32, userData interface{}, p *ray.RayN, item int)

// IntersectFunc1Mp intersects a stream of rays with item.
type IntersectFunc1Mp func(userData interface{}, rays []*ray.Ray, item int)

// OccludedFunc tests r against item and sets r.GeomID to ray.Occluded on
// a hit.
type OccludedFunc func(userData interface{}, r *ray.Ray, item int)

// OccludedFuncN tests the active lanes of a packet against item.
type OccludedFuncN func(valid []int32, userData interface{}, p *ray.RayN, item int)

// OccludedFunc1Mp tests a stream of rays against item.
type OccludedFunc1Mp func(userData interface{}, rays []*ray.Ray, item int)

// DisplacementFunc displaces the surface positions (px, py, pz) evaluated at
// (u, v) with normals (nx, ny, nz) of face primID.
type DisplacementFunc func(userData interface{}, geomID, primID uint32, u, v, nx, ny, nz, px, py, pz []float32)

// widthSlot maps a packet width to its callback slot; width 0 selects the
// generic N callback.
func widthSlot(width int) (int, error) {
	switch width {
	case 4:
		return 0, nil
	case 8:
		return 1, nil
	case 16:
		return 2, nil
	case 0:
		return 3, nil
	}
	return 0, device.Errorf(device.InvalidArgument, "invalid callback width %d", width)
}

// filterSet holds the filters for one query kind (intersection or
// occlusion).
type filterSet struct {
	fn1 FilterFunc
	fnN [4]FilterFuncN
}

func (fs *filterSet) empty() bool {
	if fs.fn1 != nil {
		return false
	}
	for _, fn := range fs.fnN {
		if fn != nil {
			return false
		}
	}
	return true
}

// selectN returns the packet filter matching the shape of the query.
func (fs *filterSet) selectN(ctx *ray.Context) FilterFuncN {
	switch ctx.Shape() {
	case ray.Packet:
		if slot, err := widthSlot(ctx.Width()); err == nil && fs.fnN[slot] != nil {
			return fs.fnN[slot]
		}
		return fs.fnN[3]
	case ray.StreamN, ray.Stream1M:
		return fs.fnN[3]
	}
	if fs.fn1 == nil {
		return fs.fnN[3]
	}
	return nil
}

// run applies the filter to the candidate hit in r. Packet filters receive
// a packet of the query width with only lane 0 active.
func (fs *filterSet) run(ctx *ray.Context, userData interface{}, r *ray.Ray) bool {
	if fnN := fs.selectN(ctx); fnN != nil {
		valid, p := lanePacket(ctx, r)
		fnN(valid, userData, p)
		if !ray.Active(valid, 0) {
			return false
		}
		*r = p.Get(0)
		return true
	}
	if fs.fn1 != nil {
		return fs.fn1(userData, r)
	}
	return true
}
