package geometry

import (
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/types"
	"github.com/samber/lo"
)

// UserGeometry is a set of items whose bounds and intersection are supplied
// by callbacks.
type UserGeometry struct {
	Base

	numItems int

	bounds BoundsFunc

	intersect1   IntersectFunc
	intersectN   [4]IntersectFuncN
	intersect1Mp IntersectFunc1Mp

	occluded1   OccludedFunc
	occludedN   [4]OccludedFuncN
	occluded1Mp OccludedFunc1Mp
}

// NewUserGeometry creates a user geometry with numItems items.
func NewUserGeometry(owner Owner, id uint32, flags Flags, numItems, numTimeSteps int) (*UserGeometry, error) {
	if err := checkTimeSteps(numTimeSteps); err != nil {
		return nil, err
	}
	return &UserGeometry{
		Base:     newBase(owner, UserGeometryType, id, flags, numTimeSteps),
		numItems: numItems,
	}, nil
}

func (g *UserGeometry) SetBoundsFunc(fn BoundsFunc) error {
	g.bounds = fn
	g.setModified()
	return nil
}

// SetIntersectFunc sets the single ray intersect callback.
func (g *UserGeometry) SetIntersectFunc(fn IntersectFunc) {
	g.intersect1 = fn
	g.setModified()
}

// SetIntersectFuncN sets the packet intersect callback for width 4, 8 or 16
// or, with width 0, the generic stream callback.
func (g *UserGeometry) SetIntersectFuncN(width int, fn IntersectFuncN) error {
	slot, err := widthSlot(width)
	if err != nil {
		return err
	}
	g.intersectN[slot] = fn
	g.setModified()
	return nil
}

// SetIntersectFunc1Mp sets the callback used for streams of single rays.
func (g *UserGeometry) SetIntersectFunc1Mp(fn IntersectFunc1Mp) {
	g.intersect1Mp = fn
	g.setModified()
}

// SetOccludedFunc sets the single ray occlusion callback.
func (g *UserGeometry) SetOccludedFunc(fn OccludedFunc) {
	g.occluded1 = fn
	g.setModified()
}

// SetOccludedFuncN sets the packet occlusion callback; see SetIntersectFuncN.
func (g *UserGeometry) SetOccludedFuncN(width int, fn OccludedFuncN) error {
	slot, err := widthSlot(width)
	if err != nil {
		return err
	}
	g.occludedN[slot] = fn
	g.setModified()
	return nil
}

// SetOccludedFunc1Mp sets the occlusion callback for streams of single rays.
func (g *UserGeometry) SetOccludedFunc1Mp(fn OccludedFunc1Mp) {
	g.occluded1Mp = fn
	g.setModified()
}

func (g *UserGeometry) NumPrims() int {
	return g.numItems
}

func (g *UserGeometry) PrimBounds(prim int) (types.LBBox, bool) {
	var steps [MaxTimeSteps]types.BBox
	for t := 0; t < g.timeSteps; t++ {
		var out ray.Bounds
		g.bounds(g.userData, prim, t, &out)
		box := out.BBox()
		if box.Empty() || !box.IsFinite() {
			return types.LBBox{}, false
		}
		steps[t] = box
	}
	if g.timeSteps == 1 {
		return types.Static(steps[0]), true
	}
	return types.LBBox{Bounds0: steps[0], Bounds1: steps[1]}, true
}

func (g *UserGeometry) Prepare() error {
	if g.bounds == nil {
		return device.Errorf(device.InvalidOperation, "user geometry %d: bounds function not set", g.id)
	}
	if g.intersect1 == nil && g.intersect1Mp == nil && !lo.SomeBy(g.intersectN[:], func(fn IntersectFuncN) bool { return fn != nil }) {
		return device.Errorf(device.InvalidOperation, "user geometry %d: intersect function not set", g.id)
	}
	return nil
}

// packetSlot returns the callback slot that matches the query shape; -1
// selects the single ray callbacks.
func packetSlot(ctx *ray.Context) int {
	switch ctx.Shape() {
	case ray.Packet:
		slot, err := widthSlot(ctx.Width())
		if err != nil {
			return -1
		}
		return slot
	case ray.StreamN:
		return 3
	}
	return -1
}

// lanePacket wraps r into lane 0 of a packet of the query width.
func lanePacket(ctx *ray.Context, r *ray.Ray) ([]int32, *ray.RayN) {
	width := ctx.Width()
	if width < 1 {
		width = 1
	}
	p := ray.NewRayN(width)
	p.Set(0, r)
	valid := ray.AlignedMask(width)
	for i := 1; i < width; i++ {
		valid[i] = 0
	}
	return valid, p
}

// Intersect dispatches to the callback matching the query shape and falls
// back to the single ray callback.
func (g *UserGeometry) Intersect(ctx *ray.Context, r *ray.Ray, prim uint32) {
	if slot := packetSlot(ctx); slot >= 0 && g.intersectN[slot] != nil {
		valid, p := lanePacket(ctx, r)
		g.intersectN[slot](valid, g.userData, p, int(prim))
		*r = p.Get(0)
		return
	}
	if ctx.Shape() == ray.Stream1M && g.intersect1Mp != nil {
		g.intersect1Mp(g.userData, []*ray.Ray{r}, int(prim))
		return
	}
	if g.intersect1 != nil {
		g.intersect1(g.userData, r, int(prim))
	}
}

// Occluded reports whether the callbacks found a blocker for r.
func (g *UserGeometry) Occluded(ctx *ray.Context, r *ray.Ray, prim uint32) bool {
	probe := *r
	probe.GeomID = ray.InvalidGeometryID

	switch slot := packetSlot(ctx); {
	case slot >= 0 && g.occludedN[slot] != nil:
		valid, p := lanePacket(ctx, &probe)
		g.occludedN[slot](valid, g.userData, p, int(prim))
		probe.GeomID = p.GeomID[0]
	case ctx.Shape() == ray.Stream1M && g.occluded1Mp != nil:
		g.occluded1Mp(g.userData, []*ray.Ray{&probe}, int(prim))
	case g.occluded1 != nil:
		g.occluded1(g.userData, &probe, int(prim))
	default:
		// without occlusion callbacks fall back to a full intersection
		g.Intersect(ctx, &probe, prim)
		return probe.Hit()
	}
	return probe.GeomID == ray.Occluded
}
