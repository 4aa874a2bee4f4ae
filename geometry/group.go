package geometry

import (
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/types"
)

// Group bundles geometries of one kind that are built and traced as a unit.
// Members are not traced on their own.
type Group struct {
	Base

	members []Geometry
	accel   Traversable
}

// NewGroup creates a group. Members must share one kind and must not be
// groups themselves.
func NewGroup(owner Owner, id uint32, flags Flags, members []Geometry) (*Group, error) {
	for _, m := range members {
		if m.Type() == GroupType {
			return nil, device.Errorf(device.InvalidArgument, "geometry groups cannot contain other geometry groups")
		}
		if m.Type() != members[0].Type() {
			return nil, device.Errorf(device.InvalidArgument, "geometries inside group have to be of same type")
		}
	}
	return &Group{
		Base:    newBase(owner, GroupType, id, flags, 1),
		members: members,
	}, nil
}

// Members returns the grouped geometries.
func (g *Group) Members() []Geometry { return g.members }

// SetAccel installs the acceleration structure built over the members.
func (g *Group) SetAccel(accel Traversable) { g.accel = accel }

func (g *Group) NumPrims() int { return 1 }

func (g *Group) PrimBounds(prim int) (types.LBBox, bool) {
	if g.accel == nil || len(g.members) == 0 {
		return types.LBBox{}, false
	}
	lb := g.accel.LinearBounds()
	if lb.Union().Empty() {
		return types.LBBox{}, false
	}
	return lb, true
}

// Prepare is a no-op; members are validated when the group is created and
// stay referenced (even after deletion) for as long as the group lives.
func (g *Group) Prepare() error { return nil }

func (g *Group) Intersect(ctx *ray.Context, r *ray.Ray, prim uint32) {
	if g.accel != nil {
		g.accel.Intersect(ctx, r)
	}
}

func (g *Group) Occluded(ctx *ray.Context, r *ray.Ray, prim uint32) bool {
	return g.accel != nil && g.accel.Occluded(ctx, r)
}
