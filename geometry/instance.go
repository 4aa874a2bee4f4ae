package geometry

import (
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/types"
)

// transformed holds the per time step object to world transforms shared by
// both instance kinds.
type transformed struct {
	xfm [MaxTimeSteps]types.Affine
}

func (x *transformed) setTransform(b *Base, xfm types.Affine, timeStep int) error {
	if timeStep < 0 || timeStep >= b.timeSteps {
		return device.Errorf(device.InvalidArgument, "invalid time step %d", timeStep)
	}
	if err := b.checkMutable(); err != nil {
		return err
	}
	x.xfm[timeStep] = xfm
	b.setModified()
	return nil
}

// Transform returns the object to world transform at timeStep.
func (x *transformed) Transform(timeStep int) types.Affine {
	return x.xfm[timeStep]
}

// at returns the transform at ray time t.
func (x *transformed) at(timeSteps int, t float32) types.Affine {
	if timeSteps == 1 {
		return x.xfm[0]
	}
	return x.xfm[0].Lerp(x.xfm[1], t)
}

func (x *transformed) bounds(timeSteps int, lb types.LBBox) (types.LBBox, bool) {
	if lb.Union().Empty() {
		return types.LBBox{}, false
	}
	if timeSteps == 1 {
		return types.Static(x.xfm[0].XfmBBox(lb.Union())), true
	}
	return types.LBBox{
		Bounds0: x.xfm[0].XfmBBox(lb.Bounds0),
		Bounds1: x.xfm[1].XfmBBox(lb.Bounds1),
	}, true
}

// intersect traces r through target in object space. Hits are copied back
// and tagged with instID.
func (x *transformed) intersect(ctx *ray.Context, target Traversable, timeSteps int, instID uint32, r *ray.Ray) {
	inv := x.at(timeSteps, r.Time).Inverse()
	local := *r
	local.Org = inv.XfmPoint(r.Org)
	local.Dir = inv.XfmVector(r.Dir)
	local.GeomID = ray.InvalidGeometryID

	target.Intersect(ctx, &local)
	if !local.Hit() {
		return
	}
	r.TFar = local.TFar
	r.U, r.V = local.U, local.V
	r.Ng = local.Ng
	r.GeomID = local.GeomID
	r.PrimID = local.PrimID
	r.InstID = instID
}

func (x *transformed) occluded(ctx *ray.Context, target Traversable, timeSteps int, r *ray.Ray) bool {
	inv := x.at(timeSteps, r.Time).Inverse()
	local := *r
	local.Org = inv.XfmPoint(r.Org)
	local.Dir = inv.XfmVector(r.Dir)
	return target.Occluded(ctx, &local)
}

// SourceScene is the view of another scene needed by an Instance.
type SourceScene interface {
	Traversable
	Device() *device.Device
}

// Instance places a committed scene into another scene.
type Instance struct {
	Base
	transformed

	source SourceScene
}

// NewInstance creates an instance of source with an identity transform.
func NewInstance(owner Owner, id uint32, source SourceScene, numTimeSteps int) (*Instance, error) {
	if err := checkTimeSteps(numTimeSteps); err != nil {
		return nil, err
	}
	inst := &Instance{
		Base:   newBase(owner, InstanceType, id, Static, numTimeSteps),
		source: source,
	}
	for t := range inst.xfm {
		inst.xfm[t] = types.Identity()
	}
	return inst, nil
}

// Source returns the instanced scene.
func (i *Instance) Source() SourceScene { return i.source }

func (i *Instance) SetTransform(xfm types.Affine, timeStep int) error {
	return i.setTransform(&i.Base, xfm, timeStep)
}

func (i *Instance) NumPrims() int { return 1 }

func (i *Instance) PrimBounds(prim int) (types.LBBox, bool) {
	return i.bounds(i.timeSteps, i.source.LinearBounds())
}

func (i *Instance) Prepare() error { return nil }

func (i *Instance) Intersect(ctx *ray.Context, r *ray.Ray, prim uint32) {
	i.intersect(ctx, i.source, i.timeSteps, i.id, r)
}

func (i *Instance) Occluded(ctx *ray.Context, r *ray.Ray, prim uint32) bool {
	return i.occluded(ctx, i.source, i.timeSteps, r)
}

// GeometryInstance places another geometry of the same scene with its own
// transform. The referenced geometry is traced through a private
// acceleration structure supplied with SetAccel.
type GeometryInstance struct {
	Base
	transformed

	target Geometry
	accel  Traversable
}

// NewGeometryInstance creates an instance of target.
func NewGeometryInstance(owner Owner, id uint32, target Geometry) *GeometryInstance {
	gi := &GeometryInstance{
		Base:   newBase(owner, GeometryInstanceType, id, Static, 1),
		target: target,
	}
	gi.xfm[0] = types.Identity()
	return gi
}

// Target returns the instanced geometry.
func (gi *GeometryInstance) Target() Geometry { return gi.target }

// SetAccel installs the acceleration structure built over the target.
func (gi *GeometryInstance) SetAccel(accel Traversable) { gi.accel = accel }

func (gi *GeometryInstance) SetTransform(xfm types.Affine, timeStep int) error {
	return gi.setTransform(&gi.Base, xfm, timeStep)
}

func (gi *GeometryInstance) NumPrims() int { return 1 }

func (gi *GeometryInstance) PrimBounds(prim int) (types.LBBox, bool) {
	if gi.accel == nil {
		return types.LBBox{}, false
	}
	return gi.bounds(gi.timeSteps, gi.accel.LinearBounds())
}

func (gi *GeometryInstance) Prepare() error {
	if gi.target.Type() == GeometryInstanceType {
		return device.Errorf(device.InvalidOperation, "geometry instance %d references another geometry instance", gi.id)
	}
	return nil
}

func (gi *GeometryInstance) Intersect(ctx *ray.Context, r *ray.Ray, prim uint32) {
	if gi.accel != nil {
		gi.intersect(ctx, gi.accel, gi.timeSteps, gi.id, r)
	}
}

func (gi *GeometryInstance) Occluded(ctx *ray.Context, r *ray.Ray, prim uint32) bool {
	return gi.accel != nil && gi.occluded(ctx, gi.accel, gi.timeSteps, r)
}
