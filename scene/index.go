package scene

import (
	"github.com/LiangYue1981816/embree/accel"
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/geometry"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/types"
)

// maxPacketWidth is the widest packet any isa provides.
const maxPacketWidth = 16

// index is the immutable result of a successful commit. Queries only ever
// see a fully built index; a failed commit leaves the previous one in
// place.
type index struct {
	// Geometries by ID as captured at build time.
	geoms []geometry.Geometry

	// Top level accelerators, one per leaf kind present in the scene.
	accels []*accel.BVH

	// Accelerators owned by groups and geometry instances.
	private []*accel.BVH

	bounds types.LBBox

	// widths[w] is set if packets of width w may be traced.
	widths      [maxPacketWidth + 1]bool
	streamWidth int
}

// newIntersectorTable enables every packet width supported by isa that is
// also requested by aflags. A zero aflags requests everything.
func newIntersectorTable(idx *index, isa device.ISA, aflags AlgorithmFlags) {
	for _, w := range isa.PacketWidths() {
		if aflags == 0 || aflags&packetFlag(w) != 0 {
			idx.widths[w] = true
		}
	}
	idx.streamWidth = isa.NativeWidth()
}

// supports reports whether packets of the given width are enabled.
func (idx *index) supports(width int) bool {
	return width > 0 && width <= maxPacketWidth && idx.widths[width]
}

// Geometry implements accel.Source.
func (idx *index) Geometry(id uint32) geometry.Geometry {
	if int(id) < len(idx.geoms) {
		return idx.geoms[id]
	}
	return nil
}

// Intersect implements geometry.Traversable.
func (idx *index) Intersect(ctx *ray.Context, r *ray.Ray) {
	for _, a := range idx.accels {
		a.Intersect(ctx, r)
	}
}

// Occluded implements geometry.Traversable.
func (idx *index) Occluded(ctx *ray.Context, r *ray.Ray) bool {
	for _, a := range idx.accels {
		if a.Occluded(ctx, r) {
			return true
		}
	}
	return false
}

// LinearBounds implements geometry.Traversable.
func (idx *index) LinearBounds() types.LBBox {
	return idx.bounds
}

// IntersectN implements stream.Intersector.
func (idx *index) IntersectN(valid []int32, ctx *ray.Context, p *ray.RayN) {
	for i := range valid {
		if !ray.Active(valid, i) {
			continue
		}
		r := p.Get(i)
		if !r.Valid() {
			continue
		}
		idx.Intersect(ctx, &r)
		p.SetHit(i, &r)
	}
}

// OccludedN implements stream.Intersector.
func (idx *index) OccludedN(valid []int32, ctx *ray.Context, p *ray.RayN) {
	for i := range valid {
		if !ray.Active(valid, i) {
			continue
		}
		r := p.Get(i)
		if r.Valid() && idx.Occluded(ctx, &r) {
			p.SetOccluded(i)
		}
	}
}

// anyMapped reports whether a buffer of an indexed geometry is mapped.
func (idx *index) anyMapped() bool {
	for _, g := range idx.geoms {
		if g != nil && g.AnyMapped() {
			return true
		}
	}
	return false
}

// stats returns the build statistics of the top level accelerators.
func (idx *index) stats() []accel.Stats {
	out := make([]accel.Stats, 0, len(idx.accels))
	for _, a := range idx.accels {
		out = append(out, a.Stats())
	}
	return out
}

func (idx *index) release() {
	for _, a := range idx.accels {
		a.Release()
	}
	for _, a := range idx.private {
		a.Release()
	}
}
