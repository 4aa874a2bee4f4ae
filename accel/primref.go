package accel

import (
	"github.com/LiangYue1981816/embree/geometry"
	"github.com/LiangYue1981816/embree/types"
)

// PrimRef references one build primitive of a scene geometry together with
// its linear bounds.
type PrimRef struct {
	Bounds types.LBBox
	GeomID uint32
	PrimID uint32
}

// BBox returns a box enclosing the primitive over the whole time interval.
func (p *PrimRef) BBox() types.BBox {
	return p.Bounds.Union()
}

// Center returns the centroid used for partitioning.
func (p *PrimRef) Center() types.Vec3 {
	return p.Bounds.Union().Center()
}

// Source resolves the geometry IDs stored in primitive references.
type Source interface {
	Geometry(id uint32) geometry.Geometry
}

// CollectPrims appends a reference for every valid primitive of g to prims.
// Primitives with invalid bounds are skipped.
func CollectPrims(prims []PrimRef, g geometry.Geometry) []PrimRef {
	for i := 0; i < g.NumPrims(); i++ {
		lb, ok := g.PrimBounds(i)
		if !ok {
			continue
		}
		prims = append(prims, PrimRef{Bounds: lb, GeomID: g.ID(), PrimID: uint32(i)})
	}
	return prims
}
