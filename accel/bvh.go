package accel

import (
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/geometry"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/types"
	"github.com/chewxy/math32"
)

// BVH is a bounding volume hierarchy over primitives of a single leaf kind.
// Primitive data lives in packed leaf blocks inside an arena.
type BVH struct {
	layout Layout
	src    Source

	nodes  []Node
	leaves []Leaf
	arena  *Arena

	bounds types.LBBox
	stats  Stats
}

// Stats describes the size of a built BVH.
type Stats struct {
	Kind     Kind
	Prims    int
	Nodes    int
	Leaves   int
	Blocks   int
	Bytes    int
	MaxDepth int
	Scoring  ScoreMode
}

// Build constructs a BVH over prims. Leaves hold at least one block of
// layout.M primitives before the builder attempts to split them.
func Build(dev *device.Device, layout Layout, prims []PrimRef, src Source, mode ScoreMode) (*BVH, error) {
	bvh := &BVH{
		layout: layout,
		src:    src,
		arena:  NewArena(dev),
		bounds: types.EmptyLBBox(),
	}

	// Every primitive is stored exactly once so the arena size is known
	// up front whenever leaves are filled completely.
	if err := bvh.arena.Reserve(layout.Bytes(len(prims))); err != nil {
		return nil, err
	}

	nodes, stats, err := BuildBVH(prims, layout.M, 8*layout.M, mode, func(leaf *Node, items []PrimRef) error {
		encoded, err := layout.CreateLeaf(bvh.arena, items, src)
		if err != nil {
			return err
		}
		leaf.SetLeaf(uint32(len(bvh.leaves)), len(items))
		bvh.leaves = append(bvh.leaves, encoded)
		bvh.stats.Blocks += layout.Blocks(len(items))
		return nil
	})
	if err != nil {
		bvh.arena.Release()
		return nil, err
	}

	bvh.nodes = nodes
	if len(nodes) > 0 {
		bvh.bounds = nodes[0].Bounds
	}
	bvh.stats.Kind = layout.Kind
	bvh.stats.Prims = len(prims)
	bvh.stats.Nodes = stats.Nodes
	bvh.stats.Leaves = stats.Leaves
	bvh.stats.MaxDepth = stats.MaxDepth
	bvh.stats.Scoring = mode
	bvh.stats.Bytes = bvh.arena.Len()
	return bvh, nil
}

// Layout returns the leaf layout.
func (bvh *BVH) Layout() Layout { return bvh.layout }

// Stats returns the size of the BVH.
func (bvh *BVH) Stats() Stats { return bvh.stats }

// LinearBounds returns the bounds of all primitives.
func (bvh *BVH) LinearBounds() types.LBBox { return bvh.bounds }

// Empty reports whether the BVH holds no primitives.
func (bvh *BVH) Empty() bool { return len(bvh.nodes) == 0 }

// Release frees the leaf arena.
func (bvh *BVH) Release() {
	bvh.arena.Release()
	bvh.nodes = nil
	bvh.leaves = nil
}

// Blocks returns the packed blocks of leaf i.
func (bvh *BVH) Blocks(i int) []Block {
	leaf := bvh.leaves[i]
	return bvh.layout.Decode(bvh.arena.Bytes(leaf.Offset, leaf.Size), leaf.Count)
}

// slab returns true if the ray segment [tnear, tfar] overlaps box.
func slab(org, rdir types.Vec3, tnear, tfar float32, box types.BBox) bool {
	for axis := 0; axis < 3; axis++ {
		t0 := (box.Lower[axis] - org[axis]) * rdir[axis]
		t1 := (box.Upper[axis] - org[axis]) * rdir[axis]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		// 0 * inf produces NaN for rays parallel to a slab that starts
		// on its boundary; NaN comparisons leave the interval untouched.
		if t0 > tnear {
			tnear = t0
		}
		if t1 < tfar {
			tfar = t1
		}
		if tnear > tfar {
			return false
		}
	}
	return true
}

// traverse visits the leaves whose bounds overlap the ray. visit returns
// false to stop the traversal.
func (bvh *BVH) traverse(ctx *ray.Context, r *ray.Ray, visit func(leaf int) bool) {
	if len(bvh.nodes) == 0 {
		return
	}

	rdir := types.Vec3{1 / r.Dir[0], 1 / r.Dir[1], 1 / r.Dir[2]}
	var stackBuf [64]uint32
	stack := append(stackBuf[:0], 0)
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := &bvh.nodes[idx]
		ctx.CountNode()
		box := node.Bounds.Bounds0
		if bvh.layout.TimeSteps > 1 {
			box = node.Bounds.Interpolate(r.Time)
		}
		if !slab(r.Org, rdir, r.TNear, r.TFar, box) {
			continue
		}

		if node.IsLeaf() {
			leaf, _ := node.Leaf()
			if !visit(int(leaf)) {
				return
			}
			continue
		}
		left, right := node.Children()
		stack = append(stack, right, left)
	}
}

// Intersect finds the closest hit along r and records it in the hit
// record.
func (bvh *BVH) Intersect(ctx *ray.Context, r *ray.Ray) {
	bvh.traverse(ctx, r, func(leaf int) bool {
		for _, block := range bvh.Blocks(leaf) {
			for i := 0; i < block.Count; i++ {
				bvh.intersectPrim(ctx, r, block, i)
			}
		}
		return true
	})
}

// Occluded reports whether any primitive blocks r.
func (bvh *BVH) Occluded(ctx *ray.Context, r *ray.Ray) bool {
	var occluded bool
	bvh.traverse(ctx, r, func(leaf int) bool {
		for _, block := range bvh.Blocks(leaf) {
			for i := 0; i < block.Count; i++ {
				if bvh.occludedPrim(ctx, r, block, i) {
					occluded = true
					return false
				}
			}
		}
		return true
	})
	return occluded
}

// candidate tests primitive i of block against r and returns the hit record
// the primitive would produce.
func (bvh *BVH) candidate(ctx *ray.Context, r *ray.Ray, g geometry.Geometry, block Block, i int) (ray.Ray, bool) {
	ctx.CountPrim()

	var h hit
	var ok bool
	switch block.Kind {
	case KindTriangles, KindSubdiv:
		h, ok = intersectTriangle(r, block.VertexAt(i, 0, r.Time).Vec3(), block.VertexAt(i, 1, r.Time).Vec3(), block.VertexAt(i, 2, r.Time).Vec3())
	case KindQuads:
		h, ok = intersectQuad(r, block.VertexAt(i, 0, r.Time).Vec3(), block.VertexAt(i, 1, r.Time).Vec3(), block.VertexAt(i, 2, r.Time).Vec3(), block.VertexAt(i, 3, r.Time).Vec3())
	case KindLines:
		h, ok = intersectSegment(r, block.VertexAt(i, 0, r.Time), block.VertexAt(i, 1, r.Time))
	case KindCurves:
		var cp [4]types.Vec4
		for v := range cp {
			cp[v] = block.VertexAt(i, v, r.Time)
		}
		h, ok = intersectCurve(r, g.(*geometry.Curves).Basis(), cp[:])
	}
	if !ok {
		return ray.Ray{}, false
	}

	primID := block.PrimID(i)
	if m, isMapped := g.(geometry.HitMapper); isMapped {
		primID = m.HitPrimID(primID)
	}
	cand := *r
	cand.TFar = h.t
	cand.U, cand.V = h.u, h.v
	cand.Ng = h.ng
	cand.GeomID = g.ID()
	cand.PrimID = primID
	cand.InstID = ray.InvalidGeometryID
	return cand, true
}

func (bvh *BVH) intersectPrim(ctx *ray.Context, r *ray.Ray, block Block, i int) {
	g := bvh.src.Geometry(block.GeomID(i))
	if g.Mask()&r.Mask == 0 {
		return
	}
	if p, ok := g.(geometry.Procedural); ok && block.Verts == 0 {
		ctx.CountPrim()
		p.Intersect(ctx, r, block.PrimID(i))
		return
	}

	cand, ok := bvh.candidate(ctx, r, g, block, i)
	if !ok {
		return
	}
	if f, ok := g.(geometry.Filterer); ok && !f.FilterIntersection(ctx, &cand) {
		return
	}
	*r = cand
}

func (bvh *BVH) occludedPrim(ctx *ray.Context, r *ray.Ray, block Block, i int) bool {
	g := bvh.src.Geometry(block.GeomID(i))
	if g.Mask()&r.Mask == 0 {
		return false
	}
	if p, ok := g.(geometry.Procedural); ok && block.Verts == 0 {
		ctx.CountPrim()
		return p.Occluded(ctx, r, block.PrimID(i))
	}

	cand, ok := bvh.candidate(ctx, r, g, block, i)
	if !ok {
		return false
	}
	if f, ok := g.(geometry.Filterer); ok {
		return f.FilterOcclusion(ctx, &cand)
	}
	return true
}

// hit is the output of a primitive intersector.
type hit struct {
	t, u, v float32
	ng      types.Vec3
}

// inRange reports whether t lies inside the current ray segment.
func inRange(r *ray.Ray, t float32) bool {
	return t >= r.TNear && t < r.TFar
}

// intersectTriangle implements the Moller-Trumbore test.
func intersectTriangle(r *ray.Ray, v0, v1, v2 types.Vec3) (hit, bool) {
	e1 := v1.Sub(v0)
	e2 := v2.Sub(v0)
	pvec := r.Dir.Cross(e2)
	det := e1.Dot(pvec)
	if det == 0 || math32.IsNaN(det) {
		return hit{}, false
	}
	invDet := 1 / det

	tvec := r.Org.Sub(v0)
	u := tvec.Dot(pvec) * invDet
	if u < 0 || u > 1 {
		return hit{}, false
	}
	qvec := tvec.Cross(e1)
	v := r.Dir.Dot(qvec) * invDet
	if v < 0 || u+v > 1 {
		return hit{}, false
	}
	t := e2.Dot(qvec) * invDet
	if !inRange(r, t) {
		return hit{}, false
	}
	return hit{t: t, u: u, v: v, ng: e1.Cross(e2)}, true
}

// intersectQuad splits the quad into the triangles (v0, v1, v3) and
// (v2, v3, v1). Hits on the second triangle report (1-u, 1-v) so that u and
// v span the quad.
func intersectQuad(r *ray.Ray, v0, v1, v2, v3 types.Vec3) (hit, bool) {
	h0, ok0 := intersectTriangle(r, v0, v1, v3)
	h1, ok1 := intersectTriangle(r, v2, v3, v1)
	if ok1 {
		h1.u, h1.v = 1-h1.u, 1-h1.v
	}
	switch {
	case ok0 && ok1:
		if h1.t < h0.t {
			return h1, true
		}
		return h0, true
	case ok1:
		return h1, true
	}
	return h0, ok0
}

// intersectSegment intersects r with a segment whose radius is linearly
// interpolated between the w components of p0 and p1. The hit is placed at
// the point of closest approach.
func intersectSegment(r *ray.Ray, p0, p1 types.Vec4) (hit, bool) {
	a0, a1 := p0.Vec3(), p1.Vec3()
	s := a1.Sub(a0)
	w := r.Org.Sub(a0)

	dd := r.Dir.Dot(r.Dir)
	ds := r.Dir.Dot(s)
	ss := s.Dot(s)
	dw := r.Dir.Dot(w)
	sw := s.Dot(w)
	if dd == 0 {
		return hit{}, false
	}

	var u float32
	if den := dd*ss - ds*ds; ss > 0 && den > 1e-12*dd*ss {
		u = (dd*sw - ds*dw) / den
	} else if ss > 0 {
		u = sw / ss
	}
	u = math32.Max(0, math32.Min(1, u))

	onSegment := a0.Add(s.Mul(u))
	t := onSegment.Sub(r.Org).Dot(r.Dir) / dd
	if !inRange(r, t) {
		return hit{}, false
	}
	ng := r.Point(t).Sub(onSegment)
	radius := (1-u)*p0[3] + u*p1[3]
	if ng.Dot(ng) > radius*radius {
		return hit{}, false
	}
	if ng.Dot(ng) == 0 {
		ng = r.Dir.Mul(-1)
	}
	return hit{t: t, u: u, ng: ng}, true
}

// Number of linear segments used to approximate a cubic curve.
const curveSegments = 8

// intersectCurve approximates the curve by linear segments and returns the
// closest hit. u spans the whole curve.
func intersectCurve(r *ray.Ray, basis geometry.Basis, cp []types.Vec4) (hit, bool) {
	var (
		best  hit
		found bool
	)
	seg := *r
	prev, _ := geometry.EvalCurve(basis, cp, 0)
	for k := 1; k <= curveSegments; k++ {
		next, _ := geometry.EvalCurve(basis, cp, float32(k)/curveSegments)
		if h, ok := intersectSegment(&seg, prev, next); ok {
			h.u = (float32(k-1) + h.u) / curveSegments
			best, found = h, true
			seg.TFar = h.t
		}
		prev = next
	}
	return best, found
}
