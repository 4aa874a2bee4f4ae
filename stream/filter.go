// Package stream normalizes arbitrary ray streams into packets of the
// native width before they reach a scene intersector.
package stream

import (
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/ray"
)

// Intersector is implemented by the packet entry points that stream
// filters dispatch into. Inactive lanes are marked with 0 in valid.
type Intersector interface {
	IntersectN(valid []int32, ctx *ray.Context, p *ray.RayN)
	OccludedN(valid []int32, ctx *ray.Context, p *ray.RayN)
}

// Query selects between closest hit and occlusion queries.
type Query uint8

// Supported queries.
const (
	Intersect Query = iota
	Occluded
)

// source abstracts the addressing of one stream layout.
type source interface {
	Len() int
	Get(i int) ray.Ray

	// PutHit writes the hit record of r back to ray i.
	PutHit(i int, r *ray.Ray)

	// PutOccluded flags ray i as occluded.
	PutOccluded(i int)
}

// dispatch regroups the rays of src into packets of ctx.Width() lanes. Rays
// with tnear > tfar become inactive lanes and are never written back.
func dispatch(ctx *ray.Context, isect Intersector, q Query, src source) {
	width := ctx.Width()
	if width < 1 {
		width = 1
	}

	packet := ray.NewRayN(width)
	valid := ray.AlignedMask(width)
	index := make([]int, width)

	n := src.Len()
	for base := 0; base < n; base += width {
		active := 0
		for lane := 0; lane < width; lane++ {
			valid[lane] = 0
			i := base + lane
			if i >= n {
				continue
			}
			r := src.Get(i)
			if !r.Valid() {
				continue
			}
			if q == Occluded {
				r.GeomID = ray.InvalidGeometryID
			}
			packet.Set(lane, &r)
			valid[lane] = -1
			index[lane] = i
			active++
		}
		if active == 0 {
			continue
		}

		if q == Occluded {
			isect.OccludedN(valid, ctx, packet)
		} else {
			isect.IntersectN(valid, ctx, packet)
		}

		for lane := 0; lane < width; lane++ {
			if !ray.Active(valid, lane) {
				continue
			}
			if q == Occluded {
				if packet.GeomID[lane] == ray.Occluded {
					src.PutOccluded(index[lane])
				}
				continue
			}
			r := packet.Get(lane)
			src.PutHit(index[lane], &r)
		}
	}
}

type aosSource struct {
	rays   []ray.Ray
	m      int
	stride int
}

func (s aosSource) Len() int                 { return s.m }
func (s aosSource) Get(i int) ray.Ray        { return s.rays[i*s.stride] }
func (s aosSource) PutOccluded(i int)        { s.rays[i*s.stride].GeomID = ray.Occluded }
func (s aosSource) PutHit(i int, r *ray.Ray) { putHit(&s.rays[i*s.stride], r) }

type aopSource []*ray.Ray

func (s aopSource) Len() int                 { return len(s) }
func (s aopSource) Get(i int) ray.Ray        { return *s[i] }
func (s aopSource) PutOccluded(i int)        { s[i].GeomID = ray.Occluded }
func (s aopSource) PutHit(i int, r *ray.Ray) { putHit(s[i], r) }

// soaSource addresses m packets of n rays, stride packets apart.
type soaSource struct {
	packets []ray.RayN
	n, m    int
	stride  int
}

func (s soaSource) Len() int { return s.n * s.m }

func (s soaSource) locate(i int) (*ray.RayN, int) {
	return &s.packets[(i/s.n)*s.stride], i % s.n
}

func (s soaSource) Get(i int) ray.Ray {
	p, lane := s.locate(i)
	return p.Get(lane)
}

func (s soaSource) PutOccluded(i int) {
	p, lane := s.locate(i)
	p.SetOccluded(lane)
}

func (s soaSource) PutHit(i int, r *ray.Ray) {
	p, lane := s.locate(i)
	p.SetHit(lane, r)
}

type sopSource struct {
	p *ray.RayN
	n int
}

func (s sopSource) Len() int                 { return s.n }
func (s sopSource) Get(i int) ray.Ray        { return s.p.Get(i) }
func (s sopSource) PutOccluded(i int)        { s.p.SetOccluded(i) }
func (s sopSource) PutHit(i int, r *ray.Ray) { s.p.SetHit(i, r) }

func putHit(dst, r *ray.Ray) {
	dst.TFar = r.TFar
	dst.Ng = r.Ng
	dst.U, dst.V = r.U, r.V
	dst.GeomID = r.GeomID
	dst.PrimID = r.PrimID
	dst.InstID = r.InstID
}

// Fits reports whether m elements placed stride elements apart fit into a
// slice of length elements. Large strides must not wrap around.
func Fits(m, stride, length int) bool {
	switch {
	case m < 0 || stride < 1:
		return false
	case m == 0:
		return true
	case length == 0:
		return false
	case m == 1:
		return true
	}
	return stride <= (length-1)/(m-1)
}

// FilterAOS dispatches m rays stored stride elements apart in rays.
func FilterAOS(ctx *ray.Context, isect Intersector, q Query, rays []ray.Ray, m, stride int) error {
	if stride < 1 {
		return device.Errorf(device.InvalidOperation, "stride too small")
	}
	if !Fits(m, stride, len(rays)) {
		return device.Errorf(device.InvalidArgument, "stream of %d rays with stride %d exceeds %d elements", m, stride, len(rays))
	}
	dispatch(ctx, isect, q, aosSource{rays: rays, m: m, stride: stride})
	return nil
}

// FilterAOP dispatches the rays referenced by rays.
func FilterAOP(ctx *ray.Context, isect Intersector, q Query, rays []*ray.Ray) error {
	for i, r := range rays {
		if r == nil {
			return device.Errorf(device.InvalidArgument, "ray pointer %d is nil", i)
		}
	}
	dispatch(ctx, isect, q, aopSource(rays))
	return nil
}

// FilterSOA dispatches m groups of n rays. Group j is stored in
// packets[j*stride].
func FilterSOA(ctx *ray.Context, isect Intersector, q Query, packets []ray.RayN, n, m, stride int) error {
	if stride < 1 {
		return device.Errorf(device.InvalidOperation, "stride too small")
	}
	if !Fits(m, stride, len(packets)) {
		return device.Errorf(device.InvalidArgument, "stream of %d packets with stride %d exceeds %d elements", m, stride, len(packets))
	}
	for j := 0; j < m; j++ {
		if !packets[j*stride].Complete(n) {
			return device.Errorf(device.InvalidArgument, "packet %d holds fewer than %d rays", j, n)
		}
	}
	dispatch(ctx, isect, q, soaSource{packets: packets, n: n, m: m, stride: stride})
	return nil
}

// FilterSOP dispatches the first n rays of a structure of pointers stream.
func FilterSOP(ctx *ray.Context, isect Intersector, q Query, p *ray.RayN, n int) error {
	if !p.Complete(n) {
		return device.Errorf(device.InvalidArgument, "stream holds fewer than %d rays", n)
	}
	dispatch(ctx, isect, q, sopSource{p: p, n: n})
	return nil
}
