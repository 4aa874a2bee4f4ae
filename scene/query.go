package scene

import (
	"unsafe"

	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/geometry"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/stream"
)

// Errors returned by query entry points.
var (
	ErrNotCommitted = device.Errorf(device.InvalidOperation, "scene got not committed")
	ErrMapped       = device.Errorf(device.InvalidOperation, "scene contains mapped buffers")
	ErrInvalidScene = device.Errorf(device.InvalidArgument, "invalid scene")
)

// check rejects nil scene handles. There is no device to report to, so
// the error only lands in the process slot.
func (s *Scene) check() error {
	if s == nil {
		return device.ReportNoDevice(ErrInvalidScene)
	}
	return nil
}

// ready returns the index queries run against.
func (s *Scene) ready() (*index, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if s.State() != Committed {
		return nil, s.device.Report(ErrNotCommitted)
	}
	idx := s.index.Load()
	if idx == nil {
		return nil, s.device.Report(ErrNotCommitted)
	}
	if ray.DebugChecks && idx.anyMapped() {
		return nil, s.device.Report(ErrMapped)
	}
	return idx, nil
}

// Bounds returns the bounds of the committed scene over the whole time
// interval.
func (s *Scene) Bounds() (ray.Bounds, error) {
	idx, err := s.ready()
	if err != nil {
		return ray.Bounds{}, err
	}
	return ray.BoundsFrom(idx.bounds.Union()), nil
}

// LinearBounds writes the bounds at the start and the end of the time
// interval to out.
func (s *Scene) LinearBounds(out *ray.LinearBounds) error {
	if err := s.check(); err != nil {
		return err
	}
	if out == nil {
		return s.device.Report(device.Errorf(device.InvalidOperation, "invalid destination pointer"))
	}
	idx, err := s.ready()
	if err != nil {
		return err
	}
	*out = ray.LinearBoundsFrom(idx.bounds)
	return nil
}

// Intersect1 finds the closest hit along r.
func (s *Scene) Intersect1(ctx *ray.Context, r *ray.Ray) error {
	return s.query1(ctx, stream.Intersect, r)
}

// Occluded1 sets r.GeomID to ray.Occluded if anything blocks r.
func (s *Scene) Occluded1(ctx *ray.Context, r *ray.Ray) error {
	return s.query1(ctx, stream.Occluded, r)
}

// Intersect1Masked is Intersect1 for a ray with a validity flag; a zero
// valid skips the ray.
func (s *Scene) Intersect1Masked(valid int32, ctx *ray.Context, r *ray.Ray) error {
	if valid == 0 {
		_, err := s.ready()
		return err
	}
	return s.query1(ctx, stream.Intersect, r)
}

// Occluded1Masked is the occlusion form of Intersect1Masked.
func (s *Scene) Occluded1Masked(valid int32, ctx *ray.Context, r *ray.Ray) error {
	if valid == 0 {
		_, err := s.ready()
		return err
	}
	return s.query1(ctx, stream.Occluded, r)
}

func (s *Scene) query1(ctx *ray.Context, q stream.Query, r *ray.Ray) error {
	idx, err := s.ready()
	if err != nil {
		return err
	}
	if !idx.supports(1) {
		return s.device.Report(device.Errorf(device.InvalidOperation, "single ray queries not enabled"))
	}
	if r == nil {
		return s.device.Report(device.Errorf(device.InvalidArgument, "invalid ray"))
	}
	if ray.DebugChecks && !ray.Aligned(unsafe.Pointer(r), 4) {
		return s.device.Report(device.Errorf(device.InvalidArgument, "ray not aligned to 4 bytes"))
	}

	c := ray.Bind(ctx, s, ray.Single, 1)
	if q == stream.Intersect {
		idx.Intersect(c, r)
	} else if idx.Occluded(c, r) {
		r.GeomID = ray.Occluded
	}
	return nil
}

// Intersect4 traces a packet of 4 rays. Lanes with valid[i] == 0 are
// skipped.
func (s *Scene) Intersect4(valid []int32, ctx *ray.Context, p *ray.RayN) error {
	return s.queryN(4, stream.Intersect, valid, ctx, p)
}

// Intersect8 traces a packet of 8 rays.
func (s *Scene) Intersect8(valid []int32, ctx *ray.Context, p *ray.RayN) error {
	return s.queryN(8, stream.Intersect, valid, ctx, p)
}

// Intersect16 traces a packet of 16 rays.
func (s *Scene) Intersect16(valid []int32, ctx *ray.Context, p *ray.RayN) error {
	return s.queryN(16, stream.Intersect, valid, ctx, p)
}

// Occluded4 is the occlusion form of Intersect4.
func (s *Scene) Occluded4(valid []int32, ctx *ray.Context, p *ray.RayN) error {
	return s.queryN(4, stream.Occluded, valid, ctx, p)
}

// Occluded8 is the occlusion form of Intersect8.
func (s *Scene) Occluded8(valid []int32, ctx *ray.Context, p *ray.RayN) error {
	return s.queryN(8, stream.Occluded, valid, ctx, p)
}

// Occluded16 is the occlusion form of Intersect16.
func (s *Scene) Occluded16(valid []int32, ctx *ray.Context, p *ray.RayN) error {
	return s.queryN(16, stream.Occluded, valid, ctx, p)
}

func (s *Scene) queryN(width int, q stream.Query, valid []int32, ctx *ray.Context, p *ray.RayN) error {
	idx, err := s.ready()
	if err != nil {
		return err
	}
	if !idx.supports(width) {
		return s.device.Report(device.Errorf(device.InvalidOperation, "packets of width %d not supported", width))
	}
	if len(valid) < width || !p.Complete(width) {
		return s.device.Report(device.Errorf(device.InvalidArgument, "packet holds fewer than %d rays", width))
	}
	if ray.DebugChecks && !ray.PacketAligned(valid, p, width) {
		return s.device.Report(device.Errorf(device.InvalidArgument, "packet not aligned to %d bytes", ray.PacketAlignment(width)))
	}

	c := ray.Bind(ctx, s, ray.Packet, width)
	if q == stream.Intersect {
		idx.IntersectN(valid[:width], c, p)
	} else {
		idx.OccludedN(valid[:width], c, p)
	}
	return nil
}

// Intersect1M traces m rays stored in rays[0], rays[stride], ...
func (s *Scene) Intersect1M(ctx *ray.Context, rays []ray.Ray, m, stride int) error {
	return s.query1M(ctx, stream.Intersect, rays, m, stride)
}

// Occluded1M is the occlusion form of Intersect1M.
func (s *Scene) Occluded1M(ctx *ray.Context, rays []ray.Ray, m, stride int) error {
	return s.query1M(ctx, stream.Occluded, rays, m, stride)
}

func (s *Scene) query1M(ctx *ray.Context, q stream.Query, rays []ray.Ray, m, stride int) error {
	idx, err := s.ready()
	if err != nil {
		return err
	}
	if stride < 1 {
		return s.device.Report(device.Errorf(device.InvalidOperation, "stride too small"))
	}
	if !stream.Fits(m, stride, len(rays)) {
		return s.device.Report(device.Errorf(device.InvalidArgument, "stream of %d rays with stride %d exceeds %d elements", m, stride, len(rays)))
	}
	if m == 0 {
		return nil
	}
	if ray.DebugChecks && !ray.Aligned(unsafe.Pointer(&rays[0]), 4) {
		return s.device.Report(device.Errorf(device.InvalidArgument, "ray stream not aligned to 4 bytes"))
	}
	if m == 1 {
		s.single(idx, ctx, q, &rays[0])
		return nil
	}
	return s.device.Report(stream.FilterAOS(s.streamContext(idx, ctx, ray.Stream1M), idx, q, rays, m, stride))
}

// Intersect1Mp traces the first m rays referenced by rays.
func (s *Scene) Intersect1Mp(ctx *ray.Context, rays []*ray.Ray, m int) error {
	return s.query1Mp(ctx, stream.Intersect, rays, m)
}

// Occluded1Mp is the occlusion form of Intersect1Mp.
func (s *Scene) Occluded1Mp(ctx *ray.Context, rays []*ray.Ray, m int) error {
	return s.query1Mp(ctx, stream.Occluded, rays, m)
}

func (s *Scene) query1Mp(ctx *ray.Context, q stream.Query, rays []*ray.Ray, m int) error {
	idx, err := s.ready()
	if err != nil {
		return err
	}
	if m < 0 || m > len(rays) {
		return s.device.Report(device.Errorf(device.InvalidArgument, "stream of %d rays exceeds %d pointers", m, len(rays)))
	}
	if m == 1 && rays[0] != nil {
		s.single(idx, ctx, q, rays[0])
		return nil
	}
	return s.device.Report(stream.FilterAOP(s.streamContext(idx, ctx, ray.Stream1M), idx, q, rays[:m]))
}

// IntersectNM traces m groups of n rays; group j is stored in
// packets[j*stride].
func (s *Scene) IntersectNM(ctx *ray.Context, packets []ray.RayN, n, m, stride int) error {
	return s.queryNM(ctx, stream.Intersect, packets, n, m, stride)
}

// OccludedNM is the occlusion form of IntersectNM.
func (s *Scene) OccludedNM(ctx *ray.Context, packets []ray.RayN, n, m, stride int) error {
	return s.queryNM(ctx, stream.Occluded, packets, n, m, stride)
}

func (s *Scene) queryNM(ctx *ray.Context, q stream.Query, packets []ray.RayN, n, m, stride int) error {
	idx, err := s.ready()
	if err != nil {
		return err
	}
	if stride < 1 {
		return s.device.Report(device.Errorf(device.InvalidOperation, "stride too small"))
	}
	if n < 0 || m < 0 {
		return s.device.Report(device.Errorf(device.InvalidArgument, "invalid stream size %dx%d", n, m))
	}
	if n == 1 && m == 1 && len(packets) > 0 && packets[0].Complete(1) {
		s.singleLane(idx, ctx, q, &packets[0], 0)
		return nil
	}
	return s.device.Report(stream.FilterSOA(s.streamContext(idx, ctx, ray.StreamN), idx, q, packets, n, m, stride))
}

// IntersectNp traces the first n rays of a structure of pointers stream.
func (s *Scene) IntersectNp(ctx *ray.Context, p *ray.RayN, n int) error {
	return s.queryNp(ctx, stream.Intersect, p, n)
}

// OccludedNp is the occlusion form of IntersectNp.
func (s *Scene) OccludedNp(ctx *ray.Context, p *ray.RayN, n int) error {
	return s.queryNp(ctx, stream.Occluded, p, n)
}

func (s *Scene) queryNp(ctx *ray.Context, q stream.Query, p *ray.RayN, n int) error {
	idx, err := s.ready()
	if err != nil {
		return err
	}
	if n < 0 {
		return s.device.Report(device.Errorf(device.InvalidArgument, "invalid stream size %d", n))
	}
	if n == 1 && p.Complete(1) {
		s.singleLane(idx, ctx, q, p, 0)
		return nil
	}
	return s.device.Report(stream.FilterSOP(s.streamContext(idx, ctx, ray.StreamN), idx, q, p, n))
}

// streamContext binds a context for a stream regrouped into packets of the
// native width.
func (s *Scene) streamContext(idx *index, ctx *ray.Context, shape ray.Shape) *ray.Context {
	return ray.Bind(ctx, s, shape, idx.streamWidth)
}

// single is the fast path for streams holding exactly one ray.
func (s *Scene) single(idx *index, ctx *ray.Context, q stream.Query, r *ray.Ray) {
	if !r.Valid() {
		return
	}
	c := ray.Bind(ctx, s, ray.Single, 1)
	if q == stream.Intersect {
		idx.Intersect(c, r)
	} else if idx.Occluded(c, r) {
		r.GeomID = ray.Occluded
	}
}

func (s *Scene) singleLane(idx *index, ctx *ray.Context, q stream.Query, p *ray.RayN, i int) {
	r := p.Get(i)
	if !r.Valid() {
		return
	}
	c := ray.Bind(ctx, s, ray.Single, 1)
	if q == stream.Intersect {
		idx.Intersect(c, &r)
		p.SetHit(i, &r)
	} else if idx.Occluded(c, &r) {
		p.SetOccluded(i)
	}
}

// Interpolate evaluates a vertex attribute buffer of geometry geomID at
// (u, v) of primitive primID.
func (s *Scene) Interpolate(geomID, primID uint32, u, v float32, buffer geometry.BufferType, out geometry.Derivatives, numFloats int) error {
	ip, err := s.interpolator(geomID)
	if err != nil {
		return err
	}
	return s.device.Report(ip.Interpolate(primID, u, v, buffer, out, numFloats))
}

// InterpolateN evaluates numUVs samples. Outputs are stored component
// major: component k of sample j lives at index k*numUVs+j. A nil valid
// mask enables every sample.
func (s *Scene) InterpolateN(geomID uint32, valid []int32, primIDs []uint32, u, v []float32, numUVs int, buffer geometry.BufferType, out geometry.Derivatives, numFloats int) error {
	ip, err := s.interpolator(geomID)
	if err != nil {
		return err
	}
	if numUVs < 0 || len(primIDs) < numUVs || len(u) < numUVs || len(v) < numUVs || (valid != nil && len(valid) < numUVs) {
		return s.device.Report(device.Errorf(device.InvalidArgument, "sample arrays hold fewer than %d entries", numUVs))
	}

	outputs := [][]float32{out.P, out.DPdu, out.DPdv, out.DDPdudu, out.DDPdvdv, out.DDPdudv}
	for _, o := range outputs {
		if o != nil && len(o) < numFloats*numUVs {
			return s.device.Report(device.Errorf(device.InvalidArgument, "output holds fewer than %d floats", numFloats*numUVs))
		}
	}

	sample := func(o []float32) []float32 {
		if o == nil {
			return nil
		}
		return make([]float32, numFloats)
	}
	tmp := geometry.Derivatives{
		P: sample(out.P), DPdu: sample(out.DPdu), DPdv: sample(out.DPdv),
		DDPdudu: sample(out.DDPdudu), DDPdvdv: sample(out.DDPdvdv), DDPdudv: sample(out.DDPdudv),
	}
	samples := [][]float32{tmp.P, tmp.DPdu, tmp.DPdv, tmp.DDPdudu, tmp.DDPdvdv, tmp.DDPdudv}

	for j := 0; j < numUVs; j++ {
		if valid != nil && !ray.Active(valid, j) {
			continue
		}
		if err := ip.Interpolate(primIDs[j], u[j], v[j], buffer, tmp, numFloats); err != nil {
			return s.device.Report(err)
		}
		for o, dst := range outputs {
			if dst == nil {
				continue
			}
			for k := 0; k < numFloats; k++ {
				dst[k*numUVs+j] = samples[o][k]
			}
		}
	}
	return nil
}

func (s *Scene) interpolator(geomID uint32) (geometry.Interpolator, error) {
	g, err := s.Geometry(geomID)
	if err != nil {
		return nil, err
	}
	if g.Type() == geometry.SubdivMeshType && s.aflags != 0 && s.aflags&Interpolate == 0 {
		return nil, s.device.Report(device.Errorf(device.InvalidOperation, "scene not created with interpolation support"))
	}
	ip, ok := g.(geometry.Interpolator)
	if !ok {
		return nil, s.device.Report(device.Errorf(device.InvalidOperation, "%s geometry does not support interpolation", g.Type()))
	}
	return ip, nil
}
