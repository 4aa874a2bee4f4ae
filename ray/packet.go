package ray

import (
	"unsafe"

	"github.com/LiangYue1981816/embree/types"
)

// Alignment of the storage handed out by NewRayN.
const packetAlign = 64

// RayN stores rays in structure-of-arrays form. It backs fixed width packets
// as well as structure-of-pointers streams of arbitrary length.
type RayN struct {
	OrgX, OrgY, OrgZ []float32
	TNear            []float32
	DirX, DirY, DirZ []float32
	Time             []float32
	TFar             []float32
	Mask             []uint32

	NgX, NgY, NgZ []float32
	U, V          []float32
	GeomID        []uint32
	PrimID        []uint32
	InstID        []uint32
}

// Number of float and uint fields in a RayN.
const (
	floatFields = 14
	uintFields  = 4
)

// NewRayN allocates storage for n rays. The storage is 64 byte aligned, so
// every field of a 4, 8 or 16 wide packet satisfies PacketAlignment.
func NewRayN(n int) *RayN {
	stride := n
	floats := alignedFloats(floatFields * stride)
	uints := alignedUints(uintFields * stride)

	f := func(i int) []float32 { return floats[i*stride : (i+1)*stride : (i+1)*stride] }
	u := func(i int) []uint32 { return uints[i*stride : (i+1)*stride : (i+1)*stride] }

	p := &RayN{
		OrgX:   f(0),
		OrgY:   f(1),
		OrgZ:   f(2),
		TNear:  f(3),
		DirX:   f(4),
		DirY:   f(5),
		DirZ:   f(6),
		Time:   f(7),
		TFar:   f(8),
		NgX:    f(9),
		NgY:    f(10),
		NgZ:    f(11),
		U:      f(12),
		V:      f(13),
		Mask:   u(0),
		GeomID: u(1),
		PrimID: u(2),
		InstID: u(3),
	}
	for i := 0; i < n; i++ {
		p.Mask[i] = ^uint32(0)
		p.GeomID[i] = InvalidGeometryID
		p.PrimID[i] = InvalidGeometryID
		p.InstID[i] = InvalidGeometryID
	}
	return p
}

func alignedFloats(n int) []float32 {
	buf := make([]float32, n+packetAlign/4)
	off := alignOffset(unsafe.Pointer(unsafe.SliceData(buf)))
	return buf[off/4 : off/4+n]
}

func alignedUints(n int) []uint32 {
	buf := make([]uint32, n+packetAlign/4)
	off := alignOffset(unsafe.Pointer(unsafe.SliceData(buf)))
	return buf[off/4 : off/4+n]
}

func alignOffset(p unsafe.Pointer) int {
	rem := int(uintptr(p) % packetAlign)
	if rem == 0 {
		return 0
	}
	return packetAlign - rem
}

// Len returns the number of rays in the packet.
func (p *RayN) Len() int {
	return len(p.OrgX)
}

// Get gathers ray i into AOS form.
func (p *RayN) Get(i int) Ray {
	return Ray{
		Org:    types.Vec3{p.OrgX[i], p.OrgY[i], p.OrgZ[i]},
		TNear:  p.TNear[i],
		Dir:    types.Vec3{p.DirX[i], p.DirY[i], p.DirZ[i]},
		Time:   p.Time[i],
		TFar:   p.TFar[i],
		Mask:   p.Mask[i],
		Ng:     types.Vec3{p.NgX[i], p.NgY[i], p.NgZ[i]},
		U:      p.U[i],
		V:      p.V[i],
		GeomID: p.GeomID[i],
		PrimID: p.PrimID[i],
		InstID: p.InstID[i],
	}
}

// Set scatters r into slot i.
func (p *RayN) Set(i int, r *Ray) {
	p.OrgX[i], p.OrgY[i], p.OrgZ[i] = r.Org[0], r.Org[1], r.Org[2]
	p.TNear[i] = r.TNear
	p.DirX[i], p.DirY[i], p.DirZ[i] = r.Dir[0], r.Dir[1], r.Dir[2]
	p.Time[i] = r.Time
	p.TFar[i] = r.TFar
	p.Mask[i] = r.Mask
	p.SetHit(i, r)
}

// SetHit writes the hit record of r (including tfar) into slot i.
func (p *RayN) SetHit(i int, r *Ray) {
	p.TFar[i] = r.TFar
	p.NgX[i], p.NgY[i], p.NgZ[i] = r.Ng[0], r.Ng[1], r.Ng[2]
	p.U[i], p.V[i] = r.U, r.V
	p.GeomID[i] = r.GeomID
	p.PrimID[i] = r.PrimID
	p.InstID[i] = r.InstID
}

// SetOccluded marks slot i as occluded.
func (p *RayN) SetOccluded(i int) {
	p.GeomID[i] = Occluded
}

// Slice returns a view over rays [from, to). The view shares storage with p.
func (p *RayN) Slice(from, to int) *RayN {
	return &RayN{
		OrgX:   p.OrgX[from:to],
		OrgY:   p.OrgY[from:to],
		OrgZ:   p.OrgZ[from:to],
		TNear:  p.TNear[from:to],
		DirX:   p.DirX[from:to],
		DirY:   p.DirY[from:to],
		DirZ:   p.DirZ[from:to],
		Time:   p.Time[from:to],
		TFar:   p.TFar[from:to],
		Mask:   p.Mask[from:to],
		NgX:    p.NgX[from:to],
		NgY:    p.NgY[from:to],
		NgZ:    p.NgZ[from:to],
		U:      p.U[from:to],
		V:      p.V[from:to],
		GeomID: p.GeomID[from:to],
		PrimID: p.PrimID[from:to],
		InstID: p.InstID[from:to],
	}
}

// Complete reports whether every field holds at least n entries.
func (p *RayN) Complete(n int) bool {
	if p == nil {
		return false
	}
	for _, f := range [][]float32{p.OrgX, p.OrgY, p.OrgZ, p.TNear, p.DirX, p.DirY, p.DirZ, p.Time, p.TFar, p.NgX, p.NgY, p.NgZ, p.U, p.V} {
		if len(f) < n {
			return false
		}
	}
	for _, f := range [][]uint32{p.Mask, p.GeomID, p.PrimID, p.InstID} {
		if len(f) < n {
			return false
		}
	}
	return true
}

// Active returns true if lane i of a valid mask is enabled.
func Active(valid []int32, i int) bool {
	return valid[i] == -1
}

// AllValid returns a mask enabling the first n lanes.
func AllValid(n int) []int32 {
	valid := make([]int32, n)
	for i := range valid {
		valid[i] = -1
	}
	return valid
}
