package accel

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/LiangYue1981816/embree/geometry"
	"github.com/LiangYue1981816/embree/types"
)

// Kind selects the primitive layout stored in packed leaves.
type Kind uint8

// Supported leaf kinds.
const (
	KindTriangles Kind = iota
	KindQuads
	KindLines
	KindCurves
	KindSubdiv
	KindUser
	KindObjects

	numKinds
)

// Kinds lists every leaf kind in build order.
var Kinds = []Kind{KindTriangles, KindQuads, KindLines, KindCurves, KindSubdiv, KindUser, KindObjects}

// KindOf returns the leaf kind used for geometries of type t.
func KindOf(t geometry.Type) Kind {
	switch t {
	case geometry.TriangleMeshType:
		return KindTriangles
	case geometry.QuadMeshType:
		return KindQuads
	case geometry.LineSegmentsType:
		return KindLines
	case geometry.CurvesType:
		return KindCurves
	case geometry.SubdivMeshType:
		return KindSubdiv
	case geometry.UserGeometryType:
		return KindUser
	}
	return KindObjects
}

// Verts returns the number of vertex slots stored per primitive.
func (k Kind) Verts() int {
	switch k {
	case KindTriangles, KindSubdiv:
		return 3
	case KindQuads, KindCurves:
		return 4
	case KindLines:
		return 2
	}
	return 0
}

func (k Kind) String() string {
	switch k {
	case KindTriangles:
		return "triangles"
	case KindQuads:
		return "quads"
	case KindLines:
		return "lines"
	case KindCurves:
		return "curves"
	case KindSubdiv:
		return "subdiv"
	case KindUser:
		return "user"
	case KindObjects:
		return "objects"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Sizes of the packed block sections.
const (
	HeaderBytes = 4
	PrimBytes   = 8
	VertexBytes = 16
)

// Layout describes packed leaf blocks holding up to M primitives with Verts
// vertex slots for each of TimeSteps time steps.
//
// A block is encoded as:
//
//	header   count, kind, verts, timeSteps (1 byte each)
//	indices  count x (geomID, primID) uint32
//	vertices count x timeSteps x verts x (x, y, z, w) float32
//
// Vertices are grouped per primitive. All values are little endian.
type Layout struct {
	Kind      Kind
	M         int
	Verts     int
	TimeSteps int
}

// NewLayout returns the layout for kind with blocks of m primitives.
func NewLayout(kind Kind, m, timeSteps int) Layout {
	return Layout{Kind: kind, M: m, Verts: kind.Verts(), TimeSteps: timeSteps}
}

// BlockBytes returns the size of a block holding r primitives.
func (l Layout) BlockBytes(r int) int {
	if r <= 0 {
		return 0
	}
	return HeaderBytes + PrimBytes*r + VertexBytes*l.Verts*l.TimeSteps*r
}

// Blocks returns the number of blocks needed for n primitives.
func (l Layout) Blocks(n int) int {
	return (n + l.M - 1) / l.M
}

// Bytes returns the exact storage needed for n primitives: n/M full blocks
// followed by one partial block for the remainder.
func (l Layout) Bytes(n int) int {
	size := (n / l.M) * l.BlockBytes(l.M)
	if r := n % l.M; r != 0 {
		size += l.BlockBytes(r)
	}
	return size
}

// Fill encodes one block from prims[*begin:end] into dst, advancing *begin
// by the number of consumed primitives (at most M). It returns the number of
// bytes written. dst must hold at least BlockBytes(min(M, end-*begin))
// bytes.
func (l Layout) Fill(dst []byte, prims []PrimRef, begin *int, end int, src Source) int {
	count := end - *begin
	if count > l.M {
		count = l.M
	}
	if count <= 0 {
		return 0
	}

	dst[0] = uint8(count)
	dst[1] = uint8(l.Kind)
	dst[2] = uint8(l.Verts)
	dst[3] = uint8(l.TimeSteps)

	pos := HeaderBytes
	for i := 0; i < count; i++ {
		p := &prims[*begin+i]
		binary.LittleEndian.PutUint32(dst[pos:], p.GeomID)
		binary.LittleEndian.PutUint32(dst[pos+4:], p.PrimID)
		pos += PrimBytes
	}

	if l.Verts > 0 {
		var verts [4]types.Vec4
		for i := 0; i < count; i++ {
			p := &prims[*begin+i]
			mesh := src.Geometry(p.GeomID).(geometry.Mesh)
			last := mesh.TimeSteps() - 1
			for t := 0; t < l.TimeSteps; t++ {
				// static meshes repeat their only time step
				mesh.PrimVertices(int(p.PrimID), min(t, last), verts[:l.Verts])
				for v := 0; v < l.Verts; v++ {
					for c := 0; c < 4; c++ {
						binary.LittleEndian.PutUint32(dst[pos:], math.Float32bits(verts[v][c]))
						pos += 4
					}
				}
			}
		}
	}

	*begin += count
	return pos
}

// Block is a read-only view of one encoded block.
type Block struct {
	Kind      Kind
	Count     int
	Verts     int
	TimeSteps int

	data []byte
}

// DecodeBlock returns a view of the block starting at data[0].
func DecodeBlock(data []byte) Block {
	b := Block{
		Count:     int(data[0]),
		Kind:      Kind(data[1]),
		Verts:     int(data[2]),
		TimeSteps: int(data[3]),
	}
	b.data = data[:b.Size()]
	return b
}

// Decode returns views of the blocks encoding n primitives.
func (l Layout) Decode(data []byte, n int) []Block {
	blocks := make([]Block, 0, l.Blocks(n))
	for pos := 0; n > 0; {
		b := DecodeBlock(data[pos:])
		blocks = append(blocks, b)
		pos += b.Size()
		n -= b.Count
	}
	return blocks
}

// Size returns the encoded size of the block.
func (b Block) Size() int {
	return HeaderBytes + PrimBytes*b.Count + VertexBytes*b.Verts*b.TimeSteps*b.Count
}

// GeomID returns the geometry ID of primitive i.
func (b Block) GeomID(i int) uint32 {
	return binary.LittleEndian.Uint32(b.data[HeaderBytes+i*PrimBytes:])
}

// PrimID returns the primitive ID of primitive i.
func (b Block) PrimID(i int) uint32 {
	return binary.LittleEndian.Uint32(b.data[HeaderBytes+i*PrimBytes+4:])
}

// Vertex returns vertex slot v of primitive i at time step t.
func (b Block) Vertex(i, t, v int) types.Vec4 {
	pos := HeaderBytes + PrimBytes*b.Count + VertexBytes*((i*b.TimeSteps+t)*b.Verts+v)
	var out types.Vec4
	for c := 0; c < 4; c++ {
		out[c] = math.Float32frombits(binary.LittleEndian.Uint32(b.data[pos+4*c:]))
	}
	return out
}

// VertexAt returns vertex slot v of primitive i interpolated at time.
func (b Block) VertexAt(i, v int, time float32) types.Vec4 {
	v0 := b.Vertex(i, 0, v)
	if b.TimeSteps == 1 {
		return v0
	}
	return v0.Lerp(b.Vertex(i, 1, v), time)
}

// Leaf locates the blocks of one leaf inside an arena.
type Leaf struct {
	Offset int
	Size   int
	Count  int
}

// CreateLeaf allocates Bytes(len(prims)) from arena and fills it with as
// many blocks as needed.
func (l Layout) CreateLeaf(arena *Arena, prims []PrimRef, src Source) (Leaf, error) {
	size := l.Bytes(len(prims))
	offset, buf, err := arena.Alloc(size)
	if err != nil {
		return Leaf{}, err
	}

	pos := 0
	for begin := 0; begin < len(prims); {
		pos += l.Fill(buf[pos:], prims, &begin, len(prims), src)
	}
	return Leaf{Offset: offset, Size: size, Count: len(prims)}, nil
}
