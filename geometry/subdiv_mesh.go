package geometry

import (
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/types"
	"github.com/chewxy/math32"
	"github.com/samber/lo"
)

// SubdivMesh is a polygon mesh described by face valences and a flat index
// buffer. Faces are traced as triangle fans over their control cage; an
// optional displacement function moves the cage vertices along the face
// normal.
type SubdivMesh struct {
	Base

	tessellationRate float32

	displacement       DisplacementFunc
	displacementBounds types.BBox

	// Derived by Prepare.
	faceStart []int
	fan       []fanTriangle
}

// fanTriangle is build primitive k of face: corners 0, k+1 and k+2.
type fanTriangle struct {
	face   uint32
	corner uint32
}

// NewSubdivMesh creates a subdivision mesh.
func NewSubdivMesh(owner Owner, id uint32, flags Flags, numFaces, numEdges, numVertices, numEdgeCreases, numVertexCreases, numHoles, numTimeSteps int) (*SubdivMesh, error) {
	if err := checkTimeSteps(numTimeSteps); err != nil {
		return nil, err
	}
	m := &SubdivMesh{
		Base:             newBase(owner, SubdivMeshType, id, flags, numTimeSteps),
		tessellationRate: 2,
	}
	if err := m.addMeshBuffers(device.FormatUint, numEdges, device.FormatFloat3, numVertices); err != nil {
		return nil, err
	}

	extra := []struct {
		t      BufferType
		format device.Format
		n      int
	}{
		{FaceBuffer, device.FormatUint, numFaces},
		{LevelBuffer, device.FormatFloat, numEdges},
		{EdgeCreaseIndexBuffer, device.FormatUint2, numEdgeCreases},
		{EdgeCreaseWeightBuffer, device.FormatFloat, numEdgeCreases},
		{VertexCreaseIndexBuffer, device.FormatUint, numVertexCreases},
		{VertexCreaseWeightBuffer, device.FormatFloat, numVertexCreases},
		{HoleBuffer, device.FormatUint, numHoles},
	}
	for _, b := range extra {
		if err := m.addBuffer(b.t, b.format, b.n); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SetTessellationRate sets the edge level used when no level buffer is
// supplied.
func (m *SubdivMesh) SetTessellationRate(rate float32) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	if !(rate > 0) {
		return device.Errorf(device.InvalidArgument, "tessellation rate must be positive")
	}
	m.tessellationRate = rate
	m.buffers[LevelBuffer].SetModified()
	m.setModified()
	return nil
}

// TessellationRate returns the default edge level.
func (m *SubdivMesh) TessellationRate() float32 {
	return m.tessellationRate
}

// SetDisplacementFunc installs a displacement function. bounds (may be nil)
// limits the displacement and is added to every primitive bound.
func (m *SubdivMesh) SetDisplacementFunc(fn DisplacementFunc, bounds *ray.Bounds) error {
	if err := m.checkMutable(); err != nil {
		return err
	}
	m.displacement = fn
	m.displacementBounds = types.BBox{}
	if bounds != nil {
		m.displacementBounds = bounds.BBox()
	}
	m.setModified()
	return nil
}

// Prepare validates the topology and rebuilds the fan table.
func (m *SubdivMesh) Prepare() error {
	if err := m.verifyBuffers(); err != nil {
		return err
	}

	faces := m.buffers[FaceBuffer]
	index := m.buffers[IndexBuffer]
	holes := m.buffers[HoleBuffer]
	numVertices := m.buffers[VertexBuffer0].Len()

	isHole := make(map[uint32]bool, holes.Len())
	for i := 0; i < holes.Len(); i++ {
		isHole[holes.Uint(i, 0)] = true
	}

	m.faceStart = make([]int, faces.Len())
	m.fan = m.fan[:0]
	edge := 0
	for f := 0; f < faces.Len(); f++ {
		valence := int(faces.Uint(f, 0))
		if valence < 3 {
			return device.Errorf(device.InvalidOperation, "subdiv mesh %d: face %d has valence %d", m.id, f, valence)
		}
		m.faceStart[f] = edge
		if edge+valence > index.Len() {
			return device.Errorf(device.InvalidOperation, "subdiv mesh %d: index buffer too small for face %d", m.id, f)
		}
		for k := 0; k < valence; k++ {
			if int(index.Uint(edge+k, 0)) >= numVertices {
				return device.Errorf(device.InvalidOperation, "subdiv mesh %d: face %d references invalid vertex", m.id, f)
			}
		}
		if !isHole[uint32(f)] {
			for k := 0; k < valence-2; k++ {
				m.fan = append(m.fan, fanTriangle{face: uint32(f), corner: uint32(k)})
			}
		}
		edge += valence
	}
	return nil
}

// Levels returns the tessellation level of every edge. Edges fall back to
// the tessellation rate unless the level buffer holds positive levels.
func (m *SubdivMesh) Levels() []float32 {
	levels := m.buffers[LevelBuffer]
	if levels.Valid() && levels.Len() > 0 {
		out := lo.Times(levels.Len(), func(i int) float32 { return levels.Float(i, 0) })
		if lo.SomeBy(out, func(l float32) bool { return l > 0 }) {
			return out
		}
	}
	return lo.Times(m.buffers[IndexBuffer].Len(), func(int) float32 { return m.tessellationRate })
}

func (m *SubdivMesh) NumPrims() int {
	return len(m.fan)
}

func (m *SubdivMesh) VertsPerPrim() int { return 3 }

// HitPrimID maps a fan triangle to its face.
func (m *SubdivMesh) HitPrimID(prim uint32) uint32 {
	return m.fan[prim].face
}

func (m *SubdivMesh) valence(face uint32) int {
	return int(m.buffers[FaceBuffer].Uint(int(face), 0))
}

func (m *SubdivMesh) vertexIndex(face uint32, corner int) int {
	return int(m.buffers[IndexBuffer].Uint(m.faceStart[face]+corner, 0))
}

// cornerUV returns the face parameterization of a corner: quads use the unit
// square, other faces place their corners around it.
func cornerUV(corner, valence int) (float32, float32) {
	if valence == 4 {
		uv := [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
		return uv[corner][0], uv[corner][1]
	}
	if valence == 3 {
		uv := [3][2]float32{{0, 0}, {1, 0}, {0, 1}}
		return uv[corner][0], uv[corner][1]
	}
	angle := 2 * math32.Pi * float32(corner) / float32(valence)
	return 0.5 + 0.5*math32.Cos(angle), 0.5 + 0.5*math32.Sin(angle)
}

// faceNormal returns the Newell normal of a face at timeStep.
func (m *SubdivMesh) faceNormal(face uint32, timeStep int) types.Vec3 {
	vtx := m.buffers[VertexBuffer(timeStep)]
	valence := m.valence(face)
	var n types.Vec3
	for k := 0; k < valence; k++ {
		a := vtx.Vec3(m.vertexIndex(face, k))
		b := vtx.Vec3(m.vertexIndex(face, (k+1)%valence))
		n[0] += (a[1] - b[1]) * (a[2] + b[2])
		n[1] += (a[2] - b[2]) * (a[0] + b[0])
		n[2] += (a[0] - b[0]) * (a[1] + b[1])
	}
	return n.Normalize()
}

func (m *SubdivMesh) PrimVertices(prim int, timeStep int, out []types.Vec4) {
	tri := m.fan[prim]
	vtx := m.buffers[VertexBuffer(timeStep)]
	corners := [3]int{0, int(tri.corner) + 1, int(tri.corner) + 2}
	for k, c := range corners {
		out[k] = vtx.Vec3(m.vertexIndex(tri.face, c)).Vec4(0)
	}
	if m.displacement == nil {
		return
	}

	valence := m.valence(tri.face)
	n := m.faceNormal(tri.face, timeStep)
	var u, v, nx, ny, nz, px, py, pz [3]float32
	for k, c := range corners {
		u[k], v[k] = cornerUV(c, valence)
		nx[k], ny[k], nz[k] = n[0], n[1], n[2]
		px[k], py[k], pz[k] = out[k][0], out[k][1], out[k][2]
	}
	m.displacement(m.userData, m.id, tri.face, u[:], v[:], nx[:], ny[:], nz[:], px[:], py[:], pz[:])
	for k := range corners {
		out[k] = types.Vec4{px[k], py[k], pz[k], 0}
	}
}

func (m *SubdivMesh) PrimBounds(prim int) (types.LBBox, bool) {
	var steps [MaxTimeSteps]types.BBox
	var verts [3]types.Vec4
	for t := 0; t < m.timeSteps; t++ {
		m.PrimVertices(prim, t, verts[:])
		box := types.EmptyBBox()
		for _, v := range verts {
			box = box.ExtendPoint(v.Vec3())
		}
		if m.displacement != nil {
			box = types.BBox{
				Lower: box.Lower.Add(m.displacementBounds.Lower),
				Upper: box.Upper.Add(m.displacementBounds.Upper),
			}
		}
		if !box.IsFinite() {
			return types.LBBox{}, false
		}
		steps[t] = box
	}
	if m.timeSteps == 1 {
		return types.Static(steps[0]), true
	}
	return types.LBBox{Bounds0: steps[0], Bounds1: steps[1]}, true
}

// Interpolate supports triangle and quad faces; (u, v) are face
// coordinates.
func (m *SubdivMesh) Interpolate(face uint32, u, v float32, t BufferType, out Derivatives, numFloats int) error {
	if int(face) >= len(m.faceStart) {
		return device.Errorf(device.InvalidArgument, "invalid face ID %d", face)
	}
	buf, err := m.attributeBuffer(t, numFloats)
	if err != nil {
		return err
	}
	if err = out.check(numFloats); err != nil {
		return err
	}
	switch m.valence(face) {
	case 3:
		interpolateTriangle(buf, m.vertexIndex(face, 0), m.vertexIndex(face, 1), m.vertexIndex(face, 2), u, v, out, numFloats)
	case 4:
		interpolateQuad(buf, m.vertexIndex(face, 0), m.vertexIndex(face, 1), m.vertexIndex(face, 2), m.vertexIndex(face, 3), u, v, out, numFloats)
	default:
		return device.Errorf(device.InvalidOperation, "interpolation supports triangle and quad faces only")
	}
	return nil
}
