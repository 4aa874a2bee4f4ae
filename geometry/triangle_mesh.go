package geometry

import (
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/types"
)

// TriangleMesh is an indexed triangle mesh with optional motion blur.
type TriangleMesh struct {
	Base
}

// NewTriangleMesh creates a mesh with device owned index and vertex
// buffers.
func NewTriangleMesh(owner Owner, id uint32, flags Flags, numTriangles, numVertices, numTimeSteps int) (*TriangleMesh, error) {
	if err := checkTimeSteps(numTimeSteps); err != nil {
		return nil, err
	}
	m := &TriangleMesh{Base: newBase(owner, TriangleMeshType, id, flags, numTimeSteps)}
	if err := m.addMeshBuffers(device.FormatUint3, numTriangles, device.FormatFloat3, numVertices); err != nil {
		return nil, err
	}
	return m, nil
}

// addMeshBuffers allocates the index, vertex and user vertex buffers common
// to all indexed meshes.
func (b *Base) addMeshBuffers(indexFormat device.Format, numPrims int, vertexFormat device.Format, numVertices int) error {
	if err := b.addBuffer(IndexBuffer, indexFormat, numPrims); err != nil {
		return err
	}
	for t := 0; t < b.timeSteps; t++ {
		if err := b.addBuffer(VertexBuffer(t), vertexFormat, numVertices); err != nil {
			return err
		}
	}
	for _, t := range []BufferType{UserVertexBuffer0, UserVertexBuffer1} {
		if err := b.addBuffer(t, device.FormatFloat, numVertices); err != nil {
			return err
		}
	}
	return nil
}

func (m *TriangleMesh) NumPrims() int {
	return m.buffers[IndexBuffer].Len()
}

func (m *TriangleMesh) VertsPerPrim() int { return 3 }

func (m *TriangleMesh) indices(prim int) (int, int, int) {
	idx := m.buffers[IndexBuffer]
	return int(idx.Uint(prim, 0)), int(idx.Uint(prim, 1)), int(idx.Uint(prim, 2))
}

// PrimVertices writes the three triangle corners.
func (m *TriangleMesh) PrimVertices(prim int, timeStep int, out []types.Vec4) {
	vtx := m.buffers[VertexBuffer(timeStep)]
	i0, i1, i2 := m.indices(prim)
	out[0] = vtx.Vec3(i0).Vec4(0)
	out[1] = vtx.Vec3(i1).Vec4(0)
	out[2] = vtx.Vec3(i2).Vec4(0)
}

func (m *TriangleMesh) PrimBounds(prim int) (types.LBBox, bool) {
	i0, i1, i2 := m.indices(prim)
	return indexedBounds(&m.Base, []int{i0, i1, i2}, 0)
}

func (m *TriangleMesh) Prepare() error {
	return m.verifyBuffers()
}

func (m *TriangleMesh) Interpolate(prim uint32, u, v float32, t BufferType, out Derivatives, numFloats int) error {
	if int(prim) >= m.NumPrims() {
		return device.Errorf(device.InvalidArgument, "invalid primitive ID %d", prim)
	}
	buf, err := m.attributeBuffer(t, numFloats)
	if err != nil {
		return err
	}
	if err = out.check(numFloats); err != nil {
		return err
	}
	i0, i1, i2 := m.indices(int(prim))
	interpolateTriangle(buf, i0, i1, i2, u, v, out, numFloats)
	return nil
}

// indexedBounds returns the linear bounds of the given vertices enlarged by
// radius (or by the largest w component when radius < 0).
func indexedBounds(b *Base, verts []int, radius float32) (types.LBBox, bool) {
	for t := 0; t < b.timeSteps; t++ {
		numVertices := b.buffers[VertexBuffer(t)].Len()
		for _, v := range verts {
			if v < 0 || v >= numVertices {
				return types.LBBox{}, false
			}
		}
	}

	var steps [MaxTimeSteps]types.BBox
	for t := 0; t < b.timeSteps; t++ {
		vtx := b.buffers[VertexBuffer(t)]
		box := types.EmptyBBox()
		var maxRadius float32
		for _, v := range verts {
			p := vtx.Vec4(v)
			box = box.ExtendPoint(p.Vec3())
			if radius < 0 && p[3] > maxRadius {
				maxRadius = p[3]
			}
		}
		if radius >= 0 {
			maxRadius = radius
		}
		box = box.Enlarge(maxRadius)
		if !box.IsFinite() {
			return types.LBBox{}, false
		}
		steps[t] = box
	}

	if b.timeSteps == 1 {
		return types.Static(steps[0]), true
	}
	return types.LBBox{Bounds0: steps[0], Bounds1: steps[1]}, true
}
