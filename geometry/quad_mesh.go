package geometry

import (
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/types"
)

// QuadMesh is an indexed quad mesh. A quad whose last two indices are equal
// degenerates into a triangle.
type QuadMesh struct {
	Base
}

// NewQuadMesh creates a quad mesh with device owned buffers.
func NewQuadMesh(owner Owner, id uint32, flags Flags, numQuads, numVertices, numTimeSteps int) (*QuadMesh, error) {
	if err := checkTimeSteps(numTimeSteps); err != nil {
		return nil, err
	}
	m := &QuadMesh{Base: newBase(owner, QuadMeshType, id, flags, numTimeSteps)}
	if err := m.addMeshBuffers(device.FormatUint4, numQuads, device.FormatFloat3, numVertices); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *QuadMesh) NumPrims() int {
	return m.buffers[IndexBuffer].Len()
}

func (m *QuadMesh) VertsPerPrim() int { return 4 }

func (m *QuadMesh) indices(prim int) [4]int {
	idx := m.buffers[IndexBuffer]
	return [4]int{int(idx.Uint(prim, 0)), int(idx.Uint(prim, 1)), int(idx.Uint(prim, 2)), int(idx.Uint(prim, 3))}
}

func (m *QuadMesh) PrimVertices(prim int, timeStep int, out []types.Vec4) {
	vtx := m.buffers[VertexBuffer(timeStep)]
	for k, i := range m.indices(prim) {
		out[k] = vtx.Vec3(i).Vec4(0)
	}
}

func (m *QuadMesh) PrimBounds(prim int) (types.LBBox, bool) {
	idx := m.indices(prim)
	return indexedBounds(&m.Base, idx[:], 0)
}

func (m *QuadMesh) Prepare() error {
	return m.verifyBuffers()
}

func (m *QuadMesh) Interpolate(prim uint32, u, v float32, t BufferType, out Derivatives, numFloats int) error {
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
	idx := m.indices(int(prim))
	interpolateQuad(buf, idx[0], idx[1], idx[2], idx[3], u, v, out, numFloats)
	return nil
}
