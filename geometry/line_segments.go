package geometry

import (
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/types"
)

// LineSegments stores linear segments with a per vertex radius in w. The
// index buffer holds the first vertex of each segment.
type LineSegments struct {
	Base
}

// NewLineSegments creates a line segment geometry.
func NewLineSegments(owner Owner, id uint32, flags Flags, numSegments, numVertices, numTimeSteps int) (*LineSegments, error) {
	if err := checkTimeSteps(numTimeSteps); err != nil {
		return nil, err
	}
	l := &LineSegments{Base: newBase(owner, LineSegmentsType, id, flags, numTimeSteps)}
	if err := l.addMeshBuffers(device.FormatUint, numSegments, device.FormatFloat4, numVertices); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LineSegments) NumPrims() int {
	return l.buffers[IndexBuffer].Len()
}

func (l *LineSegments) VertsPerPrim() int { return 2 }

func (l *LineSegments) first(prim int) int {
	return int(l.buffers[IndexBuffer].Uint(prim, 0))
}

func (l *LineSegments) PrimVertices(prim int, timeStep int, out []types.Vec4) {
	vtx := l.buffers[VertexBuffer(timeStep)]
	v := l.first(prim)
	out[0] = vtx.Vec4(v)
	out[1] = vtx.Vec4(v + 1)
}

func (l *LineSegments) PrimBounds(prim int) (types.LBBox, bool) {
	v := l.first(prim)
	return indexedBounds(&l.Base, []int{v, v + 1}, -1)
}

func (l *LineSegments) Prepare() error {
	return l.verifyBuffers()
}

func (l *LineSegments) Interpolate(prim uint32, u, v float32, t BufferType, out Derivatives, numFloats int) error {
	if int(prim) >= l.NumPrims() {
		return device.Errorf(device.InvalidArgument, "invalid primitive ID %d", prim)
	}
	buf, err := l.attributeBuffer(t, numFloats)
	if err != nil {
		return err
	}
	if err = out.check(numFloats); err != nil {
		return err
	}
	i := l.first(int(prim))
	for c := 0; c < numFloats; c++ {
		p0, p1 := buf.Float(i, c), buf.Float(i+1, c)
		out.put(c, (1-u)*p0+u*p1, p1-p0, 0, 0, 0, 0)
	}
	return nil
}
