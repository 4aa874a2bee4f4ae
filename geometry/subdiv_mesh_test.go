package geometry

import (
	"testing"

	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/types"
)

// quadAndTriangle builds a mesh with a quad face followed by a triangle face
// sharing the edge 1-2.
func quadAndTriangle(t *testing.T, numHoles int) *SubdivMesh {
	m, err := NewSubdivMesh(nil, 0, Static, 2, 7, 5, 0, 0, numHoles, 1)
	if err != nil {
		t.Fatal(err)
	}
	faces := m.Buffer(FaceBuffer)
	faces.PutUints(0, 4)
	faces.PutUints(1, 3)

	idx := m.Buffer(IndexBuffer)
	for i, v := range []uint32{0, 1, 2, 3, 1, 4, 2} {
		idx.PutUints(i, v)
	}

	vtx := m.Buffer(VertexBuffer0)
	vtx.PutFloats(0, 0, 0, 0)
	vtx.PutFloats(1, 1, 0, 0)
	vtx.PutFloats(2, 1, 1, 0)
	vtx.PutFloats(3, 0, 1, 0)
	vtx.PutFloats(4, 2, 0.5, 0)
	return m
}

func TestSubdivPrepareBuildsFan(t *testing.T) {
	m := quadAndTriangle(t, 0)
	if err := m.Prepare(); err != nil {
		t.Fatal(err)
	}
	if m.NumPrims() != 3 {
		t.Fatalf("expected 3 fan triangles; got %d", m.NumPrims())
	}
	if got := m.HitPrimID(2); got != 1 {
		t.Fatalf("expected fan triangle 2 to map to face 1; got %d", got)
	}

	var verts [3]types.Vec4
	m.PrimVertices(1, 0, verts[:])
	if verts[1] != (types.Vec4{1, 1, 0, 0}) || verts[2] != (types.Vec4{0, 1, 0, 0}) {
		t.Fatalf("expected second fan triangle to use corners 2 and 3; got %v", verts)
	}
}

func TestSubdivHolesAreSkipped(t *testing.T) {
	m := quadAndTriangle(t, 1)
	m.Buffer(HoleBuffer).PutUints(0, 0)
	if err := m.Prepare(); err != nil {
		t.Fatal(err)
	}
	if m.NumPrims() != 1 || m.HitPrimID(0) != 1 {
		t.Fatalf("expected only the triangle face to remain; got %d primitives", m.NumPrims())
	}
}

func TestSubdivInvalidTopology(t *testing.T) {
	m := quadAndTriangle(t, 0)
	m.Buffer(FaceBuffer).PutUints(1, 2)
	if err := m.Prepare(); device.CodeOf(err) != device.InvalidOperation {
		t.Fatalf("expected INVALID_OPERATION for valence 2; got %v", err)
	}

	m = quadAndTriangle(t, 0)
	m.Buffer(IndexBuffer).PutUints(6, 42)
	if err := m.Prepare(); device.CodeOf(err) != device.InvalidOperation {
		t.Fatalf("expected INVALID_OPERATION for out of range vertex; got %v", err)
	}
}

func TestSubdivLevels(t *testing.T) {
	m := quadAndTriangle(t, 0)
	for _, l := range m.Levels() {
		if l != 2 {
			t.Fatalf("expected default level 2; got %f", l)
		}
	}

	if err := m.SetTessellationRate(0); device.CodeOf(err) != device.InvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT; got %v", err)
	}
	if err := m.SetTessellationRate(5); err != nil {
		t.Fatal(err)
	}
	if l := m.Levels()[0]; l != 5 {
		t.Fatalf("expected tessellation rate to be used as level; got %f", l)
	}

	m.Buffer(LevelBuffer).PutFloats(3, 7)
	if l := m.Levels()[3]; l != 7 {
		t.Fatalf("expected level buffer to take precedence; got %f", l)
	}
}

func TestSubdivDisplacement(t *testing.T) {
	m := quadAndTriangle(t, 0)
	if err := m.Prepare(); err != nil {
		t.Fatal(err)
	}

	lift := &ray.Bounds{UpperZ: 1}
	err := m.SetDisplacementFunc(func(_ interface{}, geomID, primID uint32, u, v, nx, ny, nz, px, py, pz []float32) {
		for i := range pz {
			pz[i] += nz[i]
		}
	}, lift)
	if err != nil {
		t.Fatal(err)
	}

	var verts [3]types.Vec4
	m.PrimVertices(0, 0, verts[:])
	for k, v := range verts {
		if v[2] != 1 {
			t.Fatalf("expected vertex %d to be displaced along +z; got %v", k, v)
		}
	}

	lb, ok := m.PrimBounds(0)
	if !ok {
		t.Fatal("expected displaced primitive to be valid")
	}
	if lb.Bounds0.Upper[2] != 2 {
		t.Fatalf("expected displacement bounds to extend the box to z = 2; got %v", lb.Bounds0)
	}
}

func TestSubdivInterpolate(t *testing.T) {
	m := quadAndTriangle(t, 0)
	if err := m.Prepare(); err != nil {
		t.Fatal(err)
	}

	var p [3]float32
	if err := m.Interpolate(0, 1, 1, VertexBuffer0, Derivatives{P: p[:]}, 3); err != nil {
		t.Fatal(err)
	}
	if exp := [3]float32{1, 1, 0}; p != exp {
		t.Fatalf("expected %v; got %v", exp, p)
	}
	if err := m.Interpolate(2, 0, 0, VertexBuffer0, Derivatives{P: p[:]}, 3); device.CodeOf(err) != device.InvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT for invalid face; got %v", err)
	}
}
