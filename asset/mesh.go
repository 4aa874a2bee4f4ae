package asset

import "github.com/LiangYue1981816/embree/types"

// Mesh is a named polygon mesh. Faces with three vertices end up in
// Triangles, faces with four in Quads.
type Mesh struct {
	Name string

	Vertices  []types.Vec3
	Triangles [][3]uint32
	Quads     [][4]uint32
}

// Bounds returns the bounding box of all mesh vertices.
func (m *Mesh) Bounds() types.BBox {
	b := types.EmptyBBox()
	for _, v := range m.Vertices {
		b = b.ExtendPoint(v)
	}
	return b
}

// NumPrims returns the number of faces.
func (m *Mesh) NumPrims() int {
	return len(m.Triangles) + len(m.Quads)
}

// Instance places a copy of a mesh in the scene.
type Instance struct {
	Mesh      int
	Transform types.Affine
}

// Scene is the geometry of a parsed scene file.
type Scene struct {
	Meshes    []*Mesh
	Instances []Instance
}

// MeshIndex returns the index of the mesh with the given name or -1.
func (s *Scene) MeshIndex(name string) int {
	for i, m := range s.Meshes {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// Bounds returns the bounds of the scene. If no instances are defined every
// mesh is placed once with an identity transform.
func (s *Scene) Bounds() types.BBox {
	b := types.EmptyBBox()
	if len(s.Instances) == 0 {
		for _, m := range s.Meshes {
			b = b.Extend(m.Bounds())
		}
		return b
	}
	for _, inst := range s.Instances {
		b = b.Extend(inst.Transform.XfmBBox(s.Meshes[inst.Mesh].Bounds()))
	}
	return b
}
