package cmd

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/LiangYue1981816/embree/asset"
	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/geometry"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/scene"
	"github.com/LiangYue1981816/embree/types"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// The available commit strategies.
const (
	commitDefault = "commit"
	commitJoin    = "join"
	commitThread  = "thread"
)

type bufferOwner interface {
	Buffer(t geometry.BufferType) *device.Buffer
}

// sceneBuilder converts parsed scene assets into committed scenes.
type sceneBuilder struct {
	dev        *device.Device
	flags      scene.Flags
	aflags     scene.AlgorithmFlags
	commitMode string
	threads    int

	// Scenes created by the builder in creation order. The top level
	// scene always comes first.
	scenes []*scene.Scene
}

// Build creates the scene for the given asset. Meshes referenced by
// instances are placed in a separate source scene that is instanced once
// per asset instance.
func (b *sceneBuilder) Build(as *asset.Scene) (*scene.Scene, error) {
	top, err := b.newScene()
	if err != nil {
		return nil, err
	}

	if len(as.Instances) == 0 {
		for _, mesh := range as.Meshes {
			if err = addMesh(top, mesh); err != nil {
				return nil, err
			}
		}
		return top, b.commit(top)
	}

	// One source scene per instanced mesh.
	sources := make(map[int]*scene.Scene)
	for _, inst := range as.Instances {
		src, ok := sources[inst.Mesh]
		if !ok {
			if src, err = b.newScene(); err != nil {
				return nil, err
			}
			if err = addMesh(src, as.Meshes[inst.Mesh]); err != nil {
				return nil, err
			}
			if err = b.commit(src); err != nil {
				return nil, err
			}
			sources[inst.Mesh] = src
		}

		id, err := top.NewInstance(src, 1, ray.InvalidGeometryID)
		if err != nil {
			return nil, err
		}
		if err = top.SetTransform(id, types.RowMajor, inst.Transform.Floats(types.RowMajor), 0); err != nil {
			return nil, err
		}
	}
	return top, b.commit(top)
}

// Close releases all scenes created by the builder. Instancing scenes are
// closed before the scenes they reference.
func (b *sceneBuilder) Close() {
	for _, sc := range b.scenes {
		if err := sc.Close(); err != nil {
			logger.Warningf("could not close scene: %v", err)
		}
	}
	b.scenes = nil
}

func (b *sceneBuilder) newScene() (*scene.Scene, error) {
	sc, err := scene.New(b.dev, b.flags, b.aflags)
	if err != nil {
		return nil, err
	}
	b.scenes = append(b.scenes, sc)
	return sc, nil
}

func (b *sceneBuilder) commit(sc *scene.Scene) error {
	switch b.commitMode {
	case commitDefault, "":
		return sc.Commit()
	case commitJoin:
		return runCommitters(b.threads, func(_ int) error { return sc.CommitJoin() })
	case commitThread:
		return runCommitters(b.threads, func(threadID int) error { return sc.CommitThread(threadID, b.threads) })
	}
	return errors.Errorf("unsupported commit mode %q", b.commitMode)
}

// runCommitters invokes fn from n goroutines and returns the first error.
func runCommitters(n int, fn func(threadID int) error) error {
	if n < 1 {
		return errors.Errorf("invalid number of commit threads %d", n)
	}
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(threadID int) {
			defer wg.Done()
			errs[threadID] = fn(threadID)
		}(i)
	}
	wg.Wait()

	if err, found := lo.Find(errs, func(err error) bool { return err != nil }); found {
		return err
	}
	return nil
}

// addMesh creates a triangle and/or a quad mesh for the faces of m.
func addMesh(sc *scene.Scene, m *asset.Mesh) error {
	if len(m.Triangles) > 0 {
		id, err := sc.NewTriangleMesh(geometry.Static, len(m.Triangles), len(m.Vertices), 1, ray.InvalidGeometryID)
		if err != nil {
			return err
		}
		err = fillMesh(sc, id, m.Vertices, len(m.Triangles), func(i int) []uint32 { return m.Triangles[i][:] })
		if err != nil {
			return err
		}
	}
	if len(m.Quads) > 0 {
		id, err := sc.NewQuadMesh(geometry.Static, len(m.Quads), len(m.Vertices), 1, ray.InvalidGeometryID)
		if err != nil {
			return err
		}
		err = fillMesh(sc, id, m.Vertices, len(m.Quads), func(i int) []uint32 { return m.Quads[i][:] })
		if err != nil {
			return err
		}
	}
	return nil
}

func fillMesh(sc *scene.Scene, id uint32, vertices []types.Vec3, numPrims int, face func(i int) []uint32) error {
	g, err := sc.Geometry(id)
	if err != nil {
		return err
	}
	owner, ok := g.(bufferOwner)
	if !ok {
		return errors.Errorf("geometry %d does not expose its buffers", id)
	}

	if _, err = sc.Map(id, geometry.VertexBuffer0); err != nil {
		return err
	}
	vb := owner.Buffer(geometry.VertexBuffer0)
	for i, v := range vertices {
		vb.PutFloats(i, v[0], v[1], v[2])
	}
	if err = sc.Unmap(id, geometry.VertexBuffer0); err != nil {
		return err
	}

	if _, err = sc.Map(id, geometry.IndexBuffer); err != nil {
		return err
	}
	ib := owner.Buffer(geometry.IndexBuffer)
	for i := 0; i < numPrims; i++ {
		ib.PutUints(i, face(i)...)
	}
	return sc.Unmap(id, geometry.IndexBuffer)
}

// randomScene generates numTriangles small triangles scattered inside the
// unit cube, split over numMeshes meshes.
func randomScene(seed uint64, numMeshes, numTriangles int) *asset.Scene {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	numMeshes = max(1, numMeshes)

	as := &asset.Scene{}
	for meshIndex := 0; meshIndex < numMeshes; meshIndex++ {
		mesh := &asset.Mesh{Name: fmt.Sprintf("random-%d", meshIndex)}
		count := numTriangles / numMeshes
		if meshIndex == 0 {
			count += numTriangles % numMeshes
		}
		for i := 0; i < count; i++ {
			center := types.Vec3{rng.Float32(), rng.Float32(), rng.Float32()}
			base := uint32(len(mesh.Vertices))
			for v := 0; v < 3; v++ {
				offset := types.Vec3{rng.Float32() - 0.5, rng.Float32() - 0.5, rng.Float32() - 0.5}.Mul(0.05)
				mesh.Vertices = append(mesh.Vertices, center.Add(offset))
			}
			mesh.Triangles = append(mesh.Triangles, [3]uint32{base, base + 1, base + 2})
		}
		if len(mesh.Triangles) > 0 {
			as.Meshes = append(as.Meshes, mesh)
		}
	}
	return as
}
