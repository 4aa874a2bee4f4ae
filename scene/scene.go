// Package scene implements scenes: geometry registries that are committed
// into acceleration structures and then queried with rays.
package scene

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/geometry"
	"github.com/LiangYue1981816/embree/log"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/types"
	"github.com/google/uuid"
)

// ProgressMonitorFunc is invoked during commit with the fraction of work
// done so far. Returning false cancels the build.
type ProgressMonitorFunc func(progress float64) bool

// Scene is a container of geometries.
//
// Geometries are created, modified and deleted while the scene is in the
// Modified state. Commit builds the acceleration structures and moves the
// scene to the Committed state; only committed scenes can be queried.
// Mutating a scene (or any of its geometries) while a commit is in
// progress is not allowed.
type Scene struct {
	logger log.Logger
	id     uuid.UUID

	device *device.Device
	flags  Flags
	aflags AlgorithmFlags

	// The scene lock guards the registry and the scene level settings.
	mu       sync.RWMutex
	reg      registry
	progress ProgressMonitorFunc
	closed   bool

	state     atomic.Uint32
	committed atomic.Bool
	index     atomic.Pointer[index]

	// Number of instances (in any scene) referencing this scene.
	instancedBy atomic.Int32

	// Serializes builds and tracks the cooperative commit in progress.
	buildMu sync.Mutex
	joinMu  sync.Mutex
	join    *workers
	threads *threadCommit
}

// New creates a scene on dev. Scenes that specify neither Coherent nor
// Incoherent are treated as Incoherent.
func New(dev *device.Device, flags Flags, aflags AlgorithmFlags) (*Scene, error) {
	if dev == nil {
		return nil, device.ReportNoDevice(device.Errorf(device.InvalidArgument, "invalid device"))
	}
	if flags&(Coherent|Incoherent) == 0 {
		flags |= Incoherent
	}

	dev.Lock()
	err := dev.AttachScene()
	dev.Unlock()
	if err != nil {
		return nil, dev.Report(err)
	}

	id := uuid.New()
	s := &Scene{
		logger: log.New(fmt.Sprintf("scene-%s", id.String()[:8])),
		id:     id,
		device: dev,
		flags:  flags,
		aflags: aflags,
	}
	s.state.Store(uint32(Modified))
	s.logger.Debugf("created scene (flags %s, algorithm flags 0x%x)", flags, uint32(aflags))
	return s, nil
}

// Close releases the scene and all of its geometries. It fails while the
// scene is referenced by an instance.
func (s *Scene) Close() error {
	if err := s.check(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return s.device.Report(device.Errorf(device.InvalidOperation, "scene already closed"))
	}
	if n := s.instancedBy.Load(); n > 0 {
		s.mu.Unlock()
		return s.device.Report(device.Errorf(device.InvalidOperation, "scene is referenced by %d instance(s)", n))
	}
	s.closed = true

	for _, g := range s.reg.live() {
		s.unlink(g)
		s.reg.remove(g)
	}
	released := s.reg.drainReleased()
	s.mu.Unlock()

	for _, g := range released {
		g.Release()
	}
	if idx := s.index.Swap(nil); idx != nil {
		idx.release()
	}

	s.device.Lock()
	s.device.DetachScene()
	s.device.Unlock()
	s.logger.Debug("scene closed")
	return nil
}

// ID returns the unique scene identifier.
func (s *Scene) ID() uuid.UUID { return s.id }

// Device returns the device that owns the scene.
func (s *Scene) Device() *device.Device { return s.device }

// Flags returns the scene flags.
func (s *Scene) Flags() Flags { return s.flags }

// AlgorithmFlags returns the algorithm flags.
func (s *Scene) AlgorithmFlags() AlgorithmFlags { return s.aflags }

// State returns the current commit state.
func (s *Scene) State() State { return State(s.state.Load()) }

// IsStatic reports whether the scene was created without the Dynamic flag.
func (s *Scene) IsStatic() bool { return s.flags&Dynamic == 0 }

// GeometryModified implements geometry.Owner.
func (s *Scene) GeometryModified(id uint32) {
	s.state.Store(uint32(Modified))
}

// Frozen implements geometry.Owner. Static scenes cannot change after
// their first commit.
func (s *Scene) Frozen() bool {
	return s.IsStatic() && s.committed.Load()
}

// SetProgressMonitor registers a callback that is invoked during commit.
// Passing nil removes it.
func (s *Scene) SetProgressMonitor(fn ProgressMonitorFunc) {
	if s.check() != nil {
		return
	}
	s.mu.Lock()
	s.progress = fn
	s.mu.Unlock()
}

// Implements Stringer.
func (s *Scene) String() string {
	s.mu.RLock()
	n := len(s.reg.live())
	s.mu.RUnlock()
	return fmt.Sprintf("Scene %s (%s, %d geometries, %s)", s.id, s.flags, n, s.State())
}

// create registers the geometry built by ctor under a new (or the
// requested) ID.
func (s *Scene) create(gflags geometry.Flags, requested uint32, ctor func(id uint32) (geometry.Geometry, error)) (uint32, error) {
	if err := s.check(); err != nil {
		return ray.InvalidGeometryID, err
	}
	if s.IsStatic() && gflags != geometry.Static {
		return ray.InvalidGeometryID, s.device.Report(device.Errorf(device.InvalidOperation, "static scenes can only contain static geometries"))
	}
	if s.Frozen() {
		return ray.InvalidGeometryID, s.device.Report(geometry.ErrFrozen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ray.InvalidGeometryID, s.device.Report(device.Errorf(device.InvalidOperation, "scene is closed"))
	}
	id, err := s.reg.nextID(requested)
	if err != nil {
		return ray.InvalidGeometryID, s.device.Report(err)
	}
	g, err := ctor(id)
	if err != nil {
		return ray.InvalidGeometryID, s.device.Report(err)
	}
	s.reg.put(g)
	s.state.Store(uint32(Modified))
	s.logger.Debugf("created %s geometry %d", g.Type(), id)
	return id, nil
}

// NewTriangleMesh creates a triangle mesh. Pass ray.InvalidGeometryID as
// geomID to have an ID assigned.
func (s *Scene) NewTriangleMesh(gflags geometry.Flags, numTriangles, numVertices, numTimeSteps int, geomID uint32) (uint32, error) {
	return s.create(gflags, geomID, func(id uint32) (geometry.Geometry, error) {
		return geometry.NewTriangleMesh(s, id, gflags, numTriangles, numVertices, numTimeSteps)
	})
}

// NewQuadMesh creates a quad mesh.
func (s *Scene) NewQuadMesh(gflags geometry.Flags, numQuads, numVertices, numTimeSteps int, geomID uint32) (uint32, error) {
	return s.create(gflags, geomID, func(id uint32) (geometry.Geometry, error) {
		return geometry.NewQuadMesh(s, id, gflags, numQuads, numVertices, numTimeSteps)
	})
}

// NewLineSegments creates a set of line segments.
func (s *Scene) NewLineSegments(gflags geometry.Flags, numSegments, numVertices, numTimeSteps int, geomID uint32) (uint32, error) {
	return s.create(gflags, geomID, func(id uint32) (geometry.Geometry, error) {
		return geometry.NewLineSegments(s, id, gflags, numSegments, numVertices, numTimeSteps)
	})
}

// NewCurves creates a set of cubic curves.
func (s *Scene) NewCurves(kind geometry.CurveKind, basis geometry.Basis, gflags geometry.Flags, numCurves, numVertices, numTimeSteps int, geomID uint32) (uint32, error) {
	return s.create(gflags, geomID, func(id uint32) (geometry.Geometry, error) {
		return geometry.NewCurves(s, id, kind, basis, gflags, numCurves, numVertices, numTimeSteps)
	})
}

// NewSubdivMesh creates a subdivision mesh.
func (s *Scene) NewSubdivMesh(gflags geometry.Flags, numFaces, numEdges, numVertices, numEdgeCreases, numVertexCreases, numHoles, numTimeSteps int, geomID uint32) (uint32, error) {
	return s.create(gflags, geomID, func(id uint32) (geometry.Geometry, error) {
		return geometry.NewSubdivMesh(s, id, gflags, numFaces, numEdges, numVertices, numEdgeCreases, numVertexCreases, numHoles, numTimeSteps)
	})
}

// NewUserGeometry creates a geometry whose items are bounded and
// intersected by callbacks.
func (s *Scene) NewUserGeometry(gflags geometry.Flags, numItems, numTimeSteps int, geomID uint32) (uint32, error) {
	return s.create(gflags, geomID, func(id uint32) (geometry.Geometry, error) {
		return geometry.NewUserGeometry(s, id, gflags, numItems, numTimeSteps)
	})
}

// NewInstance creates an instance of source, which must belong to the same
// device and stays referenced until the instance is deleted.
func (s *Scene) NewInstance(source *Scene, numTimeSteps int, geomID uint32) (uint32, error) {
	if err := s.check(); err != nil {
		return ray.InvalidGeometryID, err
	}
	if source == nil || source == s {
		return ray.InvalidGeometryID, s.device.Report(device.Errorf(device.InvalidArgument, "invalid source scene"))
	}
	if source.device != s.device {
		return ray.InvalidGeometryID, s.device.Report(device.Errorf(device.InvalidOperation, "scenes do not belong to the same device"))
	}
	id, err := s.create(geometry.Static, geomID, func(id uint32) (geometry.Geometry, error) {
		return geometry.NewInstance(s, id, nested{source}, numTimeSteps)
	})
	if err == nil {
		source.instancedBy.Add(1)
	}
	return id, err
}

// NewGeometryInstance creates an instance of geometry target of this scene.
func (s *Scene) NewGeometryInstance(target uint32, geomID uint32) (uint32, error) {
	return s.create(geometry.Static, geomID, func(id uint32) (geometry.Geometry, error) {
		g, err := s.reg.get(target)
		if err != nil {
			return nil, err
		}
		if id == target {
			return nil, device.Errorf(device.InvalidArgument, "geometry instance cannot reference itself")
		}
		s.reg.addRef(target)
		return geometry.NewGeometryInstance(s, id, g), nil
	})
}

// NewGeometryGroup creates a group of existing geometries of this scene.
func (s *Scene) NewGeometryGroup(gflags geometry.Flags, members []uint32, geomID uint32) (uint32, error) {
	return s.create(gflags, geomID, func(id uint32) (geometry.Geometry, error) {
		geoms := make([]geometry.Geometry, 0, len(members))
		for _, m := range members {
			g, err := s.reg.get(m)
			if err != nil {
				return nil, err
			}
			if m == id {
				return nil, device.Errorf(device.InvalidArgument, "geometry group cannot contain itself")
			}
			geoms = append(geoms, g)
		}
		group, err := geometry.NewGroup(s, id, gflags, geoms)
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			s.reg.addRef(m)
		}
		return group, nil
	})
}

// Geometry returns the live geometry with the given ID.
func (s *Scene) Geometry(id uint32) (geometry.Geometry, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	g, err := s.reg.get(id)
	s.mu.RUnlock()
	if err != nil {
		return nil, s.device.Report(err)
	}
	return g, nil
}

// Modify invokes fn while holding the lock of geometry id. Errors returned
// by fn are reported to the device.
func (s *Scene) Modify(id uint32, fn func(g geometry.Geometry) error) error {
	g, err := s.Geometry(id)
	if err != nil {
		return err
	}
	g.Lock()
	err = fn(g)
	g.Unlock()
	return s.device.Report(err)
}

// Delete removes geometry id from the scene. The ID stays reserved while an
// instance or group still references the geometry.
func (s *Scene) Delete(id uint32) error {
	if err := s.check(); err != nil {
		return err
	}
	if s.Frozen() {
		return s.device.Report(geometry.ErrFrozen)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, err := s.reg.get(id)
	if err != nil {
		return s.device.Report(err)
	}
	s.unlink(g)
	s.reg.remove(g)
	s.state.Store(uint32(Modified))
	s.logger.Debugf("deleted %s geometry %d", g.Type(), id)
	return nil
}

// unlink drops the references held by g. It expects the scene lock.
func (s *Scene) unlink(g geometry.Geometry) {
	switch t := g.(type) {
	case *geometry.Instance:
		if src, ok := t.Source().(nested); ok {
			src.scene.instancedBy.Add(-1)
		}
	case *geometry.GeometryInstance:
		s.reg.dropRef(t.Target().ID())
	case *geometry.Group:
		for _, m := range t.Members() {
			s.reg.dropRef(m.ID())
		}
	}
}

// SetBuffer shares caller memory with a geometry buffer.
func (s *Scene) SetBuffer(id uint32, t geometry.BufferType, data []byte, offset, stride, numItems int) error {
	return s.Modify(id, func(g geometry.Geometry) error {
		return g.SetBuffer(t, data, offset, stride, numItems)
	})
}

// Map grants write access to a geometry buffer.
func (s *Scene) Map(id uint32, t geometry.BufferType) ([]byte, error) {
	var data []byte
	err := s.Modify(id, func(g geometry.Geometry) (err error) {
		data, err = g.Map(t)
		return err
	})
	return data, err
}

// Unmap ends a Map session.
func (s *Scene) Unmap(id uint32, t geometry.BufferType) error {
	return s.Modify(id, func(g geometry.Geometry) error { return g.Unmap(t) })
}

// Update flags every buffer of a geometry as modified.
func (s *Scene) Update(id uint32) error {
	return s.Modify(id, func(g geometry.Geometry) error { return g.Update() })
}

// UpdateBuffer flags one buffer of a geometry as modified.
func (s *Scene) UpdateBuffer(id uint32, t geometry.BufferType) error {
	return s.Modify(id, func(g geometry.Geometry) error { return g.UpdateBuffer(t) })
}

// Enable makes a geometry visible to queries after the next commit.
func (s *Scene) Enable(id uint32) error {
	return s.Modify(id, func(g geometry.Geometry) error { return g.Enable() })
}

// Disable hides a geometry from queries after the next commit.
func (s *Scene) Disable(id uint32) error {
	return s.Modify(id, func(g geometry.Geometry) error { return g.Disable() })
}

// SetMask sets the ray mask of a geometry.
func (s *Scene) SetMask(id uint32, mask uint32) error {
	return s.Modify(id, func(g geometry.Geometry) error { return g.SetMask(mask) })
}

// SetTransform sets the transform of an instance for one time step. The
// matrix is read according to layout.
func (s *Scene) SetTransform(id uint32, layout types.MatrixLayout, xfm []float32, timeStep int) error {
	return s.Modify(id, func(g geometry.Geometry) error {
		m, ok := types.ConvertTransform(layout, xfm)
		if !ok {
			return device.Errorf(device.InvalidOperation, "unknown matrix layout %s", layout)
		}
		return g.SetTransform(m, timeStep)
	})
}

// nested exposes the committed index of a scene to the instances that
// reference it.
type nested struct {
	scene *Scene
}

func (n nested) Device() *device.Device { return n.scene.device }

func (n nested) Intersect(ctx *ray.Context, r *ray.Ray) {
	if idx := n.scene.index.Load(); idx != nil {
		idx.Intersect(ctx, r)
	}
}

func (n nested) Occluded(ctx *ray.Context, r *ray.Ray) bool {
	idx := n.scene.index.Load()
	return idx != nil && idx.Occluded(ctx, r)
}

func (n nested) LinearBounds() types.LBBox {
	if idx := n.scene.index.Load(); idx != nil {
		return idx.LinearBounds()
	}
	return types.EmptyLBBox()
}
