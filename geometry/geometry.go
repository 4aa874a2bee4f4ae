package geometry

import (
	"fmt"

	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/ray"
	"github.com/LiangYue1981816/embree/types"
)

// MaxTimeSteps is the maximum number of motion blur time steps.
const MaxTimeSteps = 2

// Type identifies a geometry kind.
type Type uint8

// Supported geometry kinds.
const (
	TriangleMeshType Type = iota
	QuadMeshType
	CurvesType
	LineSegmentsType
	SubdivMeshType
	UserGeometryType
	InstanceType
	GeometryInstanceType
	GroupType
)

func (t Type) String() string {
	switch t {
	case TriangleMeshType:
		return "triangles"
	case QuadMeshType:
		return "quads"
	case CurvesType:
		return "curves"
	case LineSegmentsType:
		return "lines"
	case SubdivMeshType:
		return "subdiv"
	case UserGeometryType:
		return "user"
	case InstanceType:
		return "instance"
	case GeometryInstanceType:
		return "geometry-instance"
	case GroupType:
		return "group"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Flags describe how often a geometry is expected to change.
type Flags uint8

// Supported geometry flags.
const (
	Static Flags = iota
	Deformable
	Dynamic
)

// BufferType selects one of the buffers owned by a geometry.
type BufferType uint8

// Supported buffer types. Not every geometry owns every buffer.
const (
	IndexBuffer BufferType = iota
	VertexBuffer0
	VertexBuffer1
	UserVertexBuffer0
	UserVertexBuffer1
	FaceBuffer
	LevelBuffer
	EdgeCreaseIndexBuffer
	EdgeCreaseWeightBuffer
	VertexCreaseIndexBuffer
	VertexCreaseWeightBuffer
	HoleBuffer
)

// VertexBuffer returns the vertex buffer type for a time step.
func VertexBuffer(timeStep int) BufferType {
	return VertexBuffer0 + BufferType(timeStep)
}

func (t BufferType) String() string {
	switch t {
	case IndexBuffer:
		return "index"
	case VertexBuffer0:
		return "vertex0"
	case VertexBuffer1:
		return "vertex1"
	case UserVertexBuffer0:
		return "user-vertex0"
	case UserVertexBuffer1:
		return "user-vertex1"
	case FaceBuffer:
		return "face"
	case LevelBuffer:
		return "level"
	case EdgeCreaseIndexBuffer:
		return "edge-crease-index"
	case EdgeCreaseWeightBuffer:
		return "edge-crease-weight"
	case VertexCreaseIndexBuffer:
		return "vertex-crease-index"
	case VertexCreaseWeightBuffer:
		return "vertex-crease-weight"
	case HoleBuffer:
		return "hole"
	}
	return fmt.Sprintf("buffer(%d)", uint8(t))
}

// Owner is implemented by the scene a geometry belongs to. Geometries only
// keep this weak back reference; they never own the scene.
type Owner interface {
	Device() *device.Device

	// GeometryModified is invoked after every mutation of geometry id.
	GeometryModified(id uint32)

	// Frozen reports whether the owner is a static scene that has already
	// been committed.
	Frozen() bool
}

// Geometry is the capability interface shared by every geometry kind. Unless
// noted otherwise, methods that mutate the geometry expect the caller to
// hold the geometry lock.
type Geometry interface {
	Type() Type
	ID() uint32
	Flags() Flags
	TimeSteps() int

	Lock()
	Unlock()

	Enabled() bool
	Enable() error
	Disable() error
	Mask() uint32
	SetMask(mask uint32) error

	UserData() interface{}
	SetUserData(data interface{}) error

	Update() error
	UpdateBuffer(t BufferType) error
	SetBuffer(t BufferType, data []byte, offset, stride, numItems int) error
	Map(t BufferType) ([]byte, error)
	Unmap(t BufferType) error
	AnyMapped() bool

	SetTransform(xfm types.Affine, timeStep int) error
	SetTessellationRate(rate float32) error
	SetBoundsFunc(fn BoundsFunc) error
	SetDisplacementFunc(fn DisplacementFunc, bounds *ray.Bounds) error

	SetIntersectionFilter(fn FilterFunc) error
	SetIntersectionFilterN(width int, fn FilterFuncN) error
	SetOcclusionFilter(fn FilterFunc) error
	SetOcclusionFilterN(width int, fn FilterFuncN) error

	// NumPrims returns the number of build primitives.
	NumPrims() int

	// PrimBounds returns the linear bounds of build primitive prim. The
	// boolean result is false for degenerate or invalid primitives, which
	// are skipped by the builder.
	PrimBounds(prim int) (types.LBBox, bool)

	// Prepare validates the geometry and refreshes derived data ahead of
	// a build.
	Prepare() error

	// Committed clears modification flags once a build consumed the
	// geometry.
	Committed()
	Modified() bool

	Deleted() bool
	Erase()
	Release()
}

// Mesh is implemented by geometries whose primitives are stored as vertex
// data inside packed leaves.
type Mesh interface {
	Geometry

	// VertsPerPrim returns the number of vertex slots a primitive needs.
	VertsPerPrim() int

	// PrimVertices writes the vertices of prim at timeStep into out.
	PrimVertices(prim int, timeStep int, out []types.Vec4)
}

// HitMapper is implemented by meshes whose build primitives do not map 1:1
// to the primitive IDs reported in hits.
type HitMapper interface {
	HitPrimID(prim uint32) uint32
}

// Procedural is implemented by geometries that intersect rays themselves.
// The acceleration structure only culls their primitives by bounds.
type Procedural interface {
	Geometry

	Intersect(ctx *ray.Context, r *ray.Ray, prim uint32)
	Occluded(ctx *ray.Context, r *ray.Ray, prim uint32) bool
}

// Traversable is an acceleration structure (or a whole scene) that object
// geometries delegate to.
type Traversable interface {
	Intersect(ctx *ray.Context, r *ray.Ray)
	Occluded(ctx *ray.Context, r *ray.Ray) bool
	LinearBounds() types.LBBox
}

// Interpolator evaluates vertex attributes over a primitive.
type Interpolator interface {
	Interpolate(prim uint32, u, v float32, t BufferType, out Derivatives, numFloats int) error
}

// Derivatives receives the output of Interpolate. Nil slices are skipped.
type Derivatives struct {
	P, DPdu, DPdv             []float32
	DDPdudu, DDPdvdv, DDPdudv []float32
}

// Errors shared by all geometry kinds.
var (
	ErrNotSupported = device.Errorf(device.InvalidOperation, "operation not supported for this geometry")
	ErrFrozen       = device.Errorf(device.InvalidOperation, "static geometries cannot be modified after commit")
)

func checkTimeSteps(numTimeSteps int) error {
	if numTimeSteps < 1 || numTimeSteps > MaxTimeSteps {
		return device.Errorf(device.InvalidOperation, "number of time steps %d is out of range [1, %d]", numTimeSteps, MaxTimeSteps)
	}
	return nil
}
