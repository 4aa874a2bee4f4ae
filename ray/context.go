package ray

import "sync/atomic"

// Flags tune traversal for the expected ray distribution.
type Flags uint32

// Supported context flags.
const (
	Incoherent Flags = 0
	Coherent   Flags = 1 << 0
)

// Shape identifies the form of the top level call.
type Shape uint8

// Supported call shapes.
const (
	// A single ray.
	Single Shape = iota

	// A fixed width packet (4, 8 or 16 rays).
	Packet

	// A stream of single rays (array of structs or array of pointers).
	Stream1M

	// A stream of packets (structure of arrays or structure of pointers).
	StreamN
)

// Stats collects optional traversal counters.
type Stats struct {
	NodesVisited atomic.Int64
	PrimTests    atomic.Int64
}

// Context is the per query state that travels unchanged through every nested
// traversal call of one top level query.
type Context struct {
	Flags Flags

	// Arbitrary data passed to filter and user geometry callbacks.
	UserRayExt interface{}

	// Optional traversal counters.
	Stats *Stats

	scene interface{}
	shape Shape
	width int
}

// Bind returns the context used for one top level call on scene. The user
// supplied context may be nil.
func Bind(user *Context, scene interface{}, shape Shape, width int) *Context {
	ctx := &Context{scene: scene, shape: shape, width: width}
	if user != nil {
		ctx.Flags = user.Flags
		ctx.UserRayExt = user.UserRayExt
		ctx.Stats = user.Stats
	}
	return ctx
}

// Scene returns the scene that started the query.
func (c *Context) Scene() interface{} {
	return c.scene
}

// Shape returns the form of the originating call.
func (c *Context) Shape() Shape {
	return c.shape
}

// Width returns the packet width of the originating call. Streams report the
// width they were regrouped into.
func (c *Context) Width() int {
	return c.width
}

// CountNode records a visited node.
func (c *Context) CountNode() {
	if c.Stats != nil {
		c.Stats.NodesVisited.Add(1)
	}
}

// CountPrim records a primitive test.
func (c *Context) CountPrim() {
	if c.Stats != nil {
		c.Stats.PrimTests.Add(1)
	}
}
