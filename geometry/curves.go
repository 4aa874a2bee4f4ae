package geometry

import (
	"fmt"

	"github.com/LiangYue1981816/embree/device"
	"github.com/LiangYue1981816/embree/types"
)

// CurveKind selects how a curve is rendered.
type CurveKind uint8

// Supported curve kinds.
const (
	// Flat ribbon that always faces the ray.
	Hair CurveKind = iota

	// Swept circle.
	Round
)

// Basis selects the curve basis functions.
type Basis uint8

// Supported bases.
const (
	Bezier Basis = iota
	BSpline
)

func (b Basis) String() string {
	if b == BSpline {
		return "bspline"
	}
	return "bezier"
}

func (k CurveKind) String() string {
	if k == Round {
		return "curve"
	}
	return "hair"
}

// Curves stores cubic curves with a per control point radius in w. The
// index buffer holds the first control point of each curve.
type Curves struct {
	Base

	kind  CurveKind
	basis Basis
}

// NewCurves creates a curve geometry.
func NewCurves(owner Owner, id uint32, kind CurveKind, basis Basis, flags Flags, numCurves, numVertices, numTimeSteps int) (*Curves, error) {
	if err := checkTimeSteps(numTimeSteps); err != nil {
		return nil, err
	}
	c := &Curves{
		Base:  newBase(owner, CurvesType, id, flags, numTimeSteps),
		kind:  kind,
		basis: basis,
	}
	if err := c.addMeshBuffers(device.FormatUint, numCurves, device.FormatFloat4, numVertices); err != nil {
		return nil, err
	}
	return c, nil
}

// Kind returns the curve kind.
func (c *Curves) Kind() CurveKind { return c.kind }

// Basis returns the curve basis.
func (c *Curves) Basis() Basis { return c.basis }

// Implements Stringer.
func (c *Curves) String() string {
	return fmt.Sprintf("%s %s curves %d", c.basis, c.kind, c.id)
}

func (c *Curves) NumPrims() int {
	return c.buffers[IndexBuffer].Len()
}

func (c *Curves) VertsPerPrim() int { return 4 }

func (c *Curves) first(prim int) int {
	return int(c.buffers[IndexBuffer].Uint(prim, 0))
}

func (c *Curves) PrimVertices(prim int, timeStep int, out []types.Vec4) {
	vtx := c.buffers[VertexBuffer(timeStep)]
	v := c.first(prim)
	for k := 0; k < 4; k++ {
		out[k] = vtx.Vec4(v + k)
	}
}

// PrimBounds relies on the convex hull property of both bases: the curve
// never leaves the box spanned by its control points.
func (c *Curves) PrimBounds(prim int) (types.LBBox, bool) {
	v := c.first(prim)
	return indexedBounds(&c.Base, []int{v, v + 1, v + 2, v + 3}, -1)
}

func (c *Curves) Prepare() error {
	return c.verifyBuffers()
}

func (c *Curves) Interpolate(prim uint32, u, v float32, t BufferType, out Derivatives, numFloats int) error {
	if int(prim) >= c.NumPrims() {
		return device.Errorf(device.InvalidArgument, "invalid primitive ID %d", prim)
	}
	buf, err := c.attributeBuffer(t, numFloats)
	if err != nil {
		return err
	}
	if err = out.check(numFloats); err != nil {
		return err
	}
	i := c.first(int(prim))
	b0, b1, b2 := BasisWeights(c.basis, u)
	for comp := 0; comp < numFloats; comp++ {
		var p, dp, ddp float32
		for k := 0; k < 4; k++ {
			cp := buf.Float(i+k, comp)
			p += b0[k] * cp
			dp += b1[k] * cp
			ddp += b2[k] * cp
		}
		out.put(comp, p, dp, 0, ddp, 0, 0)
	}
	return nil
}

// BasisWeights returns the weights of the four control points for the curve
// position and its first and second derivative at t.
func BasisWeights(basis Basis, t float32) (pos, d1, d2 [4]float32) {
	s := 1 - t
	if basis == BSpline {
		pos = [4]float32{
			s * s * s / 6,
			(3*t*t*t - 6*t*t + 4) / 6,
			(-3*t*t*t + 3*t*t + 3*t + 1) / 6,
			t * t * t / 6,
		}
		d1 = [4]float32{
			-s * s / 2,
			(3*t*t - 4*t) / 2,
			(-3*t*t + 2*t + 1) / 2,
			t * t / 2,
		}
		d2 = [4]float32{s, 3*t - 2, 1 - 3*t, t}
		return pos, d1, d2
	}

	pos = [4]float32{s * s * s, 3 * s * s * t, 3 * s * t * t, t * t * t}
	d1 = [4]float32{-3 * s * s, 3 * s * (s - 2*t), 3 * t * (2*s - t), 3 * t * t}
	d2 = [4]float32{6 * s, 6 * (3*t - 2), 6 * (1 - 3*t), 6 * t}
	return pos, d1, d2
}

// EvalCurve evaluates the curve defined by cp at t. The w component carries
// the interpolated radius.
func EvalCurve(basis Basis, cp []types.Vec4, t float32) (p, dp types.Vec4) {
	w, d, _ := BasisWeights(basis, t)
	for k := 0; k < 4; k++ {
		for c := 0; c < 4; c++ {
			p[c] += w[k] * cp[k][c]
			dp[c] += d[k] * cp[k][c]
		}
	}
	return p, dp
}
