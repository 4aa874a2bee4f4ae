package types

import (
	"fmt"

	"golang.org/x/image/math/f32"
)

type Mat4 f32.Mat4

// MatrixLayout describes how a caller supplied transform is laid out in memory.
type MatrixLayout uint8

// Supported transform layouts.
const (
	// 3x4 matrix, rows stored one after another.
	RowMajor MatrixLayout = iota

	// 3x4 matrix, the four columns stored one after another.
	ColumnMajor

	// 4x4 matrix, each column padded to 16 bytes.
	ColumnMajorAligned16
)

func (l MatrixLayout) String() string {
	switch l {
	case RowMajor:
		return "row-major"
	case ColumnMajor:
		return "column-major"
	case ColumnMajorAligned16:
		return "column-major-aligned16"
	}
	return fmt.Sprintf("layout(%d)", uint8(l))
}

// Floats returns the number of floats a transform in this layout occupies.
func (l MatrixLayout) Floats() int {
	if l == ColumnMajorAligned16 {
		return 16
	}
	return 12
}

// Affine is a 3x3 linear part stored as columns plus a translation.
type Affine struct {
	VX, VY, VZ Vec3
	P          Vec3
}

// Identity returns the identity transform.
func Identity() Affine {
	return Affine{
		VX: Vec3{1, 0, 0},
		VY: Vec3{0, 1, 0},
		VZ: Vec3{0, 0, 1},
	}
}

// Translate returns a pure translation.
func Translate(p Vec3) Affine {
	a := Identity()
	a.P = p
	return a
}

// Scale returns a pure scaling transform.
func Scale(s Vec3) Affine {
	return Affine{VX: Vec3{s[0], 0, 0}, VY: Vec3{0, s[1], 0}, VZ: Vec3{0, 0, s[2]}}
}

// ConvertTransform decodes xfm according to layout. The boolean result is
// false for unknown layouts or when xfm is too short.
func ConvertTransform(layout MatrixLayout, xfm []float32) (Affine, bool) {
	if layout > ColumnMajorAligned16 || len(xfm) < layout.Floats() {
		return Identity(), false
	}

	switch layout {
	case RowMajor:
		return Affine{
			VX: Vec3{xfm[0], xfm[4], xfm[8]},
			VY: Vec3{xfm[1], xfm[5], xfm[9]},
			VZ: Vec3{xfm[2], xfm[6], xfm[10]},
			P:  Vec3{xfm[3], xfm[7], xfm[11]},
		}, true
	case ColumnMajor:
		return Affine{
			VX: Vec3{xfm[0], xfm[1], xfm[2]},
			VY: Vec3{xfm[3], xfm[4], xfm[5]},
			VZ: Vec3{xfm[6], xfm[7], xfm[8]},
			P:  Vec3{xfm[9], xfm[10], xfm[11]},
		}, true
	default:
		return Affine{
			VX: Vec3{xfm[0], xfm[1], xfm[2]},
			VY: Vec3{xfm[4], xfm[5], xfm[6]},
			VZ: Vec3{xfm[8], xfm[9], xfm[10]},
			P:  Vec3{xfm[12], xfm[13], xfm[14]},
		}, true
	}
}

// Floats encodes the transform in the requested layout.
func (a Affine) Floats(layout MatrixLayout) []float32 {
	switch layout {
	case RowMajor:
		return []float32{
			a.VX[0], a.VY[0], a.VZ[0], a.P[0],
			a.VX[1], a.VY[1], a.VZ[1], a.P[1],
			a.VX[2], a.VY[2], a.VZ[2], a.P[2],
		}
	case ColumnMajor:
		return []float32{
			a.VX[0], a.VX[1], a.VX[2],
			a.VY[0], a.VY[1], a.VY[2],
			a.VZ[0], a.VZ[1], a.VZ[2],
			a.P[0], a.P[1], a.P[2],
		}
	}
	return []float32{
		a.VX[0], a.VX[1], a.VX[2], 0,
		a.VY[0], a.VY[1], a.VY[2], 0,
		a.VZ[0], a.VZ[1], a.VZ[2], 0,
		a.P[0], a.P[1], a.P[2], 1,
	}
}

// Mat4 returns the homogeneous column-major matrix.
func (a Affine) Mat4() Mat4 {
	var m Mat4
	copy(m[:], a.Floats(ColumnMajorAligned16))
	return m
}

// XfmVector transforms a direction.
func (a Affine) XfmVector(v Vec3) Vec3 {
	return a.VX.Mul(v[0]).Add(a.VY.Mul(v[1])).Add(a.VZ.Mul(v[2]))
}

// XfmPoint transforms a position.
func (a Affine) XfmPoint(p Vec3) Vec3 {
	return a.XfmVector(p).Add(a.P)
}

// XfmBBox returns the bounds of the transformed box corners.
func (a Affine) XfmBBox(b BBox) BBox {
	if b.Empty() {
		return b
	}
	out := EmptyBBox()
	for _, c := range b.Corners() {
		out = out.ExtendPoint(a.XfmPoint(c))
	}
	return out
}

// Det returns the determinant of the linear part.
func (a Affine) Det() float32 {
	return a.VX.Dot(a.VY.Cross(a.VZ))
}

// Inverse returns the inverse transform. Singular transforms produce a
// transform containing infinities, which makes every ray miss.
func (a Affine) Inverse() Affine {
	det := a.Det()
	inv := 1.0 / det

	// rows of the inverse are the scaled cross products of the columns
	r0 := a.VY.Cross(a.VZ).Mul(inv)
	r1 := a.VZ.Cross(a.VX).Mul(inv)
	r2 := a.VX.Cross(a.VY).Mul(inv)

	out := Affine{
		VX: Vec3{r0[0], r1[0], r2[0]},
		VY: Vec3{r0[1], r1[1], r2[1]},
		VZ: Vec3{r0[2], r1[2], r2[2]},
	}
	out.P = out.XfmVector(a.P).Mul(-1)
	return out
}

// Lerp interpolates two transforms component-wise.
func (a Affine) Lerp(b Affine, t float32) Affine {
	return Affine{
		VX: a.VX.Lerp(b.VX, t),
		VY: a.VY.Lerp(b.VY, t),
		VZ: a.VZ.Lerp(b.VZ, t),
		P:  a.P.Lerp(b.P, t),
	}
}

// Mul composes two transforms: the result applies b first, then a.
func (a Affine) Mul(b Affine) Affine {
	return Affine{
		VX: a.XfmVector(b.VX),
		VY: a.XfmVector(b.VY),
		VZ: a.XfmVector(b.VZ),
		P:  a.XfmPoint(b.P),
	}
}
