package types

import "github.com/chewxy/math32"

// Quat is a rotation quaternion; used to build instance transforms.
type Quat struct {
	V Vec3
	W float32
}

// QuatIdent returns the identity rotation.
func QuatIdent() Quat {
	return Quat{W: 1.0}
}

// QuatFromAxisAngle creates a rotation of angle radians around axis.
func QuatFromAxisAngle(axis Vec3, angle float32) Quat {
	sin, cos := math32.Sincos(angle * 0.5)
	return Quat{
		V: axis.Normalize().Mul(sin),
		W: cos,
	}
}

// Rotate applies the rotation to v.
func (q Quat) Rotate(v Vec3) Vec3 {
	cross := q.V.Cross(v)
	// v + 2q_w * (q_v x v) + 2q_v x (q_v x v)
	return v.Add(cross.Mul(2 * q.W)).Add(q.V.Mul(2).Cross(cross))
}

// Mul composes two rotations; q.Mul(q2) applies q2 first.
func (q Quat) Mul(q2 Quat) Quat {
	return Quat{
		q.V.Cross(q2.V).Add(q2.V.Mul(q.W)).Add(q.V.Mul(q2.W)),
		q.W*q2.W - q.V.Dot(q2.V),
	}
}

// Affine converts the rotation into an affine transform with translation p.
func (q Quat) Affine(p Vec3) Affine {
	return Affine{
		VX: q.Rotate(Vec3{1, 0, 0}),
		VY: q.Rotate(Vec3{0, 1, 0}),
		VZ: q.Rotate(Vec3{0, 0, 1}),
		P:  p,
	}
}
