package math3d

import "math"

// Quat is a rotation quaternion stored as (x, y, z, w), the glTF order.
type Quat struct {
	X, Y, Z, W float64
}

// QuatIdentity returns the identity rotation.
func QuatIdentity() Quat {
	return Quat{0, 0, 0, 1}
}

// QuatFromAxisAngle builds a rotation of angle radians around axis.
func QuatFromAxisAngle(axis Vec3, angle float64) Quat {
	axis = axis.Normalize()
	s := math.Sin(angle / 2)
	return Quat{axis.X * s, axis.Y * s, axis.Z * s, math.Cos(angle / 2)}
}

// Dot returns the 4D dot product.
func (q Quat) Dot(r Quat) float64 {
	return q.X*r.X + q.Y*r.Y + q.Z*r.Z + q.W*r.W
}

// Normalize returns the unit quaternion. A zero quaternion yields identity.
func (q Quat) Normalize() Quat {
	l := math.Sqrt(q.Dot(q))
	if l == 0 {
		return QuatIdentity()
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

// Mul returns the Hamilton product q * r (apply r, then q).
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

// Slerp spherically interpolates from q to r by t, taking the short path.
func (q Quat) Slerp(r Quat, t float64) Quat {
	cos := q.Dot(r)
	if cos < 0 {
		r = Quat{-r.X, -r.Y, -r.Z, -r.W}
		cos = -cos
	}

	// Nearly parallel: fall back to normalized lerp
	if cos > 0.9995 {
		return Quat{
			q.X + (r.X-q.X)*t,
			q.Y + (r.Y-q.Y)*t,
			q.Z + (r.Z-q.Z)*t,
			q.W + (r.W-q.W)*t,
		}.Normalize()
	}

	theta := math.Acos(cos)
	sin := math.Sin(theta)
	a := math.Sin((1-t)*theta) / sin
	b := math.Sin(t*theta) / sin
	return Quat{
		q.X*a + r.X*b,
		q.Y*a + r.Y*b,
		q.Z*a + r.Z*b,
		q.W*a + r.W*b,
	}
}

// Mat4 returns the rotation as a column-major matrix.
func (q Quat) Mat4() Mat4 {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z

	return Mat4{
		1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy), 0,
		2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx), 0,
		2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy), 0,
		0, 0, 0, 1,
	}
}
