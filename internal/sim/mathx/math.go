package mathx

import "math"

type Vec2 struct{ X, Y float64 }

type Vec3 struct{ X, Y, Z float64 }

var (
	Up      = Vec3{0, 1, 0}
	Forward = Vec3{0, 0, 1}
	Right   = Vec3{1, 0, 0}
)

func (a Vec3) Add(b Vec3) Vec3      { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3      { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float64   { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Neg() Vec3            { return Vec3{-a.X, -a.Y, -a.Z} }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		a.Y*b.Z - a.Z*b.Y,
		a.Z*b.X - a.X*b.Z,
		a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) SquaredLength() float64 { return a.Dot(a) }
func (a Vec3) Length() float64        { return math.Sqrt(a.Dot(a)) }

func (a Vec3) Normalized() Vec3 {
	l := a.Length()
	if l == 0 {
		return a
	}
	return a.Scale(1 / l)
}

// Quat is a unit rotation quaternion (x, y, z vector part, w scalar part).
type Quat struct{ X, Y, Z, W float64 }

var Identity = Quat{0, 0, 0, 1}

// AxisAngle builds a rotation of angle radians about axis (normalized here).
func AxisAngle(axis Vec3, angle float64) Quat {
	n := axis.Normalized()
	s, c := math.Sincos(angle * 0.5)
	return Quat{n.X * s, n.Y * s, n.Z * s, c}
}

// Between returns the shortest rotation taking direction a onto direction b.
func Between(a, b Vec3) Quat {
	a = a.Normalized()
	b = b.Normalized()
	d := a.Dot(b)
	if d < -0.999999 {
		axis := Right.Cross(a)
		if axis.SquaredLength() < 1e-12 {
			axis = Up.Cross(a)
		}
		return AxisAngle(axis, math.Pi)
	}
	c := a.Cross(b)
	return Quat{c.X, c.Y, c.Z, 1 + d}.Normalized()
}

// Mul composes rotations: (q.Mul(r)).Rotate(v) == q.Rotate(r.Rotate(v)).
func (q Quat) Mul(r Quat) Quat {
	return Quat{
		q.W*r.X + q.X*r.W + q.Y*r.Z - q.Z*r.Y,
		q.W*r.Y - q.X*r.Z + q.Y*r.W + q.Z*r.X,
		q.W*r.Z + q.X*r.Y - q.Y*r.X + q.Z*r.W,
		q.W*r.W - q.X*r.X - q.Y*r.Y - q.Z*r.Z,
	}
}

func (q Quat) Conjugate() Quat { return Quat{-q.X, -q.Y, -q.Z, q.W} }

func (q Quat) Normalized() Quat {
	l := math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
	if l == 0 {
		return Identity
	}
	return Quat{q.X / l, q.Y / l, q.Z / l, q.W / l}
}

func (q Quat) Rotate(v Vec3) Vec3 {
	u := Vec3{q.X, q.Y, q.Z}
	t := u.Cross(v).Scale(2)
	return v.Add(t.Scale(q.W)).Add(u.Cross(t))
}

// Transform is a rigid transform: rotation followed by translation.
type Transform struct {
	Pos Vec3
	Rot Quat
}

var IdentityTransform = Transform{Rot: Identity}

// Mul returns t*o, i.e. o expressed in t's parent space.
func (t Transform) Mul(o Transform) Transform {
	return Transform{
		Pos: t.Pos.Add(t.Rot.Rotate(o.Pos)),
		Rot: t.Rot.Mul(o.Rot),
	}
}

func (t Transform) Inverted() Transform {
	inv := t.Rot.Conjugate()
	return Transform{Pos: inv.Rotate(t.Pos.Neg()), Rot: inv}
}

func (t Transform) Apply(p Vec3) Vec3 { return t.Pos.Add(t.Rot.Rotate(p)) }

// RayPlane intersects the ray origin+dir*t with the plane through p with
// normal n. ok is false when the ray is parallel to the plane or the hit lies
// behind the origin.
func RayPlane(origin, dir, p, n Vec3) (t float64, ok bool) {
	denom := dir.Dot(n)
	if math.Abs(denom) < 1e-9 {
		return 0, false
	}
	t = p.Sub(origin).Dot(n) / denom
	return t, t >= 0
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
