package mathx

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eps = 1e-9

func assertVec(t *testing.T, want, got Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, eps, "x")
	assert.InDelta(t, want.Y, got.Y, eps, "y")
	assert.InDelta(t, want.Z, got.Z, eps, "z")
}

func TestAxisAngleRotatesAboutUp(t *testing.T) {
	q := AxisAngle(Up, math.Pi/2)
	assertVec(t, Vec3{0, 0, -1}, q.Rotate(Vec3{1, 0, 0}))
	assertVec(t, Vec3{0, 1, 0}, q.Rotate(Up))
}

func TestQuatMulComposes(t *testing.T) {
	a := AxisAngle(Up, 0.3)
	b := AxisAngle(Right, 1.1)
	v := Vec3{0.5, -2, 3}
	assertVec(t, a.Rotate(b.Rotate(v)), a.Mul(b).Rotate(v))
}

func TestBetween(t *testing.T) {
	q := Between(Up, Forward)
	assertVec(t, Forward, q.Rotate(Up))

	opposite := Between(Up, Up.Neg())
	assertVec(t, Up.Neg(), opposite.Rotate(Up))
}

func TestTransformInverse(t *testing.T) {
	tr := Transform{Pos: Vec3{1, 2, 3}, Rot: AxisAngle(Vec3{1, 1, 0}, 0.7)}
	id := tr.Mul(tr.Inverted())
	assertVec(t, Vec3{}, id.Pos)
	p := Vec3{4, -1, 9}
	assertVec(t, p, tr.Inverted().Apply(tr.Apply(p)))
}

func TestRayPlane(t *testing.T) {
	hit, ok := RayPlane(Vec3{0, 0, -10}, Forward, Vec3{}, Forward)
	require.True(t, ok)
	assert.InDelta(t, 10, hit, eps)

	_, ok = RayPlane(Vec3{0, 0, -10}, Up, Vec3{}, Forward)
	assert.False(t, ok, "parallel ray")

	_, ok = RayPlane(Vec3{0, 0, -10}, Forward.Neg(), Vec3{}, Forward)
	assert.False(t, ok, "plane behind origin")
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-1, 0, 1))
	assert.Equal(t, 1.0, Clamp(5, 0, 1))
	assert.Equal(t, 0.25, Clamp(0.25, 0, 1))
}
