package xform

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func approxEqual(a, b mgl32.Vec3, eps float32) bool {
	d := a.Sub(b)
	return d.Len() < eps
}

func TestIdentityObjectToWorldIsIdentityMatrix(t *testing.T) {
	m := Identity().ObjectToWorld()
	want := mgl32.Ident4()
	if m != want {
		t.Fatalf("expected identity matrix, got %v", m)
	}
}

func TestObjectToWorldAppliesTranslationRotationScale(t *testing.T) {
	tr := Transform{
		Position: mgl32.Vec3{1, 2, 3},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{2, 2, 2},
	}
	m := tr.ObjectToWorld()

	local := mgl32.Vec4{1, 0, 0, 1}
	world := m.Mul4x1(local)
	got := mgl32.Vec3{world.X(), world.Y(), world.Z()}
	want := mgl32.Vec3{3, 2, 3} // scaled by 2 then translated by (1,2,3)

	if !approxEqual(got, want, 1e-4) {
		t.Fatalf("ObjectToWorld: expected %v, got %v", want, got)
	}
}

func TestWorldToObjectInvertsObjectToWorld(t *testing.T) {
	tr := Transform{
		Position: mgl32.Vec3{4, -1, 2},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}

	point := mgl32.Vec4{5, 5, 5, 1}
	world := tr.ObjectToWorld().Mul4x1(point)
	back := tr.WorldToObject().Mul4x1(world)

	got := mgl32.Vec3{back.X(), back.Y(), back.Z()}
	want := mgl32.Vec3{5, 5, 5}
	if !approxEqual(got, want, 1e-3) {
		t.Fatalf("WorldToObject did not invert ObjectToWorld: expected %v, got %v", want, got)
	}
}
