// Package xform holds the small transform math shared by every component
// that needs an object-to-world matrix (Draw Compiler instance records,
// Light Packer, view culling).
package xform

import "github.com/go-gl/mathgl/mgl32"

// Transform is a TRS transform, adapted from the engine's existing
// core.Transform but stripped of the Dirty flag, which belonged to the
// ECS's change-detection scheme and has no equivalent here: the Draw
// Compiler recomputes ObjectToWorld every frame from whatever the World
// snapshot hands it.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{
		Position: mgl32.Vec3{0, 0, 0},
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

// ObjectToWorld builds M = T * R * S.
func (t Transform) ObjectToWorld() mgl32.Mat4 {
	translate := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	rotate := t.Rotation.Mat4()
	scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())
	return translate.Mul4(rotate).Mul4(scale)
}

// WorldToObject builds the inverse transform cheaply from the component
// parts rather than a general matrix inverse.
func (t Transform) WorldToObject() mgl32.Mat4 {
	invScale := mgl32.Scale3D(1.0/t.Scale.X(), 1.0/t.Scale.Y(), 1.0/t.Scale.Z())
	invRotate := t.Rotation.Conjugate().Mat4()
	invTranslate := mgl32.Translate3D(-t.Position.X(), -t.Position.Y(), -t.Position.Z())
	return invScale.Mul4(invRotate).Mul4(invTranslate)
}

// NormalMatrix returns the 3x3 matrix used to transform normals to world
// space: the transpose of the inverse of the upper-left 3x3 of
// ObjectToWorld. For uniform scale this equals the rotation alone; for
// non-uniform scale it must be computed explicitly.
func (t Transform) NormalMatrix() mgl32.Mat3 {
	m := t.ObjectToWorld()
	c0, c1, c2 := m.Col(0), m.Col(1), m.Col(2)
	upper := mgl32.Mat3{
		c0.X(), c0.Y(), c0.Z(),
		c1.X(), c1.Y(), c1.Z(),
		c2.X(), c2.Y(), c2.Z(),
	}
	return upper.Inv().Transpose()
}
