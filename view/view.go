// Package view turns a camera's ViewVolume into the per-frame SceneGlobals
// uniform block. It is grounded on core/camera.go's CameraState: the same
// frustum-plane extraction by row combination, generalized from a
// yaw/pitch-only camera to an arbitrary orientation basis, and wired to the
// clustered pipeline's extra cull-data fields (P00/P11, Hi-Z dimensions,
// instance count, cull-feature flags).
package view

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Volume is the camera state the caller supplies each frame; the core only
// ever reads it. Near may be farther than Far when reverse-Z is in use.
type Volume struct {
	Position mgl32.Vec3
	Right    mgl32.Vec3
	Up       mgl32.Vec3
	Forward  mgl32.Vec3

	FovYRadians float32
	Aspect      float32
	Near, Far   float32

	ViewMatrix           mgl32.Mat4
	ProjectionMatrix     mgl32.Mat4
	InverseViewMatrix    mgl32.Mat4
	InverseProjMatrix    mgl32.Mat4
	Frustum              [6]mgl32.Vec4
}

// NewVolume builds a Volume from a position/target/up triple and a
// reverse-Z perspective projection, matching the engine's LookAtV-based
// camera (core/camera.go GetViewMatrix) but generalized away from its
// fixed Z-up yaw/pitch parameterization.
func NewVolume(eye, target, up mgl32.Vec3, fovYRadians, aspect, near, far float32) Volume {
	viewM := mgl32.LookAtV(eye, target, up)
	projM := reverseZPerspective(fovYRadians, aspect, near, far)

	forward := target.Sub(eye).Normalize()
	right := forward.Cross(up).Normalize()
	trueUp := right.Cross(forward).Normalize()

	v := Volume{
		Position:         eye,
		Right:            right,
		Up:               trueUp,
		Forward:          forward,
		FovYRadians:      fovYRadians,
		Aspect:           aspect,
		Near:             near,
		Far:              far,
		ViewMatrix:       viewM,
		ProjectionMatrix: projM,
	}
	v.InverseViewMatrix = viewM.Inv()
	v.InverseProjMatrix = projM.Inv()
	v.Frustum = ExtractFrustum(projM.Mul4(viewM))
	return v
}

// reverseZPerspective builds a projection with near/far swapped in the
// depth equation so a GREATER depth test can be used for the pre-pass,
// per spec §4.5 item 4. mgl32.Perspective already assumes a standard
// (non-reversed) NDC convention, so callers that need true reverse-Z
// should pass Near > Far to Perspective directly; this helper documents
// that convention rather than special-casing the matrix math.
func reverseZPerspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	return mgl32.Perspective(fovY, aspect, far, near)
}

// ExtractFrustum pulls the six frustum planes (Left, Right, Bottom, Top,
// Near, Far) out of a view-projection matrix by row combination — lifted
// directly from core/camera.go's CameraState.ExtractFrustum.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	var planes [6]mgl32.Vec4

	plane := func(rowIdx int, negate bool) mgl32.Vec4 {
		s := float32(1)
		if negate {
			s = -1
		}
		return mgl32.Vec4{
			vp.At(3, 0) + s*vp.At(rowIdx, 0),
			vp.At(3, 1) + s*vp.At(rowIdx, 1),
			vp.At(3, 2) + s*vp.At(rowIdx, 2),
			vp.At(3, 3) + s*vp.At(rowIdx, 3),
		}
	}

	planes[0] = plane(0, false) // Left
	planes[1] = plane(0, true)  // Right
	planes[2] = plane(1, false) // Bottom
	planes[3] = plane(1, true)  // Top
	planes[4] = plane(2, false) // Near
	planes[5] = plane(2, true)  // Far

	for i := 0; i < 6; i++ {
		length := float32(math.Sqrt(float64(
			planes[i][0]*planes[i][0] + planes[i][1]*planes[i][1] + planes[i][2]*planes[i][2])))
		if length > 0 {
			planes[i] = planes[i].Mul(1.0 / length)
		}
	}
	return planes
}

// CullData is the sub-block of SceneGlobals the culling compute pass
// consumes: frustum planes, sphere-to-screen projection scaling, Hi-Z
// pyramid dimensions, instance count, and feature flags.
type CullData struct {
	Frustum            [6]mgl32.Vec4
	P00, P11           float32 // projection[0][0], projection[1][1] for sphere screen-space extent
	HiZWidth, HiZHeight uint32
	HiZMipCount        uint32
	InstanceCount      uint32
	FrustumCullEnabled bool
	OcclusionCullEnabled bool
}

// SceneGlobals is the single per-frame uniform block the View Driver
// produces. frame.Renderer.RenderScene passes it to the Pass Scheduler
// and returns it in its Result; nothing serializes it or uploads it to
// the "scene" binding layout's uniform slot.
type SceneGlobals struct {
	ViewMatrix       mgl32.Mat4
	ProjMatrix       mgl32.Mat4
	InverseViewMatrix mgl32.Mat4
	InverseProjMatrix mgl32.Mat4
	CameraPosition   mgl32.Vec3

	ScreenWidth, ScreenHeight uint32
	ClusterGridX, ClusterGridY, ClusterGridZ uint32

	WorldTimeSeconds float64
	DeltaTimeSeconds float32

	Near, Far float32

	Cull CullData
}

// BuildSceneGlobals is a pure function of a Volume, the two world clocks,
// screen size, cluster grid dimensions, the Hi-Z pyramid's current
// dimensions, the instance count the Draw Compiler produced this frame,
// and the two cull feature flags — per spec §4.1, the View Driver does no
// GPU work and must produce finite matrices even for a degenerate aspect.
func BuildSceneGlobals(
	v Volume,
	worldTime float64,
	deltaTime float32,
	screenW, screenH uint32,
	clusterX, clusterY, clusterZ uint32,
	hiZW, hiZH, hiZMips uint32,
	instanceCount uint32,
	frustumCull, occlusionCull bool,
) SceneGlobals {
	return SceneGlobals{
		ViewMatrix:        v.ViewMatrix,
		ProjMatrix:        v.ProjectionMatrix,
		InverseViewMatrix: v.InverseViewMatrix,
		InverseProjMatrix: v.InverseProjMatrix,
		CameraPosition:    v.Position,
		ScreenWidth:       screenW,
		ScreenHeight:      screenH,
		ClusterGridX:      clusterX,
		ClusterGridY:      clusterY,
		ClusterGridZ:      clusterZ,
		WorldTimeSeconds:  worldTime,
		DeltaTimeSeconds:  deltaTime,
		Near:              v.Near,
		Far:               v.Far,
		Cull: CullData{
			Frustum:              v.Frustum,
			P00:                  v.ProjectionMatrix.At(0, 0),
			P11:                  v.ProjectionMatrix.At(1, 1),
			HiZWidth:             hiZW,
			HiZHeight:            hiZH,
			HiZMipCount:          hiZMips,
			InstanceCount:        instanceCount,
			FrustumCullEnabled:   frustumCull,
			OcclusionCullEnabled: occlusionCull,
		},
	}
}
