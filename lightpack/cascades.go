package lightpack

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultCascadeSplits is the fallback split distances PracticalSplits
// returns when near >= far, where the practical split formula
// degenerates.
var DefaultCascadeSplits = [NumCascades]float32{15, 50, 200}

// PracticalSplitLambda blends log and uniform split schemes; ~0.95 per
// spec §4.3.
const PracticalSplitLambda = 0.95

// PracticalSplits computes cascade far-plane distances with
// lambda*log + (1-lambda)*uniform, the normative formula per this
// module's resolution of the split-policy ambiguity (see SPEC_FULL.md
// Design Notes).
func PracticalSplits(near, far float32, lambda float32) [NumCascades]float32 {
	if near >= far {
		return DefaultCascadeSplits
	}
	var splits [NumCascades]float32
	n, f := float64(near), float64(far)
	for i := 1; i <= NumCascades; i++ {
		p := float64(i) / float64(NumCascades)
		log := n * math.Pow(f/n, p)
		uniform := n + (f-n)*p
		splits[i-1] = float32(float64(lambda)*log + (1-float64(lambda))*uniform)
	}
	return splits
}

// CascadePadFactor extends the fitted depth range by a constant factor so
// casters just outside the frustum still shadow geometry inside it.
const CascadePadFactor = 1.5

// FitCascade builds one cascade's light-space view-projection matrix: a
// perspective frustum over [near, cascadeFar] is transformed into the
// light's view space, its eight corners are fit by a tight orthographic
// AABB, and the depth range is padded, per spec §4.3.
func FitCascade(camView mgl32.Mat4, fovY, aspect, near, cascadeFar float32, lightDir mgl32.Vec3) mgl32.Mat4 {
	corners := frustumCornersWorld(camView, fovY, aspect, near, cascadeFar)

	center := mgl32.Vec3{}
	for _, c := range corners {
		center = center.Add(c)
	}
	center = center.Mul(1.0 / float32(len(corners)))

	eye := center.Sub(lightDir.Mul(cascadeFar))
	lightView := mgl32.LookAtV(eye, center, upHint(lightDir))

	inf := float32(1e20)
	minB := mgl32.Vec3{inf, inf, inf}
	maxB := mgl32.Vec3{-inf, -inf, -inf}
	for _, c := range corners {
		lc := lightView.Mul4x1(c.Vec4(1)).Vec3()
		minB = mgl32.Vec3{fMin3(minB.X(), lc.X()), fMin3(minB.Y(), lc.Y()), fMin3(minB.Z(), lc.Z())}
		maxB = mgl32.Vec3{fMax3(maxB.X(), lc.X()), fMax3(maxB.Y(), lc.Y()), fMax3(maxB.Z(), lc.Z())}
	}

	depthPad := (maxB.Z() - minB.Z()) * (CascadePadFactor - 1)
	lightProj := mgl32.Ortho(minB.X(), maxB.X(), minB.Y(), maxB.Y(), -(maxB.Z() + depthPad), -(minB.Z() - depthPad))

	return lightProj.Mul4(lightView)
}

func upHint(dir mgl32.Vec3) mgl32.Vec3 {
	up := mgl32.Vec3{0, 1, 0}
	if math.Abs(float64(dir.Normalize().Dot(up))) > 0.99 {
		return mgl32.Vec3{0, 0, 1}
	}
	return up
}

// frustumCornersWorld returns the eight world-space corners of a
// perspective sub-frustum [near, far] given the camera's view matrix.
func frustumCornersWorld(camView mgl32.Mat4, fovY, aspect, near, far float32) [8]mgl32.Vec3 {
	invView := camView.Inv()
	tanHalfFovY := float32(math.Tan(float64(fovY) / 2))

	var corners [8]mgl32.Vec3
	i := 0
	for _, z := range []float32{near, far} {
		h := tanHalfFovY * z
		w := h * aspect
		for _, sy := range []float32{-1, 1} {
			for _, sx := range []float32{-1, 1} {
				viewSpace := mgl32.Vec4{sx * w, sy * h, -z, 1}
				corners[i] = invView.Mul4x1(viewSpace).Vec3()
				i++
			}
		}
	}
	return corners
}

func fMin3(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
func fMax3(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
