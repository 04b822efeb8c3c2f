package resource

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultClusterDims is the ~16x9x24 grid size spec §3 defaults to.
var DefaultClusterDims = [3]uint32{16, 9, 24}

// ClusterAABB is one cell's view-space AABB plus its packed light-index
// list slot range within the cluster buffer.
type ClusterAABB struct {
	Min, Max       mgl32.Vec3
	LightListStart uint32
	LightListCount uint32
}

// ClusterIndex3D maps a 3D cluster coordinate to its flat buffer index.
func ClusterIndex3D(x, y, z uint32, dims [3]uint32) uint32 {
	return x + dims[0]*(y+dims[1]*z)
}

// BuildClusterAABBs is the CPU-side reference implementation of the
// cluster-build compute pass (spec §4.5 item 6): for each cell, derive its
// view-space AABB from the inverse projection and the cell's screen-tile
// bounds plus a depth-slice split. It exists so the Light Packer's CPU
// reference light-cull path (used by tests and the readback-adjacent
// debug tooling) doesn't require a GPU round-trip.
func BuildClusterAABBs(invProj mgl32.Mat4, screenW, screenH uint32, near, far float32, dims [3]uint32) []ClusterAABB {
	out := make([]ClusterAABB, dims[0]*dims[1]*dims[2])
	tileW := float32(screenW) / float32(dims[0])
	tileH := float32(screenH) / float32(dims[1])

	for z := uint32(0); z < dims[2]; z++ {
		zNear, zFar := clusterDepthSlice(z, dims[2], near, far)
		for y := uint32(0); y < dims[1]; y++ {
			for x := uint32(0); x < dims[0]; x++ {
				minScreen := mgl32.Vec2{float32(x) * tileW, float32(y) * tileH}
				maxScreen := mgl32.Vec2{float32(x+1) * tileW, float32(y+1) * tileH}

				minView := screenToView(invProj, minScreen, screenW, screenH, zNear)
				maxView := screenToView(invProj, maxScreen, screenW, screenH, zFar)

				out[ClusterIndex3D(x, y, z, dims)] = ClusterAABB{
					Min: mgl32.Vec3{fmin(minView.X(), maxView.X()), fmin(minView.Y(), maxView.Y()), fmin(minView.Z(), maxView.Z())},
					Max: mgl32.Vec3{fmax(minView.X(), maxView.X()), fmax(minView.Y(), maxView.Y()), fmax(minView.Z(), maxView.Z())},
				}
			}
		}
	}
	return out
}

// clusterDepthSlice splits [near, far] logarithmically across Z slices,
// the standard clustered-forward depth-slicing scheme.
func clusterDepthSlice(z, numSlices uint32, near, far float32) (float32, float32) {
	ratio := far / near
	n := float32(numSlices)
	zNear := near * pow32(ratio, float32(z)/n)
	zFar := near * pow32(ratio, float32(z+1)/n)
	return zNear, zFar
}

func pow32(base, exp float32) float32 {
	return float32(math.Pow(float64(base), float64(exp)))
}

func screenToView(invProj mgl32.Mat4, screen mgl32.Vec2, screenW, screenH uint32, viewZ float32) mgl32.Vec3 {
	ndcX := screen.X()/float32(screenW)*2 - 1
	ndcY := 1 - screen.Y()/float32(screenH)*2
	clip := mgl32.Vec4{ndcX, ndcY, 1, 1}
	view := invProj.Mul4x1(clip)
	if view.W() != 0 {
		view = view.Mul(1.0 / view.W())
	}
	v3 := view.Vec3()
	if v3.Z() != 0 {
		scale := viewZ / v3.Z()
		return v3.Mul(scale)
	}
	return v3
}

func fmin(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func fmax(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
