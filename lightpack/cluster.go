package lightpack

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/clusterforge/resource"
)

// ClusterLightIndex is the CPU-side reference for the light-cull compute
// pass (spec §4.5 item 7): for each cluster cell, list which lights
// overlap its view-space AABB. The GPU pass does the same test per-cell,
// dispatched with one workgroup per cluster cell; this function exists for tests and any
// CPU-side debug overlay that wants to draw the light/cluster
// association without waiting on a GPU readback.
func BuildClusterIndex(clusters []resource.ClusterAABB, lights []Light, viewSpacePositions []mgl32.Vec3) [][]int {
	out := make([][]int, len(clusters))
	for ci, cell := range clusters {
		var hits []int
		for li, vp := range viewSpacePositions {
			if sphereIntersectsAABB(vp, lights[li].Radius, cell.Min, cell.Max) {
				hits = append(hits, li)
			}
		}
		out[ci] = hits
	}
	return out
}

func sphereIntersectsAABB(center mgl32.Vec3, radius float32, min, max mgl32.Vec3) bool {
	closest := mgl32.Vec3{
		clamp(center.X(), min.X(), max.X()),
		clamp(center.Y(), min.Y(), max.Y()),
		clamp(center.Z(), min.Z(), max.Z()),
	}
	d := center.Sub(closest)
	return d.Dot(d) <= radius*radius
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
