// Package lightpack packs per-frame light data for upload, allocates
// shadow-atlas tiles, and fits cascaded-shadow-map splits. It is grounded
// on the engine's light.go component shapes and core/camera.go's frustum
// math, generalized from a single hard-coded sun+point rig to the spec's
// full directional/point/spot tagged union.
package lightpack

import "github.com/go-gl/mathgl/mgl32"

// NumCascades is the cascade count used by the cascaded shadow pass and
// SceneLightData's header, normative per the Design Notes' resolution of
// the split-formula ambiguity (see DESIGN.md's lightpack section).
const NumCascades = 3

// Kind tags which union member a Light holds.
type Kind uint8

const (
	KindDirectional Kind = iota
	KindPoint
	KindSpot
)

// ShadowSlot locates a light's shadow map inside the shared atlas, or
// carries the unshadowed sentinel (TileIndex == -1).
type ShadowSlot struct {
	AtlasTileIndex int32
	AtlasLayer     uint32
	UVOffset       mgl32.Vec2
	UVScale        mgl32.Vec2
	OwnerLightIndex int32
}

// UnshadowedSlot is the sentinel stored when a light has no shadow tile,
// either because it casts no shadow or the atlas is exhausted.
var UnshadowedSlot = ShadowSlot{AtlasTileIndex: -1, OwnerLightIndex: -1}

// Light is the packed, GPU-bound representation of one light, tagged by
// Kind. ViewProjection holds 6 entries for Point (one per cube face),
// NumCascades for Directional, 1 for Spot (remaining entries unused).
type Light struct {
	Kind Kind

	ColorRGBA8 [4]uint8
	Intensity  float32

	Position  mgl32.Vec3 // point, spot
	Direction mgl32.Vec3 // directional, spot

	Radius  float32 // point falloff distance
	Falloff float32

	InnerCosine float32 // spot
	OuterCosine float32 // spot

	// ViewProjection is sized to the largest user (point: 6 cube faces);
	// directional uses the first NumCascades entries, spot uses the first.
	ViewProjection [6]mgl32.Mat4
	Shadows        [6]ShadowSlot
}

// SceneLightData is the header + packed light array uploaded to the
// Resource Manager's light-data buffer once per frame.
type SceneLightData struct {
	Ambient       mgl32.Vec3
	HasSun        bool
	SunDirection  mgl32.Vec3
	CascadeSplits [NumCascades]float32
	Lights        []Light
}

// ByteSize returns the upload size for the header-plus-array layout
// described in spec §3: header + numLights * sizeof(Light).
func (d SceneLightData) ByteSize() int {
	const headerBytes = 3*4 + 4 + 3*4 + NumCascades*4
	const lightBytes = 4 + 4 + 4 + 4 + 3*4 + 3*4 + 4 + 4 + 4 + 4 + 6*16*4 + 6*(4+4+2*4+2*4+4)
	return headerBytes + len(d.Lights)*lightBytes
}
