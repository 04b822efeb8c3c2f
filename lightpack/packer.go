// Package lightpack's Packer ties ShadowAtlas allocation and cascade
// fitting together into the per-light procedure described in spec §4.3.
package lightpack

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/clusterforge/view"
	"github.com/gekko3d/clusterforge/worldview"
)

// Packer packs world light views into SceneLightData and per-kind shadow
// slot lists, allocating atlas tiles as it goes.
type Packer struct {
	Atlas *ShadowAtlas
}

// PackedShadows buckets allocated shadow slots by light kind, matching
// spec §4.3's packedShadows[kind] output.
type PackedShadows struct {
	Point     []ShadowSlot
	Spot      []ShadowSlot
	SunCascades []ShadowSlot
}

// Pack runs the per-light procedure against a world snapshot and the
// current view volume, returning the frame's SceneLightData and packed
// shadow slots.
func (p *Packer) Pack(lights []worldview.LightObject, v view.Volume) (SceneLightData, PackedShadows) {
	p.Atlas.Reset()

	data := SceneLightData{}
	var shadows PackedShadows

	sunSeen := false

	for _, lo := range lights {
		switch lo.Light.Kind {
		case worldview.LightDirectional:
			if sunSeen {
				// At most one directional light is active per spec §4.3;
				// extras are silently ignored rather than erroring.
				continue
			}
			sunSeen = true
			light, splits := p.packDirectional(lo, v)
			data.HasSun = true
			data.SunDirection = lo.Transform.Rotation.Rotate(mgl32.Vec3{0, 0, -1})
			data.CascadeSplits = splits
			if lo.Light.CastsShadow {
				for i := 0; i < NumCascades; i++ {
					shadows.SunCascades = append(shadows.SunCascades, light.Shadows[i])
				}
			}
			data.Lights = append(data.Lights, light)

		case worldview.LightPoint:
			light := p.packPoint(lo)
			if lo.Light.CastsShadow && light.Shadows[0].AtlasTileIndex >= 0 {
				shadows.Point = append(shadows.Point, light.Shadows[0])
			}
			data.Lights = append(data.Lights, light)

		case worldview.LightSpot:
			light := p.packSpot(lo)
			if lo.Light.CastsShadow && light.Shadows[0].AtlasTileIndex >= 0 {
				shadows.Spot = append(shadows.Spot, light.Shadows[0])
			}
			data.Lights = append(data.Lights, light)
		}
	}

	return data, shadows
}

func (p *Packer) packDirectional(lo worldview.LightObject, v view.Volume) (Light, [NumCascades]float32) {
	splits := PracticalSplits(v.Near, v.Far, PracticalSplitLambda)
	dir := lo.Transform.Rotation.Rotate(mgl32.Vec3{0, 0, -1})

	light := Light{
		Kind:       KindDirectional,
		ColorRGBA8: colorToRGBA8(lo.Light.Color),
		Intensity:  lo.Light.Intensity,
		Direction:  dir,
	}

	near := v.Near
	for i := 0; i < NumCascades; i++ {
		far := splits[i]
		vp := FitCascade(v.ViewMatrix, v.FovYRadians, v.Aspect, near, far, dir)
		light.ViewProjection[i] = vp

		slot := UnshadowedSlot
		if lo.Light.CastsShadow {
			if tile, layer, uvOff, uvScale := p.Atlas.AllocateTile(); tile >= 0 {
				slot = ShadowSlot{
					AtlasTileIndex: tile, AtlasLayer: layer,
					UVOffset: mgl32.Vec2{uvOff[0], uvOff[1]}, UVScale: mgl32.Vec2{uvScale[0], uvScale[1]},
					OwnerLightIndex: int32(i),
				}
			}
		}
		light.Shadows[i] = slot
		near = far
	}

	return light, splits
}

func (p *Packer) packPoint(lo worldview.LightObject) Light {
	light := Light{
		Kind:       KindPoint,
		ColorRGBA8: colorToRGBA8(lo.Light.Color),
		Intensity:  lo.Light.Intensity,
		Position:   lo.Transform.Position,
		Radius:     lo.Light.Radius,
	}

	slot := UnshadowedSlot
	if lo.Light.CastsShadow {
		if tile, layer, uvOff, uvScale := p.Atlas.AllocateTile(); tile >= 0 {
			slot = ShadowSlot{
				AtlasTileIndex: tile, AtlasLayer: layer,
				UVOffset: mgl32.Vec2{uvOff[0], uvOff[1]}, UVScale: mgl32.Vec2{uvScale[0], uvScale[1]},
			}
		}
	}

	// Six faces share one tile+UV (one 2D-array layer set via a view
	// mask); build each face's 90deg FOV view-projection.
	dirs := [6]mgl32.Vec3{
		{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1},
	}
	ups := [6]mgl32.Vec3{
		{0, -1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1}, {0, -1, 0}, {0, -1, 0},
	}
	proj := mgl32.Perspective(float32(math.Pi/2), 1.0, 0.01, light.Radius)
	for i := 0; i < 6; i++ {
		target := light.Position.Add(dirs[i])
		viewM := mgl32.LookAtV(light.Position, target, ups[i])
		light.ViewProjection[i] = proj.Mul4(viewM)
		light.Shadows[i] = slot
	}

	return light
}

func (p *Packer) packSpot(lo worldview.LightObject) Light {
	dir := lo.Transform.Rotation.Rotate(mgl32.Vec3{0, 0, -1})
	light := Light{
		Kind:        KindSpot,
		ColorRGBA8:  colorToRGBA8(lo.Light.Color),
		Intensity:   lo.Light.Intensity,
		Position:    lo.Transform.Position,
		Direction:   dir,
		Radius:      lo.Light.Radius,
		InnerCosine: float32(math.Cos(float64(lo.Light.InnerConeDeg) * math.Pi / 180)),
		OuterCosine: float32(math.Cos(float64(lo.Light.OuterConeDeg) * math.Pi / 180)),
	}

	target := light.Position.Add(dir)
	viewM := mgl32.LookAtV(light.Position, target, mgl32.Vec3{0, 1, 0})
	fovY := float32(2) * float32(math.Acos(float64(light.OuterCosine)))
	proj := mgl32.Perspective(fovY, 1.0, 0.01, light.Radius)
	light.ViewProjection[0] = proj.Mul4(viewM)

	slot := UnshadowedSlot
	if lo.Light.CastsShadow {
		// Spot shadows take the next free tile from the same AllocateTile
		// call every other shadowed light uses; the atlas reserves no
		// layer or slot for spot lights.
		if tile, layer, uvOff, uvScale := p.Atlas.AllocateTile(); tile >= 0 {
			slot = ShadowSlot{
				AtlasTileIndex: tile, AtlasLayer: layer,
				UVOffset: mgl32.Vec2{uvOff[0], uvOff[1]}, UVScale: mgl32.Vec2{uvScale[0], uvScale[1]},
			}
		}
	}
	light.Shadows[0] = slot

	return light
}

func colorToRGBA8(c [3]float32) [4]uint8 {
	conv := func(v float32) uint8 {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return uint8(v * 255)
	}
	return [4]uint8{conv(c[0]), conv(c[1]), conv(c[2]), 255}
}
