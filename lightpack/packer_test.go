package lightpack

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/clusterforge/view"
	"github.com/gekko3d/clusterforge/worldview"
	"github.com/gekko3d/clusterforge/xform"
)

func TestPackAtMostOneSun(t *testing.T) {
	p := &Packer{Atlas: NewShadowAtlas(512, 8, 8)}
	v := view.NewVolume(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.DegToRad(60), 1.77, 0.1, 500)

	sun := func() worldview.LightObject {
		return worldview.LightObject{
			Entity:    1,
			Transform: xform.Identity(),
			Light:     worldview.LightComponent{Kind: worldview.LightDirectional, Color: [3]float32{1, 1, 1}, Intensity: 1},
		}
	}

	data, _ := p.Pack([]worldview.LightObject{sun(), sun()}, v)
	if !data.HasSun {
		t.Fatalf("expected hasSun true")
	}
	sunCount := 0
	for _, l := range data.Lights {
		if l.Kind == KindDirectional {
			sunCount++
		}
	}
	if sunCount != 1 {
		t.Fatalf("expected only the first directional light packed, got %d", sunCount)
	}
}

func TestPackPointAllocatesSharedTileAcrossFaces(t *testing.T) {
	p := &Packer{Atlas: NewShadowAtlas(512, 4, 1)}
	lo := worldview.LightObject{
		Entity:    2,
		Transform: xform.Transform{Position: mgl32.Vec3{1, 2, 3}, Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}},
		Light:     worldview.LightComponent{Kind: worldview.LightPoint, Radius: 10, CastsShadow: true},
	}
	v := view.NewVolume(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.DegToRad(60), 1.77, 0.1, 500)

	data, shadows := p.Pack([]worldview.LightObject{lo}, v)
	if len(data.Lights) != 1 {
		t.Fatalf("expected 1 packed light")
	}
	if len(shadows.Point) != 1 {
		t.Fatalf("expected 1 point shadow slot recorded, got %d", len(shadows.Point))
	}
	first := data.Lights[0].Shadows[0]
	for i := 1; i < 6; i++ {
		if data.Lights[0].Shadows[i] != first {
			t.Fatalf("expected all 6 faces to share one tile, face %d differs", i)
		}
	}
}

func TestAtlasAllocationExhaustionReturnsSentinel(t *testing.T) {
	a := NewShadowAtlas(512, 1, 1) // capacity 1
	idx1, _, _, _ := a.AllocateTile()
	if idx1 != 0 {
		t.Fatalf("expected first tile index 0, got %d", idx1)
	}
	idx2, _, _, _ := a.AllocateTile()
	if idx2 != -1 {
		t.Fatalf("expected sentinel -1 on exhaustion, got %d", idx2)
	}
}

func TestPracticalSplitsMonotonicallyIncreasing(t *testing.T) {
	splits := PracticalSplits(0.1, 500, PracticalSplitLambda)
	for i := 1; i < len(splits); i++ {
		if splits[i] <= splits[i-1] {
			t.Fatalf("expected strictly increasing splits, got %v", splits)
		}
	}
}
