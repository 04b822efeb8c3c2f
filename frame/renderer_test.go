package frame

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/clusterforge/assets"
	"github.com/gekko3d/clusterforge/clusterforgeerr"
	"github.com/gekko3d/clusterforge/lightpack"
	"github.com/gekko3d/clusterforge/resource"
	"github.com/gekko3d/clusterforge/rhi"
	"github.com/gekko3d/clusterforge/rhi/fakerhi"
	"github.com/gekko3d/clusterforge/shaderlib"
	"github.com/gekko3d/clusterforge/view"
	"github.com/gekko3d/clusterforge/worldview"
	"github.com/gekko3d/clusterforge/xform"
)

type fakeModule struct{ path string }

func (m *fakeModule) Path() string     { return m.path }
func (m *fakeModule) Macros() []string { return nil }

type stallingBackend struct{ pending chan struct{} }

func (b *stallingBackend) CompileShader(source, label string) (rhi.ShaderModule, error) {
	<-b.pending
	return &fakeModule{path: label}, nil
}

type fakeMaterial struct{}

func (m *fakeMaterial) Id() assets.Id                              { return "default" }
func (m *fakeMaterial) VertexShader(skinned bool) rhi.ShaderModule { return nil }
func (m *fakeMaterial) PixelShader() rhi.ShaderModule              { return nil }
func (m *fakeMaterial) BindingSet() rhi.BindingSet                 { return nil }
func (m *fakeMaterial) BindingLayout() rhi.BindingLayout           { return nil }
func (m *fakeMaterial) IsReadyForRender() bool                     { return true }

type fakeMesh struct {
	surfaces []assets.Surface
	vbAddr   uint64
	ibAddr   uint64
}

func (m *fakeMesh) AABB() assets.AABB {
	return assets.AABB{Min: [3]float32{-1, -1, -1}, Max: [3]float32{1, 1, 1}}
}
func (m *fakeMesh) MaterialAtSlot(i int) assets.Material { return &fakeMaterial{} }
func (m *fakeMesh) VertexBuffer() rhi.Buffer             { return nil }
func (m *fakeMesh) IndexBuffer() rhi.Buffer              { return nil }
func (m *fakeMesh) VertexBufferAddress() uint64          { return m.vbAddr }
func (m *fakeMesh) IndexBufferAddress() uint64           { return m.ibAddr }
func (m *fakeMesh) GeometrySurfaces() []assets.Surface   { return m.surfaces }
func (m *fakeMesh) IsReadyForRender() bool               { return true }
func (m *fakeMesh) IsSkinned() bool                      { return false }

func newTestRenderer(t *testing.T, backend shaderlib.Backend) *Renderer {
	t.Helper()
	dev := fakerhi.New()
	lib := shaderlib.New(backend, nil)
	for _, name := range []string{
		"cull.wgsl", "hiz.wgsl", "cluster_build.wgsl", "light_cull.wgsl",
		"depth_prepass.wgsl", "base_pass.wgsl", "tonemap.wgsl", "selection.wgsl", "debug_overlay.wgsl",
	} {
		lib.RegisterSource(name, "// fake")
	}
	r := NewRenderer(dev, nil, lib, &fakeMaterial{}, lightpack.NewShadowAtlas(512, 4, 8))
	if err := r.res.Resize(resource.Extent{Width: 256, Height: 256}, lightpack.NumCascades, resource.Extent{Width: 2048, Height: 2048}); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	return r
}

func newVolume() view.Volume {
	return view.NewVolume(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0}, mgl32.DegToRad(60), 1.0, 0.1, 100)
}

func TestRenderSceneAbortsWhenShadersPending(t *testing.T) {
	backend := &stallingBackend{pending: make(chan struct{})}
	r := newTestRenderer(t, backend)

	// Kick off a compile that will never finish, then observe that
	// HasPendingRequests forces RenderScene to abort before touching any
	// buffer.
	go func() { _, _ = r.shaders.Get("cull.wgsl", nil) }()
	waitUntilPending(t, r)

	w := worldview.NewMemWorld()
	vol := newVolume()

	_, err := r.RenderScene(w, vol, Options{ScreenWidth: 256, ScreenHeight: 256})
	if _, ok := err.(clusterforgeerr.ShadersCompiling); !ok {
		t.Fatalf("expected ShadersCompiling, got %v", err)
	}
	close(backend.pending)
}

func TestRenderSceneEmptyWorldWithSunHasOneLightAndNoDraws(t *testing.T) {
	r := newTestRenderer(t, fakeBackendInstant{})
	w := worldview.NewMemWorld()
	w.Lights = []worldview.LightObject{
		{Entity: 1, Transform: xform.Identity(), Light: worldview.LightComponent{Kind: worldview.LightDirectional, Color: [3]float32{1, 1, 1}, Intensity: 1}},
	}

	result, err := r.RenderScene(w, newVolume(), Options{ScreenWidth: 256, ScreenHeight: 256, HasEnvironment: true})
	if err != nil {
		t.Fatalf("RenderScene: %v", err)
	}
	if len(result.Draw.DrawCommands) != 0 {
		t.Fatalf("expected no draw commands for an empty world, got %d", len(result.Draw.DrawCommands))
	}
	if !result.Lights.HasSun {
		t.Fatalf("expected hasSun true")
	}
	if len(result.Lights.Lights) != 1 {
		t.Fatalf("expected exactly 1 packed light, got %d", len(result.Lights.Lights))
	}
	if !containsPass(r.scheduler.LastRunPasses, "environment") || !containsPass(r.scheduler.LastRunPasses, "tonemap") {
		t.Fatalf("expected environment and tonemap to run even with no draws, got %v", r.scheduler.LastRunPasses)
	}
	if containsPass(r.scheduler.LastRunPasses, "base-pass") {
		t.Fatalf("expected base-pass to be skipped with no draws, got %v", r.scheduler.LastRunPasses)
	}
}

func TestRenderSceneBatchesTwoEntitiesSharingMesh(t *testing.T) {
	r := newTestRenderer(t, fakeBackendInstant{})
	w := worldview.NewMemWorld()

	mesh := &fakeMesh{vbAddr: 0x2000, ibAddr: 0x4000, surfaces: []assets.Surface{
		{StartIndex: 0, IndexCount: 36, MaterialIndex: 0},
		{StartIndex: 36, IndexCount: 36, MaterialIndex: 0},
	}}
	w.Objects = []worldview.RenderObject{
		{Entity: 1, Transform: xform.Identity(), Mesh: mesh, CastsShadows: true},
		{Entity: 2, Transform: xform.Identity(), Mesh: mesh, CastsShadows: true},
	}

	result, err := r.RenderScene(w, newVolume(), Options{ScreenWidth: 256, ScreenHeight: 256})
	if err != nil {
		t.Fatalf("RenderScene: %v", err)
	}
	if len(result.Draw.DrawCommands) != 2 {
		t.Fatalf("expected 2 batched draw commands (one per surface), got %d", len(result.Draw.DrawCommands))
	}
	if len(result.Draw.Instances) != 4 {
		t.Fatalf("expected 4 instances (2 entities x 2 surfaces), got %d", len(result.Draw.Instances))
	}
	for i, a := range result.Draw.IndirectArgs {
		if a.InstanceCount != 0 {
			t.Fatalf("expected indirectArgs[%d].instanceCount reset to 0 post-compile, got %d", i, a.InstanceCount)
		}
	}
	if !containsPass(r.scheduler.LastRunPasses, "base-pass") {
		t.Fatalf("expected base-pass to run with draws present, got %v", r.scheduler.LastRunPasses)
	}

	buf, ok := r.res.Buffer("instances").(*fakerhi.Buffer)
	if !ok {
		t.Fatalf("expected the instances buffer to be a *fakerhi.Buffer")
	}
	uploaded := buf.Bytes()
	wantLen := len(result.Draw.Instances) * 112
	if len(uploaded) != 2*wantLen {
		t.Fatalf("expected a %d-byte instances buffer (2x the %d serialized instance bytes), got %d", 2*wantLen, wantLen, len(uploaded))
	}
	for i, inst := range result.Draw.Instances {
		want := inst.Bytes()
		got := uploaded[i*112 : (i+1)*112]
		for b := range want {
			if got[b] != want[b] {
				t.Fatalf("instance %d byte %d: want %#x, got %#x (instance buffer was never serialized)", i, b, want[b], got[b])
			}
		}
	}
}

type fakeBackendInstant struct{}

func (fakeBackendInstant) CompileShader(source, label string) (rhi.ShaderModule, error) {
	return &fakeModule{path: label}, nil
}

func waitUntilPending(t *testing.T, r *Renderer) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		if r.shaders.HasPendingRequests() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("shader library never reported a pending request")
}

func containsPass(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
