// Package passes emits the fixed ordered sequence of GPU passes that
// turn one frame's compiled draws and packed lights into a shaded,
// tone-mapped image. Its shape is grounded on core/scene.go's Commit
// traversal plus voxelrt/rt/gpu/gizmo_pass.go's per-pass pipeline/bind-group
// construction, generalized from one fixed voxel pipeline to the named,
// independently-skippable pass list.
package passes

import (
	"github.com/gekko3d/clusterforge/drawcompiler"
	"github.com/gekko3d/clusterforge/lightpack"
	"github.com/gekko3d/clusterforge/logging"
	"github.com/gekko3d/clusterforge/resource"
	"github.com/gekko3d/clusterforge/rhi"
	"github.com/gekko3d/clusterforge/shaderlib"
	"github.com/gekko3d/clusterforge/view"
)

// MaxSelectionOutlineEntries caps the push-constant array the selection
// pass reads, per spec §4.5 step 15.
const MaxSelectionOutlineEntries = 29

// DebugLineVertex matches the debug_overlay.wgsl vs_line vertex layout.
type DebugLineVertex struct {
	Pos   [3]float32
	Color [4]float32
}

// DebugOverlayFlags gates the always-last debug visualizations.
type DebugOverlayFlags struct {
	ShowHiZ         bool
	ShowClusters    bool
	ShowShadowAtlas bool
}

// FrameInputs bundles every other component's per-frame output that the
// scheduler consumes; it owns no state across frames.
type FrameInputs struct {
	Scene          view.SceneGlobals
	Draw           drawcompiler.Output
	Lights         lightpack.SceneLightData
	Shadows        lightpack.PackedShadows
	HasEnvironment bool
	WireframeBase  bool

	SelectedInstanceIndices []uint32
	LineVertices            []DebugLineVertex
	DebugOverlay            DebugOverlayFlags

	BackBuffer rhi.ImageView
}

// Scheduler owns lazily-built pipelines for each named pass and records
// which passes actually ran each frame (read by tests).
type Scheduler struct {
	dev      rhi.Device
	res      *resource.Manager
	shaders  *shaderlib.Library
	log      logging.Logger
	profiler *Profiler

	pipelines map[string]rhi.Pipeline

	// LastRunPasses is overwritten at the start of every RunFrame call.
	LastRunPasses []string
}

func New(dev rhi.Device, res *resource.Manager, shaders *shaderlib.Library, log logging.Logger, profiler *Profiler) *Scheduler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if profiler == nil {
		profiler = NewProfiler()
	}
	return &Scheduler{dev: dev, res: res, shaders: shaders, log: log, profiler: profiler, pipelines: make(map[string]rhi.Pipeline)}
}

func (s *Scheduler) Profiler() *Profiler { return s.profiler }

func (s *Scheduler) ensureComputePipeline(name, shaderPath string) (rhi.Pipeline, error) {
	if p, ok := s.pipelines[name]; ok {
		return p, nil
	}
	mod, err := s.shaders.Get(shaderPath, nil)
	if err != nil {
		return nil, err
	}
	layout, err := s.res.SceneLayout()
	if err != nil {
		return nil, err
	}
	p, err := s.dev.CreateComputePipeline(rhi.PipelineDescriptor{
		Label: name, ComputeShader: mod, Layouts: []rhi.BindingLayout{layout},
	})
	if err != nil {
		return nil, err
	}
	s.pipelines[name] = p
	return p, nil
}

func (s *Scheduler) ensureGraphicsPipeline(name, shaderPath string, skinned bool, pushConstantBytes uint32) (rhi.Pipeline, error) {
	key := name
	if skinned {
		key += "#skinned"
	}
	if p, ok := s.pipelines[key]; ok {
		return p, nil
	}
	macros := []string(nil)
	if skinned {
		macros = []string{"SKINNED"}
	}
	mod, err := s.shaders.Get(shaderPath, macros)
	if err != nil {
		return nil, err
	}
	layout, err := s.res.SceneLayout()
	if err != nil {
		return nil, err
	}
	p, err := s.dev.CreateGraphicsPipeline(rhi.PipelineDescriptor{
		Label: key, VertexShader: mod, FragmentShader: mod, Layouts: []rhi.BindingLayout{layout},
		PushConstants: pushConstantBytes, Skinned: skinned,
	})
	if err != nil {
		return nil, err
	}
	s.pipelines[key] = p
	return p, nil
}

func (s *Scheduler) run(name string) {
	s.LastRunPasses = append(s.LastRunPasses, name)
}

// RunFrame records the ordered, independently-skippable 17-pass sequence
// of spec §4.5 onto cl. cl must already be Open(); RunFrame does not
// Close it, so callers can append additional passes (e.g. ImGui) before
// submission.
func (s *Scheduler) RunFrame(cl rhi.CommandList, in FrameInputs) error {
	s.LastRunPasses = s.LastRunPasses[:0]
	s.profiler.Reset()

	s.resetPass(cl)
	s.writeSceneBuffersPass(cl, in)

	hasDraws := len(in.Draw.DrawCommands) > 0
	hasLights := len(in.Lights.Lights) > 0

	if hasDraws {
		if err := s.cullPass(cl, in); err != nil {
			return err
		}
		if err := s.depthPrepassPass(cl, in); err != nil {
			return err
		}
		if err := s.depthPyramidPass(cl); err != nil {
			return err
		}
	}

	if hasLights && hasDraws {
		if err := s.clusterBuildPass(cl, in); err != nil {
			return err
		}
		if err := s.lightCullPass(cl); err != nil {
			return err
		}
	}

	if len(in.Shadows.Point) > 0 {
		s.pointShadowPass(cl, in)
	}
	if len(in.Shadows.Spot) > 0 {
		s.spotShadowPass(cl, in)
	}
	if in.Lights.HasSun {
		s.cascadedShadowPass(cl, in)
	}

	if in.HasEnvironment {
		s.environmentPass(cl, in)
	}

	if hasDraws {
		if err := s.basePassPass(cl, in); err != nil {
			return err
		}
	}

	s.transparentPass()

	if len(in.LineVertices) > 0 {
		s.batchedLinesPass(cl, in)
	}

	if len(in.SelectedInstanceIndices) > 0 {
		if err := s.selectionPass(cl, in); err != nil {
			return err
		}
	}

	if err := s.tonemapPass(cl, in); err != nil {
		return err
	}

	if in.DebugOverlay.ShowHiZ || in.DebugOverlay.ShowClusters || in.DebugOverlay.ShowShadowAtlas {
		s.debugOverlayPass(cl, in)
	}

	return nil
}

func (s *Scheduler) resetPass(cl rhi.CommandList) {
	s.profiler.BeginScope("reset")
	s.run("reset")
	s.profiler.EndScope("reset")
}

func (s *Scheduler) writeSceneBuffersPass(cl rhi.CommandList, in FrameInputs) {
	s.profiler.BeginScope("write-scene-buffers")
	cl.DisableAutomaticBarriers()
	// Instance/indirect/light arrays are written by the caller via
	// resource.Manager.EnsureBuffer + cl.WriteBuffer before RunFrame is
	// invoked; this pass only brackets that batch with one barrier
	// transition instead of one per buffer.
	cl.CommitBarriers()
	cl.EnableAutomaticBarriers()
	s.run("write-scene-buffers")
	s.profiler.EndScope("write-scene-buffers")
	s.profiler.SetCount("draws", len(in.Draw.DrawCommands))
	s.profiler.SetCount("instances", len(in.Draw.Instances))
	s.profiler.SetCount("lights", len(in.Lights.Lights))
}

func (s *Scheduler) cullPass(cl rhi.CommandList, in FrameInputs) error {
	s.profiler.BeginScope("cull")
	defer s.profiler.EndScope("cull")

	p, err := s.ensureComputePipeline("cull", "cull.wgsl")
	if err != nil {
		return err
	}
	groups := (uint32(len(in.Draw.Instances)) + 255) / 256
	if groups == 0 {
		groups = 1
	}
	cl.SetComputeState(p, []rhi.BindingSet{s.res.SceneBindingSet()})
	cl.Dispatch(groups, 1, 1)
	if err := cl.EndCompute(); err != nil {
		return err
	}
	s.run("cull")
	return nil
}

func (s *Scheduler) depthPrepassPass(cl rhi.CommandList, in FrameInputs) error {
	s.profiler.BeginScope("depth-prepass")
	defer s.profiler.EndScope("depth-prepass")

	if err := cl.BeginRenderPass(rhi.RenderPassDescriptor{
		Label: "depth-prepass",
		Depth: &rhi.DepthAttachment{View: s.res.Depth().View(0, 1, 0, 1), Clear: f32ptr(0), CompareGT: true},
	}); err != nil {
		return err
	}
	for _, dc := range in.Draw.DrawCommands {
		p, err := s.ensureGraphicsPipeline("depth-prepass", "depth_prepass.wgsl", dc.Skinned, 0)
		if err != nil {
			return err
		}
		cl.SetGraphicsState(p, []rhi.BindingSet{s.res.SceneBindingSet()})
		cl.DrawIndirect(s.res.Buffer("indirectArgs"), uint64(dc.IndirectOffset)*16, 1, 16)
	}
	if err := cl.EndRenderPass(); err != nil {
		return err
	}
	s.run("depth-prepass")
	return nil
}

func (s *Scheduler) depthPyramidPass(cl rhi.CommandList) error {
	s.profiler.BeginScope("depth-pyramid")
	defer s.profiler.EndScope("depth-pyramid")

	p, err := s.ensureComputePipeline("hiz", "hiz.wgsl")
	if err != nil {
		return err
	}
	cl.DisableAutomaticBarriers()
	mips := s.res.DepthPyramid().MipLevels()
	for mip := uint32(0); mip < mips; mip++ {
		w, h := resource.MipExtent(s.res.DepthPyramid().Width(), s.res.DepthPyramid().Height(), mip)
		gx, gy := resource.DispatchGroups2D(w, h)
		cl.SetComputeState(p, []rhi.BindingSet{s.res.SceneBindingSet()})
		cl.Dispatch(gx, gy, 1)
	}
	cl.EnableAutomaticBarriers()
	if err := cl.EndCompute(); err != nil {
		return err
	}
	s.run("depth-pyramid")
	return nil
}

func (s *Scheduler) clusterBuildPass(cl rhi.CommandList, in FrameInputs) error {
	s.profiler.BeginScope("cluster-build")
	defer s.profiler.EndScope("cluster-build")

	p, err := s.ensureComputePipeline("cluster-build", "cluster_build.wgsl")
	if err != nil {
		return err
	}
	dims := resource.DefaultClusterDims
	cl.SetComputeState(p, []rhi.BindingSet{s.res.SceneBindingSet()})
	cl.Dispatch(dims[0], dims[1], dims[2])
	if err := cl.EndCompute(); err != nil {
		return err
	}
	s.run("cluster-build")
	return nil
}

func (s *Scheduler) lightCullPass(cl rhi.CommandList) error {
	s.profiler.BeginScope("light-cull")
	defer s.profiler.EndScope("light-cull")

	p, err := s.ensureComputePipeline("light-cull", "light_cull.wgsl")
	if err != nil {
		return err
	}
	dims := resource.DefaultClusterDims
	cl.SetComputeState(p, []rhi.BindingSet{s.res.SceneBindingSet()})
	cl.Dispatch(dims[0]*dims[1]*dims[2], 1, 1)
	if err := cl.EndCompute(); err != nil {
		return err
	}
	s.run("light-cull")
	return nil
}

func (s *Scheduler) pointShadowPass(cl rhi.CommandList, in FrameInputs) {
	s.profiler.BeginScope("point-shadows")
	for _, slot := range in.Shadows.Point {
		cl.BeginRenderPass(rhi.RenderPassDescriptor{
			Label: "point-shadow", ViewMask: 0b111111,
			Depth: &rhi.DepthAttachment{View: s.res.ShadowAtlas().View(0, 1, slot.AtlasLayer, 6), Clear: f32ptr(0)},
		})
		cl.EndRenderPass()
	}
	s.run("point-shadows")
	s.profiler.EndScope("point-shadows")
}

func (s *Scheduler) spotShadowPass(cl rhi.CommandList, in FrameInputs) {
	s.profiler.BeginScope("spot-shadows")
	for _, slot := range in.Shadows.Spot {
		cl.BeginRenderPass(rhi.RenderPassDescriptor{
			Label: "spot-shadow",
			Depth: &rhi.DepthAttachment{View: s.res.ShadowAtlas().View(0, 1, slot.AtlasLayer, 1), Clear: f32ptr(0)},
		})
		cl.EndRenderPass()
	}
	s.run("spot-shadows")
	s.profiler.EndScope("spot-shadows")
}

func (s *Scheduler) cascadedShadowPass(cl rhi.CommandList, in FrameInputs) {
	s.profiler.BeginScope("cascaded-shadows")
	cl.BeginRenderPass(rhi.RenderPassDescriptor{
		Label: "cascaded-shadows", ViewMask: 0b111,
		Depth: &rhi.DepthAttachment{View: s.res.CascadeArray().View(0, 1, 0, 3), Clear: f32ptr(0)},
	})
	for i := range in.Draw.DrawCommands {
		cl.DrawIndirect(s.res.Buffer("indirectArgs"), uint64(in.Draw.DrawCommands[i].IndirectOffset)*16, 1, 16)
	}
	cl.EndRenderPass()
	s.run("cascaded-shadows")
	s.profiler.EndScope("cascaded-shadows")
}

func (s *Scheduler) environmentPass(cl rhi.CommandList, in FrameInputs) {
	s.profiler.BeginScope("environment")
	cl.BeginRenderPass(rhi.RenderPassDescriptor{
		Label: "environment", Colors: []rhi.ColorAttachment{{View: s.res.HDRColor().View(0, 1, 0, 1)}},
	})
	cl.Draw(3, 1, 0, 0)
	cl.EndRenderPass()
	s.run("environment")
	s.profiler.EndScope("environment")
}

func (s *Scheduler) basePassPass(cl rhi.CommandList, in FrameInputs) error {
	s.profiler.BeginScope("base-pass")
	defer s.profiler.EndScope("base-pass")

	if err := cl.BeginRenderPass(rhi.RenderPassDescriptor{
		Label:  "base-pass",
		Colors: []rhi.ColorAttachment{{View: s.res.HDRColor().View(0, 1, 0, 1)}, {View: s.res.Picker().View(0, 1, 0, 1)}},
		Depth:  &rhi.DepthAttachment{View: s.res.Depth().View(0, 1, 0, 1), ReadOnly: true, CompareGT: true},
	}); err != nil {
		return err
	}
	for _, dc := range in.Draw.DrawCommands {
		p, err := s.ensureGraphicsPipeline("base-pass", "base_pass.wgsl", dc.Skinned, 0)
		if err != nil {
			return err
		}
		cl.SetGraphicsState(p, []rhi.BindingSet{s.res.SceneBindingSet()})
		cl.DrawIndirect(s.res.Buffer("indirectArgs"), uint64(dc.IndirectOffset)*16, 1, 16)
	}
	if err := cl.EndRenderPass(); err != nil {
		return err
	}
	s.run("base-pass")
	return nil
}

// transparentPass is reserved, per spec §4.5 step 13.
func (s *Scheduler) transparentPass() {
	s.run("transparent")
}

func (s *Scheduler) batchedLinesPass(cl rhi.CommandList, in FrameInputs) {
	s.profiler.BeginScope("batched-lines")
	cl.BeginRenderPass(rhi.RenderPassDescriptor{
		Label: "batched-lines", Colors: []rhi.ColorAttachment{{View: s.res.HDRColor().View(0, 1, 0, 1)}},
	})
	cl.Draw(uint32(len(in.LineVertices)), 1, 0, 0)
	cl.EndRenderPass()
	s.run("batched-lines")
	s.profiler.EndScope("batched-lines")
}

func (s *Scheduler) selectionPass(cl rhi.CommandList, in FrameInputs) error {
	s.profiler.BeginScope("selection")
	defer s.profiler.EndScope("selection")

	p, err := s.ensureGraphicsPipeline("selection", "selection.wgsl", false, 4*MaxSelectionOutlineEntries)
	if err != nil {
		return err
	}
	indices := in.SelectedInstanceIndices
	if len(indices) > MaxSelectionOutlineEntries {
		s.log.Warnf("passes: selection outline truncated from %d to %d entries", len(indices), MaxSelectionOutlineEntries)
		indices = indices[:MaxSelectionOutlineEntries]
	}
	cl.BeginRenderPass(rhi.RenderPassDescriptor{
		Label: "selection", Colors: []rhi.ColorAttachment{{View: s.res.HDRColor().View(0, 1, 0, 1)}},
	})
	cl.SetGraphicsState(p, []rhi.BindingSet{s.res.SceneBindingSet()})
	cl.SetPushConstants(rhi.StageFragment, packUint32s(indices))
	cl.Draw(3, 1, 0, 0)
	cl.EndRenderPass()
	s.run("selection")
	return nil
}

func (s *Scheduler) tonemapPass(cl rhi.CommandList, in FrameInputs) error {
	s.profiler.BeginScope("tonemap")
	defer s.profiler.EndScope("tonemap")

	p, err := s.ensureGraphicsPipeline("tonemap", "tonemap.wgsl", false, 0)
	if err != nil {
		return err
	}
	colors := []rhi.ColorAttachment(nil)
	if in.BackBuffer != nil {
		colors = []rhi.ColorAttachment{{View: in.BackBuffer}}
	}
	if err := cl.BeginRenderPass(rhi.RenderPassDescriptor{Label: "tonemap", Colors: colors}); err != nil {
		return err
	}
	cl.SetGraphicsState(p, []rhi.BindingSet{s.res.SceneBindingSet()})
	cl.Draw(3, 1, 0, 0)
	if err := cl.EndRenderPass(); err != nil {
		return err
	}
	s.run("tonemap")
	return nil
}

func (s *Scheduler) debugOverlayPass(cl rhi.CommandList, in FrameInputs) {
	s.profiler.BeginScope("debug-overlay")
	colors := []rhi.ColorAttachment(nil)
	if in.BackBuffer != nil {
		colors = []rhi.ColorAttachment{{View: in.BackBuffer}}
	}
	cl.BeginRenderPass(rhi.RenderPassDescriptor{Label: "debug-overlay", Colors: colors})
	cl.Draw(3, 1, 0, 0)
	cl.EndRenderPass()
	s.run("debug-overlay")
	s.profiler.EndScope("debug-overlay")
}

func f32ptr(v float32) *float32 { return &v }

func packUint32s(vs []uint32) []byte {
	out := make([]byte, len(vs)*4)
	for i, v := range vs {
		out[i*4+0] = byte(v)
		out[i*4+1] = byte(v >> 8)
		out[i*4+2] = byte(v >> 16)
		out[i*4+3] = byte(v >> 24)
	}
	return out
}
