// Package frame ties the View Driver, Draw Compiler, Light Packer,
// Resource Manager, and Pass Scheduler into the single renderScene entry
// point a host application calls once per frame.
package frame

import (
	"github.com/gekko3d/clusterforge/assets"
	"github.com/gekko3d/clusterforge/clusterforgeerr"
	"github.com/gekko3d/clusterforge/drawcompiler"
	"github.com/gekko3d/clusterforge/lightpack"
	"github.com/gekko3d/clusterforge/logging"
	"github.com/gekko3d/clusterforge/passes"
	"github.com/gekko3d/clusterforge/resource"
	"github.com/gekko3d/clusterforge/rhi"
	"github.com/gekko3d/clusterforge/shaderlib"
	"github.com/gekko3d/clusterforge/view"
	"github.com/gekko3d/clusterforge/worldview"
)

// Options configures the few per-frame toggles RenderScene needs beyond
// the world snapshot and camera volume.
type Options struct {
	ScreenWidth, ScreenHeight uint32
	HasEnvironment            bool
	WireframeBase             bool
	DebugOverlay              passes.DebugOverlayFlags
	BackBuffer                rhi.ImageView
	FrustumCull               bool
	OcclusionCull             bool
}

// Result is everything downstream callers (tests, the readback service,
// the debug HUD) might want out of a completed frame.
type Result struct {
	Globals view.SceneGlobals
	Draw    drawcompiler.Output
	Lights  lightpack.SceneLightData
	Shadows lightpack.PackedShadows
}

// Renderer owns the per-frame pipeline's long-lived state: the Resource
// Manager's buffers/images, the shader library's worker pool, and the
// shadow atlas allocator.
type Renderer struct {
	dev       rhi.Device
	log       logging.Logger
	res       *resource.Manager
	shaders   *shaderlib.Library
	scheduler *passes.Scheduler
	compiler  drawcompiler.Compiler
	packer    lightpack.Packer
}

// NewRenderer wires the five components together; defaultMaterial is the
// fallback the Draw Compiler hard-fatals without, and atlas is the
// shared shadow-tile allocator the Light Packer draws from.
func NewRenderer(dev rhi.Device, log logging.Logger, shaders *shaderlib.Library, defaultMaterial assets.Material, atlas *lightpack.ShadowAtlas) *Renderer {
	if log == nil {
		log = logging.NewNopLogger()
	}
	res := resource.New(dev, log)
	return &Renderer{
		dev:       dev,
		log:       log,
		res:       res,
		shaders:   shaders,
		scheduler: passes.New(dev, res, shaders, log, passes.NewProfiler()),
		compiler:  drawcompiler.Compiler{DefaultMaterial: defaultMaterial},
		packer:    lightpack.Packer{Atlas: atlas},
	}
}

func (r *Renderer) ResourceManager() *resource.Manager { return r.res }
func (r *Renderer) Scheduler() *passes.Scheduler        { return r.scheduler }

// RenderScene implements spec §6's renderScene entry point: compile draws,
// pack lights, upload scene buffers, and run the pass scheduler. It
// aborts with ShadersCompiling (without touching any GPU buffer) if the
// shader library has pending compiles, per spec §5's cancellation rule.
func (r *Renderer) RenderScene(w worldview.World, v view.Volume, opts Options) (Result, error) {
	if r.shaders.HasPendingRequests() {
		return Result{}, clusterforgeerr.ShadersCompiling{}
	}

	clocks := w.Clocks()
	draw := r.compiler.Compile(w.ViewEntities())
	for i := range draw.Instances {
		if w.IsSelected(worldview.EntityId(draw.Instances[i].OwningEntity)) {
			draw.Instances[i].Flags |= drawcompiler.InstanceSelected
		}
	}
	lightData, shadows := r.packer.Pack(w.ViewLights(), v)

	globals := view.BuildSceneGlobals(
		v, clocks.TimeSeconds, clocks.DeltaSeconds,
		opts.ScreenWidth, opts.ScreenHeight,
		resource.DefaultClusterDims[0], resource.DefaultClusterDims[1], resource.DefaultClusterDims[2],
		r.res.DepthPyramid().Width(), r.res.DepthPyramid().Height(), r.res.DepthPyramid().MipLevels(),
		uint32(len(draw.Instances)), opts.FrustumCull, opts.OcclusionCull,
	)

	cl, err := r.dev.CreateCommandList()
	if err != nil {
		return Result{}, err
	}
	if err := cl.Open(); err != nil {
		return Result{}, err
	}

	if err := r.uploadSceneBuffers(cl, draw, lightData); err != nil {
		return Result{}, err
	}
	if r.res.LayoutsDirty() {
		if err := r.res.RebuildBindings(nil); err != nil {
			return Result{}, err
		}
	}

	selected := make([]uint32, 0, len(draw.Instances))
	for i, inst := range draw.Instances {
		if inst.Flags&drawcompiler.InstanceSelected != 0 {
			selected = append(selected, uint32(i))
		}
	}

	in := passes.FrameInputs{
		Scene:                   globals,
		Draw:                    draw,
		Lights:                  lightData,
		Shadows:                 shadows,
		HasEnvironment:          opts.HasEnvironment,
		WireframeBase:           opts.WireframeBase,
		SelectedInstanceIndices: selected,
		DebugOverlay:            opts.DebugOverlay,
		BackBuffer:              opts.BackBuffer,
	}

	if err := r.scheduler.RunFrame(cl, in); err != nil {
		return Result{}, err
	}

	if err := cl.Close(); err != nil {
		return Result{}, err
	}
	if err := r.dev.Submit(cl); err != nil {
		return Result{}, err
	}

	return Result{Globals: globals, Draw: draw, Lights: lightData, Shadows: shadows}, nil
}

func (r *Renderer) uploadSceneBuffers(cl rhi.CommandList, draw drawcompiler.Output, lightData lightpack.SceneLightData) error {
	instanceBytes := make([]byte, 0, len(draw.Instances)*112)
	for _, inst := range draw.Instances {
		instanceBytes = append(instanceBytes, inst.Bytes()...)
	}
	instBuf, err := r.res.EnsureBuffer("instances", uint64(len(instanceBytes)), rhi.BufferUsageStorage|rhi.BufferUsageCopyDst)
	if err != nil {
		return err
	}

	indirectBytes := make([]byte, 0, len(draw.IndirectArgs)*16)
	for _, a := range draw.IndirectArgs {
		indirectBytes = append(indirectBytes, a.Bytes()...)
	}
	indirectBuf, err := r.res.EnsureBuffer("indirectArgs", uint64(len(indirectBytes)), rhi.BufferUsageStorage|rhi.BufferUsageIndirect|rhi.BufferUsageCopyDst)
	if err != nil {
		return err
	}

	lightBytes := make([]byte, lightData.ByteSize())
	lightBuf, err := r.res.EnsureBuffer("lightData", uint64(len(lightBytes)), rhi.BufferUsageStorage|rhi.BufferUsageCopyDst)
	if err != nil {
		return err
	}

	cl.DisableAutomaticBarriers()
	if len(instanceBytes) > 0 {
		cl.WriteBuffer(instBuf, 0, instanceBytes)
	}
	if len(indirectBytes) > 0 {
		cl.WriteBuffer(indirectBuf, 0, indirectBytes)
	}
	if len(lightBytes) > 0 {
		cl.WriteBuffer(lightBuf, 0, lightBytes)
	}
	cl.CommitBarriers()
	cl.EnableAutomaticBarriers()
	return nil
}
