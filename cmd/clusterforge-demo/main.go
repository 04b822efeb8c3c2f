// Command clusterforge-demo is a minimal host application: it opens a
// window, brings up a wgpu device and surface, and drives
// frame.Renderer.RenderScene once per frame. The bring-up sequence
// mirrors ClientModule.Install (instance -> surface -> adapter -> device
// -> surface configuration); the event loop mirrors the standalone
// voxel-renderer binary's PollEvents/Update/Render shape, generalized
// from an ECS-module callback to a single RenderScene call per frame.
package main

import (
	"flag"
	"log"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/clusterforge/assets"
	"github.com/gekko3d/clusterforge/frame"
	"github.com/gekko3d/clusterforge/hud"
	"github.com/gekko3d/clusterforge/lightpack"
	"github.com/gekko3d/clusterforge/logging"
	"github.com/gekko3d/clusterforge/readback"
	"github.com/gekko3d/clusterforge/resource"
	"github.com/gekko3d/clusterforge/rhi"
	"github.com/gekko3d/clusterforge/rhi/wgpurhi"
	"github.com/gekko3d/clusterforge/shaderlib"
	"github.com/gekko3d/clusterforge/shaderlib/shaders"
	"github.com/gekko3d/clusterforge/view"
	"github.com/gekko3d/clusterforge/worldview"
	"github.com/gekko3d/clusterforge/xform"
)

func init() {
	runtime.LockOSThread()
}

const (
	defaultWidth  = 1280
	defaultHeight = 720
)

// passShaderSources maps each WGSL source the Pass Scheduler looks up by
// name to its embedded source in shaderlib/shaders.
var passShaderSources = map[string]string{
	"cull.wgsl":            shaders.CullWGSL,
	"hiz.wgsl":             shaders.HiZWGSL,
	"cluster_build.wgsl":   shaders.ClusterBuildWGSL,
	"light_cull.wgsl":      shaders.LightCullWGSL,
	"depth_prepass.wgsl":   shaders.DepthPrepassWGSL,
	"base_pass.wgsl":       shaders.BasePassWGSL,
	"selection.wgsl":       shaders.SelectionWGSL,
	"tonemap.wgsl":         shaders.TonemapWGSL,
	"debug_overlay.wgsl":   shaders.DebugOverlayWGSL,
	"point_shadow.wgsl":    shaders.ShadowWGSL,
	"spot_shadow.wgsl":     shaders.ShadowWGSL,
	"cascaded_shadow.wgsl": shaders.ShadowWGSL,
}

// emptyMaterial satisfies assets.Material with no GPU resources. The demo
// world carries no draw objects, so the Draw Compiler never dereferences
// it; NewRenderer still requires a non-nil default material.
type emptyMaterial struct{}

func (emptyMaterial) Id() assets.Id                              { return "demo-default" }
func (emptyMaterial) VertexShader(skinned bool) rhi.ShaderModule { return nil }
func (emptyMaterial) PixelShader() rhi.ShaderModule              { return nil }
func (emptyMaterial) BindingSet() rhi.BindingSet                 { return nil }
func (emptyMaterial) BindingLayout() rhi.BindingLayout           { return nil }
func (emptyMaterial) IsReadyForRender() bool                     { return true }

func main() {
	fontPath := flag.String("font", "", "path to a TTF/OTF font for the HUD overlay (optional)")
	debug := flag.Bool("debug", false, "enable verbose logging")
	flag.Parse()

	if err := glfw.Init(); err != nil {
		log.Fatalf("glfw.Init: %v", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // wgpu manages its own surface
	glfw.WindowHint(glfw.Resizable, glfw.True)

	window, err := glfw.CreateWindow(defaultWidth, defaultHeight, "clusterforge demo", nil, nil)
	if err != nil {
		log.Fatalf("glfw.CreateWindow: %v", err)
	}
	defer window.Destroy()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		log.Fatalf("RequestAdapter: %v", err)
	}
	defer adapter.Release()

	wgpuDevice, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "clusterforge device"})
	if err != nil {
		log.Fatalf("RequestDevice: %v", err)
	}

	caps := surface.GetCapabilities(adapter)
	surfaceFormat := caps.Formats[0]
	width, height := window.GetFramebufferSize()
	config := &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, wgpuDevice, config)

	dev := wgpurhi.New(wgpuDevice)
	logger := logging.NewDefaultLogger("clusterforge", *debug)

	lib := shaderlib.New(dev, logger)
	for name, source := range passShaderSources {
		lib.RegisterSource(name, source)
	}

	atlas := lightpack.NewShadowAtlas(1024, 4, 8)
	renderer := frame.NewRenderer(dev, logger, lib, emptyMaterial{}, atlas)
	if err := renderer.ResourceManager().Resize(
		resource.Extent{Width: uint32(width), Height: uint32(height)},
		lightpack.NumCascades,
		resource.Extent{Width: 2048, Height: 2048},
	); err != nil {
		log.Fatalf("Resize: %v", err)
	}

	picker := readback.New(dev, logger)
	_ = picker

	var hudRenderer *hud.Renderer
	if *fontPath != "" {
		hudRenderer, err = hud.NewRenderer(*fontPath, 18)
		if err != nil {
			logger.Warnf("hud: font load failed, running without overlay: %v", err)
		}
	}

	world := worldview.NewMemWorld()
	world.Lights = []worldview.LightObject{
		{
			Entity:    1,
			Transform: xform.Identity(),
			Light: worldview.LightComponent{
				Kind:      worldview.LightDirectional,
				Color:     [3]float32{1, 1, 1},
				Intensity: 1.0,
			},
		},
	}

	resized := false
	window.SetFramebufferSizeCallback(func(w *glfw.Window, newWidth, newHeight int) {
		if newWidth == 0 || newHeight == 0 {
			return
		}
		config.Width = uint32(newWidth)
		config.Height = uint32(newHeight)
		surface.Configure(adapter, wgpuDevice, config)
		resized = true
	})

	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})

	eye := mgl32.Vec3{0, 3, 8}
	target := mgl32.Vec3{0, 0, 0}
	up := mgl32.Vec3{0, 1, 0}

	for !window.ShouldClose() {
		glfw.PollEvents()

		if resized {
			if err := renderer.ResourceManager().Resize(
				resource.Extent{Width: config.Width, Height: config.Height},
				lightpack.NumCascades,
				resource.Extent{Width: 2048, Height: 2048},
			); err != nil {
				logger.Errorf("resize: %v", err)
			}
			resized = false
		}

		tex, err := surface.GetCurrentTexture()
		if err != nil {
			logger.Errorf("GetCurrentTexture: %v", err)
			continue
		}
		texView, err := tex.CreateView(nil)
		if err != nil {
			logger.Errorf("CreateView: %v", err)
			continue
		}
		backBuffer := wgpurhi.WrapSurfaceTexture(tex, texView, config.Width, config.Height, rhi.FormatBGRA8Unorm)

		aspect := float32(config.Width) / float32(config.Height)
		vol := view.NewVolume(eye, target, up, mgl32.DegToRad(60), aspect, 0.1, 200)

		_, err = renderer.RenderScene(world, vol, frame.Options{
			ScreenWidth:    config.Width,
			ScreenHeight:   config.Height,
			HasEnvironment: true,
			BackBuffer:     backBuffer,
		})
		if err != nil {
			logger.Warnf("RenderScene: %v", err)
		}

		if hudRenderer != nil {
			_ = hudRenderer.BuildVertices([]hud.Item{
				{Text: "clusterforge demo", Position: [2]float32{10, 10}, Scale: 1, Color: [4]float32{1, 1, 1, 1}},
			}, int(config.Width), int(config.Height))
		}

		surface.Present()
		texView.Release()
	}
}
