package wgpurhi

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/clusterforge/rhi"
)

type Buffer struct {
	buf   *wgpu.Buffer
	label string
}

func (b *Buffer) Size() uint64  { return b.buf.GetSize() }
func (b *Buffer) Label() string { return b.label }
func (b *Buffer) Release()      { b.buf.Release() }

type Image struct {
	tex            *wgpu.Texture
	label          string
	w, h           uint32
	mips, layers   uint32
	format         rhi.Format
}

func (img *Image) Width() uint32       { return img.w }
func (img *Image) Height() uint32      { return img.h }
func (img *Image) MipLevels() uint32   { return img.mips }
func (img *Image) ArrayLayers() uint32 { return img.layers }
func (img *Image) Label() string       { return img.label }
func (img *Image) Release()            { img.tex.Release() }

func (img *Image) View(baseMip, mipCount, baseLayer, layerCount uint32) rhi.ImageView {
	if mipCount == 0 {
		mipCount = 1
	}
	if layerCount == 0 {
		layerCount = 1
	}
	dim := wgpu.TextureViewDimension2D
	if img.layers > 1 {
		dim = wgpu.TextureViewDimension2DArray
	}
	v, err := img.tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           img.label + ".view",
		Format:          toWgpuTextureFormat(img.format),
		Dimension:       dim,
		BaseMipLevel:    baseMip,
		MipLevelCount:   mipCount,
		BaseArrayLayer:  baseLayer,
		ArrayLayerCount: layerCount,
	})
	if err != nil {
		panic(err)
	}
	return &ImageView{img: img, view: v, baseMip: baseMip, baseLayer: baseLayer}
}

type ImageView struct {
	img       *Image
	view      *wgpu.TextureView
	baseMip   uint32
	baseLayer uint32
}

func (v *ImageView) Image() rhi.Image  { return v.img }
func (v *ImageView) BaseMip() uint32   { return v.baseMip }
func (v *ImageView) BaseLayer() uint32 { return v.baseLayer }

// SurfaceImage wraps the swapchain texture the host acquires once per
// frame via surface.GetCurrentTexture; it satisfies rhi.Image/rhi.ImageView
// without a CreateView round trip since the surface already hands back a
// texture view.
type SurfaceImage struct {
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	w, h   uint32
	format rhi.Format
}

// WrapSurfaceTexture adapts the current swapchain texture into an
// rhi.ImageView the tonemap and debug-overlay passes can write to as
// their color attachment.
func WrapSurfaceTexture(tex *wgpu.Texture, view *wgpu.TextureView, w, h uint32, format rhi.Format) rhi.ImageView {
	img := &SurfaceImage{tex: tex, view: view, w: w, h: h, format: format}
	return img
}

func (img *SurfaceImage) Width() uint32       { return img.w }
func (img *SurfaceImage) Height() uint32      { return img.h }
func (img *SurfaceImage) MipLevels() uint32   { return 1 }
func (img *SurfaceImage) ArrayLayers() uint32 { return 1 }
func (img *SurfaceImage) Label() string       { return "surface" }
func (img *SurfaceImage) Release()            {}

func (img *SurfaceImage) View(baseMip, mipCount, baseLayer, layerCount uint32) rhi.ImageView {
	return img
}

func (img *SurfaceImage) Image() rhi.Image  { return img }
func (img *SurfaceImage) BaseMip() uint32   { return 0 }
func (img *SurfaceImage) BaseLayer() uint32 { return 0 }

type BindingLayout struct {
	bgl   *wgpu.BindGroupLayout
	slots []rhi.BindingSlot
}

func (l *BindingLayout) Slots() []rhi.BindingSlot { return l.slots }
func (l *BindingLayout) Release()                 { l.bgl.Release() }

type BindingSet struct {
	bg     *wgpu.BindGroup
	layout rhi.BindingLayout
}

func (s *BindingSet) Layout() rhi.BindingLayout { return s.layout }
func (s *BindingSet) Release()                  { s.bg.Release() }

// ShaderModule wraps a compiled wgpu.ShaderModule so pipeline descriptors
// can carry it opaquely behind rhi.ShaderModule.
type ShaderModule struct {
	mod    *wgpu.ShaderModule
	path   string
	macros []string
}

func (m *ShaderModule) Path() string     { return m.path }
func (m *ShaderModule) Macros() []string { return m.macros }
func (m *ShaderModule) Release()         { m.mod.Release() }

type Pipeline struct {
	desc     rhi.PipelineDescriptor
	graphics *wgpu.RenderPipeline
	compute  *wgpu.ComputePipeline
}

func (p *Pipeline) Descriptor() rhi.PipelineDescriptor { return p.desc }
func (p *Pipeline) Release() {
	if p.graphics != nil {
		p.graphics.Release()
	}
	if p.compute != nil {
		p.compute.Release()
	}
}
