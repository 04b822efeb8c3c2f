// Package fakerhi is an in-memory rhi.Device used by package tests across
// the render core. It tracks resource states the way a real backend would
// (so tests can assert on the explicit-barrier contract) but performs all
// "GPU" work as plain byte-slice copies.
package fakerhi

import (
	"fmt"
	"sync"

	"github.com/gekko3d/clusterforge/rhi"
)

type Device struct {
	mu      sync.Mutex
	buffers []*Buffer
	images  []*Image
}

func New() *Device {
	return &Device{}
}

func (d *Device) CreateBuffer(desc rhi.BufferDescriptor, initialData []byte) (rhi.Buffer, error) {
	b := &Buffer{label: desc.Label, data: make([]byte, desc.Size), state: desc.InitialState}
	if len(initialData) > 0 {
		copy(b.data, initialData)
	}
	d.mu.Lock()
	d.buffers = append(d.buffers, b)
	d.mu.Unlock()
	return b, nil
}

func (d *Device) CreateImage(desc rhi.ImageDescriptor) (rhi.Image, error) {
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	if desc.ArrayLayers == 0 {
		desc.ArrayLayers = 1
	}
	img := &Image{
		label:  desc.Label,
		w:      desc.Width,
		h:      desc.Height,
		mips:   desc.MipLevels,
		layers: desc.ArrayLayers,
		format: desc.Format,
		state:  desc.InitialState,
		planes: make(map[uint64][]byte),
	}
	d.mu.Lock()
	d.images = append(d.images, img)
	d.mu.Unlock()
	return img, nil
}

func (d *Device) CreateBindingLayout(slots []rhi.BindingSlot) (rhi.BindingLayout, error) {
	return &bindingLayout{slots: slots}, nil
}

func (d *Device) CreateBindingSet(layout rhi.BindingLayout, entries []rhi.BindingEntry) (rhi.BindingSet, error) {
	return &bindingSet{layout: layout, entries: entries}, nil
}

func (d *Device) CreateGraphicsPipeline(desc rhi.PipelineDescriptor) (rhi.Pipeline, error) {
	return &pipeline{desc: desc}, nil
}

func (d *Device) CreateComputePipeline(desc rhi.PipelineDescriptor) (rhi.Pipeline, error) {
	return &pipeline{desc: desc}, nil
}

func (d *Device) CreateCommandList() (rhi.CommandList, error) {
	return &CommandList{dev: d}, nil
}

func (d *Device) Submit(cl rhi.CommandList) error {
	fc, ok := cl.(*CommandList)
	if !ok {
		return fmt.Errorf("fakerhi: foreign command list")
	}
	if !fc.opened || fc.closed {
		return fmt.Errorf("fakerhi: submit of unopened/unclosed command list")
	}
	return nil
}

func (d *Device) MapBufferRead(b rhi.Buffer) ([]byte, error) {
	fb, ok := b.(*Buffer)
	if !ok {
		return nil, fmt.Errorf("fakerhi: foreign buffer")
	}
	out := make([]byte, len(fb.data))
	copy(out, fb.data)
	return out, nil
}

func (d *Device) UnmapBuffer(b rhi.Buffer) {}

// --- Buffer ---

type Buffer struct {
	label string
	data  []byte
	state rhi.ResourceState
}

func (b *Buffer) Size() uint64   { return uint64(len(b.data)) }
func (b *Buffer) Label() string  { return b.label }
func (b *Buffer) Release()       {}
func (b *Buffer) Bytes() []byte  { return b.data }

// --- Image ---

type Image struct {
	label  string
	w, h   uint32
	mips   uint32
	layers uint32
	format rhi.Format
	state  rhi.ResourceState
	planes map[uint64][]byte // key: mip<<32 | layer
}

func planeKey(mip, layer uint32) uint64 { return uint64(mip)<<32 | uint64(layer) }

func (img *Image) Width() uint32       { return img.w }
func (img *Image) Height() uint32      { return img.h }
func (img *Image) MipLevels() uint32   { return img.mips }
func (img *Image) ArrayLayers() uint32 { return img.layers }
func (img *Image) Label() string       { return img.label }
func (img *Image) Release()            {}

func (img *Image) View(baseMip, mipCount, baseLayer, layerCount uint32) rhi.ImageView {
	return &imageView{img: img, baseMip: baseMip, baseLayer: baseLayer}
}

// Plane returns (creating if absent) the raw pixel storage for a given
// mip/layer, sized width>>mip * height>>mip * bytesPerPixel(format).
func (img *Image) Plane(mip, layer uint32) []byte {
	k := planeKey(mip, layer)
	if p, ok := img.planes[k]; ok {
		return p
	}
	w := mipDim(img.w, mip)
	h := mipDim(img.h, mip)
	p := make([]byte, int(w)*int(h)*bytesPerPixel(img.format))
	img.planes[k] = p
	return p
}

func mipDim(d, mip uint32) uint32 {
	v := d >> mip
	if v < 1 {
		v = 1
	}
	return v
}

func bytesPerPixel(f rhi.Format) int {
	switch f {
	case rhi.FormatR32Float, rhi.FormatRG32Uint:
		return 4
	case rhi.FormatRGBA8Unorm, rhi.FormatBGRA8Unorm, rhi.FormatD32Float:
		return 4
	case rhi.FormatRGBA16Float:
		return 8
	default:
		return 4
	}
}

type imageView struct {
	img       *Image
	baseMip   uint32
	baseLayer uint32
}

func (v *imageView) Image() rhi.Image  { return v.img }
func (v *imageView) BaseMip() uint32   { return v.baseMip }
func (v *imageView) BaseLayer() uint32 { return v.baseLayer }

// --- Binding layout/set ---

type bindingLayout struct{ slots []rhi.BindingSlot }

func (l *bindingLayout) Slots() []rhi.BindingSlot { return l.slots }
func (l *bindingLayout) Release()                 {}

type bindingSet struct {
	layout  rhi.BindingLayout
	entries []rhi.BindingEntry
}

func (s *bindingSet) Layout() rhi.BindingLayout { return s.layout }
func (s *bindingSet) Release()                  {}

// --- Pipeline ---

type pipeline struct{ desc rhi.PipelineDescriptor }

func (p *pipeline) Descriptor() rhi.PipelineDescriptor { return p.desc }
func (p *pipeline) Release()                           {}

// --- CommandList ---

type CommandList struct {
	dev    *Device
	opened bool
	closed bool

	autoBarriers bool
	uavBarriers  map[rhi.Image]bool

	graphics   rhi.Pipeline
	compute    rhi.Pipeline
	pushConsts []byte

	// Record of ops, useful for pass-scheduler tests asserting ordering.
	Ops []string
}

func (c *CommandList) Open() error {
	c.opened = true
	c.autoBarriers = true
	c.uavBarriers = make(map[rhi.Image]bool)
	c.Ops = append(c.Ops, "open")
	return nil
}

func (c *CommandList) Close() error {
	c.closed = true
	c.Ops = append(c.Ops, "close")
	return nil
}

func (c *CommandList) SetBufferState(b rhi.Buffer, state rhi.ResourceState) {
	if fb, ok := b.(*Buffer); ok {
		fb.state = state
	}
}

func (c *CommandList) SetImageState(img rhi.Image, state rhi.ResourceState) {
	if fi, ok := img.(*Image); ok {
		fi.state = state
	}
}

func (c *CommandList) CommitBarriers() { c.Ops = append(c.Ops, "commit-barriers") }

func (c *CommandList) EnableAutomaticBarriers()  { c.autoBarriers = true }
func (c *CommandList) DisableAutomaticBarriers() { c.autoBarriers = false }
func (c *CommandList) SetEnableUavBarriersForImage(img rhi.Image, enabled bool) {
	c.uavBarriers[img] = enabled
}

func (c *CommandList) WriteBuffer(b rhi.Buffer, offset uint64, data []byte) {
	fb, ok := b.(*Buffer)
	if !ok {
		return
	}
	need := offset + uint64(len(data))
	if need > uint64(len(fb.data)) {
		grown := make([]byte, need)
		copy(grown, fb.data)
		fb.data = grown
	}
	copy(fb.data[offset:], data)
}

func (c *CommandList) WriteImage(img rhi.Image, mip, layer uint32, data []byte) {
	fi, ok := img.(*Image)
	if !ok {
		return
	}
	plane := fi.Plane(mip, layer)
	copy(plane, data)
}

func (c *CommandList) CopyImage(src, dst rhi.Image, srcMip, dstMip uint32) {
	fs, ok1 := src.(*Image)
	fd, ok2 := dst.(*Image)
	if !ok1 || !ok2 {
		return
	}
	srcPlane := fs.Plane(srcMip, 0)
	dstPlane := fd.Plane(dstMip, 0)
	copy(dstPlane, srcPlane)
}

func (c *CommandList) CopyImageToBuffer(src rhi.Image, mip, layer uint32, dst rhi.Buffer, dstOffset uint64) {
	fs, ok1 := src.(*Image)
	fb, ok2 := dst.(*Buffer)
	if !ok1 || !ok2 {
		return
	}
	plane := fs.Plane(mip, layer)
	c.WriteBuffer(fb, dstOffset, plane)
}

func (c *CommandList) CopyBufferToBuffer(src rhi.Buffer, srcOffset uint64, dst rhi.Buffer, dstOffset, size uint64) {
	fs, ok1 := src.(*Buffer)
	fd, ok2 := dst.(*Buffer)
	if !ok1 || !ok2 {
		return
	}
	end := srcOffset + size
	if end > uint64(len(fs.data)) {
		end = uint64(len(fs.data))
	}
	c.WriteBuffer(fd, dstOffset, fs.data[srcOffset:end])
}

func (c *CommandList) BeginRenderPass(desc rhi.RenderPassDescriptor) error {
	c.Ops = append(c.Ops, "begin-render-pass:"+desc.Label)
	return nil
}

func (c *CommandList) EndRenderPass() error {
	c.Ops = append(c.Ops, "end-render-pass")
	return nil
}

func (c *CommandList) SetGraphicsState(p rhi.Pipeline, sets []rhi.BindingSet) { c.graphics = p }
func (c *CommandList) SetComputeState(p rhi.Pipeline, sets []rhi.BindingSet)  { c.compute = p }
func (c *CommandList) SetPushConstants(stage rhi.ShaderStage, data []byte)    { c.pushConsts = data }

func (c *CommandList) Dispatch(x, y, z uint32) {
	c.Ops = append(c.Ops, fmt.Sprintf("dispatch:%d,%d,%d", x, y, z))
}

func (c *CommandList) EndCompute() error {
	c.Ops = append(c.Ops, "end-compute")
	return nil
}

func (c *CommandList) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	c.Ops = append(c.Ops, fmt.Sprintf("draw:%d,%d", vertexCount, instanceCount))
}

func (c *CommandList) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	c.Ops = append(c.Ops, fmt.Sprintf("draw-indexed:%d,%d", indexCount, instanceCount))
}

func (c *CommandList) DrawIndirect(args rhi.Buffer, offset uint64, drawCount, stride uint32) {
	c.Ops = append(c.Ops, fmt.Sprintf("draw-indirect:%d@%d", drawCount, offset))
}
