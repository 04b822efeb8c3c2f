package wgpurhi

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/clusterforge/rhi"
)

// CommandList adapts rhi.CommandList onto a single wgpu.CommandEncoder.
// wgpu inserts its own resource barriers, so SetBufferState,
// SetImageState, CommitBarriers and SetEnableUavBarriersForImage do
// nothing here, and Enable/DisableAutomaticBarriers only set a flag that
// nothing reads, as documented at the top of device.go.
type CommandList struct {
	dev     *Device
	encoder *wgpu.CommandEncoder
	cmdBuf  *wgpu.CommandBuffer

	autoBarriers bool

	activeRender  *wgpu.RenderPassEncoder
	activeCompute *wgpu.ComputePassEncoder
}

func (c *CommandList) Open() error {
	c.autoBarriers = true
	return nil
}

func (c *CommandList) Close() error {
	buf, err := c.encoder.Finish(nil)
	if err != nil {
		return err
	}
	c.cmdBuf = buf
	return nil
}

func (c *CommandList) SetBufferState(b rhi.Buffer, state rhi.ResourceState) {}
func (c *CommandList) SetImageState(img rhi.Image, state rhi.ResourceState) {}
func (c *CommandList) CommitBarriers()                                     {}

func (c *CommandList) EnableAutomaticBarriers()  { c.autoBarriers = true }
func (c *CommandList) DisableAutomaticBarriers() { c.autoBarriers = false }
func (c *CommandList) SetEnableUavBarriersForImage(img rhi.Image, enabled bool) {}

func (c *CommandList) WriteBuffer(b rhi.Buffer, offset uint64, data []byte) {
	wb, ok := b.(*Buffer)
	if !ok {
		return
	}
	c.dev.queue.WriteBuffer(wb.buf, offset, data)
}

func (c *CommandList) WriteImage(img rhi.Image, mip, layer uint32, data []byte) {
	wi, ok := img.(*Image)
	if !ok {
		return
	}
	bytesPerRow := (mipDim(wi.w, mip)*bytesPerPixel(wi.format) + 255) &^ 255
	c.dev.queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: wi.tex, MipLevel: mip, Origin: wgpu.Origin3D{X: 0, Y: 0, Z: layer}},
		data,
		&wgpu.TextureDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: mipDim(wi.h, mip)},
		&wgpu.Extent3D{Width: mipDim(wi.w, mip), Height: mipDim(wi.h, mip), DepthOrArrayLayers: 1},
	)
}

func mipDim(d, mip uint32) uint32 {
	v := d >> mip
	if v < 1 {
		v = 1
	}
	return v
}

func bytesPerPixel(f rhi.Format) uint32 {
	switch f {
	case rhi.FormatRGBA16Float:
		return 8
	default:
		return 4
	}
}

func (c *CommandList) CopyImage(src, dst rhi.Image, srcMip, dstMip uint32) {
	ws, ok1 := src.(*Image)
	wd, ok2 := dst.(*Image)
	if !ok1 || !ok2 {
		return
	}
	c.encoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: ws.tex, MipLevel: srcMip},
		&wgpu.ImageCopyTexture{Texture: wd.tex, MipLevel: dstMip},
		&wgpu.Extent3D{Width: mipDim(ws.w, srcMip), Height: mipDim(ws.h, srcMip), DepthOrArrayLayers: 1},
	)
}

func (c *CommandList) CopyImageToBuffer(src rhi.Image, mip, layer uint32, dst rhi.Buffer, dstOffset uint64) {
	ws, ok1 := src.(*Image)
	wb, ok2 := dst.(*Buffer)
	if !ok1 || !ok2 {
		return
	}
	w, h := mipDim(ws.w, mip), mipDim(ws.h, mip)
	bytesPerRow := (w*bytesPerPixel(ws.format) + 255) &^ 255
	c.encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: ws.tex, MipLevel: mip, Origin: wgpu.Origin3D{X: 0, Y: 0, Z: layer}},
		&wgpu.ImageCopyBuffer{Buffer: wb.buf, Layout: wgpu.TextureDataLayout{Offset: dstOffset, BytesPerRow: bytesPerRow, RowsPerImage: h}},
		&wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
}

func (c *CommandList) CopyBufferToBuffer(src rhi.Buffer, srcOffset uint64, dst rhi.Buffer, dstOffset, size uint64) {
	ws, ok1 := src.(*Buffer)
	wd, ok2 := dst.(*Buffer)
	if !ok1 || !ok2 {
		return
	}
	c.encoder.CopyBufferToBuffer(ws.buf, srcOffset, wd.buf, dstOffset, size)
}

func (c *CommandList) BeginRenderPass(desc rhi.RenderPassDescriptor) error {
	colors := make([]wgpu.RenderPassColorAttachment, 0, len(desc.Colors))
	for _, ca := range desc.Colors {
		var view *wgpu.TextureView
		switch v := ca.View.(type) {
		case *ImageView:
			view = v.view
		case *SurfaceImage:
			view = v.view
		default:
			return fmt.Errorf("wgpurhi: foreign image view")
		}
		att := wgpu.RenderPassColorAttachment{View: view, LoadOp: wgpu.LoadOpLoad, StoreOp: wgpu.StoreOpStore}
		if ca.Clear != nil {
			att.LoadOp = wgpu.LoadOpClear
			att.ClearValue = wgpu.Color{R: float64(ca.Clear[0]), G: float64(ca.Clear[1]), B: float64(ca.Clear[2]), A: float64(ca.Clear[3])}
		}
		colors = append(colors, att)
	}

	rpDesc := &wgpu.RenderPassDescriptor{Label: desc.Label, ColorAttachments: colors}
	if desc.Depth != nil {
		dv, ok := desc.Depth.View.(*ImageView)
		if !ok {
			return fmt.Errorf("wgpurhi: foreign depth view")
		}
		datt := wgpu.RenderPassDepthStencilAttachment{View: dv.view, DepthStoreOp: wgpu.StoreOpStore, DepthReadOnly: desc.Depth.ReadOnly}
		if desc.Depth.Clear != nil {
			datt.DepthLoadOp = wgpu.LoadOpClear
			datt.DepthClearValue = *desc.Depth.Clear
		} else {
			datt.DepthLoadOp = wgpu.LoadOpLoad
		}
		rpDesc.DepthStencilAttachment = &datt
	}

	c.activeRender = c.encoder.BeginRenderPass(rpDesc)
	if len(desc.Viewport) == 4 && (desc.Viewport[2] != 0 || desc.Viewport[3] != 0) {
		c.activeRender.SetViewport(float32(desc.Viewport[0]), float32(desc.Viewport[1]), float32(desc.Viewport[2]), float32(desc.Viewport[3]), 0, 1)
		c.activeRender.SetScissorRect(uint32(desc.Viewport[0]), uint32(desc.Viewport[1]), uint32(desc.Viewport[2]), uint32(desc.Viewport[3]))
	}
	return nil
}

func (c *CommandList) EndRenderPass() error {
	if c.activeRender == nil {
		return fmt.Errorf("wgpurhi: EndRenderPass without BeginRenderPass")
	}
	err := c.activeRender.End()
	c.activeRender.Release()
	c.activeRender = nil
	return err
}

func (c *CommandList) SetGraphicsState(pipeline rhi.Pipeline, sets []rhi.BindingSet) {
	p, ok := pipeline.(*Pipeline)
	if !ok || c.activeRender == nil {
		return
	}
	c.activeRender.SetPipeline(p.graphics)
	for i, s := range sets {
		if bs, ok := s.(*BindingSet); ok {
			c.activeRender.SetBindGroup(uint32(i), bs.bg, nil)
		}
	}
}

func (c *CommandList) SetComputeState(pipeline rhi.Pipeline, sets []rhi.BindingSet) {
	p, ok := pipeline.(*Pipeline)
	if !ok {
		return
	}
	if c.activeCompute == nil {
		c.activeCompute = c.encoder.BeginComputePass(nil)
	}
	c.activeCompute.SetPipeline(p.compute)
	for i, s := range sets {
		if bs, ok := s.(*BindingSet); ok {
			c.activeCompute.SetBindGroup(uint32(i), bs.bg, nil)
		}
	}
}

// SetPushConstants writes data into the next slot of the device's
// push-constant ring buffer when one exists. New never allocates that
// ring, and SetGraphicsState/SetComputeState bind no dynamic offset, so
// as wired this call writes nothing — see device.go's doc comment.
func (c *CommandList) SetPushConstants(stage rhi.ShaderStage, data []byte) {
	if c.dev.pcRing == nil {
		return
	}
	offset := uint64(c.dev.pcRingCursor) * pushConstantRingSize
	c.dev.queue.WriteBuffer(c.dev.pcRing, offset, data)
	c.dev.pcRingCursor = (c.dev.pcRingCursor + 1) % pushConstantRingSlots
}

func (c *CommandList) Dispatch(x, y, z uint32) {
	if c.activeCompute != nil {
		c.activeCompute.DispatchWorkgroups(x, y, z)
	}
}

// EndCompute ends the compute pass SetComputeState opened, if any.
// cogentcore/webgpu requires an explicit End() on compute passes and
// Close does not end one, so pass authors (package passes) call this
// after their last Dispatch.
func (c *CommandList) EndCompute() error {
	if c.activeCompute == nil {
		return nil
	}
	err := c.activeCompute.End()
	c.activeCompute.Release()
	c.activeCompute = nil
	return err
}

func (c *CommandList) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if c.activeRender != nil {
		c.activeRender.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
	}
}

func (c *CommandList) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	if c.activeRender != nil {
		c.activeRender.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
	}
}

func (c *CommandList) DrawIndirect(args rhi.Buffer, offset uint64, drawCount, stride uint32) {
	wb, ok := args.(*Buffer)
	if !ok || c.activeRender == nil {
		return
	}
	for i := uint32(0); i < drawCount; i++ {
		c.activeRender.DrawIndexedIndirect(wb.buf, offset+uint64(i)*uint64(stride))
	}
}
