// Package rhi defines the thin abstraction the render core uses to talk to
// a modern explicit graphics API: buffers, images, binding layouts/sets, a
// bindless descriptor table, pipelines, and command lists with explicit
// resource-state tracking.
//
// The render core never talks to a concrete graphics API directly — it is
// constructed with a Device (dependency injection, not a package-level
// singleton). Concrete backends live in sibling packages: fakerhi (an
// in-memory backend used by tests) and wgpurhi (backed by
// cogentcore/webgpu).
package rhi

import "fmt"

// ResourceState mirrors the explicit state-tracking model an RHI command
// list is responsible for. Automatic barrier insertion converts between
// these states as the spec's ordering guarantees describe (DepthWrite ->
// ShaderResource, UnorderedAccess -> IndirectArgument|ShaderResource, ...).
type ResourceState uint32

const (
	StateUndefined ResourceState = iota
	StateCopyDst
	StateCopySrc
	StateUnorderedAccess
	StateShaderResource
	StateIndirectArgument
	StateVertexBuffer
	StateIndexBuffer
	StateConstantBuffer
	StateRenderTarget
	StateDepthWrite
	StateDepthRead
	StatePresent
)

func (s ResourceState) String() string {
	names := [...]string{
		"Undefined", "CopyDst", "CopySrc", "UnorderedAccess", "ShaderResource",
		"IndirectArgument", "VertexBuffer", "IndexBuffer", "ConstantBuffer",
		"RenderTarget", "DepthWrite", "DepthRead", "Present",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return fmt.Sprintf("ResourceState(%d)", s)
}

// BufferUsage is a bitmask of how a buffer will be used; backends translate
// it into their native usage flags.
type BufferUsage uint32

const (
	BufferUsageVertex BufferUsage = 1 << iota
	BufferUsageIndex
	BufferUsageUniform
	BufferUsageStorage
	BufferUsageIndirect
	BufferUsageCopySrc
	BufferUsageCopyDst
	BufferUsageMapRead
)

type ImageUsage uint32

const (
	ImageUsageSampled ImageUsage = 1 << iota
	ImageUsageStorage
	ImageUsageRenderTarget
	ImageUsageDepthStencil
	ImageUsageCopySrc
	ImageUsageCopyDst
)

type Format uint32

const (
	FormatUnknown Format = iota
	FormatR32Float
	FormatRG32Uint
	FormatRGBA8Unorm
	FormatRGBA16Float
	FormatD32Float
	FormatBGRA8Unorm
)

// BufferDescriptor describes a buffer to be created or resized.
type BufferDescriptor struct {
	Label        string
	Size         uint64
	Stride       uint32
	Usage        BufferUsage
	InitialState ResourceState
	// KeepInitialState instructs the backend to never transition the
	// resource automatically (used for buffers the render core manages
	// transitions for explicitly, e.g. the indirect-args buffer).
	KeepInitialState bool
}

// ImageDescriptor describes an image (2D, array, or mip-chained).
type ImageDescriptor struct {
	Label         string
	Width, Height uint32
	ArrayLayers   uint32
	MipLevels     uint32
	Format        Format
	Usage         ImageUsage
	InitialState  ResourceState
}

// Buffer is an opaque GPU buffer handle.
type Buffer interface {
	Size() uint64
	Label() string
	Release()
}

// Image is an opaque GPU image handle; View selects a sub-resource range
// (one mip / one array layer) for binding.
type Image interface {
	Width() uint32
	Height() uint32
	MipLevels() uint32
	ArrayLayers() uint32
	Label() string
	View(baseMip, mipCount, baseLayer, layerCount uint32) ImageView
	Release()
}

// ImageView is a sub-resource view of an Image suitable for binding.
type ImageView interface {
	Image() Image
	BaseMip() uint32
	BaseLayer() uint32
}

// BindingSlot describes one entry of a BindingLayout.
type BindingSlot struct {
	Binding    uint32
	Name       string
	Kind       BindingKind
	Stages     ShaderStage
	ArrayCount uint32 // >1 for bindless-style arrays; 0 means unbounded
}

type BindingKind uint32

const (
	BindingConstantBuffer BindingKind = iota
	BindingStorageBuffer
	BindingSampledImage
	BindingStorageImage
	BindingSampler
	BindingBindlessTextureArray
)

type ShaderStage uint32

const (
	StageVertex ShaderStage = 1 << iota
	StageFragment
	StageCompute
)

// BindingLayout is an immutable description of a binding set's shape.
type BindingLayout interface {
	Slots() []BindingSlot
	Release()
}

// BindingEntry binds a concrete resource to a layout slot.
type BindingEntry struct {
	Binding uint32
	Buffer  Buffer
	View    ImageView
	Sampler any
}

// BindingSet is a concrete set of bound resources matching a BindingLayout.
// BindingSets capture the backing buffer/image handles; per the Resource
// Manager's resize contract, a BindingSet must be rebuilt whenever any of
// its bound resources is reallocated.
type BindingSet interface {
	Layout() BindingLayout
	Release()
}

// PipelineDescriptor is the shared shape for graphics and compute pipeline
// creation. Pipeline handles are immutable and keyed internally by the
// backend on the full descriptor hash — callers should cache identical
// descriptors rather than recreate them in tight loops.
type PipelineDescriptor struct {
	Label          string
	VertexShader   ShaderModule
	FragmentShader ShaderModule
	ComputeShader  ShaderModule
	Layouts        []BindingLayout
	PushConstants  uint32 // bytes
	Skinned        bool
}

type ShaderModule interface {
	Path() string
	Macros() []string
}

type Pipeline interface {
	Descriptor() PipelineDescriptor
	Release()
}

// ColorAttachment / DepthAttachment describe a render pass's targets.
type ColorAttachment struct {
	View  ImageView
	Clear *[4]float32 // nil = load
}

type DepthAttachment struct {
	View       ImageView
	Clear      *float32 // nil = load
	ReadOnly   bool
	CompareGT  bool // reverse-Z GREATER comparison when true
}

// RenderPassDescriptor configures BeginRenderPass. ViewMask > 0 causes one
// draw call to target multiple array layers (cube shadow faces, CSM
// cascades) in a single pass.
type RenderPassDescriptor struct {
	Label     string
	Colors    []ColorAttachment
	Depth     *DepthAttachment
	ViewMask  uint32
	Viewport  [4]int32 // x, y, w, h; zero value means "full attachment"
}

// CommandList is the render core's view of a single GPU command stream. It
// matches spec §6's bidirectional RHI contract: explicit open/close,
// explicit resource-state transitions with the ability to batch-disable
// automatic barrier insertion around a group of writes, and the standard
// record-time operations (dispatch, draw, drawIndirect, push constants).
type CommandList interface {
	Open() error
	Close() error

	SetBufferState(b Buffer, state ResourceState)
	SetImageState(img Image, state ResourceState)
	CommitBarriers()

	EnableAutomaticBarriers()
	DisableAutomaticBarriers()
	SetEnableUavBarriersForImage(img Image, enabled bool)

	WriteBuffer(b Buffer, offset uint64, data []byte)
	WriteImage(img Image, mip, layer uint32, data []byte)
	CopyImage(src, dst Image, srcMip, dstMip uint32)
	CopyImageToBuffer(src Image, mip, layer uint32, dst Buffer, dstOffset uint64)
	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset, size uint64)

	BeginRenderPass(desc RenderPassDescriptor) error
	EndRenderPass() error

	SetGraphicsState(pipeline Pipeline, sets []BindingSet)
	SetComputeState(pipeline Pipeline, sets []BindingSet)
	SetPushConstants(stage ShaderStage, data []byte)

	Dispatch(groupsX, groupsY, groupsZ uint32)
	// EndCompute closes the active compute pass opened implicitly by
	// SetComputeState. Backends that need an explicit end (cogentcore/webgpu
	// requires one) act on it; others may no-op. Pass authors must call it
	// after the last Dispatch of a compute pass and before the next
	// BeginRenderPass or SetComputeState.
	EndCompute() error
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	DrawIndirect(args Buffer, offset uint64, drawCount uint32, stride uint32)
}

// Device is the factory for GPU resources and command lists, and is the
// sole entry point a backend exposes. It is injected into the Resource
// Manager and Pass Scheduler at construction (Design Notes §9: explicit
// dependency injection rather than a Get() singleton).
type Device interface {
	CreateBuffer(desc BufferDescriptor, initialData []byte) (Buffer, error)
	CreateImage(desc ImageDescriptor) (Image, error)
	CreateBindingLayout(slots []BindingSlot) (BindingLayout, error)
	CreateBindingSet(layout BindingLayout, entries []BindingEntry) (BindingSet, error)
	CreateGraphicsPipeline(desc PipelineDescriptor) (Pipeline, error)
	CreateComputePipeline(desc PipelineDescriptor) (Pipeline, error)
	CreateCommandList() (CommandList, error)
	Submit(cl CommandList) error

	// MapBufferRead maps a host-visible buffer synchronously (used only by
	// the Readback Service, which is explicitly allowed to stall the CPU).
	MapBufferRead(b Buffer) ([]byte, error)
	UnmapBuffer(b Buffer)
}

// SplitAddress packs a 64-bit bindless device address into two 32-bit
// halves for shaders that cannot consume a 64-bit integer directly. The
// layout must be preserved bit-exactly: low 32 bits first, high 32 bits
// second.
func SplitAddress(addr uint64) (lo, hi uint32) {
	return uint32(addr & 0xFFFFFFFF), uint32(addr >> 32)
}

// JoinAddress is the inverse of SplitAddress, mainly useful in tests.
func JoinAddress(lo, hi uint32) uint64 {
	return uint64(hi)<<32 | uint64(lo)
}
