// Package assets defines the external asset-layer contracts the render
// core depends on (spec §6): Mesh, Material, Texture, Skeleton, each
// exposing a "ready for render" boolean and GPU handles. The asset layer
// itself — import, factories, serialization — is out of scope; this
// package only carries the read-only interfaces the Draw Compiler walks.
package assets

import (
	"github.com/google/uuid"

	"github.com/gekko3d/clusterforge/rhi"
)

// Id identifies an asset independent of its storage slot, mirroring the
// engine's existing uuid-keyed AssetId (mod_assets.go).
type Id string

// NewId mints a fresh asset identity.
func NewId() Id { return Id(uuid.NewString()) }

// AABB is an axis-aligned bounding box in mesh-local space.
type AABB struct {
	Min, Max [3]float32
}

// Surface is one drawable range of a mesh's index buffer.
type Surface struct {
	StartIndex    uint32
	IndexCount    uint32
	MaterialIndex int
}

// Mesh is the read-only contract the Draw Compiler walks per spec §6.
type Mesh interface {
	AABB() AABB
	MaterialAtSlot(i int) Material
	VertexBuffer() rhi.Buffer
	IndexBuffer() rhi.Buffer
	// VertexBufferAddress/IndexBufferAddress expose the bindless device
	// address used to build a DrawKey and for per-instance bindless vertex
	// and index fetch; see rhi.SplitAddress.
	VertexBufferAddress() uint64
	IndexBufferAddress() uint64
	GeometrySurfaces() []Surface
	IsReadyForRender() bool
	IsSkinned() bool
}

// Material is the read-only contract for a resolved material.
type Material interface {
	Id() Id
	VertexShader(skinned bool) rhi.ShaderModule
	PixelShader() rhi.ShaderModule
	BindingSet() rhi.BindingSet
	BindingLayout() rhi.BindingLayout
	IsReadyForRender() bool
}

// Texture is a bindless-indexable GPU image, resolved via the bindless
// texture array in the Resource Manager's "bindless" binding layout.
type Texture interface {
	Id() Id
	Image() rhi.Image
	BindlessIndex() uint32
	IsReadyForRender() bool
}

// Skeleton exposes the bone palette for a skinned mesh instance.
type Skeleton interface {
	Id() Id
	BoneCount() int
	// BonePalette returns the current frame's bone matrices, row-major,
	// ready to append to the Draw Compiler's per-frame bone pool.
	BonePalette() [][16]float32
}
