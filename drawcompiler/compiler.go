// Package drawcompiler walks a world snapshot and batches visible
// primitives into draw commands and per-instance records. The traversal
// shape — reset CPU arrays, walk objects, dedup by key into a scratch map
// — follows core/scene.go's Scene.Commit, generalized from the voxel
// engine's single BVH-object list to the spec's dedup-by-DrawKey batching
// over arbitrary mesh surfaces.
package drawcompiler

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/clusterforge/assets"
	"github.com/gekko3d/clusterforge/rhi"
	"github.com/gekko3d/clusterforge/worldview"
)

// InstanceFlags are per-instance bit flags derived from selection state
// and per-component booleans.
type InstanceFlags uint32

const (
	InstanceSelected InstanceFlags = 1 << iota
	InstanceCastsShadow
	InstanceReceivesShadow
)

// InstanceRecord is one per surface-instance, matching spec §3 verbatim.
type InstanceRecord struct {
	ObjectToWorld mgl32.Mat4
	SphereCenter  mgl32.Vec3
	SphereRadius  float32
	OwningEntity  uint32
	DrawIndex     uint32
	Flags         InstanceFlags
	BonePaletteOffset uint32
	VertexBufferAddress uint64
	IndexBufferAddress  uint64
}

// instanceRecordSize is the packed byte size Bytes() produces: a 4x4
// matrix (64) + a vec3/float sphere (16) + four uint32 fields (16) + two
// uint64 bindless addresses (16).
const instanceRecordSize = 64 + 16 + 16 + 16

// Bytes packs InstanceRecord into the std140-ish little-endian layout
// the scene buffer expects, the same approach IndirectArgs.Bytes() uses
// for the indirect-args buffer.
func (r InstanceRecord) Bytes() []byte {
	buf := make([]byte, instanceRecordSize)
	off := 0

	putFloat := func(v float32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
		off += 4
	}
	putVec3 := func(v mgl32.Vec3) {
		putFloat(v.X())
		putFloat(v.Y())
		putFloat(v.Z())
	}
	putUint32 := func(v uint32) {
		binary.LittleEndian.PutUint32(buf[off:off+4], v)
		off += 4
	}
	putUint64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[off:off+8], v)
		off += 8
	}

	for i := 0; i < 16; i++ {
		putFloat(r.ObjectToWorld[i])
	}
	putVec3(r.SphereCenter)
	putFloat(r.SphereRadius)
	putUint32(r.OwningEntity)
	putUint32(r.DrawIndex)
	putUint32(uint32(r.Flags))
	putUint32(r.BonePaletteOffset)
	putUint64(r.VertexBufferAddress)
	putUint64(r.IndexBufferAddress)

	return buf
}

// DrawKey is the dedup key the compiler hashes a surface-instance under;
// it deliberately excludes the transform so identical surface+material
// combinations on different entities fuse into one indirect draw.
type DrawKey struct {
	Material            assets.Material
	VertexBufferAddress uint64
	FirstIndex          uint32
}

// DrawCommand is one unique (shader pair, vertex-buffer address,
// first-index) combination.
type DrawCommand struct {
	VertexShader    rhi.ShaderModule
	PixelShader     rhi.ShaderModule
	BindingLayout   rhi.BindingLayout
	BindingSet      rhi.BindingSet
	IndirectOffset  uint32
	Skinned         bool
}

// IndirectArgs is the exact on-GPU draw-indirect struct.
type IndirectArgs struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// Bytes packs IndirectArgs into the 16-byte little-endian
// {vertexCount, instanceCount, firstVertex, firstInstance} layout of a
// non-indexed draw-indirect command.
func (a IndirectArgs) Bytes() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], a.VertexCount)
	binary.LittleEndian.PutUint32(buf[4:8], a.InstanceCount)
	binary.LittleEndian.PutUint32(buf[8:12], a.FirstVertex)
	binary.LittleEndian.PutUint32(buf[12:16], a.FirstInstance)
	return buf
}

// BonePool accumulates skinned-mesh bone palettes for the frame; Append
// adds one skeleton's palette and returns the index at which it starts.
type BonePool struct {
	Bones []mgl32.Mat4
}

func (p *BonePool) Append(palette [][16]float32) uint32 {
	offset := uint32(len(p.Bones))
	for _, m := range palette {
		p.Bones = append(p.Bones, mgl32.Mat4(m))
	}
	return offset
}

// Output is the result of one Compile call: the three tightly packed
// per-frame arrays plus the bone pool, per spec §4.2.
type Output struct {
	DrawCommands []DrawCommand
	IndirectArgs []IndirectArgs
	Instances    []InstanceRecord
	Bones        BonePool
}

// Compiler carries only the fallback material; each Compile call builds
// its own scratch dedup map, so no state survives between frames.
type Compiler struct {
	DefaultMaterial assets.Material
}

// Compile performs the two-pass traversal described in spec §4.2: emit
// draw commands and instances while deduplicating by DrawKey, then
// prefix-sum instanceCount into firstInstance and zero instanceCount for
// the GPU cull shader to atomically rebuild.
func (c *Compiler) Compile(objects []worldview.RenderObject) Output {
	var out Output
	keyToDraw := make(map[DrawKey]int)

	for _, obj := range objects {
		if !obj.Mesh.IsReadyForRender() {
			continue
		}

		worldAABB := transformAABB(obj.Mesh.AABB(), obj.Transform.ObjectToWorld())
		center, radius := boundingSphere(worldAABB)

		flags := InstanceFlags(0)
		if obj.CastsShadows {
			flags |= InstanceCastsShadow | InstanceReceivesShadow
		}

		boneOffset := uint32(0)
		if obj.Mesh.IsSkinned() && obj.Skeleton != nil {
			boneOffset = out.Bones.Append(obj.Skeleton.BonePalette())
		}

		for _, surf := range obj.Mesh.GeometrySurfaces() {
			mat := obj.Mesh.MaterialAtSlot(surf.MaterialIndex)
			if mat == nil || !mat.IsReadyForRender() {
				mat = c.DefaultMaterial
			}
			if mat == nil {
				// Material fallback: the engine default material must
				// never be null. A nil default is a configuration bug in
				// the host application, not a per-frame condition to
				// recover from.
				panic("drawcompiler: no default material configured")
			}

			key := DrawKey{
				Material:            mat,
				VertexBufferAddress: obj.Mesh.VertexBufferAddress(),
				FirstIndex:          surf.StartIndex,
			}

			drawIdx, ok := keyToDraw[key]
			if !ok {
				drawIdx = len(out.DrawCommands)
				keyToDraw[key] = drawIdx
				out.DrawCommands = append(out.DrawCommands, DrawCommand{
					VertexShader:  mat.VertexShader(obj.Mesh.IsSkinned()),
					PixelShader:   mat.PixelShader(),
					BindingLayout: mat.BindingLayout(),
					BindingSet:    mat.BindingSet(),
					Skinned:       obj.Mesh.IsSkinned(),
					IndirectOffset: uint32(drawIdx),
				})
				out.IndirectArgs = append(out.IndirectArgs, IndirectArgs{
					VertexCount:   surf.IndexCount,
					FirstVertex:   surf.StartIndex,
				})
			}
			out.IndirectArgs[drawIdx].InstanceCount++

			out.Instances = append(out.Instances, InstanceRecord{
				ObjectToWorld:       obj.Transform.ObjectToWorld(),
				SphereCenter:        center,
				SphereRadius:        radius,
				OwningEntity:        uint32(obj.Entity),
				DrawIndex:           uint32(drawIdx),
				Flags:               flags,
				BonePaletteOffset:   boneOffset,
				VertexBufferAddress: obj.Mesh.VertexBufferAddress(),
				IndexBufferAddress:  obj.Mesh.IndexBufferAddress(),
			})
		}
	}

	// Prefix-sum instanceCount into firstInstance, then reset
	// instanceCount to 0: the GPU cull shader atomically rebuilds it.
	running := uint32(0)
	for i := range out.IndirectArgs {
		out.IndirectArgs[i].FirstInstance = running
		running += out.IndirectArgs[i].InstanceCount
		out.IndirectArgs[i].InstanceCount = 0
	}

	return out
}

func transformAABB(local assets.AABB, o2w mgl32.Mat4) [2]mgl32.Vec3 {
	corners := [8]mgl32.Vec3{
		{local.Min[0], local.Min[1], local.Min[2]},
		{local.Max[0], local.Min[1], local.Min[2]},
		{local.Min[0], local.Max[1], local.Min[2]},
		{local.Max[0], local.Max[1], local.Min[2]},
		{local.Min[0], local.Min[1], local.Max[2]},
		{local.Max[0], local.Min[1], local.Max[2]},
		{local.Min[0], local.Max[1], local.Max[2]},
		{local.Max[0], local.Max[1], local.Max[2]},
	}

	inf := float32(1e20)
	wMin := mgl32.Vec3{inf, inf, inf}
	wMax := mgl32.Vec3{-inf, -inf, -inf}
	for _, c := range corners {
		wc := o2w.Mul4x1(c.Vec4(1.0)).Vec3()
		wMin = mgl32.Vec3{fMin(wMin.X(), wc.X()), fMin(wMin.Y(), wc.Y()), fMin(wMin.Z(), wc.Z())}
		wMax = mgl32.Vec3{fMax(wMax.X(), wc.X()), fMax(wMax.Y(), wc.Y()), fMax(wMax.Z(), wc.Z())}
	}
	return [2]mgl32.Vec3{wMin, wMax}
}

func boundingSphere(aabb [2]mgl32.Vec3) (mgl32.Vec3, float32) {
	center := aabb[0].Add(aabb[1]).Mul(0.5)
	radius := aabb[1].Sub(center).Len()
	return center, radius
}

func fMin(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func fMax(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
