package drawcompiler

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/clusterforge/assets"
	"github.com/gekko3d/clusterforge/rhi"
	"github.com/gekko3d/clusterforge/worldview"
	"github.com/gekko3d/clusterforge/xform"
)

type fakeMaterial struct{ ready bool }

func (m *fakeMaterial) Id() assets.Id                                { return "mat" }
func (m *fakeMaterial) VertexShader(skinned bool) rhi.ShaderModule   { return nil }
func (m *fakeMaterial) PixelShader() rhi.ShaderModule                { return nil }
func (m *fakeMaterial) BindingSet() rhi.BindingSet                   { return nil }
func (m *fakeMaterial) BindingLayout() rhi.BindingLayout             { return nil }
func (m *fakeMaterial) IsReadyForRender() bool                       { return m.ready }

type fakeMesh struct {
	ready    bool
	skinned  bool
	surfaces []assets.Surface
	mat      assets.Material
	vbAddr   uint64
	ibAddr   uint64
}

func (m *fakeMesh) AABB() assets.AABB {
	return assets.AABB{Min: [3]float32{-1, -1, -1}, Max: [3]float32{1, 1, 1}}
}
func (m *fakeMesh) MaterialAtSlot(i int) assets.Material      { return m.mat }
func (m *fakeMesh) VertexBuffer() rhi.Buffer                  { return nil }
func (m *fakeMesh) IndexBuffer() rhi.Buffer                   { return nil }
func (m *fakeMesh) VertexBufferAddress() uint64               { return m.vbAddr }
func (m *fakeMesh) IndexBufferAddress() uint64                { return m.ibAddr }
func (m *fakeMesh) GeometrySurfaces() []assets.Surface        { return m.surfaces }
func (m *fakeMesh) IsReadyForRender() bool                    { return m.ready }
func (m *fakeMesh) IsSkinned() bool                           { return m.skinned }

func obj(entity worldview.EntityId, mesh assets.Mesh) worldview.RenderObject {
	return worldview.RenderObject{
		Entity:       entity,
		Transform:    xform.Identity(),
		Mesh:         mesh,
		CastsShadows: true,
	}
}

func TestCompileDedupsIdenticalSurfaceMaterial(t *testing.T) {
	mat := &fakeMaterial{ready: true}
	mesh := &fakeMesh{
		ready:  true,
		vbAddr: 0x1000,
		mat:    mat,
		surfaces: []assets.Surface{
			{StartIndex: 0, IndexCount: 36, MaterialIndex: 0},
		},
	}

	c := &Compiler{DefaultMaterial: mat}
	out := c.Compile([]worldview.RenderObject{
		obj(1, mesh),
		obj(2, mesh),
	})

	if len(out.DrawCommands) != 1 {
		t.Fatalf("expected 1 draw command, got %d", len(out.DrawCommands))
	}
	if len(out.Instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(out.Instances))
	}
	if out.IndirectArgs[0].InstanceCount != 0 {
		t.Fatalf("expected instanceCount reset to 0 after prefix sum, got %d", out.IndirectArgs[0].InstanceCount)
	}
	if out.IndirectArgs[0].FirstInstance != 0 {
		t.Fatalf("expected firstInstance 0 for the only draw, got %d", out.IndirectArgs[0].FirstInstance)
	}
}

func TestCompileSkipsNotReadyMesh(t *testing.T) {
	mat := &fakeMaterial{ready: true}
	mesh := &fakeMesh{ready: false, mat: mat}

	c := &Compiler{DefaultMaterial: mat}
	out := c.Compile([]worldview.RenderObject{obj(1, mesh)})

	if len(out.Instances) != 0 {
		t.Fatalf("expected no instances for a mesh that isn't ready, got %d", len(out.Instances))
	}
}

func TestCompileDistinctFirstIndexSeparatesDraws(t *testing.T) {
	mat := &fakeMaterial{ready: true}
	mesh := &fakeMesh{
		ready:  true,
		vbAddr: 0x2000,
		mat:    mat,
		surfaces: []assets.Surface{
			{StartIndex: 0, IndexCount: 12, MaterialIndex: 0},
			{StartIndex: 12, IndexCount: 12, MaterialIndex: 0},
		},
	}

	c := &Compiler{DefaultMaterial: mat}
	out := c.Compile([]worldview.RenderObject{obj(1, mesh)})

	if len(out.DrawCommands) != 2 {
		t.Fatalf("expected 2 draw commands for distinct first-index surfaces, got %d", len(out.DrawCommands))
	}
}

func TestIndirectArgsBytesLayout(t *testing.T) {
	a := IndirectArgs{VertexCount: 36, InstanceCount: 2, FirstVertex: 0, FirstInstance: 4}
	b := a.Bytes()
	if len(b) != 16 {
		t.Fatalf("expected 16-byte indirect args, got %d", len(b))
	}
}

func TestCompilePopulatesIndexBufferAddress(t *testing.T) {
	mat := &fakeMaterial{ready: true}
	mesh := &fakeMesh{
		ready:  true,
		vbAddr: 0x1000,
		ibAddr: 0x3000,
		mat:    mat,
		surfaces: []assets.Surface{
			{StartIndex: 0, IndexCount: 36, MaterialIndex: 0},
		},
	}

	c := &Compiler{DefaultMaterial: mat}
	out := c.Compile([]worldview.RenderObject{obj(1, mesh)})

	if len(out.Instances) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(out.Instances))
	}
	if out.Instances[0].IndexBufferAddress != 0x3000 {
		t.Fatalf("expected IndexBufferAddress to round-trip from the mesh, got %#x", out.Instances[0].IndexBufferAddress)
	}
}

func TestInstanceRecordBytesLayout(t *testing.T) {
	r := InstanceRecord{
		ObjectToWorld:       mgl32.Ident4(),
		SphereCenter:        mgl32.Vec3{1, 2, 3},
		SphereRadius:        4,
		OwningEntity:        5,
		DrawIndex:           6,
		Flags:               InstanceSelected,
		BonePaletteOffset:   7,
		VertexBufferAddress: 0x1000,
		IndexBufferAddress:  0x2000,
	}
	b := r.Bytes()
	if len(b) != 112 {
		t.Fatalf("expected a 112-byte instance record, got %d", len(b))
	}

	vertexAddrOff := 64 + 16 + 16
	got := uint64(0)
	for i := 0; i < 8; i++ {
		got |= uint64(b[vertexAddrOff+i]) << (8 * i)
	}
	if got != 0x1000 {
		t.Fatalf("expected VertexBufferAddress at offset %d to round-trip, got %#x", vertexAddrOff, got)
	}

	indexAddrOff := vertexAddrOff + 8
	got = 0
	for i := 0; i < 8; i++ {
		got |= uint64(b[indexAddrOff+i]) << (8 * i)
	}
	if got != 0x2000 {
		t.Fatalf("expected IndexBufferAddress at offset %d to round-trip, got %#x", indexAddrOff, got)
	}
}

func TestBoundingSphereCoversAABB(t *testing.T) {
	aabb := [2]mgl32.Vec3{{-1, -1, -1}, {1, 1, 1}}
	center, radius := boundingSphere(aabb)
	if center != (mgl32.Vec3{0, 0, 0}) {
		t.Fatalf("expected centered sphere, got %v", center)
	}
	if radius < 1.7 || radius > 1.8 {
		t.Fatalf("expected radius ~= sqrt(3), got %f", radius)
	}
}
