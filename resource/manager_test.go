package resource

import (
	"testing"

	"github.com/gekko3d/clusterforge/rhi"
	"github.com/gekko3d/clusterforge/rhi/fakerhi"
)

func TestEnsureBufferGrowsAtDoubleRequiredSize(t *testing.T) {
	dev := fakerhi.New()
	m := New(dev, nil)

	buf, err := m.EnsureBuffer("instances", 100, rhi.BufferUsageStorage)
	if err != nil {
		t.Fatalf("EnsureBuffer: %v", err)
	}
	if buf.Size() != 200 {
		t.Fatalf("expected first alloc at 2x required (200), got %d", buf.Size())
	}
	if !m.LayoutsDirty() {
		t.Fatalf("expected layoutsDirty after first allocation")
	}
}

func TestEnsureBufferNoReallocWhenLargeEnough(t *testing.T) {
	dev := fakerhi.New()
	m := New(dev, nil)

	first, _ := m.EnsureBuffer("instances", 100, rhi.BufferUsageStorage)
	_ = m.RebuildBindings(nil)

	second, err := m.EnsureBuffer("instances", 50, rhi.BufferUsageStorage)
	if err != nil {
		t.Fatalf("EnsureBuffer: %v", err)
	}
	if second != first {
		t.Fatalf("expected same buffer handle when shrinking the requirement")
	}
	if m.LayoutsDirty() {
		t.Fatalf("expected layoutsDirty false after a no-op ensure")
	}
}

func TestHiZMipCount(t *testing.T) {
	if got := hiZMipCount(1920, 1080); got != 11 {
		t.Fatalf("expected 11 mips for 1920x1080, got %d", got)
	}
	if got := hiZMipCount(1, 1); got != 1 {
		t.Fatalf("expected 1 mip for 1x1, got %d", got)
	}
}

func TestResizeLeavesShadowAtlasUntouched(t *testing.T) {
	dev := fakerhi.New()
	m := New(dev, nil)
	if err := m.EnsureShadowAtlas(Extent{Width: 4096, Height: 4096}, 8); err != nil {
		t.Fatalf("EnsureShadowAtlas: %v", err)
	}
	atlasBefore := m.ShadowAtlas()

	if err := m.Resize(Extent{Width: 1280, Height: 720}, 3, Extent{Width: 2048, Height: 2048}); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if m.ShadowAtlas() != atlasBefore {
		t.Fatalf("window resize must not touch the config-driven shadow atlas")
	}
}
