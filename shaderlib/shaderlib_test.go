package shaderlib

import (
	"sync"
	"testing"

	"github.com/gekko3d/clusterforge/rhi"
)

type fakeModule struct {
	path   string
	macros []string
}

func (m *fakeModule) Path() string     { return m.path }
func (m *fakeModule) Macros() []string { return m.macros }

type fakeBackend struct {
	mu    sync.Mutex
	calls int
}

func (b *fakeBackend) CompileShader(source, label string) (rhi.ShaderModule, error) {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	return &fakeModule{path: label}, nil
}

func TestGetCachesByPathAndMacros(t *testing.T) {
	backend := &fakeBackend{}
	lib := New(backend, nil)
	lib.RegisterSource("base_pass.wgsl", "// source")

	m1, err := lib.Get("base_pass.wgsl", []string{"SKINNED"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	m2, err := lib.Get("base_pass.wgsl", []string{"SKINNED"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m1 != m2 {
		t.Fatalf("expected cache hit to return the same module pointer")
	}

	backend.mu.Lock()
	calls := backend.calls
	backend.mu.Unlock()
	if calls != 1 {
		t.Fatalf("expected exactly 1 compile for a repeated (path, macros) pair, got %d", calls)
	}
}

func TestGetDistinguishesMacroSets(t *testing.T) {
	backend := &fakeBackend{}
	lib := New(backend, nil)
	lib.RegisterSource("base_pass.wgsl", "// source")

	if _, err := lib.Get("base_pass.wgsl", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := lib.Get("base_pass.wgsl", []string{"SKINNED"}); err != nil {
		t.Fatalf("Get: %v", err)
	}

	backend.mu.Lock()
	calls := backend.calls
	backend.mu.Unlock()
	if calls != 2 {
		t.Fatalf("expected 2 distinct compiles for 2 macro sets, got %d", calls)
	}
}

func TestGetUnregisteredSourceErrors(t *testing.T) {
	lib := New(&fakeBackend{}, nil)
	if _, err := lib.Get("missing.wgsl", nil); err == nil {
		t.Fatalf("expected an error for an unregistered shader path")
	}
}
