package passes

import (
	"fmt"
	"testing"

	"github.com/gekko3d/clusterforge/drawcompiler"
	"github.com/gekko3d/clusterforge/lightpack"
	"github.com/gekko3d/clusterforge/logging"
	"github.com/gekko3d/clusterforge/resource"
	"github.com/gekko3d/clusterforge/rhi"
	"github.com/gekko3d/clusterforge/rhi/fakerhi"
	"github.com/gekko3d/clusterforge/shaderlib"
)

type fakeModule struct{ path string }

func (m *fakeModule) Path() string     { return m.path }
func (m *fakeModule) Macros() []string { return nil }

type fakeBackend struct{}

func (fakeBackend) CompileShader(source, label string) (rhi.ShaderModule, error) {
	return &fakeModule{path: label}, nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *resource.Manager, rhi.Device) {
	t.Helper()
	dev := fakerhi.New()
	res := resource.New(dev, nil)
	if err := res.Resize(resource.Extent{Width: 256, Height: 256}, 3, resource.Extent{Width: 1024, Height: 1024}); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if _, err := res.EnsureBuffer("indirectArgs", 64, rhi.BufferUsageIndirect); err != nil {
		t.Fatalf("EnsureBuffer: %v", err)
	}
	if err := res.RebuildBindings(nil); err != nil {
		t.Fatalf("RebuildBindings: %v", err)
	}

	lib := shaderlib.New(fakeBackend{}, nil)
	for _, name := range []string{
		"cull.wgsl", "hiz.wgsl", "cluster_build.wgsl", "light_cull.wgsl",
		"depth_prepass.wgsl", "base_pass.wgsl", "tonemap.wgsl", "selection.wgsl", "debug_overlay.wgsl",
	} {
		lib.RegisterSource(name, "// fake")
	}

	return New(dev, res, lib, nil, nil), res, dev
}

func openedCommandList(t *testing.T, dev rhi.Device) rhi.CommandList {
	t.Helper()
	cl, err := dev.CreateCommandList()
	if err != nil {
		t.Fatalf("CreateCommandList: %v", err)
	}
	if err := cl.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return cl
}

func TestRunFrameEmptySceneSkipsCullAndBasePass(t *testing.T) {
	sched, _, dev := newTestScheduler(t)
	cl := openedCommandList(t, dev)

	if err := sched.RunFrame(cl, FrameInputs{}); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}

	want := []string{"reset", "write-scene-buffers", "transparent", "tonemap"}
	if !equalStrings(sched.LastRunPasses, want) {
		t.Fatalf("expected passes %v, got %v", want, sched.LastRunPasses)
	}
}

func TestRunFrameWithDrawsRunsCullDepthAndBasePass(t *testing.T) {
	sched, _, dev := newTestScheduler(t)
	cl := openedCommandList(t, dev)

	in := FrameInputs{
		Draw: drawcompiler.Output{
			DrawCommands: []drawcompiler.DrawCommand{{}},
			Instances:    []drawcompiler.InstanceRecord{{}},
		},
	}
	if err := sched.RunFrame(cl, in); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}

	for _, name := range []string{"cull", "depth-prepass", "depth-pyramid", "base-pass"} {
		if !containsString(sched.LastRunPasses, name) {
			t.Fatalf("expected pass %q to run with nonzero draws, got %v", name, sched.LastRunPasses)
		}
	}
	if containsString(sched.LastRunPasses, "cluster-build") {
		t.Fatalf("expected cluster-build to be skipped with no lights, got %v", sched.LastRunPasses)
	}
}

func TestRunFrameWithLightsAndDrawsRunsClusterAndLightCull(t *testing.T) {
	sched, _, dev := newTestScheduler(t)
	cl := openedCommandList(t, dev)

	in := FrameInputs{
		Draw: drawcompiler.Output{
			DrawCommands: []drawcompiler.DrawCommand{{}},
			Instances:    []drawcompiler.InstanceRecord{{}},
		},
		Lights: lightpack.SceneLightData{Lights: []lightpack.Light{{Kind: lightpack.KindPoint}}},
	}
	if err := sched.RunFrame(cl, in); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}

	for _, name := range []string{"cluster-build", "light-cull"} {
		if !containsString(sched.LastRunPasses, name) {
			t.Fatalf("expected pass %q to run with lights+draws, got %v", name, sched.LastRunPasses)
		}
	}
}

func TestSelectionPassTruncatesAtMaxEntries(t *testing.T) {
	sched, _, dev := newTestScheduler(t)
	cl := openedCommandList(t, dev)

	indices := make([]uint32, MaxSelectionOutlineEntries+10)
	for i := range indices {
		indices[i] = uint32(i)
	}
	in := FrameInputs{SelectedInstanceIndices: indices}
	rec := &warnRecorder{Logger: logging.NewNopLogger()}
	sched.log = rec

	if err := sched.RunFrame(cl, in); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	if !containsString(sched.LastRunPasses, "selection") {
		t.Fatalf("expected selection pass to run, got %v", sched.LastRunPasses)
	}
	want := fmt.Sprintf("passes: selection outline truncated from %d to %d entries", len(indices), MaxSelectionOutlineEntries)
	if len(rec.warnings) != 1 || rec.warnings[0] != want {
		t.Fatalf("expected one truncation warning %q, got %v", want, rec.warnings)
	}
}

type warnRecorder struct {
	logging.Logger
	warnings []string
}

func (w *warnRecorder) Warnf(format string, args ...any) {
	w.warnings = append(w.warnings, fmt.Sprintf(format, args...))
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsString(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
