// Package clusterforgeerr defines the render core's recognized error
// kinds and its propagation policy: salvageable failures are logged and
// swallowed by skipping a pass, GPU-contract violations abort the frame,
// and allocation failures propagate to the caller.
package clusterforgeerr

import "fmt"

// ShadersCompiling is returned by the frame entry point when the shader
// library has pending compiles; the caller should re-present the
// previous back buffer and retry next frame.
type ShadersCompiling struct{}

func (ShadersCompiling) Error() string { return "clusterforgeerr: shaders still compiling" }

// ShaderMissing names a shader that was never registered with the shader
// library. No component returns it: shaderlib reports an unregistered
// path with its own error, and the Pass Scheduler returns that error from
// RunFrame, aborting the frame instead of skipping the pass.
type ShaderMissing struct {
	Name string
}

func (e ShaderMissing) Error() string { return fmt.Sprintf("clusterforgeerr: shader missing: %s", e.Name) }

// OutOfAtlasTiles is a per-light soft failure: the light renders
// unshadowed rather than aborting the frame.
type OutOfAtlasTiles struct {
	LightIndex int
}

func (e OutOfAtlasTiles) Error() string {
	return fmt.Sprintf("clusterforgeerr: out of shadow atlas tiles for light %d", e.LightIndex)
}

// OutOfDeviceMemory propagates a device allocation failure; callers
// decide to downscale targets or terminate.
type OutOfDeviceMemory struct {
	Requested uint64
	Label     string
}

func (e OutOfDeviceMemory) Error() string {
	return fmt.Sprintf("clusterforgeerr: out of device memory allocating %q (%d bytes)", e.Label, e.Requested)
}

// ReadbackOutOfRange is returned when a pick coordinate falls outside the
// picker image; the readback service returns "no entity" without
// touching GPU memory.
type ReadbackOutOfRange struct {
	X, Y int
}

func (e ReadbackOutOfRange) Error() string {
	return fmt.Sprintf("clusterforgeerr: readback coordinate (%d, %d) out of range", e.X, e.Y)
}

// InvariantViolation indicates a caller contract breach (missing default
// material, negative instance count, and similar cases the render core
// never expects to recover from); the frame debug-asserts and aborts.
type InvariantViolation struct {
	Reason string
}

func (e InvariantViolation) Error() string {
	return fmt.Sprintf("clusterforgeerr: invariant violation: %s", e.Reason)
}
