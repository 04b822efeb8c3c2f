package clusterforgeerr

import "testing"

func TestErrorKindsImplementErrorInterface(t *testing.T) {
	var errs = []error{
		ShadersCompiling{},
		ShaderMissing{Name: "base_pass.wgsl"},
		OutOfAtlasTiles{LightIndex: 3},
		OutOfDeviceMemory{Requested: 1024, Label: "hdrColor"},
		ReadbackOutOfRange{X: 10, Y: 20},
		InvariantViolation{Reason: "missing default material"},
	}
	for _, err := range errs {
		if err.Error() == "" {
			t.Fatalf("%T: expected a non-empty error message", err)
		}
	}
}

func TestShaderMissingMessageNamesTheShader(t *testing.T) {
	err := ShaderMissing{Name: "tonemap.wgsl"}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty message")
	}
	if err.Name != "tonemap.wgsl" {
		t.Fatalf("expected Name to round-trip, got %q", err.Name)
	}
}

func TestReadbackOutOfRangeTypeAssertionRoundTrips(t *testing.T) {
	var err error = ReadbackOutOfRange{X: 5, Y: 7}
	rr, ok := err.(ReadbackOutOfRange)
	if !ok {
		t.Fatalf("expected ReadbackOutOfRange to type-assert back")
	}
	if rr.X != 5 || rr.Y != 7 {
		t.Fatalf("expected coordinates to round-trip, got (%d, %d)", rr.X, rr.Y)
	}
}
