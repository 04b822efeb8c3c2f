package hud

import (
	"image"
	"testing"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// emptyFace is a minimal font.Face stand-in so glyph-layout tests don't
// need a real font file on disk.
type emptyFace struct{}

func (emptyFace) Close() error { return nil }
func (emptyFace) Glyph(dot fixed.Point26_6, r rune) (image.Rectangle, image.Image, image.Point, fixed.Int26_6, bool) {
	return image.Rectangle{}, nil, image.Point{}, 0, false
}
func (emptyFace) GlyphBounds(r rune) (fixed.Rectangle26_6, fixed.Int26_6, bool) {
	return fixed.Rectangle26_6{}, 0, false
}
func (emptyFace) GlyphAdvance(r rune) (fixed.Int26_6, bool) { return 0, false }
func (emptyFace) Kern(r0, r1 rune) fixed.Int26_6             { return 0 }
func (emptyFace) Metrics() font.Metrics {
	return font.Metrics{Height: fixed.I(16), Ascent: fixed.I(12)}
}

func TestBuildVerticesProducesTwoTrianglesPerGlyph(t *testing.T) {
	r := &Renderer{
		glyphs: map[rune]glyphInfo{
			'A': {uvMin: [2]float32{0, 0}, uvMax: [2]float32{0.1, 0.1}, size: [2]float32{10, 10}, adv: 12},
			'B': {uvMin: [2]float32{0.1, 0}, uvMax: [2]float32{0.2, 0.1}, size: [2]float32{10, 10}, adv: 12},
		},
		face: emptyFace{},
	}

	items := []Item{{Text: "AB", Position: [2]float32{0, 0}, Scale: 1, Color: [4]float32{1, 1, 1, 1}}}
	verts := r.BuildVertices(items, 800, 600)

	if len(verts) != 12 {
		t.Fatalf("expected 6 vertices per glyph (2 glyphs), got %d", len(verts))
	}
}

func TestBuildVerticesSkipsUnknownRunes(t *testing.T) {
	r := &Renderer{
		glyphs: map[rune]glyphInfo{
			'A': {uvMin: [2]float32{0, 0}, uvMax: [2]float32{0.1, 0.1}, size: [2]float32{10, 10}, adv: 12},
		},
		face: emptyFace{},
	}

	items := []Item{{Text: "A\x00A", Position: [2]float32{0, 0}, Scale: 1, Color: [4]float32{1, 1, 1, 1}}}
	verts := r.BuildVertices(items, 800, 600)

	if len(verts) != 12 {
		t.Fatalf("expected the unrecognized rune to contribute no vertices, got %d total vertices", len(verts))
	}
}

func TestMeasureTextAccumulatesAdvanceWidths(t *testing.T) {
	r := &Renderer{
		glyphs: map[rune]glyphInfo{
			'A': {adv: 10},
			'B': {adv: 8},
		},
		face: emptyFace{},
	}

	w, h := r.MeasureText("AB", 1)
	if w != 18 {
		t.Fatalf("expected width 18, got %v", w)
	}
	if h <= 0 {
		t.Fatalf("expected a positive line height, got %v", h)
	}
}

func TestMeasureTextNilReceiverIsZero(t *testing.T) {
	var r *Renderer
	w, h := r.MeasureText("anything", 1)
	if w != 0 || h != 0 {
		t.Fatalf("expected zero measurement for a nil renderer, got (%v, %v)", w, h)
	}
}
