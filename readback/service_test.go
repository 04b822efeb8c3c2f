package readback

import (
	"encoding/binary"
	"testing"

	"github.com/gekko3d/clusterforge/clusterforgeerr"
	"github.com/gekko3d/clusterforge/rhi"
	"github.com/gekko3d/clusterforge/rhi/fakerhi"
)

func makePicker(t *testing.T, dev rhi.Device, w, h uint32, ids map[[2]int]uint32) rhi.Image {
	t.Helper()
	img, err := dev.CreateImage(rhi.ImageDescriptor{
		Label: "picker", Width: w, Height: h,
		Format: rhi.FormatRG32Uint, Usage: rhi.ImageUsageRenderTarget | rhi.ImageUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("CreateImage: %v", err)
	}
	fi, ok := img.(*fakerhi.Image)
	if !ok {
		t.Fatalf("expected *fakerhi.Image")
	}
	plane := fi.Plane(0, 0)
	for coord, id := range ids {
		offset := (coord[1]*int(w) + coord[0]) * 4
		binary.LittleEndian.PutUint32(plane[offset:offset+4], id)
	}
	return img
}

func TestPickEntityAtReturnsIdAtPixel(t *testing.T) {
	dev := fakerhi.New()
	picker := makePicker(t, dev, 4, 4, map[[2]int]uint32{{2, 1}: 42})
	svc := New(dev, nil)

	id, ok, err := svc.PickEntityAt(picker, 2, 1)
	if err != nil {
		t.Fatalf("PickEntityAt: %v", err)
	}
	if !ok || id != 42 {
		t.Fatalf("expected entity 42, got (%v, %v)", id, ok)
	}
}

func TestPickEntityAtZeroPixelReturnsFalseNotError(t *testing.T) {
	dev := fakerhi.New()
	picker := makePicker(t, dev, 4, 4, nil)
	svc := New(dev, nil)

	_, ok, err := svc.PickEntityAt(picker, 0, 0)
	if err != nil {
		t.Fatalf("expected no error for a zero pixel, got %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for a zero pixel")
	}
}

func TestPickEntityAtOutOfRangeReturnsTypedError(t *testing.T) {
	dev := fakerhi.New()
	picker := makePicker(t, dev, 4, 4, nil)
	svc := New(dev, nil)

	_, _, err := svc.PickEntityAt(picker, 100, 100)
	if _, ok := err.(clusterforgeerr.ReadbackOutOfRange); !ok {
		t.Fatalf("expected ReadbackOutOfRange, got %v", err)
	}
}

func TestPickEntitiesInRectRequiresTightContainment(t *testing.T) {
	dev := fakerhi.New()
	// Entity 1 occupies (1,1)-(2,2); entity 2 occupies (5,5)-(6,6), outside the query rect.
	picker := makePicker(t, dev, 8, 8, map[[2]int]uint32{
		{1, 1}: 1, {2, 2}: 1,
		{5, 5}: 2, {6, 6}: 2,
	})
	svc := New(dev, nil)

	got, err := svc.PickEntitiesInRect(picker, 0, 0, 3, 3)
	if err != nil {
		t.Fatalf("PickEntitiesInRect: %v", err)
	}
	if !got[1] || got[2] {
		t.Fatalf("expected only entity 1 fully inside the query rect, got %v", got)
	}
}
