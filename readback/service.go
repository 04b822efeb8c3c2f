// Package readback implements interactive entity picking against the
// picker image: copy-to-staging-buffer, map, scan, unmap. It is grounded
// on gpu/manager.go's buffer-mapping idiom (ensureBuffer + map/unmap
// pairs), generalized from the voxel engine's brick-streaming readback to
// a one-shot, synchronous pick query.
package readback

import (
	"encoding/binary"

	"github.com/gekko3d/clusterforge/clusterforgeerr"
	"github.com/gekko3d/clusterforge/logging"
	"github.com/gekko3d/clusterforge/rhi"
	"github.com/gekko3d/clusterforge/worldview"
)

// Service owns the staging buffer used to read the picker image back to
// the CPU. Both its operations flush a one-shot command list
// synchronously and are intended for interactive picking, not per-frame
// use.
type Service struct {
	dev rhi.Device
	log logging.Logger

	staging     rhi.Buffer
	stagingSize uint64
}

func New(dev rhi.Device, log logging.Logger) *Service {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Service{dev: dev, log: log}
}

func (s *Service) ensureStaging(size uint64) (rhi.Buffer, error) {
	if s.staging != nil && s.stagingSize >= size {
		return s.staging, nil
	}
	if s.staging != nil {
		s.staging.Release()
	}
	buf, err := s.dev.CreateBuffer(rhi.BufferDescriptor{
		Label: "readbackStaging", Size: size,
		Usage: rhi.BufferUsageCopyDst | rhi.BufferUsageMapRead,
	}, nil)
	if err != nil {
		return nil, err
	}
	s.staging = buf
	s.stagingSize = size
	return buf, nil
}

// capture copies picker into the staging buffer and returns the mapped
// bytes; picker pixels are a single little-endian uint32 entity id (0 =
// no entity), 4 bytes per pixel.
func (s *Service) capture(picker rhi.Image) ([]byte, error) {
	w, h := picker.Width(), picker.Height()
	size := uint64(w) * uint64(h) * 4

	buf, err := s.ensureStaging(size)
	if err != nil {
		return nil, err
	}

	cl, err := s.dev.CreateCommandList()
	if err != nil {
		return nil, err
	}
	if err := cl.Open(); err != nil {
		return nil, err
	}
	cl.CopyImageToBuffer(picker, 0, 0, buf, 0)
	if err := cl.Close(); err != nil {
		return nil, err
	}
	if err := s.dev.Submit(cl); err != nil {
		return nil, err
	}

	data, err := s.dev.MapBufferRead(buf)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// PickEntityAt bounds-checks (x, y) against picker, then reads its R
// channel. A zero pixel maps to (0, false) rather than an error, per
// spec §4.6; an out-of-range coordinate returns ReadbackOutOfRange.
func (s *Service) PickEntityAt(picker rhi.Image, x, y int) (worldview.EntityId, bool, error) {
	w, h := int(picker.Width()), int(picker.Height())
	if x < 0 || y < 0 || x >= w || y >= h {
		return 0, false, clusterforgeerr.ReadbackOutOfRange{X: x, Y: y}
	}

	data, err := s.capture(picker)
	if err != nil {
		return 0, false, err
	}
	defer s.dev.UnmapBuffer(s.staging)

	offset := (y*w + x) * 4
	if offset+4 > len(data) {
		return 0, false, clusterforgeerr.ReadbackOutOfRange{X: x, Y: y}
	}
	id := binary.LittleEndian.Uint32(data[offset : offset+4])
	if id == 0 {
		return 0, false, nil
	}
	return worldview.EntityId(id), true, nil
}

type pixelRect struct {
	minX, minY, maxX, maxY int
}

// PickEntitiesInRect scans the full picker image, accumulates each
// nonzero id's observed pixel bounding rectangle, and returns the ids
// whose bounds lie fully inside [minX,minY]-[maxX,maxY] (tight
// containment, not mere intersection).
func (s *Service) PickEntitiesInRect(picker rhi.Image, minX, minY, maxX, maxY int) (map[worldview.EntityId]bool, error) {
	w, h := int(picker.Width()), int(picker.Height())

	data, err := s.capture(picker)
	if err != nil {
		return nil, err
	}
	defer s.dev.UnmapBuffer(s.staging)

	bounds := make(map[worldview.EntityId]*pixelRect)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			offset := (y*w + x) * 4
			if offset+4 > len(data) {
				continue
			}
			id := binary.LittleEndian.Uint32(data[offset : offset+4])
			if id == 0 {
				continue
			}
			e := worldview.EntityId(id)
			r, ok := bounds[e]
			if !ok {
				r = &pixelRect{minX: x, minY: y, maxX: x, maxY: y}
				bounds[e] = r
				continue
			}
			if x < r.minX {
				r.minX = x
			}
			if x > r.maxX {
				r.maxX = x
			}
			if y < r.minY {
				r.minY = y
			}
			if y > r.maxY {
				r.maxY = y
			}
		}
	}

	result := make(map[worldview.EntityId]bool)
	for e, r := range bounds {
		if r.minX >= minX && r.minY >= minY && r.maxX <= maxX && r.maxY <= maxY {
			result[e] = true
		}
	}
	return result, nil
}
