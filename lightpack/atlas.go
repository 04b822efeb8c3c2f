package lightpack

// ShadowAtlas is a fixed-size 2D image-array divided into power-of-two
// tiles, reset every frame: tiles are allocated at most once per frame
// and freed en masse at frame start, so no tile index is reused within a
// frame (spec §3's ShadowAtlas invariant).
type ShadowAtlas struct {
	tileSize   uint32
	tilesPerSide uint32
	layers     uint32
	nextFree   int32
}

// NewShadowAtlas describes a tileSize x tileSize tile grid, tilesPerSide
// tiles along each axis of one layer, spread across layers array slices.
func NewShadowAtlas(tileSize, tilesPerSide, layers uint32) *ShadowAtlas {
	return &ShadowAtlas{tileSize: tileSize, tilesPerSide: tilesPerSide, layers: layers}
}

// Reset frees every tile, to be called once at the start of each frame.
func (a *ShadowAtlas) Reset() { a.nextFree = 0 }

// capacity is the number of tiles available across every layer.
func (a *ShadowAtlas) capacity() int32 {
	return int32(a.tilesPerSide * a.tilesPerSide * a.layers)
}

// AllocateTile returns a valid tile index with its (uvOffset, uvScale) in
// [0,1]^2, or the sentinel -1 on exhaustion, per spec §4.3's tile
// allocation contract.
func (a *ShadowAtlas) AllocateTile() (tileIndex int32, atlasLayer uint32, uvOffset, uvScale [2]float32) {
	if a.nextFree >= a.capacity() {
		return -1, 0, [2]float32{}, [2]float32{}
	}
	tile := a.nextFree
	a.nextFree++

	tilesPerLayer := int32(a.tilesPerSide * a.tilesPerSide)
	layer := uint32(tile / tilesPerLayer)
	localTile := tile % tilesPerLayer

	tx := uint32(localTile) % a.tilesPerSide
	ty := uint32(localTile) / a.tilesPerSide

	scale := 1.0 / float32(a.tilesPerSide)
	return tile, layer, [2]float32{float32(tx) * scale, float32(ty) * scale}, [2]float32{scale, scale}
}
