// Package worldview is the read-only contract the render core uses to walk
// the host application's scene. It mirrors the shape of the engine's
// archetype ECS (ecs.go, ecs_query.go) closely enough that a World backed by
// that ECS is a thin adapter, but it does not require the rest of the ECS:
// the render core only ever needs iteration, visibility and selection
// state, and a couple of frame clocks.
package worldview

import (
	"github.com/gekko3d/clusterforge/assets"
	"github.com/gekko3d/clusterforge/xform"
)

// EntityId identifies a world entity, matching the engine's existing
// EntityId (ecs.go) in width and meaning.
type EntityId uint64

// RenderObject is everything the Draw Compiler needs to know about one
// renderable entity for a single frame.
type RenderObject struct {
	Entity    EntityId
	Transform xform.Transform
	Mesh      assets.Mesh
	Skeleton  assets.Skeleton // nil when the mesh is not skinned
	// CastsShadows mirrors per-object shadow-casting opt-out; most scenes
	// leave this true.
	CastsShadows bool
}

// LightKind mirrors lightpack.Kind without importing lightpack (which
// itself imports worldview, so the dependency stays one-directional).
type LightKind uint8

const (
	LightDirectional LightKind = iota
	LightPoint
	LightSpot
)

// LightComponent is the host application's unpacked light data, as it
// would live on a component in the ECS (light.go); the Light Packer
// converts one of these plus a Transform into a packed lightpack.Light.
type LightComponent struct {
	Kind LightKind

	Color     [3]float32
	Intensity float32

	Radius       float32 // point
	InnerConeDeg float32 // spot
	OuterConeDeg float32 // spot

	CastsShadow bool
}

// LightObject is everything the Light Packer needs from one light entity.
type LightObject struct {
	Entity    EntityId
	Transform xform.Transform
	Light     LightComponent
}

// Clocks carries the frame-timing values every pass needs; it replaces the
// engine's Time module (mod_time.go) with the handful of fields the render
// core actually reads.
type Clocks struct {
	FrameIndex   uint64
	TimeSeconds  float64
	DeltaSeconds float32
}

// World is the render core's read-only view of the host application's
// scene graph for the duration of one frame. Implementations are expected
// to hand back a stable snapshot: the render core may call these methods
// more than once per frame and expects consistent answers.
type World interface {
	// ViewEntities returns every entity with a renderable mesh, in no
	// particular order; the Draw Compiler keeps that order and does not
	// sort.
	ViewEntities() []RenderObject
	// ViewLights returns every light entity active this frame.
	ViewLights() []LightObject
	// IsSelected reports whether an entity is part of the current editor
	// selection (drives the selection outline pass).
	IsSelected(e EntityId) bool
	// SelectedEntities returns the full current selection set.
	SelectedEntities() []EntityId
	// Valid reports whether an entity id still refers to a live entity,
	// mirroring the ECS's registry.valid check used to guard against
	// stale handles from a prior frame.
	Valid(e EntityId) bool
	Clocks() Clocks
}
