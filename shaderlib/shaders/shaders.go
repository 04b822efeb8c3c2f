// Package shaders embeds the WGSL source for every pass in the pipeline,
// following the go:embed idiom of shaders/shaders.go.
package shaders

import _ "embed"

//go:embed depth_prepass.wgsl
var DepthPrepassWGSL string

//go:embed cull.wgsl
var CullWGSL string

//go:embed hiz.wgsl
var HiZWGSL string

//go:embed cluster_build.wgsl
var ClusterBuildWGSL string

//go:embed light_cull.wgsl
var LightCullWGSL string

//go:embed shadow.wgsl
var ShadowWGSL string

//go:embed base_pass.wgsl
var BasePassWGSL string

//go:embed tonemap.wgsl
var TonemapWGSL string

//go:embed selection.wgsl
var SelectionWGSL string

//go:embed debug_overlay.wgsl
var DebugOverlayWGSL string
