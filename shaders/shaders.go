// Package shaders embeds the WGSL compute kernel sources used by package
// kernels. Grounded on the donor's voxelrt/rt/shaders/shaders.go, which
// embeds its fullscreen/deferred/particle shader strings the same way;
// the kernels here are new, but the embedding idiom is unchanged.
package shaders

import (
	_ "embed"
)

//go:embed addressing.wgsl
var AddressingWGSL string

//go:embed terrain.wgsl
var TerrainWGSL string

//go:embed modify.wgsl
var ModifyWGSL string

//go:embed light.wgsl
var LightWGSL string
