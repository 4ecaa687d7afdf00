// Package vbatch batches vertex records from many drawables into one buffer
// per vertex layout, so a single draw call renders them all.
//
// # Overview
//
// Every vertex layout gets a [SpecID] from a [SpecAllocator]. An [Artist]
// accepts only [VertexData] bound to its SpecID and keeps a registry of
// owners, each owning a contiguous run of records in a shared [Store]:
//
//	ctx := vbatch.NewContext()
//	quadSpec := ctx.NewSpec()
//	artist, err := ctx.Attach(quadSpec, 24)
//
//	v := vbatch.NewVertexData(quadSpec, 24, 6)
//	// fill v.Bytes() according to the layout
//	t, err := ctx.Insert(v)
//
//	// once per frame
//	if err := ctx.Draw(); err != nil { ... }
//	// issue the draw call for artist.Count() vertices
//
//	ctx.Remove(t)
//
// # Compaction
//
// Inserts always append. Removing an owner erases its range and shifts every
// later owner left, so the store never has holes and nothing is reused from
// a free list. The registry in insertion order always tiles [0, Count()).
//
// # Backends
//
// The default store is host memory ([VertexData]); Draw then runs a resync
// hook, for example vbo.Mirror, which uploads the whole buffer to the device.
// Alternatively a device buffer from package vbo can be the store itself,
// in which case compaction happens with device-side copies and nothing has to
// be uploaded on Draw.
//
// Device access goes through gpucore.BufferAdapter. Package backend provides
// a software adapter; importing package gpu registers a gogpu/wgpu adapter.
//
// # Concurrency
//
// Artists, Contexts and buffers are single-threaded: they belong to the
// goroutine that drives the rendering context.
package vbatch

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
