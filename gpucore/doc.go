// Package gpucore provides the shared GPU buffer abstraction for vbatch.
//
// This package defines the [BufferAdapter] interface, which abstracts over
// different device implementations, allowing the same compaction algorithm
// to run against:
//   - gogpu/wgpu (Pure Go WebGPU via HAL), registered by package gpu
//   - the software device in package backend (host memory, no GPU)
//
// # Architecture
//
//	               +-----------------+
//	               |   vbatch/vbo    |
//	               | (device Store)  |
//	               +--------+--------+
//	                        |
//	               +--------v--------+
//	               |     gpucore     |
//	               | (BufferAdapter) |
//	               +--------+--------+
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	|  wgpu adapter   |          | software adapter|
//	|  (hal.Device)   |          |  (host memory)  |
//	+-----------------+          +-----------------+
//
// # Resource Management
//
// GPU buffers are managed via opaque [BufferID] handles. Adapters track the
// mapping between IDs and backend resources. Because device buffers cannot
// be resized in place, growth is allocate-copy-destroy and the caller swaps
// the ID it holds.
//
// # Alignment
//
// Write and copy offsets and sizes must be multiples of
// [CopyBufferAlignment] (4 bytes), matching WebGPU.
package gpucore
