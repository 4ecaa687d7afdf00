// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package vbo provides a growable device-resident vertex buffer.
//
// A [Buffer] holds fixed-stride records in a GPU buffer obtained from a
// gpucore.BufferAdapter. It implements vbatch.Store, so an Artist can
// compact records directly in device memory:
//
//	b, _ := backend.InitDefault()
//	buf, _ := vbo.New(b.Adapter(), spec, 16)
//	artist, _ := vbatch.NewArtist(spec, 16, vbatch.WithStore(buf))
//
// Alternatively a host-backed Artist can upload its whole buffer on Draw
// with [Mirror]:
//
//	artist, _ := vbatch.NewArtist(spec, 16, vbatch.WithResync(vbo.Mirror(buf)))
//
// # Growth
//
// Device buffers cannot be resized in place. [Buffer.Reserve] allocates a
// new buffer, copies the live prefix on the device, destroys the old one
// and swaps the ID. [Buffer.Resize] grows geometrically so a run of appends
// costs amortized O(1) copies.
//
// # Erase
//
// WebGPU forbids copies whose source and destination are the same buffer.
// Erase moves the surviving suffix into a scratch buffer and back onto the
// freed range. The scratch buffer is kept between calls.
//
// # Alignment
//
// Writes and copies must be 4-byte aligned, so the record stride must be a
// multiple of 4.
//
// Buffer is NOT safe for concurrent use.
package vbo
