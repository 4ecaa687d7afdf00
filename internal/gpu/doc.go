//go:build !nogpu

// Package gpu implements the vbatch device adapter on top of gogpu/wgpu.
//
// This is an internal package used by package github.com/gogpu/vbatch/gpu.
// It talks to the HAL layer of the gogpu/wgpu Pure Go WebGPU implementation
// (zero CGO), which supports Vulkan, Metal, and DX12 depending on the
// platform.
//
// # Components
//
//   - HALAdapter: gpucore.BufferAdapter over a hal.Device and hal.Queue
//   - MemoryManager: buffer memory accounting with a configurable budget
//
// # Copies
//
// WebGPU has no in-place buffer resize and forbids copies whose source and
// destination are the same buffer. HALAdapter records each copy in its own
// command buffer, submits it and waits on a fence, so a sequence of copies
// issued by package vbo executes in program order.
//
// # Readback
//
// ReadBuffer copies into a MapRead staging buffer and reads it through the
// queue. It stalls the CPU until the GPU finishes and is meant for tests
// and diagnostics.
package gpu
