//go:build !nogpu

package main

// Registers the wgpu device backend ahead of the software fallback.
import _ "github.com/gogpu/vbatch/gpu"
