// Package backend provides a pluggable device backend abstraction.
//
// The backend package lets vbatch keep vertex buffers on different devices.
// The software backend is always available; importing package gpu adds a
// GPU backend built on gogpu/wgpu.
//
// # Backend Registration
//
// Backends are registered via init() functions and selected at runtime.
// The software backend is automatically registered on import:
//
//	import _ "github.com/gogpu/vbatch/backend"
//
// The wgpu backend registers itself when package gpu is imported:
//
//	import _ "github.com/gogpu/vbatch/gpu"
//
// # Backend Selection
//
// Use InitDefault() to get the best backend that initializes, or Get() to
// request a specific backend by name:
//
//	b, err := backend.InitDefault()
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer b.Close()
//
//	buf, err := vbo.New(b.Adapter(), spec, 24)
//
// # Available Backends
//
//   - "software": host-memory device (always available)
//   - "wgpu": GPU device via gogpu/wgpu HAL (Vulkan)
package backend
