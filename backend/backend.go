package backend

import (
	"errors"

	"github.com/gogpu/vbatch/gpucore"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not available.
	ErrBackendNotAvailable = errors.New("backend: not available")

	// ErrNotInitialized is returned when operations are called before Init.
	ErrNotInitialized = errors.New("backend: not initialized")
)

// DeviceBackend is the interface for device backends.
// It abstracts where vertex buffers live, allowing the library to
// support multiple devices (host-memory software device, GPU via wgpu, etc.).
//
// Backends must be registered via Register() and are selected via
// Get() or Default().
type DeviceBackend interface {
	// Name returns the backend identifier (e.g., "software", "wgpu").
	Name() string

	// Init initializes the backend.
	// This should be called before Adapter.
	Init() error

	// Close releases all backend resources.
	// The backend should not be used after Close is called.
	Close()

	// Adapter returns the buffer adapter of an initialized backend,
	// or nil before Init.
	Adapter() gpucore.BufferAdapter
}
