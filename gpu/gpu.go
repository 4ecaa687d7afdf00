//go:build !nogpu

// Package gpu registers the wgpu device backend for GPU-resident vertex
// buffers.
//
// Import this package to let backend.InitDefault pick a real GPU device.
// The backend opens a Vulkan device through gogpu/wgpu/hal and hands out a
// gpucore.BufferAdapter that package vbo builds on.
//
// If GPU initialization fails (no Vulkan driver available),
// backend.InitDefault logs the failure and falls back to the software
// backend.
//
// Usage:
//
//	import _ "github.com/gogpu/vbatch/gpu" // enable the wgpu backend
package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/vbatch"
	"github.com/gogpu/vbatch/backend"
	"github.com/gogpu/vbatch/gpucore"
	gpuimpl "github.com/gogpu/vbatch/internal/gpu"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// ErrNoHALProvider is returned when a device provider does not expose HAL
// device and queue objects.
var ErrNoHALProvider = errors.New("gpu: provider does not expose HAL types")

func init() {
	backend.Register(backend.BackendWGPU, func() backend.DeviceBackend {
		return NewBackend()
	})
}

var (
	sharedMu       sync.Mutex
	sharedProvider any
)

// SetDeviceProvider makes every wgpu backend created afterwards use a
// shared GPU device from an external provider (e.g., gogpu) instead of
// opening its own. This avoids creating a separate GPU instance.
//
// The provider must also expose HalDevice() and HalQueue() returning the
// hal.Device and hal.Queue; otherwise ErrNoHALProvider is returned. Pass
// nil to go back to opening a private device.
func SetDeviceProvider(provider gpucontext.DeviceProvider) error {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if provider == nil {
		sharedProvider = nil
		return nil
	}
	if _, _, err := halFromProvider(provider); err != nil {
		return err
	}
	sharedProvider = provider
	return nil
}

// Backend is a device backend on top of gogpu/wgpu.
type Backend struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	adapter  *gpuimpl.HALAdapter

	deviceName     string
	externalDevice bool // true when using shared device (don't destroy on Close)
}

var _ backend.DeviceBackend = (*Backend)(nil)

// NewBackend creates an uninitialized wgpu backend.
func NewBackend() *Backend {
	return &Backend{}
}

// Name returns the backend identifier.
func (b *Backend) Name() string { return backend.BackendWGPU }

// DeviceName returns the name of the GPU the backend opened, or "" before
// Init and for shared devices.
func (b *Backend) DeviceName() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.deviceName
}

// Init opens the GPU device, or adopts the shared one set with
// SetDeviceProvider.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.adapter != nil {
		return nil
	}

	sharedMu.Lock()
	provider := sharedProvider
	sharedMu.Unlock()

	if provider != nil {
		device, queue, err := halFromProvider(provider)
		if err != nil {
			return err
		}
		b.device = device
		b.queue = queue
		b.externalDevice = true
	} else if err := b.initGPU(); err != nil {
		b.releaseLocked()
		return fmt.Errorf("%w: %s: %w", backend.ErrBackendNotAvailable, backend.BackendWGPU, err)
	}

	b.adapter = gpuimpl.NewHALAdapter(b.device, b.queue, nil)
	vbatch.PropagateLogger(b.adapter)
	vbatch.Logger().Info("gpu backend initialized", "device", b.deviceName, "shared", b.externalDevice)
	return nil
}

// Close destroys the buffers the backend created and, unless the device is
// shared, the device itself.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.releaseLocked()
}

// Adapter returns the buffer adapter, or nil before Init.
func (b *Backend) Adapter() gpucore.BufferAdapter {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.adapter == nil {
		return nil
	}
	return b.adapter
}

// SetMemoryBudget limits the bytes of live buffers on the device.
func (b *Backend) SetMemoryBudget(megabytes int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.adapter == nil {
		return backend.ErrNotInitialized
	}
	return b.adapter.SetMemoryBudget(megabytes)
}

func (b *Backend) releaseLocked() {
	if b.adapter != nil {
		vbatch.StopPropagation(b.adapter)
		b.adapter.Destroy()
		b.adapter = nil
	}
	if !b.externalDevice {
		if b.device != nil {
			b.device.Destroy()
		}
		if b.instance != nil {
			b.instance.Destroy()
		}
	}
	// Don't destroy shared resources, we don't own them
	b.device = nil
	b.queue = nil
	b.instance = nil
	b.deviceName = ""
	b.externalDevice = false
}

func (b *Backend) initGPU() error {
	halBackend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	b.instance = instance
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	b.device = openDev.Device
	b.queue = openDev.Queue
	b.deviceName = selected.Info.Name
	return nil
}

// halFromProvider extracts the HAL device and queue from a provider that
// implements HalDevice() any and HalQueue() any.
func halFromProvider(provider any) (hal.Device, hal.Queue, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHALProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHALProvider)
	}
	return device, queue, nil
}
