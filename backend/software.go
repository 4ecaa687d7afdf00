package backend

import (
	"fmt"
	"sync"

	"github.com/gogpu/vbatch/gpucore"
)

// Backend name constants.
const (
	// BackendSoftware is the name of the host-memory device backend.
	BackendSoftware = "software"
	// BackendWGPU is the name of the Pure Go GPU backend (gogpu/wgpu),
	// registered by importing github.com/gogpu/vbatch/gpu.
	BackendWGPU = "wgpu"
)

// DefaultSoftwareMaxBufferSize is the largest buffer the software device
// hands out, matching the WebGPU default maxBufferSize limit.
const DefaultSoftwareMaxBufferSize = 256 << 20

// SoftwareBackend is a device backend that keeps buffers in host memory.
// It follows the same rules as a GPU device (fixed-size buffers, aligned
// copies, no same-buffer copies) so code tested against it behaves the
// same on hardware.
type SoftwareBackend struct {
	adapter *SoftwareAdapter
}

// init registers the software backend on package import.
func init() {
	Register(BackendSoftware, func() DeviceBackend {
		return &SoftwareBackend{}
	})
}

// NewSoftwareBackend creates a new software device backend.
func NewSoftwareBackend() *SoftwareBackend {
	return &SoftwareBackend{}
}

// Name returns the backend identifier.
func (b *SoftwareBackend) Name() string {
	return BackendSoftware
}

// Init initializes the backend.
func (b *SoftwareBackend) Init() error {
	if b.adapter == nil {
		b.adapter = NewSoftwareAdapter(DefaultSoftwareMaxBufferSize)
	}
	return nil
}

// Close releases all backend resources.
func (b *SoftwareBackend) Close() {
	if b.adapter != nil {
		b.adapter.destroyAll()
		b.adapter = nil
	}
}

// Adapter returns the buffer adapter, or nil before Init.
func (b *SoftwareBackend) Adapter() gpucore.BufferAdapter {
	if b.adapter == nil {
		return nil
	}
	return b.adapter
}

// SoftwareStats counts device operations, letting callers verify that
// nothing was uploaded or copied more than needed.
type SoftwareStats struct {
	Buffers      int    // live buffers
	Creates      uint64 // CreateBuffer calls that succeeded
	Writes       uint64 // WriteBuffer calls that succeeded
	BytesWritten uint64
	Copies       uint64 // CopyBuffer calls that succeeded
	BytesCopied  uint64
}

type softBuffer struct {
	data  []byte
	usage gpucore.BufferUsage
	label string
}

// SoftwareAdapter implements gpucore.BufferAdapter over host memory.
//
// SoftwareAdapter is safe for concurrent use.
type SoftwareAdapter struct {
	mu      sync.Mutex
	buffers map[gpucore.BufferID]*softBuffer
	nextID  gpucore.BufferID
	maxSize uint64
	stats   SoftwareStats
}

var _ gpucore.BufferAdapter = (*SoftwareAdapter)(nil)

// NewSoftwareAdapter creates a software device whose buffers are at most
// maxSize bytes.
func NewSoftwareAdapter(maxSize uint64) *SoftwareAdapter {
	return &SoftwareAdapter{
		buffers: make(map[gpucore.BufferID]*softBuffer),
		maxSize: maxSize,
	}
}

// MaxBufferSize returns the maximum buffer size in bytes.
func (a *SoftwareAdapter) MaxBufferSize() uint64 {
	return a.maxSize
}

// CreateBuffer creates a zero-filled buffer. The size is rounded up to
// gpucore.CopyBufferAlignment.
func (a *SoftwareAdapter) CreateBuffer(size uint64, usage gpucore.BufferUsage, label string) (gpucore.BufferID, error) {
	if size == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: size is 0", gpucore.ErrInvalidBufferSize)
	}
	aligned := gpucore.AlignUp(size)
	if aligned > a.maxSize {
		return gpucore.InvalidID, fmt.Errorf("%w: %d > max %d", gpucore.ErrInvalidBufferSize, aligned, a.maxSize)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.nextID++
	id := a.nextID
	a.buffers[id] = &softBuffer{data: make([]byte, aligned), usage: usage, label: label}
	a.stats.Creates++
	return id, nil
}

// DestroyBuffer releases a buffer. Unknown IDs are ignored.
func (a *SoftwareAdapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.buffers, id)
}

// WriteBuffer writes data to a buffer at offset.
func (a *SoftwareAdapter) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	size := uint64(len(data))
	if !gpucore.IsAligned(offset) || !gpucore.IsAligned(size) {
		return fmt.Errorf("%w: write offset %d size %d", gpucore.ErrNotAligned, offset, size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buffers[id]
	if !ok {
		return fmt.Errorf("%w: %d", gpucore.ErrUnknownBuffer, id)
	}
	if offset+size > uint64(len(b.data)) {
		return fmt.Errorf("%w: write %d+%d > %d", gpucore.ErrRangeOutOfBounds, offset, size, len(b.data))
	}
	copy(b.data[offset:], data)
	a.stats.Writes++
	a.stats.BytesWritten += size
	return nil
}

// CopyBuffer copies size bytes between two distinct buffers.
func (a *SoftwareAdapter) CopyBuffer(src, dst gpucore.BufferID, srcOffset, dstOffset, size uint64) error {
	if src == dst {
		return gpucore.ErrSameBuffer
	}
	if !gpucore.IsAligned(srcOffset) || !gpucore.IsAligned(dstOffset) || !gpucore.IsAligned(size) {
		return fmt.Errorf("%w: copy %d->%d size %d", gpucore.ErrNotAligned, srcOffset, dstOffset, size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.buffers[src]
	if !ok {
		return fmt.Errorf("%w: source %d", gpucore.ErrUnknownBuffer, src)
	}
	d, ok := a.buffers[dst]
	if !ok {
		return fmt.Errorf("%w: destination %d", gpucore.ErrUnknownBuffer, dst)
	}
	if srcOffset+size > uint64(len(s.data)) {
		return fmt.Errorf("%w: source %d+%d > %d", gpucore.ErrRangeOutOfBounds, srcOffset, size, len(s.data))
	}
	if dstOffset+size > uint64(len(d.data)) {
		return fmt.Errorf("%w: destination %d+%d > %d", gpucore.ErrRangeOutOfBounds, dstOffset, size, len(d.data))
	}
	copy(d.data[dstOffset:dstOffset+size], s.data[srcOffset:srcOffset+size])
	a.stats.Copies++
	a.stats.BytesCopied += size
	return nil
}

// ReadBuffer returns a copy of size bytes at offset.
func (a *SoftwareAdapter) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", gpucore.ErrUnknownBuffer, id)
	}
	if offset+size > uint64(len(b.data)) {
		return nil, fmt.Errorf("%w: read %d+%d > %d", gpucore.ErrRangeOutOfBounds, offset, size, len(b.data))
	}
	out := make([]byte, size)
	copy(out, b.data[offset:offset+size])
	return out, nil
}

// BufferSize returns the allocated size of a buffer and whether it exists.
func (a *SoftwareAdapter) BufferSize(id gpucore.BufferID) (uint64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.buffers[id]
	if !ok {
		return 0, false
	}
	return uint64(len(b.data)), true
}

// Stats returns a snapshot of the operation counters.
func (a *SoftwareAdapter) Stats() SoftwareStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.Buffers = len(a.buffers)
	return s
}

func (a *SoftwareAdapter) destroyAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.buffers = make(map[gpucore.BufferID]*softBuffer)
}
