//go:build !nogpu

package gpu

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/vbatch/gpucore"
	"github.com/gogpu/wgpu/hal"
)

// DefaultFenceTimeout bounds how long a copy or readback waits for the GPU.
const DefaultFenceTimeout = 5 * time.Second

type halBuffer struct {
	buf   hal.Buffer
	size  uint64
	label string
}

// HALAdapter implements gpucore.BufferAdapter using gogpu/wgpu/hal directly.
// It provides a bridge between the gpucore abstraction and the HAL layer.
//
// Every CopyBuffer and ReadBuffer is submitted and waited on before it
// returns, so device copies observe all earlier writes and copies in order.
//
// Thread Safety: HALAdapter is safe for concurrent use from multiple goroutines.
// Resource maps are protected by a mutex; submissions are serialized.
type HALAdapter struct {
	mu     sync.RWMutex
	submit sync.Mutex
	device hal.Device
	queue  hal.Queue

	maxBufferSz  uint64
	fenceTimeout time.Duration

	// ID generation
	nextID atomic.Uint64

	// Resource tracking maps gpucore IDs to hal resources
	buffers map[gpucore.BufferID]*halBuffer

	memory *MemoryManager
}

var _ gpucore.BufferAdapter = (*HALAdapter)(nil)

// NewHALAdapter creates a new HALAdapter wrapping the given device and queue.
// The limits parameter provides the adapter's capability limits.
// If limits is nil, default limits are used.
func NewHALAdapter(device hal.Device, queue hal.Queue, limits *gputypes.Limits) *HALAdapter {
	var lim gputypes.Limits
	if limits != nil {
		lim = *limits
	} else {
		lim = gputypes.DefaultLimits()
	}

	adapter := &HALAdapter{
		device:       device,
		queue:        queue,
		maxBufferSz:  lim.MaxBufferSize,
		fenceTimeout: DefaultFenceTimeout,
		buffers:      make(map[gpucore.BufferID]*halBuffer),
		memory:       NewMemoryManager(MemoryManagerConfig{MaxMemoryMB: DefaultMaxMemoryMB}),
	}

	// Start ID generation at 1 (0 is invalid)
	adapter.nextID.Store(1)

	return adapter
}

// newID generates a unique resource ID.
func (a *HALAdapter) newID() uint64 {
	return a.nextID.Add(1) - 1
}

// SetLogger routes internal/gpu logging to l.
func (a *HALAdapter) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// SetMemoryBudget limits the total bytes of live buffers.
func (a *HALAdapter) SetMemoryBudget(megabytes int) error {
	return a.memory.SetBudget(megabytes)
}

// MemoryStats returns buffer memory accounting.
func (a *HALAdapter) MemoryStats() MemoryStats {
	return a.memory.Stats()
}

// MaxBufferSize returns the maximum buffer size in bytes.
func (a *HALAdapter) MaxBufferSize() uint64 {
	return a.maxBufferSz
}

// CreateBuffer creates a GPU buffer. The size is rounded up to
// gpucore.CopyBufferAlignment.
func (a *HALAdapter) CreateBuffer(size uint64, usage gpucore.BufferUsage, label string) (gpucore.BufferID, error) {
	if size == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: size is 0", gpucore.ErrInvalidBufferSize)
	}
	aligned := gpucore.AlignUp(size)
	if a.maxBufferSz > 0 && aligned > a.maxBufferSz {
		return gpucore.InvalidID, fmt.Errorf("%w: %d > max %d", gpucore.ErrInvalidBufferSize, aligned, a.maxBufferSz)
	}

	id := gpucore.BufferID(a.newID())
	if err := a.memory.Reserve(uint64(id), aligned); err != nil {
		return gpucore.InvalidID, err
	}

	buffer, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  aligned,
		Usage: convertBufferUsage(usage),
	})
	if err != nil {
		a.memory.Release(uint64(id))
		return gpucore.InvalidID, fmt.Errorf("create buffer %q: %w", label, err)
	}

	a.mu.Lock()
	a.buffers[id] = &halBuffer{buf: buffer, size: aligned, label: label}
	a.mu.Unlock()

	slogger().Debug("buffer created", "id", id, "label", label, "size", aligned)
	return id, nil
}

// DestroyBuffer releases a GPU buffer. Unknown IDs are ignored.
func (a *HALAdapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	b, ok := a.buffers[id]
	if ok {
		delete(a.buffers, id)
	}
	a.mu.Unlock()

	if ok {
		a.device.DestroyBuffer(b.buf)
		a.memory.Release(uint64(id))
	}
}

// lookup returns the buffer for id. Caller must not hold mu.
func (a *HALAdapter) lookup(id gpucore.BufferID) (*halBuffer, error) {
	a.mu.RLock()
	b, ok := a.buffers[id]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", gpucore.ErrUnknownBuffer, id)
	}
	return b, nil
}

// WriteBuffer writes data to a buffer.
func (a *HALAdapter) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	size := uint64(len(data))
	if !gpucore.IsAligned(offset) || !gpucore.IsAligned(size) {
		return fmt.Errorf("%w: write offset %d size %d", gpucore.ErrNotAligned, offset, size)
	}
	b, err := a.lookup(id)
	if err != nil {
		return err
	}
	if offset+size > b.size {
		return fmt.Errorf("%w: write %d+%d > %d", gpucore.ErrRangeOutOfBounds, offset, size, b.size)
	}
	if size == 0 {
		return nil
	}

	a.submit.Lock()
	defer a.submit.Unlock()
	a.queue.WriteBuffer(b.buf, offset, data)
	return nil
}

// CopyBuffer copies size bytes between two distinct buffers on the device
// and waits for the copy to complete.
func (a *HALAdapter) CopyBuffer(src, dst gpucore.BufferID, srcOffset, dstOffset, size uint64) error {
	if src == dst {
		return gpucore.ErrSameBuffer
	}
	if !gpucore.IsAligned(srcOffset) || !gpucore.IsAligned(dstOffset) || !gpucore.IsAligned(size) {
		return fmt.Errorf("%w: copy %d->%d size %d", gpucore.ErrNotAligned, srcOffset, dstOffset, size)
	}
	s, err := a.lookup(src)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	d, err := a.lookup(dst)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}
	if srcOffset+size > s.size {
		return fmt.Errorf("%w: source %d+%d > %d", gpucore.ErrRangeOutOfBounds, srcOffset, size, s.size)
	}
	if dstOffset+size > d.size {
		return fmt.Errorf("%w: destination %d+%d > %d", gpucore.ErrRangeOutOfBounds, dstOffset, size, d.size)
	}
	if size == 0 {
		return nil
	}

	return a.copyAndWait("vbatch_copy", s.buf, d.buf, []hal.BufferCopy{
		{SrcOffset: srcOffset, DstOffset: dstOffset, Size: size},
	})
}

// ReadBuffer reads data from a buffer.
// This operation requires a staging buffer and GPU-CPU synchronization.
func (a *HALAdapter) ReadBuffer(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	b, err := a.lookup(id)
	if err != nil {
		return nil, err
	}
	if offset+size > b.size {
		return nil, fmt.Errorf("%w: read %d+%d > %d", gpucore.ErrRangeOutOfBounds, offset, size, b.size)
	}
	if size == 0 {
		return []byte{}, nil
	}
	if !gpucore.IsAligned(offset) {
		return nil, fmt.Errorf("%w: read offset %d", gpucore.ErrNotAligned, offset)
	}

	// Copies must be 4-byte sized; read the aligned span and trim.
	span := gpucore.AlignUp(size)
	if offset+span > b.size {
		span = b.size - offset
	}

	staging, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "vbatch_staging",
		Size:  span,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(staging)

	if err := a.copyAndWait("vbatch_readback", b.buf, staging, []hal.BufferCopy{
		{SrcOffset: offset, DstOffset: 0, Size: span},
	}); err != nil {
		return nil, err
	}

	readback := make([]byte, span)
	if err := a.queue.ReadBuffer(staging, 0, readback); err != nil {
		return nil, fmt.Errorf("readback: %w", err)
	}
	return readback[:size], nil
}

// copyAndWait records the copies in one command buffer, submits it and
// blocks on a fence.
func (a *HALAdapter) copyAndWait(label string, src, dst hal.Buffer, regions []hal.BufferCopy) error {
	a.submit.Lock()
	defer a.submit.Unlock()

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label + "_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(label); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	encoder.CopyBufferToBuffer(src, dst, regions)

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	fence, err := a.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)
	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := a.device.Wait(fence, 1, a.fenceTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}
	return nil
}

// Destroy releases every buffer the adapter still owns. The device and
// queue are not destroyed.
func (a *HALAdapter) Destroy() {
	a.mu.Lock()
	buffers := a.buffers
	a.buffers = make(map[gpucore.BufferID]*halBuffer)
	a.mu.Unlock()

	for id, b := range buffers {
		a.device.DestroyBuffer(b.buf)
		a.memory.Release(uint64(id))
	}
	if len(buffers) > 0 {
		slogger().Debug("adapter destroyed live buffers", "count", len(buffers))
	}
}

// Len returns the number of live buffers.
func (a *HALAdapter) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.buffers)
}

// convertBufferUsage converts gpucore.BufferUsage to gputypes.BufferUsage.
func convertBufferUsage(usage gpucore.BufferUsage) gputypes.BufferUsage {
	var result gputypes.BufferUsage

	if usage&gpucore.BufferUsageMapRead != 0 {
		result |= gputypes.BufferUsageMapRead
	}
	if usage&gpucore.BufferUsageMapWrite != 0 {
		result |= gputypes.BufferUsageMapWrite
	}
	if usage&gpucore.BufferUsageCopySrc != 0 {
		result |= gputypes.BufferUsageCopySrc
	}
	if usage&gpucore.BufferUsageCopyDst != 0 {
		result |= gputypes.BufferUsageCopyDst
	}
	if usage&gpucore.BufferUsageVertex != 0 {
		result |= gputypes.BufferUsageVertex
	}
	if usage&gpucore.BufferUsageUniform != 0 {
		result |= gputypes.BufferUsageUniform
	}
	if usage&gpucore.BufferUsageStorage != 0 {
		result |= gputypes.BufferUsageStorage
	}

	return result
}
