package gpucore

import "errors"

// Adapter errors.
var (
	// ErrUnknownBuffer is returned when an operation references a buffer ID
	// the adapter does not know (never created or already destroyed).
	ErrUnknownBuffer = errors.New("gpucore: unknown buffer")

	// ErrInvalidBufferSize is returned for a zero or oversized buffer.
	ErrInvalidBufferSize = errors.New("gpucore: invalid buffer size")

	// ErrRangeOutOfBounds is returned when a write, copy or read exceeds a buffer.
	ErrRangeOutOfBounds = errors.New("gpucore: range out of bounds")

	// ErrNotAligned is returned when an offset or size violates CopyBufferAlignment.
	ErrNotAligned = errors.New("gpucore: offset or size not 4-byte aligned")

	// ErrSameBuffer is returned by CopyBuffer when source and destination are
	// the same buffer. WebGPU forbids such copies.
	ErrSameBuffer = errors.New("gpucore: copy source and destination are the same buffer")
)

// BufferAdapter abstracts the buffer operations of a GPU device.
//
// This is the subset of a device the vertex batching layer needs: buffers
// cannot be resized in place, so growth and compaction are expressed as
// device-to-device copies between buffers.
//
// Resource lifecycle:
//   - Buffers are created via CreateBuffer
//   - Buffers must be explicitly destroyed via DestroyBuffer
//   - Destroying a buffer while in use is undefined behavior
//   - IDs become invalid after destruction and are never reused
//
// Implementations must be safe for concurrent use.
type BufferAdapter interface {
	// MaxBufferSize returns the maximum buffer size in bytes.
	MaxBufferSize() uint64

	// CreateBuffer creates a GPU buffer of size bytes.
	//
	// Parameters:
	//   - size: buffer size in bytes; adapters may round up to CopyBufferAlignment
	//   - usage: buffer usage flags (bitmask of BufferUsage*)
	//   - label: optional debug label
	//
	// Returns the buffer ID or an error if allocation fails.
	CreateBuffer(size uint64, usage BufferUsage, label string) (BufferID, error)

	// DestroyBuffer releases a GPU buffer. Unknown IDs are ignored.
	DestroyBuffer(id BufferID)

	// WriteBuffer writes data to a buffer at a byte offset.
	// Offset and len(data) must be multiples of CopyBufferAlignment.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// CopyBuffer copies size bytes from src at srcOffset to dst at dstOffset
	// on the device. src and dst must differ. Offsets and size must be
	// multiples of CopyBufferAlignment. The copy is ordered after every
	// previous write and copy.
	CopyBuffer(src, dst BufferID, srcOffset, dstOffset, size uint64) error

	// ReadBuffer reads data from a buffer.
	// This may cause a GPU-CPU synchronization stall.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)
}
