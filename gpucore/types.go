package gpucore

// Resource IDs
//
// These opaque IDs represent GPU resources. Each adapter implementation
// maintains a mapping between IDs and actual backend resources.
// IDs are uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID BufferID = 0

// CopyBufferAlignment is the alignment, in bytes, required for buffer copy
// offsets and sizes and for buffer writes.
const CopyBufferAlignment = 4

// AlignUp rounds n up to a multiple of CopyBufferAlignment.
func AlignUp(n uint64) uint64 {
	return (n + CopyBufferAlignment - 1) &^ (CopyBufferAlignment - 1)
}

// IsAligned reports whether n is a multiple of CopyBufferAlignment.
func IsAligned(n uint64) bool {
	return n%CopyBufferAlignment == 0
}

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageMapRead indicates the buffer can be mapped for reading.
	BufferUsageMapRead BufferUsage = 1 << 0

	// BufferUsageMapWrite indicates the buffer can be mapped for writing.
	BufferUsageMapWrite BufferUsage = 1 << 1

	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 2

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 3

	// BufferUsageVertex indicates the buffer can be used as a vertex buffer.
	BufferUsageVertex BufferUsage = 1 << 5

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 6

	// BufferUsageStorage indicates the buffer can be used as a storage buffer.
	BufferUsageStorage BufferUsage = 1 << 7
)

// Contains reports whether all bits of other are set in u.
func (u BufferUsage) Contains(other BufferUsage) bool {
	return u&other == other
}
