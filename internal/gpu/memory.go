//go:build !nogpu

package gpu

import (
	"errors"
	"fmt"
	"sync"
)

// Memory management errors.
var (
	// ErrMemoryBudgetExceeded is returned when allocation would exceed budget.
	ErrMemoryBudgetExceeded = errors.New("gpu: memory budget exceeded")

	// ErrMemoryManagerClosed is returned when operating on a closed manager.
	ErrMemoryManagerClosed = errors.New("gpu: memory manager closed")
)

// Default memory limits.
const (
	// DefaultMaxMemoryMB is the default maximum buffer memory budget (256 MB).
	DefaultMaxMemoryMB = 256

	// MinMemoryMB is the minimum allowed memory budget (16 MB).
	MinMemoryMB = 16
)

// MemoryStats contains GPU buffer memory usage statistics.
type MemoryStats struct {
	// TotalBytes is the total memory budget in bytes.
	TotalBytes uint64

	// UsedBytes is the currently allocated memory in bytes.
	UsedBytes uint64

	// AvailableBytes is the remaining memory budget.
	AvailableBytes uint64

	// BufferCount is the number of live buffers.
	BufferCount int

	// PeakBytes is the highest UsedBytes seen.
	PeakBytes uint64

	// Utilization is the percentage of budget used (0.0 to 1.0).
	Utilization float64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d MB, %d buffers, peak %d MB]",
		s.Utilization*100,
		s.UsedBytes/(1024*1024),
		s.TotalBytes/(1024*1024),
		s.BufferCount,
		s.PeakBytes/(1024*1024))
}

// MemoryManager tracks GPU buffer allocations and enforces a budget.
//
// Vertex buffers hold live data, so unlike a texture cache there is nothing
// to evict: an allocation that does not fit fails with
// ErrMemoryBudgetExceeded and the caller keeps its old buffer.
//
// MemoryManager is safe for concurrent use.
type MemoryManager struct {
	mu sync.RWMutex

	budgetBytes uint64
	usedBytes   uint64
	peakBytes   uint64

	sizes map[uint64]uint64 // allocation key -> bytes

	closed bool
}

// MemoryManagerConfig holds configuration for creating a MemoryManager.
type MemoryManagerConfig struct {
	// MaxMemoryMB is the maximum memory budget in megabytes.
	// Defaults to DefaultMaxMemoryMB if below MinMemoryMB.
	MaxMemoryMB int
}

// NewMemoryManager creates a new memory manager for GPU buffer tracking.
func NewMemoryManager(config MemoryManagerConfig) *MemoryManager {
	maxMB := config.MaxMemoryMB
	if maxMB < MinMemoryMB {
		maxMB = DefaultMaxMemoryMB
	}

	//nolint:gosec // G115: maxMB is bounded by MinMemoryMB minimum
	return &MemoryManager{
		budgetBytes: uint64(maxMB) * 1024 * 1024,
		sizes:       make(map[uint64]uint64),
	}
}

// Reserve accounts size bytes under key. It fails without side effects if
// the budget would be exceeded.
func (m *MemoryManager) Reserve(key, size uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMemoryManagerClosed
	}
	if m.usedBytes+size > m.budgetBytes {
		return fmt.Errorf("%w: need %d bytes, have %d bytes available",
			ErrMemoryBudgetExceeded, size, m.budgetBytes-m.usedBytes)
	}

	m.sizes[key] += size
	m.usedBytes += size
	if m.usedBytes > m.peakBytes {
		m.peakBytes = m.usedBytes
	}
	return nil
}

// Release returns the bytes accounted under key. Unknown keys are ignored.
func (m *MemoryManager) Release(key uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	size, ok := m.sizes[key]
	if !ok {
		return
	}
	delete(m.sizes, key)
	m.usedBytes -= size
}

// Stats returns current memory usage statistics.
func (m *MemoryManager) Stats() MemoryStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var utilization float64
	if m.budgetBytes > 0 {
		utilization = float64(m.usedBytes) / float64(m.budgetBytes)
	}

	return MemoryStats{
		TotalBytes:     m.budgetBytes,
		UsedBytes:      m.usedBytes,
		AvailableBytes: m.budgetBytes - m.usedBytes,
		BufferCount:    len(m.sizes),
		PeakBytes:      m.peakBytes,
		Utilization:    utilization,
	}
}

// SetBudget updates the memory budget. A budget below current usage only
// blocks further allocations.
func (m *MemoryManager) SetBudget(megabytes int) error {
	if megabytes < MinMemoryMB {
		megabytes = MinMemoryMB
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMemoryManagerClosed
	}

	//nolint:gosec // G115: megabytes bounded by MinMemoryMB minimum
	m.budgetBytes = uint64(megabytes) * 1024 * 1024
	return nil
}

// Close drops all accounting. The manager should not be used after Close.
func (m *MemoryManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.sizes = nil
	m.usedBytes = 0
	m.closed = true
}
