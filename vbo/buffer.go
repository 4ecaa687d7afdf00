// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vbo

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/vbatch"
	"github.com/gogpu/vbatch/gpucore"
)

// Buffer errors.
var (
	// ErrUnalignedStride is returned when the record stride is not a
	// multiple of gpucore.CopyBufferAlignment.
	ErrUnalignedStride = errors.New("vbo: stride is not a multiple of 4")

	// ErrNilDevice is returned when creating a Buffer without a device.
	ErrNilDevice = errors.New("vbo: device is nil")

	// ErrDestroyed is returned when operating on a destroyed Buffer.
	ErrDestroyed = errors.New("vbo: buffer has been destroyed")
)

// Buffer is a device buffer of fixed-stride records that grows by
// reallocation.
//
// Count is the number of live records; Capacity is how many fit in the
// current device allocation. Records past Count are undefined.
type Buffer struct {
	dev    gpucore.BufferAdapter
	id     gpucore.BufferID
	spec   vbatch.SpecID
	stride int

	count    int
	capacity int
	minCap   int

	usage gpucore.BufferUsage
	label string

	// scratch holds the suffix during Erase; reused across calls.
	scratch     gpucore.BufferID
	scratchSize uint64

	destroyed bool
	log       *slog.Logger
}

var _ vbatch.Store = (*Buffer)(nil)

// New creates an empty device buffer for records of spec with the given
// stride. No device memory is allocated until the first write unless
// WithInitialCapacity is set.
func New(dev gpucore.BufferAdapter, spec vbatch.SpecID, stride int, opts ...Option) (*Buffer, error) {
	if dev == nil {
		return nil, ErrNilDevice
	}
	if !spec.Valid() {
		return nil, vbatch.ErrInvalidSpec
	}
	if stride <= 0 {
		return nil, fmt.Errorf("%w: %d", vbatch.ErrInvalidStride, stride)
	}
	if !gpucore.IsAligned(uint64(stride)) {
		return nil, fmt.Errorf("%w: %d", ErrUnalignedStride, stride)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	b := &Buffer{
		dev:    dev,
		spec:   spec,
		stride: stride,
		minCap: o.capacity,
		usage:  o.usage | gpucore.BufferUsageCopySrc | gpucore.BufferUsageCopyDst,
		label:  o.label,
		log:    o.logger,
	}
	if o.capacity > 0 {
		if err := b.Reserve(o.capacity); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// ID returns the current device buffer ID. It changes on every
// reallocation; callers binding the buffer must read it after the last
// mutation of the frame.
func (b *Buffer) ID() gpucore.BufferID { return b.id }

// Good reports whether a device buffer is allocated.
func (b *Buffer) Good() bool { return b.id != gpucore.InvalidID }

// Spec returns the SpecID the buffer is bound to.
func (b *Buffer) Spec() vbatch.SpecID { return b.spec }

// Stride returns the record size in bytes.
func (b *Buffer) Stride() int { return b.stride }

// Count returns the number of live records.
func (b *Buffer) Count() int { return b.count }

// Capacity returns how many records fit without reallocating.
func (b *Buffer) Capacity() int { return b.capacity }

// Size returns the live size in bytes.
func (b *Buffer) Size() int { return b.count * b.stride }

// Label returns the device debug label.
func (b *Buffer) Label() string { return b.label }

func (b *Buffer) logger() *slog.Logger {
	if b.log != nil {
		return b.log
	}
	return vbatch.Logger()
}

// Reserve reallocates the device buffer to hold exactly n records. The
// first min(n, Count()) records are copied on the device; shrinking below
// Count truncates. On error the old buffer is left intact.
func (b *Buffer) Reserve(n int) error {
	if b.destroyed {
		return ErrDestroyed
	}
	if n < 0 {
		return fmt.Errorf("vbo: reserve %d records", n)
	}
	if n == b.capacity {
		return nil
	}
	if n == 0 {
		b.release()
		b.count = 0
		return nil
	}

	size := uint64(n) * uint64(b.stride)
	newID, err := b.dev.CreateBuffer(size, b.usage, b.label)
	if err != nil {
		return fmt.Errorf("vbo: reserve %d records: %w", n, err)
	}

	keep := min(b.count, n)
	if keep > 0 {
		if err := b.dev.CopyBuffer(b.id, newID, 0, 0, uint64(keep)*uint64(b.stride)); err != nil {
			b.dev.DestroyBuffer(newID)
			return fmt.Errorf("vbo: reserve %d records: copy live prefix: %w", n, err)
		}
	}

	old := b.id
	b.release()
	b.id = newID
	b.capacity = n
	b.count = keep

	b.logger().Debug("vbo: reallocated",
		"label", b.label, "old", old, "new", newID,
		"capacity", n, "records", keep)
	return nil
}

func (b *Buffer) release() {
	if b.id != gpucore.InvalidID {
		b.dev.DestroyBuffer(b.id)
		b.id = gpucore.InvalidID
	}
	b.capacity = 0
}

// Resize sets Count to n, growing capacity when needed. Growth at least
// doubles the capacity so repeated appends reallocate O(log n) times.
// New records are undefined until written.
func (b *Buffer) Resize(n int) error {
	if b.destroyed {
		return ErrDestroyed
	}
	if n < 0 {
		return fmt.Errorf("vbo: resize to %d records", n)
	}
	if n > b.capacity {
		if err := b.Reserve(b.grow(n)); err != nil {
			return err
		}
	}
	b.count = n
	return nil
}

// grow returns the capacity to allocate for at least n records.
func (b *Buffer) grow(n int) int {
	c := max(2*b.capacity, b.minCap, n)
	if limit := b.dev.MaxBufferSize(); limit > 0 {
		if maxRecords := int(limit / uint64(b.stride)); c > maxRecords && n <= maxRecords {
			c = maxRecords
		}
	}
	return c
}

// Write overwrites records starting at record index offset with data,
// extending Count when the write runs past the end. offset must not exceed
// Count, so the buffer stays gap-free.
func (b *Buffer) Write(offset int, data []byte) error {
	if b.destroyed {
		return ErrDestroyed
	}
	if len(data)%b.stride != 0 {
		return fmt.Errorf("%w: %d bytes is not a multiple of stride %d", vbatch.ErrInvalidStride, len(data), b.stride)
	}
	n := len(data) / b.stride
	if offset < 0 || offset > b.count {
		return &vbatch.OutOfRangeError{Offset: offset, N: n, Count: b.count}
	}
	if n == 0 {
		return nil
	}
	count := b.count
	if offset+n > b.count {
		if err := b.Resize(offset + n); err != nil {
			return err
		}
	}
	if err := b.dev.WriteBuffer(b.id, uint64(offset)*uint64(b.stride), data); err != nil {
		b.count = count
		return fmt.Errorf("vbo: write %d records at %d: %w", n, offset, err)
	}
	return nil
}

// Assign replaces the whole content with v's records. On error the
// previous records are still live.
func (b *Buffer) Assign(v *vbatch.VertexData) error {
	if v.Spec() != b.spec {
		return &vbatch.SpecMismatchError{Want: b.spec, Got: v.Spec()}
	}
	if err := b.checkData(v); err != nil {
		return err
	}
	if v.Count() == 0 {
		b.count = 0
		return nil
	}
	// Growth copies the live prefix, so a failed write below still has
	// the old records to fall back to.
	count := b.count
	if err := b.Resize(v.Count()); err != nil {
		b.count = count
		return err
	}
	if err := b.Write(0, v.Bytes()); err != nil {
		b.count = count
		return err
	}
	return nil
}

// Append adds v's records at the end.
func (b *Buffer) Append(v *vbatch.VertexData) error {
	if v.Spec() != b.spec {
		return &vbatch.SpecMismatchError{Want: b.spec, Got: v.Spec()}
	}
	if err := b.checkData(v); err != nil {
		return err
	}
	return b.Write(b.count, v.Bytes())
}

// Erase removes n records at offset. The surviving suffix is copied
// through the scratch buffer onto the freed range.
func (b *Buffer) Erase(offset, stride, n int) error {
	if err := b.checkRange(offset, stride, n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	tail := b.count - offset - n
	if tail > 0 {
		sz := uint64(tail) * uint64(b.stride)
		if err := b.ensureScratch(sz); err != nil {
			return err
		}
		from := uint64(offset+n) * uint64(b.stride)
		to := uint64(offset) * uint64(b.stride)
		if err := b.dev.CopyBuffer(b.id, b.scratch, from, 0, sz); err != nil {
			return fmt.Errorf("vbo: erase: stage suffix: %w", err)
		}
		if err := b.dev.CopyBuffer(b.scratch, b.id, 0, to, sz); err != nil {
			return fmt.Errorf("vbo: erase: move suffix: %w", err)
		}
	}
	b.count -= n
	return nil
}

// Replace overwrites v.Count() records starting at offset.
func (b *Buffer) Replace(offset, stride int, v *vbatch.VertexData) error {
	if v.Spec() != b.spec {
		return &vbatch.SpecMismatchError{Want: b.spec, Got: v.Spec()}
	}
	if err := b.checkRange(offset, stride, v.Count()); err != nil {
		return err
	}
	if err := b.checkData(v); err != nil {
		return err
	}
	if v.Count() == 0 {
		return nil
	}
	if err := b.dev.WriteBuffer(b.id, uint64(offset)*uint64(b.stride), v.Bytes()); err != nil {
		return fmt.Errorf("vbo: replace %d records at %d: %w", v.Count(), offset, err)
	}
	return nil
}

// Read copies the live records back to host memory. It stalls until the
// device finishes; use it for tests and diagnostics.
func (b *Buffer) Read() (*vbatch.VertexData, error) {
	if b.destroyed {
		return nil, ErrDestroyed
	}
	if b.count == 0 {
		return vbatch.NewVertexData(b.spec, b.stride, 0), nil
	}
	data, err := b.dev.ReadBuffer(b.id, 0, uint64(b.Size()))
	if err != nil {
		return nil, fmt.Errorf("vbo: read: %w", err)
	}
	return vbatch.NewVertexDataFrom(b.spec, b.stride, data)
}

// Destroy releases the device buffers. The Buffer must not be used
// afterwards.
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.release()
	if b.scratch != gpucore.InvalidID {
		b.dev.DestroyBuffer(b.scratch)
		b.scratch = gpucore.InvalidID
		b.scratchSize = 0
	}
	b.count = 0
	b.destroyed = true
}

func (b *Buffer) ensureScratch(size uint64) error {
	if size <= b.scratchSize {
		return nil
	}
	id, err := b.dev.CreateBuffer(size, gpucore.BufferUsageCopySrc|gpucore.BufferUsageCopyDst, b.label+"_scratch")
	if err != nil {
		return fmt.Errorf("vbo: erase scratch: %w", err)
	}
	if b.scratch != gpucore.InvalidID {
		b.dev.DestroyBuffer(b.scratch)
	}
	b.scratch = id
	b.scratchSize = size
	return nil
}

func (b *Buffer) checkRange(offset, stride, n int) error {
	if b.destroyed {
		return ErrDestroyed
	}
	if stride != b.stride {
		return fmt.Errorf("%w: %d, buffer stride is %d", vbatch.ErrInvalidStride, stride, b.stride)
	}
	if offset < 0 || n < 0 || offset+n > b.count {
		return &vbatch.OutOfRangeError{Offset: offset, N: n, Count: b.count}
	}
	return nil
}

func (b *Buffer) checkData(v *vbatch.VertexData) error {
	if v.Size() != v.Count()*b.stride {
		return fmt.Errorf("%w: %d bytes for %d records of stride %d",
			vbatch.ErrInvalidStride, v.Size(), v.Count(), b.stride)
	}
	return nil
}

// Mirror returns a resync hook that uploads a host-backed Artist's whole
// VertexData into buf. It fails for stores that are not *vbatch.VertexData.
func Mirror(buf *Buffer) vbatch.ResyncFunc {
	return func(s vbatch.Store) error {
		v, ok := s.(*vbatch.VertexData)
		if !ok {
			return fmt.Errorf("vbo: mirror: store is %T, not *vbatch.VertexData", s)
		}
		return buf.Assign(v)
	}
}
