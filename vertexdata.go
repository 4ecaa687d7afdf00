// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vbatch

import "fmt"

// VertexData is a packed byte buffer of fixed-stride records bound to one
// SpecID. It knows nothing about the fields inside a record; the stride is
// supplied by the caller at construction and on every call that needs it.
//
// Invariant: Size() == Count() * stride for the stride the buffer was built with.
//
// VertexData is NOT safe for concurrent use.
type VertexData struct {
	spec  SpecID
	count int
	data  []byte
}

// NewVertexData creates a zero-filled buffer holding count records of stride bytes.
func NewVertexData(spec SpecID, stride, count int) *VertexData {
	if stride < 0 || count < 0 {
		panic(fmt.Sprintf("vbatch: NewVertexData stride %d count %d", stride, count))
	}
	return &VertexData{
		spec:  spec,
		count: count,
		data:  make([]byte, stride*count),
	}
}

// NewVertexDataFrom wraps b as a buffer of len(b)/stride records.
// The buffer takes ownership of b.
func NewVertexDataFrom(spec SpecID, stride int, b []byte) (*VertexData, error) {
	if stride <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStride, stride)
	}
	if len(b)%stride != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of stride %d", ErrInvalidStride, len(b), stride)
	}
	return &VertexData{
		spec:  spec,
		count: len(b) / stride,
		data:  b,
	}, nil
}

// Spec returns the SpecID the buffer is bound to.
func (v *VertexData) Spec() SpecID { return v.spec }

// Count returns the number of records.
func (v *VertexData) Count() int { return v.count }

// Size returns the buffer length in bytes.
func (v *VertexData) Size() int { return len(v.data) }

// Bytes returns the packed records. The slice aliases the buffer and is
// invalidated by the next mutating call.
func (v *VertexData) Bytes() []byte { return v.data }

// Record returns a view of record i.
func (v *VertexData) Record(i, stride int) []byte {
	if i < 0 || i >= v.count {
		panic(fmt.Sprintf("vbatch: record index %d out of range [0,%d)", i, v.count))
	}
	return v.data[i*stride : (i+1)*stride]
}

// Clone returns a deep copy of the buffer.
func (v *VertexData) Clone() *VertexData {
	c := &VertexData{spec: v.spec, count: v.count}
	c.data = append([]byte(nil), v.data...)
	return c
}

// Append copies other's records to the end of v.
// Returns ErrSpecMismatch, without modifying v, if the specs differ.
func (v *VertexData) Append(other *VertexData) error {
	if other.spec != v.spec {
		return &SpecMismatchError{Want: v.spec, Got: other.spec}
	}
	v.data = append(v.data, other.data...)
	v.count += other.count
	return nil
}

// Erase removes n records starting at record index offset. Trailing bytes
// shift left by n*stride.
//
// An erase past the end returns an *OutOfRangeError and leaves v untouched.
// Callers that keep their own bookkeeping (Artist) treat this as corruption.
func (v *VertexData) Erase(offset, stride, n int) error {
	if err := v.checkRange(offset, stride, n); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	start := offset * stride
	end := start + n*stride
	v.data = append(v.data[:start], v.data[end:]...)
	v.count -= n
	return nil
}

// Replace overwrites src.Count() records starting at offset with src's bytes.
func (v *VertexData) Replace(offset, stride int, src *VertexData) error {
	if src.spec != v.spec {
		return &SpecMismatchError{Want: v.spec, Got: src.spec}
	}
	if err := v.checkRange(offset, stride, src.count); err != nil {
		return err
	}
	copy(v.data[offset*stride:], src.data)
	return nil
}

func (v *VertexData) checkRange(offset, stride, n int) error {
	if stride <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidStride, stride)
	}
	if offset < 0 || n < 0 || offset+n > v.count || (offset+n)*stride > len(v.data) {
		return &OutOfRangeError{Offset: offset, N: n, Count: v.count}
	}
	return nil
}
