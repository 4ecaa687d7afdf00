// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vbatch

import (
	"strconv"
	"sync/atomic"
)

// SpecID identifies a vertex byte layout. Two buffers may share records
// only if their SpecIDs are equal. Equal SpecIDs are expected to imply equal
// stride and field meaning; the allocator compares identity only.
//
// The zero value is never minted and marks an unbound buffer.
type SpecID uint64

// InvalidSpec is the zero SpecID.
const InvalidSpec SpecID = 0

// Valid reports whether id was minted by a SpecAllocator.
func (id SpecID) Valid() bool {
	return id != InvalidSpec
}

// String returns the string representation of the SpecID.
func (id SpecID) String() string {
	if id == InvalidSpec {
		return "spec(invalid)"
	}
	return "spec(" + strconv.FormatUint(uint64(id), 10) + ")"
}

// SpecAllocator mints SpecIDs. IDs from one allocator are monotonic and
// never reused for the allocator's lifetime. An allocator is normally owned
// by a Context; IDs from different allocators must not be mixed.
//
// Next is safe for concurrent use.
type SpecAllocator struct {
	last atomic.Uint64
}

// NewSpecAllocator creates an allocator whose first ID is 1.
func NewSpecAllocator() *SpecAllocator {
	return &SpecAllocator{}
}

// Next mints a new SpecID.
func (a *SpecAllocator) Next() SpecID {
	return SpecID(a.last.Add(1))
}

// Last returns the most recently minted SpecID, or InvalidSpec if none.
func (a *SpecAllocator) Last() SpecID {
	return SpecID(a.last.Load())
}
