// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vbatch

// Store is the byte-range backend an Artist compacts records in.
//
// The registry algorithm in Artist is identical across backends; only the
// primitive that moves bytes differs. *VertexData implements Store with a
// host memmove; vbo.Buffer implements it with device-side copies.
//
// Implementations must leave the store untouched when they return an error.
type Store interface {
	// Count returns the number of records held.
	Count() int

	// Append adds v's records at the end.
	Append(v *VertexData) error

	// Erase removes n records at record index offset, shifting the suffix
	// left so the store stays gap-free.
	Erase(offset, stride, n int) error

	// Replace overwrites v.Count() records starting at offset.
	Replace(offset, stride int, v *VertexData) error
}

// ResyncFunc brings a backend up to date with the store before the caller
// issues its draw call. It is invoked by Artist.Draw only when a mutation
// happened since the last successful resync.
type ResyncFunc func(s Store) error

var _ Store = (*VertexData)(nil)
