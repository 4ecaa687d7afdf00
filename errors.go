// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package vbatch

import (
	"errors"
	"fmt"
)

// Allocator errors.
var (
	// ErrSpecMismatch is returned when vertex data bound to one SpecID is
	// offered to a buffer or Artist bound to another.
	ErrSpecMismatch = errors.New("vbatch: vertex spec mismatch")

	// ErrUnknownOwner is returned when an operation that cannot be a no-op
	// (Update) references a handle that is not registered.
	ErrUnknownOwner = errors.New("vbatch: unknown owner")

	// ErrDuplicateOwner is returned by InsertOwner when the handle is already registered.
	ErrDuplicateOwner = errors.New("vbatch: owner already registered")

	// ErrHandlesExhausted is returned by Insert when no larger handle is left to mint.
	ErrHandlesExhausted = errors.New("vbatch: owner handles exhausted")

	// ErrOutOfRange is returned when a record range exceeds the buffer.
	ErrOutOfRange = errors.New("vbatch: record range out of bounds")

	// ErrInvalidStride is returned for a non-positive stride.
	ErrInvalidStride = errors.New("vbatch: invalid stride")

	// ErrInvalidSpec is returned when the zero SpecID is used.
	ErrInvalidSpec = errors.New("vbatch: invalid spec id")

	// ErrStoreCorrupt is returned when the backing store and the owner
	// registry no longer agree. The Artist must not be used afterwards.
	ErrStoreCorrupt = errors.New("vbatch: store and registry diverged")

	// ErrNoArtist is returned by Context when no Artist is attached for a spec.
	ErrNoArtist = errors.New("vbatch: no artist for spec")

	// ErrDuplicateSpec is returned by Context.Attach when the spec already has an Artist.
	ErrDuplicateSpec = errors.New("vbatch: artist already attached for spec")
)

// SpecMismatchError describes a rejected cross-format insert.
type SpecMismatchError struct {
	Want SpecID
	Got  SpecID
}

func (e *SpecMismatchError) Error() string {
	return fmt.Sprintf("vbatch: vertex spec mismatch: want %v, got %v", e.Want, e.Got)
}

// Is reports whether target is ErrSpecMismatch.
func (e *SpecMismatchError) Is(target error) bool {
	return target == ErrSpecMismatch
}

// OutOfRangeError describes an erase or replace past the end of a buffer.
type OutOfRangeError struct {
	Offset int
	N      int
	Count  int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("vbatch: record range out of bounds: offset %d + n %d > count %d",
		e.Offset, e.N, e.Count)
}

// Is reports whether target is ErrOutOfRange.
func (e *OutOfRangeError) Is(target error) bool {
	return target == ErrOutOfRange
}
